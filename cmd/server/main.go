// Command server starts the face-filter HTTP service.
package main

import (
	"context"
	"errors"
	"flag"
	"io/fs"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"facefilter/internal/api"
	"facefilter/internal/auth"
	"facefilter/internal/masks"
	"facefilter/internal/observability/logging"
	"facefilter/internal/observability/metrics"
	"facefilter/internal/pipeline"
	"facefilter/internal/server"
	"facefilter/internal/storage"
)

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		// A malformed .env should be loud; a missing one is normal.
		slogFallback("load .env failed", err)
	}

	addr := flag.String("addr", "", "HTTP listen address (overrides PORT)")
	origin := flag.String("origin", "", "browser origin allowed by the CORS policy")
	baseDir := flag.String("base-dir", "", "base directory for uploads, processed files, and masks")
	uploadsDir := flag.String("uploads-dir", "", "directory for uploaded videos")
	processedDir := flag.String("processed-dir", "", "directory for processed videos")
	masksDir := flag.String("masks-dir", "", "directory of mask PNG assets")
	ffmpegPath := flag.String("ffmpeg", "", "path to the ffmpeg binary")
	processorCmd := flag.String("processor-cmd", "", "interpreter for the overlay processor")
	processorScript := flag.String("processor-script", "", "path to the overlay processor script")
	frameRate := flag.Int("frame-rate", 0, "output frame rate for the final transcode")
	maxToolProcs := flag.Int64("max-tool-procs", 0, "maximum concurrent external tool processes")
	historyDriver := flag.String("history-driver", "", "job history driver (json or postgres)")
	historyPath := flag.String("history-path", "", "path to the JSON job history file")
	postgresDSN := flag.String("postgres-dsn", "", "Postgres connection string for the job history")
	apiToken := flag.String("api-token", "", "bearer token required on privileged endpoints")
	logLevel := flag.String("log-level", "", "log level (debug, info, warn, error)")
	logFormat := flag.String("log-format", "", "log format (json or text)")
	globalRPS := flag.Float64("rate-global-rps", 0, "global request rate limit in requests per second")
	globalBurst := flag.Int("rate-global-burst", 0, "global rate limit burst allowance")
	uploadLimit := flag.Int("rate-upload-limit", 0, "maximum processing submissions per window for a single IP")
	uploadWindow := flag.Duration("rate-upload-window", 0, "window for counting processing submissions")
	redisAddr := flag.String("rate-redis-addr", "", "Redis address for distributed submission throttling")
	redisUsername := flag.String("rate-redis-username", "", "Redis username for distributed submission throttling")
	redisPassword := flag.String("rate-redis-password", "", "Redis password for distributed submission throttling")
	redisTimeout := flag.Duration("rate-redis-timeout", 0, "timeout for Redis operations")
	shutdownTimeout := flag.Duration("shutdown-timeout", 0, "graceful shutdown timeout")
	flag.Parse()

	logger := logging.Init(logging.Config{
		Level:  firstNonEmpty(*logLevel, os.Getenv("FACEFILTER_LOG_LEVEL")),
		Format: firstNonEmpty(*logFormat, os.Getenv("FACEFILTER_LOG_FORMAT")),
	})
	recorder := metrics.Default()

	base := firstNonEmpty(*baseDir, os.Getenv("FACEFILTER_BASE_DIR"), ".")
	uploads := firstNonEmpty(*uploadsDir, os.Getenv("FACEFILTER_UPLOADS_DIR"), filepath.Join(base, "uploads"))
	processed := firstNonEmpty(*processedDir, os.Getenv("FACEFILTER_PROCESSED_DIR"), filepath.Join(base, "processed"))
	maskDir := firstNonEmpty(*masksDir, os.Getenv("FACEFILTER_MASKS_DIR"), filepath.Join(base, "masks"))

	for _, dir := range []string{uploads, processed} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			logger.Error("create directory failed", "dir", dir, "error", err)
			os.Exit(1)
		}
	}

	catalog, err := masks.NewCatalog(maskDir)
	if err != nil {
		logger.Error("mask catalog unavailable", "dir", maskDir, "error", err)
		os.Exit(1)
	}

	procs := *maxToolProcs
	if procs <= 0 {
		procs = int64(resolveInt(0, "FACEFILTER_MAX_TOOL_PROCS"))
	}
	if procs <= 0 {
		procs = 4
	}

	pipe := pipeline.New(pipeline.Config{
		FFmpegPath:       firstNonEmpty(*ffmpegPath, os.Getenv("FACEFILTER_FFMPEG")),
		ProcessorCommand: firstNonEmpty(*processorCmd, os.Getenv("FACEFILTER_PROCESSOR_CMD")),
		ProcessorScript: firstNonEmpty(*processorScript, os.Getenv("FACEFILTER_PROCESSOR_SCRIPT"),
			filepath.Join(base, "overlay_processor.py")),
		FrameRate: resolveInt(*frameRate, "FACEFILTER_FRAME_RATE"),
		Runner:    pipeline.NewRunner(procs),
		Logger:    logging.WithComponent(logger, "pipeline"),
		Metrics:   recorder,
	})

	history, err := openHistory(*historyDriver, *historyPath, *postgresDSN, base)
	if err != nil {
		logger.Error("open job history failed", "error", err)
		os.Exit(1)
	}
	if history != nil {
		defer history.Close()
	}

	guard, err := auth.NewTokenGuard(firstNonEmpty(*apiToken, os.Getenv("FACEFILTER_API_TOKEN")))
	if err != nil {
		logger.Error("configure token guard failed", "error", err)
		os.Exit(1)
	}

	handler, err := api.NewHandler(api.HandlerConfig{
		Pipeline:     pipe,
		Masks:        catalog,
		History:      history,
		Guard:        guard,
		UploadDir:    uploads,
		ProcessedDir: processed,
		Logger:       logging.WithComponent(logger, "api"),
	})
	if err != nil {
		logger.Error("configure handlers failed", "error", err)
		os.Exit(1)
	}

	listenAddr := resolveListenAddr(*addr, os.Getenv("FACEFILTER_ADDR"), os.Getenv("PORT"))
	allowedOrigin := firstNonEmpty(*origin, os.Getenv("FACEFILTER_ORIGIN"), "https://brookswimer.github.io")

	srv, err := server.New(handler, server.Config{
		Addr: listenAddr,
		CORS: server.CORSConfig{AllowedOrigin: allowedOrigin},
		RateLimit: server.RateLimitConfig{
			GlobalRPS:     resolveFloat(*globalRPS, "FACEFILTER_RATE_GLOBAL_RPS"),
			GlobalBurst:   resolveInt(*globalBurst, "FACEFILTER_RATE_GLOBAL_BURST"),
			UploadLimit:   resolveInt(*uploadLimit, "FACEFILTER_RATE_UPLOAD_LIMIT"),
			UploadWindow:  resolveDuration(*uploadWindow, "FACEFILTER_RATE_UPLOAD_WINDOW", time.Minute),
			RedisAddr:     firstNonEmpty(*redisAddr, os.Getenv("FACEFILTER_RATE_REDIS_ADDR")),
			RedisUsername: firstNonEmpty(*redisUsername, os.Getenv("FACEFILTER_RATE_REDIS_USERNAME")),
			RedisPassword: firstNonEmpty(*redisPassword, os.Getenv("FACEFILTER_RATE_REDIS_PASSWORD")),
			RedisTimeout:  resolveDuration(*redisTimeout, "FACEFILTER_RATE_REDIS_TIMEOUT", 2*time.Second),
		},
		ShutdownTimeout: resolveDuration(*shutdownTimeout, "FACEFILTER_SHUTDOWN_TIMEOUT", 10*time.Second),
		Logger:          logger,
		Metrics:         recorder,
	})
	if err != nil {
		logger.Error("failed to initialise server", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Info("Face Filter API listening", "addr", listenAddr, "origin", allowedOrigin)
	if err := srv.Run(ctx); err != nil {
		logger.Error("server error", "error", err)
		os.Exit(1)
	}
	logger.Info("server stopped")
}

func openHistory(flagDriver, flagPath, flagDSN, base string) (storage.Repository, error) {
	driver := strings.ToLower(firstNonEmpty(flagDriver, os.Getenv("FACEFILTER_HISTORY_DRIVER")))
	dsn := firstNonEmpty(flagDSN, os.Getenv("FACEFILTER_POSTGRES_DSN"), os.Getenv("DATABASE_URL"))
	if driver == "" {
		if dsn != "" {
			driver = "postgres"
		} else {
			driver = "json"
		}
	}
	switch driver {
	case "json":
		path := firstNonEmpty(flagPath, os.Getenv("FACEFILTER_HISTORY_PATH"), filepath.Join(base, "data", "jobs.json"))
		return storage.NewJSONRepository(path)
	case "postgres":
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return storage.NewPostgresRepository(ctx, storage.PostgresConfig{DSN: dsn})
	case "none":
		return nil, nil
	default:
		return nil, errors.New("unsupported history driver " + strconv.Quote(driver))
	}
}

// resolveListenAddr prefers the explicit flag, then FACEFILTER_ADDR, then the
// platform-provided PORT, and finally port 5000.
func resolveListenAddr(flagValue, envAddr, envPort string) string {
	if addr := strings.TrimSpace(flagValue); addr != "" {
		return addr
	}
	if addr := strings.TrimSpace(envAddr); addr != "" {
		return addr
	}
	if port := strings.TrimSpace(envPort); port != "" {
		return ":" + port
	}
	return ":5000"
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		trimmed := strings.TrimSpace(value)
		if trimmed != "" {
			return trimmed
		}
	}
	return ""
}

func resolveFloat(flagValue float64, envKey string) float64 {
	if flagValue > 0 {
		return flagValue
	}
	if env := os.Getenv(envKey); env != "" {
		if value, err := strconv.ParseFloat(strings.TrimSpace(env), 64); err == nil {
			return value
		}
	}
	return 0
}

func resolveInt(flagValue int, envKey string) int {
	if flagValue > 0 {
		return flagValue
	}
	if env := os.Getenv(envKey); env != "" {
		if value, err := strconv.Atoi(strings.TrimSpace(env)); err == nil {
			return value
		}
	}
	return 0
}

func resolveDuration(flagValue time.Duration, envKey string, fallback time.Duration) time.Duration {
	if flagValue > 0 {
		return flagValue
	}
	if env := os.Getenv(envKey); env != "" {
		if value, err := time.ParseDuration(env); err == nil {
			return value
		}
	}
	return fallback
}

func slogFallback(msg string, err error) {
	logging.Init(logging.Config{}).Warn(msg, "error", err)
}
