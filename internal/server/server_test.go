package server

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"facefilter/internal/api"
	"facefilter/internal/masks"
	"facefilter/internal/observability/metrics"
	"facefilter/internal/pipeline"
)

func newTestServer(t *testing.T, rate RateLimitConfig) *Server {
	t.Helper()
	base := t.TempDir()
	maskDir := filepath.Join(base, "masks")
	uploadDir := filepath.Join(base, "uploads")
	processedDir := filepath.Join(base, "processed")
	for _, dir := range []string{maskDir, uploadDir, processedDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			t.Fatalf("mkdir: %v", err)
		}
	}
	if err := os.WriteFile(filepath.Join(maskDir, "cat.png"), []byte("png"), 0o644); err != nil {
		t.Fatalf("write mask: %v", err)
	}
	catalog, err := masks.NewCatalog(maskDir)
	if err != nil {
		t.Fatalf("NewCatalog: %v", err)
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	handler, err := api.NewHandler(api.HandlerConfig{
		Pipeline:     pipeline.New(pipeline.Config{ProcessorScript: "overlay_processor.py", Logger: logger, Metrics: metrics.New()}),
		Masks:        catalog,
		UploadDir:    uploadDir,
		ProcessedDir: processedDir,
		Logger:       logger,
	})
	if err != nil {
		t.Fatalf("NewHandler: %v", err)
	}
	srv, err := New(handler, Config{
		Addr:      "127.0.0.1:0",
		CORS:      CORSConfig{AllowedOrigin: "https://example.github.io"},
		RateLimit: rate,
		Logger:    logger,
		Metrics:   metrics.New(),
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return srv
}

func TestServerStatusThroughFullChain(t *testing.T) {
	srv := newTestServer(t, RateLimitConfig{})
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Origin", "https://example.github.io")
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	var payload map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if payload["status"] != "online" {
		t.Fatalf("payload = %v", payload)
	}
	if values := rec.Header().Values("Access-Control-Allow-Origin"); len(values) != 1 {
		t.Fatalf("Access-Control-Allow-Origin = %v", values)
	}
	if rec.Header().Get("X-Request-Id") == "" {
		t.Fatal("missing X-Request-Id header")
	}
}

func TestServerUploadRateLimit(t *testing.T) {
	srv := newTestServer(t, RateLimitConfig{UploadLimit: 1, UploadWindow: time.Minute})

	// First submission passes the limiter (and fails later in the handler,
	// which is fine for this test).
	req := httptest.NewRequest(http.MethodPost, "/upload", nil)
	req.RemoteAddr = "203.0.113.7:4711"
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	if rec.Code == http.StatusTooManyRequests {
		t.Fatalf("first submission throttled: %d", rec.Code)
	}

	req = httptest.NewRequest(http.MethodPost, "/upload", nil)
	req.RemoteAddr = "203.0.113.7:4712"
	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("second submission status = %d, want 429", rec.Code)
	}
	if rec.Header().Get("Retry-After") == "" {
		t.Fatal("throttled response missing Retry-After")
	}
	var payload map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("throttled response is not JSON: %v", err)
	}
	if payload["error"] == "" {
		t.Fatalf("payload = %v", payload)
	}
}

func TestServerMetricsEndpoint(t *testing.T) {
	srv := newTestServer(t, RateLimitConfig{})
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if rec.Body.Len() == 0 {
		t.Fatal("metrics body empty")
	}
}

func TestExtractClientIP(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "192.0.2.9:1234"
	if got := extractClientIP(req); got != "192.0.2.9" {
		t.Fatalf("extractClientIP = %q", got)
	}

	req.Header.Set("X-Forwarded-For", "203.0.113.5, 10.0.0.1")
	if got := extractClientIP(req); got != "203.0.113.5" {
		t.Fatalf("extractClientIP with XFF = %q", got)
	}
}
