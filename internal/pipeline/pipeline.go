package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"

	"facefilter/internal/observability/metrics"
)

const (
	defaultFFmpegPath       = "ffmpeg"
	defaultProcessorCommand = "python3"
	defaultFrameRate        = 30
	defaultMaxToolProcs     = 4
)

// Config wires a Pipeline. ProcessorScript is the path to the external
// overlay processor; it is the only field without a usable default.
type Config struct {
	FFmpegPath       string
	ProcessorCommand string
	ProcessorScript  string
	FrameRate        int
	Runner           Runner
	Logger           *slog.Logger
	Metrics          *metrics.Recorder
}

// Pipeline orchestrates the stage, overlay, and finalise steps for one clip
// at a time. It is safe for concurrent use; per-request state lives entirely
// on the stack and in uniquely named temp files.
type Pipeline struct {
	ffmpeg    string
	processor string
	script    string
	frameRate int
	runner    Runner
	logger    *slog.Logger
	metrics   *metrics.Recorder
}

func New(cfg Config) *Pipeline {
	ffmpeg := cfg.FFmpegPath
	if ffmpeg == "" {
		ffmpeg = defaultFFmpegPath
	}
	processor := cfg.ProcessorCommand
	if processor == "" {
		processor = defaultProcessorCommand
	}
	frameRate := cfg.FrameRate
	if frameRate <= 0 {
		frameRate = defaultFrameRate
	}
	runner := cfg.Runner
	if runner == nil {
		runner = NewRunner(defaultMaxToolProcs)
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	recorder := cfg.Metrics
	if recorder == nil {
		recorder = metrics.Default()
	}
	return &Pipeline{
		ffmpeg:    ffmpeg,
		processor: processor,
		script:    cfg.ProcessorScript,
		frameRate: frameRate,
		runner:    runner,
		logger:    logger,
		metrics:   recorder,
	}
}

// ProcessInline runs the full chain for the streamed-response route and
// returns the resulting MP4 bytes. The pipeline takes ownership of inputPath:
// it and every intermediate artifact are removed before ProcessInline
// returns, regardless of outcome. A failed finalisation transcode is
// downgraded to a warning and the overlay output is served instead.
func (p *Pipeline) ProcessInline(ctx context.Context, inputPath, maskPath string) ([]byte, error) {
	p.metrics.JobStarted()
	defer p.metrics.JobFinished()

	ephemeral := []string{inputPath}
	defer func() { p.removeArtifacts(ephemeral) }()

	staged, err := tempArtifact("facefilter-staged-*.mp4")
	if err != nil {
		return nil, &ProcessingError{Err: err}
	}
	ephemeral = append(ephemeral, staged)
	if err := p.stage(ctx, inputPath, staged); err != nil {
		return nil, err
	}

	overlaid, err := tempArtifact("facefilter-overlay-*.mp4")
	if err != nil {
		return nil, &ProcessingError{Err: err}
	}
	ephemeral = append(ephemeral, overlaid)
	if err := p.overlay(ctx, staged, maskPath, overlaid); err != nil {
		return nil, err
	}

	final, err := tempArtifact("facefilter-final-*.mp4")
	if err != nil {
		return nil, &ProcessingError{Err: err}
	}
	ephemeral = append(ephemeral, final)
	serving := final
	if err := p.finalize(ctx, overlaid, final); err != nil {
		p.logger.Warn("finalize transcode failed, serving overlay output",
			"error", err, "detail", toolOutput(err))
		serving = overlaid
	}

	data, err := os.ReadFile(serving)
	if err != nil {
		return nil, &ProcessingError{Err: fmt.Errorf("read processed output: %w", err)}
	}
	return data, nil
}

// ProcessUpload runs the persisted-route variant: the durable upload is fed
// straight to the overlay processor with no staging transcode, and the result
// is written to outputPath inside the processed directory. The input file is
// retained; a partially written output is removed on failure.
func (p *Pipeline) ProcessUpload(ctx context.Context, inputPath, maskPath, outputPath string) error {
	p.metrics.JobStarted()
	defer p.metrics.JobFinished()

	if err := p.overlay(ctx, inputPath, maskPath, outputPath); err != nil {
		if removeErr := os.Remove(outputPath); removeErr != nil && !errors.Is(removeErr, fs.ErrNotExist) {
			p.logger.Warn("remove partial output failed", "path", outputPath, "error", removeErr)
		}
		return err
	}
	return nil
}

func (p *Pipeline) stage(ctx context.Context, input, output string) error {
	p.metrics.ObserveToolRun("stage")
	args := []string{
		"-y",
		"-i", input,
		"-c:v", "libx264",
		"-pix_fmt", "yuv420p",
		"-preset", "veryfast",
		"-movflags", "+faststart",
		output,
	}
	if err := p.runner.Run(ctx, p.ffmpeg, args...); err != nil {
		p.metrics.ObserveToolFailure("stage")
		return &ExternalToolError{Tool: p.ffmpeg, Output: toolOutput(err), Err: err}
	}
	return nil
}

func (p *Pipeline) overlay(ctx context.Context, input, mask, output string) error {
	p.metrics.ObserveToolRun("overlay")
	// The processor contract is positional: input, mask, output.
	args := []string{p.script, input, mask, output}
	if err := p.runner.Run(ctx, p.processor, args...); err != nil {
		p.metrics.ObserveToolFailure("overlay")
		return &ProcessingError{Output: toolOutput(err), Err: err}
	}
	return nil
}

func (p *Pipeline) finalize(ctx context.Context, input, output string) error {
	p.metrics.ObserveToolRun("finalize")
	args := []string{
		"-y",
		"-i", input,
		"-vf", fmt.Sprintf("fps=%d", p.frameRate),
		"-c:v", "libx264",
		"-pix_fmt", "yuv420p",
		"-preset", "veryfast",
		"-movflags", "+faststart",
		output,
	}
	if err := p.runner.Run(ctx, p.ffmpeg, args...); err != nil {
		p.metrics.ObserveToolFailure("finalize")
		return &ExternalToolError{Tool: p.ffmpeg, Output: toolOutput(err), Err: err}
	}
	return nil
}

func (p *Pipeline) removeArtifacts(paths []string) {
	for _, path := range paths {
		if path == "" {
			continue
		}
		if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			p.logger.Warn("remove ephemeral artifact failed", "path", path, "error", err)
		}
	}
}

func tempArtifact(pattern string) (string, error) {
	file, err := os.CreateTemp("", pattern)
	if err != nil {
		return "", fmt.Errorf("create temp artifact: %w", err)
	}
	name := file.Name()
	if err := file.Close(); err != nil {
		_ = os.Remove(name)
		return "", fmt.Errorf("create temp artifact: %w", err)
	}
	return name, nil
}
