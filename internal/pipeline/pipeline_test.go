package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"facefilter/internal/observability/metrics"
)

type fakeRunner struct {
	calls [][]string
	fail  func(call int, name string, args []string) error
}

func (f *fakeRunner) Run(_ context.Context, name string, args ...string) error {
	call := len(f.calls)
	f.calls = append(f.calls, append([]string{name}, args...))
	if f.fail != nil {
		if err := f.fail(call, name, args); err != nil {
			return err
		}
	}
	output := args[len(args)-1]
	return os.WriteFile(output, []byte(fmt.Sprintf("artifact-%d", call)), 0o644)
}

func newTestPipeline(t *testing.T, runner Runner) *Pipeline {
	t.Helper()
	return New(Config{
		ProcessorScript: "overlay_processor.py",
		Runner:          runner,
		Logger:          slog.New(slog.NewTextHandler(io.Discard, nil)),
		Metrics:         metrics.New(),
	})
}

func writeTempInput(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "input.webm")
	if err := os.WriteFile(path, []byte("webm-bytes"), 0o644); err != nil {
		t.Fatalf("write input: %v", err)
	}
	return path
}

func mustNotExist(t *testing.T, path string) {
	t.Helper()
	if _, err := os.Stat(path); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("expected %s to be removed, stat err=%v", path, err)
	}
}

func TestProcessInlineRunsFullChain(t *testing.T) {
	runner := &fakeRunner{}
	p := newTestPipeline(t, runner)
	input := writeTempInput(t)

	data, err := p.ProcessInline(context.Background(), input, "/masks/cat.png")
	if err != nil {
		t.Fatalf("ProcessInline: %v", err)
	}
	if string(data) != "artifact-2" {
		t.Fatalf("expected final transcode output, got %q", data)
	}
	if len(runner.calls) != 3 {
		t.Fatalf("expected 3 tool invocations, got %d", len(runner.calls))
	}

	stage := runner.calls[0]
	if stage[0] != "ffmpeg" {
		t.Fatalf("stage tool = %q", stage[0])
	}
	staged := stage[len(stage)-1]

	overlay := runner.calls[1]
	if overlay[0] != "python3" {
		t.Fatalf("overlay tool = %q", overlay[0])
	}
	wantOverlay := []string{"python3", "overlay_processor.py", staged, "/masks/cat.png"}
	for i, arg := range wantOverlay {
		if overlay[i] != arg {
			t.Fatalf("overlay arg %d = %q, want %q", i, overlay[i], arg)
		}
	}
	overlaid := overlay[len(overlay)-1]

	finalize := runner.calls[2]
	foundFPS := false
	for i, arg := range finalize {
		if arg == "-vf" && i+1 < len(finalize) && finalize[i+1] == "fps=30" {
			foundFPS = true
		}
	}
	if !foundFPS {
		t.Fatalf("finalize args missing fps filter: %v", finalize)
	}

	mustNotExist(t, input)
	mustNotExist(t, staged)
	mustNotExist(t, overlaid)
	mustNotExist(t, finalize[len(finalize)-1])
}

func TestProcessInlineStageFailure(t *testing.T) {
	runner := &fakeRunner{
		fail: func(call int, name string, _ []string) error {
			if call == 0 {
				return &ToolError{Tool: name, Output: "bad input", Err: errors.New("exit status 1")}
			}
			return nil
		},
	}
	p := newTestPipeline(t, runner)
	input := writeTempInput(t)

	_, err := p.ProcessInline(context.Background(), input, "/masks/cat.png")
	var toolErr *ExternalToolError
	if !errors.As(err, &toolErr) {
		t.Fatalf("expected ExternalToolError, got %v", err)
	}
	if toolErr.Output != "bad input" {
		t.Fatalf("tool output = %q", toolErr.Output)
	}
	if len(runner.calls) != 1 {
		t.Fatalf("expected pipeline to stop after stage, got %d calls", len(runner.calls))
	}
	mustNotExist(t, input)
}

func TestProcessInlineOverlayFailure(t *testing.T) {
	runner := &fakeRunner{
		fail: func(call int, name string, _ []string) error {
			if call == 1 {
				return &ToolError{Tool: name, Output: "no faces detected", Err: errors.New("exit status 2")}
			}
			return nil
		},
	}
	p := newTestPipeline(t, runner)
	input := writeTempInput(t)

	_, err := p.ProcessInline(context.Background(), input, "/masks/cat.png")
	var procErr *ProcessingError
	if !errors.As(err, &procErr) {
		t.Fatalf("expected ProcessingError, got %v", err)
	}
	if procErr.Output != "no faces detected" {
		t.Fatalf("processor output = %q", procErr.Output)
	}
	mustNotExist(t, input)
	mustNotExist(t, runner.calls[0][len(runner.calls[0])-1])
}

func TestProcessInlineFinalizeFallsBackToOverlay(t *testing.T) {
	runner := &fakeRunner{
		fail: func(call int, name string, _ []string) error {
			if call == 2 {
				return &ToolError{Tool: name, Output: "encoder crashed", Err: errors.New("exit status 1")}
			}
			return nil
		},
	}
	p := newTestPipeline(t, runner)
	input := writeTempInput(t)

	data, err := p.ProcessInline(context.Background(), input, "/masks/cat.png")
	if err != nil {
		t.Fatalf("expected fallback to overlay output, got error %v", err)
	}
	if string(data) != "artifact-1" {
		t.Fatalf("expected overlay artifact, got %q", data)
	}
	mustNotExist(t, input)
}

func TestProcessUploadSkipsStagingAndKeepsInput(t *testing.T) {
	runner := &fakeRunner{}
	p := newTestPipeline(t, runner)
	input := writeTempInput(t)
	output := filepath.Join(t.TempDir(), "out.mp4")

	if err := p.ProcessUpload(context.Background(), input, "/masks/cat.png", output); err != nil {
		t.Fatalf("ProcessUpload: %v", err)
	}
	if len(runner.calls) != 1 {
		t.Fatalf("expected single overlay invocation, got %d", len(runner.calls))
	}
	if runner.calls[0][0] != "python3" {
		t.Fatalf("expected overlay processor, got %q", runner.calls[0][0])
	}
	if _, err := os.Stat(input); err != nil {
		t.Fatalf("upload input should be retained: %v", err)
	}
	if _, err := os.Stat(output); err != nil {
		t.Fatalf("processed output missing: %v", err)
	}
}

func TestProcessUploadRemovesPartialOutput(t *testing.T) {
	output := filepath.Join(t.TempDir(), "out.mp4")
	runner := &fakeRunner{
		fail: func(int, string, []string) error {
			// Simulate a processor that wrote garbage before dying.
			_ = os.WriteFile(output, []byte("partial"), 0o644)
			return &ToolError{Tool: "python3", Output: "crash", Err: errors.New("exit status 1")}
		},
	}
	p := newTestPipeline(t, runner)
	input := writeTempInput(t)

	err := p.ProcessUpload(context.Background(), input, "/masks/cat.png", output)
	var procErr *ProcessingError
	if !errors.As(err, &procErr) {
		t.Fatalf("expected ProcessingError, got %v", err)
	}
	mustNotExist(t, output)
}
