package pipeline

import (
	"context"
	"errors"
	"strings"
	"testing"
)

func TestExecRunnerCapturesStderr(t *testing.T) {
	runner := NewRunner(1)
	err := runner.Run(context.Background(), "sh", "-c", "echo boom >&2; exit 3")
	if err == nil {
		t.Fatal("expected error from failing command")
	}
	var toolErr *ToolError
	if !errors.As(err, &toolErr) {
		t.Fatalf("expected ToolError, got %T", err)
	}
	if toolErr.Tool != "sh" {
		t.Fatalf("tool = %q", toolErr.Tool)
	}
	if toolErr.Output != "boom" {
		t.Fatalf("captured output = %q", toolErr.Output)
	}
	if !strings.Contains(toolErr.Error(), "boom") {
		t.Fatalf("error string should include tool output: %s", toolErr.Error())
	}
}

func TestExecRunnerSuccess(t *testing.T) {
	runner := NewRunner(0)
	if err := runner.Run(context.Background(), "sh", "-c", "true"); err != nil {
		t.Fatalf("expected success, got %v", err)
	}
}

func TestExecRunnerCancelledContext(t *testing.T) {
	runner := NewRunner(1)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := runner.Run(ctx, "sh", "-c", "sleep 5")
	if err == nil {
		t.Fatal("expected error for cancelled context")
	}
}
