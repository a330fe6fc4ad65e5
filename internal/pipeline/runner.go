package pipeline

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"

	"golang.org/x/sync/semaphore"
)

// Runner executes an external tool and blocks until it exits. Implementations
// must surface a non-zero exit (or a failure to start) as *ToolError so
// callers can forward the tool's diagnostics.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) error
}

// ToolError reports a failed external tool invocation. Output carries the
// tool's captured standard error verbatim.
type ToolError struct {
	Tool   string
	Output string
	Err    error
}

func (e *ToolError) Error() string {
	if e.Output != "" {
		return fmt.Sprintf("%s: %v: %s", e.Tool, e.Err, e.Output)
	}
	return fmt.Sprintf("%s: %v", e.Tool, e.Err)
}

func (e *ToolError) Unwrap() error { return e.Err }

type execRunner struct {
	procs *semaphore.Weighted
}

// NewRunner returns an exec-backed Runner. maxProcs bounds how many tool
// processes may run at once across all requests; zero or negative leaves the
// count unbounded.
func NewRunner(maxProcs int64) Runner {
	runner := &execRunner{}
	if maxProcs > 0 {
		runner.procs = semaphore.NewWeighted(maxProcs)
	}
	return runner
}

func (r *execRunner) Run(ctx context.Context, name string, args ...string) error {
	if r.procs != nil {
		if err := r.procs.Acquire(ctx, 1); err != nil {
			return &ToolError{Tool: name, Err: err}
		}
		defer r.procs.Release(1)
	}
	cmd := exec.CommandContext(ctx, name, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return &ToolError{Tool: name, Output: strings.TrimSpace(stderr.String()), Err: err}
	}
	return nil
}
