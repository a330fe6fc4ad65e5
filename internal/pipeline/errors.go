package pipeline

import (
	"errors"
	"fmt"
)

// ExternalToolError reports a failed staging or finalisation transcode. The
// finalisation variant never reaches clients; callers absorb it and fall back
// to the overlay output.
type ExternalToolError struct {
	Tool   string
	Output string
	Err    error
}

func (e *ExternalToolError) Error() string {
	return fmt.Sprintf("transcode failed: %v", e.Err)
}

func (e *ExternalToolError) Unwrap() error { return e.Err }

// ProcessingError reports a failed overlay-processor invocation, or a failure
// to produce readable output from an otherwise successful run.
type ProcessingError struct {
	Output string
	Err    error
}

func (e *ProcessingError) Error() string {
	return fmt.Sprintf("overlay processing failed: %v", e.Err)
}

func (e *ProcessingError) Unwrap() error { return e.Err }

// toolOutput extracts the captured stderr from a Runner failure so the error
// types above can forward it without callers re-unwrapping.
func toolOutput(err error) string {
	var toolErr *ToolError
	if errors.As(err, &toolErr) {
		return toolErr.Output
	}
	return ""
}
