package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"facefilter/internal/masks"
	"facefilter/internal/pipeline"
)

// errorBody is the wire shape of every JSON error this API returns. Details
// carries external tool output when a processing step fails.
type errorBody struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(payload)
}

func writeErrorMessage(w http.ResponseWriter, status int, message, details string) {
	writeJSON(w, status, errorBody{Error: message, Details: details})
}

// WriteErrorMessage is an exported helper so middleware outside this package
// can emit errors in the same JSON shape as the handlers.
func WriteErrorMessage(w http.ResponseWriter, status int, message, details string) {
	writeErrorMessage(w, status, message, details)
}

// writePipelineError maps processing failures onto the API error contract:
// transcode failures and overlay failures are distinct 500s carrying tool
// output, mask resolution failures are client errors.
func writePipelineError(w http.ResponseWriter, err error) {
	var toolErr *pipeline.ExternalToolError
	if errors.As(err, &toolErr) {
		writeErrorMessage(w, http.StatusInternalServerError, "Failed to convert WebM", toolErr.Output)
		return
	}
	var procErr *pipeline.ProcessingError
	if errors.As(err, &procErr) {
		writeErrorMessage(w, http.StatusInternalServerError, "Processing failed", procErr.Output)
		return
	}
	switch {
	case errors.Is(err, masks.ErrInvalidName):
		writeErrorMessage(w, http.StatusBadRequest, "Invalid mask name", "")
	case errors.Is(err, masks.ErrNotFound):
		writeErrorMessage(w, http.StatusBadRequest, "Mask not found", "")
	default:
		writeErrorMessage(w, http.StatusInternalServerError, "Processing failed", err.Error())
	}
}
