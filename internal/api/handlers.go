package api

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"facefilter/internal/auth"
	"facefilter/internal/masks"
	"facefilter/internal/observability/logging"
	"facefilter/internal/pipeline"
	"facefilter/internal/storage"
)

// Handler carries the dependencies shared by every endpoint.
type Handler struct {
	Pipeline     *pipeline.Pipeline
	Catalog      *masks.Catalog
	History      storage.Repository
	Guard        *auth.TokenGuard
	UploadDir    string
	ProcessedDir string
	Logger       *slog.Logger
}

type HandlerConfig struct {
	Pipeline     *pipeline.Pipeline
	Masks        *masks.Catalog
	History      storage.Repository
	Guard        *auth.TokenGuard
	UploadDir    string
	ProcessedDir string
	Logger       *slog.Logger
}

func NewHandler(cfg HandlerConfig) (*Handler, error) {
	if cfg.Pipeline == nil {
		return nil, fmt.Errorf("pipeline is required")
	}
	if cfg.Masks == nil {
		return nil, fmt.Errorf("mask catalog is required")
	}
	if cfg.UploadDir == "" || cfg.ProcessedDir == "" {
		return nil, fmt.Errorf("upload and processed directories are required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		Pipeline:     cfg.Pipeline,
		Catalog:      cfg.Masks,
		History:      cfg.History,
		Guard:        cfg.Guard,
		UploadDir:    cfg.UploadDir,
		ProcessedDir: cfg.ProcessedDir,
		Logger:       logger,
	}, nil
}

// Status answers the root path. Any other path falling through the mux is a
// 404 in the API's error shape.
func (h *Handler) Status(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		writeErrorMessage(w, http.StatusNotFound, "not found", "")
		return
	}
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		w.Header().Set("Allow", "GET")
		writeErrorMessage(w, http.StatusMethodNotAllowed, fmt.Sprintf("method %s not allowed", r.Method), "")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "online",
		"message": "Face Filter API is running",
	})
}

// Health reports liveness plus history-store reachability.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		w.Header().Set("Allow", "GET")
		writeErrorMessage(w, http.StatusMethodNotAllowed, fmt.Sprintf("method %s not allowed", r.Method), "")
		return
	}
	body := map[string]string{"status": "ok"}
	if h.History != nil {
		if err := h.History.Ping(r.Context()); err != nil {
			h.requestLogger(r).Warn("history store unreachable", "error", err)
			body["history"] = "unavailable"
		} else {
			body["history"] = "ok"
		}
	}
	writeJSON(w, http.StatusOK, body)
}

// authorize enforces the optional bearer token. It reports false after
// writing the error response.
func (h *Handler) authorize(w http.ResponseWriter, r *http.Request) bool {
	if h.Guard.Authorize(r) {
		return true
	}
	writeErrorMessage(w, http.StatusUnauthorized, "invalid or missing token", "")
	return false
}

func (h *Handler) requestLogger(r *http.Request) *slog.Logger {
	if ctxLogger := logging.LoggerFromContext(r.Context()); ctxLogger != nil {
		return ctxLogger
	}
	return h.Logger
}

// recordJob persists a history entry without ever failing the request. The
// write is detached from request cancellation so a client disconnect cannot
// lose the record.
func (h *Handler) recordJob(r *http.Request, job storage.Job) {
	if h.History == nil {
		return
	}
	ctx := context.WithoutCancel(r.Context())
	if err := h.History.RecordJob(ctx, job); err != nil {
		h.requestLogger(r).Warn("record job failed", "job_id", job.ID, "error", err)
	}
}
