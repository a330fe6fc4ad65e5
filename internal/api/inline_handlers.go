package api

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/google/uuid"

	"facefilter/internal/storage"
)

// ProcessInline accepts a multipart video and streams the processed MP4 back
// in the response body. Nothing is persisted: the input, every intermediate
// artifact, and the final output are gone by the time the response is sent.
func (h *Handler) ProcessInline(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", "POST")
		writeErrorMessage(w, http.StatusMethodNotAllowed, fmt.Sprintf("method %s not allowed", r.Method), "")
		return
	}
	if !h.authorize(w, r) {
		return
	}

	media, fields, err := h.readVideoForm(r)
	if err != nil {
		writeErrorMessage(w, http.StatusBadRequest, err.Error(), "")
		return
	}
	if media == nil {
		writeErrorMessage(w, http.StatusBadRequest, "No video field in form", "")
		return
	}

	maskName := fields["mask"]
	maskPath, err := h.Catalog.Resolve(maskName)
	if err != nil {
		_ = os.Remove(media.tempPath)
		writePipelineError(w, err)
		return
	}

	id := uuid.NewString()
	started := time.Now()
	// Once processing starts it runs to completion even if the client
	// disconnects, so temp cleanup inside the pipeline always executes.
	ctx := context.WithoutCancel(r.Context())
	data, err := h.Pipeline.ProcessInline(ctx, media.tempPath, maskPath)
	if err != nil {
		h.requestLogger(r).Error("inline processing failed", "job_id", id, "error", err)
		h.recordJob(r, storage.Job{
			ID:          id,
			Route:       storage.RouteInline,
			Mask:        resolvedMaskName(maskName),
			SizeBytes:   media.size,
			Status:      storage.StatusFailed,
			Detail:      err.Error(),
			CreatedAt:   started,
			CompletedAt: time.Now(),
		})
		writePipelineError(w, err)
		return
	}

	h.recordJob(r, storage.Job{
		ID:          id,
		Route:       storage.RouteInline,
		Mask:        resolvedMaskName(maskName),
		SizeBytes:   media.size,
		Status:      storage.StatusCompleted,
		CreatedAt:   started,
		CompletedAt: time.Now(),
	})
	h.requestLogger(r).Info("inline video processed", "job_id", id, "size_bytes", media.size, "output_bytes", len(data))

	w.Header().Set("Content-Type", "video/mp4")
	w.Header().Set("Content-Disposition", `inline; filename=processed.mp4`)
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}
