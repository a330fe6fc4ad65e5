package api

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"facefilter/internal/masks"
	"facefilter/internal/storage"
)

// maxFieldBytes bounds the non-file form fields; the video part itself is
// unbounded.
const maxFieldBytes = 4 << 10

type uploadedMedia struct {
	tempPath string
	size     int64
}

// Upload accepts a multipart video, runs the overlay processor against the
// persisted file, and responds with the URL of the processed result. The
// uploaded input stays in the upload directory; only the processed output is
// served back.
func (h *Handler) Upload(w http.ResponseWriter, r *http.Request) {
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
	inputPath := filepath.Join(h.UploadDir, id+".webm")
	if err := os.Rename(media.tempPath, inputPath); err != nil {
		_ = os.Remove(media.tempPath)
		writeErrorMessage(w, http.StatusInternalServerError, "store upload failed", err.Error())
		return
	}

	outputName := id + "_mask.mp4"
	outputPath := filepath.Join(h.ProcessedDir, outputName)

	started := time.Now()
	// The chain keeps running if the client goes away; a disconnect must not
	// leave a half-written output behind the processed URL.
	ctx := context.WithoutCancel(r.Context())
	if err := h.Pipeline.ProcessUpload(ctx, inputPath, maskPath, outputPath); err != nil {
		h.requestLogger(r).Error("upload processing failed", "job_id", id, "error", err)
		h.recordJob(r, storage.Job{
			ID:          id,
			Route:       storage.RouteUpload,
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
		Route:       storage.RouteUpload,
		Mask:        resolvedMaskName(maskName),
		OutputName:  outputName,
		SizeBytes:   media.size,
		Status:      storage.StatusCompleted,
		CreatedAt:   started,
		CompletedAt: time.Now(),
	})
	h.requestLogger(r).Info("upload processed", "job_id", id, "output", outputName, "size_bytes", media.size)
	writeJSON(w, http.StatusOK, map[string]string{
		"processed_url": "/processed/" + outputName,
	})
}

// readVideoForm streams the multipart body, spilling the video part to a temp
// file in the upload directory and collecting the small text fields. The
// caller owns the temp file.
func (h *Handler) readVideoForm(r *http.Request) (*uploadedMedia, map[string]string, error) {
	reader, err := r.MultipartReader()
	if err != nil {
		return nil, nil, fmt.Errorf("invalid multipart payload")
	}
	fields := make(map[string]string)
	var media *uploadedMedia
	for {
		part, err := reader.NextPart()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			if media != nil {
				_ = os.Remove(media.tempPath)
			}
			return nil, nil, fmt.Errorf("read multipart data: %v", err)
		}
		name := part.FormName()
		if name == "" {
			_ = part.Close()
			continue
		}
		if name == "video" {
			if media != nil {
				_ = part.Close()
				continue
			}
			saved, saveErr := h.saveVideoPart(part)
			if saveErr != nil {
				return nil, nil, saveErr
			}
			media = saved
			continue
		}
		payload, readErr := io.ReadAll(io.LimitReader(part, maxFieldBytes))
		_ = part.Close()
		if readErr != nil {
			if media != nil {
				_ = os.Remove(media.tempPath)
			}
			return nil, nil, fmt.Errorf("read form field: %v", readErr)
		}
		fields[name] = strings.TrimSpace(string(payload))
	}
	return media, fields, nil
}

func (h *Handler) saveVideoPart(part *multipart.Part) (*uploadedMedia, error) {
	defer part.Close()
	tmp, err := os.CreateTemp(h.UploadDir, "pending-video-*")
	if err != nil {
		return nil, fmt.Errorf("create temp file: %v", err)
	}
	defer tmp.Close()
	written, err := io.Copy(tmp, part)
	if err != nil {
		_ = os.Remove(tmp.Name())
		return nil, fmt.Errorf("save upload: %v", err)
	}
	return &uploadedMedia{tempPath: tmp.Name(), size: written}, nil
}

func resolvedMaskName(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return masks.DefaultMask
	}
	return name
}
