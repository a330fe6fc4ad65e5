package api

import (
	"fmt"
	"net/http"
	"strconv"

	"facefilter/internal/storage"
)

// Jobs returns the recent processing history, newest first. The endpoint sits
// behind the optional token guard since history entries expose client
// activity.
func (h *Handler) Jobs(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", "GET")
		writeErrorMessage(w, http.StatusMethodNotAllowed, fmt.Sprintf("method %s not allowed", r.Method), "")
		return
	}
	if !h.authorize(w, r) {
		return
	}
	if h.History == nil {
		writeJSON(w, http.StatusOK, map[string][]storage.Job{"jobs": {}})
		return
	}

	limit := storage.DefaultListLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			writeErrorMessage(w, http.StatusBadRequest, "limit must be a positive integer", "")
			return
		}
		limit = parsed
	}

	jobs, err := h.History.ListJobs(r.Context(), limit)
	if err != nil {
		h.requestLogger(r).Error("list jobs failed", "error", err)
		writeErrorMessage(w, http.StatusInternalServerError, "list jobs failed", "")
		return
	}
	if jobs == nil {
		jobs = []storage.Job{}
	}
	writeJSON(w, http.StatusOK, map[string][]storage.Job{"jobs": jobs})
}
