package api

import (
	"fmt"
	"net/http"
)

// Masks lists the overlay masks available to submitters.
func (h *Handler) Masks(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", "GET")
		writeErrorMessage(w, http.StatusMethodNotAllowed, fmt.Sprintf("method %s not allowed", r.Method), "")
		return
	}
	names, err := h.Catalog.List()
	if err != nil {
		h.requestLogger(r).Error("list masks failed", "error", err)
		writeErrorMessage(w, http.StatusInternalServerError, "list masks failed", "")
		return
	}
	writeJSON(w, http.StatusOK, map[string][]string{"masks": names})
}
