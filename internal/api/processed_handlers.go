package api

import (
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
)

// Processed serves a file from the processed directory by name. The name must
// be a plain base name; anything that resolves elsewhere is treated as absent.
func (h *Handler) Processed(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		w.Header().Set("Allow", "GET")
		writeErrorMessage(w, http.StatusMethodNotAllowed, fmt.Sprintf("method %s not allowed", r.Method), "")
		return
	}

	name := strings.TrimPrefix(r.URL.Path, "/processed/")
	if name == "" || name != filepath.Base(name) || strings.HasPrefix(name, ".") {
		writeErrorMessage(w, http.StatusNotFound, "File not found", "")
		return
	}

	path := filepath.Join(h.ProcessedDir, name)
	file, err := os.Open(path)
	if err != nil {
		writeErrorMessage(w, http.StatusNotFound, "File not found", "")
		return
	}
	defer file.Close()

	stat, err := file.Stat()
	if err != nil || stat.IsDir() {
		writeErrorMessage(w, http.StatusNotFound, "File not found", "")
		return
	}

	w.Header().Set("Content-Type", "video/mp4")
	http.ServeContent(w, r, name, stat.ModTime(), file)
}
