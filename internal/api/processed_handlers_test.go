package api

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
)

func TestProcessedServesFile(t *testing.T) {
	env := newTestEnv(t)
	name := "abc123_mask.mp4"
	if err := os.WriteFile(filepath.Join(env.processedDir, name), []byte("mp4-bytes"), 0o644); err != nil {
		t.Fatalf("write processed file: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/processed/"+name, nil)
	rec := httptest.NewRecorder()
	env.handler.Processed(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if rec.Body.String() != "mp4-bytes" {
		t.Fatalf("body = %q", rec.Body.String())
	}
	if got := rec.Header().Get("Content-Type"); got != "video/mp4" {
		t.Fatalf("Content-Type = %q", got)
	}
}

func TestProcessedUnknownFile(t *testing.T) {
	env := newTestEnv(t)
	req := httptest.NewRequest(http.MethodGet, "/processed/missing.mp4", nil)
	rec := httptest.NewRecorder()
	env.handler.Processed(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d", rec.Code)
	}
	if payload := decodeBody(t, rec); payload["error"] != "File not found" {
		t.Fatalf("payload = %v", payload)
	}
}

func TestProcessedRejectsTraversal(t *testing.T) {
	env := newTestEnv(t)
	secret := filepath.Join(filepath.Dir(env.processedDir), "secret.txt")
	if err := os.WriteFile(secret, []byte("secret"), 0o644); err != nil {
		t.Fatalf("write secret: %v", err)
	}

	for _, path := range []string{
		"/processed/../secret.txt",
		"/processed/..%2Fsecret.txt",
		"/processed/.hidden",
		"/processed/",
	} {
		req := httptest.NewRequest(http.MethodGet, "/processed/placeholder", nil)
		req.URL.Path = path
		rec := httptest.NewRecorder()
		env.handler.Processed(rec, req)
		if rec.Code != http.StatusNotFound {
			t.Fatalf("path %q: status = %d", path, rec.Code)
		}
	}
}

func TestProcessedRejectsNonGet(t *testing.T) {
	env := newTestEnv(t)
	req := httptest.NewRequest(http.MethodPost, "/processed/abc.mp4", nil)
	rec := httptest.NewRecorder()
	env.handler.Processed(rec, req)
	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("status = %d", rec.Code)
	}
}
