package server

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestNewCORSPolicyNormalizesOrigin(t *testing.T) {
	policy, err := newCORSPolicy(CORSConfig{AllowedOrigin: " HTTPS://Example.GitHub.IO "})
	if err != nil {
		t.Fatalf("newCORSPolicy: %v", err)
	}
	if policy.origin != "https://example.github.io" {
		t.Fatalf("origin = %q", policy.origin)
	}
}

func TestNewCORSPolicyRejectsBareHost(t *testing.T) {
	if _, err := newCORSPolicy(CORSConfig{AllowedOrigin: "example.github.io"}); err == nil {
		t.Fatal("expected error for origin without scheme")
	}
	if _, err := newCORSPolicy(CORSConfig{AllowedOrigin: ""}); err == nil {
		t.Fatal("expected error for empty origin")
	}
}

func TestCORSMiddlewareSetsSingleOriginHeader(t *testing.T) {
	policy, err := newCORSPolicy(CORSConfig{AllowedOrigin: "https://example.github.io"})
	if err != nil {
		t.Fatalf("newCORSPolicy: %v", err)
	}
	inner := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		// A handler that also touches the header must not create duplicates.
		w.Header().Set("Access-Control-Allow-Origin", "https://example.github.io")
		w.WriteHeader(http.StatusOK)
	})
	handler := corsMiddleware(policy, inner)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Origin", "https://example.github.io")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	values := rec.Header().Values("Access-Control-Allow-Origin")
	if len(values) != 1 || values[0] != "https://example.github.io" {
		t.Fatalf("Access-Control-Allow-Origin = %v", values)
	}
	if got := rec.Header().Get("Access-Control-Allow-Methods"); got != "POST, GET, OPTIONS" {
		t.Fatalf("Access-Control-Allow-Methods = %q", got)
	}
	if got := rec.Header().Get("Access-Control-Allow-Headers"); got != "Content-Type" {
		t.Fatalf("Access-Control-Allow-Headers = %q", got)
	}
}

func TestCORSMiddlewarePreflight(t *testing.T) {
	policy, err := newCORSPolicy(CORSConfig{AllowedOrigin: "https://example.github.io"})
	if err != nil {
		t.Fatalf("newCORSPolicy: %v", err)
	}
	handler := corsMiddleware(policy, http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		t.Fatal("preflight must not reach the inner handler")
	}))

	req := httptest.NewRequest(http.MethodOptions, "/upload", nil)
	req.Header.Set("Origin", "https://example.github.io")
	req.Header.Set("Access-Control-Request-Method", "POST")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Fatalf("status = %d", rec.Code)
	}
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "https://example.github.io" {
		t.Fatalf("Access-Control-Allow-Origin = %q", got)
	}
}

func TestCORSMiddlewareHeadersOnErrorResponses(t *testing.T) {
	policy, err := newCORSPolicy(CORSConfig{AllowedOrigin: "https://example.github.io"})
	if err != nil {
		t.Fatalf("newCORSPolicy: %v", err)
	}
	handler := corsMiddleware(policy, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "nope", http.StatusBadRequest)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/upload", nil))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rec.Code)
	}
	values := rec.Header().Values("Access-Control-Allow-Origin")
	if len(values) != 1 || values[0] != "https://example.github.io" {
		t.Fatalf("Access-Control-Allow-Origin = %v", values)
	}
}
