package server

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"facefilter/internal/observability/logging"
)

func TestRequestIDMiddlewareGeneratesID(t *testing.T) {
	var seen string
	handler := requestIDMiddlewareWithGenerator(nil, func() string { return "generated-id" },
		http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
			seen, _ = logging.RequestIDFromContext(r.Context())
		}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	if seen != "generated-id" {
		t.Fatalf("context request id = %q", seen)
	}
	if got := rec.Header().Get("X-Request-Id"); got != "generated-id" {
		t.Fatalf("X-Request-Id = %q", got)
	}
}

func TestRequestIDMiddlewarePreservesIncomingID(t *testing.T) {
	handler := requestIDMiddlewareWithGenerator(nil, func() string { return "should-not-be-used" },
		http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Request-Id", "client-id")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if got := rec.Header().Get("X-Request-Id"); got != "client-id" {
		t.Fatalf("X-Request-Id = %q", got)
	}
}

func TestNewRequestIDIsUnique(t *testing.T) {
	if newRequestID() == newRequestID() {
		t.Fatal("consecutive request IDs should differ")
	}
}
