package server

import (
	"fmt"
	"net/http"
	"net/url"
	"strings"
)

// CORSConfig declares the single browser origin allowed to call the API
// across domains. The upload UI is served from a fixed static host, so the
// policy is one origin rather than a list.
type CORSConfig struct {
	AllowedOrigin string
}

type corsPolicy struct {
	origin string
}

func newCORSPolicy(cfg CORSConfig) (corsPolicy, error) {
	normalized, err := normalizeOrigin(cfg.AllowedOrigin)
	if err != nil {
		return corsPolicy{}, fmt.Errorf("parse origin %q: %w", cfg.AllowedOrigin, err)
	}
	if normalized == "" {
		return corsPolicy{}, fmt.Errorf("cors origin must not be empty")
	}
	return corsPolicy{origin: normalized}, nil
}

func normalizeOrigin(origin string) (string, error) {
	origin = strings.TrimSpace(origin)
	if origin == "" {
		return "", nil
	}
	parsed, err := url.Parse(origin)
	if err != nil {
		return "", err
	}
	if parsed.Scheme == "" || parsed.Host == "" {
		return "", fmt.Errorf("origin must include scheme and host")
	}
	return fmt.Sprintf("%s://%s", strings.ToLower(parsed.Scheme), strings.ToLower(parsed.Host)), nil
}

// corsMiddleware stamps the fixed cross-origin policy on every response,
// including error responses produced further down the chain. Header().Set
// keeps the headers single-valued no matter how often the chain touches them.
func corsMiddleware(policy corsPolicy, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		headers := w.Header()
		headers.Set("Access-Control-Allow-Origin", policy.origin)
		headers.Set("Access-Control-Allow-Methods", "POST, GET, OPTIONS")
		headers.Set("Access-Control-Allow-Headers", "Content-Type")
		headers.Set("Vary", "Origin")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}
