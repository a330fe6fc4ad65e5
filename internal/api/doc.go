// Package api implements the HTTP handlers for the face-filter service:
// video submission, processed-file retrieval, mask discovery, job history,
// and the status and health endpoints.
package api
