// Package storage records the processing jobs this service has handled. The
// history is bookkeeping around the pipeline: a failed write is logged by the
// caller and never fails the request that produced it.
package storage

import (
	"context"
	"time"
)

// Job statuses recorded in the history.
const (
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

// Routes that produce history entries.
const (
	RouteUpload = "upload"
	RouteInline = "inline"
)

// Job is one processed (or failed) request.
type Job struct {
	ID          string    `json:"id"`
	Route       string    `json:"route"`
	Mask        string    `json:"mask"`
	OutputName  string    `json:"outputName,omitempty"`
	SizeBytes   int64     `json:"sizeBytes"`
	Status      string    `json:"status"`
	Detail      string    `json:"detail,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
	CompletedAt time.Time `json:"completedAt"`
}

// Repository persists the job history. Implementations must be safe for
// concurrent use by request handlers.
type Repository interface {
	RecordJob(ctx context.Context, job Job) error
	ListJobs(ctx context.Context, limit int) ([]Job, error)
	Ping(ctx context.Context) error
	Close()
}

// DefaultListLimit bounds ListJobs when the caller passes no limit.
const DefaultListLimit = 50
