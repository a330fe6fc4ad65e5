package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
)

// maxStoredJobs caps the JSON history so the file cannot grow without bound.
const maxStoredJobs = 1000

// JSONRepository persists the job history to a single JSON file, suitable for
// single-node deployments. Writes go to a temp file in the same directory and
// are renamed into place so a crash never leaves a truncated history.
type JSONRepository struct {
	mu   sync.Mutex
	path string
	jobs []Job
}

func NewJSONRepository(path string) (*JSONRepository, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve history path: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
		return nil, fmt.Errorf("create history directory: %w", err)
	}
	repo := &JSONRepository{path: abs}
	if err := repo.load(); err != nil {
		return nil, err
	}
	return repo, nil
}

func (r *JSONRepository) load() error {
	data, err := os.ReadFile(r.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read history file: %w", err)
	}
	if len(data) == 0 {
		return nil
	}
	var jobs []Job
	if err := json.Unmarshal(data, &jobs); err != nil {
		return fmt.Errorf("parse history file %s: %w", r.path, err)
	}
	r.jobs = jobs
	return nil
}

// RecordJob appends a job and persists the history atomically. The newest
// entries win when the cap is exceeded.
func (r *JSONRepository) RecordJob(_ context.Context, job Job) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.jobs = append(r.jobs, job)
	if len(r.jobs) > maxStoredJobs {
		r.jobs = r.jobs[len(r.jobs)-maxStoredJobs:]
	}
	return r.persistLocked()
}

// ListJobs returns up to limit jobs, newest first.
func (r *JSONRepository) ListJobs(_ context.Context, limit int) ([]Job, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	count := len(r.jobs)
	if count > limit {
		count = limit
	}
	out := make([]Job, 0, count)
	for i := len(r.jobs) - 1; i >= 0 && len(out) < count; i-- {
		out = append(out, r.jobs[i])
	}
	return out, nil
}

func (r *JSONRepository) Ping(_ context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, err := os.Stat(filepath.Dir(r.path))
	if err != nil {
		return fmt.Errorf("history directory unavailable: %w", err)
	}
	return nil
}

func (r *JSONRepository) Close() {}

func (r *JSONRepository) persistLocked() error {
	data, err := json.MarshalIndent(r.jobs, "", "  ")
	if err != nil {
		return fmt.Errorf("encode history: %w", err)
	}
	dir := filepath.Dir(r.path)
	tmp, err := os.CreateTemp(dir, ".history-*.json")
	if err != nil {
		return fmt.Errorf("create history temp file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write history temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close history temp file: %w", err)
	}
	if err := os.Rename(tmpName, r.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replace history file: %w", err)
	}
	return nil
}
