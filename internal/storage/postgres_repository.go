package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

const createJobsTable = `
CREATE TABLE IF NOT EXISTS processing_jobs (
    id TEXT PRIMARY KEY,
    route TEXT NOT NULL,
    mask TEXT NOT NULL,
    output_name TEXT NOT NULL DEFAULT '',
    size_bytes BIGINT NOT NULL DEFAULT 0,
    status TEXT NOT NULL,
    detail TEXT NOT NULL DEFAULT '',
    created_at TIMESTAMPTZ NOT NULL,
    completed_at TIMESTAMPTZ NOT NULL
)`

// PostgresConfig carries the connection settings for the shared job history.
type PostgresConfig struct {
	DSN            string
	MaxConns       int32
	AcquireTimeout time.Duration
}

// PostgresRepository stores the job history in Postgres so multiple service
// instances can share one history.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

func NewPostgresRepository(ctx context.Context, cfg PostgresConfig) (*PostgresRepository, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("postgres history requires a DSN")
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres DSN: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.AcquireTimeout > 0 {
		poolCfg.ConnConfig.ConnectTimeout = cfg.AcquireTimeout
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}
	repo := &PostgresRepository{pool: pool}
	if err := repo.migrate(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return repo, nil
}

func (r *PostgresRepository) migrate(ctx context.Context) error {
	if _, err := r.pool.Exec(ctx, createJobsTable); err != nil {
		return fmt.Errorf("create processing_jobs table: %w", err)
	}
	return nil
}

func (r *PostgresRepository) RecordJob(ctx context.Context, job Job) error {
	const query = `
INSERT INTO processing_jobs (id, route, mask, output_name, size_bytes, status, detail, created_at, completed_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
ON CONFLICT (id) DO UPDATE SET
    status = EXCLUDED.status,
    detail = EXCLUDED.detail,
    size_bytes = EXCLUDED.size_bytes,
    completed_at = EXCLUDED.completed_at`
	_, err := r.pool.Exec(ctx, query,
		job.ID, job.Route, job.Mask, job.OutputName, job.SizeBytes,
		job.Status, job.Detail, job.CreatedAt, job.CompletedAt)
	if err != nil {
		return fmt.Errorf("record job %s: %w", job.ID, err)
	}
	return nil
}

func (r *PostgresRepository) ListJobs(ctx context.Context, limit int) ([]Job, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	const query = `
SELECT id, route, mask, output_name, size_bytes, status, detail, created_at, completed_at
FROM processing_jobs
ORDER BY created_at DESC
LIMIT $1`
	rows, err := r.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	defer rows.Close()

	jobs := make([]Job, 0, limit)
	for rows.Next() {
		var job Job
		if err := rows.Scan(&job.ID, &job.Route, &job.Mask, &job.OutputName,
			&job.SizeBytes, &job.Status, &job.Detail, &job.CreatedAt, &job.CompletedAt); err != nil {
			return nil, fmt.Errorf("scan job row: %w", err)
		}
		jobs = append(jobs, job)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate job rows: %w", err)
	}
	return jobs, nil
}

func (r *PostgresRepository) Ping(ctx context.Context) error {
	if err := r.pool.Ping(ctx); err != nil {
		return fmt.Errorf("ping postgres: %w", err)
	}
	return nil
}

func (r *PostgresRepository) Close() {
	r.pool.Close()
}
