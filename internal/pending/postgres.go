package pending

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const schema = `
CREATE TABLE IF NOT EXISTS pending_jobs (
	job_id          TEXT PRIMARY KEY,
	conversation_id TEXT NOT NULL,
	intent          TEXT NOT NULL,
	source_event_id TEXT NOT NULL DEFAULT '',
	created_at      TIMESTAMPTZ NOT NULL,
	expires_at      TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS pending_jobs_expires_at_idx ON pending_jobs (expires_at);
`

// PostgresStore is the multi-process dispatch table. Atomicity of
// TakeAndDelete comes from DELETE .. RETURNING on the primary key.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a Postgres-backed dispatch table and ensures the
// schema exists.
func NewPostgresStore(ctx context.Context, pool *pgxpool.Pool) (*PostgresStore, error) {
	if pool == nil {
		return nil, fmt.Errorf("pgx pool is required")
	}
	if _, err := pool.Exec(ctx, schema); err != nil {
		return nil, fmt.Errorf("ensure pending_jobs schema: %w", err)
	}
	return &PostgresStore{pool: pool}, nil
}

// Put records a pending job. A second Put for the same job id fails.
func (s *PostgresStore) Put(ctx context.Context, job Job) error {
	tag, err := s.pool.Exec(ctx,
		`INSERT INTO pending_jobs (job_id, conversation_id, intent, source_event_id, created_at, expires_at)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 ON CONFLICT (job_id) DO NOTHING`,
		job.JobID, job.ConversationID, string(job.Intent), job.SourceEventID, job.CreatedAt, job.ExpiresAt)
	if err != nil {
		return fmt.Errorf("insert pending job: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s", ErrDuplicateJob, job.JobID)
	}
	return nil
}

// TakeAndDelete removes and returns the job for jobID in one statement.
func (s *PostgresStore) TakeAndDelete(ctx context.Context, jobID string) (Job, error) {
	row := s.pool.QueryRow(ctx,
		`DELETE FROM pending_jobs WHERE job_id = $1
		 RETURNING job_id, conversation_id, intent, source_event_id, created_at, expires_at`,
		jobID)
	job, err := scanJob(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Job{}, ErrNotFound
		}
		return Job{}, fmt.Errorf("take pending job: %w", err)
	}
	return job, nil
}

// ExpireBefore removes and returns all jobs expiring at or before cutoff.
func (s *PostgresStore) ExpireBefore(ctx context.Context, cutoff time.Time) ([]Job, error) {
	rows, err := s.pool.Query(ctx,
		`DELETE FROM pending_jobs WHERE expires_at <= $1
		 RETURNING job_id, conversation_id, intent, source_event_id, created_at, expires_at`,
		cutoff)
	if err != nil {
		return nil, fmt.Errorf("expire pending jobs: %w", err)
	}
	defer rows.Close()

	var expired []Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("scan expired job: %w", err)
		}
		expired = append(expired, job)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate expired jobs: %w", err)
	}
	return expired, nil
}

func scanJob(row pgx.Row) (Job, error) {
	var job Job
	var intent string
	if err := row.Scan(&job.JobID, &job.ConversationID, &intent, &job.SourceEventID, &job.CreatedAt, &job.ExpiresAt); err != nil {
		return Job{}, err
	}
	job.Intent = Intent(intent)
	return job, nil
}
