package queue

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"
)

const jobColumns = `
	job_id, event_type, payload, status, attempts, max_attempts,
	next_run_at, worker_id, last_heartbeat_at, error_message, created_at, updated_at
`

// Store handles all database operations on the jobs table. The queue owns
// the job lifecycle exclusively; no other component mutates job rows.
type Store struct {
	db     *sqlx.DB
	logger *slog.Logger
}

// NewStore creates a new Store instance
func NewStore(db *sqlx.DB, logger *slog.Logger) *Store {
	return &Store{db: db, logger: logger}
}

// InsertJob durably records a new job.
func (s *Store) InsertJob(ctx context.Context, job *Job) error {
	query := `
		INSERT INTO jobs (
			job_id, event_type, payload, status, attempts, max_attempts,
			next_run_at, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, NOW(), NOW())
	`

	_, err := s.db.ExecContext(ctx, query,
		job.JobID,
		job.EventType,
		job.Payload,
		job.Status,
		job.Attempts,
		job.MaxAttempts,
		job.NextRunAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert job: %w", err)
	}

	return nil
}

// GetJob retrieves a job by its ID.
func (s *Store) GetJob(ctx context.Context, jobID string) (*Job, error) {
	var job Job
	query := `SELECT ` + jobColumns + ` FROM jobs WHERE job_id = $1`

	err := s.db.GetContext(ctx, &job, query, jobID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrJobNotFound
		}
		return nil, fmt.Errorf("failed to get job: %w", err)
	}

	return &job, nil
}

// ClaimJob atomically moves a PENDING job to RUNNING for the given worker
// and counts the attempt. The conditional update guarantees a job is handed
// to at most one active consumer.
func (s *Store) ClaimJob(ctx context.Context, jobID, workerID string) (*Job, error) {
	query := `
		UPDATE jobs
		SET status = $1,
		    worker_id = $2,
		    attempts = attempts + 1,
		    last_heartbeat_at = NOW(),
		    updated_at = NOW()
		WHERE job_id = $3
		  AND status = $4
		RETURNING job_id, event_type, payload, attempts, max_attempts, next_run_at
	`

	var job Job
	err := s.db.QueryRowContext(ctx, query, JobStatusRunning, workerID, jobID, JobStatusPending).Scan(
		&job.JobID,
		&job.EventType,
		&job.Payload,
		&job.Attempts,
		&job.MaxAttempts,
		&job.NextRunAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			s.logger.Warn("Failed to claim job - already claimed or not found",
				slog.String("job_id", jobID),
				slog.String("worker_id", workerID),
			)
			return nil, ErrJobAlreadyClaimed
		}
		return nil, fmt.Errorf("failed to claim job: %w", err)
	}

	job.Status = JobStatusRunning
	job.WorkerID = sql.NullString{String: workerID, Valid: true}

	return &job, nil
}

// CompleteJob marks a job COMPLETED.
func (s *Store) CompleteJob(ctx context.Context, jobID string) error {
	query := `
		UPDATE jobs
		SET status = $1, error_message = NULL, updated_at = NOW()
		WHERE job_id = $2
	`

	if _, err := s.db.ExecContext(ctx, query, JobStatusCompleted, jobID); err != nil {
		return fmt.Errorf("failed to complete job: %w", err)
	}

	return nil
}

// RescheduleJob puts a failed job back on the schedule for a later retry.
func (s *Store) RescheduleJob(ctx context.Context, jobID string, nextRunAt time.Time, errMsg string) error {
	query := `
		UPDATE jobs
		SET status = $1, next_run_at = $2, error_message = $3, worker_id = NULL, updated_at = NOW()
		WHERE job_id = $4
	`

	if _, err := s.db.ExecContext(ctx, query, JobStatusScheduled, nextRunAt, errMsg, jobID); err != nil {
		return fmt.Errorf("failed to reschedule job: %w", err)
	}

	return nil
}

// DeadLetterJob marks a job terminally FAILED. Dead-lettered jobs stay in
// the table for inspection and manual replay.
func (s *Store) DeadLetterJob(ctx context.Context, jobID, errMsg string) error {
	query := `
		UPDATE jobs
		SET status = $1, error_message = $2, worker_id = NULL, updated_at = NOW()
		WHERE job_id = $3
	`

	if _, err := s.db.ExecContext(ctx, query, JobStatusFailed, errMsg, jobID); err != nil {
		return fmt.Errorf("failed to dead-letter job: %w", err)
	}

	return nil
}

// DeferJob moves a PENDING job back to SCHEDULED due now. Used when a
// broker publish fails after the row was recorded; the scheduler will
// publish it on the next sweep.
func (s *Store) DeferJob(ctx context.Context, jobID string) error {
	query := `
		UPDATE jobs
		SET status = $1, next_run_at = NOW(), updated_at = NOW()
		WHERE job_id = $2 AND status = $3
	`

	if _, err := s.db.ExecContext(ctx, query, JobStatusScheduled, jobID, JobStatusPending); err != nil {
		return fmt.Errorf("failed to defer job: %w", err)
	}

	return nil
}

// ClaimDueJobs flips due SCHEDULED jobs to PENDING and returns their ids
// for publishing. SKIP LOCKED keeps concurrent scheduler instances from
// double-publishing the same job.
func (s *Store) ClaimDueJobs(ctx context.Context, limit int) ([]string, error) {
	query := `
		UPDATE jobs
		SET status = $1, updated_at = NOW()
		WHERE job_id IN (
			SELECT job_id FROM jobs
			WHERE status = $2 AND next_run_at <= NOW()
			ORDER BY next_run_at
			LIMIT $3
			FOR UPDATE SKIP LOCKED
		)
		RETURNING job_id
	`

	var ids []string
	err := s.db.SelectContext(ctx, &ids, query, JobStatusPending, JobStatusScheduled, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to claim due jobs: %w", err)
	}

	return ids, nil
}

// ReapStaleLeases reschedules RUNNING jobs whose heartbeat went stale, so a
// crashed or stalled worker's jobs become eligible for redelivery.
func (s *Store) ReapStaleLeases(ctx context.Context, leaseTimeout time.Duration) (int64, error) {
	query := `
		UPDATE jobs
		SET status = $1, next_run_at = NOW(), worker_id = NULL, updated_at = NOW()
		WHERE status = $2
		  AND last_heartbeat_at < NOW() - make_interval(secs => $3)
	`

	result, err := s.db.ExecContext(ctx, query, JobStatusScheduled, JobStatusRunning, leaseTimeout.Seconds())
	if err != nil {
		return 0, fmt.Errorf("failed to reap stale leases: %w", err)
	}

	reaped, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return reaped, nil
}

// ReapStuckPending reschedules PENDING jobs whose row has not moved for
// longer than the staleness window. PENDING means a broker message should
// be in flight, but a crash between recording the row and publishing it
// leaves no message at all; flipping the row back to SCHEDULED lets the
// next sweep publish it again.
func (s *Store) ReapStuckPending(ctx context.Context, staleness time.Duration) (int64, error) {
	query := `
		UPDATE jobs
		SET status = $1, next_run_at = NOW(), updated_at = NOW()
		WHERE status = $2
		  AND updated_at < NOW() - make_interval(secs => $3)
	`

	result, err := s.db.ExecContext(ctx, query, JobStatusScheduled, JobStatusPending, staleness.Seconds())
	if err != nil {
		return 0, fmt.Errorf("failed to reap stuck pending jobs: %w", err)
	}

	reaped, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return reaped, nil
}

// Heartbeat refreshes the lease on a running job.
func (s *Store) Heartbeat(ctx context.Context, jobID string) error {
	query := `
		UPDATE jobs
		SET last_heartbeat_at = NOW(), updated_at = NOW()
		WHERE job_id = $1 AND status = $2
	`

	result, err := s.db.ExecContext(ctx, query, jobID, JobStatusRunning)
	if err != nil {
		return fmt.Errorf("failed to update job heartbeat: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		s.logger.Warn("Job heartbeat update - no rows affected (job may not be running)",
			slog.String("job_id", jobID),
		)
	}

	return nil
}

// ReplayJob resets a dead-lettered job for another round of delivery.
func (s *Store) ReplayJob(ctx context.Context, jobID string) error {
	query := `
		UPDATE jobs
		SET status = $1, attempts = 0, next_run_at = NOW(), error_message = NULL, updated_at = NOW()
		WHERE job_id = $2 AND status = $3
	`

	result, err := s.db.ExecContext(ctx, query, JobStatusScheduled, jobID, JobStatusFailed)
	if err != nil {
		return fmt.Errorf("failed to replay job: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		if _, getErr := s.GetJob(ctx, jobID); getErr != nil {
			return getErr
		}
		return ErrJobNotReplayable
	}

	return nil
}

// JobFilter narrows ListJobs results.
type JobFilter struct {
	EventType string
	Status    string
	PageSize  int
	Cursor    *JobCursor
}

// JobCursor is a keyset pagination cursor over (created_at, job_id).
type JobCursor struct {
	CreatedAt time.Time
	JobID     string
}

// ListJobs returns up to PageSize+1 jobs matching the filter, newest first.
// The extra row lets callers detect whether more results exist.
func (s *Store) ListJobs(ctx context.Context, filter JobFilter) ([]Job, error) {
	query := `SELECT ` + jobColumns + ` FROM jobs WHERE 1=1`
	args := []interface{}{}
	argIdx := 1

	if filter.EventType != "" {
		query += fmt.Sprintf(" AND event_type = $%d", argIdx)
		args = append(args, filter.EventType)
		argIdx++
	}

	if filter.Status != "" {
		query += fmt.Sprintf(" AND status = $%d", argIdx)
		args = append(args, filter.Status)
		argIdx++
	}

	if filter.Cursor != nil {
		query += fmt.Sprintf(" AND (created_at, job_id) < ($%d, $%d)", argIdx, argIdx+1)
		args = append(args, filter.Cursor.CreatedAt, filter.Cursor.JobID)
		argIdx += 2
	}

	query += " ORDER BY created_at DESC, job_id DESC"
	query += fmt.Sprintf(" LIMIT $%d", argIdx)
	args = append(args, filter.PageSize+1)

	var jobs []Job
	if err := s.db.SelectContext(ctx, &jobs, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list jobs: %w", err)
	}

	return jobs, nil
}
