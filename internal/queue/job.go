package queue

import (
	"database/sql"
	"errors"
	"time"
)

// EventType identifies the kind of work a job carries. The set is closed:
// the worker dispatches on these constants and anything else takes the
// deliberate unknown-type path.
type EventType string

const (
	EventDealWon             EventType = "deal_won"
	EventTaskAssigned        EventType = "task_assigned"
	EventLeadConverted       EventType = "lead_converted"
	EventCheckTaskEscalation EventType = "check_task_escalation"
)

// Job status constants
const (
	JobStatusScheduled = "SCHEDULED" // waiting for next_run_at (delayed enqueue or retry backoff)
	JobStatusPending   = "PENDING"   // published to the broker, awaiting a claim
	JobStatusRunning   = "RUNNING"   // claimed by a worker, lease tracked via heartbeat
	JobStatusCompleted = "COMPLETED"
	JobStatusFailed    = "FAILED" // terminal, retry budget exhausted (dead letter)
)

var (
	// ErrQueueUnavailable is returned when a job cannot be durably recorded.
	// Callers treating notifications as best-effort must catch this and continue.
	ErrQueueUnavailable = errors.New("job queue unavailable")

	// ErrJobNotFound is returned when a job cannot be found
	ErrJobNotFound = errors.New("job not found")

	// ErrJobAlreadyClaimed is returned when attempting to claim a job that is
	// not in PENDING status
	ErrJobAlreadyClaimed = errors.New("job already claimed or not in PENDING status")

	// ErrJobNotReplayable is returned when replaying a job that is not dead-lettered
	ErrJobNotReplayable = errors.New("job is not in FAILED status")
)

// Job is one unit of asynchronous notification work, tracked through
// attempts to completion or terminal failure.
type Job struct {
	JobID           string         `db:"job_id"`
	EventType       EventType      `db:"event_type"`
	Payload         string         `db:"payload"` // JSON string
	Status          string         `db:"status"`
	Attempts        int            `db:"attempts"`
	MaxAttempts     int            `db:"max_attempts"`
	NextRunAt       time.Time      `db:"next_run_at"`
	WorkerID        sql.NullString `db:"worker_id"`
	LastHeartbeatAt sql.NullTime   `db:"last_heartbeat_at"`
	ErrorMessage    sql.NullString `db:"error_message"`
	CreatedAt       time.Time      `db:"created_at"`
	UpdatedAt       time.Time      `db:"updated_at"`
}

// JobMessage is the broker message carrying a job id to the worker.
type JobMessage struct {
	JobID       string `json:"job_id"`
	DeliveryTag uint64 `json:"-"`
}

// RetryDelay computes the backoff before the next attempt: base * 2^(attempts-1),
// so consecutive failures wait base, 2*base, 4*base, ... Delays are capped to
// keep the shift from overflowing on absurd attempt counts.
func RetryDelay(baseDelay time.Duration, attempts int) time.Duration {
	if attempts < 1 {
		attempts = 1
	}
	shift := uint(attempts - 1)
	if shift > 16 {
		shift = 16
	}
	return baseDelay << shift
}
