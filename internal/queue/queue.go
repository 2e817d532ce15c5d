package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// Publisher publishes a message to the notification broker.
// Satisfied by shared/rabbitmq.Client.
type Publisher interface {
	Publish(ctx context.Context, body []byte, contentType string) error
}

// JobStore is the subset of Store the enqueue path needs.
type JobStore interface {
	InsertJob(ctx context.Context, job *Job) error
	DeferJob(ctx context.Context, jobID string) error
}

// Queue is the enqueue-side client of the job queue. The job row is the
// durability anchor: a job exists once its row is committed, and the broker
// message only carries the id.
type Queue struct {
	store              JobStore
	publisher          Publisher
	logger             *slog.Logger
	defaultMaxAttempts int
}

// NewQueue creates a new Queue instance
func NewQueue(store JobStore, publisher Publisher, defaultMaxAttempts int, logger *slog.Logger) *Queue {
	if defaultMaxAttempts <= 0 {
		defaultMaxAttempts = 3
	}
	return &Queue{
		store:              store,
		publisher:          publisher,
		logger:             logger,
		defaultMaxAttempts: defaultMaxAttempts,
	}
}

// Option customizes a single enqueue.
type Option func(*enqueueOptions)

type enqueueOptions struct {
	delay       time.Duration
	maxAttempts int
}

// WithDelay schedules the job to run no earlier than now+delay.
func WithDelay(delay time.Duration) Option {
	return func(o *enqueueOptions) {
		o.delay = delay
	}
}

// WithMaxAttempts overrides the retry budget for this job.
func WithMaxAttempts(maxAttempts int) Option {
	return func(o *enqueueOptions) {
		o.maxAttempts = maxAttempts
	}
}

// Enqueue durably records a job and hands it to the broker. It returns once
// the row is committed and never blocks on downstream processing. A failed
// broker publish is not an error: the row stays scheduled and the next
// scheduler sweep publishes it.
func (q *Queue) Enqueue(ctx context.Context, eventType EventType, payload interface{}, opts ...Option) (string, error) {
	options := enqueueOptions{maxAttempts: q.defaultMaxAttempts}
	for _, opt := range opts {
		opt(&options)
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("failed to marshal job payload: %w", err)
	}

	job := &Job{
		JobID:       uuid.New().String(),
		EventType:   eventType,
		Payload:     string(body),
		Status:      JobStatusPending,
		MaxAttempts: options.maxAttempts,
		NextRunAt:   time.Now(),
	}

	delayed := options.delay > 0
	if delayed {
		job.Status = JobStatusScheduled
		job.NextRunAt = time.Now().Add(options.delay)
	}

	if err := q.store.InsertJob(ctx, job); err != nil {
		q.logger.Error("Failed to record job",
			slog.String("event_type", string(eventType)),
			slog.Any("error", err),
		)
		return "", fmt.Errorf("%w: %v", ErrQueueUnavailable, err)
	}

	if !delayed {
		if err := q.publishJob(ctx, job.JobID); err != nil {
			// Row is durable; degrade to scheduler delivery.
			q.logger.Warn("Publish failed, deferring job to scheduler",
				slog.String("job_id", job.JobID),
				slog.Any("error", err),
			)
			if deferErr := q.store.DeferJob(ctx, job.JobID); deferErr != nil {
				q.logger.Error("Failed to defer job after publish failure",
					slog.String("job_id", job.JobID),
					slog.Any("error", deferErr),
				)
			}
		}
	}

	q.logger.Info("Job enqueued",
		slog.String("job_id", job.JobID),
		slog.String("event_type", string(eventType)),
		slog.Duration("delay", options.delay),
	)

	return job.JobID, nil
}

func (q *Queue) publishJob(ctx context.Context, jobID string) error {
	msg, err := json.Marshal(JobMessage{JobID: jobID})
	if err != nil {
		return fmt.Errorf("failed to marshal job message: %w", err)
	}
	return q.publisher.Publish(ctx, msg, "application/json")
}
