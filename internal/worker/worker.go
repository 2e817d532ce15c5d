// Package worker consumes notification jobs from RabbitMQ and routes them
// to per-event-type handlers with retry and dead-letter semantics.
package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/leadflow/crm-backend/internal/queue"
	"github.com/leadflow/crm-backend/shared/rabbitmq"
	"github.com/google/uuid"
)

// RetryableError wraps transient errors that should trigger a broker requeue.
type RetryableError struct {
	Err error
}

func (e *RetryableError) Error() string {
	return "retryable error: " + e.Err.Error()
}

func (e *RetryableError) Unwrap() error {
	return e.Err
}

// NewRetryableError creates a new retryable error
func NewRetryableError(err error) error {
	return &RetryableError{Err: err}
}

// JobStore is the job-lifecycle surface the worker needs.
// Satisfied by queue.Store.
type JobStore interface {
	ClaimJob(ctx context.Context, jobID, workerID string) (*queue.Job, error)
	CompleteJob(ctx context.Context, jobID string) error
	RescheduleJob(ctx context.Context, jobID string, nextRunAt time.Time, errMsg string) error
	DeadLetterJob(ctx context.Context, jobID, errMsg string) error
	Heartbeat(ctx context.Context, jobID string) error
}

// Config holds worker configuration
type Config struct {
	Logger            *slog.Logger
	Store             JobStore
	RabbitClient      *rabbitmq.Client
	Dispatcher        *Dispatcher
	Concurrency       int
	PrefetchCount     int
	JobTimeout        time.Duration
	HeartbeatInterval time.Duration
	RetryBaseDelay    time.Duration
}

// Worker is the notification job consumer: one RabbitMQ consumer feeding a
// pool of processing goroutines.
type Worker struct {
	logger            *slog.Logger
	store             JobStore
	rabbitClient      *rabbitmq.Client
	dispatcher        *Dispatcher
	concurrency       int
	prefetchCount     int
	jobTimeout        time.Duration
	heartbeatInterval time.Duration
	retryBaseDelay    time.Duration
	workerID          string
	jobsChan          chan *queue.JobMessage
	wg                sync.WaitGroup
	stopChan          chan struct{}
}

// NewWorker creates a new worker instance
func NewWorker(cfg *Config) *Worker {
	hostname, _ := os.Hostname()
	retryBaseDelay := cfg.RetryBaseDelay
	if retryBaseDelay <= 0 {
		retryBaseDelay = time.Second
	}

	return &Worker{
		logger:            cfg.Logger,
		store:             cfg.Store,
		rabbitClient:      cfg.RabbitClient,
		dispatcher:        cfg.Dispatcher,
		concurrency:       cfg.Concurrency,
		prefetchCount:     cfg.PrefetchCount,
		jobTimeout:        cfg.JobTimeout,
		heartbeatInterval: cfg.HeartbeatInterval,
		retryBaseDelay:    retryBaseDelay,
		workerID:          fmt.Sprintf("%s-%s", hostname, uuid.New().String()[:8]),
		jobsChan:          make(chan *queue.JobMessage, cfg.Concurrency),
		stopChan:          make(chan struct{}),
	}
}

// Start begins consuming and processing jobs. Blocks until the context is
// canceled or the delivery channel closes.
func (w *Worker) Start(ctx context.Context) error {
	w.logger.Info("Starting worker",
		slog.String("worker_id", w.workerID),
		slog.Int("concurrency", w.concurrency),
		slog.Duration("job_timeout", w.jobTimeout),
	)

	deliveries, err := w.setupConsumer(ctx)
	if err != nil {
		return fmt.Errorf("failed to setup consumer: %w", err)
	}

	w.spawnWorkerPool(ctx)
	w.runMessageDispatcher(ctx, deliveries)

	return nil
}

// Stop gracefully stops the worker pool.
func (w *Worker) Stop() {
	w.logger.Info("Stopping worker...")
	close(w.stopChan)
	w.wg.Wait()
	w.logger.Info("Worker stopped")
}

// shouldRequeueJob determines if a broker message should be requeued based
// on the error type. Job-level retries go through the scheduler, so only
// transient pre-claim failures requeue at the broker.
func (w *Worker) shouldRequeueJob(err error) bool {
	// Another worker holds this job; redelivery would be a duplicate.
	if errors.Is(err, queue.ErrJobAlreadyClaimed) {
		return false
	}

	var retryableErr *RetryableError
	if errors.As(err, &retryableErr) {
		return true
	}

	return false
}
