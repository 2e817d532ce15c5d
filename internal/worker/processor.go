package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/leadflow/crm-backend/internal/queue"
)

// processJob runs one job attempt: claim, dispatch, record the outcome.
// A nil return means the outcome is settled in the jobs table and the
// broker delivery can be acknowledged.
func (w *Worker) processJob(ctx context.Context, msg *queue.JobMessage) error {
	job, err := w.store.ClaimJob(ctx, msg.JobID, w.workerID)
	if err != nil {
		if errors.Is(err, queue.ErrJobAlreadyClaimed) {
			w.logger.Warn("Job already claimed, skipping",
				slog.String("job_id", msg.JobID),
			)
			return fmt.Errorf("job already claimed: %w", err)
		}
		// Database hiccup before the claim; safe to redeliver.
		return NewRetryableError(fmt.Errorf("failed to claim job: %w", err))
	}

	w.logger.Info("Processing job",
		slog.String("job_id", job.JobID),
		slog.String("event_type", string(job.EventType)),
		slog.Int("attempt", job.Attempts),
		slog.Int("max_attempts", job.MaxAttempts),
	)

	jobCtx, cancel := context.WithTimeout(ctx, w.jobTimeout)
	defer cancel()

	heartbeatDone := make(chan struct{})
	go w.sendJobHeartbeat(jobCtx, job.JobID, heartbeatDone)
	defer close(heartbeatDone)

	handled, handleErr := w.dispatcher.Dispatch(jobCtx, job.EventType, []byte(job.Payload))

	if !handled {
		// Unknown event types are dropped deliberately: dead-lettered for
		// visibility, never retried.
		reason := fmt.Sprintf("no handler registered for event type %q", job.EventType)
		if err := w.store.DeadLetterJob(ctx, job.JobID, reason); err != nil {
			w.logger.Error("Failed to dead-letter unhandled job",
				slog.String("job_id", job.JobID),
				slog.String("error", err.Error()),
			)
		}
		return nil
	}

	if handleErr != nil {
		return w.recordFailure(ctx, job, handleErr)
	}

	if err := w.store.CompleteJob(ctx, job.JobID); err != nil {
		// The work is done; if this update is lost the lease reaper will
		// reschedule and the handlers run again (at-least-once).
		w.logger.Error("Failed to mark job completed",
			slog.String("job_id", job.JobID),
			slog.String("error", err.Error()),
		)
		return nil
	}

	w.logger.Info("Job completed successfully",
		slog.String("job_id", job.JobID),
		slog.String("event_type", string(job.EventType)),
	)

	return nil
}

// recordFailure reschedules the job with exponential backoff, or
// dead-letters it once the retry budget is spent.
func (w *Worker) recordFailure(ctx context.Context, job *queue.Job, handleErr error) error {
	if job.Attempts < job.MaxAttempts {
		delay := queue.RetryDelay(w.retryBaseDelay, job.Attempts)
		nextRunAt := time.Now().Add(delay)

		w.logger.Info("Job failed, scheduling retry",
			slog.String("job_id", job.JobID),
			slog.Int("attempt", job.Attempts),
			slog.Int("max_attempts", job.MaxAttempts),
			slog.Duration("retry_in", delay),
			slog.String("error", handleErr.Error()),
		)

		if err := w.store.RescheduleJob(ctx, job.JobID, nextRunAt, handleErr.Error()); err != nil {
			w.logger.Error("Failed to reschedule job",
				slog.String("job_id", job.JobID),
				slog.String("error", err.Error()),
			)
			return NewRetryableError(err)
		}
		return nil
	}

	w.logger.Warn("Job exhausted retry budget, dead-lettering",
		slog.String("job_id", job.JobID),
		slog.Int("attempts", job.Attempts),
		slog.String("error", handleErr.Error()),
	)

	if err := w.store.DeadLetterJob(ctx, job.JobID, handleErr.Error()); err != nil {
		w.logger.Error("Failed to dead-letter job",
			slog.String("job_id", job.JobID),
			slog.String("error", err.Error()),
		)
		return NewRetryableError(err)
	}
	return nil
}

// sendJobHeartbeat keeps the job's lease fresh while the handler runs.
func (w *Worker) sendJobHeartbeat(ctx context.Context, jobID string, done <-chan struct{}) {
	ticker := time.NewTicker(w.heartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := w.store.Heartbeat(ctx, jobID); err != nil {
				w.logger.Warn("Failed to update job heartbeat",
					slog.String("job_id", jobID),
					slog.String("error", err.Error()),
				)
			}
		}
	}
}
