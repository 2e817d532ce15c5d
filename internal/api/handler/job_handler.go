package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/leadflow/crm-backend/internal/api/dto"
	"github.com/leadflow/crm-backend/internal/queue"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// JobHandler handles job inspection and replay HTTP requests
type JobHandler struct {
	logger   *slog.Logger
	queue    EventQueue
	jobStore *queue.Store
}

// NewJobHandler creates a new JobHandler instance
func NewJobHandler(deps *Dependencies) *JobHandler {
	return &JobHandler{
		logger:   deps.Logger,
		queue:    deps.Queue,
		jobStore: deps.JobStore,
	}
}

// EnqueueEvent handles POST /api/v1/events
// Records a notification job and hands it to the broker.
func (h *JobHandler) EnqueueEvent(c *gin.Context) {
	var req dto.EnqueueEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid request body",
		})
		return
	}

	var opts []queue.Option
	if req.DelaySeconds > 0 {
		opts = append(opts, queue.WithDelay(time.Duration(req.DelaySeconds)*time.Second))
	}
	if req.MaxAttempts > 0 {
		opts = append(opts, queue.WithMaxAttempts(req.MaxAttempts))
	}

	jobID, err := h.queue.Enqueue(c.Request.Context(), queue.EventType(req.EventType), req.Payload, opts...)
	if err != nil {
		if errors.Is(err, queue.ErrQueueUnavailable) {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"error": "Queue unavailable",
			})
			return
		}
		h.logger.Error("Failed to enqueue event", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to enqueue event",
		})
		return
	}

	c.JSON(http.StatusAccepted, gin.H{
		"job_id":     jobID,
		"event_type": req.EventType,
	})
}

// GetJob handles GET /api/v1/jobs/:job_id
func (h *JobHandler) GetJob(c *gin.Context) {
	jobID := c.Param("job_id")
	if _, err := uuid.Parse(jobID); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "job_id must be a valid UUID",
		})
		return
	}

	job, err := h.jobStore.GetJob(c.Request.Context(), jobID)
	if err != nil {
		if errors.Is(err, queue.ErrJobNotFound) {
			c.JSON(http.StatusNotFound, gin.H{
				"error": "Job not found",
			})
			return
		}
		h.logger.Error("Failed to get job", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to get job",
		})
		return
	}

	c.JSON(http.StatusOK, jobToDTO(job))
}

// ListJobs handles GET /api/v1/jobs
// Lists jobs with filtering and keyset pagination. Filtering on
// status=FAILED surfaces the dead-letter set for operational follow-up.
func (h *JobHandler) ListJobs(c *gin.Context) {
	var req dto.ListJobsRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid query parameters",
		})
		return
	}

	if req.PageSize <= 0 {
		req.PageSize = 20
	}
	if req.PageSize > 100 {
		req.PageSize = 100
	}

	cursor, err := DecodeJobCursor(req.Cursor)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid cursor",
		})
		return
	}

	filter := queue.JobFilter{
		EventType: req.EventType,
		Status:    req.Status,
		PageSize:  req.PageSize,
		Cursor:    cursor,
	}

	jobs, err := h.jobStore.ListJobs(c.Request.Context(), filter)
	if err != nil {
		h.logger.Error("Failed to list jobs", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to list jobs",
		})
		return
	}

	hasMore := len(jobs) > req.PageSize
	if hasMore {
		jobs = jobs[:req.PageSize]
	}

	jobResponse := make([]dto.JobDTO, len(jobs))
	for i := range jobs {
		jobResponse[i] = jobToDTO(&jobs[i])
	}

	var nextCursor string
	if hasMore {
		lastJob := jobs[len(jobs)-1]
		nextCursor = EncodeJobCursor(&queue.JobCursor{
			CreatedAt: lastJob.CreatedAt,
			JobID:     lastJob.JobID,
		})
	}

	c.JSON(http.StatusOK, dto.ListJobsResponse{
		Jobs:       jobResponse,
		NextCursor: nextCursor,
	})
}

// ReplayJob handles POST /api/v1/jobs/:job_id/replay
// Resets a dead-lettered job for another round of delivery.
func (h *JobHandler) ReplayJob(c *gin.Context) {
	jobID := c.Param("job_id")
	if _, err := uuid.Parse(jobID); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "job_id must be a valid UUID",
		})
		return
	}

	err := h.jobStore.ReplayJob(c.Request.Context(), jobID)
	if err != nil {
		switch {
		case errors.Is(err, queue.ErrJobNotFound):
			c.JSON(http.StatusNotFound, gin.H{
				"error": "Job not found",
			})
		case errors.Is(err, queue.ErrJobNotReplayable):
			c.JSON(http.StatusConflict, gin.H{
				"error": "Only FAILED jobs can be replayed",
			})
		default:
			h.logger.Error("Failed to replay job", slog.String("error", err.Error()))
			c.JSON(http.StatusInternalServerError, gin.H{
				"error": "Failed to replay job",
			})
		}
		return
	}

	h.logger.Info("Dead-lettered job queued for replay",
		slog.String("job_id", jobID),
	)

	c.JSON(http.StatusOK, gin.H{
		"job_id": jobID,
		"status": queue.JobStatusScheduled,
	})
}

func jobToDTO(job *queue.Job) dto.JobDTO {
	return dto.JobDTO{
		JobID:        job.JobID,
		EventType:    string(job.EventType),
		Payload:      job.Payload,
		Status:       job.Status,
		Attempts:     job.Attempts,
		MaxAttempts:  job.MaxAttempts,
		NextRunAt:    job.NextRunAt.Format(time.RFC3339),
		ErrorMessage: job.ErrorMessage.String,
		CreatedAt:    job.CreatedAt.Format(time.RFC3339),
		UpdatedAt:    job.UpdatedAt.Format(time.RFC3339),
	}
}
