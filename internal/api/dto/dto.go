package dto

// ConvertLeadRequest is the optional body of the convert endpoint.
type ConvertLeadRequest struct {
	PerformerID string `json:"performer_id"`
}

// EnqueueEventRequest creates a notification job.
type EnqueueEventRequest struct {
	EventType    string                 `json:"event_type" binding:"required"`
	Payload      map[string]interface{} `json:"payload"`
	DelaySeconds int                    `json:"delay_seconds"`
	MaxAttempts  int                    `json:"max_attempts"`
}

// RegisterTokenRequest registers a device token for push delivery.
type RegisterTokenRequest struct {
	Token string `json:"token" binding:"required"`
}

// ListJobsRequest filters the job listing.
type ListJobsRequest struct {
	EventType string `form:"event_type"`
	Status    string `form:"status"`
	PageSize  int    `form:"page_size"`
	Cursor    string `form:"cursor"`
}

// ListJobsResponse is a page of jobs plus the cursor for the next page.
type ListJobsResponse struct {
	Jobs       []JobDTO `json:"jobs"`
	NextCursor string   `json:"next_cursor,omitempty"`
}

// JobDTO is the API representation of a job.
type JobDTO struct {
	JobID        string `json:"job_id"`
	EventType    string `json:"event_type"`
	Payload      string `json:"payload"`
	Status       string `json:"status"`
	Attempts     int    `json:"attempts"`
	MaxAttempts  int    `json:"max_attempts"`
	NextRunAt    string `json:"next_run_at"`
	ErrorMessage string `json:"error_message,omitempty"`
	CreatedAt    string `json:"created_at"`
	UpdatedAt    string `json:"updated_at"`
}
