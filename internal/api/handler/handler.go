package handler

import (
	"context"
	"log/slog"

	"github.com/leadflow/crm-backend/internal/api/model"
	"github.com/leadflow/crm-backend/internal/push"
	"github.com/leadflow/crm-backend/internal/queue"
	"github.com/leadflow/crm-backend/shared/postgresql"
)

// LeadStorage is the lead persistence surface the handlers need.
// Satisfied by storage.Storage.
type LeadStorage interface {
	GetLead(ctx context.Context, leadID string) (*model.Lead, error)
	ConvertLead(ctx context.Context, leadID string) (*model.ConversionResult, error)
}

// EventQueue enqueues notification jobs. Satisfied by queue.Queue.
type EventQueue interface {
	Enqueue(ctx context.Context, eventType queue.EventType, payload interface{}, opts ...queue.Option) (string, error)
}

// Dependencies holds all dependencies needed by handlers
type Dependencies struct {
	Logger      *slog.Logger
	DBClient    *postgresql.Client
	LeadStorage LeadStorage
	Queue       EventQueue
	JobStore    *queue.Store
	TokenStore  *push.Store
}
