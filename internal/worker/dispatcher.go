package worker

import (
	"context"
	"log/slog"

	"github.com/leadflow/crm-backend/internal/queue"
)

// Handler processes one job's payload.
type Handler interface {
	Handle(ctx context.Context, payload []byte) error
}

// Dispatcher routes a job to its handler by event type. The event set is
// closed: each recognized type has a dedicated field, and anything else is
// reported as unhandled so the caller can drop it deliberately.
type Dispatcher struct {
	dealWon       Handler
	taskAssigned  Handler
	leadConverted Handler
	logger        *slog.Logger
}

// NewDispatcher creates a dispatcher with a handler per recognized event type.
func NewDispatcher(dealWon, taskAssigned, leadConverted Handler, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{
		dealWon:       dealWon,
		taskAssigned:  taskAssigned,
		leadConverted: leadConverted,
		logger:        logger,
	}
}

// Dispatch runs the handler for the event type. It returns handled=false
// for unknown types; a handler error propagates untouched so the queue's
// retry policy applies.
func (d *Dispatcher) Dispatch(ctx context.Context, eventType queue.EventType, payload []byte) (bool, error) {
	switch eventType {
	case queue.EventDealWon:
		return true, d.dealWon.Handle(ctx, payload)
	case queue.EventTaskAssigned:
		return true, d.taskAssigned.Handle(ctx, payload)
	case queue.EventLeadConverted:
		return true, d.leadConverted.Handle(ctx, payload)
	default:
		d.logger.Warn("No handler registered for event type",
			slog.String("event_type", string(eventType)),
		)
		return false, nil
	}
}
