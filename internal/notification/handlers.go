package notification

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
)

// DealWonPayload carries the deal_won event data.
type DealWonPayload struct {
	DealID      string  `json:"dealId"`
	PerformerID string  `json:"performerId"`
	Value       float64 `json:"value"`
	CompanyName string  `json:"companyName"`
}

// TaskAssignedPayload carries the task_assigned event data.
type TaskAssignedPayload struct {
	TaskID       string `json:"taskId"`
	AssignedToID string `json:"assignedToId"`
	AssignedByID string `json:"assignedById"`
	Title        string `json:"title"`
}

// LeadConvertedPayload carries the lead_converted event data.
type LeadConvertedPayload struct {
	LeadID      string `json:"leadId"`
	ContactID   string `json:"contactId"`
	PerformerID string `json:"performerId"`
}

// DealWonHandler notifies admins (and the performer) that a deal closed.
type DealWonHandler struct {
	store  NotificationStore
	pusher Pusher
	logger *slog.Logger
}

// NewDealWonHandler creates a new DealWonHandler instance
func NewDealWonHandler(store NotificationStore, pusher Pusher, logger *slog.Logger) *DealWonHandler {
	return &DealWonHandler{store: store, pusher: pusher, logger: logger}
}

// Handle resolves admin recipients plus the performer, writes one
// notification row each, then push-delivers to the same set.
func (h *DealWonHandler) Handle(ctx context.Context, payload []byte) error {
	var data DealWonPayload
	if err := json.Unmarshal(payload, &data); err != nil {
		return fmt.Errorf("invalid deal_won payload: %w", err)
	}

	targets, err := h.store.AdminUserIDs(ctx)
	if err != nil {
		return fmt.Errorf("failed to resolve deal_won recipients: %w", err)
	}

	// The performer gets a copy too, deduplicated by user id.
	if data.PerformerID != "" && !contains(targets, data.PerformerID) {
		targets = append(targets, data.PerformerID)
	}

	if len(targets) == 0 {
		h.logger.Warn("No recipients for deal_won event",
			slog.String("deal_id", data.DealID),
		)
		return nil
	}

	companyName := data.CompanyName
	if companyName == "" {
		companyName = "Unknown Company"
	}

	title := "Deal Won! 🎉"
	message := fmt.Sprintf("A deal worth $%s was just closed at %s.",
		strconv.FormatFloat(data.Value, 'f', -1, 64), companyName)

	recipients := persistFanOut(ctx, h.store, h.logger, targets, &Notification{
		Type:        "deal_won",
		Priority:    PriorityHigh,
		Title:       title,
		Message:     message,
		RelatedType: "deal",
		RelatedID:   data.DealID,
		SenderID:    data.PerformerID,
	})

	h.pusher.SendToUsers(ctx, recipients, title, message, map[string]string{
		"type":   "deal_won",
		"dealId": data.DealID,
	})

	h.logger.Info("deal_won fan-out complete",
		slog.String("deal_id", data.DealID),
		slog.Int("recipients", len(recipients)),
	)

	return nil
}

// TaskAssignedHandler notifies a single user about a task assigned to them.
type TaskAssignedHandler struct {
	store  NotificationStore
	pusher Pusher
	logger *slog.Logger
}

// NewTaskAssignedHandler creates a new TaskAssignedHandler instance
func NewTaskAssignedHandler(store NotificationStore, pusher Pusher, logger *slog.Logger) *TaskAssignedHandler {
	return &TaskAssignedHandler{store: store, pusher: pusher, logger: logger}
}

// Handle notifies the assignee. Self-assignment is a no-op.
func (h *TaskAssignedHandler) Handle(ctx context.Context, payload []byte) error {
	var data TaskAssignedPayload
	if err := json.Unmarshal(payload, &data); err != nil {
		return fmt.Errorf("invalid task_assigned payload: %w", err)
	}

	if data.AssignedToID == "" {
		h.logger.Warn("task_assigned event without assignee, dropping",
			slog.String("task_id", data.TaskID),
		)
		return nil
	}

	if data.AssignedToID == data.AssignedByID {
		h.logger.Debug("Task self-assignment, suppressing notification",
			slog.String("task_id", data.TaskID),
			slog.String("user_id", data.AssignedToID),
		)
		return nil
	}

	assignerName := "Someone"
	if data.AssignedByID != "" {
		name, err := h.store.DisplayName(ctx, data.AssignedByID)
		if err != nil {
			h.logger.Warn("Failed to look up assigner name",
				slog.String("user_id", data.AssignedByID),
				slog.Any("error", err),
			)
		} else if name != "" {
			assignerName = name
		}
	}

	title := "New Task Assigned"
	message := fmt.Sprintf("%s assigned you a task: %s", assignerName, data.Title)

	err := h.store.InsertNotification(ctx, &Notification{
		UserID:      data.AssignedToID,
		Type:        "task_assigned",
		Priority:    PriorityMedium,
		Title:       title,
		Message:     message,
		RelatedType: "task",
		RelatedID:   data.TaskID,
		SenderID:    data.AssignedByID,
	})
	if err != nil {
		return fmt.Errorf("failed to persist task_assigned notification: %w", err)
	}

	h.pusher.SendToUsers(ctx, []string{data.AssignedToID}, title, message, map[string]string{
		"type":   "task_assigned",
		"taskId": data.TaskID,
	})

	return nil
}

// LeadConvertedHandler notifies admins that a lead became a contact.
type LeadConvertedHandler struct {
	store  NotificationStore
	pusher Pusher
	logger *slog.Logger
}

// NewLeadConvertedHandler creates a new LeadConvertedHandler instance
func NewLeadConvertedHandler(store NotificationStore, pusher Pusher, logger *slog.Logger) *LeadConvertedHandler {
	return &LeadConvertedHandler{store: store, pusher: pusher, logger: logger}
}

// Handle notifies all admin users about the new contact.
func (h *LeadConvertedHandler) Handle(ctx context.Context, payload []byte) error {
	var data LeadConvertedPayload
	if err := json.Unmarshal(payload, &data); err != nil {
		return fmt.Errorf("invalid lead_converted payload: %w", err)
	}

	targets, err := h.store.AdminUserIDs(ctx)
	if err != nil {
		return fmt.Errorf("failed to resolve lead_converted recipients: %w", err)
	}

	if len(targets) == 0 {
		h.logger.Warn("No recipients for lead_converted event",
			slog.String("lead_id", data.LeadID),
		)
		return nil
	}

	title := "Lead Converted"
	message := "A lead was just converted into a new contact."

	recipients := persistFanOut(ctx, h.store, h.logger, targets, &Notification{
		Type:        "lead_converted",
		Priority:    PriorityMedium,
		Title:       title,
		Message:     message,
		RelatedType: "contact",
		RelatedID:   data.ContactID,
		SenderID:    data.PerformerID,
	})

	h.pusher.SendToUsers(ctx, recipients, title, message, map[string]string{
		"type":      "lead_converted",
		"leadId":    data.LeadID,
		"contactId": data.ContactID,
	})

	h.logger.Info("lead_converted fan-out complete",
		slog.String("lead_id", data.LeadID),
		slog.String("contact_id", data.ContactID),
		slog.Int("recipients", len(recipients)),
	)

	return nil
}

// persistFanOut inserts one notification row per target. A failed insert is
// logged and skipped so one recipient cannot abort the rest; the returned
// slice holds the users whose rows were written.
func persistFanOut(ctx context.Context, store NotificationStore, logger *slog.Logger, targets []string, template *Notification) []string {
	persisted := make([]string, 0, len(targets))
	for _, userID := range targets {
		n := *template
		n.UserID = userID
		if err := store.InsertNotification(ctx, &n); err != nil {
			logger.Error("Failed to insert notification",
				slog.String("user_id", userID),
				slog.String("type", n.Type),
				slog.Any("error", err),
			)
			continue
		}
		persisted = append(persisted, userID)
	}
	return persisted
}

func contains(ids []string, id string) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}
