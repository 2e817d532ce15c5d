// Package notification resolves recipients for CRM events, persists one
// notification row per recipient, and pushes to each recipient's device.
package notification

import (
	"context"

	"github.com/leadflow/crm-backend/internal/push"
)

// Notification priority constants
const (
	PriorityHigh   = "HIGH"
	PriorityMedium = "MEDIUM"
	PriorityLow    = "LOW"
)

// Notification is one persisted per-recipient record. Fan-out creates N
// rows for N target users, never one shared row.
type Notification struct {
	UserID      string `db:"user_id"`
	Type        string `db:"type"`
	Priority    string `db:"priority"`
	Title       string `db:"title"`
	Message     string `db:"message"`
	RelatedType string `db:"related_type"`
	RelatedID   string `db:"related_id"`
	SenderID    string `db:"sender_id"`
}

// NotificationStore is the persistence surface the handlers need.
type NotificationStore interface {
	AdminUserIDs(ctx context.Context) ([]string, error)
	DisplayName(ctx context.Context, userID string) (string, error)
	InsertNotification(ctx context.Context, n *Notification) error
}

// Pusher delivers push messages to a set of users.
// Satisfied by push.Adapter.
type Pusher interface {
	SendToUsers(ctx context.Context, userIDs []string, title, body string, data map[string]string) []push.Result
}
