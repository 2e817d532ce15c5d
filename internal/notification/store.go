package notification

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// Store implements NotificationStore over the profiles and notifications tables.
type Store struct {
	db *sqlx.DB
}

// NewStore creates a new Store instance
func NewStore(db *sqlx.DB) *Store {
	return &Store{db: db}
}

// AdminUserIDs returns the ids of all users with an admin role.
func (s *Store) AdminUserIDs(ctx context.Context) ([]string, error) {
	var ids []string
	query := `SELECT id FROM profiles WHERE role IN ('Super Admin', 'Admin')`

	if err := s.db.SelectContext(ctx, &ids, query); err != nil {
		return nil, fmt.Errorf("failed to fetch admin users: %w", err)
	}

	return ids, nil
}

// DisplayName returns the user's full name.
func (s *Store) DisplayName(ctx context.Context, userID string) (string, error) {
	var name string
	query := `SELECT full_name FROM profiles WHERE id = $1`

	err := s.db.GetContext(ctx, &name, query, userID)
	if err != nil {
		if err == sql.ErrNoRows {
			return "", fmt.Errorf("profile not found for user %s", userID)
		}
		return "", fmt.Errorf("failed to fetch profile: %w", err)
	}

	return name, nil
}

// InsertNotification persists one per-recipient notification row.
func (s *Store) InsertNotification(ctx context.Context, n *Notification) error {
	query := `
		INSERT INTO notifications (user_id, type, priority, title, message, related_type, related_id, sender_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NULLIF($8, ''), NOW())
	`

	_, err := s.db.ExecContext(ctx, query,
		n.UserID,
		n.Type,
		n.Priority,
		n.Title,
		n.Message,
		n.RelatedType,
		n.RelatedID,
		n.SenderID,
	)
	if err != nil {
		return fmt.Errorf("failed to insert notification: %w", err)
	}

	return nil
}
