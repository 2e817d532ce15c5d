package push

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// Store persists device tokens in the device_tokens table.
type Store struct {
	db *sqlx.DB
}

// NewStore creates a new Store instance
func NewStore(db *sqlx.DB) *Store {
	return &Store{db: db}
}

// GetToken returns the user's device token, or "" if none is registered.
func (s *Store) GetToken(ctx context.Context, userID string) (string, error) {
	var token string
	query := `SELECT token FROM device_tokens WHERE user_id = $1`

	err := s.db.GetContext(ctx, &token, query, userID)
	if err != nil {
		if err == sql.ErrNoRows {
			return "", nil
		}
		return "", fmt.Errorf("failed to get device token: %w", err)
	}

	return token, nil
}

// UpsertToken registers a device token for a user. A later token silently
// supersedes the previous one.
func (s *Store) UpsertToken(ctx context.Context, userID, token string) error {
	query := `
		INSERT INTO device_tokens (user_id, token, updated_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (user_id) DO UPDATE SET token = EXCLUDED.token, updated_at = NOW()
	`

	if _, err := s.db.ExecContext(ctx, query, userID, token); err != nil {
		return fmt.Errorf("failed to upsert device token: %w", err)
	}

	return nil
}

// DeleteToken removes the user's device token.
func (s *Store) DeleteToken(ctx context.Context, userID string) error {
	query := `DELETE FROM device_tokens WHERE user_id = $1`

	if _, err := s.db.ExecContext(ctx, query, userID); err != nil {
		return fmt.Errorf("failed to delete device token: %w", err)
	}

	return nil
}
