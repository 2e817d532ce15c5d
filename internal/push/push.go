package push

import (
	"context"
	"errors"
	"log/slog"
	"sync"
)

// ErrTokenNotRegistered marks a device token the push provider reports as
// permanently invalid. The adapter reacts by deleting the stored token.
var ErrTokenNotRegistered = errors.New("device token not registered")

// Sender delivers one push message to one device token.
// Satisfied by pkg/fcm.Client.
type Sender interface {
	Send(ctx context.Context, token, title, body string, data map[string]string) error
}

// TokenStore persists device tokens, at most one per user.
type TokenStore interface {
	GetToken(ctx context.Context, userID string) (string, error)
	DeleteToken(ctx context.Context, userID string) error
}

// Result is the outcome of one user's delivery attempt.
type Result struct {
	UserID    string
	Delivered bool
	Err       error
}

// Adapter sends push notifications and cleans up dead tokens. Delivery
// problems are logged, never propagated: a missing device is not a system
// failure.
type Adapter struct {
	sender Sender
	tokens TokenStore
	logger *slog.Logger
}

// NewAdapter creates a new Adapter instance
func NewAdapter(sender Sender, tokens TokenStore, logger *slog.Logger) *Adapter {
	return &Adapter{
		sender: sender,
		tokens: tokens,
		logger: logger,
	}
}

// SendToUser delivers a push message to one user's device. A user without a
// token is a no-op. A permanently invalid token is deleted.
func (a *Adapter) SendToUser(ctx context.Context, userID, title, body string, data map[string]string) Result {
	token, err := a.tokens.GetToken(ctx, userID)
	if err != nil {
		a.logger.Warn("Failed to look up device token",
			slog.String("user_id", userID),
			slog.Any("error", err),
		)
		return Result{UserID: userID, Err: err}
	}

	if token == "" {
		a.logger.Debug("No device token for user, skipping push",
			slog.String("user_id", userID),
		)
		return Result{UserID: userID}
	}

	if err := a.sender.Send(ctx, token, title, body, data); err != nil {
		if errors.Is(err, ErrTokenNotRegistered) {
			a.logger.Info("Cleaning up invalid device token",
				slog.String("user_id", userID),
			)
			if delErr := a.tokens.DeleteToken(ctx, userID); delErr != nil {
				a.logger.Error("Failed to delete invalid device token",
					slog.String("user_id", userID),
					slog.Any("error", delErr),
				)
			}
		} else {
			a.logger.Warn("Push delivery failed",
				slog.String("user_id", userID),
				slog.Any("error", err),
			)
		}
		return Result{UserID: userID, Err: err}
	}

	a.logger.Debug("Push delivered",
		slog.String("user_id", userID),
	)

	return Result{UserID: userID, Delivered: true}
}

// SendToUsers fans SendToUser out over all ids in parallel. One user's
// failure does not affect the others; all sends are joined before returning.
func (a *Adapter) SendToUsers(ctx context.Context, userIDs []string, title, body string, data map[string]string) []Result {
	results := make([]Result, len(userIDs))

	var wg sync.WaitGroup
	for i, userID := range userIDs {
		wg.Add(1)
		go func(i int, userID string) {
			defer wg.Done()
			results[i] = a.SendToUser(ctx, userID, title, body, data)
		}(i, userID)
	}
	wg.Wait()

	return results
}
