package push

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/leadflow/crm-backend/shared/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSender struct {
	mu     sync.Mutex
	sent   []string
	errors map[string]error
}

func (f *fakeSender) Send(ctx context.Context, token, title, body string, data map[string]string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.errors[token]; err != nil {
		return err
	}
	f.sent = append(f.sent, token)
	return nil
}

type fakeTokenStore struct {
	mu      sync.Mutex
	tokens  map[string]string
	getErr  error
	deleted []string
}

func (f *fakeTokenStore) GetToken(ctx context.Context, userID string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return "", f.getErr
	}
	return f.tokens[userID], nil
}

func (f *fakeTokenStore) DeleteToken(ctx context.Context, userID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, userID)
	return nil
}

func TestSendToUserDelivers(t *testing.T) {
	sender := &fakeSender{}
	tokens := &fakeTokenStore{tokens: map[string]string{"user-1": "tok-1"}}
	a := NewAdapter(sender, tokens, logger.NewNop().Logger)

	result := a.SendToUser(context.Background(), "user-1", "Title", "Body", nil)

	assert.True(t, result.Delivered)
	assert.NoError(t, result.Err)
	assert.Equal(t, []string{"tok-1"}, sender.sent)
}

func TestSendToUserWithoutTokenIsNoOp(t *testing.T) {
	sender := &fakeSender{}
	tokens := &fakeTokenStore{tokens: map[string]string{}}
	a := NewAdapter(sender, tokens, logger.NewNop().Logger)

	result := a.SendToUser(context.Background(), "user-1", "Title", "Body", nil)

	assert.False(t, result.Delivered)
	assert.NoError(t, result.Err)
	assert.Empty(t, sender.sent)
	assert.Empty(t, tokens.deleted)
}

func TestSendToUserDeletesUnregisteredToken(t *testing.T) {
	sender := &fakeSender{errors: map[string]error{"tok-dead": ErrTokenNotRegistered}}
	tokens := &fakeTokenStore{tokens: map[string]string{"user-1": "tok-dead"}}
	a := NewAdapter(sender, tokens, logger.NewNop().Logger)

	result := a.SendToUser(context.Background(), "user-1", "Title", "Body", nil)

	assert.False(t, result.Delivered)
	assert.ErrorIs(t, result.Err, ErrTokenNotRegistered)
	assert.Equal(t, []string{"user-1"}, tokens.deleted)
}

func TestSendToUserKeepsTokenOnTransientFailure(t *testing.T) {
	sender := &fakeSender{errors: map[string]error{"tok-1": errors.New("503 unavailable")}}
	tokens := &fakeTokenStore{tokens: map[string]string{"user-1": "tok-1"}}
	a := NewAdapter(sender, tokens, logger.NewNop().Logger)

	result := a.SendToUser(context.Background(), "user-1", "Title", "Body", nil)

	assert.False(t, result.Delivered)
	assert.Error(t, result.Err)
	assert.Empty(t, tokens.deleted)
}

func TestSendToUsersJoinsAllDeliveries(t *testing.T) {
	sender := &fakeSender{errors: map[string]error{"tok-dead": ErrTokenNotRegistered}}
	tokens := &fakeTokenStore{tokens: map[string]string{
		"user-1": "tok-1",
		"user-2": "tok-dead",
	}}
	a := NewAdapter(sender, tokens, logger.NewNop().Logger)

	results := a.SendToUsers(context.Background(), []string{"user-1", "user-2", "user-3"}, "Title", "Body", nil)
	require.Len(t, results, 3)

	// Results line up with the input order.
	assert.Equal(t, "user-1", results[0].UserID)
	assert.True(t, results[0].Delivered)

	assert.Equal(t, "user-2", results[1].UserID)
	assert.False(t, results[1].Delivered)
	assert.ErrorIs(t, results[1].Err, ErrTokenNotRegistered)

	assert.Equal(t, "user-3", results[2].UserID)
	assert.False(t, results[2].Delivered)
	assert.NoError(t, results[2].Err)

	assert.Equal(t, []string{"user-2"}, tokens.deleted)
}
