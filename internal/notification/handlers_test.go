package notification

import (
	"context"
	"errors"
	"testing"

	"github.com/leadflow/crm-backend/internal/push"
	"github.com/leadflow/crm-backend/shared/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeNotificationStore struct {
	admins     []string
	adminsErr  error
	names      map[string]string
	nameErr    error
	inserted   []*Notification
	failInsert map[string]error
}

func (f *fakeNotificationStore) AdminUserIDs(ctx context.Context) ([]string, error) {
	return f.admins, f.adminsErr
}

func (f *fakeNotificationStore) DisplayName(ctx context.Context, userID string) (string, error) {
	if f.nameErr != nil {
		return "", f.nameErr
	}
	return f.names[userID], nil
}

func (f *fakeNotificationStore) InsertNotification(ctx context.Context, n *Notification) error {
	if err := f.failInsert[n.UserID]; err != nil {
		return err
	}
	f.inserted = append(f.inserted, n)
	return nil
}

type fakePusher struct {
	userIDs []string
	title   string
	body    string
	data    map[string]string
	calls   int
}

func (f *fakePusher) SendToUsers(ctx context.Context, userIDs []string, title, body string, data map[string]string) []push.Result {
	f.calls++
	f.userIDs = userIDs
	f.title = title
	f.body = body
	f.data = data
	results := make([]push.Result, len(userIDs))
	for i, id := range userIDs {
		results[i] = push.Result{UserID: id, Delivered: true}
	}
	return results
}

func insertedUserIDs(notifications []*Notification) []string {
	ids := make([]string, 0, len(notifications))
	for _, n := range notifications {
		ids = append(ids, n.UserID)
	}
	return ids
}

func TestDealWonFansOutToAdminsAndPerformer(t *testing.T) {
	store := &fakeNotificationStore{admins: []string{"admin-1", "admin-2"}}
	pusher := &fakePusher{}
	h := NewDealWonHandler(store, pusher, logger.NewNop().Logger)

	payload := []byte(`{"dealId":"d-1","performerId":"rep-1","value":50000,"companyName":"Acme Corp"}`)
	require.NoError(t, h.Handle(context.Background(), payload))

	assert.ElementsMatch(t, []string{"admin-1", "admin-2", "rep-1"}, insertedUserIDs(store.inserted))
	assert.ElementsMatch(t, []string{"admin-1", "admin-2", "rep-1"}, pusher.userIDs)
	assert.Equal(t, "Deal Won! 🎉", pusher.title)
	assert.Equal(t, "A deal worth $50000 was just closed at Acme Corp.", pusher.body)

	for _, n := range store.inserted {
		assert.Equal(t, "deal_won", n.Type)
		assert.Equal(t, PriorityHigh, n.Priority)
		assert.Equal(t, "deal", n.RelatedType)
		assert.Equal(t, "d-1", n.RelatedID)
		assert.Equal(t, "rep-1", n.SenderID)
	}
}

func TestDealWonDeduplicatesPerformer(t *testing.T) {
	// The performer is also an admin; they must get exactly one notification.
	store := &fakeNotificationStore{admins: []string{"admin-1", "admin-2"}}
	pusher := &fakePusher{}
	h := NewDealWonHandler(store, pusher, logger.NewNop().Logger)

	payload := []byte(`{"dealId":"d-1","performerId":"admin-2","value":1000,"companyName":"Acme Corp"}`)
	require.NoError(t, h.Handle(context.Background(), payload))

	assert.Len(t, store.inserted, 2)
	assert.ElementsMatch(t, []string{"admin-1", "admin-2"}, insertedUserIDs(store.inserted))
}

func TestDealWonUnknownCompanyFallback(t *testing.T) {
	store := &fakeNotificationStore{admins: []string{"admin-1"}}
	pusher := &fakePusher{}
	h := NewDealWonHandler(store, pusher, logger.NewNop().Logger)

	payload := []byte(`{"dealId":"d-1","performerId":"","value":250.5}`)
	require.NoError(t, h.Handle(context.Background(), payload))

	assert.Equal(t, "A deal worth $250.5 was just closed at Unknown Company.", pusher.body)
}

func TestDealWonInsertFailureDoesNotAbortFanOut(t *testing.T) {
	store := &fakeNotificationStore{
		admins:     []string{"admin-1", "admin-2", "admin-3"},
		failInsert: map[string]error{"admin-2": errors.New("constraint violation")},
	}
	pusher := &fakePusher{}
	h := NewDealWonHandler(store, pusher, logger.NewNop().Logger)

	payload := []byte(`{"dealId":"d-1","value":100,"companyName":"Acme Corp"}`)
	require.NoError(t, h.Handle(context.Background(), payload))

	// Only users with a persisted row get a push.
	assert.ElementsMatch(t, []string{"admin-1", "admin-3"}, insertedUserIDs(store.inserted))
	assert.ElementsMatch(t, []string{"admin-1", "admin-3"}, pusher.userIDs)
}

func TestDealWonRecipientLookupFailureIsRetryable(t *testing.T) {
	store := &fakeNotificationStore{adminsErr: errors.New("connection refused")}
	h := NewDealWonHandler(store, &fakePusher{}, logger.NewNop().Logger)

	err := h.Handle(context.Background(), []byte(`{"dealId":"d-1","value":100}`))
	require.Error(t, err)
}

func TestDealWonInvalidPayload(t *testing.T) {
	h := NewDealWonHandler(&fakeNotificationStore{}, &fakePusher{}, logger.NewNop().Logger)
	assert.Error(t, h.Handle(context.Background(), []byte(`{"value":"not a number"}`)))
}

func TestTaskAssignedNotifiesAssignee(t *testing.T) {
	store := &fakeNotificationStore{names: map[string]string{"mgr-1": "Alice Johnson"}}
	pusher := &fakePusher{}
	h := NewTaskAssignedHandler(store, pusher, logger.NewNop().Logger)

	payload := []byte(`{"taskId":"t-1","assignedToId":"rep-1","assignedById":"mgr-1","title":"Call the customer"}`)
	require.NoError(t, h.Handle(context.Background(), payload))

	require.Len(t, store.inserted, 1)
	n := store.inserted[0]
	assert.Equal(t, "rep-1", n.UserID)
	assert.Equal(t, "task_assigned", n.Type)
	assert.Equal(t, PriorityMedium, n.Priority)
	assert.Equal(t, "New Task Assigned", n.Title)
	assert.Equal(t, "Alice Johnson assigned you a task: Call the customer", n.Message)

	assert.Equal(t, []string{"rep-1"}, pusher.userIDs)
}

func TestTaskAssignedSelfAssignmentIsNoOp(t *testing.T) {
	store := &fakeNotificationStore{}
	pusher := &fakePusher{}
	h := NewTaskAssignedHandler(store, pusher, logger.NewNop().Logger)

	payload := []byte(`{"taskId":"t-1","assignedToId":"rep-1","assignedById":"rep-1","title":"Follow up"}`)
	require.NoError(t, h.Handle(context.Background(), payload))

	assert.Empty(t, store.inserted)
	assert.Zero(t, pusher.calls)
}

func TestTaskAssignedMissingAssigneeIsDropped(t *testing.T) {
	store := &fakeNotificationStore{}
	pusher := &fakePusher{}
	h := NewTaskAssignedHandler(store, pusher, logger.NewNop().Logger)

	payload := []byte(`{"taskId":"t-1","assignedById":"mgr-1","title":"Follow up"}`)
	require.NoError(t, h.Handle(context.Background(), payload))

	assert.Empty(t, store.inserted)
	assert.Zero(t, pusher.calls)
}

func TestTaskAssignedUnknownAssignerFallback(t *testing.T) {
	store := &fakeNotificationStore{nameErr: errors.New("not found")}
	pusher := &fakePusher{}
	h := NewTaskAssignedHandler(store, pusher, logger.NewNop().Logger)

	payload := []byte(`{"taskId":"t-1","assignedToId":"rep-1","assignedById":"mgr-1","title":"Follow up"}`)
	require.NoError(t, h.Handle(context.Background(), payload))

	require.Len(t, store.inserted, 1)
	assert.Equal(t, "Someone assigned you a task: Follow up", store.inserted[0].Message)
}

func TestTaskAssignedInsertFailurePropagates(t *testing.T) {
	store := &fakeNotificationStore{
		failInsert: map[string]error{"rep-1": errors.New("write timeout")},
	}
	pusher := &fakePusher{}
	h := NewTaskAssignedHandler(store, pusher, logger.NewNop().Logger)

	payload := []byte(`{"taskId":"t-1","assignedToId":"rep-1","assignedById":"mgr-1","title":"Follow up"}`)
	require.Error(t, h.Handle(context.Background(), payload))
	assert.Zero(t, pusher.calls)
}

func TestLeadConvertedNotifiesAdmins(t *testing.T) {
	store := &fakeNotificationStore{admins: []string{"admin-1", "admin-2"}}
	pusher := &fakePusher{}
	h := NewLeadConvertedHandler(store, pusher, logger.NewNop().Logger)

	payload := []byte(`{"leadId":"l-1","contactId":"c-1","performerId":"rep-1"}`)
	require.NoError(t, h.Handle(context.Background(), payload))

	assert.ElementsMatch(t, []string{"admin-1", "admin-2"}, insertedUserIDs(store.inserted))
	for _, n := range store.inserted {
		assert.Equal(t, "lead_converted", n.Type)
		assert.Equal(t, PriorityMedium, n.Priority)
		assert.Equal(t, "contact", n.RelatedType)
		assert.Equal(t, "c-1", n.RelatedID)
	}

	assert.Equal(t, "Lead Converted", pusher.title)
	assert.Equal(t, map[string]string{
		"type":      "lead_converted",
		"leadId":    "l-1",
		"contactId": "c-1",
	}, pusher.data)
}

func TestLeadConvertedNoAdminsIsNoOp(t *testing.T) {
	store := &fakeNotificationStore{}
	pusher := &fakePusher{}
	h := NewLeadConvertedHandler(store, pusher, logger.NewNop().Logger)

	require.NoError(t, h.Handle(context.Background(), []byte(`{"leadId":"l-1","contactId":"c-1"}`)))
	assert.Empty(t, store.inserted)
	assert.Zero(t, pusher.calls)
}
