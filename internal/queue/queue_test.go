package queue

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/leadflow/crm-backend/shared/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeJobStore struct {
	inserted  []*Job
	deferred  []string
	insertErr error
	deferErr  error
}

func (f *fakeJobStore) InsertJob(ctx context.Context, job *Job) error {
	if f.insertErr != nil {
		return f.insertErr
	}
	f.inserted = append(f.inserted, job)
	return nil
}

func (f *fakeJobStore) DeferJob(ctx context.Context, jobID string) error {
	if f.deferErr != nil {
		return f.deferErr
	}
	f.deferred = append(f.deferred, jobID)
	return nil
}

type fakePublisher struct {
	published [][]byte
	err       error
}

func (f *fakePublisher) Publish(ctx context.Context, body []byte, contentType string) error {
	if f.err != nil {
		return f.err
	}
	f.published = append(f.published, body)
	return nil
}

func TestRetryDelay(t *testing.T) {
	tests := []struct {
		name     string
		attempts int
		expected time.Duration
	}{
		{name: "first failure", attempts: 1, expected: time.Second},
		{name: "second failure", attempts: 2, expected: 2 * time.Second},
		{name: "third failure", attempts: 3, expected: 4 * time.Second},
		{name: "zero attempts treated as one", attempts: 0, expected: time.Second},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, RetryDelay(time.Second, tt.attempts))
		})
	}
}

func TestRetryDelayCapped(t *testing.T) {
	// Absurd attempt counts must not overflow the shift.
	huge := RetryDelay(time.Second, 1000)
	assert.Equal(t, time.Second<<16, huge)
	assert.Positive(t, huge)
}

func TestEnqueuePublishesImmediately(t *testing.T) {
	store := &fakeJobStore{}
	publisher := &fakePublisher{}
	q := NewQueue(store, publisher, 3, logger.NewNop().Logger)

	jobID, err := q.Enqueue(context.Background(), EventDealWon, map[string]string{"dealId": "d-1"})
	require.NoError(t, err)
	require.NotEmpty(t, jobID)

	require.Len(t, store.inserted, 1)
	job := store.inserted[0]
	assert.Equal(t, jobID, job.JobID)
	assert.Equal(t, EventDealWon, job.EventType)
	assert.Equal(t, JobStatusPending, job.Status)
	assert.Equal(t, 3, job.MaxAttempts)
	assert.JSONEq(t, `{"dealId":"d-1"}`, job.Payload)

	require.Len(t, publisher.published, 1)
	var msg JobMessage
	require.NoError(t, json.Unmarshal(publisher.published[0], &msg))
	assert.Equal(t, jobID, msg.JobID)
}

func TestEnqueueInsertFailure(t *testing.T) {
	store := &fakeJobStore{insertErr: errors.New("connection refused")}
	publisher := &fakePublisher{}
	q := NewQueue(store, publisher, 3, logger.NewNop().Logger)

	_, err := q.Enqueue(context.Background(), EventTaskAssigned, map[string]string{"taskId": "t-1"})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrQueueUnavailable)
	assert.Empty(t, publisher.published)
}

func TestEnqueuePublishFailureDefersToScheduler(t *testing.T) {
	store := &fakeJobStore{}
	publisher := &fakePublisher{err: errors.New("channel closed")}
	q := NewQueue(store, publisher, 3, logger.NewNop().Logger)

	jobID, err := q.Enqueue(context.Background(), EventLeadConverted, map[string]string{"leadId": "l-1"})
	require.NoError(t, err)

	require.Len(t, store.deferred, 1)
	assert.Equal(t, jobID, store.deferred[0])
}

func TestEnqueueDelayedSkipsPublish(t *testing.T) {
	store := &fakeJobStore{}
	publisher := &fakePublisher{}
	q := NewQueue(store, publisher, 3, logger.NewNop().Logger)

	before := time.Now()
	_, err := q.Enqueue(context.Background(), EventCheckTaskEscalation,
		map[string]string{"taskId": "t-2"}, WithDelay(time.Hour))
	require.NoError(t, err)

	require.Len(t, store.inserted, 1)
	job := store.inserted[0]
	assert.Equal(t, JobStatusScheduled, job.Status)
	assert.True(t, job.NextRunAt.After(before.Add(59*time.Minute)))
	assert.Empty(t, publisher.published)
	assert.Empty(t, store.deferred)
}

func TestEnqueueWithMaxAttempts(t *testing.T) {
	store := &fakeJobStore{}
	q := NewQueue(store, &fakePublisher{}, 3, logger.NewNop().Logger)

	_, err := q.Enqueue(context.Background(), EventDealWon,
		map[string]string{"dealId": "d-2"}, WithMaxAttempts(7))
	require.NoError(t, err)

	require.Len(t, store.inserted, 1)
	assert.Equal(t, 7, store.inserted[0].MaxAttempts)
}
