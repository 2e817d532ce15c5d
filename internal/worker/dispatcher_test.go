package worker

import (
	"context"
	"errors"
	"testing"

	"github.com/leadflow/crm-backend/internal/queue"
	"github.com/leadflow/crm-backend/shared/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeHandler struct {
	calls    int
	payloads [][]byte
	err      error
}

func (f *fakeHandler) Handle(ctx context.Context, payload []byte) error {
	f.calls++
	f.payloads = append(f.payloads, payload)
	return f.err
}

func TestDispatchRoutesByEventType(t *testing.T) {
	dealWon := &fakeHandler{}
	taskAssigned := &fakeHandler{}
	leadConverted := &fakeHandler{}
	d := NewDispatcher(dealWon, taskAssigned, leadConverted, logger.NewNop().Logger)

	tests := []struct {
		eventType queue.EventType
		handler   *fakeHandler
	}{
		{queue.EventDealWon, dealWon},
		{queue.EventTaskAssigned, taskAssigned},
		{queue.EventLeadConverted, leadConverted},
	}

	for _, tt := range tests {
		t.Run(string(tt.eventType), func(t *testing.T) {
			handled, err := d.Dispatch(context.Background(), tt.eventType, []byte(`{}`))
			require.NoError(t, err)
			assert.True(t, handled)
			assert.Equal(t, 1, tt.handler.calls)
		})
	}
}

func TestDispatchUnknownEventType(t *testing.T) {
	d := NewDispatcher(&fakeHandler{}, &fakeHandler{}, &fakeHandler{}, logger.NewNop().Logger)

	handled, err := d.Dispatch(context.Background(), queue.EventType("price_dropped"), []byte(`{}`))
	require.NoError(t, err)
	assert.False(t, handled)
}

func TestDispatchPropagatesHandlerError(t *testing.T) {
	handlerErr := errors.New("recipient lookup failed")
	d := NewDispatcher(&fakeHandler{err: handlerErr}, &fakeHandler{}, &fakeHandler{}, logger.NewNop().Logger)

	handled, err := d.Dispatch(context.Background(), queue.EventDealWon, []byte(`{}`))
	assert.True(t, handled)
	assert.ErrorIs(t, err, handlerErr)
}
