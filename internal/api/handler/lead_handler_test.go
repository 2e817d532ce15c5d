package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/leadflow/crm-backend/internal/api/domain"
	"github.com/leadflow/crm-backend/internal/api/model"
	"github.com/leadflow/crm-backend/internal/queue"
	"github.com/leadflow/crm-backend/shared/logger"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeLeadStorage struct {
	lead         *model.Lead
	getErr       error
	result       *model.ConversionResult
	convertErr   error
	convertCalls int
}

func (f *fakeLeadStorage) GetLead(ctx context.Context, leadID string) (*model.Lead, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	return f.lead, nil
}

func (f *fakeLeadStorage) ConvertLead(ctx context.Context, leadID string) (*model.ConversionResult, error) {
	f.convertCalls++
	if f.convertErr != nil {
		return nil, f.convertErr
	}
	return f.result, nil
}

type fakeEventQueue struct {
	eventType queue.EventType
	payload   interface{}
	calls     int
	err       error
}

func (f *fakeEventQueue) Enqueue(ctx context.Context, eventType queue.EventType, payload interface{}, opts ...queue.Option) (string, error) {
	f.calls++
	f.eventType = eventType
	f.payload = payload
	if f.err != nil {
		return "", f.err
	}
	return "job-1", nil
}

func newTestRouter(register func(*gin.Engine)) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	register(r)
	return r
}

func TestGetLeadRejectsInvalidUUID(t *testing.T) {
	h := NewLeadHandler(&Dependencies{Logger: logger.NewNop().Logger})
	r := newTestRouter(func(r *gin.Engine) {
		r.GET("/api/v1/leads/:lead_id", h.GetLead)
	})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/leads/not-a-uuid", nil)
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "valid UUID")
}

func TestConvertLeadRejectsInvalidUUID(t *testing.T) {
	h := NewLeadHandler(&Dependencies{Logger: logger.NewNop().Logger})
	r := newTestRouter(func(r *gin.Engine) {
		r.POST("/api/v1/leads/:lead_id/convert", h.ConvertLead)
	})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/leads/12345/convert", nil)
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

const testLeadID = "3f0e8a1c-9b2d-4e5f-8a7b-6c5d4e3f2a1b"

func convertRequest(t *testing.T, h *LeadHandler) *httptest.ResponseRecorder {
	t.Helper()
	r := newTestRouter(func(r *gin.Engine) {
		r.POST("/api/v1/leads/:lead_id/convert", h.ConvertLead)
	})
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/leads/"+testLeadID+"/convert", nil)
	r.ServeHTTP(w, req)
	return w
}

func TestConvertLeadSuccess(t *testing.T) {
	storage := &fakeLeadStorage{
		result: &model.ConversionResult{LeadID: testLeadID, ContactID: "contact-1"},
	}
	eventQueue := &fakeEventQueue{}
	h := NewLeadHandler(&Dependencies{
		Logger:      logger.NewNop().Logger,
		LeadStorage: storage,
		Queue:       eventQueue,
	})

	w := convertRequest(t, h)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "contact-1")
	require.Equal(t, 1, eventQueue.calls)
	assert.Equal(t, queue.EventLeadConverted, eventQueue.eventType)
}

func TestConvertLeadNotFound(t *testing.T) {
	storage := &fakeLeadStorage{convertErr: domain.ErrLeadNotFound}
	eventQueue := &fakeEventQueue{}
	h := NewLeadHandler(&Dependencies{
		Logger:      logger.NewNop().Logger,
		LeadStorage: storage,
		Queue:       eventQueue,
	})

	w := convertRequest(t, h)

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Zero(t, eventQueue.calls)
}

func TestConvertLeadAlreadyConverted(t *testing.T) {
	// A second conversion of the same lead must fail distinctly; this is
	// what keeps one lead from ever producing two contacts.
	storage := &fakeLeadStorage{convertErr: domain.ErrLeadAlreadyConverted}
	eventQueue := &fakeEventQueue{}
	h := NewLeadHandler(&Dependencies{
		Logger:      logger.NewNop().Logger,
		LeadStorage: storage,
		Queue:       eventQueue,
	})

	w := convertRequest(t, h)

	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Zero(t, eventQueue.calls)
}

func TestConvertLeadSucceedsWhenEnqueueFails(t *testing.T) {
	// A queue outage must never fail a conversion that committed.
	storage := &fakeLeadStorage{
		result: &model.ConversionResult{LeadID: testLeadID, ContactID: "contact-1"},
	}
	eventQueue := &fakeEventQueue{err: queue.ErrQueueUnavailable}
	h := NewLeadHandler(&Dependencies{
		Logger:      logger.NewNop().Logger,
		LeadStorage: storage,
		Queue:       eventQueue,
	})

	w := convertRequest(t, h)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "contact-1")
	assert.Equal(t, 1, storage.convertCalls)
}

func TestGetLeadNotFound(t *testing.T) {
	storage := &fakeLeadStorage{getErr: domain.ErrLeadNotFound}
	h := NewLeadHandler(&Dependencies{
		Logger:      logger.NewNop().Logger,
		LeadStorage: storage,
	})
	r := newTestRouter(func(r *gin.Engine) {
		r.GET("/api/v1/leads/:lead_id", h.GetLead)
	})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/leads/"+testLeadID, nil)
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestReplayJobRejectsInvalidUUID(t *testing.T) {
	h := NewJobHandler(&Dependencies{Logger: logger.NewNop().Logger})
	r := newTestRouter(func(r *gin.Engine) {
		r.POST("/api/v1/jobs/:job_id/replay", h.ReplayJob)
	})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/jobs/not-a-uuid/replay", nil)
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}
