package fcm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/leadflow/crm-backend/internal/push"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func staticToken(token string) TokenSource {
	return TokenSourceFunc(func(ctx context.Context) (string, error) {
		return token, nil
	})
}

func TestSendSuccess(t *testing.T) {
	var gotPath, gotAuth string
	var gotReq sendRequest

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotReq))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := NewClient("my-project", staticToken("secret"), WithBaseURL(srv.URL))
	err := c.Send(context.Background(), "tok-1", "Title", "Body", map[string]string{"type": "deal_won"})
	require.NoError(t, err)

	assert.Equal(t, "/v1/projects/my-project/messages:send", gotPath)
	assert.Equal(t, "Bearer secret", gotAuth)
	assert.Equal(t, "tok-1", gotReq.Message.Token)
	assert.Equal(t, "Title", gotReq.Message.Notification.Title)
	assert.Equal(t, "deal_won", gotReq.Message.Data["type"])
	assert.Equal(t, "FLUTTER_NOTIFICATION_CLICK", gotReq.Message.Data["click_action"])
}

func TestSendUnregisteredToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{
			"error": {
				"code": 404,
				"status": "NOT_FOUND",
				"message": "Requested entity was not found.",
				"details": [{"@type": "type.googleapis.com/google.firebase.fcm.v1.FcmError", "errorCode": "UNREGISTERED"}]
			}
		}`))
	}))
	defer srv.Close()

	c := NewClient("my-project", staticToken("secret"), WithBaseURL(srv.URL))
	err := c.Send(context.Background(), "tok-dead", "Title", "Body", nil)
	assert.ErrorIs(t, err, push.ErrTokenNotRegistered)
}

func TestSendInvalidArgumentKeepsToken(t *testing.T) {
	// A malformed request (oversized data, bad field) is not evidence the
	// token is gone; it must not trigger token cleanup.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{
			"error": {
				"code": 400,
				"status": "INVALID_ARGUMENT",
				"message": "Request contains an invalid argument.",
				"details": [{"@type": "type.googleapis.com/google.firebase.fcm.v1.FcmError", "errorCode": "INVALID_ARGUMENT"}]
			}
		}`))
	}))
	defer srv.Close()

	c := NewClient("my-project", staticToken("secret"), WithBaseURL(srv.URL))
	err := c.Send(context.Background(), "tok-1", "Title", "Body", nil)
	require.Error(t, err)
	assert.NotErrorIs(t, err, push.ErrTokenNotRegistered)
}

func TestSendTransientFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte(`{"error": {"code": 503, "status": "UNAVAILABLE", "message": "try later"}}`))
	}))
	defer srv.Close()

	c := NewClient("my-project", staticToken("secret"), WithBaseURL(srv.URL))
	err := c.Send(context.Background(), "tok-1", "Title", "Body", nil)
	require.Error(t, err)
	assert.NotErrorIs(t, err, push.ErrTokenNotRegistered)
}

func TestSendTokenSourceFailure(t *testing.T) {
	tokenErr := errors.New("service account unavailable")
	source := TokenSourceFunc(func(ctx context.Context) (string, error) {
		return "", tokenErr
	})

	c := NewClient("my-project", source)
	err := c.Send(context.Background(), "tok-1", "Title", "Body", nil)
	assert.ErrorIs(t, err, tokenErr)
}
