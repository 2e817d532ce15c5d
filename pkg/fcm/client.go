// Package fcm is a minimal client for the FCM HTTP v1 send endpoint.
package fcm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/leadflow/crm-backend/internal/push"
)

const defaultBaseURL = "https://fcm.googleapis.com"

// TokenSource supplies OAuth2 bearer tokens for the Firebase messaging
// scope. Credential plumbing (service accounts, metadata server) lives
// behind this interface.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// TokenSourceFunc adapts a function to the TokenSource interface.
type TokenSourceFunc func(ctx context.Context) (string, error)

// Token implements TokenSource.
func (f TokenSourceFunc) Token(ctx context.Context) (string, error) {
	return f(ctx)
}

// Client sends push messages through FCM. Implements push.Sender.
type Client struct {
	baseURL     string
	projectID   string
	tokenSource TokenSource
	httpClient  *http.Client
}

// Option configures the Client.
type Option func(*Client)

// WithBaseURL overrides the FCM endpoint. Used in tests.
func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		c.baseURL = baseURL
	}
}

// WithTimeout sets the HTTP request timeout.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		c.httpClient.Timeout = timeout
	}
}

// NewClient creates a new FCM client for the given project.
func NewClient(projectID string, tokenSource TokenSource, opts ...Option) *Client {
	client := &Client{
		baseURL:     defaultBaseURL,
		projectID:   projectID,
		tokenSource: tokenSource,
		httpClient:  &http.Client{Timeout: 10 * time.Second},
	}
	for _, opt := range opts {
		opt(client)
	}
	return client
}

type sendRequest struct {
	Message message `json:"message"`
}

type message struct {
	Token        string            `json:"token"`
	Notification notification      `json:"notification"`
	Data         map[string]string `json:"data,omitempty"`
}

type notification struct {
	Title string `json:"title"`
	Body  string `json:"body"`
}

type errorResponse struct {
	Error struct {
		Code    int    `json:"code"`
		Status  string `json:"status"`
		Message string `json:"message"`
		Details []struct {
			Type      string `json:"@type"`
			ErrorCode string `json:"errorCode"`
		} `json:"details"`
	} `json:"error"`
}

// Send delivers one push message to one device token. Tokens FCM reports
// as gone map to push.ErrTokenNotRegistered so the caller can clean up.
func (c *Client) Send(ctx context.Context, token, title, body string, data map[string]string) error {
	payload := sendRequest{
		Message: message{
			Token: token,
			Notification: notification{
				Title: title,
				Body:  body,
			},
			Data: withClickAction(data),
		},
	}

	reqBody, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal FCM request: %w", err)
	}

	bearer, err := c.tokenSource.Token(ctx)
	if err != nil {
		return fmt.Errorf("failed to get FCM access token: %w", err)
	}

	url := fmt.Sprintf("%s/v1/projects/%s/messages:send", c.baseURL, c.projectID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(reqBody))
	if err != nil {
		return fmt.Errorf("failed to create FCM request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+bearer)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("FCM request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusOK {
		return nil
	}

	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))

	var errResp errorResponse
	if err := json.Unmarshal(respBody, &errResp); err == nil && tokenGone(resp.StatusCode, &errResp) {
		return fmt.Errorf("%w: %s", push.ErrTokenNotRegistered, errResp.Error.Status)
	}

	return fmt.Errorf("FCM send failed with status %d: %s", resp.StatusCode, string(respBody))
}

// tokenGone reports whether the error means the token is permanently
// invalid rather than a transient failure. INVALID_ARGUMENT is excluded:
// FCM also returns it for malformed requests, and deleting a live token
// over a bad payload would silently unsubscribe the user.
func tokenGone(statusCode int, errResp *errorResponse) bool {
	for _, detail := range errResp.Error.Details {
		if detail.ErrorCode == "UNREGISTERED" {
			return true
		}
	}
	return statusCode == http.StatusNotFound && errResp.Error.Status == "NOT_FOUND"
}

// withClickAction copies data and adds the click_action key older Flutter
// clients require.
func withClickAction(data map[string]string) map[string]string {
	out := make(map[string]string, len(data)+1)
	for k, v := range data {
		out[k] = v
	}
	out["click_action"] = "FLUTTER_NOTIFICATION_CLICK"
	return out
}
