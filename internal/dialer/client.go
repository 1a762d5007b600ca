// Package dialer talks to the JustCall-style telephony provider that
// places calls and issues remote session handles.
package dialer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const defaultBaseURL = "https://api.justcall.io/v1"

// APIError is a non-2xx response from the provider.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("dialer API error: status %d", e.StatusCode)
	}
	return fmt.Sprintf("dialer API error: status %d: %s", e.StatusCode, e.Message)
}

// Client is a thin REST client for session create/terminate.
type Client struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

type Option func(*Client)

// WithBaseURL overrides the provider endpoint, used by tests.
func WithBaseURL(url string) Option {
	return func(c *Client) {
		c.baseURL = strings.TrimRight(url, "/")
	}
}

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

func NewClient(apiKey string, opts ...Option) *Client {
	c := &Client{
		apiKey:     apiKey,
		baseURL:    defaultBaseURL,
		httpClient: &http.Client{Timeout: 15 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type createRequest struct {
	RecordingEnabled bool   `json:"recording_enabled"`
	WebhookURL       string `json:"webhook_url"`
}

type createResponse struct {
	SessionID string `json:"session_id"`
}

// CreateSession opens a remote dialer session with recording enabled
// and the given webhook callback URL. A response without a session
// identifier is a hard failure.
func (c *Client) CreateSession(ctx context.Context, webhookURL string) (string, error) {
	body, err := json.Marshal(createRequest{RecordingEnabled: true, WebhookURL: webhookURL})
	if err != nil {
		return "", fmt.Errorf("encode session create request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/calls/init", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build session create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("session create request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", &APIError{StatusCode: resp.StatusCode, Message: readErrorMessage(resp.Body)}
	}

	var created createResponse
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
		return "", fmt.Errorf("decode session create response: %w", err)
	}
	if strings.TrimSpace(created.SessionID) == "" {
		return "", fmt.Errorf("dialer returned no session id")
	}

	return created.SessionID, nil
}

// EndSession terminates the remote session. Callers treat failures as
// log-only: the local session must still reach its terminal state.
func (c *Client) EndSession(ctx context.Context, sessionID string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/calls/"+sessionID+"/end", nil)
	if err != nil {
		return fmt.Errorf("build session end request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("session end request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &APIError{StatusCode: resp.StatusCode, Message: readErrorMessage(resp.Body)}
	}

	return nil
}

func readErrorMessage(r io.Reader) string {
	data, err := io.ReadAll(io.LimitReader(r, 4096))
	if err != nil {
		return ""
	}

	var payload struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if err := json.Unmarshal(data, &payload); err == nil {
		if payload.Message != "" {
			return payload.Message
		}
		if payload.Error != "" {
			return payload.Error
		}
	}

	return strings.TrimSpace(string(data))
}
