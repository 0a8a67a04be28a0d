// Package client is a small Go SDK for the gateway's HTTP API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/upb/llm-gateway/services/providers"
)

// DefaultTimeout bounds each API call when the caller supplies no client.
const DefaultTimeout = 2 * time.Minute

// Client talks to a running gateway instance.
type Client struct {
	baseURL    string
	clientID   string
	httpClient *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithClientID sets the identity sent for rate limiting.
func WithClientID(id string) Option {
	return func(c *Client) { c.clientID = id }
}

// New creates a Client for the gateway at baseURL.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: DefaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// CompletionRequest is the body for the completion endpoints.
type CompletionRequest struct {
	Messages     []providers.Message `json:"messages"`
	Model        string              `json:"model,omitempty"`
	SystemPrompt string              `json:"system_prompt,omitempty"`
	Temperature  *float64            `json:"temperature,omitempty"`
	MaxTokens    int                 `json:"max_tokens,omitempty"`
	TaskType     string              `json:"task_type,omitempty"`
}

// Status mirrors the gateway's status report.
type Status struct {
	Status          string          `json:"status"`
	DefaultProvider string          `json:"default_provider"`
	FallbackChain   []string        `json:"fallback_chain"`
	SmartRouting    bool            `json:"smart_routing"`
	Providers       map[string]bool `json:"providers"`
}

// APIError is a non-2xx response from the gateway.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
}

// Error implements the error interface.
func (e *APIError) Error() string {
	return fmt.Sprintf("gateway returned %d (%s): %s", e.StatusCode, e.Code, e.Message)
}

// envelope matches the gateway's response wrapper.
type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// Complete performs a chat completion.
func (c *Client) Complete(ctx context.Context, req CompletionRequest) (*providers.ChatResponse, error) {
	var resp providers.ChatResponse
	if err := c.do(ctx, http.MethodPost, "/v1/chat/completions", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// TaskComplete performs a task-routed completion. The task type must be
// one the gateway knows.
func (c *Client) TaskComplete(ctx context.Context, req CompletionRequest) (*providers.ChatResponse, error) {
	var resp providers.ChatResponse
	if err := c.do(ctx, http.MethodPost, "/v1/task/completions", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// GetStatus fetches the gateway's routing state and provider availability.
func (c *Client) GetStatus(ctx context.Context) (*Status, error) {
	var st Status
	if err := c.do(ctx, http.MethodGet, "/v1/status", nil, &st); err != nil {
		return nil, err
	}
	return &st, nil
}

// ListModels returns the models each provider serves.
func (c *Client) ListModels(ctx context.Context) (map[string][]string, error) {
	var resp struct {
		Models map[string][]string `json:"models"`
	}
	if err := c.do(ctx, http.MethodGet, "/v1/models", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Models, nil
}

// do performs one API call and decodes the envelope.
func (c *Client) do(ctx context.Context, method, path string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.clientID != "" {
		req.Header.Set("X-Client-ID", c.clientID)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	if !env.Success {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		if env.Error != nil {
			apiErr.Code = env.Error.Code
			apiErr.Message = env.Error.Message
		}
		return apiErr
	}

	if out != nil && env.Data != nil {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return fmt.Errorf("failed to decode response data: %w", err)
		}
	}
	return nil
}
