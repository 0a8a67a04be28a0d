package openrouter

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/upb/llm-gateway/services/providers"
	"go.uber.org/zap"
)

// aliasDefaults parameterizes the shared adapter per provider alias. All
// aliases speak the same OpenAI-compatible chat protocol; only endpoint,
// default model, and model enumeration differ.
type aliasDefaults struct {
	baseURL    string
	model      string
	modelsPath string   // empty when the alias has no enumeration endpoint
	curated    []string // static model list for aliases without enumeration
}

var aliases = map[string]aliasDefaults{
	"openrouter": {
		baseURL:    "https://openrouter.ai/api/v1",
		model:      "openai/gpt-4o-mini",
		modelsPath: "/models",
	},
	"groq": {
		baseURL:    "https://api.groq.com/openai/v1",
		model:      "llama-3.1-70b-versatile",
		modelsPath: "/models",
	},
	"together": {
		baseURL: "https://api.together.xyz/v1",
		model:   "meta-llama/Meta-Llama-3.1-70B-Instruct-Turbo",
		curated: []string{
			"meta-llama/Meta-Llama-3.1-70B-Instruct-Turbo",
			"meta-llama/Meta-Llama-3.1-8B-Instruct-Turbo",
			"mistralai/Mixtral-8x7B-Instruct-v0.1",
		},
	},
}

const defaultTimeout = 60 * time.Second

// Adapter implements providers.Provider for OpenAI-compatible hosted APIs.
// One adapter type serves every alias; the alias supplies endpoint and
// default model.
type Adapter struct {
	cfg        providers.ProviderConfig
	defaults   aliasDefaults
	httpClient *http.Client
	logger     *zap.Logger
}

// New creates an adapter for the given provider entry. Alias defaults fill
// any field the entry leaves empty.
func New(cfg providers.ProviderConfig, logger *zap.Logger) *Adapter {
	defaults := aliases[cfg.ID]
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaults.baseURL
	}
	if cfg.DefaultModel == "" {
		cfg.DefaultModel = defaults.model
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = defaultTimeout
	}
	return &Adapter{
		cfg:        cfg,
		defaults:   defaults,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		logger:     logger,
	}
}

// Name returns the configured provider id
func (a *Adapter) Name() string {
	return a.cfg.ID
}

// Family returns the adapter family
func (a *Adapter) Family() providers.Family {
	return providers.FamilyOpenRouter
}

// ChatCompletion performs a chat completion request
func (a *Adapter) ChatCompletion(ctx context.Context, req *providers.ChatRequest) (*providers.ChatResponse, error) {
	if a.cfg.APIKey == "" {
		return nil, providers.NewProviderError(a.Name(), "missing API key", 0, nil)
	}

	start := time.Now()
	respBody, status, err := a.post(ctx, "/chat/completions", a.buildWireRequest(req, false))
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return nil, providers.NewProviderError(a.Name(),
			fmt.Sprintf("chat completion failed: %s", errorText(respBody)), status, nil)
	}

	var wire wireChatResponse
	if err := json.Unmarshal(respBody, &wire); err != nil {
		return nil, providers.NewProviderError(a.Name(), "failed to decode response", status, err)
	}
	if len(wire.Choices) == 0 {
		return nil, providers.NewProviderError(a.Name(), "response contained no choices", status, nil)
	}

	resp := &providers.ChatResponse{
		Content:   wire.Choices[0].Message.Content,
		Model:     wire.Model,
		Provider:  a.Name(),
		LatencyMs: time.Since(start).Milliseconds(),
		Raw:       respBody,
	}
	if wire.Usage != nil {
		resp.Usage = &providers.Usage{
			PromptTokens:     wire.Usage.PromptTokens,
			CompletionTokens: wire.Usage.CompletionTokens,
			TotalTokens:      wire.Usage.TotalTokens,
		}
	}
	return resp, nil
}

// ChatCompletionStream performs a streaming chat completion over SSE.
func (a *Adapter) ChatCompletionStream(ctx context.Context, req *providers.ChatRequest) (providers.ChatStream, error) {
	if a.cfg.APIKey == "" {
		return nil, providers.NewProviderError(a.Name(), "missing API key", 0, nil)
	}

	body, err := json.Marshal(a.buildWireRequest(req, true))
	if err != nil {
		return nil, providers.NewProviderError(a.Name(), "failed to marshal request", 0, err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, a.cfg.BaseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, providers.NewProviderError(a.Name(), "failed to create request", 0, err)
	}
	a.setHeaders(httpReq)
	httpReq.Header.Set("Accept", "text/event-stream")

	httpResp, err := a.httpClient.Do(httpReq)
	if err != nil {
		return nil, providers.NewProviderError(a.Name(), "request failed", 0, err)
	}
	if httpResp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(httpResp.Body)
		httpResp.Body.Close()
		return nil, providers.NewProviderError(a.Name(),
			fmt.Sprintf("stream request failed: %s", errorText(respBody)), httpResp.StatusCode, nil)
	}
	return newSSEStream(a.Name(), httpResp.Body), nil
}

// IsAvailable checks whether the backend is reachable. Failures collapse
// to false.
func (a *Adapter) IsAvailable(ctx context.Context) bool {
	path := a.defaults.modelsPath
	if path == "" {
		path = "/models"
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, a.cfg.BaseURL+path, nil)
	if err != nil {
		return false
	}
	a.setHeaders(httpReq)

	resp, err := a.httpClient.Do(httpReq)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

// ListModels returns the backend's model list. Aliases without an
// enumeration endpoint return their curated list; enumeration failures
// return nil.
func (a *Adapter) ListModels(ctx context.Context) []string {
	if a.defaults.modelsPath == "" {
		return append([]string(nil), a.defaults.curated...)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, a.cfg.BaseURL+a.defaults.modelsPath, nil)
	if err != nil {
		return nil
	}
	a.setHeaders(httpReq)

	resp, err := a.httpClient.Do(httpReq)
	if err != nil {
		return nil
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil
	}

	var wire struct {
		Data []struct {
			ID string `json:"id"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&wire); err != nil {
		return nil
	}
	models := make([]string, 0, len(wire.Data))
	for _, m := range wire.Data {
		models = append(models, m.ID)
	}
	return models
}

func (a *Adapter) post(ctx context.Context, path string, payload any) ([]byte, int, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, 0, providers.NewProviderError(a.Name(), "failed to marshal request", 0, err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, a.cfg.BaseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, 0, providers.NewProviderError(a.Name(), "failed to create request", 0, err)
	}
	a.setHeaders(httpReq)

	httpResp, err := a.httpClient.Do(httpReq)
	if err != nil {
		return nil, 0, providers.NewProviderError(a.Name(), "request failed", 0, err)
	}
	defer httpResp.Body.Close()

	respBody, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, httpResp.StatusCode, providers.NewProviderError(a.Name(), "failed to read response", httpResp.StatusCode, err)
	}
	return respBody, httpResp.StatusCode, nil
}

func (a *Adapter) setHeaders(req *http.Request) {
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+a.cfg.APIKey)
}

func (a *Adapter) buildWireRequest(req *providers.ChatRequest, stream bool) *wireChatRequest {
	model := req.Model
	if model == "" {
		model = a.cfg.DefaultModel
	}

	messages := req.EffectiveMessages()
	wire := &wireChatRequest{
		Model:    model,
		Messages: make([]wireMessage, len(messages)),
		Stream:   stream,
	}
	for i, m := range messages {
		wire.Messages[i] = wireMessage{Role: m.Role, Content: m.Content}
	}
	if req.Temperature != nil {
		wire.Temperature = req.Temperature
	}
	if req.MaxTokens > 0 {
		wire.MaxTokens = &req.MaxTokens
	}
	return wire
}

// errorText extracts the backend's error message, falling back to the raw
// body.
func errorText(body []byte) string {
	var wire struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(body, &wire); err == nil && wire.Error.Message != "" {
		return wire.Error.Message
	}
	return string(body)
}

// Wire types for the OpenAI-compatible chat protocol.

type wireChatRequest struct {
	Model       string        `json:"model"`
	Messages    []wireMessage `json:"messages"`
	Temperature *float64      `json:"temperature,omitempty"`
	MaxTokens   *int          `json:"max_tokens,omitempty"`
	Stream      bool          `json:"stream,omitempty"`
}

type wireMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type wireChatResponse struct {
	ID      string `json:"id"`
	Model   string `json:"model"`
	Choices []struct {
		Message      wireMessage `json:"message"`
		FinishReason string      `json:"finish_reason"`
	} `json:"choices"`
	Usage *struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
}
