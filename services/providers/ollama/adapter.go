package ollama

import (
	"bufio"
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

const (
	defaultBaseURL = "http://localhost:11434"
	defaultModel   = "llama3.1"
	defaultTimeout = 120 * time.Second
)

// Adapter implements providers.Provider for local backends speaking the
// Ollama chat protocol. No credential is required.
type Adapter struct {
	cfg        providers.ProviderConfig
	httpClient *http.Client
	logger     *zap.Logger
}

// New creates an adapter for a local provider entry.
func New(cfg providers.ProviderConfig, logger *zap.Logger) *Adapter {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.DefaultModel == "" {
		cfg.DefaultModel = defaultModel
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = defaultTimeout
	}
	return &Adapter{
		cfg:        cfg,
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
	return providers.FamilyLocal
}

// ChatCompletion performs a chat completion request
func (a *Adapter) ChatCompletion(ctx context.Context, req *providers.ChatRequest) (*providers.ChatResponse, error) {
	start := time.Now()

	body, err := json.Marshal(a.buildWireRequest(req, false))
	if err != nil {
		return nil, providers.NewProviderError(a.Name(), "failed to marshal request", 0, err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, a.cfg.BaseURL+"/api/chat", bytes.NewReader(body))
	if err != nil {
		return nil, providers.NewProviderError(a.Name(), "failed to create request", 0, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	httpResp, err := a.httpClient.Do(httpReq)
	if err != nil {
		return nil, providers.NewProviderError(a.Name(), "request failed", 0, err)
	}
	defer httpResp.Body.Close()

	respBody, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, providers.NewProviderError(a.Name(), "failed to read response", httpResp.StatusCode, err)
	}
	if httpResp.StatusCode != http.StatusOK {
		return nil, providers.NewProviderError(a.Name(),
			fmt.Sprintf("chat failed: %s", string(respBody)), httpResp.StatusCode, nil)
	}

	var wire wireChatResponse
	if err := json.Unmarshal(respBody, &wire); err != nil {
		return nil, providers.NewProviderError(a.Name(), "failed to decode response", httpResp.StatusCode, err)
	}

	resp := &providers.ChatResponse{
		Content:   wire.Message.Content,
		Model:     wire.Model,
		Provider:  a.Name(),
		LatencyMs: time.Since(start).Milliseconds(),
		Raw:       respBody,
	}
	if wire.PromptEvalCount > 0 || wire.EvalCount > 0 {
		resp.Usage = &providers.Usage{
			PromptTokens:     wire.PromptEvalCount,
			CompletionTokens: wire.EvalCount,
			TotalTokens:      wire.PromptEvalCount + wire.EvalCount,
		}
	}
	return resp, nil
}

// ChatCompletionStream performs a streaming chat completion. Ollama streams
// newline-delimited JSON objects; the final object carries done=true.
func (a *Adapter) ChatCompletionStream(ctx context.Context, req *providers.ChatRequest) (providers.ChatStream, error) {
	body, err := json.Marshal(a.buildWireRequest(req, true))
	if err != nil {
		return nil, providers.NewProviderError(a.Name(), "failed to marshal request", 0, err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, a.cfg.BaseURL+"/api/chat", bytes.NewReader(body))
	if err != nil {
		return nil, providers.NewProviderError(a.Name(), "failed to create request", 0, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	httpResp, err := a.httpClient.Do(httpReq)
	if err != nil {
		return nil, providers.NewProviderError(a.Name(), "request failed", 0, err)
	}
	if httpResp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(httpResp.Body)
		httpResp.Body.Close()
		return nil, providers.NewProviderError(a.Name(),
			fmt.Sprintf("stream request failed: %s", string(respBody)), httpResp.StatusCode, nil)
	}
	return newNDJSONStream(a.Name(), httpResp.Body), nil
}

// IsAvailable checks whether the local backend is reachable. Failures
// collapse to false.
func (a *Adapter) IsAvailable(ctx context.Context) bool {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, a.cfg.BaseURL+"/api/tags", nil)
	if err != nil {
		return false
	}
	resp, err := a.httpClient.Do(httpReq)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

// ListModels enumerates locally installed models. Failures return nil.
func (a *Adapter) ListModels(ctx context.Context) []string {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, a.cfg.BaseURL+"/api/tags", nil)
	if err != nil {
		return nil
	}
	resp, err := a.httpClient.Do(httpReq)
	if err != nil {
		return nil
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil
	}

	var wire struct {
		Models []struct {
			Name string `json:"name"`
		} `json:"models"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&wire); err != nil {
		return nil
	}
	models := make([]string, 0, len(wire.Models))
	for _, m := range wire.Models {
		models = append(models, m.Name)
	}
	return models
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
	if req.Temperature != nil || req.MaxTokens > 0 {
		wire.Options = &wireOptions{}
		if req.Temperature != nil {
			wire.Options.Temperature = req.Temperature
		}
		if req.MaxTokens > 0 {
			wire.Options.NumPredict = &req.MaxTokens
		}
	}
	return wire
}

// ndjsonStream parses Ollama's newline-delimited JSON stream into chunks.
type ndjsonStream struct {
	provider string
	body     io.ReadCloser
	scanner  *bufio.Scanner
	done     bool
}

func newNDJSONStream(provider string, body io.ReadCloser) *ndjsonStream {
	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	return &ndjsonStream{
		provider: provider,
		body:     body,
		scanner:  scanner,
	}
}

// Recv returns the next content chunk; the backend's done=true object maps
// to the terminal chunk.
func (s *ndjsonStream) Recv() (providers.StreamChunk, error) {
	if s.done {
		return providers.StreamChunk{}, io.EOF
	}

	for s.scanner.Scan() {
		line := bytes.TrimSpace(s.scanner.Bytes())
		if len(line) == 0 {
			continue
		}

		var wire wireChatResponse
		if err := json.Unmarshal(line, &wire); err != nil {
			s.done = true
			return providers.StreamChunk{}, providers.NewProviderError(s.provider, "failed to decode stream object", 0, err)
		}
		if wire.Done {
			s.done = true
			return providers.StreamChunk{Content: wire.Message.Content, Done: true}, nil
		}
		if wire.Message.Content == "" {
			continue
		}
		return providers.StreamChunk{Content: wire.Message.Content}, nil
	}

	s.done = true
	if err := s.scanner.Err(); err != nil {
		return providers.StreamChunk{}, providers.NewProviderError(s.provider, "stream read failed", 0, err)
	}
	return providers.StreamChunk{}, io.EOF
}

// Close releases the underlying response body.
func (s *ndjsonStream) Close() error {
	s.done = true
	return s.body.Close()
}

// Wire types for the Ollama chat protocol.

type wireChatRequest struct {
	Model    string        `json:"model"`
	Messages []wireMessage `json:"messages"`
	Stream   bool          `json:"stream"`
	Options  *wireOptions  `json:"options,omitempty"`
}

type wireMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type wireOptions struct {
	Temperature *float64 `json:"temperature,omitempty"`
	NumPredict  *int     `json:"num_predict,omitempty"`
}

type wireChatResponse struct {
	Model           string      `json:"model"`
	Message         wireMessage `json:"message"`
	Done            bool        `json:"done"`
	PromptEvalCount int         `json:"prompt_eval_count"`
	EvalCount       int         `json:"eval_count"`
}
