package providers

import (
	"context"
	"encoding/json"
)

// Family identifies the adapter implementation backing a provider id.
// Several provider ids are aliases of the same family, differing only in
// base URL and default model.
type Family string

const (
	// FamilyOpenRouter covers OpenAI-compatible hosted APIs (OpenRouter,
	// Groq, Together) behind a single adapter implementation.
	FamilyOpenRouter Family = "openrouter_like"

	// FamilyLocal covers local inference backends speaking the Ollama
	// chat protocol.
	FamilyLocal Family = "local_like"
)

// families maps every recognized provider id to its adapter family.
var families = map[string]Family{
	"openrouter": FamilyOpenRouter,
	"groq":       FamilyOpenRouter,
	"together":   FamilyOpenRouter,
	"ollama":     FamilyLocal,
	"local":      FamilyLocal,
}

// FamilyFor resolves a provider id (or alias) to its adapter family.
// The second return value is false for unrecognized ids.
func FamilyFor(id string) (Family, bool) {
	f, ok := families[id]
	return f, ok
}

// Message roles accepted on the wire.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message represents a single message in a conversation
type Message struct {
	// Role can be "system", "user", or "assistant"
	Role string `json:"role"`

	// Content is the message text
	Content string `json:"content"`
}

// ChatRequest represents a unified chat completion request
type ChatRequest struct {
	// Messages in the conversation
	Messages []Message `json:"messages"`

	// SystemPrompt, when set and no message carries the system role,
	// is synthesized into a leading system message
	SystemPrompt string `json:"system_prompt,omitempty"`

	// Model identifier; empty means the provider's default applies
	Model string `json:"model,omitempty"`

	// Temperature controls randomness (0.0 to 2.0)
	Temperature *float64 `json:"temperature,omitempty"`

	// MaxTokens limits the response length
	MaxTokens int `json:"max_tokens,omitempty"`

	// TaskType classifies the semantic intent ("summarization", ...)
	TaskType string `json:"task_type,omitempty"`

	// Metadata for tracking and logging
	Metadata map[string]string `json:"metadata,omitempty"`
}

// EffectiveMessages returns the message sequence the backend should see.
// When SystemPrompt is set and no existing message has the system role, a
// system message is synthesized and prepended. An existing system message
// is never overwritten.
func (r *ChatRequest) EffectiveMessages() []Message {
	if r.SystemPrompt == "" {
		return r.Messages
	}
	for _, m := range r.Messages {
		if m.Role == RoleSystem {
			return r.Messages
		}
	}
	out := make([]Message, 0, len(r.Messages)+1)
	out = append(out, Message{Role: RoleSystem, Content: r.SystemPrompt})
	return append(out, r.Messages...)
}

// Clone returns a shallow copy with its own message slice, so routing can
// resolve a model without mutating the caller's request.
func (r *ChatRequest) Clone() *ChatRequest {
	cp := *r
	cp.Messages = make([]Message, len(r.Messages))
	copy(cp.Messages, r.Messages)
	return &cp
}

// Usage represents token usage statistics
type Usage struct {
	// PromptTokens used in the request
	PromptTokens int `json:"prompt_tokens"`

	// CompletionTokens used in the response
	CompletionTokens int `json:"completion_tokens"`

	// TotalTokens is the sum of prompt and completion tokens
	TotalTokens int `json:"total_tokens"`
}

// ChatResponse represents a unified chat completion response
type ChatResponse struct {
	// Content is the generated text
	Content string `json:"content"`

	// Model that produced the completion
	Model string `json:"model"`

	// Provider that handled the request
	Provider string `json:"provider"`

	// Usage statistics, when the backend reports them
	Usage *Usage `json:"usage,omitempty"`

	// LatencyMs is wall-clock time from dispatch to completion
	LatencyMs int64 `json:"latency_ms"`

	// Raw is the unparsed backend payload, kept for diagnostics
	Raw json.RawMessage `json:"raw,omitempty"`
}

// StreamChunk is one increment of a streamed completion. The final chunk
// of a stream always has empty Content and Done=true.
type StreamChunk struct {
	Content string `json:"content"`
	Done    bool   `json:"done"`
}

// ChatStream is a pull-based sequence of completion chunks. Recv returns
// io.EOF after the terminal chunk has been delivered. A mid-stream failure
// is terminal: the stream must be restarted, not resumed.
type ChatStream interface {
	Recv() (StreamChunk, error)
	Close() error
}

// Provider represents a unified LLM provider interface
type Provider interface {
	// Name returns the configured provider id (e.g. "openrouter", "groq")
	Name() string

	// Family returns the adapter family serving this provider
	Family() Family

	// ChatCompletion performs a chat completion request
	ChatCompletion(ctx context.Context, req *ChatRequest) (*ChatResponse, error)

	// ChatCompletionStream performs a streaming chat completion
	ChatCompletionStream(ctx context.Context, req *ChatRequest) (ChatStream, error)

	// IsAvailable checks if the provider is currently reachable.
	// It never returns an error; failures collapse to false.
	IsAvailable(ctx context.Context) bool

	// ListModels returns the model identifiers this provider serves. It may
	// return a curated static list when the backend has no enumeration
	// endpoint, and an empty list when enumeration fails.
	ListModels(ctx context.Context) []string
}
