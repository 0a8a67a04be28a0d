package openrouter

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/upb/llm-gateway/services/providers"
	"go.uber.org/zap"
)

func testAdapter(t *testing.T, id string, handler http.HandlerFunc) *Adapter {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return New(providers.ProviderConfig{
		ID:      id,
		APIKey:  "sk-test",
		BaseURL: srv.URL,
	}, zap.NewNop())
}

func TestChatCompletion(t *testing.T) {
	ctx := context.Background()
	req := &providers.ChatRequest{
		Messages: []providers.Message{{Role: providers.RoleUser, Content: "hi"}},
	}

	t.Run("success", func(t *testing.T) {
		adapter := testAdapter(t, "openrouter", func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, http.MethodPost, r.Method)
			assert.Equal(t, "/chat/completions", r.URL.Path)
			assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))

			var wire wireChatRequest
			require.NoError(t, json.NewDecoder(r.Body).Decode(&wire))
			// Empty request model falls back to the alias default.
			assert.Equal(t, "openai/gpt-4o-mini", wire.Model)
			assert.False(t, wire.Stream)

			_, _ = fmt.Fprint(w, `{
				"id": "gen-1",
				"model": "openai/gpt-4o-mini",
				"choices": [{"message": {"role": "assistant", "content": "hello"}, "finish_reason": "stop"}],
				"usage": {"prompt_tokens": 5, "completion_tokens": 2, "total_tokens": 7}
			}`)
		})

		resp, err := adapter.ChatCompletion(ctx, req)
		require.NoError(t, err)
		assert.Equal(t, "hello", resp.Content)
		assert.Equal(t, "openai/gpt-4o-mini", resp.Model)
		assert.Equal(t, "openrouter", resp.Provider)
		require.NotNil(t, resp.Usage)
		assert.Equal(t, 7, resp.Usage.TotalTokens)
		assert.NotEmpty(t, resp.Raw)
	})

	t.Run("system prompt is synthesized into the wire messages", func(t *testing.T) {
		adapter := testAdapter(t, "openrouter", func(w http.ResponseWriter, r *http.Request) {
			var wire wireChatRequest
			require.NoError(t, json.NewDecoder(r.Body).Decode(&wire))
			require.Len(t, wire.Messages, 2)
			assert.Equal(t, providers.RoleSystem, wire.Messages[0].Role)
			assert.Equal(t, "be brief", wire.Messages[0].Content)

			_, _ = fmt.Fprint(w, `{"model":"m","choices":[{"message":{"role":"assistant","content":"ok"}}]}`)
		})

		_, err := adapter.ChatCompletion(ctx, &providers.ChatRequest{
			SystemPrompt: "be brief",
			Messages:     []providers.Message{{Role: providers.RoleUser, Content: "hi"}},
		})
		require.NoError(t, err)
	})

	t.Run("missing API key fails without a request", func(t *testing.T) {
		adapter := New(providers.ProviderConfig{ID: "openrouter"}, zap.NewNop())

		_, err := adapter.ChatCompletion(ctx, req)
		var provErr *providers.ProviderError
		require.ErrorAs(t, err, &provErr)
		assert.Equal(t, "openrouter", provErr.Provider)
		assert.Contains(t, provErr.Message, "API key")
	})

	t.Run("backend error surfaces status and message", func(t *testing.T) {
		adapter := testAdapter(t, "openrouter", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusTooManyRequests)
			_, _ = fmt.Fprint(w, `{"error": {"message": "rate limited upstream"}}`)
		})

		_, err := adapter.ChatCompletion(ctx, req)
		var provErr *providers.ProviderError
		require.ErrorAs(t, err, &provErr)
		assert.Equal(t, http.StatusTooManyRequests, provErr.StatusCode)
		assert.Contains(t, provErr.Message, "rate limited upstream")
	})

	t.Run("empty choices is an error", func(t *testing.T) {
		adapter := testAdapter(t, "openrouter", func(w http.ResponseWriter, r *http.Request) {
			_, _ = fmt.Fprint(w, `{"model":"m","choices":[]}`)
		})

		_, err := adapter.ChatCompletion(ctx, req)
		var provErr *providers.ProviderError
		require.ErrorAs(t, err, &provErr)
		assert.Contains(t, provErr.Message, "no choices")
	})
}

func TestChatCompletionStream(t *testing.T) {
	ctx := context.Background()
	req := &providers.ChatRequest{
		Messages: []providers.Message{{Role: providers.RoleUser, Content: "hi"}},
	}

	t.Run("parses SSE deltas until DONE", func(t *testing.T) {
		adapter := testAdapter(t, "openrouter", func(w http.ResponseWriter, r *http.Request) {
			var wire wireChatRequest
			require.NoError(t, json.NewDecoder(r.Body).Decode(&wire))
			assert.True(t, wire.Stream)
			assert.Equal(t, "text/event-stream", r.Header.Get("Accept"))

			w.Header().Set("Content-Type", "text/event-stream")
			_, _ = fmt.Fprint(w, "data: {\"choices\":[{\"delta\":{\"content\":\"Hel\"}}]}\n\n")
			_, _ = fmt.Fprint(w, ": keepalive comment\n\n")
			_, _ = fmt.Fprint(w, "data: {\"choices\":[{\"delta\":{\"content\":\"lo\"}}]}\n\n")
			_, _ = fmt.Fprint(w, "data: {\"choices\":[{\"delta\":{},\"finish_reason\":\"stop\"}]}\n\n")
			_, _ = fmt.Fprint(w, "data: [DONE]\n\n")
		})

		stream, err := adapter.ChatCompletionStream(ctx, req)
		require.NoError(t, err)
		defer stream.Close()

		var contents []string
		for {
			chunk, err := stream.Recv()
			require.NoError(t, err)
			if chunk.Done {
				break
			}
			contents = append(contents, chunk.Content)
		}
		assert.Equal(t, []string{"Hel", "lo"}, contents)

		_, err = stream.Recv()
		assert.ErrorIs(t, err, io.EOF)
	})

	t.Run("stream ending without DONE yields EOF", func(t *testing.T) {
		adapter := testAdapter(t, "openrouter", func(w http.ResponseWriter, r *http.Request) {
			_, _ = fmt.Fprint(w, "data: {\"choices\":[{\"delta\":{\"content\":\"partial\"}}]}\n\n")
		})

		stream, err := adapter.ChatCompletionStream(ctx, req)
		require.NoError(t, err)
		defer stream.Close()

		chunk, err := stream.Recv()
		require.NoError(t, err)
		assert.Equal(t, "partial", chunk.Content)

		_, err = stream.Recv()
		assert.ErrorIs(t, err, io.EOF)
	})

	t.Run("malformed event fails the stream", func(t *testing.T) {
		adapter := testAdapter(t, "openrouter", func(w http.ResponseWriter, r *http.Request) {
			_, _ = fmt.Fprint(w, "data: {not json}\n\n")
		})

		stream, err := adapter.ChatCompletionStream(ctx, req)
		require.NoError(t, err)
		defer stream.Close()

		_, err = stream.Recv()
		var provErr *providers.ProviderError
		require.ErrorAs(t, err, &provErr)
		assert.Contains(t, provErr.Message, "decode")
	})

	t.Run("non-200 open fails with a provider error", func(t *testing.T) {
		adapter := testAdapter(t, "openrouter", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = fmt.Fprint(w, `{"error":{"message":"bad key"}}`)
		})

		_, err := adapter.ChatCompletionStream(ctx, req)
		var provErr *providers.ProviderError
		require.ErrorAs(t, err, &provErr)
		assert.Equal(t, http.StatusUnauthorized, provErr.StatusCode)
	})
}

func TestIsAvailable(t *testing.T) {
	ctx := context.Background()

	t.Run("reachable backend", func(t *testing.T) {
		adapter := testAdapter(t, "openrouter", func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/models", r.URL.Path)
			_, _ = fmt.Fprint(w, `{"data":[]}`)
		})
		assert.True(t, adapter.IsAvailable(ctx))
	})

	t.Run("failing backend", func(t *testing.T) {
		adapter := testAdapter(t, "openrouter", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		})
		assert.False(t, adapter.IsAvailable(ctx))
	})

	t.Run("unreachable backend", func(t *testing.T) {
		adapter := New(providers.ProviderConfig{
			ID:      "openrouter",
			APIKey:  "sk-test",
			BaseURL: "http://127.0.0.1:1",
		}, zap.NewNop())
		assert.False(t, adapter.IsAvailable(ctx))
	})
}

func TestListModels(t *testing.T) {
	ctx := context.Background()

	t.Run("enumerates from the backend", func(t *testing.T) {
		adapter := testAdapter(t, "openrouter", func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/models", r.URL.Path)
			_, _ = fmt.Fprint(w, `{"data":[{"id":"openai/gpt-4o"},{"id":"openai/gpt-4o-mini"}]}`)
		})

		models := adapter.ListModels(ctx)
		assert.Equal(t, []string{"openai/gpt-4o", "openai/gpt-4o-mini"}, models)
	})

	t.Run("enumeration failure returns nil", func(t *testing.T) {
		adapter := testAdapter(t, "openrouter", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
		})
		assert.Nil(t, adapter.ListModels(ctx))
	})

	t.Run("together serves its curated list without a request", func(t *testing.T) {
		adapter := New(providers.ProviderConfig{ID: "together", APIKey: "sk-test"}, zap.NewNop())

		models := adapter.ListModels(ctx)
		assert.NotEmpty(t, models)
		assert.Contains(t, models, "mistralai/Mixtral-8x7B-Instruct-v0.1")
	})
}

func TestNewDefaults(t *testing.T) {
	t.Run("alias defaults fill empty fields", func(t *testing.T) {
		adapter := New(providers.ProviderConfig{ID: "groq", APIKey: "sk-test"}, zap.NewNop())
		assert.Equal(t, "https://api.groq.com/openai/v1", adapter.cfg.BaseURL)
		assert.Equal(t, "llama-3.1-70b-versatile", adapter.cfg.DefaultModel)
		assert.Equal(t, providers.FamilyOpenRouter, adapter.Family())
	})

	t.Run("explicit config wins over alias defaults", func(t *testing.T) {
		adapter := New(providers.ProviderConfig{
			ID:           "groq",
			APIKey:       "sk-test",
			BaseURL:      "http://proxy.internal",
			DefaultModel: "my-model",
		}, zap.NewNop())
		assert.Equal(t, "http://proxy.internal", adapter.cfg.BaseURL)
		assert.Equal(t, "my-model", adapter.cfg.DefaultModel)
	})
}

func TestProviderErrorUnwrap(t *testing.T) {
	cause := errors.New("timeout")
	err := providers.NewProviderError("openrouter", "request failed", 0, cause)
	assert.ErrorIs(t, err, cause)
}
