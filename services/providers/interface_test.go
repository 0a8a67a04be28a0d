package providers

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFamilyFor(t *testing.T) {
	tests := []struct {
		id     string
		family Family
		known  bool
	}{
		{"openrouter", FamilyOpenRouter, true},
		{"groq", FamilyOpenRouter, true},
		{"together", FamilyOpenRouter, true},
		{"ollama", FamilyLocal, true},
		{"local", FamilyLocal, true},
		{"bedrock", "", false},
		{"", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.id, func(t *testing.T) {
			family, ok := FamilyFor(tt.id)
			assert.Equal(t, tt.known, ok)
			if tt.known {
				assert.Equal(t, tt.family, family)
			}
		})
	}
}

func TestEffectiveMessages(t *testing.T) {
	t.Run("no system prompt passes messages through", func(t *testing.T) {
		req := &ChatRequest{
			Messages: []Message{{Role: RoleUser, Content: "hi"}},
		}
		assert.Equal(t, req.Messages, req.EffectiveMessages())
	})

	t.Run("system prompt is prepended as a system message", func(t *testing.T) {
		req := &ChatRequest{
			SystemPrompt: "be brief",
			Messages:     []Message{{Role: RoleUser, Content: "hi"}},
		}

		msgs := req.EffectiveMessages()
		require.Len(t, msgs, 2)
		assert.Equal(t, Message{Role: RoleSystem, Content: "be brief"}, msgs[0])
		assert.Equal(t, Message{Role: RoleUser, Content: "hi"}, msgs[1])
		// The original request is untouched.
		assert.Len(t, req.Messages, 1)
	})

	t.Run("existing system message is never overwritten", func(t *testing.T) {
		req := &ChatRequest{
			SystemPrompt: "be brief",
			Messages: []Message{
				{Role: RoleSystem, Content: "be verbose"},
				{Role: RoleUser, Content: "hi"},
			},
		}

		msgs := req.EffectiveMessages()
		require.Len(t, msgs, 2)
		assert.Equal(t, "be verbose", msgs[0].Content)
	})
}

func TestChatRequestClone(t *testing.T) {
	temp := 0.7
	req := &ChatRequest{
		Messages:    []Message{{Role: RoleUser, Content: "hi"}},
		Model:       "m",
		Temperature: &temp,
		TaskType:    "summarization",
	}

	clone := req.Clone()
	clone.Model = "other"
	clone.Messages[0].Content = "changed"

	assert.Equal(t, "m", req.Model)
	assert.Equal(t, "hi", req.Messages[0].Content)
}

func TestProviderConfig(t *testing.T) {
	t.Run("enabled defaults to true", func(t *testing.T) {
		assert.True(t, ProviderConfig{ID: "openrouter"}.IsEnabled())
	})

	t.Run("explicit disable is honored", func(t *testing.T) {
		disabled := false
		assert.False(t, ProviderConfig{ID: "openrouter", Enabled: &disabled}.IsEnabled())
	})

	t.Run("clone is independent", func(t *testing.T) {
		enabled := true
		cfg := ProviderConfig{
			ID:         "openrouter",
			TaskModels: map[string]string{"summarization": "a/b"},
			Enabled:    &enabled,
		}

		clone := cfg.Clone()
		clone.TaskModels["summarization"] = "x/y"
		*clone.Enabled = false

		assert.Equal(t, "a/b", cfg.TaskModels["summarization"])
		assert.True(t, *cfg.Enabled)
	})
}
