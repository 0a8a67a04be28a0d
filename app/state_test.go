package app

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/upb/llm-gateway/services/providers"
	"github.com/upb/llm-gateway/services/routing"
	"go.uber.org/zap"
)

func testRouterConfig() routing.RouterConfig {
	return routing.RouterConfig{
		Providers: []providers.ProviderConfig{
			{ID: "openrouter", APIKey: "sk-test"},
			{ID: "ollama"},
		},
		DefaultProvider: "openrouter",
		FallbackChain:   []string{"ollama"},
		TaskRoutes:      map[string]string{"summarization": "a/b"},
		SmartRouting:    true,
		Logging:         true,
	}
}

func TestNewGatewayState(t *testing.T) {
	t.Run("builds the initial engine", func(t *testing.T) {
		state, err := NewGatewayState(testRouterConfig(), zap.NewNop())
		require.NoError(t, err)
		assert.ElementsMatch(t, []string{"openrouter", "ollama"}, state.Engine().Providers())
	})

	t.Run("rejects a broken configuration", func(t *testing.T) {
		cfg := testRouterConfig()
		cfg.DefaultProvider = "missing"
		_, err := NewGatewayState(cfg, zap.NewNop())
		assert.ErrorIs(t, err, routing.ErrNoDefaultProvider)
	})
}

func TestUpdateConfig(t *testing.T) {
	logger := zap.NewNop()

	t.Run("empty update changes nothing", func(t *testing.T) {
		state, err := NewGatewayState(testRouterConfig(), logger)
		require.NoError(t, err)
		before := state.Config()

		after, err := state.UpdateConfig(ConfigUpdate{})
		require.NoError(t, err)

		assert.Equal(t, before.DefaultProvider, after.DefaultProvider)
		assert.Equal(t, before.FallbackChain, after.FallbackChain)
		assert.Equal(t, before.TaskRoutes, after.TaskRoutes)
		assert.Equal(t, before.SmartRouting, after.SmartRouting)
		assert.Equal(t, before.Logging, after.Logging)
	})

	t.Run("partial update keeps untouched fields", func(t *testing.T) {
		state, err := NewGatewayState(testRouterConfig(), logger)
		require.NoError(t, err)

		newDefault := "ollama"
		after, err := state.UpdateConfig(ConfigUpdate{DefaultProvider: &newDefault})
		require.NoError(t, err)

		assert.Equal(t, "ollama", after.DefaultProvider)
		assert.Equal(t, []string{"ollama"}, after.FallbackChain)
		assert.True(t, after.SmartRouting)
		assert.Equal(t, "ollama", state.Config().DefaultProvider)
	})

	t.Run("rejected update leaves the previous engine serving", func(t *testing.T) {
		state, err := NewGatewayState(testRouterConfig(), logger)
		require.NoError(t, err)
		engineBefore := state.Engine()

		bad := "missing"
		_, err = state.UpdateConfig(ConfigUpdate{DefaultProvider: &bad})
		assert.ErrorIs(t, err, routing.ErrNoDefaultProvider)

		assert.Same(t, engineBefore, state.Engine())
		assert.Equal(t, "openrouter", state.Config().DefaultProvider)
	})

	t.Run("task routes replace wholesale", func(t *testing.T) {
		state, err := NewGatewayState(testRouterConfig(), logger)
		require.NoError(t, err)

		after, err := state.UpdateConfig(ConfigUpdate{
			TaskRoutes: map[string]string{"translation": "x/y"},
		})
		require.NoError(t, err)
		assert.Equal(t, map[string]string{"translation": "x/y"}, after.TaskRoutes)
	})

	t.Run("toggling flags", func(t *testing.T) {
		state, err := NewGatewayState(testRouterConfig(), logger)
		require.NoError(t, err)

		off := false
		after, err := state.UpdateConfig(ConfigUpdate{SmartRouting: &off, Logging: &off})
		require.NoError(t, err)
		assert.False(t, after.SmartRouting)
		assert.False(t, after.Logging)
	})

	t.Run("round-tripped provider entries keep their keys", func(t *testing.T) {
		state, err := NewGatewayState(testRouterConfig(), logger)
		require.NoError(t, err)

		// A provider list read back from the API has no api_key fields.
		redacted := state.Config().Providers
		for i := range redacted {
			redacted[i].APIKey = ""
		}
		after, err := state.UpdateConfig(ConfigUpdate{Providers: redacted})
		require.NoError(t, err)

		for _, p := range after.Providers {
			if p.ID == "openrouter" {
				assert.Equal(t, "sk-test", p.APIKey)
			}
		}
	})

	t.Run("returned config is a copy", func(t *testing.T) {
		state, err := NewGatewayState(testRouterConfig(), logger)
		require.NoError(t, err)

		cfg := state.Config()
		cfg.TaskRoutes["summarization"] = "mutated"
		assert.Equal(t, "a/b", state.Config().TaskRoutes["summarization"])
	})
}
