package handlers

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHandleGetConfig(t *testing.T) {
	deps := testDeps(t, chatBackend("unused"))
	router := SetupRoutes(deps)

	w := doJSON(t, router, http.MethodGet, "/v1/config", "")
	assert.Equal(t, http.StatusOK, w.Code)

	var response map[string]interface{}
	require.NoError(t, json.NewDecoder(w.Body).Decode(&response))
	data := response["data"].(map[string]interface{})
	assert.Equal(t, "openrouter", data["default_provider"])
	assert.Equal(t, true, data["smart_routing"])

	// Credentials never leave the process.
	entries := data["providers"].([]interface{})
	require.NotEmpty(t, entries)
	first := entries[0].(map[string]interface{})
	_, hasKey := first["api_key"]
	assert.False(t, hasKey)
}

func TestHandleUpdateConfig(t *testing.T) {
	t.Run("empty update is idempotent", func(t *testing.T) {
		deps := testDeps(t, chatBackend("unused"))
		router := SetupRoutes(deps)

		before := doJSON(t, router, http.MethodGet, "/v1/config", "")
		w := doJSON(t, router, http.MethodPut, "/v1/config", `{}`)
		assert.Equal(t, http.StatusOK, w.Code)
		after := doJSON(t, router, http.MethodGet, "/v1/config", "")

		assert.JSONEq(t, before.Body.String(), after.Body.String())
	})

	t.Run("updates task routes", func(t *testing.T) {
		deps := testDeps(t, chatBackend("unused"))
		router := SetupRoutes(deps)

		w := doJSON(t, router, http.MethodPut, "/v1/config",
			`{"task_routes": {"summarization": "my/model"}}`)
		assert.Equal(t, http.StatusOK, w.Code)

		var response map[string]interface{}
		require.NoError(t, json.NewDecoder(w.Body).Decode(&response))
		data := response["data"].(map[string]interface{})
		routes := data["task_routes"].(map[string]interface{})
		assert.Equal(t, "my/model", routes["summarization"])
	})

	t.Run("rejects an unknown default provider", func(t *testing.T) {
		deps := testDeps(t, chatBackend("unused"))
		router := SetupRoutes(deps)

		w := doJSON(t, router, http.MethodPut, "/v1/config",
			`{"default_provider": "bedrock"}`)
		assert.Equal(t, http.StatusBadRequest, w.Code)

		// The previous configuration still serves.
		after := doJSON(t, router, http.MethodGet, "/v1/config", "")
		var response map[string]interface{}
		require.NoError(t, json.NewDecoder(after.Body).Decode(&response))
		data := response["data"].(map[string]interface{})
		assert.Equal(t, "openrouter", data["default_provider"])
	})

	t.Run("rejects a malformed body", func(t *testing.T) {
		deps := testDeps(t, chatBackend("unused"))
		router := SetupRoutes(deps)

		w := doJSON(t, router, http.MethodPut, "/v1/config", `{not json`)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}
