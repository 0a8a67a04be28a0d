package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/upb/llm-gateway/services/ratelimit"
	"github.com/upb/llm-gateway/services/requestlog"
	"go.uber.org/zap"
)

func limitedHandler(cfg ratelimit.Config) (http.Handler, *requestlog.Store) {
	limiter := ratelimit.New(cfg, zap.NewNop())
	store := requestlog.NewStore(10)
	mw := NewRateLimitMiddleware(limiter, store, zap.NewNop())
	return mw.Limit(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})), store
}

func TestLimit(t *testing.T) {
	t.Run("rejects over-budget clients with 429", func(t *testing.T) {
		handler, store := limitedHandler(ratelimit.Config{MaxRequests: 1, Window: time.Minute, PerClient: true})

		req := httptest.NewRequest(http.MethodPost, "/v1/chat/completions", nil)
		req.Header.Set("X-Client-ID", "alice")

		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)
		assert.Equal(t, http.StatusOK, w.Code)

		w = httptest.NewRecorder()
		handler.ServeHTTP(w, req)
		assert.Equal(t, http.StatusTooManyRequests, w.Code)
		assert.NotEmpty(t, w.Header().Get("Retry-After"))

		var response map[string]interface{}
		require.NoError(t, json.NewDecoder(w.Body).Decode(&response))
		assert.Equal(t, false, response["success"])
		errBody := response["error"].(map[string]interface{})
		assert.Equal(t, "rate_limit_exceeded", errBody["code"])
		details := errBody["details"].(map[string]interface{})
		assert.Contains(t, details, "retry_after_ms")

		entries := store.List(0)
		require.Len(t, entries, 1)
		assert.Equal(t, requestlog.StatusRejected, entries[0].Status)
		assert.Equal(t, "alice", entries[0].ClientID)
	})

	t.Run("clients are keyed by header", func(t *testing.T) {
		handler, _ := limitedHandler(ratelimit.Config{MaxRequests: 1, Window: time.Minute, PerClient: true})

		alice := httptest.NewRequest(http.MethodPost, "/", nil)
		alice.Header.Set("X-Client-ID", "alice")
		bob := httptest.NewRequest(http.MethodPost, "/", nil)
		bob.Header.Set("X-Client-ID", "bob")

		w := httptest.NewRecorder()
		handler.ServeHTTP(w, alice)
		assert.Equal(t, http.StatusOK, w.Code)

		// Alice is spent; Bob has his own bucket.
		w = httptest.NewRecorder()
		handler.ServeHTTP(w, alice)
		assert.Equal(t, http.StatusTooManyRequests, w.Code)

		w = httptest.NewRecorder()
		handler.ServeHTTP(w, bob)
		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("falls back to the remote address without a header", func(t *testing.T) {
		handler, _ := limitedHandler(ratelimit.Config{MaxRequests: 1, Window: time.Minute, PerClient: true})

		first := httptest.NewRequest(http.MethodPost, "/", nil)
		first.RemoteAddr = "10.0.0.1:1111"
		second := httptest.NewRequest(http.MethodPost, "/", nil)
		second.RemoteAddr = "10.0.0.1:2222"
		other := httptest.NewRequest(http.MethodPost, "/", nil)
		other.RemoteAddr = "10.0.0.2:3333"

		w := httptest.NewRecorder()
		handler.ServeHTTP(w, first)
		assert.Equal(t, http.StatusOK, w.Code)

		// Same IP, different port: same bucket.
		w = httptest.NewRecorder()
		handler.ServeHTTP(w, second)
		assert.Equal(t, http.StatusTooManyRequests, w.Code)

		w = httptest.NewRecorder()
		handler.ServeHTTP(w, other)
		assert.Equal(t, http.StatusOK, w.Code)
	})
}

func TestResolveClientID(t *testing.T) {
	t.Run("header wins", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("X-Client-ID", "alice")
		req.Header.Set("X-Forwarded-For", "10.0.0.9")
		assert.Equal(t, "alice", resolveClientID(req))
	})

	t.Run("forwarded-for next", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("X-Forwarded-For", "10.0.0.9")
		assert.Equal(t, "10.0.0.9", resolveClientID(req))
	})

	t.Run("remote address last", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = "10.0.0.1:9999"
		assert.Equal(t, "10.0.0.1", resolveClientID(req))
	})
}

func TestFormatRetryAfterSeconds(t *testing.T) {
	assert.Equal(t, "1", formatRetryAfterSeconds(0))
	assert.Equal(t, "1", formatRetryAfterSeconds(300*time.Millisecond))
	assert.Equal(t, "2", formatRetryAfterSeconds(1100*time.Millisecond))
	assert.Equal(t, "60", formatRetryAfterSeconds(time.Minute))
}
