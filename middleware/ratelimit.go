package middleware

import (
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/upb/llm-gateway/services/ratelimit"
	"github.com/upb/llm-gateway/services/requestlog"
	"github.com/upb/llm-gateway/utils"
	"go.uber.org/zap"
)

// clientIDHeader identifies the caller for rate limiting. Requests without
// it fall back to the client IP.
const clientIDHeader = "X-Client-ID"

// RateLimitMiddleware applies token-bucket admission control before the
// core is invoked. Rejections never reach the routing engine.
type RateLimitMiddleware struct {
	limiter  *ratelimit.Limiter
	logStore *requestlog.Store
	logger   *zap.Logger
}

// NewRateLimitMiddleware creates a new RateLimitMiddleware. A nil logStore
// disables rejection recording.
func NewRateLimitMiddleware(limiter *ratelimit.Limiter, logStore *requestlog.Store, logger *zap.Logger) *RateLimitMiddleware {
	return &RateLimitMiddleware{
		limiter:  limiter,
		logStore: logStore,
		logger:   logger,
	}
}

// Limit rejects requests over the client's budget with a 429 carrying a
// retry-after hint.
func (m *RateLimitMiddleware) Limit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		clientID := resolveClientID(r)
		ctx := WithClientID(r.Context(), clientID)

		if !m.limiter.IsAllowed(clientID) {
			retryAfter := m.limiter.GetRetryAfter(clientID)
			m.logger.Warn("request rate limited",
				zap.String("request_id", GetRequestIDFromContext(ctx)),
				zap.String("client_id", clientID),
				zap.Duration("retry_after", retryAfter))

			if m.logStore != nil {
				m.logStore.Append(requestlog.Entry{
					ClientID: clientID,
					Status:   requestlog.StatusRejected,
				})
			}

			w.Header().Set("Retry-After", formatRetryAfterSeconds(retryAfter))
			_ = utils.WriteTooManyRequests(w, "", map[string]interface{}{
				"retry_after_ms": retryAfter.Milliseconds(),
			})
			return
		}

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// resolveClientID prefers the X-Client-ID header, then the client IP.
func resolveClientID(r *http.Request) string {
	if id := r.Header.Get(clientIDHeader); id != "" {
		return id
	}
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		return xff
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// formatRetryAfterSeconds renders a Retry-After header value, rounded up
// so clients never retry early.
func formatRetryAfterSeconds(d time.Duration) string {
	secs := int64((d + time.Second - 1) / time.Second)
	if secs < 1 {
		secs = 1
	}
	return strconv.FormatInt(secs, 10)
}
