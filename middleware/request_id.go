package middleware

import (
	"net/http"

	"github.com/google/uuid"
)

// requestIDHeader is echoed back so callers can correlate responses with
// their own traces.
const requestIDHeader = "X-Request-ID"

// RequestID assigns every request a uuid (or adopts the caller's) and
// stores it in the context for log correlation.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get(requestIDHeader)
		if requestID == "" {
			requestID = uuid.New().String()
		}

		w.Header().Set(requestIDHeader, requestID)
		ctx := WithRequestID(r.Context(), requestID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
