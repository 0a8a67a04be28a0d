package middleware

import (
	"context"
)

// Context key type to avoid collisions
type contextKey string

const (
	// RequestIDKey is the context key for request ID
	RequestIDKey contextKey = "request_id"

	// ClientIDKey is the context key for the rate-limit client identity
	ClientIDKey contextKey = "client_id"
)

// GetRequestIDFromContext retrieves the request ID from context
func GetRequestIDFromContext(ctx context.Context) string {
	if val := ctx.Value(RequestIDKey); val != nil {
		if requestID, ok := val.(string); ok {
			return requestID
		}
	}
	return ""
}

// WithRequestID adds a request ID to the context
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, RequestIDKey, requestID)
}

// GetClientIDFromContext retrieves the client identity from context
func GetClientIDFromContext(ctx context.Context) string {
	if val := ctx.Value(ClientIDKey); val != nil {
		if clientID, ok := val.(string); ok {
			return clientID
		}
	}
	return ""
}

// WithClientID adds the client identity to the context
func WithClientID(ctx context.Context, clientID string) context.Context {
	return context.WithValue(ctx, ClientIDKey, clientID)
}
