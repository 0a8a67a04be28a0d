package providers

import "fmt"

// ProviderError represents a backend call failure: non-2xx response,
// network failure, or missing credential. Routing retries these via the
// fallback chain during Complete, never during Stream.
type ProviderError struct {
	// Provider that generated the error
	Provider string

	// StatusCode is the HTTP status code (0 when no response was received)
	StatusCode int

	// Message is the error message, including the backend's error text
	Message string

	// Cause is the underlying error
	Cause error
}

// Error implements the error interface
func (e *ProviderError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("provider %s: %s (status %d)", e.Provider, e.Message, e.StatusCode)
	}
	return fmt.Sprintf("provider %s: %s", e.Provider, e.Message)
}

// Unwrap implements error unwrapping
func (e *ProviderError) Unwrap() error {
	return e.Cause
}

// NewProviderError creates a new provider error
func NewProviderError(provider, message string, statusCode int, cause error) *ProviderError {
	return &ProviderError{
		Provider:   provider,
		StatusCode: statusCode,
		Message:    message,
		Cause:      cause,
	}
}
