// internal/contextutil/context.go
package contextutil

import (
	"context"

	"github.com/google/uuid"
)

// Key is a type-safe key for context values
type Key string

// RequestIDKey is the key for the request correlation id
const RequestIDKey Key = "context:request_id"

// RequestIDHeader carries the correlation id back to the caller
const RequestIDHeader = "X-Request-Id"

// NewRequestID returns a fresh correlation id
func NewRequestID() string {
	return uuid.NewString()
}

// WithRequestID adds a request ID to a context
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, RequestIDKey, requestID)
}

// GetRequestID retrieves a request ID from a context
func GetRequestID(ctx context.Context) string {
	if requestID, ok := ctx.Value(RequestIDKey).(string); ok {
		return requestID
	}
	return ""
}

// EnsureRequestID returns the context's request id, minting one when absent.
func EnsureRequestID(ctx context.Context) (context.Context, string) {
	if id := GetRequestID(ctx); id != "" {
		return ctx, id
	}
	id := NewRequestID()
	return WithRequestID(ctx, id), id
}
