// Package ctxutil provides context utilities that can be safely imported anywhere.
// This package has no internal dependencies to avoid import cycles.
package ctxutil

import (
	"context"

	"go.uber.org/zap"
)

// RequestIDKey is the context key for the request ID.
type RequestIDKey struct{}

// WithRequestID returns a context with the request ID embedded.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, RequestIDKey{}, requestID)
}

// RequestIDFromContext returns the request ID from context, or empty string if not set.
func RequestIDFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(RequestIDKey{}).(string); ok {
		return v
	}
	return ""
}

// Logger returns logger annotated with the request ID carried by ctx, if any.
func Logger(ctx context.Context, logger *zap.Logger) *zap.Logger {
	if id := RequestIDFromContext(ctx); id != "" {
		return logger.With(zap.String("request_id", id))
	}
	return logger
}
