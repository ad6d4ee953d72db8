package common

import (
	"context"
	"log/slog"
	"time"
)

// Context keys for storing values in context
type contextKey string

const (
	ContextKeyRequestID contextKey = "request_id"
	ContextKeyRunID     contextKey = "run_id"
	ContextKeyLogger    contextKey = "logger"
)

// WithRequestID adds a request ID to the context
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, ContextKeyRequestID, requestID)
}

// RequestIDFromContext extracts the request ID from context
func RequestIDFromContext(ctx context.Context) string {
	if requestID, ok := ctx.Value(ContextKeyRequestID).(string); ok {
		return requestID
	}
	return ""
}

// WithRunID adds an extraction run ID to the context
func WithRunID(ctx context.Context, runID string) context.Context {
	return context.WithValue(ctx, ContextKeyRunID, runID)
}

// RunIDFromContext extracts the extraction run ID from context
func RunIDFromContext(ctx context.Context) string {
	if runID, ok := ctx.Value(ContextKeyRunID).(string); ok {
		return runID
	}
	return ""
}

// WithLogger stores a logger in the context
func WithLogger(ctx context.Context, logger *slog.Logger) context.Context {
	return context.WithValue(ctx, ContextKeyLogger, logger)
}

// LoggerFromContext returns the context logger, or slog.Default() with any
// request and run IDs attached.
func LoggerFromContext(ctx context.Context) *slog.Logger {
	logger, ok := ctx.Value(ContextKeyLogger).(*slog.Logger)
	if !ok || logger == nil {
		logger = slog.Default()
	}
	if id := RequestIDFromContext(ctx); id != "" {
		logger = logger.With("req_id", id)
	}
	if id := RunIDFromContext(ctx); id != "" {
		logger = logger.With("run_id", id)
	}
	return logger
}

// WithTimeout creates a context with the specified timeout. A zero timeout
// returns a cancellable context without a deadline.
func WithTimeout(parent context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		return context.WithCancel(parent)
	}
	return context.WithTimeout(parent, timeout)
}
