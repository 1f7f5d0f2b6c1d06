package logger

import (
	"context"
	"log/slog"
)

// contextKey is a private type for context keys to avoid collisions with
// keys defined in other packages.
type contextKey int

// loggerKey is the context key under which the request-scoped logger lives.
const loggerKey contextKey = iota

// WithLogger returns a new context carrying the given logger. Handlers and
// middleware attach request-scoped loggers (with trace IDs and user context)
// so lower layers can log with the same attributes.
//
// Panics if logger is nil: storing a nil logger would turn every later
// FromContext call into a nil dereference far from the cause.
func WithLogger(ctx context.Context, logger *slog.Logger) context.Context {
	if logger == nil {
		panic("logger cannot be nil")
	}
	return context.WithValue(ctx, loggerKey, logger)
}

// FromContext retrieves the logger stored in the context, falling back to
// slog.Default() when the context carries none.
func FromContext(ctx context.Context) *slog.Logger {
	if logger, ok := ctx.Value(loggerKey).(*slog.Logger); ok && logger != nil {
		return logger
	}
	return slog.Default()
}

// FromContextOrDefault retrieves the logger stored in the context, falling
// back to the provided default rather than the global one. Stores that carry
// a component-scoped logger use this to keep their component attribute when
// no request logger is present.
func FromContextOrDefault(ctx context.Context, def *slog.Logger) *slog.Logger {
	if logger, ok := ctx.Value(loggerKey).(*slog.Logger); ok && logger != nil {
		return logger
	}
	if def != nil {
		return def
	}
	return slog.Default()
}
