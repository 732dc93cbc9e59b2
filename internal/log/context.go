package log

import (
	"context"
	"log/slog"
)

type ContextKey string

// LoggerContextKey holds the request scoped *Logger.
const LoggerContextKey ContextKey = "logger"

// WithContext returns ctx carrying logger.
func WithContext(ctx context.Context, logger *Logger) context.Context {
	return context.WithValue(ctx, LoggerContextKey, logger)
}

// FromContext returns the logger stored in ctx, or one around slog.Default.
func FromContext(ctx context.Context) *Logger {
	if logger, ok := ctx.Value(LoggerContextKey).(*Logger); ok {
		return logger
	}
	return newLogger(slog.Default(), "")
}
