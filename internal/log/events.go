package log

import (
	"context"
	"log/slog"
	"net/http"
)

// StructuredLogger writes the recurring events of the application with a
// fixed set of fields so they can be queried consistently.
type StructuredLogger struct {
	logger *Logger
}

func NewStructuredLogger(logger *Logger) *StructuredLogger {
	return &StructuredLogger{logger: logger}
}

func (sl *StructuredLogger) LogHTTPStart(ctx context.Context, r *http.Request, clientIP string) {
	fields := NewFields().
		WithHTTPRequest(r.Method, r.URL.Path, r.URL.RawQuery).
		WithClientIP(clientIP)
	fields[FieldUserAgent] = r.Header.Get("User-Agent")
	fields[FieldReferer] = r.Header.Get("Referer")

	sl.logger.DebugContext(ctx, "HTTP request started", fields.ToSlice()...)
}

// LogHTTPEnd logs at warn for 4xx and at error for 5xx responses.
func (sl *StructuredLogger) LogHTTPEnd(ctx context.Context, r *http.Request, statusCode int, durationMs int64, clientIP string) {
	level := slog.LevelInfo
	switch {
	case statusCode >= 500:
		level = slog.LevelError
	case statusCode >= 400:
		level = slog.LevelWarn
	}

	fields := NewFields().
		WithHTTPRequest(r.Method, r.URL.Path, r.URL.RawQuery).
		WithHTTPResponse(statusCode, durationMs).
		WithClientIP(clientIP)

	sl.logger.Log(ctx, level, "HTTP request completed", fields.ToSlice()...)
}

// LogMonthExported records a month written to the spreadsheet.
func (sl *StructuredLogger) LogMonthExported(ctx context.Context, monthID, period string, notes int, ref string) {
	fields := NewFields().
		WithMonth(monthID, period).
		WithOperation(OpExport)
	fields["notes"] = notes
	fields[FieldSheetsRef] = ref

	sl.logger.InfoContext(ctx, "Month exported", fields.ToSlice()...)
}

// LogFailure records err against the operation that produced it.
func (sl *StructuredLogger) LogFailure(ctx context.Context, msg, operation, errorType string, err error) {
	fields := NewFields().
		WithOperation(operation).
		WithError(err)
	fields[FieldErrorType] = errorType

	sl.logger.ErrorContext(ctx, msg, fields.ToSlice()...)
}
