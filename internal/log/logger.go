// Package log is the application's structured logging layer on top of
// log/slog. Loggers carry a component name and travel through request
// contexts so handlers log with the request id already attached.
package log

import (
	"io"
	"log/slog"
	"os"
)

// Logger is a slog.Logger tagged with the component it logs for.
type Logger struct {
	*slog.Logger
	// base has every attribute except the component, so switching component
	// never stacks two "component" keys.
	base      *slog.Logger
	component string
}

// Config holds logger configuration
type Config struct {
	Level     slog.Level
	Component string
	// Handler overrides the default text handler on stdout.
	Handler slog.Handler
}

// DefaultConfig returns sensible defaults for logging
func DefaultConfig() Config {
	return Config{
		Level:     slog.LevelInfo,
		Component: ComponentApp,
	}
}

func New(config Config) *Logger {
	handler := config.Handler
	if handler == nil {
		handler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: config.Level})
	}
	return newLogger(slog.New(handler), config.Component)
}

// Discard returns a logger that drops everything. Meant for tests.
func Discard() *Logger {
	return New(Config{Handler: slog.NewTextHandler(io.Discard, nil), Component: "test"})
}

func newLogger(base *slog.Logger, component string) *Logger {
	l := &Logger{Logger: base, base: base, component: component}
	if component != "" {
		l.Logger = base.With(FieldComponent, component)
	}
	return l
}

// With returns a logger carrying the extra attributes.
func (l *Logger) With(args ...any) *Logger {
	return newLogger(l.base.With(args...), l.component)
}

// WithComponent returns the same logger reporting as component.
func (l *Logger) WithComponent(component string) *Logger {
	return newLogger(l.base, component)
}

func (l *Logger) Component() string {
	return l.component
}

// SetDefault makes logger the process wide slog default.
func SetDefault(logger *Logger) {
	slog.SetDefault(logger.Logger)
}
