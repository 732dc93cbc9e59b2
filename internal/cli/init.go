// Package cli provides the initialization steps shared by cmd/monthbook and
// cmd/monthbook-worker.
package cli

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"monthbook/internal/backend"
	"monthbook/internal/config"
	applog "monthbook/internal/log"
)

// SetupLogger builds the process logger at level and makes it the slog default.
func SetupLogger(level slog.Level, component string) *applog.Logger {
	logger := applog.New(applog.Config{
		Level:     level,
		Component: component,
		Handler:   slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level}),
	})
	applog.SetDefault(logger)
	return logger
}

// LoadEnvFile loads the .env file for local development.
// Errors are ignored silently as this is optional in production.
func LoadEnvFile() {
	_ = godotenv.Load()
}

// LoadAndValidateConfig loads the server configuration and exits the process
// when it is invalid.
func LoadAndValidateConfig(logger *applog.Logger) *config.Config {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed",
			applog.FieldErrorType, applog.ErrorTypeConfiguration,
			applog.FieldError, err)
		os.Exit(1)
	}
	return cfg
}

// LoadAndValidateWorkerConfig is LoadAndValidateConfig for the export worker.
func LoadAndValidateWorkerConfig(logger *applog.Logger) *config.Config {
	cfg := config.Load()
	if err := cfg.ValidateWorker(); err != nil {
		logger.Error("Worker configuration validation failed",
			applog.FieldErrorType, applog.ErrorTypeConfiguration,
			applog.FieldError, err)
		os.Exit(1)
	}
	return cfg
}

// InitBackend opens the configured backend or exits the process on failure.
func InitBackend(ctx context.Context, logger *applog.Logger, cfg *config.Config) *backend.BackendResult {
	backendCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.Error("Invalid backend configuration", "error", err)
		os.Exit(1)
	}
	result, err := backend.NewFactory(logger.WithComponent(applog.ComponentBackend).Logger).CreateBackend(ctx, backendCfg)
	if err != nil {
		logger.Error("Failed to initialize backend",
			"backend", backendCfg.Type,
			applog.FieldErrorType, applog.ErrorTypeDatabase,
			applog.FieldError, err)
		os.Exit(1)
	}
	return result
}

// SignalContext returns a context cancelled on SIGINT or SIGTERM.
func SignalContext(logger *applog.Logger) (context.Context, context.CancelFunc) {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-ctx.Done()
		logger.Info("Shutdown signal received")
	}()
	return ctx, stop
}
