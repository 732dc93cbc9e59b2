package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"monthbook/internal/auth"
	"monthbook/internal/cli"
	apphttp "monthbook/internal/http"
	applog "monthbook/internal/log"
	"monthbook/internal/services"
)

func main() {
	cli.LoadEnvFile()
	bootLogger := cli.SetupLogger(applog.DefaultConfig().Level, applog.ComponentApp)
	cfg := cli.LoadAndValidateConfig(bootLogger)
	logger := cli.SetupLogger(cfg.Level(), applog.ComponentApp)

	ctx, stop := cli.SignalContext(logger)
	defer stop()

	be := cli.InitBackend(ctx, logger, cfg)
	defer func() {
		if err := be.Cleanup(); err != nil {
			logger.Error("Backend cleanup failed", "error", err)
		}
	}()

	opts := []services.Option{services.WithConcealment(cfg.ConcealForeignRecords)}
	if be.AMQP != nil {
		opts = append(opts, services.WithPublisher(be.AMQP))
	}

	srv, err := apphttp.NewServer(":"+cfg.Port, apphttp.Deps{
		Months:             services.NewMonthService(be.Store, opts...),
		Notes:              services.NewNoteService(be.Store, opts...),
		Auth:               auth.NewAuthenticator(be.Store, auth.NewSessions(cfg.SessionSecret, cfg.SessionTTL)),
		Health:             be.Store,
		Logger:             logger,
		RateLimitPerMinute: cfg.RateLimitPerMinute,
		TrustedProxies:     cfg.TrustedProxies,
	})
	if err != nil {
		logger.Error("Failed to build HTTP server", "error", err)
		os.Exit(1)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("Starting monthbook server",
			"port", cfg.Port,
			"backend", cfg.DataBackend,
			"amqp_enabled", be.AMQP != nil)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Error("Server error", "error", err, "port", cfg.Port)
		os.Exit(1)
	}
	logger.Info("Server stopped gracefully")
}
