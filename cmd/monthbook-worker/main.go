package main

import (
	"context"
	"errors"
	"os"

	"golang.org/x/sync/errgroup"

	"monthbook/internal/cli"
	applog "monthbook/internal/log"
	"monthbook/internal/sheets"
	gsheet "monthbook/internal/sheets/google"
	memsheet "monthbook/internal/sheets/memory"
	"monthbook/internal/worker"
)

func main() {
	cli.LoadEnvFile()
	bootLogger := cli.SetupLogger(applog.DefaultConfig().Level, applog.ComponentWorker)
	cfg := cli.LoadAndValidateWorkerConfig(bootLogger)
	logger := cli.SetupLogger(cfg.Level(), applog.ComponentWorker)

	logger.Info("Starting monthbook-worker")

	ctx, stop := cli.SignalContext(logger)
	defer stop()

	be := cli.InitBackend(ctx, logger, cfg)
	defer func() {
		if err := be.Cleanup(); err != nil {
			logger.Error("Backend cleanup failed", "error", err)
		}
	}()
	if be.AMQP == nil {
		logger.Error("AMQP broker unavailable, nothing to consume", "url_set", cfg.AMQPURL != "")
		os.Exit(1)
	}

	var exporter sheets.MonthExporter
	if cfg.GoogleSpreadsheetID != "" {
		client, err := gsheet.New(ctx, gsheet.Config{
			SpreadsheetID:      cfg.GoogleSpreadsheetID,
			ServiceAccountJSON: cfg.GoogleServiceAccountJSON,
			ServiceAccountFile: cfg.GoogleServiceAccountFile,
		})
		if err != nil {
			logger.Error("Failed to initialize Google Sheets client", "error", err)
			os.Exit(1)
		}
		exporter = client
		logger.Info("Google Sheets export enabled", applog.FieldSheetsRef, cfg.GoogleSpreadsheetID)
	} else {
		exporter = memsheet.New()
		logger.Info("Google Sheets disabled - no GOOGLE_SPREADSHEET_ID provided, exporting in memory")
	}

	exportWorker := worker.NewExportWorker(be.Store, exporter, logger)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return be.AMQP.ConsumeChanges(gctx, exportWorker.HandleChange)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Message consumption failed", "error", err)
		os.Exit(1)
	}
	logger.Info("Worker shutdown complete")
}
