package worker

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/sync/singleflight"

	"monthbook/internal/amqp"
	"monthbook/internal/core"
	applog "monthbook/internal/log"
	"monthbook/internal/sheets"
)

// MonthReader is the read side of storage the worker needs.
type MonthReader interface {
	GetMonth(ctx context.Context, id string) (core.Month, error)
	ListNotesByMonth(ctx context.Context, monthID string) ([]core.Note, error)
}

// ExportWorker keeps the spreadsheet in step with stored months. Messages only
// say which month changed; the worker always exports the current state.
type ExportWorker struct {
	store    MonthReader
	exporter sheets.MonthExporter
	logger   *applog.Logger
	events   *applog.StructuredLogger
	group    singleflight.Group
}

func NewExportWorker(store MonthReader, exporter sheets.MonthExporter, logger *applog.Logger) *ExportWorker {
	if logger == nil {
		logger = applog.New(applog.DefaultConfig())
	}
	logger = logger.WithComponent(applog.ComponentWorker)
	return &ExportWorker{
		store:    store,
		exporter: exporter,
		logger:   logger,
		events:   applog.NewStructuredLogger(logger),
	}
}

// HandleChange processes a single change message from AMQP.
func (w *ExportWorker) HandleChange(ctx context.Context, msg *amqp.ChangeMessage) error {
	w.logger.InfoContext(ctx, "Processing change message",
		applog.FieldChangeKind, msg.Kind,
		applog.FieldMonthID, msg.MonthID)

	if msg.PreviousPeriod != "" {
		if err := w.exporter.RemoveMonth(ctx, msg.PreviousPeriod); err != nil {
			return fmt.Errorf("remove previous sheet: %w", err)
		}
	}

	if msg.Kind == amqp.MonthDeleted {
		if err := w.exporter.RemoveMonth(ctx, msg.Period); err != nil {
			return fmt.Errorf("remove month sheet: %w", err)
		}
		return nil
	}

	return w.Export(ctx, msg.MonthID)
}

// Export writes the month's current notes and totals. Concurrent exports of
// the same month share one run.
func (w *ExportWorker) Export(ctx context.Context, monthID string) error {
	_, err, shared := w.group.Do(monthID, func() (interface{}, error) {
		return nil, w.export(ctx, monthID)
	})
	if shared {
		w.logger.DebugContext(ctx, "Coalesced month export", applog.FieldMonthID, monthID)
	}
	return err
}

func (w *ExportWorker) export(ctx context.Context, monthID string) error {
	m, err := w.store.GetMonth(ctx, monthID)
	if errors.Is(err, core.ErrNotFound) {
		// Deleted after the message was published; its delete message follows.
		w.logger.InfoContext(ctx, "Month no longer exists, skipping export", applog.FieldMonthID, monthID)
		return nil
	}
	if err != nil {
		return fmt.Errorf("get month from storage: %w", err)
	}

	notes, err := w.store.ListNotesByMonth(ctx, monthID)
	if err != nil {
		return fmt.Errorf("list notes from storage: %w", err)
	}

	ref, err := w.exporter.ExportMonth(ctx, core.Summarize(m, notes))
	if err != nil {
		return fmt.Errorf("export month to sheets: %w", err)
	}

	w.events.LogMonthExported(ctx, m.ID, m.Label(), len(notes), ref)
	return nil
}
