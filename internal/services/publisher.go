package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"monthbook/internal/amqp"
	"monthbook/internal/core"
	"monthbook/internal/policy"
)

// ChangePublisher announces committed changes to other processes.
type ChangePublisher interface {
	PublishChange(ctx context.Context, msg *amqp.ChangeMessage) error
}

// Option configures MonthService and NoteService.
type Option func(*options)

type options struct {
	publisher ChangePublisher
	conceal   bool
}

// WithPublisher sends a change message after every successful write.
func WithPublisher(p ChangePublisher) Option {
	return func(o *options) { o.publisher = p }
}

// WithConcealment reports records owned by someone else as not found instead
// of access denied, so callers cannot probe which ids exist.
func WithConcealment(conceal bool) Option {
	return func(o *options) { o.conceal = conceal }
}

func buildOptions(opts []Option) options {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

func (o options) authorize(actor core.Actor, action policy.Action, subject policy.Subject) error {
	err := policy.Authorize(actor, action, subject)
	if err == nil || !o.conceal || !errors.Is(err, core.ErrAccessDenied) {
		return err
	}
	if _, ok := subject.(policy.NoteRecord); ok {
		return fmt.Errorf("%v: %w", err, core.ErrNoteNotFound)
	}
	return fmt.Errorf("%v: %w", err, core.ErrMonthNotFound)
}

func (o options) publish(ctx context.Context, kind amqp.ChangeKind, m core.Month, noteID string) {
	o.publishMessage(ctx, amqp.NewChangeMessage(kind, m, noteID))
}

func (o options) publishMessage(ctx context.Context, msg *amqp.ChangeMessage) {
	if o.publisher == nil {
		slog.DebugContext(ctx, "AMQP publisher not available, skipping change message", "kind", msg.Kind)
		return
	}
	if err := o.publisher.PublishChange(ctx, msg); err != nil {
		// The write is committed; a lost notification only delays the export.
		slog.ErrorContext(ctx, "Failed to publish change message",
			"kind", msg.Kind,
			"month_id", msg.MonthID,
			"error", err)
	}
}

func requireActor(actor core.Actor) error {
	if !actor.Authenticated() {
		return core.ErrUnauthenticated
	}
	return nil
}

// duplicatePeriod converts a storage uniqueness failure into a field error.
func duplicatePeriod(err error) error {
	if errors.Is(err, core.ErrDuplicate) {
		return &core.ValidationError{Fields: map[string]string{
			"start": "has already been taken",
			"end":   "has already been taken",
		}}
	}
	return err
}
