package services

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/shopspring/decimal"

	"monthbook/internal/amqp"
	"monthbook/internal/core"
	"monthbook/internal/policy"
	"monthbook/internal/storage"
)

// NoteStore is the persistence NoteService needs: notes plus their months.
type NoteStore interface {
	storage.MonthStore
	storage.NoteStore
}

// NoteService runs Note operations within a month. The month is resolved and
// authorized for reading before anything else happens.
type NoteService struct {
	store NoteStore
	options
}

func NewNoteService(store NoteStore, opts ...Option) *NoteService {
	return &NoteService{
		store:   store,
		options: buildOptions(opts),
	}
}

func (s *NoteService) List(ctx context.Context, actor core.Actor, monthID string) ([]core.Note, error) {
	if _, err := s.month(ctx, actor, monthID); err != nil {
		return nil, err
	}
	if err := s.authorize(actor, policy.ActionList, policy.NoteType{}); err != nil {
		return nil, err
	}
	notes, err := s.store.ListNotesByMonth(ctx, monthID)
	if err != nil {
		return nil, fmt.Errorf("list notes: %w", err)
	}
	return notes, nil
}

func (s *NoteService) Create(ctx context.Context, actor core.Actor, monthID string, params core.NoteParams) (core.Note, error) {
	m, err := s.month(ctx, actor, monthID)
	if err != nil {
		return core.Note{}, err
	}
	if err := s.authorize(actor, policy.ActionCreate, policy.NoteType{}); err != nil {
		return core.Note{}, err
	}

	n, err := params.ApplyTo(core.Note{})
	if err != nil {
		return core.Note{}, err
	}
	n.ID = core.NewID()
	n.MonthID = m.ID

	created, err := s.store.InsertNote(ctx, n)
	if err != nil {
		return core.Note{}, fmt.Errorf("create note: %w", err)
	}

	slog.InfoContext(ctx, "Note created",
		"note_id", created.ID,
		"month_id", m.ID,
		"money", core.FormatMoney(created.Money))
	s.publish(ctx, amqp.NoteCreated, m, created.ID)
	return created, nil
}

func (s *NoteService) Get(ctx context.Context, actor core.Actor, monthID, id string) (core.Note, error) {
	_, n, err := s.load(ctx, actor, policy.ActionRead, monthID, id)
	return n, err
}

// Update applies params to the note. On any failure the stored note is left
// as it was.
func (s *NoteService) Update(ctx context.Context, actor core.Actor, monthID, id string, params core.NoteParams) (core.Note, error) {
	m, n, err := s.load(ctx, actor, policy.ActionUpdate, monthID, id)
	if err != nil {
		return core.Note{}, err
	}

	next, err := params.ApplyTo(n)
	if err != nil {
		return core.Note{}, err
	}

	updated, err := s.store.UpdateNote(ctx, next)
	if err != nil {
		return core.Note{}, fmt.Errorf("update note: %w", err)
	}

	slog.InfoContext(ctx, "Note updated", "note_id", id, "month_id", monthID)
	s.publish(ctx, amqp.NoteUpdated, m, id)
	return updated, nil
}

func (s *NoteService) Delete(ctx context.Context, actor core.Actor, monthID, id string) error {
	m, _, err := s.load(ctx, actor, policy.ActionDelete, monthID, id)
	if err != nil {
		return err
	}
	if err := s.store.DeleteNote(ctx, id); err != nil {
		return fmt.Errorf("delete note: %w", err)
	}

	slog.InfoContext(ctx, "Note deleted", "note_id", id, "month_id", monthID)
	s.publish(ctx, amqp.NoteDeleted, m, id)
	return nil
}

// Sum returns the total money of the month's notes, zero when it has none.
// It performs no authorization; callers resolve the month for the actor first.
func (s *NoteService) Sum(ctx context.Context, monthID string) (decimal.Decimal, error) {
	if _, err := s.store.GetMonth(ctx, monthID); err != nil {
		return decimal.Zero, err
	}
	notes, err := s.store.ListNotesByMonth(ctx, monthID)
	if err != nil {
		return decimal.Zero, fmt.Errorf("sum notes: %w", err)
	}
	return core.NotesMoney(notes), nil
}

// Summary returns the month with its notes and spent/remaining totals.
func (s *NoteService) Summary(ctx context.Context, actor core.Actor, monthID string) (core.MonthSummary, error) {
	m, err := s.month(ctx, actor, monthID)
	if err != nil {
		return core.MonthSummary{}, err
	}
	notes, err := s.store.ListNotesByMonth(ctx, monthID)
	if err != nil {
		return core.MonthSummary{}, fmt.Errorf("list notes: %w", err)
	}
	return core.Summarize(m, notes), nil
}

// month resolves the parent month and checks the actor may read it.
func (s *NoteService) month(ctx context.Context, actor core.Actor, monthID string) (core.Month, error) {
	if err := requireActor(actor); err != nil {
		return core.Month{}, err
	}
	m, err := s.store.GetMonth(ctx, monthID)
	if err != nil {
		return core.Month{}, err
	}
	if err := s.authorize(actor, policy.ActionRead, policy.MonthRecord{Month: m}); err != nil {
		return core.Month{}, err
	}
	return m, nil
}

func (s *NoteService) load(ctx context.Context, actor core.Actor, action policy.Action, monthID, id string) (core.Month, core.Note, error) {
	m, err := s.month(ctx, actor, monthID)
	if err != nil {
		return core.Month{}, core.Note{}, err
	}
	n, err := s.store.GetNote(ctx, id)
	if err != nil {
		return core.Month{}, core.Note{}, err
	}
	// A note addressed through the wrong month does not exist there.
	if n.MonthID != m.ID {
		return core.Month{}, core.Note{}, fmt.Errorf("note %s in month %s: %w", id, monthID, core.ErrNoteNotFound)
	}
	if err := s.authorize(actor, action, policy.NoteRecord{Note: n, Parent: m}); err != nil {
		return core.Month{}, core.Note{}, err
	}
	return m, n, nil
}
