package services

import (
	"context"
	"fmt"
	"log/slog"

	"monthbook/internal/amqp"
	"monthbook/internal/core"
	"monthbook/internal/policy"
	"monthbook/internal/storage"
)

// MonthService runs Month operations on behalf of an actor. Every call
// authenticates, resolves, authorizes and only then touches storage.
type MonthService struct {
	store storage.MonthStore
	options
}

func NewMonthService(store storage.MonthStore, opts ...Option) *MonthService {
	return &MonthService{
		store:   store,
		options: buildOptions(opts),
	}
}

// List returns the actor's months, most recent first.
func (s *MonthService) List(ctx context.Context, actor core.Actor) ([]core.Month, error) {
	if err := s.authorize(actor, policy.ActionList, policy.MonthType{}); err != nil {
		return nil, err
	}
	months, err := s.store.ListMonthsByOwner(ctx, actor.ID)
	if err != nil {
		return nil, fmt.Errorf("list months: %w", err)
	}
	return months, nil
}

// Create stores a new month owned by the actor.
func (s *MonthService) Create(ctx context.Context, actor core.Actor, params core.MonthParams) (core.Month, error) {
	if err := s.authorize(actor, policy.ActionCreate, policy.MonthType{}); err != nil {
		return core.Month{}, err
	}

	m, err := params.ApplyTo(core.Month{})
	if err != nil {
		return core.Month{}, err
	}
	m.ID = core.NewID()
	m.OwnerID = actor.ID

	created, err := s.store.InsertMonth(ctx, m)
	if err != nil {
		return core.Month{}, duplicatePeriod(fmt.Errorf("create month: %w", err))
	}

	slog.InfoContext(ctx, "Month created",
		"month_id", created.ID,
		"user_id", actor.ID,
		"period", created.Label())
	s.publish(ctx, amqp.MonthCreated, created, "")
	return created, nil
}

func (s *MonthService) Get(ctx context.Context, actor core.Actor, id string) (core.Month, error) {
	return s.load(ctx, actor, policy.ActionRead, id)
}

// Update applies params to the month. On any failure the stored month is left
// as it was.
func (s *MonthService) Update(ctx context.Context, actor core.Actor, id string, params core.MonthParams) (core.Month, error) {
	m, err := s.load(ctx, actor, policy.ActionUpdate, id)
	if err != nil {
		return core.Month{}, err
	}

	next, err := params.ApplyTo(m)
	if err != nil {
		return core.Month{}, err
	}

	updated, err := s.store.UpdateMonth(ctx, next)
	if err != nil {
		return core.Month{}, duplicatePeriod(fmt.Errorf("update month: %w", err))
	}

	slog.InfoContext(ctx, "Month updated", "month_id", id, "user_id", actor.ID)
	msg := amqp.NewChangeMessage(amqp.MonthUpdated, updated, "")
	if m.Label() != updated.Label() {
		msg.PreviousPeriod = m.Label()
	}
	s.publishMessage(ctx, msg)
	return updated, nil
}

// Delete removes the month together with all of its notes.
func (s *MonthService) Delete(ctx context.Context, actor core.Actor, id string) error {
	m, err := s.load(ctx, actor, policy.ActionDelete, id)
	if err != nil {
		return err
	}
	if err := s.store.DeleteMonth(ctx, id); err != nil {
		return fmt.Errorf("delete month: %w", err)
	}

	slog.InfoContext(ctx, "Month deleted", "month_id", id, "user_id", actor.ID)
	s.publish(ctx, amqp.MonthDeleted, m, "")
	return nil
}

func (s *MonthService) load(ctx context.Context, actor core.Actor, action policy.Action, id string) (core.Month, error) {
	if err := requireActor(actor); err != nil {
		return core.Month{}, err
	}
	m, err := s.store.GetMonth(ctx, id)
	if err != nil {
		return core.Month{}, err
	}
	if err := s.authorize(actor, action, policy.MonthRecord{Month: m}); err != nil {
		return core.Month{}, err
	}
	return m, nil
}
