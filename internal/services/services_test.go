package services

import (
	"context"
	"errors"
	"sync"
	"testing"

	"monthbook/internal/amqp"
	"monthbook/internal/core"
	"monthbook/internal/storage/memory"
)

var (
	ann = core.Actor{ID: "ann"}
	bob = core.Actor{ID: "bob"}
)

func str(s string) *string { return &s }

func january() core.MonthParams {
	return core.MonthParams{Start: str("2024-01-01"), End: str("2024-01-31"), Money: str("800.00")}
}

type recordingPublisher struct {
	mu   sync.Mutex
	msgs []*amqp.ChangeMessage
	err  error
}

func (p *recordingPublisher) PublishChange(_ context.Context, msg *amqp.ChangeMessage) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.msgs = append(p.msgs, msg)
	return p.err
}

func (p *recordingPublisher) kinds() []amqp.ChangeKind {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]amqp.ChangeKind, len(p.msgs))
	for i, m := range p.msgs {
		out[i] = m.Kind
	}
	return out
}

func newServices(opts ...Option) (*MonthService, *NoteService, *memory.Store) {
	store := memory.New()
	return NewMonthService(store, opts...), NewNoteService(store, opts...), store
}

func TestMonthOwnership(t *testing.T) {
	ctx := context.Background()
	months, _, _ := newServices()

	m, err := months.Create(ctx, ann, january())
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if m.OwnerID != ann.ID {
		t.Fatalf("owner must come from the actor, got %q", m.OwnerID)
	}

	if _, err := months.Get(ctx, ann, m.ID); err != nil {
		t.Fatalf("owner get: %v", err)
	}

	tests := []struct {
		name string
		call func() error
	}{
		{"get", func() error { _, err := months.Get(ctx, bob, m.ID); return err }},
		{"update", func() error { _, err := months.Update(ctx, bob, m.ID, core.MonthParams{Money: str("1")}); return err }},
		{"delete", func() error { return months.Delete(ctx, bob, m.ID) }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.call()
			if !errors.Is(err, core.ErrAccessDenied) {
				t.Fatalf("expected access denied, got %v", err)
			}
			if errors.Is(err, core.ErrNotFound) {
				t.Fatalf("access denied must stay distinct from not found")
			}
		})
	}

	list, _ := months.List(ctx, bob)
	if len(list) != 0 {
		t.Fatalf("bob must not see ann's months, got %d", len(list))
	}
	got, _ := months.Get(ctx, ann, m.ID)
	if core.FormatMoney(got.Money) != "800.00" {
		t.Fatalf("denied update must not change the month, got %s", got.Money)
	}
}

func TestUnauthenticatedActorRejected(t *testing.T) {
	ctx := context.Background()
	months, notes, store := newServices()
	m, _ := months.Create(ctx, ann, january())

	checks := map[string]error{}
	_, checks["list"] = months.List(ctx, core.Actor{})
	_, checks["create"] = months.Create(ctx, core.Actor{}, core.MonthParams{Start: str("2024-02-01"), End: str("2024-02-29"), Money: str("1")})
	_, checks["get"] = months.Get(ctx, core.Actor{}, m.ID)
	checks["delete"] = months.Delete(ctx, core.Actor{}, m.ID)
	_, checks["note create"] = notes.Create(ctx, core.Actor{}, m.ID, core.NoteParams{Title: str("x"), Money: str("1")})
	_, checks["note list"] = notes.List(ctx, core.Actor{}, m.ID)

	for name, err := range checks {
		if !errors.Is(err, core.ErrUnauthenticated) {
			t.Errorf("%s: expected unauthenticated, got %v", name, err)
		}
	}
	all, _ := store.ListMonthsByOwner(ctx, "")
	if len(all) != 0 {
		t.Fatalf("anonymous create must not persist anything")
	}
	if _, err := store.GetMonth(ctx, m.ID); err != nil {
		t.Fatalf("anonymous delete must not remove the month: %v", err)
	}
}

func TestMonthNotFound(t *testing.T) {
	months, notes, _ := newServices()
	ctx := context.Background()

	if _, err := months.Get(ctx, ann, "missing"); !errors.Is(err, core.ErrMonthNotFound) {
		t.Fatalf("expected month not found, got %v", err)
	}
	if errors.Is(months.Delete(ctx, ann, "missing"), core.ErrAccessDenied) {
		t.Fatalf("missing month must not report access denied")
	}
	if _, err := notes.List(ctx, ann, "missing"); !errors.Is(err, core.ErrMonthNotFound) {
		t.Fatalf("expected month not found for notes, got %v", err)
	}
}

func TestMonthPeriodUniqueness(t *testing.T) {
	ctx := context.Background()
	months, _, _ := newServices()

	if _, err := months.Create(ctx, ann, january()); err != nil {
		t.Fatalf("create: %v", err)
	}
	_, err := months.Create(ctx, bob, january())
	if !errors.Is(err, core.ErrValidation) {
		t.Fatalf("expected validation error for taken period, got %v", err)
	}
	if _, ok := core.FieldErrors(err)["start"]; !ok {
		t.Fatalf("expected field error on start, got %v", core.FieldErrors(err))
	}

	feb, err := months.Create(ctx, ann, core.MonthParams{Start: str("2024-02-01"), End: str("2024-02-29"), Money: str("1")})
	if err != nil {
		t.Fatalf("create feb: %v", err)
	}
	_, err = months.Update(ctx, ann, feb.ID, core.MonthParams{Start: str("2024-01-01"), End: str("2024-01-31")})
	if !errors.Is(err, core.ErrValidation) {
		t.Fatalf("expected validation error moving onto a taken period, got %v", err)
	}
}

func TestMonthUpdateAllOrNothing(t *testing.T) {
	ctx := context.Background()
	months, _, _ := newServices()
	m, _ := months.Create(ctx, ann, january())

	_, err := months.Update(ctx, ann, m.ID, core.MonthParams{Start: str("2024-01-02"), Money: str("abc")})
	if !errors.Is(err, core.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	got, _ := months.Get(ctx, ann, m.ID)
	if got.Start.String() != "2024-01-01" || core.FormatMoney(got.Money) != "800.00" {
		t.Fatalf("failed update changed the month: %+v", got)
	}

	updated, err := months.Update(ctx, ann, m.ID, core.MonthParams{Money: str("950")})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if core.FormatMoney(updated.Money) != "950.00" || updated.End.String() != "2024-01-31" {
		t.Fatalf("partial update lost fields: %+v", updated)
	}
}

func TestMonthDeleteCascades(t *testing.T) {
	ctx := context.Background()
	months, notes, store := newServices()
	m, _ := months.Create(ctx, ann, january())
	for _, title := range []string{"Rent", "Food", "Fuel"} {
		if _, err := notes.Create(ctx, ann, m.ID, core.NoteParams{Title: str(title), Money: str("10")}); err != nil {
			t.Fatalf("create note: %v", err)
		}
	}

	if err := months.Delete(ctx, ann, m.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	left, _ := store.ListNotesByMonth(ctx, m.ID)
	if len(left) != 0 {
		t.Fatalf("expected notes deleted with month, %d left", len(left))
	}
	if _, err := months.Get(ctx, ann, m.ID); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected not found after delete, got %v", err)
	}
}

func TestNoteLifecycleAndSum(t *testing.T) {
	ctx := context.Background()
	months, notes, _ := newServices()
	m, _ := months.Create(ctx, ann, january())

	sum, err := notes.Sum(ctx, m.ID)
	if err != nil || core.FormatMoney(sum) != "0.00" {
		t.Fatalf("empty month must sum to zero, got %s (err=%v)", sum, err)
	}

	a, err := notes.Create(ctx, ann, m.ID, core.NoteParams{Title: str("Groceries"), Money: str("12.50")})
	if err != nil {
		t.Fatalf("create note: %v", err)
	}
	if _, err := notes.Create(ctx, ann, m.ID, core.NoteParams{Title: str("Bus"), Money: str("3.00")}); err != nil {
		t.Fatalf("create note: %v", err)
	}

	sum, _ = notes.Sum(ctx, m.ID)
	if core.FormatMoney(sum) != "15.50" {
		t.Fatalf("expected 15.50, got %s", sum)
	}

	if _, err := notes.Update(ctx, ann, m.ID, a.ID, core.NoteParams{Money: str("20")}); err != nil {
		t.Fatalf("update note: %v", err)
	}
	summary, err := notes.Summary(ctx, ann, m.ID)
	if err != nil {
		t.Fatalf("summary: %v", err)
	}
	if core.FormatMoney(summary.Spent) != "23.00" || core.FormatMoney(summary.Remaining) != "777.00" || len(summary.Notes) != 2 {
		t.Fatalf("unexpected summary spent=%s remaining=%s notes=%d", summary.Spent, summary.Remaining, len(summary.Notes))
	}

	if err := notes.Delete(ctx, ann, m.ID, a.ID); err != nil {
		t.Fatalf("delete note: %v", err)
	}
	if _, err := notes.Get(ctx, ann, m.ID, a.ID); !errors.Is(err, core.ErrNoteNotFound) {
		t.Fatalf("expected note not found, got %v", err)
	}
	if _, err := notes.Sum(ctx, "missing"); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected not found for unknown month, got %v", err)
	}
}

func TestNoteListReturnsMonthNotes(t *testing.T) {
	ctx := context.Background()
	months, notes, _ := newServices()
	m1, _ := months.Create(ctx, ann, january())
	m2, err := months.Create(ctx, ann, core.MonthParams{Start: str("2024-02-01"), End: str("2024-02-29"), Money: str("500")})
	if err != nil {
		t.Fatalf("create second month: %v", err)
	}

	n1, err := notes.Create(ctx, ann, m1.ID, core.NoteParams{Title: str("rent"), Money: str("800.00")})
	if err != nil {
		t.Fatalf("create note: %v", err)
	}
	if _, err := notes.Create(ctx, ann, m2.ID, core.NoteParams{Title: str("gym"), Money: str("40")}); err != nil {
		t.Fatalf("create note in second month: %v", err)
	}

	list, err := notes.List(ctx, ann, m1.ID)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 1 {
		t.Fatalf("expected exactly one note, got %d", len(list))
	}
	got := list[0]
	if got.ID != n1.ID || got.MonthID != m1.ID || got.Title != "rent" || core.FormatMoney(got.Money) != "800.00" {
		t.Fatalf("unexpected note %+v", got)
	}

	if _, err := notes.List(ctx, bob, m1.ID); !errors.Is(err, core.ErrAccessDenied) {
		t.Fatalf("expected access denied for another user, got %v", err)
	}
}

func TestNoteAuthorization(t *testing.T) {
	ctx := context.Background()
	months, notes, _ := newServices()
	annMonth, _ := months.Create(ctx, ann, january())
	bobMonth, _ := months.Create(ctx, bob, core.MonthParams{Start: str("2024-02-01"), End: str("2024-02-29"), Money: str("1")})
	n, _ := notes.Create(ctx, ann, annMonth.ID, core.NoteParams{Title: str("Rent"), Money: str("500")})

	if _, err := notes.Create(ctx, bob, annMonth.ID, core.NoteParams{Title: str("x"), Money: str("1")}); !errors.Is(err, core.ErrAccessDenied) {
		t.Fatalf("expected access denied creating in someone else's month, got %v", err)
	}
	if _, err := notes.Update(ctx, bob, annMonth.ID, n.ID, core.NoteParams{Title: str("mine")}); !errors.Is(err, core.ErrAccessDenied) {
		t.Fatalf("expected access denied, got %v", err)
	}
	// Addressing ann's note through bob's month does not find it.
	if err := notes.Delete(ctx, bob, bobMonth.ID, n.ID); !errors.Is(err, core.ErrNoteNotFound) {
		t.Fatalf("expected note not found, got %v", err)
	}
	got, err := notes.Get(ctx, ann, annMonth.ID, n.ID)
	if err != nil || got.Title != "Rent" {
		t.Fatalf("note must be untouched, got %+v (err=%v)", got, err)
	}
}

func TestNoteValidation(t *testing.T) {
	ctx := context.Background()
	months, notes, _ := newServices()
	m, _ := months.Create(ctx, ann, january())
	n, _ := notes.Create(ctx, ann, m.ID, core.NoteParams{Title: str("Rent"), Money: str("500")})

	if _, err := notes.Create(ctx, ann, m.ID, core.NoteParams{Title: str(""), Money: str("1")}); !errors.Is(err, core.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if _, err := notes.Update(ctx, ann, m.ID, n.ID, core.NoteParams{Title: str("New"), Money: str("x")}); !errors.Is(err, core.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	got, _ := notes.Get(ctx, ann, m.ID, n.ID)
	if got.Title != "Rent" {
		t.Fatalf("failed update changed the note: %+v", got)
	}
}

func TestConcealment(t *testing.T) {
	ctx := context.Background()
	months, notes, _ := newServices(WithConcealment(true))
	m, _ := months.Create(ctx, ann, january())
	n, _ := notes.Create(ctx, ann, m.ID, core.NoteParams{Title: str("Rent"), Money: str("500")})

	_, err := months.Get(ctx, bob, m.ID)
	if !errors.Is(err, core.ErrMonthNotFound) || errors.Is(err, core.ErrAccessDenied) {
		t.Fatalf("expected concealed month, got %v", err)
	}
	_, err = notes.Get(ctx, bob, m.ID, n.ID)
	if !errors.Is(err, core.ErrMonthNotFound) {
		t.Fatalf("expected concealed month for note lookup, got %v", err)
	}
}

func TestChangesArePublished(t *testing.T) {
	ctx := context.Background()
	pub := &recordingPublisher{}
	months, notes, _ := newServices(WithPublisher(pub))

	m, _ := months.Create(ctx, ann, january())
	n, _ := notes.Create(ctx, ann, m.ID, core.NoteParams{Title: str("Rent"), Money: str("500")})
	notes.Update(ctx, ann, m.ID, n.ID, core.NoteParams{Money: str("450")})
	notes.Delete(ctx, ann, m.ID, n.ID)
	months.Update(ctx, ann, m.ID, core.MonthParams{Money: str("1")})
	months.Delete(ctx, ann, m.ID)
	// Failed writes publish nothing.
	months.Delete(ctx, bob, m.ID)

	want := []amqp.ChangeKind{
		amqp.MonthCreated, amqp.NoteCreated, amqp.NoteUpdated,
		amqp.NoteDeleted, amqp.MonthUpdated, amqp.MonthDeleted,
	}
	got := pub.kinds()
	if len(got) != len(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("message %d: expected %s, got %s", i, want[i], got[i])
		}
	}
	if pub.msgs[0].Period != "2024-01-01..2024-01-31" {
		t.Fatalf("unexpected period %q", pub.msgs[0].Period)
	}
}

func TestPublishFailureDoesNotFailWrite(t *testing.T) {
	ctx := context.Background()
	pub := &recordingPublisher{err: errors.New("broker down")}
	months, _, _ := newServices(WithPublisher(pub))

	if _, err := months.Create(ctx, ann, january()); err != nil {
		t.Fatalf("create must succeed when publishing fails: %v", err)
	}
}

type failingStore struct {
	*memory.Store
}

func (failingStore) InsertMonth(context.Context, core.Month) (core.Month, error) {
	return core.Month{}, errors.New("disk I/O error")
}

func TestPersistenceFailureIsDistinct(t *testing.T) {
	months := NewMonthService(failingStore{memory.New()})

	_, err := months.Create(context.Background(), ann, january())
	if err == nil {
		t.Fatal("expected persistence error")
	}
	for _, sentinel := range []error{core.ErrNotFound, core.ErrAccessDenied, core.ErrValidation} {
		if errors.Is(err, sentinel) {
			t.Fatalf("persistence failure must not look like %v", sentinel)
		}
	}
}
