package storage

import (
	"context"

	"monthbook/internal/core"
)

// Ports implemented by every persistence backend. Lookups of missing records
// return core.ErrNotFound; uniqueness violations return core.ErrDuplicate.
type (
	UserStore interface {
		CreateUser(ctx context.Context, u core.User) (core.User, error)
		GetUser(ctx context.Context, id string) (core.User, error)
		GetUserByEmail(ctx context.Context, email string) (core.User, error)
		BumpSessionVersion(ctx context.Context, id string) (int64, error)
	}

	MonthStore interface {
		InsertMonth(ctx context.Context, m core.Month) (core.Month, error)
		GetMonth(ctx context.Context, id string) (core.Month, error)
		ListMonthsByOwner(ctx context.Context, ownerID string) ([]core.Month, error)
		UpdateMonth(ctx context.Context, m core.Month) (core.Month, error)
		// DeleteMonth removes the month and all of its notes in one unit.
		DeleteMonth(ctx context.Context, id string) error
	}

	NoteStore interface {
		InsertNote(ctx context.Context, n core.Note) (core.Note, error)
		GetNote(ctx context.Context, id string) (core.Note, error)
		ListNotesByMonth(ctx context.Context, monthID string) ([]core.Note, error)
		UpdateNote(ctx context.Context, n core.Note) (core.Note, error)
		DeleteNote(ctx context.Context, id string) error
	}

	Repository interface {
		UserStore
		MonthStore
		NoteStore
		Ping(ctx context.Context) error
		Close() error
	}
)
