package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"monthbook/internal/core"
)

// Fixed width so stored timestamps sort lexically.
const timestampLayout = "2006-01-02T15:04:05.000000000Z07:00"

type SQLiteRepository struct {
	db      *sql.DB
	queries *Queries
	now     func() time.Time
}

// DSN returns the connection string for dbPath with foreign keys enforced.
func DSN(dbPath string) string {
	return "file:" + dbPath + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	dsn := DSN(dbPath)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	version, err := RunMigrations(dsn)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	slog.Info("SQLite schema ready", "path", dbPath, "schema_version", version)

	return &SQLiteRepository{
		db:      db,
		queries: New(db),
		now:     func() time.Time { return time.Now().UTC() },
	}, nil
}

func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

func (r *SQLiteRepository) CreateUser(ctx context.Context, u core.User) (core.User, error) {
	now := r.now()
	u.CreatedAt, u.UpdatedAt = now, now
	err := r.queries.CreateUser(ctx, User{
		ID:           u.ID,
		Email:        u.Email,
		PasswordHash: u.PasswordHash,
		CreatedAt:    now.Format(timestampLayout),
		UpdatedAt:    now.Format(timestampLayout),
	})
	if err != nil {
		return core.User{}, fmt.Errorf("create user: %w", translate(err, core.ErrNotFound))
	}
	slog.InfoContext(ctx, "User saved to SQLite", "user_id", u.ID)
	return u, nil
}

func (r *SQLiteRepository) GetUser(ctx context.Context, id string) (core.User, error) {
	row, err := r.queries.GetUser(ctx, id)
	if err != nil {
		return core.User{}, fmt.Errorf("get user %s: %w", id, translate(err, core.ErrNotFound))
	}
	return userFromRow(row)
}

func (r *SQLiteRepository) GetUserByEmail(ctx context.Context, email string) (core.User, error) {
	row, err := r.queries.GetUserByEmail(ctx, email)
	if err != nil {
		return core.User{}, fmt.Errorf("get user by email: %w", translate(err, core.ErrNotFound))
	}
	return userFromRow(row)
}

// BumpSessionVersion invalidates every session issued to the user so far and
// returns the new version.
func (r *SQLiteRepository) BumpSessionVersion(ctx context.Context, id string) (int64, error) {
	version, err := r.queries.BumpSessionVersion(ctx, r.now().Format(timestampLayout), id)
	if err != nil {
		return 0, fmt.Errorf("bump session version of user %s: %w", id, translate(err, core.ErrNotFound))
	}
	return version, nil
}

func (r *SQLiteRepository) InsertMonth(ctx context.Context, m core.Month) (core.Month, error) {
	now := r.now()
	m.CreatedAt, m.UpdatedAt = now, now
	if err := r.queries.CreateMonth(ctx, monthToRow(m)); err != nil {
		return core.Month{}, fmt.Errorf("create month: %w", translate(err, core.ErrNotFound))
	}
	slog.InfoContext(ctx, "Month saved to SQLite",
		"month_id", m.ID,
		"owner_id", m.OwnerID,
		"start", m.Start.String(),
		"end", m.End.String())
	return m, nil
}

func (r *SQLiteRepository) GetMonth(ctx context.Context, id string) (core.Month, error) {
	row, err := r.queries.GetMonth(ctx, id)
	if err != nil {
		return core.Month{}, fmt.Errorf("get month %s: %w", id, translate(err, core.ErrMonthNotFound))
	}
	return monthFromRow(row)
}

func (r *SQLiteRepository) ListMonthsByOwner(ctx context.Context, ownerID string) ([]core.Month, error) {
	rows, err := r.queries.ListMonthsByOwner(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list months: %w", err)
	}
	months := make([]core.Month, 0, len(rows))
	for _, row := range rows {
		m, err := monthFromRow(row)
		if err != nil {
			return nil, err
		}
		months = append(months, m)
	}
	return months, nil
}

func (r *SQLiteRepository) UpdateMonth(ctx context.Context, m core.Month) (core.Month, error) {
	m.UpdatedAt = r.now()
	n, err := r.queries.UpdateMonth(ctx, monthToRow(m))
	if err != nil {
		return core.Month{}, fmt.Errorf("update month %s: %w", m.ID, translate(err, core.ErrMonthNotFound))
	}
	if n == 0 {
		return core.Month{}, fmt.Errorf("update month %s: %w", m.ID, core.ErrMonthNotFound)
	}
	return m, nil
}

// DeleteMonth removes the month's notes and then the month inside one
// transaction, so a failure leaves both untouched.
func (r *SQLiteRepository) DeleteMonth(ctx context.Context, id string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin delete month: %w", err)
	}
	defer tx.Rollback()

	q := r.queries.WithTx(tx)
	notes, err := q.DeleteNotesByMonth(ctx, id)
	if err != nil {
		return fmt.Errorf("delete notes of month %s: %w", id, err)
	}
	n, err := q.DeleteMonth(ctx, id)
	if err != nil {
		return fmt.Errorf("delete month %s: %w", id, err)
	}
	if n == 0 {
		return fmt.Errorf("delete month %s: %w", id, core.ErrMonthNotFound)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit delete month %s: %w", id, err)
	}

	slog.InfoContext(ctx, "Month deleted from SQLite", "month_id", id, "notes_deleted", notes)
	return nil
}

func (r *SQLiteRepository) InsertNote(ctx context.Context, n core.Note) (core.Note, error) {
	now := r.now()
	n.CreatedAt, n.UpdatedAt = now, now
	if err := r.queries.CreateNote(ctx, noteToRow(n)); err != nil {
		return core.Note{}, fmt.Errorf("create note: %w", translate(err, core.ErrMonthNotFound))
	}
	slog.InfoContext(ctx, "Note saved to SQLite",
		"note_id", n.ID,
		"month_id", n.MonthID,
		"money", core.FormatMoney(n.Money))
	return n, nil
}

func (r *SQLiteRepository) GetNote(ctx context.Context, id string) (core.Note, error) {
	row, err := r.queries.GetNote(ctx, id)
	if err != nil {
		return core.Note{}, fmt.Errorf("get note %s: %w", id, translate(err, core.ErrNoteNotFound))
	}
	return noteFromRow(row)
}

func (r *SQLiteRepository) ListNotesByMonth(ctx context.Context, monthID string) ([]core.Note, error) {
	rows, err := r.queries.ListNotesByMonth(ctx, monthID)
	if err != nil {
		return nil, fmt.Errorf("list notes: %w", err)
	}
	notes := make([]core.Note, 0, len(rows))
	for _, row := range rows {
		n, err := noteFromRow(row)
		if err != nil {
			return nil, err
		}
		notes = append(notes, n)
	}
	return notes, nil
}

func (r *SQLiteRepository) UpdateNote(ctx context.Context, n core.Note) (core.Note, error) {
	n.UpdatedAt = r.now()
	affected, err := r.queries.UpdateNote(ctx, noteToRow(n))
	if err != nil {
		return core.Note{}, fmt.Errorf("update note %s: %w", n.ID, translate(err, core.ErrNoteNotFound))
	}
	if affected == 0 {
		return core.Note{}, fmt.Errorf("update note %s: %w", n.ID, core.ErrNoteNotFound)
	}
	return n, nil
}

func (r *SQLiteRepository) DeleteNote(ctx context.Context, id string) error {
	n, err := r.queries.DeleteNote(ctx, id)
	if err != nil {
		return fmt.Errorf("delete note %s: %w", id, err)
	}
	if n == 0 {
		return fmt.Errorf("delete note %s: %w", id, core.ErrNoteNotFound)
	}
	return nil
}

// translate maps driver errors onto the domain sentinels. Missing rows and
// foreign key failures become notFound.
func translate(err, notFound error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return notFound
	}
	var se *sqlite.Error
	if errors.As(err, &se) {
		switch se.Code() {
		case sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
			return fmt.Errorf("%w: %v", core.ErrDuplicate, err)
		case sqlite3.SQLITE_CONSTRAINT_FOREIGNKEY:
			return fmt.Errorf("%w: %v", notFound, err)
		}
		if se.Code()&0xff == sqlite3.SQLITE_CONSTRAINT && strings.Contains(se.Error(), "UNIQUE") {
			return fmt.Errorf("%w: %v", core.ErrDuplicate, err)
		}
	}
	return err
}

func userFromRow(row User) (core.User, error) {
	created, err := time.Parse(timestampLayout, row.CreatedAt)
	if err != nil {
		return core.User{}, fmt.Errorf("parse user created_at: %w", err)
	}
	updated, err := time.Parse(timestampLayout, row.UpdatedAt)
	if err != nil {
		return core.User{}, fmt.Errorf("parse user updated_at: %w", err)
	}
	return core.User{
		ID:           row.ID,
		Email:        row.Email,
		PasswordHash:   row.PasswordHash,
		SessionVersion: row.SessionVersion,
		CreatedAt:      created,
		UpdatedAt:      updated,
	}, nil
}

func monthToRow(m core.Month) Month {
	return Month{
		ID:        m.ID,
		StartDate: m.Start.String(),
		EndDate:   m.End.String(),
		Money:     core.FormatMoney(m.Money),
		OwnerID:   m.OwnerID,
		CreatedAt: m.CreatedAt.Format(timestampLayout),
		UpdatedAt: m.UpdatedAt.Format(timestampLayout),
	}
}

func monthFromRow(row Month) (core.Month, error) {
	start, err := core.ParseDate(row.StartDate)
	if err != nil {
		return core.Month{}, fmt.Errorf("parse month start: %w", err)
	}
	end, err := core.ParseDate(row.EndDate)
	if err != nil {
		return core.Month{}, fmt.Errorf("parse month end: %w", err)
	}
	money, err := decimal.NewFromString(row.Money)
	if err != nil {
		return core.Month{}, fmt.Errorf("parse month money: %w", err)
	}
	created, _ := time.Parse(timestampLayout, row.CreatedAt)
	updated, _ := time.Parse(timestampLayout, row.UpdatedAt)
	return core.Month{
		ID:        row.ID,
		Start:     start,
		End:       end,
		Money:     money,
		OwnerID:   row.OwnerID,
		CreatedAt: created,
		UpdatedAt: updated,
	}, nil
}

func noteToRow(n core.Note) Note {
	return Note{
		ID:        n.ID,
		Title:     n.Title,
		Money:     core.FormatMoney(n.Money),
		MonthID:   n.MonthID,
		CreatedAt: n.CreatedAt.Format(timestampLayout),
		UpdatedAt: n.UpdatedAt.Format(timestampLayout),
	}
}

func noteFromRow(row Note) (core.Note, error) {
	money, err := decimal.NewFromString(row.Money)
	if err != nil {
		return core.Note{}, fmt.Errorf("parse note money: %w", err)
	}
	created, _ := time.Parse(timestampLayout, row.CreatedAt)
	updated, _ := time.Parse(timestampLayout, row.UpdatedAt)
	return core.Note{
		ID:        row.ID,
		Title:     row.Title,
		Money:     money,
		MonthID:   row.MonthID,
		CreatedAt: created,
		UpdatedAt: updated,
	}, nil
}
