package storage

import (
	"context"
)

const createUser = `
INSERT INTO users (id, email, password_hash, created_at, updated_at)
VALUES (?, ?, ?, ?, ?)
`

func (q *Queries) CreateUser(ctx context.Context, arg User) error {
	_, err := q.db.ExecContext(ctx, createUser,
		arg.ID, arg.Email, arg.PasswordHash, arg.CreatedAt, arg.UpdatedAt)
	return err
}

const getUser = `
SELECT id, email, password_hash, session_version, created_at, updated_at FROM users WHERE id = ?
`

func (q *Queries) GetUser(ctx context.Context, id string) (User, error) {
	row := q.db.QueryRowContext(ctx, getUser, id)
	var i User
	err := row.Scan(&i.ID, &i.Email, &i.PasswordHash, &i.SessionVersion, &i.CreatedAt, &i.UpdatedAt)
	return i, err
}

const getUserByEmail = `
SELECT id, email, password_hash, session_version, created_at, updated_at FROM users WHERE email = ?
`

func (q *Queries) GetUserByEmail(ctx context.Context, email string) (User, error) {
	row := q.db.QueryRowContext(ctx, getUserByEmail, email)
	var i User
	err := row.Scan(&i.ID, &i.Email, &i.PasswordHash, &i.SessionVersion, &i.CreatedAt, &i.UpdatedAt)
	return i, err
}

const bumpSessionVersion = `
UPDATE users SET session_version = session_version + 1, updated_at = ? WHERE id = ?
RETURNING session_version
`

func (q *Queries) BumpSessionVersion(ctx context.Context, updatedAt, id string) (int64, error) {
	row := q.db.QueryRowContext(ctx, bumpSessionVersion, updatedAt, id)
	var version int64
	err := row.Scan(&version)
	return version, err
}

const createMonth = `
INSERT INTO months (id, start_date, end_date, money, owner_id, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?)
`

func (q *Queries) CreateMonth(ctx context.Context, arg Month) error {
	_, err := q.db.ExecContext(ctx, createMonth,
		arg.ID, arg.StartDate, arg.EndDate, arg.Money, arg.OwnerID, arg.CreatedAt, arg.UpdatedAt)
	return err
}

const getMonth = `
SELECT id, start_date, end_date, money, owner_id, created_at, updated_at FROM months WHERE id = ?
`

func (q *Queries) GetMonth(ctx context.Context, id string) (Month, error) {
	row := q.db.QueryRowContext(ctx, getMonth, id)
	var i Month
	err := row.Scan(&i.ID, &i.StartDate, &i.EndDate, &i.Money, &i.OwnerID, &i.CreatedAt, &i.UpdatedAt)
	return i, err
}

const listMonthsByOwner = `
SELECT id, start_date, end_date, money, owner_id, created_at, updated_at
FROM months
WHERE owner_id = ?
ORDER BY start_date DESC, end_date DESC
`

func (q *Queries) ListMonthsByOwner(ctx context.Context, ownerID string) ([]Month, error) {
	rows, err := q.db.QueryContext(ctx, listMonthsByOwner, ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Month
	for rows.Next() {
		var i Month
		if err := rows.Scan(&i.ID, &i.StartDate, &i.EndDate, &i.Money, &i.OwnerID, &i.CreatedAt, &i.UpdatedAt); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const updateMonth = `
UPDATE months SET start_date = ?, end_date = ?, money = ?, updated_at = ? WHERE id = ?
`

func (q *Queries) UpdateMonth(ctx context.Context, arg Month) (int64, error) {
	result, err := q.db.ExecContext(ctx, updateMonth,
		arg.StartDate, arg.EndDate, arg.Money, arg.UpdatedAt, arg.ID)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

const deleteMonth = `
DELETE FROM months WHERE id = ?
`

func (q *Queries) DeleteMonth(ctx context.Context, id string) (int64, error) {
	result, err := q.db.ExecContext(ctx, deleteMonth, id)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

const createNote = `
INSERT INTO notes (id, title, money, month_id, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?)
`

func (q *Queries) CreateNote(ctx context.Context, arg Note) error {
	_, err := q.db.ExecContext(ctx, createNote,
		arg.ID, arg.Title, arg.Money, arg.MonthID, arg.CreatedAt, arg.UpdatedAt)
	return err
}

const getNote = `
SELECT id, title, money, month_id, created_at, updated_at FROM notes WHERE id = ?
`

func (q *Queries) GetNote(ctx context.Context, id string) (Note, error) {
	row := q.db.QueryRowContext(ctx, getNote, id)
	var i Note
	err := row.Scan(&i.ID, &i.Title, &i.Money, &i.MonthID, &i.CreatedAt, &i.UpdatedAt)
	return i, err
}

const listNotesByMonth = `
SELECT id, title, money, month_id, created_at, updated_at
FROM notes
WHERE month_id = ?
ORDER BY created_at, id
`

func (q *Queries) ListNotesByMonth(ctx context.Context, monthID string) ([]Note, error) {
	rows, err := q.db.QueryContext(ctx, listNotesByMonth, monthID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Note
	for rows.Next() {
		var i Note
		if err := rows.Scan(&i.ID, &i.Title, &i.Money, &i.MonthID, &i.CreatedAt, &i.UpdatedAt); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const updateNote = `
UPDATE notes SET title = ?, money = ?, updated_at = ? WHERE id = ?
`

func (q *Queries) UpdateNote(ctx context.Context, arg Note) (int64, error) {
	result, err := q.db.ExecContext(ctx, updateNote, arg.Title, arg.Money, arg.UpdatedAt, arg.ID)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

const deleteNote = `
DELETE FROM notes WHERE id = ?
`

func (q *Queries) DeleteNote(ctx context.Context, id string) (int64, error) {
	result, err := q.db.ExecContext(ctx, deleteNote, id)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

const deleteNotesByMonth = `
DELETE FROM notes WHERE month_id = ?
`

func (q *Queries) DeleteNotesByMonth(ctx context.Context, monthID string) (int64, error) {
	result, err := q.db.ExecContext(ctx, deleteNotesByMonth, monthID)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}
