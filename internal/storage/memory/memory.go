// Package memory is a process-local Repository used by tests and by the
// memory data backend.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"monthbook/internal/core"
)

type Store struct {
	mu     sync.Mutex
	users  map[string]core.User
	months map[string]core.Month
	notes  map[string]core.Note
	seq    int64
	now    func() time.Time
}

func New() *Store {
	return &Store{
		users:  make(map[string]core.User),
		months: make(map[string]core.Month),
		notes:  make(map[string]core.Note),
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// stamp returns a strictly increasing time so insertion order survives sorting.
func (s *Store) stamp() time.Time {
	s.seq++
	return s.now().Add(time.Duration(s.seq))
}

func (s *Store) Ping(context.Context) error { return nil }

func (s *Store) Close() error { return nil }

func (s *Store) CreateUser(_ context.Context, u core.User) (core.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[u.ID]; ok {
		return core.User{}, fmt.Errorf("create user: %w", core.ErrDuplicate)
	}
	for _, existing := range s.users {
		if existing.Email == u.Email {
			return core.User{}, fmt.Errorf("create user: email %w", core.ErrDuplicate)
		}
	}
	u.CreatedAt = s.stamp()
	u.UpdatedAt = u.CreatedAt
	s.users[u.ID] = u
	return u, nil
}

func (s *Store) GetUser(_ context.Context, id string) (core.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return core.User{}, fmt.Errorf("get user %s: %w", id, core.ErrNotFound)
	}
	return u, nil
}

func (s *Store) GetUserByEmail(_ context.Context, email string) (core.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.Email == email {
			return u, nil
		}
	}
	return core.User{}, fmt.Errorf("get user by email: %w", core.ErrNotFound)
}

func (s *Store) BumpSessionVersion(_ context.Context, id string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return 0, fmt.Errorf("bump session version of user %s: %w", id, core.ErrNotFound)
	}
	u.SessionVersion++
	u.UpdatedAt = s.stamp()
	s.users[id] = u
	return u.SessionVersion, nil
}

func (s *Store) InsertMonth(_ context.Context, m core.Month) (core.Month, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.months[m.ID]; ok {
		return core.Month{}, fmt.Errorf("create month: %w", core.ErrDuplicate)
	}
	if s.periodTaken(m) {
		return core.Month{}, fmt.Errorf("create month: period %w", core.ErrDuplicate)
	}
	m.CreatedAt = s.stamp()
	m.UpdatedAt = m.CreatedAt
	s.months[m.ID] = m
	return m, nil
}

func (s *Store) GetMonth(_ context.Context, id string) (core.Month, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.months[id]
	if !ok {
		return core.Month{}, fmt.Errorf("get month %s: %w", id, core.ErrMonthNotFound)
	}
	return m, nil
}

func (s *Store) ListMonthsByOwner(_ context.Context, ownerID string) ([]core.Month, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]core.Month, 0)
	for _, m := range s.months {
		if m.OwnerID == ownerID {
			out = append(out, m)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Start.Equal(out[j].Start.Time) {
			return out[i].Start.After(out[j].Start.Time)
		}
		return out[i].End.After(out[j].End.Time)
	})
	return out, nil
}

func (s *Store) UpdateMonth(_ context.Context, m core.Month) (core.Month, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	current, ok := s.months[m.ID]
	if !ok {
		return core.Month{}, fmt.Errorf("update month %s: %w", m.ID, core.ErrMonthNotFound)
	}
	if s.periodTaken(m) {
		return core.Month{}, fmt.Errorf("update month %s: period %w", m.ID, core.ErrDuplicate)
	}
	m.OwnerID = current.OwnerID
	m.CreatedAt = current.CreatedAt
	m.UpdatedAt = s.stamp()
	s.months[m.ID] = m
	return m, nil
}

func (s *Store) DeleteMonth(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.months[id]; !ok {
		return fmt.Errorf("delete month %s: %w", id, core.ErrMonthNotFound)
	}
	for noteID, n := range s.notes {
		if n.MonthID == id {
			delete(s.notes, noteID)
		}
	}
	delete(s.months, id)
	return nil
}

func (s *Store) InsertNote(_ context.Context, n core.Note) (core.Note, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.months[n.MonthID]; !ok {
		return core.Note{}, fmt.Errorf("create note: month %s: %w", n.MonthID, core.ErrMonthNotFound)
	}
	if _, ok := s.notes[n.ID]; ok {
		return core.Note{}, fmt.Errorf("create note: %w", core.ErrDuplicate)
	}
	n.CreatedAt = s.stamp()
	n.UpdatedAt = n.CreatedAt
	s.notes[n.ID] = n
	return n, nil
}

func (s *Store) GetNote(_ context.Context, id string) (core.Note, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, ok := s.notes[id]
	if !ok {
		return core.Note{}, fmt.Errorf("get note %s: %w", id, core.ErrNoteNotFound)
	}
	return n, nil
}

func (s *Store) ListNotesByMonth(_ context.Context, monthID string) ([]core.Note, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]core.Note, 0)
	for _, n := range s.notes {
		if n.MonthID == monthID {
			out = append(out, n)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *Store) UpdateNote(_ context.Context, n core.Note) (core.Note, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	current, ok := s.notes[n.ID]
	if !ok {
		return core.Note{}, fmt.Errorf("update note %s: %w", n.ID, core.ErrNoteNotFound)
	}
	n.MonthID = current.MonthID
	n.CreatedAt = current.CreatedAt
	n.UpdatedAt = s.stamp()
	s.notes[n.ID] = n
	return n, nil
}

func (s *Store) DeleteNote(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.notes[id]; !ok {
		return fmt.Errorf("delete note %s: %w", id, core.ErrNoteNotFound)
	}
	delete(s.notes, id)
	return nil
}

// periodTaken reports whether another month already covers m's start and end.
// Callers hold s.mu.
func (s *Store) periodTaken(m core.Month) bool {
	for id, other := range s.months {
		if id != m.ID && other.Start.Equal(m.Start.Time) && other.End.Equal(m.End.Time) {
			return true
		}
	}
	return false
}
