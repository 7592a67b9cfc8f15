// Package memory is an in-process remote store used by tests and the
// memory backend.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"fintrack/internal/core"
	"fintrack/internal/sheets"
)

// Store keeps every entity table in memory. It can be switched offline to
// simulate an unreachable remote.
type Store struct {
	offline  *offlineFlag
	budgets  *Table[core.Budget]
	expenses *Table[core.Transaction]
	incomes  *Table[core.Transaction]
	users    *Table[core.User]
}

var _ sheets.Remote = (*Store)(nil)

func New() *Store {
	off := &offlineFlag{}
	return &Store{
		offline: off,
		budgets: newTable(off,
			func(b core.Budget) (string, string, time.Time) { return b.ID, b.UserID, b.UpdatedAt }),
		expenses: newTable(off,
			func(t core.Transaction) (string, string, time.Time) { return t.ID, t.UserID, t.UpdatedAt }),
		incomes: newTable(off,
			func(t core.Transaction) (string, string, time.Time) { return t.ID, t.UserID, t.UpdatedAt }),
		users: newTable(off,
			func(u core.User) (string, string, time.Time) { return u.ID, u.ID, u.UpdatedAt }),
	}
}

func (s *Store) Budgets() sheets.Store[core.Budget]       { return s.budgets }
func (s *Store) Expenses() sheets.Store[core.Transaction] { return s.expenses }
func (s *Store) Incomes() sheets.Store[core.Transaction]  { return s.incomes }
func (s *Store) Users() sheets.Store[core.User]           { return s.users }

// SetOffline makes every operation fail with sheets.ErrUnavailable until
// switched back.
func (s *Store) SetOffline(offline bool) {
	s.offline.set(offline)
}

// Budget returns the stored budget document.
func (s *Store) Budget(id string) (core.Budget, bool) { return s.budgets.Get(id) }

// Transaction returns the stored expense or income document.
func (s *Store) Transaction(kind core.TransactionKind, id string) (core.Transaction, bool) {
	if kind == core.KindIncome {
		return s.incomes.Get(id)
	}
	return s.expenses.Get(id)
}

// User returns the stored user document.
func (s *Store) User(id string) (core.User, bool) { return s.users.Get(id) }

type offlineFlag struct {
	mu  sync.Mutex
	off bool
}

func (f *offlineFlag) set(v bool) {
	f.mu.Lock()
	f.off = v
	f.mu.Unlock()
}

func (f *offlineFlag) check() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.off {
		return sheets.ErrUnavailable
	}
	return nil
}

// Table is one entity's documents.
type Table[T any] struct {
	mu      sync.Mutex
	offline *offlineFlag
	key     func(T) (id, userID string, updatedAt time.Time)
	rows    map[string]T
}

func newTable[T any](off *offlineFlag, key func(T) (string, string, time.Time)) *Table[T] {
	return &Table[T]{offline: off, key: key, rows: make(map[string]T)}
}

func (t *Table[T]) Upsert(ctx context.Context, record T) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := t.offline.check(); err != nil {
		return err
	}
	id, _, _ := t.key(record)
	t.mu.Lock()
	defer t.mu.Unlock()
	t.rows[id] = record
	return nil
}

func (t *Table[T]) Delete(ctx context.Context, _ string, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := t.offline.check(); err != nil {
		return err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.rows, id)
	return nil
}

// ListUpdatedSince returns matching documents ordered by update time.
func (t *Table[T]) ListUpdatedSince(ctx context.Context, userID string, since time.Time) ([]T, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := t.offline.check(); err != nil {
		return nil, err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	var out []T
	for _, r := range t.rows {
		_, uid, updated := t.key(r)
		if uid == userID && updated.After(since) {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		_, _, a := t.key(out[i])
		_, _, b := t.key(out[j])
		return a.Before(b)
	})
	return out, nil
}

// Get returns a document by id.
func (t *Table[T]) Get(id string) (T, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	r, ok := t.rows[id]
	return r, ok
}

// Len returns the number of stored documents.
func (t *Table[T]) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.rows)
}
