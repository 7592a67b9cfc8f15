// Package sheets defines the remote document store the sync layer
// reconciles against.
package sheets

import (
	"context"
	"errors"
	"time"

	"fintrack/internal/core"
)

// ErrUnavailable marks transient remote failures. Sync rounds that hit it
// are retried later.
var ErrUnavailable = errors.New("remote store unavailable")

// Ports for outbound adapters.
type (
	// Store holds one entity's documents, keyed by id and scoped per user.
	Store[T any] interface {
		// Upsert creates or replaces the document with the record's id.
		Upsert(ctx context.Context, record T) error
		// Delete removes a document. Deleting a missing document succeeds.
		Delete(ctx context.Context, userID, id string) error
		// ListUpdatedSince returns the user's documents updated strictly
		// after since.
		ListUpdatedSince(ctx context.Context, userID string, since time.Time) ([]T, error)
	}

	// Remote groups the per-entity stores of one backend.
	Remote interface {
		Budgets() Store[core.Budget]
		Expenses() Store[core.Transaction]
		Incomes() Store[core.Transaction]
		Users() Store[core.User]
	}
)

// IsTransient reports whether err should lead to a retry rather than a
// failure.
func IsTransient(err error) bool {
	return errors.Is(err, ErrUnavailable) || errors.Is(err, context.DeadlineExceeded)
}

// Transactions returns the store for the given transaction kind.
func Transactions(r Remote, kind core.TransactionKind) Store[core.Transaction] {
	if kind == core.KindIncome {
		return r.Incomes()
	}
	return r.Expenses()
}
