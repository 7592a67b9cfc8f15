// Package repository exposes offline-first repositories: reads are live
// queries over the local store, writes land locally unsynced, and Sync
// reconciles with the remote store.
package repository

import (
	"context"
	"time"

	"fintrack/internal/core"
	"fintrack/internal/storage"
	"fintrack/internal/stream"
)

type (
	// Syncer reconciles one entity for a user. It returns false when the
	// round should be retried later.
	Syncer interface {
		Sync(ctx context.Context, userID string) (bool, error)
	}

	BudgetRepository interface {
		Syncer
		Get(ctx context.Context, id string) *stream.Subscription[*core.Budget]
		GetAll(ctx context.Context, userID string, period core.Period) *stream.Subscription[[]core.Budget]
		GetByCategory(ctx context.Context, userID, categoryID string, period core.Period) *stream.Subscription[*core.Budget]
		Add(ctx context.Context, b core.Budget) (core.Budget, error)
		Update(ctx context.Context, b core.Budget) (core.Budget, error)
		Delete(ctx context.Context, id string) error
	}

	// TransactionRepository serves one transaction kind.
	TransactionRepository interface {
		Syncer
		Kind() core.TransactionKind
		Get(ctx context.Context, id string) *stream.Subscription[*core.Transaction]
		GetAll(ctx context.Context, userID string, period core.Period) *stream.Subscription[[]core.Transaction]
		// GetFiltered narrows GetAll to categoryIDs; an empty set matches all.
		GetFiltered(ctx context.Context, userID string, period core.Period, categoryIDs []string) *stream.Subscription[[]core.Transaction]
		Add(ctx context.Context, t core.Transaction) (core.Transaction, error)
		Update(ctx context.Context, t core.Transaction) (core.Transaction, error)
		Delete(ctx context.Context, id string) error
	}

	// LedgerRepository writes a budget change and the transaction change
	// behind it as one unit. A nil budget writes only the transaction.
	LedgerRepository interface {
		// Record upserts t, generating a missing id, and returns both rows
		// as stored.
		Record(ctx context.Context, b *core.Budget, t core.Transaction) (core.Transaction, *core.Budget, error)
		// Remove deletes t and leaves a tombstone.
		Remove(ctx context.Context, b *core.Budget, t core.Transaction) (*core.Budget, error)
	}

	UserRepository interface {
		Syncer
		Get(ctx context.Context, id string) *stream.Subscription[*core.User]
		// Current returns the signed-in user, or nil when signed out.
		Current(ctx context.Context) (*core.User, error)
		SignIn(ctx context.Context, u core.User) (core.User, error)
		SignOut(ctx context.Context) error
		Update(ctx context.Context, u core.User) (core.User, error)
		UserData(ctx context.Context, userID string) (core.UserData, error)
		SaveUserData(ctx context.Context, d core.UserData) error
	}

	// Synchronizer is the durable per-entity last-sync bookkeeping.
	Synchronizer interface {
		GetChangeLastSyncTimes(ctx context.Context, userID string) (core.ChangeLastSyncTimes, error)
		UpdateChangeLastSyncTimes(ctx context.Context, userID string, fn func(core.ChangeLastSyncTimes) core.ChangeLastSyncTimes) (core.ChangeLastSyncTimes, error)
	}
)

// Local is the local datastore the repositories are built on.
type Local interface {
	Synchronizer

	GetBudget(ctx context.Context, id string) (*core.Budget, error)
	ListBudgets(ctx context.Context, userID string, p core.Period) ([]core.Budget, error)
	FindBudgetByCategory(ctx context.Context, userID, categoryID string, p core.Period) (*core.Budget, error)
	UpsertBudget(ctx context.Context, b core.Budget) error
	DeleteBudget(ctx context.Context, id string, at time.Time) error
	ListUnsyncedBudgets(ctx context.Context, userID string) ([]core.Budget, error)
	MarkBudgetSynced(ctx context.Context, id string, updatedAt time.Time) (bool, error)
	ApplyRemoteBudget(ctx context.Context, b core.Budget) (bool, error)

	GetTransaction(ctx context.Context, kind core.TransactionKind, id string) (*core.Transaction, error)
	ListTransactions(ctx context.Context, f storage.TransactionFilter) ([]core.Transaction, error)
	UpsertTransaction(ctx context.Context, t core.Transaction) error
	DeleteTransaction(ctx context.Context, kind core.TransactionKind, id string, at time.Time) error
	ApplyLedger(ctx context.Context, w storage.LedgerWrite) error
	ListUnsyncedTransactions(ctx context.Context, kind core.TransactionKind, userID string) ([]core.Transaction, error)
	MarkTransactionSynced(ctx context.Context, id string, updatedAt time.Time) (bool, error)
	ApplyRemoteTransaction(ctx context.Context, t core.Transaction) (bool, error)

	GetUser(ctx context.Context, id string) (*core.User, error)
	UpsertUser(ctx context.Context, u core.User) error
	MarkUserSynced(ctx context.Context, id string, updatedAt time.Time) (bool, error)
	ApplyRemoteUser(ctx context.Context, u core.User) (bool, error)
	SessionUserID(ctx context.Context) (string, error)
	SetSessionUserID(ctx context.Context, userID string) error
	GetUserData(ctx context.Context, userID string) (core.UserData, error)
	SaveUserData(ctx context.Context, d core.UserData) error

	ListTombstones(ctx context.Context, entity core.Entity, userID string) ([]core.Tombstone, error)
	RemoveTombstone(ctx context.Context, entity core.Entity, entityID string) error
}

var _ Local = (*storage.SQLiteRepository)(nil)
