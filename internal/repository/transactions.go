package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"fintrack/internal/core"
	"fintrack/internal/sheets"
	"fintrack/internal/storage"
	"fintrack/internal/stream"
)

// Transactions is the offline-first TransactionRepository for one kind.
type Transactions struct {
	kind  core.TransactionKind
	local Local
	inv   *stream.Invalidator
	now   func() time.Time
	sync  *reconciler[core.Transaction]
}

var _ TransactionRepository = (*Transactions)(nil)

func NewTransactions(kind core.TransactionKind, local Local, remote sheets.Store[core.Transaction], now func() time.Time) *Transactions {
	if now == nil {
		now = time.Now
	}
	r := &Transactions{kind: kind, local: local, inv: stream.NewInvalidator(), now: now}
	r.sync = &reconciler[core.Transaction]{
		entity: core.EntityForKind(kind),
		local:  local,
		remote: remote,
		now:    now,
		key:    func(t core.Transaction) (string, time.Time) { return t.ID, t.UpdatedAt },
		listUnsynced: func(ctx context.Context, userID string) ([]core.Transaction, error) {
			return local.ListUnsyncedTransactions(ctx, kind, userID)
		},
		markSynced: local.MarkTransactionSynced,
		applyRemote: func(ctx context.Context, t core.Transaction) (bool, error) {
			t.Kind = kind
			return local.ApplyRemoteTransaction(ctx, t)
		},
		changed:    r.inv.Invalidate,
		tombstones: true,
	}
	return r
}

func (r *Transactions) Kind() core.TransactionKind { return r.kind }

func (r *Transactions) Get(ctx context.Context, id string) *stream.Subscription[*core.Transaction] {
	return stream.Watch(ctx, r.inv, func(ctx context.Context) (*core.Transaction, error) {
		return r.local.GetTransaction(ctx, r.kind, id)
	})
}

func (r *Transactions) GetAll(ctx context.Context, userID string, period core.Period) *stream.Subscription[[]core.Transaction] {
	return r.GetFiltered(ctx, userID, period, nil)
}

func (r *Transactions) GetFiltered(ctx context.Context, userID string, period core.Period, categoryIDs []string) *stream.Subscription[[]core.Transaction] {
	f := storage.TransactionFilter{UserID: userID, Kind: r.kind, Period: period, CategoryIDs: categoryIDs}
	return stream.Watch(ctx, r.inv, func(ctx context.Context) ([]core.Transaction, error) {
		return r.local.ListTransactions(ctx, f)
	})
}

// Add stores a new transaction. A missing id is generated.
func (r *Transactions) Add(ctx context.Context, t core.Transaction) (core.Transaction, error) {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	return r.save(ctx, t)
}

func (r *Transactions) Update(ctx context.Context, t core.Transaction) (core.Transaction, error) {
	return r.save(ctx, t)
}

func (r *Transactions) save(ctx context.Context, t core.Transaction) (core.Transaction, error) {
	t.Kind = r.kind
	t.UpdatedAt = r.now()
	t.Synced = false
	if err := r.local.UpsertTransaction(ctx, t); err != nil {
		return core.Transaction{}, err
	}
	r.inv.Invalidate()
	return t, nil
}

func (r *Transactions) Delete(ctx context.Context, id string) error {
	if err := r.local.DeleteTransaction(ctx, r.kind, id, r.now()); err != nil {
		return err
	}
	r.inv.Invalidate()
	return nil
}

func (r *Transactions) Sync(ctx context.Context, userID string) (bool, error) {
	return r.sync.run(ctx, userID)
}
