package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"fintrack/internal/core"
	"fintrack/internal/sheets"
	"fintrack/internal/stream"
)

// Budgets is the offline-first BudgetRepository.
type Budgets struct {
	local Local
	inv   *stream.Invalidator
	now   func() time.Time
	sync  *reconciler[core.Budget]
}

var _ BudgetRepository = (*Budgets)(nil)

func NewBudgets(local Local, remote sheets.Store[core.Budget], now func() time.Time) *Budgets {
	if now == nil {
		now = time.Now
	}
	r := &Budgets{local: local, inv: stream.NewInvalidator(), now: now}
	r.sync = &reconciler[core.Budget]{
		entity:       core.EntityBudget,
		local:        local,
		remote:       remote,
		now:          now,
		key:          func(b core.Budget) (string, time.Time) { return b.ID, b.UpdatedAt },
		listUnsynced: local.ListUnsyncedBudgets,
		markSynced:   local.MarkBudgetSynced,
		applyRemote:  local.ApplyRemoteBudget,
		changed:      r.inv.Invalidate,
		tombstones:   true,
	}
	return r
}

func (r *Budgets) Get(ctx context.Context, id string) *stream.Subscription[*core.Budget] {
	return stream.Watch(ctx, r.inv, func(ctx context.Context) (*core.Budget, error) {
		return r.local.GetBudget(ctx, id)
	})
}

func (r *Budgets) GetAll(ctx context.Context, userID string, period core.Period) *stream.Subscription[[]core.Budget] {
	return stream.Watch(ctx, r.inv, func(ctx context.Context) ([]core.Budget, error) {
		return r.local.ListBudgets(ctx, userID, period)
	})
}

func (r *Budgets) GetByCategory(ctx context.Context, userID, categoryID string, period core.Period) *stream.Subscription[*core.Budget] {
	return stream.Watch(ctx, r.inv, func(ctx context.Context) (*core.Budget, error) {
		return r.local.FindBudgetByCategory(ctx, userID, categoryID, period)
	})
}

// Add stores a new budget. A missing id is generated.
func (r *Budgets) Add(ctx context.Context, b core.Budget) (core.Budget, error) {
	if b.ID == "" {
		b.ID = uuid.NewString()
	}
	if b.CreatedAt.IsZero() {
		b.CreatedAt = r.now()
	}
	return r.save(ctx, b)
}

func (r *Budgets) Update(ctx context.Context, b core.Budget) (core.Budget, error) {
	return r.save(ctx, b)
}

func (r *Budgets) save(ctx context.Context, b core.Budget) (core.Budget, error) {
	b.UpdatedAt = r.now()
	b.Synced = false
	if err := r.local.UpsertBudget(ctx, b); err != nil {
		return core.Budget{}, err
	}
	r.inv.Invalidate()
	return b, nil
}

// Delete removes the budget locally and leaves a tombstone for the next
// sync round.
func (r *Budgets) Delete(ctx context.Context, id string) error {
	if err := r.local.DeleteBudget(ctx, id, r.now()); err != nil {
		return err
	}
	r.inv.Invalidate()
	return nil
}

func (r *Budgets) Sync(ctx context.Context, userID string) (bool, error) {
	return r.sync.run(ctx, userID)
}
