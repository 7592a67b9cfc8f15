// Package scheduler runs worker jobs from the durable SQLite work queue.
package scheduler

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"fintrack/internal/core"
	"fintrack/internal/storage"
	"fintrack/internal/worker"
)

// Store is the persistence the scheduler needs.
type Store interface {
	EnqueueWork(ctx context.Context, p storage.EnqueueParams) (int64, bool, error)
	ClaimDueWork(ctx context.Context, now time.Time, limit int) ([]storage.WorkItem, error)
	CompleteWork(ctx context.Context, id int64) error
	FailWork(ctx context.Context, id int64, lastErr string) error
	RetryWork(ctx context.Context, id int64, attempts int, runAt time.Time, lastErr string) error
	ResetStaleWork(ctx context.Context) (int, error)
	RetryFailedWork(ctx context.Context) (int, error)
	CleanupWork(ctx context.Context, cutoff time.Time) (int64, error)
	WorkQueueStats(ctx context.Context) (storage.WorkStats, error)
}

var _ Store = (*storage.SQLiteRepository)(nil)

// Queue enqueues worker jobs.
type Queue struct {
	store Store
	now   func() time.Time
}

var _ worker.Enqueuer = (*Queue)(nil)

func NewQueue(store Store) *Queue {
	return &Queue{store: store, now: time.Now}
}

// Enqueue stores w. A zero RunAt runs the job as soon as possible.
func (q *Queue) Enqueue(ctx context.Context, w worker.Work) (bool, error) {
	payload, err := json.Marshal(w.Input)
	if err != nil {
		return false, fmt.Errorf("marshal %s input: %w", w.Kind, err)
	}
	runAt := w.RunAt
	if runAt.IsZero() {
		runAt = q.now()
	}
	_, created, err := q.store.EnqueueWork(ctx, storage.EnqueueParams{
		Kind:       w.Kind,
		UniqueName: w.UniqueName,
		Payload:    payload,
		RunAt:      runAt,
	})
	return created, err
}

// RequestSync enqueues a sync job for entity, collapsing with a pending
// one for the same user.
func (q *Queue) RequestSync(ctx context.Context, entity core.Entity, userID string) error {
	_, err := q.Enqueue(ctx, worker.Work{
		Kind:       worker.SyncKind(entity),
		UniqueName: worker.SyncUniqueName(entity, userID),
		Input:      worker.Input{UserID: userID},
	})
	return err
}
