package worker

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"fintrack/internal/core"
	applog "fintrack/internal/log"
	"fintrack/internal/repository"
)

// SyncWorker reconciles one entity for the user named in its input.
type SyncWorker struct {
	entity core.Entity
	syncer repository.Syncer
}

func NewSyncWorker(entity core.Entity, syncer repository.Syncer) *SyncWorker {
	return &SyncWorker{entity: entity, syncer: syncer}
}

func (w *SyncWorker) Entity() core.Entity { return w.entity }

func (w *SyncWorker) Do(ctx context.Context, in Input) Outcome {
	logger := applog.FromContext(ctx).WithComponent(applog.ComponentWorker).
		With(applog.FieldEntity, string(w.entity))
	if in.UserID == "" {
		logger.ErrorContext(ctx, "Sync requested without a user")
		return Failure
	}

	start := time.Now()
	ok, err := w.syncer.Sync(ctx, in.UserID)
	logger = logger.With(applog.FieldUserID, in.UserID,
		applog.FieldDuration, time.Since(start).Milliseconds())
	switch {
	case err != nil:
		logger.ErrorContext(ctx, "Sync failed", applog.FieldError, err)
		return Failure
	case !ok:
		logger.InfoContext(ctx, "Sync deferred, will retry")
		return Retry
	default:
		logger.DebugContext(ctx, "Sync completed")
		return Success
	}
}

// SyncAll runs every worker for userID concurrently and reports each
// entity's outcome.
func SyncAll(ctx context.Context, workers []*SyncWorker, userID string) map[core.Entity]Outcome {
	var (
		mu  sync.Mutex
		out = make(map[core.Entity]Outcome, len(workers))
		wg  sync.WaitGroup
	)
	for _, w := range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			o := w.Do(ctx, Input{UserID: userID})
			mu.Lock()
			out[w.entity] = o
			mu.Unlock()
		}()
	}
	wg.Wait()
	slog.DebugContext(ctx, "Synced all entities", applog.FieldUserID, userID, applog.FieldCount, len(out))
	return out
}
