package repository

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/singleflight"

	"fintrack/internal/core"
	applog "fintrack/internal/log"
	"fintrack/internal/sheets"
)

// reconciler runs sync rounds for one entity. Every round pushes local
// changes, propagates tombstones, pulls remote updates, and only then
// advances the entity's last-sync time.
type reconciler[T any] struct {
	entity core.Entity
	local  Local
	remote sheets.Store[T]
	now    func() time.Time
	group  singleflight.Group

	key          func(T) (id string, updatedAt time.Time)
	listUnsynced func(ctx context.Context, userID string) ([]T, error)
	markSynced   func(ctx context.Context, id string, updatedAt time.Time) (bool, error)
	applyRemote  func(ctx context.Context, record T) (bool, error)
	// changed is called once per round that modified local rows.
	changed func()
	// tombstones is false for entities that are never deleted locally.
	tombstones bool
}

// errRetry aborts a round on a transient remote failure.
var errRetry = errors.New("sync round interrupted")

// run collapses concurrent rounds for the same user into one.
func (r *reconciler[T]) run(ctx context.Context, userID string) (bool, error) {
	v, err, _ := r.group.Do(userID, func() (any, error) {
		return r.round(ctx, userID)
	})
	if err != nil {
		return false, err
	}
	return v.(bool), nil
}

func (r *reconciler[T]) round(ctx context.Context, userID string) (bool, error) {
	logger := slog.With(applog.NewFields().
		WithComponent(applog.ComponentRepo).
		WithSync(string(r.entity), userID).
		ToSlice()...)
	started := r.now()

	dirty := false
	defer func() {
		if dirty {
			r.changed()
		}
	}()

	pushed, err := r.push(ctx, userID, &dirty)
	if err == nil {
		err = r.propagateDeletes(ctx, userID)
	}
	pulled := 0
	if err == nil {
		pulled, err = r.pull(ctx, userID, &dirty)
	}
	if errors.Is(err, errRetry) {
		logger.WarnContext(ctx, "Sync round deferred", applog.FieldError, err)
		return false, nil
	}
	if err != nil {
		return false, err
	}

	if _, err := r.local.UpdateChangeLastSyncTimes(ctx, userID, func(c core.ChangeLastSyncTimes) core.ChangeLastSyncTimes {
		return c.Advance(r.entity, started)
	}); err != nil {
		return false, fmt.Errorf("advance %s sync time: %w", r.entity, err)
	}

	logger.DebugContext(ctx, "Sync round completed",
		"pushed", pushed,
		"pulled", pulled,
		applog.FieldDuration, r.now().Sub(started).Milliseconds())
	return true, nil
}

func (r *reconciler[T]) remoteErr(op string, err error) error {
	if sheets.IsTransient(err) {
		return fmt.Errorf("%s %s: %w: %w", op, r.entity, errRetry, err)
	}
	return fmt.Errorf("%s %s: %w", op, r.entity, err)
}

func (r *reconciler[T]) push(ctx context.Context, userID string, dirty *bool) (int, error) {
	records, err := r.listUnsynced(ctx, userID)
	if err != nil {
		return 0, err
	}
	n := 0
	for _, rec := range records {
		if err := r.remote.Upsert(ctx, rec); err != nil {
			return n, r.remoteErr(applog.OpPush, err)
		}
		id, updatedAt := r.key(rec)
		// A row edited while the upload was in flight stays unsynced.
		ok, err := r.markSynced(ctx, id, updatedAt)
		if err != nil {
			return n, err
		}
		if ok {
			*dirty = true
			n++
		}
	}
	return n, nil
}

func (r *reconciler[T]) propagateDeletes(ctx context.Context, userID string) error {
	if !r.tombstones {
		return nil
	}
	stones, err := r.local.ListTombstones(ctx, r.entity, userID)
	if err != nil {
		return err
	}
	for _, ts := range stones {
		if err := r.remote.Delete(ctx, userID, ts.EntityID); err != nil {
			return r.remoteErr(applog.OpDelete, err)
		}
		if err := r.local.RemoveTombstone(ctx, r.entity, ts.EntityID); err != nil {
			return err
		}
	}
	return nil
}

func (r *reconciler[T]) pull(ctx context.Context, userID string, dirty *bool) (int, error) {
	times, err := r.local.GetChangeLastSyncTimes(ctx, userID)
	if err != nil {
		return 0, err
	}
	records, err := r.remote.ListUpdatedSince(ctx, userID, times.Get(r.entity))
	if err != nil {
		return 0, r.remoteErr(applog.OpPull, err)
	}
	n := 0
	for _, rec := range records {
		applied, err := r.applyRemote(ctx, rec)
		if err != nil {
			return n, err
		}
		if applied {
			*dirty = true
			n++
		}
	}
	return n, nil
}
