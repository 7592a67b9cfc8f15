package storage

import (
	"context"
	"fmt"

	"fintrack/internal/core"
)

func putTombstone(ctx context.Context, q querier, t core.Tombstone) error {
	_, err := q.ExecContext(ctx, `INSERT INTO tombstones (entity, entity_id, user_id, deleted_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(entity, entity_id) DO UPDATE SET deleted_at = excluded.deleted_at`,
		string(t.Entity), t.EntityID, t.UserID, toNanos(t.DeletedAt))
	if err != nil {
		return fmt.Errorf("record tombstone %s/%s: %w", t.Entity, t.EntityID, err)
	}
	return nil
}

// ListTombstones returns pending remote deletes for the user's entity rows.
func (r *SQLiteRepository) ListTombstones(ctx context.Context, entity core.Entity, userID string) ([]core.Tombstone, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT entity, entity_id, user_id, deleted_at FROM tombstones
		WHERE entity = ? AND user_id = ? ORDER BY deleted_at`, string(entity), userID)
	if err != nil {
		return nil, fmt.Errorf("list tombstones: %w", err)
	}
	defer rows.Close()

	var out []core.Tombstone
	for rows.Next() {
		var (
			t         core.Tombstone
			e         string
			deletedAt int64
		)
		if err := rows.Scan(&e, &t.EntityID, &t.UserID, &deletedAt); err != nil {
			return nil, fmt.Errorf("scan tombstone: %w", err)
		}
		t.Entity = core.Entity(e)
		t.DeletedAt = fromNanos(deletedAt)
		out = append(out, t)
	}
	return out, rows.Err()
}

// RemoveTombstone drops a tombstone once the remote delete is confirmed.
func (r *SQLiteRepository) RemoveTombstone(ctx context.Context, entity core.Entity, entityID string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM tombstones WHERE entity = ? AND entity_id = ?`,
		string(entity), entityID); err != nil {
		return fmt.Errorf("remove tombstone %s/%s: %w", entity, entityID, err)
	}
	return nil
}
