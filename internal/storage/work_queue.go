package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Work item states.
const (
	WorkPending   = "pending"
	WorkRunning   = "running"
	WorkCompleted = "completed"
	WorkFailed    = "failed"
)

// WorkItem is a row of the durable work queue.
type WorkItem struct {
	ID         int64
	Kind       string
	UniqueName string
	Payload    []byte
	Status     string
	Attempts   int
	RunAt      time.Time
	LastError  string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// EnqueueParams describes new work. A non-empty UniqueName deduplicates
// against pending work with the same name.
type EnqueueParams struct {
	Kind       string
	UniqueName string
	Payload    []byte
	RunAt      time.Time
}

// WorkStats counts work items per state.
type WorkStats struct {
	Pending   int64
	Running   int64
	Completed int64
	Failed    int64
}

const workColumns = `id, kind, COALESCE(unique_name, ''), payload, status, attempts, run_at, last_error, created_at, updated_at`

func scanWork(s rowScanner) (WorkItem, error) {
	var (
		w                       WorkItem
		payload                 string
		runAt, created, updated int64
	)
	if err := s.Scan(&w.ID, &w.Kind, &w.UniqueName, &payload, &w.Status, &w.Attempts,
		&runAt, &w.LastError, &created, &updated); err != nil {
		return WorkItem{}, err
	}
	w.Payload = []byte(payload)
	w.RunAt = fromNanos(runAt)
	w.CreatedAt = fromNanos(created)
	w.UpdatedAt = fromNanos(updated)
	return w, nil
}

func nullableName(name string) any {
	if name == "" {
		return nil
	}
	return name
}

// EnqueueWork adds a work item. When p.UniqueName matches pending work the
// existing item is kept and its id returned with created=false.
func (r *SQLiteRepository) EnqueueWork(ctx context.Context, p EnqueueParams) (id int64, created bool, err error) {
	if p.Kind == "" {
		return 0, false, errors.New("enqueue work: empty kind")
	}
	payload := string(p.Payload)
	if payload == "" {
		payload = "{}"
	}
	now := time.Now()
	runAt := p.RunAt
	if runAt.IsZero() {
		runAt = now
	}

	err = r.withTx(ctx, func(q querier) error {
		if p.UniqueName != "" {
			err := q.QueryRowContext(ctx, `SELECT id FROM work_items WHERE unique_name = ? AND status = ?`,
				p.UniqueName, WorkPending).Scan(&id)
			if err == nil {
				return nil
			}
			if !errors.Is(err, sql.ErrNoRows) {
				return fmt.Errorf("lookup work %s: %w", p.UniqueName, err)
			}
		}
		res, err := q.ExecContext(ctx, `INSERT INTO work_items
			(kind, unique_name, payload, status, attempts, run_at, created_at, updated_at)
			VALUES (?, ?, ?, ?, 0, ?, ?, ?)`,
			p.Kind, nullableName(p.UniqueName), payload, WorkPending, toNanos(runAt), toNanos(now), toNanos(now))
		if err != nil {
			return fmt.Errorf("insert work %s: %w", p.Kind, err)
		}
		id, err = res.LastInsertId()
		if err != nil {
			return fmt.Errorf("insert work %s: %w", p.Kind, err)
		}
		created = true
		return nil
	})
	return id, created, err
}

// GetWork returns a work item by id.
func (r *SQLiteRepository) GetWork(ctx context.Context, id int64) (WorkItem, error) {
	w, err := scanWork(r.db.QueryRowContext(ctx, `SELECT `+workColumns+` FROM work_items WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return WorkItem{}, fmt.Errorf("work %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return WorkItem{}, fmt.Errorf("get work %d: %w", id, err)
	}
	return w, nil
}

// ListWork returns work items in status, oldest first.
func (r *SQLiteRepository) ListWork(ctx context.Context, status string) ([]WorkItem, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+workColumns+` FROM work_items WHERE status = ? ORDER BY run_at, id`, status)
	if err != nil {
		return nil, fmt.Errorf("list work: %w", err)
	}
	defer rows.Close()
	var out []WorkItem
	for rows.Next() {
		w, err := scanWork(rows)
		if err != nil {
			return nil, fmt.Errorf("scan work: %w", err)
		}
		out = append(out, w)
	}
	return out, rows.Err()
}

// ClaimDueWork moves up to limit pending items due at now to running and
// returns them.
func (r *SQLiteRepository) ClaimDueWork(ctx context.Context, now time.Time, limit int) ([]WorkItem, error) {
	var items []WorkItem
	err := r.withTx(ctx, func(q querier) error {
		rows, err := q.QueryContext(ctx, `SELECT `+workColumns+` FROM work_items
			WHERE status = ? AND run_at <= ? ORDER BY run_at, id LIMIT ?`, WorkPending, toNanos(now), limit)
		if err != nil {
			return fmt.Errorf("select due work: %w", err)
		}
		for rows.Next() {
			w, err := scanWork(rows)
			if err != nil {
				rows.Close()
				return fmt.Errorf("scan work: %w", err)
			}
			items = append(items, w)
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return err
		}
		if len(items) == 0 {
			return nil
		}

		args := []any{WorkRunning, toNanos(time.Now())}
		for i := range items {
			args = append(args, items[i].ID)
			items[i].Status = WorkRunning
		}
		_, err = q.ExecContext(ctx, `UPDATE work_items SET status = ?, updated_at = ?
			WHERE id IN (?`+strings.Repeat(", ?", len(items)-1)+`)`, args...)
		if err != nil {
			return fmt.Errorf("mark work running: %w", err)
		}
		return nil
	})
	return items, err
}

func (r *SQLiteRepository) setWorkStatus(ctx context.Context, id int64, status, lastErr string) error {
	_, err := r.db.ExecContext(ctx, `UPDATE work_items SET status = ?, last_error = ?, updated_at = ? WHERE id = ?`,
		status, lastErr, toNanos(time.Now()), id)
	if err != nil {
		return fmt.Errorf("mark work %d %s: %w", id, status, err)
	}
	return nil
}

// CompleteWork marks a work item completed.
func (r *SQLiteRepository) CompleteWork(ctx context.Context, id int64) error {
	return r.setWorkStatus(ctx, id, WorkCompleted, "")
}

// FailWork marks a work item permanently failed.
func (r *SQLiteRepository) FailWork(ctx context.Context, id int64, lastErr string) error {
	return r.setWorkStatus(ctx, id, WorkFailed, lastErr)
}

// RetryWork puts a work item back to pending with attempts and a new run
// time. If newer pending work with the same unique name exists, the item is
// completed instead since that work supersedes it.
func (r *SQLiteRepository) RetryWork(ctx context.Context, id int64, attempts int, runAt time.Time, lastErr string) error {
	return r.withTx(ctx, func(q querier) error {
		return requeue(ctx, q, id, attempts, runAt, lastErr)
	})
}

func requeue(ctx context.Context, q querier, id int64, attempts int, runAt time.Time, lastErr string) error {
	now := toNanos(time.Now())
	var superseded int
	err := q.QueryRowContext(ctx, `SELECT COUNT(*) FROM work_items w
		JOIN work_items self ON self.id = ?
		WHERE self.unique_name IS NOT NULL AND w.unique_name = self.unique_name
		AND w.status = ? AND w.id <> self.id`, id, WorkPending).Scan(&superseded)
	if err != nil {
		return fmt.Errorf("check superseding work %d: %w", id, err)
	}
	if superseded > 0 {
		_, err = q.ExecContext(ctx, `UPDATE work_items SET status = ?, last_error = ?, updated_at = ? WHERE id = ?`,
			WorkCompleted, lastErr, now, id)
	} else {
		_, err = q.ExecContext(ctx, `UPDATE work_items SET status = ?, attempts = ?, run_at = ?, last_error = ?, updated_at = ?
			WHERE id = ?`, WorkPending, attempts, toNanos(runAt), lastErr, now, id)
	}
	if err != nil {
		return fmt.Errorf("requeue work %d: %w", id, err)
	}
	return nil
}

// ResetStaleWork returns running items left behind by a crash to pending.
func (r *SQLiteRepository) ResetStaleWork(ctx context.Context) (int, error) {
	return r.requeueAll(ctx, WorkRunning, false)
}

// RetryFailedWork resets every failed item to pending with zero attempts.
func (r *SQLiteRepository) RetryFailedWork(ctx context.Context) (int, error) {
	return r.requeueAll(ctx, WorkFailed, true)
}

func (r *SQLiteRepository) requeueAll(ctx context.Context, status string, resetAttempts bool) (int, error) {
	items, err := r.ListWork(ctx, status)
	if err != nil {
		return 0, err
	}
	now := time.Now()
	err = r.withTx(ctx, func(q querier) error {
		for _, w := range items {
			attempts := w.Attempts
			if resetAttempts {
				attempts = 0
			}
			if err := requeue(ctx, q, w.ID, attempts, now, w.LastError); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return len(items), nil
}

// CleanupWork deletes completed and failed items last touched before cutoff.
func (r *SQLiteRepository) CleanupWork(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM work_items WHERE status IN (?, ?) AND updated_at < ?`,
		WorkCompleted, WorkFailed, toNanos(cutoff))
	if err != nil {
		return 0, fmt.Errorf("cleanup work: %w", err)
	}
	return res.RowsAffected()
}

// WorkQueueStats returns item counts per state.
func (r *SQLiteRepository) WorkQueueStats(ctx context.Context) (WorkStats, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT status, COUNT(*) FROM work_items GROUP BY status`)
	if err != nil {
		return WorkStats{}, fmt.Errorf("work stats: %w", err)
	}
	defer rows.Close()
	var s WorkStats
	for rows.Next() {
		var (
			status string
			n      int64
		)
		if err := rows.Scan(&status, &n); err != nil {
			return WorkStats{}, fmt.Errorf("scan work stats: %w", err)
		}
		switch status {
		case WorkPending:
			s.Pending = n
		case WorkRunning:
			s.Running = n
		case WorkCompleted:
			s.Completed = n
		case WorkFailed:
			s.Failed = n
		}
	}
	return s, rows.Err()
}
