package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"fintrack/internal/core"
)

const budgetColumns = `id, user_id, category_id, category_key, category_name, category_icon, category_color,
	amount_cents, remaining_cents, budget_alert, alert_percentage, budget_period, recurrent,
	created_at, updated_at, synced`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanBudget(s rowScanner) (core.Budget, error) {
	var (
		b                            core.Budget
		alert, recurrent, synced     int64
		period, createdAt, updatedAt int64
		amountCents, remainingCents  int64
	)
	err := s.Scan(&b.ID, &b.UserID, &b.Category.ID, &b.Category.Key, &b.Category.Name,
		&b.Category.Icon, &b.Category.Color, &amountCents, &remainingCents, &alert,
		&b.BudgetAlertPercentage, &period, &recurrent, &createdAt, &updatedAt, &synced)
	if err != nil {
		return core.Budget{}, err
	}
	b.Amount = core.Money{Cents: amountCents}
	b.RemainingAmount = core.Money{Cents: remainingCents}
	b.BudgetAlert = alert != 0
	b.Recurrent = recurrent != 0
	b.Synced = synced != 0
	b.BudgetPeriod = fromNanos(period)
	b.CreatedAt = fromNanos(createdAt)
	b.UpdatedAt = fromNanos(updatedAt)
	return b, nil
}

func collectBudgets(rows *sql.Rows) ([]core.Budget, error) {
	defer rows.Close()
	var out []core.Budget
	for rows.Next() {
		b, err := scanBudget(rows)
		if err != nil {
			return nil, fmt.Errorf("scan budget: %w", err)
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

// GetBudget returns the budget with id, or nil when it does not exist.
func (r *SQLiteRepository) GetBudget(ctx context.Context, id string) (*core.Budget, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+budgetColumns+` FROM budgets WHERE id = ?`, id)
	b, err := scanBudget(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get budget %s: %w", id, err)
	}
	return &b, nil
}

// ListBudgets returns the user's budgets whose period instant falls in p.
func (r *SQLiteRepository) ListBudgets(ctx context.Context, userID string, p core.Period) ([]core.Budget, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+budgetColumns+` FROM budgets
		WHERE user_id = ? AND budget_period BETWEEN ? AND ?
		ORDER BY category_name, id`, userID, toNanos(p.Start), toNanos(p.End))
	if err != nil {
		return nil, fmt.Errorf("list budgets: %w", err)
	}
	return collectBudgets(rows)
}

// FindBudgetByCategory returns the user's budget for category in p, or nil.
func (r *SQLiteRepository) FindBudgetByCategory(ctx context.Context, userID, categoryID string, p core.Period) (*core.Budget, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+budgetColumns+` FROM budgets
		WHERE user_id = ? AND category_id = ? AND budget_period BETWEEN ? AND ?
		ORDER BY created_at LIMIT 1`, userID, categoryID, toNanos(p.Start), toNanos(p.End))
	b, err := scanBudget(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find budget for category %s: %w", categoryID, err)
	}
	return &b, nil
}

// UpsertBudget inserts or fully replaces a budget row.
func (r *SQLiteRepository) UpsertBudget(ctx context.Context, b core.Budget) error {
	return upsertBudget(ctx, r.db, b)
}

func upsertBudget(ctx context.Context, q querier, b core.Budget) error {
	_, err := q.ExecContext(ctx, `INSERT INTO budgets (`+budgetColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			user_id = excluded.user_id,
			category_id = excluded.category_id,
			category_key = excluded.category_key,
			category_name = excluded.category_name,
			category_icon = excluded.category_icon,
			category_color = excluded.category_color,
			amount_cents = excluded.amount_cents,
			remaining_cents = excluded.remaining_cents,
			budget_alert = excluded.budget_alert,
			alert_percentage = excluded.alert_percentage,
			budget_period = excluded.budget_period,
			recurrent = excluded.recurrent,
			created_at = excluded.created_at,
			updated_at = excluded.updated_at,
			synced = excluded.synced`,
		b.ID, b.UserID, b.Category.ID, b.Category.Key, b.Category.Name, b.Category.Icon, b.Category.Color,
		b.Amount.Cents, b.RemainingAmount.Cents, boolToInt(b.BudgetAlert), b.BudgetAlertPercentage,
		toNanos(b.BudgetPeriod), boolToInt(b.Recurrent), toNanos(b.CreatedAt), toNanos(b.UpdatedAt),
		boolToInt(b.Synced))
	if err != nil {
		return fmt.Errorf("upsert budget %s: %w", b.ID, err)
	}
	return nil
}

// DeleteBudget removes a budget and records a tombstone for the remote
// delete. Deleting a missing budget is a no-op.
func (r *SQLiteRepository) DeleteBudget(ctx context.Context, id string, at time.Time) error {
	return r.withTx(ctx, func(q querier) error {
		var userID string
		err := q.QueryRowContext(ctx, `SELECT user_id FROM budgets WHERE id = ?`, id).Scan(&userID)
		if errors.Is(err, sql.ErrNoRows) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("lookup budget %s: %w", id, err)
		}
		if _, err := q.ExecContext(ctx, `DELETE FROM budgets WHERE id = ?`, id); err != nil {
			return fmt.Errorf("delete budget %s: %w", id, err)
		}
		return putTombstone(ctx, q, core.Tombstone{Entity: core.EntityBudget, UserID: userID, EntityID: id, DeletedAt: at})
	})
}

// ListUnsyncedBudgets returns the user's budgets with local changes not yet
// pushed.
func (r *SQLiteRepository) ListUnsyncedBudgets(ctx context.Context, userID string) ([]core.Budget, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+budgetColumns+` FROM budgets
		WHERE user_id = ? AND synced = 0 ORDER BY updated_at`, userID)
	if err != nil {
		return nil, fmt.Errorf("list unsynced budgets: %w", err)
	}
	return collectBudgets(rows)
}

// MarkBudgetSynced flags a budget as pushed, unless it changed again after
// updatedAt. Reports whether the row was marked.
func (r *SQLiteRepository) MarkBudgetSynced(ctx context.Context, id string, updatedAt time.Time) (bool, error) {
	res, err := r.db.ExecContext(ctx, `UPDATE budgets SET synced = 1 WHERE id = ? AND updated_at = ?`,
		id, toNanos(updatedAt))
	if err != nil {
		return false, fmt.Errorf("mark budget %s synced: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("mark budget %s synced: %w", id, err)
	}
	return n > 0, nil
}

// ApplyRemoteBudget stores a budget pulled from the remote store when the
// local copy is absent, or synced and older. Tombstoned ids are skipped.
// Reports whether the row was written.
func (r *SQLiteRepository) ApplyRemoteBudget(ctx context.Context, b core.Budget) (bool, error) {
	applied := false
	err := r.withTx(ctx, func(q querier) error {
		ok, err := canApplyRemote(ctx, q, "budgets", core.EntityBudget, b.ID, b.UpdatedAt)
		if err != nil || !ok {
			return err
		}
		b.Synced = true
		applied = true
		return upsertBudget(ctx, q, b)
	})
	return applied, err
}

// canApplyRemote decides whether a pulled row may overwrite local state.
func canApplyRemote(ctx context.Context, q querier, table string, entity core.Entity, id string, remoteUpdated time.Time) (bool, error) {
	var n int
	err := q.QueryRowContext(ctx, `SELECT COUNT(*) FROM tombstones WHERE entity = ? AND entity_id = ?`,
		string(entity), id).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("check tombstone %s: %w", id, err)
	}
	if n > 0 {
		return false, nil
	}

	var synced, updated int64
	err = q.QueryRowContext(ctx, `SELECT synced, updated_at FROM `+table+` WHERE id = ?`, id).Scan(&synced, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return true, nil
	}
	if err != nil {
		return false, fmt.Errorf("check local %s: %w", id, err)
	}
	return synced != 0 && updated < toNanos(remoteUpdated), nil
}
