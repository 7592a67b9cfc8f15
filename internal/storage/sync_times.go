package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"fintrack/internal/core"
)

func getSyncTimes(ctx context.Context, q querier, userID string) (core.ChangeLastSyncTimes, error) {
	var user, expense, income, budget, bills int64
	err := q.QueryRowContext(ctx, `SELECT user_at, expense_at, income_at, budget_at, bills_at
		FROM change_last_sync_times WHERE user_id = ?`, userID).Scan(&user, &expense, &income, &budget, &bills)
	if errors.Is(err, sql.ErrNoRows) {
		return core.ChangeLastSyncTimes{}, nil
	}
	if err != nil {
		return core.ChangeLastSyncTimes{}, fmt.Errorf("get last sync times: %w", err)
	}
	return core.ChangeLastSyncTimes{
		User:    fromNanos(user),
		Expense: fromNanos(expense),
		Income:  fromNanos(income),
		Budget:  fromNanos(budget),
		Bills:   fromNanos(bills),
	}, nil
}

// GetChangeLastSyncTimes returns the user's per-entity sync times. A user
// that never synced gets zero times.
func (r *SQLiteRepository) GetChangeLastSyncTimes(ctx context.Context, userID string) (core.ChangeLastSyncTimes, error) {
	return getSyncTimes(ctx, r.db, userID)
}

// UpdateChangeLastSyncTimes applies fn to the stored times atomically and
// returns the saved value.
func (r *SQLiteRepository) UpdateChangeLastSyncTimes(ctx context.Context, userID string, fn func(core.ChangeLastSyncTimes) core.ChangeLastSyncTimes) (core.ChangeLastSyncTimes, error) {
	var saved core.ChangeLastSyncTimes
	err := r.withTx(ctx, func(q querier) error {
		current, err := getSyncTimes(ctx, q, userID)
		if err != nil {
			return err
		}
		saved = fn(current)
		_, err = q.ExecContext(ctx, `INSERT INTO change_last_sync_times
			(user_id, user_at, expense_at, income_at, budget_at, bills_at)
			VALUES (?, ?, ?, ?, ?, ?)
			ON CONFLICT(user_id) DO UPDATE SET
				user_at = excluded.user_at,
				expense_at = excluded.expense_at,
				income_at = excluded.income_at,
				budget_at = excluded.budget_at,
				bills_at = excluded.bills_at`,
			userID, toNanos(saved.User), toNanos(saved.Expense), toNanos(saved.Income),
			toNanos(saved.Budget), toNanos(saved.Bills))
		if err != nil {
			return fmt.Errorf("save last sync times: %w", err)
		}
		return nil
	})
	return saved, err
}
