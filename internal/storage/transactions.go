package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"fintrack/internal/core"
)

const transactionColumns = `id, user_id, kind, name, description, amount_cents,
	category_id, category_key, category_name, category_icon, category_color,
	transaction_date, receipt_url, local_image_path, updated_at, synced`

func scanTransaction(s rowScanner) (core.Transaction, error) {
	var (
		t                     core.Transaction
		kind                  string
		amountCents           int64
		date, updated, synced int64
	)
	err := s.Scan(&t.ID, &t.UserID, &kind, &t.Name, &t.Description, &amountCents,
		&t.Category.ID, &t.Category.Key, &t.Category.Name, &t.Category.Icon, &t.Category.Color,
		&date, &t.ReceiptURL, &t.LocalImagePath, &updated, &synced)
	if err != nil {
		return core.Transaction{}, err
	}
	t.Kind = core.TransactionKind(kind)
	t.Amount = core.Money{Cents: amountCents}
	t.TransactionDate = fromNanos(date)
	t.UpdatedAt = fromNanos(updated)
	t.Synced = synced != 0
	return t, nil
}

func collectTransactions(rows *sql.Rows) ([]core.Transaction, error) {
	defer rows.Close()
	var out []core.Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// GetTransaction returns the transaction of kind with id, or nil.
func (r *SQLiteRepository) GetTransaction(ctx context.Context, kind core.TransactionKind, id string) (*core.Transaction, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+transactionColumns+` FROM transactions
		WHERE id = ? AND kind = ?`, id, string(kind))
	t, err := scanTransaction(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get %s %s: %w", kind, id, err)
	}
	return &t, nil
}

// TransactionFilter narrows ListTransactions. An empty CategoryIDs matches
// every category.
type TransactionFilter struct {
	UserID      string
	Kind        core.TransactionKind
	Period      core.Period
	CategoryIDs []string
}

// ListTransactions returns matching transactions, newest first.
func (r *SQLiteRepository) ListTransactions(ctx context.Context, f TransactionFilter) ([]core.Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM transactions
		WHERE user_id = ? AND kind = ? AND transaction_date BETWEEN ? AND ?`
	args := []any{f.UserID, string(f.Kind), toNanos(f.Period.Start), toNanos(f.Period.End)}
	if len(f.CategoryIDs) > 0 {
		query += ` AND category_id IN (?` + strings.Repeat(", ?", len(f.CategoryIDs)-1) + `)`
		for _, id := range f.CategoryIDs {
			args = append(args, id)
		}
	}
	query += ` ORDER BY transaction_date DESC, id`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list %s transactions: %w", f.Kind, err)
	}
	return collectTransactions(rows)
}

// UpsertTransaction inserts or fully replaces a transaction row.
func (r *SQLiteRepository) UpsertTransaction(ctx context.Context, t core.Transaction) error {
	return upsertTransaction(ctx, r.db, t)
}

func upsertTransaction(ctx context.Context, q querier, t core.Transaction) error {
	_, err := q.ExecContext(ctx, `INSERT INTO transactions (`+transactionColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			user_id = excluded.user_id,
			kind = excluded.kind,
			name = excluded.name,
			description = excluded.description,
			amount_cents = excluded.amount_cents,
			category_id = excluded.category_id,
			category_key = excluded.category_key,
			category_name = excluded.category_name,
			category_icon = excluded.category_icon,
			category_color = excluded.category_color,
			transaction_date = excluded.transaction_date,
			receipt_url = excluded.receipt_url,
			local_image_path = excluded.local_image_path,
			updated_at = excluded.updated_at,
			synced = excluded.synced`,
		t.ID, t.UserID, string(t.Kind), t.Name, t.Description, t.Amount.Cents,
		t.Category.ID, t.Category.Key, t.Category.Name, t.Category.Icon, t.Category.Color,
		toNanos(t.TransactionDate), t.ReceiptURL, t.LocalImagePath, toNanos(t.UpdatedAt), boolToInt(t.Synced))
	if err != nil {
		return fmt.Errorf("upsert %s %s: %w", t.Kind, t.ID, err)
	}
	return nil
}

// DeleteTransaction removes a transaction and records a tombstone. Deleting
// a missing row is a no-op.
func (r *SQLiteRepository) DeleteTransaction(ctx context.Context, kind core.TransactionKind, id string, at time.Time) error {
	return r.withTx(ctx, func(q querier) error {
		return deleteTransaction(ctx, q, kind, id, at)
	})
}

func deleteTransaction(ctx context.Context, q querier, kind core.TransactionKind, id string, at time.Time) error {
	var userID string
	err := q.QueryRowContext(ctx, `SELECT user_id FROM transactions WHERE id = ? AND kind = ?`,
		id, string(kind)).Scan(&userID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("lookup %s %s: %w", kind, id, err)
	}
	if _, err := q.ExecContext(ctx, `DELETE FROM transactions WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete %s %s: %w", kind, id, err)
	}
	return putTombstone(ctx, q, core.Tombstone{
		Entity:    core.EntityForKind(kind),
		UserID:    userID,
		EntityID:  id,
		DeletedAt: at,
	})
}

// ListUnsyncedTransactions returns the user's rows of kind not yet pushed.
func (r *SQLiteRepository) ListUnsyncedTransactions(ctx context.Context, kind core.TransactionKind, userID string) ([]core.Transaction, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+transactionColumns+` FROM transactions
		WHERE user_id = ? AND kind = ? AND synced = 0 ORDER BY updated_at`, userID, string(kind))
	if err != nil {
		return nil, fmt.Errorf("list unsynced %s: %w", kind, err)
	}
	return collectTransactions(rows)
}

// MarkTransactionSynced flags a row as pushed unless it changed after
// updatedAt.
func (r *SQLiteRepository) MarkTransactionSynced(ctx context.Context, id string, updatedAt time.Time) (bool, error) {
	res, err := r.db.ExecContext(ctx, `UPDATE transactions SET synced = 1 WHERE id = ? AND updated_at = ?`,
		id, toNanos(updatedAt))
	if err != nil {
		return false, fmt.Errorf("mark transaction %s synced: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("mark transaction %s synced: %w", id, err)
	}
	return n > 0, nil
}

// ApplyRemoteTransaction stores a pulled transaction under the same rules
// as ApplyRemoteBudget.
func (r *SQLiteRepository) ApplyRemoteTransaction(ctx context.Context, t core.Transaction) (bool, error) {
	applied := false
	err := r.withTx(ctx, func(q querier) error {
		ok, err := canApplyRemote(ctx, q, "transactions", core.EntityForKind(t.Kind), t.ID, t.UpdatedAt)
		if err != nil || !ok {
			return err
		}
		t.Synced = true
		applied = true
		return upsertTransaction(ctx, q, t)
	})
	return applied, err
}
