package storage

import (
	"context"
	"time"

	"fintrack/internal/core"
)

// LedgerWrite pairs a budget change with the transaction change that
// caused it. Nil parts are skipped.
type LedgerWrite struct {
	Budget *core.Budget
	// Upsert is stored as-is.
	Upsert *core.Transaction
	// Delete removes the transaction with Delete.ID and Delete.Kind and
	// leaves a tombstone stamped DeletedAt.
	Delete    *core.Transaction
	DeletedAt time.Time
}

// ApplyLedger writes every part of w in one SQL transaction. Either all of
// it lands or none of it does.
func (r *SQLiteRepository) ApplyLedger(ctx context.Context, w LedgerWrite) error {
	return r.withTx(ctx, func(q querier) error {
		if w.Budget != nil {
			if err := upsertBudget(ctx, q, *w.Budget); err != nil {
				return err
			}
		}
		if w.Upsert != nil {
			if err := upsertTransaction(ctx, q, *w.Upsert); err != nil {
				return err
			}
		}
		if w.Delete != nil {
			if err := deleteTransaction(ctx, q, w.Delete.Kind, w.Delete.ID, w.DeletedAt); err != nil {
				return err
			}
		}
		return nil
	})
}
