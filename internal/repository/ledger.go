package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"fintrack/internal/core"
	"fintrack/internal/storage"
)

// Ledger couples budget and transaction writes so the remaining amount
// never drifts from the transactions that produced it.
type Ledger struct {
	local    Local
	budgets  *Budgets
	expenses *Transactions
	incomes  *Transactions
}

var _ LedgerRepository = (*Ledger)(nil)

func NewLedger(local Local, budgets *Budgets, expenses, incomes *Transactions) *Ledger {
	return &Ledger{local: local, budgets: budgets, expenses: expenses, incomes: incomes}
}

func (l *Ledger) transactions(t core.Transaction) (*Transactions, error) {
	switch {
	case t.IsExpense():
		return l.expenses, nil
	case t.IsIncome():
		return l.incomes, nil
	}
	return nil, fmt.Errorf("unknown transaction kind %q", t.Kind)
}

func (l *Ledger) stampBudget(b *core.Budget) *core.Budget {
	if b == nil {
		return nil
	}
	stamped := *b
	stamped.UpdatedAt = l.budgets.now()
	stamped.Synced = false
	return &stamped
}

func (l *Ledger) Record(ctx context.Context, b *core.Budget, t core.Transaction) (core.Transaction, *core.Budget, error) {
	txs, err := l.transactions(t)
	if err != nil {
		return core.Transaction{}, nil, err
	}
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	t.UpdatedAt = txs.now()
	t.Synced = false
	budget := l.stampBudget(b)

	if err := l.local.ApplyLedger(ctx, storage.LedgerWrite{Budget: budget, Upsert: &t}); err != nil {
		return core.Transaction{}, nil, err
	}
	l.changed(txs, budget)
	return t, budget, nil
}

func (l *Ledger) Remove(ctx context.Context, b *core.Budget, t core.Transaction) (*core.Budget, error) {
	txs, err := l.transactions(t)
	if err != nil {
		return nil, err
	}
	budget := l.stampBudget(b)
	w := storage.LedgerWrite{Budget: budget, Delete: &t, DeletedAt: txs.now()}
	if err := l.local.ApplyLedger(ctx, w); err != nil {
		return nil, err
	}
	l.changed(txs, budget)
	return budget, nil
}

// changed runs after commit so watchers never observe half a write.
func (l *Ledger) changed(txs *Transactions, budget *core.Budget) {
	txs.inv.Invalidate()
	if budget != nil {
		l.budgets.inv.Invalidate()
	}
}
