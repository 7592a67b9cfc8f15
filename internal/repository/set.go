package repository

import (
	"time"

	"fintrack/internal/core"
	"fintrack/internal/sheets"
)

// Set bundles every repository over one local store and one remote.
type Set struct {
	Budgets      *Budgets
	Expenses     *Transactions
	Incomes      *Transactions
	Users        *Users
	Ledger       *Ledger
	Synchronizer Synchronizer
}

// New wires the repositories. now may be nil to use the wall clock.
func New(local Local, remote sheets.Remote, now func() time.Time) *Set {
	s := &Set{
		Budgets:      NewBudgets(local, remote.Budgets(), now),
		Expenses:     NewTransactions(core.KindExpense, local, remote.Expenses(), now),
		Incomes:      NewTransactions(core.KindIncome, local, remote.Incomes(), now),
		Users:        NewUsers(local, remote.Users(), now),
		Synchronizer: local,
	}
	s.Ledger = NewLedger(local, s.Budgets, s.Expenses, s.Incomes)
	return s
}

// Transactions returns the repository for kind.
func (s *Set) Transactions(kind core.TransactionKind) *Transactions {
	if kind == core.KindIncome {
		return s.Incomes
	}
	return s.Expenses
}

// Syncer returns the repository that synchronizes entity, or nil.
func (s *Set) Syncer(entity core.Entity) Syncer {
	switch entity {
	case core.EntityBudget:
		return s.Budgets
	case core.EntityExpense:
		return s.Expenses
	case core.EntityIncome:
		return s.Incomes
	case core.EntityUser:
		return s.Users
	}
	return nil
}
