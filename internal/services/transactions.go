package services

import (
	"context"
	"fmt"
	"log/slog"

	"fintrack/internal/core"
	applog "fintrack/internal/log"
	"fintrack/internal/stream"
)

// AddExpense records an expense and charges it to its category budget.
// Without a budget the expense is still recorded.
func (s *BudgetService) AddExpense(ctx context.Context, userID string, t core.Transaction, period core.Period) (core.Transaction, error) {
	t.Kind = core.KindExpense
	t.UserID = userID
	if err := t.Validate(); err != nil {
		return core.Transaction{}, err
	}
	unlock := s.lockBudget(userID, t.Category.ID, period)
	defer unlock()

	b, err := s.categoryBudget(ctx, userID, t.Category.ID, period)
	if err != nil {
		return core.Transaction{}, err
	}
	if b != nil {
		b.RemainingAmount = b.RemainingAmount.Sub(t.Amount)
	}
	saved, updated, err := s.ledger.Record(ctx, b, t)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("add expense: %w", err)
	}
	if updated != nil {
		s.notifyAlert(ctx, *updated)
	}
	slog.InfoContext(ctx, "Added expense",
		applog.FieldEntityID, saved.ID,
		applog.FieldCategoryID, saved.Category.ID,
		applog.FieldAmountCents, saved.Amount.Cents,
		"budget_adjusted", b != nil)
	s.requestSync(ctx, userID, touched(b != nil, core.EntityExpense)...)
	return saved, nil
}

// UpdateExpense replaces a stored expense and credits the category budget
// with the difference between the old and new amounts.
func (s *BudgetService) UpdateExpense(ctx context.Context, userID string, t core.Transaction, period core.Period) (core.Transaction, error) {
	t.Kind = core.KindExpense
	t.UserID = userID
	if err := t.Validate(); err != nil {
		return core.Transaction{}, err
	}
	unlock := s.lockBudget(userID, t.Category.ID, period)
	defer unlock()

	old, err := s.currentTransaction(ctx, core.KindExpense, t.ID)
	if err != nil {
		return core.Transaction{}, err
	}
	if old == nil {
		return core.Transaction{}, core.ErrTransactionNotFound(t.Kind)
	}
	delta := old.Amount.Sub(t.Amount)

	b, err := s.categoryBudget(ctx, userID, t.Category.ID, period)
	if err != nil {
		return core.Transaction{}, err
	}
	if b != nil {
		b.RemainingAmount = b.RemainingAmount.Add(delta)
	}
	saved, _, err := s.ledger.Record(ctx, b, t)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("update expense %s: %w", t.ID, err)
	}
	s.requestSync(ctx, userID, touched(b != nil, core.EntityExpense)...)
	return saved, nil
}

// DeleteExpense removes an expense and gives its amount back to the
// category budget unless that would push the remaining headroom above the
// allocation. It fails with core.ErrBudgetNotFound when the category has
// no budget.
func (s *BudgetService) DeleteExpense(ctx context.Context, userID string, t core.Transaction, period core.Period) error {
	t.Kind = core.KindExpense
	unlock := s.lockBudget(userID, t.Category.ID, period)
	defer unlock()

	b, err := s.categoryBudget(ctx, userID, t.Category.ID, period)
	if err != nil {
		return err
	}
	if b == nil {
		return core.ErrBudgetNotFound
	}
	restored := b.RemainingAmount.Add(t.Amount)
	adjusted := restored.Cents <= b.Amount.Cents
	var changed *core.Budget
	if adjusted {
		b.RemainingAmount = restored
		changed = b
	}
	if _, err := s.ledger.Remove(ctx, changed, t); err != nil {
		return fmt.Errorf("delete expense %s: %w", t.ID, err)
	}
	slog.InfoContext(ctx, "Deleted expense",
		applog.FieldEntityID, t.ID,
		applog.FieldBudgetID, b.ID,
		"budget_adjusted", adjusted)
	s.requestSync(ctx, userID, touched(adjusted, core.EntityExpense)...)
	return nil
}

// AddIncome records an income and raises its category budget's allocation
// and headroom. It fails with core.ErrCategoryBudgetNotExists when the
// category has no budget.
func (s *BudgetService) AddIncome(ctx context.Context, userID string, t core.Transaction, period core.Period) (core.Transaction, error) {
	t.Kind = core.KindIncome
	t.UserID = userID
	if err := t.Validate(); err != nil {
		return core.Transaction{}, err
	}
	unlock := s.lockBudget(userID, t.Category.ID, period)
	defer unlock()

	b, err := s.categoryBudget(ctx, userID, t.Category.ID, period)
	if err != nil {
		return core.Transaction{}, err
	}
	if b == nil {
		return core.Transaction{}, core.ErrCategoryBudgetNotExists
	}
	b.Amount = b.Amount.Add(t.Amount)
	b.RemainingAmount = b.RemainingAmount.Add(t.Amount)
	saved, _, err := s.ledger.Record(ctx, b, t)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("add income: %w", err)
	}
	slog.InfoContext(ctx, "Added income",
		applog.FieldEntityID, saved.ID,
		applog.FieldBudgetID, b.ID,
		applog.FieldAmountCents, saved.Amount.Cents)
	s.requestSync(ctx, userID, core.EntityBudget, core.EntityIncome)
	return saved, nil
}

// UpdateIncome replaces a stored income and moves the category budget by
// the difference. Both the income and the budget must exist.
func (s *BudgetService) UpdateIncome(ctx context.Context, userID string, t core.Transaction, period core.Period) (core.Transaction, error) {
	t.Kind = core.KindIncome
	t.UserID = userID
	if err := t.Validate(); err != nil {
		return core.Transaction{}, err
	}
	unlock := s.lockBudget(userID, t.Category.ID, period)
	defer unlock()

	old, err := s.currentTransaction(ctx, core.KindIncome, t.ID)
	if err != nil {
		return core.Transaction{}, err
	}
	if old == nil {
		return core.Transaction{}, core.ErrTransactionNotFound(t.Kind)
	}
	delta := old.Amount.Sub(t.Amount)

	b, err := s.categoryBudget(ctx, userID, t.Category.ID, period)
	if err != nil {
		return core.Transaction{}, err
	}
	if b == nil {
		return core.Transaction{}, core.ErrBudgetNotFound
	}
	b.Amount = b.Amount.Sub(delta)
	b.RemainingAmount = b.RemainingAmount.Sub(delta)
	saved, _, err := s.ledger.Record(ctx, b, t)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("update income %s: %w", t.ID, err)
	}
	s.requestSync(ctx, userID, core.EntityBudget, core.EntityIncome)
	return saved, nil
}

// DeleteIncome removes an income and takes its amount back out of the
// category budget when there is one.
func (s *BudgetService) DeleteIncome(ctx context.Context, userID string, t core.Transaction, period core.Period) error {
	t.Kind = core.KindIncome
	unlock := s.lockBudget(userID, t.Category.ID, period)
	defer unlock()

	b, err := s.categoryBudget(ctx, userID, t.Category.ID, period)
	if err != nil {
		return err
	}
	if b != nil {
		b.Amount = b.Amount.Sub(t.Amount)
		b.RemainingAmount = b.RemainingAmount.Sub(t.Amount)
	}
	if _, err := s.ledger.Remove(ctx, b, t); err != nil {
		return fmt.Errorf("delete income %s: %w", t.ID, err)
	}
	s.requestSync(ctx, userID, touched(b != nil, core.EntityIncome)...)
	return nil
}

// touched lists the entities a mutation wrote.
func touched(budget bool, e core.Entity) []core.Entity {
	if budget {
		return []core.Entity{core.EntityBudget, e}
	}
	return []core.Entity{e}
}

// TransactionsQuery selects the transactions listing.
type TransactionsQuery struct {
	UserID          string
	Period          core.Period
	CategoryIDs     []string
	IncludeExpenses bool
	IncludeIncomes  bool
	Sort            core.SortOrder
}

// WatchTransactions emits the filtered, sorted listing whenever expenses
// or incomes change.
func (s *BudgetService) WatchTransactions(ctx context.Context, q TransactionsQuery, emit func([]core.Transaction) error) error {
	combined := stream.CombineLatest2(ctx,
		s.expenses.GetFiltered(ctx, q.UserID, q.Period, q.CategoryIDs),
		s.incomes.GetFiltered(ctx, q.UserID, q.Period, q.CategoryIDs),
		func(expenses, incomes []core.Transaction) []core.Transaction {
			var txs []core.Transaction
			if q.IncludeExpenses {
				txs = append(txs, expenses...)
			}
			if q.IncludeIncomes {
				txs = append(txs, incomes...)
			}
			return core.SortTransactions(txs, q.Sort)
		})
	for txs := range combined.C() {
		if err := emit(txs); err != nil {
			return err
		}
	}
	return combined.Err()
}
