package services

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"fintrack/internal/core"
	applog "fintrack/internal/log"
	"fintrack/internal/stream"
)

// AddBudget creates the category budget for the period, or merges the
// candidate into the existing one. A merge adds the candidate's amount to
// the allocation and the same amount to the remaining headroom. The budget
// always belongs to period, whatever BudgetPeriod the candidate carries.
func (s *BudgetService) AddBudget(ctx context.Context, userID string, candidate core.Budget, period core.Period) (core.Budget, error) {
	candidate.BudgetPeriod = period.Start
	if err := candidate.Validate(); err != nil {
		return core.Budget{}, err
	}
	unlock := s.lockBudget(userID, candidate.Category.ID, period)
	defer unlock()

	budgets, err := stream.First(ctx, func(ctx context.Context) *stream.Subscription[[]core.Budget] {
		return s.budgets.GetAll(ctx, userID, period)
	})
	if err != nil {
		return core.Budget{}, fmt.Errorf("list budgets: %w", err)
	}

	var existing *core.Budget
	for i := range budgets {
		if budgets[i].Category.Equal(candidate.Category) {
			existing = &budgets[i]
			break
		}
	}

	var saved core.Budget
	if existing != nil {
		merged := *existing
		merged.Amount = existing.Amount.Add(candidate.Amount)
		merged.RemainingAmount = merged.Amount.Sub(existing.Amount).Add(existing.RemainingAmount)
		if saved, err = s.budgets.Update(ctx, merged); err != nil {
			return core.Budget{}, fmt.Errorf("update budget %s: %w", merged.ID, err)
		}
		slog.InfoContext(ctx, "Merged budget", applog.NewFields().
			WithBudget(saved.ID, saved.Category.ID, saved.Amount.Cents).ToSlice()...)
	} else {
		b := candidate
		b.UserID = userID
		b.RemainingAmount = b.Amount
		if saved, err = s.budgets.Add(ctx, b); err != nil {
			return core.Budget{}, fmt.Errorf("add budget: %w", err)
		}
		slog.InfoContext(ctx, "Created budget", applog.NewFields().
			WithBudget(saved.ID, saved.Category.ID, saved.Amount.Cents).ToSlice()...)
		if saved.Recurrent && s.rollover != nil {
			if err := s.rollover.ScheduleRollover(ctx, saved); err != nil {
				slog.WarnContext(ctx, "Failed to schedule budget rollover",
					applog.FieldBudgetID, saved.ID,
					applog.FieldError, err)
			}
		}
	}

	s.requestSync(ctx, userID, core.EntityBudget)
	return saved, nil
}

// UpdateBudget replaces a budget's settings. The remaining headroom moves
// by the same amount as the allocation.
func (s *BudgetService) UpdateBudget(ctx context.Context, userID string, b core.Budget, period core.Period) (core.Budget, error) {
	unlock := s.lockBudget(userID, b.Category.ID, period)
	defer unlock()

	current, err := stream.First(ctx, func(ctx context.Context) *stream.Subscription[*core.Budget] {
		return s.budgets.Get(ctx, b.ID)
	})
	if err != nil {
		return core.Budget{}, fmt.Errorf("get budget %s: %w", b.ID, err)
	}
	if current == nil {
		return core.Budget{}, core.ErrBudgetNotFound
	}
	b.RemainingAmount = current.RemainingAmount.Add(b.Amount.Sub(current.Amount))
	b.UserID = current.UserID
	b.CreatedAt = current.CreatedAt
	saved, err := s.budgets.Update(ctx, b)
	if err != nil {
		return core.Budget{}, fmt.Errorf("update budget %s: %w", b.ID, err)
	}
	s.requestSync(ctx, userID, core.EntityBudget)
	return saved, nil
}

func (s *BudgetService) DeleteBudget(ctx context.Context, userID, budgetID string) error {
	if err := s.budgets.Delete(ctx, budgetID); err != nil {
		return fmt.Errorf("delete budget %s: %w", budgetID, err)
	}
	slog.InfoContext(ctx, "Deleted budget", applog.FieldBudgetID, budgetID)
	s.requestSync(ctx, userID, core.EntityBudget)
	return nil
}

// WatchBudgets emits the period's budget summary on every budget change.
func (s *BudgetService) WatchBudgets(ctx context.Context, userID string, period core.Period, emit func(core.BudgetsSummary) error) error {
	sub := s.budgets.GetAll(ctx, userID, period)
	for budgets := range sub.C() {
		if err := emit(core.SummarizeBudgets(budgets)); err != nil {
			return err
		}
	}
	return sub.Err()
}

// BudgetDetails is one budget with every transaction of its category.
type BudgetDetails struct {
	Budget       core.Budget
	Transactions []core.Transaction
}

// WatchBudgetDetails emits the budget and its category's expenses and
// incomes, newest first, whenever any of them changes. It fails with
// core.ErrBudgetNotFound once the budget is missing.
func (s *BudgetService) WatchBudgetDetails(ctx context.Context, userID, budgetID string, period core.Period, emit func(BudgetDetails) error) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	first, err := stream.First(ctx, func(ctx context.Context) *stream.Subscription[*core.Budget] {
		return s.budgets.Get(ctx, budgetID)
	})
	if err != nil {
		return err
	}
	if first == nil {
		return core.ErrBudgetNotFound
	}
	cats := []string{first.Category.ID}

	combined := stream.CombineLatest3(ctx,
		s.budgets.Get(ctx, budgetID),
		s.expenses.GetFiltered(ctx, userID, period, cats),
		s.incomes.GetFiltered(ctx, userID, period, cats),
		func(b *core.Budget, expenses, incomes []core.Transaction) *BudgetDetails {
			if b == nil {
				return nil
			}
			txs := make([]core.Transaction, 0, len(expenses)+len(incomes))
			txs = append(txs, expenses...)
			txs = append(txs, incomes...)
			sort.SliceStable(txs, func(i, j int) bool {
				return txs[i].TransactionDate.After(txs[j].TransactionDate)
			})
			return &BudgetDetails{Budget: *b, Transactions: txs}
		})
	for d := range combined.C() {
		if d == nil {
			return core.ErrBudgetNotFound
		}
		if err := emit(*d); err != nil {
			return err
		}
	}
	return combined.Err()
}
