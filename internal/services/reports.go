package services

import (
	"context"

	"fintrack/internal/core"
	"fintrack/internal/stream"
)

// RecentLimit caps HomeSummary.Recent.
const RecentLimit = 10

func buildReport(period core.Period, expenses, incomes []core.Transaction) core.Report {
	return core.Report{
		Period:             period,
		ExpensesByDay:      core.GroupTransactionByDay(expenses, period),
		IncomesByDay:       core.GroupTransactionByDay(incomes, period),
		ExpensesByCategory: core.GroupTransactionByCategory(expenses),
		IncomesByCategory:  core.GroupTransactionByCategory(incomes),
		TotalExpenses:      core.Total(expenses),
		TotalIncomes:       core.Total(incomes),
	}
}

// WatchReport emits the period report whenever expenses or incomes change.
func (s *BudgetService) WatchReport(ctx context.Context, userID string, period core.Period, emit func(core.Report) error) error {
	combined := stream.CombineLatest2(ctx,
		s.expenses.GetAll(ctx, userID, period),
		s.incomes.GetAll(ctx, userID, period),
		func(expenses, incomes []core.Transaction) core.Report {
			return buildReport(period, expenses, incomes)
		})
	for r := range combined.C() {
		if err := emit(r); err != nil {
			return err
		}
	}
	return combined.Err()
}

func buildHome(period core.Period, budgets []core.Budget, expenses, incomes []core.Transaction) core.HomeSummary {
	summary := core.SummarizeBudgets(budgets)
	all := make([]core.Transaction, 0, len(expenses)+len(incomes))
	all = append(all, expenses...)
	all = append(all, incomes...)
	recent := core.SortTransactions(all, core.SortNewest)
	if len(recent) > RecentLimit {
		recent = recent[:RecentLimit]
	}
	return core.HomeSummary{
		TotalBudget:     summary.TotalBudget,
		RemainingBudget: summary.RemainingBudget,
		TotalExpenses:   core.Total(expenses),
		TotalIncomes:    core.Total(incomes),
		ExpensesByDay:   core.GroupTransactionByDay(expenses, period),
		Recent:          recent,
	}
}

// WatchHome emits the landing overview whenever budgets, expenses or
// incomes change.
func (s *BudgetService) WatchHome(ctx context.Context, userID string, period core.Period, emit func(core.HomeSummary) error) error {
	combined := stream.CombineLatest3(ctx,
		s.budgets.GetAll(ctx, userID, period),
		s.expenses.GetAll(ctx, userID, period),
		s.incomes.GetAll(ctx, userID, period),
		func(budgets []core.Budget, expenses, incomes []core.Transaction) core.HomeSummary {
			return buildHome(period, budgets, expenses, incomes)
		})
	for h := range combined.C() {
		if err := emit(h); err != nil {
			return err
		}
	}
	return combined.Err()
}
