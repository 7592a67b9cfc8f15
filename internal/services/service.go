// Package services holds the budget-consistency use cases: every expense
// and income mutation keeps its category budget's allocation and remaining
// headroom in step.
package services

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"

	"fintrack/internal/core"
	applog "fintrack/internal/log"
	"fintrack/internal/repository"
	"fintrack/internal/stream"
)

// Ports for optional collaborators. A nil collaborator is skipped.
type (
	// SyncRequester asks the background workers to reconcile an entity.
	SyncRequester interface {
		RequestSync(ctx context.Context, entity core.Entity, userID string) error
	}

	// BudgetAlertNotifier is told when a budget crosses its alert threshold.
	BudgetAlertNotifier interface {
		BudgetAlert(ctx context.Context, b core.Budget)
	}

	// RolloverScheduler arranges the next-period copy of a recurrent budget.
	RolloverScheduler interface {
		ScheduleRollover(ctx context.Context, b core.Budget) error
	}
)

// Deps are the collaborators of a BudgetService.
type Deps struct {
	Budgets  repository.BudgetRepository
	Expenses repository.TransactionRepository
	Incomes  repository.TransactionRepository
	// Ledger writes a budget and the transaction that moved it together.
	Ledger repository.LedgerRepository

	Sync     SyncRequester
	Alerts   BudgetAlertNotifier
	Rollover RolloverScheduler
}

// BudgetService implements budget, expense and income mutations plus the
// read models derived from them.
type BudgetService struct {
	budgets  repository.BudgetRepository
	expenses repository.TransactionRepository
	incomes  repository.TransactionRepository
	ledger   repository.LedgerRepository
	sync     SyncRequester
	alerts   BudgetAlertNotifier
	rollover RolloverScheduler
	locks    *keyedMutex
}

func NewBudgetService(d Deps) *BudgetService {
	return &BudgetService{
		budgets:  d.Budgets,
		expenses: d.Expenses,
		incomes:  d.Incomes,
		ledger:   d.Ledger,
		sync:     d.Sync,
		alerts:   d.Alerts,
		rollover: d.Rollover,
		locks:    newKeyedMutex(),
	}
}

// SetRolloverScheduler wires the scheduler after construction; the
// scheduler itself depends on the service.
func (s *BudgetService) SetRolloverScheduler(r RolloverScheduler) {
	s.rollover = r
}

func (s *BudgetService) transactions(kind core.TransactionKind) repository.TransactionRepository {
	if kind == core.KindIncome {
		return s.incomes
	}
	return s.expenses
}

// lockBudget serializes mutations of one category budget.
func (s *BudgetService) lockBudget(userID, categoryID string, period core.Period) func() {
	return s.locks.Lock(userID + "/" + categoryID + "/" + strconv.FormatInt(period.Start.UnixNano(), 10))
}

// categoryBudget reads the current budget for a category, or nil.
func (s *BudgetService) categoryBudget(ctx context.Context, userID, categoryID string, period core.Period) (*core.Budget, error) {
	b, err := stream.First(ctx, func(ctx context.Context) *stream.Subscription[*core.Budget] {
		return s.budgets.GetByCategory(ctx, userID, categoryID, period)
	})
	if err != nil {
		return nil, fmt.Errorf("find budget for category %s: %w", categoryID, err)
	}
	return b, nil
}

func (s *BudgetService) currentTransaction(ctx context.Context, kind core.TransactionKind, id string) (*core.Transaction, error) {
	t, err := stream.First(ctx, func(ctx context.Context) *stream.Subscription[*core.Transaction] {
		return s.transactions(kind).Get(ctx, id)
	})
	if err != nil {
		return nil, fmt.Errorf("get %s %s: %w", kind, id, err)
	}
	return t, nil
}

// requestSync publishes a sync request per touched entity. Failures are
// logged: the write already landed locally and the periodic sync will
// pick it up.
func (s *BudgetService) requestSync(ctx context.Context, userID string, entities ...core.Entity) {
	if s.sync == nil {
		return
	}
	for _, e := range entities {
		if err := s.sync.RequestSync(ctx, e, userID); err != nil {
			slog.WarnContext(ctx, "Failed to request sync",
				applog.FieldEntity, string(e),
				applog.FieldUserID, userID,
				applog.FieldError, err)
		}
	}
}

func (s *BudgetService) notifyAlert(ctx context.Context, b core.Budget) {
	if s.alerts != nil && b.ShouldAlert() {
		s.alerts.BudgetAlert(ctx, b)
	}
}

// LogAlertNotifier reports budget alerts to the log.
type LogAlertNotifier struct{}

func (LogAlertNotifier) BudgetAlert(ctx context.Context, b core.Budget) {
	slog.WarnContext(ctx, "Budget alert threshold reached",
		applog.FieldBudgetID, b.ID,
		applog.FieldCategoryID, b.Category.ID,
		applog.FieldUserID, b.UserID,
		"remaining", b.RemainingAmount.String(),
		"amount", b.Amount.String(),
		"exceeded", b.Exceeded())
}
