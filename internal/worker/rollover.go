package worker

import (
	"context"
	"fmt"
	"time"

	"fintrack/internal/core"
	applog "fintrack/internal/log"
	"fintrack/internal/repository"
	"fintrack/internal/stream"
)

// BudgetAdder persists a budget with create-or-merge semantics.
type BudgetAdder interface {
	AddBudget(ctx context.Context, userID string, b core.Budget, period core.Period) (core.Budget, error)
}

// RolloverWorker copies a recurrent budget into the following month and
// schedules itself again for the copy.
type RolloverWorker struct {
	budgets repository.BudgetRepository
	adder   BudgetAdder
	queue   Enqueuer
	buffer  time.Duration
	now     func() time.Time
}

func NewRolloverWorker(budgets repository.BudgetRepository, adder BudgetAdder, queue Enqueuer, buffer time.Duration) *RolloverWorker {
	return &RolloverWorker{budgets: budgets, adder: adder, queue: queue, buffer: buffer, now: time.Now}
}

// NextRolloverAt is the first instant of the month after t plus the buffer.
func (w *RolloverWorker) NextRolloverAt(t time.Time) time.Time {
	return core.StartOfNextMonth(t).Add(w.buffer)
}

// ScheduleRollover enqueues the rollover of b for the start of the month
// after its period. Repeated calls for one budget collapse.
func (w *RolloverWorker) ScheduleRollover(ctx context.Context, b core.Budget) error {
	_, err := w.queue.Enqueue(ctx, Work{
		Kind:       KindRollover,
		UniqueName: "rollover:" + b.ID,
		Input:      Input{UserID: b.UserID, BudgetID: b.ID},
		RunAt:      w.NextRolloverAt(b.BudgetPeriod),
	})
	if err != nil {
		return fmt.Errorf("schedule rollover of %s: %w", b.ID, err)
	}
	return nil
}

// nextPeriodStart is the month after the budget's, or the current month
// when the job runs late.
func (w *RolloverWorker) nextPeriodStart(b core.Budget) time.Time {
	next := core.StartOfNextMonth(b.BudgetPeriod)
	current := core.MonthPeriod(w.now().In(next.Location())).Start
	if current.After(next) {
		return current
	}
	return next
}

func (w *RolloverWorker) Do(ctx context.Context, in Input) Outcome {
	logger := applog.FromContext(ctx).WithComponent(applog.ComponentWorker).
		With(applog.FieldOperation, applog.OpRollover, applog.FieldBudgetID, in.BudgetID)
	if in.UserID == "" || in.BudgetID == "" {
		logger.ErrorContext(ctx, "Rollover requested without user or budget")
		return Failure
	}

	b, err := stream.First(ctx, func(ctx context.Context) *stream.Subscription[*core.Budget] {
		return w.budgets.Get(ctx, in.BudgetID)
	})
	if err != nil {
		logger.ErrorContext(ctx, "Failed to load budget", applog.FieldError, err)
		return Retry
	}
	if b == nil || !b.Recurrent {
		logger.InfoContext(ctx, "Budget gone or no longer recurrent, rollover stopped")
		return Success
	}

	start := w.nextPeriodStart(*b)
	next := core.Budget{
		Category:              b.Category,
		Amount:                b.Amount,
		BudgetAlert:           b.BudgetAlert,
		BudgetAlertPercentage: b.BudgetAlertPercentage,
		BudgetPeriod:          start,
		Recurrent:             true,
	}
	saved, err := w.adder.AddBudget(ctx, in.UserID, next, core.MonthPeriod(start))
	if err != nil {
		logger.ErrorContext(ctx, "Failed to create next budget", applog.FieldError, err)
		return Retry
	}

	// Rerunning after the add would merge the allocation twice, so a failed
	// reschedule ends the job.
	if err := w.ScheduleRollover(ctx, saved); err != nil {
		logger.ErrorContext(ctx, "Failed to reschedule rollover", applog.FieldError, err)
		return Failure
	}
	logger.InfoContext(ctx, "Rolled budget over",
		"next_budget_id", saved.ID,
		applog.FieldPeriod, start.Format("2006-01"))
	return Success
}
