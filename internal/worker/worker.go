// Package worker holds the background jobs run by the scheduler: per-entity
// sync reconciliation and the monthly rollover of recurrent budgets.
package worker

import (
	"context"
	"time"

	"fintrack/internal/core"
)

// Outcome tells the scheduler what to do with a finished job.
type Outcome int

const (
	Success Outcome = iota
	// Retry asks for another attempt after a backoff.
	Retry
	// Failure ends the job without retrying.
	Failure
)

func (o Outcome) String() string {
	switch o {
	case Success:
		return "success"
	case Retry:
		return "retry"
	default:
		return "failure"
	}
}

// Input is the persisted job argument.
type Input struct {
	UserID   string `json:"userId,omitempty"`
	BudgetID string `json:"budgetId,omitempty"`
}

// Worker runs one kind of job.
type Worker interface {
	Do(ctx context.Context, in Input) Outcome
}

// Work is a job to enqueue.
type Work struct {
	Kind string
	// UniqueName collapses the job with pending work of the same name.
	UniqueName string
	Input      Input
	RunAt      time.Time
}

// Enqueuer accepts work for later execution. It reports false when the
// work was collapsed into an already pending job.
type Enqueuer interface {
	Enqueue(ctx context.Context, w Work) (bool, error)
}

// KindRollover is the job kind of RolloverWorker.
const KindRollover = "budget_rollover"

// SyncKind returns the job kind that reconciles entity.
func SyncKind(entity core.Entity) string {
	return "sync_" + string(entity)
}

// SyncUniqueName is the dedupe key of a sync job.
func SyncUniqueName(entity core.Entity, userID string) string {
	return "sync:" + string(entity) + ":" + userID
}

// SyncEntities lists the entities reconciled by the sync workers.
var SyncEntities = []core.Entity{core.EntityUser, core.EntityBudget, core.EntityExpense, core.EntityIncome}
