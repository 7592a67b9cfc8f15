package services

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fintrack/internal/core"
	"fintrack/internal/repository"
	"fintrack/internal/sheets/memory"
	"fintrack/internal/storage"
	"fintrack/internal/stream"
	"fintrack/internal/usecase"
)

type syncRecorder struct {
	mu       sync.Mutex
	requests []core.Entity
}

func (r *syncRecorder) RequestSync(_ context.Context, e core.Entity, _ string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.requests = append(r.requests, e)
	return nil
}

func (r *syncRecorder) entities() []core.Entity {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]core.Entity(nil), r.requests...)
}

type alertRecorder struct {
	mu     sync.Mutex
	alerts []core.Budget
}

func (a *alertRecorder) BudgetAlert(_ context.Context, b core.Budget) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.alerts = append(a.alerts, b)
}

type rolloverRecorder struct {
	scheduled []core.Budget
}

func (r *rolloverRecorder) ScheduleRollover(_ context.Context, b core.Budget) error {
	r.scheduled = append(r.scheduled, b)
	return nil
}

type env struct {
	svc      *BudgetService
	repos    *repository.Set
	sync     *syncRecorder
	alerts   *alertRecorder
	rollover *rolloverRecorder
	period   core.Period
	day      time.Time
}

const user = "u1"

var (
	food = core.Category{ID: "food", Name: "Food"}
	rent = core.Category{ID: "rent", Name: "Rent"}
)

// diskFullStore fails every budget and transaction pair write.
type diskFullStore struct {
	*storage.SQLiteRepository
}

func (diskFullStore) ApplyLedger(context.Context, storage.LedgerWrite) error {
	return errors.New("disk full")
}

func newEnv(t *testing.T) *env {
	t.Helper()
	return newEnvWith(t, func(l *storage.SQLiteRepository) repository.Local { return l })
}

func newEnvWith(t *testing.T, wrap func(*storage.SQLiteRepository) repository.Local) *env {
	t.Helper()
	sqlite, err := storage.NewSQLiteRepository(filepath.Join(t.TempDir(), "svc.db"))
	require.NoError(t, err)
	t.Cleanup(func() { sqlite.Close() })
	local := wrap(sqlite)

	repos := repository.New(local, memory.New(), nil)
	e := &env{
		repos:    repos,
		sync:     &syncRecorder{},
		alerts:   &alertRecorder{},
		rollover: &rolloverRecorder{},
		day:      time.Date(2025, 3, 14, 12, 0, 0, 0, time.UTC),
	}
	e.period = core.MonthPeriod(e.day)
	e.svc = NewBudgetService(Deps{
		Budgets:  repos.Budgets,
		Expenses: repos.Expenses,
		Incomes:  repos.Incomes,
		Ledger:   repos.Ledger,
		Sync:     e.sync,
		Alerts:   e.alerts,
		Rollover: e.rollover,
	})
	return e
}

func (e *env) budget(t *testing.T, cat core.Category, units int64) core.Budget {
	t.Helper()
	b, err := e.svc.AddBudget(context.Background(), user, core.Budget{Category: cat, Amount: core.FromUnits(units)}, e.period)
	require.NoError(t, err)
	return b
}

func (e *env) stored(t *testing.T, id string) core.Budget {
	t.Helper()
	b, err := stream.First(context.Background(), func(ctx context.Context) *stream.Subscription[*core.Budget] {
		return e.repos.Budgets.Get(ctx, id)
	})
	require.NoError(t, err)
	require.NotNil(t, b)
	return *b
}

func (e *env) tx(cat core.Category, units int64) core.Transaction {
	return core.Transaction{Name: "item", Amount: core.FromUnits(units), Category: cat, TransactionDate: e.day}
}

func TestAddBudget_CreateSetsRemainingToAmount(t *testing.T) {
	e := newEnv(t)
	b := e.budget(t, food, 100)

	assert.Equal(t, user, b.UserID)
	assert.Equal(t, core.FromUnits(100), b.RemainingAmount)
	assert.Equal(t, e.period.Start, b.BudgetPeriod)
	assert.Equal(t, []core.Entity{core.EntityBudget}, e.sync.entities())
	assert.Empty(t, e.rollover.scheduled)
}

func TestAddBudget_RejectsInvalidCandidates(t *testing.T) {
	tests := []struct {
		name   string
		budget core.Budget
		want   error
	}{
		{"missing category", core.Budget{Amount: core.FromUnits(10)}, core.ErrEmptyCategory},
		{"negative amount", core.Budget{Category: food, Amount: core.FromUnits(-5)}, core.ErrNegativeAmount},
		{"alert percentage above 100", core.Budget{Category: food, Amount: core.FromUnits(10), BudgetAlertPercentage: 250}, core.ErrInvalidAlertPerc},
		{"negative alert percentage", core.Budget{Category: food, Amount: core.FromUnits(10), BudgetAlertPercentage: -1}, core.ErrInvalidAlertPerc},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newEnv(t)
			ctx := context.Background()
			_, err := e.svc.AddBudget(ctx, user, tt.budget, e.period)
			assert.ErrorIs(t, err, tt.want)

			list, err := stream.First(ctx, func(ctx context.Context) *stream.Subscription[[]core.Budget] {
				return e.repos.Budgets.GetAll(ctx, user, e.period)
			})
			require.NoError(t, err)
			assert.Empty(t, list)
			assert.Empty(t, e.sync.entities())
		})
	}
}

func TestAddBudget_PeriodOutsideWindowStillMerges(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	outside := e.period.End.Add(time.Nanosecond)

	first, err := e.svc.AddBudget(ctx, user, core.Budget{Category: food, Amount: core.FromUnits(100), BudgetPeriod: outside}, e.period)
	require.NoError(t, err)
	assert.True(t, e.period.Start.Equal(first.BudgetPeriod))

	second, err := e.svc.AddBudget(ctx, user, core.Budget{Category: food, Amount: core.FromUnits(50), BudgetPeriod: outside}, e.period)
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, core.FromUnits(150), second.Amount)

	list, err := stream.First(ctx, func(ctx context.Context) *stream.Subscription[[]core.Budget] {
		return e.repos.Budgets.GetAll(ctx, user, e.period)
	})
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestAddBudget_MergeFixture(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	b := e.budget(t, food, 100)

	_, err := e.svc.AddExpense(ctx, user, e.tx(food, 50), e.period)
	require.NoError(t, err)
	require.Equal(t, core.FromUnits(50), e.stored(t, b.ID).RemainingAmount)

	merged, err := e.svc.AddBudget(ctx, user, core.Budget{Category: food, Amount: core.FromUnits(200)}, e.period)
	require.NoError(t, err)
	assert.Equal(t, b.ID, merged.ID)
	assert.Equal(t, core.FromUnits(300), merged.Amount)
	assert.Equal(t, core.FromUnits(250), merged.RemainingAmount)
	assert.False(t, merged.Synced)

	list, err := stream.First(ctx, func(ctx context.Context) *stream.Subscription[[]core.Budget] {
		return e.repos.Budgets.GetAll(ctx, user, e.period)
	})
	require.NoError(t, err)
	assert.Len(t, list, 1, "one budget per category and period")
}

func TestAddBudget_RecurrentSchedulesRollover(t *testing.T) {
	e := newEnv(t)
	_, err := e.svc.AddBudget(context.Background(), user,
		core.Budget{Category: rent, Amount: core.FromUnits(900), Recurrent: true}, e.period)
	require.NoError(t, err)
	require.Len(t, e.rollover.scheduled, 1)
	assert.Equal(t, rent.ID, e.rollover.scheduled[0].Category.ID)
}

func TestAddExpense_WithoutBudgetStillRecords(t *testing.T) {
	e := newEnv(t)
	saved, err := e.svc.AddExpense(context.Background(), user, e.tx(food, 12), e.period)
	require.NoError(t, err)
	assert.NotEmpty(t, saved.ID)
	assert.Equal(t, core.KindExpense, saved.Kind)
	assert.Equal(t, []core.Entity{core.EntityExpense}, e.sync.entities())
}

func TestAddExpense_NotifiesAlert(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	b, err := e.svc.AddBudget(ctx, user, core.Budget{
		Category: food, Amount: core.FromUnits(100), BudgetAlert: true, BudgetAlertPercentage: 80,
	}, e.period)
	require.NoError(t, err)

	_, err = e.svc.AddExpense(ctx, user, e.tx(food, 50), e.period)
	require.NoError(t, err)
	assert.Empty(t, e.alerts.alerts)

	_, err = e.svc.AddExpense(ctx, user, e.tx(food, 30), e.period)
	require.NoError(t, err)
	require.Len(t, e.alerts.alerts, 1)
	assert.Equal(t, b.ID, e.alerts.alerts[0].ID)
}

func TestExpense_AddDeleteSymmetry(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	b := e.budget(t, food, 100)

	exp, err := e.svc.AddExpense(ctx, user, e.tx(food, 40), e.period)
	require.NoError(t, err)
	assert.Equal(t, core.FromUnits(60), e.stored(t, b.ID).RemainingAmount)

	require.NoError(t, e.svc.DeleteExpense(ctx, user, exp, e.period))
	assert.Equal(t, core.FromUnits(100), e.stored(t, b.ID).RemainingAmount)

	gone, err := stream.First(ctx, func(ctx context.Context) *stream.Subscription[*core.Transaction] {
		return e.repos.Expenses.Get(ctx, exp.ID)
	})
	require.NoError(t, err)
	assert.Nil(t, gone)
}

func TestDeleteExpense_CeilingSkipsRestoration(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	b := e.budget(t, food, 100)

	// Recorded before the budget allocation was raised past it.
	exp, err := e.repos.Expenses.Add(ctx, core.Transaction{UserID: user, Name: "x", Amount: core.FromUnits(30), Category: food, TransactionDate: e.day})
	require.NoError(t, err)

	require.NoError(t, e.svc.DeleteExpense(ctx, user, exp, e.period))
	assert.Equal(t, core.FromUnits(100), e.stored(t, b.ID).RemainingAmount)
}

func TestDeleteExpense_WithoutBudgetFails(t *testing.T) {
	e := newEnv(t)
	err := e.svc.DeleteExpense(context.Background(), user, e.tx(food, 5), e.period)
	assert.ErrorIs(t, err, core.ErrBudgetNotFound)
}

func TestUpdateExpense(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	b := e.budget(t, food, 100)

	exp, err := e.svc.AddExpense(ctx, user, e.tx(food, 40), e.period)
	require.NoError(t, err)

	exp.Amount = core.FromUnits(25)
	_, err = e.svc.UpdateExpense(ctx, user, exp, e.period)
	require.NoError(t, err)
	assert.Equal(t, core.FromUnits(75), e.stored(t, b.ID).RemainingAmount)

	missing := e.tx(food, 1)
	missing.ID = "nope"
	_, err = e.svc.UpdateExpense(ctx, user, missing, e.period)
	assert.ErrorIs(t, err, core.ErrExpenseNotFound)
}

func TestAddIncome_RequiresBudget(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	_, err := e.svc.AddIncome(ctx, user, e.tx(food, 10), e.period)
	require.ErrorIs(t, err, core.ErrCategoryBudgetNotExists)

	incomes, err := stream.First(ctx, func(ctx context.Context) *stream.Subscription[[]core.Transaction] {
		return e.repos.Incomes.GetAll(ctx, user, e.period)
	})
	require.NoError(t, err)
	assert.Empty(t, incomes)
	assert.Empty(t, e.sync.entities())
}

func TestIncome_Lifecycle(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	b := e.budget(t, food, 100)

	in, err := e.svc.AddIncome(ctx, user, e.tx(food, 20), e.period)
	require.NoError(t, err)
	got := e.stored(t, b.ID)
	assert.Equal(t, core.FromUnits(120), got.Amount)
	assert.Equal(t, core.FromUnits(120), got.RemainingAmount)

	in.Amount = core.FromUnits(5)
	_, err = e.svc.UpdateIncome(ctx, user, in, e.period)
	require.NoError(t, err)
	got = e.stored(t, b.ID)
	assert.Equal(t, core.FromUnits(105), got.Amount)
	assert.Equal(t, core.FromUnits(105), got.RemainingAmount)

	require.NoError(t, e.svc.DeleteIncome(ctx, user, in, e.period))
	got = e.stored(t, b.ID)
	assert.Equal(t, core.FromUnits(100), got.Amount)
	assert.Equal(t, core.FromUnits(100), got.RemainingAmount)
}

func TestUpdateIncome_Errors(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	missing := e.tx(food, 1)
	missing.ID = "nope"
	_, err := e.svc.UpdateIncome(ctx, user, missing, e.period)
	assert.ErrorIs(t, err, core.ErrIncomeNotFound)

	in, err := e.repos.Incomes.Add(ctx, core.Transaction{UserID: user, Name: "x", Amount: core.FromUnits(3), Category: rent, TransactionDate: e.day})
	require.NoError(t, err)
	_, err = e.svc.UpdateIncome(ctx, user, in, e.period)
	assert.ErrorIs(t, err, core.ErrBudgetNotFound)
}

func TestDeleteIncome_WithoutBudgetStillDeletes(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	in, err := e.repos.Incomes.Add(ctx, core.Transaction{UserID: user, Name: "x", Amount: core.FromUnits(3), Category: rent, TransactionDate: e.day})
	require.NoError(t, err)

	require.NoError(t, e.svc.DeleteIncome(ctx, user, in, e.period))
	gone, err := stream.First(ctx, func(ctx context.Context) *stream.Subscription[*core.Transaction] {
		return e.repos.Incomes.Get(ctx, in.ID)
	})
	require.NoError(t, err)
	assert.Nil(t, gone)
}

func TestFailedWriteLeavesBudgetUntouched(t *testing.T) {
	e := newEnvWith(t, func(l *storage.SQLiteRepository) repository.Local { return diskFullStore{l} })
	ctx := context.Background()
	b := e.budget(t, food, 100)
	before := e.sync.entities()

	_, err := e.svc.AddExpense(ctx, user, e.tx(food, 30), e.period)
	require.Error(t, err)
	assert.Equal(t, core.FromUnits(100), e.stored(t, b.ID).RemainingAmount)

	_, err = e.svc.AddIncome(ctx, user, e.tx(food, 30), e.period)
	require.Error(t, err)
	got := e.stored(t, b.ID)
	assert.Equal(t, core.FromUnits(100), got.Amount)
	assert.Equal(t, core.FromUnits(100), got.RemainingAmount)

	expenses, err := stream.First(ctx, func(ctx context.Context) *stream.Subscription[[]core.Transaction] {
		return e.repos.Expenses.GetAll(ctx, user, e.period)
	})
	require.NoError(t, err)
	assert.Empty(t, expenses)
	assert.Equal(t, before, e.sync.entities(), "failed writes request no sync")
}

func TestConcurrentExpensesKeepBudgetConsistent(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	b := e.budget(t, food, 1000)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := e.svc.AddExpense(ctx, user, e.tx(food, 10), e.period)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()
	assert.Equal(t, core.FromUnits(800), e.stored(t, b.ID).RemainingAmount)
	assert.Zero(t, e.svc.locks.size())
}

func TestWatchBudgets_ClampsNegativeRemaining(t *testing.T) {
	e := newEnv(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	e.budget(t, food, 100)
	e.budget(t, rent, 200)
	_, err := e.svc.AddExpense(ctx, user, e.tx(food, 150), e.period)
	require.NoError(t, err)

	summaries := make(chan core.BudgetsSummary, 1)
	go e.svc.WatchBudgets(ctx, user, e.period, func(s core.BudgetsSummary) error {
		select {
		case summaries <- s:
		default:
		}
		return nil
	})
	s := <-summaries
	assert.Equal(t, core.FromUnits(300), s.TotalBudget)
	assert.Equal(t, core.FromUnits(200), s.RemainingBudget)
}

func TestUseCases_ClassifyDomainErrors(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	users := NewUserService(e.repos.Users, nil)
	uc := NewUseCases(e.svc, users, usecase.NewDispatchers(2, 4))

	res, err := usecase.Await(ctx, uc.AddIncome.Execute(ctx, TransactionRequest{UserID: user, Transaction: e.tx(food, 1), Period: e.period}))
	require.NoError(t, err)
	require.NotNil(t, res.Err)
	assert.Equal(t, usecase.KindCategoryBudgetNotExists, res.Err.Kind)

	res2, err := usecase.Await(ctx, uc.GetBudgetDetails.Execute(ctx, BudgetDetailsRequest{UserID: user, BudgetID: "missing", Period: e.period}))
	require.NoError(t, err)
	require.NotNil(t, res2.Err)
	assert.Equal(t, usecase.KindBudgetNotFound, res2.Err.Kind)

	res3, err := usecase.Await(ctx, uc.CurrentUser.Execute(ctx, struct{}{}))
	require.NoError(t, err)
	require.NotNil(t, res3.Err)
	assert.Equal(t, usecase.KindNotAuthenticated, res3.Err.Kind)
}

func TestUseCases_BudgetDetailsSortedNewestFirst(t *testing.T) {
	e := newEnv(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	uc := NewUseCases(e.svc, NewUserService(e.repos.Users, nil), usecase.NewDispatchers(2, 4))

	b := e.budget(t, food, 100)
	early := e.tx(food, 5)
	early.TransactionDate = e.day.AddDate(0, 0, -3)
	_, err := e.svc.AddExpense(ctx, user, early, e.period)
	require.NoError(t, err)
	_, err = e.svc.AddIncome(ctx, user, e.tx(food, 7), e.period)
	require.NoError(t, err)
	_, err = e.svc.AddExpense(ctx, user, e.tx(rent, 9), e.period)
	require.NoError(t, err)

	res, err := usecase.Await(ctx, uc.GetBudgetDetails.Execute(ctx, BudgetDetailsRequest{UserID: user, BudgetID: b.ID, Period: e.period}))
	require.NoError(t, err)
	require.True(t, res.OK(), "%v", res.Err)
	require.Len(t, res.Data.Transactions, 2)
	assert.Equal(t, core.KindIncome, res.Data.Transactions[0].Kind)
	assert.Equal(t, core.KindExpense, res.Data.Transactions[1].Kind)
}

func TestUserService_CurrentUser(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	rec := &syncRecorder{}
	users := NewUserService(e.repos.Users, rec)

	_, err := users.CurrentUser(ctx)
	assert.ErrorIs(t, err, core.ErrNotAuthenticated)

	_, err = users.SignIn(ctx, core.User{Email: "a@example.com"})
	require.NoError(t, err)
	_, err = users.CurrentUser(ctx)
	assert.ErrorIs(t, err, core.ErrEmailNotVerified)
	assert.Equal(t, []core.Entity{core.EntityUser}, rec.entities())

	u, err := users.SignIn(ctx, core.User{Email: "b@example.com", EmailVerified: true})
	require.NoError(t, err)
	cur, err := users.CurrentUser(ctx)
	require.NoError(t, err)
	assert.Equal(t, u.ID, cur.ID)

	d, err := users.UpdateUserData(ctx, core.UserData{UserID: u.ID, Currency: "EUR"})
	require.NoError(t, err)
	got, err := users.UserData(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, d, got)
}
