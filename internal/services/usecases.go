package services

import (
	"context"

	"fintrack/internal/core"
	"fintrack/internal/usecase"
)

// Requests accepted by the use cases.
type (
	BudgetRequest struct {
		UserID string
		Budget core.Budget
		Period core.Period
	}

	DeleteBudgetRequest struct {
		UserID   string
		BudgetID string
	}

	TransactionRequest struct {
		UserID      string
		Transaction core.Transaction
		Period      core.Period
	}

	PeriodRequest struct {
		UserID string
		Period core.Period
	}

	BudgetDetailsRequest struct {
		UserID   string
		BudgetID string
		Period   core.Period
	}

	UserDataRequest struct {
		UserID string
	}
)

// UseCases is the catalog of operations offered to callers. Mutations run
// on the IO dispatcher, aggregations on Default.
type UseCases struct {
	AddBudget    *usecase.UseCase[BudgetRequest, core.Budget]
	UpdateBudget *usecase.UseCase[BudgetRequest, core.Budget]
	DeleteBudget *usecase.UseCase[DeleteBudgetRequest, struct{}]

	AddExpense    *usecase.UseCase[TransactionRequest, core.Transaction]
	UpdateExpense *usecase.UseCase[TransactionRequest, core.Transaction]
	DeleteExpense *usecase.UseCase[TransactionRequest, struct{}]
	AddIncome     *usecase.UseCase[TransactionRequest, core.Transaction]
	UpdateIncome  *usecase.UseCase[TransactionRequest, core.Transaction]
	DeleteIncome  *usecase.UseCase[TransactionRequest, struct{}]

	GetBudgets       *usecase.UseCase[PeriodRequest, core.BudgetsSummary]
	GetBudgetDetails *usecase.UseCase[BudgetDetailsRequest, BudgetDetails]
	GetReport        *usecase.UseCase[PeriodRequest, core.Report]
	Home             *usecase.UseCase[PeriodRequest, core.HomeSummary]
	Transactions     *usecase.UseCase[TransactionsQuery, []core.Transaction]

	CurrentUser    *usecase.UseCase[struct{}, core.User]
	UserData       *usecase.UseCase[UserDataRequest, core.UserData]
	UpdateUserData *usecase.UseCase[core.UserData, core.UserData]
}

func NewUseCases(b *BudgetService, u *UserService, d usecase.Dispatchers) *UseCases {
	mutate := func(fn func(context.Context, string, core.Transaction, core.Period) (core.Transaction, error)) func(context.Context, TransactionRequest) (core.Transaction, error) {
		return func(ctx context.Context, r TransactionRequest) (core.Transaction, error) {
			return fn(ctx, r.UserID, r.Transaction, r.Period)
		}
	}
	remove := func(fn func(context.Context, string, core.Transaction, core.Period) error) func(context.Context, TransactionRequest) (struct{}, error) {
		return func(ctx context.Context, r TransactionRequest) (struct{}, error) {
			return struct{}{}, fn(ctx, r.UserID, r.Transaction, r.Period)
		}
	}

	return &UseCases{
		AddBudget: usecase.Single("add_budget", d.IO, func(ctx context.Context, r BudgetRequest) (core.Budget, error) {
			return b.AddBudget(ctx, r.UserID, r.Budget, r.Period)
		}),
		UpdateBudget: usecase.Single("update_budget", d.IO, func(ctx context.Context, r BudgetRequest) (core.Budget, error) {
			return b.UpdateBudget(ctx, r.UserID, r.Budget, r.Period)
		}),
		DeleteBudget: usecase.Single("delete_budget", d.IO, func(ctx context.Context, r DeleteBudgetRequest) (struct{}, error) {
			return struct{}{}, b.DeleteBudget(ctx, r.UserID, r.BudgetID)
		}),

		AddExpense:    usecase.Single("add_expense", d.IO, mutate(b.AddExpense)),
		UpdateExpense: usecase.Single("update_expense", d.IO, mutate(b.UpdateExpense)),
		DeleteExpense: usecase.Single("delete_expense", d.IO, remove(b.DeleteExpense)),
		AddIncome:     usecase.Single("add_income", d.IO, mutate(b.AddIncome)),
		UpdateIncome:  usecase.Single("update_income", d.IO, mutate(b.UpdateIncome)),
		DeleteIncome:  usecase.Single("delete_income", d.IO, remove(b.DeleteIncome)),

		GetBudgets: usecase.Flow("get_budgets", d.Default, func(ctx context.Context, r PeriodRequest, emit func(core.BudgetsSummary) error) error {
			return b.WatchBudgets(ctx, r.UserID, r.Period, emit)
		}),
		GetBudgetDetails: usecase.Flow("get_budget_details", d.Default, func(ctx context.Context, r BudgetDetailsRequest, emit func(BudgetDetails) error) error {
			return b.WatchBudgetDetails(ctx, r.UserID, r.BudgetID, r.Period, emit)
		}),
		GetReport: usecase.Flow("get_report", d.Default, func(ctx context.Context, r PeriodRequest, emit func(core.Report) error) error {
			return b.WatchReport(ctx, r.UserID, r.Period, emit)
		}),
		Home: usecase.Flow("home", d.Default, func(ctx context.Context, r PeriodRequest, emit func(core.HomeSummary) error) error {
			return b.WatchHome(ctx, r.UserID, r.Period, emit)
		}),
		Transactions: usecase.Flow("transactions", d.Default, b.WatchTransactions),

		CurrentUser: usecase.Single("current_user", d.IO, func(ctx context.Context, _ struct{}) (core.User, error) {
			return u.CurrentUser(ctx)
		}),
		UserData: usecase.Single("user_data", d.IO, func(ctx context.Context, r UserDataRequest) (core.UserData, error) {
			return u.UserData(ctx, r.UserID)
		}),
		UpdateUserData: usecase.Single("update_user_data", d.IO, u.UpdateUserData),
	}
}
