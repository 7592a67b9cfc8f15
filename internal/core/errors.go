package core

import "errors"

// Domain errors surfaced to callers through the use-case Result channel.
var (
	ErrBudgetNotFound          = errors.New("budget not found")
	ErrExpenseNotFound         = errors.New("expense not found")
	ErrIncomeNotFound          = errors.New("income not found")
	ErrCategoryBudgetNotExists = errors.New("no budget exists for category")
	ErrNotAuthenticated        = errors.New("not authenticated")
	ErrEmailNotVerified        = errors.New("email not verified")
)

// ErrTransactionNotFound returns the not-found error for the given kind.
func ErrTransactionNotFound(k TransactionKind) error {
	if k == KindIncome {
		return ErrIncomeNotFound
	}
	return ErrExpenseNotFound
}
