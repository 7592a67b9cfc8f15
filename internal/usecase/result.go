// Package usecase turns domain operations into cancellable streams of typed
// outcomes so callers never handle raw failures.
package usecase

import (
	"context"
	"errors"
	"fmt"

	"fintrack/internal/core"
)

// Kind is the closed set of failure classes a use case can report.
type Kind int

const (
	KindUnknown Kind = iota
	KindBudgetNotFound
	KindExpenseNotFound
	KindIncomeNotFound
	KindCategoryBudgetNotExists
	KindNotAuthenticated
	KindEmailNotVerified
)

func (k Kind) String() string {
	switch k {
	case KindBudgetNotFound:
		return "budget_not_found"
	case KindExpenseNotFound:
		return "expense_not_found"
	case KindIncomeNotFound:
		return "income_not_found"
	case KindCategoryBudgetNotExists:
		return "category_budget_not_exists"
	case KindNotAuthenticated:
		return "not_authenticated"
	case KindEmailNotVerified:
		return "email_not_verified"
	default:
		return "unknown"
	}
}

// Error is a classified use-case failure.
type Error struct {
	Kind Kind
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return e.Kind.String()
	}
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

var kinds = []struct {
	target error
	kind   Kind
}{
	{core.ErrBudgetNotFound, KindBudgetNotFound},
	{core.ErrExpenseNotFound, KindExpenseNotFound},
	{core.ErrIncomeNotFound, KindIncomeNotFound},
	{core.ErrCategoryBudgetNotExists, KindCategoryBudgetNotExists},
	{core.ErrNotAuthenticated, KindNotAuthenticated},
	{core.ErrEmailNotVerified, KindEmailNotVerified},
}

// Classify maps err onto the closed taxonomy. Unrecognised errors become
// KindUnknown wrapping the original error.
func Classify(err error) *Error {
	var ue *Error
	if errors.As(err, &ue) {
		return ue
	}
	for _, k := range kinds {
		if errors.Is(err, k.target) {
			return &Error{Kind: k.kind, Err: err}
		}
	}
	return &Error{Kind: KindUnknown, Err: err}
}

// Result is either Data (Err == nil) or a classified Err.
type Result[T any] struct {
	Data T
	Err  *Error
}

func (r Result[T]) OK() bool { return r.Err == nil }

func success[T any](v T) Result[T] { return Result[T]{Data: v} }

func failure[T any](err error) Result[T] { return Result[T]{Err: Classify(err)} }

// Await returns the first result from ch. It fails with ctx's error when ctx
// ends first, or with ErrNoResult when ch closes without a value.
func Await[T any](ctx context.Context, ch <-chan Result[T]) (Result[T], error) {
	select {
	case r, ok := <-ch:
		if !ok {
			if err := ctx.Err(); err != nil {
				return Result[T]{}, err
			}
			return Result[T]{}, ErrNoResult
		}
		return r, nil
	case <-ctx.Done():
		return Result[T]{}, ctx.Err()
	}
}

// ErrNoResult is returned by Await when a use case produced nothing.
var ErrNoResult = errors.New("use case produced no result")
