package usecase

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fintrack/internal/core"
)

func collect[T any](t *testing.T, ch <-chan Result[T]) []Result[T] {
	t.Helper()
	var out []Result[T]
	timeout := time.After(2 * time.Second)
	for {
		select {
		case r, ok := <-ch:
			if !ok {
				return out
			}
			out = append(out, r)
		case <-timeout:
			t.Fatal("timed out collecting results")
		}
	}
}

func TestSingleEmitsExactlyOneSuccess(t *testing.T) {
	d := NewDispatcher("test", 1)
	uc := Single("double", d, func(_ context.Context, n int) (int, error) { return n * 2, nil })

	results := collect(t, uc.Execute(context.Background(), 21))
	require.Len(t, results, 1)
	assert.True(t, results[0].OK())
	assert.Equal(t, 42, results[0].Data)
}

func TestSingleClassifiesDomainErrors(t *testing.T) {
	d := NewDispatcher("test", 1)
	tests := []struct {
		err  error
		kind Kind
	}{
		{core.ErrBudgetNotFound, KindBudgetNotFound},
		{fmt.Errorf("load: %w", core.ErrExpenseNotFound), KindExpenseNotFound},
		{core.ErrIncomeNotFound, KindIncomeNotFound},
		{core.ErrCategoryBudgetNotExists, KindCategoryBudgetNotExists},
		{core.ErrNotAuthenticated, KindNotAuthenticated},
		{core.ErrEmailNotVerified, KindEmailNotVerified},
		{errors.New("disk on fire"), KindUnknown},
	}
	for _, tt := range tests {
		t.Run(tt.kind.String(), func(t *testing.T) {
			uc := Single("fail", d, func(context.Context, struct{}) (int, error) { return 0, tt.err })
			results := collect(t, uc.Execute(context.Background(), struct{}{}))
			require.Len(t, results, 1)
			require.False(t, results[0].OK())
			assert.Equal(t, tt.kind, results[0].Err.Kind)
			assert.ErrorIs(t, results[0].Err, tt.err)
		})
	}
}

func TestPanicBecomesUnknown(t *testing.T) {
	uc := Single("panics", NewDispatcher("test", 1), func(context.Context, int) (int, error) {
		panic("nope")
	})
	results := collect(t, uc.Execute(context.Background(), 0))
	require.Len(t, results, 1)
	assert.Equal(t, KindUnknown, results[0].Err.Kind)
}

func TestCancellationIsNotReported(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	started := make(chan struct{})
	uc := Single("blocks", NewDispatcher("test", 1), func(ctx context.Context, _ int) (int, error) {
		close(started)
		<-ctx.Done()
		return 0, ctx.Err()
	})
	ch := uc.Execute(ctx, 0)
	<-started
	cancel()
	assert.Empty(t, collect(t, ch))
}

func TestWrappedCanceledIsNotReported(t *testing.T) {
	uc := Single("wrapped", NewDispatcher("test", 1), func(context.Context, int) (int, error) {
		return 0, fmt.Errorf("query: %w", context.Canceled)
	})
	assert.Empty(t, collect(t, uc.Execute(context.Background(), 0)))
}

func TestFlowEmitsPerUpdateThenError(t *testing.T) {
	uc := Flow("counts", NewDispatcher("test", 1), func(ctx context.Context, n int, emit func(int) error) error {
		for i := 1; i <= n; i++ {
			if err := emit(i); err != nil {
				return err
			}
		}
		return core.ErrBudgetNotFound
	})
	results := collect(t, uc.Execute(context.Background(), 3))
	require.Len(t, results, 4)
	for i := 0; i < 3; i++ {
		assert.Equal(t, i+1, results[i].Data)
	}
	assert.Equal(t, KindBudgetNotFound, results[3].Err.Kind)
}

func TestFlowReleasesSlotAfterFirstEmission(t *testing.T) {
	d := NewDispatcher("test", 1)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	live := Flow("live", d, func(ctx context.Context, _ int, emit func(int) error) error {
		if err := emit(1); err != nil {
			return err
		}
		<-ctx.Done()
		return ctx.Err()
	})
	liveCh := live.Execute(ctx, 0)
	r, err := Await(ctx, liveCh)
	require.NoError(t, err)
	require.Equal(t, 1, r.Data)

	single := Single("after", d, func(context.Context, int) (int, error) { return 7, nil })
	awaitCtx, awaitCancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer awaitCancel()
	r, err = Await(awaitCtx, single.Execute(awaitCtx, 0))
	require.NoError(t, err)
	assert.Equal(t, 7, r.Data)
}

func TestAwaitNoResult(t *testing.T) {
	ch := make(chan Result[int])
	close(ch)
	_, err := Await(context.Background(), ch)
	assert.ErrorIs(t, err, ErrNoResult)
}
