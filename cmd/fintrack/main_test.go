package main

import (
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fintrack/internal/core"
)

func TestPeriodFlag(t *testing.T) {
	t.Cleanup(func() { periodArg = "" })

	periodArg = "2026-02"
	p, err := period()
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, time.February, 1, 0, 0, 0, 0, time.Local), p.Start)
	assert.Equal(t, 28, p.DaysInMonth())

	periodArg = "February"
	_, err = period()
	assert.Error(t, err)

	periodArg = ""
	p, err = period()
	require.NoError(t, err)
	assert.True(t, p.Contains(time.Now()))
}

func TestTxFlagsApplyOnlyChangedFlags(t *testing.T) {
	var f txFlags
	cmd := &cobra.Command{Use: "update"}
	f.register(cmd)
	require.NoError(t, cmd.ParseFlags([]string{"--amount", "12,50", "--date", "2026-03-04"}))

	tx := core.Transaction{Name: "coffee", Category: core.Category{ID: "food"}}
	require.NoError(t, f.apply(cmd, &tx))

	assert.Equal(t, "coffee", tx.Name)
	assert.Equal(t, "food", tx.Category.ID)
	assert.EqualValues(t, 1250, tx.Amount.Cents)
	assert.Equal(t, 4, tx.TransactionDate.Day())
}

func TestTxFlagsRejectBadInput(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"negative amount", []string{"--amount=-3"}},
		{"bad date", []string{"--date", "04/03/2026"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var f txFlags
			cmd := &cobra.Command{Use: "add"}
			f.register(cmd)
			require.NoError(t, cmd.ParseFlags(tt.args))
			assert.Error(t, f.apply(cmd, &core.Transaction{}))
		})
	}
}

func TestTransactionPeriodFollowsDate(t *testing.T) {
	t.Cleanup(func() { periodArg = "" })

	tx := core.Transaction{TransactionDate: time.Date(2026, time.May, 20, 10, 0, 0, 0, time.Local)}
	p, err := transactionPeriod(tx)
	require.NoError(t, err)
	assert.Equal(t, time.May, p.Start.Month())

	periodArg = "2026-05"
	p, err = transactionPeriod(tx)
	require.NoError(t, err)
	assert.Equal(t, time.May, p.Start.Month())

	periodArg = "2026-06"
	_, err = transactionPeriod(tx)
	assert.ErrorContains(t, err, "does not contain")
}

func TestSpanPeriod(t *testing.T) {
	t.Cleanup(func() { periodArg = "" })
	periodArg = "2026-02"
	p, err := period()
	require.NoError(t, err)

	tests := []struct {
		span      string
		wantStart time.Time
		wantEnd   time.Time
	}{
		{"month", time.Date(2026, time.February, 1, 0, 0, 0, 0, time.Local), time.Date(2026, time.March, 1, 0, 0, 0, 0, time.Local)},
		{"day", time.Date(2026, time.February, 1, 0, 0, 0, 0, time.Local), time.Date(2026, time.February, 2, 0, 0, 0, 0, time.Local)},
		// 2026-02-01 is a Sunday.
		{"week", time.Date(2026, time.January, 26, 0, 0, 0, 0, time.Local), time.Date(2026, time.February, 2, 0, 0, 0, 0, time.Local)},
		{"YEAR", time.Date(2026, time.January, 1, 0, 0, 0, 0, time.Local), time.Date(2027, time.January, 1, 0, 0, 0, 0, time.Local)},
	}
	for _, tt := range tests {
		t.Run(tt.span, func(t *testing.T) {
			got, err := spanPeriod(tt.span, p)
			require.NoError(t, err)
			assert.True(t, tt.wantStart.Equal(got.Start), "start = %v", got.Start)
			assert.True(t, tt.wantEnd.Add(-time.Nanosecond).Equal(got.End), "end = %v", got.End)
		})
	}

	_, err = spanPeriod("fortnight", p)
	assert.Error(t, err)
}
