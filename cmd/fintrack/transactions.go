package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"fintrack/internal/core"
	"fintrack/internal/services"
	"fintrack/internal/stream"
	"fintrack/internal/usecase"
)

// txCommands are the use cases behind one transaction kind.
type txCommands struct {
	kind   core.TransactionKind
	add    *usecase.UseCase[services.TransactionRequest, core.Transaction]
	update *usecase.UseCase[services.TransactionRequest, core.Transaction]
	remove *usecase.UseCase[services.TransactionRequest, struct{}]
}

func expenseCmd() *cobra.Command {
	return transactionKindCmd("expense", "Record and edit expenses", func() txCommands {
		uc := app.UseCases
		return txCommands{core.KindExpense, uc.AddExpense, uc.UpdateExpense, uc.DeleteExpense}
	})
}

func incomeCmd() *cobra.Command {
	return transactionKindCmd("income", "Record and edit incomes", func() txCommands {
		uc := app.UseCases
		return txCommands{core.KindIncome, uc.AddIncome, uc.UpdateIncome, uc.DeleteIncome}
	})
}

// transactionKindCmd builds add/update/delete for one kind. cmds is
// resolved at run time, after the app is opened.
func transactionKindCmd(use, short string, cmds func() txCommands) *cobra.Command {
	cmd := &cobra.Command{Use: use, Short: short}
	cmd.AddCommand(txAddCmd(cmds))
	cmd.AddCommand(txUpdateCmd(cmds))
	cmd.AddCommand(txDeleteCmd(cmds))
	return cmd
}

type txFlags struct {
	name        string
	description string
	amount      string
	category    string
	date        string
}

func (f *txFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.name, "name", "", "short name")
	cmd.Flags().StringVar(&f.description, "description", "", "free-form description")
	cmd.Flags().StringVar(&f.amount, "amount", "", "amount, e.g. 12.50")
	cmd.Flags().StringVar(&f.category, "category", "", "category id")
	cmd.Flags().StringVar(&f.date, "date", "", "date as YYYY-MM-DD (default: today)")
}

// apply copies the flags the user set onto t.
func (f *txFlags) apply(cmd *cobra.Command, t *core.Transaction) error {
	flags := cmd.Flags()
	if flags.Changed("name") {
		t.Name = f.name
	}
	if flags.Changed("description") {
		t.Description = f.description
	}
	if flags.Changed("amount") {
		m, err := core.ParseMoney(f.amount)
		if err != nil {
			return fmt.Errorf("invalid --amount: %w", err)
		}
		t.Amount = m
	}
	if flags.Changed("category") {
		t.Category = core.Category{ID: f.category, Key: strings.ToLower(f.category), Name: f.category}
	}
	if flags.Changed("date") {
		d, err := time.ParseInLocation("2006-01-02", f.date, time.Local)
		if err != nil {
			return fmt.Errorf("invalid --date %q: want YYYY-MM-DD", f.date)
		}
		t.TransactionDate = d
	}
	return nil
}

// transactionPeriod is the month of the transaction date. A --period that
// does not contain the date is rejected.
func transactionPeriod(t core.Transaction) (core.Period, error) {
	p := core.MonthPeriod(t.TransactionDate)
	if periodArg == "" {
		return p, nil
	}
	given, err := period()
	if err != nil {
		return core.Period{}, err
	}
	if !given.Contains(t.TransactionDate) {
		return core.Period{}, fmt.Errorf("--period %s does not contain the transaction date %s",
			periodArg, t.TransactionDate.Format("2006-01-02"))
	}
	return p, nil
}

// spanPeriod resizes p to the day, week, month or year containing its
// start, or now when --period was not given.
func spanPeriod(span string, p core.Period) (core.Period, error) {
	anchor := p.Start
	if periodArg == "" {
		anchor = time.Now()
	}
	switch strings.ToLower(span) {
	case "", "month":
		return core.MonthPeriod(anchor), nil
	case "day":
		return core.DayPeriod(anchor), nil
	case "week":
		return core.WeekPeriod(anchor), nil
	case "year":
		return core.YearPeriod(anchor), nil
	}
	return core.Period{}, fmt.Errorf("invalid --span %q: want day, week, month or year", span)
}

func txAddCmd(cmds func() txCommands) *cobra.Command {
	var f txFlags
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Record a transaction and adjust its category budget",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			user, err := currentUser(ctx)
			if err != nil {
				return err
			}
			c := cmds()
			t := core.Transaction{Kind: c.kind, TransactionDate: time.Now()}
			if err := f.apply(cmd, &t); err != nil {
				return err
			}
			p, err := transactionPeriod(t)
			if err != nil {
				return err
			}
			saved, err := runOnce(ctx, c.add, services.TransactionRequest{UserID: user.ID, Transaction: t, Period: p})
			if err != nil {
				return err
			}
			printTransactions([]core.Transaction{saved})
			return nil
		},
	}
	f.register(cmd)
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("amount")
	_ = cmd.MarkFlagRequired("category")
	return cmd
}

func txUpdateCmd(cmds func() txCommands) *cobra.Command {
	var f txFlags
	cmd := &cobra.Command{
		Use:   "update ID",
		Short: "Edit a transaction and move its budget by the difference",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			user, err := currentUser(ctx)
			if err != nil {
				return err
			}
			c := cmds()
			t, err := loadTransaction(ctx, c.kind, args[0])
			if err != nil {
				return err
			}
			if err := f.apply(cmd, &t); err != nil {
				return err
			}
			p, err := transactionPeriod(t)
			if err != nil {
				return err
			}
			saved, err := runOnce(ctx, c.update, services.TransactionRequest{UserID: user.ID, Transaction: t, Period: p})
			if err != nil {
				return err
			}
			printTransactions([]core.Transaction{saved})
			return nil
		},
	}
	f.register(cmd)
	return cmd
}

func txDeleteCmd(cmds func() txCommands) *cobra.Command {
	return &cobra.Command{
		Use:   "delete ID",
		Short: "Delete a transaction and give its amount back to the budget",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			user, err := currentUser(ctx)
			if err != nil {
				return err
			}
			c := cmds()
			t, err := loadTransaction(ctx, c.kind, args[0])
			if err != nil {
				return err
			}
			p, err := transactionPeriod(t)
			if err != nil {
				return err
			}
			if _, err := runOnce(ctx, c.remove, services.TransactionRequest{UserID: user.ID, Transaction: t, Period: p}); err != nil {
				return err
			}
			fmt.Printf("Deleted %s %s\n", c.kind, t.ID)
			return nil
		},
	}
}

func loadTransaction(ctx context.Context, kind core.TransactionKind, id string) (core.Transaction, error) {
	t, err := stream.First(ctx, func(ctx context.Context) *stream.Subscription[*core.Transaction] {
		return app.Repos.Transactions(kind).Get(ctx, id)
	})
	if err != nil {
		return core.Transaction{}, err
	}
	if t == nil {
		return core.Transaction{}, fmt.Errorf("%s %s: %w", kind, id, core.ErrTransactionNotFound(kind))
	}
	return *t, nil
}

func transactionsCmd() *cobra.Command {
	var (
		categories []string
		kind       string
		sortArg    string
		span       string
	)
	cmd := &cobra.Command{
		Use:   "transactions",
		Short: "List the period's expenses and incomes",
		RunE: func(cmd *cobra.Command, _ []string) error {
			user, err := currentUser(cmd.Context())
			if err != nil {
				return err
			}
			p, err := period()
			if err != nil {
				return err
			}
			if p, err = spanPeriod(span, p); err != nil {
				return err
			}
			order, ok := core.ParseSortOrder(sortArg)
			if !ok {
				return fmt.Errorf("invalid --sort %q", sortArg)
			}
			q := services.TransactionsQuery{
				UserID:          user.ID,
				Period:          p,
				CategoryIDs:     categories,
				IncludeExpenses: kind == "" || kind == string(core.KindExpense),
				IncludeIncomes:  kind == "" || kind == string(core.KindIncome),
				Sort:            order,
			}
			return show(cmd, app.UseCases.Transactions, q, printTransactions)
		},
	}
	cmd.Flags().StringSliceVar(&categories, "category", nil, "only these category ids")
	cmd.Flags().StringVar(&kind, "kind", "", "expense or income (default: both)")
	cmd.Flags().StringVar(&span, "span", "month", "day, week, month or year around --period")
	cmd.Flags().StringVar(&sortArg, "sort", core.SortNewest.String(), "newest, oldest, amount_desc or amount_asc")
	cmd.Flags().Bool("watch", false, "keep printing as transactions change")
	return cmd
}
