package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"fintrack/internal/core"
	"fintrack/internal/services"
	"fintrack/internal/stream"
)

func budgetCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "budget",
		Short: "Manage monthly category budgets",
	}
	cmd.AddCommand(budgetAddCmd())
	cmd.AddCommand(budgetListCmd())
	cmd.AddCommand(budgetShowCmd())
	cmd.AddCommand(budgetUpdateCmd())
	cmd.AddCommand(budgetDeleteCmd())
	return cmd
}

type budgetFlags struct {
	category     string
	categoryName string
	amount       string
	alert        float64
	recurrent    bool
}

func (f *budgetFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.category, "category", "", "category id")
	cmd.Flags().StringVar(&f.categoryName, "category-name", "", "category display name (default: the id)")
	cmd.Flags().StringVar(&f.amount, "amount", "", "allocation, e.g. 250.00")
	cmd.Flags().Float64Var(&f.alert, "alert", 0, "alert when this percentage of the allocation is spent (0 disables)")
	cmd.Flags().BoolVar(&f.recurrent, "recurrent", false, "copy the budget into every following month")
}

func (f *budgetFlags) toCategory() core.Category {
	name := f.categoryName
	if name == "" {
		name = f.category
	}
	return core.Category{ID: f.category, Key: strings.ToLower(f.category), Name: name}
}

func budgetAddCmd() *cobra.Command {
	var f budgetFlags
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Create a budget, or add to the category's existing one",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			user, err := currentUser(ctx)
			if err != nil {
				return err
			}
			p, err := period()
			if err != nil {
				return err
			}
			amount, err := core.ParseMoney(f.amount)
			if err != nil {
				return fmt.Errorf("invalid --amount: %w", err)
			}
			b, err := runOnce(ctx, app.UseCases.AddBudget, services.BudgetRequest{
				UserID: user.ID,
				Period: p,
				Budget: core.Budget{
					Category:              f.toCategory(),
					Amount:                amount,
					BudgetAlert:           f.alert > 0,
					BudgetAlertPercentage: f.alert,
					BudgetPeriod:          p.Start,
					Recurrent:             f.recurrent,
				},
			})
			if err != nil {
				return err
			}
			printBudget(b)
			return nil
		},
	}
	f.register(cmd)
	_ = cmd.MarkFlagRequired("category")
	_ = cmd.MarkFlagRequired("amount")
	return cmd
}

func budgetListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List the period's budgets",
		RunE: func(cmd *cobra.Command, _ []string) error {
			user, err := currentUser(cmd.Context())
			if err != nil {
				return err
			}
			p, err := period()
			if err != nil {
				return err
			}
			return show(cmd, app.UseCases.GetBudgets, services.PeriodRequest{UserID: user.ID, Period: p}, printBudgets)
		},
	}
	cmd.Flags().Bool("watch", false, "keep printing as budgets change")
	return cmd
}

func budgetShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show BUDGET_ID",
		Short: "Show a budget with its category's transactions",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			user, err := currentUser(cmd.Context())
			if err != nil {
				return err
			}
			p, err := period()
			if err != nil {
				return err
			}
			return show(cmd, app.UseCases.GetBudgetDetails, services.BudgetDetailsRequest{
				UserID:   user.ID,
				BudgetID: args[0],
				Period:   p,
			}, printBudgetDetails)
		},
	}
	cmd.Flags().Bool("watch", false, "keep printing as the budget or its transactions change")
	return cmd
}

func budgetUpdateCmd() *cobra.Command {
	var f budgetFlags
	cmd := &cobra.Command{
		Use:   "update BUDGET_ID",
		Short: "Change a budget's allocation or settings",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			user, err := currentUser(ctx)
			if err != nil {
				return err
			}
			p, err := period()
			if err != nil {
				return err
			}
			b, err := loadBudget(ctx, args[0])
			if err != nil {
				return err
			}
			flags := cmd.Flags()
			if flags.Changed("amount") {
				if b.Amount, err = core.ParseMoney(f.amount); err != nil {
					return fmt.Errorf("invalid --amount: %w", err)
				}
			}
			if flags.Changed("alert") {
				b.BudgetAlert = f.alert > 0
				b.BudgetAlertPercentage = f.alert
			}
			if flags.Changed("recurrent") {
				b.Recurrent = f.recurrent
			}
			if flags.Changed("category-name") {
				b.Category.Name = f.categoryName
			}
			saved, err := runOnce(ctx, app.UseCases.UpdateBudget, services.BudgetRequest{UserID: user.ID, Budget: b, Period: p})
			if err != nil {
				return err
			}
			printBudget(saved)
			return nil
		},
	}
	f.register(cmd)
	return cmd
}

func budgetDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete BUDGET_ID",
		Short: "Delete a budget",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			user, err := currentUser(ctx)
			if err != nil {
				return err
			}
			if _, err := runOnce(ctx, app.UseCases.DeleteBudget, services.DeleteBudgetRequest{UserID: user.ID, BudgetID: args[0]}); err != nil {
				return err
			}
			fmt.Println("Deleted budget", args[0])
			return nil
		},
	}
}

func loadBudget(ctx context.Context, id string) (core.Budget, error) {
	b, err := stream.First(ctx, func(ctx context.Context) *stream.Subscription[*core.Budget] {
		return app.Repos.Budgets.Get(ctx, id)
	})
	if err != nil {
		return core.Budget{}, err
	}
	if b == nil {
		return core.Budget{}, fmt.Errorf("budget %s: %w", id, core.ErrBudgetNotFound)
	}
	return *b, nil
}
