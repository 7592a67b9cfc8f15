package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"fintrack/internal/cli"
	"fintrack/internal/core"
	"fintrack/internal/usecase"
)

var (
	app       *cli.App
	periodArg string

	rootCmd = &cobra.Command{
		Use:   "fintrack",
		Short: "Offline-first budgets, expenses and incomes",
		Long: `fintrack keeps budgets, expenses and incomes in a local SQLite store and
reconciles them with a remote spreadsheet in the background.

Every expense or income mutation adjusts the category budget of its period.`,
		SilenceUsage:      true,
		PersistentPreRunE: openApp,
	}
)

func init() {
	rootCmd.PersistentFlags().StringVar(&periodArg, "period", "", "month to operate on as YYYY-MM (default: current month)")

	rootCmd.AddCommand(budgetCmd())
	rootCmd.AddCommand(expenseCmd())
	rootCmd.AddCommand(incomeCmd())
	rootCmd.AddCommand(transactionsCmd())
	rootCmd.AddCommand(reportCmd())
	rootCmd.AddCommand(homeCmd())
	rootCmd.AddCommand(signInCmd())
	rootCmd.AddCommand(signOutCmd())
	rootCmd.AddCommand(whoamiCmd())
	rootCmd.AddCommand(syncCmd())
	rootCmd.AddCommand(queueCmd())
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	closeApp()
	cancel()

	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func openApp(cmd *cobra.Command, _ []string) error {
	env, err := cli.Open(cmd.Context())
	if err != nil {
		return err
	}
	app = cli.NewApp(env)
	return nil
}

// closeApp runs after every command, including failed ones.
func closeApp() {
	if app == nil {
		return
	}
	if err := app.Close(); err != nil {
		slog.Error("Failed to close resources", "error", err)
	}
}

// period resolves --period, defaulting to the current month.
func period() (core.Period, error) {
	if periodArg == "" {
		return core.MonthPeriod(time.Now()), nil
	}
	t, err := time.ParseInLocation("2006-01", periodArg, time.Local)
	if err != nil {
		return core.Period{}, fmt.Errorf("invalid --period %q: want YYYY-MM", periodArg)
	}
	return core.MonthPeriod(t), nil
}

// currentUser fails unless a verified user is signed in.
func currentUser(ctx context.Context) (core.User, error) {
	return runOnce(ctx, app.UseCases.CurrentUser, struct{}{})
}

// runOnce executes u and returns its first result.
func runOnce[Req, Resp any](ctx context.Context, u *usecase.UseCase[Req, Resp], req Req) (Resp, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var zero Resp
	r, err := usecase.Await(ctx, u.Execute(ctx, req))
	if err != nil {
		return zero, err
	}
	if !r.OK() {
		return zero, r.Err
	}
	return r.Data, nil
}

// follow prints every result of u until ctx ends or u fails.
func follow[Req, Resp any](ctx context.Context, u *usecase.UseCase[Req, Resp], req Req, render func(Resp)) error {
	for r := range u.Execute(ctx, req) {
		if !r.OK() {
			return r.Err
		}
		render(r.Data)
	}
	return nil
}

// show runs a live use case once, or follows it with --watch.
func show[Req, Resp any](cmd *cobra.Command, u *usecase.UseCase[Req, Resp], req Req, render func(Resp)) error {
	watch, _ := cmd.Flags().GetBool("watch")
	if watch {
		return follow(cmd.Context(), u, req, render)
	}
	resp, err := runOnce(cmd.Context(), u, req)
	if err != nil {
		return err
	}
	render(resp)
	return nil
}
