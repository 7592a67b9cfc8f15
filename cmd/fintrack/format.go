package main

import (
	"fmt"
	"os"
	"sort"
	"text/tabwriter"

	"fintrack/internal/core"
	"fintrack/internal/services"
)

func newTable() *tabwriter.Writer {
	return tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
}

func printBudget(b core.Budget) {
	printBudgets(core.SummarizeBudgets([]core.Budget{b}))
}

func printBudgets(s core.BudgetsSummary) {
	w := newTable()
	fmt.Fprintln(w, "ID\tCATEGORY\tAMOUNT\tREMAINING\tRECURRENT\tSTATUS")
	for _, b := range s.Budgets {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%t\t%s\n",
			b.ID, b.Category.Name, b.Amount, b.RemainingAmount, b.Recurrent, budgetStatus(b))
	}
	fmt.Fprintf(w, "\tTOTAL\t%s\t%s\t\t\n", s.TotalBudget, s.RemainingBudget)
	_ = w.Flush()
}

func budgetStatus(b core.Budget) string {
	switch {
	case b.Exceeded():
		return "exceeded"
	case b.ShouldAlert():
		return "alert"
	default:
		return "ok"
	}
}

func printBudgetDetails(d services.BudgetDetails) {
	printBudget(d.Budget)
	fmt.Println()
	printTransactions(d.Transactions)
}

func printTransactions(txs []core.Transaction) {
	w := newTable()
	fmt.Fprintln(w, "ID\tDATE\tKIND\tNAME\tCATEGORY\tAMOUNT")
	for _, t := range txs {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
			t.ID, t.TransactionDate.Format("2006-01-02"), t.Kind, t.Name, t.Category.Name, t.Amount)
	}
	_ = w.Flush()
}

func printByDay(label string, days map[int]int64) {
	keys := make([]int, 0, len(days))
	for d := range days {
		keys = append(keys, d)
	}
	sort.Ints(keys)
	fmt.Printf("%s:", label)
	for _, d := range keys {
		if days[d] != 0 {
			fmt.Printf(" %d=%d", d, days[d])
		}
	}
	fmt.Println()
}

func printShares(label string, shares []core.CategoryPercentage) {
	fmt.Println(label)
	w := newTable()
	for _, s := range shares {
		fmt.Fprintf(w, "  %s\t%s\t%.1f%%\n", s.Category.Name, s.Amount, s.Percentage*100)
	}
	_ = w.Flush()
}

func printReport(r core.Report) {
	fmt.Printf("Report %s\n", r.Period.Start.Format("January 2006"))
	fmt.Printf("Expenses: %s  Incomes: %s\n", r.TotalExpenses, r.TotalIncomes)
	printByDay("Expenses by day", r.ExpensesByDay)
	printByDay("Incomes by day", r.IncomesByDay)
	printShares("Expenses by category", r.ExpensesByCategory)
	printShares("Incomes by category", r.IncomesByCategory)
}

func printHome(h core.HomeSummary) {
	fmt.Printf("Budget:    %s (remaining %s)\n", h.TotalBudget, h.RemainingBudget)
	fmt.Printf("Expenses:  %s\n", h.TotalExpenses)
	fmt.Printf("Incomes:   %s\n", h.TotalIncomes)
	printByDay("Spending by day", h.ExpensesByDay)
	fmt.Println()
	printTransactions(h.Recent)
}
