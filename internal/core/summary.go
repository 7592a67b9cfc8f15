package core

// CategoryPercentage is a category share of a transaction total.
type CategoryPercentage struct {
	Category   Category
	Amount     Money
	Percentage float64 // 0..1
}

// BudgetsSummary aggregates every budget of a period.
type BudgetsSummary struct {
	Budgets         []Budget
	TotalBudget     Money
	RemainingBudget Money
}

// Report is the monthly breakdown of expenses and incomes.
type Report struct {
	Period             Period
	ExpensesByDay      map[int]int64
	IncomesByDay       map[int]int64
	ExpensesByCategory []CategoryPercentage
	IncomesByCategory  []CategoryPercentage
	TotalExpenses      Money
	TotalIncomes       Money
}

// HomeSummary is the overview shown on the landing screen.
type HomeSummary struct {
	TotalBudget     Money
	RemainingBudget Money
	TotalExpenses   Money
	TotalIncomes    Money
	ExpensesByDay   map[int]int64
	Recent          []Transaction
}

// SummarizeBudgets totals allocations and remaining amounts. Over-budget
// categories contribute zero to the remaining total.
func SummarizeBudgets(budgets []Budget) BudgetsSummary {
	s := BudgetsSummary{Budgets: budgets}
	for _, b := range budgets {
		s.TotalBudget = s.TotalBudget.Add(b.Amount)
		s.RemainingBudget = s.RemainingBudget.Add(b.RemainingAmount.ClampZero())
	}
	return s
}

// Total sums transaction amounts.
func Total(txs []Transaction) Money {
	var m Money
	for _, t := range txs {
		m = m.Add(t.Amount)
	}
	return m
}

// GroupTransactionByDay maps every day of the period's month to the
// truncated sum of transaction units on that day. Days without
// transactions map to 0.
func GroupTransactionByDay(txs []Transaction, period Period) map[int]int64 {
	days := period.DaysInMonth()
	out := make(map[int]int64, days)
	for d := 1; d <= days; d++ {
		out[d] = 0
	}
	sums := make(map[int]Money)
	loc := period.Start.Location()
	for _, t := range txs {
		d := t.TransactionDate.In(loc).Day()
		sums[d] = sums[d].Add(t.Amount)
	}
	for d, m := range sums {
		if _, ok := out[d]; ok {
			out[d] = m.Units()
		}
	}
	return out
}

// GroupTransactionByCategory returns each category's share of the grand
// total in first-seen order. A zero grand total yields 0 for every share.
func GroupTransactionByCategory(txs []Transaction) []CategoryPercentage {
	var order []Category
	sums := make(map[string]Money)
	var grand Money
	for _, t := range txs {
		if _, seen := sums[t.Category.ID]; !seen {
			order = append(order, t.Category)
		}
		sums[t.Category.ID] = sums[t.Category.ID].Add(t.Amount)
		grand = grand.Add(t.Amount)
	}
	out := make([]CategoryPercentage, 0, len(order))
	for _, c := range order {
		amt := sums[c.ID]
		pct := 0.0
		if grand.Cents != 0 {
			pct = float64(amt.Cents) / float64(grand.Cents)
		}
		out = append(out, CategoryPercentage{Category: c, Amount: amt, Percentage: pct})
	}
	return out
}
