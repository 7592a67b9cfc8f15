package core

import "sort"

// SortOrder selects how SortTransactions orders its input.
type SortOrder int

const (
	SortNewest SortOrder = iota
	SortOldest
	SortAmountDesc
	SortAmountAsc
)

func (o SortOrder) String() string {
	switch o {
	case SortOldest:
		return "oldest"
	case SortAmountDesc:
		return "amount_desc"
	case SortAmountAsc:
		return "amount_asc"
	default:
		return "newest"
	}
}

// ParseSortOrder accepts the names produced by SortOrder.String.
func ParseSortOrder(s string) (SortOrder, bool) {
	for _, o := range []SortOrder{SortNewest, SortOldest, SortAmountDesc, SortAmountAsc} {
		if o.String() == s {
			return o, true
		}
	}
	return SortNewest, false
}

// SortTransactions returns a sorted copy of txs. Ties keep their input
// order.
func SortTransactions(txs []Transaction, by SortOrder) []Transaction {
	out := make([]Transaction, len(txs))
	copy(out, txs)
	var less func(a, b Transaction) bool
	switch by {
	case SortOldest:
		less = func(a, b Transaction) bool { return a.TransactionDate.Before(b.TransactionDate) }
	case SortAmountDesc:
		less = func(a, b Transaction) bool { return a.Amount.Cents > b.Amount.Cents }
	case SortAmountAsc:
		less = func(a, b Transaction) bool { return a.Amount.Cents < b.Amount.Cents }
	default:
		less = func(a, b Transaction) bool { return a.TransactionDate.After(b.TransactionDate) }
	}
	sort.SliceStable(out, func(i, j int) bool { return less(out[i], out[j]) })
	return out
}
