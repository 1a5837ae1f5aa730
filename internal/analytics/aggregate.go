// Package analytics provides pure aggregation over transaction lists: totals,
// category breakdowns, date-range filters and day-streak computation. Nothing
// in this package performs I/O.
package analytics

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"tally/internal/core"
)

// CategoryTotal is an amount aggregated by category name.
type CategoryTotal struct {
	Category string
	Total    decimal.Decimal
}

// FilterByDateRange returns the transactions whose date falls within
// [start, end], both bounds inclusive, compared as calendar days.
// Transactions with an unparsable date never match.
func FilterByDateRange(txs []core.Transaction, start, end time.Time) []core.Transaction {
	var out []core.Transaction
	for _, tx := range txs {
		day, err := tx.Day()
		if err != nil {
			continue
		}
		if day.Before(start) || day.After(end) {
			continue
		}
		out = append(out, tx)
	}
	return out
}

// TotalAmount sums the amounts of all transactions.
func TotalAmount(txs []core.Transaction) decimal.Decimal {
	total := decimal.Zero
	for _, tx := range txs {
		total = total.Add(tx.Amount)
	}
	return total
}

// GroupByCategory sums amounts per category and returns the groups sorted by
// total, descending. Ties keep the order in which the categories were first
// seen in the input.
func GroupByCategory(txs []core.Transaction) []CategoryTotal {
	totals := map[string]decimal.Decimal{}
	var order []string
	for _, tx := range txs {
		if _, ok := totals[tx.Category]; !ok {
			order = append(order, tx.Category)
		}
		totals[tx.Category] = totals[tx.Category].Add(tx.Amount)
	}

	out := make([]CategoryTotal, 0, len(order))
	for _, name := range order {
		out = append(out, CategoryTotal{Category: name, Total: totals[name]})
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Total.GreaterThan(out[j].Total)
	})
	return out
}

// NetSavings returns total income minus total expenses. The result may be
// negative.
func NetSavings(txs []core.Transaction) decimal.Decimal {
	savings := decimal.Zero
	for _, tx := range txs {
		if tx.IsExpense {
			savings = savings.Sub(tx.Amount)
		} else {
			savings = savings.Add(tx.Amount)
		}
	}
	return savings
}

// DistinctCategories counts the distinct category names used by the
// transactions. When expenseOnly is true, income transactions are ignored.
func DistinctCategories(txs []core.Transaction, expenseOnly bool) int {
	seen := map[string]struct{}{}
	for _, tx := range txs {
		if expenseOnly && !tx.IsExpense {
			continue
		}
		seen[tx.Category] = struct{}{}
	}
	return len(seen)
}

// HasReceipt reports whether any transaction carries a receipt reference.
func HasReceipt(txs []core.Transaction) bool {
	for _, tx := range txs {
		if tx.HasReceipt() {
			return true
		}
	}
	return false
}
