package analytics

import (
	"sort"
	"time"

	"tally/internal/core"
)

// Streak returns the longest run of consecutive calendar days that contain at
// least one transaction. Duplicate transactions on the same day count once,
// input order is irrelevant and transactions with an unparsable date are
// ignored. An empty ledger yields 0; any non-empty ledger yields at least 1.
func Streak(txs []core.Transaction) int {
	// Keyed by the parsed day, not the raw date string, so formatting
	// variants of the same day collapse into one occurrence.
	seen := map[string]time.Time{}
	for _, tx := range txs {
		day, err := tx.Day()
		if err != nil {
			continue
		}
		seen[core.FormatDay(day)] = day
	}
	if len(seen) == 0 {
		return 0
	}

	days := make([]time.Time, 0, len(seen))
	for _, day := range seen {
		days = append(days, day)
	}
	sort.Slice(days, func(i, j int) bool { return days[i].Before(days[j]) })

	longest, current := 1, 1
	for i := 1; i < len(days); i++ {
		// Calendar-day delta; days are parsed at midnight UTC so this is exact.
		gap := int(days[i].Sub(days[i-1]).Hours() / 24)
		if gap == 1 {
			current++
			if current > longest {
				longest = current
			}
		} else {
			current = 1
		}
	}
	return longest
}
