package report

import "sort"

// DefaultTopN is the number of products in a top-seller list
const DefaultTopN = 5

// TopSellers returns at most n entries ordered by quantity sold, descending.
// Entries with equal quantities keep their encounter order.
func TopSellers(totals *ProductTotals, n int) []AggregateEntry {
	if totals == nil || n <= 0 {
		return []AggregateEntry{}
	}

	entries := totals.Entries()
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].QuantitySold > entries[j].QuantitySold
	})

	if len(entries) > n {
		entries = entries[:n]
	}
	return entries
}
