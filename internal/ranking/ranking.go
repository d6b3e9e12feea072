// Package ranking derives leaderboards from report rollups.
package ranking

import (
	"sort"

	"github.com/shopspring/decimal"
)

// TopN returns up to n items sorted by key descending, ties broken by id
// ascending. The input slice is not modified. n <= 0 yields an empty result.
func TopN[T any](items []T, n int, key func(T) decimal.Decimal, id func(T) string) []T {
	if n <= 0 || len(items) == 0 {
		return []T{}
	}

	sorted := make([]T, len(items))
	copy(sorted, items)

	sort.SliceStable(sorted, func(i, j int) bool {
		ki, kj := key(sorted[i]), key(sorted[j])
		if c := ki.Cmp(kj); c != 0 {
			return c > 0
		}
		return id(sorted[i]) < id(sorted[j])
	})

	if n < len(sorted) {
		sorted = sorted[:n]
	}
	return sorted
}
