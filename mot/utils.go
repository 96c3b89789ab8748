package mot

import (
	"maps"
	"slices"
)

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

// sortedKeys returns registry identities in ascending order.
func sortedKeys[V any](m map[uint64]V) []uint64 {
	return slices.Sorted(maps.Keys(m))
}
