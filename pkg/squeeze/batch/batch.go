// Package batch groups work into fixed-size units.
package batch

import "github.com/samber/lo"

// DefaultSize is the number of items per batch when none is configured.
const DefaultSize = 8

// Partition splits items into consecutive chunks of at most size elements,
// preserving order. A size below 1 uses DefaultSize. Empty input yields no
// chunks.
func Partition[T any](items []T, size int) [][]T {
	if len(items) == 0 {
		return nil
	}
	if size < 1 {
		size = DefaultSize
	}
	return lo.Chunk(items, size)
}

// Count returns the number of batches Partition would produce.
func Count(n, size int) int {
	if n <= 0 {
		return 0
	}
	if size < 1 {
		size = DefaultSize
	}
	return (n + size - 1) / size
}
