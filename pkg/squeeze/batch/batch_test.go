package batch

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPartition(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		n     int
		size  int
		sizes []int
	}{
		{name: "empty", n: 0, size: 8, sizes: nil},
		{name: "single", n: 1, size: 8, sizes: []int{1}},
		{name: "exact batch", n: 8, size: 8, sizes: []int{8}},
		{name: "trailing partial", n: 20, size: 8, sizes: []int{8, 8, 4}},
		{name: "size one", n: 3, size: 1, sizes: []int{1, 1, 1}},
		{name: "default size", n: 9, size: 0, sizes: []int{8, 1}},
		{name: "negative size", n: 2, size: -4, sizes: []int{2}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			items := make([]int, tt.n)
			for i := range items {
				items[i] = i
			}

			chunks := Partition(items, tt.size)

			var sizes []int
			var flat []int
			for _, c := range chunks {
				sizes = append(sizes, len(c))
				flat = append(flat, c...)
			}
			assert.Equal(t, tt.sizes, sizes)
			assert.Len(t, chunks, Count(tt.n, tt.size))
			if tt.n > 0 {
				assert.Equal(t, items, flat, "every item exactly once, in order")
			}
		})
	}
}

func TestPartition_Nil(t *testing.T) {
	t.Parallel()

	assert.Nil(t, Partition[string](nil, 8))
	assert.Zero(t, Count(0, 8))
}
