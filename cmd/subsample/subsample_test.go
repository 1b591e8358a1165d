package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGetPartitions(t *testing.T) {
	indices := make([]uint32, 1000)
	for i := range indices {
		indices[i] = uint32(i)
	}

	got := getPartitions(42, indices, []float64{0.1, 0.5})
	assert.Equal(t, got, getPartitions(42, indices, []float64{0.1, 0.5}), "same seed gives the same partitions")

	counts := make([]int, 2)
	for _, p := range got {
		counts[p]++
	}
	assert.InDelta(t, 100, counts[0], 50)
	assert.InDelta(t, 400, counts[1], 80)
	assert.Less(t, len(got), len(indices))
}

func TestGetPartitions_All(t *testing.T) {
	got := getPartitions(1, []uint32{3, 5, 8}, []float64{1})
	assert.Equal(t, map[uint32]int{3: 0, 5: 0, 8: 0}, got)
}
