package utils

import (
	"math/rand"

	"golang.org/x/exp/constraints"
)

// NewIntArray returns [start, end).
func NewIntArray(start, end int) []int {
	if end <= start {
		return []int{}
	}
	arr := make([]int, end-start)
	for i := range arr {
		arr[i] = start + i
	}
	return arr
}

// RandomSubset picks n distinct elements using the given source.
func RandomSubset[T any](r *rand.Rand, elements []T, n int) []T {
	n = Max(0, Min(n, len(elements)))
	shuffled := Copy(elements)
	Shuffle(r, shuffled)
	return shuffled[:n]
}

func Shuffle[T any](r *rand.Rand, items []T) {
	r.Shuffle(len(items), func(i, j int) {
		items[i], items[j] = items[j], items[i]
	})
}

// Chunk splits items into k contiguous groups whose sizes differ by at most
// one; the first len(items) mod k groups get the extra element.
func Chunk[T any](items []T, k int) [][]T {
	if k <= 0 {
		return [][]T{}
	}
	k = Min(k, Max(len(items), 1))
	groups := make([][]T, k)
	base, extra := len(items)/k, len(items)%k
	start := 0
	for i := 0; i < k; i++ {
		size := base
		if i < extra {
			size++
		}
		groups[i] = Copy(items[start : start+size])
		start += size
	}
	return groups
}

func Min[T constraints.Ordered](a, b T) T {
	if a < b {
		return a
	}
	return b
}

func Max[T constraints.Ordered](a, b T) T {
	if a > b {
		return a
	}
	return b
}

func Sum[T constraints.Integer | constraints.Float](values []T) T {
	var total T
	for _, v := range values {
		total += v
	}
	return total
}

func Mean[T constraints.Integer | constraints.Float](values []T) float64 {
	if len(values) == 0 {
		return 0
	}
	return float64(Sum(values)) / float64(len(values))
}
