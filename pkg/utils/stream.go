package utils

import (
	"cmp"

	"github.com/jfcg/sorty/v2"
)

func Map[T any, O any](items []T, f func(T) O) []O {
	ret := make([]O, len(items))
	for i, item := range items {
		ret[i] = f(item)
	}
	return ret
}

func Copy[T any](items []T) []T {
	ret := make([]T, len(items))
	copy(ret, items)
	return ret
}

func GetKeys[K comparable, V any](m map[K]V) []K {
	keys := make([]K, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	return keys
}

func MaxOver[T cmp.Ordered](items []T) T {
	var m T
	for i, item := range items {
		if i == 0 || item > m {
			m = item
		}
	}
	return m
}

func MinOver[T cmp.Ordered](items []T) T {
	var m T
	for i, item := range items {
		if i == 0 || item < m {
			m = item
		}
	}
	return m
}

func Sort[T any](items []T, less func(T, T) bool) {
	lesswap := func(i, k, r, s int) bool {
		if less(items[i], items[k]) {
			if r != s {
				items[r], items[s] = items[s], items[r]
			}
			return true
		}
		return false
	}
	sorty.Sort(len(items), lesswap)
}

func SortOrdered[T cmp.Ordered](items []T) {
	Sort(items, func(a, b T) bool {
		return a < b
	})
}
