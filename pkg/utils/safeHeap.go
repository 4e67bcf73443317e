package utils

import (
	"sync"

	pq "github.com/emirpasic/gods/queues/priorityqueue"
)

// SafeHeap is a mutex-guarded priority queue; Pop returns the element that
// is "least" according to less.
type SafeHeap[T any] struct {
	p  *pq.Queue
	mu sync.RWMutex
}

func NewSafeHeap[T any](less func(a, b T) bool) *SafeHeap[T] {
	return &SafeHeap[T]{
		p: pq.NewWith(Comparator(less)),
	}
}

func (sh *SafeHeap[T]) Push(value T) {
	sh.mu.Lock()
	sh.p.Enqueue(value)
	sh.mu.Unlock()
}

func (sh *SafeHeap[T]) Pop() (value T, ok bool) {
	sh.mu.Lock()
	defer sh.mu.Unlock()
	v, ok := sh.p.Dequeue()
	if !ok {
		return value, false
	}
	return v.(T), true
}

func (sh *SafeHeap[T]) Size() int {
	sh.mu.RLock()
	defer sh.mu.RUnlock()
	return sh.p.Size()
}

func Comparator[T any](less func(T, T) bool) func(interface{}, interface{}) int {
	return func(a, b interface{}) int {
		if less(a.(T), b.(T)) {
			return -1
		} else if less(b.(T), a.(T)) {
			return 1
		}
		return 0
	}
}
