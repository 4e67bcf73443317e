package executor

import (
	"sync"
)

// Future holds the eventual result of a task submitted to a WorkerPool.
type Future[T any] struct {
	done         chan struct{}
	result       T
	err          error
	defaultValue T
	once         sync.Once
}

func newFuture[T any](defaultValue T) *Future[T] {
	return &Future[T]{
		done:         make(chan struct{}),
		defaultValue: defaultValue,
		result:       defaultValue,
	}
}

func (f *Future[T]) complete(result T, err error) {
	f.once.Do(func() {
		if err != nil {
			f.result, f.err = f.defaultValue, err
		} else {
			f.result = result
		}
		close(f.done)
	})
}

// Get blocks until the task finished. A failed task yields the default value.
func (f *Future[T]) Get() (T, error) {
	<-f.done
	return f.result, f.err
}

// GetAll waits for every future and returns their results in order,
// together with the first error encountered.
func GetAll[T any](futures []*Future[T]) ([]T, error) {
	results := make([]T, len(futures))
	var first error
	for i, f := range futures {
		var err error
		if results[i], err = f.Get(); err != nil && first == nil {
			first = err
		}
	}
	return results, first
}
