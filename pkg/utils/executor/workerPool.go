package executor

import (
	"sync"

	pl "github.com/HannahMarsh/PrettyLogger"
)

// WorkerPool runs submitted tasks on a fixed number of worker goroutines.
type WorkerPool struct {
	taskQueue chan func()
	workers   sync.WaitGroup
	stopOnce  sync.Once
}

func NewWorkerPoolWithMax(maxWorkers int) *WorkerPool {
	if maxWorkers < 1 {
		maxWorkers = 1
	}
	pool := &WorkerPool{
		taskQueue: make(chan func(), maxWorkers),
	}
	for i := 0; i < maxWorkers; i++ {
		pool.workers.Add(1)
		go pool.worker()
	}
	return pool
}

func (wp *WorkerPool) worker() {
	defer wp.workers.Done()
	for task := range wp.taskQueue {
		task()
	}
}

// SubmitWithError queues task and returns a future for its result. A panic
// inside task is turned into the future's error.
func SubmitWithError[T any](wp *WorkerPool, defaultValue T, task func() (T, error)) *Future[T] {
	fut := newFuture(defaultValue)
	wp.taskQueue <- func() {
		defer func() {
			if r := recover(); r != nil {
				fut.complete(defaultValue, pl.NewError("task panicked: %v", r))
			}
		}()
		fut.complete(task())
	}
	return fut
}

// Stop waits for queued tasks and shuts the workers down. Submitting after
// Stop panics.
func (wp *WorkerPool) Stop() {
	wp.stopOnce.Do(func() {
		close(wp.taskQueue)
		wp.workers.Wait()
	})
}
