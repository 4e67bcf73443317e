package executor

import (
	"fmt"
	"sync/atomic"
	"testing"
	"time"
)

func TestWorkerPool_SubmitWithError(t *testing.T) {
	pool := NewWorkerPoolWithMax(4)
	defer pool.Stop()

	future := SubmitWithError(pool, 0, func() (int, error) {
		time.Sleep(50 * time.Millisecond)
		return 42, nil
	})

	result, err := future.Get()
	if err != nil {
		t.Fatalf("Error: %v", err)
	}
	if result != 42 {
		t.Fatalf("Expected 42, got %v", result)
	}
}

func TestWorkerPool_LimitsConcurrency(t *testing.T) {
	pool := NewWorkerPoolWithMax(2)
	defer pool.Stop()

	var running, peak atomic.Int32
	futures := make([]*Future[int], 10)
	for i := range futures {
		i := i
		futures[i] = SubmitWithError(pool, -1, func() (int, error) {
			n := running.Add(1)
			for {
				p := peak.Load()
				if n <= p || peak.CompareAndSwap(p, n) {
					break
				}
			}
			time.Sleep(10 * time.Millisecond)
			running.Add(-1)
			return i, nil
		})
	}

	results, err := GetAll(futures)
	if err != nil {
		t.Fatalf("Error: %v", err)
	}
	for i, r := range results {
		if r != i {
			t.Fatalf("Expected %d at index %d, got %d", i, i, r)
		}
	}
	if peak.Load() > 2 {
		t.Fatalf("Expected at most 2 concurrent tasks, got %d", peak.Load())
	}
}

func TestWorkerPool_PanicBecomesError(t *testing.T) {
	pool := NewWorkerPoolWithMax(1)
	defer pool.Stop()

	result, err := SubmitWithError(pool, 7, func() (int, error) {
		panic("boom")
	}).Get()
	if err == nil {
		t.Fatalf("Expected an error")
	}
	if result != 7 {
		t.Fatalf("Expected default value 7, got %v", result)
	}

	// the worker survives the panic
	result, err = SubmitWithError(pool, 0, func() (int, error) { return 1, nil }).Get()
	if err != nil || result != 1 {
		t.Fatalf("Expected 1, got %v (%v)", result, err)
	}
}

func TestWorkerPool_StopDrainsQueuedTasks(t *testing.T) {
	pool := NewWorkerPoolWithMax(1)

	futures := make([]*Future[int], 5)
	for i := range futures {
		i := i
		futures[i] = SubmitWithError(pool, -1, func() (int, error) {
			time.Sleep(5 * time.Millisecond)
			return i, nil
		})
	}
	pool.Stop()
	pool.Stop()

	results, err := GetAll(futures)
	if err != nil {
		t.Fatalf("Error: %v", err)
	}
	if results[4] != 4 {
		t.Fatalf("Expected 4, got %v", results[4])
	}
}

func TestGetAll_ReportsFirstError(t *testing.T) {
	pool := NewWorkerPoolWithMax(2)
	defer pool.Stop()

	futures := []*Future[int]{
		SubmitWithError(pool, 0, func() (int, error) { return 1, nil }),
		SubmitWithError(pool, 0, func() (int, error) { return 0, fmt.Errorf("second") }),
		SubmitWithError(pool, 0, func() (int, error) { return 0, fmt.Errorf("third") }),
	}
	results, err := GetAll(futures)
	if err == nil || err.Error() != "second" {
		t.Fatalf("Expected 'second', got %v", err)
	}
	if results[0] != 1 {
		t.Fatalf("Expected 1, got %v", results[0])
	}
}
