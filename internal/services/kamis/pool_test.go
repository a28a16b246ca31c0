package kamis

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"
)

func TestRunPool(t *testing.T) {
	var running, peak int32
	tasks := make([]WorkerTask[int], 25)
	for i := range tasks {
		i := i
		tasks[i] = WorkerTask[int]{
			TaskID: fmt.Sprintf("task-%d", i),
			Run: func(ctx context.Context) (int, error) {
				n := atomic.AddInt32(&running, 1)
				for {
					p := atomic.LoadInt32(&peak)
					if n <= p || atomic.CompareAndSwapInt32(&peak, p, n) {
						break
					}
				}
				time.Sleep(5 * time.Millisecond)
				atomic.AddInt32(&running, -1)
				if i%5 == 0 {
					return 0, errors.New("boom")
				}
				return i, nil
			},
		}
	}

	var progressCalls int
	results, stats := RunPool(context.Background(), 4, tasks, func(s PoolStats) {
		progressCalls++
	})

	if len(results) != 25 || progressCalls != 25 {
		t.Fatalf("results = %d, progress calls = %d, want 25 each", len(results), progressCalls)
	}
	if stats.FailedTasks != 5 || stats.SuccessTasks != 20 || stats.Completed() != stats.TotalTasks {
		t.Errorf("unexpected stats: %+v", stats)
	}
	if p := atomic.LoadInt32(&peak); p > 4 {
		t.Errorf("peak concurrency = %d, want <= 4", p)
	}

	seen := make(map[string]bool)
	for _, r := range results {
		if seen[r.TaskID] {
			t.Errorf("duplicate result for %s", r.TaskID)
		}
		seen[r.TaskID] = true
	}
}

func TestRunPoolEmpty(t *testing.T) {
	results, stats := RunPool[int](context.Background(), 3, nil, nil)
	if len(results) != 0 || stats.TotalTasks != 0 {
		t.Errorf("results = %v, stats = %+v", results, stats)
	}
}
