package kamis

import (
	"context"
	"sync"
	"time"
)

const DefaultWorkers = 10

// WorkerTask is one independent unit of fan-out work.
type WorkerTask[T any] struct {
	TaskID string
	Run    func(ctx context.Context) (T, error)
}

// WorkerResult is produced exactly once per task.
type WorkerResult[T any] struct {
	TaskID   string
	Value    T
	Err      error
	Duration time.Duration
}

// PoolStats is a snapshot of pool progress.
type PoolStats struct {
	TotalTasks   int
	SuccessTasks int
	FailedTasks  int
}

func (s PoolStats) Completed() int {
	return s.SuccessTasks + s.FailedTasks
}

// RunPool runs tasks on a bounded number of workers and returns the results in
// completion order. Only the calling goroutine appends to the result slice.
// progress, if non-nil, is called from the calling goroutine after every
// completion.
func RunPool[T any](ctx context.Context, numWorkers int, tasks []WorkerTask[T], progress func(PoolStats)) ([]WorkerResult[T], PoolStats) {
	if numWorkers <= 0 {
		numWorkers = DefaultWorkers
	}
	if numWorkers > len(tasks) {
		numWorkers = len(tasks)
	}

	stats := PoolStats{TotalTasks: len(tasks)}
	if len(tasks) == 0 {
		return nil, stats
	}

	taskQueue := make(chan WorkerTask[T], numWorkers*2)
	resultQueue := make(chan WorkerResult[T], numWorkers*2)

	var wg sync.WaitGroup
	for i := 0; i < numWorkers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for task := range taskQueue {
				start := time.Now()
				value, err := task.Run(ctx)
				resultQueue <- WorkerResult[T]{
					TaskID:   task.TaskID,
					Value:    value,
					Err:      err,
					Duration: time.Since(start),
				}
			}
		}()
	}

	go func() {
		for _, task := range tasks {
			taskQueue <- task
		}
		close(taskQueue)
	}()

	go func() {
		wg.Wait()
		close(resultQueue)
	}()

	results := make([]WorkerResult[T], 0, len(tasks))
	for result := range resultQueue {
		if result.Err != nil {
			stats.FailedTasks++
		} else {
			stats.SuccessTasks++
		}
		results = append(results, result)
		if progress != nil {
			progress(stats)
		}
	}
	return results, stats
}
