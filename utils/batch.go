package utils

import (
	"context"
	"fmt"
	"time"
)

// Task is one independent unit of batch work, identified by Key.
type Task[T any] struct {
	Key string
	Run func(ctx context.Context) (T, error)
}

// Result is the settled outcome of a Task.
type Result[T any] struct {
	Key     string
	Value   T
	Err     error
	Elapsed time.Duration
}

// RunBatch runs every task on the pool and blocks until all of them have
// settled. Each task gets its own deadline; a task that fails, panics or runs
// past its deadline only affects its own Result. Results are keyed by task
// key, so callers never depend on submission or completion order.
//
// Keys must be unique. A task that ignores its context keeps running in the
// background after its deadline, but its late value is discarded.
func RunBatch[T any](pool *WorkerPool, timeout time.Duration, tasks []Task[T]) (map[string]Result[T], error) {
	keys := NewKeySet()
	for _, t := range tasks {
		if !keys.Add(t.Key) {
			return nil, fmt.Errorf("batch: duplicate task key %q", t.Key)
		}
	}

	out := make(chan Result[T], len(tasks))
	for _, t := range tasks {
		task := t
		pool.Submit(func() {
			out <- settle(task, timeout)
		})
	}
	pool.Wait()
	close(out)

	results := make(map[string]Result[T], len(tasks))
	for r := range out {
		results[r.Key] = r
	}
	return results, nil
}

func settle[T any](task Task[T], timeout time.Duration) Result[T] {
	ctx := context.Background()
	var cancel context.CancelFunc = func() {}
	if timeout > 0 {
		ctx, cancel = context.WithTimeout(ctx, timeout)
	}
	defer cancel()

	start := time.Now()
	done := make(chan Result[T], 1)

	go func() {
		res := Result[T]{Key: task.Key}
		defer func() {
			if p := recover(); p != nil {
				res.Err = fmt.Errorf("task %s panicked: %v", task.Key, p)
			}
			done <- res
		}()
		res.Value, res.Err = task.Run(ctx)
	}()

	select {
	case res := <-done:
		res.Elapsed = time.Since(start)
		return res
	case <-ctx.Done():
		return Result[T]{
			Key:     task.Key,
			Err:     fmt.Errorf("task %s: %w", task.Key, ctx.Err()),
			Elapsed: time.Since(start),
		}
	}
}
