package utils

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"
)

func TestRunBatchKeyedResults(t *testing.T) {
	pool := NewWorkerPool(4, 0)
	var tasks []Task[int]
	for i := 0; i < 10; i++ {
		n := i
		tasks = append(tasks, Task[int]{
			Key: fmt.Sprintf("k%d", n),
			Run: func(ctx context.Context) (int, error) {
				// later tasks finish first
				time.Sleep(time.Duration(10-n) * time.Millisecond)
				return n * n, nil
			},
		})
	}

	results, err := RunBatch(pool, time.Second, tasks)
	if err != nil {
		t.Fatalf("RunBatch: %v", err)
	}
	if len(results) != 10 {
		t.Fatalf("results: got %d, want 10", len(results))
	}
	for i := 0; i < 10; i++ {
		r := results[fmt.Sprintf("k%d", i)]
		if r.Err != nil || r.Value != i*i {
			t.Errorf("k%d: got (%d, %v), want (%d, nil)", i, r.Value, r.Err, i*i)
		}
	}
}

func TestRunBatchIsolatesFailures(t *testing.T) {
	pool := NewWorkerPool(2, 0)
	tasks := []Task[string]{
		{Key: "ok", Run: func(ctx context.Context) (string, error) { return "fine", nil }},
		{Key: "err", Run: func(ctx context.Context) (string, error) { return "", errors.New("boom") }},
		{Key: "panic", Run: func(ctx context.Context) (string, error) { panic("bad input") }},
		{Key: "slow", Run: func(ctx context.Context) (string, error) {
			time.Sleep(500 * time.Millisecond)
			return "late", nil
		}},
	}

	results, err := RunBatch(pool, 50*time.Millisecond, tasks)
	if err != nil {
		t.Fatalf("RunBatch: %v", err)
	}

	if results["ok"].Err != nil || results["ok"].Value != "fine" {
		t.Errorf("ok: got %+v", results["ok"])
	}
	if results["err"].Err == nil {
		t.Error("err: expected an error")
	}
	if results["panic"].Err == nil {
		t.Error("panic: expected the panic to become an error")
	}
	if !errors.Is(results["slow"].Err, context.DeadlineExceeded) {
		t.Errorf("slow: got %v, want deadline exceeded", results["slow"].Err)
	}
}

func TestRunBatchRejectsDuplicateKeys(t *testing.T) {
	pool := NewWorkerPool(1, 0)
	run := func(ctx context.Context) (int, error) { return 1, nil }
	_, err := RunBatch(pool, time.Second, []Task[int]{{Key: "a", Run: run}, {Key: "a", Run: run}})
	if err == nil {
		t.Error("expected an error for duplicate keys")
	}
}
