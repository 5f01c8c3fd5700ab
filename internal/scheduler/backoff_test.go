package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"
)

func newTestScheduler(workers, maxRetries int) *Scheduler {
	s := New(Config{
		Workers:      workers,
		PageSize:     2,
		RetryBackoff: time.Minute,
		MaxRetries:   maxRetries,
	})
	s.sleep = func(time.Duration) {} // no real waiting in tests
	return s
}

func makeTasks(n int) []Task {
	tasks := make([]Task, n)
	for i := range tasks {
		tasks[i] = Task{Key: fmt.Sprintf("sku-%d", i), Offset: i * 50, Size: 50}
	}
	return tasks
}

func TestRun_FailOnceThenSucceed(t *testing.T) {
	const n = 20
	s := newTestScheduler(4, 3)

	var mu sync.Mutex
	failed := make(map[string]bool)

	fetch := func(_ context.Context, task Task) (string, error) {
		mu.Lock()
		defer mu.Unlock()
		if !failed[task.Key] {
			failed[task.Key] = true
			return "", Transient(errors.New("rate limited"))
		}
		return task.Key, nil
	}

	delivered := make(map[string]int)
	stats := Run(context.Background(), s, makeTasks(n), fetch, func(task Task, v string) {
		if v != task.Key {
			t.Errorf("result %q delivered for task %q", v, task.Key)
		}
		delivered[task.Key]++
	})

	if stats.Succeeded != n {
		t.Fatalf("expected %d successes, got %d", n, stats.Succeeded)
	}
	if stats.Abandoned != 0 {
		t.Fatalf("expected no abandoned tasks, got %d", stats.Abandoned)
	}
	if stats.Retried != n {
		t.Errorf("expected %d retries, got %d", n, stats.Retried)
	}
	for key, count := range delivered {
		if count != 1 {
			t.Errorf("task %s delivered %d times", key, count)
		}
	}
	if len(delivered) != n {
		t.Errorf("expected %d delivered tasks, got %d", n, len(delivered))
	}
}

func TestRun_PermanentFailureNeverRetried(t *testing.T) {
	s := newTestScheduler(2, 3)

	var mu sync.Mutex
	calls := make(map[string]int)

	fetch := func(_ context.Context, task Task) (string, error) {
		mu.Lock()
		calls[task.Key]++
		mu.Unlock()
		if task.Key == "sku-1" {
			return "", Permanent(errors.New("bad request"))
		}
		return task.Key, nil
	}

	stats := Run(context.Background(), s, makeTasks(3), fetch, func(Task, string) {})

	if calls["sku-1"] != 1 {
		t.Errorf("permanent failure fetched %d times, want 1", calls["sku-1"])
	}
	if stats.Succeeded != 2 {
		t.Errorf("expected 2 successes, got %d", stats.Succeeded)
	}
	if len(stats.Failures) != 1 {
		t.Fatalf("expected 1 reported failure, got %d", len(stats.Failures))
	}
	if stats.Failures[0].Task.Key != "sku-1" {
		t.Errorf("wrong task reported: %s", stats.Failures[0].Task.Key)
	}
	if stats.Abandoned != 0 {
		t.Errorf("permanent failure must not count as abandoned, got %d", stats.Abandoned)
	}
}

func TestRun_TransientExhaustsRetries(t *testing.T) {
	s := newTestScheduler(1, 2)

	var calls int
	fetch := func(_ context.Context, _ Task) (string, error) {
		calls++
		return "", Transient(errors.New("upstream down"))
	}

	stats := Run(context.Background(), s, makeTasks(1), fetch, func(Task, string) {})

	// initial attempt + MaxRetries resubmissions
	if calls != 3 {
		t.Errorf("expected 3 attempts, got %d", calls)
	}
	if stats.Abandoned != 1 {
		t.Errorf("expected 1 abandoned, got %d", stats.Abandoned)
	}
	if len(stats.Failures) != 1 {
		t.Errorf("expected 1 failure report, got %d", len(stats.Failures))
	}
	if !IsTransient(stats.Failures[0].Err) {
		t.Errorf("failure should keep its transient classification")
	}
}

func TestRun_BatchesAreSequential(t *testing.T) {
	// workers=2 × pageSize=2 gives batches of 4; with 8 tasks the second
	// batch must not start until the first fully resolves.
	s := newTestScheduler(2, 1)

	var mu sync.Mutex
	var order []int

	fetch := func(_ context.Context, task Task) (int, error) {
		mu.Lock()
		order = append(order, task.Offset/50)
		mu.Unlock()
		return task.Offset, nil
	}

	Run(context.Background(), s, makeTasks(8), fetch, func(Task, int) {})

	for i, idx := range order[:4] {
		if idx >= 4 {
			t.Fatalf("task %d from second batch ran at position %d before first batch resolved", idx, i)
		}
	}
}

func TestRun_EmptyTaskList(t *testing.T) {
	s := newTestScheduler(4, 3)
	stats := Run(context.Background(), s, nil,
		func(_ context.Context, _ Task) (int, error) { return 0, nil },
		func(Task, int) {})
	if stats.Succeeded != 0 || stats.Retried != 0 || stats.Abandoned != 0 {
		t.Errorf("expected zero stats for empty task list, got %+v", stats)
	}
}
