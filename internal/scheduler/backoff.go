package scheduler

import (
	"context"
	"log"
	"sync"
	"time"
)

// 分批驱动抓取任务：批内并发、批间串行，瞬时失败统一退避后只重试失败集。
// 退避间隔故意取得很粗（默认分钟级），因为常见故障是上游整体抖动而不是单点失败。

// Task is one bounded unit of fetch work, owned by the scheduler until it
// succeeds or is abandoned.
type Task struct {
	Key    string // unit key, for logs and failure reports
	Offset int
	Size   int
}

type taskState int

const (
	taskPending taskState = iota
	taskInFlight
	taskSucceeded
	taskRetryPending
	taskAbandoned
)

type trackedTask struct {
	task     Task
	state    taskState
	attempts int
}

// Failure reports one task that the scheduler gave up on.
type Failure struct {
	Task Task
	Err  error
}

// Stats summarizes one Run.
type Stats struct {
	Succeeded int
	Retried   int // total resubmissions across all backoff rounds
	Abandoned int // transient failures that exhausted MaxRetries
	Failures  []Failure
}

type Config struct {
	Workers      int
	PageSize     int
	RetryBackoff time.Duration
	MaxRetries   int
}

type Scheduler struct {
	cfg   Config
	sleep func(time.Duration) // 测试注入
}

func New(cfg Config) *Scheduler {
	if cfg.Workers <= 0 {
		cfg.Workers = 48
	}
	if cfg.PageSize <= 0 {
		cfg.PageSize = 1
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 5
	}
	if cfg.RetryBackoff <= 0 {
		cfg.RetryBackoff = 5 * time.Minute
	}
	return &Scheduler{cfg: cfg, sleep: time.Sleep}
}

type taskResult[R any] struct {
	tracked *trackedTask
	value   R
	err     error
}

// Run drives all tasks to completion through a bounded worker pool.
//
// Tasks are partitioned into batches of Workers×PageSize; a batch is fully
// resolved (including its retry rounds) before the next batch starts.
// onResult is invoked exactly once per succeeded task, from the collecting
// goroutine, so it does not need to be safe for concurrent use. A failed task
// never aborts its siblings.
func Run[R any](ctx context.Context, s *Scheduler, tasks []Task,
	fetch func(context.Context, Task) (R, error),
	onResult func(Task, R)) Stats {

	var stats Stats
	if len(tasks) == 0 {
		return stats
	}

	batchSize := s.cfg.Workers * s.cfg.PageSize
	if batchSize > len(tasks) {
		batchSize = len(tasks)
	}

	for offset := 0; offset < len(tasks); offset += batchSize {
		end := offset + batchSize
		if end > len(tasks) {
			end = len(tasks)
		}

		pending := make([]*trackedTask, 0, end-offset)
		for _, t := range tasks[offset:end] {
			pending = append(pending, &trackedTask{task: t, state: taskPending})
		}

		for len(pending) > 0 {
			if ctx.Err() != nil {
				return stats
			}

			retry := runRound(ctx, s, pending, fetch, onResult, &stats)
			if len(retry) == 0 {
				break
			}

			log.Printf("[抓取调度] %d 个任务瞬时失败，等待 %v 后重试\n", len(retry), s.cfg.RetryBackoff)
			stats.Retried += len(retry)
			s.sleep(s.cfg.RetryBackoff)
			pending = retry
		}
	}

	return stats
}

// runRound submits one wave of tasks to the pool and classifies every outcome.
// Completion order within the wave is undefined; the caller sees results only
// through onResult and the returned retry set.
func runRound[R any](ctx context.Context, s *Scheduler, wave []*trackedTask,
	fetch func(context.Context, Task) (R, error),
	onResult func(Task, R), stats *Stats) []*trackedTask {

	jobs := make(chan *trackedTask)
	results := make(chan taskResult[R])

	var wg sync.WaitGroup
	workers := s.cfg.Workers
	if workers > len(wave) {
		workers = len(wave)
	}

	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			for tt := range jobs {
				value, err := fetch(ctx, tt.task)
				results <- taskResult[R]{tracked: tt, value: value, err: err}
			}
		}()
	}

	go func() {
		defer close(jobs)
		for _, tt := range wave {
			tt.state = taskInFlight
			tt.attempts++
			select {
			case jobs <- tt:
			case <-ctx.Done():
				return
			}
		}
	}()

	go func() {
		wg.Wait()
		close(results)
	}()

	var retry []*trackedTask
	for res := range results {
		tt := res.tracked
		switch {
		case res.err == nil:
			tt.state = taskSucceeded
			stats.Succeeded++
			onResult(tt.task, res.value)

		case IsTransient(res.err) && tt.attempts <= s.cfg.MaxRetries:
			tt.state = taskRetryPending
			retry = append(retry, tt)

		case IsTransient(res.err):
			tt.state = taskAbandoned
			stats.Abandoned++
			stats.Failures = append(stats.Failures, Failure{Task: tt.task, Err: res.err})
			log.Printf("[抓取调度] 任务 %s offset=%d 重试耗尽，放弃: %v\n", tt.task.Key, tt.task.Offset, res.err)

		default:
			// permanent failure: report once, never retry
			tt.state = taskAbandoned
			stats.Failures = append(stats.Failures, Failure{Task: tt.task, Err: res.err})
			log.Printf("[抓取调度] 任务 %s offset=%d 永久失败: %v\n", tt.task.Key, tt.task.Offset, res.err)
		}
	}

	return retry
}
