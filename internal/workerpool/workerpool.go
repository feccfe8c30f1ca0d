// Package workerpool bounds the concurrency of CPU-heavy work — parsing and
// trigram compaction — independent of how many requests or files are queued
// ahead of it, per §5's concurrency model. It is built on
// golang.org/x/sync/semaphore rather than a hand-rolled channel-based pool,
// the way the teacher bounds its own `ParallelFileWorkers` knob.
package workerpool

import (
	"context"

	"golang.org/x/sync/semaphore"

	kerrors "github.com/kotadb/kotadb/internal/errors"
)

// Pool runs submitted work with at most Size concurrent tasks in flight.
// Submit blocks (respecting ctx) once Size tasks are already running —
// that's the back-pressure: a caller with more work than capacity waits
// rather than spawning unboundedly many goroutines.
type Pool struct {
	sem  *semaphore.Weighted
	size int64
}

// New builds a Pool that runs at most size tasks concurrently. size <= 0 is
// normalized to 1 — a pool of zero capacity can never make progress.
func New(size int) *Pool {
	if size <= 0 {
		size = 1
	}
	return &Pool{sem: semaphore.NewWeighted(int64(size)), size: int64(size)}
}

// Submit acquires a slot (blocking under back-pressure if every slot is
// busy), runs fn, then releases the slot. It returns fn's error, or ctx's
// error if the wait for a slot was cancelled first.
func (p *Pool) Submit(ctx context.Context, fn func(ctx context.Context) error) error {
	if err := p.sem.Acquire(ctx, 1); err != nil {
		return kerrors.New(kerrors.Cancelled, "workerpool.Submit", err)
	}
	defer p.sem.Release(1)
	return fn(ctx)
}

// Go runs a batch of tasks, each respecting the pool's back-pressure, and
// waits for all of them to finish. The first error encountered (by
// completion order, not submission order) is returned; every task still
// runs regardless of an earlier one's failure.
func (p *Pool) Go(ctx context.Context, tasks []func(ctx context.Context) error) error {
	errs := make(chan error, len(tasks))
	for _, task := range tasks {
		task := task
		go func() {
			errs <- p.Submit(ctx, task)
		}()
	}

	var first error
	for range tasks {
		if err := <-errs; err != nil && first == nil {
			first = err
		}
	}
	return first
}

// Size returns the pool's configured concurrency cap.
func (p *Pool) Size() int { return int(p.size) }
