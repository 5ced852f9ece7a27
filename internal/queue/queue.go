// Package queue is the worker side of C7: it pulls queued job ids and
// hands them to the orchestrator, one at a time per worker, per spec.md
// §5's single-worker cooperative scheduling model.
package queue

import (
	"context"
	"sync"
	"time"

	"transcribecore/pkg/logger"
)

// Processor runs one job to completion. Implemented by *pipeline.Orchestrator.
type Processor interface {
	Process(ctx context.Context, jobID string)
}

// Queue is a buffered channel of job ids drained by a fixed pool of
// worker goroutines, grounded on the teacher's worker-pool shape but
// without its auto-scaling or kill-tree machinery: the core exposes no
// cancellation operation (spec.md §5), so there is nothing for a kill
// path to act on, and the worker count is fixed rather than scaled.
type Queue struct {
	jobs      chan string
	processor Processor
	workers   int

	wg     sync.WaitGroup
	cancel context.CancelFunc
}

// New builds a Queue with the given number of worker goroutines (default
// 1, per spec.md §5) and a generously buffered backlog.
func New(processor Processor, workers int) *Queue {
	if workers < 1 {
		workers = 1
	}
	return &Queue{
		jobs:      make(chan string, 256),
		processor: processor,
		workers:   workers,
	}
}

// Start launches the worker goroutines. Call Stop to drain and shut down.
func (q *Queue) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	q.cancel = cancel

	for i := 0; i < q.workers; i++ {
		q.wg.Add(1)
		go q.worker(ctx, i)
	}
}

func (q *Queue) worker(ctx context.Context, id int) {
	defer q.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case jobID, ok := <-q.jobs:
			if !ok {
				return
			}
			logger.Debug("queue: worker picked up job", "worker", id, "job_id", jobID)
			q.processor.Process(ctx, jobID)
		}
	}
}

// Enqueue submits a job id for processing. Non-blocking up to the
// channel's buffer; blocks the caller only if the backlog is full.
func (q *Queue) Enqueue(jobID string) {
	q.jobs <- jobID
}

// Stop signals workers to exit after their current job and waits for them,
// up to the given timeout.
func (q *Queue) Stop(timeout time.Duration) {
	if q.cancel != nil {
		q.cancel()
	}
	close(q.jobs)

	done := make(chan struct{})
	go func() {
		q.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(timeout):
		logger.Warn("queue: shutdown timed out waiting for workers")
	}
}
