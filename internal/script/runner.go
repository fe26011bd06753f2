package script

import (
	"context"
	"sync"
	"time"

	"github.com/gyaneshwarpardhi/circuitflow/internal/metrics"
)

// Job is one async script call. ctx carries the per-call timeout.
type Job func(ctx context.Context)

// Runner is a fixed-size goroutine pool with a bounded queue that executes
// async script calls off the tick goroutine.
type Runner struct {
	ctx     context.Context
	queue   chan Job
	timeout time.Duration
	wg      sync.WaitGroup

	mu     sync.Mutex
	closed bool
}

// NewRunner starts n workers sharing a queue of the given depth. Each job
// runs with timeout as its deadline.
func NewRunner(ctx context.Context, n, depth int, timeout time.Duration) *Runner {
	if n < 1 {
		n = 1
	}
	if depth < 1 {
		depth = 1
	}
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	r := &Runner{
		ctx:     ctx,
		queue:   make(chan Job, depth),
		timeout: timeout,
	}
	for i := 0; i < n; i++ {
		r.wg.Add(1)
		go func() {
			defer r.wg.Done()
			r.run()
		}()
	}
	return r
}

func (r *Runner) run() {
	for {
		select {
		case j, ok := <-r.queue:
			if !ok {
				return
			}
			r.observe()
			ctx, cancel := context.WithTimeout(r.ctx, r.timeout)
			j(ctx)
			cancel()
		case <-r.ctx.Done():
			return
		}
	}
}

// Submit enqueues a job without blocking. It returns false when the queue is
// full or the runner was closed.
func (r *Runner) Submit(j Job) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return false
	}
	select {
	case r.queue <- j:
		r.observe()
		return true
	default:
		return false
	}
}

// Close stops accepting jobs and waits for queued ones to finish.
func (r *Runner) Close() {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.closed = true
	close(r.queue)
	r.mu.Unlock()
	r.wg.Wait()
	metrics.ScriptQueueUtilization.Set(0)
}

// Timeout is the deadline applied to each call.
func (r *Runner) Timeout() time.Duration { return r.timeout }

// QueueUtilization returns the fraction of the queue in use.
func (r *Runner) QueueUtilization() float64 {
	return float64(len(r.queue)) / float64(cap(r.queue))
}

func (r *Runner) observe() {
	metrics.ScriptQueueUtilization.Set(r.QueueUtilization())
}
