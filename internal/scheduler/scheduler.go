// Package scheduler provides the discrete-event tick loop that drives signal
// propagation. Work deferred during tick N runs in tick N+1, so a chain of N
// connected nodes settles after N ticks.
package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/gyaneshwarpardhi/circuitflow/internal/metrics"
)

// Task is a unit of deferred work. Tasks run on the tick goroutine.
type Task func()

// Scheduler is a single-threaded task queue advanced by Tick.
// Defer and Tick must be called from the tick goroutine; Post is safe from any goroutine.
type Scheduler struct {
	queue []Task
	now   uint64

	mu    sync.Mutex
	inbox []Task
}

// New returns an idle scheduler at tick 0.
func New() *Scheduler {
	return &Scheduler{}
}

// Defer queues fn to run on the next Tick.
func (s *Scheduler) Defer(fn Task) {
	s.queue = append(s.queue, fn)
}

// Post hands fn to the tick goroutine. It runs at the start of the next Tick.
func (s *Scheduler) Post(fn Task) {
	s.mu.Lock()
	s.inbox = append(s.inbox, fn)
	s.mu.Unlock()
}

// Tick runs posted work, then every task deferred before the tick began.
// Tasks deferred while ticking, including by posted work, are left for the next tick. It returns the
// number of tasks executed.
func (s *Scheduler) Tick() int {
	start := time.Now()

	due := s.queue
	s.queue = nil

	s.mu.Lock()
	posted := s.inbox
	s.inbox = nil
	s.mu.Unlock()

	for _, fn := range posted {
		fn()
	}
	for _, fn := range due {
		fn()
	}

	s.now++
	metrics.Ticks.Inc()
	metrics.TickDuration.Observe(float64(time.Since(start).Microseconds()) / 1000)
	metrics.SchedulerPending.Set(float64(s.Pending()))
	return len(posted) + len(due)
}

// Now returns the number of completed ticks.
func (s *Scheduler) Now() uint64 { return s.now }

// Pending returns the number of tasks waiting for a future tick.
func (s *Scheduler) Pending() int {
	s.mu.Lock()
	n := len(s.inbox)
	s.mu.Unlock()
	return n + len(s.queue)
}

// Idle reports whether no work is queued.
func (s *Scheduler) Idle() bool { return s.Pending() == 0 }

// RunUntilIdle ticks until nothing is pending or max ticks have run.
// It returns the number of ticks used.
func (s *Scheduler) RunUntilIdle(max int) int {
	n := 0
	for n < max && !s.Idle() {
		s.Tick()
		n++
	}
	return n
}

// Run ticks every interval until ctx is done.
func (s *Scheduler) Run(ctx context.Context, interval time.Duration) error {
	return s.RunWithInterval(ctx, func() time.Duration { return interval })
}

// RunWithInterval is Run with an interval that is re-read after every tick,
// which lets configuration reloads change the tick rate of a running loop.
func (s *Scheduler) RunWithInterval(ctx context.Context, interval func() time.Duration) error {
	t := time.NewTimer(interval())
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
			s.Tick()
			t.Reset(interval())
		}
	}
}
