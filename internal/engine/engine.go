// Package engine hosts circuit sessions on a single tick goroutine. Every
// graph mutation reaches that goroutine through Do; storage and script work
// stay off it.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/gyaneshwarpardhi/circuitflow/internal/circuit"
	"github.com/gyaneshwarpardhi/circuitflow/internal/config"
	"github.com/gyaneshwarpardhi/circuitflow/internal/event"
	"github.com/gyaneshwarpardhi/circuitflow/internal/graph"
	"github.com/gyaneshwarpardhi/circuitflow/internal/nodes"
	"github.com/gyaneshwarpardhi/circuitflow/internal/scheduler"
	"github.com/gyaneshwarpardhi/circuitflow/internal/script"
	"github.com/gyaneshwarpardhi/circuitflow/internal/store"
)

var (
	ErrSessionNotFound = errors.New("engine: session not found")
	ErrTooManySessions = errors.New("engine: session limit reached")
	ErrStopped         = errors.New("engine: not running")
	ErrRunning         = errors.New("engine: already running")
)

// Engine drives one scheduler shared by every session.
type Engine struct {
	sched    *scheduler.Scheduler
	bus      *event.Bus
	registry *circuit.Registry
	runner   *script.Runner
	store    store.Store
	logger   *slog.Logger

	interval    atomic.Int64
	historyCap  atomic.Int64
	maxSessions int
	settleMax   int

	// Owned by the tick goroutine.
	sessions map[string]*Session
	settles  []*settleReq

	started atomic.Bool
	done    chan struct{}
}

// New builds an Engine and starts its script workers. The store may be nil,
// in which case Save and Load fail.
func New(ctx context.Context, conf config.EngineConf, st store.Store, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	e := &Engine{
		sched:       scheduler.New(),
		bus:         event.NewBus(),
		registry:    circuit.NewRegistry(),
		runner:      script.NewRunner(ctx, conf.ScriptWorkers, conf.ScriptQueueDepth, conf.ScriptTimeout()),
		store:       st,
		logger:      logger,
		maxSessions: conf.MaxSessions,
		settleMax:   conf.SettleMaxTicks,
		sessions:    make(map[string]*Session),
		done:        make(chan struct{}),
	}
	e.SetTickInterval(conf.TickInterval())
	e.historyCap.Store(int64(conf.HistoryCapacity))

	nodes.Register(e.registry)
	graph.RegisterGateways(e.registry)
	script.Register(e.registry, e.runner)

	e.bus.Subscribe(event.KindAll, e.record)
	return e
}

// Registry returns the node kinds sessions can create.
func (e *Engine) Registry() *circuit.Registry { return e.registry }

// Bus returns the bus every session publishes on.
func (e *Engine) Bus() *event.Bus { return e.bus }

// Run ticks the scheduler until ctx is done. It may be called once.
func (e *Engine) Run(ctx context.Context) error {
	if !e.started.CompareAndSwap(false, true) {
		return ErrRunning
	}
	defer close(e.done)
	e.logger.Info("engine started", "tick_interval", e.TickInterval())
	err := e.sched.RunWithInterval(ctx, e.nextInterval)
	e.logger.Info("engine stopped", "ticks", e.sched.Now())
	if ctx.Err() != nil {
		return nil
	}
	return err
}

// Do runs fn on the tick goroutine and returns its error. If ctx ends first
// Do returns ctx.Err(), and fn may still run later.
func (e *Engine) Do(ctx context.Context, fn func() error) error {
	select {
	case <-e.done:
		return ErrStopped
	default:
	}
	res := make(chan error, 1)
	e.sched.Post(func() { res <- e.call(fn) })
	select {
	case err := <-res:
		return err
	case <-e.done:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (e *Engine) call(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("panic on tick goroutine", "panic", r)
			err = fmt.Errorf("engine: panic: %v", r)
		}
	}()
	return fn()
}

// TickInterval returns the current tick period.
func (e *Engine) TickInterval() time.Duration { return time.Duration(e.interval.Load()) }

// SetTickInterval changes the tick period from the next tick on.
// Non-positive values are ignored.
func (e *Engine) SetTickInterval(d time.Duration) {
	if d <= 0 {
		return
	}
	e.interval.Store(int64(d))
}

// SetHistoryCapacity applies n to every session and to sessions created later.
func (e *Engine) SetHistoryCapacity(ctx context.Context, n int) error {
	if n < 1 {
		return fmt.Errorf("engine: history capacity must be positive, got %d", n)
	}
	e.historyCap.Store(int64(n))
	return e.Do(ctx, func() error {
		for _, s := range e.sessions {
			s.Graph.SetHistoryCapacity(n)
		}
		return nil
	})
}

// QueueUtilization returns async script queue used / capacity (0–1).
func (e *Engine) QueueUtilization() float64 { return e.runner.QueueUtilization() }

// Shutdown closes every session and stops the script workers. Call it after
// Run has returned.
func (e *Engine) Shutdown() {
	e.runner.Close()
	for id := range e.sessions {
		e.closeSession(id)
	}
	e.logger.Info("engine shut down")
}
