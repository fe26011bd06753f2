package engine

import (
	"context"
	"errors"
	"time"

	"github.com/gyaneshwarpardhi/circuitflow/internal/topology"
)

// SettleResult reports how a Settle call ended.
type SettleResult struct {
	Ticks  int  `json:"ticks"`
	Idle   bool `json:"idle"`
	Depth  int  `json:"depth"`
	Cyclic bool `json:"cyclic"`
}

type settleReq struct {
	max  int
	res  SettleResult
	done chan SettleResult
}

// Settle runs ticks back to back until the scheduler is idle or limit ticks
// have passed. With limit <= 0 the bound is the session's topological depth
// plus one, or the configured ceiling for cyclic circuits. The scheduler is
// shared, so other sessions advance too.
func (e *Engine) Settle(ctx context.Context, id string, limit int) (SettleResult, error) {
	req := &settleReq{done: make(chan SettleResult, 1)}
	err := e.WithSession(ctx, id, func(s *Session) error {
		depth, err := topology.Build(s.Graph.Serialize()).Depth()
		req.res.Depth = depth
		req.res.Cyclic = errors.Is(err, topology.ErrCycle)
		req.max = e.settleBound(limit, depth, req.res.Cyclic)
		e.settles = append(e.settles, req)
		return nil
	})
	if err != nil {
		return SettleResult{}, err
	}
	select {
	case res := <-req.done:
		return res, nil
	case <-e.done:
		return SettleResult{}, ErrStopped
	case <-ctx.Done():
		return SettleResult{}, ctx.Err()
	}
}

func (e *Engine) settleBound(limit, depth int, cyclic bool) int {
	if limit <= 0 {
		limit = depth + 1
		if cyclic {
			limit = e.settleMax
		}
	}
	if e.settleMax > 0 && limit > e.settleMax {
		limit = e.settleMax
	}
	return limit
}

// nextInterval is read by the tick loop after every tick. While a settle is
// in progress the next tick is due at once.
func (e *Engine) nextInterval() time.Duration {
	if len(e.settles) == 0 {
		return e.TickInterval()
	}
	idle := e.sched.Idle()
	keep := e.settles[:0]
	for _, r := range e.settles {
		if idle || r.res.Ticks >= r.max {
			r.res.Idle = idle
			r.done <- r.res
			continue
		}
		r.res.Ticks++
		keep = append(keep, r)
	}
	clear(e.settles[len(keep):])
	e.settles = keep
	if len(keep) > 0 {
		return 0
	}
	return e.TickInterval()
}
