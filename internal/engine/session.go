package engine

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/gyaneshwarpardhi/circuitflow/internal/circuit"
	"github.com/gyaneshwarpardhi/circuitflow/internal/event"
	"github.com/gyaneshwarpardhi/circuitflow/internal/graph"
	"github.com/gyaneshwarpardhi/circuitflow/internal/metrics"
)

// maxSessionEvents bounds the events kept per session.
const maxSessionEvents = 128

// Session is one editable circuit. Its fields must only be touched on the
// tick goroutine, i.e. inside Do or WithSession.
type Session struct {
	ID        string
	Graph     *graph.Graph
	CreatedAt time.Time

	events []event.Event
}

// SessionInfo is the summary of a session returned to callers.
type SessionInfo struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"created_at"`
	Nodes     int       `json:"nodes"`
	CanUndo   bool      `json:"can_undo"`
	CanRedo   bool      `json:"can_redo"`
}

// Info summarizes s.
func (s *Session) Info() SessionInfo {
	h := s.Graph.History()
	return SessionInfo{
		ID:        s.ID,
		CreatedAt: s.CreatedAt,
		Nodes:     s.Graph.Len(),
		CanUndo:   h.CanUndo(),
		CanRedo:   h.CanRedo(),
	}
}

// Events returns the most recent events published by the session's graph,
// oldest first.
func (s *Session) Events() []event.Event {
	return append([]event.Event(nil), s.events...)
}

func (e *Engine) record(ev event.Event) {
	s, ok := e.sessions[ev.GraphID]
	if !ok {
		return
	}
	if len(s.events) == maxSessionEvents {
		copy(s.events, s.events[1:])
		s.events = s.events[:len(s.events)-1]
	}
	s.events = append(s.events, ev)
}

// CreateSession starts a session, optionally from serialized records. When
// some records could not be loaded the session is still created and the
// error wraps graph.ErrPartialLoad.
func (e *Engine) CreateSession(ctx context.Context, records []graph.NodeRecord) (SessionInfo, error) {
	var info SessionInfo
	err := e.Do(ctx, func() error {
		if e.maxSessions > 0 && len(e.sessions) >= e.maxSessions {
			return ErrTooManySessions
		}
		id := uuid.NewString()
		opts := []graph.Option{graph.WithHistoryCapacity(int(e.historyCap.Load()))}
		if len(records) > 0 {
			opts = append(opts, graph.WithoutInitialRecord())
		}
		s := &Session{
			ID:        id,
			Graph:     graph.New(circuit.NewHost(e.sched, e.logger, e.bus, id), e.registry, opts...),
			CreatedAt: time.Now().UTC(),
		}
		e.sessions[id] = s
		metrics.SessionsActive.Set(float64(len(e.sessions)))

		var loadErr error
		if len(records) > 0 {
			loadErr = s.Graph.ApplySerialized(records)
		}
		info = s.Info()
		e.logger.Info("session created", "session", id, "nodes", info.Nodes)
		return loadErr
	})
	if err != nil && !errors.Is(err, graph.ErrPartialLoad) {
		return SessionInfo{}, err
	}
	return info, err
}

// Session looks up a session. It must be called on the tick goroutine.
func (e *Engine) Session(id string) (*Session, error) {
	s, ok := e.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return s, nil
}

// WithSession runs fn with the session on the tick goroutine.
func (e *Engine) WithSession(ctx context.Context, id string, fn func(*Session) error) error {
	return e.Do(ctx, func() error {
		s, err := e.Session(id)
		if err != nil {
			return err
		}
		return fn(s)
	})
}

// CloseSession removes every node of the session and forgets it.
func (e *Engine) CloseSession(ctx context.Context, id string) error {
	return e.Do(ctx, func() error {
		if _, err := e.Session(id); err != nil {
			return err
		}
		e.closeSession(id)
		return nil
	})
}

func (e *Engine) closeSession(id string) {
	s := e.sessions[id]
	delete(e.sessions, id)
	s.Graph.Close()
	metrics.SessionsActive.Set(float64(len(e.sessions)))
	e.logger.Info("session closed", "session", id)
}

// Sessions lists every session, oldest first.
func (e *Engine) Sessions(ctx context.Context) ([]SessionInfo, error) {
	var out []SessionInfo
	err := e.Do(ctx, func() error {
		out = make([]SessionInfo, 0, len(e.sessions))
		for _, s := range e.sessions {
			out = append(out, s.Info())
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, err
}
