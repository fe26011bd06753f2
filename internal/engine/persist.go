package engine

import (
	"context"
	"errors"

	"github.com/gyaneshwarpardhi/circuitflow/internal/graph"
	"github.com/gyaneshwarpardhi/circuitflow/internal/store"
)

var errNoStore = errors.New("engine: no graph store configured")

// Save writes the session's graph to the store under name. Serialization
// happens on the tick goroutine, the write does not.
func (e *Engine) Save(ctx context.Context, id, name, tag string) (int, error) {
	if e.store == nil {
		return 0, errNoStore
	}
	if err := store.ValidateName(name); err != nil {
		return 0, err
	}
	var g store.GraphFile
	err := e.WithSession(ctx, id, func(s *Session) error {
		g.Records = s.Graph.Serialize()
		return nil
	})
	if err != nil {
		return 0, err
	}
	if err := e.store.Save(ctx, name, g, tag); err != nil {
		return 0, err
	}
	e.logger.Info("graph saved", "session", id, "name", name, "nodes", len(g.Records))
	return len(g.Records), nil
}

// Load replaces the session's graph with the stored one. The replacement is
// one undoable change. A partial load returns an error wrapping
// graph.ErrPartialLoad and leaves the loaded part in place.
func (e *Engine) Load(ctx context.Context, id, name string) (*store.Entry, error) {
	entry, err := e.fetch(ctx, name)
	if err != nil {
		return nil, err
	}
	err = e.WithSession(ctx, id, func(s *Session) error {
		return s.Graph.ApplySerialized(entry.Graph.Records)
	})
	if err != nil && !errors.Is(err, graph.ErrPartialLoad) {
		return nil, err
	}
	e.logger.Info("graph loaded", "session", id, "name", name, "nodes", len(entry.Graph.Records))
	return entry, err
}

// Open creates a session from a stored graph.
func (e *Engine) Open(ctx context.Context, name string) (SessionInfo, error) {
	entry, err := e.fetch(ctx, name)
	if err != nil {
		return SessionInfo{}, err
	}
	return e.CreateSession(ctx, entry.Graph.Records)
}

// Graphs lists the stored graphs.
func (e *Engine) Graphs(ctx context.Context) ([]store.EntryInfo, error) {
	if e.store == nil {
		return nil, errNoStore
	}
	return e.store.List(ctx)
}

func (e *Engine) fetch(ctx context.Context, name string) (*store.Entry, error) {
	if e.store == nil {
		return nil, errNoStore
	}
	return e.store.Load(ctx, name)
}
