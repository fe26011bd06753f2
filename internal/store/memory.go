package store

import (
	"context"
	"sync"

	"github.com/gyaneshwarpardhi/circuitflow/internal/graph"
)

// MemoryStore keeps graphs in a map. Entries are copied in and out.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]*Entry
}

// NewMemory returns an empty MemoryStore.
func NewMemory() *MemoryStore {
	return &MemoryStore{entries: make(map[string]*Entry)}
}

func cloneEntry(e *Entry) *Entry {
	out := *e
	out.Graph.Records = graph.CloneRecords(e.Graph.Records)
	return &out
}

func (s *MemoryStore) Save(_ context.Context, name string, g GraphFile, tag string) (err error) {
	defer func() { observe("memory", "save", err) }()
	if err := ValidateName(name); err != nil {
		return err
	}
	e := cloneEntry(newEntry(name, g, tag))
	s.mu.Lock()
	s.entries[name] = e
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) Load(_ context.Context, name string) (e *Entry, err error) {
	defer func() { observe("memory", "load", err) }()
	s.mu.RLock()
	stored, ok := s.entries[name]
	s.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}
	return cloneEntry(stored), nil
}

func (s *MemoryStore) List(context.Context) ([]EntryInfo, error) {
	s.mu.RLock()
	infos := make([]EntryInfo, 0, len(s.entries))
	for _, e := range s.entries {
		infos = append(infos, e.Info())
	}
	s.mu.RUnlock()
	sortInfos(infos)
	observe("memory", "list", nil)
	return infos, nil
}

func (s *MemoryStore) Delete(_ context.Context, name string) (err error) {
	defer func() { observe("memory", "delete", err) }()
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.entries[name]; !ok {
		return ErrNotFound
	}
	delete(s.entries, name)
	return nil
}

func (s *MemoryStore) Close() error { return nil }
