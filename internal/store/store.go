// Package store persists serialized graphs under a name. Several named
// graphs live side by side, each with its last update time and a free-form
// tag (puzzle test data, a classed node's sub-graph id).
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"time"

	"github.com/gyaneshwarpardhi/circuitflow/internal/graph"
	"github.com/gyaneshwarpardhi/circuitflow/internal/metrics"
)

var (
	ErrNotFound    = errors.New("store: graph not found")
	ErrInvalidName = errors.New("store: invalid graph name")
)

var validName = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._/-]{0,127}$`)

// GraphFile is the persisted form of one graph.
type GraphFile struct {
	Records []graph.NodeRecord `json:"records"`
}

// Entry is one named graph with its metadata.
type Entry struct {
	Name       string    `json:"name"`
	LastUpdate time.Time `json:"last_update"`
	Tag        string    `json:"tag,omitempty"`
	Graph      GraphFile `json:"graph"`
}

// EntryInfo describes a stored graph without its records.
type EntryInfo struct {
	Name       string    `json:"name"`
	LastUpdate time.Time `json:"last_update"`
	Tag        string    `json:"tag,omitempty"`
	Nodes      int       `json:"nodes"`
}

// Info drops the records of e.
func (e *Entry) Info() EntryInfo {
	return EntryInfo{Name: e.Name, LastUpdate: e.LastUpdate, Tag: e.Tag, Nodes: len(e.Graph.Records)}
}

// Store is implemented by every backend. Implementations are safe for
// concurrent use.
type Store interface {
	// Save replaces the graph stored under name and stamps it with the current time.
	Save(ctx context.Context, name string, g GraphFile, tag string) error
	// Load returns ErrNotFound when nothing is stored under name.
	Load(ctx context.Context, name string) (*Entry, error)
	// List returns every stored graph sorted by name.
	List(ctx context.Context) ([]EntryInfo, error)
	// Delete returns ErrNotFound when nothing is stored under name.
	Delete(ctx context.Context, name string) error
	Close() error
}

// ValidateName rejects names that cannot be used as keys in every backend.
func ValidateName(name string) error {
	if !validName.MatchString(name) {
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	return nil
}

func newEntry(name string, g GraphFile, tag string) *Entry {
	return &Entry{Name: name, LastUpdate: time.Now().UTC(), Tag: tag, Graph: g}
}

func encodeEntry(e *Entry) ([]byte, error) {
	data, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("store: encode %s: %w", e.Name, err)
	}
	return data, nil
}

func decodeEntry(name string, data []byte) (*Entry, error) {
	var e Entry
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, fmt.Errorf("store: decode %s: %w", name, err)
	}
	return &e, nil
}

func sortInfos(infos []EntryInfo) {
	sort.Slice(infos, func(i, j int) bool { return infos[i].Name < infos[j].Name })
}

// observe counts a backend call. A missing graph is reported as not_found
// rather than an error.
func observe(backend, op string, err error) {
	status := "ok"
	switch {
	case errors.Is(err, ErrNotFound):
		status = "not_found"
	case err != nil:
		status = "error"
	}
	metrics.StoreOps.WithLabelValues(backend, op, status).Inc()
}
