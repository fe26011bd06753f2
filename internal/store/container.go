package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

// Container is the portable form of several named graphs, used to move
// graphs between stores.
type Container struct {
	Entries []Entry `json:"entries"`
}

// ExportContainer writes the named graphs as one JSON container. With no
// names, every stored graph is exported.
func ExportContainer(ctx context.Context, s Store, w io.Writer, names ...string) (int, error) {
	if len(names) == 0 {
		infos, err := s.List(ctx)
		if err != nil {
			return 0, err
		}
		for _, info := range infos {
			names = append(names, info.Name)
		}
	}
	c := Container{Entries: make([]Entry, 0, len(names))}
	for _, name := range names {
		e, err := s.Load(ctx, name)
		if err != nil {
			return 0, fmt.Errorf("export %s: %w", name, err)
		}
		c.Entries = append(c.Entries, *e)
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(c); err != nil {
		return 0, fmt.Errorf("export: %w", err)
	}
	return len(c.Entries), nil
}

// ImportContainer saves every entry of a JSON container into s. Entries get
// a fresh last-update time. All entries are attempted; the returned error
// joins the failures.
func ImportContainer(ctx context.Context, s Store, r io.Reader) (int, error) {
	var c Container
	if err := json.NewDecoder(r).Decode(&c); err != nil {
		return 0, fmt.Errorf("import: %w", err)
	}
	var (
		n    int
		errs []error
	)
	for _, e := range c.Entries {
		if err := s.Save(ctx, e.Name, e.Graph, e.Tag); err != nil {
			errs = append(errs, fmt.Errorf("import %s: %w", e.Name, err))
			continue
		}
		n++
	}
	return n, errors.Join(errs...)
}
