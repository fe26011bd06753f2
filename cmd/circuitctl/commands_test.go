package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gyaneshwarpardhi/circuitflow/internal/graph"
	"github.com/gyaneshwarpardhi/circuitflow/internal/store"
	"github.com/gyaneshwarpardhi/circuitflow/internal/topology"
)

func writeConfig(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "circuitflow.yaml")
	body := "version: v1\nstore:\n  backend: badger\n  badger:\n    path: " + filepath.Join(dir, "graphs") + "\n"
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func writeContainer(t *testing.T) string {
	t.Helper()
	chain := store.GraphFile{Records: []graph.NodeRecord{
		{Type: "Switch", OutConnections: []*graph.ConnectionRecord{{NodeIndex: 1, PortIndex: 0}}},
		{Type: "NOT", InConnections: []*graph.ConnectionRecord{{NodeIndex: 0, PortIndex: 0}}},
	}}
	loop := store.GraphFile{Records: []graph.NodeRecord{
		{Type: "OR", OutConnections: []*graph.ConnectionRecord{{NodeIndex: 0, PortIndex: 1}}},
	}}
	data, err := json.Marshal(store.Container{Entries: []store.Entry{
		{Name: "chain", Tag: "t1", Graph: chain},
		{Name: "loop", Graph: loop},
	}})
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "graphs.json")
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return path
}

func run(t *testing.T, cfg string, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	err := execute(append([]string{"--config", cfg}, args...), strings.NewReader(""), &out)
	return out.String(), err
}

func TestCircuitctl(t *testing.T) {
	cfg := writeConfig(t)

	out, err := run(t, cfg, "list")
	require.NoError(t, err)
	assert.Contains(t, out, "no graphs stored")

	out, err = run(t, cfg, "import", writeContainer(t))
	require.NoError(t, err)
	assert.Contains(t, out, "imported 2 graphs")

	out, err = run(t, cfg, "list")
	require.NoError(t, err)
	assert.Contains(t, out, "chain")
	assert.Contains(t, out, "loop")
	assert.Contains(t, out, "t1")

	out, err = run(t, cfg, "show", "chain")
	require.NoError(t, err)
	var e store.Entry
	require.NoError(t, json.Unmarshal([]byte(out), &e))
	assert.Len(t, e.Graph.Records, 2)

	out, err = run(t, cfg, "inspect", "chain", "--json")
	require.NoError(t, err)
	var stats topology.Stats
	require.NoError(t, json.Unmarshal([]byte(out), &stats))
	assert.Equal(t, 2, stats.Nodes)
	assert.Equal(t, 1, stats.Edges)
	assert.Equal(t, 1, stats.Depth)
	assert.False(t, stats.Cyclic)

	out, err = run(t, cfg, "inspect", "loop")
	require.NoError(t, err)
	assert.Contains(t, out, "cyclic")
	assert.Contains(t, out, "OR=1")

	exported := filepath.Join(t.TempDir(), "out.json")
	out, err = run(t, cfg, "export", "chain", "-o", exported)
	require.NoError(t, err)
	assert.Contains(t, out, "exported 1 graphs")
	data, err := os.ReadFile(exported)
	require.NoError(t, err)
	var c store.Container
	require.NoError(t, json.Unmarshal(data, &c))
	require.Len(t, c.Entries, 1)
	assert.Equal(t, "chain", c.Entries[0].Name)

	out, err = run(t, cfg, "delete", "chain")
	require.NoError(t, err)
	assert.Contains(t, out, "deleted chain")

	_, err = run(t, cfg, "show", "chain")
	assert.ErrorIs(t, err, store.ErrNotFound)
	_, err = run(t, cfg, "delete", "chain")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestCircuitctl_BadConfig(t *testing.T) {
	_, err := run(t, filepath.Join(t.TempDir(), "missing.yaml"), "list")
	assert.Error(t, err)
}

func TestFormatKinds(t *testing.T) {
	assert.Equal(t, "AND=2 NOT=1", formatKinds(map[string]int{"NOT": 1, "AND": 2}))
	assert.Equal(t, "", formatKinds(nil))
}
