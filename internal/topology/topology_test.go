package topology_test

import (
	"reflect"
	"testing"

	"github.com/gyaneshwarpardhi/circuitflow/internal/graph"
	"github.com/gyaneshwarpardhi/circuitflow/internal/topology"
)

// chain builds records where each pair (from, to) connects output 0 of from
// to input 0 of to. Only the output side is recorded, as after a partial copy.
func chain(kinds []string, edges ...[2]int) []graph.NodeRecord {
	recs := make([]graph.NodeRecord, len(kinds))
	for i, k := range kinds {
		recs[i] = graph.NodeRecord{Type: k}
	}
	for _, e := range edges {
		r := &recs[e[0]]
		r.OutConnections = append(r.OutConnections, &graph.ConnectionRecord{NodeIndex: e[1], PortIndex: 0})
	}
	return recs
}

func TestBuild_Basics(t *testing.T) {
	recs := chain([]string{"Switch", "Switch", "AND", "Display"}, [2]int{0, 2}, [2]int{1, 2}, [2]int{2, 3})
	// the same edge seen from the input side must not be counted twice
	recs[3].InConnections = []*graph.ConnectionRecord{{NodeIndex: 2, PortIndex: 0}}

	g := topology.Build(recs)
	if g.Len() != 4 {
		t.Fatalf("Len = %d, want 4", g.Len())
	}
	if got := len(g.Edges()); got != 3 {
		t.Errorf("Edges = %d, want 3", got)
	}
	if got := g.Roots(); !reflect.DeepEqual(got, []int{0, 1}) {
		t.Errorf("Roots = %v, want [0 1]", got)
	}
	if got := g.Parents(2); !reflect.DeepEqual(got, []int{0, 1}) {
		t.Errorf("Parents(2) = %v, want [0 1]", got)
	}
	if got := g.Reachable(0); !reflect.DeepEqual(got, []int{2, 3}) {
		t.Errorf("Reachable(0) = %v, want [2 3]", got)
	}
	if g.HasCycle() {
		t.Error("unexpected cycle")
	}
	d, err := g.Depth()
	if err != nil || d != 2 {
		t.Errorf("Depth = %d, %v; want 2, nil", d, err)
	}
}

func TestDepth(t *testing.T) {
	tests := []struct {
		name    string
		n       int
		edges   [][2]int
		want    int
		wantErr bool
	}{
		{"empty", 0, nil, 0, false},
		{"isolated", 3, nil, 0, false},
		{"line", 4, [][2]int{{0, 1}, {1, 2}, {2, 3}}, 3, false},
		{"diamond takes the long arm", 5, [][2]int{{0, 1}, {1, 2}, {2, 4}, {0, 3}, {3, 4}}, 3, false},
		{"loop", 3, [][2]int{{0, 1}, {1, 2}, {2, 1}}, 0, true},
		{"self loop", 1, [][2]int{{0, 0}}, 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := topology.Build(chain(make([]string, tt.n), tt.edges...))
			got, err := g.Depth()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Depth() error = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("Depth() = %d, want %d", got, tt.want)
			}
			if g.HasCycle() != tt.wantErr {
				t.Errorf("HasCycle() = %v, want %v", g.HasCycle(), tt.wantErr)
			}
		})
	}
}

func TestBuild_DropsDanglingEdges(t *testing.T) {
	recs := chain([]string{"Switch", "NOT"}, [2]int{0, 1}, [2]int{0, 7})
	recs[1].InConnections = []*graph.ConnectionRecord{nil, {NodeIndex: -1}}

	g := topology.Build(recs)
	if g.Dropped() != 2 {
		t.Errorf("Dropped = %d, want 2", g.Dropped())
	}
	if len(g.Edges()) != 1 {
		t.Errorf("Edges = %d, want 1", len(g.Edges()))
	}
}

func TestSummarize(t *testing.T) {
	g := topology.Build(chain([]string{"Switch", "NOT", "NOT"}, [2]int{0, 1}, [2]int{1, 2}))
	s := g.Summarize()
	want := topology.Stats{
		Nodes: 3, Edges: 2, Roots: 1, Depth: 2,
		Kinds: map[string]int{"Switch": 1, "NOT": 2},
	}
	if !reflect.DeepEqual(s, want) {
		t.Errorf("Summarize() = %+v, want %+v", s, want)
	}
}
