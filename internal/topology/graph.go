// Package topology analyses the wiring of a serialized graph without
// building it: roots, reachability, cycles and how many ticks an acyclic
// circuit needs to settle.
package topology

import (
	"errors"
	"sort"

	"github.com/gyaneshwarpardhi/circuitflow/internal/graph"
)

// ErrCycle is returned by Depth when the wiring contains a feedback loop.
var ErrCycle = errors.New("topology: graph has a cycle")

// Edge is one connection between an output and an input port.
type Edge struct {
	From, FromPort int
	To, ToPort     int
}

// Graph holds node indices and their successor lists. It is immutable once
// built.
type Graph struct {
	kinds    []string
	children [][]int
	parents  [][]int
	edges    []Edge
	dropped  int
}

// Build reads the connections of records. Edges naming a node outside the
// list are skipped and counted in Dropped.
func Build(records []graph.NodeRecord) *Graph {
	g := &Graph{
		kinds:    make([]string, len(records)),
		children: make([][]int, len(records)),
		parents:  make([][]int, len(records)),
	}
	seen := make(map[Edge]bool)
	for i, r := range records {
		g.kinds[i] = r.Type
		for port, c := range r.OutConnections {
			if c == nil {
				continue
			}
			g.addEdge(seen, Edge{From: i, FromPort: port, To: c.NodeIndex, ToPort: c.PortIndex})
		}
		for port, c := range r.InConnections {
			if c == nil {
				continue
			}
			g.addEdge(seen, Edge{From: c.NodeIndex, FromPort: c.PortIndex, To: i, ToPort: port})
		}
	}
	for i := range g.children {
		sort.Ints(g.children[i])
	}
	return g
}

func (g *Graph) addEdge(seen map[Edge]bool, e Edge) {
	if e.From < 0 || e.From >= len(g.kinds) || e.To < 0 || e.To >= len(g.kinds) {
		g.dropped++
		return
	}
	if seen[e] {
		return
	}
	seen[e] = true
	g.edges = append(g.edges, e)
	if !contains(g.children[e.From], e.To) {
		g.children[e.From] = append(g.children[e.From], e.To)
		g.parents[e.To] = append(g.parents[e.To], e.From)
	}
}

func contains(xs []int, x int) bool {
	for _, v := range xs {
		if v == x {
			return true
		}
	}
	return false
}

// Len returns the number of nodes.
func (g *Graph) Len() int { return len(g.kinds) }

// Kind returns the node type of node i.
func (g *Graph) Kind(i int) string { return g.kinds[i] }

// Edges returns every distinct port-to-port connection.
func (g *Graph) Edges() []Edge { return g.edges }

// Dropped returns how many edges pointed outside the record list.
func (g *Graph) Dropped() int { return g.dropped }

// Children returns the direct successors of node i.
func (g *Graph) Children(i int) []int { return g.children[i] }

// Parents returns the direct predecessors of node i.
func (g *Graph) Parents(i int) []int { return g.parents[i] }

// Roots returns the nodes no other node feeds.
func (g *Graph) Roots() []int {
	var roots []int
	for i, ps := range g.parents {
		if len(ps) == 0 {
			roots = append(roots, i)
		}
	}
	return roots
}
