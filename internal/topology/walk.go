package topology

const (
	white = iota
	grey
	black
)

// HasCycle reports whether any node can reach itself.
func (g *Graph) HasCycle() bool {
	color := make([]int, g.Len())
	var visit func(int) bool
	visit = func(i int) bool {
		color[i] = grey
		for _, c := range g.children[i] {
			switch color[c] {
			case grey:
				return true
			case white:
				if visit(c) {
					return true
				}
			}
		}
		color[i] = black
		return false
	}
	for i := range color {
		if color[i] == white && visit(i) {
			return true
		}
	}
	return false
}

// Reachable returns every node downstream of i, excluding i unless it lies
// on a cycle through itself. The result is in ascending order.
func (g *Graph) Reachable(i int) []int {
	if i < 0 || i >= g.Len() {
		return nil
	}
	seen := make([]bool, g.Len())
	stack := append([]int(nil), g.children[i]...)
	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if seen[n] {
			continue
		}
		seen[n] = true
		stack = append(stack, g.children[n]...)
	}
	var out []int
	for n, ok := range seen {
		if ok {
			out = append(out, n)
		}
	}
	return out
}

// Depth returns the longest path, in hops, from any root. Every hop costs one
// tick, so an acyclic circuit settles Depth ticks after its roots change.
func (g *Graph) Depth() (int, error) {
	order, ok := g.order()
	if !ok {
		return 0, ErrCycle
	}
	dist := make([]int, g.Len())
	best := 0
	for _, n := range order {
		for _, c := range g.children[n] {
			if d := dist[n] + 1; d > dist[c] {
				dist[c] = d
				if d > best {
					best = d
				}
			}
		}
	}
	return best, nil
}

// order is Kahn's topological sort. ok is false when a cycle remains.
func (g *Graph) order() (order []int, ok bool) {
	indeg := make([]int, g.Len())
	for i := range g.parents {
		indeg[i] = len(g.parents[i])
	}
	queue := g.Roots()
	for len(queue) > 0 {
		n := queue[0]
		queue = queue[1:]
		order = append(order, n)
		for _, c := range g.children[n] {
			indeg[c]--
			if indeg[c] == 0 {
				queue = append(queue, c)
			}
		}
	}
	return order, len(order) == g.Len()
}

// Stats summarises a graph for display.
type Stats struct {
	Nodes   int            `json:"nodes"`
	Edges   int            `json:"edges"`
	Roots   int            `json:"roots"`
	Depth   int            `json:"depth"`
	Cyclic  bool           `json:"cyclic"`
	Dropped int            `json:"dropped_edges"`
	Kinds   map[string]int `json:"kinds"`
}

// Summarize collects Stats. Depth is zero for cyclic graphs.
func (g *Graph) Summarize() Stats {
	s := Stats{
		Nodes:   g.Len(),
		Edges:   len(g.edges),
		Roots:   len(g.Roots()),
		Cyclic:  g.HasCycle(),
		Dropped: g.dropped,
		Kinds:   make(map[string]int),
	}
	for _, k := range g.kinds {
		s.Kinds[k]++
	}
	if d, err := g.Depth(); err == nil {
		s.Depth = d
	}
	return s
}
