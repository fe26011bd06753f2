package graph

import (
	"fmt"
	"log/slog"

	"github.com/gyaneshwarpardhi/circuitflow/internal/circuit"
	"github.com/gyaneshwarpardhi/circuitflow/internal/metrics"
	"github.com/gyaneshwarpardhi/circuitflow/internal/transition"
)

// Serialize captures every node in list order.
func (g *Graph) Serialize() []NodeRecord {
	if g.gateways {
		g.ensureGateways()
	}
	index := make(map[*circuit.Node]int, len(g.nodes))
	for i, n := range g.nodes {
		index[n] = i
	}
	out := make([]NodeRecord, 0, len(g.nodes))
	for _, n := range g.nodes {
		rec, err := recordNode(n, index)
		if err != nil {
			g.logger.Error("serialize node args failed", "node_type", n.Type(), "err", err)
		}
		out = append(out, rec)
	}
	return out
}

// SerializeSubset captures nodes in the given order, keeping only the edges
// between members of the subset. Inputs that lose their edge are stored null.
func (g *Graph) SerializeSubset(nodes []*circuit.Node) ([]NodeRecord, error) {
	index := make(map[*circuit.Node]int, len(nodes))
	for i, n := range nodes {
		if !g.owns(n) {
			return nil, ErrNotInGraph
		}
		index[n] = i
	}
	out := make([]NodeRecord, 0, len(nodes))
	for _, n := range nodes {
		rec, err := recordNode(n, index)
		if err != nil {
			return nil, fmt.Errorf("graph: serialize subset: %w", err)
		}
		out = append(out, rec)
	}
	return out, nil
}

// ApplySerialized replaces the whole graph with records. Bad edges and unknown
// node types are skipped; the returned error wraps ErrPartialLoad when that
// happened, and the graph is usable either way.
func (g *Graph) ApplySerialized(records []NodeRecord) error {
	err := g.replace(records)
	g.markDirty()
	return err
}

// AppendSerialized adds records next to the existing nodes, shifted by offset,
// and returns the new nodes. Gateway records are ignored.
func (g *Graph) AppendSerialized(records []NodeRecord, offset circuit.Point) ([]*circuit.Node, error) {
	recs := withoutKinds(records, isGatewayKind)
	for i := range recs {
		recs[i].Position.X += offset.X
		recs[i].Position.Y += offset.Y
	}
	g.loading++
	created, err := g.load(recs)
	g.loading--
	g.markDirty()

	out := make([]*circuit.Node, 0, len(created))
	for _, n := range created {
		if n != nil {
			out = append(out, n)
		}
	}
	return out, err
}

func (g *Graph) replace(records []NodeRecord) error {
	g.loading++
	defer func() { g.loading-- }()
	g.clear()
	_, err := g.load(records)
	if g.gateways {
		g.ensureGateways()
	}
	return err
}

// load builds records in two phases: every node first, then every edge, so
// that edges may point forward in the list. The returned slice is parallel to
// records with nil for skipped entries.
func (g *Graph) load(records []NodeRecord) ([]*circuit.Node, error) {
	created := make([]*circuit.Node, len(records))
	skipped := 0

	for i, rec := range records {
		b, err := g.registry.New(rec.Type)
		if err != nil {
			g.logger.Warn("skipping record", "index", i, "node_type", rec.Type, "err", err)
			skipped++
			continue
		}
		n := circuit.NewNode(g.host, rec.Type, b)
		n.Position = rec.Position
		if err := n.ApplyArgs(rec.Args); err != nil {
			g.logger.Warn("record args rejected, using defaults", "index", i, "node_type", rec.Type, "err", err)
			_ = n.ApplyArgs(nil)
		}
		n.Init()
		n.BeginDeserialize()
		restorePorts(n, rec, g.logger)
		g.join(n)
		created[i] = n
	}

	var blocked []circuit.Port
	for i, n := range created {
		if n == nil {
			continue
		}
		blocked = append(blocked, g.wireInputs(n, records[i].InConnections, created)...)
		blocked = append(blocked, g.wireOutputs(n, records[i].OutConnections, created)...)
	}

	for i, n := range created {
		if n != nil {
			n.ReplayPending(records[i].StatePending)
		}
	}
	for _, p := range blocked {
		p.SetBlockConnect(false)
	}
	for _, n := range created {
		if n != nil {
			n.GoLive()
		}
	}

	if skipped > 0 {
		return created, fmt.Errorf("%w: %d of %d", ErrPartialLoad, skipped, len(records))
	}
	return created, nil
}

func restorePorts(n *circuit.Node, rec NodeRecord, logger *slog.Logger) {
	for j, t := range rec.InTypes {
		if j < n.InputCount() && t != transition.None && t.Valid() {
			n.Input(j).SetType(t)
		}
	}
	for j, t := range rec.OutTypes {
		if j < n.OutputCount() && t != transition.None && t.Valid() {
			n.Output(j).SetType(t)
		}
	}
	for j, v := range rec.InStates {
		if j >= n.InputCount() {
			break
		}
		if err := n.Input(j).SetState(v); err != nil {
			logger.Debug("saved input state ignored", "node_type", n.Type(), "port", j, "err", err)
		}
	}
	for j, v := range rec.OutStates {
		if j >= n.OutputCount() {
			break
		}
		if err := n.Output(j).SetState(v); err != nil {
			logger.Debug("saved output state ignored", "node_type", n.Type(), "port", j, "err", err)
		}
	}
}

// wireInputs restores the edges recorded on n's inputs. When the saved list
// does not match the live port count the whole group is disconnected and
// blocked until the load completes; the blocked ports are returned.
func (g *Graph) wireInputs(n *circuit.Node, conns []*ConnectionRecord, created []*circuit.Node) []circuit.Port {
	ports := n.Inputs()
	if len(conns) != len(ports) {
		g.logger.Warn("input edge count mismatch, blocking ports", "node_type", n.Type(), "saved", len(conns), "live", len(ports))
		group := make([]circuit.Port, len(ports))
		for i, p := range ports {
			group[i] = p
		}
		return blockGroup(group)
	}
	for j, cr := range conns {
		if cr == nil || ports[j].Connection() != nil {
			continue
		}
		far := lookup(created, cr.NodeIndex)
		if far == nil || cr.PortIndex < 0 || cr.PortIndex >= far.OutputCount() {
			g.dropEdge(n, "input", j, cr)
			continue
		}
		g.link(ports[j], far.Output(cr.PortIndex), cr.Vertices)
	}
	return nil
}

// wireOutputs is the output-side twin of wireInputs.
func (g *Graph) wireOutputs(n *circuit.Node, conns []*ConnectionRecord, created []*circuit.Node) []circuit.Port {
	ports := n.Outputs()
	if len(conns) != len(ports) {
		g.logger.Warn("output edge count mismatch, blocking ports", "node_type", n.Type(), "saved", len(conns), "live", len(ports))
		group := make([]circuit.Port, len(ports))
		for i, p := range ports {
			group[i] = p
		}
		return blockGroup(group)
	}
	for j, cr := range conns {
		if cr == nil || ports[j].Connection() != nil {
			continue
		}
		far := lookup(created, cr.NodeIndex)
		if far == nil || cr.PortIndex < 0 || cr.PortIndex >= far.InputCount() {
			g.dropEdge(n, "output", j, cr)
			continue
		}
		g.link(ports[j], far.Input(cr.PortIndex), cr.Vertices)
	}
	return nil
}

func blockGroup(ports []circuit.Port) []circuit.Port {
	for _, p := range ports {
		if c := p.Connection(); c != nil {
			c.Disconnect()
		}
		p.SetBlockConnect(true)
	}
	return ports
}

func lookup(created []*circuit.Node, i int) *circuit.Node {
	if i < 0 || i >= len(created) {
		return nil
	}
	return created[i]
}

// link restores one edge without scheduling a flush; both ends already hold
// their saved states.
func (g *Graph) link(from, to circuit.Port, vertices []circuit.Point) {
	c := circuit.NewConnection(g.host)
	c.SetDisableFlush(true)
	_, err := from.LinkTo(to, c)
	c.SetDisableFlush(false)
	if err != nil {
		metrics.EdgesDropped.Inc()
		g.logger.Warn("saved edge rejected", "node_type", from.Node().Type(), "port", from.Index(), "err", err)
		return
	}
	if c.Disconnected() {
		return
	}
	if len(vertices) >= 2 {
		_ = c.SetLineEdges(vertices)
	}
}

func (g *Graph) dropEdge(n *circuit.Node, side string, port int, cr *ConnectionRecord) {
	metrics.EdgesDropped.Inc()
	g.logger.Warn("dropping edge with unresolved endpoint",
		"node_type", n.Type(), "side", side, "port", port,
		"target_node", cr.NodeIndex, "target_port", cr.PortIndex)
}
