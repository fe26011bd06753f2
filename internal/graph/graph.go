// Package graph owns a set of nodes, their persisted form and their history.
// A Graph is not safe for concurrent use; every call must come from the
// goroutine driving its scheduler.
package graph

import (
	"fmt"
	"log/slog"

	"github.com/gyaneshwarpardhi/circuitflow/internal/circuit"
	"github.com/gyaneshwarpardhi/circuitflow/internal/event"
	"github.com/gyaneshwarpardhi/circuitflow/internal/transition"
	"github.com/gyaneshwarpardhi/circuitflow/internal/undo"
)

// DefaultHistoryCapacity bounds the undo history unless overridden.
const DefaultHistoryCapacity = 20

// Option configures a Graph.
type Option func(*Graph)

// WithHistoryCapacity sets the undo depth.
func WithHistoryCapacity(n int) Option {
	return func(g *Graph) { g.historyCapacity = n }
}

// WithoutInitialRecord skips recording the empty graph on construction.
func WithoutInitialRecord() Option {
	return func(g *Graph) { g.recordOnInit = false }
}

// WithGateways enables the external gateway pair with the given port counts.
func WithGateways(inputs, outputs int) Option {
	return func(g *Graph) {
		g.gateways = true
		g.gwIn = boolTypes(inputs)
		g.gwOut = boolTypes(outputs)
	}
}

// Graph is the editable circuit: an ordered node list, the connections
// implied by their ports, and an undo history over serialized snapshots.
type Graph struct {
	host     *circuit.Host
	registry *circuit.Registry
	logger   *slog.Logger

	nodes   []*circuit.Node
	unsubs  map[*circuit.Node]func()
	loading int

	history         *undo.Delegate[[]NodeRecord]
	historyCapacity int
	historyBlocks   int
	recordOnInit    bool
	dirty           bool
	dirtyGen        uint64

	changeListeners []changeListener
	nextListenerID  int

	gateways   bool
	gwIn       []transition.Type
	gwOut      []transition.Type
	extIn      *circuit.Node
	extOut     *circuit.Node
	outputSubs []outputListener
}

type changeListener struct {
	id int
	fn func()
}

// New creates an empty graph bound to host. Gateway behaviors are registered
// on reg when missing.
func New(host *circuit.Host, reg *circuit.Registry, opts ...Option) *Graph {
	RegisterGateways(reg)
	g := &Graph{
		host:            host,
		registry:        reg,
		unsubs:          make(map[*circuit.Node]func()),
		historyCapacity: DefaultHistoryCapacity,
		recordOnInit:    true,
	}
	g.logger = host.Logger
	if g.logger == nil {
		g.logger = slog.Default()
	}
	for _, o := range opts {
		o(g)
	}
	g.history = undo.New(g.Serialize, g.restore, g.historyCapacity, undo.WithRecordAfterClear[[]NodeRecord]())
	if g.gateways {
		g.ensureGateways()
	}
	if g.recordOnInit {
		g.history.Record()
	}
	return g
}

func (g *Graph) Host() *circuit.Host         { return g.host }
func (g *Graph) Registry() *circuit.Registry { return g.registry }
func (g *Graph) Len() int                    { return len(g.nodes) }

// Nodes returns a copy of the node list in serialization order.
func (g *Graph) Nodes() []*circuit.Node {
	return append([]*circuit.Node(nil), g.nodes...)
}

// Node returns the i-th node or nil.
func (g *Graph) Node(i int) *circuit.Node {
	if i < 0 || i >= len(g.nodes) {
		return nil
	}
	return g.nodes[i]
}

// IndexOf returns the position of n, or -1.
func (g *Graph) IndexOf(n *circuit.Node) int {
	for i, m := range g.nodes {
		if m == n {
			return i
		}
	}
	return -1
}

// AddNode builds a node of the registered kind at pos and makes it live.
func (g *Graph) AddNode(kind string, pos circuit.Point) (*circuit.Node, error) {
	b, err := g.registry.New(kind)
	if err != nil {
		return nil, err
	}
	return g.AddBehavior(kind, b, pos), nil
}

// AddBehavior joins a prebuilt behavior as a node of the given kind.
func (g *Graph) AddBehavior(kind string, b circuit.Behavior, pos circuit.Point) *circuit.Node {
	n := circuit.NewNode(g.host, kind, b)
	n.Position = pos
	if err := n.ApplyArgs(nil); err != nil {
		g.logger.Warn("apply default args failed", "node_type", kind, "err", err)
	}
	n.Init()
	g.join(n)
	n.GoLive()
	g.markDirty()
	return n
}

func (g *Graph) join(n *circuit.Node) {
	n.SetReporter(func(*circuit.Node) { g.markDirty() })
	g.unsubs[n] = n.OnRemoved(g.forget)
	g.nodes = append(g.nodes, n)
}

func (g *Graph) forget(n *circuit.Node) {
	delete(g.unsubs, n)
	if i := g.IndexOf(n); i >= 0 {
		g.nodes = append(g.nodes[:i], g.nodes[i+1:]...)
	}
	if n == g.extIn {
		g.extIn = nil
	}
	if n == g.extOut {
		g.extOut = nil
	}
	g.markDirty()
}

func (g *Graph) owns(n *circuit.Node) bool { return n != nil && g.IndexOf(n) >= 0 }

// Connect links out to in after checking both belong to this graph.
func (g *Graph) Connect(out *circuit.OutputPort, in *circuit.InputPort) (*circuit.Connection, error) {
	if !g.owns(out.Node()) || !g.owns(in.Node()) {
		return nil, ErrNotInGraph
	}
	c, err := out.LinkTo(in, nil)
	if err != nil {
		return nil, fmt.Errorf("graph: connect: %w", err)
	}
	g.markDirty()
	return c, nil
}

// ConnectIndex links output port outPort of node from to input port inPort of node to.
func (g *Graph) ConnectIndex(from, outPort, to, inPort int) (*circuit.Connection, error) {
	src, dst := g.Node(from), g.Node(to)
	if src == nil || dst == nil {
		return nil, fmt.Errorf("%w: %d or %d", ErrNodeNotFound, from, to)
	}
	if outPort < 0 || outPort >= src.OutputCount() || inPort < 0 || inPort >= dst.InputCount() {
		return nil, fmt.Errorf("%w: output %d, input %d", ErrPortOutOfRange, outPort, inPort)
	}
	return g.Connect(src.Output(outPort), dst.Input(inPort))
}

// Disconnect tears down the connection attached to p, if any.
func (g *Graph) Disconnect(p circuit.Port) {
	c := p.Connection()
	if c == nil {
		return
	}
	c.Disconnect()
	g.markDirty()
}

// RemoveNode runs n's removal sequence. Gateways cannot be removed.
func (g *Graph) RemoveNode(n *circuit.Node) error {
	if !g.owns(n) {
		return ErrNotInGraph
	}
	if g.isGateway(n) {
		return ErrGatewayRemoval
	}
	n.Remove()
	return nil
}

// DisconnectAll drops every connection and keeps the nodes.
func (g *Graph) DisconnectAll() {
	for _, n := range g.nodes {
		disconnectNode(n)
	}
	g.markDirty()
}

func disconnectNode(n *circuit.Node) {
	for _, p := range n.Inputs() {
		if c := p.Connection(); c != nil {
			c.Disconnect()
		}
	}
	for _, p := range n.Outputs() {
		if c := p.Connection(); c != nil {
			c.Disconnect()
		}
	}
}

// Reset removes every node except the gateways, which are only disconnected.
func (g *Graph) Reset() {
	g.loading++
	for _, n := range g.Nodes() {
		if g.isGateway(n) {
			disconnectNode(n)
			continue
		}
		n.Remove()
	}
	g.loading--
	g.markDirty()
}

func (g *Graph) clear() {
	g.loading++
	for _, n := range g.Nodes() {
		n.Remove()
	}
	g.nodes = g.nodes[:0]
	g.extIn, g.extOut = nil, nil
	g.loading--
}

// OnChanged registers fn to run after each coalesced change. The returned
// function unsubscribes.
func (g *Graph) OnChanged(fn func()) (unsubscribe func()) {
	g.nextListenerID++
	id := g.nextListenerID
	g.changeListeners = append(g.changeListeners, changeListener{id: id, fn: fn})
	return func() {
		for i, l := range g.changeListeners {
			if l.id == id {
				g.changeListeners = append(g.changeListeners[:i:i], g.changeListeners[i+1:]...)
				return
			}
		}
	}
}

func (g *Graph) notifyChanged() {
	for _, l := range append([]changeListener(nil), g.changeListeners...) {
		l.fn()
	}
	g.host.Publish(event.Event{Kind: event.KindGraphChanged, Data: len(g.nodes)})
}

// Close removes every node, gateways included, and clears the history.
func (g *Graph) Close() {
	g.BlockHistory()
	g.gateways = false
	g.clear()
	g.history.Clear()
}
