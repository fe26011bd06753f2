package circuit

import (
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/gyaneshwarpardhi/circuitflow/internal/event"
	"github.com/gyaneshwarpardhi/circuitflow/internal/metrics"
	"github.com/gyaneshwarpardhi/circuitflow/internal/transition"
)

// Lifecycle is the per-node state machine.
type Lifecycle uint8

const (
	Uninitialized Lifecycle = iota
	Initialized             // ports built, args not yet applied
	Deserialized            // args applied, ports being wired
	Live                    // responding to StateUpdate
	Removed                 // terminal
)

var lifecycleNames = [...]string{"uninitialized", "initialized", "deserialized", "live", "removed"}

func (l Lifecycle) String() string {
	if int(l) < len(lifecycleNames) {
		return lifecycleNames[l]
	}
	return fmt.Sprintf("Lifecycle(%d)", uint8(l))
}

type removeListener struct {
	id int
	fn func(*Node)
}

// Node owns its ports and delegates its update rule to a Behavior. Nodes
// never reference each other directly; all interaction goes through ports.
type Node struct {
	Position Point
	Selected bool

	host      *Host
	kind      string
	behavior  Behavior
	inputs    []*InputPort
	outputs   []*OutputPort
	lifecycle Lifecycle
	removing  bool

	listeners []removeListener
	nextID    int
	reporter  func(*Node)
	logger    *slog.Logger
}

// NewNode builds the ports declared by b and leaves the node Initialized.
func NewNode(host *Host, kind string, b Behavior) *Node {
	n := &Node{host: host, kind: kind, behavior: b}
	n.logger = host.log().With("node_type", kind)
	spec := b.Ports()
	n.inputs = make([]*InputPort, 0, len(spec.InputTypes))
	for i, t := range spec.InputTypes {
		n.inputs = append(n.inputs, newInputPort(n, i, portName(spec.InputNames, i, "in"), t))
	}
	initial := n.initialOutputs(spec.OutputTypes)
	n.outputs = make([]*OutputPort, 0, len(spec.OutputTypes))
	for i, t := range spec.OutputTypes {
		n.outputs = append(n.outputs, newOutputPort(n, i, portName(spec.OutputNames, i, "out"), t, initial[i]))
	}
	n.lifecycle = Initialized
	return n
}

func portName(names []string, i int, prefix string) string {
	if i < len(names) && names[i] != "" {
		return names[i]
	}
	return fmt.Sprintf("%s%d", prefix, i)
}

func (n *Node) initialOutputs(types []transition.Type) []transition.Transition {
	if oi, ok := n.behavior.(OutputInitializer); ok {
		if vs := oi.InitialOutputs(types); len(vs) == len(types) {
			return vs
		}
	}
	out := make([]transition.Transition, len(types))
	for i, t := range types {
		out[i] = resetValue(t)
	}
	return out
}

func (n *Node) Type() string               { return n.kind }
func (n *Node) Behavior() Behavior         { return n.behavior }
func (n *Node) Host() *Host                { return n.host }
func (n *Node) Logger() *slog.Logger       { return n.logger }
func (n *Node) Lifecycle() Lifecycle       { return n.lifecycle }
func (n *Node) Inputs() []*InputPort       { return n.inputs }
func (n *Node) Outputs() []*OutputPort     { return n.outputs }
func (n *Node) InputCount() int            { return len(n.inputs) }
func (n *Node) OutputCount() int           { return len(n.outputs) }
func (n *Node) Input(i int) *InputPort     { return n.inputs[i] }
func (n *Node) Output(i int) *OutputPort   { return n.outputs[i] }
func (n *Node) SetReporter(fn func(*Node)) { n.reporter = fn }

// InputStates returns a snapshot of every input state.
func (n *Node) InputStates() []transition.Transition {
	out := make([]transition.Transition, len(n.inputs))
	for i, p := range n.inputs {
		out[i] = p.state
	}
	return out
}

// OutputStates returns a snapshot of every output state.
func (n *Node) OutputStates() []transition.Transition {
	out := make([]transition.Transition, len(n.outputs))
	for i, p := range n.outputs {
		out[i] = p.state
	}
	return out
}

// InputTypes returns the current input port types.
func (n *Node) InputTypes() []transition.Type {
	out := make([]transition.Type, len(n.inputs))
	for i, p := range n.inputs {
		out[i] = p.typ
	}
	return out
}

// OutputTypes returns the current output port types.
func (n *Node) OutputTypes() []transition.Type {
	out := make([]transition.Type, len(n.outputs))
	for i, p := range n.outputs {
		out[i] = p.typ
	}
	return out
}

// Push writes output i, logging instead of failing on a bad value.
func (n *Node) Push(i int, v transition.Transition) {
	if i < 0 || i >= len(n.outputs) {
		n.logger.Error("output index out of range", "index", i, "outputs", len(n.outputs))
		return
	}
	if err := n.outputs[i].SetState(v); err != nil {
		n.logger.Error("output write failed", "index", i, "err", err)
	}
}

// PushAll writes every output from vs as one batch.
func (n *Node) PushAll(vs []transition.Transition) {
	for i, v := range vs {
		if i >= len(n.outputs) {
			break
		}
		n.Push(i, v)
	}
}

// PushAllNull writes a null of the port's type to every output.
func (n *Node) PushAllNull() {
	for i, p := range n.outputs {
		n.Push(i, transition.MustNull(p.typ))
	}
}

// Init runs the Initializer hook on a freshly built node.
func (n *Node) Init() {
	if in, ok := n.behavior.(Initializer); ok {
		in.OnAfterInit(n)
	}
}

// Args returns the serialized node-specific payload, or nil.
func (n *Node) Args() (json.RawMessage, error) {
	ab, ok := n.behavior.(ArgsBehavior)
	if !ok {
		return nil, nil
	}
	raw, err := ab.MarshalArgs()
	if err != nil {
		return nil, fmt.Errorf("node %s: marshal args: %w", n.kind, err)
	}
	return raw, nil
}

// ApplyArgs restores node-specific data, refreshes the port layout and runs
// the ArgsApplied hook.
func (n *Node) ApplyArgs(raw json.RawMessage) error {
	ab, ok := n.behavior.(ArgsBehavior)
	if ok && len(raw) > 0 && string(raw) != "null" {
		if err := ab.UnmarshalArgs(raw); err != nil {
			return fmt.Errorf("node %s: unmarshal args: %w", n.kind, err)
		}
	}
	n.Resize()
	if aa, ok := n.behavior.(ArgsApplied); ok {
		aa.OnAfterSetArgs(n)
	}
	return nil
}

// BeginDeserialize silences input notifications while saved states are restored.
func (n *Node) BeginDeserialize() {
	for _, p := range n.inputs {
		p.deserializing = true
	}
	n.lifecycle = Deserialized
}

// EndDeserialize re-enables input notifications.
func (n *Node) EndDeserialize() {
	for _, p := range n.inputs {
		p.deserializing = false
	}
}

// GoLive makes the node respond to input changes and runs the optional
// initial update.
func (n *Node) GoLive() {
	if n.lifecycle == Removed {
		return
	}
	n.EndDeserialize()
	n.lifecycle = Live
	if iu, ok := n.behavior.(InitialUpdater); ok && iu.WantsInitialUpdate() {
		n.update(StateChange{Index: -1})
	}
}

// Resize reconciles the ports with the behavior's current layout. Surviving
// ports keep their connections unless their type changed.
func (n *Node) Resize() {
	spec := n.behavior.Ports()

	for i, p := range n.inputs {
		if i >= len(spec.InputTypes) {
			if p.conn != nil {
				p.conn.Disconnect()
			}
			p.node = nil
		}
	}
	if len(n.inputs) > len(spec.InputTypes) {
		n.inputs = n.inputs[:len(spec.InputTypes)]
	}
	for i, t := range spec.InputTypes {
		name := portName(spec.InputNames, i, "in")
		if i < len(n.inputs) {
			n.inputs[i].name = name
			n.inputs[i].SetType(t)
			continue
		}
		p := newInputPort(n, i, name, t)
		p.deserializing = n.lifecycle == Deserialized
		n.inputs = append(n.inputs, p)
	}

	for i, p := range n.outputs {
		if i >= len(spec.OutputTypes) {
			if p.conn != nil {
				p.conn.Disconnect()
			}
			p.node = nil
		}
	}
	if len(n.outputs) > len(spec.OutputTypes) {
		n.outputs = n.outputs[:len(spec.OutputTypes)]
	}
	initial := n.initialOutputs(spec.OutputTypes)
	for i, t := range spec.OutputTypes {
		name := portName(spec.OutputNames, i, "out")
		if i < len(n.outputs) {
			n.outputs[i].name = name
			n.outputs[i].SetType(t)
			continue
		}
		n.outputs = append(n.outputs, newOutputPort(n, i, name, t, initial[i]))
	}
}

// ReplayPending runs the ReplayHook and re-pushes outputs whose last write had
// not been flushed when the graph was saved.
func (n *Node) ReplayPending(pending []bool) {
	if rh, ok := n.behavior.(ReplayHook); ok {
		rh.OnBeforeReplayPending(n)
	}
	for i, p := range n.outputs {
		if i < len(pending) && pending[i] {
			if err := p.Replay(); err != nil {
				n.logger.Error("replay pending output failed", "index", i, "err", err)
			}
		}
	}
}

func (n *Node) inputChanged(c StateChange) {
	if n.lifecycle != Live || n.removing {
		return
	}
	n.update(c)
}

func (n *Node) update(c StateChange) {
	metrics.NodeUpdates.WithLabelValues(n.kind).Inc()
	n.behavior.StateUpdate(n, c)
}

// Refresh re-runs the update rule as if input index had changed.
func (n *Node) Refresh() {
	if n.lifecycle != Live || n.removing {
		return
	}
	n.update(StateChange{Index: -1})
}

// SetValue forwards an externally supplied value to a Settable behavior.
func (n *Node) SetValue(port int, v transition.Transition) error {
	s, ok := n.behavior.(Settable)
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotSettable, n.kind)
	}
	if n.lifecycle == Removed {
		return ErrDetached
	}
	return s.SetValue(n, port, v)
}

// ReportChanges tells the owning graph that node-specific data changed and
// should be recorded in history.
func (n *Node) ReportChanges() {
	if n.reporter != nil {
		n.reporter(n)
	}
}

// Sound publishes an audio cue for this node.
func (n *Node) Sound(audioIndex int) {
	if n.host == nil {
		return
	}
	n.host.Publish(event.Event{Kind: event.KindSounded, NodeType: n.kind, Port: audioIndex})
}

// OnRemoved registers fn to run at the end of the removal sequence. The
// returned function unsubscribes.
func (n *Node) OnRemoved(fn func(*Node)) (unsubscribe func()) {
	n.nextID++
	id := n.nextID
	n.listeners = append(n.listeners, removeListener{id: id, fn: fn})
	return func() {
		for i, l := range n.listeners {
			if l.id == id {
				n.listeners = append(n.listeners[:i:i], n.listeners[i+1:]...)
				return
			}
		}
	}
}

// Remove runs the removal sequence: behavior hook, disconnect every port,
// release the ports, notify listeners. Calling it twice is a no-op.
func (n *Node) Remove() {
	if n.lifecycle == Removed || n.removing {
		return
	}
	n.removing = true

	if r, ok := n.behavior.(Remover); ok {
		r.OnRemove(n)
	}

	for _, p := range n.inputs {
		if p.conn != nil {
			p.conn.Disconnect()
		}
	}
	for _, p := range n.outputs {
		if p.conn != nil {
			p.conn.Disconnect()
		}
	}

	for _, p := range n.inputs {
		p.node = nil
	}
	for _, p := range n.outputs {
		p.node = nil
	}
	n.inputs = nil
	n.outputs = nil

	listeners := n.listeners
	n.listeners = nil
	for _, l := range listeners {
		l.fn(n)
	}

	n.lifecycle = Removed
	n.removing = false
	n.host.Publish(event.Event{Kind: event.KindNodeRemoved, NodeType: n.kind})
}
