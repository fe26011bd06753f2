package graph

import (
	"encoding/json"
	"fmt"

	"github.com/gyaneshwarpardhi/circuitflow/internal/circuit"
	"github.com/gyaneshwarpardhi/circuitflow/internal/event"
	"github.com/gyaneshwarpardhi/circuitflow/internal/transition"
)

const (
	KindExternalInput  = "ExternalInput"
	KindExternalOutput = "ExternalOutput"

	defaultGatewayPorts = 2
	maxGatewayPorts     = 16
)

// RegisterGateways adds the gateway kinds to reg unless already present.
func RegisterGateways(reg *circuit.Registry) {
	if !reg.Has(KindExternalInput) {
		reg.Register(KindExternalInput, func() circuit.Behavior {
			return &externalInput{types: boolTypes(defaultGatewayPorts)}
		})
	}
	if !reg.Has(KindExternalOutput) {
		reg.Register(KindExternalOutput, func() circuit.Behavior {
			return &externalOutput{types: boolTypes(defaultGatewayPorts)}
		})
	}
}

func isGatewayKind(kind string) bool {
	return kind == KindExternalInput || kind == KindExternalOutput
}

func boolTypes(n int) []transition.Type {
	out := make([]transition.Type, n)
	for i := range out {
		out[i] = transition.Bool
	}
	return out
}

type gatewayArgs struct {
	Types []transition.Type `json:"types"`
}

// decodeGatewayTypes rejects port lists that cannot be built.
func decodeGatewayTypes(data json.RawMessage) ([]transition.Type, error) {
	var a gatewayArgs
	if err := json.Unmarshal(data, &a); err != nil {
		return nil, err
	}
	if len(a.Types) > maxGatewayPorts {
		return nil, fmt.Errorf("at most %d gateway ports, got %d", maxGatewayPorts, len(a.Types))
	}
	for i, t := range a.Types {
		if t == transition.None || !t.Valid() {
			return nil, fmt.Errorf("gateway port %d has no type", i)
		}
	}
	return a.Types, nil
}

func gatewayNames(prefix string, n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = fmt.Sprintf("%s %d", prefix, i)
	}
	return out
}

// externalInput exposes values written from outside the graph on its outputs.
type externalInput struct {
	types []transition.Type
}

func (e *externalInput) Ports() circuit.PortSpec {
	return circuit.PortSpec{OutputNames: gatewayNames("in", len(e.types)), OutputTypes: e.types}
}

func (e *externalInput) StateUpdate(*circuit.Node, circuit.StateChange) {}

func (e *externalInput) SetValue(n *circuit.Node, port int, v transition.Transition) error {
	if port < 0 || port >= n.OutputCount() {
		return fmt.Errorf("%w: %d", ErrGatewayIndex, port)
	}
	return n.Output(port).SetState(v)
}

func (e *externalInput) MarshalArgs() (json.RawMessage, error) {
	return json.Marshal(gatewayArgs{Types: e.types})
}

func (e *externalInput) UnmarshalArgs(data json.RawMessage) error {
	ts, err := decodeGatewayTypes(data)
	if err != nil {
		return err
	}
	e.types = ts
	return nil
}

// externalOutput reports every change on its inputs to the graph's listeners.
type externalOutput struct {
	types []transition.Type
	emit  func(int, transition.Transition)
}

func (e *externalOutput) Ports() circuit.PortSpec {
	return circuit.PortSpec{InputNames: gatewayNames("out", len(e.types)), InputTypes: e.types}
}

func (e *externalOutput) StateUpdate(_ *circuit.Node, c circuit.StateChange) {
	if c.Index >= 0 && e.emit != nil {
		e.emit(c.Index, c.State)
	}
}

func (e *externalOutput) MarshalArgs() (json.RawMessage, error) {
	return json.Marshal(gatewayArgs{Types: e.types})
}

func (e *externalOutput) UnmarshalArgs(data json.RawMessage) error {
	ts, err := decodeGatewayTypes(data)
	if err != nil {
		return err
	}
	e.types = ts
	return nil
}

type outputListener struct {
	id int
	fn func(int, transition.Transition)
}

func (g *Graph) isGateway(n *circuit.Node) bool {
	return n != nil && (n == g.extIn || n == g.extOut)
}

// ensureGateways keeps exactly one gateway of each kind, removing duplicates
// and creating missing ones with the configured port types.
func (g *Graph) ensureGateways() {
	g.loading++
	defer func() { g.loading-- }()

	var ins, outs []*circuit.Node
	for _, n := range g.nodes {
		switch n.Type() {
		case KindExternalInput:
			ins = append(ins, n)
		case KindExternalOutput:
			outs = append(outs, n)
		}
	}
	for _, n := range tail(ins) {
		n.Remove()
	}
	for _, n := range tail(outs) {
		n.Remove()
	}

	if len(ins) > 0 {
		g.extIn = ins[0]
		g.gwIn = ins[0].OutputTypes()
	} else {
		g.extIn = g.addGateway(KindExternalInput, &externalInput{types: cloneTypes(g.gwIn)}, circuit.Point{X: -10})
	}
	if len(outs) > 0 {
		g.extOut = outs[0]
		g.gwOut = outs[0].InputTypes()
	} else {
		g.extOut = g.addGateway(KindExternalOutput, &externalOutput{types: cloneTypes(g.gwOut)}, circuit.Point{X: 10})
	}
	if eo, ok := g.extOut.Behavior().(*externalOutput); ok {
		eo.emit = g.emitExternal
	}
}

func tail(ns []*circuit.Node) []*circuit.Node {
	if len(ns) < 2 {
		return nil
	}
	return ns[1:]
}

func cloneTypes(ts []transition.Type) []transition.Type {
	return append([]transition.Type(nil), ts...)
}

func (g *Graph) addGateway(kind string, b circuit.Behavior, pos circuit.Point) *circuit.Node {
	n := circuit.NewNode(g.host, kind, b)
	n.Position = pos
	n.Init()
	g.join(n)
	n.GoLive()
	return n
}

// EnableGateways turns on the gateway pair with Bool ports.
func (g *Graph) EnableGateways(inputs, outputs int) {
	g.ConfigureGateways(boolTypes(inputs), boolTypes(outputs))
}

// ConfigureGateways turns on the gateway pair and sets their port types.
// Connections on ports whose type changed are dropped.
func (g *Graph) ConfigureGateways(inputs, outputs []transition.Type) {
	g.gateways = true
	g.gwIn = cloneTypes(inputs)
	g.gwOut = cloneTypes(outputs)
	g.ensureGateways()

	if ei, ok := g.extIn.Behavior().(*externalInput); ok {
		ei.types = cloneTypes(inputs)
		g.extIn.Resize()
	}
	if eo, ok := g.extOut.Behavior().(*externalOutput); ok {
		eo.types = cloneTypes(outputs)
		g.extOut.Resize()
	}
	g.gwIn = g.extIn.OutputTypes()
	g.gwOut = g.extOut.InputTypes()
	g.markDirty()
}

// GatewaysEnabled reports whether the gateway pair is maintained.
func (g *Graph) GatewaysEnabled() bool { return g.gateways }

// GatewayTypes returns the current port types of the gateway pair.
func (g *Graph) GatewayTypes() (inputs, outputs []transition.Type) {
	return cloneTypes(g.gwIn), cloneTypes(g.gwOut)
}

func (g *Graph) ExternalInputNode() *circuit.Node  { return g.extIn }
func (g *Graph) ExternalOutputNode() *circuit.Node { return g.extOut }

// SetExternalInput drives gateway input i from outside the graph.
func (g *Graph) SetExternalInput(i int, v transition.Transition) error {
	if !g.gateways {
		return ErrGatewaysDisabled
	}
	if g.extIn == nil {
		g.ensureGateways()
	}
	return g.extIn.SetValue(i, v)
}

// ExternalOutputStates returns the values currently arriving at the output gateway.
func (g *Graph) ExternalOutputStates() []transition.Transition {
	if g.extOut == nil {
		return nil
	}
	return g.extOut.InputStates()
}

// OnExternalOutput registers fn for every change arriving at the output
// gateway. The returned function unsubscribes.
func (g *Graph) OnExternalOutput(fn func(index int, v transition.Transition)) (unsubscribe func()) {
	g.nextListenerID++
	id := g.nextListenerID
	g.outputSubs = append(g.outputSubs, outputListener{id: id, fn: fn})
	return func() {
		for i, l := range g.outputSubs {
			if l.id == id {
				g.outputSubs = append(g.outputSubs[:i:i], g.outputSubs[i+1:]...)
				return
			}
		}
	}
}

func (g *Graph) emitExternal(i int, v transition.Transition) {
	for _, l := range append([]outputListener(nil), g.outputSubs...) {
		l.fn(i, v)
	}
	g.host.Publish(event.Event{Kind: event.KindGatewayOutput, Port: i, Value: v})
}
