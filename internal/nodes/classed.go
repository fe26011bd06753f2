package nodes

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/gyaneshwarpardhi/circuitflow/internal/circuit"
	"github.com/gyaneshwarpardhi/circuitflow/internal/graph"
	"github.com/gyaneshwarpardhi/circuitflow/internal/transition"
)

// Classed is a composite node: it owns a nested graph whose gateways mirror
// the node's ports. Input changes drive the inner ExternalInput; changes at
// the inner ExternalOutput are written to the node's outputs.
type Classed struct {
	reg *circuit.Registry

	id      string
	inTypes []transition.Type
	outTyps []transition.Type
	records []graph.NodeRecord

	node  *circuit.Node
	inner *graph.Graph
	unsub func()
}

type classedArgs struct {
	ID      string             `json:"id"`
	Inputs  []transition.Type  `json:"inputs"`
	Outputs []transition.Type  `json:"outputs"`
	Records []graph.NodeRecord `json:"records,omitempty"`
}

func newClassed(reg *circuit.Registry) *Classed {
	return &Classed{
		reg:     reg,
		inTypes: repeat(transition.Bool, 2),
		outTyps: repeat(transition.Bool, 1),
	}
}

func (c *Classed) Ports() circuit.PortSpec {
	return circuit.PortSpec{
		InputNames:  numbered("in", len(c.inTypes)),
		InputTypes:  c.inTypes,
		OutputNames: numbered("out", len(c.outTyps)),
		OutputTypes: c.outTyps,
	}
}

// ID identifies the nested graph.
func (c *Classed) ID() string { return c.id }

// Inner returns the nested graph, or nil before the node was initialized.
func (c *Classed) Inner() *graph.Graph { return c.inner }

// Edit runs fn against the nested graph and records the result in the
// owning graph's history.
func (c *Classed) Edit(fn func(inner *graph.Graph) error) error {
	if c.inner == nil || c.node == nil {
		return circuit.ErrDetached
	}
	if err := fn(c.inner); err != nil {
		return err
	}
	c.node.ReportChanges()
	return nil
}

// SetPorts changes the node's port types and resizes the inner gateways to match.
func (c *Classed) SetPorts(inputs, outputs []transition.Type) error {
	if c.node == nil {
		return circuit.ErrDetached
	}
	if err := checkTypes(inputs); err != nil {
		return err
	}
	if err := checkTypes(outputs); err != nil {
		return err
	}
	c.inTypes = append([]transition.Type(nil), inputs...)
	c.outTyps = append([]transition.Type(nil), outputs...)
	c.node.Resize()
	c.ensureInner(c.node)
	c.node.ReportChanges()
	return nil
}

func checkTypes(ts []transition.Type) error {
	if len(ts) > maxDynamicPorts {
		return fmt.Errorf("at most %d ports, got %d", maxDynamicPorts, len(ts))
	}
	for i, t := range ts {
		if t == transition.None || !t.Valid() {
			return fmt.Errorf("port %d has no type", i)
		}
	}
	return nil
}

// ensureInner builds the nested graph on first use, loads pending records
// and sizes the gateways to the node's ports.
func (c *Classed) ensureInner(n *circuit.Node) {
	c.node = n
	if c.id == "" {
		c.id = uuid.NewString()
	}
	if c.inner == nil {
		c.inner = graph.New(n.Host().Child(c.id), c.reg,
			graph.WithoutInitialRecord(), graph.WithHistoryCapacity(1))
		c.inner.BlockHistory()
		c.unsub = c.inner.OnExternalOutput(c.forward)
	}
	if c.records != nil {
		if err := c.inner.ApplySerialized(c.records); err != nil {
			n.Logger().Warn("classed graph loaded partially", "id", c.id, "err", err)
		}
		c.records = nil
	}
	c.inner.ConfigureGateways(c.inTypes, c.outTyps)
}

func (c *Classed) forward(i int, v transition.Transition) {
	n := c.node
	if n == nil || n.Lifecycle() == circuit.Removed || i >= n.OutputCount() {
		return
	}
	n.Push(i, v)
}

func (c *Classed) OnAfterSetArgs(n *circuit.Node) { c.ensureInner(n) }

func (c *Classed) OnAfterInit(n *circuit.Node) {
	if c.inner == nil {
		c.ensureInner(n)
	}
}

func (c *Classed) WantsInitialUpdate() bool { return true }

func (c *Classed) StateUpdate(n *circuit.Node, ch circuit.StateChange) {
	if c.inner == nil {
		return
	}
	if ch.Index >= 0 {
		c.setInner(n, ch.Index, ch.State)
		return
	}
	for i, v := range n.InputStates() {
		c.setInner(n, i, v)
	}
}

func (c *Classed) setInner(n *circuit.Node, i int, v transition.Transition) {
	if err := c.inner.SetExternalInput(i, v); err != nil {
		n.Logger().Error("classed input failed", "id", c.id, "port", i, "err", err)
	}
}

func (c *Classed) OnRemove(*circuit.Node) {
	if c.unsub != nil {
		c.unsub()
		c.unsub = nil
	}
	if c.inner != nil {
		c.inner.Close()
	}
}

func (c *Classed) MarshalArgs() (json.RawMessage, error) {
	a := classedArgs{ID: c.id, Inputs: c.inTypes, Outputs: c.outTyps, Records: c.records}
	if c.inner != nil {
		a.Records = c.inner.Serialize()
	}
	return json.Marshal(a)
}

func (c *Classed) UnmarshalArgs(data json.RawMessage) error {
	var a classedArgs
	if err := json.Unmarshal(data, &a); err != nil {
		return err
	}
	if err := checkTypes(a.Inputs); err != nil {
		return fmt.Errorf("inputs: %w", err)
	}
	if err := checkTypes(a.Outputs); err != nil {
		return fmt.Errorf("outputs: %w", err)
	}
	if a.ID != "" {
		c.id = a.ID
	}
	c.inTypes, c.outTyps = a.Inputs, a.Outputs
	c.records = a.Records
	if c.records == nil {
		c.records = []graph.NodeRecord{}
	}
	return nil
}
