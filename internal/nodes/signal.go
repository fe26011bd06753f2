package nodes

import (
	"encoding/json"
	"fmt"

	"github.com/gyaneshwarpardhi/circuitflow/internal/circuit"
	"github.com/gyaneshwarpardhi/circuitflow/internal/transition"
)

var comparatorOps = map[transition.Op]bool{
	transition.OpLess: true, transition.OpLessEq: true,
	transition.OpGreater: true, transition.OpGreaterEq: true,
	transition.OpEq: true, transition.OpNeq: true,
}

// comparator compares L against R. Either side null gives a null output.
type comparator struct {
	Op   transition.Op   `json:"op"`
	Type transition.Type `json:"type"`
}

func (c *comparator) Ports() circuit.PortSpec {
	return circuit.PortSpec{
		InputNames:  []string{"L", "R"},
		InputTypes:  []transition.Type{c.Type, c.Type},
		OutputNames: []string{"Y"},
		OutputTypes: []transition.Type{transition.Bool},
	}
}

func (c *comparator) InitialOutputs([]transition.Type) []transition.Transition {
	zero := transition.MustDefault(c.Type)
	ok, err := transition.Compare(c.Op, zero, zero)
	if err != nil {
		return []transition.Transition{transition.MustNull(transition.Bool)}
	}
	return []transition.Transition{transition.OfBool(ok)}
}

func (c *comparator) StateUpdate(n *circuit.Node, _ circuit.StateChange) {
	l, r := n.Input(0).State(), n.Input(1).State()
	if l.IsNull() || r.IsNull() {
		n.PushAllNull()
		return
	}
	ok, err := transition.Compare(c.Op, l, r)
	if err != nil {
		n.Logger().Error("compare failed", "op", string(c.Op), "err", err)
		return
	}
	n.Push(0, transition.OfBool(ok))
}

func (c *comparator) OnAfterSetArgs(n *circuit.Node) {
	if n.Lifecycle() == circuit.Live {
		n.Refresh()
	}
}

func (c *comparator) MarshalArgs() (json.RawMessage, error) { return json.Marshal(c) }

func (c *comparator) UnmarshalArgs(data json.RawMessage) error {
	next := *c
	if err := json.Unmarshal(data, &next); err != nil {
		return err
	}
	if !comparatorOps[next.Op] {
		return fmt.Errorf("unknown comparison %q", next.Op)
	}
	next.Type = numericType(next.Type)
	*c = next
	return nil
}

// counter counts rising edges on "add" and clears on "rst".
type counter struct {
	Count int `json:"count"`
}

func (c *counter) Ports() circuit.PortSpec {
	return circuit.PortSpec{
		InputNames:  []string{"add", "rst"},
		InputTypes:  []transition.Type{transition.Bool, transition.Bool},
		OutputNames: []string{"Y"},
		OutputTypes: []transition.Type{transition.Int},
	}
}

func (c *counter) InitialOutputs([]transition.Type) []transition.Transition {
	return []transition.Transition{transition.OfInt(c.Count)}
}

func (c *counter) StateUpdate(n *circuit.Node, ch circuit.StateChange) {
	if !ch.Changed || !ch.State.Truthy() {
		return
	}
	switch ch.Index {
	case 0:
		c.Count++
	case 1:
		c.Count = 0
	default:
		return
	}
	n.Push(0, transition.OfInt(c.Count))
}

func (c *counter) OnAfterSetArgs(n *circuit.Node) { n.Push(0, transition.OfInt(c.Count)) }

func (c *counter) MarshalArgs() (json.RawMessage, error) { return json.Marshal(c) }

func (c *counter) UnmarshalArgs(data json.RawMessage) error { return json.Unmarshal(data, c) }

// edgeDetector fires R on a rising and F on a falling input.
type edgeDetector struct{}

func (edgeDetector) Ports() circuit.PortSpec {
	return circuit.PortSpec{
		InputNames:  []string{"A"},
		InputTypes:  []transition.Type{transition.Bool},
		OutputNames: []string{"R", "F"},
		OutputTypes: []transition.Type{transition.Pulse, transition.Pulse},
	}
}

func (edgeDetector) StateUpdate(n *circuit.Node, ch circuit.StateChange) {
	if !ch.Changed {
		return
	}
	if ch.IsNull() {
		n.PushAllNull()
		return
	}
	if ch.State.Truthy() {
		n.Push(0, transition.OfPulse())
	} else {
		n.Push(1, transition.OfPulse())
	}
}

// typeConverter maps its input onto another type, emitting null when the
// value has no representation there.
type typeConverter struct {
	From transition.Type `json:"from"`
	To   transition.Type `json:"to"`
}

func (c *typeConverter) Ports() circuit.PortSpec {
	return circuit.PortSpec{
		InputNames:  []string{"A"},
		InputTypes:  []transition.Type{c.From},
		OutputNames: []string{"Y"},
		OutputTypes: []transition.Type{c.To},
	}
}

func (c *typeConverter) StateUpdate(n *circuit.Node, _ circuit.StateChange) {
	if v, ok := transition.TryConvert(n.Input(0).State(), c.To); ok {
		n.Push(0, v)
		return
	}
	n.PushAllNull()
}

func (c *typeConverter) WantsInitialUpdate() bool { return true }

func (c *typeConverter) MarshalArgs() (json.RawMessage, error) { return json.Marshal(c) }

func (c *typeConverter) UnmarshalArgs(data json.RawMessage) error {
	if err := json.Unmarshal(data, c); err != nil {
		return err
	}
	c.From = valueType(c.From, transition.Int)
	c.To = valueType(c.To, transition.String)
	return nil
}

const minSplitterOutputs = 2

// splitter copies its input to every output.
type splitter struct {
	Outputs int             `json:"outputs"`
	Type    transition.Type `json:"type"`
}

func (s *splitter) Ports() circuit.PortSpec {
	return circuit.PortSpec{
		InputNames:  []string{"A"},
		InputTypes:  []transition.Type{s.Type},
		OutputNames: numbered("Y", s.Outputs),
		OutputTypes: repeat(s.Type, s.Outputs),
	}
}

func (s *splitter) StateUpdate(n *circuit.Node, _ circuit.StateChange) {
	v := n.Input(0).State()
	for i := range n.Outputs() {
		n.Push(i, v)
	}
}

func (s *splitter) OnAfterSetArgs(n *circuit.Node) {
	if n.Lifecycle() == circuit.Live {
		n.Refresh()
	}
}

func (s *splitter) MarshalArgs() (json.RawMessage, error) { return json.Marshal(s) }

func (s *splitter) UnmarshalArgs(data json.RawMessage) error {
	if err := json.Unmarshal(data, s); err != nil {
		return err
	}
	s.Outputs = clamp(s.Outputs, minSplitterOutputs, maxDynamicPorts)
	s.Type = valueType(s.Type, transition.Bool)
	return nil
}
