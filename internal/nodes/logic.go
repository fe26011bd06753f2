package nodes

import (
	"encoding/json"

	"github.com/gyaneshwarpardhi/circuitflow/internal/circuit"
	"github.com/gyaneshwarpardhi/circuitflow/internal/transition"
)

const minGateInputs = 2

// gateOp folds the truth values of all inputs into one.
type gateOp func(in []bool) bool

var gateOps = map[string]gateOp{
	KindAND:  func(in []bool) bool { return count(in) == len(in) },
	KindOR:   func(in []bool) bool { return count(in) > 0 },
	KindXOR:  func(in []bool) bool { return count(in)%2 == 1 },
	KindNAND: func(in []bool) bool { return count(in) != len(in) },
	KindNOR:  func(in []bool) bool { return count(in) == 0 },
	KindXNOR: func(in []bool) bool { return count(in)%2 == 0 },
}

func count(in []bool) int {
	c := 0
	for _, b := range in {
		if b {
			c++
		}
	}
	return c
}

// gate is a Bool gate with 2..16 inputs. Null inputs count as false; when all
// inputs are null the output is null.
type gate struct {
	op     gateOp
	Inputs int `json:"inputs"`
}

func (g *gate) Ports() circuit.PortSpec {
	return circuit.PortSpec{
		InputNames:  letters(g.Inputs),
		InputTypes:  repeat(transition.Bool, g.Inputs),
		OutputNames: []string{"Y"},
		OutputTypes: []transition.Type{transition.Bool},
	}
}

func (g *gate) InitialOutputs([]transition.Type) []transition.Transition {
	return []transition.Transition{transition.OfBool(g.op(make([]bool, g.Inputs)))}
}

func (g *gate) StateUpdate(n *circuit.Node, ch circuit.StateChange) {
	if ch.Index >= 0 && !ch.Changed {
		return
	}
	states := n.InputStates()
	if allNull(states) {
		n.PushAllNull()
		return
	}
	in := make([]bool, len(states))
	for i, s := range states {
		in[i] = s.Truthy()
	}
	n.Push(0, transition.OfBool(g.op(in)))
}

// OnAfterSetArgs recomputes the output after the input count changed.
func (g *gate) OnAfterSetArgs(n *circuit.Node) {
	if n.Lifecycle() == circuit.Live {
		n.Refresh()
	}
}

func (g *gate) MarshalArgs() (json.RawMessage, error) { return json.Marshal(g) }

func (g *gate) UnmarshalArgs(data json.RawMessage) error {
	if err := json.Unmarshal(data, g); err != nil {
		return err
	}
	g.Inputs = clamp(g.Inputs, minGateInputs, maxDynamicPorts)
	return nil
}

// not inverts a Bool, passing null through.
type not struct{}

func (not) Ports() circuit.PortSpec {
	return circuit.PortSpec{
		InputNames:  []string{"A"},
		InputTypes:  []transition.Type{transition.Bool},
		OutputNames: []string{"Y"},
		OutputTypes: []transition.Type{transition.Bool},
	}
}

func (not) InitialOutputs([]transition.Type) []transition.Transition {
	return []transition.Transition{transition.OfBool(true)}
}

func (not) StateUpdate(n *circuit.Node, ch circuit.StateChange) {
	if !ch.Changed {
		return
	}
	if ch.IsNull() {
		n.PushAllNull()
		return
	}
	n.Push(0, transition.OfBool(!ch.State.Truthy()))
}
