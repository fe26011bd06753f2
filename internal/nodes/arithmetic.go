package nodes

import (
	"encoding/json"
	"errors"

	"github.com/gyaneshwarpardhi/circuitflow/internal/circuit"
	"github.com/gyaneshwarpardhi/circuitflow/internal/transition"
)

const minArithmeticInputs = 2

var arithmeticOps = map[string]transition.Op{
	KindAdd:      transition.OpAdd,
	KindSubtract: transition.OpSub,
	KindMultiply: transition.OpMul,
	KindDivide:   transition.OpDiv,
	KindModulo:   transition.OpMod,
}

// arithmetic folds its non-null inputs left to right. All-null inputs give a
// null output, and so does a zero divisor.
type arithmetic struct {
	op     transition.Op
	Type   transition.Type `json:"type"`
	Inputs int             `json:"inputs"`
}

func (a *arithmetic) Ports() circuit.PortSpec {
	return circuit.PortSpec{
		InputNames:  letters(a.Inputs),
		InputTypes:  repeat(a.Type, a.Inputs),
		OutputNames: []string{"Y"},
		OutputTypes: []transition.Type{a.Type},
	}
}

func (a *arithmetic) InitialOutputs(types []transition.Type) []transition.Transition {
	v, err := a.fold(transition.Defaults(repeat(a.Type, a.Inputs)))
	if err != nil {
		return transition.Nulls(types)
	}
	return []transition.Transition{v}
}

func (a *arithmetic) StateUpdate(n *circuit.Node, _ circuit.StateChange) {
	v, err := a.fold(n.InputStates())
	if err != nil {
		n.Logger().Error("arithmetic failed", "op", string(a.op), "err", err)
		return
	}
	n.Push(0, v)
}

func (a *arithmetic) fold(vs []transition.Transition) (transition.Transition, error) {
	var acc transition.Transition
	for _, v := range vs {
		if v.IsNull() {
			continue
		}
		if acc.IsNone() {
			acc = v
			continue
		}
		next, err := transition.Arithmetic(a.op, acc, v)
		if errors.Is(err, transition.ErrDivideByZero) {
			return transition.Null(a.Type)
		}
		if err != nil {
			return transition.Transition{}, err
		}
		acc = next
	}
	if acc.IsNone() {
		return transition.Null(a.Type)
	}
	return acc, nil
}

func (a *arithmetic) OnAfterSetArgs(n *circuit.Node) {
	if n.Lifecycle() == circuit.Live {
		n.Refresh()
	}
}

func (a *arithmetic) MarshalArgs() (json.RawMessage, error) { return json.Marshal(a) }

func (a *arithmetic) UnmarshalArgs(data json.RawMessage) error {
	if err := json.Unmarshal(data, a); err != nil {
		return err
	}
	a.Type = numericType(a.Type)
	a.Inputs = clamp(a.Inputs, minArithmeticInputs, maxDynamicPorts)
	return nil
}
