package nodes

import (
	"encoding/json"
	"fmt"

	"github.com/gyaneshwarpardhi/circuitflow/internal/circuit"
	"github.com/gyaneshwarpardhi/circuitflow/internal/condition"
	"github.com/gyaneshwarpardhi/circuitflow/internal/transition"
)

// NamedPort declares one named, typed input of an expression node.
type NamedPort struct {
	Name string          `json:"name"`
	Type transition.Type `json:"type"`
}

func defaultBoolPorts() []NamedPort {
	return []NamedPort{{Name: "a", Type: transition.Bool}, {Name: "b", Type: transition.Bool}}
}

func portNames(ps []NamedPort) []string {
	out := make([]string, len(ps))
	for i, p := range ps {
		out[i] = p.Name
	}
	return out
}

func portTypes(ps []NamedPort) []transition.Type {
	out := make([]transition.Type, len(ps))
	for i, p := range ps {
		out[i] = p.Type
	}
	return out
}

func checkPorts(ps []NamedPort) error {
	if len(ps) > maxDynamicPorts {
		return fmt.Errorf("at most %d inputs, got %d", maxDynamicPorts, len(ps))
	}
	seen := make(map[string]bool, len(ps))
	for _, p := range ps {
		if p.Name == "" || seen[p.Name] {
			return fmt.Errorf("input names must be unique and non-empty, got %q", p.Name)
		}
		if p.Type == transition.None || !p.Type.Valid() {
			return fmt.Errorf("input %q has no type", p.Name)
		}
		seen[p.Name] = true
	}
	return nil
}

// conditionNode evaluates a predicate over its named inputs and outputs a Bool.
type conditionNode struct {
	Expr   string      `json:"expr"`
	Inputs []NamedPort `json:"inputs"`

	ast condition.Expr
}

func newCondition() *conditionNode {
	c := &conditionNode{Expr: "a AND b", Inputs: defaultBoolPorts()}
	c.ast, _ = condition.Parse(c.Expr)
	return c
}

func (c *conditionNode) Ports() circuit.PortSpec {
	return circuit.PortSpec{
		InputNames:  portNames(c.Inputs),
		InputTypes:  portTypes(c.Inputs),
		OutputNames: []string{"Y"},
		OutputTypes: []transition.Type{transition.Bool},
	}
}

func (c *conditionNode) StateUpdate(n *circuit.Node, _ circuit.StateChange) {
	vals := make(condition.Values, len(c.Inputs))
	for i, p := range c.Inputs {
		vals[p.Name] = n.Input(i).State()
	}
	ok, err := condition.Evaluate(c.ast, vals)
	if err != nil {
		n.Logger().Error("condition failed", "expr", c.Expr, "err", err)
		return
	}
	n.Push(0, transition.OfBool(ok))
}

func (c *conditionNode) WantsInitialUpdate() bool { return true }

func (c *conditionNode) MarshalArgs() (json.RawMessage, error) { return json.Marshal(c) }

// UnmarshalArgs rejects expressions that reference undeclared inputs.
func (c *conditionNode) UnmarshalArgs(data json.RawMessage) error {
	var next conditionNode
	if err := json.Unmarshal(data, &next); err != nil {
		return err
	}
	if err := checkPorts(next.Inputs); err != nil {
		return err
	}
	ast, err := condition.Parse(next.Expr)
	if err != nil {
		return err
	}
	declared := make(map[string]bool, len(next.Inputs))
	for _, p := range next.Inputs {
		declared[p.Name] = true
	}
	for _, name := range condition.Names(ast) {
		if !declared[name] {
			return fmt.Errorf("expression uses undeclared input %q", name)
		}
	}
	c.Expr, c.Inputs, c.ast = next.Expr, next.Inputs, ast
	return nil
}

func (c *conditionNode) OnAfterSetArgs(n *circuit.Node) {
	if n.Lifecycle() == circuit.Live {
		n.Refresh()
	}
}
