package nodes

import (
	"encoding/json"
	"fmt"

	"github.com/google/cel-go/cel"

	"github.com/gyaneshwarpardhi/circuitflow/internal/circuit"
	"github.com/gyaneshwarpardhi/circuitflow/internal/transition"
)

// formula evaluates a CEL expression over its named inputs. Any null input
// gives a null output; the result is converted to Output.
type formula struct {
	Expr   string          `json:"expr"`
	Inputs []NamedPort     `json:"inputs"`
	Output transition.Type `json:"output"`

	prg cel.Program
}

func newFormula() *formula {
	f := &formula{
		Expr:   "a + b",
		Inputs: []NamedPort{{Name: "a", Type: transition.Int}, {Name: "b", Type: transition.Int}},
		Output: transition.Int,
	}
	prg, err := compileFormula(f.Expr, f.Inputs)
	if err != nil {
		panic(err)
	}
	f.prg = prg
	return f
}

func celType(t transition.Type) *cel.Type {
	switch t {
	case transition.Bool:
		return cel.BoolType
	case transition.Int:
		return cel.IntType
	case transition.Float:
		return cel.DoubleType
	case transition.String:
		return cel.StringType
	}
	return cel.DynType
}

func compileFormula(expr string, inputs []NamedPort) (cel.Program, error) {
	opts := make([]cel.EnvOption, 0, len(inputs))
	for _, p := range inputs {
		opts = append(opts, cel.Variable(p.Name, celType(p.Type)))
	}
	env, err := cel.NewEnv(opts...)
	if err != nil {
		return nil, fmt.Errorf("formula env: %w", err)
	}
	ast, iss := env.Compile(expr)
	if iss != nil && iss.Err() != nil {
		return nil, fmt.Errorf("formula compile: %w", iss.Err())
	}
	prg, err := env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("formula program: %w", err)
	}
	return prg, nil
}

func (f *formula) Ports() circuit.PortSpec {
	return circuit.PortSpec{
		InputNames:  portNames(f.Inputs),
		InputTypes:  portTypes(f.Inputs),
		OutputNames: []string{"Y"},
		OutputTypes: []transition.Type{f.Output},
	}
}

func (f *formula) StateUpdate(n *circuit.Node, _ circuit.StateChange) {
	states := n.InputStates()
	if anyNull(states) {
		n.PushAllNull()
		return
	}
	v, err := f.eval(states)
	if err != nil {
		n.Logger().Error("formula failed", "expr", f.Expr, "err", err)
		return
	}
	n.Push(0, v)
}

func (f *formula) eval(states []transition.Transition) (transition.Transition, error) {
	vars := make(map[string]any, len(f.Inputs))
	for i, p := range f.Inputs {
		if i < len(states) {
			vars[p.Name] = states[i].Value()
		}
	}
	out, _, err := f.prg.Eval(vars)
	if err != nil {
		return transition.Transition{}, err
	}
	v, err := transition.Of(out.Value())
	if err != nil {
		return transition.Transition{}, err
	}
	return transition.Convert(v, f.Output)
}

func (f *formula) WantsInitialUpdate() bool { return true }

func (f *formula) MarshalArgs() (json.RawMessage, error) { return json.Marshal(f) }

func (f *formula) UnmarshalArgs(data json.RawMessage) error {
	next := formula{Output: f.Output}
	if err := json.Unmarshal(data, &next); err != nil {
		return err
	}
	if err := checkPorts(next.Inputs); err != nil {
		return err
	}
	if next.Output == transition.None || next.Output == transition.Pulse || !next.Output.Valid() {
		return fmt.Errorf("formula output must be a value type, got %s", next.Output)
	}
	prg, err := compileFormula(next.Expr, next.Inputs)
	if err != nil {
		return err
	}
	f.Expr, f.Inputs, f.Output, f.prg = next.Expr, next.Inputs, next.Output, prg
	return nil
}

func (f *formula) OnAfterSetArgs(n *circuit.Node) {
	if n.Lifecycle() == circuit.Live {
		n.Refresh()
	}
}
