package condition

import (
	"fmt"
	"strings"

	"github.com/gyaneshwarpardhi/circuitflow/internal/transition"
)

// EvalContext provides the current value of each named port.
type EvalContext interface {
	Resolve(name string) (transition.Transition, bool)
}

// Values is an EvalContext backed by a map.
type Values map[string]transition.Transition

func (v Values) Resolve(name string) (transition.Transition, bool) {
	t, ok := v[name]
	return t, ok
}

// Evaluate walks the AST and returns true/false or an error.
func Evaluate(expr Expr, ctx EvalContext) (bool, error) {
	switch e := expr.(type) {
	case *BinaryExpr:
		return evalBinary(e, ctx)
	case *NotExpr:
		v, err := Evaluate(e.Expr, ctx)
		if err != nil {
			return false, err
		}
		return !v, nil
	case *ComparisonExpr:
		return evalComparison(e, ctx)
	case *TruthExpr:
		v, isNull, err := resolveOperand(e.Operand, ctx)
		if err != nil || isNull {
			return false, err
		}
		if v.Type() != transition.Bool {
			return false, fmt.Errorf("%s is %s, not Bool", describe(e.Operand), v.Type())
		}
		return v.Truthy(), nil
	default:
		return false, fmt.Errorf("unknown expr type %T", expr)
	}
}

func evalBinary(e *BinaryExpr, ctx EvalContext) (bool, error) {
	left, err := Evaluate(e.Left, ctx)
	if err != nil {
		return false, err
	}
	switch strings.ToUpper(e.Op) {
	case "AND":
		if !left {
			return false, nil
		}
		return Evaluate(e.Right, ctx)
	case "OR":
		if left {
			return true, nil
		}
		return Evaluate(e.Right, ctx)
	default:
		return false, fmt.Errorf("unknown binary op %q", e.Op)
	}
}

func evalComparison(e *ComparisonExpr, ctx EvalContext) (bool, error) {
	left, lnull, err := resolveOperand(e.Left, ctx)
	if err != nil {
		return false, err
	}
	right, rnull, err := resolveOperand(e.Right, ctx)
	if err != nil {
		return false, err
	}

	// `x == null` compares nullness only, whatever the type of x.
	_, lkw := e.Left.(*NullOperand)
	_, rkw := e.Right.(*NullOperand)
	if lkw || rkw {
		same := lnull == rnull
		switch e.Op {
		case OpEq:
			return same, nil
		case OpNeq:
			return !same, nil
		}
		return false, fmt.Errorf("operator %s cannot be used with null", e.Op)
	}
	return compare(e.Op, left, right)
}

// resolveOperand returns the operand's value and whether it is null.
func resolveOperand(op Operand, ctx EvalContext) (transition.Transition, bool, error) {
	switch o := op.(type) {
	case *LiteralOperand:
		return o.Value, false, nil
	case *NullOperand:
		return transition.Transition{}, true, nil
	case *NameOperand:
		v, ok := ctx.Resolve(o.Name)
		if !ok {
			return transition.Transition{}, false, fmt.Errorf("port %q not found", o.Name)
		}
		return v, v.IsNull(), nil
	default:
		return transition.Transition{}, false, fmt.Errorf("unknown operand type %T", op)
	}
}

func describe(o Operand) string {
	if n, ok := o.(*NameOperand); ok {
		return fmt.Sprintf("port %q", n.Name)
	}
	return "operand"
}
