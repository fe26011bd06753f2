package transition

import (
	"math"
	"strings"
)

// Op names an arithmetic or ordering operator.
type Op string

const (
	OpAdd       Op = "+"
	OpSub       Op = "-"
	OpMul       Op = "*"
	OpDiv       Op = "/"
	OpMod       Op = "%"
	OpLess      Op = "<"
	OpLessEq    Op = "<="
	OpGreater   Op = ">"
	OpGreaterEq Op = ">="
	OpEq        Op = "=="
	OpNeq       Op = "!="
)

func (t Transition) Add(o Transition) (Transition, error) { return Arithmetic(OpAdd, t, o) }
func (t Transition) Sub(o Transition) (Transition, error) { return Arithmetic(OpSub, t, o) }
func (t Transition) Mul(o Transition) (Transition, error) { return Arithmetic(OpMul, t, o) }
func (t Transition) Div(o Transition) (Transition, error) { return Arithmetic(OpDiv, t, o) }
func (t Transition) Mod(o Transition) (Transition, error) { return Arithmetic(OpMod, t, o) }

func (t Transition) Less(o Transition) (bool, error)      { return Compare(OpLess, t, o) }
func (t Transition) LessEq(o Transition) (bool, error)    { return Compare(OpLessEq, t, o) }
func (t Transition) Greater(o Transition) (bool, error)   { return Compare(OpGreater, t, o) }
func (t Transition) GreaterEq(o Transition) (bool, error) { return Compare(OpGreaterEq, t, o) }

// Arithmetic applies op to two transitions of the same numeric type.
// String supports "+" as concatenation. A null operand yields a null result.
func Arithmetic(op Op, a, b Transition) (Transition, error) {
	if err := sameType(string(op), a, b); err != nil {
		return Transition{}, err
	}
	switch a.typ {
	case Int, Float:
	case String:
		if op != OpAdd {
			return Transition{}, &Error{Op: string(op), Left: a.typ, Right: b.typ, Err: ErrInvalidOperation}
		}
	default:
		return Transition{}, &Error{Op: string(op), Left: a.typ, Right: b.typ, Err: ErrInvalidOperation}
	}

	if (op == OpDiv || op == OpMod) && !b.null && isZero(b) {
		return Transition{}, &Error{Op: string(op), Left: a.typ, Right: b.typ, Err: ErrDivideByZero}
	}
	if a.null || b.null {
		return Transition{typ: a.typ, null: true}, nil
	}

	switch a.typ {
	case Int:
		return OfInt(intOp(op, a.i, b.i)), nil
	case Float:
		return OfFloat(floatOp(op, a.f, b.f)), nil
	default:
		return OfString(a.s + b.s), nil
	}
}

func intOp(op Op, a, b int) int {
	switch op {
	case OpAdd:
		return a + b
	case OpSub:
		return a - b
	case OpMul:
		return a * b
	case OpDiv:
		return a / b
	default:
		return a % b
	}
}

func floatOp(op Op, a, b float64) float64 {
	switch op {
	case OpAdd:
		return a + b
	case OpSub:
		return a - b
	case OpMul:
		return a * b
	case OpDiv:
		return a / b
	default:
		return math.Mod(a, b)
	}
}

func isZero(t Transition) bool {
	switch t.typ {
	case Int:
		return t.i == 0
	case Float:
		return t.f == 0
	}
	return false
}

// Compare applies an ordering or equality operator. Ordering requires the
// same numeric type; equality accepts any pair and defers to Equal.
func Compare(op Op, a, b Transition) (bool, error) {
	switch op {
	case OpEq:
		return a.Equal(b), nil
	case OpNeq:
		return !a.Equal(b), nil
	case OpLess, OpLessEq, OpGreater, OpGreaterEq:
	default:
		return false, &Error{Op: string(op), Left: a.typ, Right: b.typ, Err: ErrInvalidOperation}
	}
	if err := sameType(string(op), a, b); err != nil {
		return false, err
	}
	if !a.typ.Numeric() {
		return false, &Error{Op: string(op), Left: a.typ, Right: b.typ, Err: ErrInvalidOperation}
	}
	c, err := Order(a, b)
	if err != nil {
		return false, err
	}
	switch op {
	case OpLess:
		return c < 0, nil
	case OpLessEq:
		return c <= 0, nil
	case OpGreater:
		return c > 0, nil
	default:
		return c >= 0, nil
	}
}

// Order is a three-way comparison of two transitions of the same type.
// Null sorts below any value.
func Order(a, b Transition) (int, error) {
	if err := sameType("order", a, b); err != nil {
		return 0, err
	}
	switch {
	case a.null && b.null:
		return 0, nil
	case a.null:
		return -1, nil
	case b.null:
		return 1, nil
	}
	switch a.typ {
	case Bool:
		return cmpBool(a.b, b.b), nil
	case Int:
		return cmpOrdered(a.i, b.i), nil
	case Float:
		return cmpOrdered(a.f, b.f), nil
	case String:
		return strings.Compare(a.s, b.s), nil
	}
	return 0, nil
}

func cmpBool(a, b bool) int {
	switch {
	case a == b:
		return 0
	case !a:
		return -1
	default:
		return 1
	}
}

func cmpOrdered[T int | float64](a, b T) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

// Negate flips the sign of a numeric transition.
func (t Transition) Negate() (Transition, error) {
	switch t.typ {
	case Int:
		if t.null {
			return t, nil
		}
		return OfInt(-t.i), nil
	case Float:
		if t.null {
			return t, nil
		}
		return OfFloat(-t.f), nil
	case None:
		return Transition{}, &Error{Op: "-", Left: t.typ, Err: ErrNoneType}
	}
	return Transition{}, &Error{Op: "-", Left: t.typ, Err: ErrInvalidOperation}
}

func sameType(op string, a, b Transition) error {
	if a.typ == None || b.typ == None {
		return &Error{Op: op, Left: a.typ, Right: b.typ, Err: ErrNoneType}
	}
	if a.typ != b.typ {
		return &Error{Op: op, Left: a.typ, Right: b.typ, Err: ErrTypeMismatch}
	}
	return nil
}
