package transition

import (
	"fmt"
	"strconv"
	"strings"
)

// Type discriminates the payload carried by a Transition.
type Type uint8

const (
	None Type = iota
	Bool
	Int
	Float
	String
	Pulse
)

var typeNames = [...]string{"None", "Bool", "Int", "Float", "String", "Pulse"}

func (t Type) String() string {
	if int(t) < len(typeNames) {
		return typeNames[t]
	}
	return fmt.Sprintf("Type(%d)", uint8(t))
}

// Valid reports whether t is a known type.
func (t Type) Valid() bool { return int(t) < len(typeNames) }

// Numeric reports whether arithmetic and ordering are defined for t.
func (t Type) Numeric() bool { return t == Int || t == Float }

// ParseType is the inverse of Type.String (case-insensitive).
func ParseType(s string) (Type, error) {
	for i, n := range typeNames {
		if strings.EqualFold(n, s) {
			return Type(i), nil
		}
	}
	return None, fmt.Errorf("transition: unknown type %q", s)
}

func (t Type) MarshalText() ([]byte, error) { return []byte(t.String()), nil }

func (t *Type) UnmarshalText(b []byte) error {
	v, err := ParseType(string(b))
	if err != nil {
		return err
	}
	*t = v
	return nil
}

// Transition is the immutable signal value that flows between ports.
// The zero value is a None transition.
type Transition struct {
	typ  Type
	b    bool
	i    int
	f    float64
	s    string
	null bool
}

func OfBool(v bool) Transition     { return Transition{typ: Bool, b: v} }
func OfInt(v int) Transition       { return Transition{typ: Int, i: v} }
func OfFloat(v float64) Transition { return Transition{typ: Float, f: v} }
func OfString(v string) Transition { return Transition{typ: String, s: v} }
func OfPulse() Transition          { return Transition{typ: Pulse} }
func (t Transition) Type() Type    { return t.typ }
func (t Transition) IsNull() bool  { return t.null }
func (t Transition) IsNone() bool  { return t.typ == None }

// Null returns a typed transition holding no value yet.
func Null(t Type) (Transition, error) {
	if t == None || !t.Valid() {
		return Transition{}, &Error{Op: "null", Left: t, Err: ErrNoneType}
	}
	return Transition{typ: t, null: true}, nil
}

// Default returns the false/zero value of t.
func Default(t Type) (Transition, error) {
	switch t {
	case Bool:
		return OfBool(false), nil
	case Int:
		return OfInt(0), nil
	case Float:
		return OfFloat(0), nil
	case String:
		return OfString(""), nil
	case Pulse:
		return OfPulse(), nil
	}
	return Transition{}, &Error{Op: "default", Left: t, Err: ErrNoneType}
}

// MustNull is Null for types known to be valid.
func MustNull(t Type) Transition {
	v, err := Null(t)
	if err != nil {
		panic(err)
	}
	return v
}

// MustDefault is Default for types known to be valid.
func MustDefault(t Type) Transition {
	v, err := Default(t)
	if err != nil {
		panic(err)
	}
	return v
}

// Of builds a Transition from a host value. Supported: bool, all int kinds,
// float32/64, string and nil (which yields a None transition).
func Of(v any) (Transition, error) {
	switch x := v.(type) {
	case nil:
		return Transition{}, nil
	case Transition:
		return x, nil
	case bool:
		return OfBool(x), nil
	case int:
		return OfInt(x), nil
	case int8:
		return OfInt(int(x)), nil
	case int16:
		return OfInt(int(x)), nil
	case int32:
		return OfInt(int(x)), nil
	case int64:
		return OfInt(int(x)), nil
	case uint8:
		return OfInt(int(x)), nil
	case uint16:
		return OfInt(int(x)), nil
	case uint32:
		return OfInt(int(x)), nil
	case float32:
		return OfFloat(float64(x)), nil
	case float64:
		return OfFloat(x), nil
	case string:
		return OfString(x), nil
	}
	return Transition{}, &Error{Op: "of", Err: fmt.Errorf("%w: unsupported host type %T", ErrInvalidCast, v)}
}

// Equal compares type, then null flags, then payload. It never fails.
func (t Transition) Equal(o Transition) bool {
	if t.typ != o.typ {
		return false
	}
	if t.typ == None {
		return true
	}
	if t.null || o.null {
		return t.null == o.null
	}
	switch t.typ {
	case Bool:
		return t.b == o.b
	case Int:
		return t.i == o.i
	case Float:
		return t.f == o.f
	case String:
		return t.s == o.s
	case Pulse:
		return true
	}
	return false
}

// AsBool casts to a host bool. A null value casts to false.
func (t Transition) AsBool() (bool, error) {
	if err := t.castable(Bool); err != nil {
		return false, err
	}
	return t.b && !t.null, nil
}

// AsInt casts to a host int. A null value casts to 0.
func (t Transition) AsInt() (int, error) {
	if err := t.castable(Int); err != nil {
		return 0, err
	}
	if t.null {
		return 0, nil
	}
	return t.i, nil
}

// AsFloat casts to a host float64. A null value casts to 0.
func (t Transition) AsFloat() (float64, error) {
	if err := t.castable(Float); err != nil {
		return 0, err
	}
	if t.null {
		return 0, nil
	}
	return t.f, nil
}

// AsString casts to a host string. A null value casts to "".
func (t Transition) AsString() (string, error) {
	if err := t.castable(String); err != nil {
		return "", err
	}
	if t.null {
		return "", nil
	}
	return t.s, nil
}

func (t Transition) castable(to Type) error {
	if t.typ == None {
		return &Error{Op: "cast", Left: t.typ, Right: to, Err: ErrNoneType}
	}
	if t.typ != to {
		return &Error{Op: "cast", Left: t.typ, Right: to, Err: ErrInvalidCast}
	}
	return nil
}

// Truthy reports whether t is a non-null true Bool. Other types are false.
func (t Transition) Truthy() bool {
	return t.typ == Bool && !t.null && t.b
}

// Value returns the payload as a host value, or nil for None and null transitions.
func (t Transition) Value() any {
	if t.null {
		return nil
	}
	switch t.typ {
	case Bool:
		return t.b
	case Int:
		return t.i
	case Float:
		return t.f
	case String:
		return t.s
	case Pulse:
		return true
	}
	return nil
}

// ValueString renders the payload without type information.
func (t Transition) ValueString() string {
	if t.null {
		return "null"
	}
	switch t.typ {
	case Bool:
		return strconv.FormatBool(t.b)
	case Int:
		return strconv.Itoa(t.i)
	case Float:
		return strconv.FormatFloat(t.f, 'g', -1, 64)
	case String:
		return t.s
	case Pulse:
		return "pulse"
	}
	return "none"
}

func (t Transition) String() string {
	return t.typ.String() + "(" + t.ValueString() + ")"
}

// Defaults returns the default value for each type in ts.
func Defaults(ts []Type) []Transition {
	out := make([]Transition, len(ts))
	for i, t := range ts {
		out[i], _ = Default(t)
	}
	return out
}

// Nulls returns a null value for each type in ts.
func Nulls(ts []Type) []Transition {
	out := make([]Transition, len(ts))
	for i, t := range ts {
		out[i], _ = Null(t)
	}
	return out
}
