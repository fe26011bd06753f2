package transition

import (
	"fmt"
	"strconv"
	"strings"
)

// Convert maps t onto another type. Null values stay null in the target type.
//
//	Bool   <- Int (non-zero), String ("true"/"false")
//	Int    <- Bool (0/1), Float (truncated), String (parsed)
//	Float  <- Int, String (parsed)
//	String <- anything
//
// Pulse and Bool<->Float have no mapping and return ErrIncompatibleType.
func Convert(t Transition, to Type) (Transition, error) {
	if t.typ == None || to == None || !to.Valid() {
		return Transition{}, &Error{Op: "convert", Left: t.typ, Right: to, Err: ErrNoneType}
	}
	if t.typ == to {
		return t, nil
	}
	if t.null {
		if to == Pulse || t.typ == Pulse || (to == Float && t.typ == Bool) || (to == Bool && t.typ == Float) {
			return Transition{}, &Error{Op: "convert", Left: t.typ, Right: to, Err: ErrIncompatibleType}
		}
		return Transition{typ: to, null: true}, nil
	}

	incompatible := &Error{Op: "convert", Left: t.typ, Right: to, Err: ErrIncompatibleType}
	switch to {
	case Bool:
		switch t.typ {
		case Int:
			return OfBool(t.i != 0), nil
		case String:
			switch strings.TrimSpace(t.s) {
			case "true", "True":
				return OfBool(true), nil
			case "false", "False":
				return OfBool(false), nil
			}
			return Transition{}, stringErr(t, to)
		}
		return Transition{}, incompatible
	case Int:
		switch t.typ {
		case Bool:
			if t.b {
				return OfInt(1), nil
			}
			return OfInt(0), nil
		case Float:
			return OfInt(int(t.f)), nil
		case String:
			v, err := strconv.Atoi(strings.TrimSpace(t.s))
			if err != nil {
				return Transition{}, stringErr(t, to)
			}
			return OfInt(v), nil
		}
		return Transition{}, incompatible
	case Float:
		switch t.typ {
		case Int:
			return OfFloat(float64(t.i)), nil
		case String:
			v, err := strconv.ParseFloat(strings.TrimSpace(t.s), 64)
			if err != nil {
				return Transition{}, stringErr(t, to)
			}
			return OfFloat(v), nil
		}
		return Transition{}, incompatible
	case String:
		return OfString(t.ValueString()), nil
	}
	return Transition{}, incompatible
}

// TryConvert is Convert without the error detail.
func TryConvert(t Transition, to Type) (Transition, bool) {
	v, err := Convert(t, to)
	return v, err == nil
}

func stringErr(t Transition, to Type) error {
	return &Error{Op: "convert", Left: t.typ, Right: to, Err: fmt.Errorf("%w: %q", ErrStringConversion, t.s)}
}
