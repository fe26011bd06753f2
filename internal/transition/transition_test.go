package transition_test

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/gyaneshwarpardhi/circuitflow/internal/transition"
)

var samples = []transition.Transition{
	transition.OfBool(true),
	transition.OfInt(7),
	transition.OfFloat(2.5),
	transition.OfString("x"),
	transition.OfPulse(),
	transition.MustNull(transition.Bool),
	transition.MustNull(transition.Int),
}

func TestEqual_DifferentTypesNeverEqual(t *testing.T) {
	for i, a := range samples {
		for j, b := range samples {
			if a.Type() == b.Type() {
				continue
			}
			if a.Equal(b) {
				t.Errorf("samples[%d]=%v equal to samples[%d]=%v", i, a, j, b)
			}
		}
	}
}

func TestEqual(t *testing.T) {
	cases := []struct {
		name string
		a, b transition.Transition
		want bool
	}{
		{"same int", transition.OfInt(3), transition.OfInt(3), true},
		{"different int", transition.OfInt(3), transition.OfInt(4), false},
		{"bool", transition.OfBool(false), transition.OfBool(false), true},
		{"null same type", transition.MustNull(transition.Int), transition.MustNull(transition.Int), true},
		{"null different type", transition.MustNull(transition.Int), transition.MustNull(transition.Float), false},
		{"null vs value", transition.MustNull(transition.Int), transition.OfInt(0), false},
		{"pulses", transition.OfPulse(), transition.OfPulse(), true},
		{"none", transition.Transition{}, transition.Transition{}, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.a.Equal(tc.b); got != tc.want {
				t.Errorf("%v.Equal(%v) = %v, want %v", tc.a, tc.b, got, tc.want)
			}
		})
	}
}

func TestNull(t *testing.T) {
	for _, typ := range []transition.Type{transition.Bool, transition.Int, transition.Float, transition.String, transition.Pulse} {
		n, err := transition.Null(typ)
		if err != nil {
			t.Fatalf("Null(%s): %v", typ, err)
		}
		if !n.IsNull() || n.Type() != typ {
			t.Errorf("Null(%s) = %v", typ, n)
		}
	}
	if _, err := transition.Null(transition.None); !errors.Is(err, transition.ErrNoneType) {
		t.Errorf("Null(None) err = %v, want ErrNoneType", err)
	}
}

func TestDefault(t *testing.T) {
	cases := map[transition.Type]transition.Transition{
		transition.Bool:   transition.OfBool(false),
		transition.Int:    transition.OfInt(0),
		transition.Float:  transition.OfFloat(0),
		transition.String: transition.OfString(""),
		transition.Pulse:  transition.OfPulse(),
	}
	for typ, want := range cases {
		got, err := transition.Default(typ)
		if err != nil {
			t.Fatalf("Default(%s): %v", typ, err)
		}
		if !got.Equal(want) || got.IsNull() {
			t.Errorf("Default(%s) = %v, want %v", typ, got, want)
		}
	}
}

func TestArithmetic(t *testing.T) {
	cases := []struct {
		name    string
		op      transition.Op
		a, b    transition.Transition
		want    transition.Transition
		wantErr error
	}{
		{"int add", transition.OpAdd, transition.OfInt(2), transition.OfInt(3), transition.OfInt(5), nil},
		{"int sub", transition.OpSub, transition.OfInt(2), transition.OfInt(3), transition.OfInt(-1), nil},
		{"int mul", transition.OpMul, transition.OfInt(4), transition.OfInt(3), transition.OfInt(12), nil},
		{"int div truncates", transition.OpDiv, transition.OfInt(7), transition.OfInt(2), transition.OfInt(3), nil},
		{"int mod", transition.OpMod, transition.OfInt(7), transition.OfInt(4), transition.OfInt(3), nil},
		{"float div", transition.OpDiv, transition.OfFloat(7), transition.OfFloat(2), transition.OfFloat(3.5), nil},
		{"float mod", transition.OpMod, transition.OfFloat(7.5), transition.OfFloat(2), transition.OfFloat(1.5), nil},
		{"string concat", transition.OpAdd, transition.OfString("ab"), transition.OfString("cd"), transition.OfString("abcd"), nil},
		{"null propagates", transition.OpAdd, transition.MustNull(transition.Int), transition.OfInt(1), transition.MustNull(transition.Int), nil},
		{"int div zero", transition.OpDiv, transition.OfInt(7), transition.OfInt(0), transition.Transition{}, transition.ErrDivideByZero},
		{"int mod zero", transition.OpMod, transition.OfInt(7), transition.OfInt(0), transition.Transition{}, transition.ErrDivideByZero},
		{"float div zero", transition.OpDiv, transition.OfFloat(7), transition.OfFloat(0), transition.Transition{}, transition.ErrDivideByZero},
		{"int by float", transition.OpDiv, transition.OfInt(7), transition.OfFloat(2), transition.Transition{}, transition.ErrTypeMismatch},
		{"int plus bool", transition.OpAdd, transition.OfInt(1), transition.OfBool(true), transition.Transition{}, transition.ErrTypeMismatch},
		{"bool add", transition.OpAdd, transition.OfBool(true), transition.OfBool(true), transition.Transition{}, transition.ErrInvalidOperation},
		{"string sub", transition.OpSub, transition.OfString("a"), transition.OfString("b"), transition.Transition{}, transition.ErrInvalidOperation},
		{"none", transition.OpAdd, transition.Transition{}, transition.OfInt(1), transition.Transition{}, transition.ErrNoneType},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := transition.Arithmetic(tc.op, tc.a, tc.b)
			if tc.wantErr != nil {
				if !errors.Is(err, tc.wantErr) {
					t.Fatalf("err = %v, want %v", err, tc.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !got.Equal(tc.want) {
				t.Errorf("%v %s %v = %v, want %v", tc.a, tc.op, tc.b, got, tc.want)
			}
		})
	}
}

func TestCompare(t *testing.T) {
	cases := []struct {
		name    string
		op      transition.Op
		a, b    transition.Transition
		want    bool
		wantErr error
	}{
		{"int less", transition.OpLess, transition.OfInt(1), transition.OfInt(2), true, nil},
		{"int less equal", transition.OpLessEq, transition.OfInt(2), transition.OfInt(2), true, nil},
		{"float greater", transition.OpGreater, transition.OfFloat(2.5), transition.OfFloat(2), true, nil},
		{"float greater equal", transition.OpGreaterEq, transition.OfFloat(1), transition.OfFloat(2), false, nil},
		{"null lowest", transition.OpLess, transition.MustNull(transition.Int), transition.OfInt(-100), true, nil},
		{"equality across types", transition.OpEq, transition.OfInt(1), transition.OfFloat(1), false, nil},
		{"inequality across types", transition.OpNeq, transition.OfInt(1), transition.OfFloat(1), true, nil},
		{"mismatch", transition.OpLess, transition.OfInt(1), transition.OfFloat(2), false, transition.ErrTypeMismatch},
		{"bool ordering", transition.OpLess, transition.OfBool(false), transition.OfBool(true), false, transition.ErrInvalidOperation},
		{"string ordering", transition.OpGreater, transition.OfString("b"), transition.OfString("a"), false, transition.ErrInvalidOperation},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := transition.Compare(tc.op, tc.a, tc.b)
			if tc.wantErr != nil {
				if !errors.Is(err, tc.wantErr) {
					t.Fatalf("err = %v, want %v", err, tc.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tc.want {
				t.Errorf("%v %s %v = %v, want %v", tc.a, tc.op, tc.b, got, tc.want)
			}
		})
	}
}

func TestCasts(t *testing.T) {
	if v, err := transition.OfInt(9).AsInt(); err != nil || v != 9 {
		t.Errorf("AsInt = %d, %v", v, err)
	}
	if _, err := transition.OfInt(9).AsBool(); !errors.Is(err, transition.ErrInvalidCast) {
		t.Errorf("AsBool on Int err = %v, want ErrInvalidCast", err)
	}
	if _, err := transition.OfFloat(1).AsInt(); !errors.Is(err, transition.ErrInvalidCast) {
		t.Errorf("AsInt on Float err = %v, want ErrInvalidCast", err)
	}
	if v, err := transition.MustNull(transition.String).AsString(); err != nil || v != "" {
		t.Errorf("null AsString = %q, %v", v, err)
	}
	if _, err := (transition.Transition{}).AsFloat(); !errors.Is(err, transition.ErrNoneType) {
		t.Errorf("None AsFloat err = %v, want ErrNoneType", err)
	}
}

func TestConvert(t *testing.T) {
	cases := []struct {
		name    string
		in      transition.Transition
		to      transition.Type
		want    transition.Transition
		wantErr error
	}{
		{"int to bool", transition.OfInt(3), transition.Bool, transition.OfBool(true), nil},
		{"bool to int", transition.OfBool(true), transition.Int, transition.OfInt(1), nil},
		{"float to int truncates", transition.OfFloat(3.9), transition.Int, transition.OfInt(3), nil},
		{"int to float", transition.OfInt(2), transition.Float, transition.OfFloat(2), nil},
		{"string to int", transition.OfString(" 42 "), transition.Int, transition.OfInt(42), nil},
		{"string to bool", transition.OfString("False"), transition.Bool, transition.OfBool(false), nil},
		{"float to string", transition.OfFloat(1.5), transition.String, transition.OfString("1.5"), nil},
		{"null keeps null", transition.MustNull(transition.Int), transition.Float, transition.MustNull(transition.Float), nil},
		{"bad string", transition.OfString("abc"), transition.Int, transition.Transition{}, transition.ErrStringConversion},
		{"float to bool", transition.OfFloat(1), transition.Bool, transition.Transition{}, transition.ErrIncompatibleType},
		{"pulse to int", transition.OfPulse(), transition.Int, transition.Transition{}, transition.ErrIncompatibleType},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := transition.Convert(tc.in, tc.to)
			if tc.wantErr != nil {
				if !errors.Is(err, tc.wantErr) {
					t.Fatalf("err = %v, want %v", err, tc.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !got.Equal(tc.want) {
				t.Errorf("Convert(%v, %s) = %v, want %v", tc.in, tc.to, got, tc.want)
			}
		})
	}
}

func TestJSON(t *testing.T) {
	for _, in := range samples {
		data, err := json.Marshal(in)
		if err != nil {
			t.Fatalf("marshal %v: %v", in, err)
		}
		var out transition.Transition
		if err := json.Unmarshal(data, &out); err != nil {
			t.Fatalf("unmarshal %s: %v", data, err)
		}
		if !out.Equal(in) {
			t.Errorf("round trip %v -> %s -> %v", in, data, out)
		}
	}
}
