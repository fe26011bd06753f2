package nodes

import (
	"fmt"

	"github.com/gyaneshwarpardhi/circuitflow/internal/transition"
)

const maxDynamicPorts = 16

// letters names ports A, B, C and so on.
func letters(n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = string(rune('A' + i))
	}
	return out
}

func numbered(prefix string, n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = fmt.Sprintf("%s%d", prefix, i)
	}
	return out
}

func repeat(t transition.Type, n int) []transition.Type {
	out := make([]transition.Type, n)
	for i := range out {
		out[i] = t
	}
	return out
}

func clamp(n, lo, hi int) int {
	switch {
	case n < lo:
		return lo
	case n > hi:
		return hi
	}
	return n
}

// valueType replaces None and unknown types with def.
func valueType(t, def transition.Type) transition.Type {
	if t == transition.None || !t.Valid() {
		return def
	}
	return t
}

func numericType(t transition.Type) transition.Type {
	if !t.Numeric() {
		return transition.Int
	}
	return t
}

// allNull reports whether every value is null.
func allNull(vs []transition.Transition) bool {
	for _, v := range vs {
		if !v.IsNull() {
			return false
		}
	}
	return true
}

func anyNull(vs []transition.Transition) bool {
	for _, v := range vs {
		if v.IsNull() {
			return true
		}
	}
	return false
}
