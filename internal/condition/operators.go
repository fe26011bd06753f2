package condition

import (
	"fmt"
	"regexp"
	"strings"
	"sync"

	"github.com/gyaneshwarpardhi/circuitflow/internal/transition"
)

// Operator represents a comparison operator.
type Operator string

const (
	OpEq       Operator = "=="
	OpNeq      Operator = "!="
	OpGt       Operator = ">"
	OpGte      Operator = ">="
	OpLt       Operator = "<"
	OpLte      Operator = "<="
	OpContains Operator = "contains"
	OpMatches  Operator = "matches"
)

var orderOps = map[Operator]transition.Op{
	OpGt:  transition.OpGreater,
	OpGte: transition.OpGreaterEq,
	OpLt:  transition.OpLess,
	OpLte: transition.OpLessEq,
}

// promote lifts an Int to Float when the other side is a Float, so that
// `speed > 2` works on a Float port.
func promote(a, b transition.Transition) (transition.Transition, transition.Transition) {
	switch {
	case a.Type() == transition.Int && b.Type() == transition.Float:
		if v, ok := transition.TryConvert(a, transition.Float); ok {
			return v, b
		}
	case a.Type() == transition.Float && b.Type() == transition.Int:
		if v, ok := transition.TryConvert(b, transition.Float); ok {
			return a, v
		}
	}
	return a, b
}

// compare applies a binary comparison operator to two values. Ordering and
// string operators are false when either side is null.
func compare(op Operator, left, right transition.Transition) (bool, error) {
	left, right = promote(left, right)
	switch op {
	case OpEq:
		return left.Equal(right), nil
	case OpNeq:
		return !left.Equal(right), nil
	case OpGt, OpGte, OpLt, OpLte:
		if left.IsNull() || right.IsNull() {
			return false, nil
		}
		return transition.Compare(orderOps[op], left, right)
	case OpContains:
		ls, rs, ok, err := strings2(op, left, right)
		if !ok || err != nil {
			return false, err
		}
		return strings.Contains(ls, rs), nil
	case OpMatches:
		ls, pattern, ok, err := strings2(op, left, right)
		if !ok || err != nil {
			return false, err
		}
		re, err := compileRegex(pattern)
		if err != nil {
			return false, fmt.Errorf("matches: invalid regex %q: %w", pattern, err)
		}
		return re.MatchString(ls), nil
	default:
		return false, fmt.Errorf("unknown operator: %s", op)
	}
}

// strings2 extracts two String payloads. ok is false when either is null.
func strings2(op Operator, left, right transition.Transition) (string, string, bool, error) {
	if left.Type() != transition.String || right.Type() != transition.String {
		return "", "", false, fmt.Errorf("%s: operands must be String, got %s and %s", op, left.Type(), right.Type())
	}
	if left.IsNull() || right.IsNull() {
		return "", "", false, nil
	}
	ls, _ := left.AsString()
	rs, _ := right.AsString()
	return ls, rs, true, nil
}

var regexCache sync.Map

func compileRegex(pattern string) (*regexp.Regexp, error) {
	if re, ok := regexCache.Load(pattern); ok {
		return re.(*regexp.Regexp), nil
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, err
	}
	regexCache.Store(pattern, re)
	return re, nil
}
