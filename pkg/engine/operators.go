package engine

import (
	"math"
	"strings"

	"mercator-hq/verdict/pkg/facts"
)

// compare applies a comparison operator. Absent operands and kind mismatches
// yield false for every operator, neq included. Integers compare exactly
// with integers and as float64 against doubles.
func compare(op Operator, left, right facts.Value) bool {
	if left.IsAbsent() || right.IsAbsent() {
		return false
	}

	lk, rk := left.Kind(), right.Kind()
	if lk.IsNumeric() && rk.IsNumeric() {
		if lk == facts.KindInt && rk == facts.KindInt {
			a, _ := left.AsInt()
			b, _ := right.AsInt()
			return orderedResult(op, cmpInt(a, b), true)
		}
		a, _ := left.AsNumber()
		b, _ := right.AsNumber()
		if math.IsNaN(a) || math.IsNaN(b) {
			return op == OpNeq
		}
		return orderedResult(op, cmpFloat(a, b), true)
	}

	if lk != rk {
		return false
	}

	switch lk {
	case facts.KindString:
		a, _ := left.AsString()
		b, _ := right.AsString()
		return orderedResult(op, strings.Compare(a, b), true)
	case facts.KindBool, facts.KindList, facts.KindObject:
		// Unordered kinds support equality only.
		return orderedResult(op, equalityCmp(left.Equal(right)), false)
	default:
		return false
	}
}

// orderedResult maps a three-way comparison result onto op. When ordered is
// false only eq and neq can succeed.
func orderedResult(op Operator, c int, ordered bool) bool {
	switch op {
	case OpEq:
		return c == 0
	case OpNeq:
		return c != 0
	}
	if !ordered {
		return false
	}
	switch op {
	case OpLt:
		return c < 0
	case OpLte:
		return c <= 0
	case OpGt:
		return c > 0
	case OpGte:
		return c >= 0
	default:
		return false
	}
}

func equalityCmp(equal bool) int {
	if equal {
		return 0
	}
	return 1
}

func cmpInt(a, b int64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

func cmpFloat(a, b float64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

// setKey is the canonical hash key of a scalar literal. Doubles holding a
// whole number within int64 range share the key of the equal integer.
type setKey struct {
	kind facts.Kind
	str  string
	num  int64
	dbl  float64
}

func keyOf(v facts.Value) (setKey, bool) {
	switch v.Kind() {
	case facts.KindString:
		s, _ := v.AsString()
		return setKey{kind: facts.KindString, str: s}, true
	case facts.KindInt:
		i, _ := v.AsInt()
		return setKey{kind: facts.KindInt, num: i}, true
	case facts.KindDouble:
		f, _ := v.AsDouble()
		if f == math.Trunc(f) && f >= math.MinInt64 && f < math.MaxInt64 {
			return setKey{kind: facts.KindInt, num: int64(f)}, true
		}
		return setKey{kind: facts.KindDouble, dbl: f}, true
	case facts.KindBool:
		b, _ := v.AsBool()
		k := setKey{kind: facts.KindBool}
		if b {
			k.num = 1
		}
		return k, true
	default:
		return setKey{}, false
	}
}

// ValueSet is the hash set built from a membership literal list.
type ValueSet struct {
	keys  map[setKey]struct{}
	items []facts.Value
}

func NewValueSet(items []facts.Value) *ValueSet {
	s := &ValueSet{
		keys:  make(map[setKey]struct{}, len(items)),
		items: items,
	}
	for _, item := range items {
		if k, ok := keyOf(item); ok {
			s.keys[k] = struct{}{}
		}
	}
	return s
}

// Contains reports whether v equals a member. Absent and non-scalar values
// are never members.
func (s *ValueSet) Contains(v facts.Value) bool {
	k, ok := keyOf(v)
	if !ok {
		return false
	}
	_, found := s.keys[k]
	return found
}

// Items returns the literals in declaration order.
func (s *ValueSet) Items() []facts.Value {
	return s.items
}

// Len returns the number of distinct members.
func (s *ValueSet) Len() int {
	return len(s.keys)
}
