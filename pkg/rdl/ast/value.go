package ast

import (
	"fmt"
	"strconv"
)

// ValueType is the type of a literal in a rule definition.
// Integers and doubles are kept apart so they survive a round trip.
type ValueType string

const (
	ValueTypeString ValueType = "string"
	ValueTypeInt    ValueType = "int"
	ValueTypeDouble ValueType = "double"
	ValueTypeBool   ValueType = "bool"
	ValueTypeList   ValueType = "list"
	ValueTypeObject ValueType = "object"
	ValueTypeNull   ValueType = "null"
)

// ValueNode is a literal used in conditions and action parameters.
//
// Value holds string, int64, float64, bool, []any, map[string]any or nil,
// matching Type.
type ValueNode struct {
	Type     ValueType
	Value    any
	Location Location
}

// NewValue builds a ValueNode from a plain Go value, inferring its type.
func NewValue(v any) *ValueNode {
	switch val := v.(type) {
	case nil:
		return &ValueNode{Type: ValueTypeNull}
	case string:
		return &ValueNode{Type: ValueTypeString, Value: val}
	case int:
		return &ValueNode{Type: ValueTypeInt, Value: int64(val)}
	case int64:
		return &ValueNode{Type: ValueTypeInt, Value: val}
	case float64:
		return &ValueNode{Type: ValueTypeDouble, Value: val}
	case bool:
		return &ValueNode{Type: ValueTypeBool, Value: val}
	case []any:
		return &ValueNode{Type: ValueTypeList, Value: val}
	case map[string]any:
		return &ValueNode{Type: ValueTypeObject, Value: val}
	default:
		return &ValueNode{Type: ValueTypeString, Value: fmt.Sprint(val)}
	}
}

// IsNull returns true for an explicit null literal.
func (v *ValueNode) IsNull() bool {
	return v == nil || v.Type == ValueTypeNull
}

// IsScalar returns true for string, int, double and bool literals.
func (v *ValueNode) IsScalar() bool {
	switch v.Type {
	case ValueTypeString, ValueTypeInt, ValueTypeDouble, ValueTypeBool:
		return true
	}
	return false
}

// String returns a short representation of the literal for messages.
func (v *ValueNode) String() string {
	if v.IsNull() {
		return "null"
	}
	switch val := v.Value.(type) {
	case string:
		return strconv.Quote(val)
	case float64:
		return strconv.FormatFloat(val, 'g', -1, 64)
	default:
		return fmt.Sprint(val)
	}
}
