package facts

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
)

// Kind identifies the type of a Value.
type Kind uint8

const (
	KindAbsent Kind = iota
	KindString
	KindInt
	KindDouble
	KindBool
	KindList
	KindObject
)

// String returns the lowercase kind name.
func (k Kind) String() string {
	switch k {
	case KindAbsent:
		return "absent"
	case KindString:
		return "string"
	case KindInt:
		return "int"
	case KindDouble:
		return "double"
	case KindBool:
		return "bool"
	case KindList:
		return "list"
	case KindObject:
		return "object"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// IsNumeric reports whether the kind is int or double.
func (k Kind) IsNumeric() bool {
	return k == KindInt || k == KindDouble
}

// IsScalar reports whether the kind is string, int, double or bool.
func (k Kind) IsScalar() bool {
	return k == KindString || k == KindInt || k == KindDouble || k == KindBool
}

// Value is a typed fact value. The zero Value is absent.
type Value struct {
	kind Kind
	str  string
	num  int64
	dbl  float64
	list []Value
	obj  map[string]Value
}

// Absent returns the absent value.
func Absent() Value { return Value{} }

// String returns a string value.
func String(s string) Value { return Value{kind: KindString, str: s} }

// Int returns a 64-bit integer value.
func Int(i int64) Value { return Value{kind: KindInt, num: i} }

// Double returns a floating point value.
func Double(f float64) Value { return Value{kind: KindDouble, dbl: f} }

// Bool returns a boolean value.
func Bool(b bool) Value {
	v := Value{kind: KindBool}
	if b {
		v.num = 1
	}
	return v
}

// List returns a list value holding the given items.
func List(items ...Value) Value {
	if items == nil {
		items = []Value{}
	}
	return Value{kind: KindList, list: items}
}

// Object returns an object value backed by m. A nil map yields an empty object.
func Object(m map[string]Value) Value {
	if m == nil {
		m = make(map[string]Value)
	}
	return Value{kind: KindObject, obj: m}
}

// Kind returns the kind of the value.
func (v Value) Kind() Kind { return v.kind }

// IsAbsent reports whether v is the absent marker.
func (v Value) IsAbsent() bool { return v.kind == KindAbsent }

// AsString returns the string payload.
func (v Value) AsString() (string, bool) {
	return v.str, v.kind == KindString
}

// AsInt returns the integer payload.
func (v Value) AsInt() (int64, bool) {
	return v.num, v.kind == KindInt
}

// AsDouble returns the double payload. Integers are not converted.
func (v Value) AsDouble() (float64, bool) {
	return v.dbl, v.kind == KindDouble
}

// AsNumber returns the value as float64 for int and double kinds.
func (v Value) AsNumber() (float64, bool) {
	switch v.kind {
	case KindInt:
		return float64(v.num), true
	case KindDouble:
		return v.dbl, true
	default:
		return 0, false
	}
}

// AsBool returns the boolean payload.
func (v Value) AsBool() (bool, bool) {
	return v.num == 1, v.kind == KindBool
}

// AsList returns the list items. The slice must not be modified.
func (v Value) AsList() ([]Value, bool) {
	return v.list, v.kind == KindList
}

// AsObject returns the object fields. The map must not be modified.
func (v Value) AsObject() (map[string]Value, bool) {
	return v.obj, v.kind == KindObject
}

// Len returns the number of items for lists and objects, the byte length for
// strings, and 0 otherwise.
func (v Value) Len() int {
	switch v.kind {
	case KindString:
		return len(v.str)
	case KindList:
		return len(v.list)
	case KindObject:
		return len(v.obj)
	default:
		return 0
	}
}

// Equal reports whether two values are equal. Integers and doubles compare
// numerically; other kinds must match exactly.
func (v Value) Equal(other Value) bool {
	if v.kind.IsNumeric() && other.kind.IsNumeric() {
		if v.kind == KindInt && other.kind == KindInt {
			return v.num == other.num
		}
		a, _ := v.AsNumber()
		b, _ := other.AsNumber()
		return a == b
	}
	if v.kind != other.kind {
		return false
	}
	switch v.kind {
	case KindAbsent:
		return true
	case KindString:
		return v.str == other.str
	case KindBool:
		return v.num == other.num
	case KindList:
		if len(v.list) != len(other.list) {
			return false
		}
		for i := range v.list {
			if !v.list[i].Equal(other.list[i]) {
				return false
			}
		}
		return true
	case KindObject:
		if len(v.obj) != len(other.obj) {
			return false
		}
		for k, a := range v.obj {
			b, ok := other.obj[k]
			if !ok || !a.Equal(b) {
				return false
			}
		}
		return true
	default:
		return false
	}
}

// Clone returns a deep copy of v.
func (v Value) Clone() Value {
	switch v.kind {
	case KindList:
		items := make([]Value, len(v.list))
		for i, item := range v.list {
			items[i] = item.Clone()
		}
		return Value{kind: KindList, list: items}
	case KindObject:
		return Value{kind: KindObject, obj: cloneFields(v.obj)}
	default:
		return v
	}
}

// Interface converts the value to plain Go types: string, int64, float64,
// bool, []any, map[string]any, or nil for absent.
func (v Value) Interface() any {
	switch v.kind {
	case KindString:
		return v.str
	case KindInt:
		return v.num
	case KindDouble:
		return v.dbl
	case KindBool:
		return v.num == 1
	case KindList:
		out := make([]any, len(v.list))
		for i, item := range v.list {
			out[i] = item.Interface()
		}
		return out
	case KindObject:
		out := make(map[string]any, len(v.obj))
		for k, item := range v.obj {
			out[k] = item.Interface()
		}
		return out
	default:
		return nil
	}
}

// String renders the value for logs and error messages. Object keys are
// sorted so the output is stable.
func (v Value) String() string {
	switch v.kind {
	case KindAbsent:
		return "<absent>"
	case KindString:
		return strconv.Quote(v.str)
	case KindInt:
		return strconv.FormatInt(v.num, 10)
	case KindDouble:
		return strconv.FormatFloat(v.dbl, 'g', -1, 64)
	case KindBool:
		return strconv.FormatBool(v.num == 1)
	case KindList:
		parts := make([]string, len(v.list))
		for i, item := range v.list {
			parts[i] = item.String()
		}
		return "[" + strings.Join(parts, ", ") + "]"
	case KindObject:
		keys := make([]string, 0, len(v.obj))
		for k := range v.obj {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		parts := make([]string, len(keys))
		for i, k := range keys {
			parts[i] = k + ": " + v.obj[k].String()
		}
		return "{" + strings.Join(parts, ", ") + "}"
	default:
		return "<invalid>"
	}
}

// FromAny converts a Go value into a Value. It accepts the types produced by
// encoding/json and gopkg.in/yaml.v3 decoders as well as the sized integer
// and float types. A nil input converts to the absent value.
func FromAny(in any) (Value, error) {
	switch v := in.(type) {
	case nil:
		return Absent(), nil
	case Value:
		return v, nil
	case string:
		return String(v), nil
	case bool:
		return Bool(v), nil
	case int:
		return Int(int64(v)), nil
	case int8:
		return Int(int64(v)), nil
	case int16:
		return Int(int64(v)), nil
	case int32:
		return Int(int64(v)), nil
	case int64:
		return Int(v), nil
	case uint:
		return fromUint(uint64(v))
	case uint8:
		return Int(int64(v)), nil
	case uint16:
		return Int(int64(v)), nil
	case uint32:
		return Int(int64(v)), nil
	case uint64:
		return fromUint(v)
	case float32:
		return Double(float64(v)), nil
	case float64:
		return Double(v), nil
	case []any:
		items := make([]Value, len(v))
		for i, item := range v {
			converted, err := FromAny(item)
			if err != nil {
				return Value{}, fmt.Errorf("index %d: %w", i, err)
			}
			items[i] = converted
		}
		return List(items...), nil
	case []string:
		items := make([]Value, len(v))
		for i, item := range v {
			items[i] = String(item)
		}
		return List(items...), nil
	case map[string]any:
		fields := make(map[string]Value, len(v))
		for k, item := range v {
			converted, err := FromAny(item)
			if err != nil {
				return Value{}, fmt.Errorf("key %q: %w", k, err)
			}
			fields[k] = converted
		}
		return Object(fields), nil
	case map[any]any:
		fields := make(map[string]Value, len(v))
		for k, item := range v {
			key, ok := k.(string)
			if !ok {
				return Value{}, fmt.Errorf("object key %v is %T, want string", k, k)
			}
			converted, err := FromAny(item)
			if err != nil {
				return Value{}, fmt.Errorf("key %q: %w", key, err)
			}
			fields[key] = converted
		}
		return Object(fields), nil
	default:
		return Value{}, fmt.Errorf("unsupported fact type %T", in)
	}
}

// MustFromAny is like FromAny but panics on unsupported input.
func MustFromAny(in any) Value {
	v, err := FromAny(in)
	if err != nil {
		panic(err)
	}
	return v
}

func fromUint(u uint64) (Value, error) {
	if u > math.MaxInt64 {
		return Value{}, fmt.Errorf("integer %d overflows int64", u)
	}
	return Int(int64(u)), nil
}

func cloneFields(m map[string]Value) map[string]Value {
	out := make(map[string]Value, len(m))
	for k, v := range m {
		out[k] = v.Clone()
	}
	return out
}
