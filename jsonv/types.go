package jsonv

import (
	"iter"
	"math"
	"slices"
	"strings"
)

// Type represents JSON value types.
//
// The declaration order is the rank used by Compare across types.
type Type uint8

const (
	TypeNull Type = iota
	TypeNumber
	TypeBool
	TypeString
	TypeArray
	TypeObject
)

// String returns the type name.
func (t Type) String() string {
	switch t {
	case TypeNull:
		return "null"
	case TypeNumber:
		return "number"
	case TypeBool:
		return "bool"
	case TypeString:
		return "string"
	case TypeArray:
		return "array"
	case TypeObject:
		return "object"
	default:
		return "unknown"
	}
}

// Value is an immutable JSON value.
//
// A nil *Value behaves like Null().
type Value struct {
	typ Type

	// Scalar values (only one valid based on typ)
	isInt   bool
	intVal  int64
	numVal  float64
	boolVal bool
	strVal  string

	// Container values
	arrVal []*Value
	objVal []Member // sorted by Key, keys unique
}

// Member is a key-value pair of an object.
type Member struct {
	Key   string
	Value *Value
}

// M creates a Member for use in Object construction.
func M(key string, value *Value) Member {
	return Member{Key: key, Value: value}
}

// Canonical instances shared by every caller.
var (
	nullValue  = &Value{typ: TypeNull}
	trueValue  = &Value{typ: TypeBool, boolVal: true}
	falseValue = &Value{typ: TypeBool, boolVal: false}
)

// ============================================================
// Constructors
// ============================================================

// Null returns the canonical null value.
func Null() *Value {
	return nullValue
}

// True returns the canonical true value.
func True() *Value {
	return trueValue
}

// False returns the canonical false value.
func False() *Value {
	return falseValue
}

// Bool returns the canonical value for b.
func Bool(b bool) *Value {
	if b {
		return trueValue
	}
	return falseValue
}

// Number creates a floating-point number value.
func Number(f float64) *Value {
	return &Value{typ: TypeNumber, numVal: f}
}

// Int creates an integer number value.
func Int(n int64) *Value {
	return &Value{typ: TypeNumber, isInt: true, intVal: n}
}

// String creates a string value.
func String(s string) *Value {
	return &Value{typ: TypeString, strVal: s}
}

// Array creates an array value. The slice is copied.
func Array(values ...*Value) *Value {
	items := make([]*Value, len(values))
	for i, v := range values {
		items[i] = orNull(v)
	}
	return &Value{typ: TypeArray, arrVal: items}
}

// Object creates an object value from members.
// Members are ordered by key; when a key repeats, the last one wins.
func Object(members ...Member) *Value {
	sorted := make([]Member, len(members))
	for i, m := range members {
		sorted[i] = Member{Key: m.Key, Value: orNull(m.Value)}
	}
	slices.SortStableFunc(sorted, func(a, b Member) int {
		return strings.Compare(a.Key, b.Key)
	})

	// Collapse duplicate keys, keeping the last occurrence.
	out := sorted[:0]
	for i, m := range sorted {
		if i+1 < len(sorted) && sorted[i+1].Key == m.Key {
			continue
		}
		out = append(out, m)
	}
	return &Value{typ: TypeObject, objVal: out}
}

// ObjectFromMap creates an object value from a Go map.
func ObjectFromMap(m map[string]*Value) *Value {
	members := make([]Member, 0, len(m))
	for k, v := range m {
		members = append(members, Member{Key: k, Value: v})
	}
	return Object(members...)
}

func orNull(v *Value) *Value {
	if v == nil {
		return nullValue
	}
	return v
}

// ============================================================
// Accessors
// ============================================================

// Type returns the value type.
func (v *Value) Type() Type {
	if v == nil {
		return TypeNull
	}
	return v.typ
}

// IsNull returns true if this is a null value.
func (v *Value) IsNull() bool { return v.Type() == TypeNull }

// IsNumber returns true if this is a number value.
func (v *Value) IsNumber() bool { return v.Type() == TypeNumber }

// IsBool returns true if this is a bool value.
func (v *Value) IsBool() bool { return v.Type() == TypeBool }

// IsString returns true if this is a string value.
func (v *Value) IsString() bool { return v.Type() == TypeString }

// IsArray returns true if this is an array value.
func (v *Value) IsArray() bool { return v.Type() == TypeArray }

// IsObject returns true if this is an object value.
func (v *Value) IsObject() bool { return v.Type() == TypeObject }

// IsInt reports whether the number is stored as an integer.
// It exists for diagnostics; both representations behave the same.
func (v *Value) IsInt() bool {
	return v.Type() == TypeNumber && v.isInt
}

// AsNumber returns the numeric value, or 0 for non-numbers.
func (v *Value) AsNumber() float64 {
	if v.Type() != TypeNumber {
		return 0
	}
	if v.isInt {
		return float64(v.intVal)
	}
	return v.numVal
}

// AsInt returns the numeric value as an int, or 0 for non-numbers.
// Floats are truncated toward zero and saturate at the int range.
func (v *Value) AsInt() int {
	if v.Type() != TypeNumber {
		return 0
	}
	if v.isInt {
		return int(v.intVal)
	}
	f := v.numVal
	switch {
	case math.IsNaN(f):
		return 0
	case f >= math.MaxInt:
		return math.MaxInt
	case f <= math.MinInt:
		return math.MinInt
	}
	return int(f)
}

// AsBool returns the boolean value, or false for non-bools.
func (v *Value) AsBool() bool {
	if v.Type() != TypeBool {
		return false
	}
	return v.boolVal
}

// AsString returns the string value, or "" for non-strings.
func (v *Value) AsString() string {
	if v.Type() != TypeString {
		return ""
	}
	return v.strVal
}

// AsArray returns a copy of the array elements, or nil for non-arrays.
func (v *Value) AsArray() []*Value {
	if v.Type() != TypeArray {
		return nil
	}
	return slices.Clone(v.arrVal)
}

// AsObject returns the object members as a new map, or an empty map for
// non-objects.
func (v *Value) AsObject() map[string]*Value {
	if v.Type() != TypeObject {
		return map[string]*Value{}
	}
	m := make(map[string]*Value, len(v.objVal))
	for _, e := range v.objVal {
		m[e.Key] = e.Value
	}
	return m
}

// Members returns a copy of the object members in key order.
func (v *Value) Members() []Member {
	if v.Type() != TypeObject {
		return nil
	}
	return slices.Clone(v.objVal)
}

// Keys returns the object keys in order.
func (v *Value) Keys() []string {
	if v.Type() != TypeObject {
		return nil
	}
	keys := make([]string, len(v.objVal))
	for i, e := range v.objVal {
		keys[i] = e.Key
	}
	return keys
}

// Len returns the length of an array or object, and 0 otherwise.
func (v *Value) Len() int {
	switch v.Type() {
	case TypeArray:
		return len(v.arrVal)
	case TypeObject:
		return len(v.objVal)
	default:
		return 0
	}
}

// Get returns the member value for key, or Null() on any miss.
func (v *Value) Get(key string) *Value {
	if v.Type() != TypeObject {
		return nullValue
	}
	if i, ok := v.find(key); ok {
		return v.objVal[i].Value
	}
	return nullValue
}

// Has reports whether the object has a member named key.
func (v *Value) Has(key string) bool {
	if v.Type() != TypeObject {
		return false
	}
	_, ok := v.find(key)
	return ok
}

func (v *Value) find(key string) (int, bool) {
	return slices.BinarySearchFunc(v.objVal, key, func(m Member, k string) int {
		return strings.Compare(m.Key, k)
	})
}

// Index returns the i-th array element, or Null() on any miss.
func (v *Value) Index(i int) *Value {
	if v.Type() != TypeArray || i < 0 || i >= len(v.arrVal) {
		return nullValue
	}
	return v.arrVal[i]
}

// Items iterates over array elements.
func (v *Value) Items() iter.Seq2[int, *Value] {
	return func(yield func(int, *Value) bool) {
		if v.Type() != TypeArray {
			return
		}
		for i, e := range v.arrVal {
			if !yield(i, e) {
				return
			}
		}
	}
}

// All iterates over object members in key order.
func (v *Value) All() iter.Seq2[string, *Value] {
	return func(yield func(string, *Value) bool) {
		if v.Type() != TypeObject {
			return
		}
		for _, e := range v.objVal {
			if !yield(e.Key, e.Value) {
				return
			}
		}
	}
}
