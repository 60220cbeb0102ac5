package jsonv

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"math"
	"reflect"
	"strconv"
)

// ============================================================
// Go Value Bridge
// ============================================================
//
// Converts between Go values and *Value. From accepts the trees produced
// by encoding/json (any, []any, map[string]any) as well as typed
// scalars, *Value and Marshaler implementations. Typed slices, arrays,
// pointers and string-keyed maps are walked element by element, so a
// []point or map[string][]int converts like its []any equivalent.

// Marshaler is implemented by application types that know how to build
// their own JSON representation.
type Marshaler interface {
	ToJSON() *Value
}

// Convertible lists the element types accepted by ArrayOf and ObjectOf.
type Convertible interface {
	~bool | ~string |
		~int | ~int8 | ~int16 | ~int32 | ~int64 |
		~uint | ~uint8 | ~uint16 | ~uint32 | ~uint64 |
		~float32 | ~float64 |
		*Value
}

// ArrayOf creates an array value from a slice of convertible elements.
func ArrayOf[T Convertible](xs []T) *Value {
	items := make([]*Value, len(xs))
	for i, x := range xs {
		items[i] = mustFrom(x)
	}
	return &Value{typ: TypeArray, arrVal: items}
}

// ObjectOf creates an object value from a map with string-like keys.
func ObjectOf[M ~map[K]V, K ~string, V Convertible](m M) *Value {
	members := make([]Member, 0, len(m))
	for k, v := range m {
		members = append(members, Member{Key: string(k), Value: mustFrom(v)})
	}
	return Object(members...)
}

// mustFrom converts a Convertible; every such type is handled by from.
func mustFrom[T Convertible](x T) *Value {
	v, err := from(any(x))
	if err != nil {
		return nullValue
	}
	return v
}

// From converts a Go value to a *Value.
func From(x any) (*Value, error) {
	return from(x)
}

func from(x any) (*Value, error) {
	if x == nil {
		return nullValue, nil
	}

	switch val := x.(type) {
	case *Value:
		return orNull(val), nil
	case Marshaler:
		return orNull(val.ToJSON()), nil
	case bool:
		return Bool(val), nil
	case string:
		return String(val), nil
	case int:
		return Int(int64(val)), nil
	case int8:
		return Int(int64(val)), nil
	case int16:
		return Int(int64(val)), nil
	case int32:
		return Int(int64(val)), nil
	case int64:
		return Int(val), nil
	case uint:
		return fromUint(uint64(val)), nil
	case uint8:
		return Int(int64(val)), nil
	case uint16:
		return Int(int64(val)), nil
	case uint32:
		return Int(int64(val)), nil
	case uint64:
		return fromUint(val), nil
	case float32:
		return Number(float64(val)), nil
	case float64:
		return Number(val), nil
	case json.Number:
		if n, err := strconv.ParseInt(string(val), 10, 64); err == nil {
			return Int(n), nil
		}
		f, err := val.Float64()
		if err != nil {
			return nil, fmt.Errorf("json.Number %q: %w", val, err)
		}
		return Number(f), nil

	case []any:
		items := make([]*Value, 0, len(val))
		for i, elem := range val {
			v, err := from(elem)
			if err != nil {
				return nil, fmt.Errorf("array[%d]: %w", i, err)
			}
			items = append(items, v)
		}
		return &Value{typ: TypeArray, arrVal: items}, nil

	case []*Value:
		return Array(val...), nil

	case map[string]any:
		members := make([]Member, 0, len(val))
		for k, elem := range val {
			v, err := from(elem)
			if err != nil {
				return nil, fmt.Errorf("object[%q]: %w", k, err)
			}
			members = append(members, Member{Key: k, Value: v})
		}
		return Object(members...), nil

	case map[string]*Value:
		return ObjectFromMap(val), nil

	default:
		if s := reflectScalar(x); s != nil {
			return from(s)
		}
		return fromReflect(reflect.ValueOf(x))
	}
}

// fromReflect converts typed containers. Nil slices, maps and pointers
// become null, and []byte becomes a base64 string, as in encoding/json.
func fromReflect(rv reflect.Value) (*Value, error) {
	switch rv.Kind() {
	case reflect.Pointer:
		if rv.IsNil() {
			return nullValue, nil
		}
		return from(rv.Elem().Interface())

	case reflect.Slice, reflect.Array:
		if rv.Kind() == reflect.Slice {
			if rv.IsNil() {
				return nullValue, nil
			}
			if rv.Type().Elem().Kind() == reflect.Uint8 {
				return String(base64.StdEncoding.EncodeToString(rv.Bytes())), nil
			}
		}
		items := make([]*Value, rv.Len())
		for i := range items {
			v, err := from(rv.Index(i).Interface())
			if err != nil {
				return nil, fmt.Errorf("array[%d]: %w", i, err)
			}
			items[i] = v
		}
		return &Value{typ: TypeArray, arrVal: items}, nil

	case reflect.Map:
		if rv.Type().Key().Kind() != reflect.String {
			break
		}
		if rv.IsNil() {
			return nullValue, nil
		}
		members := make([]Member, 0, rv.Len())
		for it := rv.MapRange(); it.Next(); {
			k := it.Key().String()
			v, err := from(it.Value().Interface())
			if err != nil {
				return nil, fmt.Errorf("object[%q]: %w", k, err)
			}
			members = append(members, Member{Key: k, Value: v})
		}
		return Object(members...), nil
	}
	return nil, fmt.Errorf("unsupported type: %s", rv.Type())
}

func fromUint(u uint64) *Value {
	if u > math.MaxInt64 {
		return Number(float64(u))
	}
	return Int(int64(u))
}

// ToAny converts v to the Go representation used by encoding/json:
// nil, bool, float64 or int64, string, []any, map[string]any.
func (v *Value) ToAny() any {
	switch v.Type() {
	case TypeNumber:
		if v.isInt {
			return v.intVal
		}
		return v.numVal
	case TypeBool:
		return v.boolVal
	case TypeString:
		return v.strVal
	case TypeArray:
		out := make([]any, len(v.arrVal))
		for i, e := range v.arrVal {
			out[i] = e.ToAny()
		}
		return out
	case TypeObject:
		out := make(map[string]any, len(v.objVal))
		for _, e := range v.objVal {
			out[e.Key] = e.Value.ToAny()
		}
		return out
	default:
		return nil
	}
}

// reflectScalar unwraps named scalar types (type Level int) to their
// underlying kind. It returns nil for anything else.
func reflectScalar(x any) any {
	rv := reflect.ValueOf(x)
	switch rv.Kind() {
	case reflect.Bool:
		return rv.Bool()
	case reflect.String:
		return rv.String()
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return rv.Int()
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return rv.Uint()
	case reflect.Float32, reflect.Float64:
		return rv.Float()
	default:
		return nil
	}
}
