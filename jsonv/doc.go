// Package jsonv implements an immutable JSON document model.
//
// jsonv is designed to be:
//   - Immutable (no mutating API; values are shared freely)
//   - Forgiving on access (misses yield null or zero values, never errors)
//   - Strict on input (RFC 8259 grammar, optional comment tolerance)
//   - Deterministic on output (sorted object keys, fixed separators)
//
// # Data Model
//
// Six variants, ranked in this order for sorting:
//
//	null < number < bool < string < array < object
//
// Numbers are stored as int64 when the source literal was a short integer
// and as float64 otherwise. Both report TypeNumber and compare by numeric
// value.
//
// # Parsing
//
//	v, err := jsonv.Parse(`{"a": [1, 2.5, "x"]}`, jsonv.Standard)
//	v.Get("a").Index(1).AsNumber() // 2.5
//	v.Get("missing").Get("deeper") // null, no error
//
// The Comments strategy additionally skips // line and /* block */
// comments between tokens. ParseMulti parses back-to-back documents and
// reports how far it got.
//
// # Serialization
//
//	jsonv.Dump(v) // {"a": [1, 2.5, "x"]}
//
// # Shape Checks
//
//	ok, err := v.HasShape(jsonv.Shape{{"a", jsonv.TypeArray}})
package jsonv
