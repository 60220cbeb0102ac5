package jsonv

import (
	"fmt"
)

// ShapeField names a key and the type its value must have.
type ShapeField struct {
	Key  string
	Type Type
}

// Shape is a flat type contract over an object's members.
// Keys not listed are not checked.
type Shape []ShapeField

// ShapeError describes the first shape mismatch.
type ShapeError struct {
	Key      string // empty when the value is not an object
	Expected Type
	Got      Type
	Doc      string // serialized form of the checked value
}

func (e *ShapeError) Error() string {
	if e.Key == "" && e.Expected == TypeObject {
		return "expected JSON object, got " + e.Doc
	}
	return fmt.Sprintf("bad type for %q in %s", e.Key, e.Doc)
}

// HasShape checks that v is an object whose listed members have the
// expected types, in order. A missing member counts as null.
// It returns false and a *ShapeError on the first mismatch.
func HasShape(v *Value, shape Shape) (bool, error) {
	if v.Type() != TypeObject {
		return false, &ShapeError{Expected: TypeObject, Got: v.Type(), Doc: Dump(v)}
	}

	for _, f := range shape {
		if got := v.Get(f.Key).Type(); got != f.Type {
			return false, &ShapeError{Key: f.Key, Expected: f.Type, Got: got, Doc: Dump(v)}
		}
	}
	return true, nil
}

// HasShape is the method form of HasShape.
func (v *Value) HasShape(shape Shape) (bool, error) {
	return HasShape(v, shape)
}
