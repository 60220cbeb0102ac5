package jsonv

import (
	"cmp"
	"math"
	"strings"
)

// Equal reports whether a and b have the same type and equal content.
// Numbers compare by numeric value regardless of representation.
func Equal(a, b *Value) bool {
	a, b = orNull(a), orNull(b)
	if a == b {
		return true
	}
	if a.typ != b.typ {
		return false
	}

	switch a.typ {
	case TypeNull:
		return true
	case TypeNumber:
		return compareNumbers(a, b) == 0 && !isNaN(a) && !isNaN(b)
	case TypeBool:
		return a.boolVal == b.boolVal
	case TypeString:
		return a.strVal == b.strVal
	case TypeArray:
		if len(a.arrVal) != len(b.arrVal) {
			return false
		}
		for i := range a.arrVal {
			if !Equal(a.arrVal[i], b.arrVal[i]) {
				return false
			}
		}
		return true
	case TypeObject:
		if len(a.objVal) != len(b.objVal) {
			return false
		}
		for i := range a.objVal {
			if a.objVal[i].Key != b.objVal[i].Key || !Equal(a.objVal[i].Value, b.objVal[i].Value) {
				return false
			}
		}
		return true
	}
	return false
}

// Equal reports whether v equals other. See Equal.
func (v *Value) Equal(other *Value) bool {
	return Equal(v, other)
}

// Compare returns -1, 0 or +1 depending on whether a orders before, the
// same as, or after b.
//
// Values of different types order by type rank alone. Values of the same
// type order numerically, byte-lexicographically, element-wise, or
// member-wise (key first, then value).
func Compare(a, b *Value) int {
	a, b = orNull(a), orNull(b)
	if a == b {
		return 0
	}
	if a.typ != b.typ {
		return cmp.Compare(a.typ, b.typ)
	}

	switch a.typ {
	case TypeNumber:
		return compareNumbers(a, b)
	case TypeBool:
		switch {
		case a.boolVal == b.boolVal:
			return 0
		case !a.boolVal:
			return -1
		default:
			return 1
		}
	case TypeString:
		return strings.Compare(a.strVal, b.strVal)
	case TypeArray:
		for i := 0; i < len(a.arrVal) && i < len(b.arrVal); i++ {
			if c := Compare(a.arrVal[i], b.arrVal[i]); c != 0 {
				return c
			}
		}
		return cmp.Compare(len(a.arrVal), len(b.arrVal))
	case TypeObject:
		for i := 0; i < len(a.objVal) && i < len(b.objVal); i++ {
			if c := strings.Compare(a.objVal[i].Key, b.objVal[i].Key); c != 0 {
				return c
			}
			if c := Compare(a.objVal[i].Value, b.objVal[i].Value); c != 0 {
				return c
			}
		}
		return cmp.Compare(len(a.objVal), len(b.objVal))
	}
	return 0
}

// Less reports whether a orders before b. See Compare.
func Less(a, b *Value) bool {
	return Compare(a, b) < 0
}

// compareNumbers compares two numbers exactly, whatever their
// representation. NaN orders before every other number, as in cmp.Compare.
func compareNumbers(a, b *Value) int {
	switch {
	case a.isInt && b.isInt:
		return cmp.Compare(a.intVal, b.intVal)
	case a.isInt:
		return compareIntFloat(a.intVal, b.numVal)
	case b.isInt:
		return -compareIntFloat(b.intVal, a.numVal)
	}
	return cmp.Compare(a.numVal, b.numVal)
}

// compareIntFloat compares i with f without rounding i to a float64.
func compareIntFloat(i int64, f float64) int {
	switch {
	case math.IsNaN(f):
		return 1
	case f >= 0x1p63:
		return -1
	case f < -0x1p63:
		return 1
	}

	t := math.Trunc(f)
	if c := cmp.Compare(i, int64(t)); c != 0 {
		return c
	}
	switch frac := f - t; {
	case frac > 0:
		return -1
	case frac < 0:
		return 1
	}
	return 0
}

func isNaN(v *Value) bool {
	f := v.numVal
	return !v.isInt && f != f
}
