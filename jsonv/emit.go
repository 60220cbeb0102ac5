package jsonv

import (
	"math"
	"strconv"
)

// Dump serializes v to canonical JSON text.
//
// Arrays and objects use ", " and ": " separators with no indentation.
// Object keys appear in sorted order. Non-finite numbers become null.
func Dump(v *Value) string {
	return string(AppendDump(nil, v))
}

// AppendDump appends the canonical text of v to dst.
func AppendDump(dst []byte, v *Value) []byte {
	e := emitter{buf: dst}
	e.emit(v)
	return e.buf
}

// String returns the canonical JSON text of v.
func (v *Value) String() string {
	return Dump(v)
}

// MarshalJSON implements json.Marshaler.
func (v *Value) MarshalJSON() ([]byte, error) {
	return AppendDump(nil, v), nil
}

type emitter struct {
	buf []byte
}

func (e *emitter) emit(v *Value) {
	switch v.Type() {
	case TypeNull:
		e.buf = append(e.buf, "null"...)

	case TypeNumber:
		if v.isInt {
			e.buf = strconv.AppendInt(e.buf, v.intVal, 10)
		} else {
			e.emitFloat(v.numVal)
		}

	case TypeBool:
		if v.boolVal {
			e.buf = append(e.buf, "true"...)
		} else {
			e.buf = append(e.buf, "false"...)
		}

	case TypeString:
		e.emitString(v.strVal)

	case TypeArray:
		e.buf = append(e.buf, '[')
		for i, elem := range v.arrVal {
			if i > 0 {
				e.buf = append(e.buf, ", "...)
			}
			e.emit(elem)
		}
		e.buf = append(e.buf, ']')

	case TypeObject:
		e.buf = append(e.buf, '{')
		for i, m := range v.objVal {
			if i > 0 {
				e.buf = append(e.buf, ", "...)
			}
			e.emitString(m.Key)
			e.buf = append(e.buf, ": "...)
			e.emit(m.Value)
		}
		e.buf = append(e.buf, '}')
	}
}

// emitFloat writes f with 17 significant digits, enough to round-trip
// any float64.
func (e *emitter) emitFloat(f float64) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		e.buf = append(e.buf, "null"...)
		return
	}
	e.buf = strconv.AppendFloat(e.buf, f, 'g', 17, 64)
}

const hexDigits = "0123456789abcdef"

// emitString writes a quoted string. It works on bytes so that strings
// holding unpaired surrogates survive unchanged.
func (e *emitter) emitString(s string) {
	e.buf = append(e.buf, '"')
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch c {
		case '\\':
			e.buf = append(e.buf, `\\`...)
		case '"':
			e.buf = append(e.buf, `\"`...)
		case '\b':
			e.buf = append(e.buf, `\b`...)
		case '\f':
			e.buf = append(e.buf, `\f`...)
		case '\n':
			e.buf = append(e.buf, `\n`...)
		case '\r':
			e.buf = append(e.buf, `\r`...)
		case '\t':
			e.buf = append(e.buf, `\t`...)
		default:
			switch {
			case c < 0x20:
				e.buf = append(e.buf, '\\', 'u', '0', '0', hexDigits[c>>4], hexDigits[c&0xF])
			case c == 0xE2 && i+2 < len(s) && s[i+1] == 0x80 && s[i+2] == 0xA8:
				// U+2028 LINE SEPARATOR
				e.buf = append(e.buf, `\u2028`...)
				i += 2
			case c == 0xE2 && i+2 < len(s) && s[i+1] == 0x80 && s[i+2] == 0xA9:
				// U+2029 PARAGRAPH SEPARATOR
				e.buf = append(e.buf, `\u2029`...)
				i += 2
			default:
				e.buf = append(e.buf, c)
			}
		}
	}
	e.buf = append(e.buf, '"')
}
