package jsonv

import (
	"strings"
)

// parseString parses a string body after the opening quote.
//
// \uXXXX escapes are decoded to UTF-8. A high surrogate immediately
// followed by a low surrogate escape combines into one code point; an
// unpaired surrogate is encoded on its own with the 3-byte form.
func (p *parser) parseString() (string, bool) {
	var out strings.Builder
	pending := rune(-1) // last \u code unit, held back for pairing

	for {
		if p.i == len(p.str) {
			p.fail(ErrUnexpectedEOF, "unexpected end of input in string")
			return "", false
		}

		ch := p.str[p.i]
		p.i++

		if ch == '"' {
			encodeUTF8(&out, pending)
			return out.String(), true
		}

		if ch < 0x20 {
			p.i--
			p.fail(ErrSyntax, "unescaped "+esc(ch)+" in string")
			return "", false
		}

		if ch != '\\' {
			encodeUTF8(&out, pending)
			pending = -1
			out.WriteByte(ch)
			continue
		}

		if p.i == len(p.str) {
			p.fail(ErrUnexpectedEOF, "unexpected end of input in string")
			return "", false
		}

		ch = p.str[p.i]
		p.i++

		if ch == 'u' {
			hex := p.str[p.i:min(p.i+4, len(p.str))]
			if len(hex) < 4 {
				kind := ErrSyntax
				if isHex(hex) {
					kind = ErrUnexpectedEOF
				}
				p.fail(kind, `bad \u escape: `+hex)
				return "", false
			}
			if !isHex(hex) {
				p.fail(ErrSyntax, `bad \u escape: `+hex)
				return "", false
			}

			cp := hexValue(hex)
			if isHighSurrogate(pending) && isLowSurrogate(cp) {
				encodeUTF8(&out, (((pending - 0xD800) << 10) | (cp - 0xDC00)) + 0x10000)
				pending = -1
			} else {
				encodeUTF8(&out, pending)
				pending = cp
			}

			p.i += 4
			continue
		}

		encodeUTF8(&out, pending)
		pending = -1

		switch ch {
		case 'b':
			out.WriteByte('\b')
		case 'f':
			out.WriteByte('\f')
		case 'n':
			out.WriteByte('\n')
		case 'r':
			out.WriteByte('\r')
		case 't':
			out.WriteByte('\t')
		case '"', '\\', '/':
			out.WriteByte(ch)
		default:
			p.i--
			p.fail(ErrSyntax, "invalid escape character "+esc(ch))
			return "", false
		}
	}
}

// encodeUTF8 appends cp using the 1-4 byte UTF-8 layout. Negative code
// points are ignored. Surrogates are encoded like any other code point
// in the 3-byte range, which utf8.EncodeRune would refuse to do.
func encodeUTF8(b *strings.Builder, cp rune) {
	switch {
	case cp < 0:
		return
	case cp < 0x80:
		b.WriteByte(byte(cp))
	case cp < 0x800:
		b.WriteByte(byte(cp>>6) | 0xC0)
		b.WriteByte(byte(cp&0x3F) | 0x80)
	case cp < 0x10000:
		b.WriteByte(byte(cp>>12) | 0xE0)
		b.WriteByte(byte((cp>>6)&0x3F) | 0x80)
		b.WriteByte(byte(cp&0x3F) | 0x80)
	default:
		b.WriteByte(byte(cp>>18) | 0xF0)
		b.WriteByte(byte((cp>>12)&0x3F) | 0x80)
		b.WriteByte(byte((cp>>6)&0x3F) | 0x80)
		b.WriteByte(byte(cp&0x3F) | 0x80)
	}
}

func isHighSurrogate(cp rune) bool { return cp >= 0xD800 && cp <= 0xDBFF }

func isLowSurrogate(cp rune) bool { return cp >= 0xDC00 && cp <= 0xDFFF }

func isHex(s string) bool {
	for i := 0; i < len(s); i++ {
		c := s[i]
		if !(c >= '0' && c <= '9') && !(c >= 'a' && c <= 'f') && !(c >= 'A' && c <= 'F') {
			return false
		}
	}
	return true
}

func hexValue(s string) rune {
	var r rune
	for i := 0; i < len(s); i++ {
		c := s[i]
		r <<= 4
		switch {
		case c >= '0' && c <= '9':
			r |= rune(c - '0')
		case c >= 'a' && c <= 'f':
			r |= rune(c-'a') + 10
		case c >= 'A' && c <= 'F':
			r |= rune(c-'A') + 10
		}
	}
	return r
}
