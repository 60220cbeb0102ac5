package jsonv

import (
	"errors"
	"fmt"
	"strconv"
)

// MaxDepth is the deepest container nesting the parser accepts.
const MaxDepth = 200

// maxIntLiteral is the longest integer literal (sign included) that is
// guaranteed to fit in an int64.
const maxIntLiteral = 18

// Strategy selects the grammar accepted by the parser.
type Strategy uint8

const (
	// Standard accepts strict JSON.
	Standard Strategy = iota
	// Comments accepts JSON plus // line and /* block */ comments.
	Comments
)

// String returns the strategy name.
func (s Strategy) String() string {
	switch s {
	case Standard:
		return "standard"
	case Comments:
		return "comments"
	default:
		return "unknown"
	}
}

// ParseStrategy parses a strategy name as returned by Strategy.String.
func ParseStrategy(s string) (Strategy, bool) {
	switch s {
	case "standard", "STANDARD", "":
		return Standard, true
	case "comments", "COMMENTS":
		return Comments, true
	default:
		return Standard, false
	}
}

// Error classes carried by ParseError.Err.
var (
	ErrSyntax        = errors.New("syntax error")
	ErrUnexpectedEOF = errors.New("unexpected end of input")
	ErrMaxDepth      = errors.New("maximum nesting depth exceeded")
)

// ParseError represents a parsing error with location.
type ParseError struct {
	Message string
	Offset  int   // byte offset of the cursor when the error latched
	Err     error // ErrSyntax, ErrUnexpectedEOF or ErrMaxDepth
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("jsonv: %s at offset %d", e.Message, e.Offset)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// Parse parses exactly one JSON document.
//
// On failure the returned value is Null() and the error is a *ParseError.
// Trailing whitespace (and comments, under Comments) is allowed; any
// other trailing byte is an error.
func Parse(text string, strategy Strategy) (*Value, error) {
	p := &parser{str: text, strategy: strategy}

	result := p.parseValue(0)
	p.consumeGarbage()
	if p.err != nil {
		return nullValue, p.err
	}
	if p.i != len(p.str) {
		p.fail(ErrSyntax, "unexpected trailing "+esc(p.str[p.i]))
		return nullValue, p.err
	}
	return result, nil
}

// ParseBytes is Parse for a byte slice.
func ParseBytes(data []byte, strategy Strategy) (*Value, error) {
	return Parse(string(data), strategy)
}

// ParseMulti parses back-to-back documents.
//
// It returns every document parsed before the first failure, the byte
// offset just past the last successful document (including the
// whitespace and comments after it), and the failure, if any.
func ParseMulti(text string, strategy Strategy) ([]*Value, int, error) {
	p := &parser{str: text, strategy: strategy}

	var docs []*Value
	stop := 0
	for p.i != len(p.str) && p.err == nil {
		v := p.parseValue(0)
		if p.err != nil {
			break
		}
		docs = append(docs, v)

		p.consumeGarbage()
		if p.err != nil {
			break
		}
		stop = p.i
	}
	if p.err != nil {
		return docs, stop, p.err
	}
	return docs, stop, nil
}

// parser holds the state of a single parse call.
type parser struct {
	str      string
	i        int
	err      *ParseError
	strategy Strategy
}

// fail latches the first error; later failures keep the first message.
func (p *parser) fail(kind error, msg string) *Value {
	if p.err == nil {
		p.err = &ParseError{Message: msg, Offset: p.i, Err: kind}
	}
	return nullValue
}

// peek returns the byte at the cursor, or 0 at end of input.
func (p *parser) peek() byte {
	if p.i < len(p.str) {
		return p.str[p.i]
	}
	return 0
}

func (p *parser) consumeWhitespace() {
	for p.i < len(p.str) {
		switch p.str[p.i] {
		case ' ', '\t', '\r', '\n':
			p.i++
		default:
			return
		}
	}
}

// consumeComment skips one comment at the cursor and reports whether it
// found one.
func (p *parser) consumeComment() bool {
	if p.peek() != '/' {
		return false
	}
	p.i++
	if p.i == len(p.str) {
		p.fail(ErrUnexpectedEOF, "unexpected end of input after start of comment")
		return false
	}

	switch p.str[p.i] {
	case '/':
		p.i++
		for p.i < len(p.str) && p.str[p.i] != '\n' {
			p.i++
		}
		return true
	case '*':
		p.i++
		for {
			if p.i+1 >= len(p.str) {
				p.i = len(p.str)
				p.fail(ErrUnexpectedEOF, "unexpected end of input inside multi-line comment")
				return false
			}
			if p.str[p.i] == '*' && p.str[p.i+1] == '/' {
				p.i += 2
				return true
			}
			p.i++
		}
	default:
		p.fail(ErrSyntax, "malformed comment")
		return false
	}
}

// consumeGarbage skips whitespace and, under Comments, comments.
func (p *parser) consumeGarbage() {
	p.consumeWhitespace()
	if p.strategy != Comments {
		return
	}
	for p.consumeComment() {
		p.consumeWhitespace()
	}
}

// nextToken skips garbage and returns the next byte, advancing past it.
func (p *parser) nextToken() byte {
	p.consumeGarbage()
	if p.err != nil {
		return 0
	}
	if p.i == len(p.str) {
		p.fail(ErrUnexpectedEOF, "unexpected end of input")
		return 0
	}
	ch := p.str[p.i]
	p.i++
	return ch
}

// parseValue parses any value. depth counts the containers enclosing it.
func (p *parser) parseValue(depth int) *Value {
	ch := p.nextToken()
	if p.err != nil {
		return nullValue
	}

	switch {
	case ch == '-' || (ch >= '0' && ch <= '9'):
		p.i--
		return p.parseNumber()
	case ch == 't':
		return p.expect("true", trueValue)
	case ch == 'f':
		return p.expect("false", falseValue)
	case ch == 'n':
		return p.expect("null", nullValue)
	case ch == '"':
		s, ok := p.parseString()
		if !ok {
			return nullValue
		}
		return String(s)
	case ch == '{':
		if depth+1 > MaxDepth {
			return p.fail(ErrMaxDepth, "maximum nesting depth exceeded")
		}
		return p.parseObject(depth + 1)
	case ch == '[':
		if depth+1 > MaxDepth {
			return p.fail(ErrMaxDepth, "maximum nesting depth exceeded")
		}
		return p.parseArray(depth + 1)
	default:
		p.i--
		return p.fail(ErrSyntax, "expected value, got "+esc(ch))
	}
}

// parseObject parses the members after an opening '{'.
func (p *parser) parseObject(depth int) *Value {
	var members []Member

	ch := p.nextToken()
	if ch == '}' {
		return &Value{typ: TypeObject}
	}

	for {
		if p.err != nil {
			return nullValue
		}
		if ch != '"' {
			return p.fail(ErrSyntax, "expected '\"' in object, got "+esc(ch))
		}

		key, ok := p.parseString()
		if !ok {
			return nullValue
		}

		ch = p.nextToken()
		if p.err != nil {
			return nullValue
		}
		if ch != ':' {
			return p.fail(ErrSyntax, "expected ':' in object, got "+esc(ch))
		}

		value := p.parseValue(depth)
		if p.err != nil {
			return nullValue
		}
		members = append(members, Member{Key: key, Value: value})

		ch = p.nextToken()
		if p.err != nil {
			return nullValue
		}
		if ch == '}' {
			break
		}
		if ch != ',' {
			return p.fail(ErrSyntax, "expected ',' in object, got "+esc(ch))
		}

		ch = p.nextToken()
	}
	return Object(members...)
}

// parseArray parses the elements after an opening '['.
func (p *parser) parseArray(depth int) *Value {
	var items []*Value

	ch := p.nextToken()
	if p.err != nil {
		return nullValue
	}
	if ch == ']' {
		return &Value{typ: TypeArray}
	}
	p.i--

	for {
		items = append(items, p.parseValue(depth))
		if p.err != nil {
			return nullValue
		}

		ch = p.nextToken()
		if p.err != nil {
			return nullValue
		}
		if ch == ']' {
			break
		}
		if ch != ',' {
			return p.fail(ErrSyntax, "expected ',' in list, got "+esc(ch))
		}
	}
	return &Value{typ: TypeArray, arrVal: items}
}

// expect matches a literal whose first byte was already consumed.
func (p *parser) expect(literal string, v *Value) *Value {
	p.i--
	end := p.i + len(literal)
	if end <= len(p.str) && p.str[p.i:end] == literal {
		p.i = end
		return v
	}
	got := p.str[p.i:min(end, len(p.str))]
	kind := ErrSyntax
	if end > len(p.str) && literal[:len(got)] == got {
		kind = ErrUnexpectedEOF
	}
	return p.fail(kind, "parse error: expected "+literal+", got "+got)
}

// parseNumber parses a number literal at the cursor.
func (p *parser) parseNumber() *Value {
	start := p.i

	if p.peek() == '-' {
		p.i++
	}

	// Integer part
	switch c := p.peek(); {
	case c == '0':
		p.i++
		if isDigit(p.peek()) {
			return p.fail(ErrSyntax, "leading 0s not permitted in numbers")
		}
	case c >= '1' && c <= '9':
		p.i++
		for isDigit(p.peek()) {
			p.i++
		}
	default:
		return p.fail(p.truncated(), "invalid "+esc(c)+" in number")
	}

	if c := p.peek(); c != '.' && c != 'e' && c != 'E' && p.i-start <= maxIntLiteral {
		n, err := strconv.ParseInt(p.str[start:p.i], 10, 64)
		if err == nil {
			return Int(n)
		}
	}

	// Fractional part
	if p.peek() == '.' {
		p.i++
		if !isDigit(p.peek()) {
			return p.fail(p.truncated(), "at least one digit required in fractional part")
		}
		for isDigit(p.peek()) {
			p.i++
		}
	}

	// Exponent
	if c := p.peek(); c == 'e' || c == 'E' {
		p.i++
		if c := p.peek(); c == '+' || c == '-' {
			p.i++
		}
		if !isDigit(p.peek()) {
			return p.fail(p.truncated(), "at least one digit required in exponent")
		}
		for isDigit(p.peek()) {
			p.i++
		}
	}

	// Out-of-range literals become ±Inf, which serializes as null.
	f, _ := strconv.ParseFloat(p.str[start:p.i], 64)
	return Number(f)
}

// truncated classifies a failure at the cursor: running off the end of
// the input is ErrUnexpectedEOF, anything else is ErrSyntax.
func (p *parser) truncated() error {
	if p.i >= len(p.str) {
		return ErrUnexpectedEOF
	}
	return ErrSyntax
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}

// esc renders a byte for an error message: 'x' (120) when printable,
// (10) otherwise.
func esc(c byte) string {
	if c >= 0x20 && c <= 0x7f {
		return fmt.Sprintf("'%c' (%d)", c, c)
	}
	return fmt.Sprintf("(%d)", c)
}
