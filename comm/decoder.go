package comm

import (
	"errors"
	"fmt"

	"github.com/nubilum/nubilum/jsonv"
)

// ErrMessageTooLarge is returned when an incomplete document outgrows the
// decoder limit. The buffered bytes are discarded.
var ErrMessageTooLarge = errors.New("message too large")

// Decoder splits a byte stream into JSON documents.
//
// Bytes are buffered until they form complete documents. A document cut
// off by the end of the buffered bytes waits for more input; any other
// parse failure discards the whole buffer.
//
// A top-level number that ends exactly at the end of the buffer could
// still continue in the next read, so it is held back until a delimiter
// follows it. A number held when the stream ends is discarded like any
// other incomplete document.
type Decoder struct {
	strategy jsonv.Strategy
	max      int
	buf      []byte
}

// NewDecoder creates a decoder. maxBytes caps the incomplete tail; 0
// disables the cap.
func NewDecoder(strategy jsonv.Strategy, maxBytes int) *Decoder {
	return &Decoder{strategy: strategy, max: maxBytes}
}

// SetMax changes the cap on the incomplete tail.
func (d *Decoder) SetMax(maxBytes int) {
	d.max = maxBytes
}

// Buffered returns the number of bytes waiting for more input.
func (d *Decoder) Buffered() int {
	return len(d.buf)
}

// Feed appends data and returns every document completed by it.
//
// Documents that parsed before a failure are returned together with the
// error. The error is a *jsonv.ParseError or ErrMessageTooLarge.
func (d *Decoder) Feed(data []byte) ([]*jsonv.Value, error) {
	d.buf = append(d.buf, data...)

	docs, stop, err := jsonv.ParseMulti(string(d.buf), d.strategy)
	switch {
	case err == nil:
		if d.holdTrailingNumber(docs, stop) {
			return docs[:len(docs)-1], nil
		}
		d.consume(stop)
		return docs, nil

	case errors.Is(err, jsonv.ErrUnexpectedEOF):
		d.consume(stop)
		if d.max > 0 && len(d.buf) > d.max {
			n := len(d.buf)
			d.buf = d.buf[:0]
			return docs, fmt.Errorf("%w: %d bytes buffered, limit %d", ErrMessageTooLarge, n, d.max)
		}
		return docs, nil

	default:
		d.buf = d.buf[:0]
		return docs, err
	}
}

// Reset discards buffered bytes.
func (d *Decoder) Reset() {
	d.buf = d.buf[:0]
}

// holdTrailingNumber consumes everything before a final number that
// touches the end of the buffer and reports whether it did.
func (d *Decoder) holdTrailingNumber(docs []*jsonv.Value, stop int) bool {
	if len(docs) == 0 || stop != len(d.buf) || !docs[len(docs)-1].IsNumber() {
		return false
	}
	start := len(d.buf)
	for start > 0 && isNumberByte(d.buf[start-1]) {
		start--
	}
	if start == len(d.buf) {
		return false
	}

	// The number must be the whole last document, not the tail of a comment.
	prev, prevStop, err := jsonv.ParseMulti(string(d.buf[:start]), d.strategy)
	if err != nil && !errors.Is(err, jsonv.ErrUnexpectedEOF) || len(prev) != len(docs)-1 {
		return false
	}
	d.consume(prevStop)
	return true
}

func isNumberByte(c byte) bool {
	switch {
	case c >= '0' && c <= '9':
		return true
	case c == '-', c == '+', c == '.', c == 'e', c == 'E':
		return true
	}
	return false
}

func (d *Decoder) consume(n int) {
	d.buf = append(d.buf[:0], d.buf[n:]...)
}
