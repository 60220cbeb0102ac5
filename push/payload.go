// Package push implements the push-notification envelope carried over the
// wire as a JSON object:
//
//	{"content": ..., "header": "msg", "id": 1804289383,
//	 "importance": 5, "notify": false, "timestamp": 1700000000}
//
// A Payload is a thin typed view over an immutable *jsonv.Value.
package push

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/nubilum/nubilum/jsonv"
)

// Envelope member names.
const (
	KeyID         = "id"
	KeyHeader     = "header"
	KeyImportance = "importance"
	KeyContent    = "content"
	KeyTimestamp  = "timestamp"
	KeyNotify     = "notify"
)

// Reserved headers.
const (
	HeaderAck   = "ack"
	HeaderError = "error"
)

// Shape is the contract every received envelope must satisfy.
// Content may be of any type and is not checked.
var Shape = jsonv.Shape{
	{Key: KeyID, Type: jsonv.TypeNumber},
	{Key: KeyHeader, Type: jsonv.TypeString},
	{Key: KeyImportance, Type: jsonv.TypeNumber},
	{Key: KeyTimestamp, Type: jsonv.TypeNumber},
	{Key: KeyNotify, Type: jsonv.TypeBool},
}

// ErrBadEnvelope is returned when a document does not satisfy Shape.
var ErrBadEnvelope = errors.New("bad envelope")

// Payload is an envelope.
type Payload struct {
	v *jsonv.Value
}

type options struct {
	id    int64
	hasID bool
	clock func() time.Time
	ids   func() int64
}

// Option configures New.
type Option func(*options)

// WithID sets a fixed envelope id.
func WithID(id int64) Option {
	return func(o *options) {
		o.id = id
		o.hasID = true
	}
}

// WithClock sets the time source for the timestamp.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		o.clock = now
	}
}

// WithIDSource sets the generator used for ids when WithID is not given.
func WithIDSource(next func() int64) Option {
	return func(o *options) {
		o.ids = next
	}
}

// randomID returns a non-negative 31-bit id.
func randomID() int64 {
	return int64(rand.Int32())
}

// New builds an envelope stamped with an id and the current Unix time.
// A nil content becomes null.
func New(header string, importance int, content *jsonv.Value, notify bool, opts ...Option) *Payload {
	o := options{clock: time.Now, ids: randomID}
	for _, opt := range opts {
		opt(&o)
	}

	id := o.id
	if !o.hasID {
		id = o.ids()
	}

	return &Payload{v: jsonv.Object(
		jsonv.M(KeyID, jsonv.Int(id)),
		jsonv.M(KeyHeader, jsonv.String(header)),
		jsonv.M(KeyImportance, jsonv.Int(int64(importance))),
		jsonv.M(KeyContent, content),
		jsonv.M(KeyTimestamp, jsonv.Int(o.clock().Unix())),
		jsonv.M(KeyNotify, jsonv.Bool(notify)),
	)}
}

// Parse parses text and checks it against Shape.
func Parse(text string, strategy jsonv.Strategy) (*Payload, error) {
	v, err := jsonv.Parse(text, strategy)
	if err != nil {
		return nil, err
	}
	return FromValue(v)
}

// FromValue wraps v after checking it against Shape.
// The returned error wraps both ErrBadEnvelope and the *jsonv.ShapeError.
func FromValue(v *jsonv.Value) (*Payload, error) {
	if ok, err := jsonv.HasShape(v, Shape); !ok {
		return nil, fmt.Errorf("%w: %w", ErrBadEnvelope, err)
	}
	return &Payload{v: v}, nil
}

// FromValueLoose wraps v without checking it. Accessors on a malformed
// envelope return zero values.
func FromValueLoose(v *jsonv.Value) *Payload {
	return &Payload{v: v}
}

// ID returns the envelope id.
func (p *Payload) ID() int64 {
	return int64(p.v.Get(KeyID).AsInt())
}

// Header returns the envelope header.
func (p *Payload) Header() string {
	return p.v.Get(KeyHeader).AsString()
}

// Importance returns the envelope importance.
func (p *Payload) Importance() int {
	return p.v.Get(KeyImportance).AsInt()
}

// Content returns the envelope content, Null() when absent.
func (p *Payload) Content() *jsonv.Value {
	return p.v.Get(KeyContent)
}

// Timestamp returns the creation time in seconds since the Unix epoch.
func (p *Payload) Timestamp() int64 {
	return int64(p.v.Get(KeyTimestamp).AsInt())
}

// Time returns Timestamp as a time.Time.
func (p *Payload) Time() time.Time {
	return time.Unix(p.Timestamp(), 0)
}

// Notify reports whether the receiver should raise a notification.
func (p *Payload) Notify() bool {
	return p.v.Get(KeyNotify).AsBool()
}

// Value returns the underlying document.
func (p *Payload) Value() *jsonv.Value {
	return p.v
}

// String returns the canonical wire text.
func (p *Payload) String() string {
	return jsonv.Dump(p.v)
}

// Acknowledge builds the reply to in: header "ack", the same importance,
// and content naming the received id and timestamp.
func Acknowledge(in *Payload, opts ...Option) *Payload {
	content := jsonv.Object(
		jsonv.M("recv-id", jsonv.Int(in.ID())),
		jsonv.M("recv-timestamp", jsonv.Int(in.Timestamp())),
	)
	return New(HeaderAck, in.Importance(), content, false, opts...)
}

// IsAck reports whether p is an acknowledgement.
func IsAck(p *Payload) bool {
	return p.Header() == HeaderAck
}

// AckedID returns the id an acknowledgement refers to.
func AckedID(p *Payload) (int64, bool) {
	if !IsAck(p) || !p.Content().Has("recv-id") {
		return 0, false
	}
	return int64(p.Content().Get("recv-id").AsInt()), true
}

// Reject builds the reply sent when a document could not be accepted.
// Content is {"error": reason}.
func Reject(reason string, opts ...Option) *Payload {
	return New(HeaderError, 0, jsonv.Object(jsonv.M("error", jsonv.String(reason))), false, opts...)
}

// IsReject reports whether p is a rejection.
func IsReject(p *Payload) bool {
	return p.Header() == HeaderError
}
