// Package store keeps the history of received push envelopes.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/nubilum/nubilum/jsonv"
	"github.com/nubilum/nubilum/push"
)

// ErrNotFound is returned when a message does not exist.
var ErrNotFound = errors.New("not found")

// Message is a stored envelope.
type Message struct {
	Seq        int64 // assigned by the store, increasing
	EnvelopeID int64
	Header     string
	Importance int
	Timestamp  int64
	Notify     bool
	Content    *jsonv.Value
	ConnID     string
	Remote     string
	ReceivedAt time.Time
}

// FromPayload builds a Message from a received envelope.
func FromPayload(p *push.Payload, connID, remote string, at time.Time) Message {
	return Message{
		EnvelopeID: p.ID(),
		Header:     p.Header(),
		Importance: p.Importance(),
		Timestamp:  p.Timestamp(),
		Notify:     p.Notify(),
		Content:    p.Content(),
		ConnID:     connID,
		Remote:     remote,
		ReceivedAt: at,
	}
}

// Value renders m as a JSON object for the admin API.
func (m Message) Value() *jsonv.Value {
	return jsonv.Object(
		jsonv.M("seq", jsonv.Int(m.Seq)),
		jsonv.M(push.KeyID, jsonv.Int(m.EnvelopeID)),
		jsonv.M(push.KeyHeader, jsonv.String(m.Header)),
		jsonv.M(push.KeyImportance, jsonv.Int(int64(m.Importance))),
		jsonv.M(push.KeyTimestamp, jsonv.Int(m.Timestamp)),
		jsonv.M(push.KeyNotify, jsonv.Bool(m.Notify)),
		jsonv.M(push.KeyContent, m.Content),
		jsonv.M("conn_id", jsonv.String(m.ConnID)),
		jsonv.M("remote", jsonv.String(m.Remote)),
		jsonv.M("received_at", jsonv.Int(m.ReceivedAt.UnixMilli())),
	)
}

// Filter narrows List results.
type Filter struct {
	Header   string // exact match when set
	AfterSeq int64  // only messages with Seq > AfterSeq
	Limit    int    // 0 means DefaultLimit
}

// DefaultLimit caps List when Filter.Limit is zero.
const DefaultLimit = 100

func (f Filter) limit() int {
	if f.Limit <= 0 {
		return DefaultLimit
	}
	return f.Limit
}

// Store persists messages.
type Store interface {
	// Append stores m and returns its sequence number.
	Append(ctx context.Context, m Message) (int64, error)
	// Get returns the message with the given sequence number.
	Get(ctx context.Context, seq int64) (Message, error)
	// List returns messages in sequence order.
	List(ctx context.Context, f Filter) ([]Message, error)
	// Count returns the number of stored messages.
	Count(ctx context.Context) (int64, error)
	Close() error
}
