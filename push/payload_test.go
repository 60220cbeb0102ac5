package push

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nubilum/nubilum/jsonv"
)

var fixedClock = func() time.Time { return time.Unix(1700000000, 0) }

func TestNew(t *testing.T) {
	p := New("msg", 5, jsonv.String("hello"), true, WithID(42), WithClock(fixedClock))

	assert.Equal(t, int64(42), p.ID())
	assert.Equal(t, "msg", p.Header())
	assert.Equal(t, 5, p.Importance())
	assert.Equal(t, "hello", p.Content().AsString())
	assert.Equal(t, int64(1700000000), p.Timestamp())
	assert.True(t, p.Notify())
	assert.Equal(t, time.Unix(1700000000, 0), p.Time())

	assert.Equal(t,
		`{"content": "hello", "header": "msg", "id": 42, "importance": 5, "notify": true, "timestamp": 1700000000}`,
		p.String())

	ok, err := p.Value().HasShape(Shape)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestNew_NotifyFalseAndNilContent(t *testing.T) {
	p := New("msg", 1, nil, false, WithClock(fixedClock))
	assert.False(t, p.Notify())
	assert.True(t, p.Content().IsNull())
	assert.True(t, p.Value().Has(KeyContent))
}

func TestNew_RandomIDs(t *testing.T) {
	for i := 0; i < 100; i++ {
		p := New("msg", 0, nil, false)
		assert.GreaterOrEqual(t, p.ID(), int64(0))
		assert.LessOrEqual(t, p.ID(), int64(1<<31-1))
	}

	next := int64(0)
	seq := WithIDSource(func() int64 { next++; return next })
	assert.Equal(t, int64(1), New("a", 0, nil, false, seq).ID())
	assert.Equal(t, int64(2), New("b", 0, nil, false, seq).ID())
}

func TestParse(t *testing.T) {
	in := `{"id": 7, "header": "msg", "importance": 2, "content": {"k": [1]},
		"timestamp": 10, "notify": false, "extra": "ignored"}`

	p, err := Parse(in, jsonv.Standard)
	require.NoError(t, err)
	assert.Equal(t, int64(7), p.ID())
	assert.Equal(t, 1, p.Content().Get("k").Len())

	again, err := Parse(p.String(), jsonv.Standard)
	require.NoError(t, err)
	assert.True(t, jsonv.Equal(p.Value(), again.Value()))
}

func TestParse_Comments(t *testing.T) {
	in := `{"id": 1, /* sender */ "header": "msg", "importance": 0, "timestamp": 0, "notify": true} // eol`

	_, err := Parse(in, jsonv.Standard)
	require.Error(t, err)
	assert.ErrorIs(t, err, jsonv.ErrSyntax)

	p, err := Parse(in, jsonv.Comments)
	require.NoError(t, err)
	assert.True(t, p.Notify())
}

func TestFromValue_BadShape(t *testing.T) {
	tests := []struct {
		name string
		in   string
		key  string
	}{
		{"string id", `{"id": "7", "header": "h", "importance": 1, "timestamp": 1, "notify": false}`, KeyID},
		{"missing header", `{"id": 7, "importance": 1, "timestamp": 1, "notify": false}`, KeyHeader},
		{"bool importance", `{"id": 7, "header": "h", "importance": true, "timestamp": 1, "notify": false}`, KeyImportance},
		{"numeric notify", `{"id": 7, "header": "h", "importance": 1, "timestamp": 1, "notify": 0}`, KeyNotify},
		{"not an object", `[1, 2]`, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(tt.in, jsonv.Standard)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrBadEnvelope)

			var se *jsonv.ShapeError
			require.True(t, errors.As(err, &se))
			assert.Equal(t, tt.key, se.Key)
		})
	}
}

func TestFromValueLoose(t *testing.T) {
	v, err := jsonv.Parse(`{"id:": 0, "header": "msg", "content": "x"}`, jsonv.Standard)
	require.NoError(t, err)

	p := FromValueLoose(v)
	assert.Equal(t, int64(0), p.ID())
	assert.Equal(t, "msg", p.Header())
	assert.Equal(t, int64(0), p.Timestamp())
	assert.False(t, p.Notify())
}

func TestAcknowledge(t *testing.T) {
	in := New("msg", 3, jsonv.String("x"), true, WithID(99), WithClock(fixedClock))
	later := func() time.Time { return time.Unix(1700000100, 0) }

	ack := Acknowledge(in, WithID(5), WithClock(later))

	assert.True(t, IsAck(ack))
	assert.False(t, IsAck(in))
	assert.Equal(t, HeaderAck, ack.Header())
	assert.Equal(t, 3, ack.Importance())
	assert.False(t, ack.Notify())
	assert.Equal(t, int64(1700000100), ack.Timestamp())
	assert.Equal(t, `{"recv-id": 99, "recv-timestamp": 1700000000}`, jsonv.Dump(ack.Content()))

	id, ok := AckedID(ack)
	assert.True(t, ok)
	assert.Equal(t, int64(99), id)

	_, ok = AckedID(in)
	assert.False(t, ok)

	// An acknowledgement is itself a valid envelope.
	_, err := FromValue(ack.Value())
	assert.NoError(t, err)
}

func TestReject(t *testing.T) {
	r := Reject("bad envelope: missing id", WithID(1), WithClock(fixedClock))

	assert.True(t, IsReject(r))
	assert.False(t, IsAck(r))
	assert.Equal(t, "bad envelope: missing id", r.Content().Get("error").AsString())
	assert.Equal(t, 0, r.Importance())

	_, err := FromValue(r.Value())
	assert.NoError(t, err)
}
