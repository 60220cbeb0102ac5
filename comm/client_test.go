package comm_test

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nubilum/nubilum/comm"
	"github.com/nubilum/nubilum/jsonv"
	"github.com/nubilum/nubilum/push"
)

// scripted accepts one connection, waits for the first byte and then
// writes replies verbatim.
func scripted(t *testing.T, replies ...string) string {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { ln.Close() })

	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()

		buf := make([]byte, 1)
		if _, err := conn.Read(buf); err != nil {
			return
		}
		for _, r := range replies {
			if _, err := conn.Write([]byte(r)); err != nil {
				return
			}
		}
		// Hold the connection open until the client hangs up.
		conn.Read(make([]byte, 64))
	}()

	return ln.Addr().String()
}

func TestClient_SendAndWaitSkipsUnrelatedReplies(t *testing.T) {
	in := push.New("msg", 1, nil, false, push.WithID(10), fixedClock)
	other := push.Acknowledge(push.New("msg", 1, nil, false, push.WithID(11), fixedClock))
	mine := push.Acknowledge(in)

	// Split the matching ack across writes and precede it with noise.
	text := mine.String()
	addr := scripted(t, other.String()+"\n", `{"not": "an envelope"} `, text[:7], text[7:]+"\n")

	c := dial(t, addr)
	ack, err := c.SendAndWait(context.Background(), in)
	require.NoError(t, err)
	assert.True(t, jsonv.Equal(mine.Value(), ack.Value()))
}

func TestClient_SendAndWaitRejected(t *testing.T) {
	addr := scripted(t, push.Reject("bad envelope").String()+"\n")

	c := dial(t, addr)
	reply, err := c.SendAndWait(context.Background(), push.New("msg", 1, nil, false))
	require.Error(t, err)
	assert.ErrorIs(t, err, comm.ErrRejected)
	assert.Contains(t, err.Error(), "bad envelope")
	assert.True(t, push.IsReject(reply))
}

func TestClient_Receive(t *testing.T) {
	a := push.New("news", 1, jsonv.String("a"), true, push.WithID(1), fixedClock)
	b := push.New("news", 1, jsonv.String("b"), true, push.WithID(2), fixedClock)
	addr := scripted(t, a.String()+b.String())

	c := dial(t, addr)
	require.NoError(t, c.Send(push.New("hello", 0, nil, false)))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var got []string
	err := c.Receive(ctx, func(p *push.Payload) error {
		got = append(got, p.Content().AsString())
		if len(got) == 2 {
			return context.Canceled
		}
		return nil
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, []string{"a", "b"}, got)
}

func TestClient_ReceiveStopsWithContext(t *testing.T) {
	addr := scripted(t)

	c := dial(t, addr)
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	err := c.Receive(ctx, func(*push.Payload) error { return nil })
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	// The connection stays usable after the deadline.
	assert.NoError(t, c.Send(push.New("msg", 0, nil, false)))
}

func TestClient_SendAfterClose(t *testing.T) {
	c, err := comm.Dial(context.Background(), scripted(t), comm.ClientOptions{}, zerolog.Nop())
	require.NoError(t, err)

	require.NoError(t, c.Close())
	require.NoError(t, c.Close())
	assert.ErrorIs(t, c.Send(push.New("msg", 0, nil, false)), comm.ErrClosed)
}

func TestDial_Refused(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	ln.Close()

	_, err = comm.Dial(context.Background(), addr, comm.ClientOptions{DialTimeout: time.Second}, zerolog.Nop())
	assert.Error(t, err)
}
