package comm

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/nubilum/nubilum/internal/logging"
	"github.com/nubilum/nubilum/jsonv"
	"github.com/nubilum/nubilum/push"
)

// ErrRejected is returned by SendAndWait when the server answers with an
// error reply.
var ErrRejected = errors.New("rejected by server")

// ClientOptions configures Dial.
type ClientOptions struct {
	Strategy        jsonv.Strategy
	DialTimeout     time.Duration
	WriteTimeout    time.Duration
	MaxMessageBytes int
	ReadBufferBytes int
}

// Client is a connection to a push server.
//
// Send may be called concurrently. Receive and SendAndWait read from the
// connection and must not run at the same time.
type Client struct {
	conn   net.Conn
	opts   ClientOptions
	logger zerolog.Logger

	wmu    sync.Mutex
	closed bool

	dec     *Decoder
	buf     []byte
	pending []*push.Payload
}

// Dial connects to addr.
func Dial(ctx context.Context, addr string, opts ClientOptions, logger zerolog.Logger) (*Client, error) {
	if opts.ReadBufferBytes <= 0 {
		opts.ReadBufferBytes = 4096
	}

	d := net.Dialer{Timeout: opts.DialTimeout}
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", addr, err)
	}

	c := &Client{
		conn:   conn,
		opts:   opts,
		logger: logging.Component(logger, "client").With().Str("server", addr).Logger(),
		dec:    NewDecoder(opts.Strategy, opts.MaxMessageBytes),
		buf:    make([]byte, opts.ReadBufferBytes),
	}
	c.logger.Debug().Msg("connected")
	return c, nil
}

// LocalAddr returns the local end of the connection.
func (c *Client) LocalAddr() net.Addr {
	return c.conn.LocalAddr()
}

// Send writes p to the server.
func (c *Client) Send(p *push.Payload) error {
	c.wmu.Lock()
	defer c.wmu.Unlock()

	if c.closed {
		return ErrClosed
	}
	if c.opts.WriteTimeout > 0 {
		c.conn.SetWriteDeadline(time.Now().Add(c.opts.WriteTimeout))
	}
	if _, err := c.conn.Write([]byte(p.String())); err != nil {
		return fmt.Errorf("send envelope %d: %w", p.ID(), err)
	}

	c.logger.Debug().Int64("id", p.ID()).Str("header", p.Header()).Msg("sent")
	return nil
}

// SendAndWait sends p and waits for its acknowledgement. Replies for
// other envelopes are discarded. A rejection ends the wait with
// ErrRejected.
func (c *Client) SendAndWait(ctx context.Context, p *push.Payload) (*push.Payload, error) {
	if err := c.Send(p); err != nil {
		return nil, err
	}

	for {
		reply, err := c.next(ctx)
		if err != nil {
			return nil, err
		}
		if push.IsReject(reply) {
			return reply, fmt.Errorf("%w: %s", ErrRejected, reply.Content().Get("error").AsString())
		}
		if id, ok := push.AckedID(reply); ok && id == p.ID() {
			return reply, nil
		}
		c.logger.Debug().Str("header", reply.Header()).Msg("skipping unrelated reply")
	}
}

// Receive calls handler for every envelope received until ctx ends, the
// connection closes or handler returns an error.
func (c *Client) Receive(ctx context.Context, handler func(*push.Payload) error) error {
	for {
		p, err := c.next(ctx)
		if err != nil {
			return err
		}
		if err := handler(p); err != nil {
			return err
		}
	}
}

// Close closes the connection.
func (c *Client) Close() error {
	c.wmu.Lock()
	defer c.wmu.Unlock()

	if c.closed {
		return nil
	}
	c.closed = true
	return c.conn.Close()
}

// next returns the next well-formed envelope from the server.
func (c *Client) next(ctx context.Context) (*push.Payload, error) {
	stop := context.AfterFunc(ctx, func() {
		c.conn.SetReadDeadline(time.Now())
	})
	defer func() {
		if !stop() {
			c.conn.SetReadDeadline(time.Time{})
		}
	}()

	for len(c.pending) == 0 {
		n, err := c.conn.Read(c.buf)
		if n > 0 {
			docs, derr := c.dec.Feed(c.buf[:n])
			for _, doc := range docs {
				p, perr := push.FromValue(doc)
				if perr != nil {
					c.logger.Warn().Err(perr).Msg("ignoring malformed reply")
					continue
				}
				c.pending = append(c.pending, p)
			}
			if derr != nil {
				c.logger.Warn().Err(derr).Msg("discarding unparseable reply")
			}
		}
		if err != nil {
			if len(c.pending) > 0 {
				break
			}
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return nil, fmt.Errorf("receive: %w", err)
		}
	}

	p := c.pending[0]
	c.pending = c.pending[1:]
	return p, nil
}
