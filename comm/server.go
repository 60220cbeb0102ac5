// Package comm implements the push transport: a TCP server that accepts
// envelopes, acknowledges and stores them, and the matching client.
//
// Envelopes travel as back-to-back JSON documents on a plain TCP stream.
// Each side splits the stream with a Decoder. Replies are written as one
// canonical document followed by a newline.
package comm

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/rs/zerolog"

	"github.com/nubilum/nubilum/internal/logging"
	"github.com/nubilum/nubilum/internal/metrics"
	"github.com/nubilum/nubilum/internal/store"
	"github.com/nubilum/nubilum/jsonv"
	"github.com/nubilum/nubilum/push"
)

// ErrClosed is returned by Serve after Shutdown and by a closed Client.
var ErrClosed = errors.New("comm: closed")

// ReasonPending is the reject reason for a resend that arrives while the
// first copy is still being stored. The sender should retry.
const ReasonPending = "duplicate pending, retry"

// Handler is called for every accepted envelope after it is stored.
type Handler func(ctx context.Context, p *push.Payload, seq int64)

// ServerOptions configures a Server.
type ServerOptions struct {
	Strategy        jsonv.Strategy
	ReadBufferBytes int           // default 4096
	MaxMessageBytes int           // 0 disables the cap
	DedupeSize      int           // default 1024
	IdleTimeout     time.Duration // 0 disables
	WriteTimeout    time.Duration // 0 disables
	Handler         Handler
	Now             func() time.Time
}

// Server accepts push envelopes over TCP.
type Server struct {
	opts    ServerOptions
	store   store.Store
	metrics *metrics.Collector
	logger  zerolog.Logger

	// seen maps the hash of recently stored envelopes to their sequence.
	seen       *lru.Cache[uint64, int64]
	maxMessage atomic.Int64

	mu       sync.Mutex
	listener net.Listener
	conns    map[net.Conn]struct{}
	closed   bool
	wg       sync.WaitGroup
}

// NewServer creates a server storing into st.
func NewServer(opts ServerOptions, st store.Store, m *metrics.Collector, logger zerolog.Logger) (*Server, error) {
	if opts.ReadBufferBytes <= 0 {
		opts.ReadBufferBytes = 4096
	}
	if opts.DedupeSize <= 0 {
		opts.DedupeSize = 1024
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	seen, err := lru.New[uint64, int64](opts.DedupeSize)
	if err != nil {
		return nil, fmt.Errorf("create dedupe cache: %w", err)
	}

	s := &Server{
		opts:    opts,
		store:   st,
		metrics: m,
		logger:  logging.Component(logger, "server"),
		seen:    seen,
		conns:   make(map[net.Conn]struct{}),
	}
	s.maxMessage.Store(int64(opts.MaxMessageBytes))
	return s, nil
}

// SetMaxMessageBytes changes the message size cap for subsequent reads.
func (s *Server) SetMaxMessageBytes(n int) {
	s.maxMessage.Store(int64(n))
}

// ListenAndServe listens on addr and serves until Shutdown.
func (s *Server) ListenAndServe(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", addr, err)
	}
	return s.Serve(ln)
}

// Serve accepts connections on ln until Shutdown. It always returns a
// non-nil error; after Shutdown the error is ErrClosed.
func (s *Server) Serve(ln net.Listener) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		ln.Close()
		return ErrClosed
	}
	s.listener = ln
	s.mu.Unlock()

	s.logger.Info().Str("addr", ln.Addr().String()).Msg("push server listening")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	for {
		conn, err := ln.Accept()
		if err != nil {
			if s.isClosed() {
				return ErrClosed
			}
			var ne net.Error
			if errors.As(err, &ne) && ne.Timeout() {
				s.logger.Warn().Err(err).Msg("accept timeout")
				continue
			}
			return fmt.Errorf("accept: %w", err)
		}

		if !s.track(conn) {
			conn.Close()
			return ErrClosed
		}
		go s.handle(ctx, conn)
	}
}

// Addr returns the listener address, or nil before Serve.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Shutdown stops accepting, closes open connections and waits for their
// handlers to finish or ctx to end.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	s.closed = true
	if s.listener != nil {
		s.listener.Close()
	}
	for c := range s.conns {
		c.Close()
	}
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info().Msg("push server stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Server) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func (s *Server) track(c net.Conn) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	s.conns[c] = struct{}{}
	s.wg.Add(1)
	return true
}

func (s *Server) untrack(c net.Conn) {
	s.mu.Lock()
	delete(s.conns, c)
	s.mu.Unlock()
	s.wg.Done()
}

// session is the per-connection state.
type session struct {
	id     string
	conn   net.Conn
	remote string
	logger zerolog.Logger
}

func (s *Server) handle(ctx context.Context, conn net.Conn) {
	defer s.untrack(conn)
	defer conn.Close()

	sess := &session{
		id:     uuid.NewString(),
		conn:   conn,
		remote: conn.RemoteAddr().String(),
	}
	sess.logger = s.logger.With().Str("conn_id", sess.id).Str("remote", sess.remote).Logger()

	s.metrics.Connections.Inc()
	s.metrics.ConnectionsTotal.Inc()
	defer s.metrics.Connections.Dec()
	sess.logger.Info().Msg("client connected")

	dec := NewDecoder(s.opts.Strategy, int(s.maxMessage.Load()))
	buf := make([]byte, s.opts.ReadBufferBytes)

	for {
		if s.opts.IdleTimeout > 0 {
			conn.SetReadDeadline(time.Now().Add(s.opts.IdleTimeout))
		}

		n, err := conn.Read(buf)
		if n > 0 {
			s.metrics.BytesReceived.Add(float64(n))
			dec.SetMax(int(s.maxMessage.Load()))

			start := time.Now()
			docs, derr := dec.Feed(buf[:n])
			s.metrics.ParseDuration.Observe(time.Since(start).Seconds())

			for _, doc := range docs {
				if !s.dispatch(ctx, sess, doc) {
					return
				}
			}
			if derr != nil && !s.reject(sess, derr) {
				return
			}
		}

		if err != nil {
			switch {
			case errors.Is(err, io.EOF):
				sess.logger.Info().Msg("client disconnected")
			case s.isClosed():
				sess.logger.Debug().Msg("connection closed by shutdown")
			default:
				var ne net.Error
				if errors.As(err, &ne) && ne.Timeout() {
					sess.logger.Info().Dur("idle", s.opts.IdleTimeout).Msg("closing idle connection")
				} else {
					sess.logger.Warn().Err(err).Msg("read failed")
				}
			}
			if dec.Buffered() > 0 {
				sess.logger.Debug().Int("bytes", dec.Buffered()).Msg("discarding incomplete message")
			}
			return
		}
	}
}

// dispatch handles one decoded document. It returns false when the
// connection should be dropped.
func (s *Server) dispatch(ctx context.Context, sess *session, doc *jsonv.Value) bool {
	p, err := push.FromValue(doc)
	if err != nil {
		s.metrics.MessagesReceived.WithLabelValues(metrics.ResultBadShape).Inc()
		sess.logger.Warn().Err(err).Msg("rejected envelope")
		return s.reply(sess, push.Reject(err.Error()))
	}

	// The key is reserved before the append so a resend racing on another
	// connection counts as a duplicate. Sequence 0 marks a pending append.
	key := doc.Hash()
	if found, _ := s.seen.ContainsOrAdd(key, 0); found {
		s.metrics.MessagesReceived.WithLabelValues(metrics.ResultDuplicate).Inc()
		seq, _ := s.seen.Peek(key)
		if seq == 0 {
			// Not stored yet, and the append may still fail.
			sess.logger.Debug().Int64("id", p.ID()).Msg("duplicate of pending envelope")
			return s.reply(sess, push.Reject(ReasonPending))
		}
		sess.logger.Debug().Int64("id", p.ID()).Int64("seq", seq).Msg("duplicate envelope")
		return s.ack(sess, p)
	}

	seq, err := s.store.Append(ctx, store.FromPayload(p, sess.id, sess.remote, s.opts.Now()))
	if err != nil {
		s.seen.Remove(key)
		s.metrics.StoreErrors.WithLabelValues("append").Inc()
		sess.logger.Error().Err(err).Int64("id", p.ID()).Msg("store envelope")
		return s.reply(sess, push.Reject("store failed"))
	}
	s.seen.Add(key, seq)
	s.metrics.MessagesReceived.WithLabelValues(metrics.ResultOK).Inc()

	sess.logger.Debug().
		Int64("id", p.ID()).
		Int64("seq", seq).
		Str("header", p.Header()).
		Int("importance", p.Importance()).
		Bool("notify", p.Notify()).
		Msg("envelope received")

	if s.opts.Handler != nil {
		s.opts.Handler(ctx, p, seq)
	}
	return s.ack(sess, p)
}

// reject reports a decode failure to the client.
func (s *Server) reject(sess *session, err error) bool {
	if errors.Is(err, ErrMessageTooLarge) {
		s.metrics.MessagesReceived.WithLabelValues(metrics.ResultTooLarge).Inc()
	} else {
		s.metrics.MessagesReceived.WithLabelValues(metrics.ResultParseError).Inc()
		s.metrics.ObserveParseError(err)
	}
	sess.logger.Warn().Err(err).Msg("discarding unparseable input")
	return s.reply(sess, push.Reject(err.Error()))
}

func (s *Server) ack(sess *session, p *push.Payload) bool {
	if !s.reply(sess, push.Acknowledge(p)) {
		return false
	}
	s.metrics.AcksSent.Inc()
	return true
}

func (s *Server) reply(sess *session, p *push.Payload) bool {
	if s.opts.WriteTimeout > 0 {
		sess.conn.SetWriteDeadline(time.Now().Add(s.opts.WriteTimeout))
	}

	out := append(jsonv.AppendDump(nil, p.Value()), '\n')
	n, err := sess.conn.Write(out)
	s.metrics.BytesSent.Add(float64(n))
	if err != nil {
		sess.logger.Warn().Err(err).Str("header", p.Header()).Msg("write reply")
		return false
	}
	return true
}
