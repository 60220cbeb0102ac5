package store

import (
	"context"
	"sort"
	"sync"
)

// Memory is an in-process Store. It is used when no database is
// configured and in tests.
type Memory struct {
	mu   sync.RWMutex
	msgs []Message
	next int64
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{}
}

// Append stores m.
func (s *Memory) Append(ctx context.Context, m Message) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.next++
	m.Seq = s.next
	s.msgs = append(s.msgs, m)
	return m.Seq, nil
}

// Get retrieves a message by sequence number.
func (s *Memory) Get(ctx context.Context, seq int64) (Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	i := sort.Search(len(s.msgs), func(i int) bool { return s.msgs[i].Seq >= seq })
	if i == len(s.msgs) || s.msgs[i].Seq != seq {
		return Message{}, ErrNotFound
	}
	return s.msgs[i], nil
}

// List returns messages in sequence order.
func (s *Memory) List(ctx context.Context, f Filter) ([]Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []Message
	for _, m := range s.msgs {
		if m.Seq <= f.AfterSeq || (f.Header != "" && m.Header != f.Header) {
			continue
		}
		out = append(out, m)
		if len(out) == f.limit() {
			break
		}
	}
	return out, nil
}

// Count returns the number of stored messages.
func (s *Memory) Count(ctx context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return int64(len(s.msgs)), nil
}

// Close is a no-op.
func (s *Memory) Close() error {
	return nil
}
