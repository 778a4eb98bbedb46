package session

import (
	"context"
	"sync"
	"time"

	"github.com/kailas-cloud/shopsearch/internal/domain/conversation"
)

type memSession struct {
	mu        sync.Mutex
	turns     []conversation.Turn
	expiresAt time.Time
	// removed is set by Sweep; writers holding a stale pointer look the session up again.
	removed bool
}

// MemoryStore is an in-process session store for local runs and tests.
// Each session is guarded by its own mutex; expired sessions are dropped lazily and by Sweep.
type MemoryStore struct {
	mu       sync.Mutex
	sessions map[string]*memSession
	maxTurns int
	ttl      time.Duration
	now      func() time.Time
}

// NewMemoryStore creates an in-memory store.
func NewMemoryStore(maxTurns int, ttl time.Duration) *MemoryStore {
	if maxTurns <= 0 {
		maxTurns = DefaultMaxTurns
	}
	return &MemoryStore{
		sessions: make(map[string]*memSession),
		maxTurns: maxTurns,
		ttl:      ttl,
		now:      time.Now,
	}
}

// History returns a copy of the retained turns, oldest first.
func (m *MemoryStore) History(_ context.Context, sessionID string) ([]conversation.Turn, error) {
	s := m.lookup(sessionID, false)
	if s == nil {
		return []conversation.Turn{}, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if m.expired(s) {
		s.turns = nil
	}
	out := make([]conversation.Turn, len(s.turns))
	copy(out, s.turns)
	return out, nil
}

// Append adds turns under the session lock and evicts the oldest beyond the cap.
func (m *MemoryStore) Append(_ context.Context, sessionID string, turns ...conversation.Turn) error {
	if len(turns) == 0 {
		return nil
	}
	s := m.lookup(sessionID, true)
	s.mu.Lock()
	for s.removed {
		s.mu.Unlock()
		s = m.lookup(sessionID, true)
		s.mu.Lock()
	}
	defer s.mu.Unlock()

	if m.expired(s) {
		s.turns = nil
	}
	s.turns = append(s.turns, turns...)
	if over := len(s.turns) - m.maxTurns; over > 0 {
		s.turns = append([]conversation.Turn(nil), s.turns[over:]...)
	}
	if m.ttl > 0 {
		s.expiresAt = m.now().Add(m.ttl)
	}
	return nil
}

// Sweep removes expired sessions and returns how many were dropped.
func (m *MemoryStore) Sweep() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	n := 0
	for id, s := range m.sessions {
		s.mu.Lock()
		if m.expired(s) {
			s.removed = true
			delete(m.sessions, id)
			n++
		}
		s.mu.Unlock()
	}
	return n
}

// RunSweeper calls Sweep every interval until ctx is done.
func (m *MemoryStore) RunSweeper(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.Sweep()
		}
	}
}

func (m *MemoryStore) lookup(sessionID string, create bool) *memSession {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[sessionID]
	if !ok && create {
		s = &memSession{}
		m.sessions[sessionID] = s
	}
	return s
}

// expired must be called with s.mu held.
func (m *MemoryStore) expired(s *memSession) bool {
	return m.ttl > 0 && !s.expiresAt.IsZero() && !m.now().Before(s.expiresAt)
}
