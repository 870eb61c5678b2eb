package session

import (
	"context"
	"sync"
	"time"

	"github.com/chemfalcon/chembot/core"
)

// InMemoryStore is a volatile Store implementation keeping sessions in a
// process-local map. It is safe for concurrent access and best suited for
// tests or single-instance deployments. Each returned session is cloned to
// prevent external mutation of internal state.
type InMemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]*core.Session
	ttl      time.Duration
}

// Interface compliance (compile-time assertion)
var _ Store = (*InMemoryStore)(nil)

// NewInMemoryStore constructs an empty in-memory session store with the
// default one-day inactivity TTL.
func NewInMemoryStore() *InMemoryStore {
	return NewInMemoryStoreTTL(DefaultTTL)
}

// NewInMemoryStoreTTL constructs a store with an explicit inactivity TTL.
func NewInMemoryStoreTTL(ttl time.Duration) *InMemoryStore {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &InMemoryStore{sessions: make(map[string]*core.Session), ttl: ttl}
}

// Get returns a clone of the stored session. Expired sessions are dropped
// and reported as not found.
func (s *InMemoryStore) Get(_ context.Context, sessionID string) (*core.Session, error) {
	s.mu.RLock()
	sess, ok := s.sessions[sessionID]
	s.mu.RUnlock()

	if !ok {
		return nil, ErrNotFound
	}

	if sess.Expired(s.ttl) {
		s.mu.Lock()
		delete(s.sessions, sessionID)
		s.mu.Unlock()
		return nil, ErrNotFound
	}

	return sess.Clone(), nil
}

// Save stores a clone of the provided session snapshot.
func (s *InMemoryStore) Save(_ context.Context, sess *core.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.sessions[sess.ID] = sess.Clone()
	return nil
}

// Delete removes a session. Deleting an unknown id is a no-op.
func (s *InMemoryStore) Delete(_ context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.sessions, sessionID)
	return nil
}

// Sweep drops every expired session and returns how many were removed.
// Call it periodically from the wiring layer; Get also expires lazily.
func (s *InMemoryStore) Sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for id, sess := range s.sessions {
		if sess.Expired(s.ttl) {
			delete(s.sessions, id)
			removed++
		}
	}

	return removed
}

// Len reports the number of live sessions (including not-yet-swept expired
// ones).
func (s *InMemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.sessions)
}
