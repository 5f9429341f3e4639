package memory

import (
	"context"
	"sync"
	"time"

	"github.com/powmonk/qubpiz-sub000/internal/app"
	"github.com/powmonk/qubpiz-sub000/internal/domain"
	"github.com/powmonk/qubpiz-sub000/internal/metrics"
)

// DefaultSessionTTL is the idle window after which a session is reclaimed.
const DefaultSessionTTL = time.Hour

// SessionStore is an in-memory implementation of app.SessionStore. Expiry is
// lazy: Get checks the idle TTL and deletes on the spot, cascading everything
// the aggregate owns. SweepExpired exists purely for storage hygiene;
// correctness never depends on it.
type SessionStore struct {
	ttl   time.Duration
	clock func() time.Time

	mu       sync.RWMutex
	sessions map[string]*app.Session
}

func NewSessionStore(ttl time.Duration) *SessionStore {
	return NewSessionStoreWithClock(ttl, time.Now)
}

// NewSessionStoreWithClock allows deterministic expiry in tests.
func NewSessionStoreWithClock(ttl time.Duration, clock func() time.Time) *SessionStore {
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	return &SessionStore{
		ttl:      ttl,
		clock:    clock,
		sessions: make(map[string]*app.Session),
	}
}

// Insert adds a session, failing on a code collision. This is the unique
// constraint the code generator's retry loop leans on.
func (s *SessionStore) Insert(_ context.Context, session *app.Session) error {
	code := session.Snapshot().Code
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[code]; ok {
		return domain.ErrCodeTaken
	}
	s.sessions[code] = session
	return nil
}

// Get returns a live session, expiring it first if its idle TTL has passed.
func (s *SessionStore) Get(_ context.Context, code string) (*app.Session, bool) {
	s.mu.RLock()
	session, ok := s.sessions[code]
	s.mu.RUnlock()
	if !ok {
		return nil, false
	}
	if session.IdleLongerThan(s.clock(), s.ttl) {
		s.mu.Lock()
		// Re-check under the write lock; a concurrent mutation may have
		// touched the session since the idle check.
		if current, ok := s.sessions[code]; ok && current == session && session.IdleLongerThan(s.clock(), s.ttl) {
			delete(s.sessions, code)
			metrics.SessionsExpired.Inc()
		}
		s.mu.Unlock()
		s.mu.RLock()
		session, ok = s.sessions[code]
		s.mu.RUnlock()
		if !ok {
			return nil, false
		}
	}
	return session, true
}

// Delete removes a session and, with it, everything the aggregate owns.
func (s *SessionStore) Delete(_ context.Context, code string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, code)
}

// ListByOwner returns the owner's sessions, skipping any that have expired.
func (s *SessionStore) ListByOwner(ctx context.Context, ownerID string) []*app.Session {
	s.mu.RLock()
	codes := make([]string, 0, len(s.sessions))
	for code, session := range s.sessions {
		if session.Snapshot().OwnerID == ownerID {
			codes = append(codes, code)
		}
	}
	s.mu.RUnlock()

	var out []*app.Session
	for _, code := range codes {
		if session, ok := s.Get(ctx, code); ok {
			out = append(out, session)
		}
	}
	return out
}

// Touch is a no-op here: the aggregate stamps its own LastActivityAt and the
// lazy check in Get reads it directly.
func (s *SessionStore) Touch(context.Context, string) {}

// SweepExpired reclaims idle sessions eagerly and reports how many went.
func (s *SessionStore) SweepExpired(_ context.Context) int {
	now := s.clock()
	s.mu.Lock()
	defer s.mu.Unlock()
	removed := 0
	for code, session := range s.sessions {
		if session.IdleLongerThan(now, s.ttl) {
			delete(s.sessions, code)
			metrics.SessionsExpired.Inc()
			removed++
		}
	}
	return removed
}

// Len reports how many sessions are held, expired or not.
func (s *SessionStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}
