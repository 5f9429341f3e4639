package redis

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/powmonk/qubpiz-sub000/internal/app"
	"github.com/powmonk/qubpiz-sub000/internal/domain"
	"github.com/powmonk/qubpiz-sub000/internal/metrics"
)

// SessionStore is a Redis-aware implementation of app.SessionStore.
// Notes:
//   - Session aggregates stay in-process so mutation keeps the in-memory
//     single-writer locking; Redis holds a liveness key per session whose
//     EXPIRE is the authoritative idle TTL.
//   - Touch renews the key, Get treats a missing key as expiry and cascades
//     the in-process state. That makes the TTL survive process restarts of
//     anything that merely polls, without a timer thread.
type SessionStore struct {
	client *redis.Client
	ttl    time.Duration

	mu       sync.RWMutex
	sessions map[string]*app.Session
}

func NewSessionStore(client *redis.Client, ttl time.Duration) *SessionStore {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &SessionStore{
		client:   client,
		ttl:      ttl,
		sessions: make(map[string]*app.Session),
	}
}

func (s *SessionStore) Insert(ctx context.Context, session *app.Session) error {
	snapshot := session.Snapshot()
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[snapshot.Code]; ok {
		return domain.ErrCodeTaken
	}
	// SetNX doubles as the cross-restart uniqueness check on the code.
	ok, err := s.client.SetNX(ctx, s.key(snapshot.Code), snapshot.OwnerID, s.ttl).Result()
	if err != nil {
		return err
	}
	if !ok {
		return domain.ErrCodeTaken
	}
	s.sessions[snapshot.Code] = session
	return nil
}

func (s *SessionStore) Get(ctx context.Context, code string) (*app.Session, bool) {
	s.mu.RLock()
	session, ok := s.sessions[code]
	s.mu.RUnlock()
	if !ok {
		return nil, false
	}
	n, err := s.client.Exists(ctx, s.key(code)).Result()
	if err != nil {
		// Fail closed on a broken store connection rather than serving a
		// session whose liveness is unknown.
		return nil, false
	}
	if n == 0 {
		s.mu.Lock()
		if current, stillThere := s.sessions[code]; stillThere && current == session {
			delete(s.sessions, code)
			metrics.SessionsExpired.Inc()
		}
		s.mu.Unlock()
		return nil, false
	}
	return session, true
}

func (s *SessionStore) Delete(ctx context.Context, code string) {
	s.mu.Lock()
	delete(s.sessions, code)
	s.mu.Unlock()
	_ = s.client.Del(ctx, s.key(code)).Err()
}

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

// Touch renews the liveness key so active sessions never expire mid-use.
func (s *SessionStore) Touch(ctx context.Context, code string) {
	_ = s.client.Expire(ctx, s.key(code), s.ttl).Err()
}

func (s *SessionStore) key(code string) string {
	return "quiz:session:" + code
}
