// Package session implements core.SessionStore in memory and on Redis.
package session

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/trezcool/janus/core"
)

type memSession struct {
	userID  int
	values  map[string][]byte
	expires time.Time
}

// MemoryStore keeps sessions in the process; used in development, tests and single instance deployments.
type MemoryStore struct {
	mu       sync.Mutex
	sessions map[string]*memSession
	now      func() time.Time
}

var _ core.SessionStore = (*MemoryStore)(nil)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sessions: make(map[string]*memSession), now: time.Now}
}

// get returns the live session or nil, dropping it when expired. Callers hold the lock.
func (s *MemoryStore) get(sid string) *memSession {
	sess, ok := s.sessions[sid]
	if !ok {
		return nil
	}
	if !s.now().Before(sess.expires) {
		delete(s.sessions, sid)
		return nil
	}
	return sess
}

func (s *MemoryStore) Create(_ context.Context, userID int, ttl time.Duration) (string, error) {
	sid := uuid.NewString()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[sid] = &memSession{userID: userID, values: make(map[string][]byte), expires: s.now().Add(ttl)}
	return sid, nil
}

func (s *MemoryStore) Exists(_ context.Context, sid string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.get(sid) != nil, nil
}

func (s *MemoryStore) Set(_ context.Context, sid, key string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess := s.get(sid)
	if sess == nil {
		return core.ErrSessionNotFound
	}
	sess.values[key] = append([]byte(nil), value...)
	return nil
}

func (s *MemoryStore) Get(_ context.Context, sid, key string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess := s.get(sid)
	if sess == nil {
		return nil, core.ErrSessionNotFound
	}
	val, ok := sess.values[key]
	if !ok {
		return nil, core.ErrSessionNotFound
	}
	return append([]byte(nil), val...), nil
}

func (s *MemoryStore) Unset(_ context.Context, sid, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sess := s.get(sid); sess != nil {
		delete(sess.values, key)
	}
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, sid string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, sid)
	return nil
}

// Cleanup drops every expired session.
func (s *MemoryStore) Cleanup() {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	for sid, sess := range s.sessions {
		if !now.Before(sess.expires) {
			delete(s.sessions, sid)
		}
	}
}

// StartJanitor runs Cleanup every `every` until ctx is done.
func (s *MemoryStore) StartJanitor(ctx context.Context, every time.Duration) {
	if every <= 0 {
		return
	}
	t := time.NewTicker(every)
	go func() {
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				s.Cleanup()
			}
		}
	}()
}
