package sessionstore

import (
	"context"
	"sync"
	"time"
)

// MemoryStore is an in-process Store with per-entry expiry. It is the
// fallback when Redis is unreachable and the default store in tests.
type MemoryStore struct {
	mu       sync.Mutex
	ttl      time.Duration
	now      func() time.Time
	sessions map[string]memoryEntry
}

type memoryEntry struct {
	session   Session
	expiresAt time.Time
}

func NewMemoryStore(ttl time.Duration) *MemoryStore {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &MemoryStore{
		ttl:      ttl,
		now:      time.Now,
		sessions: make(map[string]memoryEntry),
	}
}

func (s *MemoryStore) Create(_ context.Context, sess *Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now().UTC()
	if sess.CreatedAt.IsZero() {
		sess.CreatedAt = now
	}
	sess.UpdatedAt = now
	s.sessions[sess.ID] = memoryEntry{session: *sess, expiresAt: now.Add(s.ttl)}
	return nil
}

func (s *MemoryStore) Get(_ context.Context, id string) (*Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.live(id)
	if !ok {
		return nil, ErrNotFound
	}
	sess := entry.session
	return &sess, nil
}

func (s *MemoryStore) Update(_ context.Context, sess *Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.live(sess.ID); !ok {
		return ErrNotFound
	}
	sess.UpdatedAt = s.now().UTC()
	s.sessions[sess.ID] = memoryEntry{session: *sess, expiresAt: s.now().Add(s.ttl)}
	return nil
}

func (s *MemoryStore) Extend(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.live(id)
	if !ok {
		return ErrNotFound
	}
	entry.expiresAt = s.now().Add(s.ttl)
	s.sessions[id] = entry
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, id)
	return nil
}

// live returns the entry for id, evicting it first if expired.
// Callers must hold s.mu.
func (s *MemoryStore) live(id string) (memoryEntry, bool) {
	entry, ok := s.sessions[id]
	if !ok {
		return memoryEntry{}, false
	}
	if s.now().After(entry.expiresAt) {
		delete(s.sessions, id)
		return memoryEntry{}, false
	}
	return entry, true
}
