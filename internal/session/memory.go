package session

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore keeps payloads in process memory with TTL support.
// Suitable for testing and single-instance deployments.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]*memEntry
	cookies CookieOptions
	now     func() time.Time
}

type memEntry struct {
	payload   []byte
	expiresAt time.Time
}

// NewMemoryStore creates a new in-memory session store.
func NewMemoryStore(cookies CookieOptions) *MemoryStore {
	return &MemoryStore{
		entries: make(map[string]*memEntry),
		cookies: cookies,
		now:     time.Now,
	}
}

// Load returns the payload for the request's session id.
func (s *MemoryStore) Load(r *http.Request) ([]byte, error) {
	id, ok := s.cookies.get(r)
	if !ok {
		return nil, ErrNoSession
	}

	s.mu.RLock()
	entry, exists := s.entries[id]
	s.mu.RUnlock()

	if !exists {
		return nil, ErrNoSession
	}

	// Check TTL.
	if s.now().After(entry.expiresAt) {
		s.mu.Lock()
		delete(s.entries, id)
		s.mu.Unlock()
		return nil, ErrNoSession
	}

	return entry.payload, nil
}

// Save stores payload under a fresh session id, dropping the previous one.
func (s *MemoryStore) Save(w http.ResponseWriter, r *http.Request, payload []byte) error {
	id := uuid.NewString()

	s.mu.Lock()
	if old, ok := s.cookies.get(r); ok {
		delete(s.entries, old)
	}
	s.entries[id] = &memEntry{
		payload:   append([]byte(nil), payload...),
		expiresAt: s.now().Add(s.cookies.TTL),
	}
	s.mu.Unlock()

	s.cookies.set(w, id)
	return nil
}

// Clear removes the session and expires its cookie.
func (s *MemoryStore) Clear(w http.ResponseWriter, r *http.Request) error {
	if id, ok := s.cookies.get(r); ok {
		s.mu.Lock()
		delete(s.entries, id)
		s.mu.Unlock()
	}
	s.cookies.expire(w)
	return nil
}

// PurgeExpired drops expired entries and reports how many were removed.
func (s *MemoryStore) PurgeExpired(context.Context) (int64, error) {
	now := s.now()
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for id, e := range s.entries {
		if now.After(e.expiresAt) {
			delete(s.entries, id)
			n++
		}
	}
	return n, nil
}

// Len returns the number of entries (including expired ones). For testing.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// Driver returns "memory".
func (s *MemoryStore) Driver() string { return "memory" }

// HealthCheck always succeeds.
func (s *MemoryStore) HealthCheck(context.Context) error { return nil }
