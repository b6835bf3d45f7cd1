// Package devotp keeps plain passcodes by access code id for dev-only retrieval (GET /api/dev/otp/:accessCodeId).
// It is wired only when dev OTP mode is on, which config rejects in production.
package devotp

import (
	"context"
	"sync"
	"time"
)

// Store holds plain passcodes by access code id. Not used in production.
type Store interface {
	// Put stores code for accessCodeID until expiresAt.
	Put(ctx context.Context, accessCodeID, code string, expiresAt time.Time)
	// Get returns the code for accessCodeID if present and not expired.
	Get(ctx context.Context, accessCodeID string) (code string, ok bool)
	// Delete forgets accessCodeID, e.g. once the code has been used.
	Delete(ctx context.Context, accessCodeID string)
}

type entry struct {
	code      string
	expiresAt time.Time
}

// MemoryStore is an in-memory Store implementation. Expired entries are swept on Put.
type MemoryStore struct {
	mu   sync.RWMutex
	m    map[string]entry
	nowF func() time.Time
}

// NewMemoryStore returns a new in-memory dev passcode store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		m:    make(map[string]entry),
		nowF: func() time.Time { return time.Now().UTC() },
	}
}

// Put stores code for accessCodeID until expiresAt.
func (s *MemoryStore) Put(_ context.Context, accessCodeID, code string, expiresAt time.Time) {
	now := s.nowF()
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, e := range s.m {
		if !e.expiresAt.After(now) {
			delete(s.m, id)
		}
	}
	s.m[accessCodeID] = entry{code: code, expiresAt: expiresAt}
}

// Get returns the code for accessCodeID if present and not expired.
func (s *MemoryStore) Get(_ context.Context, accessCodeID string) (string, bool) {
	s.mu.RLock()
	e, ok := s.m[accessCodeID]
	s.mu.RUnlock()
	if !ok {
		return "", false
	}
	if !e.expiresAt.After(s.nowF()) {
		s.mu.Lock()
		delete(s.m, accessCodeID)
		s.mu.Unlock()
		return "", false
	}
	return e.code, true
}

// Delete removes accessCodeID. No-op if absent.
func (s *MemoryStore) Delete(_ context.Context, accessCodeID string) {
	s.mu.Lock()
	delete(s.m, accessCodeID)
	s.mu.Unlock()
}

// Len returns the number of stored entries, expired or not.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.m)
}
