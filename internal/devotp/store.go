// Package devotp keeps the last delivered plaintext OTP per (contact, purpose) so local
// clients can complete verification without a real SMS or email channel. It is wired only
// when OTP_RETURN_TO_CLIENT is set outside production.
package devotp

import (
	"context"
	"sync"
	"time"
)

// Store holds plaintext codes for dev-only retrieval.
type Store interface {
	// Put records code for (contact, purpose) until expiresAt, replacing any earlier code.
	Put(ctx context.Context, contact, purpose, code string, expiresAt time.Time)
	// Get returns the code for (contact, purpose) if present and unexpired.
	Get(ctx context.Context, contact, purpose string) (code string, ok bool)
}

type key struct {
	contact string
	purpose string
}

type entry struct {
	code      string
	expiresAt time.Time
}

// MemoryStore is an in-memory Store.
type MemoryStore struct {
	mu   sync.Mutex
	m    map[key]entry
	nowF func() time.Time
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{m: make(map[key]entry), nowF: time.Now}
}

func (s *MemoryStore) Put(ctx context.Context, contact, purpose, code string, expiresAt time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.m[key{contact, purpose}] = entry{code: code, expiresAt: expiresAt}
}

// Get drops the entry when it has expired.
func (s *MemoryStore) Get(ctx context.Context, contact, purpose string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := key{contact, purpose}
	e, ok := s.m[k]
	if !ok {
		return "", false
	}
	if !e.expiresAt.After(s.nowF()) {
		delete(s.m, k)
		return "", false
	}
	return e.code, true
}
