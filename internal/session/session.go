// Package session issues and checks admin login tokens.
package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
)

// DefaultTTL is how long a login stays valid.
const DefaultTTL = 12 * time.Hour

// ErrEmptyToken is returned when a token is required but blank.
var ErrEmptyToken = errors.New("session: empty token")

// Store holds active admin sessions.
type Store interface {
	Create(ctx context.Context) (string, error)
	Valid(ctx context.Context, token string) (bool, error)
	Delete(ctx context.Context, token string) error
}

// MemoryStore keeps sessions in process memory. Expired entries are dropped
// lazily on lookup and swept on Create.
type MemoryStore struct {
	mu       sync.Mutex
	ttl      time.Duration
	now      func() time.Time
	sessions map[string]time.Time // token -> expiry
}

// NewMemoryStore returns a MemoryStore. A non-positive ttl uses DefaultTTL.
func NewMemoryStore(ttl time.Duration) *MemoryStore {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &MemoryStore{
		ttl:      ttl,
		now:      time.Now,
		sessions: make(map[string]time.Time),
	}
}

// SetClock replaces the time source. Tests only.
func (s *MemoryStore) SetClock(now func() time.Time) {
	s.mu.Lock()
	s.now = now
	s.mu.Unlock()
}

func (s *MemoryStore) Create(_ context.Context) (string, error) {
	token := uuid.NewString()

	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	for t, exp := range s.sessions {
		if !now.Before(exp) {
			delete(s.sessions, t)
		}
	}
	s.sessions[token] = now.Add(s.ttl)
	return token, nil
}

func (s *MemoryStore) Valid(_ context.Context, token string) (bool, error) {
	if token == "" {
		return false, nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	exp, ok := s.sessions[token]
	if !ok {
		return false, nil
	}
	if !s.now().Before(exp) {
		delete(s.sessions, token)
		return false, nil
	}
	return true, nil
}

func (s *MemoryStore) Delete(_ context.Context, token string) error {
	if token == "" {
		return ErrEmptyToken
	}
	s.mu.Lock()
	delete(s.sessions, token)
	s.mu.Unlock()
	return nil
}

// Len reports the number of stored sessions, expired ones included.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}
