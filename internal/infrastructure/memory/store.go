// Package memory provides in-process implementations of the session storage
// ports. They back STORAGE=memory deployments, where the gateway runs with
// no external services at all, and double as test fixtures.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/flowforge/session-gateway/internal/core/domain"
)

// IdentityStore keeps the durable identity record in process memory.
type IdentityStore struct {
	mu   sync.Mutex
	user *domain.User
}

func NewIdentityStore() *IdentityStore {
	return &IdentityStore{}
}

func (s *IdentityStore) Save(_ context.Context, user *domain.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	clone := *user
	s.user = &clone
	return nil
}

func (s *IdentityStore) Load(_ context.Context) (*domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.user == nil {
		return nil, domain.ErrNoSession
	}
	clone := *s.user
	return &clone, nil
}

func (s *IdentityStore) Clear(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.user = nil
	return nil
}

// TokenStore keeps the bearer token in memory with the same bounded
// lifetime the Redis store enforces via key expiry.
type TokenStore struct {
	ttl time.Duration

	mu        sync.Mutex
	token     string
	expiresAt time.Time
}

func NewTokenStore(ttl time.Duration) *TokenStore {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &TokenStore{ttl: ttl}
}

func (s *TokenStore) Save(_ context.Context, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = token
	s.expiresAt = time.Now().Add(s.ttl)
	return nil
}

func (s *TokenStore) Load(_ context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.token == "" || time.Now().After(s.expiresAt) {
		return "", domain.ErrNoSession
	}
	return s.token, nil
}

func (s *TokenStore) Clear(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = ""
	s.expiresAt = time.Time{}
	return nil
}

// LedgerRepository is an in-memory credit journal.
type LedgerRepository struct {
	mu      sync.Mutex
	entries []domain.LedgerEntry
}

func NewLedgerRepository() *LedgerRepository {
	return &LedgerRepository{}
}

func (r *LedgerRepository) Insert(_ context.Context, entry *domain.LedgerEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, *entry)
	return nil
}

func (r *LedgerRepository) ListByUser(_ context.Context, userID string, limit int64) ([]domain.LedgerEntry, error) {
	if limit <= 0 {
		limit = 50
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	// newest first
	var out []domain.LedgerEntry
	for i := len(r.entries) - 1; i >= 0 && int64(len(out)) < limit; i-- {
		if r.entries[i].UserID == userID {
			out = append(out, r.entries[i])
		}
	}
	return out, nil
}
