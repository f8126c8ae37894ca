package ports

import (
	"context"

	"github.com/flowforge/session-gateway/internal/core/domain"
)

// IdentityStore persists the identity record across restarts (durable
// storage). Load returns domain.ErrNoSession when nothing is stored.
type IdentityStore interface {
	Save(ctx context.Context, user *domain.User) error
	Load(ctx context.Context) (*domain.User, error)
	Clear(ctx context.Context) error
}

// TokenStore holds the bearer token with a bounded lifetime (short-lived
// storage). A token must not outlive its TTL; Load returns
// domain.ErrNoSession once it has expired or was never stored.
type TokenStore interface {
	Save(ctx context.Context, token string) error
	Load(ctx context.Context) (string, error)
	Clear(ctx context.Context) error
}
