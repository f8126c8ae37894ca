package ports

import (
	"context"

	"github.com/flowforge/session-gateway/internal/core/domain"
)

// IdentityBackend is the credential strategy behind the session service.
// Exactly one implementation is chosen at construction time: the webhook
// backend when a login endpoint is configured, the local demo backend
// otherwise. Operations never get to re-check configuration.
type IdentityBackend interface {
	// Login exchanges credentials for an identity and a bearer token.
	Login(ctx context.Context, identifier, secret string) (*domain.Session, error)

	// Register creates an account and establishes a session in one step.
	Register(ctx context.Context, name, identifier, secret string) (*domain.Session, error)

	// Verify confirms that token still identifies a valid session. On
	// success it returns a refreshed identity when the backend supplies
	// one, otherwise the cached identity. Any error invalidates the
	// session; no distinction is made between rejection and transport
	// failure.
	Verify(ctx context.Context, token string, cached *domain.User) (*domain.User, error)
}
