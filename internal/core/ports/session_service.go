package ports

import (
	"context"

	"github.com/flowforge/session-gateway/internal/core/domain"
)

// Snapshot is a point-in-time read of the session capability surface.
type Snapshot struct {
	User        *domain.User
	AccessToken string
	IsLoading   bool
	Error       string
	State       domain.VerifyState
}

// SessionService is the single source of truth for the current identity,
// token, and transient status flags. It is the only writer of the durable
// and short-lived stores; no other component mutates session fields.
type SessionService interface {
	// Snapshot returns the current session state.
	Snapshot() Snapshot

	// IsAuthenticated is derived: true iff a user is present.
	IsAuthenticated() bool

	// IsLoading reports whether startup verification or a credential
	// operation is in flight.
	IsLoading() bool

	// User returns the current identity, or nil without a session.
	User() *domain.User

	// Verify reconciles stored state with the identity backend. Run once at
	// startup; any failure invalidates the session silently.
	Verify(ctx context.Context)

	// Login and Register normalise every failure into the result shape;
	// they never return an error.
	Login(ctx context.Context, identifier, secret string) domain.AuthResult
	Register(ctx context.Context, name, identifier, secret string) domain.AuthResult

	// Logout clears both stores unconditionally. It cannot fail from the
	// caller's perspective.
	Logout(ctx context.Context)

	// UpdateCredits replaces the credit balance and persists the identity.
	// No-op without an active session. Callers own the arithmetic.
	UpdateCredits(ctx context.Context, newBalance int) error

	// ClearError resets the last-operation failure message.
	ClearError()

	// CanConsume reports whether at least one credit remains.
	CanConsume() bool

	// Consume deducts amount credits after a metered operation succeeded.
	Consume(ctx context.Context, amount int, reason string) error
}
