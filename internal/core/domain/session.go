package domain

import "time"

// Plan tiers an identity can hold. Demo identities are fabricated locally,
// free identities come from registration, paid from an external upgrade flow.
const (
	PlanDemo = "demo"
	PlanFree = "free"
	PlanPaid = "paid"
)

// KnownPlan reports whether p is one of the recognised plan tiers.
func KnownPlan(p string) bool {
	return p == PlanDemo || p == PlanFree || p == PlanPaid
}

// User is the identity record attached to the active session.
type User struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	Plan      string    `json:"plan"`
	Credits   int       `json:"credits"`
	CreatedAt time.Time `json:"created_at"`
}

// Session pairs an identity with its bearer token. A session is atomic:
// never a token without identity and never the reverse.
type Session struct {
	User        *User  `json:"user"`
	AccessToken string `json:"access_token"`
}

// AuthResult is the outcome of a credential operation. Credential operations
// never return an error to their caller; every failure is normalised into
// Success=false with a user-facing message.
type AuthResult struct {
	Success bool   `json:"success"`
	User    *User  `json:"user,omitempty"`
	Error   string `json:"error,omitempty"`
}

// VerifyState is the session verifier's reconciliation state.
type VerifyState string

const (
	StateUnverified VerifyState = "unverified"
	StateVerified   VerifyState = "verified"
	StateInvalid    VerifyState = "invalid"
)
