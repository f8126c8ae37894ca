package identity

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/flowforge/session-gateway/internal/core/domain"
)

const (
	demoLoginCredits    = 10 // starter balance for a demo login
	demoWelcomeCredits  = 5  // welcome grant for a fresh registration
	defaultDemoTokenTTL = time.Hour
)

// DemoBackend simulates the identity endpoints locally so the gateway can be
// run without any backing service. Logins fabricate a deterministic identity
// from the identifier; registrations keep a bcrypt hash of the secret so a
// later login with the same identifier must present the same secret.
type DemoBackend struct {
	signingKey []byte
	tokenTTL   time.Duration

	mu       sync.Mutex
	accounts map[string]demoAccount
}

type demoAccount struct {
	name         string
	passwordHash []byte
	createdAt    time.Time
}

func NewDemoBackend(signingKey string, tokenTTL time.Duration) *DemoBackend {
	if tokenTTL <= 0 {
		tokenTTL = defaultDemoTokenTTL
	}
	return &DemoBackend{
		signingKey: []byte(signingKey),
		tokenTTL:   tokenTTL,
		accounts:   make(map[string]demoAccount),
	}
}

func (b *DemoBackend) Login(_ context.Context, identifier, secret string) (*domain.Session, error) {
	name := displayName(identifier)
	createdAt := time.Now().UTC()
	plan := domain.PlanDemo

	b.mu.Lock()
	acct, registered := b.accounts[identifier]
	b.mu.Unlock()

	if registered {
		if bcrypt.CompareHashAndPassword(acct.passwordHash, []byte(secret)) != nil {
			return nil, &domain.RejectedError{Message: "invalid email or password"}
		}
		name = acct.name
		createdAt = acct.createdAt
		plan = domain.PlanFree
	}

	token, err := b.signToken(identifier)
	if err != nil {
		return nil, err
	}

	return &domain.Session{
		User: &domain.User{
			ID:        demoID(identifier),
			Email:     identifier,
			Name:      name,
			Plan:      plan,
			Credits:   demoLoginCredits,
			CreatedAt: createdAt,
		},
		AccessToken: token,
	}, nil
}

func (b *DemoBackend) Register(_ context.Context, name, identifier, secret string) (*domain.Session, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(secret), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()

	b.mu.Lock()
	if _, exists := b.accounts[identifier]; exists {
		b.mu.Unlock()
		return nil, &domain.RejectedError{Message: "an account with this email already exists"}
	}
	b.accounts[identifier] = demoAccount{name: name, passwordHash: hash, createdAt: now}
	b.mu.Unlock()

	token, err := b.signToken(identifier)
	if err != nil {
		return nil, err
	}

	return &domain.Session{
		User: &domain.User{
			ID:        demoID(identifier),
			Email:     identifier,
			Name:      name,
			Plan:      domain.PlanFree,
			Credits:   demoWelcomeCredits,
			CreatedAt: now,
		},
		AccessToken: token,
	}, nil
}

// Verify trusts local data unconditionally. There is no external authority
// to consult in demo mode.
func (b *DemoBackend) Verify(_ context.Context, _ string, cached *domain.User) (*domain.User, error) {
	return cached, nil
}

func (b *DemoBackend) signToken(identifier string) (string, error) {
	claims := jwt.MapClaims{
		"sub": identifier,
		"exp": time.Now().Add(b.tokenTTL).Unix(),
	}
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return t.SignedString(b.signingKey)
}

// demoID derives a stable identifier from the login identifier, so the same
// email always maps to the same demo identity.
func demoID(identifier string) string {
	sum := sha256.Sum256([]byte(identifier))
	return "demo-" + hex.EncodeToString(sum[:6])
}

func displayName(identifier string) string {
	if at := strings.Index(identifier, "@"); at > 0 {
		return identifier[:at]
	}
	return identifier
}
