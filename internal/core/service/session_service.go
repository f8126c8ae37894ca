package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/flowforge/session-gateway/internal/api/metrics"
	"github.com/flowforge/session-gateway/internal/core/domain"
	"github.com/flowforge/session-gateway/internal/core/ports"
)

// SessionService holds the one authoritative session for this runtime. All
// state transitions go through it; the durable identity store and the
// short-lived token store are written by this service only.
//
// Operations serialise their state commits on an internal mutex. Two
// concurrently issued credential operations are not ordered against each
// other; the last one to finish wins the final session write.
type SessionService struct {
	backend ports.IdentityBackend
	users   ports.IdentityStore
	tokens  ports.TokenStore
	journal ports.LedgerRecorder
	log     zerolog.Logger

	mu          sync.RWMutex
	user        *domain.User
	accessToken string
	isLoading   bool
	lastError   string
	state       domain.VerifyState
}

// NewSessionService builds the session service around a single identity
// backend chosen by the caller. The service starts in the Unverified state
// with isLoading set, so consumers hold off until Verify has run.
func NewSessionService(
	backend ports.IdentityBackend,
	users ports.IdentityStore,
	tokens ports.TokenStore,
	journal ports.LedgerRecorder,
	log zerolog.Logger,
) *SessionService {
	return &SessionService{
		backend:   backend,
		users:     users,
		tokens:    tokens,
		journal:   journal,
		log:       log,
		isLoading: true,
		state:     domain.StateUnverified,
	}
}

// Snapshot returns a copy of the current capability surface.
func (s *SessionService) Snapshot() ports.Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return ports.Snapshot{
		User:        cloneUser(s.user),
		AccessToken: s.accessToken,
		IsLoading:   s.isLoading,
		Error:       s.lastError,
		State:       s.state,
	}
}

// IsAuthenticated is derived from identity presence. There is no separate
// flag that could diverge from it.
func (s *SessionService) IsAuthenticated() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.user != nil
}

func (s *SessionService) IsLoading() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isLoading
}

func (s *SessionService) User() *domain.User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneUser(s.user)
}

// Verify reconciles stored state with the identity backend on startup.
//
// Missing identity or token resolves to Invalid without a network call. A
// corrupted durable record is treated the same as a missing one. When both
// are present, a single verification round-trip decides: any error, explicit
// rejection or transport failure alike, invalidates the session and clears
// both stores. Failures are never surfaced to the user.
func (s *SessionService) Verify(ctx context.Context) {
	s.setLoading(true)

	if s.restore(ctx) {
		metrics.VerificationsTotal.WithLabelValues("restored").Inc()
	} else {
		metrics.VerificationsTotal.WithLabelValues("invalidated").Inc()
	}
}

func (s *SessionService) restore(ctx context.Context) bool {
	user, err := s.users.Load(ctx)
	if err != nil {
		if !errors.Is(err, domain.ErrNoSession) {
			s.log.Warn().Err(err).Msg("stored identity unreadable, discarding session")
		}
		s.invalidate(ctx)
		return false
	}

	token, err := s.tokens.Load(ctx)
	if err != nil {
		if !errors.Is(err, domain.ErrNoSession) {
			s.log.Warn().Err(err).Msg("stored token unreadable, discarding session")
		}
		s.invalidate(ctx)
		return false
	}

	verified, err := s.backend.Verify(ctx, token, user)
	if err != nil {
		s.log.Info().Err(err).Msg("session verification failed, clearing session")
		s.invalidate(ctx)
		return false
	}

	s.mu.Lock()
	s.user = verified
	s.accessToken = token
	s.state = domain.StateVerified
	s.isLoading = false
	s.mu.Unlock()

	metrics.CreditBalance.Set(float64(verified.Credits))
	s.log.Info().Str("user_id", verified.ID).Str("plan", verified.Plan).Msg("session restored")
	return true
}

// StartAutoVerify re-runs verification on a fixed interval until ctx is
// cancelled. A failed periodic check invalidates the session exactly like a
// failed startup check.
func (s *SessionService) StartAutoVerify(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.reverify(ctx)
			}
		}
	}()
}

func (s *SessionService) reverify(ctx context.Context) {
	s.mu.RLock()
	user := cloneUser(s.user)
	token := s.accessToken
	s.mu.RUnlock()

	if user == nil {
		return
	}

	verified, err := s.backend.Verify(ctx, token, user)
	if err != nil {
		s.log.Info().Err(err).Msg("periodic verification failed, clearing session")
		s.invalidate(ctx)
		metrics.VerificationsTotal.WithLabelValues("invalidated").Inc()
		return
	}

	s.mu.Lock()
	if s.user != nil {
		s.user = verified
	}
	s.mu.Unlock()
	metrics.VerificationsTotal.WithLabelValues("restored").Inc()
}

// Login exchanges credentials for a session. Every failure resolves to an
// AuthResult with Success=false, and the session is left untouched on
// failure; no partial session is ever written.
func (s *SessionService) Login(ctx context.Context, identifier, secret string) domain.AuthResult {
	if identifier == "" || secret == "" {
		return s.failAuth("identifier and secret are required")
	}
	return s.authenticate(ctx, "login", func() (*domain.Session, error) {
		return s.backend.Login(ctx, identifier, secret)
	})
}

// Register creates an account and establishes the session in one step.
func (s *SessionService) Register(ctx context.Context, name, identifier, secret string) domain.AuthResult {
	if name == "" || identifier == "" || secret == "" {
		return s.failAuth("name, identifier and secret are required")
	}
	return s.authenticate(ctx, "register", func() (*domain.Session, error) {
		return s.backend.Register(ctx, name, identifier, secret)
	})
}

func (s *SessionService) authenticate(ctx context.Context, op string, call func() (*domain.Session, error)) domain.AuthResult {
	s.setLoading(true)
	s.ClearError()

	sess, err := call()
	if err != nil {
		msg := normaliseAuthError(err)
		s.mu.Lock()
		s.lastError = msg
		s.isLoading = false
		s.mu.Unlock()
		s.log.Warn().Err(err).Str("operation", op).Msg("credential operation failed")
		return domain.AuthResult{Success: false, Error: msg}
	}

	// Persistence failures downgrade to a memory-only session rather than
	// failing an otherwise successful login.
	if err := s.users.Save(ctx, sess.User); err != nil {
		s.log.Warn().Err(err).Msg("failed to persist identity")
	}
	if err := s.tokens.Save(ctx, sess.AccessToken); err != nil {
		s.log.Warn().Err(err).Msg("failed to persist token")
	}

	s.mu.Lock()
	s.user = cloneUser(sess.User)
	s.accessToken = sess.AccessToken
	s.state = domain.StateVerified
	s.isLoading = false
	s.mu.Unlock()

	s.record(domain.LedgerEntry{
		UserID:       sess.User.ID,
		Kind:         domain.LedgerGrant,
		Amount:       sess.User.Credits,
		BalanceAfter: sess.User.Credits,
		Reason:       op,
		Timestamp:    time.Now().UTC(),
	})

	s.log.Info().Str("operation", op).Str("user_id", sess.User.ID).Str("plan", sess.User.Plan).Int("credits", sess.User.Credits).Msg("session established")
	return domain.AuthResult{Success: true, User: cloneUser(sess.User)}
}

// Logout clears both stores unconditionally. No server call is made; the
// bearer token is stateless from this side.
func (s *SessionService) Logout(ctx context.Context) {
	s.invalidate(ctx)
	s.log.Info().Msg("session cleared")
}

// UpdateCredits replaces the credit balance and persists the identity.
// It does not validate the new balance against the previous one; callers
// own the arithmetic. No-op without an active session.
func (s *SessionService) UpdateCredits(ctx context.Context, newBalance int) error {
	if newBalance < 0 {
		return domain.ErrInvalidBalance
	}

	s.mu.Lock()
	if s.user == nil {
		s.mu.Unlock()
		return nil
	}
	prev := s.user.Credits
	updated := cloneUser(s.user)
	updated.Credits = newBalance
	s.user = updated
	userID := updated.ID
	s.mu.Unlock()

	if err := s.users.Save(ctx, updated); err != nil {
		s.log.Warn().Err(err).Msg("failed to persist credit balance")
	}

	if newBalance != prev {
		kind := domain.LedgerGrant
		amount := newBalance - prev
		if amount < 0 {
			kind = domain.LedgerSpend
			amount = -amount
		}
		s.record(domain.LedgerEntry{
			UserID:       userID,
			Kind:         kind,
			Amount:       amount,
			BalanceAfter: newBalance,
			Reason:       "adjustment",
			Timestamp:    time.Now().UTC(),
		})
	}
	return nil
}

// ClearError resets the last-operation failure message so stale errors do
// not leak into the next attempt.
func (s *SessionService) ClearError() {
	s.mu.Lock()
	s.lastError = ""
	s.mu.Unlock()
}

// CanConsume reports whether at least one credit remains.
func (s *SessionService) CanConsume() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.user != nil && s.user.Credits > 0
}

// Consume deducts amount credits. It is called only after the metered
// operation succeeded. There is no reservation and no rollback; a failed
// remote operation simply never reaches this point.
func (s *SessionService) Consume(ctx context.Context, amount int, reason string) error {
	if amount <= 0 {
		return nil
	}

	s.mu.Lock()
	if s.user == nil {
		s.mu.Unlock()
		return domain.ErrNotAuthenticated
	}
	if s.user.Credits < amount {
		s.mu.Unlock()
		return domain.ErrInsufficientCredits
	}
	newBalance := s.user.Credits - amount
	updated := cloneUser(s.user)
	updated.Credits = newBalance
	s.user = updated
	s.mu.Unlock()

	if err := s.users.Save(ctx, updated); err != nil {
		s.log.Warn().Err(err).Msg("failed to persist credit balance")
	}

	s.record(domain.LedgerEntry{
		UserID:       updated.ID,
		Kind:         domain.LedgerSpend,
		Amount:       amount,
		BalanceAfter: newBalance,
		Reason:       reason,
		Timestamp:    time.Now().UTC(),
	})

	s.log.Info().Str("reason", reason).Int("amount", amount).Int("balance", newBalance).Msg("credits consumed")
	return nil
}

func (s *SessionService) invalidate(ctx context.Context) {
	s.mu.Lock()
	s.user = nil
	s.accessToken = ""
	s.state = domain.StateInvalid
	s.isLoading = false
	s.mu.Unlock()

	if err := s.users.Clear(ctx); err != nil {
		s.log.Warn().Err(err).Msg("failed to clear identity store")
	}
	if err := s.tokens.Clear(ctx); err != nil {
		s.log.Warn().Err(err).Msg("failed to clear token store")
	}
}

func (s *SessionService) setLoading(v bool) {
	s.mu.Lock()
	s.isLoading = v
	s.mu.Unlock()
}

func (s *SessionService) failAuth(msg string) domain.AuthResult {
	s.mu.Lock()
	s.lastError = msg
	s.isLoading = false
	s.mu.Unlock()
	return domain.AuthResult{Success: false, Error: msg}
}

func (s *SessionService) record(entry domain.LedgerEntry) {
	if s.journal != nil {
		s.journal.Record(entry)
	}
}

// normaliseAuthError maps backend failures to user-facing messages. Server
// rejections are surfaced verbatim; timeouts are reported distinctly from
// other transport failures; everything else degrades to a generic message.
func normaliseAuthError(err error) string {
	var rejected *domain.RejectedError
	switch {
	case errors.As(err, &rejected):
		return rejected.Message
	case errors.Is(err, domain.ErrBackendTimeout):
		return "the request timed out, please try again"
	case errors.Is(err, domain.ErrNotConfigured):
		return "this operation is not available"
	default:
		return "the authentication service is unreachable"
	}
}

func cloneUser(u *domain.User) *domain.User {
	if u == nil {
		return nil
	}
	clone := *u
	return &clone
}
