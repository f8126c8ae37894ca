package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"

	"github.com/flowforge/session-gateway/internal/core/domain"
	"github.com/flowforge/session-gateway/internal/core/ports"
)

// stubSessions is a scriptable ports.SessionService shared by the handler
// tests in this package.
type stubSessions struct {
	loading bool
	user    *domain.User
	token   string
	lastErr string

	loginResult    domain.AuthResult
	registerResult domain.AuthResult
	updateErr      error
	consumeErr     error

	loginCalled    bool
	registerCalled bool
	loggedOut      bool
	errorCleared   bool
	updatedTo      []int
	consumed       []int
}

func (s *stubSessions) Snapshot() ports.Snapshot {
	return ports.Snapshot{User: s.user, AccessToken: s.token, IsLoading: s.loading, Error: s.lastErr}
}
func (s *stubSessions) IsAuthenticated() bool    { return s.user != nil }
func (s *stubSessions) IsLoading() bool          { return s.loading }
func (s *stubSessions) User() *domain.User       { return s.user }
func (s *stubSessions) Verify(_ context.Context) {}

func (s *stubSessions) Login(_ context.Context, _, _ string) domain.AuthResult {
	s.loginCalled = true
	if s.loginResult.Success {
		s.user = s.loginResult.User
	}
	return s.loginResult
}

func (s *stubSessions) Register(_ context.Context, _, _, _ string) domain.AuthResult {
	s.registerCalled = true
	if s.registerResult.Success {
		s.user = s.registerResult.User
	}
	return s.registerResult
}

func (s *stubSessions) Logout(_ context.Context) {
	s.loggedOut = true
	s.user = nil
}

func (s *stubSessions) UpdateCredits(_ context.Context, newBalance int) error {
	if s.updateErr != nil {
		return s.updateErr
	}
	s.updatedTo = append(s.updatedTo, newBalance)
	if s.user != nil {
		s.user.Credits = newBalance
	}
	return nil
}

func (s *stubSessions) ClearError() { s.errorCleared = true }

func (s *stubSessions) CanConsume() bool { return s.user != nil && s.user.Credits > 0 }

func (s *stubSessions) Consume(_ context.Context, amount int, _ string) error {
	if s.consumeErr != nil {
		return s.consumeErr
	}
	s.consumed = append(s.consumed, amount)
	if s.user != nil {
		s.user.Credits -= amount
	}
	return nil
}

type stubLedger struct {
	entries   []domain.LedgerEntry
	lastLimit int64
}

func (l *stubLedger) Insert(_ context.Context, entry *domain.LedgerEntry) error {
	l.entries = append(l.entries, *entry)
	return nil
}

func (l *stubLedger) ListByUser(_ context.Context, userID string, limit int64) ([]domain.LedgerEntry, error) {
	l.lastLimit = limit
	out := make([]domain.LedgerEntry, 0, len(l.entries))
	for _, e := range l.entries {
		if e.UserID == userID {
			out = append(out, e)
		}
	}
	return out, nil
}

// doJSON runs a handler against a JSON request through a validator-equipped
// echo instance.
func doJSON(t *testing.T, h echo.HandlerFunc, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	e := echo.New()
	e.Validator = NewValidator()

	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("{}")
	} else {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	if err := h(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid response body %q: %v", rec.Body.String(), err)
	}
	return body
}

func TestLogin_Success(t *testing.T) {
	sessions := &stubSessions{
		token:       "tok",
		loginResult: domain.AuthResult{Success: true, User: &domain.User{ID: "u1", Email: "a@b.com", Credits: 10}},
	}
	h := NewSessionHandler(sessions, &stubLedger{}, "demo")

	rec := doJSON(t, h.Login, http.MethodPost, "/session/login", `{"identifier":"a@b.com","secret":"x"}`)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if !sessions.errorCleared {
		t.Fatalf("stale error must be cleared before the attempt")
	}
	body := decodeBody(t, rec)
	if body["access_token"] != "tok" {
		t.Fatalf("expected access token in response, got %v", body["access_token"])
	}
	if body["location"] != "/dashboard" {
		t.Fatalf("expected default resume target, got %v", body["location"])
	}
}

func TestLogin_EchoesRequestedView(t *testing.T) {
	sessions := &stubSessions{
		loginResult: domain.AuthResult{Success: true, User: &domain.User{ID: "u1"}},
	}
	h := NewSessionHandler(sessions, &stubLedger{}, "demo")

	rec := doJSON(t, h.Login, http.MethodPost, "/session/login", `{"identifier":"a@b.com","secret":"x","next":"/reports"}`)

	if body := decodeBody(t, rec); body["location"] != "/reports" {
		t.Fatalf("expected the remembered view back, got %v", body["location"])
	}
}

func TestLogin_FailureKeepsMessage(t *testing.T) {
	sessions := &stubSessions{
		loginResult: domain.AuthResult{Success: false, Error: "wrong password"},
	}
	h := NewSessionHandler(sessions, &stubLedger{}, "demo")

	rec := doJSON(t, h.Login, http.MethodPost, "/session/login", `{"identifier":"a@b.com","secret":"x"}`)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
	if body := decodeBody(t, rec); body["error"] != "wrong password" {
		t.Fatalf("failure message must pass through verbatim, got %v", body["error"])
	}
}

func TestLogin_RejectsIncompletePayload(t *testing.T) {
	sessions := &stubSessions{}
	h := NewSessionHandler(sessions, &stubLedger{}, "demo")

	rec := doJSON(t, h.Login, http.MethodPost, "/session/login", `{"identifier":"a@b.com"}`)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	if sessions.loginCalled {
		t.Fatalf("backend must not be called with an incomplete payload")
	}
}

func TestRegister_Success(t *testing.T) {
	sessions := &stubSessions{
		token:          "tok",
		registerResult: domain.AuthResult{Success: true, User: &domain.User{ID: "u2", Credits: 5}},
	}
	h := NewSessionHandler(sessions, &stubLedger{}, "demo")

	rec := doJSON(t, h.Register, http.MethodPost, "/session/register",
		`{"name":"Alice","identifier":"alice@b.com","secret":"pw1234"}`)

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	if !sessions.registerCalled {
		t.Fatalf("register must reach the service")
	}
}

func TestRegister_RejectsShortSecret(t *testing.T) {
	sessions := &stubSessions{}
	h := NewSessionHandler(sessions, &stubLedger{}, "demo")

	rec := doJSON(t, h.Register, http.MethodPost, "/session/register",
		`{"name":"Alice","identifier":"alice@b.com","secret":"pw"}`)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	if sessions.registerCalled {
		t.Fatalf("backend must not be called with a weak secret")
	}
}

func TestLogout_AlwaysSucceeds(t *testing.T) {
	sessions := &stubSessions{user: &domain.User{ID: "u1"}}
	h := NewSessionHandler(sessions, &stubLedger{}, "demo")

	rec := doJSON(t, h.Logout, http.MethodPost, "/session/logout", "")

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !sessions.loggedOut {
		t.Fatalf("logout must reach the service")
	}
	if body := decodeBody(t, rec); body["location"] != "/login" {
		t.Fatalf("expected login location, got %v", body["location"])
	}
}

func TestCurrent_ReportsStateWithoutAuth(t *testing.T) {
	sessions := &stubSessions{loading: true, lastErr: "the request timed out, please try again"}
	h := NewSessionHandler(sessions, &stubLedger{}, "demo")

	rec := doJSON(t, h.Current, http.MethodGet, "/session", "")

	if rec.Code != http.StatusOK {
		t.Fatalf("session readout must not require authentication, got %d", rec.Code)
	}
	body := decodeBody(t, rec)
	if body["authenticated"] != false || body["loading"] != true {
		t.Fatalf("unexpected state: %v", body)
	}
	if body["error"] != "the request timed out, please try again" {
		t.Fatalf("last error must surface, got %v", body["error"])
	}
}

func TestUpdateCredits(t *testing.T) {
	t.Run("explicit zero is a valid balance", func(t *testing.T) {
		sessions := &stubSessions{user: &domain.User{ID: "u1", Credits: 3}}
		h := NewSessionHandler(sessions, &stubLedger{}, "demo")

		rec := doJSON(t, h.UpdateCredits, http.MethodPost, "/session/credits", `{"credits":0}`)

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
		}
		if len(sessions.updatedTo) != 1 || sessions.updatedTo[0] != 0 {
			t.Fatalf("expected balance set to 0, got %v", sessions.updatedTo)
		}
	})

	t.Run("missing balance is rejected", func(t *testing.T) {
		sessions := &stubSessions{}
		h := NewSessionHandler(sessions, &stubLedger{}, "demo")

		rec := doJSON(t, h.UpdateCredits, http.MethodPost, "/session/credits", `{}`)

		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", rec.Code)
		}
		if len(sessions.updatedTo) != 0 {
			t.Fatalf("service must not be reached, got %v", sessions.updatedTo)
		}
	})

	t.Run("negative balance is rejected", func(t *testing.T) {
		sessions := &stubSessions{}
		h := NewSessionHandler(sessions, &stubLedger{}, "demo")

		rec := doJSON(t, h.UpdateCredits, http.MethodPost, "/session/credits", `{"credits":-1}`)

		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", rec.Code)
		}
	})

	t.Run("service rejection maps to 400", func(t *testing.T) {
		sessions := &stubSessions{updateErr: domain.ErrInvalidBalance}
		h := NewSessionHandler(sessions, &stubLedger{}, "demo")

		rec := doJSON(t, h.UpdateCredits, http.MethodPost, "/session/credits", `{"credits":5}`)

		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", rec.Code)
		}
	})
}

func TestLedger(t *testing.T) {
	ledger := &stubLedger{entries: []domain.LedgerEntry{
		{UserID: "u1", Kind: domain.LedgerGrant, Amount: 10, BalanceAfter: 10, Reason: "login"},
		{UserID: "u2", Kind: domain.LedgerSpend, Amount: 1, BalanceAfter: 4, Reason: "scrape"},
	}}

	t.Run("requires a session", func(t *testing.T) {
		h := NewSessionHandler(&stubSessions{}, ledger, "demo")
		rec := doJSON(t, h.Ledger, http.MethodGet, "/session/ledger", "")
		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("expected 401, got %d", rec.Code)
		}
	})

	t.Run("lists only the session user's entries", func(t *testing.T) {
		h := NewSessionHandler(&stubSessions{user: &domain.User{ID: "u1"}}, ledger, "demo")
		rec := doJSON(t, h.Ledger, http.MethodGet, "/session/ledger?limit=25", "")
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		body := decodeBody(t, rec)
		entries, ok := body["entries"].([]any)
		if !ok || len(entries) != 1 {
			t.Fatalf("expected one entry for u1, got %v", body["entries"])
		}
		if ledger.lastLimit != 25 {
			t.Fatalf("limit query must pass through, got %d", ledger.lastLimit)
		}
	})
}
