package identity

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/flowforge/session-gateway/internal/core/domain"
)

func TestWebhookLogin_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Fatalf("expected POST, got %s", r.Method)
		}
		var body map[string]any
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Fatalf("invalid request body: %v", err)
		}
		if body["identifier"] != "a@b.com" || body["secret"] != "x" {
			t.Fatalf("unexpected credentials: %+v", body)
		}
		if body["timestamp"] == "" {
			t.Fatalf("timestamp missing from request")
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"user":        map[string]any{"id": "u1", "email": "a@b.com", "plan": "paid", "credits": 42},
			"accessToken": "t1",
		})
	}))
	defer srv.Close()

	b := NewWebhookBackend(WebhookConfig{LoginURL: srv.URL}, zerolog.Nop())

	sess, err := b.Login(context.Background(), "a@b.com", "x")
	if err != nil {
		t.Fatalf("login failed: %v", err)
	}
	if sess.User.ID != "u1" || sess.User.Credits != 42 || sess.AccessToken != "t1" {
		t.Fatalf("unexpected session: %+v", sess)
	}
}

func TestWebhookLogin_RejectionCarriesServerMessage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_ = json.NewEncoder(w).Encode(map[string]string{"message": "wrong password"})
	}))
	defer srv.Close()

	b := NewWebhookBackend(WebhookConfig{LoginURL: srv.URL}, zerolog.Nop())

	_, err := b.Login(context.Background(), "a@b.com", "x")
	var rejected *domain.RejectedError
	if !errors.As(err, &rejected) {
		t.Fatalf("expected RejectedError, got %v", err)
	}
	if rejected.Message != "wrong password" {
		t.Fatalf("expected server message verbatim, got %q", rejected.Message)
	}
}

func TestWebhookLogin_RejectionWithoutMessage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	b := NewWebhookBackend(WebhookConfig{LoginURL: srv.URL}, zerolog.Nop())

	_, err := b.Login(context.Background(), "a@b.com", "x")
	var rejected *domain.RejectedError
	if !errors.As(err, &rejected) {
		t.Fatalf("expected RejectedError, got %v", err)
	}
	if rejected.Message == "" {
		t.Fatalf("expected a fallback message")
	}
}

func TestWebhookLogin_MalformedResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("not-json"))
	}))
	defer srv.Close()

	b := NewWebhookBackend(WebhookConfig{LoginURL: srv.URL}, zerolog.Nop())

	_, err := b.Login(context.Background(), "a@b.com", "x")
	if !errors.Is(err, domain.ErrBackendUnavailable) {
		t.Fatalf("malformed response must normalise to ErrBackendUnavailable, got %v", err)
	}
}

func TestWebhookLogin_MissingTokenInResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"user": map[string]any{"id": "u1"},
		})
	}))
	defer srv.Close()

	b := NewWebhookBackend(WebhookConfig{LoginURL: srv.URL}, zerolog.Nop())

	if _, err := b.Login(context.Background(), "a@b.com", "x"); !errors.Is(err, domain.ErrBackendUnavailable) {
		t.Fatalf("missing token must fail, got %v", err)
	}
}

func TestWebhookLogin_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer srv.Close()

	b := NewWebhookBackend(WebhookConfig{LoginURL: srv.URL, Timeout: 20 * time.Millisecond}, zerolog.Nop())

	_, err := b.Login(context.Background(), "a@b.com", "x")
	if !errors.Is(err, domain.ErrBackendTimeout) {
		t.Fatalf("expected ErrBackendTimeout, got %v", err)
	}
}

func TestWebhookRegister_NotConfigured(t *testing.T) {
	b := NewWebhookBackend(WebhookConfig{LoginURL: "http://example.invalid"}, zerolog.Nop())

	if _, err := b.Register(context.Background(), "Alice", "a@b.com", "x"); !errors.Is(err, domain.ErrNotConfigured) {
		t.Fatalf("expected ErrNotConfigured, got %v", err)
	}
}

func TestWebhookRegister_SendsName(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		if body["name"] != "Alice" {
			t.Fatalf("expected name in request, got %+v", body)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"user":        map[string]any{"id": "u2", "email": "a@b.com", "name": "Alice", "plan": "free", "credits": 5},
			"accessToken": "t2",
		})
	}))
	defer srv.Close()

	b := NewWebhookBackend(WebhookConfig{LoginURL: srv.URL, RegisterURL: srv.URL}, zerolog.Nop())

	sess, err := b.Register(context.Background(), "Alice", "a@b.com", "x")
	if err != nil {
		t.Fatalf("register failed: %v", err)
	}
	if sess.User.Name != "Alice" || sess.AccessToken != "t2" {
		t.Fatalf("unexpected session: %+v", sess)
	}
}

func TestWebhookVerify_NoEndpointTrustsCache(t *testing.T) {
	b := NewWebhookBackend(WebhookConfig{LoginURL: "http://example.invalid"}, zerolog.Nop())
	cached := &domain.User{ID: "u1"}

	got, err := b.Verify(context.Background(), "t1", cached)
	if err != nil || got != cached {
		t.Fatalf("expected cached identity, got %v / %v", got, err)
	}
}

func TestWebhookVerify_BearerTokenAndRefreshedIdentity(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer t1" {
			t.Fatalf("expected bearer token, got %q", r.Header.Get("Authorization"))
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"user": map[string]any{"id": "u1", "email": "a@b.com", "credits": 3},
		})
	}))
	defer srv.Close()

	b := NewWebhookBackend(WebhookConfig{LoginURL: srv.URL, VerifyURL: srv.URL}, zerolog.Nop())

	got, err := b.Verify(context.Background(), "t1", &domain.User{ID: "u1", Credits: 9})
	if err != nil {
		t.Fatalf("verify failed: %v", err)
	}
	if got.Credits != 3 {
		t.Fatalf("refreshed identity must win, got %+v", got)
	}
}

func TestWebhookVerify_EmptyBodyKeepsCache(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	b := NewWebhookBackend(WebhookConfig{LoginURL: srv.URL, VerifyURL: srv.URL}, zerolog.Nop())
	cached := &domain.User{ID: "u1", Credits: 9}

	got, err := b.Verify(context.Background(), "t1", cached)
	if err != nil {
		t.Fatalf("verify failed: %v", err)
	}
	if got != cached {
		t.Fatalf("cached identity must be kept when the response carries none")
	}
}

func TestWebhookVerify_RejectionInvalidates(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	b := NewWebhookBackend(WebhookConfig{LoginURL: srv.URL, VerifyURL: srv.URL}, zerolog.Nop())

	if _, err := b.Verify(context.Background(), "t1", &domain.User{ID: "u1"}); !errors.Is(err, domain.ErrSessionInvalid) {
		t.Fatalf("expected ErrSessionInvalid, got %v", err)
	}
}
