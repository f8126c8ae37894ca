package identity

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/flowforge/session-gateway/internal/core/domain"
)

const defaultWebhookTimeout = 10 * time.Second

// WebhookConfig holds the identity endpoint URLs. RegisterURL and VerifyURL
// are optional; a missing VerifyURL means stored sessions are trusted
// without a round-trip.
type WebhookConfig struct {
	LoginURL    string
	RegisterURL string
	VerifyURL   string
	Timeout     time.Duration
}

// WebhookBackend talks to the external identity endpoints. Every request is
// context-bound with an explicit timeout; a timeout is reported distinctly
// from other transport failures.
type WebhookBackend struct {
	cfg    WebhookConfig
	client *http.Client
	log    zerolog.Logger
}

func NewWebhookBackend(cfg WebhookConfig, log zerolog.Logger) *WebhookBackend {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultWebhookTimeout
	}
	return &WebhookBackend{cfg: cfg, client: &http.Client{}, log: log}
}

type credentialRequest struct {
	Name       string `json:"name,omitempty"`
	Identifier string `json:"identifier"`
	Secret     string `json:"secret"`
	Timestamp  string `json:"timestamp"`
}

// sessionPayload is the success shape both credential endpoints must return.
type sessionPayload struct {
	User        *domain.User `json:"user"`
	AccessToken string       `json:"accessToken"`
}

type errorPayload struct {
	Message string `json:"message"`
}

func (b *WebhookBackend) Login(ctx context.Context, identifier, secret string) (*domain.Session, error) {
	return b.postCredentials(ctx, b.cfg.LoginURL, credentialRequest{
		Identifier: identifier,
		Secret:     secret,
		Timestamp:  time.Now().UTC().Format(time.RFC3339),
	})
}

func (b *WebhookBackend) Register(ctx context.Context, name, identifier, secret string) (*domain.Session, error) {
	if b.cfg.RegisterURL == "" {
		return nil, domain.ErrNotConfigured
	}
	return b.postCredentials(ctx, b.cfg.RegisterURL, credentialRequest{
		Name:       name,
		Identifier: identifier,
		Secret:     secret,
		Timestamp:  time.Now().UTC().Format(time.RFC3339),
	})
}

// Verify confirms the token with the verification endpoint. Without a
// configured endpoint the cached identity is trusted as-is. Any failure,
// rejection and transport error alike, invalidates the session.
func (b *WebhookBackend) Verify(ctx context.Context, token string, cached *domain.User) (*domain.User, error) {
	if b.cfg.VerifyURL == "" {
		return cached, nil
	}

	ctx, cancel := context.WithTimeout(ctx, b.cfg.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.cfg.VerifyURL, nil)
	if err != nil {
		return nil, fmt.Errorf("verify request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := b.client.Do(req)
	if err != nil {
		return nil, classifyTransportError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("%w: verification rejected (status %d)", domain.ErrSessionInvalid, resp.StatusCode)
	}

	// An OK response optionally carries a refreshed identity.
	var payload sessionPayload
	if err := json.NewDecoder(resp.Body).Decode(&payload); err == nil && payload.User != nil {
		return payload.User, nil
	}
	return cached, nil
}

func (b *WebhookBackend) postCredentials(ctx context.Context, url string, body credentialRequest) (*domain.Session, error) {
	ctx, cancel := context.WithTimeout(ctx, b.cfg.Timeout)
	defer cancel()

	raw, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := b.client.Do(req)
	if err != nil {
		return nil, classifyTransportError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var ep errorPayload
		msg := fmt.Sprintf("request rejected (status %d)", resp.StatusCode)
		if err := json.NewDecoder(resp.Body).Decode(&ep); err == nil && ep.Message != "" {
			msg = ep.Message
		}
		return nil, &domain.RejectedError{Message: msg}
	}

	var payload sessionPayload
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("%w: malformed response", domain.ErrBackendUnavailable)
	}
	if payload.User == nil || payload.AccessToken == "" {
		return nil, fmt.Errorf("%w: response missing identity or token", domain.ErrBackendUnavailable)
	}
	if !domain.KnownPlan(payload.User.Plan) {
		b.log.Warn().Str("plan", payload.User.Plan).Msg("unrecognised plan tier in identity response")
	}

	return &domain.Session{User: payload.User, AccessToken: payload.AccessToken}, nil
}

// classifyTransportError separates timeouts from other transport failures.
func classifyTransportError(err error) error {
	var ne net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &ne) && ne.Timeout()) {
		return fmt.Errorf("%w: %v", domain.ErrBackendTimeout, err)
	}
	return fmt.Errorf("%w: %v", domain.ErrBackendUnavailable, err)
}
