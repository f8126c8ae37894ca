// Package scrape is the client for the external scraping workflow. The
// extraction itself happens entirely on the other side of the webhook; this
// side only formats the request and hands back whatever JSON comes out.
package scrape

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

const defaultTimeout = 60 * time.Second

// Config holds the scrape webhook settings. An empty URL disables the
// feature entirely.
type Config struct {
	URL     string
	Timeout time.Duration
}

type Client struct {
	cfg    Config
	client *http.Client
	log    zerolog.Logger
}

func NewClient(cfg Config, log zerolog.Logger) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	return &Client{cfg: cfg, client: &http.Client{}, log: log}
}

// Configured reports whether a scrape endpoint is available.
func (c *Client) Configured() bool { return c.cfg.URL != "" }

type scrapeRequest struct {
	URL          string `json:"url"`
	Instructions string `json:"instructions,omitempty"`
	Timestamp    string `json:"timestamp"`
}

// Run forwards one scrape job to the workflow and returns the raw result
// document. The result shape is owned by the workflow; it is passed through
// untouched.
func (c *Client) Run(ctx context.Context, targetURL, instructions string) (json.RawMessage, error) {
	if !c.Configured() {
		return nil, domain.ErrNotConfigured
	}

	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	raw, err := json.Marshal(scrapeRequest{
		URL:          targetURL,
		Instructions: instructions,
		Timestamp:    time.Now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.URL, bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		var ne net.Error
		if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &ne) && ne.Timeout()) {
			return nil, fmt.Errorf("%w: %v", domain.ErrBackendTimeout, err)
		}
		return nil, fmt.Errorf("%w: %v", domain.ErrBackendUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var ep struct {
			Message string `json:"message"`
		}
		msg := fmt.Sprintf("scrape rejected (status %d)", resp.StatusCode)
		if err := json.NewDecoder(resp.Body).Decode(&ep); err == nil && ep.Message != "" {
			msg = ep.Message
		}
		return nil, &domain.RejectedError{Message: msg}
	}

	var result json.RawMessage
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("%w: malformed response", domain.ErrBackendUnavailable)
	}
	return result, nil
}
