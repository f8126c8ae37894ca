package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/flowforge/session-gateway/internal/api/metrics"
	"github.com/flowforge/session-gateway/internal/core/domain"
	"github.com/flowforge/session-gateway/internal/core/ports"
)

// scrapeCost is the contract with the credit ledger: one credit per scrape.
const scrapeCost = 1

// ScrapeRunner abstracts the scrape webhook client.
type ScrapeRunner interface {
	Configured() bool
	Run(ctx context.Context, targetURL, instructions string) (json.RawMessage, error)
}

// ResultCache abstracts the last-result cache. May be absent.
type ResultCache interface {
	Put(ctx context.Context, userID string, result json.RawMessage) error
	Get(ctx context.Context, userID string) (json.RawMessage, error)
}

// ScrapeHandler is the metered feature: it checks the ledger before the
// remote call and deducts only after the call succeeded. A failed scrape
// never costs a credit.
type ScrapeHandler struct {
	sessions ports.SessionService
	runner   ScrapeRunner
	cache    ResultCache
	log      zerolog.Logger
}

func NewScrapeHandler(sessions ports.SessionService, runner ScrapeRunner, cache ResultCache, log zerolog.Logger) *ScrapeHandler {
	return &ScrapeHandler{sessions: sessions, runner: runner, cache: cache, log: log}
}

// Run executes one scrape job against the external workflow.
//
// @Summary      Run a scrape job
// @Tags         scrape
// @Accept       json
// @Produce      json
// @Param        body  body      scrapeRequest  true  "Scrape job"
// @Success      200   {object}  scrapeResponse
// @Failure      402   {object}  map[string]string
// @Failure      502   {object}  map[string]string
// @Failure      504   {object}  map[string]string
// @Router       /scrape [post]
func (h *ScrapeHandler) Run(c echo.Context) error {
	var req scrapeRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid payload"})
	}
	if err := c.Validate(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	}

	if !h.runner.Configured() {
		return c.JSON(http.StatusServiceUnavailable, map[string]string{"error": "scraping is not configured"})
	}

	if !h.sessions.CanConsume() {
		metrics.CreditsDeniedTotal.WithLabelValues("scrape").Inc()
		return c.JSON(http.StatusPaymentRequired, map[string]string{"error": "insufficient credits"})
	}

	ctx := c.Request().Context()
	result, err := h.runner.Run(ctx, req.URL, req.Instructions)
	if err != nil {
		metrics.ScrapesTotal.WithLabelValues("failure").Inc()
		return scrapeError(c, err)
	}

	// Deduction is a post-success side effect, not a reservation.
	if err := h.sessions.Consume(ctx, scrapeCost, "scrape"); err != nil {
		h.log.Warn().Err(err).Msg("credit deduction failed after successful scrape")
	} else {
		metrics.CreditsConsumedTotal.WithLabelValues("scrape").Add(scrapeCost)
	}

	if h.cache != nil {
		if user := h.sessions.User(); user != nil {
			if err := h.cache.Put(ctx, user.ID, result); err != nil {
				h.log.Warn().Err(err).Msg("failed to cache scrape result")
			}
		}
	}

	metrics.ScrapesTotal.WithLabelValues("success").Inc()

	remaining := 0
	if user := h.sessions.User(); user != nil {
		remaining = user.Credits
		metrics.CreditBalance.Set(float64(remaining))
	}
	return c.JSON(http.StatusOK, scrapeResponse{Result: result, CreditsRemaining: remaining})
}

// Last returns the most recent cached scrape result for the session.
//
// @Summary      Last scrape result
// @Tags         scrape
// @Produce      json
// @Success      200  {object}  scrapeResponse
// @Failure      404  {object}  map[string]string
// @Router       /scrape/last [get]
func (h *ScrapeHandler) Last(c echo.Context) error {
	user := h.sessions.User()
	if user == nil {
		return c.JSON(http.StatusUnauthorized, map[string]string{"error": "authentication required"})
	}
	if h.cache == nil {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "no cached result"})
	}

	result, err := h.cache.Get(c.Request().Context(), user.ID)
	if err != nil {
		return err
	}
	if result == nil {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "no cached result"})
	}
	return c.JSON(http.StatusOK, scrapeResponse{Result: result, CreditsRemaining: user.Credits})
}

func scrapeError(c echo.Context, err error) error {
	var rejected *domain.RejectedError
	switch {
	case errors.As(err, &rejected):
		return c.JSON(http.StatusBadGateway, map[string]string{"error": rejected.Message})
	case errors.Is(err, domain.ErrBackendTimeout):
		return c.JSON(http.StatusGatewayTimeout, map[string]string{"error": "the scrape timed out, no credits were deducted"})
	default:
		return c.JSON(http.StatusBadGateway, map[string]string{"error": "the scrape service is unreachable"})
	}
}
