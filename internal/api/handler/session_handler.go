package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/flowforge/session-gateway/internal/api/metrics"
	"github.com/flowforge/session-gateway/internal/core/domain"
	"github.com/flowforge/session-gateway/internal/core/ports"
)

// SessionHandler exposes the session capability surface over HTTP.
type SessionHandler struct {
	sessions ports.SessionService
	ledger   ports.LedgerRepository
	mode     string // "live" or "demo", label for metrics only
}

func NewSessionHandler(sessions ports.SessionService, ledger ports.LedgerRepository, mode string) *SessionHandler {
	return &SessionHandler{sessions: sessions, ledger: ledger, mode: mode}
}

// Login authenticates and establishes the session.
//
// @Summary      Login
// @Tags         session
// @Accept       json
// @Produce      json
// @Param        body  body      loginRequest  true  "Credentials"
// @Success      200   {object}  sessionResponse
// @Failure      400   {object}  map[string]string
// @Failure      401   {object}  map[string]string
// @Router       /session/login [post]
func (h *SessionHandler) Login(c echo.Context) error {
	var req loginRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid payload"})
	}
	if err := c.Validate(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	}

	// Stale errors from a previous attempt must not leak into this one.
	h.sessions.ClearError()

	res := h.sessions.Login(c.Request().Context(), req.Identifier, req.Secret)
	if !res.Success {
		metrics.LoginsTotal.WithLabelValues(h.mode, "failure").Inc()
		return c.JSON(http.StatusUnauthorized, map[string]string{"error": res.Error})
	}

	metrics.LoginsTotal.WithLabelValues(h.mode, "success").Inc()
	metrics.CreditBalance.Set(float64(res.User.Credits))

	snap := h.sessions.Snapshot()
	return c.JSON(http.StatusOK, sessionResponse{
		User:        res.User,
		AccessToken: snap.AccessToken,
		Location:    resumeTarget(req.Next),
	})
}

// Register creates an account and establishes the session in one step.
//
// @Summary      Register
// @Tags         session
// @Accept       json
// @Produce      json
// @Param        body  body      registerRequest  true  "Registration details"
// @Success      201   {object}  sessionResponse
// @Failure      400   {object}  map[string]string
// @Failure      401   {object}  map[string]string
// @Router       /session/register [post]
func (h *SessionHandler) Register(c echo.Context) error {
	var req registerRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid payload"})
	}
	if err := c.Validate(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	}

	h.sessions.ClearError()

	res := h.sessions.Register(c.Request().Context(), req.Name, req.Identifier, req.Secret)
	if !res.Success {
		metrics.RegistrationsTotal.WithLabelValues(h.mode, "failure").Inc()
		return c.JSON(http.StatusUnauthorized, map[string]string{"error": res.Error})
	}

	metrics.RegistrationsTotal.WithLabelValues(h.mode, "success").Inc()
	metrics.CreditBalance.Set(float64(res.User.Credits))

	snap := h.sessions.Snapshot()
	return c.JSON(http.StatusCreated, sessionResponse{
		User:        res.User,
		AccessToken: snap.AccessToken,
		Location:    resumeTarget(req.Next),
	})
}

// Logout clears the session. It cannot fail from the caller's perspective.
//
// @Summary      Logout
// @Tags         session
// @Produce      json
// @Success      200  {object}  map[string]string
// @Router       /session/logout [post]
func (h *SessionHandler) Logout(c echo.Context) error {
	h.sessions.Logout(c.Request().Context())
	metrics.CreditBalance.Set(0)
	return c.JSON(http.StatusOK, map[string]string{"location": loginLocation})
}

// Current reports the session state without requiring authentication.
//
// @Summary      Current session
// @Tags         session
// @Produce      json
// @Success      200  {object}  currentSessionResponse
// @Router       /session [get]
func (h *SessionHandler) Current(c echo.Context) error {
	snap := h.sessions.Snapshot()
	return c.JSON(http.StatusOK, currentSessionResponse{
		Authenticated: snap.User != nil,
		Loading:       snap.IsLoading,
		User:          snap.User,
		Error:         snap.Error,
	})
}

// UpdateCredits replaces the credit balance. The ledger trusts its callers'
// arithmetic; only the non-negative contract is enforced here.
//
// @Summary      Update credit balance
// @Tags         session
// @Accept       json
// @Produce      json
// @Param        body  body      updateCreditsRequest  true  "New balance"
// @Success      200   {object}  map[string]interface{}
// @Failure      400   {object}  map[string]string
// @Router       /session/credits [post]
func (h *SessionHandler) UpdateCredits(c echo.Context) error {
	var req updateCreditsRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid payload"})
	}
	if err := c.Validate(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	}

	if err := h.sessions.UpdateCredits(c.Request().Context(), *req.Credits); err != nil {
		if errors.Is(err, domain.ErrInvalidBalance) {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
		}
		return err
	}

	metrics.CreditBalance.Set(float64(*req.Credits))
	return c.JSON(http.StatusOK, map[string]interface{}{"user": h.sessions.User()})
}

// Ledger lists recent credit movements for the current session.
//
// @Summary      Credit ledger
// @Tags         session
// @Produce      json
// @Success      200  {object}  map[string]interface{}
// @Failure      401  {object}  map[string]string
// @Router       /session/ledger [get]
func (h *SessionHandler) Ledger(c echo.Context) error {
	user := h.sessions.User()
	if user == nil {
		return c.JSON(http.StatusUnauthorized, map[string]string{"error": "authentication required"})
	}

	limit := int64(0)
	if raw := c.QueryParam("limit"); raw != "" {
		if n, err := strconv.ParseInt(raw, 10, 64); err == nil {
			limit = n
		}
	}

	entries, err := h.ledger.ListByUser(c.Request().Context(), user.ID, limit)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"entries": entries})
}
