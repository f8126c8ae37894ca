package middleware

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/flowforge/session-gateway/internal/core/ports"
)

const loginLocation = "/login"

// Guard gates session-required routes.
//
// While startup verification is still running it answers with a neutral 503
// instead of a redirect, so a client reloading mid-verification is not
// bounced to the login view prematurely. Unauthenticated requests get a 401
// carrying the login location and the originally requested path, so the
// client can resume it after a successful login.
func Guard(sessions ports.SessionService) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if sessions.IsLoading() {
				c.Response().Header().Set("Retry-After", "1")
				return c.JSON(http.StatusServiceUnavailable, map[string]string{
					"status": "verifying",
				})
			}
			if !sessions.IsAuthenticated() {
				return c.JSON(http.StatusUnauthorized, map[string]string{
					"error": "authentication required",
					"login": loginLocation,
					"next":  c.Request().URL.Path,
				})
			}
			return next(c)
		}
	}
}

// RequirePlan restricts a route to sessions on one of the given plan tiers.
func RequirePlan(sessions ports.SessionService, allowedPlans ...string) echo.MiddlewareFunc {
	allowed := make(map[string]struct{}, len(allowedPlans))
	for _, p := range allowedPlans {
		allowed[p] = struct{}{}
	}

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			user := sessions.User()
			if user == nil {
				return c.JSON(http.StatusUnauthorized, map[string]string{"error": "authentication required"})
			}
			if _, ok := allowed[user.Plan]; !ok {
				return c.JSON(http.StatusForbidden, map[string]string{"error": "plan not allowed"})
			}
			return next(c)
		}
	}
}
