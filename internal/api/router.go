package api

import (
	"github.com/labstack/echo-contrib/echoprometheus"
	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/flowforge/session-gateway/internal/api/handler"
	"github.com/flowforge/session-gateway/internal/api/middleware"
	"github.com/flowforge/session-gateway/internal/core/domain"
	"github.com/flowforge/session-gateway/internal/core/ports"
)

// Deps carries everything the router wires into handlers. DB and RDB are nil
// when the gateway runs on in-memory storage; Cache may be nil for the same
// reason.
type Deps struct {
	Sessions ports.SessionService
	Ledger   ports.LedgerRepository
	Scraper  handler.ScrapeRunner
	Cache    handler.ResultCache
	DB       *mongo.Database
	RDB      *redis.Client
	Mode     string // "live" or "demo"
	Log      zerolog.Logger
}

// NewRouter builds and returns the Echo instance with all routes registered.
func NewRouter(d Deps) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.Validator = handler.NewValidator()
	e.HTTPErrorHandler = NewHTTPErrorHandler(d.Log)

	// --- Global middleware ---
	e.Use(echomiddleware.Recover())
	e.Use(echomiddleware.RequestID())
	e.Use(echomiddleware.Logger())
	e.Use(echoprometheus.NewMiddleware("session_gateway"))

	guard := middleware.Guard(d.Sessions)
	anyPlan := middleware.RequirePlan(d.Sessions, domain.PlanDemo, domain.PlanFree, domain.PlanPaid)

	// --- Session routes ---
	sessionHandler := handler.NewSessionHandler(d.Sessions, d.Ledger, d.Mode)
	e.GET("/session", sessionHandler.Current)
	e.POST("/session/login", sessionHandler.Login)
	e.POST("/session/register", sessionHandler.Register)
	e.POST("/session/logout", sessionHandler.Logout)
	e.POST("/session/credits", sessionHandler.UpdateCredits, guard)
	e.GET("/session/ledger", sessionHandler.Ledger, guard)

	// --- Metered features ---
	scrapeHandler := handler.NewScrapeHandler(d.Sessions, d.Scraper, d.Cache, d.Log)
	e.POST("/scrape", scrapeHandler.Run, guard, anyPlan)
	e.GET("/scrape/last", scrapeHandler.Last, guard)

	// --- Health probes and metrics (no auth required) ---
	healthHandler := handler.NewHealthHandler()
	readinessHandler := handler.NewReadinessHandler(d.DB, d.RDB)

	e.GET("/health", healthHandler.Liveness)          // liveness  – is the process alive?
	e.GET("/health/ready", readinessHandler.Readiness) // readiness – are dependencies up?
	e.GET("/metrics", echoprometheus.NewHandler())

	return e
}
