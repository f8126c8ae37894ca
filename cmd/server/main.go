package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/flowforge/session-gateway/internal/api"
	"github.com/flowforge/session-gateway/internal/api/handler"
	"github.com/flowforge/session-gateway/internal/core/ports"
	"github.com/flowforge/session-gateway/internal/core/service"
	"github.com/flowforge/session-gateway/internal/infrastructure/config"
	mongodb "github.com/flowforge/session-gateway/internal/infrastructure/db/mongo"
	redisdb "github.com/flowforge/session-gateway/internal/infrastructure/db/redis"
	"github.com/flowforge/session-gateway/internal/infrastructure/identity"
	"github.com/flowforge/session-gateway/internal/infrastructure/memory"
	"github.com/flowforge/session-gateway/internal/infrastructure/queue"
	"github.com/flowforge/session-gateway/internal/infrastructure/scrape"
	"github.com/flowforge/session-gateway/pkg/logger"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg := config.Load()
	log := logger.Init(logger.Options{
		Level:  cfg.LogLevel,
		Pretty: cfg.Env == "development",
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := buildStorage(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("storage initialisation failed")
	}
	defer store.close(log)

	backend, mode := buildBackend(cfg, log)

	journal := queue.NewJournal(cfg.Session.JournalWorkers, store.ledger, log)
	journal.Start(ctx)

	sessions := service.NewSessionService(backend, store.users, store.tokens, journal, log)

	// Startup reconciliation: restore a stored session or clear it. Any
	// verification failure is terminal for the stored session.
	sessions.Verify(ctx)
	if cfg.LiveAuth() && cfg.Auth.VerifyURL != "" {
		sessions.StartAutoVerify(ctx, cfg.Session.VerifyInterval)
	}

	scraper := scrape.NewClient(scrape.Config{
		URL:     cfg.Scrape.URL,
		Timeout: cfg.Scrape.Timeout,
	}, log)

	e := api.NewRouter(api.Deps{
		Sessions: sessions,
		Ledger:   store.ledger,
		Scraper:  scraper,
		Cache:    store.cache,
		DB:       store.db,
		RDB:      store.rdb,
		Mode:     mode,
		Log:      log,
	})

	server := &http.Server{Addr: ":" + cfg.Port, Handler: e}

	go func() {
		log.Info().Str("addr", server.Addr).Str("mode", mode).Str("storage", cfg.Storage).Msg("session gateway listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server stopped unexpectedly")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server shutdown failed")
	}
}

// buildBackend selects the identity strategy once. Live when a login
// endpoint is configured, the local demo simulation otherwise.
func buildBackend(cfg *config.Config, log zerolog.Logger) (ports.IdentityBackend, string) {
	if cfg.LiveAuth() {
		if cfg.Auth.RegisterURL == "" {
			log.Warn().Msg("no registration endpoint configured, registration will be unavailable")
		}
		return identity.NewWebhookBackend(identity.WebhookConfig{
			LoginURL:    cfg.Auth.LoginURL,
			RegisterURL: cfg.Auth.RegisterURL,
			VerifyURL:   cfg.Auth.VerifyURL,
			Timeout:     cfg.Auth.Timeout,
		}, log), "live"
	}
	log.Info().Msg("no login endpoint configured, using demo identity backend")
	return identity.NewDemoBackend(cfg.JWTSecret, cfg.Session.TokenTTL), "demo"
}

// storage bundles the selected persistence backends. db, rdb and cache stay
// nil on in-memory storage.
type storage struct {
	users  ports.IdentityStore
	tokens ports.TokenStore
	ledger ports.LedgerRepository
	cache  handler.ResultCache

	db          *mongo.Database
	mongoClient *mongo.Client
	rdb         *redis.Client
}

func buildStorage(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*storage, error) {
	if cfg.Storage == config.StorageMemory {
		log.Info().Msg("using in-memory storage, sessions will not survive a restart")
		return &storage{
			users:  memory.NewIdentityStore(),
			tokens: memory.NewTokenStore(cfg.Session.TokenTTL),
			ledger: memory.NewLedgerRepository(),
		}, nil
	}

	client, db, err := mongodb.Connect(ctx, mongodb.Config{
		URI:      cfg.Mongo.URI,
		Database: cfg.Mongo.Database,
	})
	if err != nil {
		return nil, err
	}

	rdb, err := redisdb.Connect(ctx, redisdb.Config{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err != nil {
		_ = client.Disconnect(ctx)
		return nil, err
	}

	return &storage{
		users:       mongodb.NewSessionRepository(db),
		tokens:      redisdb.NewTokenStore(rdb, cfg.Session.TokenTTL),
		ledger:      mongodb.NewLedgerRepository(db),
		cache:       redisdb.NewResultCache(rdb),
		db:          db,
		mongoClient: client,
		rdb:         rdb,
	}, nil
}

func (s *storage) close(log zerolog.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if s.mongoClient != nil {
		if err := s.mongoClient.Disconnect(ctx); err != nil {
			log.Warn().Err(err).Msg("mongo disconnect failed")
		}
	}
	if s.rdb != nil {
		if err := s.rdb.Close(); err != nil {
			log.Warn().Err(err).Msg("redis close failed")
		}
	}
}
