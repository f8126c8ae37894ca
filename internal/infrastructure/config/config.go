package config

import (
	"context"
	"fmt"
	"time"

	"github.com/sethvargo/go-envconfig"
)

// Storage backend selection.
const (
	StorageExternal = "external" // MongoDB + Redis
	StorageMemory   = "memory"   // in-process, nothing survives a restart
)

type Config struct {
	Port     string `env:"PORT,      default=8080"`
	Env      string `env:"ENV,       default=development"`
	LogLevel string `env:"LOG_LEVEL, default=info"`

	// JWTSecret signs the tokens fabricated by the demo identity backend.
	JWTSecret string `env:"JWT_SECRET, default=demo-signing-secret"`

	// Storage picks where the session is persisted: "external" or "memory".
	Storage string `env:"STORAGE, default=external"`

	Auth    AuthConfig
	Scrape  ScrapeConfig
	Session SessionConfig
	Mongo   MongoConfig
	Redis   RedisConfig
}

// AuthConfig holds the identity webhook endpoints. Leaving the login URL
// empty switches every credential operation to the local demo backend.
type AuthConfig struct {
	LoginURL    string        `env:"AUTH_LOGIN_WEBHOOK"`
	RegisterURL string        `env:"AUTH_REGISTER_WEBHOOK"`
	VerifyURL   string        `env:"AUTH_VERIFY_WEBHOOK"`
	Timeout     time.Duration `env:"AUTH_TIMEOUT, default=10s"`
}

type ScrapeConfig struct {
	URL     string        `env:"SCRAPE_WEBHOOK"`
	Timeout time.Duration `env:"SCRAPE_TIMEOUT, default=60s"`
}

type SessionConfig struct {
	TokenTTL       time.Duration `env:"SESSION_TOKEN_TTL, default=1h"`
	VerifyInterval time.Duration `env:"SESSION_VERIFY_INTERVAL, default=14m"`
	JournalWorkers int           `env:"LEDGER_JOURNAL_WORKERS, default=4"`
}

type MongoConfig struct {
	URI      string `env:"MONGO_URI, default=mongodb://localhost:27017"`
	Database string `env:"MONGO_DB,  default=session_gateway"`
}

type RedisConfig struct {
	Addr     string `env:"REDIS_ADDR, default=localhost:6379"`
	Password string `env:"REDIS_PASSWORD"`
	DB       int    `env:"REDIS_DB,   default=0"`
}

// LiveAuth reports whether credential operations go to the external
// endpoints. This is the single live/demo decision point; the backend is
// chosen once at startup, not re-checked per call.
func (c *Config) LiveAuth() bool {
	return c.Auth.LoginURL != ""
}

// Load reads configuration from environment variables using go-envconfig.
func Load() *Config {
	var cfg Config
	if err := envconfig.Process(context.Background(), &cfg); err != nil {
		panic(fmt.Sprintf("config: failed to load configuration: %v", err))
	}
	return &cfg
}
