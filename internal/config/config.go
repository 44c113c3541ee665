package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config aggregates runtime configuration for the service.
type Config struct {
	App      AppConfig
	Postgres PostgresConfig
	Redis    RedisConfig
	Logger   LoggerConfig
	Auth     AuthConfig
	Tickets  TicketsConfig
}

// AppConfig controls server level behavior.
type AppConfig struct {
	Name                  string
	Env                   string
	Host                  string
	Port                  string
	Version               string
	RequestTimeoutSeconds int
}

// PostgresConfig holds DB connection values. An empty DSN selects the in-memory store.
type PostgresConfig struct {
	DSN            string
	MaxConns       int32
	MinConns       int32
	RunMigrations  bool
	ConnMaxIdleSec int32
	ConnMaxLifeSec int32
}

// RedisConfig holds Redis connection values.
type RedisConfig struct {
	Enabled  bool
	Addr     string
	Password string
	DB       int
}

// LoggerConfig configures logging behavior.
type LoggerConfig struct {
	Level string
}

// AuthConfig defines how bearer tokens are verified.
type AuthConfig struct {
	JWTSecret             string
	AccessTokenTTLMinutes int
}

// TicketsConfig tunes the ticket workflow.
type TicketsConfig struct {
	DefaultPageLimit      int
	MaxPageLimit          int
	DefaultCompletionDays int
	LockTTLSeconds        int
	LockWaitMillis        int
	// SeedDevUsers provisions one agent per tier at startup and logs their
	// tokens. Only honoured against the memory store with a non-default secret.
	SeedDevUsers bool
}

// DefaultJWTSecret is the fallback signing secret. It is public, so any token
// it verifies can be forged.
const DefaultJWTSecret = "dev-secret"

// Load reads configuration from environment variables, applying defaults where possible.
func Load() (*Config, error) {
	_ = godotenv.Load()

	redisDB, err := strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	cfg := &Config{
		App: AppConfig{
			Name:                  getEnv("APP_NAME", "escalation-service"),
			Env:                   getEnv("APP_ENV", "development"),
			Host:                  getEnv("APP_HOST", "0.0.0.0"),
			Port:                  getEnv("APP_PORT", "8080"),
			Version:               getEnv("APP_VERSION", "dev"),
			RequestTimeoutSeconds: getEnvAsInt("HTTP_REQUEST_TIMEOUT_SECONDS", 30),
		},
		Postgres: PostgresConfig{
			DSN:            os.Getenv("POSTGRES_DSN"),
			MaxConns:       int32(getEnvAsInt("POSTGRES_MAX_CONNS", 10)),
			MinConns:       int32(getEnvAsInt("POSTGRES_MIN_CONNS", 2)),
			RunMigrations:  getEnvAsBool("POSTGRES_RUN_MIGRATIONS", true),
			ConnMaxIdleSec: int32(getEnvAsInt("POSTGRES_CONN_MAX_IDLE_SECONDS", 30)),
			ConnMaxLifeSec: int32(getEnvAsInt("POSTGRES_CONN_MAX_LIFE_SECONDS", 300)),
		},
		Redis: RedisConfig{
			Enabled:  getEnvAsBool("REDIS_ENABLED", false),
			Addr:     getEnv("REDIS_ADDR", "127.0.0.1:6379"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       redisDB,
		},
		Logger: LoggerConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
		Auth: AuthConfig{
			JWTSecret:             getEnv("AUTH_JWT_SECRET", DefaultJWTSecret),
			AccessTokenTTLMinutes: getEnvAsInt("AUTH_ACCESS_TOKEN_TTL_MINUTES", 60),
		},
		Tickets: TicketsConfig{
			DefaultPageLimit:      getEnvAsInt("TICKETS_DEFAULT_PAGE_LIMIT", 10),
			MaxPageLimit:          getEnvAsInt("TICKETS_MAX_PAGE_LIMIT", 100),
			DefaultCompletionDays: getEnvAsInt("TICKETS_DEFAULT_COMPLETION_DAYS", 7),
			LockTTLSeconds:        getEnvAsInt("TICKETS_LOCK_TTL_SECONDS", 10),
			LockWaitMillis:        getEnvAsInt("TICKETS_LOCK_WAIT_MILLIS", 2000),
			SeedDevUsers:          getEnvAsBool("TICKETS_SEED_DEV_USERS", false),
		},
	}

	if cfg.Tickets.DefaultPageLimit > cfg.Tickets.MaxPageLimit {
		return nil, fmt.Errorf("TICKETS_DEFAULT_PAGE_LIMIT (%d) exceeds TICKETS_MAX_PAGE_LIMIT (%d)",
			cfg.Tickets.DefaultPageLimit, cfg.Tickets.MaxPageLimit)
	}

	return cfg, nil
}

// ValidateDevSeeding refuses seeding development users into a real database
// or under a signing secret anyone can read from the source.
func (c *Config) ValidateDevSeeding() error {
	if c.Postgres.DSN != "" {
		return fmt.Errorf("TICKETS_SEED_DEV_USERS cannot be used with POSTGRES_DSN")
	}
	if c.Auth.JWTSecret == DefaultJWTSecret {
		return fmt.Errorf("TICKETS_SEED_DEV_USERS requires AUTH_JWT_SECRET to be set")
	}
	return nil
}

// Addr returns the HTTP bind address.
func (a AppConfig) Addr() string {
	return fmt.Sprintf("%s:%s", a.Host, a.Port)
}

// RequestTimeout returns the configured request timeout duration.
func (a AppConfig) RequestTimeout() time.Duration {
	if a.RequestTimeoutSeconds <= 0 {
		return 0
	}
	return time.Duration(a.RequestTimeoutSeconds) * time.Second
}

// DefaultCompletion is the expected completion offset applied when a ticket omits one.
func (t TicketsConfig) DefaultCompletion() time.Duration {
	days := t.DefaultCompletionDays
	if days <= 0 {
		days = 7
	}
	return time.Duration(days) * 24 * time.Hour
}

// LockTTL bounds how long a per-ticket mutation lock may be held.
func (t TicketsConfig) LockTTL() time.Duration {
	if t.LockTTLSeconds <= 0 {
		return 10 * time.Second
	}
	return time.Duration(t.LockTTLSeconds) * time.Second
}

// LockWait bounds how long a mutation waits for another one on the same ticket.
func (t TicketsConfig) LockWait() time.Duration {
	if t.LockWaitMillis <= 0 {
		return 2 * time.Second
	}
	return time.Duration(t.LockWaitMillis) * time.Millisecond
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(val)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvAsBool(key string, fallback bool) bool {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(val)
	if err != nil {
		return fallback
	}
	return parsed
}
