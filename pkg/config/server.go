package config

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"strings"
	"time"
)

const (
	StoreDriverPostgres = "postgres"
	StoreDriverMemory   = "memory"
)

// ServerConfig holds runtime configuration for the panem API service.
type ServerConfig struct {
	Environment        string
	Addr               string
	LogLevel           string
	APIKeyHash         Secret
	WebhookURL         string
	WebhookAPIKey      Secret
	WebhookTimeout     time.Duration
	EventsConfigPath   string
	StoreDriver        string
	DatabaseURL        string
	MigrationsDir      string
	DBStartupAttempts  int
	RateLimitPerMinute int
	RateLimitRedisAddr string
	RateLimitRedisPass string
	RateLimitRedisDB   int
}

// LoadServerConfig constructs a ServerConfig from environment variables.
func LoadServerConfig() ServerConfig {
	return ServerConfig{
		Environment:        GetString("APP_ENV", "development"),
		Addr:               GetString("API_ADDR", ":8000"),
		LogLevel:           GetString("LOG_LEVEL", "info"),
		APIKeyHash:         Secret(strings.TrimSpace(GetString("API_KEY", ""))),
		WebhookURL:         strings.TrimSpace(GetString("WEBHOOK_URL", "")),
		WebhookAPIKey:      Secret(strings.TrimSpace(GetString("WEBHOOK_API_KEY", ""))),
		WebhookTimeout:     GetSeconds("WEBHOOK_TIMEOUT_SECONDS", 10*time.Second),
		EventsConfigPath:   strings.TrimSpace(GetString("EVENTS_CONFIG", "")),
		StoreDriver:        strings.ToLower(strings.TrimSpace(GetString("STORE_DRIVER", StoreDriverPostgres))),
		DatabaseURL:        databaseURL(),
		MigrationsDir:      GetString("DB_MIGRATIONS_DIR", ""),
		DBStartupAttempts:  GetInt("DB_STARTUP_ATTEMPTS", 30),
		RateLimitPerMinute: GetInt("RATE_LIMIT_PER_MINUTE", 120),
		RateLimitRedisAddr: GetString("RATE_LIMIT_REDIS_ADDR", ""),
		RateLimitRedisPass: GetString("RATE_LIMIT_REDIS_PASSWORD", ""),
		RateLimitRedisDB:   GetInt("RATE_LIMIT_REDIS_DB", 0),
	}
}

// Validate reports every missing or malformed required setting.
func (c ServerConfig) Validate() error {
	var errs []error
	if !c.APIKeyHash.IsSet() {
		errs = append(errs, errors.New("API_KEY is required"))
	}
	if c.WebhookURL == "" {
		errs = append(errs, errors.New("WEBHOOK_URL is required"))
	} else if u, err := url.Parse(c.WebhookURL); err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		errs = append(errs, fmt.Errorf("WEBHOOK_URL must be an absolute http(s) URL, got %q", c.WebhookURL))
	}
	if !c.WebhookAPIKey.IsSet() {
		errs = append(errs, errors.New("WEBHOOK_API_KEY is required"))
	}
	if c.WebhookTimeout <= 0 {
		errs = append(errs, errors.New("WEBHOOK_TIMEOUT_SECONDS must be positive"))
	}
	if c.EventsConfigPath == "" {
		errs = append(errs, errors.New("EVENTS_CONFIG is required"))
	}
	switch c.StoreDriver {
	case StoreDriverPostgres:
		if c.DatabaseURL == "" {
			errs = append(errs, errors.New("DATABASE_URL or POSTGRES_USER/POSTGRES_PASSWORD/POSTGRES_DB is required"))
		}
	case StoreDriverMemory:
	default:
		errs = append(errs, fmt.Errorf("STORE_DRIVER must be %q or %q, got %q", StoreDriverPostgres, StoreDriverMemory, c.StoreDriver))
	}
	return errors.Join(errs...)
}

// databaseURL prefers DATABASE_URL and otherwise composes a DSN from the
// POSTGRES_* variables used by the postgres container image.
func databaseURL() string {
	if dsn := strings.TrimSpace(GetString("DATABASE_URL", "")); dsn != "" {
		return dsn
	}
	user := GetString("POSTGRES_USER", "")
	database := GetString("POSTGRES_DB", "")
	if user == "" || database == "" {
		return ""
	}
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(user, GetString("POSTGRES_PASSWORD", "")),
		Host:     net.JoinHostPort(GetString("POSTGRES_HOST", "postgres"), GetString("POSTGRES_PORT", "5432")),
		Path:     "/" + database,
		RawQuery: "sslmode=" + GetString("POSTGRES_SSLMODE", "disable"),
	}
	return u.String()
}
