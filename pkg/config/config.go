package config

import (
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/joho/godotenv"
)

const (
	CredentialsFromEnv = "env"
	CredentialsFromAWS = "aws"
)

// Config holds the runtime configuration for the client and the sync service.
type Config struct {
	ServiceName string // e.g. "recommend-sync"
	Env         string // "dev", "uat", "prod"
	LogLevel    string
	Port        int

	// Recommendation API
	BaseURL           string
	Username          string
	Password          string
	Account           string
	CredentialsSource string // "env" | "aws"
	AWSRegion         string
	HTTPTimeout       time.Duration
	RetryMax          int
	RequestsPerSecond float64
	Burst             int
	RefreshWindow     time.Duration
	BreakerFailures   int
	BreakerTimeout    time.Duration

	// Search paging
	PageSize  int
	MaxFailed int

	// Token sharing; empty RedisAddr disables it
	RedisAddr string
	RedisDB   int
	RedisPass string

	// Channel sync sinks; empty values disable the sink
	NATSURL        string
	ChannelSubject string
	DatabaseURL    string
	SyncInterval   time.Duration

	PGMaxConns          int
	PGMinConns          int
	PGMaxConnLifetime   time.Duration
	PGMaxConnIdleTime   time.Duration
	PGHealthCheckPeriod time.Duration

	CacheTTL    time.Duration // TTL for the secret cache
	CleanupFreq time.Duration // frequency for cache cleanup goroutine
}

// Load loads configuration from environment variables and .env file if present.
func Load() *Config {
	// load .env silently (no error if missing)
	_ = godotenv.Load()

	return &Config{
		ServiceName: GetEnv("SERVICE_NAME", "recommend-sync"),
		Env:         GetEnv("ENV", "dev"),
		LogLevel:    GetEnv("LOG_LEVEL", "info"),
		Port:        GetEnvInt("PORT", 9020),

		BaseURL:           GetEnv("RECOMMEND_BASE_URL", ""),
		Username:          GetEnv("RECOMMEND_USERNAME", ""),
		Password:          GetEnv("RECOMMEND_PASSWORD", ""),
		Account:           GetEnv("RECOMMEND_ACCOUNT", "default"),
		CredentialsSource: GetEnv("RECOMMEND_CREDENTIALS_SOURCE", CredentialsFromEnv),
		AWSRegion:         GetEnv("AWS_REGION", "us-east-2"),
		HTTPTimeout:       GetEnvDuration("RECOMMEND_HTTP_TIMEOUT", 30*time.Second),
		RetryMax:          GetEnvInt("RECOMMEND_RETRY_MAX", 2),
		RequestsPerSecond: GetEnvFloat("RECOMMEND_RPS", 10),
		Burst:             GetEnvInt("RECOMMEND_BURST", 20),
		RefreshWindow:     GetEnvDuration("RECOMMEND_TOKEN_REFRESH_WINDOW", 5*time.Minute),
		BreakerFailures:   GetEnvInt("RECOMMEND_BREAKER_FAILURES", 5),
		BreakerTimeout:    GetEnvDuration("RECOMMEND_BREAKER_TIMEOUT", 30*time.Second),

		PageSize:  GetEnvInt("RECOMMEND_PAGE_SIZE", 3000),
		MaxFailed: GetEnvInt("RECOMMEND_MAX_FAILED", 5),

		RedisAddr: GetEnv("REDIS_ADDR", ""),
		RedisDB:   GetEnvInt("REDIS_DB", 0),
		RedisPass: GetEnv("REDIS_PASS", ""),

		NATSURL:        GetEnv("NATS_URL", ""),
		ChannelSubject: GetEnv("CHANNEL_SUBJECT", "evt.recommend.email_channel.v1"),
		DatabaseURL:    GetEnv("DATABASE_URL", ""),
		SyncInterval:   GetEnvDuration("SYNC_INTERVAL", 15*time.Minute),

		PGMaxConns:          GetEnvInt("PG_MAX_CONNS", 10),
		PGMinConns:          GetEnvInt("PG_MIN_CONNS", 1),
		PGMaxConnLifetime:   GetEnvDuration("PG_MAX_CONN_LIFETIME", time.Hour),
		PGMaxConnIdleTime:   GetEnvDuration("PG_MAX_CONN_IDLE_TIME", 30*time.Minute),
		PGHealthCheckPeriod: GetEnvDuration("PG_HEALTH_CHECK_PERIOD", time.Minute),

		CacheTTL:    GetEnvDuration("CACHE_TTL", 24*time.Hour),
		CleanupFreq: GetEnvDuration("CACHE_CLEANUP_FREQ", 10*time.Minute),
	}
}

// Validate reports every problem with the configuration at once.
func (c *Config) Validate() error {
	var errs []error

	if c.BaseURL == "" {
		errs = append(errs, errors.New("RECOMMEND_BASE_URL is required"))
	} else if u, err := url.Parse(c.BaseURL); err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		errs = append(errs, fmt.Errorf("RECOMMEND_BASE_URL %q must be an absolute http(s) URL", c.BaseURL))
	}

	switch c.CredentialsSource {
	case CredentialsFromEnv:
		if c.Username == "" || c.Password == "" {
			errs = append(errs, errors.New("RECOMMEND_USERNAME and RECOMMEND_PASSWORD are required when credentials come from env"))
		}
	case CredentialsFromAWS:
		if c.AWSRegion == "" {
			errs = append(errs, errors.New("AWS_REGION is required when credentials come from aws"))
		}
	default:
		errs = append(errs, fmt.Errorf("RECOMMEND_CREDENTIALS_SOURCE must be %q or %q, got %q",
			CredentialsFromEnv, CredentialsFromAWS, c.CredentialsSource))
	}

	if c.Account == "" {
		errs = append(errs, errors.New("RECOMMEND_ACCOUNT is required"))
	}
	if c.HTTPTimeout <= 0 {
		errs = append(errs, errors.New("RECOMMEND_HTTP_TIMEOUT must be positive"))
	}
	if c.RetryMax < 0 {
		errs = append(errs, errors.New("RECOMMEND_RETRY_MAX must not be negative"))
	}
	if c.RequestsPerSecond < 0 {
		errs = append(errs, errors.New("RECOMMEND_RPS must not be negative"))
	}
	if c.PageSize <= 0 {
		errs = append(errs, errors.New("RECOMMEND_PAGE_SIZE must be positive"))
	}
	if c.MaxFailed < 0 {
		errs = append(errs, errors.New("RECOMMEND_MAX_FAILED must not be negative"))
	}
	if c.SyncInterval <= 0 {
		errs = append(errs, errors.New("SYNC_INTERVAL must be positive"))
	}

	return errors.Join(errs...)
}
