// Package config provides application configuration management.
// Configuration is loaded from environment variables following 12-factor principles.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v10"
)

// Config holds all application configuration.
// All fields are populated from environment variables.
type Config struct {
	// Application settings
	AppEnv  string `env:"APP_ENV" envDefault:"development"`
	AppPort int    `env:"APP_PORT" envDefault:"8080"`

	// Database (PostgreSQL)
	DatabaseURL string `env:"DATABASE_URL,required"`
	DBMaxConns  int32  `env:"DB_MAX_CONNS" envDefault:"10"`
	DBMinConns  int32  `env:"DB_MIN_CONNS" envDefault:"2"`

	// Redis: click stream and link cache
	RedisURL string `env:"REDIS_URL,required"`

	// Base URL for short links (e.g., https://lnk.example)
	BaseURL string `env:"BASE_URL" envDefault:"http://localhost:8080"`

	// Logging
	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"json"`

	// Server timeouts
	ReadTimeout     time.Duration `env:"READ_TIMEOUT" envDefault:"5s"`
	WriteTimeout    time.Duration `env:"WRITE_TIMEOUT" envDefault:"10s"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"30s"`

	// Request body size limit in bytes (default 1MB)
	MaxRequestBodySize int64 `env:"MAX_REQUEST_BODY_SIZE" envDefault:"1048576"`

	// Click stream
	StreamKey     string `env:"STREAM_KEY" envDefault:"click_events"`
	StreamMaxLen  int64  `env:"STREAM_MAX_LEN" envDefault:"0"` // acknowledged entries are trimmed past this; 0 keeps everything
	ConsumerGroup string `env:"CONSUMER_GROUP" envDefault:"click_consumers"`
	ConsumerName  string `env:"CONSUMER_NAME"` // generated when empty

	// Consumer loop
	BatchSize      int           `env:"BATCH_SIZE" envDefault:"10"`
	BlockTime      time.Duration `env:"BLOCK_TIME" envDefault:"5s"`
	ReadRetryDelay time.Duration `env:"READ_RETRY_DELAY" envDefault:"500ms"`
	ClaimInterval  time.Duration `env:"CLAIM_INTERVAL" envDefault:"30s"`
	ClaimMinIdle   time.Duration `env:"CLAIM_MIN_IDLE" envDefault:"60s"`

	// Click persistence retry
	PersistMaxAttempts int           `env:"PERSIST_MAX_ATTEMPTS" envDefault:"3"`
	PersistBaseDelay   time.Duration `env:"PERSIST_BASE_DELAY" envDefault:"500ms"`
	PersistMaxJitter   time.Duration `env:"PERSIST_MAX_JITTER" envDefault:"100ms"`
	DeadLetterEnabled  bool          `env:"DEAD_LETTER_ENABLED" envDefault:"true"`

	// Click producer
	PublishTimeout          time.Duration `env:"PUBLISH_TIMEOUT" envDefault:"200ms"`
	BreakerFailureThreshold uint32        `env:"BREAKER_FAILURE_THRESHOLD" envDefault:"5"`
	BreakerOpenTimeout      time.Duration `env:"BREAKER_OPEN_TIMEOUT" envDefault:"10s"`

	// Link cache
	LinkCacheTTL time.Duration `env:"LINK_CACHE_TTL" envDefault:"1h"`

	// Metrics
	MetricsEnabled bool `env:"METRICS_ENABLED" envDefault:"true"`
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.AppEnv == "development"
}

// IsProduction returns true if running in production mode.
func (c *Config) IsProduction() bool {
	return c.AppEnv == "production"
}

// Validate rejects settings the pipeline cannot run with.
func (c *Config) Validate() error {
	var errs []error

	if c.AppPort <= 0 || c.AppPort > 65535 {
		errs = append(errs, fmt.Errorf("APP_PORT must be between 1 and 65535, got %d", c.AppPort))
	}
	switch strings.ToLower(c.LogFormat) {
	case "json", "text":
	default:
		errs = append(errs, fmt.Errorf("LOG_FORMAT must be json or text, got %q", c.LogFormat))
	}
	if c.StreamKey == "" {
		errs = append(errs, errors.New("STREAM_KEY must not be empty"))
	}
	if c.StreamMaxLen < 0 {
		errs = append(errs, fmt.Errorf("STREAM_MAX_LEN must not be negative, got %d", c.StreamMaxLen))
	}
	if c.ConsumerGroup == "" {
		errs = append(errs, errors.New("CONSUMER_GROUP must not be empty"))
	}
	if c.BatchSize <= 0 {
		errs = append(errs, fmt.Errorf("BATCH_SIZE must be positive, got %d", c.BatchSize))
	}
	if c.BlockTime <= 0 {
		errs = append(errs, fmt.Errorf("BLOCK_TIME must be positive, got %s", c.BlockTime))
	}
	if c.PersistMaxAttempts <= 0 {
		errs = append(errs, fmt.Errorf("PERSIST_MAX_ATTEMPTS must be positive, got %d", c.PersistMaxAttempts))
	}
	if c.PersistBaseDelay < 0 || c.PersistMaxJitter < 0 {
		errs = append(errs, errors.New("PERSIST_BASE_DELAY and PERSIST_MAX_JITTER must not be negative"))
	}
	if c.DBMaxConns <= 0 || c.DBMinConns < 0 || c.DBMinConns > c.DBMaxConns {
		errs = append(errs, fmt.Errorf("DB_MIN_CONNS (%d) and DB_MAX_CONNS (%d) are inconsistent", c.DBMinConns, c.DBMaxConns))
	}

	return errors.Join(errs...)
}

// Load parses environment variables and returns a validated Config.
// Returns an error if required variables are missing.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}
