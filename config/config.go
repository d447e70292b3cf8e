package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
)

// AppConfig is the process configuration, read from the environment by
// github.com/caarlos0/env (optionally seeded from a .env file by the bootstrap package).
// Each section lives in its own file next to its Sanitize and Validate methods.
type AppConfig struct {
	// IsDev controls development mode behavior (verbose logging).
	// Set DEV=true or GO_ENV=development for development mode.
	IsDev bool `env:"DEV" envDefault:"false"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`

	HTTP     HTTPConfig
	Pipeline PipelineConfig
	Webhook  WebhookConfig

	// Ledger selects where archive version counters are persisted.
	Ledger LedgerConfig

	// Database configuration
	Postgres DBConfig    `envPrefix:"DB_"`
	Redis    RedisConfig `envPrefix:"REDIS_"`
	Lock     LockConfig

	Mirror MirrorConfig `envPrefix:"ARCHIVE_MIRROR_"`

	// Observability configuration
	Observability ObservabilityConfig
}

// Sanitize applies guardrails to configuration values loaded from env.
// This should be called after loading configuration from environment variables.
func (c *AppConfig) Sanitize() {
	c.HTTP.Sanitize()
	c.Pipeline.Sanitize()
	c.Webhook.Sanitize()
	c.Ledger.Sanitize()
	c.Lock.Sanitize()
	c.Mirror.Sanitize()
	c.Observability.Sanitize()

	c.LogLevel = strings.ToLower(strings.TrimSpace(c.LogLevel))
	c.detectDevMode()
}

// Validate reports configuration failures that must stop the process before any stage runs.
func (c *AppConfig) Validate() error {
	checks := []func() error{
		c.Pipeline.Validate,
		c.Webhook.Validate,
		c.Mirror.Validate,
		c.validateLockBackend,
	}
	var errs []error
	for _, check := range checks {
		if err := check(); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid configuration: %w", errors.Join(errs...))
	}
	return nil
}

func (c *AppConfig) validateLockBackend() error {
	if c.Lock.Backend != LockBackendRedis {
		return nil
	}
	if strings.TrimSpace(c.Redis.URI) == "" && !c.Redis.UseSentinel && !c.Redis.UseCluster {
		return errors.New("LOCK_BACKEND=redis requires REDIS_URI, sentinel or cluster configuration")
	}
	return nil
}

// NeedsPostgres reports whether any enabled component requires a database connection.
func (c *AppConfig) NeedsPostgres() bool {
	return c.Ledger.Backend == LedgerBackendPostgres
}

// NeedsRedis reports whether any enabled component requires a Redis connection.
func (c *AppConfig) NeedsRedis() bool {
	return c.Lock.Backend == LockBackendRedis
}

// detectDevMode falls back to GO_ENV when DEV is unset.
func (c *AppConfig) detectDevMode() {
	if !c.IsDev {
		goEnv := strings.ToLower(os.Getenv("GO_ENV"))
		c.IsDev = goEnv == "development" || goEnv == "dev"
	}
	if c.IsDev && c.LogLevel == "info" {
		c.LogLevel = "debug"
	}
}
