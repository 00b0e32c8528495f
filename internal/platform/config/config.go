// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package config handles application-wide settings and environment parsing.

It leverages 'caarlos0/env' to map OS environment variables into a strongly-typed
Go struct, providing early validation and default values.

Usage:

	cfg, err := config.Load()
	if err != nil {
	    log.Fatal(err)
	}

Architecture:

  - Immutability: Once loaded, configuration is read-only.
  - DI-Friendly: Passed to core components (DB, Redis, token codec) via constructors.
  - Zero Hidden State: No global variables are used to store config.
*/
package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// minSecretLength is the smallest accepted HMAC key, in bytes.
const minSecretLength = 32

// # Configuration Schema

// Config holds all runtime configuration for the gatekeep API server.
type Config struct {

	// Server settings
	ServerPort  string `env:"SERVER_PORT"  envDefault:"8080"`
	Environment string `env:"ENVIRONMENT"  envDefault:"development"`
	Debug       bool   `env:"DEBUG"        envDefault:"false"`

	// Relational Database (PostgreSQL)
	DatabaseURL string `env:"DATABASE_URL,required"`

	// MigrationPath is the filesystem path to the SQL migrations directory.
	MigrationPath string `env:"MIGRATION_PATH" envDefault:"./data/migrations"`

	// Key-Value Cache (Redis)
	RedisURL string `env:"REDIS_URL,required"`

	// Token signing secrets. Access and refresh tokens never share a key.
	JWTAccessSecret  string `env:"JWT_ACCESS_SECRET,required"`
	JWTRefreshSecret string `env:"JWT_REFRESH_SECRET,required"`

	// RefreshTokenHashKey keys the HMAC applied to refresh tokens before persistence.
	RefreshTokenHashKey string `env:"REFRESH_TOKEN_HASH_KEY,required"`

	// Token and session lifetimes
	AccessTokenTTL     time.Duration `env:"ACCESS_TOKEN_TTL"     envDefault:"15m"`
	RefreshTokenTTL    time.Duration `env:"REFRESH_TOKEN_TTL"    envDefault:"168h"`
	RefreshGracePeriod time.Duration `env:"REFRESH_GRACE_PERIOD" envDefault:"10s"`

	// PasswordHasher selects the password digest: "bcrypt" or "argon2id".
	PasswordHasher string `env:"PASSWORD_HASHER" envDefault:"bcrypt"`

	// Repeated invalid-credential detection
	LoginFailureThreshold int           `env:"LOGIN_FAILURE_THRESHOLD" envDefault:"5"`
	LoginFailureWindow    time.Duration `env:"LOGIN_FAILURE_WINDOW"    envDefault:"15m"`

	// Audit dispatcher buffer (events are dropped when full)
	AuditBufferSize int `env:"AUDIT_BUFFER_SIZE" envDefault:"256"`

	// Error reporting (optional)
	SentryDSN string `env:"SENTRY_DSN"`

	// Cross-Origin Resource Sharing
	AllowedOriginSuffix string `env:"ALLOWED_ORIGIN_SUFFIX" envDefault:"gatekeep.app"`
}

// # Configuration Loading

// Load parses environment variables into a [Config] struct and validates it.
func Load() (*Config, error) {

	// Initialize an empty config struct
	cfg := &Config{}

	// Use the 'env' package to map environment variables to struct fields.
	// This will fail if any field marked with 'required' is missing.
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("config: failed to parse environment variables: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate enforces cross-field invariants that struct tags cannot express.
func (c *Config) Validate() error {
	var errs []error

	if len(c.JWTAccessSecret) < minSecretLength {
		errs = append(errs, fmt.Errorf("JWT_ACCESS_SECRET must be at least %d bytes", minSecretLength))
	}
	if len(c.JWTRefreshSecret) < minSecretLength {
		errs = append(errs, fmt.Errorf("JWT_REFRESH_SECRET must be at least %d bytes", minSecretLength))
	}
	if c.JWTAccessSecret == c.JWTRefreshSecret {
		errs = append(errs, errors.New("JWT_ACCESS_SECRET and JWT_REFRESH_SECRET must differ"))
	}
	if len(c.RefreshTokenHashKey) < minSecretLength {
		errs = append(errs, fmt.Errorf("REFRESH_TOKEN_HASH_KEY must be at least %d bytes", minSecretLength))
	}
	if c.AccessTokenTTL <= 0 || c.RefreshTokenTTL <= c.AccessTokenTTL {
		errs = append(errs, errors.New("REFRESH_TOKEN_TTL must be positive and longer than ACCESS_TOKEN_TTL"))
	}
	if c.RefreshGracePeriod < 0 || c.RefreshGracePeriod >= c.RefreshTokenTTL {
		errs = append(errs, errors.New("REFRESH_GRACE_PERIOD must be non-negative and shorter than REFRESH_TOKEN_TTL"))
	}
	if c.PasswordHasher != "bcrypt" && c.PasswordHasher != "argon2id" {
		errs = append(errs, fmt.Errorf("PASSWORD_HASHER %q is not supported", c.PasswordHasher))
	}
	if c.LoginFailureThreshold < 1 || c.LoginFailureWindow <= 0 {
		errs = append(errs, errors.New("LOGIN_FAILURE_THRESHOLD and LOGIN_FAILURE_WINDOW must be positive"))
	}

	if len(errs) > 0 {
		return fmt.Errorf("config: invalid configuration: %w", errors.Join(errs...))
	}
	return nil
}

// IsDevelopment reports whether the server is running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

// IsProduction reports whether the server is running in production mode.
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}
