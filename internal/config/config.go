// Package config loads runtime configuration from the environment.
package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"
	"github.com/shopspring/decimal"
)

// Config holds the server's runtime settings. DatabaseURL and RedisURL
// are optional: with neither set the server runs on the in-memory store.
type Config struct {
	Port           int             `env:"PORT" envDefault:"8080"`
	DatabaseURL    string          `env:"DATABASE_URL"`
	RedisURL       string          `env:"REDIS_URL"`
	StartingTokens decimal.Decimal `env:"STARTING_TOKENS" envDefault:"100"`
	AdminPlayer    string          `env:"ADMIN_PLAYER" envDefault:"admin"`
	Roster         []string        `env:"ROSTER" envSeparator:","`
}

// Load parses configuration from the environment and validates it.
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if cfg.StartingTokens.IsNegative() {
		return Config{}, fmt.Errorf("STARTING_TOKENS must not be negative, got %s", cfg.StartingTokens)
	}
	return cfg, nil
}
