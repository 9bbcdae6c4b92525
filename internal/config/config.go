// Package config loads service configuration from the environment.
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config holds everything the identra binaries need at startup.
type Config struct {
	DatabaseDSN string `env:"IDENTRA_PG_DSN"`
	ListenAddr  string `env:"IDENTRA_LISTEN_ADDR" envDefault:":8080"`

	TokenSecret string        `env:"IDENTRA_TOKEN_SECRET"`
	TokenTTL    time.Duration `env:"IDENTRA_TOKEN_TTL" envDefault:"15m"`

	// AuthDriver selects the credential verification driver used for
	// logins. Drivers register under fixed names at startup.
	AuthDriver string `env:"IDENTRA_AUTH_DRIVER" envDefault:"local"`

	// Region and Confederation identify the context this node serves; the
	// localizer compares roaming logins against them.
	Region        string `env:"IDENTRA_REGION" envDefault:"region1"`
	Confederation string `env:"IDENTRA_CONFEDERATION" envDefault:"confederation1"`

	// BootstrapUserID is the pre-seeded root identity exempt from the
	// assignment authority check.
	BootstrapUserID string `env:"IDENTRA_BOOTSTRAP_USER_ID" envDefault:"00000000-0000-0000-0000-000000000000"`

	RateLimitPerSecond int `env:"IDENTRA_RATE_LIMIT_PER_SECOND" envDefault:"20"`
	RateLimitBurst     int `env:"IDENTRA_RATE_LIMIT_BURST" envDefault:"40"`
}

// Load parses configuration from the environment.
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse environment: %w", err)
	}
	return cfg, nil
}
