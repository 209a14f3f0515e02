package config

import (
	"os"
	"strconv"
)

// Config holds the core runtime configuration for the service.
// Values are primarily sourced from environment variables, with
// sensible defaults where appropriate. See .env.example.
type Config struct {
	DatabaseURL string

	ListenAddr string

	// ConnectorAPIKey is the bearer token bootstrapped for upstream
	// connectors (booking, CRM, call logging, deals, payments) that push
	// raw rows into /v1/sources, and for the scheduler that triggers
	// pipeline runs. If empty, no key is bootstrapped and one must
	// already exist in the database.
	ConnectorAPIKey string

	// CallRetentionDays is how long raw call records are kept before the
	// retention worker purges them. Call logs are the only raw source
	// with a contractual retention limit.
	CallRetentionDays int
}

// Load reads configuration from environment variables and applies defaults.
func Load() *Config {
	cfg := &Config{
		DatabaseURL:       os.Getenv("APP_DATABASE_URL"),
		ListenAddr:        getenv("APP_LISTEN_ADDR", ":8080"),
		ConnectorAPIKey:   getenv("APP_CONNECTOR_API_KEY", ""),
		CallRetentionDays: 365,
	}

	if v := os.Getenv("APP_CALL_RETENTION_DAYS"); v != "" {
		if days, err := strconv.Atoi(v); err == nil && days > 0 {
			cfg.CallRetentionDays = days
		}
	}

	return cfg
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
