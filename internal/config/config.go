// Package config loads application configuration from environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"
)

// Config holds the application configuration loaded from environment variables.
type Config struct {
	DiscordToken string
	GitHubToken  string
	PollInterval time.Duration
	DBPath       string
}

// Load reads configuration from environment variables and returns a validated
// Config. FIZZ_DISCORD_TOKEN is required. FIZZ_GITHUB_TOKEN is optional
// (public repositories work unauthenticated at a lower rate limit). Optional
// variables with defaults: FIZZ_POLL_INTERVAL (5m), FIZZ_DB_PATH (fizz.db).
func Load() (*Config, error) {
	token := os.Getenv("FIZZ_DISCORD_TOKEN")
	if token == "" {
		return nil, errors.New("FIZZ_DISCORD_TOKEN must be set")
	}

	pollInterval := 5 * time.Minute
	if v, ok := os.LookupEnv("FIZZ_POLL_INTERVAL"); ok {
		parsed, err := time.ParseDuration(v)
		if err != nil {
			return nil, fmt.Errorf("FIZZ_POLL_INTERVAL has invalid duration %q: %w", v, err)
		}
		if parsed <= 0 {
			return nil, fmt.Errorf("FIZZ_POLL_INTERVAL must be positive, got %q", v)
		}
		pollInterval = parsed
	}

	dbPath := "fizz.db"
	if v, ok := os.LookupEnv("FIZZ_DB_PATH"); ok {
		dbPath = v
	}

	return &Config{
		DiscordToken: token,
		GitHubToken:  os.Getenv("FIZZ_GITHUB_TOKEN"),
		PollInterval: pollInterval,
		DBPath:       dbPath,
	}, nil
}
