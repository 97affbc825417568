package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"
)

// ErrMissingDatabaseURL is returned when no database is configured and the
// in-memory store was not requested.
var ErrMissingDatabaseURL = errors.New("DATABASE_URL is required")

// Config holds application configuration.
type Config struct {
	DatabaseURL string
	RedisURL    string // empty disables caching and the request worker
	ServerPort  string
	AdminSecret string // empty disables POST /api/time

	Log      LogConfig
	Postgres PostgresConfig
	Fetcher  FetcherConfig
}

type LogConfig struct {
	Level  string
	Format string
	File   string
}

type PostgresConfig struct {
	MaxConns       int32
	MinConns       int32
	ConnectTimeout time.Duration
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	WatermarkLag   time.Duration // zero derives it from WriteTimeout, see SyncLag
	LogLevel       string        // pgx tracelog level: trace, debug, info, warn, error, none
}

// SyncLag is how far the sync watermark trails the database clock. Rows
// stamped before now minus SyncLag belong to transactions that have already
// finished, because an import transaction lives at most WriteTimeout.
func (c PostgresConfig) SyncLag() time.Duration {
	switch {
	case c.WatermarkLag > 0:
		return c.WatermarkLag
	case c.WriteTimeout > 0:
		return c.WriteTimeout + time.Second
	}
	return time.Minute
}

type FetcherConfig struct {
	UserAgent string
	Timeout   time.Duration
}

// Default returns a Config with every optional field set.
func Default() *Config {
	return &Config{
		ServerPort: "8080",
		Log: LogConfig{
			Level:  "info",
			Format: "console",
		},
		Postgres: PostgresConfig{
			MaxConns:       5,
			MinConns:       0,
			ConnectTimeout: 5 * time.Second,
			ReadTimeout:    10 * time.Second,
			WriteTimeout:   30 * time.Second,
			LogLevel:       "warn",
		},
		Fetcher: FetcherConfig{
			UserAgent: "confsync/1.0",
			Timeout:   30 * time.Second,
		},
	}
}

// Load builds config from environment variables.
// If DATABASE_URL is not set, Load tries to load .env.local and .env first.
func Load() (*Config, error) {
	if os.Getenv("DATABASE_URL") == "" {
		loadEnvFiles()
	}
	c := Default()
	if err := c.applyEnv(); err != nil {
		return nil, err
	}
	return c, nil
}

// Validate checks required fields. requireDatabase is false for the
// in-memory store.
func (c *Config) Validate(requireDatabase bool) error {
	if requireDatabase && c.DatabaseURL == "" {
		return ErrMissingDatabaseURL
	}
	if c.Postgres.MaxConns < 1 {
		return fmt.Errorf("db max conns must be at least 1, got %d", c.Postgres.MaxConns)
	}
	if c.Postgres.MinConns < 0 || c.Postgres.MinConns > c.Postgres.MaxConns {
		return fmt.Errorf("db min conns must be between 0 and %d, got %d", c.Postgres.MaxConns, c.Postgres.MinConns)
	}
	return nil
}

// applyEnv overrides fields with any environment variables that are set.
func (c *Config) applyEnv() error {
	setString(&c.DatabaseURL, "DATABASE_URL")
	setString(&c.RedisURL, "REDIS_URL")
	setString(&c.ServerPort, "SERVER_PORT")
	setString(&c.AdminSecret, "ADMIN_SECRET")
	setString(&c.Log.Level, "LOG_LEVEL")
	setString(&c.Log.Format, "LOG_FORMAT")
	setString(&c.Log.File, "LOG_FILE")
	setString(&c.Postgres.LogLevel, "DB_LOG_LEVEL")
	setString(&c.Fetcher.UserAgent, "FETCHER_USER_AGENT")

	for _, d := range []struct {
		dst *time.Duration
		key string
	}{
		{&c.Postgres.ConnectTimeout, "DB_CONNECT_TIMEOUT"},
		{&c.Postgres.ReadTimeout, "DB_READ_TIMEOUT"},
		{&c.Postgres.WriteTimeout, "DB_WRITE_TIMEOUT"},
		{&c.Postgres.WatermarkLag, "DB_WATERMARK_LAG"},
		{&c.Fetcher.Timeout, "FETCHER_TIMEOUT"},
	} {
		if err := setDuration(d.dst, d.key); err != nil {
			return err
		}
	}
	if err := setInt32(&c.Postgres.MaxConns, "DB_MAX_CONNS"); err != nil {
		return err
	}
	return setInt32(&c.Postgres.MinConns, "DB_MIN_CONNS")
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setDuration(dst *time.Duration, key string) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = d
	return nil
}

func setInt32(dst *int32, key string) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	n, err := strconv.ParseInt(v, 10, 32)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = int32(n)
	return nil
}
