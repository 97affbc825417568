package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type fileConfig struct {
	DatabaseURL string `yaml:"database_url"`
	RedisURL    string `yaml:"redis_url"`
	ServerPort  string `yaml:"server_port"`
	AdminSecret string `yaml:"admin_secret"`

	Log struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
		File   string `yaml:"file"`
	} `yaml:"log"`

	Postgres struct {
		MaxConns       int32  `yaml:"max_conns"`
		MinConns       int32  `yaml:"min_conns"`
		ConnectTimeout string `yaml:"connect_timeout"`
		ReadTimeout    string `yaml:"read_timeout"`
		WriteTimeout   string `yaml:"write_timeout"`
		WatermarkLag   string `yaml:"watermark_lag"`
		LogLevel       string `yaml:"log_level"`
	} `yaml:"postgres"`

	Fetcher struct {
		UserAgent string `yaml:"user_agent"`
		Timeout   string `yaml:"timeout"`
	} `yaml:"fetcher"`
}

// LoadFromFile loads config from a YAML file. Environment variables that
// are set still take precedence over the file.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	c, err := parseFile(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if err := c.applyEnv(); err != nil {
		return nil, err
	}
	return c, nil
}

func parseFile(data []byte) (*Config, error) {
	var f fileConfig
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, err
	}
	c := Default()
	orString(&c.DatabaseURL, f.DatabaseURL)
	orString(&c.RedisURL, f.RedisURL)
	orString(&c.ServerPort, f.ServerPort)
	orString(&c.AdminSecret, f.AdminSecret)
	orString(&c.Log.Level, f.Log.Level)
	orString(&c.Log.Format, f.Log.Format)
	orString(&c.Log.File, f.Log.File)
	orString(&c.Postgres.LogLevel, f.Postgres.LogLevel)
	orString(&c.Fetcher.UserAgent, f.Fetcher.UserAgent)
	if f.Postgres.MaxConns != 0 {
		c.Postgres.MaxConns = f.Postgres.MaxConns
	}
	if f.Postgres.MinConns != 0 {
		c.Postgres.MinConns = f.Postgres.MinConns
	}

	for _, d := range []struct {
		dst  *time.Duration
		raw  string
		name string
	}{
		{&c.Postgres.ConnectTimeout, f.Postgres.ConnectTimeout, "postgres.connect_timeout"},
		{&c.Postgres.ReadTimeout, f.Postgres.ReadTimeout, "postgres.read_timeout"},
		{&c.Postgres.WriteTimeout, f.Postgres.WriteTimeout, "postgres.write_timeout"},
		{&c.Postgres.WatermarkLag, f.Postgres.WatermarkLag, "postgres.watermark_lag"},
		{&c.Fetcher.Timeout, f.Fetcher.Timeout, "fetcher.timeout"},
	} {
		if d.raw == "" {
			continue
		}
		parsed, err := time.ParseDuration(d.raw)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", d.name, err)
		}
		*d.dst = parsed
	}
	return c, nil
}

func orString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}
