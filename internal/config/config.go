// Package config loads virgil settings from the environment.
package config

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/caarlos0/env/v11"
)

// Load policies for corrupt stored collections.
const (
	LoadPolicySurface = "surface"
	LoadPolicyAbsent  = "absent"
)

// StoreConfig selects and configures the key-value backend.
type StoreConfig struct {
	Driver           string   `env:"DRIVER" envDefault:"fs"`
	FSRoot           string   `env:"FS_ROOT" envDefault:"./virgildata"`
	MemoryQuotaBytes int64    `env:"MEMORY_QUOTA_BYTES" envDefault:"0"`
	SQLitePath       string   `env:"SQLITE_PATH" envDefault:"virgil.db"`
	PostgresDSN      string   `env:"POSTGRES_DSN"`
	S3               S3Config `envPrefix:"S3_"`
}

// S3Config configures the S3-compatible backend.
type S3Config struct {
	Bucket          string `env:"BUCKET"`
	Region          string `env:"REGION" envDefault:"us-east-1"`
	Prefix          string `env:"PREFIX"`
	Endpoint        string `env:"ENDPOINT"`
	PathStyle       bool   `env:"PATH_STYLE" envDefault:"false"`
	AccessKeyID     string `env:"ACCESS_KEY_ID"`
	SecretAccessKey string `env:"SECRET_ACCESS_KEY"`
	SessionToken    string `env:"SESSION_TOKEN"`
}

// Config is the full process configuration.
type Config struct {
	Store      StoreConfig `envPrefix:"STORE_"`
	LoadPolicy string      `env:"LOAD_POLICY" envDefault:"surface"`
	LogLevel   string      `env:"LOG_LEVEL" envDefault:"info"`
}

// ParseEnv loads configuration from environment variables into target.
func ParseEnv(target any) error {
	if err := env.Parse(target); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

// Load reads VIRGIL_* variables and validates the result.
func Load() (Config, error) {
	var cfg Config
	if err := env.ParseWithOptions(&cfg, env.Options{Prefix: "VIRGIL_"}); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks enumerated settings.
func (c Config) Validate() error {
	switch c.LoadPolicy {
	case LoadPolicySurface, LoadPolicyAbsent:
	default:
		return fmt.Errorf("invalid load policy %q", c.LoadPolicy)
	}
	if _, err := ParseLogLevel(c.LogLevel); err != nil {
		return err
	}
	if c.Store.MemoryQuotaBytes < 0 {
		return fmt.Errorf("memory quota must not be negative")
	}
	return nil
}

// ParseLogLevel maps debug|info|warn|error to a slog level.
func ParseLogLevel(level string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return slog.LevelInfo, fmt.Errorf("invalid log level %q", level)
}
