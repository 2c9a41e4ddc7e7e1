package config

import (
	"errors"
	"os"
	"strconv"
	"time"
)

// ErrMissingDatabaseURL is returned when no database URL is configured.
var ErrMissingDatabaseURL = errors.New("DATABASE_URL is required")

// Config holds application configuration.
type Config struct {
	DatabaseURL       string        `yaml:"database_url" env:"DATABASE_URL"`
	RedisURL          string        `yaml:"redis_url" env:"REDIS_URL"`
	ServerPort        string        `yaml:"server_port" env:"SERVER_PORT"`
	UserAgent         string        `yaml:"user_agent" env:"FETCHER_USER_AGENT"`
	Timeout           time.Duration `yaml:"timeout" env:"FETCHER_TIMEOUT"`
	JWTSecret         string        `yaml:"jwt_secret" env:"JWT_SECRET"`
	TokenTTL          time.Duration `yaml:"token_ttl" env:"TOKEN_TTL"`
	DataDir           string        `yaml:"data_dir" env:"DATA_DIR"`
	LogLevel          string        `yaml:"log_level" env:"LOG_LEVEL"`
	LogFormat         string        `yaml:"log_format" env:"LOG_FORMAT"`
	SentryDSN         string        `yaml:"sentry_dsn" env:"SENTRY_DSN"`
	Workers           int           `yaml:"workers" env:"WORKERS"`
	SchedulerInterval time.Duration `yaml:"scheduler_interval" env:"SCHEDULER_INTERVAL"`
}

func defaults() *Config {
	return &Config{
		ServerPort:        "8080",
		UserAgent:         "M3UEditor/1.0",
		Timeout:           30 * time.Second,
		TokenTTL:          30 * 24 * time.Hour,
		DataDir:           "data",
		LogLevel:          "info",
		LogFormat:         "json",
		Workers:           2,
		SchedulerInterval: time.Minute,
	}
}

// Load builds config from environment variables.
// If DATABASE_URL is not set, Load tries to load .env.local and .env from the current directory.
// DATABASE_URL is required; everything else has a default.
func Load() (*Config, error) {
	if os.Getenv("DATABASE_URL") == "" {
		loadEnvFiles()
	}
	c := defaults()
	c.DatabaseURL = os.Getenv("DATABASE_URL")
	c.RedisURL = os.Getenv("REDIS_URL")
	c.JWTSecret = os.Getenv("JWT_SECRET")
	c.SentryDSN = os.Getenv("SENTRY_DSN")
	setString(&c.ServerPort, "SERVER_PORT")
	setString(&c.UserAgent, "FETCHER_USER_AGENT")
	setString(&c.DataDir, "DATA_DIR")
	setString(&c.LogLevel, "LOG_LEVEL")
	setString(&c.LogFormat, "LOG_FORMAT")
	setDuration(&c.Timeout, os.Getenv("FETCHER_TIMEOUT"))
	setDuration(&c.TokenTTL, os.Getenv("TOKEN_TTL"))
	setDuration(&c.SchedulerInterval, os.Getenv("SCHEDULER_INTERVAL"))
	setInt(&c.Workers, os.Getenv("WORKERS"))
	if c.DatabaseURL == "" {
		return nil, ErrMissingDatabaseURL
	}
	return c, nil
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setDuration(dst *time.Duration, s string) {
	if s == "" {
		return
	}
	if d, err := time.ParseDuration(s); err == nil && d > 0 {
		*dst = d
	}
}

func setInt(dst *int, s string) {
	if s == "" {
		return
	}
	if n, err := strconv.Atoi(s); err == nil && n > 0 {
		*dst = n
	}
}
