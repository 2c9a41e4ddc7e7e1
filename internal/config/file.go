package config

import (
	"os"

	"gopkg.in/yaml.v3"
)

type fileConfig struct {
	DatabaseURL       string `yaml:"database_url"`
	RedisURL          string `yaml:"redis_url"`
	ServerPort        string `yaml:"server_port"`
	UserAgent         string `yaml:"user_agent"`
	Timeout           string `yaml:"timeout"`
	JWTSecret         string `yaml:"jwt_secret"`
	TokenTTL          string `yaml:"token_ttl"`
	DataDir           string `yaml:"data_dir"`
	LogLevel          string `yaml:"log_level"`
	LogFormat         string `yaml:"log_format"`
	SentryDSN         string `yaml:"sentry_dsn"`
	Workers           int    `yaml:"workers"`
	SchedulerInterval string `yaml:"scheduler_interval"`
}

// LoadFromFile loads config from a YAML file. database_url is required.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var f fileConfig
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, err
	}
	if f.DatabaseURL == "" {
		return nil, ErrMissingDatabaseURL
	}
	c := defaults()
	c.DatabaseURL = f.DatabaseURL
	c.RedisURL = f.RedisURL
	c.JWTSecret = f.JWTSecret
	c.SentryDSN = f.SentryDSN
	if f.ServerPort != "" {
		c.ServerPort = f.ServerPort
	}
	if f.UserAgent != "" {
		c.UserAgent = f.UserAgent
	}
	if f.DataDir != "" {
		c.DataDir = f.DataDir
	}
	if f.LogLevel != "" {
		c.LogLevel = f.LogLevel
	}
	if f.LogFormat != "" {
		c.LogFormat = f.LogFormat
	}
	if f.Workers > 0 {
		c.Workers = f.Workers
	}
	setDuration(&c.Timeout, f.Timeout)
	setDuration(&c.TokenTTL, f.TokenTTL)
	setDuration(&c.SchedulerInterval, f.SchedulerInterval)
	return c, nil
}
