// Package config loads the market layer configuration from YAML with
// sensible defaults for local development.
package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config is the top-level application configuration.
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Logging    LoggingConfig    `yaml:"logging"`
	Store      StoreConfig      `yaml:"store"`
	Redis      RedisConfig      `yaml:"redis"`
	Postgres   PostgresConfig   `yaml:"postgres"`
	Engagement EngagementConfig `yaml:"engagement"`
	Scheduler  SchedulerConfig  `yaml:"scheduler"`
}

type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
	// AuditLog is an optional JSONL file receiving mutating API requests.
	AuditLog string `yaml:"audit_log"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// StoreConfig selects the primary KV backend.
type StoreConfig struct {
	// Backend is "memory" or "badger".
	Backend    string `yaml:"backend"`
	BadgerPath string `yaml:"badger_path"`
}

// RedisConfig enables the Redis-backed index store when Addr is set.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// PostgresConfig enables the Postgres market-history sink when DSN is set.
type PostgresConfig struct {
	DSN string `yaml:"dsn"`
}

// EngagementConfig points at the external engagement source.
type EngagementConfig struct {
	Endpoint          string  `yaml:"endpoint"`
	APIKey            string  `yaml:"api_key"`
	RequestsPerSecond float64 `yaml:"requests_per_second"`
}

// SchedulerConfig tunes the revaluation loop.
type SchedulerConfig struct {
	InitialDelaySeconds int64  `yaml:"initial_delay_seconds"`
	TickIntervalSeconds int64  `yaml:"tick_interval_seconds"`
	SweepSpec           string `yaml:"sweep_spec"`
	SweepGraceSeconds   int64  `yaml:"sweep_grace_seconds"`
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	return &Config{
		Server:  ServerConfig{Host: "0.0.0.0", Port: 8080},
		Logging: LoggingConfig{Level: "info", Format: "text", Output: "stdout"},
		Store:   StoreConfig{Backend: "memory", BadgerPath: "data/market"},
		Engagement: EngagementConfig{
			RequestsPerSecond: 10,
		},
		Scheduler: SchedulerConfig{
			InitialDelaySeconds: 3600,
			TickIntervalSeconds: 3600,
			SweepSpec:           "@every 5m",
			SweepGraceSeconds:   60,
		},
	}
}

// Load reads the configuration file at path, layering it over the defaults.
// A missing file is not an error; environment variables MARKET_HOST and
// MARKET_PORT override the listen address.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case os.IsNotExist(err):
			// fall through to defaults
		case err != nil:
			return nil, fmt.Errorf("read config %s: %w", path, err)
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parse config %s: %w", path, err)
			}
		}
	}

	if host := strings.TrimSpace(os.Getenv("MARKET_HOST")); host != "" {
		cfg.Server.Host = host
	}
	if port := strings.TrimSpace(os.Getenv("MARKET_PORT")); port != "" {
		if _, err := fmt.Sscanf(port, "%d", &cfg.Server.Port); err != nil {
			return nil, fmt.Errorf("MARKET_PORT %q: %w", port, err)
		}
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch strings.ToLower(strings.TrimSpace(c.Store.Backend)) {
	case "", "memory", "badger":
	default:
		return fmt.Errorf("store.backend %q is not supported", c.Store.Backend)
	}
	if c.Store.Backend == "badger" && strings.TrimSpace(c.Store.BadgerPath) == "" {
		return fmt.Errorf("store.badger_path is required for the badger backend")
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port %d is out of range", c.Server.Port)
	}
	if c.Scheduler.TickIntervalSeconds <= 0 {
		return fmt.Errorf("scheduler.tick_interval_seconds must be positive")
	}
	return nil
}

// Addr returns the listen address.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}
