// Package config provides configuration loading and validation.
package config

import (
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/nubilum/nubilum/jsonv"
)

// Config is the root configuration structure.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Client   ClientConfig   `yaml:"client"`
	Admin    AdminConfig    `yaml:"admin"`
	Database DatabaseConfig `yaml:"database"`
	Logging  LoggingConfig  `yaml:"logging"`
	Metrics  MetricsConfig  `yaml:"metrics"`
}

// ServerConfig configures the push TCP server.
type ServerConfig struct {
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	Strategy        string        `yaml:"strategy"`          // "standard" or "comments"
	ReadBufferBytes int           `yaml:"read_buffer_bytes"` // bytes per socket read
	MaxMessageBytes int           `yaml:"max_message_bytes"` // cap on an incomplete buffered document
	DedupeSize      int           `yaml:"dedupe_size"`       // recent envelope ids remembered per server
	IdleTimeout     time.Duration `yaml:"idle_timeout"`      // 0 disables
	WriteTimeout    time.Duration `yaml:"write_timeout"`
}

// Address returns host:port.
func (s ServerConfig) Address() string {
	return net.JoinHostPort(s.Host, strconv.Itoa(s.Port))
}

// ClientConfig configures the push client used by send and mobile.
type ClientConfig struct {
	Address     string        `yaml:"address"`
	Strategy    string        `yaml:"strategy"`
	DialTimeout time.Duration `yaml:"dial_timeout"`
	Importance  int           `yaml:"importance"` // default importance for mobile messages
}

// AdminConfig configures the admin HTTP listener.
type AdminConfig struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr"`
}

// DatabaseConfig configures message history storage.
type DatabaseConfig struct {
	Driver   string `yaml:"driver"` // "sqlite" or "memory"
	DSN      string `yaml:"dsn"`
	Compress bool   `yaml:"compress"` // zstd-compress stored content
}

// LoggingConfig configures logging.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // "debug", "info", "warn", "error"
	Format string `yaml:"format"` // "json" or "console"
}

// MetricsConfig configures Prometheus metrics.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"` // Expose metrics on the admin listener
	Path    string `yaml:"path"`    // Custom path (default: /metrics)
}

// ParseStrategy returns the parse strategy named by s.
func ParseStrategy(s string) (jsonv.Strategy, error) {
	st, ok := jsonv.ParseStrategy(s)
	if !ok {
		return jsonv.Standard, fmt.Errorf("strategy must be 'standard' or 'comments', got %q", s)
	}
	return st, nil
}

// Load reads configuration from a YAML file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	return parse(data)
}

func parse(data []byte) (*Config, error) {
	// Expand environment variables
	data = []byte(os.ExpandEnv(string(data)))

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	applyEnvOverrides(&cfg)
	setDefaults(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &cfg, nil
}

// LoadFromEnv creates configuration entirely from environment variables.
//
// Environment variables:
//
//	NUBILUM_SERVER_HOST        - Listen host (default: 0.0.0.0)
//	NUBILUM_SERVER_PORT        - Listen port (default: 669)
//	NUBILUM_SERVER_STRATEGY    - Parse strategy: standard or comments
//	NUBILUM_SERVER_MAX_MESSAGE - Max buffered message bytes (default: 1048576)
//	NUBILUM_CLIENT_ADDRESS     - Server address for send/mobile (default: 127.0.0.1:669)
//	NUBILUM_ADMIN_ENABLED      - Enable the admin HTTP listener
//	NUBILUM_ADMIN_ADDR         - Admin listen address (default: 127.0.0.1:8669)
//	NUBILUM_DATABASE_DRIVER    - sqlite or memory (default: sqlite)
//	NUBILUM_DATABASE_DSN       - Database path (default: nubilum.db)
//	NUBILUM_LOG_LEVEL          - Log level: debug, info, warn, error (default: info)
//	NUBILUM_LOG_FORMAT         - Log format: json or console (default: json)
//	NUBILUM_METRICS_ENABLED    - Enable /metrics on the admin listener
func LoadFromEnv() (*Config, error) {
	var cfg Config

	applyEnvOverrides(&cfg)
	setDefaults(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &cfg, nil
}

// LoadWithFallback loads path when it exists and falls back to
// environment variables otherwise.
func LoadWithFallback(path string) (*Config, error) {
	if path != "" {
		if _, err := os.Stat(path); err == nil {
			return Load(path)
		}
	}
	return LoadFromEnv()
}

// applyEnvOverrides applies NUBILUM_* environment variables to the config.
// Environment variables always override file-based configuration.
func applyEnvOverrides(cfg *Config) {
	// Server configuration
	if v := os.Getenv("NUBILUM_SERVER_HOST"); v != "" {
		cfg.Server.Host = v
	}
	if v := os.Getenv("NUBILUM_SERVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("NUBILUM_SERVER_STRATEGY"); v != "" {
		cfg.Server.Strategy = v
	}
	if v := os.Getenv("NUBILUM_SERVER_MAX_MESSAGE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Server.MaxMessageBytes = n
		}
	}
	if v := os.Getenv("NUBILUM_SERVER_IDLE_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Server.IdleTimeout = d
		}
	}

	// Client configuration
	if v := os.Getenv("NUBILUM_CLIENT_ADDRESS"); v != "" {
		cfg.Client.Address = v
	}
	if v := os.Getenv("NUBILUM_CLIENT_STRATEGY"); v != "" {
		cfg.Client.Strategy = v
	}

	// Admin configuration
	if v := os.Getenv("NUBILUM_ADMIN_ENABLED"); v != "" {
		cfg.Admin.Enabled = parseBool(v)
	}
	if v := os.Getenv("NUBILUM_ADMIN_ADDR"); v != "" {
		cfg.Admin.Addr = v
	}

	// Database configuration
	if v := os.Getenv("NUBILUM_DATABASE_DRIVER"); v != "" {
		cfg.Database.Driver = v
	}
	if v := os.Getenv("NUBILUM_DATABASE_DSN"); v != "" {
		cfg.Database.DSN = v
	}
	if v := os.Getenv("NUBILUM_DATABASE_COMPRESS"); v != "" {
		cfg.Database.Compress = parseBool(v)
	}

	// Logging configuration
	if v := os.Getenv("NUBILUM_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("NUBILUM_LOG_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}

	// Metrics configuration
	if v := os.Getenv("NUBILUM_METRICS_ENABLED"); v != "" {
		cfg.Metrics.Enabled = parseBool(v)
	}
	if v := os.Getenv("NUBILUM_METRICS_PATH"); v != "" {
		cfg.Metrics.Path = v
	}
}

// parseBool parses a boolean from common string values.
func parseBool(v string) bool {
	v = strings.ToLower(strings.TrimSpace(v))
	return v == "true" || v == "1" || v == "yes" || v == "on"
}

func setDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "0.0.0.0"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 669
	}
	if cfg.Server.Strategy == "" {
		cfg.Server.Strategy = "standard"
	}
	if cfg.Server.ReadBufferBytes == 0 {
		cfg.Server.ReadBufferBytes = 4096
	}
	if cfg.Server.MaxMessageBytes == 0 {
		cfg.Server.MaxMessageBytes = 1 << 20
	}
	if cfg.Server.DedupeSize == 0 {
		cfg.Server.DedupeSize = 1024
	}
	if cfg.Server.WriteTimeout == 0 {
		cfg.Server.WriteTimeout = 10 * time.Second
	}

	if cfg.Client.Address == "" {
		cfg.Client.Address = "127.0.0.1:669"
	}
	if cfg.Client.Strategy == "" {
		cfg.Client.Strategy = "standard"
	}
	if cfg.Client.DialTimeout == 0 {
		cfg.Client.DialTimeout = 5 * time.Second
	}
	if cfg.Client.Importance == 0 {
		cfg.Client.Importance = 5
	}

	if cfg.Admin.Addr == "" {
		cfg.Admin.Addr = "127.0.0.1:8669"
	}

	if cfg.Database.Driver == "" {
		cfg.Database.Driver = "sqlite"
	}
	if cfg.Database.DSN == "" {
		cfg.Database.DSN = "nubilum.db"
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}

	if cfg.Metrics.Path == "" {
		cfg.Metrics.Path = "/metrics"
	}
}

func validate(cfg *Config) error {
	if cfg.Server.Port < 1 || cfg.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535, got %d", cfg.Server.Port)
	}
	if _, err := ParseStrategy(cfg.Server.Strategy); err != nil {
		return fmt.Errorf("server.%w", err)
	}
	if _, err := ParseStrategy(cfg.Client.Strategy); err != nil {
		return fmt.Errorf("client.%w", err)
	}
	if cfg.Server.ReadBufferBytes < 0 || cfg.Server.MaxMessageBytes < 0 || cfg.Server.DedupeSize < 0 {
		return fmt.Errorf("server buffer sizes must not be negative")
	}
	if cfg.Server.MaxMessageBytes < cfg.Server.ReadBufferBytes {
		return fmt.Errorf("server.max_message_bytes (%d) must be at least server.read_buffer_bytes (%d)",
			cfg.Server.MaxMessageBytes, cfg.Server.ReadBufferBytes)
	}

	validDrivers := map[string]bool{"sqlite": true, "memory": true}
	if !validDrivers[cfg.Database.Driver] {
		return fmt.Errorf("database.driver must be 'sqlite' or 'memory', got %q", cfg.Database.Driver)
	}

	validFormats := map[string]bool{"json": true, "console": true}
	if !validFormats[cfg.Logging.Format] {
		return fmt.Errorf("logging.format must be 'json' or 'console', got %q", cfg.Logging.Format)
	}

	if !strings.HasPrefix(cfg.Metrics.Path, "/") {
		return fmt.Errorf("metrics.path must start with '/', got %q", cfg.Metrics.Path)
	}

	return nil
}
