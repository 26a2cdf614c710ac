// Package config provides configuration management for Driftline.
// It supports loading configuration from environment variables, config files, and defaults.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration sections for Driftline.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	AI        AIConfig        `mapstructure:"ai"`
	Events    EventsConfig    `mapstructure:"events"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	MCP       MCPConfig       `mapstructure:"mcp"`
	Bootstrap BootstrapConfig `mapstructure:"bootstrap"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host         string `mapstructure:"host"`
	Port         int    `mapstructure:"port"`
	ReadTimeout  int    `mapstructure:"readTimeout"`  // in seconds
	WriteTimeout int    `mapstructure:"writeTimeout"` // in seconds
}

// DatabaseConfig holds database connection configuration.
// URL selects PostgreSQL when set (postgres:// or postgresql:// DSN);
// otherwise an embedded SQLite database at SQLitePath is used.
type DatabaseConfig struct {
	URL           string `mapstructure:"url"`
	SQLitePath    string `mapstructure:"sqlitePath"`
	MaxConns      int    `mapstructure:"maxConns"`
	BusyTimeoutMs int    `mapstructure:"busyTimeoutMs"`
}

// AIConfig holds the model endpoint configuration for the AI gateway.
// An empty APIKey degrades the gateway to deterministic stubs.
type AIConfig struct {
	APIKey         string `mapstructure:"apiKey"`
	Model          string `mapstructure:"model"`
	BaseURL        string `mapstructure:"baseUrl"`
	RequestTimeout int    `mapstructure:"requestTimeout"` // in seconds
}

// EventsConfig holds event bus configuration.
// An empty NATS URL means the in-memory bus is used.
type EventsConfig struct {
	NATSURL       string `mapstructure:"natsUrl"`
	ClientName    string `mapstructure:"clientName"`
	MaxReconnects int    `mapstructure:"maxReconnects"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	OutputPath string `mapstructure:"outputPath"`
}

// MCPConfig holds the embedded MCP tool server configuration.
type MCPConfig struct {
	Enabled bool `mapstructure:"enabled"`
	Port    int  `mapstructure:"port"`
}

// BootstrapConfig points at an optional YAML seed file applied at startup.
type BootstrapConfig struct {
	Path string `mapstructure:"path"`
}

// ReadTimeoutDuration returns the read timeout as a time.Duration.
func (s *ServerConfig) ReadTimeoutDuration() time.Duration {
	return time.Duration(s.ReadTimeout) * time.Second
}

// WriteTimeoutDuration returns the write timeout as a time.Duration.
func (s *ServerConfig) WriteTimeoutDuration() time.Duration {
	return time.Duration(s.WriteTimeout) * time.Second
}

// RequestTimeoutDuration returns the AI request timeout as a time.Duration.
func (a *AIConfig) RequestTimeoutDuration() time.Duration {
	return time.Duration(a.RequestTimeout) * time.Second
}

// IsPostgres reports whether the configured database is PostgreSQL.
func (d *DatabaseConfig) IsPostgres() bool {
	return strings.HasPrefix(d.URL, "postgres://") || strings.HasPrefix(d.URL, "postgresql://")
}

// detectDefaultLogFormat returns the appropriate log format based on environment.
// Returns "json" if running in Kubernetes or other production environments.
// Returns "text" for terminal/development use (human-readable console format).
func detectDefaultLogFormat() string {
	// Check if running in Kubernetes
	if os.Getenv("KUBERNETES_SERVICE_HOST") != "" {
		return "json"
	}

	// Check for explicit production environment
	if env := os.Getenv("DRIFTLINE_ENV"); env == "production" || env == "prod" {
		return "json"
	}

	// Default to text format for terminal use (more readable than JSON)
	return "text"
}

// setDefaults configures default values for all configuration options.
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 4000)
	v.SetDefault("server.readTimeout", 30)
	v.SetDefault("server.writeTimeout", 30)

	// Database defaults - empty URL means embedded SQLite
	v.SetDefault("database.url", "")
	v.SetDefault("database.sqlitePath", "driftline.db")
	v.SetDefault("database.maxConns", 10)
	v.SetDefault("database.busyTimeoutMs", 5000)

	// AI defaults - empty API key degrades to stub replies
	v.SetDefault("ai.apiKey", "")
	v.SetDefault("ai.model", "gpt-4o-mini")
	v.SetDefault("ai.baseUrl", "")
	v.SetDefault("ai.requestTimeout", 30)

	// Events defaults - empty URL means use in-memory event bus
	v.SetDefault("events.natsUrl", "")
	v.SetDefault("events.clientName", "driftline")
	v.SetDefault("events.maxReconnects", 10)

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", detectDefaultLogFormat())
	v.SetDefault("logging.outputPath", "stdout")

	// MCP defaults
	v.SetDefault("mcp.enabled", false)
	v.SetDefault("mcp.port", 9090)

	// Bootstrap defaults - missing file is skipped silently
	v.SetDefault("bootstrap.path", "bootstrap.yaml")
}

// Load reads configuration from environment variables, config file, and defaults.
// Environment variables use the prefix DRIFTLINE_ with snake_case naming.
// Config file should be named config.yaml and placed in the current directory or /etc/driftline/.
func Load() (*Config, error) {
	return LoadWithPath("")
}

// LoadWithPath reads configuration from the specified path or default locations.
func LoadWithPath(configPath string) (*Config, error) {
	v := viper.New()

	// Set defaults first
	setDefaults(v)

	// Configure environment variables
	v.SetEnvPrefix("DRIFTLINE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Explicit bindings for the conventional deployment env vars
	// (PORT, DATABASE_URL, OPENAI_API_KEY, NATS_URL) and for camelCase
	// config keys that AutomaticEnv cannot derive.
	_ = v.BindEnv("server.port", "PORT", "DRIFTLINE_SERVER_PORT")
	_ = v.BindEnv("database.url", "DATABASE_URL", "DRIFTLINE_DATABASE_URL")
	_ = v.BindEnv("database.sqlitePath", "DRIFTLINE_DATABASE_SQLITE_PATH")
	_ = v.BindEnv("ai.apiKey", "OPENAI_API_KEY", "DRIFTLINE_AI_API_KEY")
	_ = v.BindEnv("ai.model", "OPENAI_MODEL", "DRIFTLINE_AI_MODEL")
	_ = v.BindEnv("ai.baseUrl", "OPENAI_BASE_URL", "DRIFTLINE_AI_BASE_URL")
	_ = v.BindEnv("events.natsUrl", "NATS_URL", "DRIFTLINE_EVENTS_NATS_URL")
	_ = v.BindEnv("mcp.enabled", "DRIFTLINE_MCP_ENABLED")
	_ = v.BindEnv("mcp.port", "DRIFTLINE_MCP_PORT")
	_ = v.BindEnv("bootstrap.path", "DRIFTLINE_BOOTSTRAP_PATH")

	// Configure config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")

	if configPath != "" {
		v.AddConfigPath(configPath)
	}
	v.AddConfigPath(".")
	v.AddConfigPath("/etc/driftline/")

	// Read config file (ignore if not found)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// validate checks that all required configuration fields are set.
// In development mode (default), most fields are optional.
func validate(cfg *Config) error {
	var errs []string

	// Server validation - always required
	if cfg.Server.Port <= 0 || cfg.Server.Port > 65535 {
		errs = append(errs, "server.port must be between 1 and 65535")
	}

	// Database validation - a set URL must be a recognizable Postgres DSN
	if cfg.Database.URL != "" && !cfg.Database.IsPostgres() {
		errs = append(errs, "database.url must start with postgres:// or postgresql://")
	}
	if cfg.Database.URL == "" && cfg.Database.SQLitePath == "" {
		errs = append(errs, "database.sqlitePath is required when database.url is not set")
	}
	if cfg.Database.MaxConns <= 0 {
		errs = append(errs, "database.maxConns must be positive")
	}

	// AI validation - key is optional (stub mode), timeout is not
	if cfg.AI.RequestTimeout <= 0 {
		errs = append(errs, "ai.requestTimeout must be positive")
	}

	// Events validation - optional (uses in-memory event bus if not set)

	// Logging validation
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(cfg.Logging.Level)] {
		errs = append(errs, "logging.level must be one of: debug, info, warn, error")
	}
	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[strings.ToLower(cfg.Logging.Format)] {
		errs = append(errs, "logging.format must be one of: json, text")
	}

	// MCP validation
	if cfg.MCP.Enabled && (cfg.MCP.Port <= 0 || cfg.MCP.Port > 65535) {
		errs = append(errs, "mcp.port must be between 1 and 65535")
	}

	if len(errs) > 0 {
		return fmt.Errorf("%s", strings.Join(errs, "; "))
	}

	return nil
}
