// Package config provides configuration types, defaults, and persistence for authprx.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/zjrosen/authprx/internal/credentials"
	"github.com/zjrosen/authprx/internal/log"
	"github.com/zjrosen/authprx/internal/paths"
	"github.com/zjrosen/authprx/internal/tracing"
)

// DefaultStoragePath is the registry database, relative to the working directory.
var DefaultStoragePath = paths.ResolveStoragePath("")

// Config holds all application configuration.
// Port is kept as text so an unparsable value can fall back to the default
// port with a warning instead of failing the load.
type Config struct {
	Host     string          `mapstructure:"host"`
	Port     string          `mapstructure:"port"`
	User     string          `mapstructure:"user"`
	Password string          `mapstructure:"password"`
	Debug    bool            `mapstructure:"debug"`
	LogFile  string          `mapstructure:"log_file"`
	LogLevel string          `mapstructure:"log_level"`
	Storage  StorageConfig   `mapstructure:"storage"`
	Cache    CacheConfig     `mapstructure:"cache"`
	Tracing  TracingConfig   `mapstructure:"tracing"`
	Flags    map[string]bool `mapstructure:"flags"`
}

// StorageConfig locates the registry database.
type StorageConfig struct {
	// Path is the database file. Default: auth_proxy/registry.db
	Path string `mapstructure:"path"`
}

// CacheConfig tunes the record cache used when the record-cache flag is on.
type CacheConfig struct {
	TTL             time.Duration `mapstructure:"ttl"`
	CleanupInterval time.Duration `mapstructure:"cleanup_interval"`
}

// TracingConfig holds tracing configuration.
type TracingConfig struct {
	Enabled bool `mapstructure:"enabled"`

	// Exporter is one of "none", "file", "stdout", "otlp". Default: "file"
	Exporter string `mapstructure:"exporter"`

	// FilePath is the output for the "file" exporter.
	// Default: ~/.config/authprx/traces/traces.jsonl
	FilePath string `mapstructure:"file_path"`

	OTLPEndpoint string `mapstructure:"otlp_endpoint"`

	// SampleRate is the fraction of traces kept, 0.0 to 1.0.
	SampleRate float64 `mapstructure:"sample_rate"`
}

// Provider converts t into a tracing.Config.
func (t TracingConfig) Provider() tracing.Config {
	return tracing.Config{
		Enabled:      t.Enabled,
		Exporter:     t.Exporter,
		FilePath:     t.FilePath,
		OTLPEndpoint: t.OTLPEndpoint,
		SampleRate:   t.SampleRate,
		ServiceName:  tracing.DefaultServiceName,
	}
}

// Operator returns the operator settings carried by c.
func (c Config) Operator() credentials.Settings {
	return credentials.Settings{
		Host:     c.Host,
		Port:     c.Port,
		User:     c.User,
		Password: c.Password,
	}
}

// StoragePath returns the database file for the configured storage path.
// A directory resolves to registry.db inside it.
func (c Config) StoragePath() string {
	return paths.ResolveStoragePath(c.Storage.Path)
}

// DefaultTracesFilePath returns ~/.config/authprx/traces/traces.jsonl, or
// an empty string when the home directory is unavailable.
func DefaultTracesFilePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", "authprx", "traces", "traces.jsonl")
}

// Defaults returns the default configuration. User and password have no
// defaults.
func Defaults() Config {
	return Config{
		Host:     "0.0.0.0",
		LogFile:  "debug.log",
		LogLevel: "debug",
		Storage: StorageConfig{
			Path: DefaultStoragePath,
		},
		Cache: CacheConfig{
			TTL:             10 * time.Minute,
			CleanupInterval: 30 * time.Minute,
		},
		Tracing: TracingConfig{
			Enabled:      false,
			Exporter:     tracing.ExporterFile,
			FilePath:     DefaultTracesFilePath(),
			OTLPEndpoint: tracing.DefaultOTLPEndpoint,
			SampleRate:   1.0,
		},
		Flags: map[string]bool{},
	}
}

// Validate checks c for values that cannot be used.
func Validate(c Config) error {
	if c.Cache.TTL < 0 {
		return fmt.Errorf("cache.ttl must not be negative, got %s", c.Cache.TTL)
	}
	if c.Cache.CleanupInterval < 0 {
		return fmt.Errorf("cache.cleanup_interval must not be negative, got %s", c.Cache.CleanupInterval)
	}
	return ValidateTracing(c.Tracing)
}

// ValidateTracing checks tracing configuration for errors.
// Empty values use defaults.
func ValidateTracing(t TracingConfig) error {
	if t.SampleRate < 0.0 || t.SampleRate > 1.0 {
		return fmt.Errorf("tracing.sample_rate must be between 0.0 and 1.0, got %v", t.SampleRate)
	}

	switch t.Exporter {
	case "", tracing.ExporterNone, tracing.ExporterFile, tracing.ExporterStdout, tracing.ExporterOTLP:
	default:
		return fmt.Errorf("tracing.exporter must be \"none\", \"file\", \"stdout\", or \"otlp\", got %q", t.Exporter)
	}

	if t.Enabled && t.Exporter == tracing.ExporterFile && t.FilePath == "" {
		return fmt.Errorf("tracing.file_path is required when exporter is \"file\"")
	}
	return nil
}

// DefaultConfigTemplate returns the commented config written on first run.
func DefaultConfigTemplate() string {
	return `# authprx configuration
#
# Every key can also be set through the environment with the AUTHPRX_
# prefix (AUTHPRX_PORT, AUTHPRX_USER, AUTHPRX_PASSWORD, AUTHPRX_STORAGE_PATH)
# and command-line flags override both.

# Listen address
host: 0.0.0.0
# port: 80

# Superuser credentials (required; prefer the environment for the password)
# user: admin
# password: change-me

# Write logs at log_level and above to log_file. Without debug only
# warnings and errors are printed, to stderr.
debug: false
log_file: debug.log
log_level: debug          # debug, info, warn, error

# Registry database
storage:
  path: auth_proxy/registry.db

# Record cache, used when the record-cache flag is on
cache:
  ttl: 10m
  cleanup_interval: 30m

# OpenTelemetry tracing
tracing:
  enabled: false
  exporter: file          # none, file, stdout, otlp
  # file_path: ~/.config/authprx/traces/traces.jsonl
  otlp_endpoint: localhost:4317
  sample_rate: 1.0

# Feature flags
flags:
  record-cache: true
  registry-tracing: true
`
}

// WriteDefaultConfig creates configPath with the default template.
// Creates the parent directory if it doesn't exist.
func WriteDefaultConfig(configPath string) error {
	log.Debug(log.CatConfig, "Writing default config", "path", configPath)

	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		log.ErrorErr(log.CatConfig, "Failed to create config directory", err, "dir", dir)
		return fmt.Errorf("creating config directory: %w", err)
	}

	if err := os.WriteFile(configPath, []byte(DefaultConfigTemplate()), 0o600); err != nil {
		log.ErrorErr(log.CatConfig, "Failed to write config file", err, "path", configPath)
		return fmt.Errorf("writing config file: %w", err)
	}

	log.Info(log.CatConfig, "Created default config", "path", configPath)
	return nil
}
