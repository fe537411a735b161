package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"

	"task-run-history/internal/history"
)

// Config holds all application configuration.
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Correlator CorrelatorConfig `yaml:"correlator"`
	Translator TranslatorConfig `yaml:"translator"`
	EventLog   EventLogConfig   `yaml:"event_log"`
	Database   DatabaseConfig   `yaml:"database"`
	Metrics    MetricsConfig    `yaml:"metrics"`
	Security   SecurityConfig   `yaml:"security"`
	TLS        TLSConfig        `yaml:"tls"`
}

type ServerConfig struct {
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	MaxRequestBody  int64         `yaml:"max_request_body_bytes"`
}

// CorrelatorConfig controls how runs are reconstructed.
type CorrelatorConfig struct {
	Strict              bool   `yaml:"strict"` // never absorb events without a correlation id
	LaunchIgnoredMarker string `yaml:"launch_ignored_marker"`
	ResultCodeField     string `yaml:"result_code_field"`
	DefaultMaxRuns      int    `yaml:"default_max_runs"` // applied when a query names no limit; 0 returns every run
	MaxRunsLimit        int    `yaml:"max_runs_limit"`   // upper bound on an explicit max_runs from API callers
	Workers             int    `yaml:"workers"`
}

type TranslatorConfig struct {
	Memoize bool `yaml:"memoize"`
}

// EventLogConfig points at exported event batches. An empty path disables
// source-backed queries; posted batches still work.
type EventLogConfig struct {
	Path string `yaml:"path"`
}

type DatabaseConfig struct {
	DSN             string        `yaml:"dsn"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
	ArchiveBuffer   int           `yaml:"archive_buffer"`
	AutoMigrate     bool          `yaml:"auto_migrate"`
}

type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

type SecurityConfig struct {
	APIKeyHeader         string   `yaml:"api_key_header"`
	AllowedKeys          []string `yaml:"allowed_keys"`
	AllowUnauthenticated bool     `yaml:"allow_unauthenticated"`
	RateLimitRPS         float64  `yaml:"rate_limit_rps"`
	RateLimitBurst       int      `yaml:"rate_limit_burst"`
}

// TLSConfig controls HTTPS/TLS termination.
type TLSConfig struct {
	Enabled  bool   `yaml:"enabled"`
	CertFile string `yaml:"cert_file"`
	KeyFile  string `yaml:"key_file"`
}

// Load reads configuration from a YAML file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(filepath.Clean(path)) // #nosec G304 -- path comes from CLI flag or hardcoded default
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// DefaultConfig returns sensible defaults for all configuration.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8080,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 30 * time.Second,
			MaxRequestBody:  8 << 20, // 8MB of posted events
		},
		Correlator: CorrelatorConfig{
			LaunchIgnoredMarker: history.DefaultLaunchIgnoredMarker,
			ResultCodeField:     history.DefaultResultCodeField,
			DefaultMaxRuns:      0,
			MaxRunsLimit:        1000,
			Workers:             4,
		},
		Translator: TranslatorConfig{
			Memoize: true,
		},
		Database: DatabaseConfig{
			DSN:             "",
			MaxOpenConns:    25,
			MaxIdleConns:    5,
			ConnMaxLifetime: 5 * time.Minute,
			ArchiveBuffer:   10000,
			AutoMigrate:     true,
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Path:    "/metrics",
		},
		Security: SecurityConfig{
			APIKeyHeader:   "X-API-Key",
			RateLimitRPS:   100,
			RateLimitBurst: 200,
		},
		TLS: TLSConfig{
			Enabled: false,
		},
	}
}

// Validate checks that the configuration is valid.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be 1-65535, got %d", c.Server.Port)
	}
	if c.Server.MaxRequestBody < 1 {
		return fmt.Errorf("server.max_request_body_bytes must be >= 1")
	}
	if strings.TrimSpace(c.Correlator.LaunchIgnoredMarker) == "" {
		return fmt.Errorf("correlator.launch_ignored_marker must not be empty")
	}
	if strings.TrimSpace(c.Correlator.ResultCodeField) == "" {
		return fmt.Errorf("correlator.result_code_field must not be empty")
	}
	if c.Correlator.DefaultMaxRuns < 0 {
		return fmt.Errorf("correlator.default_max_runs must be >= 0")
	}
	if c.Correlator.MaxRunsLimit < 1 {
		return fmt.Errorf("correlator.max_runs_limit must be >= 1")
	}
	if c.Correlator.DefaultMaxRuns > c.Correlator.MaxRunsLimit {
		return fmt.Errorf("correlator.default_max_runs (%d) must be <= max_runs_limit (%d)",
			c.Correlator.DefaultMaxRuns, c.Correlator.MaxRunsLimit)
	}
	if c.Correlator.Workers < 1 {
		return fmt.Errorf("correlator.workers must be >= 1")
	}
	if c.Metrics.Enabled && !strings.HasPrefix(c.Metrics.Path, "/") {
		return fmt.Errorf("metrics.path must start with /, got %q", c.Metrics.Path)
	}
	if c.TLS.Enabled {
		if c.TLS.CertFile == "" || c.TLS.KeyFile == "" {
			return fmt.Errorf("tls.cert_file and tls.key_file are required when TLS is enabled")
		}
	}
	if c.Database.DSN != "" && strings.Contains(c.Database.DSN, "sslmode=disable") {
		log.Warn().Msg("database DSN has sslmode=disable, connections to Postgres are unencrypted")
	}
	return nil
}

// Address returns the listen address string.
func (c *Config) Address() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// CorrelationOptions maps the correlator section onto history.Options.
func (c *Config) CorrelationOptions() history.Options {
	return history.Options{
		Strict:              c.Correlator.Strict,
		LaunchIgnoredMarker: c.Correlator.LaunchIgnoredMarker,
		ResultCodeField:     c.Correlator.ResultCodeField,
	}
}
