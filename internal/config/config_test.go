package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"task-run-history/internal/history"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Server.Port != 8080 {
		t.Errorf("Server.Port = %d, want 8080", cfg.Server.Port)
	}
	if cfg.Correlator.Strict {
		t.Error("Correlator.Strict = true, want false")
	}
	if cfg.Correlator.LaunchIgnoredMarker != history.DefaultLaunchIgnoredMarker {
		t.Errorf("Correlator.LaunchIgnoredMarker = %q", cfg.Correlator.LaunchIgnoredMarker)
	}
	if cfg.Correlator.DefaultMaxRuns != 0 {
		t.Errorf("Correlator.DefaultMaxRuns = %d, want 0 (every run)", cfg.Correlator.DefaultMaxRuns)
	}
	if !cfg.Translator.Memoize {
		t.Error("Translator.Memoize = false, want true")
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("defaults do not validate: %v", err)
	}
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return DefaultConfig()
	}

	tests := []struct {
		name    string
		modify  func(*Config)
		wantErr bool
	}{
		{"valid defaults", func(c *Config) {}, false},
		{"server port 0", func(c *Config) { c.Server.Port = 0 }, true},
		{"server port 99999", func(c *Config) { c.Server.Port = 99999 }, true},
		{"zero body limit", func(c *Config) { c.Server.MaxRequestBody = 0 }, true},
		{"empty marker", func(c *Config) { c.Correlator.LaunchIgnoredMarker = "  " }, true},
		{"empty result field", func(c *Config) { c.Correlator.ResultCodeField = "" }, true},
		{"negative default max runs", func(c *Config) { c.Correlator.DefaultMaxRuns = -1 }, true},
		{"unlimited default max runs", func(c *Config) { c.Correlator.DefaultMaxRuns = 0 }, false},
		{"default above limit", func(c *Config) {
			c.Correlator.DefaultMaxRuns = 200
			c.Correlator.MaxRunsLimit = 100
		}, true},
		{"max runs limit 0", func(c *Config) { c.Correlator.MaxRunsLimit = 0 }, true},
		{"workers 0", func(c *Config) { c.Correlator.Workers = 0 }, true},
		{"relative metrics path", func(c *Config) { c.Metrics.Path = "metrics" }, true},
		{"metrics disabled ignores path", func(c *Config) {
			c.Metrics.Enabled = false
			c.Metrics.Path = ""
		}, false},
		{"TLS enabled without cert", func(c *Config) {
			c.TLS.Enabled = true
			c.TLS.CertFile = ""
			c.TLS.KeyFile = ""
		}, true},
		{"TLS enabled with cert+key", func(c *Config) {
			c.TLS.Enabled = true
			c.TLS.CertFile = "/etc/ssl/cert.pem"
			c.TLS.KeyFile = "/etc/ssl/key.pem"
		}, false},
		{"sslmode disable only warns", func(c *Config) {
			c.Database.DSN = "postgres://localhost/runs?sslmode=disable"
		}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.modify(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestLoad(t *testing.T) {
	yamlContent := `
server:
  host: "127.0.0.1"
  port: 9090
correlator:
  strict: true
  launch_ignored_marker: "Instance already running"
  default_max_runs: 10
event_log:
  path: /var/lib/taskhistory/events
database:
  conn_max_lifetime: 90s
`
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(yamlContent), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Server.Host != "127.0.0.1" {
		t.Errorf("Server.Host = %q, want %q", cfg.Server.Host, "127.0.0.1")
	}
	if cfg.Server.Port != 9090 {
		t.Errorf("Server.Port = %d, want 9090", cfg.Server.Port)
	}
	if cfg.Database.ConnMaxLifetime != 90*time.Second {
		t.Errorf("Database.ConnMaxLifetime = %s, want 90s", cfg.Database.ConnMaxLifetime)
	}
	if cfg.EventLog.Path != "/var/lib/taskhistory/events" {
		t.Errorf("EventLog.Path = %q", cfg.EventLog.Path)
	}

	opts := cfg.CorrelationOptions()
	want := history.Options{
		Strict:              true,
		LaunchIgnoredMarker: "Instance already running",
		ResultCodeField:     history.DefaultResultCodeField,
	}
	if opts != want {
		t.Errorf("CorrelationOptions() = %+v, want %+v", opts, want)
	}
	if cfg.Correlator.DefaultMaxRuns != 10 {
		t.Errorf("Correlator.DefaultMaxRuns = %d, want 10", cfg.Correlator.DefaultMaxRuns)
	}
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"bad yaml", "server: [unclosed"},
		{"fails validation", "correlator:\n  workers: 0\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "config.yaml")
			if err := os.WriteFile(path, []byte(tt.content), 0o600); err != nil {
				t.Fatal(err)
			}
			if _, err := Load(path); err == nil {
				t.Error("expected error, got nil")
			}
		})
	}
}

func TestLoad_FileNotFound(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nonexistent.yaml"))
	if err == nil {
		t.Error("expected error for missing file, got nil")
	}
}

func TestAddress(t *testing.T) {
	cfg := DefaultConfig()
	want := "0.0.0.0:8080"
	if got := cfg.Address(); got != want {
		t.Errorf("Address() = %q, want %q", got, want)
	}

	cfg.Server.Host = "127.0.0.1"
	cfg.Server.Port = 3000
	want = "127.0.0.1:3000"
	if got := cfg.Address(); got != want {
		t.Errorf("Address() = %q, want %q", got, want)
	}
}
