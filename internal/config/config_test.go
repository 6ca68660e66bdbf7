package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rickgao/priority-fees/internal/model"
)

func TestLoad(t *testing.T) {
	yaml := `
service:
  endpoint: https://fees.example.com
  timeout: 5s
  rate_limit: 10
subscriber:
  frequency: 2s
  markets:
    - market_type: perp
      market_index: 0
    - market_type: spot
      market_index: 1
metrics:
  port: 9100
`
	path := writeTempFile(t, yaml)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Service.Endpoint != "https://fees.example.com" {
		t.Errorf("Service.Endpoint = %q, want %q", cfg.Service.Endpoint, "https://fees.example.com")
	}
	if cfg.Service.Timeout != 5*time.Second {
		t.Errorf("Service.Timeout = %v, want %v", cfg.Service.Timeout, 5*time.Second)
	}
	if cfg.Service.RateLimit != 10 {
		t.Errorf("Service.RateLimit = %d, want 10", cfg.Service.RateLimit)
	}
	if cfg.Subscriber.Frequency != 2*time.Second {
		t.Errorf("Subscriber.Frequency = %v, want %v", cfg.Subscriber.Frequency, 2*time.Second)
	}

	want := []model.MarketRef{
		{MarketType: "perp", MarketIndex: 0},
		{MarketType: "spot", MarketIndex: 1},
	}
	if len(cfg.Subscriber.Markets) != len(want) {
		t.Fatalf("Subscriber.Markets = %v, want %v", cfg.Subscriber.Markets, want)
	}
	for i := range want {
		if cfg.Subscriber.Markets[i] != want[i] {
			t.Errorf("Subscriber.Markets[%d] = %v, want %v", i, cfg.Subscriber.Markets[i], want[i])
		}
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestParse_InvalidYAML(t *testing.T) {
	_, err := Parse([]byte("service: [unclosed"))
	if err == nil {
		t.Fatal("expected parse error")
	}
}

func TestLoadWithEnvSubstitution(t *testing.T) {
	t.Setenv("TEST_DB_PASSWORD", "secret123")
	t.Setenv("TEST_FEE_ENDPOINT", "https://fees.internal")

	yaml := `
service:
  endpoint: ${TEST_FEE_ENDPOINT}
database:
  enabled: true
  host: localhost
  name: fees
  user: fees
  password: ${TEST_DB_PASSWORD}
`
	path := writeTempFile(t, yaml)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Database.Password != "secret123" {
		t.Errorf("Database.Password = %q, want %q", cfg.Database.Password, "secret123")
	}
	if cfg.Service.Endpoint != "https://fees.internal" {
		t.Errorf("Service.Endpoint = %q, want %q", cfg.Service.Endpoint, "https://fees.internal")
	}
}

func TestLoadWithDefaults(t *testing.T) {
	path := writeTempFile(t, "subscriber:\n  markets: []\n")

	cfg, err := LoadWithDefaults(path)
	if err != nil {
		t.Fatalf("LoadWithDefaults failed: %v", err)
	}

	if cfg.Service.Endpoint != DefaultEndpoint {
		t.Errorf("Service.Endpoint = %q, want default %q", cfg.Service.Endpoint, DefaultEndpoint)
	}
	if cfg.Service.Timeout != DefaultServiceTimeout {
		t.Errorf("Service.Timeout = %v, want default %v", cfg.Service.Timeout, DefaultServiceTimeout)
	}
	if cfg.Subscriber.Frequency != DefaultFrequency {
		t.Errorf("Subscriber.Frequency = %v, want default %v", cfg.Subscriber.Frequency, DefaultFrequency)
	}
	if cfg.Subscriber.LoadTimeout != DefaultFrequency {
		t.Errorf("Subscriber.LoadTimeout = %v, want frequency %v", cfg.Subscriber.LoadTimeout, DefaultFrequency)
	}
	if cfg.Database.Port != DefaultDBPort {
		t.Errorf("Database.Port = %d, want default %d", cfg.Database.Port, DefaultDBPort)
	}
	if cfg.Recorder.BatchSize != DefaultBatchSize {
		t.Errorf("Recorder.BatchSize = %d, want default %d", cfg.Recorder.BatchSize, DefaultBatchSize)
	}
	if cfg.Metrics.Port != DefaultMetricsPort {
		t.Errorf("Metrics.Port = %d, want default %d", cfg.Metrics.Port, DefaultMetricsPort)
	}
	if cfg.Log.Level != DefaultLogLevel {
		t.Errorf("Log.Level = %q, want default %q", cfg.Log.Level, DefaultLogLevel)
	}

	if err := cfg.Validate(); err != nil {
		t.Errorf("defaults should validate, got %v", err)
	}
}

func TestLoadAndValidate(t *testing.T) {
	path := writeTempFile(t, "subscriber:\n  markets:\n    - market_type: lending\n      market_index: 0\n")

	_, err := LoadAndValidate(path)
	if err == nil {
		t.Fatal("expected validation error")
	}
	want := `validate config: subscriber.markets[0].market_type "lending" is not one of [perp spot]`
	if err.Error() != want {
		t.Errorf("error = %q, want %q", err.Error(), want)
	}
}

func TestValidate(t *testing.T) {
	valid := func() Config {
		var c Config
		c.applyDefaults()
		return c
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:    "valid config",
			mutate:  func(c *Config) {},
			wantErr: "",
		},
		{
			name:    "missing endpoint",
			mutate:  func(c *Config) { c.Service.Endpoint = "" },
			wantErr: "service.endpoint is required",
		},
		{
			name:    "relative endpoint",
			mutate:  func(c *Config) { c.Service.Endpoint = "fees.example.com" },
			wantErr: `service.endpoint must be an absolute URL, got "fees.example.com"`,
		},
		{
			name:    "negative rate limit",
			mutate:  func(c *Config) { c.Service.RateLimit = -1 },
			wantErr: "service.rate_limit must be >= 0",
		},
		{
			name:    "negative frequency",
			mutate:  func(c *Config) { c.Subscriber.Frequency = -time.Second },
			wantErr: "subscriber.frequency must be positive",
		},
		{
			name: "metrics path without slash",
			mutate: func(c *Config) {
				c.Metrics.Path = "metrics"
			},
			wantErr: `metrics.path must start with / and name a route, got "metrics"`,
		},
		{
			name: "stream enabled without url",
			mutate: func(c *Config) {
				c.Stream.Enabled = true
			},
			wantErr: "stream.url is required when stream is enabled",
		},
		{
			name: "missing database password",
			mutate: func(c *Config) {
				c.Database = DatabaseConfig{Enabled: true, Host: "localhost", Name: "db", User: "user", MaxConns: 4}
			},
			wantErr: "database.password is required",
		},
		{
			name: "min_conns exceeds max_conns",
			mutate: func(c *Config) {
				c.Database = DatabaseConfig{Enabled: true, Host: "localhost", Name: "db", User: "user", Password: "pass", MaxConns: 5, MinConns: 10}
			},
			wantErr: "database.min_conns (10) cannot exceed max_conns (5)",
		},
		{
			name: "database disabled skips checks",
			mutate: func(c *Config) {
				c.Database = DatabaseConfig{Enabled: false}
			},
			wantErr: "",
		},
		{
			name:    "bad metrics port",
			mutate:  func(c *Config) { c.Metrics.Port = 70000 },
			wantErr: "metrics.port must be between 1 and 65535, got 70000",
		},
		{
			name:    "bad log level",
			mutate:  func(c *Config) { c.Log.Level = "trace" },
			wantErr: `log.level must be one of debug, info, warn, error, got "trace"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() unexpected error: %v", err)
				}
			} else {
				if err == nil {
					t.Errorf("Validate() expected error containing %q, got nil", tt.wantErr)
				} else if err.Error() != tt.wantErr {
					t.Errorf("Validate() error = %q, want %q", err.Error(), tt.wantErr)
				}
			}
		})
	}
}

func writeTempFile(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write temp file: %v", err)
	}
	return path
}
