package config

import (
	"time"

	"github.com/rickgao/priority-fees/internal/model"
)

// Config is the root configuration for a subscriber instance.
type Config struct {
	Service    ServiceConfig    `yaml:"service"`
	Subscriber SubscriberConfig `yaml:"subscriber"`
	Stream     StreamConfig     `yaml:"stream"`
	Database   DatabaseConfig   `yaml:"database"`
	Recorder   RecorderConfig   `yaml:"recorder"`
	Metrics    MetricsConfig    `yaml:"metrics"`
	Log        LogConfig        `yaml:"log"`
}

// ServiceConfig holds priority fee service settings.
type ServiceConfig struct {
	Endpoint     string        `yaml:"endpoint"`
	Timeout      time.Duration `yaml:"timeout"`
	MaxRetries   int           `yaml:"max_retries"`
	RetryBackoff time.Duration `yaml:"retry_backoff"`
	RateLimit    int           `yaml:"rate_limit"` // Requests per second, 0 = unlimited
	Breaker      BreakerConfig `yaml:"breaker"`
}

// BreakerConfig holds circuit breaker settings for fee fetches.
type BreakerConfig struct {
	MaxFailures uint32        `yaml:"max_failures"`
	OpenTimeout time.Duration `yaml:"open_timeout"`
}

// SubscriberConfig holds refresh loop settings.
type SubscriberConfig struct {
	Frequency   time.Duration     `yaml:"frequency"`
	LoadTimeout time.Duration     `yaml:"load_timeout"`
	Markets     []model.MarketRef `yaml:"markets"`
}

// StreamConfig holds push feed settings. The feed is optional.
type StreamConfig struct {
	Enabled            bool          `yaml:"enabled"`
	URL                string        `yaml:"url"`
	ReconnectBaseDelay time.Duration `yaml:"reconnect_base_delay"`
	ReconnectMaxDelay  time.Duration `yaml:"reconnect_max_delay"`
	PingTimeout        time.Duration `yaml:"ping_timeout"`
	WriteTimeout       time.Duration `yaml:"write_timeout"`
	BufferSize         int           `yaml:"buffer_size"`
}

// DatabaseConfig holds the PostgreSQL connection used by the recorder.
type DatabaseConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Name     string `yaml:"name"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	SSLMode  string `yaml:"ssl_mode"`
	MaxConns int    `yaml:"max_conns"`
	MinConns int    `yaml:"min_conns"`
}

// RecorderConfig holds snapshot recorder batch settings.
type RecorderConfig struct {
	BatchSize     int           `yaml:"batch_size"`
	FlushInterval time.Duration `yaml:"flush_interval"`
}

// MetricsConfig holds HTTP server settings for health and Prometheus metrics.
type MetricsConfig struct {
	Port int    `yaml:"port"`
	Path string `yaml:"path"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // text or json
}
