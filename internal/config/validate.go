package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/rickgao/priority-fees/internal/model"
)

// Validate checks that all required fields are set and values are valid.
func (c *Config) Validate() error {
	if c.Service.Endpoint == "" {
		return errors.New("service.endpoint is required")
	}
	if u, err := url.Parse(c.Service.Endpoint); err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("service.endpoint must be an absolute URL, got %q", c.Service.Endpoint)
	}
	if c.Service.MaxRetries < 0 {
		return errors.New("service.max_retries must be >= 0")
	}
	if c.Service.RateLimit < 0 {
		return errors.New("service.rate_limit must be >= 0")
	}

	if c.Subscriber.Frequency <= 0 {
		return errors.New("subscriber.frequency must be positive")
	}
	if c.Subscriber.LoadTimeout <= 0 {
		return errors.New("subscriber.load_timeout must be positive")
	}
	for i, m := range c.Subscriber.Markets {
		if !model.IsKnownMarketType(m.MarketType) {
			return fmt.Errorf("subscriber.markets[%d].market_type %q is not one of %v", i, m.MarketType, model.KnownMarketTypes())
		}
	}

	if c.Stream.Enabled {
		if c.Stream.URL == "" {
			return errors.New("stream.url is required when stream is enabled")
		}
		if c.Stream.BufferSize < 1 {
			return errors.New("stream.buffer_size must be >= 1")
		}
		if c.Stream.ReconnectBaseDelay > c.Stream.ReconnectMaxDelay {
			return fmt.Errorf("stream.reconnect_base_delay (%v) cannot exceed reconnect_max_delay (%v)",
				c.Stream.ReconnectBaseDelay, c.Stream.ReconnectMaxDelay)
		}
	}

	if c.Database.Enabled {
		if err := c.Database.validate("database"); err != nil {
			return err
		}
		if c.Recorder.BatchSize < 1 {
			return errors.New("recorder.batch_size must be >= 1")
		}
		if c.Recorder.FlushInterval <= 0 {
			return errors.New("recorder.flush_interval must be positive")
		}
	}

	if c.Metrics.Port < 1 || c.Metrics.Port > 65535 {
		return fmt.Errorf("metrics.port must be between 1 and 65535, got %d", c.Metrics.Port)
	}
	if !strings.HasPrefix(c.Metrics.Path, "/") || c.Metrics.Path == "/" {
		return fmt.Errorf("metrics.path must start with / and name a route, got %q", c.Metrics.Path)
	}

	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log.level must be one of debug, info, warn, error, got %q", c.Log.Level)
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		return fmt.Errorf("log.format must be text or json, got %q", c.Log.Format)
	}

	return nil
}

func (db *DatabaseConfig) validate(prefix string) error {
	if db.Host == "" {
		return fmt.Errorf("%s.host is required", prefix)
	}
	if db.Name == "" {
		return fmt.Errorf("%s.name is required", prefix)
	}
	if db.User == "" {
		return fmt.Errorf("%s.user is required", prefix)
	}
	if db.Password == "" {
		return fmt.Errorf("%s.password is required", prefix)
	}
	if db.MaxConns < 1 {
		return fmt.Errorf("%s.max_conns must be >= 1", prefix)
	}
	if db.MinConns < 0 {
		return fmt.Errorf("%s.min_conns must be >= 0", prefix)
	}
	if db.MinConns > db.MaxConns {
		return fmt.Errorf("%s.min_conns (%d) cannot exceed max_conns (%d)", prefix, db.MinConns, db.MaxConns)
	}
	return nil
}
