package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/ratelimit"
)

// Client provides access to the priority fee REST API.
type Client struct {
	httpClient *http.Client
	logger     *slog.Logger

	maxRetries   int
	retryBackoff time.Duration

	limiter ratelimit.Limiter

	breakerCfg BreakerConfig
	breaker    *gobreaker.CircuitBreaker
}

// BreakerConfig configures the circuit breaker guarding fee fetches.
// MaxFailures of zero disables the breaker.
type BreakerConfig struct {
	MaxFailures uint32        // Consecutive failures before opening
	OpenTimeout time.Duration // Time spent open before a half-open probe
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// NewClient creates a new REST API client.
func NewClient(opts ...ClientOption) *Client {
	c := &Client{
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		logger:       slog.Default(),
		maxRetries:   3,
		retryBackoff: time.Second,
		limiter:      ratelimit.NewUnlimited(),
		breakerCfg: BreakerConfig{
			MaxFailures: 5,
			OpenTimeout: 30 * time.Second,
		},
	}

	for _, opt := range opts {
		opt(c)
	}

	if c.breakerCfg.MaxFailures > 0 {
		c.breaker = c.newBreaker()
	}

	return c
}

// WithTimeout sets the HTTP client timeout.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		c.httpClient.Timeout = d
	}
}

// WithRetries sets the retry configuration.
func WithRetries(max int, backoff time.Duration) ClientOption {
	return func(c *Client) {
		c.maxRetries = max
		c.retryBackoff = backoff
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) ClientOption {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithRateLimit caps outbound requests per second. Zero or less means unlimited.
func WithRateLimit(perSecond int) ClientOption {
	return func(c *Client) {
		if perSecond <= 0 {
			c.limiter = ratelimit.NewUnlimited()
			return
		}
		c.limiter = ratelimit.New(perSecond)
	}
}

// WithBreaker sets the circuit breaker configuration.
func WithBreaker(cfg BreakerConfig) ClientOption {
	return func(c *Client) {
		c.breakerCfg = cfg
	}
}

func (c *Client) newBreaker() *gobreaker.CircuitBreaker {
	maxFailures := c.breakerCfg.MaxFailures
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    "priority-fee-service",
		Timeout: c.breakerCfg.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= maxFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			switch {
			case to == gobreaker.StateOpen:
				c.logger.Warn("fee service seems down, stop allowing requests", "breaker", name)
			case from == gobreaker.StateOpen && to == gobreaker.StateHalfOpen:
				c.logger.Info("checking fee service status", "breaker", name)
			case from == gobreaker.StateHalfOpen && to == gobreaker.StateClosed:
				c.logger.Info("fee service seems ok, allowing requests", "breaker", name)
			}
		},
	})
}
