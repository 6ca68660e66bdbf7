package priorityfee

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/rickgao/priority-fees/internal/metrics"
	"github.com/rickgao/priority-fees/internal/model"
)

// DefaultFrequency is the refresh interval used when Config.Frequency is zero.
const DefaultFrequency = 10 * time.Second

// Fetcher fetches current fee levels for a set of markets.
// marketTypes and marketIndexes are parallel: position i of both names one market.
type Fetcher interface {
	FetchPriorityFees(ctx context.Context, endpoint string, marketTypes []string, marketIndexes []uint16) (model.FeeResponse, error)
}

// FetcherFunc is a function adapter for Fetcher.
type FetcherFunc func(ctx context.Context, endpoint string, marketTypes []string, marketIndexes []uint16) (model.FeeResponse, error)

func (f FetcherFunc) FetchPriorityFees(ctx context.Context, endpoint string, marketTypes []string, marketIndexes []uint16) (model.FeeResponse, error) {
	return f(ctx, endpoint, marketTypes, marketIndexes)
}

// Config holds SubscriberMap configuration.
type Config struct {
	Frequency   time.Duration     // Refresh interval (default: 10s)
	Markets     []model.MarketRef // Initial watch list; empty means nothing to poll
	Endpoint    string            // Fee service base URL
	LoadTimeout time.Duration     // Per-tick load timeout (default: Frequency)
}

// Option configures a SubscriberMap.
type Option func(*SubscriberMap)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *SubscriberMap) {
		s.logger = logger
	}
}

// WithMetrics sets the metrics sink.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *SubscriberMap) {
		s.metrics = m
	}
}

// WithUpdateHook registers fn to receive every response committed to the cache.
// fn runs outside the cache lock but on the load path, so it must not
// block for long; hand slow work to another goroutine.
func WithUpdateHook(fn func(model.FeeResponse)) Option {
	return func(s *SubscriberMap) {
		s.onUpdate = fn
	}
}

type state int

const (
	stateIdle state = iota
	stateStarting
	statePolling
	stateClosed
)

func (s state) String() string {
	switch s {
	case stateIdle:
		return "idle"
	case stateStarting:
		return "starting"
	case statePolling:
		return "polling"
	case stateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// SubscriberMap caches priority fee levels per market and keeps them fresh
// by polling the fee service.
type SubscriberMap struct {
	frequency   time.Duration
	loadTimeout time.Duration
	endpoint    string
	fetcher     Fetcher
	logger      *slog.Logger
	metrics     *metrics.Metrics
	onUpdate    func(model.FeeResponse)

	// subMu serializes Subscribe and Close.
	subMu sync.Mutex
	// loadMu serializes Load; held across the fetch.
	loadMu sync.Mutex

	// mu guards everything below. Never held across a fetch.
	mu      sync.RWMutex
	fees    feesMap
	markets []model.MarketRef
	state   state

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a SubscriberMap with an empty cache. No I/O is performed.
func New(cfg Config, fetcher Fetcher, opts ...Option) (*SubscriberMap, error) {
	if fetcher == nil {
		return nil, ErrNilFetcher
	}
	if cfg.Frequency < 0 {
		return nil, fmt.Errorf("%w, got %v", ErrInvalidFrequency, cfg.Frequency)
	}

	frequency := cfg.Frequency
	if frequency == 0 {
		frequency = DefaultFrequency
	}
	loadTimeout := cfg.LoadTimeout
	if loadTimeout <= 0 {
		loadTimeout = frequency
	}

	s := &SubscriberMap{
		frequency:   frequency,
		loadTimeout: loadTimeout,
		endpoint:    cfg.Endpoint,
		fetcher:     fetcher,
		logger:      slog.Default(),
		fees:        newFeesMap(),
		markets:     slices.Clone(cfg.Markets),
	}

	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}

	s.metrics.SetWatchedMarkets(len(s.markets))

	return s, nil
}

// Subscribe performs one synchronous load and then starts the background
// refresh loop. It is a no-op when the loop is already running. If the
// initial load fails the error is returned and Subscribe may be retried.
//
// ctx bounds the initial load only. The loop keeps the values of ctx but
// not its cancellation, and runs until Close is called.
func (s *SubscriberMap) Subscribe(ctx context.Context) error {
	s.subMu.Lock()
	defer s.subMu.Unlock()

	s.mu.Lock()
	switch s.state {
	case statePolling:
		s.mu.Unlock()
		return nil
	case stateClosed:
		s.mu.Unlock()
		return ErrClosed
	}
	s.state = stateStarting
	s.mu.Unlock()

	if err := s.Load(ctx); err != nil {
		s.setState(stateIdle)
		return fmt.Errorf("initial load: %w", err)
	}

	loopCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))

	s.mu.Lock()
	s.cancel = cancel
	s.state = statePolling
	s.mu.Unlock()

	s.wg.Add(1)
	go s.run(loopCtx)

	s.logger.Info("priority fee subscriber started",
		"frequency", s.frequency,
		"markets", len(s.Markets()),
		"endpoint", s.endpoint,
	)

	return nil
}

// Close stops the refresh loop and waits for it to exit. The cache stays
// readable; Subscribe returns ErrClosed afterwards.
func (s *SubscriberMap) Close(ctx context.Context) error {
	s.subMu.Lock()
	defer s.subMu.Unlock()

	s.mu.Lock()
	if s.state == stateClosed {
		s.mu.Unlock()
		return nil
	}
	s.state = stateClosed
	cancel := s.cancel
	s.cancel = nil
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info("priority fee subscriber stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Subscribed reports whether the refresh loop is running.
func (s *SubscriberMap) Subscribed() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state == statePolling
}

// run is the background refresh loop.
func (s *SubscriberMap) run(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.frequency)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

// tick runs one background load. Errors are logged, never returned.
// A tick is skipped while another load is in flight; the next tick retries.
func (s *SubscriberMap) tick(ctx context.Context) {
	if !s.loadMu.TryLock() {
		s.logger.Debug("load in progress, skipping refresh tick")
		s.metrics.ObserveLoad(metrics.ResultSkipped, 0)
		return
	}
	defer s.loadMu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, s.loadTimeout)
	defer cancel()

	if err := s.load(ctx); err != nil {
		s.logger.Warn("priority fee refresh failed", "error", err)
	}
}

// Load fetches fresh fee levels for the watch list and commits them.
// With an empty watch list it does nothing. On failure the cache and the
// watch list are left untouched.
func (s *SubscriberMap) Load(ctx context.Context) error {
	s.loadMu.Lock()
	defer s.loadMu.Unlock()
	return s.load(ctx)
}

// load does the work of Load. loadMu must be held.
func (s *SubscriberMap) load(ctx context.Context) error {
	s.mu.RLock()
	markets := slices.Clone(s.markets)
	s.mu.RUnlock()

	if len(markets) == 0 {
		s.logger.Debug("no markets to load")
		s.metrics.ObserveLoad(metrics.ResultSkipped, 0)
		return nil
	}
	if s.endpoint == "" {
		return ErrMissingEndpoint
	}

	marketTypes, marketIndexes := model.SplitMarkets(markets)

	start := time.Now()
	resp, err := s.fetcher.FetchPriorityFees(ctx, s.endpoint, marketTypes, marketIndexes)
	if err != nil {
		s.metrics.ObserveLoad(metrics.ResultError, time.Since(start))
		return err
	}
	s.metrics.ObserveLoad(metrics.ResultSuccess, time.Since(start))

	s.mu.Lock()
	s.markets = resp.Markets()
	dropped := s.fees.update(resp)
	s.recordSizesLocked()
	watched := len(s.markets)
	s.mu.Unlock()

	s.afterUpdate(resp, dropped)

	s.logger.Debug("priority fees loaded",
		"requested", len(markets),
		"received", len(resp),
		"watched", watched,
		"duration", time.Since(start),
	)

	return nil
}

// UpdateFeesMap stores every entry of resp whose market type is known and
// silently drops the rest. Applying the same response twice is the same as
// applying it once.
func (s *SubscriberMap) UpdateFeesMap(resp model.FeeResponse) {
	s.mu.Lock()
	dropped := s.fees.update(resp)
	s.recordSizesLocked()
	s.mu.Unlock()

	s.afterUpdate(resp, dropped)
}

// GetPriorityFees returns the cached levels for a market, if any.
func (s *SubscriberMap) GetPriorityFees(marketType string, marketIndex uint16) (model.FeeLevels, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.fees.get(marketType, marketIndex)
}

// Markets returns a copy of the current watch list.
func (s *SubscriberMap) Markets() []model.MarketRef {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.markets)
}

// All returns every cached entry ordered by market type, then index.
func (s *SubscriberMap) All() []model.FeeLevels {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.fees.all()
}

func (s *SubscriberMap) setState(st state) {
	s.mu.Lock()
	s.state = st
	s.mu.Unlock()
}

func (s *SubscriberMap) recordSizesLocked() {
	for t, bucket := range s.fees {
		s.metrics.SetCacheEntries(t, len(bucket))
	}
	s.metrics.SetWatchedMarkets(len(s.markets))
}

func (s *SubscriberMap) afterUpdate(resp model.FeeResponse, dropped int) {
	if dropped > 0 {
		s.logger.Debug("dropped fee entries with unknown market type", "count", dropped)
		s.metrics.AddDropped(dropped)
	}
	if s.onUpdate != nil {
		s.onUpdate(resp)
	}
}
