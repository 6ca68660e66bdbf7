package connection

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/rickgao/priority-fees/internal/metrics"
	"github.com/rickgao/priority-fees/internal/model"
)

// Updater receives pushed fee batches. *priorityfee.SubscriberMap satisfies it.
type Updater interface {
	UpdateFeesMap(resp model.FeeResponse)
}

// FeedOption configures a Feed.
type FeedOption func(*Feed)

// WithClientFactory replaces the WebSocket client constructor.
func WithClientFactory(fn ClientFactory) FeedOption {
	return func(f *Feed) {
		f.newClient = fn
	}
}

// Feed keeps a stream subscription alive and applies every pushed fee
// batch through an Updater.
type Feed struct {
	cfg       FeedConfig
	updater   Updater
	metrics   *metrics.Metrics
	logger    *slog.Logger
	newClient ClientFactory

	mu        sync.RWMutex
	client    Client
	started   bool
	lastApply time.Time

	// Lifecycle
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewFeed creates a Feed. Nothing is dialed until Start.
func NewFeed(cfg FeedConfig, updater Updater, m *metrics.Metrics, logger *slog.Logger, opts ...FeedOption) *Feed {
	if logger == nil {
		logger = slog.Default()
	}
	defaults := DefaultFeedConfig()
	if cfg.ReconnectBaseWait <= 0 {
		cfg.ReconnectBaseWait = defaults.ReconnectBaseWait
	}
	if cfg.ReconnectMaxWait < cfg.ReconnectBaseWait {
		cfg.ReconnectMaxWait = max(defaults.ReconnectMaxWait, cfg.ReconnectBaseWait)
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = defaults.WriteTimeout
	}
	cfg.Markets = slices.Clone(cfg.Markets)

	f := &Feed{
		cfg:       cfg,
		updater:   updater,
		metrics:   m,
		logger:    logger,
		newClient: NewClient,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Start launches the connection loop. Connection failures are retried in
// the background and never returned.
func (f *Feed) Start(ctx context.Context) error {
	f.mu.Lock()
	if f.started {
		f.mu.Unlock()
		return ErrAlreadyStarted
	}
	f.started = true
	f.ctx, f.cancel = context.WithCancel(ctx)
	f.mu.Unlock()

	f.wg.Add(1)
	go f.run()

	f.logger.Info("fee stream started",
		"url", f.cfg.URL,
		"markets", len(f.cfg.Markets),
	)
	return nil
}

// Stop closes the connection and waits for the loop to exit.
func (f *Feed) Stop(ctx context.Context) error {
	f.logger.Info("stopping fee stream")

	f.mu.RLock()
	cancel := f.cancel
	f.mu.RUnlock()
	if cancel != nil {
		cancel()
	}

	done := make(chan struct{})
	go func() {
		f.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		f.logger.Info("fee stream stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// IsConnected reports whether the stream connection is up.
func (f *Feed) IsConnected() bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.client != nil && f.client.IsConnected()
}

// LastApplied returns when a pushed batch was last applied.
func (f *Feed) LastApplied() time.Time {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.lastApply
}

// run connects, reads until the connection drops and reconnects with
// exponential backoff until the feed is stopped.
func (f *Feed) run() {
	defer f.wg.Done()

	wait := f.cfg.ReconnectBaseWait

	for {
		established, err := f.session()
		if f.ctx.Err() != nil {
			return
		}
		if established {
			wait = f.cfg.ReconnectBaseWait
		}

		f.logger.Warn("fee stream disconnected",
			"error", err,
			"retry_in", wait,
		)
		f.metrics.IncStreamReconnect()

		select {
		case <-f.ctx.Done():
			return
		case <-time.After(wait):
		}

		wait *= 2
		if wait > f.cfg.ReconnectMaxWait {
			wait = f.cfg.ReconnectMaxWait
		}
	}
}

// session runs one connection from dial to disconnect. established reports
// whether the subscription was sent.
func (f *Feed) session() (established bool, err error) {
	c := f.newClient(f.cfg.clientConfig(), f.logger)
	if err := c.Connect(f.ctx); err != nil {
		return false, fmt.Errorf("connect: %w", err)
	}
	defer c.Close()

	f.setClient(c)
	defer f.setClient(nil)

	if err := f.subscribe(c); err != nil {
		return false, fmt.Errorf("subscribe: %w", err)
	}

	for {
		select {
		case <-f.ctx.Done():
			return true, nil
		case err := <-c.Errors():
			return true, err
		case msg := <-c.Messages():
			f.handle(msg)
		}
	}
}

func (f *Feed) setClient(c Client) {
	f.mu.Lock()
	f.client = c
	f.mu.Unlock()
}

// subscribe sends the subscribe command for the configured markets.
func (f *Feed) subscribe(c Client) error {
	marketTypes, marketIndexes := model.SplitMarkets(f.cfg.Markets)

	cmd := Command{
		ID:  uuid.NewString(),
		Cmd: "subscribe",
		Params: SubscribeParams{
			Channel:       ChannelPriorityFees,
			MarketTypes:   marketTypes,
			MarketIndexes: marketIndexes,
		},
	}

	data, err := json.Marshal(cmd)
	if err != nil {
		return err
	}

	f.logger.Debug("subscribing to fee stream", "id", cmd.ID, "markets", len(f.cfg.Markets))
	return c.Send(data)
}

// handle routes one message from the stream.
func (f *Feed) handle(msg TimestampedMessage) {
	resp, env, err := decodeMessage(msg.Data)
	if err != nil {
		f.logger.Debug("invalid stream message", "error", err)
		f.metrics.IncStreamMessage(OutcomeInvalid)
		return
	}

	switch env.Type {
	case TypePriorityFees:
		f.updater.UpdateFeesMap(resp)

		f.mu.Lock()
		f.lastApply = msg.ReceivedAt
		f.mu.Unlock()

		f.metrics.IncStreamMessage(OutcomeApplied)
	case TypeSubscribed:
		f.logger.Info("fee stream subscribed", "id", env.ID, "channel", env.Channel)
		f.metrics.IncStreamMessage(OutcomeAck)
	case TypeError:
		f.logger.Warn("fee stream error", "id", env.ID, "message", env.Message)
		f.metrics.IncStreamMessage(OutcomeRejected)
	default:
		f.metrics.IncStreamMessage(OutcomeIgnored)
	}
}

// decodeMessage parses a stream message. A bare JSON array is treated as a
// priority_fees batch.
func decodeMessage(data []byte) (model.FeeResponse, Envelope, error) {
	data = bytes.TrimSpace(data)

	if len(data) > 0 && data[0] == '[' {
		var resp model.FeeResponse
		if err := json.Unmarshal(data, &resp); err != nil {
			return nil, Envelope{}, fmt.Errorf("unmarshal fee batch: %w", err)
		}
		return resp, Envelope{Type: TypePriorityFees, Channel: ChannelPriorityFees}, nil
	}

	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, Envelope{}, fmt.Errorf("unmarshal envelope: %w", err)
	}

	if env.Type != TypePriorityFees {
		return nil, env, nil
	}

	var resp model.FeeResponse
	if len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, &resp); err != nil {
			return nil, Envelope{}, fmt.Errorf("unmarshal fee batch: %w", err)
		}
	}
	return resp, env, nil
}
