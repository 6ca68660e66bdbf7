package connection

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/rickgao/priority-fees/internal/model"
)

// Errors
var (
	ErrNotConnected    = errors.New("not connected")
	ErrStaleConnection = errors.New("connection stale (no ping)")
	ErrAlreadyClosed   = errors.New("already closed")
	ErrAlreadyStarted  = errors.New("feed already started")
)

// ChannelPriorityFees is the stream channel carrying fee levels.
const ChannelPriorityFees = "priority_fees"

// Message types sent by the server.
const (
	TypePriorityFees = "priority_fees"
	TypeSubscribed   = "subscribed"
	TypeError        = "error"
)

// Stream message outcomes, as counted in metrics.
const (
	OutcomeApplied  = "applied"
	OutcomeAck      = "ack"
	OutcomeRejected = "rejected"
	OutcomeIgnored  = "ignored"
	OutcomeInvalid  = "invalid"
)

// TimestampedMessage wraps raw message data with receive timestamp.
type TimestampedMessage struct {
	Data       []byte    // Raw message bytes from WebSocket
	ReceivedAt time.Time // Local timestamp when ReadMessage() returned
}

// Command is a command sent to the stream server.
type Command struct {
	ID     string      `json:"id"`
	Cmd    string      `json:"cmd"`
	Params interface{} `json:"params"`
}

// SubscribeParams are parameters for a subscribe command. Empty market
// lists subscribe to every market the server publishes.
type SubscribeParams struct {
	Channel       string   `json:"channel"`
	MarketTypes   []string `json:"marketType,omitempty"`
	MarketIndexes []uint16 `json:"marketIndex,omitempty"`
}

// Envelope is a message from the stream server. Data carries a fee batch
// for priority_fees messages.
type Envelope struct {
	Type    string          `json:"type"`
	ID      string          `json:"id,omitempty"`
	Channel string          `json:"channel,omitempty"`
	Message string          `json:"message,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// ClientConfig configures a WebSocket client.
type ClientConfig struct {
	URL          string        // WebSocket URL (e.g., wss://dlob.drift.trade/ws)
	PingTimeout  time.Duration // Max time without ping before considering connection stale
	WriteTimeout time.Duration // Write deadline for sends
	BufferSize   int           // Message channel buffer size
}

// DefaultClientConfig returns sensible defaults.
func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		PingTimeout:  60 * time.Second,
		WriteTimeout: 5 * time.Second,
		BufferSize:   1000,
	}
}

// FeedConfig configures a Feed.
type FeedConfig struct {
	URL               string            // Stream URL
	Markets           []model.MarketRef // Markets to subscribe to; empty means all
	ReconnectBaseWait time.Duration     // Base wait time for reconnection
	ReconnectMaxWait  time.Duration     // Max wait time for reconnection
	PingTimeout       time.Duration
	WriteTimeout      time.Duration
	BufferSize        int
}

// DefaultFeedConfig returns sensible defaults.
func DefaultFeedConfig() FeedConfig {
	cc := DefaultClientConfig()
	return FeedConfig{
		ReconnectBaseWait: 1 * time.Second,
		ReconnectMaxWait:  60 * time.Second,
		PingTimeout:       cc.PingTimeout,
		WriteTimeout:      cc.WriteTimeout,
		BufferSize:        cc.BufferSize,
	}
}

func (c FeedConfig) clientConfig() ClientConfig {
	return ClientConfig{
		URL:          c.URL,
		PingTimeout:  c.PingTimeout,
		WriteTimeout: c.WriteTimeout,
		BufferSize:   c.BufferSize,
	}
}
