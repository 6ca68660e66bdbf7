package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "priority_fees"

// Load results.
const (
	ResultSuccess = "success"
	ResultError   = "error"
	ResultSkipped = "skipped"
)

// Metrics holds the collectors shared by all components.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	Loads          *prometheus.CounterVec
	FetchDuration  prometheus.Histogram
	CacheEntries   *prometheus.GaugeVec
	WatchedMarkets prometheus.Gauge
	DroppedEntries prometheus.Counter
	LastSuccess    prometheus.Gauge

	StreamMessages   *prometheus.CounterVec
	StreamReconnects prometheus.Counter

	RecorderRows   prometheus.Counter
	RecorderErrors prometheus.Counter
}

// New creates the collectors and registers them with reg.
// Passing nil skips registration.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Loads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "loads_total",
			Help:      "Fee refreshes by result.",
		}, []string{"result"}),
		FetchDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "fetch_duration_seconds",
			Help:      "Latency of fee service fetches.",
			Buckets:   prometheus.ExponentialBuckets(0.01, 2, 12),
		}),
		CacheEntries: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "cache_entries",
			Help:      "Cached fee levels per market type.",
		}, []string{"market_type"}),
		WatchedMarkets: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "watched_markets",
			Help:      "Markets requested on each refresh.",
		}),
		DroppedEntries: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dropped_entries_total",
			Help:      "Fee entries discarded because of an unknown market type.",
		}),
		LastSuccess: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_success_timestamp_seconds",
			Help:      "Unix time of the last successful refresh.",
		}),
		StreamMessages: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stream_messages_total",
			Help:      "Push feed messages by outcome.",
		}, []string{"outcome"}),
		StreamReconnects: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stream_reconnects_total",
			Help:      "Push feed reconnect attempts.",
		}),
		RecorderRows: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "recorder_rows_total",
			Help:      "Fee snapshot rows written to the database.",
		}),
		RecorderErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "recorder_errors_total",
			Help:      "Failed recorder batch inserts.",
		}),
	}

	if reg != nil {
		reg.MustRegister(
			m.Loads,
			m.FetchDuration,
			m.CacheEntries,
			m.WatchedMarkets,
			m.DroppedEntries,
			m.LastSuccess,
			m.StreamMessages,
			m.StreamReconnects,
			m.RecorderRows,
			m.RecorderErrors,
		)
	}

	return m
}

// ObserveLoad records the outcome of one refresh.
func (m *Metrics) ObserveLoad(result string, took time.Duration) {
	if m == nil {
		return
	}
	m.Loads.WithLabelValues(result).Inc()
	if result == ResultSkipped {
		return
	}
	m.FetchDuration.Observe(took.Seconds())
	if result == ResultSuccess {
		m.LastSuccess.Set(float64(time.Now().Unix()))
	}
}

// SetCacheEntries sets the cached entry count for a market type.
func (m *Metrics) SetCacheEntries(marketType string, n int) {
	if m == nil {
		return
	}
	m.CacheEntries.WithLabelValues(marketType).Set(float64(n))
}

// SetWatchedMarkets sets the size of the watch list.
func (m *Metrics) SetWatchedMarkets(n int) {
	if m == nil {
		return
	}
	m.WatchedMarkets.Set(float64(n))
}

// AddDropped counts entries discarded for an unknown market type.
func (m *Metrics) AddDropped(n int) {
	if m == nil || n == 0 {
		return
	}
	m.DroppedEntries.Add(float64(n))
}

// IncStreamMessage counts one push feed message by outcome ("applied", "invalid", "ignored").
func (m *Metrics) IncStreamMessage(outcome string) {
	if m == nil {
		return
	}
	m.StreamMessages.WithLabelValues(outcome).Inc()
}

// IncStreamReconnect counts one push feed reconnect attempt.
func (m *Metrics) IncStreamReconnect() {
	if m == nil {
		return
	}
	m.StreamReconnects.Inc()
}

// ObserveRecorderFlush records one recorder flush.
func (m *Metrics) ObserveRecorderFlush(rows int, err error) {
	if m == nil {
		return
	}
	if err != nil {
		m.RecorderErrors.Inc()
		return
	}
	m.RecorderRows.Add(float64(rows))
}
