package writer

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

// WriterConfig configures batching.
type WriterConfig struct {
	// BatchSize is the number of rows to accumulate before flushing.
	BatchSize int

	// FlushInterval is the maximum time between flushes.
	FlushInterval time.Duration

	// FlushTimeout bounds a single batch insert.
	FlushTimeout time.Duration

	// InputBuffer is the number of refreshes Record can queue before it
	// starts dropping.
	InputBuffer int
}

// DefaultWriterConfig returns sensible defaults.
func DefaultWriterConfig() WriterConfig {
	return WriterConfig{
		BatchSize:     500,
		FlushInterval: 5 * time.Second,
		FlushTimeout:  30 * time.Second,
		InputBuffer:   1024,
	}
}

// BatchSender sends a queued batch. *pgxpool.Pool satisfies it.
type BatchSender interface {
	SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults
}

// snapshotRow represents a row for the priority_fee_snapshots table.
type snapshotRow struct {
	RefreshID   uuid.UUID
	RecordedAt  time.Time
	MarketType  string
	MarketIndex uint16
	Min         decimal.Decimal
	Low         decimal.Decimal
	Medium      decimal.Decimal
	High        decimal.Decimal
	VeryHigh    decimal.Decimal
	UnsafeMax   decimal.Decimal
}

// WriterMetrics holds counters for a writer.
type WriterMetrics struct {
	Inserts   int64
	Conflicts int64
	Errors    int64
	Flushes   int64
	Dropped   int64
}
