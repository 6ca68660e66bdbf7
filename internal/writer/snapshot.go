package writer

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/rickgao/priority-fees/internal/metrics"
	"github.com/rickgao/priority-fees/internal/model"
)

const insertSnapshotSQL = `
	INSERT INTO priority_fee_snapshots
		(refresh_id, recorded_at, market_type, market_index, min, low, medium, high, very_high, unsafe_max)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	ON CONFLICT (refresh_id, market_type, market_index) DO NOTHING
`

var errInputFull = errors.New("snapshot input buffer full")

// SnapshotWriter records committed fee responses into priority_fee_snapshots.
//
// Record only enqueues. Batching and database writes happen on the writer's
// own goroutines, so a slow database never blocks the caller.
type SnapshotWriter struct {
	cfg     WriterConfig
	logger  *slog.Logger
	metrics *metrics.Metrics

	// Database
	db BatchSender

	// Input
	input  chan []snapshotRow
	queued atomic.Int64

	// Batching
	batch   []snapshotRow
	batchMu sync.Mutex
	stats   WriterMetrics

	// flushMu keeps flushes in order.
	flushMu sync.Mutex

	now func() time.Time

	// Lifecycle
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewSnapshotWriter creates a new SnapshotWriter.
func NewSnapshotWriter(cfg WriterConfig, db BatchSender, m *metrics.Metrics, logger *slog.Logger) *SnapshotWriter {
	if logger == nil {
		logger = slog.Default()
	}
	defaults := DefaultWriterConfig()
	if cfg.BatchSize < 1 {
		cfg.BatchSize = defaults.BatchSize
	}
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = defaults.FlushInterval
	}
	if cfg.FlushTimeout <= 0 {
		cfg.FlushTimeout = defaults.FlushTimeout
	}
	if cfg.InputBuffer < 1 {
		cfg.InputBuffer = defaults.InputBuffer
	}
	return &SnapshotWriter{
		cfg:     cfg,
		logger:  logger,
		metrics: m,
		db:      db,
		input:   make(chan []snapshotRow, cfg.InputBuffer),
		batch:   make([]snapshotRow, 0, cfg.BatchSize),
		now:     time.Now,
	}
}

// Start begins the consume and flush loops.
func (w *SnapshotWriter) Start(ctx context.Context) error {
	w.ctx, w.cancel = context.WithCancel(ctx)

	w.wg.Add(2)
	go w.consumeLoop()
	go w.flushLoop()

	w.logger.Info("snapshot writer started",
		"batch_size", w.cfg.BatchSize,
		"flush_interval", w.cfg.FlushInterval,
	)
	return nil
}

// Stop shuts down the loops and writes whatever is still queued.
func (w *SnapshotWriter) Stop(ctx context.Context) error {
	w.logger.Info("stopping snapshot writer")

	if w.cancel != nil {
		w.cancel()
	}

	done := make(chan struct{})
	go func() {
		w.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		w.logger.Info("snapshot writer stopped")
	case <-ctx.Done():
		w.logger.Warn("snapshot writer stop timed out")
		return ctx.Err()
	}

	// Final flush
	w.drain()
	w.flush(ctx)

	return nil
}

// Record queues one row per known market in resp under a new refresh id.
// It never blocks: when the input buffer is full the response is dropped
// and counted. It is safe to use as a priorityfee update hook.
func (w *SnapshotWriter) Record(resp model.FeeResponse) {
	refreshID := uuid.New()
	recordedAt := w.now().UTC()

	rows := make([]snapshotRow, 0, len(resp))
	for _, f := range resp {
		if !model.IsKnownMarketType(f.MarketType) {
			continue
		}
		rows = append(rows, transform(refreshID, recordedAt, f))
	}
	if len(rows) == 0 {
		return
	}

	select {
	case w.input <- rows:
		w.queued.Add(int64(len(rows)))
	default:
		w.batchMu.Lock()
		w.stats.Dropped += int64(len(rows))
		w.batchMu.Unlock()
		w.metrics.ObserveRecorderFlush(0, errInputFull)
		w.logger.Warn("snapshot input buffer full, dropping refresh", "rows", len(rows))
	}
}

// Stats returns current counters.
func (w *SnapshotWriter) Stats() WriterMetrics {
	w.batchMu.Lock()
	defer w.batchMu.Unlock()
	return w.stats
}

// Pending returns the number of rows queued or batched but not yet flushed.
func (w *SnapshotWriter) Pending() int {
	w.batchMu.Lock()
	defer w.batchMu.Unlock()
	return len(w.batch) + int(w.queued.Load())
}

// consumeLoop moves queued rows into the batch and flushes full batches.
func (w *SnapshotWriter) consumeLoop() {
	defer w.wg.Done()

	for {
		select {
		case <-w.ctx.Done():
			return
		case rows := <-w.input:
			if w.add(rows) {
				w.flushWithTimeout()
			}
		}
	}
}

// flushLoop periodically flushes the batch.
func (w *SnapshotWriter) flushLoop() {
	defer w.wg.Done()

	ticker := time.NewTicker(w.cfg.FlushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-w.ctx.Done():
			return
		case <-ticker.C:
			w.flushWithTimeout()
		}
	}
}

// add appends rows to the batch and reports whether it is full.
func (w *SnapshotWriter) add(rows []snapshotRow) bool {
	w.batchMu.Lock()
	defer w.batchMu.Unlock()
	w.batch = append(w.batch, rows...)
	w.queued.Add(-int64(len(rows)))
	return len(w.batch) >= w.cfg.BatchSize
}

// drain moves everything still queued into the batch.
func (w *SnapshotWriter) drain() {
	for {
		select {
		case rows := <-w.input:
			w.add(rows)
		default:
			return
		}
	}
}

func (w *SnapshotWriter) flushWithTimeout() {
	ctx, cancel := context.WithTimeout(w.ctx, w.cfg.FlushTimeout)
	defer cancel()
	w.flush(ctx)
}

// transform converts one fee snapshot to a row.
func transform(refreshID uuid.UUID, recordedAt time.Time, f model.FeeLevels) snapshotRow {
	return snapshotRow{
		RefreshID:   refreshID,
		RecordedAt:  recordedAt,
		MarketType:  f.MarketType,
		MarketIndex: f.MarketIndex,
		Min:         f.Min,
		Low:         f.Low,
		Medium:      f.Medium,
		High:        f.High,
		VeryHigh:    f.VeryHigh,
		UnsafeMax:   f.UnsafeMax,
	}
}

// flush writes the current batch to the database.
func (w *SnapshotWriter) flush(ctx context.Context) {
	w.flushMu.Lock()
	defer w.flushMu.Unlock()

	w.batchMu.Lock()
	if len(w.batch) == 0 {
		w.batchMu.Unlock()
		return
	}

	// Take ownership of current batch
	batch := w.batch
	w.batch = make([]snapshotRow, 0, w.cfg.BatchSize)
	w.batchMu.Unlock()

	start := time.Now()

	conflicts, err := w.batchInsert(ctx, batch)
	w.metrics.ObserveRecorderFlush(len(batch)-conflicts, err)
	if err != nil {
		w.logger.Error("batch insert failed", "error", err, "count", len(batch))
		w.batchMu.Lock()
		w.stats.Errors++
		w.batchMu.Unlock()
		return
	}

	w.batchMu.Lock()
	w.stats.Inserts += int64(len(batch) - conflicts)
	w.stats.Conflicts += int64(conflicts)
	w.stats.Flushes++
	w.batchMu.Unlock()

	w.logger.Debug("flushed fee snapshots",
		"count", len(batch),
		"conflicts", conflicts,
		"duration", time.Since(start),
	)
}

// batchInsert inserts rows using pgx.Batch with ON CONFLICT DO NOTHING.
func (w *SnapshotWriter) batchInsert(ctx context.Context, rows []snapshotRow) (conflicts int, err error) {
	batch := &pgx.Batch{}
	for _, r := range rows {
		batch.Queue(insertSnapshotSQL,
			r.RefreshID, r.RecordedAt, r.MarketType, int32(r.MarketIndex),
			r.Min, r.Low, r.Medium, r.High, r.VeryHigh, r.UnsafeMax,
		)
	}

	results := w.db.SendBatch(ctx, batch)
	defer results.Close()

	for range rows {
		ct, err := results.Exec()
		if err != nil {
			return 0, err
		}
		if ct.RowsAffected() == 0 {
			conflicts++
		}
	}

	return conflicts, nil
}
