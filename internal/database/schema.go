package database

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
)

// Execer is the subset of pgxpool.Pool used for schema setup.
type Execer interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
}

// schemaStatements create the recorder tables. All statements are idempotent.
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS priority_fee_snapshots (
		refresh_id   UUID        NOT NULL,
		recorded_at  TIMESTAMPTZ NOT NULL,
		market_type  TEXT        NOT NULL,
		market_index INTEGER     NOT NULL,
		min          NUMERIC     NOT NULL,
		low          NUMERIC     NOT NULL,
		medium       NUMERIC     NOT NULL,
		high         NUMERIC     NOT NULL,
		very_high    NUMERIC     NOT NULL,
		unsafe_max   NUMERIC     NOT NULL,
		PRIMARY KEY (refresh_id, market_type, market_index)
	)`,
	`CREATE INDEX IF NOT EXISTS priority_fee_snapshots_market_idx
		ON priority_fee_snapshots (market_type, market_index, recorded_at DESC)`,
}

// EnsureSchema creates the recorder tables if they do not exist.
func EnsureSchema(ctx context.Context, db Execer) error {
	for _, stmt := range schemaStatements {
		if _, err := db.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}
