// Package database provides the PostgreSQL connection pool used by the recorder.
//
// Tables:
//   - priority_fee_snapshots: one row per market per committed refresh
package database
