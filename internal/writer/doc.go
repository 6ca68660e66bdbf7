// Package writer implements the batch writer for fee snapshots.
//
// Every response committed to the subscriber cache becomes one refresh: a
// fresh refresh_id shared by one row per market. Rows are appended to the
// priority_fee_snapshots table (never updated) in batches.
package writer
