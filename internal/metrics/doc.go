// Package metrics provides Prometheus metrics for monitoring.
//
// Key metrics:
//   - Fee loads by result and fetch latency
//   - Cache size per market type and watched market count
//   - Entries dropped for unknown market types
//   - Push feed message and reconnect counts
//   - Recorder flushes and insert errors
package metrics
