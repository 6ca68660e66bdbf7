// Package connection implements the push feed for priority fees.
//
// The Feed:
//   - Keeps one WebSocket connection to the fee stream
//   - Subscribes to the priority_fees channel for the watched markets
//   - Applies every pushed fee batch to the subscriber cache
//   - Handles reconnection with exponential backoff
//
// The feed only ever writes through UpdateFeesMap; polling stays the
// source of truth for the watch list.
package connection
