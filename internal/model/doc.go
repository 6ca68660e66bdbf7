// Package model defines shared data types used across the priority fee subscriber.
//
// Conventions:
//   - Markets are identified by (market type, market index), e.g. ("perp", 0)
//   - Fee levels are decimal micro-lamports per compute unit, as reported by the fee service
//   - A FeeLevels value is an immutable snapshot; refreshes replace it, never mutate it
package model
