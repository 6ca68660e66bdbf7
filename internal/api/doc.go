// Package api provides the REST client for the priority fee service.
//
// Endpoints:
//   - Production: https://dlob.drift.trade
//   - Batch fees: GET {endpoint}/batchPriorityFees?marketType=perp,spot&marketIndex=0,1
//
// The marketType and marketIndex lists are parallel: position i of both
// lists names one market.
package api
