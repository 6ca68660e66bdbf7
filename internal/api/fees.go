package api

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/rickgao/priority-fees/internal/model"
)

// ErrMismatchedMarkets is returned when the market type and index lists differ in length.
var ErrMismatchedMarkets = errors.New("market types and indexes must have the same length")

// FetchPriorityFees fetches the current fee levels for the given markets.
// marketTypes and marketIndexes are parallel lists.
func (c *Client) FetchPriorityFees(ctx context.Context, endpoint string, marketTypes []string, marketIndexes []uint16) (model.FeeResponse, error) {
	if len(marketTypes) != len(marketIndexes) {
		return nil, fmt.Errorf("%w: %d types, %d indexes", ErrMismatchedMarkets, len(marketTypes), len(marketIndexes))
	}

	indexes := make([]string, len(marketIndexes))
	for i, idx := range marketIndexes {
		indexes[i] = strconv.FormatUint(uint64(idx), 10)
	}

	query := url.Values{}
	query.Set("marketType", strings.Join(marketTypes, ","))
	query.Set("marketIndex", strings.Join(indexes, ","))

	var resp model.FeeResponse
	if err := c.get(ctx, strings.TrimRight(endpoint, "/")+"/batchPriorityFees", query, &resp); err != nil {
		return nil, fmt.Errorf("fetch priority fees: %w", err)
	}

	return resp, nil
}
