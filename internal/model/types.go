package model

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// Market types reported by the fee service.
const (
	MarketTypePerp = "perp"
	MarketTypeSpot = "spot"
)

// KnownMarketTypes returns the market types the cache keeps entries for.
func KnownMarketTypes() []string {
	return []string{MarketTypePerp, MarketTypeSpot}
}

// IsKnownMarketType reports whether t is one of KnownMarketTypes.
func IsKnownMarketType(t string) bool {
	return t == MarketTypePerp || t == MarketTypeSpot
}

// -----------------------------------------------------------------------------
// Markets
// -----------------------------------------------------------------------------

// MarketRef identifies one market on the fee service.
type MarketRef struct {
	MarketType  string `json:"marketType" yaml:"market_type"`
	MarketIndex uint16 `json:"marketIndex" yaml:"market_index"`
}

// String renders the ref as "perp-0".
func (m MarketRef) String() string {
	return m.MarketType + "-" + strconv.FormatUint(uint64(m.MarketIndex), 10)
}

// ParseMarketRef parses the "perp-0" form produced by MarketRef.String.
func ParseMarketRef(s string) (MarketRef, error) {
	typ, idx, ok := strings.Cut(strings.TrimSpace(s), "-")
	if !ok || typ == "" {
		return MarketRef{}, fmt.Errorf("invalid market %q: want <type>-<index>", s)
	}
	n, err := strconv.ParseUint(idx, 10, 16)
	if err != nil {
		return MarketRef{}, fmt.Errorf("invalid market index in %q: %w", s, err)
	}
	return MarketRef{MarketType: strings.ToLower(typ), MarketIndex: uint16(n)}, nil
}

// SplitMarkets builds the parallel market type / market index arrays the
// fee service expects. Position i of both slices describes markets[i].
func SplitMarkets(markets []MarketRef) (marketTypes []string, marketIndexes []uint16) {
	marketTypes = make([]string, 0, len(markets))
	marketIndexes = make([]uint16, 0, len(markets))
	for _, m := range markets {
		marketTypes = append(marketTypes, m.MarketType)
		marketIndexes = append(marketIndexes, m.MarketIndex)
	}
	return marketTypes, marketIndexes
}

// -----------------------------------------------------------------------------
// Fee levels
// -----------------------------------------------------------------------------

// FeeLevels is one market's priority fee estimate as reported by the fee service.
type FeeLevels struct {
	MarketType  string `json:"marketType"`
	MarketIndex uint16 `json:"marketIndex"`

	Min       decimal.Decimal `json:"min"`
	Low       decimal.Decimal `json:"low"`
	Medium    decimal.Decimal `json:"medium"`
	High      decimal.Decimal `json:"high"`
	VeryHigh  decimal.Decimal `json:"veryHigh"`
	UnsafeMax decimal.Decimal `json:"unsafeMax"`
}

// Ref returns the market the levels belong to.
func (f FeeLevels) Ref() MarketRef {
	return MarketRef{MarketType: f.MarketType, MarketIndex: f.MarketIndex}
}

// Equal reports whether both snapshots describe the same market with the same levels.
func (f FeeLevels) Equal(o FeeLevels) bool {
	return f.MarketType == o.MarketType &&
		f.MarketIndex == o.MarketIndex &&
		f.Min.Equal(o.Min) &&
		f.Low.Equal(o.Low) &&
		f.Medium.Equal(o.Medium) &&
		f.High.Equal(o.High) &&
		f.VeryHigh.Equal(o.VeryHigh) &&
		f.UnsafeMax.Equal(o.UnsafeMax)
}

// FeeResponse is the ordered list of fee levels returned by one fetch.
type FeeResponse []FeeLevels

// Markets returns the markets present in the response, in response order.
// Repeated markets keep their first position.
func (r FeeResponse) Markets() []MarketRef {
	markets := make([]MarketRef, 0, len(r))
	seen := make(map[MarketRef]struct{}, len(r))
	for _, f := range r {
		ref := f.Ref()
		if _, ok := seen[ref]; ok {
			continue
		}
		seen[ref] = struct{}{}
		markets = append(markets, ref)
	}
	return markets
}
