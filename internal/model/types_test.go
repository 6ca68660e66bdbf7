package model

import (
	"encoding/json"
	"testing"

	"github.com/shopspring/decimal"
)

func TestMarketRef_String(t *testing.T) {
	ref := MarketRef{MarketType: MarketTypePerp, MarketIndex: 12}
	if got := ref.String(); got != "perp-12" {
		t.Errorf("String() = %q, want %q", got, "perp-12")
	}
}

func TestParseMarketRef(t *testing.T) {
	tests := []struct {
		in      string
		want    MarketRef
		wantErr bool
	}{
		{in: "perp-0", want: MarketRef{MarketType: "perp", MarketIndex: 0}},
		{in: "SPOT-7", want: MarketRef{MarketType: "spot", MarketIndex: 7}},
		{in: " perp-65535 ", want: MarketRef{MarketType: "perp", MarketIndex: 65535}},
		{in: "perp", wantErr: true},
		{in: "-1", wantErr: true},
		{in: "perp-x", wantErr: true},
		{in: "perp-65536", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseMarketRef(tt.in)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("ParseMarketRef(%q) expected error, got %v", tt.in, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseMarketRef(%q) unexpected error: %v", tt.in, err)
			}
			if got != tt.want {
				t.Errorf("ParseMarketRef(%q) = %+v, want %+v", tt.in, got, tt.want)
			}
		})
	}
}

func TestSplitMarkets(t *testing.T) {
	markets := []MarketRef{
		{MarketType: "perp", MarketIndex: 0},
		{MarketType: "spot", MarketIndex: 1},
		{MarketType: "perp", MarketIndex: 5},
	}

	types, indexes := SplitMarkets(markets)

	if len(types) != len(indexes) {
		t.Fatalf("len(types) = %d, len(indexes) = %d, want equal", len(types), len(indexes))
	}
	for i, m := range markets {
		if types[i] != m.MarketType || indexes[i] != m.MarketIndex {
			t.Errorf("position %d = (%s, %d), want (%s, %d)", i, types[i], indexes[i], m.MarketType, m.MarketIndex)
		}
	}

	types, indexes = SplitMarkets(nil)
	if len(types) != 0 || len(indexes) != 0 {
		t.Errorf("SplitMarkets(nil) = %v, %v, want empty", types, indexes)
	}
}

func TestFeeResponse_Markets(t *testing.T) {
	resp := FeeResponse{
		{MarketType: "perp", MarketIndex: 1},
		{MarketType: "spot", MarketIndex: 0},
		{MarketType: "perp", MarketIndex: 1},
		{MarketType: "bogus", MarketIndex: 3},
	}

	got := resp.Markets()
	want := []MarketRef{
		{MarketType: "perp", MarketIndex: 1},
		{MarketType: "spot", MarketIndex: 0},
		{MarketType: "bogus", MarketIndex: 3},
	}

	if len(got) != len(want) {
		t.Fatalf("Markets() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Markets()[%d] = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestFeeLevels_DecodeWire(t *testing.T) {
	data := `[{"marketType":"perp","marketIndex":0,"min":0,"low":1500.5,"medium":20000,"high":50000,"veryHigh":100000,"unsafeMax":250000}]`

	var resp FeeResponse
	if err := json.Unmarshal([]byte(data), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(resp) != 1 {
		t.Fatalf("len(resp) = %d, want 1", len(resp))
	}

	f := resp[0]
	if f.Ref() != (MarketRef{MarketType: "perp", MarketIndex: 0}) {
		t.Errorf("Ref() = %v", f.Ref())
	}
	if !f.Low.Equal(decimal.RequireFromString("1500.5")) {
		t.Errorf("Low = %s, want 1500.5", f.Low)
	}
	if !f.UnsafeMax.Equal(decimal.NewFromInt(250000)) {
		t.Errorf("UnsafeMax = %s, want 250000", f.UnsafeMax)
	}
}

func TestFeeLevels_Equal(t *testing.T) {
	a := FeeLevels{MarketType: "perp", MarketIndex: 0, Medium: decimal.NewFromInt(100)}
	b := FeeLevels{MarketType: "perp", MarketIndex: 0, Medium: decimal.RequireFromString("100.0")}
	c := FeeLevels{MarketType: "perp", MarketIndex: 0, Medium: decimal.NewFromInt(150)}

	if !a.Equal(b) {
		t.Error("expected 100 and 100.0 to be equal")
	}
	if a.Equal(c) {
		t.Error("expected 100 and 150 to differ")
	}
}
