// Command feeprobe fetches priority fee levels once and prints them.
//
//	feeprobe -markets perp-0,perp-1,spot-0
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/rickgao/priority-fees/internal/api"
	"github.com/rickgao/priority-fees/internal/config"
	"github.com/rickgao/priority-fees/internal/model"
)

func main() {
	endpoint := flag.String("endpoint", config.DefaultEndpoint, "fee service base URL")
	marketsFlag := flag.String("markets", "perp-0", "comma-separated markets, e.g. perp-0,spot-1")
	timeout := flag.Duration("timeout", 30*time.Second, "request timeout")
	asJSON := flag.Bool("json", false, "print raw JSON")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))

	markets, err := parseMarkets(*marketsFlag)
	if err != nil {
		logger.Error("invalid markets", "error", err)
		os.Exit(2)
	}

	client := api.NewClient(
		api.WithLogger(logger),
		api.WithTimeout(*timeout),
		api.WithRetries(1, 500*time.Millisecond),
	)

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	marketTypes, marketIndexes := model.SplitMarkets(markets)
	resp, err := client.FetchPriorityFees(ctx, *endpoint, marketTypes, marketIndexes)
	if err != nil {
		logger.Error("fetch failed", "error", err, "endpoint", *endpoint)
		os.Exit(1)
	}

	if *asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(resp); err != nil {
			logger.Error("encode failed", "error", err)
			os.Exit(1)
		}
		return
	}

	printTable(os.Stdout, resp)
}

// parseMarkets parses a comma-separated list of market refs.
func parseMarkets(s string) ([]model.MarketRef, error) {
	var markets []model.MarketRef
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		ref, err := model.ParseMarketRef(part)
		if err != nil {
			return nil, err
		}
		if !model.IsKnownMarketType(ref.MarketType) {
			return nil, fmt.Errorf("unknown market type %q in %q", ref.MarketType, part)
		}
		markets = append(markets, ref)
	}
	if len(markets) == 0 {
		return nil, errors.New("no markets given")
	}
	return markets, nil
}

func printTable(w io.Writer, resp model.FeeResponse) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(tw, "MARKET\tMIN\tLOW\tMEDIUM\tHIGH\tVERY_HIGH\tUNSAFE_MAX\t")
	for _, f := range resp {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\t\n",
			f.Ref(), f.Min, f.Low, f.Medium, f.High, f.VeryHigh, f.UnsafeMax)
	}
	tw.Flush()
}
