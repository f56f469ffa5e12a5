// Package selector picks the instruments worth scanning each cycle:
// high-turnover perpetuals with enough candle history and a book deep
// enough to absorb market entries without slippage surprises.
package selector

import (
	"context"
	"fmt"
	"log"
	"sort"
	"strings"

	"futures-core/internal/gateway"
	"futures-core/pkg/i18n"
)

// MarketData is the slice of the gateway the selector needs.
type MarketData interface {
	Tickers(ctx context.Context) ([]gateway.Ticker, error)
	Candles(ctx context.Context, id, timeframe string, limit int) ([]gateway.Candle, error)
	Depth(ctx context.Context, id string, limit int) (gateway.OrderBook, error)
}

// Options controls candidate screening.
type Options struct {
	TopByVolume   int     // pre-screen: how many instruments by 24h quote volume
	MaxCandidates int     // hard cap on the returned list
	MinCandles    int     // minimum history required
	Timeframe     string  // candle interval
	DepthLevels   int     // book levels summed per side
	MinDepth      float64 // minimum combined bid+ask notional over those levels
}

// Selector screens the market for tradable candidates.
type Selector struct {
	market MarketData
	opts   Options
}

// New creates a selector.
func New(market MarketData, opts Options) *Selector {
	return &Selector{market: market, opts: opts}
}

// Select returns up to MaxCandidates canonical instrument ids ordered by
// descending 24h quote volume. Failures on individual instruments are
// logged and skipped; only a failure to list tickers aborts the scan.
func (s *Selector) Select(ctx context.Context) ([]string, error) {
	tickers, err := s.market.Tickers(ctx)
	if err != nil {
		return nil, fmt.Errorf("list tickers: %w", err)
	}

	sort.Slice(tickers, func(i, j int) bool {
		return tickers[i].QuoteVolume > tickers[j].QuoteVolume
	})
	if len(tickers) > s.opts.TopByVolume {
		tickers = tickers[:s.opts.TopByVolume]
	}

	candidates := make([]string, 0, s.opts.MaxCandidates)
	for _, t := range tickers {
		if len(candidates) >= s.opts.MaxCandidates {
			break
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		id, err := NormalizeID(t.Instrument)
		if err != nil {
			log.Printf(i18n.M().BadSymbol, t.Instrument)
			continue
		}

		candles, err := s.market.Candles(ctx, id, s.opts.Timeframe, s.opts.MinCandles)
		if err != nil {
			log.Printf(i18n.M().MarketDataFailed, id, err)
			continue
		}
		if len(candles) < s.opts.MinCandles {
			log.Printf(i18n.M().NotEnoughCandles, id, len(candles))
			continue
		}

		book, err := s.market.Depth(ctx, id, s.opts.DepthLevels)
		if err != nil {
			log.Printf(i18n.M().MarketDataFailed, id, err)
			continue
		}
		depth := book.BidNotional(s.opts.DepthLevels) + book.AskNotional(s.opts.DepthLevels)
		if depth < s.opts.MinDepth {
			log.Printf(i18n.M().DepthTooThin, id, depth)
			continue
		}

		candidates = append(candidates, id)
	}
	return candidates, nil
}

// NormalizeID canonicalizes an instrument id to "BASE/QUOTE". Settlement
// suffixes like "BTC/USDT:USDT" are stripped; anything without a single
// "/" separator is rejected.
func NormalizeID(id string) (string, error) {
	if i := strings.Index(id, ":"); i >= 0 {
		id = id[:i]
	}
	parts := strings.Split(id, "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", fmt.Errorf("malformed instrument id %q", id)
	}
	return id, nil
}
