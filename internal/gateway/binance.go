package gateway

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"futures-core/pkg/exchanges/binance/futures"
	"futures-core/pkg/exchanges/common"
)

// Binance adapts the raw USDT-M client to the bot's domain types. Market
// data calls are paced through a shared limiter so catalog scans do not
// trip the exchange weight limits.
type Binance struct {
	client *futures.Client
	quote  string
	pacer  *rate.Limiter
	retry  common.RetryPolicy

	mu       sync.RWMutex
	byID     map[string]Instrument
	bySymbol map[string]Instrument
}

// NewBinance wraps a futures client for the given quote asset.
func NewBinance(client *futures.Client, quoteAsset string) *Binance {
	return &Binance{
		client:   client,
		quote:    strings.ToUpper(quoteAsset),
		pacer:    rate.NewLimiter(rate.Every(100*time.Millisecond), 1),
		retry:    common.DefaultRetryPolicy(),
		byID:     make(map[string]Instrument),
		bySymbol: make(map[string]Instrument),
	}
}

// LoadCatalog refreshes the instrument catalog from exchangeInfo. Only
// actively trading perpetuals quoted in the configured asset are kept.
func (g *Binance) LoadCatalog(ctx context.Context) (int, error) {
	if err := g.pacer.Wait(ctx); err != nil {
		return 0, err
	}
	var symbols []futures.SymbolInfo
	err := g.retry.Do(ctx, "exchangeInfo", func() error {
		var e error
		symbols, e = g.client.GetExchangeInfo(ctx)
		return e
	})
	if err != nil {
		return 0, err
	}

	byID := make(map[string]Instrument, len(symbols))
	bySymbol := make(map[string]Instrument, len(symbols))
	for _, s := range symbols {
		if s.Status != "TRADING" || s.ContractType != "PERPETUAL" {
			continue
		}
		if strings.ToUpper(s.QuoteAsset) != g.quote {
			continue
		}
		inst := Instrument{
			ID:           s.BaseAsset + "/" + s.QuoteAsset,
			Symbol:       s.Symbol,
			Base:         s.BaseAsset,
			Quote:        s.QuoteAsset,
			ContractSize: 1, // linear contracts
		}
		for _, f := range s.Filters {
			switch f.FilterType {
			case "LOT_SIZE":
				inst.StepSize, _ = strconv.ParseFloat(f.StepSize, 64)
				inst.MinQty, _ = strconv.ParseFloat(f.MinQty, 64)
			case "PRICE_FILTER":
				inst.TickSize, _ = strconv.ParseFloat(f.TickSize, 64)
			case "MIN_NOTIONAL":
				inst.MinNotional, _ = strconv.ParseFloat(f.Notional, 64)
			}
		}
		byID[inst.ID] = inst
		bySymbol[inst.Symbol] = inst
	}

	g.mu.Lock()
	g.byID = byID
	g.bySymbol = bySymbol
	g.mu.Unlock()
	return len(byID), nil
}

// Lookup finds an instrument by canonical id.
func (g *Binance) Lookup(id string) (Instrument, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	inst, ok := g.byID[id]
	return inst, ok
}

// LookupSymbol finds an instrument by raw exchange symbol.
func (g *Binance) LookupSymbol(symbol string) (Instrument, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	inst, ok := g.bySymbol[symbol]
	return inst, ok
}

// Tickers returns 24h tickers for every catalog instrument.
func (g *Binance) Tickers(ctx context.Context) ([]Ticker, error) {
	if err := g.pacer.Wait(ctx); err != nil {
		return nil, err
	}
	var raw []futures.Ticker24h
	err := g.retry.Do(ctx, "tickers", func() error {
		var e error
		raw, e = g.client.GetTickers24h(ctx)
		return e
	})
	if err != nil {
		return nil, err
	}
	out := make([]Ticker, 0, len(raw))
	for _, t := range raw {
		inst, ok := g.LookupSymbol(t.Symbol)
		if !ok {
			continue
		}
		last, _ := strconv.ParseFloat(t.LastPrice, 64)
		qv, _ := strconv.ParseFloat(t.QuoteVolume, 64)
		out = append(out, Ticker{Instrument: inst.ID, LastPrice: last, QuoteVolume: qv})
	}
	return out, nil
}

// Candles fetches OHLCV bars for an instrument, oldest first.
func (g *Binance) Candles(ctx context.Context, id, timeframe string, limit int) ([]Candle, error) {
	inst, ok := g.Lookup(id)
	if !ok {
		return nil, fmt.Errorf("unknown instrument %q", id)
	}
	if err := g.pacer.Wait(ctx); err != nil {
		return nil, err
	}
	var klines []futures.Kline
	err := g.retry.Do(ctx, "klines "+inst.Symbol, func() error {
		var e error
		klines, e = g.client.GetKlines(ctx, inst.Symbol, timeframe, limit)
		return e
	})
	if err != nil {
		return nil, err
	}
	candles := make([]Candle, 0, len(klines))
	for _, k := range klines {
		candles = append(candles, Candle{
			OpenTime: time.UnixMilli(k.OpenTime),
			Open:     k.Open,
			High:     k.High,
			Low:      k.Low,
			Close:    k.Close,
			Volume:   k.Volume,
		})
	}
	return candles, nil
}

// LastPrice returns the latest traded price for an instrument.
func (g *Binance) LastPrice(ctx context.Context, id string) (float64, error) {
	inst, ok := g.Lookup(id)
	if !ok {
		return 0, fmt.Errorf("unknown instrument %q", id)
	}
	if err := g.pacer.Wait(ctx); err != nil {
		return 0, err
	}
	var t futures.Ticker24h
	err := g.retry.Do(ctx, "ticker "+inst.Symbol, func() error {
		var e error
		t, e = g.client.GetTicker24h(ctx, inst.Symbol)
		return e
	})
	if err != nil {
		return 0, err
	}
	return strconv.ParseFloat(t.LastPrice, 64)
}

// Depth fetches the order book for an instrument.
func (g *Binance) Depth(ctx context.Context, id string, limit int) (OrderBook, error) {
	inst, ok := g.Lookup(id)
	if !ok {
		return OrderBook{}, fmt.Errorf("unknown instrument %q", id)
	}
	if err := g.pacer.Wait(ctx); err != nil {
		return OrderBook{}, err
	}
	var snap futures.DepthSnapshot
	err := g.retry.Do(ctx, "depth "+inst.Symbol, func() error {
		var e error
		snap, e = g.client.GetDepth(ctx, inst.Symbol, limit)
		return e
	})
	if err != nil {
		return OrderBook{}, err
	}
	return OrderBook{Bids: parseLevels(snap.Bids), Asks: parseLevels(snap.Asks)}, nil
}

func parseLevels(raw [][]string) []Level {
	out := make([]Level, 0, len(raw))
	for _, row := range raw {
		if len(row) < 2 {
			continue
		}
		price, _ := strconv.ParseFloat(row[0], 64)
		qty, _ := strconv.ParseFloat(row[1], 64)
		out = append(out, Level{Price: price, Qty: qty})
	}
	return out
}

// FreeBalance returns the available balance of an asset.
func (g *Binance) FreeBalance(ctx context.Context, asset string) (float64, error) {
	var balances []futures.FuturesBalance
	err := g.retry.Do(ctx, "balance", func() error {
		var e error
		balances, e = g.client.GetBalance(ctx)
		return e
	})
	if err != nil {
		return 0, err
	}
	for _, b := range balances {
		if strings.EqualFold(b.Asset, asset) {
			free, _ := strconv.ParseFloat(b.AvailableBalance, 64)
			return free, nil
		}
	}
	return 0, nil
}

// Positions returns the exchange's open positions, zero-amount rows dropped.
func (g *Binance) Positions(ctx context.Context) ([]PositionReport, error) {
	var raw []futures.PositionRisk
	err := g.retry.Do(ctx, "positionRisk", func() error {
		var e error
		raw, e = g.client.GetPositions(ctx, "")
		return e
	})
	if err != nil {
		return nil, err
	}
	out := make([]PositionReport, 0, len(raw))
	for _, p := range raw {
		amt, _ := strconv.ParseFloat(p.PositionAmt, 64)
		if amt == 0 {
			continue
		}
		inst, ok := g.LookupSymbol(p.Symbol)
		if !ok {
			continue
		}
		side := "LONG"
		if amt < 0 {
			side = "SHORT"
			amt = -amt
		}
		entry, _ := strconv.ParseFloat(p.EntryPrice, 64)
		mark, _ := strconv.ParseFloat(p.MarkPrice, 64)
		upnl, _ := strconv.ParseFloat(p.UnRealizedProfit, 64)
		lev, _ := strconv.Atoi(p.Leverage)
		margin, _ := strconv.ParseFloat(p.IsolatedMargin, 64)
		out = append(out, PositionReport{
			Instrument:     inst.ID,
			Symbol:         p.Symbol,
			Side:           side,
			Amount:         amt,
			EntryPrice:     entry,
			MarkPrice:      mark,
			Leverage:       lev,
			UnrealizedPnL:  upnl,
			IsolatedMargin: margin,
		})
	}
	return out, nil
}

// OpenOrders returns resting orders for an instrument.
func (g *Binance) OpenOrders(ctx context.Context, id string) ([]OrderReport, error) {
	inst, ok := g.Lookup(id)
	if !ok {
		return nil, fmt.Errorf("unknown instrument %q", id)
	}
	var raw []futures.OpenOrder
	err := g.retry.Do(ctx, "openOrders "+inst.Symbol, func() error {
		var e error
		raw, e = g.client.GetOpenOrders(ctx, inst.Symbol)
		return e
	})
	if err != nil {
		return nil, err
	}
	out := make([]OrderReport, 0, len(raw))
	for _, o := range raw {
		stop, _ := strconv.ParseFloat(o.StopPrice, 64)
		out = append(out, OrderReport{
			OrderID:    strconv.FormatInt(o.OrderID, 10),
			ClientID:   o.ClientOrderID,
			Type:       o.Type,
			Side:       o.Side,
			StopPrice:  stop,
			ReduceOnly: o.ReduceOnly,
			PlacedAt:   time.UnixMilli(o.Time),
		})
	}
	return out, nil
}

// SetLeverage sets leverage for an instrument.
func (g *Binance) SetLeverage(ctx context.Context, id string, leverage int) error {
	inst, ok := g.Lookup(id)
	if !ok {
		return fmt.Errorf("unknown instrument %q", id)
	}
	return g.client.SetLeverage(ctx, inst.Symbol, leverage)
}

// MarketOrder submits a market order and returns the fill ack.
func (g *Binance) MarketOrder(ctx context.Context, id string, side common.Side, qty float64, reduceOnly bool) (OrderAck, error) {
	inst, ok := g.Lookup(id)
	if !ok {
		return OrderAck{}, fmt.Errorf("unknown instrument %q", id)
	}
	res, err := g.client.SubmitOrder(ctx, common.OrderRequest{
		Symbol:     inst.Symbol,
		Side:       side,
		Type:       common.OrderTypeMarket,
		Qty:        qty,
		ReduceOnly: reduceOnly,
	})
	if err != nil {
		return OrderAck{}, err
	}
	return OrderAck{OrderID: res.ExchangeOrderID, Status: string(res.Status), AvgPrice: res.AvgPrice}, nil
}

// ProtectiveOrder submits a reduce-only conditional market order.
func (g *Binance) ProtectiveOrder(ctx context.Context, id string, side common.Side, orderType common.OrderType, qty, stopPrice float64) (OrderAck, error) {
	inst, ok := g.Lookup(id)
	if !ok {
		return OrderAck{}, fmt.Errorf("unknown instrument %q", id)
	}
	res, err := g.client.SubmitOrder(ctx, common.OrderRequest{
		Symbol:     inst.Symbol,
		Side:       side,
		Type:       orderType,
		Qty:        qty,
		StopPrice:  stopPrice,
		ReduceOnly: true,
	})
	if err != nil {
		return OrderAck{}, err
	}
	return OrderAck{OrderID: res.ExchangeOrderID, Status: string(res.Status), AvgPrice: res.AvgPrice}, nil
}

// CancelAllOrders cancels every resting order for an instrument.
func (g *Binance) CancelAllOrders(ctx context.Context, id string) error {
	inst, ok := g.Lookup(id)
	if !ok {
		return fmt.Errorf("unknown instrument %q", id)
	}
	return g.client.CancelAllOpenOrders(ctx, inst.Symbol)
}
