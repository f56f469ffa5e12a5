package gateway

import "time"

// Instrument is one tradable perpetual contract with its exchange filters.
// ID is the canonical "BASE/QUOTE" form used everywhere inside the bot;
// Symbol is the raw exchange symbol used on the wire.
type Instrument struct {
	ID           string
	Symbol       string
	Base         string
	Quote        string
	StepSize     float64
	TickSize     float64
	MinQty       float64
	MinNotional  float64
	ContractSize float64
}

// Ticker is a 24h rolling window summary.
type Ticker struct {
	Instrument  string
	LastPrice   float64
	QuoteVolume float64
}

// Candle is one OHLCV bar.
type Candle struct {
	OpenTime time.Time
	Open     float64
	High     float64
	Low      float64
	Close    float64
	Volume   float64
}

// Level is one order book price level.
type Level struct {
	Price float64
	Qty   float64
}

// OrderBook is a depth snapshot, best levels first.
type OrderBook struct {
	Bids []Level
	Asks []Level
}

// BidNotional sums price*qty over the top n bid levels.
func (b OrderBook) BidNotional(n int) float64 {
	return sumNotional(b.Bids, n)
}

// AskNotional sums price*qty over the top n ask levels.
func (b OrderBook) AskNotional(n int) float64 {
	return sumNotional(b.Asks, n)
}

func sumNotional(levels []Level, n int) float64 {
	if n > len(levels) {
		n = len(levels)
	}
	var total float64
	for _, l := range levels[:n] {
		total += l.Price * l.Qty
	}
	return total
}

// PositionReport is the exchange's authoritative view of one open position.
type PositionReport struct {
	Instrument     string
	Symbol         string
	Side           string // LONG or SHORT
	Amount         float64
	EntryPrice     float64
	MarkPrice      float64
	Leverage       int
	UnrealizedPnL  float64
	IsolatedMargin float64
}

// OrderReport is one resting order as seen by the exchange.
type OrderReport struct {
	OrderID    string
	ClientID   string
	Type       string
	Side       string
	StopPrice  float64
	ReduceOnly bool
	PlacedAt   time.Time
}

// OrderAck is the fill acknowledgement for a submitted order.
type OrderAck struct {
	OrderID  string
	Status   string
	AvgPrice float64
}
