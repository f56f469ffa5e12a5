package common

// Side denotes order side.
type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

// Opposite returns the closing side for an entry side.
func (s Side) Opposite() Side {
	if s == SideBuy {
		return SideSell
	}
	return SideBuy
}

// OrderType denotes the order types the loop submits.
type OrderType string

const (
	OrderTypeMarket           OrderType = "MARKET"
	OrderTypeStopMarket       OrderType = "STOP_MARKET"
	OrderTypeTakeProfitMarket OrderType = "TAKE_PROFIT_MARKET"
)

// OrderStatus normalizes exchange status into a small set.
type OrderStatus string

const (
	StatusNew      OrderStatus = "NEW"
	StatusPartial  OrderStatus = "PARTIAL"
	StatusFilled   OrderStatus = "FILLED"
	StatusCanceled OrderStatus = "CANCELED"
	StatusRejected OrderStatus = "REJECTED"
	StatusExpired  OrderStatus = "EXPIRED"
	StatusUnknown  OrderStatus = "UNKNOWN"
)

// OrderRequest captures an order intent to be sent to the exchange.
type OrderRequest struct {
	Symbol     string
	Side       Side
	Type       OrderType
	Qty        float64
	StopPrice  float64 // required for STOP_MARKET / TAKE_PROFIT_MARKET
	ClientID   string  // optional client order id
	ReduceOnly bool
}

// OrderResult returns the exchange ack.
type OrderResult struct {
	ExchangeOrderID string
	Status          OrderStatus
	ClientID        string
	AvgPrice        float64 // fill price when the exchange reports one
}
