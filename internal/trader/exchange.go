package trader

import (
	"context"

	"futures-core/internal/gateway"
	"futures-core/pkg/exchanges/common"
)

// Exchange is the slice of the gateway the trader needs. Declared here so
// the opener and reconciler can be exercised against fakes.
type Exchange interface {
	Lookup(id string) (gateway.Instrument, bool)
	LastPrice(ctx context.Context, id string) (float64, error)
	Positions(ctx context.Context) ([]gateway.PositionReport, error)
	OpenOrders(ctx context.Context, id string) ([]gateway.OrderReport, error)
	SetLeverage(ctx context.Context, id string, leverage int) error
	MarketOrder(ctx context.Context, id string, side common.Side, qty float64, reduceOnly bool) (gateway.OrderAck, error)
	ProtectiveOrder(ctx context.Context, id string, side common.Side, orderType common.OrderType, qty, stopPrice float64) (gateway.OrderAck, error)
	CancelAllOrders(ctx context.Context, id string) error
}
