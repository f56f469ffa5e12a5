// Package trader opens positions off analyzer signals and reconciles the
// tracked position table against the exchange every cycle.
package trader

import (
	"context"
	"fmt"
	"log"
	"math"
	"time"

	"futures-core/internal/events"
	"futures-core/internal/gateway"
	"futures-core/internal/signal"
	"futures-core/internal/state"
	"futures-core/pkg/db"
	"futures-core/pkg/exchanges/common"
	"futures-core/pkg/i18n"
)

// OpenerOptions sizes and protects new positions.
type OpenerOptions struct {
	TradeNotional float64 // target quote value per position
	MinNotional   float64 // floor when the exchange filter reports none
	Leverage      int
	ProfitTarget  float64 // quote PnL for the take-profit leg
	LossLimit     float64 // quote PnL for the stop leg
	Protective    bool    // place reduce-only TP/SL after entry
}

// Opener sizes and submits market entries.
type Opener struct {
	exch  Exchange
	state *state.Manager
	bus   *events.Bus
	opts  OpenerOptions
}

// NewOpener creates an opener.
func NewOpener(exch Exchange, st *state.Manager, bus *events.Bus, opts OpenerOptions) *Opener {
	return &Opener{exch: exch, state: st, bus: bus, opts: opts}
}

// Open enters a position in the signalled direction. The quantity is sized
// from TradeNotional, snapped down to the exchange step, and bumped to the
// minimum notional when the sized order would be rejected.
func (o *Opener) Open(ctx context.Context, id string, dir signal.Direction) error {
	inst, ok := o.exch.Lookup(id)
	if !ok {
		return fmt.Errorf("unknown instrument %q", id)
	}
	price, err := o.exch.LastPrice(ctx, id)
	if err != nil {
		return fmt.Errorf("last price for %s: %w", id, err)
	}
	if price <= 0 || math.IsNaN(price) || math.IsInf(price, 0) {
		return fmt.Errorf("bad price %f for %s", price, id)
	}

	qty, err := o.sizeQuantity(inst, price)
	if err != nil {
		return err
	}

	// Entering at the wrong leverage would skew every PnL threshold, so
	// this is not survivable.
	if err := o.exch.SetLeverage(ctx, id, o.opts.Leverage); err != nil {
		log.Printf(i18n.M().LeverageSetFailed, id, err)
		return fmt.Errorf("set leverage for %s: %w", id, err)
	}

	side := common.SideBuy
	if dir == signal.Short {
		side = common.SideSell
	}
	log.Printf(i18n.M().OpeningPosition, dir, id, price, qty, o.opts.Leverage)
	ack, err := o.exch.MarketOrder(ctx, id, side, qty, false)
	if err != nil {
		return fmt.Errorf("open %s: %w", id, err)
	}
	entry := ack.AvgPrice
	if entry <= 0 {
		entry = price
	}

	pos := db.Position{
		Symbol:     id,
		Side:       string(dir),
		EntryPrice: entry,
		Amount:     qty,
		Leverage:   o.opts.Leverage,
		OpenedAt:   time.Now().UTC(),
	}

	if o.opts.Protective {
		tp, sl := o.protectiveLevels(dir, entry, qty, inst.ContractSize)
		if err := o.placeProtective(ctx, id, side.Opposite(), qty, tp, sl); err != nil {
			log.Printf(i18n.M().ProtectiveFailed, id, err)
		} else {
			pos.TakeProfit = tp
			pos.StopLoss = sl
			log.Printf(i18n.M().ProtectiveSubmitted, id, tp, sl)
		}
	}

	// The exchange's position risk view is authoritative for entry and
	// size; only a confirmed position is recorded. An unconfirmed entry is
	// left for the next reconcile sweep to adopt.
	reports, err := o.exch.Positions(ctx)
	if err != nil {
		return fmt.Errorf("confirm %s: %w", id, err)
	}
	found := false
	for _, r := range reports {
		if r.Instrument == id {
			pos.Side = r.Side
			pos.EntryPrice = r.EntryPrice
			pos.Amount = r.Amount
			if r.Leverage > 0 {
				pos.Leverage = r.Leverage
			}
			found = true
			break
		}
	}
	if !found {
		log.Printf(i18n.M().PositionNotFound, id)
		return fmt.Errorf("position %s not confirmed by the exchange", id)
	}

	if err := o.state.Track(ctx, pos); err != nil {
		return fmt.Errorf("track %s: %w", id, err)
	}
	log.Printf(i18n.M().PositionRecorded, id)
	o.bus.Publish(events.EventPositionOpened, events.PositionPayload{
		Instrument: id,
		Side:       pos.Side,
		Amount:     pos.Amount,
		EntryPrice: pos.EntryPrice,
		Time:       time.Now().UTC(),
	})
	return nil
}

// sizeQuantity converts the configured notional into a step-aligned
// contract quantity that clears the exchange minimum.
func (o *Opener) sizeQuantity(inst gateway.Instrument, price float64) (float64, error) {
	step := inst.StepSize
	if step <= 0 {
		return 0, fmt.Errorf("no step size for %s", inst.ID)
	}
	minNotional := o.opts.MinNotional
	if inst.MinNotional > minNotional {
		minNotional = inst.MinNotional
	}

	qty := math.Floor(o.opts.TradeNotional/price/step) * step
	if qty*price < minNotional {
		adjusted := math.Floor(minNotional/price/step) * step
		log.Printf(i18n.M().QuantityAdjusted, inst.ID, qty, adjusted, minNotional)
		qty = adjusted
	}
	if qty < step {
		log.Printf(i18n.M().QuantityBelowStep, qty, step, inst.ID)
		return 0, fmt.Errorf("quantity %f below step %f for %s", qty, step, inst.ID)
	}
	if qty <= 0 || math.IsNaN(qty) || math.IsInf(qty, 0) {
		log.Printf(i18n.M().InvalidQuantity, inst.ID, qty)
		return 0, fmt.Errorf("invalid quantity %f for %s", qty, inst.ID)
	}
	return qty, nil
}

// protectiveLevels converts the quote PnL targets into trigger prices.
func (o *Opener) protectiveLevels(dir signal.Direction, entry, qty, contractSize float64) (tp, sl float64) {
	if contractSize <= 0 {
		contractSize = 1
	}
	perUnit := qty * contractSize
	if perUnit <= 0 {
		return 0, 0
	}
	sign := 1.0
	if dir == signal.Short {
		sign = -1.0
	}
	tp = entry + sign*o.opts.ProfitTarget/perUnit
	sl = entry - sign*o.opts.LossLimit/perUnit
	return tp, sl
}

func (o *Opener) placeProtective(ctx context.Context, id string, closeSide common.Side, qty, tp, sl float64) error {
	if _, err := o.exch.ProtectiveOrder(ctx, id, closeSide, common.OrderTypeTakeProfitMarket, qty, tp); err != nil {
		return fmt.Errorf("take profit: %w", err)
	}
	if _, err := o.exch.ProtectiveOrder(ctx, id, closeSide, common.OrderTypeStopMarket, qty, sl); err != nil {
		return fmt.Errorf("stop loss: %w", err)
	}
	return nil
}
