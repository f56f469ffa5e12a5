package trader

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"

	"futures-core/internal/events"
	"futures-core/internal/gateway"
	"futures-core/internal/state"
	"futures-core/pkg/db"
	"futures-core/pkg/exchanges/common"
	"futures-core/pkg/i18n"
)

// ReconcilerOptions controls the per-cycle position sweep.
type ReconcilerOptions struct {
	ProfitTarget    float64       // close when PnL reaches this
	LossLimit       float64       // close when PnL falls to minus this
	FeeRate         float64       // taker fee applied to both legs
	Protective      bool          // require resting TP/SL orders
	ProtectionGrace time.Duration // how long a position may sit unprotected
	SettlePause     time.Duration // wait after a close before the next action
}

// Reconciler trues up the tracked table against the exchange and, in
// manual mode, enforces the PnL thresholds. The exchange's position risk
// view always wins.
type Reconciler struct {
	exch  Exchange
	state *state.Manager
	bus   *events.Bus
	opts  ReconcilerOptions
}

// NewReconciler creates a reconciler.
func NewReconciler(exch Exchange, st *state.Manager, bus *events.Bus, opts ReconcilerOptions) *Reconciler {
	return &Reconciler{exch: exch, state: st, bus: bus, opts: opts}
}

// Reconcile runs one sweep. Per-position failures are logged and skipped;
// only a failure to list positions aborts the sweep.
func (r *Reconciler) Reconcile(ctx context.Context) error {
	reports, err := r.exch.Positions(ctx)
	if err != nil {
		return fmt.Errorf("list positions: %w", err)
	}

	live := make(map[string]gateway.PositionReport, len(reports))
	for _, rep := range reports {
		live[rep.Instrument] = rep
		pos := db.Position{
			Symbol:     rep.Instrument,
			Side:       rep.Side,
			EntryPrice: rep.EntryPrice,
			Amount:     rep.Amount,
			Leverage:   rep.Leverage,
		}
		if prev, ok := r.state.Position(rep.Instrument); ok {
			pos.TakeProfit = prev.TakeProfit
			pos.StopLoss = prev.StopLoss
		}
		if err := r.state.Track(ctx, pos); err != nil {
			log.Printf(i18n.M().ReconcileError, err)
			continue
		}
		log.Printf(i18n.M().PositionReported, rep.Instrument, rep.Amount, rep.EntryPrice)
	}

	// Drop tracked positions the exchange no longer reports. They were
	// closed out of band (liquidation, manual close, protective fill).
	for _, tracked := range r.state.Positions() {
		if _, ok := live[tracked.Symbol]; ok {
			continue
		}
		log.Printf(i18n.M().PositionGone, tracked.Symbol)
		if err := r.state.Forget(ctx, tracked.Symbol); err != nil {
			log.Printf(i18n.M().ReconcileError, err)
			continue
		}
		r.bus.Publish(events.EventPositionClosed, events.PositionPayload{
			Instrument: tracked.Symbol,
			Side:       tracked.Side,
			Amount:     tracked.Amount,
			EntryPrice: tracked.EntryPrice,
			Reason:     "exchange",
			Time:       time.Now().UTC(),
		})
	}

	for _, rep := range reports {
		if err := ctx.Err(); err != nil {
			return err
		}
		r.checkPosition(ctx, rep)
	}
	return nil
}

func (r *Reconciler) checkPosition(ctx context.Context, rep gateway.PositionReport) {
	tracked, ok := r.state.Position(rep.Instrument)
	if !ok {
		return
	}

	// In protective mode the resting TP/SL orders own the exit; the
	// reconciler only steps in when that protection is missing. The PnL
	// thresholds below are the manual-mode exit path.
	if r.opts.Protective {
		if r.unprotected(ctx, rep, tracked) {
			log.Printf(i18n.M().ProtectionMissing, rep.Instrument)
			r.close(ctx, rep, rep.MarkPrice, "unprotected")
		}
		return
	}

	price, err := r.exch.LastPrice(ctx, rep.Instrument)
	if err != nil {
		log.Printf(i18n.M().TickerFailed, rep.Instrument, err)
		return
	}
	pnl, roi := r.profit(rep, price)

	switch {
	case pnl >= r.opts.ProfitTarget:
		log.Printf(i18n.M().ThresholdReached, rep.Instrument, "profit target", pnl, roi)
		r.close(ctx, rep, price, "take_profit")
	case pnl <= -r.opts.LossLimit:
		log.Printf(i18n.M().ThresholdReached, rep.Instrument, "loss limit", pnl, roi)
		r.close(ctx, rep, price, "stop_loss")
	default:
		log.Printf(i18n.M().HoldingPosition, rep.Instrument, roi)
	}
}

// unprotected reports whether a position has outlived the grace period
// without a resting reduce-only stop or take-profit.
func (r *Reconciler) unprotected(ctx context.Context, rep gateway.PositionReport, tracked db.Position) bool {
	if time.Since(tracked.OpenedAt) < r.opts.ProtectionGrace {
		return false
	}
	orders, err := r.exch.OpenOrders(ctx, rep.Instrument)
	if err != nil {
		log.Printf(i18n.M().ReconcileError, err)
		return false
	}
	for _, o := range orders {
		if !o.ReduceOnly {
			continue
		}
		switch strings.ToUpper(o.Type) {
		case string(common.OrderTypeStopMarket), string(common.OrderTypeTakeProfitMarket):
			return false
		}
	}
	return true
}

// profit computes realized-if-closed-now PnL and ROI. Taker fees are
// charged on both the entry and the exit leg.
func (r *Reconciler) profit(rep gateway.PositionReport, price float64) (pnl, roi float64) {
	contractSize := 1.0
	if inst, ok := r.exch.Lookup(rep.Instrument); ok && inst.ContractSize > 0 {
		contractSize = inst.ContractSize
	}
	dir := 1.0
	if rep.Side == "SHORT" {
		dir = -1.0
	}
	size := rep.Amount * contractSize
	gross := dir * (price - rep.EntryPrice) * size
	fees := r.opts.FeeRate * (rep.EntryPrice + price) * size
	pnl = gross - fees

	lev := rep.Leverage
	if lev <= 0 {
		lev = 1
	}
	margin := rep.EntryPrice * size / float64(lev)
	if margin > 0 {
		roi = pnl / margin * 100
	}
	return pnl, roi
}

// close flattens a position with a reduce-only market order after
// cancelling its resting orders, then records the trade.
func (r *Reconciler) close(ctx context.Context, rep gateway.PositionReport, price float64, reason string) {
	if err := r.exch.CancelAllOrders(ctx, rep.Instrument); err != nil {
		log.Printf(i18n.M().ReconcileError, err)
	}

	side := common.SideSell
	if rep.Side == "SHORT" {
		side = common.SideBuy
	}
	if _, err := r.exch.MarketOrder(ctx, rep.Instrument, side, rep.Amount, true); err != nil {
		log.Printf(i18n.M().CloseFailed, rep.Instrument, err)
		return
	}
	log.Printf(i18n.M().PositionClosed, rep.Instrument, side)

	if err := r.state.Forget(ctx, rep.Instrument); err != nil {
		log.Printf(i18n.M().ReconcileError, err)
	}
	pnl, roi := r.profit(rep, price)
	if err := r.state.RecordTrade(ctx, db.Trade{
		ID:         uuid.NewString(),
		Symbol:     rep.Instrument,
		Side:       rep.Side,
		Amount:     rep.Amount,
		EntryPrice: rep.EntryPrice,
		ExitPrice:  price,
		PnL:        pnl,
		ROI:        roi,
		Reason:     reason,
		CreatedAt:  time.Now().UTC(),
	}); err != nil {
		log.Printf(i18n.M().ReconcileError, err)
	}
	r.bus.Publish(events.EventPositionClosed, events.PositionPayload{
		Instrument: rep.Instrument,
		Side:       rep.Side,
		Amount:     rep.Amount,
		EntryPrice: rep.EntryPrice,
		ExitPrice:  price,
		PnL:        pnl,
		ROI:        roi,
		Reason:     reason,
		Time:       time.Now().UTC(),
	})

	// Let the exchange settle before the loop touches this symbol again.
	select {
	case <-time.After(r.opts.SettlePause):
	case <-ctx.Done():
	}
}
