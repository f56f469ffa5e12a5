package trader

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"futures-core/internal/events"
	"futures-core/internal/gateway"
	"futures-core/internal/signal"
	"futures-core/internal/state"
	"futures-core/pkg/db"
	"futures-core/pkg/exchanges/common"
)

type orderCall struct {
	id         string
	side       common.Side
	qty        float64
	reduceOnly bool
}

type fakeExchange struct {
	inst         map[string]gateway.Instrument
	price        map[string]float64
	priceErr     error
	positions    []gateway.PositionReport
	positionsErr error
	openOrders   map[string][]gateway.OrderReport

	orders      []orderCall
	protective  []orderCall
	cancelled   []string
	leverage    map[string]int
	orderErr    error
	leverageErr error
	noConfirm   bool // entries never show up in the position report
}

func newFakeExchange() *fakeExchange {
	return &fakeExchange{
		inst:       make(map[string]gateway.Instrument),
		price:      make(map[string]float64),
		openOrders: make(map[string][]gateway.OrderReport),
		leverage:   make(map[string]int),
	}
}

func (f *fakeExchange) Lookup(id string) (gateway.Instrument, bool) {
	inst, ok := f.inst[id]
	return inst, ok
}

func (f *fakeExchange) LastPrice(ctx context.Context, id string) (float64, error) {
	if f.priceErr != nil {
		return 0, f.priceErr
	}
	return f.price[id], nil
}

func (f *fakeExchange) Positions(ctx context.Context) ([]gateway.PositionReport, error) {
	return f.positions, f.positionsErr
}

func (f *fakeExchange) OpenOrders(ctx context.Context, id string) ([]gateway.OrderReport, error) {
	return f.openOrders[id], nil
}

func (f *fakeExchange) SetLeverage(ctx context.Context, id string, lev int) error {
	if f.leverageErr != nil {
		return f.leverageErr
	}
	f.leverage[id] = lev
	return nil
}

func (f *fakeExchange) MarketOrder(ctx context.Context, id string, side common.Side, qty float64, reduceOnly bool) (gateway.OrderAck, error) {
	if f.orderErr != nil {
		return gateway.OrderAck{}, f.orderErr
	}
	f.orders = append(f.orders, orderCall{id: id, side: side, qty: qty, reduceOnly: reduceOnly})
	if !reduceOnly && !f.noConfirm {
		// fills land in the position risk report, like the real venue
		posSide := "LONG"
		if side == common.SideSell {
			posSide = "SHORT"
		}
		f.positions = append(f.positions, gateway.PositionReport{
			Instrument: id, Symbol: id, Side: posSide,
			Amount: qty, EntryPrice: f.price[id], Leverage: f.leverage[id],
		})
	}
	return gateway.OrderAck{OrderID: "1", Status: "FILLED", AvgPrice: f.price[id]}, nil
}

func (f *fakeExchange) ProtectiveOrder(ctx context.Context, id string, side common.Side, typ common.OrderType, qty, stop float64) (gateway.OrderAck, error) {
	f.protective = append(f.protective, orderCall{id: id, side: side, qty: qty, reduceOnly: true})
	return gateway.OrderAck{OrderID: "2", Status: "NEW"}, nil
}

func (f *fakeExchange) CancelAllOrders(ctx context.Context, id string) error {
	f.cancelled = append(f.cancelled, id)
	return nil
}

func defaultOpenerOpts() OpenerOptions {
	return OpenerOptions{
		TradeNotional: 20,
		MinNotional:   5,
		Leverage:      10,
		ProfitTarget:  1,
		LossLimit:     3,
	}
}

func TestOpenSizesFromNotional(t *testing.T) {
	f := newFakeExchange()
	f.inst["ETH/USDT"] = gateway.Instrument{ID: "ETH/USDT", StepSize: 0.01, ContractSize: 1}
	f.price["ETH/USDT"] = 2000

	st := state.NewManager(nil)
	o := NewOpener(f, st, events.NewBus(), defaultOpenerOpts())
	if err := o.Open(context.Background(), "ETH/USDT", signal.Long); err != nil {
		t.Fatal(err)
	}
	if len(f.orders) != 1 {
		t.Fatalf("orders = %d, want 1", len(f.orders))
	}
	call := f.orders[0]
	if call.side != common.SideBuy || call.reduceOnly {
		t.Fatalf("unexpected order %+v", call)
	}
	// 20 / 2000 = 0.01, exactly one step
	if !almost(call.qty, 0.01) {
		t.Fatalf("qty = %v, want 0.01", call.qty)
	}
	if f.leverage["ETH/USDT"] != 10 {
		t.Fatalf("leverage = %d, want 10", f.leverage["ETH/USDT"])
	}
	if _, ok := st.Position("ETH/USDT"); !ok {
		t.Fatal("position not tracked after open")
	}
}

func TestOpenBumpsToMinNotional(t *testing.T) {
	f := newFakeExchange()
	f.inst["XRP/USDT"] = gateway.Instrument{ID: "XRP/USDT", StepSize: 0.5, ContractSize: 1}
	f.price["XRP/USDT"] = 2

	opts := defaultOpenerOpts()
	opts.TradeNotional = 4 // below the exchange minimum of 5
	o := NewOpener(f, state.NewManager(nil), events.NewBus(), opts)
	if err := o.Open(context.Background(), "XRP/USDT", signal.Long); err != nil {
		t.Fatal(err)
	}
	// floor(5/2/0.5)*0.5 = 2.5 contracts = $5 notional
	if !almost(f.orders[0].qty, 2.5) {
		t.Fatalf("qty = %v, want 2.5", f.orders[0].qty)
	}
}

func TestOpenFailsBelowStep(t *testing.T) {
	f := newFakeExchange()
	f.inst["BTC/USDT"] = gateway.Instrument{ID: "BTC/USDT", StepSize: 1, ContractSize: 1}
	f.price["BTC/USDT"] = 60000 // one whole contract is far beyond the notional

	o := NewOpener(f, state.NewManager(nil), events.NewBus(), defaultOpenerOpts())
	if err := o.Open(context.Background(), "BTC/USDT", signal.Long); err == nil {
		t.Fatal("expected sizing failure")
	}
	if len(f.orders) != 0 {
		t.Fatal("no order should be submitted")
	}
}

func TestOpenShortSells(t *testing.T) {
	f := newFakeExchange()
	f.inst["ETH/USDT"] = gateway.Instrument{ID: "ETH/USDT", StepSize: 0.01, ContractSize: 1}
	f.price["ETH/USDT"] = 2000

	o := NewOpener(f, state.NewManager(nil), events.NewBus(), defaultOpenerOpts())
	if err := o.Open(context.Background(), "ETH/USDT", signal.Short); err != nil {
		t.Fatal(err)
	}
	if f.orders[0].side != common.SideSell {
		t.Fatalf("side = %s, want SELL", f.orders[0].side)
	}
}

func TestOpenPlacesProtectiveOrders(t *testing.T) {
	f := newFakeExchange()
	f.inst["ETH/USDT"] = gateway.Instrument{ID: "ETH/USDT", StepSize: 0.01, ContractSize: 1}
	f.price["ETH/USDT"] = 2000

	opts := defaultOpenerOpts()
	opts.Protective = true
	st := state.NewManager(nil)
	o := NewOpener(f, st, events.NewBus(), opts)
	if err := o.Open(context.Background(), "ETH/USDT", signal.Long); err != nil {
		t.Fatal(err)
	}
	if len(f.protective) != 2 {
		t.Fatalf("protective orders = %d, want 2", len(f.protective))
	}
	for _, p := range f.protective {
		if p.side != common.SideSell {
			t.Fatalf("protective side = %s, want SELL for a long", p.side)
		}
	}
	pos, _ := st.Position("ETH/USDT")
	if pos.TakeProfit <= pos.EntryPrice || pos.StopLoss >= pos.EntryPrice {
		t.Fatalf("tp %v / sl %v around entry %v look inverted", pos.TakeProfit, pos.StopLoss, pos.EntryPrice)
	}
}

func TestOpenLeverageFailureAborts(t *testing.T) {
	f := newFakeExchange()
	f.inst["ETH/USDT"] = gateway.Instrument{ID: "ETH/USDT", StepSize: 0.01, ContractSize: 1}
	f.price["ETH/USDT"] = 2000
	f.leverageErr = errors.New("leverage not allowed")

	st := state.NewManager(nil)
	o := NewOpener(f, st, events.NewBus(), defaultOpenerOpts())
	if err := o.Open(context.Background(), "ETH/USDT", signal.Long); err == nil {
		t.Fatal("expected leverage failure to abort the open")
	}
	if len(f.orders) != 0 {
		t.Fatalf("orders = %+v, entry must not be submitted after a leverage failure", f.orders)
	}
}

func TestOpenUnconfirmedNotTracked(t *testing.T) {
	f := newFakeExchange()
	f.inst["ETH/USDT"] = gateway.Instrument{ID: "ETH/USDT", StepSize: 0.01, ContractSize: 1}
	f.price["ETH/USDT"] = 2000
	f.noConfirm = true

	st := state.NewManager(nil)
	o := NewOpener(f, st, events.NewBus(), defaultOpenerOpts())
	if err := o.Open(context.Background(), "ETH/USDT", signal.Long); err == nil {
		t.Fatal("expected an error when the position risk report lacks the entry")
	}
	if _, ok := st.Position("ETH/USDT"); ok {
		t.Fatal("unconfirmed position must not be tracked; the reconciler adopts it later")
	}
}

func defaultReconcilerOpts() ReconcilerOptions {
	return ReconcilerOptions{
		ProfitTarget:    1,
		LossLimit:       3,
		FeeRate:         0.0004,
		ProtectionGrace: 10 * time.Second,
		SettlePause:     time.Millisecond,
	}
}

func report(inst, side string, amount, entry, mark float64, lev int) gateway.PositionReport {
	return gateway.PositionReport{
		Instrument: inst, Symbol: inst, Side: side,
		Amount: amount, EntryPrice: entry, MarkPrice: mark, Leverage: lev,
	}
}

func TestReconcileAdoptsExchangePositions(t *testing.T) {
	f := newFakeExchange()
	f.inst["ETH/USDT"] = gateway.Instrument{ID: "ETH/USDT", ContractSize: 1}
	f.positions = []gateway.PositionReport{report("ETH/USDT", "LONG", 0.01, 2000, 2000, 10)}
	f.price["ETH/USDT"] = 2000

	st := state.NewManager(nil)
	r := NewReconciler(f, st, events.NewBus(), defaultReconcilerOpts())
	if err := r.Reconcile(context.Background()); err != nil {
		t.Fatal(err)
	}
	pos, ok := st.Position("ETH/USDT")
	if !ok {
		t.Fatal("exchange position not adopted")
	}
	if pos.Amount != 0.01 || pos.Side != "LONG" {
		t.Fatalf("unexpected tracked position %+v", pos)
	}
}

func TestReconcileDropsGonePositions(t *testing.T) {
	f := newFakeExchange()
	st := state.NewManager(nil)
	_ = st.Track(context.Background(), db.Position{Symbol: "ETH/USDT", Side: "LONG", Amount: 0.01})

	bus := events.NewBus()
	closed, unsub := bus.Subscribe(events.EventPositionClosed, 1)
	defer unsub()

	r := NewReconciler(f, st, bus, defaultReconcilerOpts())
	if err := r.Reconcile(context.Background()); err != nil {
		t.Fatal(err)
	}
	if _, ok := st.Position("ETH/USDT"); ok {
		t.Fatal("orphan position still tracked")
	}
	select {
	case ev := <-closed:
		if ev.(events.PositionPayload).Reason != "exchange" {
			t.Fatalf("reason = %s, want exchange", ev.(events.PositionPayload).Reason)
		}
	default:
		t.Fatal("no close event published")
	}
}

func TestReconcileClosesAtProfitTarget(t *testing.T) {
	f := newFakeExchange()
	f.inst["ETH/USDT"] = gateway.Instrument{ID: "ETH/USDT", ContractSize: 1}
	f.positions = []gateway.PositionReport{report("ETH/USDT", "LONG", 0.01, 2000, 2200, 10)}
	f.price["ETH/USDT"] = 2200 // gross +2.00, fees ~0.017: well past the $1 target

	st := state.NewManager(nil)
	r := NewReconciler(f, st, events.NewBus(), defaultReconcilerOpts())
	if err := r.Reconcile(context.Background()); err != nil {
		t.Fatal(err)
	}
	if len(f.cancelled) != 1 || f.cancelled[0] != "ETH/USDT" {
		t.Fatalf("cancelled = %v, want resting orders cancelled first", f.cancelled)
	}
	if len(f.orders) != 1 {
		t.Fatalf("orders = %d, want one close", len(f.orders))
	}
	c := f.orders[0]
	if c.side != common.SideSell || !c.reduceOnly || !almost(c.qty, 0.01) {
		t.Fatalf("close order %+v not a reduce-only sell of full size", c)
	}
	if _, ok := st.Position("ETH/USDT"); ok {
		t.Fatal("closed position still tracked")
	}
}

func TestReconcileClosesShortAtLossLimit(t *testing.T) {
	f := newFakeExchange()
	f.inst["ETH/USDT"] = gateway.Instrument{ID: "ETH/USDT", ContractSize: 1}
	// short from 2000, price ran to 2400: gross -4.00
	f.positions = []gateway.PositionReport{report("ETH/USDT", "SHORT", 0.01, 2000, 2400, 10)}
	f.price["ETH/USDT"] = 2400

	st := state.NewManager(nil)
	r := NewReconciler(f, st, events.NewBus(), defaultReconcilerOpts())
	if err := r.Reconcile(context.Background()); err != nil {
		t.Fatal(err)
	}
	if len(f.orders) != 1 || f.orders[0].side != common.SideBuy || !f.orders[0].reduceOnly {
		t.Fatalf("orders = %+v, want reduce-only buy back", f.orders)
	}
}

func TestReconcileHoldsInsideThresholds(t *testing.T) {
	f := newFakeExchange()
	f.inst["ETH/USDT"] = gateway.Instrument{ID: "ETH/USDT", ContractSize: 1}
	f.positions = []gateway.PositionReport{report("ETH/USDT", "LONG", 0.01, 2000, 2010, 10)}
	f.price["ETH/USDT"] = 2010 // gross +0.10, inside both thresholds

	st := state.NewManager(nil)
	r := NewReconciler(f, st, events.NewBus(), defaultReconcilerOpts())
	if err := r.Reconcile(context.Background()); err != nil {
		t.Fatal(err)
	}
	if len(f.orders) != 0 {
		t.Fatalf("orders = %+v, want none while holding", f.orders)
	}
	if _, ok := st.Position("ETH/USDT"); !ok {
		t.Fatal("held position dropped")
	}
}

func TestReconcileForceClosesUnprotected(t *testing.T) {
	f := newFakeExchange()
	f.inst["ETH/USDT"] = gateway.Instrument{ID: "ETH/USDT", ContractSize: 1}
	f.positions = []gateway.PositionReport{report("ETH/USDT", "LONG", 0.01, 2000, 2000, 10)}
	f.price["ETH/USDT"] = 2000
	// no resting orders for the symbol

	st := state.NewManager(nil)
	_ = st.Track(context.Background(), db.Position{
		Symbol: "ETH/USDT", Side: "LONG", Amount: 0.01,
		OpenedAt: time.Now().Add(-time.Minute), // well past the grace period
	})

	opts := defaultReconcilerOpts()
	opts.Protective = true
	r := NewReconciler(f, st, events.NewBus(), opts)
	if err := r.Reconcile(context.Background()); err != nil {
		t.Fatal(err)
	}
	if len(f.orders) != 1 || !f.orders[0].reduceOnly {
		t.Fatalf("orders = %+v, want forced reduce-only close", f.orders)
	}
}

func TestReconcileGracePeriodHoldsFire(t *testing.T) {
	f := newFakeExchange()
	f.inst["ETH/USDT"] = gateway.Instrument{ID: "ETH/USDT", ContractSize: 1}
	f.positions = []gateway.PositionReport{report("ETH/USDT", "LONG", 0.01, 2000, 2000, 10)}
	f.price["ETH/USDT"] = 2000

	st := state.NewManager(nil)
	_ = st.Track(context.Background(), db.Position{
		Symbol: "ETH/USDT", Side: "LONG", Amount: 0.01,
		OpenedAt: time.Now(), // just opened
	})

	opts := defaultReconcilerOpts()
	opts.Protective = true
	r := NewReconciler(f, st, events.NewBus(), opts)
	if err := r.Reconcile(context.Background()); err != nil {
		t.Fatal(err)
	}
	if len(f.orders) != 0 {
		t.Fatalf("orders = %+v, want none inside grace period", f.orders)
	}
}

func TestReconcileProtectedPositionSurvives(t *testing.T) {
	f := newFakeExchange()
	f.inst["ETH/USDT"] = gateway.Instrument{ID: "ETH/USDT", ContractSize: 1}
	f.positions = []gateway.PositionReport{report("ETH/USDT", "LONG", 0.01, 2000, 2000, 10)}
	f.price["ETH/USDT"] = 2000
	f.openOrders["ETH/USDT"] = []gateway.OrderReport{
		{OrderID: "7", Type: "STOP_MARKET", Side: "SELL", ReduceOnly: true, StopPrice: 1700},
	}

	st := state.NewManager(nil)
	_ = st.Track(context.Background(), db.Position{
		Symbol: "ETH/USDT", Side: "LONG", Amount: 0.01,
		OpenedAt: time.Now().Add(-time.Minute),
	})

	opts := defaultReconcilerOpts()
	opts.Protective = true
	r := NewReconciler(f, st, events.NewBus(), opts)
	if err := r.Reconcile(context.Background()); err != nil {
		t.Fatal(err)
	}
	if len(f.orders) != 0 {
		t.Fatalf("orders = %+v, protected position should not be closed", f.orders)
	}
}

func TestReconcileProtectiveModeLeavesExitsToOrders(t *testing.T) {
	f := newFakeExchange()
	f.inst["ETH/USDT"] = gateway.Instrument{ID: "ETH/USDT", ContractSize: 1}
	// long from 2000 with the price far past the $1 profit target
	f.positions = []gateway.PositionReport{report("ETH/USDT", "LONG", 0.01, 2000, 2200, 10)}
	f.price["ETH/USDT"] = 2200
	f.openOrders["ETH/USDT"] = []gateway.OrderReport{
		{OrderID: "7", Type: "TAKE_PROFIT_MARKET", Side: "SELL", ReduceOnly: true, StopPrice: 2100},
		{OrderID: "8", Type: "STOP_MARKET", Side: "SELL", ReduceOnly: true, StopPrice: 1700},
	}

	st := state.NewManager(nil)
	_ = st.Track(context.Background(), db.Position{
		Symbol: "ETH/USDT", Side: "LONG", Amount: 0.01,
		OpenedAt: time.Now().Add(-time.Minute),
	})

	opts := defaultReconcilerOpts()
	opts.Protective = true
	r := NewReconciler(f, st, events.NewBus(), opts)
	if err := r.Reconcile(context.Background()); err != nil {
		t.Fatal(err)
	}
	if len(f.orders) != 0 {
		t.Fatalf("orders = %+v, resting TP/SL own the exit in protective mode", f.orders)
	}
	if _, ok := st.Position("ETH/USDT"); !ok {
		t.Fatal("protected position dropped")
	}
}

func TestReconcileListFailureAborts(t *testing.T) {
	f := newFakeExchange()
	f.positionsErr = errors.New("rate limited")
	r := NewReconciler(f, state.NewManager(nil), events.NewBus(), defaultReconcilerOpts())
	if err := r.Reconcile(context.Background()); err == nil {
		t.Fatal("expected error")
	}
}

func TestProfitMath(t *testing.T) {
	f := newFakeExchange()
	f.inst["ETH/USDT"] = gateway.Instrument{ID: "ETH/USDT", ContractSize: 1}
	r := NewReconciler(f, state.NewManager(nil), events.NewBus(), defaultReconcilerOpts())

	tests := []struct {
		name    string
		rep     gateway.PositionReport
		price   float64
		wantPnL float64
		wantROI float64
	}{
		{
			name:    "long gain",
			rep:     report("ETH/USDT", "LONG", 1, 100, 0, 10),
			price:   110,
			wantPnL: 10 - 0.0004*210, // gross 10 minus fees on both legs
			wantROI: (10 - 0.0004*210) / 10 * 100,
		},
		{
			name:    "short gain",
			rep:     report("ETH/USDT", "SHORT", 1, 100, 0, 10),
			price:   90,
			wantPnL: 10 - 0.0004*190,
			wantROI: (10 - 0.0004*190) / 10 * 100,
		},
		{
			name:    "zero leverage guarded",
			rep:     report("ETH/USDT", "LONG", 1, 100, 0, 0),
			price:   110,
			wantPnL: 10 - 0.0004*210,
			wantROI: (10 - 0.0004*210) / 100 * 100, // margin falls back to full notional
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pnl, roi := r.profit(tt.rep, tt.price)
			if !almost(pnl, tt.wantPnL) {
				t.Errorf("pnl = %v, want %v", pnl, tt.wantPnL)
			}
			if !almost(roi, tt.wantROI) {
				t.Errorf("roi = %v, want %v", roi, tt.wantROI)
			}
		})
	}
}

func almost(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}
