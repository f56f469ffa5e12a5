// Package engine runs the trading loop: reconcile, gate, scan, open.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"futures-core/internal/events"
	"futures-core/internal/gateway"
	"futures-core/internal/monitor"
	"futures-core/internal/signal"
	"futures-core/internal/state"
	"futures-core/pkg/i18n"
)

// ErrTargetReached stops the loop once the balance target is met with a
// flat book.
var ErrTargetReached = errors.New("balance target reached")

// Market is the slice of the gateway the engine itself needs.
type Market interface {
	LoadCatalog(ctx context.Context) (int, error)
	FreeBalance(ctx context.Context, asset string) (float64, error)
	Candles(ctx context.Context, id, timeframe string, limit int) ([]gateway.Candle, error)
}

// CandidateSource yields the instruments worth scanning this cycle.
type CandidateSource interface {
	Select(ctx context.Context) ([]string, error)
}

// PositionOpener enters a position in the given direction.
type PositionOpener interface {
	Open(ctx context.Context, id string, dir signal.Direction) error
}

// PositionReconciler trues up tracked positions against the exchange.
type PositionReconciler interface {
	Reconcile(ctx context.Context) error
}

// Options holds the loop timings and gates.
type Options struct {
	QuoteAsset    string
	Timeframe     string
	CandleLimit   int
	MaxPositions  int
	TargetBalance float64 // 0 disables the stop condition
	PollInterval  time.Duration
	OpenPause     time.Duration
	CapWait       time.Duration
	TargetWait    time.Duration
	ErrorBackoff  time.Duration
}

// Engine drives the ticker cycle.
type Engine struct {
	market     Market
	candidates CandidateSource
	opener     PositionOpener
	reconciler PositionReconciler
	state      *state.Manager
	bus        *events.Bus
	analyzer   signal.Config
	opts       Options
	metrics    *monitor.SystemMetrics
}

// SetMetrics attaches a metrics sink for cycle timings.
func (e *Engine) SetMetrics(m *monitor.SystemMetrics) {
	e.metrics = m
}

// New wires an engine.
func New(market Market, candidates CandidateSource, opener PositionOpener,
	reconciler PositionReconciler, st *state.Manager, bus *events.Bus,
	analyzer signal.Config, opts Options) *Engine {
	if opts.CandleLimit < analyzer.MinCandles() {
		opts.CandleLimit = analyzer.MinCandles()
	}
	return &Engine{
		market:     market,
		candidates: candidates,
		opener:     opener,
		reconciler: reconciler,
		state:      st,
		bus:        bus,
		analyzer:   analyzer,
		opts:       opts,
	}
}

// Run loops until the context is cancelled or the balance target is met
// with no open positions. Cycle errors back the loop off, never kill it.
func (e *Engine) Run(ctx context.Context) error {
	for {
		started := time.Now()
		err := e.cycle(ctx)
		if e.metrics != nil {
			e.metrics.CycleLatency.RecordDuration(time.Since(started))
			if err == nil {
				e.metrics.IncrementCycles()
			}
		}
		switch {
		case errors.Is(err, ErrTargetReached):
			log.Print(i18n.M().BotStopped)
			e.bus.Publish(events.EventBotStopped, time.Now().UTC())
			return nil
		case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
			return ctx.Err()
		case err != nil:
			log.Printf(i18n.M().CycleError, err, e.opts.ErrorBackoff)
			e.bus.Publish(events.EventCycleError, events.ErrorPayload{
				Stage:   "cycle",
				Message: err.Error(),
				Time:    time.Now().UTC(),
			})
			if err := sleep(ctx, e.opts.ErrorBackoff); err != nil {
				return err
			}
		default:
			if err := sleep(ctx, e.opts.PollInterval); err != nil {
				return err
			}
		}
	}
}

func (e *Engine) cycle(ctx context.Context) error {
	log.Printf(i18n.M().CycleStarted, time.Now().UTC().Format(time.RFC3339))

	// Step sizes, filters and listings move; the catalog is only good for
	// one cycle.
	count, err := e.market.LoadCatalog(ctx)
	if err != nil {
		return fmt.Errorf("load catalog: %w", err)
	}
	log.Printf(i18n.M().CatalogLoaded, count, e.opts.QuoteAsset)

	balance, err := e.market.FreeBalance(ctx, e.opts.QuoteAsset)
	if err != nil {
		return fmt.Errorf("fetch balance: %w", err)
	}
	log.Printf(i18n.M().BalanceFetched, balance, e.opts.QuoteAsset)
	e.bus.Publish(events.EventBalanceUpdate, events.BalancePayload{
		Asset: e.opts.QuoteAsset,
		Free:  balance,
		Time:  time.Now().UTC(),
	})

	if err := e.reconciler.Reconcile(ctx); err != nil {
		return fmt.Errorf("reconcile: %w", err)
	}

	if e.opts.TargetBalance > 0 && balance >= e.opts.TargetBalance {
		open := e.state.Count()
		if open == 0 {
			return ErrTargetReached
		}
		log.Printf(i18n.M().TargetReached, e.opts.TargetBalance)
		log.Printf(i18n.M().TargetHoldOnly, open)
		return sleep(ctx, e.opts.TargetWait)
	}

	if e.state.Count() >= e.opts.MaxPositions {
		log.Printf(i18n.M().MaxPositionsHold, e.opts.MaxPositions)
		return sleep(ctx, e.opts.CapWait)
	}

	return e.scan(ctx)
}

func (e *Engine) scan(ctx context.Context) error {
	candidates, err := e.candidates.Select(ctx)
	if err != nil {
		return fmt.Errorf("select candidates: %w", err)
	}
	if len(candidates) == 0 {
		log.Print(i18n.M().NoCandidates)
		return nil
	}
	log.Printf(i18n.M().CandidatesSelected, len(candidates), candidates)
	e.bus.Publish(events.EventCandidates, events.CandidatesPayload{
		Instruments: candidates,
		Time:        time.Now().UTC(),
	})

	for _, id := range candidates {
		if err := ctx.Err(); err != nil {
			return err
		}
		if e.state.Count() >= e.opts.MaxPositions {
			break
		}
		if e.state.IsBlacklisted(id) {
			log.Printf(i18n.M().ScanSkippedListed, id)
			continue
		}
		if _, open := e.state.Position(id); open {
			log.Printf(i18n.M().ScanSkippedOpen, id)
			continue
		}
		if !e.state.TryLock(id) {
			log.Printf(i18n.M().ScanSkippedLocked, id)
			continue
		}
		opened := e.evaluate(ctx, id)
		e.state.Unlock(id)
		if opened {
			// Let the entry settle before hitting the next instrument.
			if err := sleep(ctx, e.opts.OpenPause); err != nil {
				return err
			}
		}
	}
	return nil
}

// evaluate analyzes one candidate and opens a position on a clear signal.
// Failures here stay local to the instrument.
func (e *Engine) evaluate(ctx context.Context, id string) bool {
	candles, err := e.market.Candles(ctx, id, e.opts.Timeframe, e.opts.CandleLimit)
	if err != nil {
		log.Printf(i18n.M().MarketDataFailed, id, err)
		return false
	}
	snap, err := signal.BuildSnapshot(candles, e.analyzer)
	if err != nil {
		if errors.Is(err, signal.ErrInsufficientData) {
			// History will not grow enough mid-run; stop rescanning it.
			e.state.Blacklist(id)
			log.Printf(i18n.M().Blacklisted, id, err)
		} else {
			log.Printf(i18n.M().IndicatorsFailed, id, err)
		}
		return false
	}

	decision := signal.Analyze(snap, e.analyzer)
	if decision.Direction == signal.None {
		log.Printf(i18n.M().NoSignal, id)
		return false
	}
	log.Printf(i18n.M().SignalFound, decision.Direction, id, decision.LongScore, decision.ShortScore)
	e.bus.Publish(events.EventSignal, events.SignalPayload{
		Instrument: id,
		Direction:  string(decision.Direction),
		LongScore:  decision.LongScore,
		ShortScore: decision.ShortScore,
		Time:       time.Now().UTC(),
	})

	if err := e.opener.Open(ctx, id, decision.Direction); err != nil {
		log.Printf(i18n.M().OpenFailed, id, err)
		return false
	}
	return true
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
