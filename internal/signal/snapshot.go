package signal

import (
	"errors"
	"fmt"

	"futures-core/internal/gateway"
	"futures-core/internal/indicators"
)

// ErrInsufficientData is returned when the candle history is too short for
// the configured indicator periods.
var ErrInsufficientData = errors.New("insufficient candle history")

// Snapshot is everything the analyzer needs about one instrument, computed
// once from the candle history. It carries no exchange handles so decisions
// stay pure and replayable.
type Snapshot struct {
	Close     float64
	PrevClose float64
	Prev2     float64 // close two bars back, for engulfing bodies
	High      float64
	Low       float64

	Volume    float64
	VolumeAvg float64

	RSI          float64
	PrevRSI      float64
	MACDHist     float64
	PrevMACDHist float64
	SMA          float64
	EMA          float64
	TrendEMA     float64
}

// BuildSnapshot computes all indicator values off the candle history. The
// candles must be ordered oldest first; the snapshot describes the last bar.
func BuildSnapshot(candles []gateway.Candle, cfg Config) (Snapshot, error) {
	if len(candles) < cfg.MinCandles() {
		return Snapshot{}, fmt.Errorf("%w: have %d, need %d", ErrInsufficientData, len(candles), cfg.MinCandles())
	}
	closes := make([]float64, len(candles))
	volumes := make([]float64, len(candles))
	for i, c := range candles {
		closes[i] = c.Close
		volumes[i] = c.Volume
	}

	p := cfg.Periods
	rsi := indicators.RSI(closes, p.RSI)
	sma := indicators.SMA(closes, p.SMA)
	ema := indicators.EMA(closes, p.EMA)
	trend := indicators.EMA(closes, p.TrendEMA)
	macd := indicators.MACD(closes, p.MACDFast, p.MACDSlow, p.MACDSignal)
	volAvg := indicators.SMA(volumes, p.VolumeAvg)

	if len(rsi) < 2 || len(sma) == 0 || len(ema) == 0 || len(trend) == 0 ||
		len(volAvg) == 0 || macd == nil || len(macd.Histogram) < 2 {
		return Snapshot{}, ErrInsufficientData
	}

	last := candles[len(candles)-1]
	snap := Snapshot{
		Close:     last.Close,
		PrevClose: closes[len(closes)-2],
		High:      last.High,
		Low:       last.Low,
		Volume:    last.Volume,
	}
	if len(closes) >= 3 {
		snap.Prev2 = closes[len(closes)-3]
	}
	snap.RSI, _ = indicators.Last(rsi)
	snap.PrevRSI = rsi[len(rsi)-2]
	snap.SMA, _ = indicators.Last(sma)
	snap.EMA, _ = indicators.Last(ema)
	snap.TrendEMA, _ = indicators.Last(trend)
	snap.VolumeAvg, _ = indicators.Last(volAvg)
	snap.MACDHist, _ = indicators.Last(macd.Histogram)
	snap.PrevMACDHist = macd.Histogram[len(macd.Histogram)-2]
	return snap, nil
}
