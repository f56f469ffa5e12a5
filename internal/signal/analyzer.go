// Package signal turns candle history into open-position decisions. The
// analyzer itself is a pure function over a Snapshot so the same inputs
// always yield the same call.
package signal

// Direction is the analyzer's verdict for one instrument.
type Direction string

const (
	Long  Direction = "LONG"
	Short Direction = "SHORT"
	None  Direction = "NONE"
)

// Decision carries the verdict and the scores behind it.
type Decision struct {
	Direction  Direction
	LongScore  float64
	ShortScore float64
	Filtered   string // non-empty when the candle was rejected before scoring
}

// Analyze scores a snapshot and decides whether to go long, short, or stand
// aside. Candles have synthetic opens (open taken as the previous close),
// so body math runs over consecutive closes.
func Analyze(s Snapshot, cfg Config) Decision {
	t := cfg.Thresholds
	w := cfg.Weights

	body := s.Close - s.PrevClose
	absBody := body
	if absBody < 0 {
		absBody = -absBody
	}

	// Indecisive or illiquid candles are not worth acting on.
	if absBody < s.Close*t.DojiBody {
		return Decision{Direction: None, Filtered: "doji"}
	}
	if s.VolumeAvg > 0 && s.Volume < s.VolumeAvg*t.LowVolume {
		return Decision{Direction: None, Filtered: "low_volume"}
	}

	var long, short float64

	// MACD histogram zero cross
	if s.MACDHist > 0 && s.PrevMACDHist <= 0 {
		long += w.MACDCross
	} else if s.MACDHist < 0 && s.PrevMACDHist >= 0 {
		short += w.MACDCross
	}

	// RSI extremes must hold for two bars; a single print past the
	// threshold is noise.
	if s.RSI < t.RSIOversold && s.PrevRSI < t.RSIOversold {
		long += w.RSI
	} else if s.RSI > t.RSIOverbought && s.PrevRSI > t.RSIOverbought {
		short += w.RSI
	}

	// Volume spike, direction read off RSI
	if s.VolumeAvg > 0 && s.Volume > s.VolumeAvg*t.VolumeSpike {
		if s.RSI < 50 {
			long += w.VolumeSpike
		} else {
			short += w.VolumeSpike
		}
	}

	// Close relative to the moving averages; sitting exactly on the
	// average reads as weakness.
	if s.Close > s.SMA {
		long += w.SMA
	} else {
		short += w.SMA
	}
	if s.Close > s.EMA {
		long += w.EMA
	} else {
		short += w.EMA
	}

	// Engulfing pattern, only on a strong candle. Strength is the body
	// against the bar's true high-low span, so wide-wick candles do not
	// score the pattern.
	if rng := s.High - s.Low; rng > 0 && absBody > rng*t.StrongBody {
		prevBody := s.PrevClose - s.Prev2
		if body > 0 && prevBody < 0 && s.Close >= s.Prev2 {
			long += w.Engulfing
		} else if body < 0 && prevBody > 0 && s.Close <= s.Prev2 {
			short += w.Engulfing
		}
	}

	d := Decision{Direction: None, LongScore: long, ShortScore: short}
	uptrend := s.Close > s.TrendEMA
	switch {
	case long >= t.MinScore && long > short && uptrend:
		d.Direction = Long
	case short >= t.MinScore && short > long && !uptrend:
		d.Direction = Short
	}
	return d
}
