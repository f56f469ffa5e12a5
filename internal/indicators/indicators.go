// Package indicators provides the pure series math used by the signal
// analyzer. All functions return slices aligned to the tail of the input:
// the last element of the output always corresponds to the last input value.
package indicators

// SMA returns the simple moving average series. The result has
// len(values)-period+1 entries, or nil when there is not enough data.
func SMA(values []float64, period int) []float64 {
	if period <= 0 || len(values) < period {
		return nil
	}
	out := make([]float64, 0, len(values)-period+1)
	var sum float64
	for i, v := range values {
		sum += v
		if i >= period {
			sum -= values[i-period]
		}
		if i >= period-1 {
			out = append(out, sum/float64(period))
		}
	}
	return out
}

// EMA returns the exponential moving average series seeded with the SMA of
// the first period values. The result has len(values)-period+1 entries.
func EMA(values []float64, period int) []float64 {
	if period <= 0 || len(values) < period {
		return nil
	}
	k := 2.0 / float64(period+1)
	out := make([]float64, 0, len(values)-period+1)
	var seed float64
	for i := 0; i < period; i++ {
		seed += values[i]
	}
	prev := seed / float64(period)
	out = append(out, prev)
	for i := period; i < len(values); i++ {
		prev = (values[i]-prev)*k + prev
		out = append(out, prev)
	}
	return out
}

// RSI returns the relative strength index with Wilder smoothing. The result
// has len(values)-period entries; values below 30 read oversold, above 70
// overbought.
func RSI(values []float64, period int) []float64 {
	if period <= 0 || len(values) <= period {
		return nil
	}
	var avgGain, avgLoss float64
	for i := 1; i <= period; i++ {
		d := values[i] - values[i-1]
		if d > 0 {
			avgGain += d
		} else {
			avgLoss -= d
		}
	}
	avgGain /= float64(period)
	avgLoss /= float64(period)

	out := make([]float64, 0, len(values)-period)
	out = append(out, rsiValue(avgGain, avgLoss))
	for i := period + 1; i < len(values); i++ {
		d := values[i] - values[i-1]
		var gain, loss float64
		if d > 0 {
			gain = d
		} else {
			loss = -d
		}
		avgGain = (avgGain*float64(period-1) + gain) / float64(period)
		avgLoss = (avgLoss*float64(period-1) + loss) / float64(period)
		out = append(out, rsiValue(avgGain, avgLoss))
	}
	return out
}

func rsiValue(avgGain, avgLoss float64) float64 {
	if avgLoss == 0 {
		return 100
	}
	rs := avgGain / avgLoss
	return 100 - 100/(1+rs)
}

// MACDResult holds the aligned MACD line, signal line and histogram.
type MACDResult struct {
	MACD      []float64
	Signal    []float64
	Histogram []float64
}

// MACD returns the moving average convergence divergence series. All three
// result slices share the same length and end at the last input value. Nil
// when the input is shorter than slow+signal-1.
func MACD(values []float64, fast, slow, signal int) *MACDResult {
	if fast <= 0 || slow <= fast || signal <= 0 {
		return nil
	}
	if len(values) < slow+signal-1 {
		return nil
	}
	emaFast := EMA(values, fast)
	emaSlow := EMA(values, slow)

	// emaSlow starts slow-fast entries later than emaFast.
	macdLine := make([]float64, len(emaSlow))
	offset := len(emaFast) - len(emaSlow)
	for i := range emaSlow {
		macdLine[i] = emaFast[i+offset] - emaSlow[i]
	}

	signalLine := EMA(macdLine, signal)
	cut := len(macdLine) - len(signalLine)
	macdLine = macdLine[cut:]

	hist := make([]float64, len(signalLine))
	for i := range signalLine {
		hist[i] = macdLine[i] - signalLine[i]
	}
	return &MACDResult{MACD: macdLine, Signal: signalLine, Histogram: hist}
}

// Last returns the final value of a series, or 0 with ok=false when empty.
func Last(series []float64) (float64, bool) {
	if len(series) == 0 {
		return 0, false
	}
	return series[len(series)-1], true
}
