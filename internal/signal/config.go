package signal

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Weights assigns the contribution of each component to the long/short score.
type Weights struct {
	MACDCross   float64 `yaml:"macd_cross"`
	RSI         float64 `yaml:"rsi"`
	VolumeSpike float64 `yaml:"volume_spike"`
	SMA         float64 `yaml:"sma"`
	EMA         float64 `yaml:"ema"`
	Engulfing   float64 `yaml:"engulfing"`
}

// Thresholds holds the analyzer's decision constants.
type Thresholds struct {
	MinScore      float64 `yaml:"min_score"`
	RSIOversold   float64 `yaml:"rsi_oversold"`
	RSIOverbought float64 `yaml:"rsi_overbought"`
	VolumeSpike   float64 `yaml:"volume_spike"` // multiple of average volume
	LowVolume     float64 `yaml:"low_volume"`   // fraction of average volume
	DojiBody      float64 `yaml:"doji_body"`    // fraction of close
	StrongBody    float64 `yaml:"strong_body"`  // fraction of candle range
}

// Periods holds the indicator warm-up lengths.
type Periods struct {
	RSI        int `yaml:"rsi"`
	SMA        int `yaml:"sma"`
	EMA        int `yaml:"ema"`
	TrendEMA   int `yaml:"trend_ema"`
	VolumeAvg  int `yaml:"volume_avg"`
	MACDFast   int `yaml:"macd_fast"`
	MACDSlow   int `yaml:"macd_slow"`
	MACDSignal int `yaml:"macd_signal"`
}

// Config is the analyzer configuration, loadable from YAML.
type Config struct {
	Weights    Weights    `yaml:"weights"`
	Thresholds Thresholds `yaml:"thresholds"`
	Periods    Periods    `yaml:"periods"`
}

// DefaultConfig returns the stock analyzer tuning.
func DefaultConfig() Config {
	return Config{
		Weights: Weights{
			MACDCross:   0.5,
			RSI:         0.5,
			VolumeSpike: 0.5,
			SMA:         0.5,
			EMA:         0.5,
			Engulfing:   0.5,
		},
		Thresholds: Thresholds{
			MinScore:      2,
			RSIOversold:   30,
			RSIOverbought: 70,
			VolumeSpike:   2.0,
			LowVolume:     0.5,
			DojiBody:      0.001,
			StrongBody:    0.5,
		},
		Periods: Periods{
			RSI:        14,
			SMA:        50,
			EMA:        20,
			TrendEMA:   20,
			VolumeAvg:  20,
			MACDFast:   12,
			MACDSlow:   26,
			MACDSignal: 9,
		},
	}
}

// LoadConfig reads a YAML tuning file, filling omitted fields with defaults.
// An empty path returns the defaults untouched.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return cfg, nil
	}
	if err != nil {
		return cfg, fmt.Errorf("read analyzer config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse analyzer config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate rejects configurations the analyzer cannot run with.
func (c Config) Validate() error {
	p := c.Periods
	switch {
	case p.RSI <= 0, p.SMA <= 0, p.EMA <= 0, p.TrendEMA <= 0, p.VolumeAvg <= 0:
		return fmt.Errorf("analyzer periods must be positive: %+v", p)
	case p.MACDFast <= 0 || p.MACDSlow <= p.MACDFast || p.MACDSignal <= 0:
		return fmt.Errorf("invalid MACD periods fast=%d slow=%d signal=%d", p.MACDFast, p.MACDSlow, p.MACDSignal)
	}
	if c.Thresholds.MinScore <= 0 {
		return fmt.Errorf("min_score must be positive, got %v", c.Thresholds.MinScore)
	}
	return nil
}

// MinCandles returns the history length the analyzer needs for a decision.
// The MACD histogram cross needs one extra bar for its previous value.
func (c Config) MinCandles() int {
	p := c.Periods
	need := p.SMA
	for _, n := range []int{
		p.RSI + 2, // previous RSI bar as well as the latest
		p.EMA,
		p.TrendEMA,
		p.VolumeAvg,
		p.MACDSlow + p.MACDSignal, // slow+signal-1 for the line, +1 for prev histogram
	} {
		if n > need {
			need = n
		}
	}
	return need
}
