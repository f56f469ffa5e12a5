package signal

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig("")
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Weights.MACDCross != 0.5 || cfg.Thresholds.MinScore != 2 {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
	if got := cfg.MinCandles(); got != 50 {
		t.Fatalf("MinCandles = %d, want 50 (SMA period dominates)", got)
	}
}

func TestLoadConfigOverride(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "analyzer.yaml")
	data := []byte("weights:\n  rsi: 1.0\nthresholds:\n  min_score: 1.5\n")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Weights.RSI != 1.0 {
		t.Errorf("rsi weight = %v, want 1.0", cfg.Weights.RSI)
	}
	if cfg.Thresholds.MinScore != 1.5 {
		t.Errorf("min_score = %v, want 1.5", cfg.Thresholds.MinScore)
	}
	// untouched fields keep their defaults
	if cfg.Weights.SMA != 0.5 || cfg.Periods.RSI != 14 {
		t.Errorf("defaults clobbered: %+v", cfg)
	}
}

func TestLoadConfigRejectsBadPeriods(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "analyzer.yaml")
	data := []byte("periods:\n  macd_slow: 5\n  macd_fast: 12\n")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadConfig(path); err == nil {
		t.Fatal("expected validation error for slow <= fast")
	}
}
