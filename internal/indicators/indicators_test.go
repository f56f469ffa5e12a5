package indicators

import (
	"math"
	"testing"
)

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestSMA(t *testing.T) {
	tests := []struct {
		name   string
		values []float64
		period int
		want   []float64
	}{
		{"basic", []float64{1, 2, 3, 4, 5}, 3, []float64{2, 3, 4}},
		{"exact window", []float64{2, 4, 6}, 3, []float64{4}},
		{"too short", []float64{1, 2}, 3, nil},
		{"zero period", []float64{1, 2, 3}, 0, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := SMA(tt.values, tt.period)
			if len(got) != len(tt.want) {
				t.Fatalf("len = %d, want %d", len(got), len(tt.want))
			}
			for i := range got {
				if !almostEqual(got[i], tt.want[i]) {
					t.Errorf("got[%d] = %v, want %v", i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestEMA(t *testing.T) {
	// period 3 means k = 0.5, so the series is easy to verify by hand
	got := EMA([]float64{1, 2, 3, 4, 5}, 3)
	want := []float64{2, 3, 4}
	if len(got) != len(want) {
		t.Fatalf("len = %d, want %d", len(got), len(want))
	}
	for i := range got {
		if !almostEqual(got[i], want[i]) {
			t.Errorf("got[%d] = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestEMAConstantSeries(t *testing.T) {
	vals := make([]float64, 40)
	for i := range vals {
		vals[i] = 7.5
	}
	for _, v := range EMA(vals, 9) {
		if !almostEqual(v, 7.5) {
			t.Fatalf("EMA of constant series drifted to %v", v)
		}
	}
}

func TestRSIBounds(t *testing.T) {
	up := make([]float64, 30)
	down := make([]float64, 30)
	for i := range up {
		up[i] = float64(i)
		down[i] = float64(30 - i)
	}
	rsiUp := RSI(up, 14)
	if v, _ := Last(rsiUp); !almostEqual(v, 100) {
		t.Errorf("monotonic rise: RSI = %v, want 100", v)
	}
	rsiDown := RSI(down, 14)
	if v, _ := Last(rsiDown); !almostEqual(v, 0) {
		t.Errorf("monotonic fall: RSI = %v, want 0", v)
	}
	if got, want := len(rsiUp), len(up)-14; got != want {
		t.Errorf("RSI len = %d, want %d", got, want)
	}
}

func TestRSIWithinRange(t *testing.T) {
	vals := []float64{50, 51, 49, 52, 48, 53, 47, 54, 46, 55, 45, 56, 44, 57, 43, 58, 42, 59, 41, 60}
	for _, v := range RSI(vals, 14) {
		if v < 0 || v > 100 {
			t.Fatalf("RSI out of range: %v", v)
		}
	}
}

func TestMACD(t *testing.T) {
	t.Run("too short", func(t *testing.T) {
		vals := make([]float64, 20)
		if MACD(vals, 12, 26, 9) != nil {
			t.Fatal("expected nil for insufficient data")
		}
	})

	t.Run("constant series is flat", func(t *testing.T) {
		vals := make([]float64, 60)
		for i := range vals {
			vals[i] = 100
		}
		res := MACD(vals, 12, 26, 9)
		if res == nil {
			t.Fatal("expected result")
		}
		if len(res.MACD) != len(res.Signal) || len(res.Signal) != len(res.Histogram) {
			t.Fatalf("misaligned series: %d/%d/%d", len(res.MACD), len(res.Signal), len(res.Histogram))
		}
		for i := range res.Histogram {
			if !almostEqual(res.Histogram[i], 0) {
				t.Fatalf("histogram[%d] = %v, want 0", i, res.Histogram[i])
			}
		}
	})

	t.Run("histogram is macd minus signal", func(t *testing.T) {
		vals := make([]float64, 80)
		for i := range vals {
			vals[i] = 100 + 5*math.Sin(float64(i)/6)
		}
		res := MACD(vals, 12, 26, 9)
		if res == nil {
			t.Fatal("expected result")
		}
		for i := range res.Histogram {
			if !almostEqual(res.Histogram[i], res.MACD[i]-res.Signal[i]) {
				t.Fatalf("histogram[%d] inconsistent", i)
			}
		}
	})
}
