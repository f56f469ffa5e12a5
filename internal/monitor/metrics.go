// Package monitor tracks loop health for the dashboard: cycle and order
// latencies plus counters fed off the event bus.
package monitor

import (
	"runtime"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"futures-core/internal/events"
)

// SystemMetrics tracks overall bot performance.
type SystemMetrics struct {
	// Latency histograms
	CycleLatency *LatencyHistogram
	ScanLatency  *LatencyHistogram
	OrderLatency *LatencyHistogram
	APILatency   *LatencyHistogram

	// Counters
	cyclesCompleted  uint64
	signalsGenerated uint64
	positionsOpened  uint64
	positionsClosed  uint64
	errorsCount      uint64
	apiRequests      uint64
	apiErrors        uint64
}

// NewSystemMetrics creates a new metrics instance.
func NewSystemMetrics() *SystemMetrics {
	return &SystemMetrics{
		CycleLatency: NewLatencyHistogram(1000),
		ScanLatency:  NewLatencyHistogram(1000),
		OrderLatency: NewLatencyHistogram(1000),
		APILatency:   NewLatencyHistogram(1000),
	}
}

// Observe feeds the counters from bus events. Returns a stop function.
func (m *SystemMetrics) Observe(bus *events.Bus) func() {
	signals, unsubSignals := bus.Subscribe(events.EventSignal, 64)
	opened, unsubOpened := bus.Subscribe(events.EventPositionOpened, 64)
	closed, unsubClosed := bus.Subscribe(events.EventPositionClosed, 64)
	errs, unsubErrs := bus.Subscribe(events.EventCycleError, 64)

	done := make(chan struct{})
	go func() {
		for {
			select {
			case <-signals:
				atomic.AddUint64(&m.signalsGenerated, 1)
			case <-opened:
				atomic.AddUint64(&m.positionsOpened, 1)
			case <-closed:
				atomic.AddUint64(&m.positionsClosed, 1)
			case <-errs:
				atomic.AddUint64(&m.errorsCount, 1)
			case <-done:
				return
			}
		}
	}()
	return func() {
		close(done)
		unsubSignals()
		unsubOpened()
		unsubClosed()
		unsubErrs()
	}
}

// IncrementCycles increments the completed cycle counter.
func (m *SystemMetrics) IncrementCycles() {
	atomic.AddUint64(&m.cyclesCompleted, 1)
}

// IncrementAPI increments the served request counter.
func (m *SystemMetrics) IncrementAPI() {
	atomic.AddUint64(&m.apiRequests, 1)
}

// IncrementAPIErrors increments the 4xx/5xx response counter.
func (m *SystemMetrics) IncrementAPIErrors() {
	atomic.AddUint64(&m.apiErrors, 1)
}

// LatencyHistogram tracks latency samples in a sliding window with lazy
// stats computation.
type LatencyHistogram struct {
	mu          sync.Mutex
	samples     []float64
	maxSize     int
	dirty       bool
	cachedStats LatencyStats
}

// NewLatencyHistogram creates a sliding window histogram.
func NewLatencyHistogram(size int) *LatencyHistogram {
	if size <= 0 {
		size = 1000
	}
	return &LatencyHistogram{
		samples: make([]float64, 0, size),
		maxSize: size,
		dirty:   true,
	}
}

// Record adds a latency sample in milliseconds.
func (h *LatencyHistogram) Record(latencyMs float64) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if len(h.samples) >= h.maxSize {
		// Shift window: remove oldest
		h.samples = h.samples[1:]
	}
	h.samples = append(h.samples, latencyMs)
	h.dirty = true
}

// RecordDuration converts duration to ms and records.
func (h *LatencyHistogram) RecordDuration(d time.Duration) {
	h.Record(float64(d.Nanoseconds()) / 1e6)
}

// Stats returns min, max, avg, p50, p95, p99. Only recomputes when samples
// have changed since the last call.
func (h *LatencyHistogram) Stats() LatencyStats {
	h.mu.Lock()
	defer h.mu.Unlock()

	if !h.dirty && h.cachedStats.Count > 0 {
		return h.cachedStats
	}

	n := len(h.samples)
	if n == 0 {
		return LatencyStats{}
	}

	sorted := make([]float64, n)
	copy(sorted, h.samples)
	sort.Float64s(sorted)

	var sum float64
	for _, v := range sorted {
		sum += v
	}

	h.cachedStats = LatencyStats{
		Min:   sorted[0],
		Max:   sorted[n-1],
		Avg:   sum / float64(n),
		P50:   sorted[n/2],
		P95:   sorted[int(float64(n)*0.95)],
		P99:   sorted[int(float64(n)*0.99)],
		Count: n,
	}
	h.dirty = false

	return h.cachedStats
}

// LatencyStats holds computed latency statistics.
type LatencyStats struct {
	Min   float64 `json:"min"`
	Max   float64 `json:"max"`
	Avg   float64 `json:"avg"`
	P50   float64 `json:"p50"`
	P95   float64 `json:"p95"`
	P99   float64 `json:"p99"`
	Count int     `json:"count"`
}

// MetricsSnapshot is a point-in-time view for the dashboard.
type MetricsSnapshot struct {
	CycleLatency     LatencyStats `json:"cycle_latency"`
	ScanLatency      LatencyStats `json:"scan_latency"`
	OrderLatency     LatencyStats `json:"order_latency"`
	APILatency       LatencyStats `json:"api_latency"`
	CyclesCompleted  uint64       `json:"cycles_completed"`
	SignalsGenerated uint64       `json:"signals_generated"`
	PositionsOpened  uint64       `json:"positions_opened"`
	PositionsClosed  uint64       `json:"positions_closed"`
	ErrorsCount      uint64       `json:"errors_count"`
	APIRequests      uint64       `json:"api_requests"`
	APIErrors        uint64       `json:"api_errors"`
	GoroutineCount   int          `json:"goroutine_count"`
	HeapAlloc        uint64       `json:"heap_alloc_bytes"`
	HeapSys          uint64       `json:"heap_sys_bytes"`
	Timestamp        time.Time    `json:"timestamp"`
}

// GetSnapshot returns the current metrics snapshot.
func (m *SystemMetrics) GetSnapshot() MetricsSnapshot {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	return MetricsSnapshot{
		CycleLatency:     m.CycleLatency.Stats(),
		ScanLatency:      m.ScanLatency.Stats(),
		OrderLatency:     m.OrderLatency.Stats(),
		APILatency:       m.APILatency.Stats(),
		CyclesCompleted:  atomic.LoadUint64(&m.cyclesCompleted),
		SignalsGenerated: atomic.LoadUint64(&m.signalsGenerated),
		PositionsOpened:  atomic.LoadUint64(&m.positionsOpened),
		PositionsClosed:  atomic.LoadUint64(&m.positionsClosed),
		ErrorsCount:      atomic.LoadUint64(&m.errorsCount),
		APIRequests:      atomic.LoadUint64(&m.apiRequests),
		APIErrors:        atomic.LoadUint64(&m.apiErrors),
		GoroutineCount:   runtime.NumGoroutine(),
		HeapAlloc:        memStats.HeapAlloc,
		HeapSys:          memStats.HeapSys,
		Timestamp:        time.Now(),
	}
}
