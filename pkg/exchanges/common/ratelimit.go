package common

import (
	"log"
	"strconv"
	"sync"
	"time"
)

const (
	weightWarnPct     = 80
	weightCriticalPct = 95
	weightDelayPct    = 90
)

// RateLimiter mirrors the request-weight budget the exchange enforces.
// Binance reports the consumed weight on every response; we trust that
// header rather than counting requests ourselves.
type RateLimiter struct {
	mu       sync.RWMutex
	used     int
	limit    int
	window   time.Duration
	windowAt time.Time
}

// NewRateLimiter tracks usage against limit per window
// (USDT-M futures allows 2400 weight per minute).
func NewRateLimiter(limit int, window time.Duration) *RateLimiter {
	return &RateLimiter{limit: limit, window: window, windowAt: time.Now()}
}

// UpdateFromHeader records the used weight reported in a response
// header (X-MBX-USED-WEIGHT-1M). Empty or malformed values are ignored.
func (rl *RateLimiter) UpdateFromHeader(value string) {
	if value == "" {
		return
	}
	weight, err := strconv.Atoi(value)
	if err != nil {
		return
	}

	rl.mu.Lock()
	if time.Since(rl.windowAt) >= rl.window {
		rl.windowAt = time.Now()
	}
	rl.used = weight
	used, limit := rl.used, rl.limit
	rl.mu.Unlock()

	switch pct := percent(used, limit); {
	case pct >= weightCriticalPct:
		log.Printf("rate limit critical: %d/%d (%.1f%%) - approaching ban threshold", used, limit, pct)
	case pct >= weightWarnPct:
		log.Printf("rate limit warning: %d/%d (%.1f%%)", used, limit, pct)
	}
}

// GetUsage returns the weight consumed in the current window.
func (rl *RateLimiter) GetUsage() (used int, limit int, pct float64) {
	rl.mu.RLock()
	defer rl.mu.RUnlock()
	if time.Since(rl.windowAt) >= rl.window {
		return 0, rl.limit, 0
	}
	return rl.used, rl.limit, percent(rl.used, rl.limit)
}

// ShouldDelay reports whether the caller should hold the next request
// to stay clear of the exchange ban threshold.
func (rl *RateLimiter) ShouldDelay() bool {
	_, _, pct := rl.GetUsage()
	return pct >= weightDelayPct
}

func percent(used, limit int) float64 {
	if limit <= 0 {
		return 0
	}
	return float64(used) / float64(limit) * 100
}
