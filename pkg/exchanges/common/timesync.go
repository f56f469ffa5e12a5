package common

import (
	"context"
	"log"
	"sync"
	"time"
)

const defaultSyncInterval = 30 * time.Minute

// TimeSync keeps a running estimate of the exchange clock offset so
// signed requests carry a timestamp the server will accept even when
// the local clock drifts.
type TimeSync struct {
	serverTime func() (int64, error)

	mu       sync.RWMutex
	offsetMS int64
	syncedAt time.Time
	interval time.Duration
}

// NewTimeSync wraps a server-time fetcher (epoch milliseconds).
func NewTimeSync(serverTime func() (int64, error)) *TimeSync {
	return &TimeSync{serverTime: serverTime, interval: defaultSyncInterval}
}

// Start performs one synchronous sync, then keeps re-syncing in the
// background until ctx is cancelled.
func (ts *TimeSync) Start(ctx context.Context) {
	if err := ts.Sync(ctx); err != nil {
		log.Printf("initial time sync failed: %v", err)
	}

	go func() {
		ticker := time.NewTicker(ts.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := ts.Sync(ctx); err != nil {
					log.Printf("time sync failed: %v", err)
				}
			}
		}
	}()
}

// Sync measures the offset once. Half the round trip is attributed to
// each direction, which is close enough for a 5s recvWindow.
func (ts *TimeSync) Sync(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	before := time.Now().UnixMilli()
	server, err := ts.serverTime()
	if err != nil {
		return err
	}
	after := time.Now().UnixMilli()

	midpoint := before + (after-before)/2

	ts.mu.Lock()
	ts.offsetMS = server - midpoint
	ts.syncedAt = time.Now()
	ts.mu.Unlock()
	return nil
}

// Now returns the current time in epoch milliseconds, exchange-adjusted.
func (ts *TimeSync) Now() int64 {
	return time.Now().UnixMilli() + ts.Offset()
}

// Offset returns the last measured offset in milliseconds.
func (ts *TimeSync) Offset() int64 {
	ts.mu.RLock()
	defer ts.mu.RUnlock()
	return ts.offsetMS
}
