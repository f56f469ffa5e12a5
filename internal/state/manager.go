// Package state keeps the bot's in-memory view of tracked positions,
// per-instrument scan locks, and the instrument blacklist, persisting
// positions to the database for crash recovery.
package state

import (
	"context"
	"sync"
	"time"

	"futures-core/pkg/db"
)

// Manager guards the tracked position table and the scan bookkeeping sets.
// Every position mutation is persisted before it is considered applied.
type Manager struct {
	mu        sync.RWMutex
	positions map[string]db.Position
	locks     map[string]struct{}
	blacklist map[string]struct{}
	db        *db.Database
}

// NewManager creates a manager backed by the given database.
func NewManager(database *db.Database) *Manager {
	return &Manager{
		db:        database,
		positions: make(map[string]db.Position),
		locks:     make(map[string]struct{}),
		blacklist: make(map[string]struct{}),
	}
}

// Load seeds in-memory state from the database on startup.
func (m *Manager) Load(ctx context.Context) error {
	if m.db == nil {
		return nil
	}
	pos, err := m.db.ListPositions(ctx)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range pos {
		m.positions[p.Symbol] = p
	}
	return nil
}

// Position returns the tracked position for an instrument.
func (m *Manager) Position(instrument string) (db.Position, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.positions[instrument]
	return p, ok
}

// Positions returns a snapshot of all tracked positions.
func (m *Manager) Positions() []db.Position {
	m.mu.RLock()
	defer m.mu.RUnlock()
	res := make([]db.Position, 0, len(m.positions))
	for _, p := range m.positions {
		res = append(res, p)
	}
	return res
}

// Count returns how many positions are tracked.
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.positions)
}

// Track upserts a position. The original opened_at survives updates so
// position age stays meaningful across reconciliations.
func (m *Manager) Track(ctx context.Context, p db.Position) error {
	m.mu.Lock()
	if existing, ok := m.positions[p.Symbol]; ok && !existing.OpenedAt.IsZero() {
		p.OpenedAt = existing.OpenedAt
	} else if p.OpenedAt.IsZero() {
		p.OpenedAt = time.Now().UTC()
	}
	p.UpdatedAt = time.Now().UTC()
	m.positions[p.Symbol] = p
	m.mu.Unlock()

	if m.db == nil {
		return nil
	}
	return m.db.UpsertPosition(ctx, p)
}

// Forget removes a position from tracking and the database.
func (m *Manager) Forget(ctx context.Context, instrument string) error {
	m.mu.Lock()
	delete(m.positions, instrument)
	m.mu.Unlock()

	if m.db == nil {
		return nil
	}
	return m.db.DeletePosition(ctx, instrument)
}

// RecordTrade appends a closed-trade audit record.
func (m *Manager) RecordTrade(ctx context.Context, t db.Trade) error {
	if m.db == nil {
		return nil
	}
	return m.db.CreateTrade(ctx, t)
}

// Trades returns the most recent closed trades.
func (m *Manager) Trades(ctx context.Context, limit int) ([]db.Trade, error) {
	if m.db == nil {
		return nil, nil
	}
	return m.db.ListTrades(ctx, limit)
}

// TryLock claims an instrument for the duration of an open attempt.
// Returns false when another attempt already holds it.
func (m *Manager) TryLock(instrument string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, held := m.locks[instrument]; held {
		return false
	}
	m.locks[instrument] = struct{}{}
	return true
}

// Unlock releases an instrument lock.
func (m *Manager) Unlock(instrument string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.locks, instrument)
}

// Blacklist marks an instrument as unusable for the rest of the run,
// typically because its history cannot feed the indicators.
func (m *Manager) Blacklist(instrument string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.blacklist[instrument] = struct{}{}
}

// IsBlacklisted reports whether an instrument was blacklisted.
func (m *Manager) IsBlacklisted(instrument string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.blacklist[instrument]
	return ok
}
