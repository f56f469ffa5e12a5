package db

import (
	"context"
	"path/filepath"
	"testing"
	"time"
)

func newTestDB(t *testing.T) *Database {
	t.Helper()
	d, err := New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { _ = d.Close() })
	if err := ApplyMigrations(d); err != nil {
		t.Fatalf("ApplyMigrations: %v", err)
	}
	return d
}

func TestMigrationsAreIdempotent(t *testing.T) {
	d := newTestDB(t)
	if err := ApplyMigrations(d); err != nil {
		t.Fatalf("second ApplyMigrations: %v", err)
	}
}

func TestPositionRoundTrip(t *testing.T) {
	d := newTestDB(t)
	ctx := context.Background()

	opened := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	p := Position{
		Symbol:     "BTC/USDT",
		Side:       "LONG",
		EntryPrice: 60000,
		Amount:     0.01,
		Leverage:   10,
		TakeProfit: 61000,
		StopLoss:   58000,
		OpenedAt:   opened,
	}
	if err := d.UpsertPosition(ctx, p); err != nil {
		t.Fatal(err)
	}

	// Upsert again with new numbers; symbol stays unique.
	p.Amount = 0.02
	if err := d.UpsertPosition(ctx, p); err != nil {
		t.Fatal(err)
	}

	got, err := d.ListPositions(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 {
		t.Fatalf("positions = %d, want 1", len(got))
	}
	if got[0].Amount != 0.02 || got[0].Side != "LONG" {
		t.Fatalf("unexpected position %+v", got[0])
	}

	if err := d.DeletePosition(ctx, "BTC/USDT"); err != nil {
		t.Fatal(err)
	}
	got, err = d.ListPositions(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 0 {
		t.Fatalf("positions after delete = %d, want 0", len(got))
	}
}

func TestTradeHistory(t *testing.T) {
	d := newTestDB(t)
	ctx := context.Background()

	for i, reason := range []string{"take_profit", "stop_loss", "exchange"} {
		err := d.CreateTrade(ctx, Trade{
			ID:         string(rune('a' + i)),
			Symbol:     "ETH/USDT",
			Side:       "LONG",
			Amount:     0.01,
			EntryPrice: 2000,
			ExitPrice:  2100,
			PnL:        1,
			ROI:        50,
			Reason:     reason,
			CreatedAt:  time.Now().UTC(),
		})
		if err != nil {
			t.Fatal(err)
		}
	}

	trades, err := d.ListTrades(ctx, 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(trades) != 2 {
		t.Fatalf("trades = %d, want limit of 2", len(trades))
	}

	all, err := d.ListTrades(ctx, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 3 {
		t.Fatalf("trades = %d, want 3 with default limit", len(all))
	}
}
