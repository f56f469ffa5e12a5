package db

import (
	"context"
	"time"
)

// Position is the durable snapshot of a tracked leveraged exposure.
type Position struct {
	Symbol     string
	Side       string // LONG or SHORT
	EntryPrice float64
	Amount     float64
	Leverage   int
	TakeProfit float64 // 0 when no protective order is tracked
	StopLoss   float64
	OpenedAt   time.Time
	UpdatedAt  time.Time
}

// Trade is the audit record written when a position is closed.
type Trade struct {
	ID         string
	Symbol     string
	Side       string
	Amount     float64
	EntryPrice float64
	ExitPrice  float64
	PnL        float64
	ROI        float64
	Reason     string
	CreatedAt  time.Time
}

// UpsertPosition stores the latest tracked position for a symbol.
func (d *Database) UpsertPosition(ctx context.Context, p Position) error {
	_, err := d.DB.ExecContext(ctx, `
		INSERT INTO positions (symbol, side, entry_price, amount, leverage, take_profit, stop_loss, opened_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(symbol) DO UPDATE SET
			side = excluded.side,
			entry_price = excluded.entry_price,
			amount = excluded.amount,
			leverage = excluded.leverage,
			take_profit = excluded.take_profit,
			stop_loss = excluded.stop_loss,
			opened_at = excluded.opened_at,
			updated_at = CURRENT_TIMESTAMP
	`, p.Symbol, p.Side, p.EntryPrice, p.Amount, p.Leverage, p.TakeProfit, p.StopLoss, p.OpenedAt)
	return err
}

// DeletePosition removes a symbol from the position table.
func (d *Database) DeletePosition(ctx context.Context, symbol string) error {
	_, err := d.DB.ExecContext(ctx, `DELETE FROM positions WHERE symbol = ?`, symbol)
	return err
}

// ListPositions returns all tracked positions.
func (d *Database) ListPositions(ctx context.Context) ([]Position, error) {
	rows, err := d.DB.QueryContext(ctx, `
		SELECT symbol, side, entry_price, amount, leverage, take_profit, stop_loss, opened_at, updated_at
		FROM positions`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var res []Position
	for rows.Next() {
		var p Position
		if err := rows.Scan(&p.Symbol, &p.Side, &p.EntryPrice, &p.Amount, &p.Leverage,
			&p.TakeProfit, &p.StopLoss, &p.OpenedAt, &p.UpdatedAt); err != nil {
			return nil, err
		}
		res = append(res, p)
	}
	return res, rows.Err()
}

// CreateTrade inserts a close audit row.
func (d *Database) CreateTrade(ctx context.Context, t Trade) error {
	_, err := d.DB.ExecContext(ctx, `
		INSERT INTO trades (id, symbol, side, amount, entry_price, exit_price, pnl, roi, reason, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, COALESCE(?, CURRENT_TIMESTAMP))
	`, t.ID, t.Symbol, t.Side, t.Amount, t.EntryPrice, t.ExitPrice, t.PnL, t.ROI, t.Reason, t.CreatedAt)
	return err
}

// ListTrades returns the most recent close records, newest first.
func (d *Database) ListTrades(ctx context.Context, limit int) ([]Trade, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := d.DB.QueryContext(ctx, `
		SELECT id, symbol, side, amount, entry_price, exit_price, pnl, roi, reason, created_at
		FROM trades ORDER BY created_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var res []Trade
	for rows.Next() {
		var t Trade
		if err := rows.Scan(&t.ID, &t.Symbol, &t.Side, &t.Amount, &t.EntryPrice,
			&t.ExitPrice, &t.PnL, &t.ROI, &t.Reason, &t.CreatedAt); err != nil {
			return nil, err
		}
		res = append(res, t)
	}
	return res, rows.Err()
}
