package api

import (
	"net/http"
	"strconv"
	"time"

	"futures-core/pkg/i18n"

	"github.com/gin-gonic/gin"
)

func (s *Server) getStatus(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"version":        s.Meta.Version,
		"quote":          s.Meta.Quote,
		"timeframe":      s.Meta.Timeframe,
		"testnet":        s.Meta.Testnet,
		"max_positions":  s.Meta.MaxPositions,
		"open_positions": s.State.Count(),
		"language":       string(i18n.GetLanguage()),
		"server_time":    time.Now().UTC(),
	})
}

func (s *Server) getPositions(c *gin.Context) {
	positions := s.State.Positions()
	out := make([]gin.H, 0, len(positions))
	for _, p := range positions {
		out = append(out, gin.H{
			"instrument":  p.Symbol,
			"side":        p.Side,
			"entry_price": p.EntryPrice,
			"amount":      p.Amount,
			"leverage":    p.Leverage,
			"take_profit": p.TakeProfit,
			"stop_loss":   p.StopLoss,
			"opened_at":   p.OpenedAt,
			"updated_at":  p.UpdatedAt,
		})
	}
	c.JSON(http.StatusOK, gin.H{"positions": out, "count": len(out)})
}

func (s *Server) getTrades(c *gin.Context) {
	limit := 100
	if raw := c.Query("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 && n <= 1000 {
			limit = n
		}
	}
	trades, err := s.State.Trades(c.Request.Context(), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"code":  "DB_ERROR",
			"error": "could not list trades",
		})
		return
	}
	out := make([]gin.H, 0, len(trades))
	for _, t := range trades {
		out = append(out, gin.H{
			"id":          t.ID,
			"instrument":  t.Symbol,
			"side":        t.Side,
			"amount":      t.Amount,
			"entry_price": t.EntryPrice,
			"exit_price":  t.ExitPrice,
			"pnl":         t.PnL,
			"roi":         t.ROI,
			"reason":      t.Reason,
			"closed_at":   t.CreatedAt,
		})
	}
	c.JSON(http.StatusOK, gin.H{"trades": out, "count": len(out)})
}

func (s *Server) getMetrics(c *gin.Context) {
	if s.Metrics == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "metrics not enabled"})
		return
	}
	c.JSON(http.StatusOK, s.Metrics.GetSnapshot())
}
