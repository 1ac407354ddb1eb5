package runner

import (
	"context"
	"time"

	"go.uber.org/zap"

	"trade_guard/internal/metrics"
	"trade_guard/pkg/logger"
)

const minSnapshotInterval = 5 * time.Second

func (e *Engine) snapshotLoop(ctx context.Context, interval time.Duration) {
	interval = max(interval, minSnapshotInterval)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			e.logSnapshot()
		}
	}
}

// logSnapshot - одна структурная запись [metrics+] и обновление gauge.
func (e *Engine) logSnapshot() {
	s := e.Status()
	p := s.Position

	metrics.PositionOpen.Set(metrics.Bool(p.IsOpen))
	metrics.PositionPnL.Set(p.CurrentPnl)
	metrics.Balance.Set(s.Balance)
	e.publishBreakers()

	fields := []zap.Field{
		zap.String("symbol", s.Symbol),
		zap.String("mode", s.Mode),
		zap.Float64("price", s.Indicators.Price),
		zap.Float64("rsi", s.Indicators.RSI),
		zap.Float64("adx", s.Indicators.ADX),
		zap.Float64("atr", s.Indicators.ATR),
		zap.Int("trend", s.Indicators.TrendDir),
		zap.String("signal", string(s.Signal.Side)),
		zap.String("reason", s.Signal.Reason),
		zap.Float64("balance", s.Balance),
		zap.Bool("position_open", p.IsOpen),
		zap.Int("trades", s.Stats.TotalTrades),
		zap.Int("wins", s.Stats.Wins),
		zap.Int("losses", s.Stats.Losses),
		zap.Int("trades_today", s.Stats.DailyTradeCount),
		zap.Float64("profit", s.Stats.CompoundProfit),
	}
	if p.IsOpen {
		fields = append(fields,
			zap.String("side", string(p.Side)),
			zap.Float64("qty", p.Quantity),
			zap.Float64("entry", p.EntryPrice),
			zap.Float64("tp1", p.TP1Price),
			zap.Float64("sl", p.SLPrice),
			zap.Float64("pnl", p.CurrentPnl),
			zap.Bool("trailing", p.TrailingActive),
		)
	}
	for _, b := range s.Breakers {
		if b.Open {
			fields = append(fields, zap.Time("breaker_"+b.Name+"_until", b.OpenUntil))
		}
	}
	logger.With(fields...).Info("[metrics+]")
}
