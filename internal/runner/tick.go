package runner

import (
	"context"
	"time"

	"trade_guard/internal/exchange"
	"trade_guard/internal/helper"
	"trade_guard/internal/metrics"
	"trade_guard/internal/models"
	"trade_guard/internal/protect"
	"trade_guard/internal/resilience"
	"trade_guard/pkg/logger"
	"trade_guard/pkg/tracing"
)

// tick - один проход цикла. Возвращает паузу до следующего.
func (e *Engine) tick(ctx context.Context) (wait time.Duration) {
	span, ctx := tracing.StartSpan(ctx, "loop.tick")
	defer span.Finish()
	defer func() {
		if r := recover(); r != nil {
			logger.Error("[loop] panic: %v", r)
			wait = e.cfg.Trading.ErrorPause
		}
	}()

	t := e.cfg.Trading
	now := e.now()
	if e.health != nil {
		e.health.TouchTick(now)
	}

	hasKeys := exchange.HasCredentials(e.gw)
	if e.health != nil {
		e.health.SetCredentials(hasKeys)
	}
	if !hasKeys {
		logger.Warn("[loop] keys_missing: waiting for exchange credentials")
		return t.CredentialIdle
	}

	e.rollDay(now)

	select {
	case <-e.closeReq:
		e.operatorClose(ctx)
	default:
	}

	candles, err := resilience.Execute(ctx, e.candles, func(ctx context.Context) ([]models.Candle, error) {
		return e.gw.FetchCandles(ctx, t.Symbol, t.Timeframe, t.CandleLimit)
	})
	if err != nil || len(candles) == 0 {
		e.mu.Lock()
		wait = e.backoff
		e.backoff = min(e.backoff*2, t.NoDataBackoffMax)
		e.mu.Unlock()
		logger.Warn("[loop] no candles (%v), retry in %s", err, wait)
		e.publishBreakers()
		return wait
	}
	e.mu.Lock()
	e.backoff = t.NoDataBackoffMin
	e.mu.Unlock()

	dec, ind := e.evaluator.Evaluate(candles)
	metrics.Signals.WithLabelValues(string(dec.Side)).Inc()
	e.mu.Lock()
	e.ind, e.signal = ind, dec
	e.mu.Unlock()

	bal := e.refreshBalance(ctx)

	if e.ledger.IsOpen() {
		e.manage(ctx, ind.Price, bal)
	} else {
		e.tryEnter(ctx, dec, ind, bal)
	}

	e.publishBreakers()
	return t.TickInterval
}

func (e *Engine) rollDay(now time.Time) {
	day := helper.DayKeyUTC(now)

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.stats.Day == day {
		return
	}
	if e.stats.Day != "" {
		logger.Info("[daily] %s -> %s, trades today reset (was %d)", e.stats.Day, day, e.stats.DailyTradeCount)
	}
	e.stats.Day = day
	e.stats.DailyTradeCount = 0
}

// refreshBalance: при ошибке остаётся последний известный баланс.
func (e *Engine) refreshBalance(ctx context.Context) float64 {
	bal, err := resilience.Execute(ctx, e.balance, func(ctx context.Context) (exchange.Balance, error) {
		return e.gw.FetchBalance(ctx)
	})

	e.mu.Lock()
	defer e.mu.Unlock()
	if err != nil {
		logger.Warn("[loop] balance unavailable (%v), using cached %.2f", err, e.lastBalance)
		return e.lastBalance
	}
	e.lastBalance = bal[e.cfg.Trading.QuoteCcy]
	metrics.Balance.Set(e.lastBalance)
	return e.lastBalance
}

func (e *Engine) tryEnter(ctx context.Context, dec models.SignalDecision, ind models.Indicators, bal float64) {
	t := e.cfg.Trading
	if !dec.Side.Valid() {
		logger.Debug("[loop] no entry: %s", dec.Reason)
		return
	}

	e.mu.RLock()
	today := e.stats.DailyTradeCount
	e.mu.RUnlock()
	if t.MaxDailyTrades > 0 && today >= t.MaxDailyTrades {
		logger.Info("[daily] limit %d reached, %s signal skipped", t.MaxDailyTrades, dec.Side)
		return
	}

	qty := Qty(bal, t.RiskAlloc, t.Leverage, ind.Price)
	if !(qty > 0) {
		logger.Warn("[loop] %s signal skipped: qty<=0 (balance=%.2f price=%.6f)", dec.Side, bal, ind.Price)
		return
	}

	if !e.orders.Allow() {
		logger.Warn("[circuit] orders breaker open, %s entry skipped", dec.Side)
		return
	}

	lctx, cancel := e.callCtx(ctx)
	if err := e.gw.SetLeverage(lctx, t.Leverage, t.Symbol, exchange.LeverageParams{MarginMode: t.MarginMode}); err != nil {
		logger.Warn("[loop] set leverage %dx: %v", t.Leverage, err)
	}
	cancel()

	res := e.protocol.Enter(ctx, protect.Request{
		Symbol:     t.Symbol,
		Side:       dec.Side,
		Qty:        qty,
		EntryPrice: ind.Price,
		ATR:        ind.ATR,
	})
	if !res.OK {
		if res.Stage != protect.StageInvalid {
			e.orders.OnFailure()
		}
		e.notifier.Sendf("❌ %s %s: вход отменён: %s", t.Symbol, dec.Side, res.Reason)
		return
	}
	e.orders.OnSuccess()

	pos := models.Position{
		Side:       dec.Side,
		Quantity:   qty,
		EntryPrice: ind.Price,
		TP1Price:   res.TP1,
		SLPrice:    res.SL,
		OpenedAt:   e.now().UTC(),
	}
	if err := e.ledger.Open(pos); err != nil {
		logger.Error("[loop] ledger open: %v", err)
		return
	}

	e.mu.Lock()
	e.stats.DailyTradeCount++
	e.mu.Unlock()
	metrics.PositionOpen.Set(1)

	e.notifier.Sendf("✅ %s %s qty=%.4f @ %.6f\nTP1=%.6f SL=%.6f\n%s",
		t.Symbol, dec.Side, qty, ind.Price, res.TP1, res.SL, dec.Reason)
}

func (e *Engine) manage(ctx context.Context, price, bal float64) {
	t := e.cfg.Trading
	pos := e.ledger.Snapshot()
	notional := Notional(bal, t.RiskAlloc, t.Leverage)

	pnl := PnL(pos, notional, price)
	e.ledger.UpdatePnL(pnl)
	metrics.PositionPnL.Set(pnl)

	if !pos.TrailingActive && trailArmed(pos, price, t.TrailArmRatio) {
		e.ledger.SetTrailing(true)
		logger.Info("[loop] %s trailing armed at %.6f", pos.Side, price)
	}

	level, reason, hit := exitLevel(pos, price)
	if !hit {
		return
	}
	e.closePosition(ctx, PnL(pos, notional, level), reason)
}

// operatorClose: reduce-only маркет-выход, затем уборка защит.
func (e *Engine) operatorClose(ctx context.Context) {
	t := e.cfg.Trading
	pos := e.ledger.Snapshot()
	if !pos.IsOpen {
		return
	}

	e.mu.RLock()
	price, bal := e.ind.Price, e.lastBalance
	e.mu.RUnlock()
	if !(price > 0) {
		price = pos.EntryPrice
	}

	if !e.orders.Allow() {
		logger.Warn("[circuit] orders breaker open, operator close of %s skipped", t.Symbol)
		e.notifier.Sendf("⏸ %s: ордера на паузе (circuit open), позиция не закрыта", t.Symbol)
		return
	}

	id := newClientOrderID()
	err := e.exitRetry.Do(ctx, func(ctx context.Context) error {
		cctx, cancel := e.callCtx(ctx)
		defer cancel()
		_, err := e.gw.CreateOrder(cctx, t.Symbol, exchange.OrderMarket, exchange.ReduceSide(pos.Side), pos.Quantity,
			exchange.OrderParams{ReduceOnly: true, ClientOrderID: id})
		return err
	})
	if err != nil {
		e.orders.OnFailure()
		logger.Error("[loop] operator close %s: %v", t.Symbol, err)
		e.notifier.Sendf("❌ %s: закрыть позицию не удалось: %v", t.Symbol, err)
		return
	}
	e.orders.OnSuccess()

	e.closePosition(ctx, PnL(pos, Notional(bal, t.RiskAlloc, t.Leverage), price), "operator")
}

func (e *Engine) closePosition(ctx context.Context, pnl float64, reason string) {
	t := e.cfg.Trading
	pos, err := e.ledger.Close()
	if err != nil {
		return
	}

	e.mu.Lock()
	e.stats.TotalTrades++
	result := "loss"
	if pnl > 0 {
		e.stats.Wins++
		result = "win"
	} else {
		e.stats.Losses++
	}
	e.stats.CompoundProfit += pnl
	stats := e.stats
	e.mu.Unlock()

	metrics.Trades.WithLabelValues(result).Inc()
	metrics.PositionOpen.Set(0)
	metrics.PositionPnL.Set(0)

	if s, ok := e.gw.(interface{ Settle(pnl float64) }); ok {
		s.Settle(pnl)
	}
	e.cancelRest(ctx)

	logger.Info("[loop] %s %s closed by %s pnl=%.4f total=%d W/L=%d/%d",
		t.Symbol, pos.Side, reason, pnl, stats.TotalTrades, stats.Wins, stats.Losses)
	e.notifier.Sendf("🏁 %s %s закрыта (%s) PnL=%.4f\nВсего %d, W/L %d/%d, профит %.4f",
		t.Symbol, pos.Side, reason, pnl, stats.TotalTrades, stats.Wins, stats.Losses, stats.CompoundProfit)
}

// cancelRest снимает оставшийся защитный ордер. Best-effort.
func (e *Engine) cancelRest(ctx context.Context) {
	c, ok := e.gw.(exchange.OrderCanceler)
	if !ok {
		return
	}
	cctx, cancel := e.callCtx(context.WithoutCancel(ctx))
	defer cancel()
	if err := c.CancelAllOrders(cctx, e.cfg.Trading.Symbol); err != nil {
		logger.Warn("[loop] cancel-all after close: %v", err)
	}
}

func (e *Engine) callCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	if d := e.cfg.Trading.CallTimeout; d > 0 {
		return context.WithTimeout(ctx, d)
	}
	return context.WithCancel(ctx)
}
