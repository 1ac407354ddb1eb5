package protect

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"trade_guard/internal/exchange"
	"trade_guard/internal/metrics"
	"trade_guard/internal/models"
	"trade_guard/internal/resilience"
	"trade_guard/pkg/logger"
	"trade_guard/pkg/tracing"
)

type Stage string

const (
	StageInvalid Stage = "invalid"
	StageTP      Stage = "tp"
	StageSL      Stage = "sl"
	StageEntry   Stage = "entry"
	StageDone    Stage = "done"
)

type CleanupOutcome string

const (
	CleanupNone        CleanupOutcome = ""
	CleanupOK          CleanupOutcome = "ok"
	CleanupFailed      CleanupOutcome = "error"
	CleanupUnsupported CleanupOutcome = "unsupported"
)

type Config struct {
	TPAtrMultiplier float64
	SLAtrMultiplier float64
	// CallTimeout - на одну попытку CreateOrder.
	CallTimeout    time.Duration
	CleanupTimeout time.Duration
	// Retry одной spec-попытки. По умолчанию повторяются только TransientError.
	Retry resilience.RetryPolicy
}

func DefaultConfig() Config {
	return Config{
		TPAtrMultiplier: 1.2,
		SLAtrMultiplier: 1.2,
		CallTimeout:     10 * time.Second,
		CleanupTimeout:  10 * time.Second,
		Retry: resilience.RetryPolicy{
			Tries:   2,
			Delay:   500 * time.Millisecond,
			Backoff: 2,
			RetryIf: exchange.IsTransient,
		},
	}
}

type Request struct {
	Symbol     string
	Side       models.Side
	Qty        float64
	EntryPrice float64
	ATR        float64
}

type Attempt struct {
	Stage         Stage
	Kind          Kind
	ClientOrderID string
	Err           error // nil - принято
}

// Result - итог одного защищённого входа. Ошибкой протокол не завершается никогда.
type Result struct {
	OK       bool
	Reason   string
	Stage    Stage
	TP1      float64
	SL       float64
	Attempts []Attempt
	Cleanup  CleanupOutcome
}

// Protocol: TP -> SL -> вход. Вход уходит на биржу только после подтверждения обеих защит,
// при сбое после первой принятой защиты делается best-effort cancel-all.
type Protocol struct {
	gw    exchange.Gateway
	cfg   Config
	newID func() string
}

func New(gw exchange.Gateway, cfg Config) *Protocol {
	return &Protocol{gw: gw, cfg: cfg, newID: uuid.NewString}
}

func (p *Protocol) Enter(ctx context.Context, req Request) (res Result) {
	span, ctx := tracing.StartSpan(ctx, "protect.enter")
	defer func() {
		span.SetTag("stage", string(res.Stage))
		span.SetTag("ok", res.OK)
		metrics.ProtectResults.WithLabelValues(string(res.Stage)).Inc()
		span.Finish()
	}()

	if !(req.Qty > 0) {
		return Result{Stage: StageInvalid, Reason: "qty<=0"}
	}
	if !req.Side.Valid() {
		return Result{Stage: StageInvalid, Reason: fmt.Sprintf("invalid side %q", req.Side)}
	}
	if !(req.EntryPrice > 0) || !(req.ATR > 0) {
		return Result{Stage: StageInvalid, Reason: fmt.Sprintf("entry=%.6f atr=%.6f must be >0", req.EntryPrice, req.ATR)}
	}

	res.TP1, res.SL = Levels(req.Side, req.EntryPrice, req.ATR, p.cfg.TPAtrMultiplier, p.cfg.SLAtrMultiplier)

	// 1. TP. Если ни один не принят, на бирже ничего нет, откатывать нечего.
	res.Stage = StageTP
	if err := p.placeAny(ctx, &res, req, TakeProfitSpecs(req.Side, res.TP1)); err != nil {
		res.Reason = fmt.Sprintf("TP rejected by exchange (%s)", err)
		logger.Warn("[protect] %s %s aborted: %s", req.Symbol, req.Side, res.Reason)
		return res
	}

	// 2. SL. TP уже стоит на бирже.
	res.Stage = StageSL
	if err := p.placeAny(ctx, &res, req, StopLossSpecs(req.Side, res.SL)); err != nil {
		res.Cleanup = p.cancelSafely(ctx, req.Symbol)
		res.Reason = fmt.Sprintf("SL rejected by exchange (%s)", err)
		logger.Warn("[protect] %s %s aborted: %s (cleanup=%s)", req.Symbol, req.Side, res.Reason, res.Cleanup)
		return res
	}

	// 3. Вход.
	res.Stage = StageEntry
	id := p.newID()
	err := p.submit(ctx, "protect.entry", req.Symbol, exchange.OrderMarket, exchange.EntrySide(req.Side), req.Qty,
		exchange.OrderParams{ReduceOnly: false, ClientOrderID: id})
	res.Attempts = append(res.Attempts, Attempt{Stage: StageEntry, Kind: Kind(exchange.OrderMarket), ClientOrderID: id, Err: err})
	if err != nil {
		res.Cleanup = p.cancelSafely(ctx, req.Symbol)
		res.Reason = fmt.Sprintf("entry failed after protections (%s)", err)
		logger.Error("[protect] %s %s: %s (cleanup=%s)", req.Symbol, req.Side, res.Reason, res.Cleanup)
		return res
	}

	res.OK = true
	res.Stage = StageDone
	res.Reason = fmt.Sprintf("%s with TP=%.6f & SL=%.6f confirmed", req.Side, res.TP1, res.SL)
	logger.Info("[entry] %s %s qty=%.6f @≈%.6f: %s", req.Symbol, req.Side, req.Qty, req.EntryPrice, res.Reason)
	return res
}

// placeAny перебирает specs до первого принятого. Любая ошибка - "следующий диалект".
func (p *Protocol) placeAny(ctx context.Context, res *Result, req Request, specs []OrderSpec) error {
	var lastErr error
	for _, s := range specs {
		typ, params := s.Request()
		params.ClientOrderID = p.newID()

		err := p.submit(ctx, "protect."+string(res.Stage), req.Symbol, typ, s.Side, req.Qty, params)
		res.Attempts = append(res.Attempts, Attempt{Stage: res.Stage, Kind: s.Kind, ClientOrderID: params.ClientOrderID, Err: err})
		if err == nil {
			logger.Info("[protect] %s %s accepted: %s @ %.6f", req.Symbol, res.Stage, s.Kind, s.Price)
			return nil
		}
		logger.Debug("[protect] %s %s %s failed: %v", req.Symbol, res.Stage, s.Kind, err)
		lastErr = err
	}
	return lastErr
}

// submit - один CreateOrder под retry. Повтор идёт с тем же ClientOrderID.
func (p *Protocol) submit(ctx context.Context, op, symbol string, typ exchange.OrderType, side exchange.OrderSide, qty float64, params exchange.OrderParams) error {
	span, ctx := tracing.StartSpan(ctx, op)
	span.SetTag("type", string(typ))

	err := p.cfg.Retry.Do(ctx, func(ctx context.Context) error {
		if p.cfg.CallTimeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, p.cfg.CallTimeout)
			defer cancel()
		}
		_, err := p.gw.CreateOrder(ctx, symbol, typ, side, qty, params)
		return err
	})
	tracing.Finish(span, err)
	return err
}

// cancelSafely - попытка уборки, а не гарантированный откат: результат не проверяется,
// ошибка только логируется.
func (p *Protocol) cancelSafely(ctx context.Context, symbol string) CleanupOutcome {
	c, ok := p.gw.(exchange.OrderCanceler)
	if !ok {
		logger.Warn("[protect] gateway has no cancel-all, orders for %s may remain", symbol)
		metrics.Cleanups.WithLabelValues(string(CleanupUnsupported)).Inc()
		return CleanupUnsupported
	}

	// уборка нужна даже если внешний ctx уже отменён
	cctx := context.WithoutCancel(ctx)
	if p.cfg.CleanupTimeout > 0 {
		var cancel context.CancelFunc
		cctx, cancel = context.WithTimeout(cctx, p.cfg.CleanupTimeout)
		defer cancel()
	}

	if err := c.CancelAllOrders(cctx, symbol); err != nil {
		logger.Warn("[protect] cancel-all %s failed: %v", symbol, err)
		metrics.Cleanups.WithLabelValues(string(CleanupFailed)).Inc()
		return CleanupFailed
	}
	metrics.Cleanups.WithLabelValues(string(CleanupOK)).Inc()
	return CleanupOK
}
