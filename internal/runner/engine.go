package runner

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"trade_guard/internal/exchange"
	"trade_guard/internal/metrics"
	"trade_guard/internal/models"
	"trade_guard/internal/modules/config"
	health "trade_guard/internal/modules/health/service"
	"trade_guard/internal/notify"
	"trade_guard/internal/protect"
	"trade_guard/internal/resilience"
	"trade_guard/internal/strategy"
	"trade_guard/pkg/logger"
)

// Engine - торговый движок на один символ: цикл, keep-alive и снапшоты.
type Engine struct {
	cfg       *config.Config
	gw        exchange.Gateway
	notifier  notify.Notifier
	health    *health.State
	ledger    *Ledger
	evaluator *strategy.Evaluator
	protocol  *protect.Protocol

	candles *resilience.Guard
	balance *resilience.Guard
	orders  *resilience.CircuitBreaker
	// ретраи выхода по команде оператора
	exitRetry resilience.RetryPolicy

	closeReq chan struct{}
	now      func() time.Time
	sleep    func(ctx context.Context, d time.Duration) error

	mu          sync.RWMutex
	stats       models.TradeStats
	ind         models.Indicators
	signal      models.SignalDecision
	lastBalance float64
	backoff     time.Duration
}

// Status - согласованный снимок для /status и снапшот-логгера.
type Status struct {
	Mode       string
	Symbol     string
	Position   models.Position
	Stats      models.TradeStats
	Indicators models.Indicators
	Signal     models.SignalDecision
	Balance    float64
	Breakers   []resilience.BreakerSnapshot
}

// readPolicy: чтение повторяется при любой ошибке, повтор ничего не меняет на бирже.
func readPolicy(r config.Retry) resilience.RetryPolicy {
	return resilience.RetryPolicy{Tries: r.Tries, Delay: r.Delay, Backoff: r.Backoff}
}

// orderPolicy: ордер повторяется только после TransientError, отказ биржи окончателен.
func orderPolicy(r config.Retry) resilience.RetryPolicy {
	p := readPolicy(r)
	p.RetryIf = exchange.IsTransient
	return p
}

func NewEngine(cfg *config.Config, gw exchange.Gateway, notifier notify.Notifier, st *health.State) *Engine {
	if notifier == nil {
		notifier = notify.NewLog()
	}
	t := cfg.Trading
	b := cfg.Breakers

	return &Engine{
		cfg:       cfg,
		gw:        gw,
		notifier:  notifier,
		health:    st,
		ledger:    NewLedger(),
		evaluator: strategy.NewEvaluator(cfg.Strategy),
		protocol: protect.New(gw, protect.Config{
			TPAtrMultiplier: cfg.Protect.TPAtrMultiplier,
			SLAtrMultiplier: cfg.Protect.SLAtrMultiplier,
			CallTimeout:     t.CallTimeout,
			CleanupTimeout:  t.CallTimeout,
			Retry:           orderPolicy(cfg.Retry.Orders),
		}),
		candles: resilience.NewGuard(
			resilience.NewCircuitBreaker("candles", b.Candles.MaxFailures, b.Candles.Cooldown),
			readPolicy(cfg.Retry.Candles), t.CallTimeout),
		balance: resilience.NewGuard(
			resilience.NewCircuitBreaker("balance", b.Balance.MaxFailures, b.Balance.Cooldown),
			readPolicy(cfg.Retry.Balance), t.CallTimeout),
		orders:    resilience.NewCircuitBreaker("orders", b.Orders.MaxFailures, b.Orders.Cooldown),
		exitRetry: orderPolicy(cfg.Retry.Orders),
		closeReq:  make(chan struct{}, 1),
		now:       time.Now,
		sleep:     sleepCtx,
		backoff:   t.NoDataBackoffMin,
	}
}

// Run поднимает цикл, keep-alive и снапшоты. Возвращается после отмены ctx.
func (e *Engine) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error { return e.loop(ctx) })
	if e.cfg.KeepAlive.URL != "" {
		g.Go(func() error {
			KeepAlive(ctx, e.cfg.KeepAlive.URL, e.cfg.KeepAlive.Interval, e.cfg.KeepAlive.Timeout)
			return nil
		})
	}
	g.Go(func() error {
		e.snapshotLoop(ctx, e.cfg.Metrics.SnapshotInterval)
		return nil
	})

	return g.Wait()
}

func (e *Engine) loop(ctx context.Context) error {
	t := e.cfg.Trading
	logger.Info("[loop] start mode=%s symbol=%s tf=%s lev=%dx risk=%.2f", t.Mode, t.Symbol, t.Timeframe, t.Leverage, t.RiskAlloc)
	if e.health != nil {
		e.health.SetReady(true)
	}
	for {
		wait := e.tick(ctx)
		if err := e.sleep(ctx, wait); err != nil {
			logger.Info("[loop] stopped: %v", err)
			return nil
		}
	}
}

// RequestClose ставит закрытие позиции в очередь цикла. Ledger пишет только цикл.
func (e *Engine) RequestClose() string {
	if !e.ledger.IsOpen() {
		return "Открытой позиции нет"
	}
	select {
	case e.closeReq <- struct{}{}:
		return "Закрытие запрошено, выполнится на следующем тике"
	default:
		return "Закрытие уже запрошено"
	}
}

func (e *Engine) Status() Status {
	e.mu.RLock()
	s := Status{
		Mode:       e.cfg.Trading.Mode,
		Symbol:     e.cfg.Trading.Symbol,
		Stats:      e.stats,
		Indicators: e.ind,
		Signal:     e.signal,
		Balance:    e.lastBalance,
	}
	e.mu.RUnlock()

	s.Position = e.ledger.Snapshot()
	s.Breakers = []resilience.BreakerSnapshot{
		e.candles.Breaker.Snapshot(),
		e.balance.Breaker.Snapshot(),
		e.orders.Snapshot(),
	}
	return s
}

func (e *Engine) StatusText() string {
	s := e.Status()
	var b strings.Builder

	fmt.Fprintf(&b, "%s [%s]\n", s.Symbol, s.Mode)
	fmt.Fprintf(&b, "Баланс: %.2f %s\n", s.Balance, e.cfg.Trading.QuoteCcy)
	fmt.Fprintf(&b, "Цена: %.6f, сигнал: %s (%s)\n", s.Indicators.Price, s.Signal.Side, s.Signal.Reason)
	if p := s.Position; p.IsOpen {
		fmt.Fprintf(&b, "Позиция: %s qty=%.4f entry=%.6f TP1=%.6f SL=%.6f PnL=%.4f trailing=%v\n",
			p.Side, p.Quantity, p.EntryPrice, p.TP1Price, p.SLPrice, p.CurrentPnl, p.TrailingActive)
	} else {
		b.WriteString("Позиция: нет\n")
	}
	fmt.Fprintf(&b, "Сделок: %d (W %d / L %d), сегодня %d, профит %.4f\n",
		s.Stats.TotalTrades, s.Stats.Wins, s.Stats.Losses, s.Stats.DailyTradeCount, s.Stats.CompoundProfit)
	for _, br := range s.Breakers {
		if br.Open {
			fmt.Fprintf(&b, "⛔ %s открыт до %s\n", br.Name, br.OpenUntil.UTC().Format("15:04:05"))
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

func (e *Engine) publishBreakers() {
	for _, s := range []resilience.BreakerSnapshot{
		e.candles.Breaker.Snapshot(),
		e.balance.Breaker.Snapshot(),
		e.orders.Snapshot(),
	} {
		metrics.BreakerOpen.WithLabelValues(s.Name).Set(metrics.Bool(s.Open))
		metrics.BreakerFailures.WithLabelValues(s.Name).Set(float64(s.Failures))
	}
}

func newClientOrderID() string { return uuid.NewString() }

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
