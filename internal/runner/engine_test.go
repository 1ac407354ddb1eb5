package runner

import (
	"context"
	"math"
	"strings"
	"testing"
	"time"

	"trade_guard/internal/exchange"
	"trade_guard/internal/models"
	"trade_guard/internal/modules/config"
	"trade_guard/internal/notify"
)

func approx(a, b float64) bool { return math.Abs(a-b) < 1e-6 }

func longSignal() (models.SignalDecision, models.Indicators) {
	return models.SignalDecision{Side: models.SideLong, Reason: "test long"},
		models.Indicators{Price: 100, ATR: 2}
}

func TestTryEnterOpensProtectedPosition(t *testing.T) {
	gw := &fakeGateway{balance: 1000}
	e, n := newTestEngine(t, testConfig(), gw)
	e.rollDay(e.now())

	dec, ind := longSignal()
	e.tryEnter(context.Background(), dec, ind, 1000)

	pos := e.ledger.Snapshot()
	if !pos.IsOpen || pos.Side != models.SideLong || !approx(pos.Quantity, 60) {
		t.Fatalf("position = %+v", pos)
	}
	if !approx(pos.TP1Price, 102.4) || !approx(pos.SLPrice, 97.6) || pos.TP2Price != 0 {
		t.Fatalf("levels = %+v", pos)
	}
	if len(gw.orders) != 3 {
		t.Fatalf("orders = %+v", gw.orders)
	}
	if gw.orders[0].Type != exchange.OrderTakeProfitMarket || gw.orders[1].Type != exchange.OrderStopMarket || gw.orders[2].Type != exchange.OrderMarket {
		t.Fatalf("order sequence = %+v", gw.orders)
	}
	if gw.orders[2].Side != exchange.Buy || gw.orders[2].Params.ReduceOnly || !gw.orders[0].Params.ReduceOnly {
		t.Fatalf("sides/reduceOnly = %+v", gw.orders)
	}
	if gw.leverage != 10 {
		t.Fatalf("leverage = %d", gw.leverage)
	}
	if e.Status().Stats.DailyTradeCount != 1 {
		t.Fatalf("daily = %d", e.Status().Stats.DailyTradeCount)
	}
	if !strings.HasPrefix(n.last(), "✅") {
		t.Fatalf("notify = %q", n.last())
	}
}

func TestTryEnterAbortsWhenProtectionRejected(t *testing.T) {
	gw := &fakeGateway{balance: 1000, rejectProtect: true}
	e, n := newTestEngine(t, testConfig(), gw)

	dec, ind := longSignal()
	e.tryEnter(context.Background(), dec, ind, 1000)

	if e.ledger.IsOpen() {
		t.Fatal("no position expected")
	}
	if len(gw.orders) != 0 {
		t.Fatalf("nothing must be placed: %+v", gw.orders)
	}
	if f := e.orders.Snapshot().Failures; f != 1 {
		t.Fatalf("orders breaker failures = %d", f)
	}
	if !strings.Contains(n.last(), "TP rejected") {
		t.Fatalf("notify = %q", n.last())
	}
}

func TestTryEnterEntryFailureCleansUp(t *testing.T) {
	gw := &fakeGateway{balance: 1000, rejectMarket: true}
	e, _ := newTestEngine(t, testConfig(), gw)

	dec, ind := longSignal()
	e.tryEnter(context.Background(), dec, ind, 1000)

	if e.ledger.IsOpen() {
		t.Fatal("no position expected")
	}
	if gw.cancels != 1 {
		t.Fatalf("cancel-all calls = %d", gw.cancels)
	}
}

func TestTryEnterSkips(t *testing.T) {
	dec, ind := longSignal()

	t.Run("breaker open", func(t *testing.T) {
		gw := &fakeGateway{balance: 1000}
		e, _ := newTestEngine(t, testConfig(), gw)
		for i := 0; i < 3; i++ {
			e.orders.OnFailure()
		}
		e.tryEnter(context.Background(), dec, ind, 1000)
		if len(gw.orders) != 0 || e.ledger.IsOpen() {
			t.Fatal("entry must be skipped")
		}
	})

	t.Run("daily limit", func(t *testing.T) {
		cfg := testConfig()
		cfg.Trading.MaxDailyTrades = 1
		gw := &fakeGateway{balance: 1000}
		e, _ := newTestEngine(t, cfg, gw)
		e.stats.DailyTradeCount = 1
		e.tryEnter(context.Background(), dec, ind, 1000)
		if len(gw.orders) != 0 {
			t.Fatal("entry must be skipped")
		}
	})

	t.Run("zero balance", func(t *testing.T) {
		gw := &fakeGateway{}
		e, _ := newTestEngine(t, testConfig(), gw)
		e.tryEnter(context.Background(), dec, ind, 0)
		if len(gw.orders) != 0 {
			t.Fatal("entry must be skipped")
		}
		if f := e.orders.Snapshot().Failures; f != 0 {
			t.Fatalf("qty skip must not count as failure: %d", f)
		}
	})

	t.Run("no signal", func(t *testing.T) {
		gw := &fakeGateway{balance: 1000}
		e, _ := newTestEngine(t, testConfig(), gw)
		e.tryEnter(context.Background(), models.SignalDecision{Side: models.SideNone, Reason: "no_setup"}, ind, 1000)
		if len(gw.orders) != 0 || gw.leverage != 0 {
			t.Fatal("nothing expected")
		}
	})
}

func TestManageClosesOnTakeProfit(t *testing.T) {
	gw := &fakeGateway{}
	e, n := newTestEngine(t, testConfig(), gw)
	openLong(t, e)

	e.manage(context.Background(), 103, 1000)

	if e.ledger.IsOpen() {
		t.Fatal("position must be closed")
	}
	st := e.Status().Stats
	if st.TotalTrades != 1 || st.Wins != 1 || !approx(st.CompoundProfit, 144) {
		t.Fatalf("stats = %+v", st)
	}
	if !approx(gw.settled, 144) || gw.cancels != 1 {
		t.Fatalf("settled=%v cancels=%d", gw.settled, gw.cancels)
	}
	if !strings.Contains(n.last(), "tp1") {
		t.Fatalf("notify = %q", n.last())
	}
}

func TestManageClosesShortOnStop(t *testing.T) {
	gw := &fakeGateway{}
	e, _ := newTestEngine(t, testConfig(), gw)
	if err := e.ledger.Open(models.Position{Side: models.SideShort, Quantity: 60, EntryPrice: 100, TP1Price: 97.6, SLPrice: 102.4}); err != nil {
		t.Fatal(err)
	}

	e.manage(context.Background(), 103, 1000)

	st := e.Status().Stats
	if e.ledger.IsOpen() || st.Losses != 1 || !approx(st.CompoundProfit, -144) {
		t.Fatalf("stats = %+v open=%v", st, e.ledger.IsOpen())
	}
}

func TestManageUpdatesPnLAndArmsTrailing(t *testing.T) {
	cfg := testConfig()
	cfg.Trading.TrailArmRatio = 0.5
	e, _ := newTestEngine(t, cfg, &fakeGateway{})
	openLong(t, e)

	e.manage(context.Background(), 101, 1000)
	pos := e.ledger.Snapshot()
	if !pos.IsOpen || !approx(pos.CurrentPnl, 60) || pos.TrailingActive {
		t.Fatalf("after 101: %+v", pos)
	}

	e.manage(context.Background(), 101.5, 1000)
	pos = e.ledger.Snapshot()
	if !pos.TrailingActive || !approx(pos.CurrentPnl, 90) {
		t.Fatalf("after 101.5: %+v", pos)
	}
}

func TestTickNoDataBackoff(t *testing.T) {
	gw := &fakeGateway{candleErr: exchange.Rejected("fake", "", "down")}
	e, _ := newTestEngine(t, testConfig(), gw)
	ctx := context.Background()

	want := []time.Duration{5 * time.Second, 10 * time.Second, 20 * time.Second}
	for i, w := range want {
		if got := e.tick(ctx); got != w {
			t.Fatalf("tick %d wait = %s, want %s", i, got, w)
		}
	}

	gw.mu.Lock()
	gw.candleErr = nil
	gw.candles = flatCandles(30, 100)
	gw.mu.Unlock()
	if got := e.tick(ctx); got != 10*time.Second {
		t.Fatalf("data tick wait = %s", got)
	}

	gw.mu.Lock()
	gw.candles = nil
	gw.mu.Unlock()
	if got := e.tick(ctx); got != 5*time.Second {
		t.Fatalf("backoff not reset: %s", got)
	}
}

func TestTickBackoffCapped(t *testing.T) {
	gw := &fakeGateway{}
	e, _ := newTestEngine(t, testConfig(), gw)

	var got time.Duration
	for i := 0; i < 8; i++ {
		got = e.tick(context.Background())
	}
	if got != 60*time.Second {
		t.Fatalf("wait = %s, want 60s", got)
	}
}

func TestTickMissingCredentials(t *testing.T) {
	gw := &fakeGateway{noCreds: true}
	e, _ := newTestEngine(t, testConfig(), gw)

	if got := e.tick(context.Background()); got != 3*time.Second {
		t.Fatalf("wait = %s", got)
	}
	if gw.candleCalls != 0 {
		t.Fatal("no market calls without credentials")
	}
	if e.health.Credentials() {
		t.Fatal("health must report missing credentials")
	}
}

func TestTickRecoversPanic(t *testing.T) {
	gw := &fakeGateway{candlePanic: true}
	e, _ := newTestEngine(t, testConfig(), gw)

	if got := e.tick(context.Background()); got != e.cfg.Trading.ErrorPause {
		t.Fatalf("wait = %s", got)
	}
}

func TestTickWarmupKeepsFlat(t *testing.T) {
	gw := &fakeGateway{balance: 1000, candles: flatCandles(50, 100)}
	e, _ := newTestEngine(t, testConfig(), gw)

	e.tick(context.Background())

	s := e.Status()
	if s.Signal.Reason != "warmup" || s.Indicators.Price != 100 || s.Balance != 1000 {
		t.Fatalf("status = %+v", s)
	}
	if e.ledger.IsOpen() || len(gw.orders) != 0 {
		t.Fatal("no trading during warmup")
	}
}

func TestTickManagesOpenPosition(t *testing.T) {
	gw := &fakeGateway{balance: 1000, candles: flatCandles(50, 97)}
	e, _ := newTestEngine(t, testConfig(), gw)
	openLong(t, e)

	e.tick(context.Background())

	if e.ledger.IsOpen() {
		t.Fatal("stop crossed, position must be closed")
	}
	if e.Status().Stats.Losses != 1 {
		t.Fatalf("stats = %+v", e.Status().Stats)
	}
}

func TestOperatorClose(t *testing.T) {
	gw := &fakeGateway{balance: 1000, candles: flatCandles(50, 100)}
	e, _ := newTestEngine(t, testConfig(), gw)

	if msg := e.RequestClose(); !strings.Contains(msg, "нет") {
		t.Fatalf("flat RequestClose = %q", msg)
	}

	openLong(t, e)
	if msg := e.RequestClose(); !strings.Contains(msg, "запрошено") {
		t.Fatalf("RequestClose = %q", msg)
	}
	if msg := e.RequestClose(); !strings.Contains(msg, "уже") {
		t.Fatalf("second RequestClose = %q", msg)
	}

	e.tick(context.Background())

	if e.ledger.IsOpen() {
		t.Fatal("position must be closed")
	}
	if len(gw.orders) != 1 {
		t.Fatalf("orders = %+v", gw.orders)
	}
	exit := gw.orders[0]
	if exit.Type != exchange.OrderMarket || exit.Side != exchange.Sell || !exit.Params.ReduceOnly || !approx(exit.Qty, 60) {
		t.Fatalf("exit order = %+v", exit)
	}
	if gw.cancels != 1 {
		t.Fatalf("cancels = %d", gw.cancels)
	}
}

func TestOperatorCloseFailureKeepsPosition(t *testing.T) {
	gw := &fakeGateway{balance: 1000, candles: flatCandles(50, 100), rejectMarket: true}
	e, n := newTestEngine(t, testConfig(), gw)
	openLong(t, e)

	e.RequestClose()
	e.tick(context.Background())

	if !e.ledger.IsOpen() {
		t.Fatal("position must stay open when exit order fails")
	}
	if !strings.Contains(n.last(), "не удалось") {
		t.Fatalf("notify = %q", n.last())
	}
}

func TestOperatorCloseSkippedWhenOrdersBreakerOpen(t *testing.T) {
	gw := &fakeGateway{balance: 1000, candles: flatCandles(50, 100)}
	e, n := newTestEngine(t, testConfig(), gw)
	openLong(t, e)
	for i := 0; i < 3; i++ {
		e.orders.OnFailure()
	}

	e.RequestClose()
	e.tick(context.Background())

	if !e.ledger.IsOpen() {
		t.Fatal("position must stay open while orders breaker is open")
	}
	if len(gw.orders) != 0 {
		t.Fatalf("no exit order expected, got %+v", gw.orders)
	}
	if !strings.Contains(n.last(), "circuit open") {
		t.Fatalf("notify = %q", n.last())
	}
}

func TestOperatorCloseUpdatesOrdersBreaker(t *testing.T) {
	gw := &fakeGateway{balance: 1000, candles: flatCandles(50, 100), rejectMarket: true}
	e, _ := newTestEngine(t, testConfig(), gw)
	openLong(t, e)

	e.RequestClose()
	e.tick(context.Background())
	if f := e.orders.Snapshot().Failures; f != 1 {
		t.Fatalf("failures = %d, want 1", f)
	}

	gw.mu.Lock()
	gw.rejectMarket = false
	gw.mu.Unlock()
	e.RequestClose()
	e.tick(context.Background())
	if e.ledger.IsOpen() {
		t.Fatal("second close must succeed")
	}
	if f := e.orders.Snapshot().Failures; f != 0 {
		t.Fatalf("failures after success = %d", f)
	}
}

// Отказ биржи на чтении свечей повторяется, в отличие от отказа на ордере.
func TestCandleReadRetriesRejectedError(t *testing.T) {
	cfg := testConfig()
	cfg.Retry.Candles = config.Retry{Tries: 2, Backoff: 1}
	gw := &fakeGateway{candleErr: exchange.Rejected("fake", "51001", "instrument not found")}
	e, _ := newTestEngine(t, cfg, gw)

	e.tick(context.Background())

	gw.mu.Lock()
	defer gw.mu.Unlock()
	if gw.candleCalls != 2 {
		t.Fatalf("candle calls = %d, want 2", gw.candleCalls)
	}
}

func TestDailyReset(t *testing.T) {
	gw := &fakeGateway{noCreds: false, candles: flatCandles(50, 100)}
	e, _ := newTestEngine(t, testConfig(), gw)
	e.stats.Day = "2024-02-29"
	e.stats.DailyTradeCount = 4
	e.stats.TotalTrades = 9

	e.tick(context.Background())

	st := e.Status().Stats
	if st.Day != "2024-03-01" || st.DailyTradeCount != 0 || st.TotalTrades != 9 {
		t.Fatalf("stats = %+v", st)
	}
}

func TestBalanceFallsBackToCache(t *testing.T) {
	gw := &fakeGateway{balance: 500}
	e, _ := newTestEngine(t, testConfig(), gw)
	ctx := context.Background()

	if got := e.refreshBalance(ctx); got != 500 {
		t.Fatalf("balance = %v", got)
	}
	for i := 0; i < 5; i++ {
		e.balance.Breaker.OnFailure()
	}
	gw.balance = 900
	if got := e.refreshBalance(ctx); got != 500 {
		t.Fatalf("breaker open: balance = %v, want cached 500", got)
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	gw := &fakeGateway{balance: 1000, candles: flatCandles(50, 100)}
	e, _ := newTestEngine(t, testConfig(), gw)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	ticks := 0
	e.sleep = func(ctx context.Context, _ time.Duration) error {
		ticks++
		if ticks == 2 {
			cancel()
			return ctx.Err()
		}
		return nil
	}

	done := make(chan error, 1)
	go func() { done <- e.Run(ctx) }()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run = %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not stop")
	}
	if !e.health.Ready() || ticks != 2 {
		t.Fatalf("ready=%v ticks=%d", e.health.Ready(), ticks)
	}
}

type fakeCommander struct {
	recordingNotifier
	handlers map[string]notify.CommandFunc
}

func (c *fakeCommander) Handle(cmd string, fn notify.CommandFunc) { c.handlers[cmd] = fn }

func TestRegisterCommands(t *testing.T) {
	e, _ := newTestEngine(t, testConfig(), &fakeGateway{})
	c := &fakeCommander{handlers: map[string]notify.CommandFunc{}}

	RegisterCommands(e, c)

	status, ok := c.handlers["status"]
	if !ok || !strings.Contains(status(context.Background(), ""), "DOGE-USDT-SWAP") {
		t.Fatal("status command not registered")
	}
	if _, ok := c.handlers["close"]; !ok {
		t.Fatal("close command not registered")
	}
	// простой нотифайер без команд просто игнорируется
	RegisterCommands(e, notify.NewLog())
}

func TestStatusTextShowsOpenBreaker(t *testing.T) {
	e, _ := newTestEngine(t, testConfig(), &fakeGateway{})
	openLong(t, e)
	for i := 0; i < 3; i++ {
		e.orders.OnFailure()
	}

	txt := e.StatusText()
	if !strings.Contains(txt, "entry=100.000000") || !strings.Contains(txt, "orders открыт") {
		t.Fatalf("status = %s", txt)
	}
}
