package runner

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"trade_guard/internal/exchange"
	"trade_guard/internal/models"
	"trade_guard/internal/modules/config"
	health "trade_guard/internal/modules/health/service"
)

type placed struct {
	Type   exchange.OrderType
	Side   exchange.OrderSide
	Qty    float64
	Params exchange.OrderParams
}

type fakeGateway struct {
	mu sync.Mutex

	candles       []models.Candle
	candleErr     error
	candlePanic   bool
	candleCalls   int
	balance       float64
	noCreds       bool
	rejectProtect bool
	rejectMarket  bool

	orders   []placed
	cancels  int
	leverage int
	settled  float64
}

func (g *fakeGateway) FetchCandles(context.Context, string, string, int) ([]models.Candle, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.candleCalls++
	if g.candlePanic {
		panic("boom")
	}
	if g.candleErr != nil {
		return nil, g.candleErr
	}
	return g.candles, nil
}

func (g *fakeGateway) FetchBalance(context.Context) (exchange.Balance, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return exchange.Balance{"USDT": g.balance}, nil
}

func (g *fakeGateway) CreateOrder(_ context.Context, symbol string, typ exchange.OrderType, side exchange.OrderSide, qty float64, params exchange.OrderParams) (exchange.OrderHandle, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	protective := typ.Conditional() || params.TakeProfitPrice > 0 || params.StopLossPrice > 0
	if protective && g.rejectProtect {
		return exchange.OrderHandle{}, exchange.Rejected("fake", "51000", "no")
	}
	if !protective && g.rejectMarket {
		return exchange.OrderHandle{}, exchange.Rejected("fake", "51008", "insufficient margin")
	}
	g.orders = append(g.orders, placed{Type: typ, Side: side, Qty: qty, Params: params})
	return exchange.OrderHandle{ID: "x", Symbol: symbol, Type: typ, Side: side, Qty: qty}, nil
}

func (g *fakeGateway) SetLeverage(_ context.Context, leverage int, _ string, _ exchange.LeverageParams) error {
	g.mu.Lock()
	g.leverage = leverage
	g.mu.Unlock()
	return nil
}

func (g *fakeGateway) CancelAllOrders(context.Context, string) error {
	g.mu.Lock()
	g.cancels++
	g.mu.Unlock()
	return nil
}

func (g *fakeGateway) HasCredentials() bool { return !g.noCreds }

func (g *fakeGateway) Settle(pnl float64) {
	g.mu.Lock()
	g.settled += pnl
	g.mu.Unlock()
}

type recordingNotifier struct {
	mu   sync.Mutex
	msgs []string
}

func (n *recordingNotifier) Send(msg string) {
	n.mu.Lock()
	n.msgs = append(n.msgs, msg)
	n.mu.Unlock()
}

func (n *recordingNotifier) Sendf(format string, args ...any) {
	n.Send(strings.TrimSpace(fmt.Sprintf(format, args...)))
}

func (n *recordingNotifier) last() string {
	n.mu.Lock()
	defer n.mu.Unlock()
	if len(n.msgs) == 0 {
		return ""
	}
	return n.msgs[len(n.msgs)-1]
}

func testConfig() *config.Config {
	cfg := config.Default()
	cfg.Trading.Symbol = "DOGE-USDT-SWAP"
	one := config.Retry{Tries: 1, Backoff: 1}
	cfg.Retry.Candles, cfg.Retry.Balance, cfg.Retry.Orders = one, one, one
	cfg.Trading.CallTimeout = time.Second
	return cfg
}

func newTestEngine(t *testing.T, cfg *config.Config, gw *fakeGateway) (*Engine, *recordingNotifier) {
	t.Helper()
	n := &recordingNotifier{}
	e := NewEngine(cfg, gw, n, health.NewState())
	e.now = func() time.Time { return time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC) }
	return e, n
}

func flatCandles(n int, last float64) []models.Candle {
	out := make([]models.Candle, n)
	start := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	for i := range out {
		out[i] = models.Candle{Start: start.Add(time.Duration(i) * 15 * time.Minute), Open: 100, High: 100.5, Low: 99.5, Close: 100, Volume: 1}
	}
	out[n-1].Close = last
	return out
}

func openLong(t *testing.T, e *Engine) {
	t.Helper()
	err := e.ledger.Open(models.Position{Side: models.SideLong, Quantity: 60, EntryPrice: 100, TP1Price: 102.4, SLPrice: 97.6})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
}
