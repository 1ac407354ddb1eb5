package exchange

import (
	"context"
	"fmt"
	"testing"

	"github.com/pkg/errors"

	"trade_guard/internal/models"
)

type staticCandles []models.Candle

func (s staticCandles) FetchCandles(context.Context, string, string, int) ([]models.Candle, error) {
	return s, nil
}

func TestErrorClassification(t *testing.T) {
	tr := Transient("okx.candles", fmt.Errorf("connection reset"))
	rj := Rejected("okx.order", "51000", "bad param %s", "tpTriggerPx")

	tests := []struct {
		name      string
		err       error
		transient bool
		rejected  bool
	}{
		{"transient", tr, true, false},
		{"wrapped transient", errors.Wrap(tr, "fetch"), true, false},
		{"rejected", rj, false, true},
		{"wrapped rejected", fmt.Errorf("place: %w", rj), false, true},
		{"plain", errors.New("boom"), false, false},
		{"nil", nil, false, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsTransient(tt.err); got != tt.transient {
				t.Fatalf("IsTransient = %v, want %v", got, tt.transient)
			}
			if got := IsRejected(tt.err); got != tt.rejected {
				t.Fatalf("IsRejected = %v, want %v", got, tt.rejected)
			}
		})
	}

	if Transient("x", nil) != nil {
		t.Fatal("Transient(nil) must be nil")
	}
}

func TestSides(t *testing.T) {
	if EntrySide(models.SideLong) != Buy || ReduceSide(models.SideLong) != Sell {
		t.Fatal("long sides")
	}
	if EntrySide(models.SideShort) != Sell || ReduceSide(models.SideShort) != Buy {
		t.Fatal("short sides")
	}
}

func TestPaperGatewayOrdersAndCancelAll(t *testing.T) {
	ctx := context.Background()
	p := NewPaperGateway(staticCandles{{Close: 1}}, "", 1000)

	if !HasCredentials(p) {
		t.Fatal("paper gateway always has credentials")
	}

	tp, err := p.CreateOrder(ctx, "DOGE-USDT-SWAP", OrderTakeProfitMarket, Sell, 10, OrderParams{ReduceOnly: true, TriggerPrice: 1.1, ClientOrderID: "tp-1"})
	if err != nil {
		t.Fatalf("tp: %v", err)
	}
	// повтор с тем же clientOrderId не создаёт второй ордер
	again, err := p.CreateOrder(ctx, "DOGE-USDT-SWAP", OrderTakeProfitMarket, Sell, 10, OrderParams{ReduceOnly: true, TriggerPrice: 1.1, ClientOrderID: "tp-1"})
	if err != nil || again.ID != tp.ID {
		t.Fatalf("retry with same client id: id=%s err=%v, want id=%s", again.ID, err, tp.ID)
	}
	if _, err := p.CreateOrder(ctx, "DOGE-USDT-SWAP", OrderStopMarket, Sell, 10, OrderParams{ReduceOnly: true, TriggerPrice: 0.9}); err != nil {
		t.Fatalf("sl: %v", err)
	}
	if _, err := p.CreateOrder(ctx, "BTC-USDT-SWAP", OrderStop, Sell, 1, OrderParams{ReduceOnly: true, TriggerPrice: 10}); err != nil {
		t.Fatalf("other symbol: %v", err)
	}
	if _, err := p.CreateOrder(ctx, "DOGE-USDT-SWAP", OrderMarket, Buy, 10, OrderParams{}); err != nil {
		t.Fatalf("entry: %v", err)
	}

	if got := len(p.Pending()); got != 3 {
		t.Fatalf("pending = %d, want 3", got)
	}
	if got := len(p.Fills()); got != 1 {
		t.Fatalf("fills = %d, want 1", got)
	}

	if err := p.CancelAllOrders(ctx, "DOGE-USDT-SWAP"); err != nil {
		t.Fatalf("cancel-all: %v", err)
	}
	pending := p.Pending()
	if len(pending) != 1 || pending[0].Symbol != "BTC-USDT-SWAP" {
		t.Fatalf("after cancel-all pending = %+v", pending)
	}
}

func TestPaperGatewayMarketRetryFillsOnce(t *testing.T) {
	ctx := context.Background()
	p := NewPaperGateway(staticCandles{{Close: 1}}, "", 1000)

	first, err := p.CreateOrder(ctx, "DOGE-USDT-SWAP", OrderMarket, Buy, 10, OrderParams{ClientOrderID: "entry-1"})
	if err != nil {
		t.Fatalf("entry: %v", err)
	}
	again, err := p.CreateOrder(ctx, "DOGE-USDT-SWAP", OrderMarket, Buy, 10, OrderParams{ClientOrderID: "entry-1"})
	if err != nil || again.ID != first.ID {
		t.Fatalf("retry: id=%s err=%v, want id=%s", again.ID, err, first.ID)
	}
	if got := len(p.Fills()); got != 1 {
		t.Fatalf("fills = %d, want 1", got)
	}

	if _, err := p.CreateOrder(ctx, "DOGE-USDT-SWAP", OrderMarket, Buy, 10, OrderParams{}); err != nil {
		t.Fatalf("no id: %v", err)
	}
	if got := len(p.Fills()); got != 2 {
		t.Fatalf("orders without client id are never deduplicated: fills = %d", got)
	}
}

func TestPaperGatewayRejects(t *testing.T) {
	ctx := context.Background()
	p := NewPaperGateway(nil, "USDT", 0)

	if _, err := p.CreateOrder(ctx, "X", OrderMarket, Buy, 0, OrderParams{}); !IsRejected(err) {
		t.Fatalf("qty=0: %v", err)
	}
	if _, err := p.CreateOrder(ctx, "X", OrderStop, Sell, 1, OrderParams{}); !IsRejected(err) {
		t.Fatalf("stop without trigger: %v", err)
	}
	if _, err := p.FetchCandles(ctx, "X", "15m", 10); !errors.Is(err, ErrNotSupported) {
		t.Fatalf("no source: %v", err)
	}
}

func TestPaperGatewayBalanceAndLeverage(t *testing.T) {
	ctx := context.Background()
	p := NewPaperGateway(nil, "USDT", 100)

	p.Settle(-12.5)
	bal, _ := p.FetchBalance(ctx)
	if bal["USDT"] != 87.5 {
		t.Fatalf("balance = %v", bal["USDT"])
	}
	bal["USDT"] = 0 // копия, исходник не меняется
	if b2, _ := p.FetchBalance(ctx); b2["USDT"] != 87.5 {
		t.Fatal("FetchBalance must return a copy")
	}

	if err := p.SetLeverage(ctx, 10, "X", LeverageParams{MarginMode: "isolated"}); err != nil {
		t.Fatal(err)
	}
	if p.Leverage("X") != 10 {
		t.Fatalf("leverage = %d", p.Leverage("X"))
	}
}
