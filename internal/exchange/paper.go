package exchange

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"trade_guard/internal/models"
	"trade_guard/pkg/logger"
)

// CandleSource - откуда paper-режим берёт рыночные данные (обычно публичный OKX).
type CandleSource interface {
	FetchCandles(ctx context.Context, symbol, timeframe string, limit int) ([]models.Candle, error)
}

type PaperOrder struct {
	OrderHandle
	Params    OrderParams
	CreatedAt time.Time

	seq uint64
}

// PaperGateway - бумажная торговля: настоящие свечи, симулированные баланс и ордера.
// Рыночные ордера исполняются сразу и в книге не остаются, условные висят до CancelAllOrders.
type PaperGateway struct {
	src   CandleSource
	quote string

	mu       sync.Mutex
	balance  Balance
	leverage map[string]int
	pending  map[string]PaperOrder // id -> ордер
	fills    []PaperOrder
	seq      uint64
}

func NewPaperGateway(src CandleSource, quote string, startBalance float64) *PaperGateway {
	if quote == "" {
		quote = "USDT"
	}
	return &PaperGateway{
		src:      src,
		quote:    quote,
		balance:  Balance{quote: startBalance},
		leverage: make(map[string]int),
		pending:  make(map[string]PaperOrder),
	}
}

func (p *PaperGateway) FetchCandles(ctx context.Context, symbol, timeframe string, limit int) ([]models.Candle, error) {
	if p.src == nil {
		return nil, errors.Wrap(ErrNotSupported, "paper: no candle source")
	}
	return p.src.FetchCandles(ctx, symbol, timeframe, limit)
}

func (p *PaperGateway) FetchBalance(_ context.Context) (Balance, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	out := make(Balance, len(p.balance))
	for k, v := range p.balance {
		out[k] = v
	}
	return out, nil
}

func (p *PaperGateway) CreateOrder(_ context.Context, symbol string, typ OrderType, side OrderSide, qty float64, params OrderParams) (OrderHandle, error) {
	if qty <= 0 {
		return OrderHandle{}, Rejected("paper.CreateOrder", "", "qty<=0")
	}
	if side != Buy && side != Sell {
		return OrderHandle{}, Rejected("paper.CreateOrder", "", "bad side %q", side)
	}
	if typ.Conditional() && params.TriggerPrice <= 0 {
		return OrderHandle{}, Rejected("paper.CreateOrder", "", "%s without triggerPrice", typ)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	// повтор с тем же clientOrderId возвращает уже созданный или исполненный ордер
	if params.ClientOrderID != "" {
		for _, o := range p.pending {
			if o.ClientOrderID == params.ClientOrderID {
				return o.OrderHandle, nil
			}
		}
		for _, o := range p.fills {
			if o.ClientOrderID == params.ClientOrderID {
				return o.OrderHandle, nil
			}
		}
	}

	o := PaperOrder{
		OrderHandle: OrderHandle{
			ID:            uuid.NewString(),
			ClientOrderID: params.ClientOrderID,
			Symbol:        symbol,
			Type:          typ,
			Side:          side,
			Qty:           qty,
		},
		Params:    params,
		CreatedAt: time.Now().UTC(),
	}
	p.seq++
	o.seq = p.seq

	if typ.Conditional() || params.TakeProfitPrice > 0 || params.StopLossPrice > 0 {
		p.pending[o.ID] = o
	} else {
		p.fills = append(p.fills, o)
	}
	logger.Debug("[paper] %s %s %s qty=%.6f id=%s", symbol, typ, side, qty, o.ID)
	return o.OrderHandle, nil
}

func (p *PaperGateway) SetLeverage(_ context.Context, leverage int, symbol string, _ LeverageParams) error {
	if leverage <= 0 {
		return Rejected("paper.SetLeverage", "", "leverage<=0")
	}
	p.mu.Lock()
	p.leverage[symbol] = leverage
	p.mu.Unlock()
	return nil
}

func (p *PaperGateway) CancelAllOrders(_ context.Context, symbol string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	n := 0
	for id, o := range p.pending {
		if strings.EqualFold(o.Symbol, symbol) {
			delete(p.pending, id)
			n++
		}
	}
	logger.Debug("[paper] cancel-all %s: %d orders", symbol, n)
	return nil
}

func (p *PaperGateway) HasCredentials() bool { return true }

// Pending - висящие условные ордера в порядке создания.
func (p *PaperGateway) Pending() []PaperOrder {
	p.mu.Lock()
	defer p.mu.Unlock()

	out := make([]PaperOrder, 0, len(p.pending))
	for _, o := range p.pending {
		out = append(out, o)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].seq < out[j].seq })
	return out
}

func (p *PaperGateway) Fills() []PaperOrder {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]PaperOrder(nil), p.fills...)
}

func (p *PaperGateway) Leverage(symbol string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.leverage[symbol]
}

// Settle добавляет реализованный PnL к балансу.
func (p *PaperGateway) Settle(pnl float64) {
	p.mu.Lock()
	p.balance[p.quote] += pnl
	p.mu.Unlock()
}
