package exchange

import (
	"context"

	"trade_guard/internal/models"
)

type OrderType string

const (
	OrderMarket           OrderType = "market"
	OrderTakeProfitMarket OrderType = "TAKE_PROFIT_MARKET"
	OrderTakeProfit       OrderType = "TAKE_PROFIT"
	OrderStopMarket       OrderType = "STOP_MARKET"
	OrderStop             OrderType = "STOP"
)

// Conditional - ордер с триггером (TP/SL), а не немедленный.
func (t OrderType) Conditional() bool {
	switch t {
	case OrderTakeProfitMarket, OrderTakeProfit, OrderStopMarket, OrderStop:
		return true
	}
	return false
}

type OrderSide string

const (
	Buy  OrderSide = "buy"
	Sell OrderSide = "sell"
)

// EntrySide: long входит покупкой, short продажей.
func EntrySide(s models.Side) OrderSide {
	if s == models.SideShort {
		return Sell
	}
	return Buy
}

// ReduceSide - сторона закрывающего (reduce-only) ордера.
func ReduceSide(s models.Side) OrderSide {
	if s == models.SideShort {
		return Buy
	}
	return Sell
}

// OrderParams - диалект параметров ордера. Нулевые цены означают "не задано".
type OrderParams struct {
	ReduceOnly      bool
	TriggerPrice    float64
	TakeProfitPrice float64
	StopLossPrice   float64
	// ClientOrderID один и тот же при повторе одной попытки, чтобы биржа отбросила дубль.
	ClientOrderID string
}

type OrderHandle struct {
	ID            string
	ClientOrderID string
	Symbol        string
	Type          OrderType
	Side          OrderSide
	Qty           float64
}

// Balance: asset -> total.
type Balance map[string]float64

type LeverageParams struct {
	MarginMode string // isolated | cross
}

// Gateway - всё, что торговому ядру нужно от биржи.
type Gateway interface {
	FetchCandles(ctx context.Context, symbol, timeframe string, limit int) ([]models.Candle, error)
	FetchBalance(ctx context.Context) (Balance, error)
	CreateOrder(ctx context.Context, symbol string, typ OrderType, side OrderSide, qty float64, params OrderParams) (OrderHandle, error)
	SetLeverage(ctx context.Context, leverage int, symbol string, params LeverageParams) error
}

// OrderCanceler есть не у всех шлюзов, проверяется через type assertion.
type OrderCanceler interface {
	CancelAllOrders(ctx context.Context, symbol string) error
}

type CredentialChecker interface {
	HasCredentials() bool
}

// HasCredentials: шлюз без CredentialChecker считается настроенным.
func HasCredentials(gw Gateway) bool {
	if cc, ok := gw.(CredentialChecker); ok {
		return cc.HasCredentials()
	}
	return true
}
