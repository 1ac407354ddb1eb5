package protect

import (
	"trade_guard/internal/exchange"
	"trade_guard/internal/models"
)

// Kind - диалект параметров одного и того же защитного ордера.
type Kind string

const (
	TakeProfitMarket  Kind = "TAKE_PROFIT_MARKET"
	TakeProfit        Kind = "TAKE_PROFIT"
	MarketWithTPField Kind = "market+takeProfitPrice"
	StopMarket        Kind = "STOP_MARKET"
	Stop              Kind = "STOP"
	MarketWithSLField Kind = "market+stopLossPrice"
)

// OrderSpec - одна попытка выставить защиту. Не меняется после создания.
type OrderSpec struct {
	Kind       Kind
	Side       exchange.OrderSide
	Price      float64 // trigger или целевая цена
	ReduceOnly bool
}

// Request переводит spec в (type, params) шлюза.
func (s OrderSpec) Request() (exchange.OrderType, exchange.OrderParams) {
	params := exchange.OrderParams{ReduceOnly: s.ReduceOnly}
	switch s.Kind {
	case TakeProfitMarket:
		params.TriggerPrice = s.Price
		return exchange.OrderTakeProfitMarket, params
	case TakeProfit:
		params.TriggerPrice = s.Price
		return exchange.OrderTakeProfit, params
	case MarketWithTPField:
		params.TakeProfitPrice = s.Price
		return exchange.OrderMarket, params
	case StopMarket:
		params.TriggerPrice = s.Price
		return exchange.OrderStopMarket, params
	case Stop:
		params.TriggerPrice = s.Price
		return exchange.OrderStop, params
	case MarketWithSLField:
		params.StopLossPrice = s.Price
		return exchange.OrderMarket, params
	}
	return exchange.OrderType(s.Kind), params
}

// TakeProfitSpecs - порядок перебора фиксирован, выигрывает первый принятый.
func TakeProfitSpecs(side models.Side, tp float64) []OrderSpec {
	rs := exchange.ReduceSide(side)
	return []OrderSpec{
		{Kind: TakeProfitMarket, Side: rs, Price: tp, ReduceOnly: true},
		{Kind: TakeProfit, Side: rs, Price: tp, ReduceOnly: true},
		{Kind: MarketWithTPField, Side: rs, Price: tp, ReduceOnly: true},
	}
}

func StopLossSpecs(side models.Side, sl float64) []OrderSpec {
	rs := exchange.ReduceSide(side)
	return []OrderSpec{
		{Kind: StopMarket, Side: rs, Price: sl, ReduceOnly: true},
		{Kind: Stop, Side: rs, Price: sl, ReduceOnly: true},
		{Kind: MarketWithSLField, Side: rs, Price: sl, ReduceOnly: true},
	}
}

// Levels: long - TP выше входа, SL ниже; short наоборот.
func Levels(side models.Side, entry, atr, tpMult, slMult float64) (tp1, sl float64) {
	sign := side.Sign()
	return entry + sign*tpMult*atr, entry - sign*slMult*atr
}
