package service

import (
	"context"
	"net/http"
	"net/url"

	"github.com/pkg/errors"

	"trade_guard/internal/exchange"
	"trade_guard/internal/helper"
	"trade_guard/pkg/logger"
)

// CreateOrder. Диалекты:
//   - market                      -> /trade/order ordType=market
//   - TAKE_PROFIT_MARKET / STOP_MARKET -> /trade/order-algo conditional, исполнение по рынку (OrdPx=-1)
//   - TAKE_PROFIT / STOP          -> /trade/order-algo trigger, лимитный ордер по цене триггера
//   - market + takeProfitPrice/stopLossPrice OKX не поддерживает, отказ без запроса.
//
// qty в базовой монете, переводится в контракты по ctVal и округляется вниз до lotSz.
func (c *Client) CreateOrder(ctx context.Context, symbol string, typ exchange.OrderType, side exchange.OrderSide, qty float64, params exchange.OrderParams) (exchange.OrderHandle, error) {
	const op = "okx.CreateOrder"

	if side != exchange.Buy && side != exchange.Sell {
		return exchange.OrderHandle{}, exchange.Rejected(op, "", "unsupported side %q", side)
	}
	if typ == exchange.OrderMarket && (params.TakeProfitPrice > 0 || params.StopLossPrice > 0) {
		return exchange.OrderHandle{}, exchange.Rejected(op, "", "market order with attached tp/sl is not supported")
	}

	inst, err := c.instrument(ctx, symbol)
	if err != nil {
		return exchange.OrderHandle{}, err
	}
	contracts := helper.RoundDownToTick(qty/inst.CtVal, inst.LotSz)
	if contracts < inst.MinSz {
		return exchange.OrderHandle{}, exchange.Rejected(op, "", "size %.8f contracts below minSz %.8f", contracts, inst.MinSz)
	}
	sz := helper.FormatToTick(contracts, inst.LotSz)
	px := func(v float64) string { return helper.FormatToTick(helper.RoundToTick(v, inst.TickSz), inst.TickSz) }

	h := exchange.OrderHandle{ClientOrderID: params.ClientOrderID, Symbol: symbol, Type: typ, Side: side, Qty: qty}

	switch typ {
	case exchange.OrderMarket:
		body := map[string]any{
			"instId":  symbol,
			"tdMode":  c.tdMode,
			"side":    string(side),
			"ordType": "market",
			"sz":      sz,
		}
		if params.ReduceOnly {
			body["reduceOnly"] = true
		}
		if params.ClientOrderID != "" {
			body["clOrdId"] = clOrdID(params.ClientOrderID)
		}
		ack, err := c.submit(ctx, op, "/api/v5/trade/order", body)
		if err != nil {
			return exchange.OrderHandle{}, err
		}
		h.ID = ack.OrdID
		return h, nil

	case exchange.OrderTakeProfitMarket, exchange.OrderStopMarket:
		if params.TriggerPrice <= 0 {
			return exchange.OrderHandle{}, exchange.Rejected(op, "", "%s: triggerPrice <= 0", typ)
		}
		body := c.algoBody(symbol, side, sz, params)
		body["ordType"] = "conditional"
		if typ == exchange.OrderTakeProfitMarket {
			body["tpTriggerPx"] = px(params.TriggerPrice)
			body["tpOrdPx"] = "-1"
			body["tpTriggerPxType"] = "last"
		} else {
			body["slTriggerPx"] = px(params.TriggerPrice)
			body["slOrdPx"] = "-1"
			body["slTriggerPxType"] = "last"
		}
		ack, err := c.submit(ctx, op, "/api/v5/trade/order-algo", body)
		if err != nil {
			return exchange.OrderHandle{}, err
		}
		h.ID = ack.AlgoID
		return h, nil

	case exchange.OrderTakeProfit, exchange.OrderStop:
		if params.TriggerPrice <= 0 {
			return exchange.OrderHandle{}, exchange.Rejected(op, "", "%s: triggerPrice <= 0", typ)
		}
		body := c.algoBody(symbol, side, sz, params)
		body["ordType"] = "trigger"
		body["triggerPx"] = px(params.TriggerPrice)
		body["orderPx"] = px(params.TriggerPrice)
		body["triggerPxType"] = "last"
		ack, err := c.submit(ctx, op, "/api/v5/trade/order-algo", body)
		if err != nil {
			return exchange.OrderHandle{}, err
		}
		h.ID = ack.AlgoID
		return h, nil
	}

	return exchange.OrderHandle{}, exchange.Rejected(op, "", "unsupported order type %q", typ)
}

func (c *Client) algoBody(symbol string, side exchange.OrderSide, sz string, params exchange.OrderParams) map[string]any {
	body := map[string]any{
		"instId": symbol,
		"tdMode": c.tdMode,
		"side":   string(side),
		"sz":     sz,
	}
	if params.ReduceOnly {
		body["reduceOnly"] = true
	}
	if params.ClientOrderID != "" {
		body["algoClOrdId"] = clOrdID(params.ClientOrderID)
	}
	return body
}

// codeDuplicateClientID: ордер с таким clOrdId/algoClOrdId уже принят биржей.
const codeDuplicateClientID = "51016"

func (c *Client) submit(ctx context.Context, op, path string, body map[string]any) (orderAck, error) {
	var acks []orderAck
	err := c.do(ctx, op, http.MethodPost, path, nil, body, true, &acks)
	switch {
	case err != nil:
	case len(acks) == 0:
		err = exchange.Rejected(op, "", "empty ack")
	case acks[0].SCode != "" && acks[0].SCode != "0":
		err = exchange.Rejected(op, acks[0].SCode, "%s", acks[0].SMsg)
	default:
		return acks[0], nil
	}

	// повтор после таймаута: первая попытка дошла, значит ордер уже стоит
	var rj *exchange.RejectedError
	if errors.As(err, &rj) && rj.Code == codeDuplicateClientID {
		if ack, ok := c.lookupByClientID(ctx, path, body); ok {
			return ack, nil
		}
	}
	return orderAck{}, err
}

// lookupByClientID находит уже принятый ордер по нашему client id. Если запрос
// не удался, ордер всё равно считается принятым: 51016 это подтверждает.
func (c *Client) lookupByClientID(ctx context.Context, path string, body map[string]any) (orderAck, bool) {
	instID, _ := body["instId"].(string)
	q := url.Values{"instId": {instID}}
	var id string
	if path == "/api/v5/trade/order" {
		id, _ = body["clOrdId"].(string)
		q.Set("clOrdId", id)
	} else {
		id, _ = body["algoClOrdId"].(string)
		q.Set("algoClOrdId", id)
	}
	if id == "" {
		return orderAck{}, false
	}

	var rows []orderAck
	if err := c.do(ctx, "okx.lookupOrder", http.MethodGet, path, q, nil, true, &rows); err != nil || len(rows) == 0 {
		logger.Warn("[okx] %s: duplicate client id %s, lookup failed (%v), treating as accepted", path, id, err)
		return orderAck{OrdID: id, AlgoID: id, ClOrdID: id}, true
	}
	logger.Info("[okx] %s: duplicate client id %s resolved to ordId=%s algoId=%s", path, id, rows[0].OrdID, rows[0].AlgoID)
	return rows[0], true
}
