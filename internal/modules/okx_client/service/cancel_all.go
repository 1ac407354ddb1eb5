package service

import (
	"context"
	"net/http"
	"net/url"

	"go.uber.org/multierr"

	"trade_guard/internal/exchange"
)

const (
	cancelAlgoBatch  = 10 // лимит /trade/cancel-algos
	cancelOrderBatch = 20 // лимит /trade/cancel-batch-orders
)

// CancelAllOrders снимает все висящие алго- и обычные ордера по инструменту.
// Ошибки отдельных шагов собираются и возвращаются вместе, остальные шаги выполняются.
func (c *Client) CancelAllOrders(ctx context.Context, symbol string) error {
	var errs error

	var algos []pendingAlgo
	for _, ordType := range []string{"conditional", "trigger"} {
		var rows []pendingAlgo
		q := url.Values{"instType": {"SWAP"}, "instId": {symbol}, "ordType": {ordType}}
		if err := c.do(ctx, "okx.algosPending", http.MethodGet, "/api/v5/trade/orders-algo-pending", q, nil, true, &rows); err != nil {
			errs = multierr.Append(errs, err)
			continue
		}
		algos = append(algos, rows...)
	}
	for start := 0; start < len(algos); start += cancelAlgoBatch {
		end := min(start+cancelAlgoBatch, len(algos))
		body := make([]map[string]string, 0, end-start)
		for _, a := range algos[start:end] {
			body = append(body, map[string]string{"instId": a.InstID, "algoId": a.AlgoID})
		}
		errs = multierr.Append(errs, c.cancelBatch(ctx, "okx.cancelAlgos", "/api/v5/trade/cancel-algos", body))
	}

	var orders []pendingOrder
	q := url.Values{"instType": {"SWAP"}, "instId": {symbol}}
	if err := c.do(ctx, "okx.ordersPending", http.MethodGet, "/api/v5/trade/orders-pending", q, nil, true, &orders); err != nil {
		errs = multierr.Append(errs, err)
	}
	for start := 0; start < len(orders); start += cancelOrderBatch {
		end := min(start+cancelOrderBatch, len(orders))
		body := make([]map[string]string, 0, end-start)
		for _, o := range orders[start:end] {
			body = append(body, map[string]string{"instId": o.InstID, "ordId": o.OrdID})
		}
		errs = multierr.Append(errs, c.cancelBatch(ctx, "okx.cancelOrders", "/api/v5/trade/cancel-batch-orders", body))
	}
	return errs
}

func (c *Client) cancelBatch(ctx context.Context, op, path string, body []map[string]string) error {
	var acks []orderAck
	if err := c.do(ctx, op, http.MethodPost, path, nil, body, true, &acks); err != nil {
		return err
	}
	var errs error
	for _, a := range acks {
		if a.SCode != "" && a.SCode != "0" {
			errs = multierr.Append(errs, exchange.Rejected(op, a.SCode, "%s", a.SMsg))
		}
	}
	return errs
}
