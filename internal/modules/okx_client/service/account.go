package service

import (
	"context"
	"net/http"
	"strconv"

	"trade_guard/internal/exchange"
)

// FetchBalance: ccy -> eq по торговому аккаунту.
func (c *Client) FetchBalance(ctx context.Context) (exchange.Balance, error) {
	var rows []balanceData
	if err := c.do(ctx, "okx.balance", http.MethodGet, "/api/v5/account/balance", nil, nil, true, &rows); err != nil {
		return nil, err
	}

	out := exchange.Balance{}
	for _, r := range rows {
		for _, d := range r.Details {
			v := d.Eq
			if v == "" {
				v = d.CashBal
			}
			if f, err := strconv.ParseFloat(v, 64); err == nil {
				out[d.Ccy] += f
			}
		}
	}
	return out, nil
}

func (c *Client) SetLeverage(ctx context.Context, leverage int, symbol string, params exchange.LeverageParams) error {
	if leverage <= 0 {
		return exchange.Rejected("okx.SetLeverage", "", "leverage must be > 0")
	}
	mode := params.MarginMode
	if mode == "" {
		mode = c.tdMode
	}
	body := map[string]any{
		"instId":  symbol,
		"lever":   strconv.Itoa(leverage),
		"mgnMode": mode,
	}
	return c.do(ctx, "okx.SetLeverage", http.MethodPost, "/api/v5/account/set-leverage", nil, body, true, nil)
}
