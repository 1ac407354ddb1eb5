package service

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"trade_guard/internal/models"
)

// FetchCandles: OKX отдаёт newest-first, наружу уходят старые первыми.
// Строка: [ts, o, h, l, c, vol, volCcy, volCcyQuote, confirm]
func (c *Client) FetchCandles(ctx context.Context, symbol, timeframe string, limit int) ([]models.Candle, error) {
	if limit <= 0 {
		limit = 100
	}
	if limit > 300 {
		limit = 300 // максимум /market/candles
	}
	bar, err := okxBar(timeframe)
	if err != nil {
		return nil, err
	}

	var rows [][]string
	q := url.Values{"instId": {symbol}, "bar": {bar}, "limit": {strconv.Itoa(limit)}}
	if err := c.do(ctx, "okx.candles", http.MethodGet, "/api/v5/market/candles", q, nil, false, &rows); err != nil {
		return nil, err
	}

	out := make([]models.Candle, 0, len(rows))
	for i := len(rows) - 1; i >= 0; i-- {
		row := rows[i]
		if len(row) < 5 {
			continue
		}
		tsMs, err := strconv.ParseInt(row[0], 10, 64)
		if err != nil {
			continue
		}
		open, _ := strconv.ParseFloat(row[1], 64)
		high, _ := strconv.ParseFloat(row[2], 64)
		low, _ := strconv.ParseFloat(row[3], 64)
		closep, _ := strconv.ParseFloat(row[4], 64)
		if closep <= 0 {
			continue
		}
		var vol float64
		if len(row) >= 6 {
			vol, _ = strconv.ParseFloat(row[5], 64)
		}
		out = append(out, models.Candle{
			Start:  time.UnixMilli(tsMs).UTC(),
			Open:   open,
			High:   high,
			Low:    low,
			Close:  closep,
			Volume: vol,
		})
	}
	return out, nil
}
