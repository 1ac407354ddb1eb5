package service

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"trade_guard/internal/exchange"
	"trade_guard/internal/models"
	"trade_guard/internal/strategy"
)

type WarmupReport struct {
	Candles     int
	Last        models.Candle
	Ready       bool // хватает истории для индикаторов
	Credentials bool
}

// Warmup - одна пробная загрузка свечей до старта цикла: проверяет символ и таймфрейм.
func Warmup(ctx context.Context, gw exchange.Gateway, symbol, timeframe string, limit int, timeout time.Duration) (WarmupReport, error) {
	rep := WarmupReport{Credentials: exchange.HasCredentials(gw)}

	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	candles, err := gw.FetchCandles(ctx, symbol, timeframe, limit)
	if err != nil {
		return rep, errors.Wrapf(err, "warmup %s %s", symbol, timeframe)
	}
	rep.Candles = len(candles)
	if len(candles) > 0 {
		rep.Last = candles[len(candles)-1]
	}
	rep.Ready = len(candles) >= strategy.MinCandles
	return rep, nil
}
