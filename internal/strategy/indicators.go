package strategy

import (
	"math"

	"github.com/markcheno/go-talib"

	"trade_guard/internal/models"
)

// MinCandles - EMA200 плюс запас на сглаживание ADX.
const MinCandles = 210

// Compute ожидает не меньше MinCandles свечей (talib паникует на коротких рядах).
func Compute(candles []models.Candle) models.Indicators {
	n := len(candles)
	highs := make([]float64, n)
	lows := make([]float64, n)
	closes := make([]float64, n)
	for i, c := range candles {
		highs[i], lows[i], closes[i] = c.High, c.Low, c.Close
	}

	rsi := talib.Rsi(closes, 14)
	adx := talib.Adx(highs, lows, closes, 14)
	ema20 := talib.Ema(closes, 20)
	ema50 := talib.Ema(closes, 50)
	ema200 := talib.Ema(closes, 200)
	atr := talib.Atr(highs, lows, closes, 14)
	upper, _, lower := talib.BBands(closes, 20, 2, 2, talib.SMA)

	price := closes[n-1]
	ind := models.Indicators{
		Price:  price,
		RSI:    rsi[n-2], // по последней закрытой свече
		ADX:    adx[n-1],
		EMA20:  ema20[n-1],
		EMA50:  ema50[n-1],
		EMA200: ema200[n-1],
		ATR:    atr[n-1],
	}
	if price > 0 {
		ind.BBWidthPct = (upper[n-1] - lower[n-1]) / price * 100
	}
	ind.RangePct = (highs[n-1] - lows[n-1]) / math.Max(lows[n-1], 1e-9) * 100
	ind.TrendDir = -1
	if price > ind.EMA200 {
		ind.TrendDir = 1
	}
	return ind
}
