package strategy

import (
	"fmt"
	"math"

	"trade_guard/internal/models"
)

// Decide - правила по порядку: фильтры отсекают тик, затем тренд + пересечение EMA + RSI.
func Decide(cfg Config, last models.Candle, ind models.Indicators) models.SignalDecision {
	none := func(reason string) models.SignalDecision {
		return models.SignalDecision{Side: models.SideNone, Reason: reason}
	}

	if ind.ADX < cfg.ADXMin {
		return none("adx_low")
	}
	if isSpike(last, cfg.SpikeRatio) {
		return none("spike")
	}
	if ind.RangePct > cfg.MaxRangePct || ind.BBWidthPct > cfg.MaxBBWidthPct {
		return none("explosion")
	}
	if ind.EMA20 == 0 || ind.EMA50 == 0 {
		return none("no_ema")
	}

	if ind.TrendDir > 0 && ind.EMA20 > ind.EMA50 && ind.RSI < cfg.RSIOverbought {
		return models.SignalDecision{Side: models.SideLong, Reason: fmt.Sprintf("ema20>ema50 & rsi<%.0f & uptrend", cfg.RSIOverbought)}
	}
	if ind.TrendDir < 0 && ind.EMA20 < ind.EMA50 && ind.RSI > cfg.RSIOversold {
		return models.SignalDecision{Side: models.SideShort, Reason: fmt.Sprintf("ema20<ema50 & rsi>%.0f & downtrend", cfg.RSIOversold)}
	}
	return none("no_setup")
}

// isSpike: диапазон свечи больше ratio тел.
func isSpike(c models.Candle, ratio float64) bool {
	body := math.Abs(c.Close - c.Open)
	wick := c.High - c.Low
	return wick > ratio*math.Max(body, 1e-9)
}
