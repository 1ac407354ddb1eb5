package strategy

import (
	"time"

	"trade_guard/internal/models"
)

// Config - пороги правил входа.
type Config struct {
	ADXMin        float64 `mapstructure:"adx_min" yaml:"adx_min"`
	SpikeRatio    float64 `mapstructure:"spike_ratio" yaml:"spike_ratio"` // тени/тело последней свечи
	MaxRangePct   float64 `mapstructure:"max_range_pct" yaml:"max_range_pct"`
	MaxBBWidthPct float64 `mapstructure:"max_bb_width_pct" yaml:"max_bb_width_pct"`
	RSIOverbought float64 `mapstructure:"rsi_overbought" yaml:"rsi_overbought"`
	RSIOversold   float64 `mapstructure:"rsi_oversold" yaml:"rsi_oversold"`
}

func DefaultConfig() Config {
	return Config{
		ADXMin:        15,
		SpikeRatio:    4,
		MaxRangePct:   3,
		MaxBBWidthPct: 3.5,
		RSIOverbought: 70,
		RSIOversold:   30,
	}
}

// Evaluator считает индикаторы по свечам и выдаёт решение на тик.
type Evaluator struct {
	cfg Config
	now func() time.Time
}

func NewEvaluator(cfg Config) *Evaluator {
	return &Evaluator{cfg: cfg, now: time.Now}
}

// Evaluate. Пока свечей меньше MinCandles, решение всегда none/"warmup",
// в снимке заполнена только цена.
func (e *Evaluator) Evaluate(candles []models.Candle) (models.SignalDecision, models.Indicators) {
	if len(candles) == 0 {
		return models.SignalDecision{Side: models.SideNone, Reason: "no_data"}, models.Indicators{}
	}
	last := candles[len(candles)-1]
	if len(candles) < MinCandles {
		return models.SignalDecision{Side: models.SideNone, Reason: "warmup"},
			models.Indicators{Price: last.Close, UpdateTimeUTC: e.stamp()}
	}

	ind := Compute(candles)
	ind.UpdateTimeUTC = e.stamp()
	return Decide(e.cfg, last, ind), ind
}

func (e *Evaluator) stamp() string {
	return e.now().UTC().Format("2006-01-02 15:04:05 UTC")
}
