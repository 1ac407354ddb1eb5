package models

import (
	"fmt"
	"strings"
)

type Side string

const (
	SideNone  Side = "none"
	SideLong  Side = "long"
	SideShort Side = "short"
)

// ParseSide принимает long/short (и BUY/SELL, как в старых конфигах).
func ParseSide(raw string) (Side, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "long", "buy":
		return SideLong, nil
	case "short", "sell":
		return SideShort, nil
	case "", "none", "n/a":
		return SideNone, nil
	}
	return SideNone, fmt.Errorf("unknown side: %q", raw)
}

// Sign: +1 для long, -1 для short, 0 для none.
func (s Side) Sign() float64 {
	switch s {
	case SideLong:
		return 1
	case SideShort:
		return -1
	}
	return 0
}

func (s Side) Valid() bool { return s == SideLong || s == SideShort }

// SignalDecision - решение стратегии на один тик, нигде не хранится.
type SignalDecision struct {
	Side   Side
	Reason string
}

// Indicators - снимок индикаторов последнего тика (для логов и снапшотов).
type Indicators struct {
	Price         float64
	RSI           float64
	ADX           float64
	EMA20         float64
	EMA50         float64
	EMA200        float64
	ATR           float64
	BBWidthPct    float64
	RangePct      float64
	TrendDir      int // +1 выше EMA200, -1 ниже
	UpdateTimeUTC string
}
