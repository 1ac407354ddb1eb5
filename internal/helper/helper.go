package helper

import (
	"math"
	"strconv"
	"strings"
	"time"
)

func NormTF(raw string) string {
	s := strings.TrimSpace(strings.ToLower(raw))
	s = strings.TrimPrefix(s, "candle")
	switch s {
	case "60m", "1h":
		return "1h"
	default:
		return s
	}
}

func RoundDownToTick(px, tick float64) float64 {
	if tick <= 0 {
		return px
	}
	steps := math.Floor(px/tick + 1e-12)
	return steps * tick
}

func RoundToTick(px, tick float64) float64 {
	if tick <= 0 {
		return px
	}
	return math.Round(px/tick) * tick
}

// TickDecimals: 0.001 -> 3, 1 -> 0.
func TickDecimals(tick float64) int {
	if tick <= 0 || tick >= 1 {
		return 0
	}
	s := strconv.FormatFloat(tick, 'f', -1, 64)
	if i := strings.IndexByte(s, '.'); i >= 0 {
		return len(s) - i - 1
	}
	return 0
}

// FormatToTick печатает число с точностью шага, без хвостов float.
func FormatToTick(v, tick float64) string {
	return strconv.FormatFloat(v, 'f', TickDecimals(tick), 64)
}

// DayKeyUTC - ключ суток для дневных лимитов.
func DayKeyUTC(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}
