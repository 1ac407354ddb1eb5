package service

import (
	"fmt"
	"strings"

	"trade_guard/internal/helper"
)

// okxBar: нормализованный таймфрейм -> bar OKX (часы и дни в верхнем регистре).
func okxBar(tf string) (string, error) {
	switch n := helper.NormTF(tf); n {
	case "1m", "3m", "5m", "15m", "30m":
		return n, nil
	case "1h", "2h", "4h", "6h", "12h", "1d", "1w":
		return strings.ToUpper(n), nil
	}
	return "", fmt.Errorf("unsupported timeframe for OKX bar: %q", tf)
}
