package runner

import "trade_guard/internal/models"

// Notional = balance * riskAlloc * leverage.
func Notional(balance, riskAlloc float64, leverage int) float64 {
	if balance <= 0 || riskAlloc <= 0 || leverage <= 0 {
		return 0
	}
	return balance * riskAlloc * float64(leverage)
}

// Qty - размер в базовой монете под notional по текущей цене.
func Qty(balance, riskAlloc float64, leverage int, price float64) float64 {
	if !(price > 0) {
		return 0
	}
	return Notional(balance, riskAlloc, leverage) / price
}

// PnL = notional * (price - entry) / entry, со знаком стороны.
func PnL(pos models.Position, notional, price float64) float64 {
	if !pos.IsOpen || !(pos.EntryPrice > 0) {
		return 0
	}
	return pos.Side.Sign() * notional * (price - pos.EntryPrice) / pos.EntryPrice
}

// exitLevel: цена пересекла SL или TP1, значит защитный ордер сработал.
func exitLevel(pos models.Position, price float64) (level float64, reason string, hit bool) {
	switch pos.Side {
	case models.SideLong:
		if pos.SLPrice > 0 && price <= pos.SLPrice {
			return pos.SLPrice, "sl", true
		}
		if pos.TP1Price > 0 && price >= pos.TP1Price {
			return pos.TP1Price, "tp1", true
		}
	case models.SideShort:
		if pos.SLPrice > 0 && price >= pos.SLPrice {
			return pos.SLPrice, "sl", true
		}
		if pos.TP1Price > 0 && price <= pos.TP1Price {
			return pos.TP1Price, "tp1", true
		}
	}
	return 0, "", false
}

// trailArmed: пройдено не меньше ratio пути от входа до TP1.
func trailArmed(pos models.Position, price, ratio float64) bool {
	if ratio <= 0 || !pos.IsOpen {
		return false
	}
	path := pos.TP1Price - pos.EntryPrice
	if path == 0 {
		return false
	}
	return (price-pos.EntryPrice)/path >= ratio
}
