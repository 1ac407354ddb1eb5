package models

import "time"

// Position - текущая позиция по единственному символу.
// Открывается только после успешного защищённого входа, при закрытии обнуляется.
type Position struct {
	IsOpen         bool
	Side           Side // long/short/none
	Quantity       float64
	EntryPrice     float64
	TP1Price       float64
	TP2Price       float64
	SLPrice        float64
	TrailingActive bool
	CurrentPnl     float64
	OpenedAt       time.Time
}

// Flat - позиция в закрытом состоянии: все числа в нуле, сторона none.
func Flat() Position {
	return Position{Side: SideNone}
}

// TradeStats - счётчики сделок движка, сбрасываемый дневной счётчик по UTC.
type TradeStats struct {
	TotalTrades     int
	Wins            int
	Losses          int
	CompoundProfit  float64
	DailyTradeCount int
	Day             string // YYYY-MM-DD (UTC)
}
