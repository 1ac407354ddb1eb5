package models

import "time"

// Candle - строка OHLCV, старые свечи первыми.
type Candle struct {
	Start  time.Time
	Open   float64
	High   float64
	Low    float64
	Close  float64
	Volume float64
}
