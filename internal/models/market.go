package models

import "time"

// MarketSnapshot — одно наблюдение рынка по инструменту.
// Приходит из маркет-даты, после создания не мутируется.
type MarketSnapshot struct {
	Pair      string
	Time      time.Time
	Price     float64
	Volume24h float64 // квотовый объём за 24ч
	Bid       float64
	Ask       float64
}

// SpreadPct — спред bid/ask в процентах от mid.
func (s MarketSnapshot) SpreadPct() float64 {
	mid := (s.Bid + s.Ask) / 2
	if mid <= 0 {
		return 0
	}
	return (s.Ask - s.Bid) / mid * 100
}
