package models

import "time"

type Position struct {
	Pair    string
	Side    Side // BUY/SELL
	Qty     float64
	Entry   float64
	LastPx  float64
	Updated time.Time
}

// ValueAt — рыночная стоимость позиции при цене px.
// Для шорта стоимость растёт при падении цены: qty*(2*entry - px).
func (p Position) ValueAt(px float64) float64 {
	if p.Side == SideSell {
		return p.Qty * (2*p.Entry - px)
	}
	return p.Qty * px
}

// Value — стоимость по последней известной цене.
func (p Position) Value() float64 {
	px := p.LastPx
	if px <= 0 {
		px = p.Entry
	}
	return p.ValueAt(px)
}
