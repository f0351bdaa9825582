package models

import "time"

type OrderType string

const (
	OrderLimit  OrderType = "limit"
	OrderMarket OrderType = "market"
)

// SlotState — состояние жизненного цикла ордера/сделки по инструменту.
type SlotState uint8

const (
	SlotPendingEntry SlotState = iota + 1
	SlotOpen
	SlotPendingExit
	SlotClosed
	SlotCancelledTimeout
)

func (s SlotState) String() string {
	switch s {
	case SlotPendingEntry:
		return "pending_entry"
	case SlotOpen:
		return "open"
	case SlotPendingExit:
		return "pending_exit"
	case SlotClosed:
		return "closed"
	case SlotCancelledTimeout:
		return "cancelled_timeout"
	default:
		return "unknown"
	}
}

// Order — заявка, отправленная на биржу через адаптер.
type Order struct {
	ID        string
	Pair      string
	Side      Side
	Type      OrderType
	Price     float64
	Qty       float64
	CreatedAt time.Time
	Deadline  time.Time // дедлайн на исполнение, после — отмена/замена
}

// ExitReason — причина закрытия сделки (как пишем в журнал).
type ExitReason string

const (
	ExitROI      ExitReason = "roi"
	ExitStoploss ExitReason = "stoploss"
	ExitForced   ExitReason = "force_exit"
)

// Trade создаётся при исполнении входа и закрывается при исполнении выхода.
type Trade struct {
	ID           int64
	Pair         string
	Strategy     StrategyType
	Side         Side
	EntryOrderID string
	ExitOrderID  string
	EntryPrice   float64
	ExitPrice    float64
	Qty          float64
	RiskedUSD    float64 // сколько долларов рисковали по стопу (для R-multiple)
	Pnl          float64 // реализованный, с учётом комиссий
	OpenedAt     time.Time
	ClosedAt     time.Time
	Reason       ExitReason
	EntryRegime  Regime
	ExitRegime   Regime
}

// DurationMinutes — сколько минут сделка была открыта.
func (t Trade) DurationMinutes() float64 {
	if t.ClosedAt.IsZero() || t.OpenedAt.IsZero() {
		return 0
	}
	return t.ClosedAt.Sub(t.OpenedAt).Minutes()
}

// PnlPct — доходность сделки в процентах от вложенного.
func (t Trade) PnlPct() float64 {
	cost := t.EntryPrice * t.Qty
	if cost <= 0 {
		return 0
	}
	return t.Pnl / cost * 100
}
