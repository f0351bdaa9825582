package risk

import (
	"trade_engine/internal/models"
	"trade_engine/internal/portfolio"
)

// RejectReason — типизированный код отказа, уходит в лог и журнал.
type RejectReason string

const (
	ReasonNone             RejectReason = ""
	ReasonMaxPositions     RejectReason = "max_positions"
	ReasonDailyLoss        RejectReason = "daily_loss_limit"
	ReasonCapitalFloor     RejectReason = "capital_floor"
	ReasonExposureLimit    RejectReason = "exposure_limit"
	ReasonInsufficientCash RejectReason = "insufficient_cash"
	ReasonZeroQty          RejectReason = "zero_qty"
)

// Pending — агрегат по входным заявкам в полёте: их нотиональ ещё не попал
// в леджер, но капитал под них уже обещан. Без этого несколько сигналов
// одного тика прошли бы лимиты каждый против нетронутого портфеля.
type Pending struct {
	Count    int
	Notional float64
}

// Decision — просчитанный по риску вход или отказ. Значение, без сайд-эффектов:
// леджер мутирует только жизненный цикл после подтверждения заявки.
type Decision struct {
	Approved   bool
	Qty        float64
	EntryPrice float64
	StopPrice  float64
	RiskedUSD  float64
	Reason     RejectReason
}

type Config struct {
	RiskPct          float64 // доля equity под риском на сделку, 1.0 => 1%
	MaxOpenPositions int
	DailyLossPct     float64 // лимит дневного убытка от утреннего equity
	CapitalFloorUSD  float64
	ExposurePct      float64 // макс. суммарный notional от equity
}

type Manager struct {
	cfg Config
}

func NewManager(cfg Config) *Manager {
	return &Manager{cfg: cfg}
}

// Evaluate превращает сигнал в размер позиции или отказ.
// qty = riskUSD / (stopPct * entry): при ходе цены до стопа теряем ровно riskUSD.
func (m *Manager) Evaluate(sig models.Signal, view portfolio.View, pending Pending) Decision {
	dec := Decision{EntryPrice: sig.Price}

	// 0. Капитальный пол — стоп-кран: ниже него не открываем ничего.
	if m.cfg.CapitalFloorUSD > 0 && view.Equity <= m.cfg.CapitalFloorUSD {
		dec.Reason = ReasonCapitalFloor
		return dec
	}

	// 1. Лимит открытых позиций (открытые + ожидающие входа слоты).
	if m.cfg.MaxOpenPositions > 0 && view.OpenCount+pending.Count >= m.cfg.MaxOpenPositions {
		dec.Reason = ReasonMaxPositions
		return dec
	}

	// 2. Дневной лимит убытка от утреннего equity.
	if m.cfg.DailyLossPct > 0 {
		limit := view.DayStartEquity * m.cfg.DailyLossPct / 100.0
		if -view.DailyRealized >= limit {
			dec.Reason = ReasonDailyLoss
			return dec
		}
	}

	// 3. Размер по риску.
	stopFrac := sig.StopPct / 100.0
	if stopFrac <= 0 || sig.Price <= 0 {
		dec.Reason = ReasonZeroQty
		return dec
	}
	riskUSD := view.Equity * m.cfg.RiskPct / 100.0
	qty := riskUSD / (stopFrac * sig.Price)
	if qty <= 0 {
		dec.Reason = ReasonZeroQty
		return dec
	}

	// 4. Лимит суммарной экспозиции: открытое + в полёте + кандидат.
	notional := qty * sig.Price
	if m.cfg.ExposurePct > 0 {
		maxNotional := view.Equity * m.cfg.ExposurePct / 100.0
		if view.OpenNotional+pending.Notional+notional > maxNotional {
			dec.Reason = ReasonExposureLimit
			return dec
		}
	}

	// 5. Кэш: леджер дебетует нотиональ при исполнении, и заявки в полёте
	// уже претендуют на свою часть. Переобещать кэш нельзя.
	if pending.Notional+notional > view.Cash {
		dec.Reason = ReasonInsufficientCash
		return dec
	}

	dec.Approved = true
	dec.Qty = qty
	dec.RiskedUSD = riskUSD
	if sig.Side == models.SideSell {
		dec.StopPrice = sig.Price * (1 + stopFrac)
	} else {
		dec.StopPrice = sig.Price * (1 - stopFrac)
	}
	return dec
}
