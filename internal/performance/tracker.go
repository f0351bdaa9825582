package performance

import (
	"math"
	"sync"
	"time"

	"trade_engine/internal/models"
)

// EquityPoint — точка кривой капитала, пишется на каждом закрытии сделки.
type EquityPoint struct {
	Time   time.Time
	Equity float64
}

// closedTrade — то немногое, что трекер запоминает о сделке.
type closedTrade struct {
	strategy models.StrategyType
	regime   models.Regime
	pnl      float64
	pnlPct   float64
	rMult    float64
	duration float64 // минуты
	closedAt time.Time
}

// Summary — агрегат в духе классического разбора журнала сделок.
type Summary struct {
	Trades         int
	Wins           int
	Losses         int
	WinRate        float64
	AvgWinPct      float64
	AvgLossPct     float64
	ExpectancyPct  float64
	ProfitFactor   float64
	AvgDurationMin float64
	CumPnl         float64
	AvgR           float64
}

// Decay — сравнение последних сделок с предыдущим базовым окном.
type Decay struct {
	HasEnoughData bool
	TotalClosed   int
	Recent        Summary
	Baseline      Summary
	WinRateDelta  float64
	Detected      bool
	Reasons       []string
}

// Tracker — только наблюдатель: получает закрытые сделки, копит агрегаты
// и кривую капитала. В Order/Trade/Portfolio не пишет никогда, на исполнение
// повлиять не может.
type Tracker struct {
	mu     sync.Mutex
	trades []closedTrade

	curve   []EquityPoint
	peak    float64
	maxDD   float64 // максимальная просадка пик-дно в долях
}

func NewTracker() *Tracker {
	return &Tracker{}
}

// OnTradeClosed — единственная точка входа данных.
func (tr *Tracker) OnTradeClosed(t models.Trade, equityAfter float64) {
	tr.mu.Lock()
	defer tr.mu.Unlock()

	rMult := 0.0
	if t.RiskedUSD > 0 {
		rMult = t.Pnl / t.RiskedUSD
	}
	tr.trades = append(tr.trades, closedTrade{
		strategy: t.Strategy,
		regime:   t.EntryRegime,
		pnl:      t.Pnl,
		pnlPct:   t.PnlPct(),
		rMult:    rMult,
		duration: t.DurationMinutes(),
		closedAt: t.ClosedAt,
	})

	tr.curve = append(tr.curve, EquityPoint{Time: t.ClosedAt, Equity: equityAfter})
	if equityAfter > tr.peak {
		tr.peak = equityAfter
	}
	if tr.peak > 0 {
		dd := (tr.peak - equityAfter) / tr.peak
		if dd > tr.maxDD {
			tr.maxDD = dd
		}
	}
}

// MaxDrawdown — максимальная наблюдавшаяся просадка кривой капитала, в долях.
func (tr *Tracker) MaxDrawdown() float64 {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	return tr.maxDD
}

// EquityCurve — копия точек кривой капитала.
func (tr *Tracker) EquityCurve() []EquityPoint {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	out := make([]EquityPoint, len(tr.curve))
	copy(out, tr.curve)
	return out
}

// Summary — агрегат по стратегии. Пустая строка — по всем.
func (tr *Tracker) Summary(strategy models.StrategyType) Summary {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	return summarize(tr.filtered(strategy, ""))
}

// ByRegime — разбивка по режиму на момент входа.
func (tr *Tracker) ByRegime(strategy models.StrategyType) map[models.Regime]Summary {
	tr.mu.Lock()
	defer tr.mu.Unlock()

	out := make(map[models.Regime]Summary)
	for _, reg := range []models.Regime{models.RegimeTrending, models.RegimeRanging, models.RegimeNeutral} {
		sel := tr.filtered(strategy, reg)
		if len(sel) > 0 {
			out[reg] = summarize(sel)
		}
	}
	return out
}

// DetectDecay сравнивает последние recentN сделок стратегии с предыдущими
// baselineN. Эвристика: win rate упал >15 п.п., экспектанси ушла в минус при
// положительной базе, или profit factor опустился ниже 1.
func (tr *Tracker) DetectDecay(strategy models.StrategyType, recentN, baselineN int) Decay {
	tr.mu.Lock()
	defer tr.mu.Unlock()

	sel := tr.filtered(strategy, "")
	d := Decay{TotalClosed: len(sel)}
	if len(sel) < recentN+1 {
		return d
	}

	// свежие — в конце среза
	recent := sel[len(sel)-recentN:]
	base := sel[:len(sel)-recentN]
	if len(base) > baselineN {
		base = base[len(base)-baselineN:]
	}
	if len(base) == 0 {
		return d
	}

	d.HasEnoughData = true
	d.Recent = summarize(recent)
	d.Baseline = summarize(base)
	d.WinRateDelta = d.Recent.WinRate - d.Baseline.WinRate

	if d.WinRateDelta < -0.15 {
		d.Detected = true
		d.Reasons = append(d.Reasons, "win rate dropped")
	}
	if d.Baseline.ExpectancyPct > 0 && d.Recent.ExpectancyPct < 0 {
		d.Detected = true
		d.Reasons = append(d.Reasons, "expectancy turned negative")
	}
	if d.Recent.ProfitFactor < 1.0 && d.Baseline.ProfitFactor >= 1.0 {
		d.Detected = true
		d.Reasons = append(d.Reasons, "profit factor below 1.0")
	}
	return d
}

func (tr *Tracker) filtered(strategy models.StrategyType, regime models.Regime) []closedTrade {
	out := make([]closedTrade, 0, len(tr.trades))
	for _, t := range tr.trades {
		if strategy != "" && t.strategy != strategy {
			continue
		}
		if regime != "" && t.regime != regime {
			continue
		}
		out = append(out, t)
	}
	return out
}

func summarize(sel []closedTrade) Summary {
	s := Summary{Trades: len(sel)}
	if len(sel) == 0 {
		return s
	}

	var winSum, lossSum, durSum, rSum float64
	for _, t := range sel {
		s.CumPnl += t.pnl
		durSum += t.duration
		rSum += t.rMult
		if t.pnlPct > 0 {
			s.Wins++
			winSum += t.pnlPct
		} else {
			s.Losses++
			lossSum += t.pnlPct
		}
	}

	s.WinRate = float64(s.Wins) / float64(s.Trades)
	if s.Wins > 0 {
		s.AvgWinPct = winSum / float64(s.Wins)
	}
	if s.Losses > 0 {
		s.AvgLossPct = lossSum / float64(s.Losses)
	}
	// экспектанси = winRate*avgWin + (1-winRate)*avgLoss
	s.ExpectancyPct = s.WinRate*s.AvgWinPct + (1-s.WinRate)*s.AvgLossPct

	grossWins := winSum
	grossLosses := math.Abs(lossSum)
	switch {
	case grossLosses > 0:
		s.ProfitFactor = grossWins / grossLosses
	case grossWins > 0:
		s.ProfitFactor = math.Inf(1)
	}

	s.AvgDurationMin = durSum / float64(s.Trades)
	s.AvgR = rSum / float64(s.Trades)
	return s
}
