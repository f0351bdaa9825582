package regime

import (
	"math"

	"trade_engine/internal/models"
)

// Result — классификация + сырые статистики окна (идут в журнал).
type Result struct {
	Regime     models.Regime
	Direction  models.Side // для Trending: BUY при наклоне вверх, SELL вниз
	Confidence float64     // 0..1
	Slope      float64     // нормализованный наклон, доля цены за бар
	Stddev     float64     // stddev/mean, безразмерная волатильность
	Mean       float64
}

// Config — пороги классификации. Всё из конфига, ничего не зашито.
type Config struct {
	MinWindow     int     // меньше — Neutral с низкой уверенностью
	TrendSlopeMin float64 // |slope| выше — Trending
	RangeVolMax   float64 // stddev/mean ниже при почти нулевом наклоне — Ranging
}

// Detector — чистая функция от окна цен, состояния между вызовами нет.
type Detector struct {
	cfg Config
}

func NewDetector(cfg Config) *Detector {
	return &Detector{cfg: cfg}
}

// Classify считает rolling stddev и наклон по МНК на окне закрытий.
func (d *Detector) Classify(window []models.MarketSnapshot) Result {
	if len(window) < d.cfg.MinWindow || len(window) < 2 {
		return Result{Regime: models.RegimeNeutral, Confidence: 0.1}
	}

	closes := make([]float64, len(window))
	for i, s := range window {
		closes[i] = s.Price
	}

	mean := meanOf(closes)
	if mean <= 0 {
		return Result{Regime: models.RegimeNeutral, Confidence: 0.1}
	}
	std := stddevOf(closes, mean) / mean
	slope := lsSlope(closes) / mean // доля цены за один бар

	res := Result{Slope: slope, Stddev: std, Mean: mean}

	switch {
	case math.Abs(slope) >= d.cfg.TrendSlopeMin:
		res.Regime = models.RegimeTrending
		if slope > 0 {
			res.Direction = models.SideBuy
		} else {
			res.Direction = models.SideSell
		}
		res.Confidence = clamp01(math.Abs(slope) / (d.cfg.TrendSlopeMin * 2))
	case std <= d.cfg.RangeVolMax:
		res.Regime = models.RegimeRanging
		res.Confidence = clamp01(1 - std/d.cfg.RangeVolMax)
	default:
		res.Regime = models.RegimeNeutral
		res.Confidence = 0.5
	}
	return res
}

func meanOf(xs []float64) float64 {
	var sum float64
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

func stddevOf(xs []float64, mean float64) float64 {
	if len(xs) < 2 {
		return 0
	}
	var ss float64
	for _, x := range xs {
		d := x - mean
		ss += d * d
	}
	return math.Sqrt(ss / float64(len(xs)-1))
}

// lsSlope — наклон линейной регрессии цены по индексу бара.
func lsSlope(xs []float64) float64 {
	n := float64(len(xs))
	var sumI, sumX, sumIX, sumII float64
	for i, x := range xs {
		fi := float64(i)
		sumI += fi
		sumX += x
		sumIX += fi * x
		sumII += fi * fi
	}
	den := n*sumII - sumI*sumI
	if den == 0 {
		return 0
	}
	return (n*sumIX - sumI*sumX) / den
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
