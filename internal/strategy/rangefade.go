package strategy

import (
	"fmt"
	"math"

	"trade_engine/internal/models"
)

type RangeFadeConfig struct {
	Stds    float64 // обычно 1.0 — работаем от границ канала
	StopPct float64
	Window  int
}

// RangeFade — для боковика: уже на 1 сигме от среднего заходим против
// отклонения в расчёте на возврат внутрь канала.
type RangeFade struct {
	cfg RangeFadeConfig
}

func NewRangeFade(cfg RangeFadeConfig) *RangeFade {
	if cfg.Stds <= 0 {
		cfg.Stds = 1.0
	}
	return &RangeFade{cfg: cfg}
}

func (s *RangeFade) Type() models.StrategyType { return models.StrategyRangeFade }

func (s *RangeFade) Evaluate(history []models.MarketSnapshot) (models.Signal, bool) {
	if s.cfg.Window > 0 && len(history) > s.cfg.Window {
		history = history[len(history)-s.cfg.Window:]
	}
	w, ok := computeStats(history)
	if !ok || w.std == 0 {
		return models.Signal{}, false
	}

	dev := w.deviation()
	if math.Abs(dev) < s.cfg.Stds {
		return models.Signal{}, false
	}

	side := models.SideBuy
	if dev > 0 {
		side = models.SideSell
	}
	return models.Signal{
		Pair:       history[len(history)-1].Pair,
		Side:       side,
		Price:      w.last,
		Strategy:   models.StrategyRangeFade,
		StopPct:    s.cfg.StopPct,
		Confidence: confidenceFrom(dev, s.cfg.Stds),
		Reason:     fmt.Sprintf("fade dev=%.2fσ", dev),
	}, true
}
