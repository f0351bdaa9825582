package strategy

import (
	"fmt"
	"math"

	"trade_engine/internal/models"
)

type BreakoutConfig struct {
	Stds     float64 // порог пробоя в сигмах, обычно 1.5
	VolFloor float64 // минимальная std/mean — отсечка ложных пробоев в мёртвых рынках
	StopPct  float64
	Window   int
}

// Breakout — пробой: цена ушла дальше Stds сигм И волатильность выше пола,
// входим по направлению движения.
type Breakout struct {
	cfg BreakoutConfig
}

func NewBreakout(cfg BreakoutConfig) *Breakout {
	if cfg.Stds <= 0 {
		cfg.Stds = 1.5
	}
	return &Breakout{cfg: cfg}
}

func (s *Breakout) Type() models.StrategyType { return models.StrategyBreakout }

func (s *Breakout) Evaluate(history []models.MarketSnapshot) (models.Signal, bool) {
	if s.cfg.Window > 0 && len(history) > s.cfg.Window {
		history = history[len(history)-s.cfg.Window:]
	}
	w, ok := computeStats(history)
	if !ok || w.std == 0 {
		return models.Signal{}, false
	}
	if w.relVol < s.cfg.VolFloor {
		return models.Signal{}, false
	}

	dev := w.deviation()
	if math.Abs(dev) < s.cfg.Stds {
		return models.Signal{}, false
	}

	side := models.SideSell
	if dev > 0 {
		side = models.SideBuy // движение вверх — идём за ним
	}
	return models.Signal{
		Pair:       history[len(history)-1].Pair,
		Side:       side,
		Price:      w.last,
		Strategy:   models.StrategyBreakout,
		StopPct:    s.cfg.StopPct,
		Confidence: confidenceFrom(dev, s.cfg.Stds),
		Reason:     fmt.Sprintf("dev=%.2fσ vol=%.4f", dev, w.relVol),
	}, true
}
