package strategy

import (
	"fmt"
	"math"

	"trade_engine/internal/models"
)

type MeanRevConfig struct {
	Stds    float64 // порог в сигмах, обычно 2.0
	StopPct float64
	Window  int
}

// MeanRev — возврат к среднему: цена ушла дальше Stds сигм от среднего,
// входим против отклонения.
type MeanRev struct {
	cfg MeanRevConfig
}

func NewMeanRev(cfg MeanRevConfig) *MeanRev {
	if cfg.Stds <= 0 {
		cfg.Stds = 2.0
	}
	return &MeanRev{cfg: cfg}
}

func (s *MeanRev) Type() models.StrategyType { return models.StrategyMeanRev }

func (s *MeanRev) Evaluate(history []models.MarketSnapshot) (models.Signal, bool) {
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

	side := models.SideBuy // цена ниже среднего — откупаем
	if dev > 0 {
		side = models.SideSell
	}
	return models.Signal{
		Pair:       history[len(history)-1].Pair,
		Side:       side,
		Price:      w.last,
		Strategy:   models.StrategyMeanRev,
		StopPct:    s.cfg.StopPct,
		Confidence: confidenceFrom(dev, s.cfg.Stds),
		Reason:     fmt.Sprintf("dev=%.2fσ mean=%.6f", dev, w.mean),
	}, true
}
