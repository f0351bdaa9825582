package strategy

import (
	"math"

	"trade_engine/internal/models"
)

// Strategy — единственная способность: история цен -> сигнал (или ничего).
// Стратегия обязана быть чистой функцией входа: никакого состояния по парам
// между вызовами и никакого доступа к портфелю. Позиционная логика живёт
// в риск-менеджере и жизненном цикле, не здесь.
type Strategy interface {
	Type() models.StrategyType
	Evaluate(history []models.MarketSnapshot) (models.Signal, bool)
}

// windowStats — общие статистики окна для встроенных стратегий.
type windowStats struct {
	mean   float64
	std    float64
	last   float64
	relVol float64 // std/mean
}

func computeStats(history []models.MarketSnapshot) (windowStats, bool) {
	if len(history) < 2 {
		return windowStats{}, false
	}
	var sum float64
	for _, s := range history {
		sum += s.Price
	}
	mean := sum / float64(len(history))
	if mean <= 0 {
		return windowStats{}, false
	}
	var ss float64
	for _, s := range history {
		d := s.Price - mean
		ss += d * d
	}
	std := math.Sqrt(ss / float64(len(history)-1))
	return windowStats{
		mean:   mean,
		std:    std,
		last:   history[len(history)-1].Price,
		relVol: std / mean,
	}, true
}

// deviation — отклонение последней цены от среднего в сигмах.
func (w windowStats) deviation() float64 {
	if w.std == 0 {
		return 0
	}
	return (w.last - w.mean) / w.std
}

func confidenceFrom(dev, trigger float64) float64 {
	c := math.Abs(dev) / (trigger * 2)
	if c > 1 {
		c = 1
	}
	return c
}
