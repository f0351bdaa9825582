package strategy

import (
	"trade_engine/internal/models"
)

// Router — диспатч режим -> упорядоченный список стратегий.
// Берём первый непустой сигнал по фиксированному приоритету,
// сигналы не мерджим и не усредняем.
type Router struct {
	table map[models.Regime][]Strategy
}

func NewRouter() *Router {
	return &Router{table: make(map[models.Regime][]Strategy)}
}

// Register добавляет стратегию в хвост списка режима — порядок регистрации
// и есть приоритет.
func (r *Router) Register(regime models.Regime, s Strategy) {
	r.table[regime] = append(r.table[regime], s)
}

// Route прогоняет стратегии режима по истории. Регим проставляется в сигнал
// здесь: стратегия про режим ничего не знает.
func (r *Router) Route(reg models.Regime, history []models.MarketSnapshot) (models.Signal, bool) {
	for _, s := range r.table[reg] {
		if sig, ok := s.Evaluate(history); ok {
			sig.Regime = reg
			return sig, true
		}
	}
	return models.Signal{}, false
}

// Registered — сколько стратегий привязано к режиму (для health/дебага).
func (r *Router) Registered(reg models.Regime) int {
	return len(r.table[reg])
}
