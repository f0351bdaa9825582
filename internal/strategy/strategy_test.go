package strategy

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trade_engine/internal/models"
)

func hist(prices ...float64) []models.MarketSnapshot {
	out := make([]models.MarketSnapshot, len(prices))
	for i, p := range prices {
		out[i] = models.MarketSnapshot{Pair: "BTC-USDT", Price: p}
	}
	return out
}

// окно со средним 100 и умеренной сигмой, последняя цена задаётся вызовом
func flatThen(last float64) []models.MarketSnapshot {
	prices := []float64{99, 101, 100, 99, 101, 100, 99, 101, 100, last}
	return hist(prices...)
}

func TestMeanRev(t *testing.T) {
	s := NewMeanRev(MeanRevConfig{Stds: 2.0, StopPct: 10})

	t.Run("no signal inside band", func(t *testing.T) {
		_, ok := s.Evaluate(flatThen(100.5))
		assert.False(t, ok)
	})

	t.Run("buy below band", func(t *testing.T) {
		sig, ok := s.Evaluate(flatThen(92))
		require.True(t, ok)
		assert.Equal(t, models.SideBuy, sig.Side, "цена провалилась — откупаем")
		assert.Equal(t, models.StrategyMeanRev, sig.Strategy)
		assert.Equal(t, 10.0, sig.StopPct)
		assert.Equal(t, 92.0, sig.Price)
	})

	t.Run("sell above band", func(t *testing.T) {
		sig, ok := s.Evaluate(flatThen(108))
		require.True(t, ok)
		assert.Equal(t, models.SideSell, sig.Side)
	})

	t.Run("zero vol window", func(t *testing.T) {
		_, ok := s.Evaluate(hist(100, 100, 100, 100))
		assert.False(t, ok, "std=0 — сигмы не посчитать")
	})
}

func TestBreakout(t *testing.T) {
	t.Run("follows the move", func(t *testing.T) {
		s := NewBreakout(BreakoutConfig{Stds: 1.5, VolFloor: 0.002})
		sig, ok := s.Evaluate(flatThen(108))
		require.True(t, ok)
		assert.Equal(t, models.SideBuy, sig.Side, "пробой вверх — идём за движением")

		sig, ok = s.Evaluate(flatThen(92))
		require.True(t, ok)
		assert.Equal(t, models.SideSell, sig.Side)
	})

	t.Run("vol floor rejects dead market", func(t *testing.T) {
		s := NewBreakout(BreakoutConfig{Stds: 1.5, VolFloor: 0.5})
		_, ok := s.Evaluate(flatThen(108))
		assert.False(t, ok)
	})
}

func TestRangeFade(t *testing.T) {
	s := NewRangeFade(RangeFadeConfig{Stds: 1.0})

	// 1σ-порог срабатывает там, где meanrev с 2σ ещё молчит
	sig, ok := s.Evaluate(flatThen(102))
	require.True(t, ok)
	assert.Equal(t, models.SideSell, sig.Side, "fade против отклонения")

	mr := NewMeanRev(MeanRevConfig{Stds: 2.0})
	_, ok = mr.Evaluate(flatThen(102))
	assert.False(t, ok)
}

func TestEvaluate_TrimsToWindow(t *testing.T) {
	// старый хвост из экстремальных цен раздувает сигму всего окна и глушит
	// сигнал; с Window=5 стратегия его не видит и сигнал проходит
	prices := []float64{500, 500, 500, 99, 101, 100, 99, 92}

	withWindow := NewRangeFade(RangeFadeConfig{Stds: 1.0, Window: 5})
	_, ok := withWindow.Evaluate(hist(prices...))
	assert.True(t, ok)

	noWindow := NewRangeFade(RangeFadeConfig{Stds: 1.0})
	_, ok = noWindow.Evaluate(hist(prices...))
	assert.False(t, ok)
}

func TestRouter_FirstMatchWins(t *testing.T) {
	r := NewRouter()
	fade := NewRangeFade(RangeFadeConfig{Stds: 1.0})
	mr := NewMeanRev(MeanRevConfig{Stds: 2.0})
	r.Register(models.RegimeRanging, fade)
	r.Register(models.RegimeRanging, mr)

	// 1σ < dev < 2σ: оба зарегистрированы, побеждает первый по порядку
	sig, ok := r.Route(models.RegimeRanging, flatThen(102))
	require.True(t, ok)
	assert.Equal(t, models.StrategyRangeFade, sig.Strategy)
	assert.Equal(t, models.RegimeRanging, sig.Regime, "режим проставляется роутером")
}

func TestRouter_FallsThroughToNext(t *testing.T) {
	r := NewRouter()
	bo := NewBreakout(BreakoutConfig{Stds: 1.5, VolFloor: 0.9}) // всегда молчит
	mr := NewMeanRev(MeanRevConfig{Stds: 2.0})
	r.Register(models.RegimeNeutral, bo)
	r.Register(models.RegimeNeutral, mr)

	sig, ok := r.Route(models.RegimeNeutral, flatThen(92))
	require.True(t, ok)
	assert.Equal(t, models.StrategyMeanRev, sig.Strategy)
}

func TestRouter_NoStrategiesForRegime(t *testing.T) {
	r := NewRouter()
	_, ok := r.Route(models.RegimeTrending, flatThen(92))
	assert.False(t, ok)
	assert.Equal(t, 0, r.Registered(models.RegimeTrending))
}
