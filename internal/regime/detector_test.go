package regime

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"trade_engine/internal/models"
)

func window(prices ...float64) []models.MarketSnapshot {
	out := make([]models.MarketSnapshot, len(prices))
	for i, p := range prices {
		out[i] = models.MarketSnapshot{Pair: "BTC-USDT", Price: p}
	}
	return out
}

func testDetector() *Detector {
	return NewDetector(Config{
		MinWindow:     10,
		TrendSlopeMin: 0.0008,
		RangeVolMax:   0.004,
	})
}

func TestClassify_ShortWindowIsNeutral(t *testing.T) {
	d := testDetector()

	res := d.Classify(window(100, 101, 102))
	assert.Equal(t, models.RegimeNeutral, res.Regime)
	assert.InDelta(t, 0.1, res.Confidence, 1e-9, "мало данных — низкая уверенность")
}

func TestClassify_Trending(t *testing.T) {
	d := testDetector()

	t.Run("up", func(t *testing.T) {
		// стабильный рост 0.5% за бар — наклон сильно выше порога
		prices := make([]float64, 0, 20)
		px := 100.0
		for i := 0; i < 20; i++ {
			prices = append(prices, px)
			px *= 1.005
		}
		res := d.Classify(window(prices...))
		assert.Equal(t, models.RegimeTrending, res.Regime)
		assert.Equal(t, models.SideBuy, res.Direction)
		assert.Greater(t, res.Slope, 0.0)
	})

	t.Run("down", func(t *testing.T) {
		prices := make([]float64, 0, 20)
		px := 100.0
		for i := 0; i < 20; i++ {
			prices = append(prices, px)
			px *= 0.995
		}
		res := d.Classify(window(prices...))
		assert.Equal(t, models.RegimeTrending, res.Regime)
		assert.Equal(t, models.SideSell, res.Direction)
		assert.Less(t, res.Slope, 0.0)
	})
}

func TestClassify_Ranging(t *testing.T) {
	d := testDetector()

	// плоский рынок с крошечной альтернацией: наклон ~0, std/mean ниже порога
	prices := make([]float64, 0, 20)
	for i := 0; i < 20; i++ {
		if i%2 == 0 {
			prices = append(prices, 100.0)
		} else {
			prices = append(prices, 100.1)
		}
	}
	res := d.Classify(window(prices...))
	assert.Equal(t, models.RegimeRanging, res.Regime)
	assert.Greater(t, res.Confidence, 0.0)
}

func TestClassify_NeutralChop(t *testing.T) {
	d := testDetector()

	// рваные качели: волатильность высокая, направления нет
	prices := []float64{100, 104, 97, 103, 96, 105, 98, 102, 95, 104, 97, 103}
	res := d.Classify(window(prices...))
	assert.Equal(t, models.RegimeNeutral, res.Regime)
	assert.InDelta(t, 0.5, res.Confidence, 1e-9)
}

func TestClassify_TrendWinsOverLowVol(t *testing.T) {
	d := testDetector()

	// маленький, но устойчивый дрейф: и наклон над порогом, и std/mean мал.
	// Порядок проверок отдаёт приоритет тренду.
	prices := make([]float64, 0, 20)
	px := 100.0
	for i := 0; i < 20; i++ {
		prices = append(prices, px)
		px *= 1.001
	}
	res := d.Classify(window(prices...))
	assert.Equal(t, models.RegimeTrending, res.Regime)
}

func TestClassify_ConfidenceClamped(t *testing.T) {
	d := testDetector()

	prices := make([]float64, 0, 20)
	px := 100.0
	for i := 0; i < 20; i++ {
		prices = append(prices, px)
		px *= 1.05 // экстремальный тренд
	}
	res := d.Classify(window(prices...))
	assert.Equal(t, models.RegimeTrending, res.Regime)
	assert.LessOrEqual(t, res.Confidence, 1.0)
}
