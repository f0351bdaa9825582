package risk

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trade_engine/internal/models"
	"trade_engine/internal/portfolio"
)

func testCfg() Config {
	return Config{
		RiskPct:          1.0,
		MaxOpenPositions: 3,
		DailyLossPct:     5.0,
		CapitalFloorUSD:  1000,
		ExposurePct:      100,
	}
}

func buySignal(price, stopPct float64) models.Signal {
	return models.Signal{
		Pair: "BTC-USDT", Side: models.SideBuy, Price: price,
		Strategy: models.StrategyMeanRev, StopPct: stopPct,
	}
}

func healthyView() portfolio.View {
	return portfolio.View{
		Cash: 10000, Equity: 10000,
		DayStartEquity: 10000,
	}
}

func TestEvaluate_SizingFormula(t *testing.T) {
	m := NewManager(testCfg())

	// risk = 1% от 10000 = $100; стоп 10% от цены 50 => qty = 100/(0.1*50) = 20
	dec := m.Evaluate(buySignal(50, 10), healthyView(), Pending{})
	require.True(t, dec.Approved)
	assert.InDelta(t, 20.0, dec.Qty, 1e-9)
	assert.InDelta(t, 100.0, dec.RiskedUSD, 1e-9)
	assert.InDelta(t, 45.0, dec.StopPrice, 1e-9)
	assert.Equal(t, ReasonNone, dec.Reason)
}

func TestEvaluate_ShortStopAboveEntry(t *testing.T) {
	m := NewManager(testCfg())

	sig := buySignal(50, 10)
	sig.Side = models.SideSell
	dec := m.Evaluate(sig, healthyView(), Pending{})
	require.True(t, dec.Approved)
	assert.InDelta(t, 55.0, dec.StopPrice, 1e-9)
}

func TestEvaluate_MaxPositions(t *testing.T) {
	m := NewManager(testCfg())

	v := healthyView()
	v.OpenCount = 3
	dec := m.Evaluate(buySignal(50, 10), v, Pending{})
	assert.False(t, dec.Approved)
	assert.Equal(t, ReasonMaxPositions, dec.Reason)
}

func TestEvaluate_PendingEntriesCountTowardLimit(t *testing.T) {
	m := NewManager(testCfg())

	v := healthyView()
	v.OpenCount = 2
	dec := m.Evaluate(buySignal(50, 10), v, Pending{Count: 1})
	assert.Equal(t, ReasonMaxPositions, dec.Reason, "заявка в полёте занимает слот лимита")
}

func TestEvaluate_DailyLossLimit(t *testing.T) {
	m := NewManager(testCfg())

	v := healthyView()
	v.DailyRealized = -500 // ровно 5% от утренних 10000
	dec := m.Evaluate(buySignal(50, 10), v, Pending{})
	assert.False(t, dec.Approved)
	assert.Equal(t, ReasonDailyLoss, dec.Reason)

	v.DailyRealized = -499.99
	dec = m.Evaluate(buySignal(50, 10), v, Pending{})
	assert.True(t, dec.Approved, "чуть ниже лимита — торгуем")
}

func TestEvaluate_CapitalFloorBlocksEverything(t *testing.T) {
	m := NewManager(testCfg())

	v := healthyView()
	v.Equity = 999
	v.Cash = 999
	dec := m.Evaluate(buySignal(50, 10), v, Pending{})
	assert.False(t, dec.Approved)
	assert.Equal(t, ReasonCapitalFloor, dec.Reason)

	// пол проверяется раньше всех остальных причин
	v.OpenCount = 5
	v.DailyRealized = -10000
	dec = m.Evaluate(buySignal(50, 10), v, Pending{})
	assert.Equal(t, ReasonCapitalFloor, dec.Reason)
}

func TestEvaluate_ExposureLimit(t *testing.T) {
	m := NewManager(testCfg())

	v := healthyView()
	v.OpenCount = 1
	v.OpenNotional = 9500
	// новый вход добавил бы $1000 нотионала: 9500+1000 > 10000
	dec := m.Evaluate(buySignal(50, 10), v, Pending{})
	assert.False(t, dec.Approved)
	assert.Equal(t, ReasonExposureLimit, dec.Reason)
}

func TestEvaluate_PendingNotionalReservesExposure(t *testing.T) {
	cfg := testCfg()
	cfg.ExposurePct = 20 // потолок $2000 при equity 10000
	m := NewManager(cfg)

	// один вход в полёте с нотионалом $1500: второму сигналу того же тика
	// остаётся $500 — его $1000 уже не помещаются
	v := healthyView()
	dec := m.Evaluate(buySignal(50, 10), v, Pending{Count: 1, Notional: 1500})
	assert.False(t, dec.Approved)
	assert.Equal(t, ReasonExposureLimit, dec.Reason)

	// без заявки в полёте тот же сигнал проходит
	dec = m.Evaluate(buySignal(50, 10), v, Pending{})
	assert.True(t, dec.Approved)
}

func TestEvaluate_PendingNotionalReservesCash(t *testing.T) {
	m := NewManager(testCfg())

	// кэш почти целиком обещан заявкам в полёте
	v := healthyView()
	v.Cash = 1200
	dec := m.Evaluate(buySignal(50, 10), v, Pending{Count: 2, Notional: 900})
	assert.False(t, dec.Approved)
	assert.Equal(t, ReasonInsufficientCash, dec.Reason)
}

func TestEvaluate_ZeroQty(t *testing.T) {
	m := NewManager(testCfg())

	t.Run("zero stop", func(t *testing.T) {
		dec := m.Evaluate(buySignal(50, 0), healthyView(), Pending{})
		assert.Equal(t, ReasonZeroQty, dec.Reason)
	})

	t.Run("zero price", func(t *testing.T) {
		dec := m.Evaluate(buySignal(0, 10), healthyView(), Pending{})
		assert.Equal(t, ReasonZeroQty, dec.Reason)
	})
}

func TestEvaluate_DisabledChecks(t *testing.T) {
	// нулевые лимиты отключают соответствующие проверки
	m := NewManager(Config{RiskPct: 1.0})

	v := healthyView()
	v.OpenCount = 50
	v.DailyRealized = -9999
	dec := m.Evaluate(buySignal(50, 10), v, Pending{})
	assert.True(t, dec.Approved)
}
