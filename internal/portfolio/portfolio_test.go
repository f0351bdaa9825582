package portfolio

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trade_engine/internal/models"
)

func longPos(pair string, qty, entry float64) models.Position {
	return models.Position{Pair: pair, Side: models.SideBuy, Qty: qty, Entry: entry}
}

func TestOpenPosition_DebitsCashWithFee(t *testing.T) {
	p := New(10000)

	// нотионал $100, комиссия 0.1% => списывается 100.10
	fee := 1.0 * 100.0 * 0.1 / 100.0
	require.NoError(t, p.OpenPosition(longPos("BTC-USDT", 1, 100), fee))

	v := p.View()
	assert.InDelta(t, 9899.90, v.Cash, 1e-9)
	assert.Equal(t, 1, v.OpenCount)
	assert.InDelta(t, 100.0, v.OpenNotional, 1e-9)
	assert.InDelta(t, 9999.90, v.Equity, 1e-9, "equity просела ровно на комиссию")
}

func TestOpenPosition_Rejections(t *testing.T) {
	p := New(100)

	t.Run("duplicate pair", func(t *testing.T) {
		require.NoError(t, p.OpenPosition(longPos("BTC-USDT", 0.5, 100), 0))
		err := p.OpenPosition(longPos("BTC-USDT", 0.5, 100), 0)
		assert.Error(t, err)
	})

	t.Run("insufficient cash", func(t *testing.T) {
		err := p.OpenPosition(longPos("ETH-USDT", 10, 100), 0)
		assert.Error(t, err)
		v := p.View()
		assert.Equal(t, 1, v.OpenCount, "отказ без мутации")
	})
}

func TestClosePosition_RealizedPnl(t *testing.T) {
	p := New(10000)

	entryFee := 1.0 * 100.0 * 0.001
	require.NoError(t, p.OpenPosition(longPos("BTC-USDT", 1, 100), entryFee))

	exitFee := 1.0 * 110.0 * 0.001
	pnl, err := p.ClosePosition("BTC-USDT", 110, exitFee, entryFee)
	require.NoError(t, err)

	// gross +10, минус обе комиссии
	assert.InDelta(t, 10-exitFee-entryFee, pnl, 1e-9)

	v := p.View()
	assert.Equal(t, 0, v.OpenCount)
	assert.InDelta(t, 10000+pnl, v.Cash, 1e-9, "cash вернулся с точностью до pnl")
	assert.InDelta(t, pnl, v.DailyRealized, 1e-9)
}

func TestClosePosition_Short(t *testing.T) {
	p := New(10000)

	short := models.Position{Pair: "ETH-USDT", Side: models.SideSell, Qty: 2, Entry: 100}
	require.NoError(t, p.OpenPosition(short, 0))

	// шорт: цена упала 100 -> 90, профит (100-90)*2 = 20
	pnl, err := p.ClosePosition("ETH-USDT", 90, 0, 0)
	require.NoError(t, err)
	assert.InDelta(t, 20.0, pnl, 1e-9)
	assert.InDelta(t, 10020.0, p.View().Equity, 1e-9)
}

func TestEquityInvariant_MarkToMarket(t *testing.T) {
	p := New(10000)
	require.NoError(t, p.OpenPosition(longPos("BTC-USDT", 2, 100), 0))

	p.MarkPrice("BTC-USDT", 120, time.Now())

	v := p.View()
	assert.InDelta(t, 9800.0, v.Cash, 1e-9)
	assert.InDelta(t, 240.0, v.OpenNotional, 1e-9)
	assert.InDelta(t, v.Cash+v.OpenNotional, v.Equity, 1e-9, "equity = cash + позиции, всегда")
}

func TestDayRollover(t *testing.T) {
	p := New(10000)

	day1 := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	p.SetClock(func() time.Time { return day1 })

	require.NoError(t, p.OpenPosition(longPos("BTC-USDT", 1, 100), 0))
	_, err := p.ClosePosition("BTC-USDT", 90, 0, 0) // -10
	require.NoError(t, err)

	v := p.View()
	assert.InDelta(t, -10.0, v.DailyRealized, 1e-9)

	// новый UTC-день: dailyRealized в ноль, dayStartEquity — текущий equity
	day2 := day1.Add(24 * time.Hour)
	p.SetClock(func() time.Time { return day2 })

	v = p.View()
	assert.InDelta(t, 0.0, v.DailyRealized, 1e-9)
	assert.InDelta(t, 9990.0, v.DayStartEquity, 1e-9)
}

func TestClosePosition_Unknown(t *testing.T) {
	p := New(1000)
	_, err := p.ClosePosition("NOPE-USDT", 100, 0, 0)
	assert.Error(t, err)
}

func TestPositions_Snapshot(t *testing.T) {
	p := New(10000)
	require.NoError(t, p.OpenPosition(longPos("BTC-USDT", 1, 100), 0))

	snap := p.Positions()
	delete(snap, "BTC-USDT")

	_, ok := p.Position("BTC-USDT")
	assert.True(t, ok, "снимок не связан с внутренней мапой")
}
