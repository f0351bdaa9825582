package eligibility

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"trade_engine/internal/models"
)

func testFilter() *Filter {
	return NewFilter(Config{
		MinPrice:     0.001,
		MinVolume24h: 100000,
		MaxSpreadPct: 0.5,
		Denylist:     []string{"USDC-USDT"},
	})
}

func TestFilter_Check(t *testing.T) {
	f := testFilter()

	good := models.MarketSnapshot{
		Pair: "BTC-USDT", Price: 60000, Volume24h: 5_000_000,
		Bid: 59990, Ask: 60010,
	}

	t.Run("eligible", func(t *testing.T) {
		assert.Equal(t, ReasonNone, f.Check(good))
		assert.True(t, f.Eligible(good))
	})

	t.Run("denylist", func(t *testing.T) {
		s := good
		s.Pair = "USDC-USDT"
		assert.Equal(t, ReasonDenylist, f.Check(s))
	})

	t.Run("low price", func(t *testing.T) {
		s := good
		s.Price = 0.0001
		assert.Equal(t, ReasonLowPrice, f.Check(s))
	})

	t.Run("low volume", func(t *testing.T) {
		s := good
		s.Volume24h = 50000
		assert.Equal(t, ReasonLowVolume, f.Check(s))
	})

	t.Run("wide spread", func(t *testing.T) {
		s := good
		s.Bid, s.Ask = 59000, 60000 // ~1.7%
		assert.Equal(t, ReasonWideSpred, f.Check(s))
		assert.False(t, f.Eligible(s))
	})
}

func TestFilter_SpreadCheckDisabled(t *testing.T) {
	f := NewFilter(Config{MinPrice: 0.001, MinVolume24h: 1})

	s := models.MarketSnapshot{Pair: "X-USDT", Price: 1, Volume24h: 10, Bid: 0.9, Ask: 1.1}
	assert.Equal(t, ReasonNone, f.Check(s), "MaxSpreadPct=0 — спред не проверяем")
}
