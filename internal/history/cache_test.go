package history

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trade_engine/internal/models"
)

func snap(price float64) models.MarketSnapshot {
	return models.MarketSnapshot{Pair: "BTC-USDT", Price: price}
}

func TestCache_RecordAndHistory(t *testing.T) {
	c := NewCache(5)

	for i := 1; i <= 3; i++ {
		c.Record("BTC-USDT", snap(float64(i)))
	}

	got, err := c.History("BTC-USDT", 10)
	require.NoError(t, err)
	require.Len(t, got, 3, "окно больше накопленного — отдаём сколько есть")
	assert.Equal(t, 1.0, got[0].Price)
	assert.Equal(t, 3.0, got[2].Price)
}

func TestCache_EvictsOldest(t *testing.T) {
	c := NewCache(3)
	for i := 1; i <= 5; i++ {
		c.Record("BTC-USDT", snap(float64(i)))
	}

	got, err := c.History("BTC-USDT", 3)
	require.NoError(t, err)
	require.Len(t, got, 3)
	// 1 и 2 вытолкнуты, порядок хронологический
	assert.Equal(t, []float64{3, 4, 5}, []float64{got[0].Price, got[1].Price, got[2].Price})
	assert.Equal(t, 3, c.Len("BTC-USDT"))
}

func TestCache_WindowSmallerThanStored(t *testing.T) {
	c := NewCache(10)
	for i := 1; i <= 8; i++ {
		c.Record("BTC-USDT", snap(float64(i)))
	}

	got, err := c.History("BTC-USDT", 4)
	require.NoError(t, err)
	assert.Equal(t, 4, len(got))
	assert.Equal(t, 5.0, got[0].Price)
	assert.Equal(t, 8.0, got[3].Price)
}

func TestCache_UnknownPair(t *testing.T) {
	c := NewCache(5)
	_, err := c.History("NOPE-USDT", 3)
	assert.ErrorIs(t, err, ErrUnknownPair)
	assert.Equal(t, 0, c.Len("NOPE-USDT"))
}

func TestCache_HistoryIsACopy(t *testing.T) {
	c := NewCache(5)
	c.Record("BTC-USDT", snap(1))
	c.Record("BTC-USDT", snap(2))

	got, err := c.History("BTC-USDT", 2)
	require.NoError(t, err)
	got[0].Price = 999

	again, err := c.History("BTC-USDT", 2)
	require.NoError(t, err)
	assert.Equal(t, 1.0, again[0].Price, "мутация среза читателя не трогает буфер")
}

func TestCache_ConcurrentPairs(t *testing.T) {
	c := NewCache(50)

	var wg sync.WaitGroup
	for p := 0; p < 8; p++ {
		pair := fmt.Sprintf("P%d-USDT", p)
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				c.Record(pair, models.MarketSnapshot{Pair: pair, Price: float64(i)})
				_, _ = c.History(pair, 30)
			}
		}()
	}
	wg.Wait()

	for p := 0; p < 8; p++ {
		pair := fmt.Sprintf("P%d-USDT", p)
		assert.Equal(t, 50, c.Len(pair))
	}
}
