package cache

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ict_bot/internal/models"
)

var (
	from = time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)
	to   = time.Date(2024, 3, 16, 0, 0, 0, 0, time.UTC)
)

func TestKeyDeterministic(t *testing.T) {
	a := Key("candles", "EURUSD", models.TFM15, from, to, 7)
	b := Key("candles", "EURUSD", models.TFM15, from, to, 7)
	assert.Equal(t, a, b)
	assert.Equal(t, "candles|EURUSD|M15|2024-03-15T00:00:00Z|2024-03-16T00:00:00Z|7", a)

	// другой аккаунт — другой ключ
	c := Key("candles", "EURUSD", models.TFM15, from, to, 8)
	assert.NotEqual(t, a, c)
}

func TestKeyLongShortened(t *testing.T) {
	long := Key("candles", string(make([]byte, 300)), models.TFM15, from, to, 7)
	assert.LessOrEqual(t, len(long), 200)
	assert.Contains(t, long, "candles:")
}

func TestGetSetAndStats(t *testing.T) {
	m := NewManager(10, time.Hour)

	_, ok := m.Get("missing")
	assert.False(t, ok)

	m.Set("k", 42, 0)
	v, ok := m.Get("k")
	require.True(t, ok)
	assert.Equal(t, 42, v)

	s := m.Stats()
	assert.EqualValues(t, 1, s.Hits)
	assert.EqualValues(t, 1, s.Misses)
	assert.InDelta(t, 0.5, s.HitRate, 1e-9)
}

func TestTTLExpiry(t *testing.T) {
	m := NewManager(10, time.Hour)
	now := time.Date(2024, 3, 15, 10, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return now }

	m.Set("short", 1, time.Minute)
	m.Set("forever", 2, -1)

	now = now.Add(2 * time.Minute)

	_, ok := m.Get("short")
	assert.False(t, ok)
	_, ok = m.Get("forever")
	assert.True(t, ok)
}

func TestLRUEviction(t *testing.T) {
	m := NewManager(3, time.Hour)
	for i := 0; i < 3; i++ {
		m.Set(fmt.Sprintf("k%d", i), i, 0)
	}

	// k0 трогаем — свежий, вытесняется k1
	_, _ = m.Get("k0")
	m.Set("k3", 3, 0)

	_, ok := m.Get("k1")
	assert.False(t, ok)
	_, ok = m.Get("k0")
	assert.True(t, ok)
	assert.EqualValues(t, 1, m.Stats().Evictions)
	assert.Equal(t, 3, m.Stats().Size)
}

func TestCandlesRoundtrip(t *testing.T) {
	m := NewManager(10, time.Hour)
	list := []models.Candle{{Symbol: "EURUSD", Timeframe: models.TFM15, OpenTime: from}}

	m.SetCandles(list, "EURUSD", models.TFM15, from, to, 7, 0)
	got, ok := m.GetCandles("EURUSD", models.TFM15, from, to, 7)
	require.True(t, ok)
	assert.Equal(t, list, got)

	// пустой список не кэшируем
	m.SetCandles(nil, "GBPUSD", models.TFM15, from, to, 7, 0)
	_, ok = m.GetCandles("GBPUSD", models.TFM15, from, to, 7)
	assert.False(t, ok)
}

func TestInvalidateByPair(t *testing.T) {
	m := NewManager(10, time.Hour)
	list := []models.Candle{{Symbol: "EURUSD"}}

	m.SetCandles(list, "EURUSD", models.TFM15, from, to, 7, 0)
	m.SetCandles(list, "EURUSD", models.TFH1, from, to, 7, 0)

	n := m.Invalidate("EURUSD", models.TFM15, time.Time{}, time.Time{}, 7)
	assert.Equal(t, 1, n)

	_, ok := m.GetCandles("EURUSD", models.TFM15, from, to, 7)
	assert.False(t, ok)
	_, ok = m.GetCandles("EURUSD", models.TFH1, from, to, 7)
	assert.True(t, ok)
}

func TestClear(t *testing.T) {
	m := NewManager(10, time.Hour)
	m.Set("a", 1, 0)
	m.Set("b", 2, 0)
	m.Clear()
	assert.Equal(t, 0, m.Stats().Size)
}
