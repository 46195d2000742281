package bus

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ict_bot/internal/models"
)

func event(accountID int64) models.MarketEvent {
	return models.MarketEvent{
		Type:      models.EventNewCandle,
		Symbol:    "EURUSD",
		AccountID: accountID,
		Time:      time.Date(2024, 3, 15, 10, 0, 0, 0, time.UTC),
	}
}

func TestPublishDelivers(t *testing.T) {
	b := New()
	ch, unsub := b.Subscribe(models.EventNewCandle, -1)
	defer unsub()

	n := b.Publish(event(7))
	assert.Equal(t, 1, n)

	got := <-ch
	assert.Equal(t, models.EventNewCandle, got.Type)
	assert.EqualValues(t, 7, got.AccountID)
}

func TestAccountFilter(t *testing.T) {
	b := New()
	chAll, unsubAll := b.Subscribe(models.EventNewCandle, -1)
	defer unsubAll()
	ch7, unsub7 := b.Subscribe(models.EventNewCandle, 7)
	defer unsub7()

	assert.Equal(t, 2, b.Publish(event(7)))
	assert.Equal(t, 1, b.Publish(event(9))) // только подписчик "все аккаунты"

	assert.Len(t, chAll, 2)
	assert.Len(t, ch7, 1)
}

func TestTypeIsolation(t *testing.T) {
	b := New()
	ch, unsub := b.Subscribe(models.EventNewTick, -1)
	defer unsub()

	b.Publish(event(1)) // new_candle
	assert.Empty(t, ch)
}

func TestUnsubscribe(t *testing.T) {
	b := New()
	ch, unsub := b.Subscribe(models.EventNewCandle, -1)
	unsub()
	unsub() // повторная отписка безопасна

	assert.Equal(t, 0, b.Publish(event(1)))
	_, open := <-ch
	assert.False(t, open)
}

func TestSlowSubscriberDrops(t *testing.T) {
	b := New()
	_, unsub := b.Subscribe(models.EventNewCandle, -1)
	defer unsub()

	// переполняем буфер: паблишер не блокируется, лишнее теряется
	for i := 0; i < defaultBuffer+10; i++ {
		b.Publish(event(1))
	}

	s := b.Stats()
	assert.EqualValues(t, defaultBuffer+10, s.Published)
	assert.EqualValues(t, defaultBuffer, s.Delivered)
	assert.EqualValues(t, 10, s.Dropped)
}

func TestStatsSubscribers(t *testing.T) {
	b := New()
	_, u1 := b.Subscribe(models.EventNewCandle, -1)
	_, u2 := b.Subscribe(models.EventConnStatus, -1)

	require.Equal(t, 2, b.Stats().Subscribers)
	u1()
	u2()
	assert.Equal(t, 0, b.Stats().Subscribers)
}
