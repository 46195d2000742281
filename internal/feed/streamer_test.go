package feed

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ict_bot/internal/bus"
	"ict_bot/internal/models"
	"ict_bot/internal/validation"
)

func d(s string) decimal.Decimal {
	v, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return v
}

func bar(open time.Time) models.Candle {
	return models.Candle{
		Symbol:     "EURUSD",
		Timeframe:  models.TFM15,
		OpenTime:   open,
		Open:       d("1.0850"),
		High:       d("1.0870"),
		Low:        d("1.0840"),
		Close:      d("1.0860"),
		TickVolume: 100,
		AccountID:  7,
	}
}

// fakeSource отдаёт заранее заданные бары и закрывает канал.
type fakeSource struct {
	candles []models.Candle
}

func (f *fakeSource) StreamCandles(ctx context.Context, symbols []string, tf models.Timeframe) (<-chan models.Candle, error) {
	ch := make(chan models.Candle)
	go func() {
		defer close(ch)
		for _, c := range f.candles {
			select {
			case ch <- c:
			case <-ctx.Done():
				return
			}
		}
	}()
	return ch, nil
}

func (f *fakeSource) CandleRange(ctx context.Context, symbol string, tf models.Timeframe, from, to time.Time, limit int) ([]models.Candle, error) {
	return f.candles, nil
}

type memSink struct {
	mu    sync.Mutex
	saved []models.Candle
}

func (s *memSink) Save(_ context.Context, c *models.Candle) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saved = append(s.saved, *c)
	return true, nil
}

func TestStreamerPublishesAndSaves(t *testing.T) {
	t0 := time.Date(2024, 3, 15, 10, 0, 0, 0, time.UTC)
	src := &fakeSource{candles: []models.Candle{
		bar(t0),
		bar(t0), // дубль
		bar(t0.Add(15 * time.Minute)),
	}}

	b := bus.New()
	events, unsub := b.Subscribe(models.EventNewCandle, -1)
	defer unsub()

	sink := &memSink{}
	touched := 0
	s := NewStreamer(
		src,
		validation.New(validation.DefaultConfig()),
		b,
		[]string{"EURUSD"},
		[]models.Timeframe{models.TFM15},
		WithSink(sink),
		WithCandleHook(func(models.Candle) { touched++ }),
	)

	require.NoError(t, s.Run(context.Background()))

	st := s.Stats()
	assert.EqualValues(t, 2, st.Streamed)
	assert.EqualValues(t, 1, st.Duplicates)
	assert.EqualValues(t, 2, st.Saved)
	assert.Equal(t, 2, touched)

	assert.Len(t, sink.saved, 2)
	assert.Len(t, events, 2)

	ev := <-events
	assert.Equal(t, models.EventNewCandle, ev.Type)
	assert.Equal(t, "EURUSD", ev.Symbol)
	require.NotNil(t, ev.Candle)
	assert.Equal(t, t0, ev.Candle.OpenTime)
}

func TestStreamerRejectsInvalid(t *testing.T) {
	t0 := time.Date(2024, 3, 15, 10, 0, 0, 0, time.UTC)
	broken := bar(t0)
	broken.Low = d("2.0") // low > high

	src := &fakeSource{candles: []models.Candle{broken}}
	b := bus.New()
	s := NewStreamer(
		src,
		validation.New(validation.DefaultConfig()),
		b,
		[]string{"EURUSD"},
		[]models.Timeframe{models.TFM15},
	)

	require.NoError(t, s.Run(context.Background()))

	st := s.Stats()
	assert.EqualValues(t, 0, st.Streamed)
	assert.EqualValues(t, 1, st.Rejected)
	assert.EqualValues(t, 0, b.Stats().Published)
}

func TestStreamerNothingToStream(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	s := NewStreamer(&fakeSource{}, validation.New(validation.DefaultConfig()), bus.New(), nil, nil)
	err := s.Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestWireCandleConversion(t *testing.T) {
	w := wireCandle{
		Symbol:     "EURUSD",
		Timeframe:  "15m",
		Time:       1710497700, // 2024-03-15 10:15:00 UTC
		Open:       "1.0850",
		High:       "1.0870",
		Low:        "1.0840",
		Close:      "1.0860",
		TickVolume: 42,
		Spread:     9,
		Closed:     true,
	}

	c, err := w.toCandle(7, "ic-markets")
	require.NoError(t, err)
	assert.Equal(t, models.TFM15, c.Timeframe)
	assert.Equal(t, time.Date(2024, 3, 15, 10, 15, 0, 0, time.UTC), c.OpenTime)
	assert.True(t, c.Open.Equal(d("1.0850")))
	assert.EqualValues(t, 7, c.AccountID)
	assert.Equal(t, "ic-markets", c.Broker)
	require.NoError(t, c.Validate())

	w.Open = "oops"
	_, err = w.toCandle(7, "ic-markets")
	assert.Error(t, err)

	w.Open = "1.0850"
	w.Timeframe = "M2"
	_, err = w.toCandle(7, "ic-markets")
	assert.ErrorIs(t, err, models.ErrUnknownTimeframe)
}
