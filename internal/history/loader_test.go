package history

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

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
		Timeframe:  models.TFH1,
		OpenTime:   open,
		Open:       d("1.0850"),
		High:       d("1.0870"),
		Low:        d("1.0840"),
		Close:      d("1.0860"),
		TickVolume: 100,
	}
}

// rangeSource отдаёт бары часовой сетки внутри запрошенного окна.
type rangeSource struct {
	calls   int
	mutate  func([]models.Candle) []models.Candle
	failure error
}

func (s *rangeSource) StreamCandles(ctx context.Context, symbols []string, tf models.Timeframe) (<-chan models.Candle, error) {
	ch := make(chan models.Candle)
	close(ch)
	return ch, nil
}

func (s *rangeSource) CandleRange(ctx context.Context, symbol string, tf models.Timeframe, from, to time.Time, limit int) ([]models.Candle, error) {
	s.calls++
	if s.failure != nil {
		return nil, s.failure
	}
	var out []models.Candle
	for cur := from; cur.Before(to); cur = cur.Add(tf.Duration()) {
		out = append(out, bar(cur))
	}
	if s.mutate != nil {
		out = s.mutate(out)
	}
	return out, nil
}

type memSink struct {
	saved []models.Candle
	dups  map[time.Time]bool
}

func (s *memSink) SaveBatch(_ context.Context, list []models.Candle) (int, error) {
	if s.dups == nil {
		s.dups = make(map[time.Time]bool)
	}
	n := 0
	for _, c := range list {
		if s.dups[c.OpenTime] {
			continue
		}
		s.dups[c.OpenTime] = true
		s.saved = append(s.saved, c)
		n++
	}
	return n, nil
}

func TestLoadChunksWindow(t *testing.T) {
	src := &rangeSource{}
	sink := &memSink{}
	l := NewLoader(src, sink, validation.New(validation.DefaultConfig()), 6)

	from := time.Date(2024, 3, 11, 0, 0, 0, 0, time.UTC)
	to := from.Add(24 * time.Hour)

	st, err := l.Load(context.Background(), "EURUSD", models.TFH1, from, to)
	require.NoError(t, err)

	// 24 часовых бара чанками по 6
	assert.Equal(t, 4, src.calls)
	assert.Equal(t, 24, st.Fetched)
	assert.Equal(t, 24, st.Saved)
	assert.Equal(t, 0, st.Rejected)
	assert.NotEmpty(t, st.JobID)
	assert.Len(t, sink.saved, 24)
}

func TestLoadFloorsStart(t *testing.T) {
	src := &rangeSource{}
	sink := &memSink{}
	l := NewLoader(src, sink, validation.New(validation.DefaultConfig()), 100)

	from := time.Date(2024, 3, 11, 10, 37, 0, 0, time.UTC)
	to := time.Date(2024, 3, 11, 14, 0, 0, 0, time.UTC)

	st, err := l.Load(context.Background(), "EURUSD", models.TFH1, from, to)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 3, 11, 10, 0, 0, 0, time.UTC), st.From)
	assert.Equal(t, 4, st.Fetched)
}

func TestLoadRejectsBroken(t *testing.T) {
	src := &rangeSource{mutate: func(list []models.Candle) []models.Candle {
		list[0].Low = d("9.9") // low > high
		return list
	}}
	sink := &memSink{}
	l := NewLoader(src, sink, validation.New(validation.DefaultConfig()), 100)

	from := time.Date(2024, 3, 11, 0, 0, 0, 0, time.UTC)
	st, err := l.Load(context.Background(), "EURUSD", models.TFH1, from, from.Add(3*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 3, st.Fetched)
	assert.Equal(t, 1, st.Rejected)
	assert.Equal(t, 2, st.Saved)
}

func TestLoadCountsDuplicates(t *testing.T) {
	src := &rangeSource{}
	sink := &memSink{}
	l := NewLoader(src, sink, validation.New(validation.DefaultConfig()), 100)

	from := time.Date(2024, 3, 11, 0, 0, 0, 0, time.UTC)
	to := from.Add(2 * time.Hour)

	_, err := l.Load(context.Background(), "EURUSD", models.TFH1, from, to)
	require.NoError(t, err)

	// повторная наливка того же окна: всё дубли
	st, err := l.Load(context.Background(), "EURUSD", models.TFH1, from, to)
	require.NoError(t, err)
	assert.Equal(t, 0, st.Saved)
	assert.Equal(t, 2, st.Duplicate)
}

func TestLoadEmptyWindow(t *testing.T) {
	l := NewLoader(&rangeSource{}, &memSink{}, validation.New(validation.DefaultConfig()), 100)
	from := time.Date(2024, 3, 11, 0, 0, 0, 0, time.UTC)
	_, err := l.Load(context.Background(), "EURUSD", models.TFH1, from, from)
	assert.Error(t, err)
}

func TestLoadBadTimeframe(t *testing.T) {
	l := NewLoader(&rangeSource{}, &memSink{}, validation.New(validation.DefaultConfig()), 100)
	from := time.Date(2024, 3, 11, 0, 0, 0, 0, time.UTC)
	_, err := l.Load(context.Background(), "EURUSD", models.Timeframe("M2"), from, from.Add(time.Hour))
	assert.ErrorIs(t, err, models.ErrUnknownTimeframe)
}

func TestLoadAllContinuesOnError(t *testing.T) {
	okSrc := &rangeSource{}
	sink := &memSink{}
	l := NewLoader(okSrc, sink, validation.New(validation.DefaultConfig()), 100)

	from := time.Date(2024, 3, 11, 0, 0, 0, 0, time.UTC)
	stats, err := l.LoadAll(context.Background(),
		[]string{"EURUSD", "GBPUSD"},
		[]models.Timeframe{models.TFH1, models.Timeframe("M2")},
		from, from.Add(2*time.Hour))

	// плохой таймфрейм даёт ошибку, но валидные пары загружены
	assert.Error(t, err)
	assert.Len(t, stats, 2)
}
