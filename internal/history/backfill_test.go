package history

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ict_bot/internal/models"
	"ict_bot/internal/storage/candles"
	"ict_bot/internal/validation"
)

type fakeRepo struct {
	mu   sync.Mutex
	gaps []candles.TimeRange
}

func (r *fakeRepo) MissingRanges(_ context.Context, _ string, _ models.Timeframe, _, _ time.Time, _ int64) ([]candles.TimeRange, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := r.gaps
	r.gaps = nil // после первого прохода дыр нет
	return out, nil
}

type memNotifier struct {
	mu   sync.Mutex
	msgs []string
}

func (n *memNotifier) Sendf(format string, args ...any) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.msgs = append(n.msgs, fmt.Sprintf(format, args...))
}

func TestBackfillerFillsGapsAndAlerts(t *testing.T) {
	gapFrom := time.Date(2024, 3, 11, 0, 0, 0, 0, time.UTC)
	repo := &fakeRepo{gaps: []candles.TimeRange{
		{From: gapFrom, To: gapFrom.Add(2 * time.Hour)},               // маленькая, без алерта
		{From: gapFrom.Add(6 * time.Hour), To: gapFrom.Add(200 * time.Hour)}, // большая
	}}

	src := &rangeSource{}
	sink := &memSink{}
	loader := NewLoader(src, sink, validation.New(validation.DefaultConfig()), 1000)
	notifier := &memNotifier{}

	b := NewBackfiller(loader, repo, notifier,
		BackfillConfig{Every: time.Hour, Lookback: 24 * time.Hour, AlertGapBars: 60},
		[]string{"EURUSD"}, []models.Timeframe{models.TFH1}, 0)

	b.sweep(context.Background())

	// обе дыры долиты
	assert.Equal(t, 2+194, len(sink.saved))

	// алерт только по большой дыре
	notifier.mu.Lock()
	defer notifier.mu.Unlock()
	require.Len(t, notifier.msgs, 1)
	assert.Contains(t, notifier.msgs[0], "data gap")
}
