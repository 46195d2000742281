package clock

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ict_bot/internal/models"
)

func TestFloorIntraday(t *testing.T) {
	at := time.Date(2024, 3, 15, 10, 37, 42, 123, time.UTC)

	cases := []struct {
		tf   models.Timeframe
		want time.Time
	}{
		{models.TFM1, time.Date(2024, 3, 15, 10, 37, 0, 0, time.UTC)},
		{models.TFM5, time.Date(2024, 3, 15, 10, 35, 0, 0, time.UTC)},
		{models.TFM15, time.Date(2024, 3, 15, 10, 30, 0, 0, time.UTC)},
		{models.TFM30, time.Date(2024, 3, 15, 10, 30, 0, 0, time.UTC)},
		{models.TFH1, time.Date(2024, 3, 15, 10, 0, 0, 0, time.UTC)},
		{models.TFH4, time.Date(2024, 3, 15, 8, 0, 0, 0, time.UTC)},
		{models.TFD1, time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, Floor(at, c.tf), c.tf)
	}
}

func TestFloorWeekAlignsMonday(t *testing.T) {
	monday := time.Date(2024, 3, 11, 0, 0, 0, 0, time.UTC)

	// 2024-03-11 — понедельник; вся неделя до воскресенья включительно
	// прижимается к нему
	for d := 0; d < 7; d++ {
		at := monday.AddDate(0, 0, d).Add(13 * time.Hour)
		got := Floor(at, models.TFW1)
		assert.Equal(t, monday, got, at)
		assert.Equal(t, time.Monday, got.Weekday())
	}
}

func TestFloorNormalizesToUTC(t *testing.T) {
	loc := time.FixedZone("X", -5*3600)
	at := time.Date(2024, 3, 15, 22, 30, 0, 0, loc) // 2024-03-16 03:30 UTC
	got := Floor(at, models.TFD1)
	assert.Equal(t, time.Date(2024, 3, 16, 0, 0, 0, 0, time.UTC), got)
}

func TestNextBar(t *testing.T) {
	at := time.Date(2024, 3, 15, 10, 37, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2024, 3, 15, 11, 0, 0, 0, time.UTC), NextBar(at, models.TFH1))
}

func TestFromUnix(t *testing.T) {
	got := FromUnix(1710497820)
	assert.Equal(t, time.UTC, got.Location())
	assert.Equal(t, time.Date(2024, 3, 15, 10, 17, 0, 0, time.UTC), got)
}

func TestLocationCached(t *testing.T) {
	a, err := Location("America/New_York")
	require.NoError(t, err)
	b, err := Location("America/New_York")
	require.NoError(t, err)
	assert.Same(t, a, b)

	_, err = Location("Nope/Nowhere")
	assert.Error(t, err)
}
