package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTimeframe(t *testing.T) {
	cases := []struct {
		in   string
		want Timeframe
	}{
		{"M1", TFM1},
		{"m15", TFM15},
		{"  H4 ", TFH4},
		{"1m", TFM1},
		{"15m", TFM15},
		{"1h", TFH1},
		{"candle1h", TFH1},
		{"CANDLE15M", TFM15},
		{"1d", TFD1},
		{"1w", TFW1},
	}
	for _, c := range cases {
		got, err := ParseTimeframe(c.in)
		require.NoError(t, err, c.in)
		assert.Equal(t, c.want, got, c.in)
	}
}

func TestParseTimeframeUnknown(t *testing.T) {
	for _, in := range []string{"", "M2", "3h", "xx", "H"} {
		_, err := ParseTimeframe(in)
		require.Error(t, err, in)
		assert.ErrorIs(t, err, ErrUnknownTimeframe)
	}
}

func TestTimeframeDuration(t *testing.T) {
	assert.Equal(t, time.Minute, TFM1.Duration())
	assert.Equal(t, 4*time.Hour, TFH4.Duration())
	assert.Equal(t, 7*24*time.Hour, TFW1.Duration())
}

func TestTimeframeNext(t *testing.T) {
	open := time.Date(2024, 3, 15, 10, 0, 0, 0, time.UTC)
	assert.Equal(t, open.Add(15*time.Minute), TFM15.Next(open))
}
