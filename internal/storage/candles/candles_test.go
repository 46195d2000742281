package candles

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestWeekendOnly(t *testing.T) {
	// пятница 22:00 UTC — воскресенье 22:00 UTC: рынок закрыт
	friClose := time.Date(2024, 3, 15, 22, 0, 0, 0, time.UTC) // пятница
	sunOpen := time.Date(2024, 3, 17, 22, 0, 0, 0, time.UTC)  // воскресенье

	assert.True(t, weekendOnly(friClose, sunOpen))
	assert.True(t, weekendOnly(
		time.Date(2024, 3, 16, 3, 0, 0, 0, time.UTC),
		time.Date(2024, 3, 16, 9, 0, 0, 0, time.UTC),
	))

	// дыра начинается в торговое время
	assert.False(t, weekendOnly(
		time.Date(2024, 3, 15, 20, 0, 0, 0, time.UTC),
		sunOpen,
	))

	// дыра заканчивается после открытия рынка
	assert.False(t, weekendOnly(
		friClose,
		time.Date(2024, 3, 17, 23, 0, 0, 0, time.UTC),
	))

	// окно длиннее выходных накрывает будний день
	assert.False(t, weekendOnly(
		friClose,
		friClose.Add(80*time.Hour),
	))

	// будни
	assert.False(t, weekendOnly(
		time.Date(2024, 3, 13, 10, 0, 0, 0, time.UTC),
		time.Date(2024, 3, 13, 12, 0, 0, 0, time.UTC),
	))
}
