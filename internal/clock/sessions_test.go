package clock

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// зима: Лондон = UTC, Нью-Йорк = UTC-5, Токио = UTC+9
func TestBoundsWinter(t *testing.T) {
	date := time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)

	start, end, err := Bounds(date, SessionLondon)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 1, 15, 8, 0, 0, 0, time.UTC), start)
	assert.Equal(t, time.Date(2024, 1, 15, 17, 0, 0, 0, time.UTC), end)

	start, end, err = Bounds(date, SessionNewYork)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 1, 15, 13, 0, 0, 0, time.UTC), start)
	assert.Equal(t, time.Date(2024, 1, 15, 22, 0, 0, 0, time.UTC), end)

	// Токио 00:00–09:00 JST => предыдущий день 15:00–00:00 UTC
	start, end, err = Bounds(date, SessionAsia)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 1, 14, 15, 0, 0, 0, time.UTC), start)
	assert.Equal(t, time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC), end)
}

// лето: Лондон = UTC+1, Нью-Йорк = UTC-4
func TestBoundsSummer(t *testing.T) {
	date := time.Date(2024, 7, 15, 0, 0, 0, 0, time.UTC)

	start, end, err := Bounds(date, SessionLondon)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 7, 15, 7, 0, 0, 0, time.UTC), start)
	assert.Equal(t, time.Date(2024, 7, 15, 16, 0, 0, 0, time.UTC), end)

	start, _, err = Bounds(date, SessionNewYork)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 7, 15, 12, 0, 0, 0, time.UTC), start)
}

func TestInSessionAcrossMidnight(t *testing.T) {
	// 20:00 UTC 14-го — внутри азиатского окна, открывшегося 15:00 UTC 14-го,
	// но формально принадлежащего дате 15-го
	in, err := InSession(time.Date(2024, 1, 14, 20, 0, 0, 0, time.UTC), SessionAsia)
	require.NoError(t, err)
	assert.True(t, in)

	in, err = InSession(time.Date(2024, 1, 14, 12, 0, 0, 0, time.UTC), SessionAsia)
	require.NoError(t, err)
	assert.False(t, in)
}

func TestActiveSessionsOverlap(t *testing.T) {
	// 14:00 UTC зимой: Лондон (08–17 UTC) и Нью-Йорк (13–22 UTC) активны
	active, err := ActiveSessions(time.Date(2024, 1, 15, 14, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.ElementsMatch(t, []Session{SessionLondon, SessionNewYork}, active)
}

func TestPrimaryPriority(t *testing.T) {
	// на пересечении Лондон/Нью-Йорк главный — Нью-Йорк
	s, ok, err := Primary(time.Date(2024, 1, 15, 14, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, SessionNewYork, s)

	// только Лондон
	s, ok, err = Primary(time.Date(2024, 1, 15, 9, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, SessionLondon, s)

	// мёртвое окно: после Нью-Йорка, до Токио
	_, ok, err = Primary(time.Date(2024, 1, 15, 22, 30, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestInKillzone(t *testing.T) {
	// нью-йоркская killzone 08:30–11:00 местного => 13:30–16:00 UTC зимой
	in, err := InKillzone(time.Date(2024, 1, 15, 14, 0, 0, 0, time.UTC), SessionNewYork)
	require.NoError(t, err)
	assert.True(t, in)

	in, err = InKillzone(time.Date(2024, 1, 15, 13, 0, 0, 0, time.UTC), SessionNewYork)
	require.NoError(t, err)
	assert.False(t, in)

	// лондонская killzone 02:00–05:00 местного == UTC зимой
	in, err = InKillzone(time.Date(2024, 1, 15, 3, 0, 0, 0, time.UTC), SessionLondon)
	require.NoError(t, err)
	assert.True(t, in)
}

func TestConfigUnknownSession(t *testing.T) {
	_, err := Config(Session("sydney"))
	assert.Error(t, err)
}
