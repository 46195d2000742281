// Package clock — таймзоны, таймфреймы и торговые сессии.
// Внутренний стандарт времени — UTC; все публичные функции принимают и
// возвращают UTC, локальное время живёт только внутри расчёта сессий.
package clock

import (
	"fmt"
	"sync"
	"time"
	// в контейнере может не быть системной базы таймзон
	_ "time/tzdata"

	"ict_bot/internal/models"
)

var (
	locMu  sync.Mutex
	locCch = map[string]*time.Location{}
)

// Location — кэшированный time.LoadLocation.
func Location(name string) (*time.Location, error) {
	locMu.Lock()
	defer locMu.Unlock()
	if loc, ok := locCch[name]; ok {
		return loc, nil
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("load location %q: %w", name, err)
	}
	locCch[name] = loc
	return loc, nil
}

// NowUTC — текущее время в UTC.
func NowUTC() time.Time { return time.Now().UTC() }

// FromUnix — конвертация unix-секунд терминала в UTC.
func FromUnix(sec int64) time.Time { return time.Unix(sec, 0).UTC() }

// Floor приводит время к началу бара таймфрейма.
// Недельные бары выравниваются на понедельник 00:00 UTC.
func Floor(t time.Time, tf models.Timeframe) time.Time {
	t = t.UTC()
	switch tf {
	case models.TFD1:
		return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	case models.TFW1:
		day := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
		// Weekday: Sunday=0, нам нужен сдвиг от понедельника
		shift := (int(day.Weekday()) + 6) % 7
		return day.AddDate(0, 0, -shift)
	default:
		return t.Truncate(tf.Duration())
	}
}

// NextBar — время открытия бара, следующего за t.
func NextBar(t time.Time, tf models.Timeframe) time.Time {
	return tf.Next(Floor(t, tf))
}
