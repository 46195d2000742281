package clock

import (
	"fmt"
	"time"
)

// Session — торговая сессия.
type Session string

const (
	SessionAsia    Session = "asia"
	SessionLondon  Session = "london"
	SessionNewYork Session = "new_york"
)

// minuteOfDay — локальное время стены "чч:мм" в минутах от полуночи.
type minuteOfDay int

func hm(h, m int) minuteOfDay { return minuteOfDay(h*60 + m) }

// SessionConfig — окно сессии в её локальной таймзоне.
// Границы заданы локальным временем, поэтому переходы на летнее время
// отрабатывает база таймзон, а не захардкоженные смещения.
type SessionConfig struct {
	Name     Session
	Timezone string

	Start minuteOfDay
	End   minuteOfDay

	// killzone — окно повышенной активности внутри сессии; может отсутствовать
	KillzoneStart minuteOfDay
	KillzoneEnd   minuteOfDay
	HasKillzone   bool
}

var sessionConfigs = map[Session]SessionConfig{
	SessionAsia: {
		Name:          SessionAsia,
		Timezone:      "Asia/Tokyo",
		Start:         hm(0, 0),
		End:           hm(9, 0),
		KillzoneStart: hm(0, 0),
		KillzoneEnd:   hm(3, 0),
		HasKillzone:   true,
	},
	SessionLondon: {
		Name:          SessionLondon,
		Timezone:      "Europe/London",
		Start:         hm(8, 0),
		End:           hm(17, 0),
		KillzoneStart: hm(2, 0), // 02:00–05:00 по Лондону
		KillzoneEnd:   hm(5, 0),
		HasKillzone:   true,
	},
	SessionNewYork: {
		Name:          SessionNewYork,
		Timezone:      "America/New_York",
		Start:         hm(8, 0),
		End:           hm(17, 0),
		KillzoneStart: hm(8, 30), // 08:30–11:00 по Нью-Йорку
		KillzoneEnd:   hm(11, 0),
		HasKillzone:   true,
	},
}

// Sessions — все сессии в порядке торгового дня.
func Sessions() []Session {
	return []Session{SessionAsia, SessionLondon, SessionNewYork}
}

// Config возвращает конфиг сессии.
func Config(s Session) (SessionConfig, error) {
	cfg, ok := sessionConfigs[s]
	if !ok {
		return SessionConfig{}, fmt.Errorf("unknown session: %q", s)
	}
	return cfg, nil
}

func localAt(year int, month time.Month, day int, m minuteOfDay, loc *time.Location) time.Time {
	return time.Date(year, month, day, int(m)/60, int(m)%60, 0, 0, loc)
}

// Bounds — границы сессии в UTC для календарной даты (год/месяц/день берутся
// из date как есть, без интерпретации её таймзоны).
func Bounds(date time.Time, s Session) (start, end time.Time, err error) {
	cfg, err := Config(s)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	loc, err := Location(cfg.Timezone)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}

	y, m, d := date.Date()
	startLocal := localAt(y, m, d, cfg.Start, loc)
	endLocal := localAt(y, m, d, cfg.End, loc)
	if cfg.End < cfg.Start {
		endLocal = endLocal.AddDate(0, 0, 1)
	}
	return startLocal.UTC(), endLocal.UTC(), nil
}

// InSession — попадает ли момент t (UTC) в сессию. Проверяются текущая и
// предыдущая даты: сессия может пересекать полночь UTC.
func InSession(t time.Time, s Session) (bool, error) {
	t = t.UTC()
	for _, d := range []time.Time{t, t.AddDate(0, 0, -1)} {
		start, end, err := Bounds(d, s)
		if err != nil {
			return false, err
		}
		if !t.Before(start) && t.Before(end) {
			return true, nil
		}
	}
	return false, nil
}

// ActiveSessions — все активные сессии на момент t; Лондон и Нью-Йорк
// пересекаются несколько часов.
func ActiveSessions(t time.Time) ([]Session, error) {
	var active []Session
	for _, s := range Sessions() {
		in, err := InSession(t, s)
		if err != nil {
			return nil, err
		}
		if in {
			active = append(active, s)
		}
	}
	return active, nil
}

// Primary — основная сессия момента t, приоритет NY > London > Asia.
func Primary(t time.Time) (Session, bool, error) {
	active, err := ActiveSessions(t)
	if err != nil {
		return "", false, err
	}
	if len(active) == 0 {
		return "", false, nil
	}
	for _, want := range []Session{SessionNewYork, SessionLondon, SessionAsia} {
		for _, s := range active {
			if s == want {
				return s, true, nil
			}
		}
	}
	return active[0], true, nil
}

// InKillzone — попадает ли момент t в killzone сессии.
// Окно может пересекать полночь локального времени.
func InKillzone(t time.Time, s Session) (bool, error) {
	cfg, err := Config(s)
	if err != nil {
		return false, err
	}
	if !cfg.HasKillzone {
		return false, nil
	}
	loc, err := Location(cfg.Timezone)
	if err != nil {
		return false, err
	}

	local := t.UTC().In(loc)
	cur := hm(local.Hour(), local.Minute())

	if cfg.KillzoneEnd > cfg.KillzoneStart {
		return cur >= cfg.KillzoneStart && cur < cfg.KillzoneEnd, nil
	}
	return cur >= cfg.KillzoneStart || cur < cfg.KillzoneEnd, nil
}
