package clock

import (
	"time"
)

// IsDST — действует ли летнее время в зоне на момент t.
// Стандартное смещение зоны считаем как минимум из зимнего и летнего
// (работает для обоих полушарий).
func IsDST(t time.Time, zone string) (bool, error) {
	loc, err := Location(zone)
	if err != nil {
		return false, err
	}
	return isDSTIn(t, loc), nil
}

func isDSTIn(t time.Time, loc *time.Location) bool {
	_, off := t.In(loc).Zone()

	year := t.In(loc).Year()
	_, offJan := time.Date(year, time.January, 15, 12, 0, 0, 0, time.UTC).In(loc).Zone()
	_, offJul := time.Date(year, time.July, 15, 12, 0, 0, 0, time.UTC).In(loc).Zone()

	std := offJan
	if offJul < std {
		std = offJul
	}
	return off != std
}

// TransitionKind — тип перехода летнего времени.
type TransitionKind string

const (
	TransitionStart TransitionKind = "start" // перевод вперёд
	TransitionEnd   TransitionKind = "end"   // перевод назад
)

// Transition — момент перехода (UTC, с точностью до часа).
type Transition struct {
	At   time.Time
	Kind TransitionKind
}

// Transitions возвращает переходы летнего времени в зоне за год:
// для America/New_York это spring forward и fall back.
// Сканируем сутки по полудню UTC, затем уточняем час на день перехода.
func Transitions(year int, zone string) ([]Transition, error) {
	loc, err := Location(zone)
	if err != nil {
		return nil, err
	}

	var out []Transition
	var prev *bool

	for day := time.Date(year, time.January, 1, 12, 0, 0, 0, time.UTC); day.Year() == year; day = day.AddDate(0, 0, 1) {
		cur := isDSTIn(day, loc)
		if prev != nil && cur != *prev {
			kind := TransitionEnd
			if cur {
				kind = TransitionStart
			}
			// переход где-то между прошлым и текущим полуднем UTC
			start := day.AddDate(0, 0, -1)
			for hour := 1; hour <= 24; hour++ {
				at := start.Add(time.Duration(hour) * time.Hour)
				if isDSTIn(at, loc) == cur {
					out = append(out, Transition{At: at, Kind: kind})
					break
				}
			}
		}
		prev = &cur
	}
	return out, nil
}
