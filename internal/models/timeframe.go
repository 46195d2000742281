package models

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var ErrUnknownTimeframe = errors.New("unknown timeframe")

// Timeframe — биржевой таймфрейм в нотации терминала ("M1", "H1", "D1", "W1").
type Timeframe string

const (
	TFM1  Timeframe = "M1"
	TFM5  Timeframe = "M5"
	TFM15 Timeframe = "M15"
	TFM30 Timeframe = "M30"
	TFH1  Timeframe = "H1"
	TFH4  Timeframe = "H4"
	TFD1  Timeframe = "D1"
	TFW1  Timeframe = "W1"
)

var timeframeDurations = map[Timeframe]time.Duration{
	TFM1:  time.Minute,
	TFM5:  5 * time.Minute,
	TFM15: 15 * time.Minute,
	TFM30: 30 * time.Minute,
	TFH1:  time.Hour,
	TFH4:  4 * time.Hour,
	TFD1:  24 * time.Hour,
	TFW1:  7 * 24 * time.Hour,
}

// ParseTimeframe нормализует строку ("m15", "candle1h", "H1") в Timeframe.
func ParseTimeframe(raw string) (Timeframe, error) {
	s := strings.ToUpper(strings.TrimSpace(raw))
	s = strings.TrimPrefix(s, "CANDLE")

	// альтернативная нотация с младшим разрядом впереди: "1m" -> "M1"
	if len(s) >= 2 {
		last := s[len(s)-1]
		if last == 'M' || last == 'H' || last == 'D' || last == 'W' {
			s = string(last) + s[:len(s)-1]
		}
	}

	tf := Timeframe(s)
	if _, ok := timeframeDurations[tf]; !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownTimeframe, raw)
	}
	return tf, nil
}

func (tf Timeframe) Valid() bool {
	_, ok := timeframeDurations[tf]
	return ok
}

// Duration — длительность одного бара.
func (tf Timeframe) Duration() time.Duration {
	return timeframeDurations[tf]
}

func (tf Timeframe) String() string { return string(tf) }

// Next — ожидаемое время открытия следующего бара.
func (tf Timeframe) Next(open time.Time) time.Time {
	return open.Add(tf.Duration())
}
