package models

import "time"

// EventType — типы событий рынка на шине.
type EventType string

const (
	EventNewCandle    EventType = "new_candle"
	EventNewTick      EventType = "new_tick"
	EventCandleUpdate EventType = "candle_update"
	EventConnStatus   EventType = "connection_status"
)

// MarketEvent — событие для подписчиков шины.
type MarketEvent struct {
	Type      EventType
	Symbol    string
	AccountID int64
	Time      time.Time // UTC

	Candle *Candle
	Tick   *Tick

	// Connected заполняется для EventConnStatus
	Connected bool
}
