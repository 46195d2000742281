// Package feed — поток рыночных данных от моста терминала.
// Сам протокол терминала нас не касается: мост отдаёт свечи в простом
// JSON-формате по WS (стрим) и REST (история).
package feed

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"ict_bot/internal/models"
)

// Source — абстракция источника свечей.
type Source interface {
	// StreamCandles — поток закрытых свечей по пачке инструментов одного таймфрейма.
	// Канал закрывается при отмене контекста.
	StreamCandles(ctx context.Context, symbols []string, tf models.Timeframe) (<-chan models.Candle, error)
	// CandleRange — исторические бары окна [from, to), по возрастанию времени.
	CandleRange(ctx context.Context, symbol string, tf models.Timeframe, from, to time.Time, limit int) ([]models.Candle, error)
}

// StatusFunc дёргается при смене состояния соединения с мостом.
type StatusFunc func(connected bool)

// wireCandle — свеча в формате моста; цены строками.
type wireCandle struct {
	Symbol     string `json:"symbol"`
	Timeframe  string `json:"timeframe"`
	Time       int64  `json:"time"` // unix seconds, открытие бара
	Open       string `json:"open"`
	High       string `json:"high"`
	Low        string `json:"low"`
	Close      string `json:"close"`
	TickVolume int64  `json:"tickVolume"`
	RealVolume int64  `json:"realVolume"`
	Spread     int32  `json:"spread"`
	Closed     bool   `json:"closed"`
}

func (w *wireCandle) toCandle(accountID int64, broker string) (models.Candle, error) {
	tf, err := models.ParseTimeframe(w.Timeframe)
	if err != nil {
		return models.Candle{}, err
	}

	var o, h, l, c decimal.Decimal
	for _, p := range []struct {
		dst *decimal.Decimal
		src string
	}{{&o, w.Open}, {&h, w.High}, {&l, w.Low}, {&c, w.Close}} {
		*p.dst, err = decimal.NewFromString(p.src)
		if err != nil {
			return models.Candle{}, fmt.Errorf("parse price %q: %w", p.src, err)
		}
	}

	return models.Candle{
		Symbol:     w.Symbol,
		Timeframe:  tf,
		OpenTime:   time.Unix(w.Time, 0).UTC(),
		Open:       o,
		High:       h,
		Low:        l,
		Close:      c,
		TickVolume: w.TickVolume,
		RealVolume: w.RealVolume,
		Spread:     w.Spread,
		AccountID:  accountID,
		Broker:     broker,
	}, nil
}
