package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Candle — каноничный бар OHLCV. Все данные (история, стрим, бэктест)
// проходят через эту структуру; время всегда UTC.
type Candle struct {
	Symbol    string
	Timeframe Timeframe
	// OpenTime — время открытия бара (UTC)
	OpenTime time.Time

	Open  decimal.Decimal
	High  decimal.Decimal
	Low   decimal.Decimal
	Close decimal.Decimal

	TickVolume int64
	RealVolume int64
	// Spread — средний спред в пунктах
	Spread int32

	AccountID int64
	Broker    string

	Metadata map[string]any
}

// Validate проверяет инварианты бара. Невалидный бар не должен жить дальше
// точки входа в систему.
func (c *Candle) Validate() error {
	if strings.TrimSpace(c.Symbol) == "" {
		return fmt.Errorf("candle: empty symbol")
	}
	if !c.Timeframe.Valid() {
		return fmt.Errorf("candle: invalid timeframe %q", c.Timeframe)
	}
	if c.OpenTime.IsZero() {
		return fmt.Errorf("candle: zero open time (%s)", c.Symbol)
	}
	if c.Open.Sign() <= 0 || c.High.Sign() <= 0 || c.Low.Sign() <= 0 || c.Close.Sign() <= 0 {
		return fmt.Errorf("candle: non-positive price O:%s H:%s L:%s C:%s (%s %s)",
			c.Open, c.High, c.Low, c.Close, c.Symbol, c.OpenTime.Format(time.RFC3339))
	}
	if c.Open.LessThan(c.Low) || c.Open.GreaterThan(c.High) {
		return fmt.Errorf("candle: low (%s) <= open (%s) <= high (%s) violated (%s %s)",
			c.Low, c.Open, c.High, c.Symbol, c.OpenTime.Format(time.RFC3339))
	}
	if c.Close.LessThan(c.Low) || c.Close.GreaterThan(c.High) {
		return fmt.Errorf("candle: low (%s) <= close (%s) <= high (%s) violated (%s %s)",
			c.Low, c.Close, c.High, c.Symbol, c.OpenTime.Format(time.RFC3339))
	}
	if c.TickVolume < 0 {
		return fmt.Errorf("candle: tick volume must be >= 0, got %d", c.TickVolume)
	}
	if c.RealVolume < 0 {
		return fmt.Errorf("candle: real volume must be >= 0, got %d", c.RealVolume)
	}
	if c.Spread < 0 {
		return fmt.Errorf("candle: spread must be >= 0, got %d", c.Spread)
	}
	return nil
}

// NewCandle строит валидный бар; время нормализуется к UTC.
func NewCandle(
	symbol string,
	tf Timeframe,
	openTime time.Time,
	open, high, low, closePx decimal.Decimal,
	tickVolume int64,
) (Candle, error) {
	c := Candle{
		Symbol:     symbol,
		Timeframe:  tf,
		OpenTime:   openTime.UTC(),
		Open:       open,
		High:       high,
		Low:        low,
		Close:      closePx,
		TickVolume: tickVolume,
		Broker:     "unknown",
	}
	if err := c.Validate(); err != nil {
		return Candle{}, err
	}
	return c, nil
}

// CloseTime — время закрытия бара.
func (c *Candle) CloseTime() time.Time {
	return c.Timeframe.Next(c.OpenTime)
}

// Range — размах бара (high - low).
func (c *Candle) Range() decimal.Decimal {
	return c.High.Sub(c.Low)
}

// Mid — середина бара по экстремумам.
func (c *Candle) Mid() decimal.Decimal {
	return c.High.Add(c.Low).Div(decimal.NewFromInt(2))
}

func (c *Candle) Key() string {
	return c.Symbol + ":" + string(c.Timeframe)
}
