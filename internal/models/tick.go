package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Tick — один тик котировки.
type Tick struct {
	Symbol string
	Time   time.Time // UTC

	Bid  decimal.Decimal
	Ask  decimal.Decimal
	Last decimal.Decimal

	Volume int64
	Flags  int32

	AccountID int64
	Broker    string
}

func (t *Tick) Validate() error {
	if strings.TrimSpace(t.Symbol) == "" {
		return fmt.Errorf("tick: empty symbol")
	}
	if t.Time.IsZero() {
		return fmt.Errorf("tick: zero timestamp (%s)", t.Symbol)
	}
	if t.Bid.Sign() <= 0 || t.Ask.Sign() <= 0 {
		return fmt.Errorf("tick: bid and ask must be positive, got bid:%s ask:%s", t.Bid, t.Ask)
	}
	if t.Ask.LessThan(t.Bid) {
		return fmt.Errorf("tick: ask (%s) < bid (%s) (%s %s)",
			t.Ask, t.Bid, t.Symbol, t.Time.Format(time.RFC3339))
	}
	return nil
}

// SpreadPx — спред в ценовых единицах.
func (t *Tick) SpreadPx() decimal.Decimal {
	return t.Ask.Sub(t.Bid)
}

// Mid — средняя цена между bid и ask.
func (t *Tick) Mid() decimal.Decimal {
	return t.Bid.Add(t.Ask).Div(decimal.NewFromInt(2))
}
