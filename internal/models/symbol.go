package models

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// SymbolInfo — спецификация инструмента: точность, шаг цены, размер контракта.
type SymbolInfo struct {
	Symbol string
	Digits int32

	// Point — минимальное изменение цены
	Point     decimal.Decimal
	TickSize  decimal.Decimal
	TickValue decimal.Decimal

	ContractSize decimal.Decimal
	VolumeMin    decimal.Decimal
	VolumeMax    decimal.Decimal
	VolumeStep   decimal.Decimal

	CurrencyBase   string
	CurrencyProfit string
	CurrencyMargin string

	SpreadTypical int32
	AccountID     int64
	Broker        string
}

func (s *SymbolInfo) Validate() error {
	if strings.TrimSpace(s.Symbol) == "" {
		return fmt.Errorf("symbol info: empty symbol")
	}
	if s.Digits < 0 {
		return fmt.Errorf("symbol info: digits must be >= 0, got %d", s.Digits)
	}
	if s.Point.Sign() <= 0 {
		return fmt.Errorf("symbol info: point must be > 0, got %s", s.Point)
	}
	if s.ContractSize.Sign() <= 0 {
		return fmt.Errorf("symbol info: contract size must be > 0, got %s", s.ContractSize)
	}
	return nil
}

// RoundDownToTick округляет цену вниз до шага цены.
func (s *SymbolInfo) RoundDownToTick(px decimal.Decimal) decimal.Decimal {
	if s.TickSize.Sign() <= 0 {
		return px
	}
	return px.Div(s.TickSize).Floor().Mul(s.TickSize)
}

// RoundUpToTick округляет цену вверх до шага цены.
func (s *SymbolInfo) RoundUpToTick(px decimal.Decimal) decimal.Decimal {
	if s.TickSize.Sign() <= 0 {
		return px
	}
	return px.Div(s.TickSize).Ceil().Mul(s.TickSize)
}
