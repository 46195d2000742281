// Package validation — входной контроль рыночных данных.
// Невалидные данные в систему не попадают: каждый отказ логируется
// с полным контекстом и учитывается в статистике.
package validation

import (
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"ict_bot/internal/models"
	"ict_bot/pkg/logger"
)

type Config struct {
	// MaxSpreadPoints — спред выше считаем мусором (строгий режим)
	MaxSpreadPoints int32
	// MaxGapBars — допустимая дыра между соседними барами
	MaxGapBars int
	// MinTickVolume — минимальный объём бара (строгий режим)
	MinTickVolume int64
}

func DefaultConfig() Config {
	return Config{
		MaxSpreadPoints: 1000,
		MaxGapBars:      5,
		MinTickVolume:   0,
	}
}

// Stats — снимок статистики валидатора.
type Stats struct {
	Validated     int64            `json:"validated"`
	Rejected      int64            `json:"rejected"`
	RejectionRate float64          `json:"rejectionRate"`
	Reasons       map[string]int64 `json:"reasons"`
}

type Validator struct {
	cfg Config

	mu        sync.Mutex
	validated int64
	rejected  int64
	reasons   map[string]int64
}

func New(cfg Config) *Validator {
	return &Validator{
		cfg:     cfg,
		reasons: make(map[string]int64),
	}
}

// половина средней цены; размах больше — почти наверняка битые данные
var maxRangeFrac = decimal.NewFromFloat(0.5)

// спред больше 10% от mid у тика — битые данные
var maxTickSpreadFrac = decimal.NewFromFloat(0.1)

// Candle проверяет один бар. strict добавляет проверки объёма и спреда.
func (v *Validator) Candle(c *models.Candle, strict bool) (bool, error) {
	v.mu.Lock()
	v.validated++
	v.mu.Unlock()

	if err := c.Validate(); err != nil {
		return false, v.reject("invariant", err, c)
	}

	if c.Range().GreaterThan(c.Mid().Mul(maxRangeFrac)) {
		return false, v.reject("unrealistic range",
			fmt.Errorf("range %s > 50%% of mid %s", c.Range(), c.Mid()), c)
	}

	if strict {
		if c.TickVolume < v.cfg.MinTickVolume {
			return false, v.reject("tick volume too low",
				fmt.Errorf("tick volume %d < %d", c.TickVolume, v.cfg.MinTickVolume), c)
		}
		if c.Spread > v.cfg.MaxSpreadPoints {
			return false, v.reject("unrealistic spread",
				fmt.Errorf("spread %d points > %d", c.Spread, v.cfg.MaxSpreadPoints), c)
		}
	}

	return true, nil
}

// Sequence проверяет серию баров одного symbol/timeframe: монотонность
// времени, отсутствие дублей, дыры. При allowGaps дыры не считаются ошибкой,
// но возвращаются в errs для логирования.
func (v *Validator) Sequence(candles []models.Candle, allowGaps bool) (bool, []error) {
	if len(candles) == 0 {
		return true, nil
	}

	v.mu.Lock()
	v.validated += int64(len(candles))
	v.mu.Unlock()

	var errs []error
	var gaps []error

	first := candles[0]
	for i := range candles {
		if candles[i].Symbol != first.Symbol {
			errs = append(errs, fmt.Errorf("bar %d: symbol mismatch, expected %s, got %s",
				i, first.Symbol, candles[i].Symbol))
		}
		if candles[i].Timeframe != first.Timeframe {
			errs = append(errs, fmt.Errorf("bar %d: timeframe mismatch, expected %s, got %s",
				i, first.Timeframe, candles[i].Timeframe))
		}
	}

	for i := 0; i+1 < len(candles); i++ {
		cur, next := candles[i], candles[i+1]
		if !cur.OpenTime.Before(next.OpenTime) {
			errs = append(errs, fmt.Errorf("non-monotonic time: bar %d (%s) >= bar %d (%s)",
				i, cur.OpenTime.Format(time.RFC3339), i+1, next.OpenTime.Format(time.RFC3339)))
			continue
		}

		expected := cur.Timeframe.Next(cur.OpenTime)
		if !next.OpenTime.Equal(expected) {
			gapBars := float64(next.OpenTime.Sub(expected)) / float64(cur.Timeframe.Duration())
			if gapBars > float64(v.cfg.MaxGapBars) {
				gaps = append(gaps, fmt.Errorf("large gap between bars %d and %d: %.1f bars missing",
					i, i+1, gapBars))
			}
		}
	}

	if !allowGaps {
		errs = append(errs, gaps...)
		gaps = nil
	}

	if len(errs) > 0 {
		v.mu.Lock()
		v.rejected += int64(len(candles))
		v.reasons["sequence error"]++
		v.mu.Unlock()
		return false, errs
	}
	return true, gaps
}

// Tick проверяет один тик.
func (v *Validator) Tick(t *models.Tick) (bool, error) {
	v.mu.Lock()
	v.validated++
	v.mu.Unlock()

	if err := t.Validate(); err != nil {
		return false, v.rejectTick("invariant", err, t)
	}

	if t.SpreadPx().GreaterThan(t.Mid().Mul(maxTickSpreadFrac)) {
		return false, v.rejectTick("unrealistic spread",
			fmt.Errorf("spread %s > 10%% of mid %s", t.SpreadPx(), t.Mid()), t)
	}
	return true, nil
}

func (v *Validator) Stats() Stats {
	v.mu.Lock()
	defer v.mu.Unlock()

	reasons := make(map[string]int64, len(v.reasons))
	for k, n := range v.reasons {
		reasons[k] = n
	}
	s := Stats{
		Validated: v.validated,
		Rejected:  v.rejected,
		Reasons:   reasons,
	}
	if v.validated > 0 {
		s.RejectionRate = float64(v.rejected) / float64(v.validated)
	}
	return s
}

func (v *Validator) ResetStats() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.validated = 0
	v.rejected = 0
	v.reasons = make(map[string]int64)
}

func (v *Validator) reject(reason string, err error, c *models.Candle) error {
	v.count(reason)
	logger.Warn("candle REJECTED: %v | symbol: %s tf: %s time: %s OHLC: %s/%s/%s/%s",
		err, c.Symbol, c.Timeframe, c.OpenTime.Format(time.RFC3339),
		c.Open, c.High, c.Low, c.Close)
	return fmt.Errorf("%s: %w", reason, err)
}

func (v *Validator) rejectTick(reason string, err error, t *models.Tick) error {
	v.count(reason)
	logger.Warn("tick REJECTED: %v | symbol: %s time: %s bid/ask: %s/%s",
		err, t.Symbol, t.Time.Format(time.RFC3339), t.Bid, t.Ask)
	return fmt.Errorf("%s: %w", reason, err)
}

func (v *Validator) count(reason string) {
	v.mu.Lock()
	v.rejected++
	v.reasons[reason]++
	v.mu.Unlock()
}
