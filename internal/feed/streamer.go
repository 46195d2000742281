package feed

import (
	"context"
	"sync"
	"time"

	"ict_bot/internal/bus"
	"ict_bot/internal/models"
	"ict_bot/internal/validation"
	"ict_bot/pkg/logger"
)

// CandleSink — куда складывать прошедшие контроль бары.
// *candles.Repository подходит как есть.
type CandleSink interface {
	Save(ctx context.Context, c *models.Candle) (bool, error)
}

// StreamerStats — снимок статистики стримера.
type StreamerStats struct {
	Streamed   int64 `json:"streamed"`
	Rejected   int64 `json:"rejected"`
	Duplicates int64 `json:"duplicates"`
	Saved      int64 `json:"saved"`
	SaveErrors int64 `json:"saveErrors"`
}

// Streamer гонит живые бары из источника в шину и хранилище.
// Один стрим на таймфрейм; дубли отсекаются по времени открытия.
type Streamer struct {
	src        Source
	validator  *validation.Validator
	bus        *bus.Bus
	sink       CandleSink // nil => без персиста
	symbols    []string
	timeframes []models.Timeframe

	onCandle func(models.Candle) // хук для health

	mu       sync.Mutex
	lastSeen map[string]time.Time // symbol|tf -> последний open_time
	stats    StreamerStats
}

type StreamerOption func(*Streamer)

func WithSink(sink CandleSink) StreamerOption {
	return func(s *Streamer) { s.sink = sink }
}

// WithCandleHook подписывает колбэк на каждый принятый бар.
func WithCandleHook(fn func(models.Candle)) StreamerOption {
	return func(s *Streamer) { s.onCandle = fn }
}

func NewStreamer(
	src Source,
	v *validation.Validator,
	b *bus.Bus,
	symbols []string,
	timeframes []models.Timeframe,
	opts ...StreamerOption,
) *Streamer {
	s := &Streamer{
		src:        src,
		validator:  v,
		bus:        b,
		symbols:    symbols,
		timeframes: timeframes,
		lastSeen:   make(map[string]time.Time),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Run блокируется до отмены контекста.
func (s *Streamer) Run(ctx context.Context) error {
	if len(s.symbols) == 0 || len(s.timeframes) == 0 {
		logger.Warn("streamer: nothing to stream (symbols=%d, timeframes=%d)",
			len(s.symbols), len(s.timeframes))
		<-ctx.Done()
		return ctx.Err()
	}

	var wg sync.WaitGroup
	for _, tf := range s.timeframes {
		ch, err := s.src.StreamCandles(ctx, s.symbols, tf)
		if err != nil {
			return err
		}

		wg.Add(1)
		go func(tf models.Timeframe, ch <-chan models.Candle) {
			defer wg.Done()
			for c := range ch {
				s.handle(ctx, c)
			}
			logger.Info("streamer: %s stream closed", tf)
		}(tf, ch)
	}

	wg.Wait()
	return ctx.Err()
}

func (s *Streamer) handle(ctx context.Context, c models.Candle) {
	key := c.Symbol + "|" + string(c.Timeframe)

	s.mu.Lock()
	last, seen := s.lastSeen[key]
	if seen && !c.OpenTime.After(last) {
		s.stats.Duplicates++
		s.mu.Unlock()
		return
	}
	s.lastSeen[key] = c.OpenTime
	s.mu.Unlock()

	if ok, err := s.validator.Candle(&c, false); !ok {
		s.mu.Lock()
		s.stats.Rejected++
		s.mu.Unlock()
		logger.Warn("streamer: dropped %s %s: %v", c.Symbol, c.Timeframe, err)
		return
	}

	s.mu.Lock()
	s.stats.Streamed++
	s.mu.Unlock()

	if s.onCandle != nil {
		s.onCandle(c)
	}

	s.bus.Publish(models.MarketEvent{
		Type:      models.EventNewCandle,
		Symbol:    c.Symbol,
		AccountID: c.AccountID,
		Time:      c.OpenTime,
		Candle:    &c,
	})

	if s.sink != nil {
		if _, err := s.sink.Save(ctx, &c); err != nil {
			s.mu.Lock()
			s.stats.SaveErrors++
			s.mu.Unlock()
			logger.Error("streamer: save %s %s %s: %v",
				c.Symbol, c.Timeframe, c.OpenTime.Format(time.RFC3339), err)
			return
		}
		s.mu.Lock()
		s.stats.Saved++
		s.mu.Unlock()
	}
}

func (s *Streamer) Stats() StreamerStats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stats
}
