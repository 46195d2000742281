// Package stream — живой поток баров: мост -> контроль -> шина -> хранилище.
package stream

import (
	"context"
	"fmt"

	"go.uber.org/fx"

	"ict_bot/internal/bus"
	"ict_bot/internal/clock"
	"ict_bot/internal/feed"
	"ict_bot/internal/models"
	"ict_bot/internal/modules/config"
	"ict_bot/internal/modules/health/service"
	"ict_bot/internal/storage/candles"
	"ict_bot/internal/validation"
	"ict_bot/pkg/logger"
)

// Timeframes — разобранный список таймфреймов из конфига.
type Timeframes []models.Timeframe

func NewTimeframes(cfg *config.Config) (Timeframes, error) {
	out := make(Timeframes, 0, len(cfg.Feed.Timeframes))
	for _, raw := range cfg.Feed.Timeframes {
		tf, err := models.ParseTimeframe(raw)
		if err != nil {
			return nil, fmt.Errorf("feed timeframes: %w", err)
		}
		out = append(out, tf)
	}
	return out, nil
}

func NewSource(cfg *config.Config, state *service.State, b *bus.Bus) feed.Source {
	return feed.NewBridgeClient(
		cfg.Bridge.WSURL,
		cfg.Bridge.RESTURL,
		cfg.Bridge.AccountID,
		cfg.Bridge.Broker,
		feed.WithStatusFunc(func(connected bool) {
			state.SetWSConnected(connected)
			b.Publish(models.MarketEvent{
				Type:      models.EventConnStatus,
				AccountID: cfg.Bridge.AccountID,
				Time:      clock.NowUTC(),
				Connected: connected,
			})
		}),
	)
}

func NewStreamer(
	src feed.Source,
	v *validation.Validator,
	b *bus.Bus,
	repo *candles.Repository,
	state *service.State,
	cfg *config.Config,
	tfs Timeframes,
) *feed.Streamer {
	return feed.NewStreamer(
		src, v, b,
		cfg.Feed.Symbols, tfs,
		feed.WithSink(repo),
		feed.WithCandleHook(func(c models.Candle) {
			state.TouchCandle(c.OpenTime)
		}),
	)
}

func Run(lc fx.Lifecycle, s *feed.Streamer, state *service.State) {
	runCtx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				defer close(done)
				if err := s.Run(runCtx); err != nil && runCtx.Err() == nil {
					logger.Error("streamer stopped: %v", err)
				}
			}()
			state.SetReady(true)
			return nil
		},
		OnStop: func(ctx context.Context) error {
			state.SetReady(false)
			cancel()
			select {
			case <-done:
			case <-ctx.Done():
			}
			return nil
		},
	})
}

func Module() fx.Option {
	return fx.Module("stream",
		fx.Provide(
			NewTimeframes,
			NewSource,
			NewStreamer,
		),
		fx.Invoke(Run),
	)
}
