// Package backfill — фоновый досбор дыр в истории.
package backfill

import (
	"context"

	"go.uber.org/fx"

	"ict_bot/internal/feed"
	"ict_bot/internal/history"
	"ict_bot/internal/modules/config"
	"ict_bot/internal/modules/stream"
	"ict_bot/internal/notify"
	"ict_bot/internal/storage/candles"
	"ict_bot/internal/validation"
	"ict_bot/pkg/logger"
)

func NewLoader(src feed.Source, repo *candles.Repository, v *validation.Validator, cfg *config.Config) *history.Loader {
	return history.NewLoader(src, repo, v, cfg.History.ChunkSize)
}

func NewBackfiller(
	loader *history.Loader,
	repo *candles.Repository,
	notifier notify.Notifier,
	cfg *config.Config,
	tfs stream.Timeframes,
) *history.Backfiller {
	return history.NewBackfiller(
		loader, repo, notifier,
		history.BackfillConfig{
			Every:    cfg.History.BackfillEvery,
			Lookback: cfg.History.Lookback,
		},
		cfg.Feed.Symbols, tfs, cfg.Bridge.AccountID,
	)
}

func Run(lc fx.Lifecycle, b *history.Backfiller) {
	runCtx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				defer close(done)
				if err := b.Run(runCtx); err != nil && runCtx.Err() == nil {
					logger.Error("backfill stopped: %v", err)
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
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
	return fx.Module("backfill",
		fx.Provide(
			NewLoader,
			NewBackfiller,
		),
		fx.Invoke(Run),
	)
}
