// Package market — общие рыночные сервисы: контроль данных, шина, кэш.
package market

import (
	"go.uber.org/fx"

	"ict_bot/internal/bus"
	"ict_bot/internal/cache"
	"ict_bot/internal/modules/config"
	"ict_bot/internal/validation"
)

func Module() fx.Option {
	return fx.Module("market",
		fx.Provide(
			func(cfg *config.Config) *validation.Validator {
				return validation.New(validation.Config{
					MaxSpreadPoints: cfg.Validation.MaxSpreadPoints,
					MaxGapBars:      cfg.Validation.MaxGapBars,
					MinTickVolume:   cfg.Validation.MinTickVolume,
				})
			},
			bus.New,
			func(cfg *config.Config) *cache.Manager {
				return cache.NewManager(cfg.Cache.MaxSize, cfg.Cache.TTL)
			},
		),
	)
}
