package main

import (
	"context"
	"log"

	"go.uber.org/fx"

	"ict_bot/internal/modules/api"
	"ict_bot/internal/modules/backfill"
	"ict_bot/internal/modules/config"
	"ict_bot/internal/modules/health"
	"ict_bot/internal/modules/market"
	"ict_bot/internal/modules/postgres"
	"ict_bot/internal/modules/stream"
	telegram "ict_bot/internal/modules/telegram_bot"
	"ict_bot/pkg/logger"
	"ict_bot/pkg/tracing"
)

const serviceName = "ict-bot"

func main() {
	app := fx.New(
		fx.Provide(
			func() context.Context {
				return context.Background()
			},
		),
		config.Module(),
		fx.Invoke(func(lc fx.Lifecycle, cfg *config.Config) error {
			logger.SetServiceName(serviceName)
			if err := logger.Init(logger.Config{Level: cfg.Log.Level, File: cfg.Log.File}); err != nil {
				return err
			}

			tracing.SetServiceName(serviceName)
			_, closeTracer, err := tracing.InitTracer(tracing.Config{
				Enabled: cfg.Tracing.Enabled,
				Host:    cfg.Tracing.Host,
				Port:    cfg.Tracing.Port,
			})
			if err != nil {
				return err
			}
			lc.Append(fx.Hook{
				OnStop: func(context.Context) error {
					closeTracer()
					return nil
				},
			})
			return nil
		}),
		postgres.Module(),
		market.Module(),
		health.Module(),
		stream.Module(),
		telegram.Module(),
		backfill.Module(),
		api.Module(),
	)
	if err := app.Err(); err != nil {
		log.Fatal(err)
	}
	// блокируется до SIGINT/SIGTERM
	app.Run()
}
