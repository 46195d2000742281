package telegram

import (
	"context"

	"go.uber.org/fx"

	"ict_bot/internal/bus"
	"ict_bot/internal/models"
	"ict_bot/internal/modules/config"
	"ict_bot/internal/modules/health"
	"ict_bot/internal/notify"
	"ict_bot/internal/storage/candles"
)

func Module() fx.Option {
	return fx.Module("telegram",
		fx.Provide(
			// при пустом токене откатываемся на stdout — сервис работает без телеграма
			func(cfg *config.Config, status *health.Status, repo *candles.Repository) notify.Notifier {
				return notify.FromConfig(
					cfg.Telegram.Token, cfg.Telegram.ChatID,
					status, repo, cfg.Bridge.AccountID,
				)
			},
		),
		// long-polling команд оператора, если это реально телеграм
		fx.Invoke(
			func(lc fx.Lifecycle, n notify.Notifier) {
				tg, ok := n.(*notify.Telegram)
				if !ok {
					return
				}
				// long-polling живёт дольше стартового контекста fx
				pollCtx, cancel := context.WithCancel(context.Background())
				lc.Append(fx.Hook{
					OnStart: func(ctx context.Context) error {
						return tg.Start(pollCtx)
					},
					OnStop: func(ctx context.Context) error {
						cancel()
						tg.Stop()
						return nil
					},
				})
			},
			// оповещаем оператора о connect/disconnect моста
			func(lc fx.Lifecycle, b *bus.Bus, n notify.Notifier) {
				events, unsub := b.Subscribe(models.EventConnStatus, -1)
				done := make(chan struct{})
				lc.Append(fx.Hook{
					OnStart: func(ctx context.Context) error {
						go func() {
							defer close(done)
							for ev := range events {
								if ev.Connected {
									n.Sendf("✅ feed connected (account %d)", ev.AccountID)
								} else {
									n.Sendf("⚠️ feed disconnected (account %d)", ev.AccountID)
								}
							}
						}()
						return nil
					},
					OnStop: func(ctx context.Context) error {
						unsub()
						<-done
						return nil
					},
				})
			},
		),
	)
}
