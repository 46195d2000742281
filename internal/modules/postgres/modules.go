package postgres

import (
	"context"
	"fmt"

	"go.uber.org/fx"

	"ict_bot/internal/modules/config"
	"ict_bot/internal/storage/candles"
	"ict_bot/pkg/db"
)

func Module() fx.Option {
	return fx.Module("postgres",
		fx.Provide(
			func(ctx context.Context, cfg *config.Config) (*db.PgTxManager, error) {
				poolMaster, err := db.NewPool(ctx, db.PoolConfig{
					DSN: cfg.DB,
				})
				if err != nil {
					return nil, fmt.Errorf("failed to create poolMaster: %w", err)
				}

				err = poolMaster.Ping(ctx)
				if err != nil {
					return nil, err
				}

				return db.NewPgTxManager(poolMaster), nil
			},
			func(mgr *db.PgTxManager) db.TxManager { return mgr },
			func(mgr db.TxManager) *candles.Repository { return candles.New(mgr) },
		),
		// bootstrap-схема: идемпотентна, боевые миграции живут в migrations/
		fx.Invoke(func(ctx context.Context, mgr *db.PgTxManager) error {
			return candles.EnsureSchema(ctx, mgr)
		}),
	)
}
