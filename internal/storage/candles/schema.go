package candles

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"ict_bot/pkg/db"
)

// bootstrap-схема; боевой аналог живёт в migrations/ и накатывается make migrate
const schemaSQL = `
CREATE TABLE IF NOT EXISTS candles (
    id          BIGSERIAL PRIMARY KEY,
    symbol      TEXT        NOT NULL,
    timeframe   TEXT        NOT NULL,
    open_time   TIMESTAMPTZ NOT NULL,
    open        NUMERIC     NOT NULL,
    high        NUMERIC     NOT NULL,
    low         NUMERIC     NOT NULL,
    close       NUMERIC     NOT NULL,
    tick_volume BIGINT      NOT NULL DEFAULT 0,
    real_volume BIGINT      NOT NULL DEFAULT 0,
    spread      INTEGER     NOT NULL DEFAULT 0,
    account_id  BIGINT      NOT NULL DEFAULT 0,
    broker      TEXT        NOT NULL DEFAULT 'unknown',
    metadata    JSONB,
    created_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
    UNIQUE (symbol, timeframe, open_time, account_id)
);

CREATE INDEX IF NOT EXISTS idx_candles_lookup
    ON candles (symbol, timeframe, open_time);
`

// EnsureSchema создаёт таблицу свечей, если её ещё нет.
func EnsureSchema(ctx context.Context, mgr db.TxManager) error {
	err := mgr.RunMaster(ctx, func(ctx context.Context, tx pgx.Tx) error {
		_, eErr := tx.Exec(ctx, schemaSQL)
		return eErr
	})
	if err != nil {
		return fmt.Errorf("candles.EnsureSchema: %w", err)
	}
	return nil
}
