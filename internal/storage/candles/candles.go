// Package candles — репозиторий баров поверх Postgres.
// Чистый доступ к данным: изоляция по аккаунту, оконные запросы,
// идемпотентная запись. Бизнес-логики здесь нет.
package candles

import (
	"context"
	"fmt"
	"time"

	"github.com/bytedance/sonic"
	"github.com/jackc/pgx/v5"
	"github.com/opentracing/opentracing-go"
	"github.com/shopspring/decimal"

	"ict_bot/internal/models"
	"ict_bot/pkg/db"
	"ict_bot/pkg/logger"
)

// Repository implement db store
type Repository struct {
	db db.TxManager
}

// New instance
func New(mgr db.TxManager) *Repository {
	return &Repository{db: mgr}
}

const insertSQL = `
INSERT INTO candles
    (symbol, timeframe, open_time, open, high, low, close,
     tick_volume, real_volume, spread, account_id, broker, metadata)
VALUES
    ($1, $2, $3, $4::numeric, $5::numeric, $6::numeric, $7::numeric,
     $8, $9, $10, $11, $12, $13)
ON CONFLICT (symbol, timeframe, open_time, account_id) DO NOTHING`

const selectCols = `
symbol, timeframe, open_time,
open::text, high::text, low::text, close::text,
tick_volume, real_volume, spread, account_id, broker, metadata`

// Save пишет один бар; дубликат (symbol/timeframe/open_time/account)
// молча пропускается. Возвращает true, если бар реально записан.
func (r *Repository) Save(ctx context.Context, c *models.Candle) (saved bool, err error) {
	defer func() {
		if err != nil {
			err = fmt.Errorf("candles.Save: %w", err)
		}
	}()

	span, ctx := opentracing.StartSpanFromContext(ctx, "candles.Save")
	defer span.Finish()

	meta, err := marshalMeta(c.Metadata)
	if err != nil {
		return false, err
	}

	tag, err := r.db.Conn().Exec(ctx, insertSQL,
		c.Symbol, string(c.Timeframe), c.OpenTime.UTC(),
		c.Open.String(), c.High.String(), c.Low.String(), c.Close.String(),
		c.TickVolume, c.RealVolume, c.Spread, c.AccountID, c.Broker, meta,
	)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// SaveBatch пишет пачку баров одним round-trip (pgx.Batch).
// Возвращает число реально записанных (без дублей).
func (r *Repository) SaveBatch(ctx context.Context, list []models.Candle) (saved int, err error) {
	defer func() {
		if err != nil {
			err = fmt.Errorf("candles.SaveBatch: %w", err)
		}
	}()

	if len(list) == 0 {
		return 0, nil
	}

	span, ctx := opentracing.StartSpanFromContext(ctx, "candles.SaveBatch")
	defer span.Finish()

	batch := &pgx.Batch{}
	for i := range list {
		c := &list[i]
		meta, mErr := marshalMeta(c.Metadata)
		if mErr != nil {
			return 0, mErr
		}
		batch.Queue(insertSQL,
			c.Symbol, string(c.Timeframe), c.OpenTime.UTC(),
			c.Open.String(), c.High.String(), c.Low.String(), c.Close.String(),
			c.TickVolume, c.RealVolume, c.Spread, c.AccountID, c.Broker, meta,
		)
	}

	res := r.db.SendBatch(ctx, batch)
	defer func() {
		if cErr := res.Close(); cErr != nil && err == nil {
			err = cErr
		}
	}()

	for range list {
		tag, eErr := res.Exec()
		if eErr != nil {
			return saved, eErr
		}
		if tag.RowsAffected() > 0 {
			saved++
		}
	}

	logger.Info("candles: batch save %d/%d", saved, len(list))
	return saved, nil
}

// Range — бары в окне [from, to) по возрастанию времени.
// accountID < 0 — без фильтра по аккаунту.
func (r *Repository) Range(
	ctx context.Context,
	symbol string,
	tf models.Timeframe,
	from, to time.Time,
	accountID int64,
) (out []models.Candle, err error) {
	defer func() {
		if err != nil {
			err = fmt.Errorf("candles.Range: %w", err)
		}
	}()

	span, ctx := opentracing.StartSpanFromContext(ctx, "candles.Range")
	defer span.Finish()

	sql := `SELECT ` + selectCols + `
FROM candles
WHERE symbol = $1 AND timeframe = $2 AND open_time >= $3 AND open_time < $4`
	args := []any{symbol, string(tf), from.UTC(), to.UTC()}
	if accountID >= 0 {
		sql += ` AND account_id = $5`
		args = append(args, accountID)
	}
	sql += ` ORDER BY open_time ASC`

	rows, err := r.db.Conn().Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		c, sErr := scanCandle(rows)
		if sErr != nil {
			return nil, sErr
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// Latest — последние n баров по возрастанию времени.
func (r *Repository) Latest(
	ctx context.Context,
	symbol string,
	tf models.Timeframe,
	n int,
	accountID int64,
) (out []models.Candle, err error) {
	defer func() {
		if err != nil {
			err = fmt.Errorf("candles.Latest: %w", err)
		}
	}()

	span, ctx := opentracing.StartSpanFromContext(ctx, "candles.Latest")
	defer span.Finish()

	sql := `SELECT ` + selectCols + `
FROM candles
WHERE symbol = $1 AND timeframe = $2`
	args := []any{symbol, string(tf)}
	if accountID >= 0 {
		sql += ` AND account_id = $3`
		args = append(args, accountID)
	}
	sql += fmt.Sprintf(` ORDER BY open_time DESC LIMIT %d`, n)

	rows, err := r.db.Conn().Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		c, sErr := scanCandle(rows)
		if sErr != nil {
			return nil, sErr
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// наружу отдаём по возрастанию
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}

// DeleteRange удаляет бары в окне [from, to); нужен для переналивки данных.
func (r *Repository) DeleteRange(
	ctx context.Context,
	symbol string,
	tf models.Timeframe,
	from, to time.Time,
	accountID int64,
) (deleted int64, err error) {
	defer func() {
		if err != nil {
			err = fmt.Errorf("candles.DeleteRange: %w", err)
		}
	}()

	sql := `DELETE FROM candles
WHERE symbol = $1 AND timeframe = $2 AND open_time >= $3 AND open_time < $4`
	args := []any{symbol, string(tf), from.UTC(), to.UTC()}
	if accountID >= 0 {
		sql += ` AND account_id = $5`
		args = append(args, accountID)
	}

	logger.Warn("candles: deleting %s %s %s..%s", symbol, tf,
		from.UTC().Format(time.RFC3339), to.UTC().Format(time.RFC3339))

	tag, err := r.db.Conn().Exec(ctx, sql, args...)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// TimeRange — дыра в данных: [From, To) по времени открытия баров.
type TimeRange struct {
	From time.Time
	To   time.Time
}

// MissingRanges ищет дыры между записанными барами в окне [from, to).
// Дыры, целиком попадающие на выходные, пропускаются: для форекса это не
// потеря данных, а закрытый рынок.
func (r *Repository) MissingRanges(
	ctx context.Context,
	symbol string,
	tf models.Timeframe,
	from, to time.Time,
	accountID int64,
) (gaps []TimeRange, err error) {
	defer func() {
		if err != nil {
			err = fmt.Errorf("candles.MissingRanges: %w", err)
		}
	}()

	span, ctx := opentracing.StartSpanFromContext(ctx, "candles.MissingRanges")
	defer span.Finish()

	sql := `SELECT open_time FROM candles
WHERE symbol = $1 AND timeframe = $2 AND open_time >= $3 AND open_time < $4`
	args := []any{symbol, string(tf), from.UTC(), to.UTC()}
	if accountID >= 0 {
		sql += ` AND account_id = $5`
		args = append(args, accountID)
	}
	sql += ` ORDER BY open_time ASC`

	rows, err := r.db.Conn().Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var stored []time.Time
	for rows.Next() {
		var t time.Time
		if sErr := rows.Scan(&t); sErr != nil {
			return nil, sErr
		}
		stored = append(stored, t.UTC())
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	step := tf.Duration()
	addGap := func(gFrom, gTo time.Time) {
		if !gFrom.Before(gTo) {
			return
		}
		if weekendOnly(gFrom, gTo) {
			return
		}
		gaps = append(gaps, TimeRange{From: gFrom, To: gTo})
	}

	if len(stored) == 0 {
		addGap(from.UTC(), to.UTC())
		return gaps, nil
	}

	addGap(from.UTC(), stored[0])
	for i := 0; i+1 < len(stored); i++ {
		expected := stored[i].Add(step)
		if stored[i+1].After(expected) {
			addGap(expected, stored[i+1])
		}
	}
	addGap(stored[len(stored)-1].Add(step), to.UTC())

	return gaps, nil
}

// weekendOnly — окно целиком внутри форекс-выходных (пятница 22:00 UTC —
// воскресенье 22:00 UTC).
func weekendOnly(from, to time.Time) bool {
	inClosed := func(t time.Time) bool {
		switch t.Weekday() {
		case time.Saturday:
			return true
		case time.Friday:
			return t.Hour() >= 22
		case time.Sunday:
			return t.Hour() < 22
		default:
			return false
		}
	}
	if !inClosed(from) {
		return false
	}
	// чтобы окно не накрывало будний день между двумя выходными
	if to.Sub(from) > 50*time.Hour {
		return false
	}
	return inClosed(to.Add(-time.Second))
}

func marshalMeta(meta map[string]any) ([]byte, error) {
	if len(meta) == 0 {
		return nil, nil
	}
	data, err := sonic.Marshal(meta)
	if err != nil {
		return nil, fmt.Errorf("marshal metadata: %w", err)
	}
	return data, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCandle(row rowScanner) (models.Candle, error) {
	var (
		c           models.Candle
		tfRaw       string
		o, h, l, cl string
		meta        []byte
	)
	err := row.Scan(
		&c.Symbol, &tfRaw, &c.OpenTime,
		&o, &h, &l, &cl,
		&c.TickVolume, &c.RealVolume, &c.Spread, &c.AccountID, &c.Broker, &meta,
	)
	if err != nil {
		return models.Candle{}, err
	}

	c.Timeframe = models.Timeframe(tfRaw)
	c.OpenTime = c.OpenTime.UTC()

	if c.Open, err = decimal.NewFromString(o); err != nil {
		return models.Candle{}, fmt.Errorf("parse open %q: %w", o, err)
	}
	if c.High, err = decimal.NewFromString(h); err != nil {
		return models.Candle{}, fmt.Errorf("parse high %q: %w", h, err)
	}
	if c.Low, err = decimal.NewFromString(l); err != nil {
		return models.Candle{}, fmt.Errorf("parse low %q: %w", l, err)
	}
	if c.Close, err = decimal.NewFromString(cl); err != nil {
		return models.Candle{}, fmt.Errorf("parse close %q: %w", cl, err)
	}

	if len(meta) > 0 {
		if err := sonic.Unmarshal(meta, &c.Metadata); err != nil {
			return models.Candle{}, fmt.Errorf("unmarshal metadata: %w", err)
		}
	}
	return c, nil
}
