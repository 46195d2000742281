// Package history — налив исторических баров из моста в хранилище.
package history

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"ict_bot/internal/clock"
	"ict_bot/internal/feed"
	"ict_bot/internal/models"
	"ict_bot/internal/validation"
	"ict_bot/pkg/logger"
)

// Sink — куда наливаем; запись обязана быть идемпотентной.
type Sink interface {
	SaveBatch(ctx context.Context, list []models.Candle) (int, error)
}

// LoadStats — итог одного задания налива.
type LoadStats struct {
	JobID     string           `json:"jobId"`
	Symbol    string           `json:"symbol"`
	Timeframe models.Timeframe `json:"timeframe"`
	From      time.Time        `json:"from"`
	To        time.Time        `json:"to"`
	Fetched   int              `json:"fetched"`
	Rejected  int              `json:"rejected"`
	Saved     int              `json:"saved"`
	Duplicate int              `json:"duplicate"`
	Took      time.Duration    `json:"took"`
}

// Loader качает историю чанками, прогоняет через строгий контроль
// и идемпотентно пишет в репозиторий.
type Loader struct {
	src       feed.Source
	repo      Sink
	validator *validation.Validator
	chunkSize int
}

func NewLoader(src feed.Source, repo Sink, v *validation.Validator, chunkSize int) *Loader {
	if chunkSize <= 0 {
		chunkSize = 1000
	}
	return &Loader{src: src, repo: repo, validator: v, chunkSize: chunkSize}
}

// Load наливает окно [from, to) одного symbol/timeframe.
// Частичный результат при ошибке не откатывается: запись идемпотентна,
// перезапуск дольёт остальное.
func (l *Loader) Load(ctx context.Context, symbol string, tf models.Timeframe, from, to time.Time) (stats LoadStats, err error) {
	stats = LoadStats{
		JobID:     uuid.NewString(),
		Symbol:    symbol,
		Timeframe: tf,
		From:      clock.Floor(from.UTC(), tf),
		To:        to.UTC(),
	}
	defer func() {
		if err != nil {
			err = fmt.Errorf("history load %s %s [%s]: %w", symbol, tf, stats.JobID, err)
		}
	}()

	if !tf.Valid() {
		return stats, models.ErrUnknownTimeframe
	}
	if !stats.From.Before(stats.To) {
		return stats, fmt.Errorf("empty window %s..%s", stats.From.Format(time.RFC3339), stats.To.Format(time.RFC3339))
	}

	started := time.Now()
	chunk := time.Duration(l.chunkSize) * tf.Duration()

	logger.Info("history: job %s start %s %s %s..%s",
		stats.JobID, symbol, tf,
		stats.From.Format(time.RFC3339), stats.To.Format(time.RFC3339))

	for cur := stats.From; cur.Before(stats.To); cur = cur.Add(chunk) {
		if ctx.Err() != nil {
			return stats, ctx.Err()
		}

		end := cur.Add(chunk)
		if end.After(stats.To) {
			end = stats.To
		}

		batch, fErr := l.src.CandleRange(ctx, symbol, tf, cur, end, l.chunkSize)
		if fErr != nil {
			return stats, fErr
		}
		stats.Fetched += len(batch)

		accepted := batch[:0]
		for i := range batch {
			if ok, _ := l.validator.Candle(&batch[i], true); !ok {
				stats.Rejected++
				continue
			}
			accepted = append(accepted, batch[i])
		}

		// дыры в истории допустимы (выходные, праздники), но логируем
		if _, seqErrs := l.validator.Sequence(accepted, true); len(seqErrs) > 0 {
			for _, sErr := range seqErrs {
				logger.Warn("history: job %s %s %s: %v", stats.JobID, symbol, tf, sErr)
			}
		}

		saved, sErr := l.repo.SaveBatch(ctx, accepted)
		if sErr != nil {
			return stats, sErr
		}
		stats.Saved += saved
		stats.Duplicate += len(accepted) - saved
	}

	stats.Took = time.Since(started)
	logger.Info("history: job %s done: fetched %d, rejected %d, saved %d, dup %d in %s",
		stats.JobID, stats.Fetched, stats.Rejected, stats.Saved, stats.Duplicate, stats.Took)
	return stats, nil
}

// LoadAll наливает окно для всех пар symbol x timeframe подряд.
// Ошибка по одной паре не роняет остальные.
func (l *Loader) LoadAll(ctx context.Context, symbols []string, tfs []models.Timeframe, from, to time.Time) ([]LoadStats, error) {
	var (
		out     []LoadStats
		lastErr error
	)
	for _, s := range symbols {
		for _, tf := range tfs {
			if ctx.Err() != nil {
				return out, ctx.Err()
			}
			st, err := l.Load(ctx, s, tf, from, to)
			if err != nil {
				logger.Error("history: %v", err)
				lastErr = err
				continue
			}
			out = append(out, st)
		}
	}
	return out, lastErr
}
