package history

import (
	"context"
	"time"

	"ict_bot/internal/clock"
	"ict_bot/internal/models"
	"ict_bot/internal/storage/candles"
	"ict_bot/pkg/logger"
)

// Notifier — канал алертов (telegram или stdout).
type Notifier interface {
	Sendf(format string, args ...any)
}

// Repo — часть репозитория свечей, нужная поиску дыр.
type Repo interface {
	MissingRanges(ctx context.Context, symbol string, tf models.Timeframe, from, to time.Time, accountID int64) ([]candles.TimeRange, error)
}

// BackfillConfig — настройки фонового досбора.
type BackfillConfig struct {
	Every    time.Duration // период сканирования
	Lookback time.Duration // глубина окна назад от текущего бара
	// AlertGapBars — дыра от этого размера уходит в алерты
	AlertGapBars int
}

// Backfiller периодически ищет дыры в записанной истории и доливает их.
type Backfiller struct {
	loader     *Loader
	repo       Repo
	notifier   Notifier
	cfg        BackfillConfig
	symbols    []string
	timeframes []models.Timeframe
	accountID  int64
}

func NewBackfiller(
	loader *Loader,
	repo Repo,
	notifier Notifier,
	cfg BackfillConfig,
	symbols []string,
	timeframes []models.Timeframe,
	accountID int64,
) *Backfiller {
	if cfg.Every <= 0 {
		cfg.Every = 5 * time.Minute
	}
	if cfg.Lookback <= 0 {
		cfg.Lookback = 24 * time.Hour
	}
	if cfg.AlertGapBars <= 0 {
		cfg.AlertGapBars = 60
	}
	return &Backfiller{
		loader:     loader,
		repo:       repo,
		notifier:   notifier,
		cfg:        cfg,
		symbols:    symbols,
		timeframes: timeframes,
		accountID:  accountID,
	}
}

// Run блокируется до отмены контекста. Первый проход — сразу, не ждём тикер.
func (b *Backfiller) Run(ctx context.Context) error {
	logger.Info("backfill: every %s, lookback %s", b.cfg.Every, b.cfg.Lookback)

	t := time.NewTicker(b.cfg.Every)
	defer t.Stop()

	b.sweep(ctx)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
			b.sweep(ctx)
		}
	}
}

func (b *Backfiller) sweep(ctx context.Context) {
	for _, s := range b.symbols {
		for _, tf := range b.timeframes {
			if ctx.Err() != nil {
				return
			}
			b.sweepPair(ctx, s, tf)
		}
	}
}

func (b *Backfiller) sweepPair(ctx context.Context, symbol string, tf models.Timeframe) {
	// правый край — начало текущего (ещё не закрытого) бара
	to := clock.Floor(clock.NowUTC(), tf)
	from := to.Add(-b.cfg.Lookback)

	gaps, err := b.repo.MissingRanges(ctx, symbol, tf, from, to, b.accountID)
	if err != nil {
		logger.Error("backfill: scan %s %s: %v", symbol, tf, err)
		return
	}
	if len(gaps) == 0 {
		return
	}

	logger.Info("backfill: %s %s: %d gap(s) in %s..%s",
		symbol, tf, len(gaps), from.Format(time.RFC3339), to.Format(time.RFC3339))

	for _, gap := range gaps {
		gapBars := int(gap.To.Sub(gap.From) / tf.Duration())
		if gapBars >= b.cfg.AlertGapBars && b.notifier != nil {
			b.notifier.Sendf("⚠️ data gap %s %s: %d bars (%s — %s), backfilling",
				symbol, tf, gapBars,
				gap.From.Format(time.RFC3339), gap.To.Format(time.RFC3339))
		}

		st, err := b.loader.Load(ctx, symbol, tf, gap.From, gap.To)
		if err != nil {
			logger.Error("backfill: %v", err)
			if b.notifier != nil {
				b.notifier.Sendf("❌ backfill %s %s failed: %v", symbol, tf, err)
			}
			continue
		}
		if st.Saved > 0 {
			logger.Info("backfill: %s %s: filled %d bars", symbol, tf, st.Saved)
		}
	}
}
