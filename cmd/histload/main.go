// histload — разовый налив истории из моста в Postgres или локальный Badger.
//
//	histload --symbols EURUSD,GBPUSD --timeframes M15 \
//	    --start 2024-01-01 --end 2024-06-01 --rest http://localhost:5000
//
// По умолчанию пишем в Postgres (DATABASE_DSN); --out переключает на Badger.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"ict_bot/internal/cache"
	"ict_bot/internal/feed"
	"ict_bot/internal/history"
	"ict_bot/internal/models"
	"ict_bot/internal/storage/candles"
	"ict_bot/internal/validation"
	"ict_bot/pkg/db"
	"ict_bot/pkg/logger"
)

const dateLayout = "2006-01-02"

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "histload: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	_ = godotenv.Load()

	pflag.StringSlice("symbols", []string{"EURUSD"}, "инструменты через запятую")
	pflag.StringSlice("timeframes", []string{"M15"}, "таймфреймы через запятую")
	pflag.String("start", "", "начало окна, YYYY-MM-DD (обязательно)")
	pflag.String("end", "", "конец окна, YYYY-MM-DD (по умолчанию — сегодня)")
	pflag.String("rest", "http://localhost:5000", "REST-адрес моста")
	pflag.String("dsn", "", "Postgres DSN (по умолчанию — env DATABASE_DSN)")
	pflag.String("out", "", "директория Badger; задана — пишем на диск вместо БД")
	pflag.Int("chunk", 5000, "максимум баров за один запрос")
	pflag.Parse()

	v := viper.New()
	if err := v.BindPFlags(pflag.CommandLine); err != nil {
		return errors.Wrap(err, "bind flags")
	}
	v.SetEnvPrefix("HISTLOAD")
	v.AutomaticEnv()

	startRaw := v.GetString("start")
	if startRaw == "" {
		pflag.Usage()
		return errors.New("--start is required")
	}
	start, err := time.ParseInLocation(dateLayout, startRaw, time.UTC)
	if err != nil {
		return errors.Wrap(err, "parse --start")
	}

	end := time.Now().UTC().Truncate(24 * time.Hour)
	if raw := v.GetString("end"); raw != "" {
		end, err = time.ParseInLocation(dateLayout, raw, time.UTC)
		if err != nil {
			return errors.Wrap(err, "parse --end")
		}
	}
	if !start.Before(end) {
		return errors.Errorf("empty window %s..%s", startRaw, end.Format(dateLayout))
	}

	var tfs []models.Timeframe
	for _, raw := range v.GetStringSlice("timeframes") {
		tf, pErr := models.ParseTimeframe(raw)
		if pErr != nil {
			return pErr
		}
		tfs = append(tfs, tf)
	}

	symbols := v.GetStringSlice("symbols")
	for i := range symbols {
		symbols[i] = strings.ToUpper(strings.TrimSpace(symbols[i]))
	}

	logger.SetServiceName("histload")
	if err := logger.Init(logger.Config{Level: "info"}); err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	sink, cleanup, err := openSink(ctx, v)
	if err != nil {
		return err
	}
	defer cleanup()

	src := feed.NewBridgeClient("", v.GetString("rest"), 0, "histload")
	loader := history.NewLoader(src, sink, validation.New(validation.DefaultConfig()), v.GetInt("chunk"))

	stats, err := loader.LoadAll(ctx, symbols, tfs, start, end)
	for _, st := range stats {
		fmt.Printf("%s %s: fetched %d, saved %d, rejected %d, dup %d (%s)\n",
			st.Symbol, st.Timeframe, st.Fetched, st.Saved, st.Rejected, st.Duplicate, st.Took.Round(time.Millisecond))
	}
	return errors.Wrap(err, "load")
}

// openSink выбирает приёмник: Badger при --out, иначе Postgres.
func openSink(ctx context.Context, v *viper.Viper) (history.Sink, func(), error) {
	if out := v.GetString("out"); out != "" {
		store, err := cache.OpenDisk(out)
		if err != nil {
			return nil, nil, err
		}
		return &diskSink{store: store}, func() { _ = store.Close() }, nil
	}

	dsn := v.GetString("dsn")
	if dsn == "" {
		dsn = os.Getenv("DATABASE_DSN")
	}
	if dsn == "" {
		return nil, nil, errors.New("no sink: pass --out or set --dsn / DATABASE_DSN")
	}

	pool, err := db.NewPool(ctx, db.PoolConfig{DSN: dsn})
	if err != nil {
		return nil, nil, errors.Wrap(err, "connect postgres")
	}
	mgr := db.NewPgTxManager(pool)
	if err := candles.EnsureSchema(ctx, mgr); err != nil {
		pool.Close()
		return nil, nil, err
	}
	return candles.New(mgr), func() { pool.Close() }, nil
}

// diskSink адаптирует Badger-хранилище под приёмник налива.
type diskSink struct {
	store *cache.DiskStore
}

func (d *diskSink) SaveBatch(_ context.Context, list []models.Candle) (int, error) {
	if err := d.store.SaveCandles(list); err != nil {
		return 0, err
	}
	return len(list), nil
}
