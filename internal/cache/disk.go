package cache

import (
	"fmt"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	badger "github.com/dgraph-io/badger/v4"
	"github.com/shopspring/decimal"

	"ict_bot/internal/models"
)

// DiskStore — локальное хранилище скачанных баров на Badger.
// Используется histload'ом как офлайновый слой вместо БД: ключи
// упорядочены по symbol|timeframe|unix, поэтому диапазон читается
// одним сканом по префиксу.
type DiskStore struct {
	db *badger.DB
}

// candleRecord — дисковый формат бара; decimal храним строками.
type candleRecord struct {
	Symbol     string         `json:"symbol"`
	Timeframe  string         `json:"timeframe"`
	OpenTime   int64          `json:"openTime"` // unix seconds UTC
	Open       string         `json:"open"`
	High       string         `json:"high"`
	Low        string         `json:"low"`
	Close      string         `json:"close"`
	TickVolume int64          `json:"tickVolume"`
	RealVolume int64          `json:"realVolume"`
	Spread     int32          `json:"spread"`
	AccountID  int64          `json:"accountId"`
	Broker     string         `json:"broker"`
	Metadata   map[string]any `json:"metadata,omitempty"`
}

func OpenDisk(path string) (*DiskStore, error) {
	opts := badger.DefaultOptions(path).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open disk store %q: %w", path, err)
	}
	return &DiskStore{db: db}, nil
}

func (s *DiskStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func diskKey(symbol string, tf models.Timeframe, openTime time.Time) []byte {
	// unix с ведущими нулями, чтобы лексикографический порядок совпадал с временным
	return []byte(fmt.Sprintf("%s|%s|%012d", symbol, tf, openTime.UTC().Unix()))
}

func diskPrefix(symbol string, tf models.Timeframe) []byte {
	return []byte(symbol + "|" + string(tf) + "|")
}

// SaveCandles пишет бары; запись идемпотентна (ключ = время открытия).
func (s *DiskStore) SaveCandles(list []models.Candle) error {
	wb := s.db.NewWriteBatch()
	defer wb.Cancel()

	for i := range list {
		c := &list[i]
		rec := candleRecord{
			Symbol:     c.Symbol,
			Timeframe:  string(c.Timeframe),
			OpenTime:   c.OpenTime.UTC().Unix(),
			Open:       c.Open.String(),
			High:       c.High.String(),
			Low:        c.Low.String(),
			Close:      c.Close.String(),
			TickVolume: c.TickVolume,
			RealVolume: c.RealVolume,
			Spread:     c.Spread,
			AccountID:  c.AccountID,
			Broker:     c.Broker,
			Metadata:   c.Metadata,
		}
		data, err := sonic.Marshal(rec)
		if err != nil {
			return fmt.Errorf("marshal candle: %w", err)
		}
		if err := wb.Set(diskKey(c.Symbol, c.Timeframe, c.OpenTime), data); err != nil {
			return fmt.Errorf("batch set: %w", err)
		}
	}
	return wb.Flush()
}

// Candles читает бары окна [from, to) по возрастанию времени.
func (s *DiskStore) Candles(symbol string, tf models.Timeframe, from, to time.Time) ([]models.Candle, error) {
	var out []models.Candle

	err := s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		prefix := diskPrefix(symbol, tf)
		start := diskKey(symbol, tf, from)
		stop := false
		for it.Seek(start); it.ValidForPrefix(prefix) && !stop; it.Next() {
			err := it.Item().Value(func(val []byte) error {
				c, err := decodeRecord(val)
				if err != nil {
					return err
				}
				if !c.OpenTime.Before(to.UTC()) {
					stop = true
					return nil
				}
				out = append(out, c)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("disk candles %s %s: %w", symbol, tf, err)
	}
	return out, nil
}

// Count — число баров пары symbol/timeframe.
func (s *DiskStore) Count(symbol string, tf models.Timeframe) (int, error) {
	n := 0
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		prefix := diskPrefix(symbol, tf)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			n++
		}
		return nil
	})
	return n, err
}

func decodeRecord(data []byte) (models.Candle, error) {
	var rec candleRecord
	if err := sonic.Unmarshal(data, &rec); err != nil {
		return models.Candle{}, err
	}

	c := models.Candle{
		Symbol:     rec.Symbol,
		Timeframe:  models.Timeframe(rec.Timeframe),
		OpenTime:   time.Unix(rec.OpenTime, 0).UTC(),
		TickVolume: rec.TickVolume,
		RealVolume: rec.RealVolume,
		Spread:     rec.Spread,
		AccountID:  rec.AccountID,
		Broker:     rec.Broker,
		Metadata:   rec.Metadata,
	}

	var err error
	for _, f := range []struct {
		dst *decimal.Decimal
		src string
	}{
		{&c.Open, rec.Open},
		{&c.High, rec.High},
		{&c.Low, rec.Low},
		{&c.Close, rec.Close},
	} {
		*f.dst, err = decimal.NewFromString(strings.TrimSpace(f.src))
		if err != nil {
			return models.Candle{}, fmt.Errorf("parse price %q: %w", f.src, err)
		}
	}
	return c, nil
}
