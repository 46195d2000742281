// Package cache — кэш валидированных рыночных данных.
// В кэш попадают только проверенные бары; ключи детерминированные,
// инвалидация только явная.
package cache

import (
	"container/list"
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"strings"
	"sync"
	"time"

	"ict_bot/internal/models"
	"ict_bot/pkg/logger"
)

// Stats — снимок статистики кэша.
type Stats struct {
	Size      int     `json:"size"`
	MaxSize   int     `json:"maxSize"`
	Hits      int64   `json:"hits"`
	Misses    int64   `json:"misses"`
	HitRate   float64 `json:"hitRate"`
	Evictions int64   `json:"evictions"`
}

type entry struct {
	key    string
	value  any
	expiry time.Time // нулевое время => не истекает
}

// Manager — LRU-кэш с TTL.
type Manager struct {
	maxSize    int
	defaultTTL time.Duration

	mu    sync.Mutex
	items map[string]*list.Element
	order *list.List // front = самый свежий

	hits      int64
	misses    int64
	evictions int64

	now func() time.Time
}

func NewManager(maxSize int, defaultTTL time.Duration) *Manager {
	if maxSize <= 0 {
		maxSize = 10000
	}
	return &Manager{
		maxSize:    maxSize,
		defaultTTL: defaultTTL,
		items:      make(map[string]*list.Element),
		order:      list.New(),
		now:        time.Now,
	}
}

// Key строит детерминированный ключ prefix|symbol|tf|from|to|account.
// Длинные ключи сжимаются sha256-хэшем.
func Key(prefix, symbol string, tf models.Timeframe, from, to time.Time, accountID int64) string {
	parts := []string{prefix, symbol, string(tf)}
	if !from.IsZero() {
		parts = append(parts, from.UTC().Format(time.RFC3339))
	}
	if !to.IsZero() {
		parts = append(parts, to.UTC().Format(time.RFC3339))
	}
	if accountID >= 0 {
		parts = append(parts, strconv.FormatInt(accountID, 10))
	}

	key := strings.Join(parts, "|")
	if len(key) > 200 {
		sum := sha256.Sum256([]byte(key))
		return prefix + ":" + hex.EncodeToString(sum[:8])
	}
	return key
}

// Get возвращает значение по ключу; протухшие записи удаляются на чтении.
func (m *Manager) Get(key string) (any, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	el, ok := m.items[key]
	if !ok {
		m.misses++
		return nil, false
	}

	ent := el.Value.(*entry)
	if !ent.expiry.IsZero() && m.now().After(ent.expiry) {
		m.order.Remove(el)
		delete(m.items, key)
		m.misses++
		return nil, false
	}

	m.order.MoveToFront(el)
	m.hits++
	return ent.value, true
}

// Set кладёт значение с ttl; ttl == 0 — дефолтный, ttl < 0 — вечное.
func (m *Manager) Set(key string, value any, ttl time.Duration) {
	if ttl == 0 {
		ttl = m.defaultTTL
	}
	var expiry time.Time
	if ttl > 0 {
		expiry = m.now().Add(ttl)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if el, ok := m.items[key]; ok {
		ent := el.Value.(*entry)
		ent.value = value
		ent.expiry = expiry
		m.order.MoveToFront(el)
		return
	}

	el := m.order.PushFront(&entry{key: key, value: value, expiry: expiry})
	m.items[key] = el

	for m.order.Len() > m.maxSize {
		oldest := m.order.Back()
		if oldest == nil {
			break
		}
		m.order.Remove(oldest)
		delete(m.items, oldest.Value.(*entry).key)
		m.evictions++
	}
}

// GetCandles — кэшированные бары окна.
func (m *Manager) GetCandles(symbol string, tf models.Timeframe, from, to time.Time, accountID int64) ([]models.Candle, bool) {
	v, ok := m.Get(Key("candles", symbol, tf, from, to, accountID))
	if !ok {
		return nil, false
	}
	out, ok := v.([]models.Candle)
	return out, ok
}

// SetCandles кэширует бары окна.
func (m *Manager) SetCandles(list []models.Candle, symbol string, tf models.Timeframe, from, to time.Time, accountID int64, ttl time.Duration) {
	if len(list) == 0 {
		return
	}
	m.Set(Key("candles", symbol, tf, from, to, accountID), list, ttl)
}

// Invalidate снимает записи по symbol/timeframe; нулевые from/to —
// все окна этой пары.
func (m *Manager) Invalidate(symbol string, tf models.Timeframe, from, to time.Time, accountID int64) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	var keys []string
	if from.IsZero() || to.IsZero() {
		prefix := "candles|" + symbol + "|" + string(tf)
		for k := range m.items {
			if strings.HasPrefix(k, prefix) {
				keys = append(keys, k)
			}
		}
	} else {
		k := Key("candles", symbol, tf, from, to, accountID)
		if _, ok := m.items[k]; ok {
			keys = append(keys, k)
		}
	}

	for _, k := range keys {
		m.order.Remove(m.items[k])
		delete(m.items, k)
	}

	logger.Info("cache: invalidated %d entries for %s %s", len(keys), symbol, tf)
	return len(keys)
}

// Clear чистит кэш целиком.
func (m *Manager) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := m.order.Len()
	m.items = make(map[string]*list.Element)
	m.order.Init()
	logger.Info("cache: cleared %d entries", n)
}

func (m *Manager) Stats() Stats {
	m.mu.Lock()
	defer m.mu.Unlock()

	s := Stats{
		Size:      m.order.Len(),
		MaxSize:   m.maxSize,
		Hits:      m.hits,
		Misses:    m.misses,
		Evictions: m.evictions,
	}
	if total := m.hits + m.misses; total > 0 {
		s.HitRate = float64(m.hits) / float64(total)
	}
	return s
}
