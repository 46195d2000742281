// Package bus — шина рыночных событий.
// Несколько потребителей на тип события, фильтрация по аккаунту.
// Паблишер никогда не блокируется: медленный подписчик теряет события.
package bus

import (
	"sync"

	"ict_bot/internal/models"
	"ict_bot/pkg/logger"
)

// allAccounts — подписка без фильтра по аккаунту.
const allAccounts int64 = -1

const defaultBuffer = 256

type subscriber struct {
	ch        chan models.MarketEvent
	accountID int64
}

// Stats — снимок статистики шины.
type Stats struct {
	Published   int64 `json:"published"`
	Delivered   int64 `json:"delivered"`
	Dropped     int64 `json:"dropped"`
	Subscribers int   `json:"subscribers"`
}

type Bus struct {
	mu   sync.RWMutex
	subs map[models.EventType][]*subscriber

	published int64
	delivered int64
	dropped   int64
}

func New() *Bus {
	return &Bus{
		subs: make(map[models.EventType][]*subscriber),
	}
}

// Subscribe возвращает канал событий и функцию отписки.
// accountID < 0 — события по всем аккаунтам.
func (b *Bus) Subscribe(et models.EventType, accountID int64) (<-chan models.MarketEvent, func()) {
	if accountID < 0 {
		accountID = allAccounts
	}
	sub := &subscriber{
		ch:        make(chan models.MarketEvent, defaultBuffer),
		accountID: accountID,
	}

	b.mu.Lock()
	b.subs[et] = append(b.subs[et], sub)
	b.mu.Unlock()

	logger.Info("bus: subscriber added: %s (account: %d)", et, accountID)

	var once sync.Once
	unsubscribe := func() {
		once.Do(func() {
			b.mu.Lock()
			list := b.subs[et]
			for i, s := range list {
				if s == sub {
					b.subs[et] = append(list[:i], list[i+1:]...)
					break
				}
			}
			b.mu.Unlock()
			close(sub.ch)
		})
	}
	return sub.ch, unsubscribe
}

// Publish рассылает событие подписчикам; возвращает число доставок.
// Переполненный буфер подписчика => событие для него теряется.
func (b *Bus) Publish(ev models.MarketEvent) int {
	b.mu.Lock()
	b.published++
	subs := b.subs[ev.Type]
	delivered := 0
	for _, s := range subs {
		if s.accountID != allAccounts && s.accountID != ev.AccountID {
			continue
		}
		select {
		case s.ch <- ev:
			delivered++
			b.delivered++
		default:
			b.dropped++
		}
	}
	b.mu.Unlock()

	return delivered
}

func (b *Bus) Stats() Stats {
	b.mu.RLock()
	defer b.mu.RUnlock()

	n := 0
	for _, list := range b.subs {
		n += len(list)
	}
	return Stats{
		Published:   b.published,
		Delivered:   b.delivered,
		Dropped:     b.dropped,
		Subscribers: n,
	}
}
