// Package notify — алерты и команды оператора.
package notify

import (
	"context"
	"fmt"
	"log"
	"strings"

	tgbot "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"ict_bot/internal/models"
)

type Notifier interface {
	Send(msg string)
	Sendf(format string, args ...any)
}

// StatusProvider — снимок состояния сервиса для /status.
type StatusProvider interface {
	StatusText() string
}

// LatestProvider — последние бары для /latest.
type LatestProvider interface {
	Latest(ctx context.Context, symbol string, tf models.Timeframe, n int, accountID int64) ([]models.Candle, error)
}

// Telegram — пассивный нотифайер + пара операторских команд.
type Telegram struct {
	bot    *tgbot.BotAPI
	chatID int64

	status    StatusProvider
	repo      LatestProvider
	accountID int64
}

func NewTelegram(token string, chatID int64, status StatusProvider, repo LatestProvider, accountID int64) (*Telegram, error) {
	b, err := tgbot.NewBotAPI(token)
	if err != nil {
		return nil, err
	}
	return &Telegram{
		bot:       b,
		chatID:    chatID,
		status:    status,
		repo:      repo,
		accountID: accountID,
	}, nil
}

func (t *Telegram) Send(msg string) {
	if t == nil || t.bot == nil || t.chatID == 0 {
		return
	}
	_, _ = t.bot.Send(tgbot.NewMessage(t.chatID, msg))
}

func (t *Telegram) Sendf(format string, args ...any) { t.Send(fmt.Sprintf(format, args...)) }

// /status — состояние сервиса
func (t *Telegram) handleStatus() {
	if t.status == nil {
		t.Send("❗️ Статус недоступен")
		return
	}
	t.Send(t.status.StatusText())
}

// /latest SYMBOL TF — последние бары из хранилища
func (t *Telegram) handleLatest(ctx context.Context, args string) {
	fields := strings.Fields(args)
	if len(fields) < 2 || t.repo == nil {
		t.Send("Использование: /latest EURUSD M15")
		return
	}

	tf, err := models.ParseTimeframe(fields[1])
	if err != nil {
		t.Sendf("❗️ %v", err)
		return
	}

	list, err := t.repo.Latest(ctx, strings.ToUpper(fields[0]), tf, 5, t.accountID)
	if err != nil {
		t.Sendf("❗️ Ошибка чтения баров: %v", err)
		return
	}
	if len(list) == 0 {
		t.Send("📭 Баров нет")
		return
	}

	var b strings.Builder
	fmt.Fprintf(&b, "📊 %s %s, последние %d:\n", fields[0], tf, len(list))
	for i := range list {
		c := &list[i]
		fmt.Fprintf(&b, "- %s O:%s H:%s L:%s C:%s vol=%d\n",
			c.OpenTime.Format("01-02 15:04"),
			c.Open, c.High, c.Low, c.Close, c.TickVolume)
	}
	t.Send(b.String())
}

// Start: long-polling команд оператора.
func (t *Telegram) Start(ctx context.Context) error {
	if t == nil || t.bot == nil {
		return nil
	}

	u := tgbot.NewUpdate(0)
	u.Timeout = 30
	u.AllowedUpdates = []string{"message"}

	updates := t.bot.GetUpdatesChan(u)
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case upd := <-updates:
				if upd.Message == nil || upd.Message.Chat == nil ||
					upd.Message.Chat.ID != t.chatID || !upd.Message.IsCommand() {
					continue
				}
				switch upd.Message.Command() {
				case "status":
					go t.handleStatus()
				case "latest":
					args := upd.Message.CommandArguments()
					go t.handleLatest(ctx, args)
				}
			}
		}
	}()
	return nil
}

func (t *Telegram) Stop() {}

// Stdout — заглушка, всё пишет в лог.
type Stdout struct{}

func NewStdout() *Stdout                           { return &Stdout{} }
func (s *Stdout) Send(msg string)                  { log.Println(msg) }
func (s *Stdout) Sendf(format string, args ...any) { log.Printf(format, args...) }

// FromConfig: телеграм при заданном токене, иначе stdout.
// Ошибка инициализации бота не фатальна — откатываемся на stdout.
func FromConfig(token string, chatID int64, status StatusProvider, repo LatestProvider, accountID int64) Notifier {
	if token == "" || chatID == 0 {
		return NewStdout()
	}
	tg, err := NewTelegram(token, chatID, status, repo, accountID)
	if err != nil {
		log.Printf("telegram init failed, falling back to stdout: %v", err)
		return NewStdout()
	}
	return tg
}
