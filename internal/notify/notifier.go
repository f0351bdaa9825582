package notify

import (
	"context"
	"fmt"

	tgbot "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"trade_engine/internal/modules/config"
	"trade_engine/pkg/logger"
)

// Notifier — пассивный канал уведомлений. Отказ доставки никогда
// не останавливает торговлю, ошибки только логируются.
type Notifier interface {
	Send(ctx context.Context, msg string)
	Sendf(ctx context.Context, format string, args ...any)
}

// Telegram шлёт уведомления в один чат.
type Telegram struct {
	bot    *tgbot.BotAPI
	chatID int64
}

func NewTelegram(cfg *config.Config) (*Telegram, error) {
	b, err := tgbot.NewBotAPI(cfg.Telegram.Token)
	if err != nil {
		return nil, fmt.Errorf("notify.NewTelegram: %w", err)
	}
	return &Telegram{bot: b, chatID: cfg.Telegram.ChatID}, nil
}

func (t *Telegram) Send(_ context.Context, msg string) {
	if _, err := t.bot.Send(tgbot.NewMessage(t.chatID, msg)); err != nil {
		logger.Error("⚠️ telegram send failed: %v", err)
	}
}

func (t *Telegram) Sendf(ctx context.Context, format string, args ...any) {
	t.Send(ctx, fmt.Sprintf(format, args...))
}

// Stdout — запасной вариант, когда токен не задан.
type Stdout struct{}

func (Stdout) Send(_ context.Context, msg string) {
	logger.Info("[NOTIFY] %s", msg)
}

func (s Stdout) Sendf(ctx context.Context, format string, args ...any) {
	s.Send(ctx, fmt.Sprintf(format, args...))
}

// New выбирает канал по конфигу.
func New(cfg *config.Config) Notifier {
	if cfg.Telegram.Token == "" {
		logger.Info("[NOTIFY] telegram token не задан, уведомления в stdout")
		return Stdout{}
	}
	t, err := NewTelegram(cfg)
	if err != nil {
		logger.Error("[NOTIFY] telegram недоступен, уведомления в stdout: %v", err)
		return Stdout{}
	}
	return t
}
