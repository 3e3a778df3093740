package alerts

import (
	"context"
	"fmt"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"futures-backtest-lab/internal/domain"
)

// Telegram sends alerts to a Telegram chat.
type Telegram struct {
	bot    *tgbotapi.BotAPI
	chatID int64
}

// NewTelegram creates a Telegram notifier for the given bot token and chat.
func NewTelegram(token string, chatID int64) (*Telegram, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("telegram bot: %w", err)
	}
	return &Telegram{bot: bot, chatID: chatID}, nil
}

// NotifyOpen announces a newly opened position.
func (t *Telegram) NotifyOpen(_ context.Context, order *domain.PositionOrder) error {
	text := fmt.Sprintf("[ENTRY][%s][%s]\nLabel: %s\nOpened at: %s\nEntry price: %g\nQuantity: %g x%d",
		order.Ticker,
		order.Direction,
		order.Label,
		formatMs(order.OpenTimeMs),
		order.OpenPrice,
		order.Quantity,
		order.Leverage,
	)
	return t.send(text)
}

// NotifyClose announces a closed position.
func (t *Telegram) NotifyClose(_ context.Context, order *domain.PositionOrder) error {
	text := fmt.Sprintf("[EXIT][%s][%s]\nLabel: %s\nOpened at: %s\nClosed at: %s\nEntry price: %g\nExit price: %g\nClosed by: %s\nProfit: %.2f%%",
		order.Ticker,
		order.Direction,
		order.Label,
		formatMs(order.OpenTimeMs),
		formatMs(order.CloseTimeMs),
		order.OpenPrice,
		order.ClosePrice,
		order.CloseReason,
		order.ProfitPercent*100,
	)
	return t.send(text)
}

// NotifyWarning announces an operational problem.
func (t *Telegram) NotifyWarning(_ context.Context, subject, detail string) error {
	return t.send(fmt.Sprintf("[WARNING][%s]\n%s", subject, detail))
}

func (t *Telegram) send(text string) error {
	msg := tgbotapi.NewMessage(t.chatID, text)
	if _, err := t.bot.Send(msg); err != nil {
		return fmt.Errorf("telegram send: %w", err)
	}
	return nil
}

func formatMs(ms int64) string {
	return time.UnixMilli(ms).UTC().Format("2006-01-02 15:04:05")
}

var _ Notifier = (*Telegram)(nil)
