package telegram

import (
	"context"
	"errors"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"esim-storefront/internal/config"
	"esim-storefront/internal/domain/ports/adapter"
)

var _ adapter.OpsAlerter = (*BotAlerter)(nil)

const maxMessageLen = 4096

// BotAlerter posts operational alerts to a single ops chat.
type BotAlerter struct {
	bot    *tgbotapi.BotAPI
	chatID int64
}

// NewBotAlerter validates the token with getMe. apiEndpoint may be empty for the public API.
func NewBotAlerter(cfg config.TelegramConfig, apiEndpoint string) (*BotAlerter, error) {
	if cfg.Token == "" {
		return nil, errors.New("telegram token empty")
	}
	if cfg.ChatID == 0 {
		return nil, errors.New("telegram chat id empty")
	}
	if apiEndpoint == "" {
		apiEndpoint = tgbotapi.APIEndpoint
	}
	bot, err := tgbotapi.NewBotAPIWithAPIEndpoint(cfg.Token, apiEndpoint)
	if err != nil {
		return nil, fmt.Errorf("telegram: %w", err)
	}
	return &BotAlerter{bot: bot, chatID: cfg.ChatID}, nil
}

func (a *BotAlerter) Alert(ctx context.Context, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if len(text) > maxMessageLen {
		text = text[:maxMessageLen-3] + "..."
	}
	msg := tgbotapi.NewMessage(a.chatID, text)
	msg.DisableWebPagePreview = true
	_, err := a.bot.Send(msg)
	return err
}
