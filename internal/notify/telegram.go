package notify

import (
	"context"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// TelegramSink sends reports to one or more Telegram chats.
type TelegramSink struct {
	bot     *tgbotapi.BotAPI
	chatIDs []int64
}

func NewTelegramSink(token string, chatIDs []int64) (*TelegramSink, error) {
	if token == "" {
		return nil, fmt.Errorf("telegram token is required")
	}
	if len(chatIDs) == 0 {
		return nil, fmt.Errorf("at least one telegram chat id is required")
	}

	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("connect telegram: %w", err)
	}

	return &TelegramSink{bot: bot, chatIDs: chatIDs}, nil
}

// Send delivers the text to every configured chat. The first failure aborts
// the remaining sends.
func (s *TelegramSink) Send(_ context.Context, text string) error {
	for _, chatID := range s.chatIDs {
		msg := tgbotapi.NewMessage(chatID, text)
		msg.ParseMode = tgbotapi.ModeMarkdown
		if _, err := s.bot.Send(msg); err != nil {
			return fmt.Errorf("send to chat %d: %w", chatID, err)
		}
	}
	return nil
}
