package telegram

import (
	"context"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// Transport is the slice of *tgbotapi.BotAPI the bot uses.
type Transport interface {
	GetUpdates(config tgbotapi.UpdateConfig) ([]tgbotapi.Update, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Replier runs one user message through the conversation pipeline.
type Replier interface {
	Reply(ctx context.Context, conversationID, text string) (string, error)
}

type FaultReporter interface {
	Report(ctx context.Context, err error)
}
