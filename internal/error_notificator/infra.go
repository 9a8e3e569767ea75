package error_notificator

import (
	"context"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// Sender is the part of the bot API the forwarder needs.
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

type Infra struct {
	bot    Sender
	chatID int64
}

func NewInfra(bot Sender, chatID int64) *Infra {
	return &Infra{bot: bot, chatID: chatID}
}

func (i *Infra) Notify(ctx context.Context, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	msg := tgbotapi.NewMessage(i.chatID, "❗ "+text)
	if _, err := i.bot.Send(msg); err != nil {
		return fmt.Errorf("forward fault to chat %d: %w", i.chatID, err)
	}
	return nil
}
