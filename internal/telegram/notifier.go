package telegram

import (
	"context"

	"github.com/Vovarama1992/online_assistant/internal/ports"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

type Notifier struct {
	bot Transport
}

func NewNotifier(bot Transport) *Notifier {
	return &Notifier{bot: bot}
}

// NotifyTyping shows the "typing" chat action. Best effort.
func (n *Notifier) NotifyTyping(ctx context.Context, chatID int64) error {
	if err := ctx.Err(); err != nil {
		return ports.NewFault(ports.FaultPresentation, "send typing", err)
	}
	if _, err := n.bot.Request(tgbotapi.NewChatAction(chatID, tgbotapi.ChatTyping)); err != nil {
		return ports.NewFault(ports.FaultPresentation, "send typing", err)
	}
	return nil
}

// Deliver sends text as a plain message, without parse mode or truncation.
func (n *Notifier) Deliver(ctx context.Context, chatID int64, text string) error {
	if err := ctx.Err(); err != nil {
		return ports.NewFault(ports.FaultTransport, "send message", err)
	}
	if _, err := n.bot.Send(tgbotapi.NewMessage(chatID, text)); err != nil {
		return ports.NewFault(ports.FaultTransport, "send message", err)
	}
	return nil
}
