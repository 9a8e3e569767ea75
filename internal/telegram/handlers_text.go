package telegram

import (
	"context"
	"errors"
	"strconv"

	"github.com/Vovarama1992/online_assistant/internal/metrics"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"golang.org/x/sync/errgroup"
)

func (app *BotApp) handleText(ctx context.Context, msg *tgbotapi.Message) {
	chatID := msg.Chat.ID
	app.log.Infof("[text] received %q in chat %d", msg.Text, chatID)

	var reply string
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := app.notifier.NotifyTyping(gctx, chatID); err != nil {
			app.log.Warnw("typing indicator failed", "chat_id", chatID, "err", err)
		}
		return nil
	})

	g.Go(func() error {
		var err error
		reply, err = app.sessions.Reply(gctx, strconv.FormatInt(chatID, 10), msg.Text)
		return err
	})

	if err := g.Wait(); err != nil {
		app.fail(ctx, chatID, err)
		return
	}

	if err := app.notifier.Deliver(ctx, chatID, reply); err != nil {
		app.fail(ctx, chatID, err)
		return
	}

	metrics.RepliesTotal.WithLabelValues("delivered").Inc()
	app.log.Infow("[text] reply delivered", "chat_id", chatID, "length", len(reply))
}

func (app *BotApp) fail(ctx context.Context, chatID int64, err error) {
	metrics.RepliesTotal.WithLabelValues("failed").Inc()

	if ctx.Err() != nil && errors.Is(err, context.Canceled) {
		app.log.Infow("[text] abandoned on shutdown", "chat_id", chatID)
		return
	}
	app.faults.Report(ctx, err)
}
