package telegram

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/Vovarama1992/online_assistant/internal/metrics"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

type Options struct {
	PollTimeout   int
	MaxConcurrent int
	RetryPause    time.Duration
}

// BotApp receives updates and answers text messages. Messages of one chat are
// queued and handled in order by a single worker; only that worker holds a slot.
type BotApp struct {
	poller   *Poller
	notifier *Notifier
	sessions Replier
	faults   FaultReporter
	log      *zap.SugaredLogger
	workers  *errgroup.Group

	mu     sync.Mutex
	queues map[int64][]*tgbotapi.Message
}

func NewBotApp(bot Transport, sessions Replier, faults FaultReporter, log *zap.SugaredLogger, opts Options) *BotApp {
	workers := &errgroup.Group{}
	if opts.MaxConcurrent > 0 {
		workers.SetLimit(opts.MaxConcurrent)
	}

	return &BotApp{
		poller:   NewPoller(bot, opts.PollTimeout, opts.RetryPause, faults, log),
		notifier: NewNotifier(bot),
		sessions: sessions,
		faults:   faults,
		log:      log.Named("bot"),
		workers:  workers,
		queues:   make(map[int64][]*tgbotapi.Message),
	}
}

// Run polls until ctx is cancelled, then waits for in-flight handlers.
func (app *BotApp) Run(ctx context.Context) error {
	err := app.poller.Run(ctx, func(upd tgbotapi.Update) {
		app.dispatchUpdate(ctx, upd)
	})

	app.log.Info("waiting for in-flight handlers")
	_ = app.workers.Wait()

	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func (app *BotApp) dispatchUpdate(ctx context.Context, upd tgbotapi.Update) {
	msg := textMessage(upd)
	if msg == nil {
		metrics.UpdatesTotal.WithLabelValues("ignored").Inc()
		app.log.Debugw("update ignored", "update_id", upd.UpdateID)
		return
	}
	metrics.UpdatesTotal.WithLabelValues("accepted").Inc()
	app.enqueue(ctx, msg)
}

// enqueue appends msg to its chat queue, starting a worker when the chat has none.
func (app *BotApp) enqueue(ctx context.Context, msg *tgbotapi.Message) {
	chatID := msg.Chat.ID

	app.mu.Lock()
	if pending, busy := app.queues[chatID]; busy {
		app.queues[chatID] = append(pending, msg)
		app.mu.Unlock()
		return
	}
	app.queues[chatID] = nil
	app.mu.Unlock()

	// blocks while MaxConcurrent chats are being served
	app.workers.Go(func() error {
		app.drain(ctx, chatID, msg)
		return nil
	})
}

func (app *BotApp) drain(ctx context.Context, chatID int64, msg *tgbotapi.Message) {
	for msg != nil {
		if ctx.Err() != nil {
			app.dropQueue(chatID, 1)
			return
		}
		app.handleText(ctx, msg)
		msg = app.next(chatID)
	}
}

// next pops the chat's next message, releasing the chat when its queue is empty.
func (app *BotApp) next(chatID int64) *tgbotapi.Message {
	app.mu.Lock()
	defer app.mu.Unlock()

	pending := app.queues[chatID]
	if len(pending) == 0 {
		delete(app.queues, chatID)
		return nil
	}
	app.queues[chatID] = pending[1:]
	return pending[0]
}

func (app *BotApp) dropQueue(chatID int64, current int) {
	app.mu.Lock()
	dropped := len(app.queues[chatID]) + current
	delete(app.queues, chatID)
	app.mu.Unlock()

	app.log.Infow("queued messages dropped on shutdown", "chat_id", chatID, "count", dropped)
}

func textMessage(upd tgbotapi.Update) *tgbotapi.Message {
	if upd.Message == nil || upd.Message.Chat == nil || upd.Message.Text == "" {
		return nil
	}
	return upd.Message
}
