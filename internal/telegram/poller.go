package telegram

import (
	"context"
	"errors"
	"time"

	"github.com/Vovarama1992/online_assistant/internal/ports"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
)

const defaultRetryPause = 3 * time.Second

// Poller pulls updates with long polling and tracks the confirmed offset.
type Poller struct {
	bot     Transport
	timeout int
	pause   time.Duration
	faults  FaultReporter
	log     *zap.SugaredLogger
	offset  int
}

func NewPoller(bot Transport, timeout int, pause time.Duration, faults FaultReporter, log *zap.SugaredLogger) *Poller {
	if pause <= 0 {
		pause = defaultRetryPause
	}
	return &Poller{
		bot:     bot,
		timeout: timeout,
		pause:   pause,
		faults:  faults,
		log:     log.Named("poller"),
	}
}

// Run feeds every received update to handle until ctx is cancelled.
// Poll failures are reported and retried after a pause.
func (p *Poller) Run(ctx context.Context, handle func(tgbotapi.Update)) error {
	p.log.Infow("polling started", "timeout", p.timeout)

	for {
		if err := ctx.Err(); err != nil {
			p.log.Infow("polling stopped", "offset", p.offset)
			return err
		}

		updates, err := p.poll(ctx)
		if err != nil {
			if ctx.Err() != nil {
				continue
			}
			p.faults.Report(ctx, err)

			wait := p.backoff(err)
			p.log.Warnw("poll failed, waiting", "wait", wait)
			sleep(ctx, wait)
			continue
		}

		for _, upd := range updates {
			handle(upd)
		}
	}
}

type pollResult struct {
	updates []tgbotapi.Update
	err     error
}

func (p *Poller) poll(ctx context.Context) ([]tgbotapi.Update, error) {
	cfg := tgbotapi.NewUpdate(p.offset)
	cfg.Timeout = p.timeout

	// GetUpdates takes no context; an abandoned call leaves the offset
	// unconfirmed, so its updates are delivered again on the next start.
	ch := make(chan pollResult, 1)
	go func() {
		updates, err := p.bot.GetUpdates(cfg)
		ch <- pollResult{updates: updates, err: err}
	}()

	var res pollResult
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res = <-ch:
	}

	if res.err != nil {
		return nil, ports.NewFault(ports.FaultTransport, "get updates", res.err)
	}

	for _, upd := range res.updates {
		if upd.UpdateID >= p.offset {
			p.offset = upd.UpdateID + 1
		}
	}
	return res.updates, nil
}

func (p *Poller) backoff(err error) time.Duration {
	var tgErr *tgbotapi.Error
	if errors.As(err, &tgErr) && tgErr.RetryAfter > 0 {
		return time.Duration(tgErr.RetryAfter) * time.Second
	}
	return p.pause
}

func sleep(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
