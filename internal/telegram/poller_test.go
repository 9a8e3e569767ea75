package telegram

import (
	"context"
	"errors"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Vovarama1992/online_assistant/internal/ports"
)

func TestPoller_TracksOffset(t *testing.T) {
	bot := newFakeTransport(
		[]tgbotapi.Update{textUpdate(7, 1, "a"), textUpdate(8, 1, "b")},
		[]tgbotapi.Update{textUpdate(9, 1, "c")},
	)
	p := NewPoller(bot, 0, time.Millisecond, &fakeReporter{}, zap.NewNop().Sugar())

	ctx, cancel := context.WithCancel(context.Background())
	var got []int
	done := make(chan error, 1)
	go func() {
		done <- p.Run(ctx, func(u tgbotapi.Update) { got = append(got, u.UpdateID) })
	}()

	<-bot.drained
	cancel()
	require.ErrorIs(t, <-done, context.Canceled)

	assert.Equal(t, []int{7, 8, 9}, got)
	offsets := bot.seenOffsets()
	require.GreaterOrEqual(t, len(offsets), 3)
	assert.Equal(t, []int{0, 9, 10}, offsets[:3])
}

func TestPoller_ReportsAndRetries(t *testing.T) {
	bot := newFakeTransport([]tgbotapi.Update{textUpdate(1, 1, "after error")})
	bot.pollErrs = []error{&tgbotapi.Error{Code: 502, Message: "Bad Gateway"}}
	faults := &fakeReporter{}
	p := NewPoller(bot, 0, time.Millisecond, faults, zap.NewNop().Sugar())

	ctx, cancel := context.WithCancel(context.Background())
	var got []int
	done := make(chan error, 1)
	go func() {
		done <- p.Run(ctx, func(u tgbotapi.Update) { got = append(got, u.UpdateID) })
	}()

	<-bot.drained
	cancel()
	<-done

	assert.Equal(t, []int{1}, got)
	reported := faults.reported()
	require.Len(t, reported, 1)
	assert.True(t, ports.IsFault(reported[0], ports.FaultTransport))
}

func TestPoller_Backoff(t *testing.T) {
	p := NewPoller(newFakeTransport(), 0, 0, &fakeReporter{}, zap.NewNop().Sugar())

	limited := ports.NewFault(ports.FaultTransport, "get updates", &tgbotapi.Error{
		Code:               429,
		Message:            "Too Many Requests: retry after 7",
		ResponseParameters: tgbotapi.ResponseParameters{RetryAfter: 7},
	})
	assert.Equal(t, 7*time.Second, p.backoff(limited))
	assert.Equal(t, defaultRetryPause, p.backoff(errors.New("connection reset")))
}

func TestPoller_StopsWhileWaiting(t *testing.T) {
	bot := newFakeTransport()
	bot.pollErrs = []error{errors.New("down")}
	p := NewPoller(bot, 0, time.Hour, &fakeReporter{}, zap.NewNop().Sugar())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- p.Run(ctx, func(tgbotapi.Update) {}) }()

	require.Eventually(t, func() bool { return len(bot.seenOffsets()) == 1 }, time.Second, time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("poller kept waiting after cancel")
	}
}
