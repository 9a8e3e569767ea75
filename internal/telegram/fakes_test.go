package telegram

import (
	"context"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/Vovarama1992/online_assistant/internal/ports"
)

type fakeTransport struct {
	mu       sync.Mutex
	batches  [][]tgbotapi.Update
	pollErrs []error
	offsets  []int
	requests []tgbotapi.Chattable
	sent     []tgbotapi.MessageConfig
	sendErr  error
	reqErr   error
	drained  chan struct{}
	once     sync.Once
}

func newFakeTransport(batches ...[]tgbotapi.Update) *fakeTransport {
	return &fakeTransport{batches: batches, drained: make(chan struct{})}
}

func (f *fakeTransport) GetUpdates(cfg tgbotapi.UpdateConfig) ([]tgbotapi.Update, error) {
	f.mu.Lock()
	f.offsets = append(f.offsets, cfg.Offset)

	if len(f.pollErrs) > 0 {
		err := f.pollErrs[0]
		f.pollErrs = f.pollErrs[1:]
		f.mu.Unlock()
		return nil, err
	}
	if len(f.batches) > 0 {
		batch := f.batches[0]
		f.batches = f.batches[1:]
		f.mu.Unlock()
		return batch, nil
	}
	f.mu.Unlock()

	f.once.Do(func() { close(f.drained) })
	time.Sleep(5 * time.Millisecond)
	return nil, nil
}

func (f *fakeTransport) Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, c)
	if f.reqErr != nil {
		return nil, f.reqErr
	}
	return &tgbotapi.APIResponse{Ok: true}, nil
}

func (f *fakeTransport) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if msg, ok := c.(tgbotapi.MessageConfig); ok {
		f.sent = append(f.sent, msg)
	}
	return tgbotapi.Message{}, f.sendErr
}

func (f *fakeTransport) sentMessages() []tgbotapi.MessageConfig {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]tgbotapi.MessageConfig(nil), f.sent...)
}

func (f *fakeTransport) requestCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.requests)
}

func (f *fakeTransport) seenOffsets() []int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]int(nil), f.offsets...)
}

type replyCall struct {
	conversationID string
	text           string
}

type fakeReplier struct {
	mu     sync.Mutex
	calls  []replyCall
	answer func(text string) (string, error)
}

func (r *fakeReplier) Reply(_ context.Context, conversationID, text string) (string, error) {
	r.mu.Lock()
	r.calls = append(r.calls, replyCall{conversationID: conversationID, text: text})
	r.mu.Unlock()
	return r.answer(text)
}

func (r *fakeReplier) callCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.calls)
}

type fakeReporter struct {
	mu   sync.Mutex
	errs []error
}

func (r *fakeReporter) Report(_ context.Context, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.errs = append(r.errs, err)
}

func (r *fakeReporter) reported() []error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]error(nil), r.errs...)
}

type scriptedCompleter struct {
	mu       sync.Mutex
	replies  []string
	captured [][]ports.Message
}

func (c *scriptedCompleter) Complete(_ context.Context, history []ports.Message, _ int) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.captured = append(c.captured, append([]ports.Message(nil), history...))
	reply := c.replies[0]
	c.replies = c.replies[1:]
	return reply, nil
}

func textUpdate(id int, chatID int64, text string) tgbotapi.Update {
	return tgbotapi.Update{
		UpdateID: id,
		Message: &tgbotapi.Message{
			MessageID: id,
			Chat:      &tgbotapi.Chat{ID: chatID, Type: "private"},
			Text:      text,
		},
	}
}
