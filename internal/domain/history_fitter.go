package domain

import (
	"unicode/utf8"

	tiktoken "github.com/pkoukk/tiktoken-go"

	"github.com/Vovarama1992/online_assistant/internal/ports"
)

// per-message framing the chat format adds on top of content
const messageOverhead = 4

type tiktokenCounter struct {
	enc *tiktoken.Tiktoken
}

// NewTiktokenCounter picks the encoding for model, cl100k_base for models
// tiktoken does not know (self-hosted proxies often rename them).
func NewTiktokenCounter(model string) (ports.TokenCounter, error) {
	enc, err := tiktoken.EncodingForModel(model)
	if err != nil {
		enc, err = tiktoken.GetEncoding("cl100k_base")
		if err != nil {
			return nil, err
		}
	}
	return &tiktokenCounter{enc: enc}, nil
}

func (c *tiktokenCounter) Count(text string) int {
	return len(c.enc.Encode(text, nil, nil))
}

// ApproxCounter is used when no tokenizer could be loaded. ~4 chars per token.
type ApproxCounter struct{}

func (ApproxCounter) Count(text string) int {
	return (utf8.RuneCountInString(text) + 3) / 4
}

// HistoryFitter bounds what is sent to the provider. Leading system messages
// and the newest message are always kept; older turns are dropped first.
type HistoryFitter struct {
	counter ports.TokenCounter
	limit   int
}

// NewHistoryFitter returns a fitter that leaves history untouched when limit is 0.
func NewHistoryFitter(counter ports.TokenCounter, limit int) *HistoryFitter {
	return &HistoryFitter{counter: counter, limit: limit}
}

func (f *HistoryFitter) weight(m ports.Message) int {
	return f.counter.Count(m.Content) + messageOverhead
}

func (f *HistoryFitter) Fit(history []ports.Message, maxTokens int) []ports.Message {
	if f == nil || f.limit <= 0 || len(history) == 0 {
		return history
	}

	head := 0
	budget := f.limit - maxTokens
	for head < len(history) && history[head].Role == ports.RoleSystem {
		budget -= f.weight(history[head])
		head++
	}
	if head == len(history) {
		return history
	}

	start := len(history) - 1
	budget -= f.weight(history[start])
	for i := start - 1; i >= head; i-- {
		w := f.weight(history[i])
		if w > budget {
			break
		}
		budget -= w
		start = i
	}

	if start == head {
		return history
	}

	out := make([]ports.Message, 0, head+len(history)-start)
	out = append(out, history[:head]...)
	return append(out, history[start:]...)
}
