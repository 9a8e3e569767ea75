package domain

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/Vovarama1992/online_assistant/internal/ports"
)

type mockRepo struct {
	mu     sync.Mutex
	open   map[string]*ports.Topic
	closed []*ports.Topic

	getErr    error
	createErr error
	appendErr error

	// simulates a concurrent writer opening a topic just before CreateOpen
	raceWith *ports.Topic

	creates int
	appends int
}

func newMockRepo() *mockRepo {
	return &mockRepo{open: map[string]*ports.Topic{}}
}

func clone(t *ports.Topic) *ports.Topic {
	out := *t
	out.Messages = append([]ports.Message(nil), t.Messages...)
	return &out
}

func (r *mockRepo) GetOpen(_ context.Context, conversationID string) (*ports.Topic, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.getErr != nil {
		return nil, r.getErr
	}
	t, ok := r.open[conversationID]
	if !ok {
		return nil, ports.ErrTopicNotFound
	}
	return clone(t), nil
}

func (r *mockRepo) CreateOpen(_ context.Context, t *ports.Topic) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.createErr != nil {
		return false, r.createErr
	}
	if r.raceWith != nil {
		r.open[r.raceWith.ConversationID] = clone(r.raceWith)
		r.raceWith = nil
	}
	if _, ok := r.open[t.ConversationID]; ok {
		return false, nil
	}
	r.creates++
	r.open[t.ConversationID] = clone(t)
	return true, nil
}

func (r *mockRepo) AppendMessages(_ context.Context, topicID string, msgs []ports.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.appendErr != nil {
		return r.appendErr
	}
	for _, t := range r.open {
		if t.ID == topicID {
			r.appends++
			t.Messages = append(t.Messages, msgs...)
			t.UpdatedAt = msgs[len(msgs)-1].CreatedAt
			return nil
		}
	}
	return ports.ErrTopicNotFound
}

func (r *mockRepo) Close(_ context.Context, topicID string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for id, t := range r.open {
		if t.ID == topicID {
			t.ClosedAt = &at
			r.closed = append(r.closed, t)
			delete(r.open, id)
			return nil
		}
	}
	return ports.ErrTopicNotFound
}

func (r *mockRepo) List(_ context.Context, limit int) ([]ports.TopicSummary, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []ports.TopicSummary
	for _, t := range r.open {
		out = append(out, ports.TopicSummary{ID: t.ID, ConversationID: t.ConversationID, MessageCount: len(t.Messages)})
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *mockRepo) topic(conversationID string) *ports.Topic {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.open[conversationID]
}

type mockCompleter struct {
	mu       sync.Mutex
	replies  []string
	err      error
	calls    int
	captured [][]ports.Message
	budgets  []int
}

func (c *mockCompleter) Complete(_ context.Context, history []ports.Message, maxTokens int) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.calls++
	c.captured = append(c.captured, append([]ports.Message(nil), history...))
	c.budgets = append(c.budgets, maxTokens)
	if c.err != nil {
		return "", c.err
	}
	if len(c.replies) == 0 {
		return fmt.Sprintf("reply %d", c.calls), nil
	}
	idx := c.calls - 1
	if idx >= len(c.replies) {
		idx = len(c.replies) - 1
	}
	return c.replies[idx], nil
}

type mockArchiver struct {
	url      string
	err      error
	archived []*ports.Topic
}

func (a *mockArchiver) Archive(_ context.Context, t *ports.Topic) (string, error) {
	a.archived = append(a.archived, clone(t))
	return a.url, a.err
}

type mockS3 struct {
	key         string
	body        []byte
	size        int64
	contentType string
}

func (s *mockS3) PutObject(_ context.Context, key string, r io.Reader, size int64, contentType string) (string, error) {
	body, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	s.key, s.body, s.size, s.contentType = key, body, size, contentType
	return "https://s3.example.com/bucket/" + key, nil
}

// wordCounter makes token budgets easy to reason about in tests.
type wordCounter struct{}

func (wordCounter) Count(text string) int {
	n := 0
	inWord := false
	for _, r := range text {
		if r == ' ' {
			inWord = false
			continue
		}
		if !inWord {
			n++
			inWord = true
		}
	}
	return n
}
