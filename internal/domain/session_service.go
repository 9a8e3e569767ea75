package domain

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Vovarama1992/online_assistant/internal/metrics"
	"github.com/Vovarama1992/online_assistant/internal/ports"
)

// TopicSettings seed every new topic.
type TopicSettings struct {
	SystemMessage string
	MaxTokens     int
}

// SessionManager owns topic lifecycle per conversation identifier. Calls for
// the same identifier are serialized from Obtain until Session.Release.
type SessionManager struct {
	repo      ports.TopicRepo
	completer ports.Completer
	fitter    *HistoryFitter
	archiver  ports.TranscriptArchiver
	settings  TopicSettings
	locks     *keyedMutex
	log       *zap.SugaredLogger

	now   func() time.Time
	newID func() string
}

// NewSessionManager wires the collaborators. fitter and archiver may be nil.
func NewSessionManager(
	repo ports.TopicRepo,
	completer ports.Completer,
	fitter *HistoryFitter,
	archiver ports.TranscriptArchiver,
	settings TopicSettings,
	log *zap.SugaredLogger,
) *SessionManager {
	return &SessionManager{
		repo:      repo,
		completer: completer,
		fitter:    fitter,
		archiver:  archiver,
		settings:  settings,
		locks:     newKeyedMutex(),
		log:       log.Named("sessions"),
		now:       func() time.Time { return time.Now().UTC() },
		newID:     uuid.NewString,
	}
}

type Session struct {
	m              *SessionManager
	conversationID string
	release        func()
}

// Topic is an open topic held by a Session.
type Topic struct {
	s     *Session
	state ports.Topic
}

func (m *SessionManager) Obtain(ctx context.Context, conversationID string) (*Session, error) {
	release, err := m.locks.Lock(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	return &Session{m: m, conversationID: conversationID, release: release}, nil
}

// Release lets the next caller for this conversation in. Safe to call twice.
func (s *Session) Release() {
	s.release()
}

func (s *Session) ConversationID() string {
	return s.conversationID
}

func (s *Session) ContinueOrStartTopic(ctx context.Context) (*Topic, error) {
	m := s.m

	t, err := m.repo.GetOpen(ctx, s.conversationID)
	if err == nil {
		return &Topic{s: s, state: *t}, nil
	}
	if !errors.Is(err, ports.ErrTopicNotFound) {
		return nil, asFault(ports.FaultPersistence, "load topic", err)
	}

	now := m.now()
	seed := ports.Topic{
		ID:             m.newID(),
		ConversationID: s.conversationID,
		SystemMessage:  m.settings.SystemMessage,
		MaxTokens:      m.settings.MaxTokens,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if seed.SystemMessage != "" {
		seed.Messages = []ports.Message{{
			ID:        m.newID(),
			TopicID:   seed.ID,
			Seq:       0,
			Role:      ports.RoleSystem,
			Content:   seed.SystemMessage,
			CreatedAt: now,
		}}
	}

	created, err := m.repo.CreateOpen(ctx, &seed)
	if err != nil {
		return nil, asFault(ports.FaultPersistence, "create topic", err)
	}
	if created {
		metrics.TopicsCreatedTotal.Inc()
		m.log.Infow("topic started", "conversation_id", s.conversationID, "topic_id", seed.ID)
		return &Topic{s: s, state: seed}, nil
	}

	// another process opened one in between
	t, err = m.repo.GetOpen(ctx, s.conversationID)
	if err != nil {
		return nil, asFault(ports.FaultPersistence, "load topic", err)
	}
	return &Topic{s: s, state: *t}, nil
}

// Snapshot returns a copy of the topic state.
func (t *Topic) Snapshot() ports.Topic {
	out := t.state
	out.Messages = append([]ports.Message(nil), t.state.Messages...)
	return out
}

// GetReply extends the topic by one exchange. Nothing is persisted unless the
// provider answered; on any failure the topic is left as it was.
func (t *Topic) GetReply(ctx context.Context, userText string) (string, error) {
	m := t.s.m

	next := 0
	if n := len(t.state.Messages); n > 0 {
		next = t.state.Messages[n-1].Seq + 1
	}

	userMsg := ports.Message{
		ID:        m.newID(),
		TopicID:   t.state.ID,
		Seq:       next,
		Role:      ports.RoleUser,
		Content:   userText,
		CreatedAt: m.now(),
	}

	history := make([]ports.Message, 0, len(t.state.Messages)+2)
	history = append(history, t.state.Messages...)
	history = append(history, userMsg)

	prompt := m.fitter.Fit(history, t.state.MaxTokens)

	start := time.Now()
	reply, err := m.completer.Complete(ctx, prompt, t.state.MaxTokens)
	metrics.CompletionDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		return "", asFault(ports.FaultProvider, "complete", err)
	}

	assistantMsg := ports.Message{
		ID:        m.newID(),
		TopicID:   t.state.ID,
		Seq:       next + 1,
		Role:      ports.RoleAssistant,
		Content:   reply,
		CreatedAt: m.now(),
	}

	if err := m.repo.AppendMessages(ctx, t.state.ID, []ports.Message{userMsg, assistantMsg}); err != nil {
		return "", asFault(ports.FaultPersistence, "save exchange", err)
	}

	t.state.Messages = append(history, assistantMsg)
	t.state.UpdatedAt = assistantMsg.CreatedAt

	m.log.Debugw("exchange saved",
		"conversation_id", t.state.ConversationID,
		"topic_id", t.state.ID,
		"messages", len(t.state.Messages),
		"prompt_messages", len(prompt),
	)
	return reply, nil
}

// Reply handles one inbound text: obtain the session, continue or start its
// topic, get the reply.
func (m *SessionManager) Reply(ctx context.Context, conversationID, text string) (string, error) {
	s, err := m.Obtain(ctx, conversationID)
	if err != nil {
		return "", err
	}
	defer s.Release()

	t, err := s.ContinueOrStartTopic(ctx)
	if err != nil {
		return "", err
	}
	return t.GetReply(ctx, text)
}

type ResetResult struct {
	Topic      ports.Topic `json:"topic"`
	ArchiveURL string      `json:"archive_url,omitempty"`
}

// Reset closes the open topic so the next message starts a new one. The
// transcript stays in the store; it is also archived when an archiver is set.
func (m *SessionManager) Reset(ctx context.Context, conversationID string) (*ResetResult, error) {
	s, err := m.Obtain(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	defer s.Release()

	t, err := m.repo.GetOpen(ctx, conversationID)
	if err != nil {
		if errors.Is(err, ports.ErrTopicNotFound) {
			return nil, err
		}
		return nil, asFault(ports.FaultPersistence, "load topic", err)
	}

	res := &ResetResult{}
	if m.archiver != nil {
		url, err := m.archiver.Archive(ctx, t)
		if err != nil {
			m.log.Warnw("transcript archive failed", "topic_id", t.ID, "error", err)
		} else {
			res.ArchiveURL = url
		}
	}

	closedAt := m.now()
	if err := m.repo.Close(ctx, t.ID, closedAt); err != nil {
		return nil, asFault(ports.FaultPersistence, "close topic", err)
	}
	t.ClosedAt = &closedAt
	t.UpdatedAt = closedAt
	res.Topic = *t

	metrics.TopicsResetTotal.Inc()
	m.log.Infow("topic reset", "conversation_id", conversationID, "topic_id", t.ID, "archive", res.ArchiveURL)
	return res, nil
}

// History returns the open topic without taking the conversation lock.
func (m *SessionManager) History(ctx context.Context, conversationID string) (*ports.Topic, error) {
	t, err := m.repo.GetOpen(ctx, conversationID)
	if err != nil {
		if errors.Is(err, ports.ErrTopicNotFound) {
			return nil, err
		}
		return nil, asFault(ports.FaultPersistence, "load topic", err)
	}
	return t, nil
}

func (m *SessionManager) ListTopics(ctx context.Context, limit int) ([]ports.TopicSummary, error) {
	list, err := m.repo.List(ctx, limit)
	if err != nil {
		return nil, asFault(ports.FaultPersistence, "list topics", err)
	}
	return list, nil
}

// asFault keeps an existing Fault kind and wraps anything else.
func asFault(kind ports.FaultKind, op string, err error) error {
	var f *ports.Fault
	if errors.As(err, &f) {
		return err
	}
	return ports.NewFault(kind, op, err)
}
