package ports

import (
	"context"
	"time"
)

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is one role-tagged entry of a topic history
type Message struct {
	ID        string    `json:"id"`
	TopicID   string    `json:"topic_id"`
	Seq       int       `json:"seq"`
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// Topic is accumulated history plus completion settings for one chat
type Topic struct {
	ID             string     `json:"id"`
	ConversationID string     `json:"conversation_id"`
	SystemMessage  string     `json:"system_message"`
	MaxTokens      int        `json:"max_tokens"`
	Messages       []Message  `json:"messages"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
	ClosedAt       *time.Time `json:"closed_at,omitempty"`
}

// TopicSummary is a topic row without its history, for listings
type TopicSummary struct {
	ID             string     `json:"id"`
	ConversationID string     `json:"conversation_id"`
	MessageCount   int        `json:"message_count"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
	ClosedAt       *time.Time `json:"closed_at,omitempty"`
}

// TopicRepo is relational storage of topics and their messages
type TopicRepo interface {
	// GetOpen returns the open topic with its messages, or ErrTopicNotFound
	GetOpen(ctx context.Context, conversationID string) (*Topic, error)

	// CreateOpen inserts the topic with its seed messages unless an open topic
	// already exists for the conversation; created reports which case happened.
	CreateOpen(ctx context.Context, t *Topic) (created bool, err error)

	// AppendMessages stores messages after the current tail in one transaction
	AppendMessages(ctx context.Context, topicID string, msgs []Message) error

	Close(ctx context.Context, topicID string, at time.Time) error
	List(ctx context.Context, limit int) ([]TopicSummary, error)
}
