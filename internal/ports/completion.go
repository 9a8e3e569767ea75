package ports

import "context"

// Completer is the external chat-completion provider.
type Completer interface {
	Complete(ctx context.Context, history []Message, maxTokens int) (string, error)
}

// TokenCounter estimates the prompt weight of a text.
type TokenCounter interface {
	Count(text string) int
}
