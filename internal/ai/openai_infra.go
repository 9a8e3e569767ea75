package ai

import (
	"context"
	"errors"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/Vovarama1992/online_assistant/internal/ports"
)

var errNoChoices = errors.New("completion returned no choices")

type OpenAIClient struct {
	client  *openai.Client
	model   string
	timeout time.Duration
}

// NewOpenAIClient builds a client for the OpenAI API or any compatible host.
// An empty host keeps the library default.
func NewOpenAIClient(apiKey, host, model string, timeout time.Duration) *OpenAIClient {
	cfg := openai.DefaultConfig(apiKey)
	if host != "" {
		cfg.BaseURL = strings.TrimRight(host, "/")
	}
	return &OpenAIClient{
		client:  openai.NewClientWithConfig(cfg),
		model:   model,
		timeout: timeout,
	}
}

// Complete sends history as-is and returns the first choice verbatim.
func (c *OpenAIClient) Complete(ctx context.Context, history []ports.Message, maxTokens int) (string, error) {
	messages := make([]openai.ChatCompletionMessage, 0, len(history))
	for _, m := range history {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    m.Role,
			Content: m.Content,
		})
	}

	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:     c.model,
		Messages:  messages,
		MaxTokens: maxTokens,
	})
	if err != nil {
		return "", ports.NewFault(ports.FaultProvider, "chat completion", err)
	}
	if len(resp.Choices) == 0 {
		return "", ports.NewFault(ports.FaultProvider, "chat completion", errNoChoices)
	}
	return resp.Choices[0].Message.Content, nil
}
