package ai

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/Vovarama1992/online_assistant/internal/ports"
)

type capturedRequest struct {
	path   string
	auth   string
	params struct {
		Model     string `json:"model"`
		MaxTokens int    `json:"max_tokens"`
		Messages  []struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"messages"`
	}
}

func completionServer(t *testing.T, status int, body string, got *capturedRequest) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got != nil {
			got.path = r.URL.Path
			got.auth = r.Header.Get("Authorization")
			_ = json.NewDecoder(r.Body).Decode(&got.params)
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

const okBody = `{
	"id": "chatcmpl-1",
	"object": "chat.completion",
	"model": "gpt-3.5-turbo",
	"choices": [{"index": 0, "message": {"role": "assistant", "content": "Hi there!"}, "finish_reason": "stop"}]
}`

func TestComplete_SendsHistoryAndBudget(t *testing.T) {
	var got capturedRequest
	srv := completionServer(t, http.StatusOK, okBody, &got)

	// trailing slash as in the self-hosted proxy examples
	c := NewOpenAIClient("sk-test", srv.URL+"/v1/", "gpt-3.5-turbo", time.Second)

	reply, err := c.Complete(context.Background(), []ports.Message{
		{Role: ports.RoleSystem, Content: "You are a helpful assistant"},
		{Role: ports.RoleUser, Content: "Hello"},
	}, 300)
	require.NoError(t, err)
	require.Equal(t, "Hi there!", reply)

	require.Equal(t, "/v1/chat/completions", got.path)
	require.Equal(t, "Bearer sk-test", got.auth)
	require.Equal(t, "gpt-3.5-turbo", got.params.Model)
	require.Equal(t, 300, got.params.MaxTokens)
	require.Len(t, got.params.Messages, 2)
	require.Equal(t, "system", got.params.Messages[0].Role)
	require.Equal(t, "Hello", got.params.Messages[1].Content)
}

func TestComplete_ReplyIsVerbatim(t *testing.T) {
	body := `{"choices": [{"index": 0, "message": {"role": "assistant", "content": "  *bold*\n\n<b>x</b>  "}}]}`
	srv := completionServer(t, http.StatusOK, body, nil)
	c := NewOpenAIClient("sk-test", srv.URL+"/v1", "gpt-3.5-turbo", 0)

	reply, err := c.Complete(context.Background(), []ports.Message{{Role: ports.RoleUser, Content: "x"}}, 10)
	require.NoError(t, err)
	require.Equal(t, "  *bold*\n\n<b>x</b>  ", reply)
}

func TestComplete_NoChoices(t *testing.T) {
	srv := completionServer(t, http.StatusOK, `{"choices": []}`, nil)
	c := NewOpenAIClient("sk-test", srv.URL+"/v1", "gpt-3.5-turbo", 0)

	_, err := c.Complete(context.Background(), []ports.Message{{Role: ports.RoleUser, Content: "x"}}, 10)
	require.Error(t, err)
	require.True(t, ports.IsFault(err, ports.FaultProvider))
	require.Equal(t, "provider returned an empty answer", Diagnose(err))
}

func TestComplete_ProviderErrors(t *testing.T) {
	cases := []struct {
		name   string
		status int
		body   string
		diag   string
	}{
		{"quota", http.StatusTooManyRequests, `{"error": {"message": "Rate limit reached", "type": "requests", "code": "rate_limit_exceeded"}}`, "provider rate limit or quota exceeded"},
		{"bad key", http.StatusUnauthorized, `{"error": {"message": "Incorrect API key", "type": "invalid_request_error"}}`, "invalid provider API key"},
		{"server", http.StatusBadGateway, `upstream down`, "provider internal error"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			srv := completionServer(t, tc.status, tc.body, nil)
			c := NewOpenAIClient("sk-test", srv.URL+"/v1", "gpt-3.5-turbo", 0)

			_, err := c.Complete(context.Background(), []ports.Message{{Role: ports.RoleUser, Content: "x"}}, 10)
			require.Error(t, err)
			require.True(t, ports.IsFault(err, ports.FaultProvider))
			require.Equal(t, tc.status, StatusCode(err))
			require.Equal(t, tc.diag, Diagnose(err))
		})
	}
}

func TestComplete_HonorsCancellation(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	t.Cleanup(srv.Close)

	c := NewOpenAIClient("sk-test", srv.URL+"/v1", "gpt-3.5-turbo", 50*time.Millisecond)

	_, err := c.Complete(context.Background(), []ports.Message{{Role: ports.RoleUser, Content: "x"}}, 10)
	require.Error(t, err)
	require.True(t, errors.Is(err, context.DeadlineExceeded))
	require.Equal(t, "completion request timed out", Diagnose(err))
}
