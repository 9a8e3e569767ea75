package ai

import (
	"context"
	"errors"
	"net/http"

	openai "github.com/sashabaranov/go-openai"
)

// StatusCode extracts the HTTP status of a provider failure, 0 if there is none.
func StatusCode(err error) int {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.HTTPStatusCode
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return reqErr.HTTPStatusCode
	}
	return 0
}

// Diagnose turns a provider failure into a short operator hint.
func Diagnose(err error) string {
	if errors.Is(err, context.DeadlineExceeded) {
		return "completion request timed out"
	}
	if errors.Is(err, context.Canceled) {
		return "completion request cancelled"
	}
	if errors.Is(err, errNoChoices) {
		return "provider returned an empty answer"
	}

	switch code := StatusCode(err); {
	case code == http.StatusUnauthorized:
		return "invalid provider API key"
	case code == http.StatusNotFound:
		return "model not found"
	case code == http.StatusTooManyRequests:
		return "provider rate limit or quota exceeded"
	case code == http.StatusBadRequest:
		return "malformed completion request"
	case code >= http.StatusInternalServerError:
		return "provider internal error"
	case code != 0:
		return "unexpected provider status " + http.StatusText(code)
	}
	return "unknown provider error"
}
