package telegram

import (
	"net/http"
	"time"
)

// requestMargin covers network latency on top of the long-poll wait.
const requestMargin = 15 * time.Second

// NewHTTPClient returns the client for the bot API. The bot library takes no
// context, so the client timeout is the only deadline on its calls.
func NewHTTPClient(pollTimeout int) *http.Client {
	return &http.Client{
		Timeout: time.Duration(pollTimeout)*time.Second + requestMargin,
	}
}
