package error_notificator

import "context"

// Notificator forwards an already classified fault line to an operator.
type Notificator interface {
	Notify(ctx context.Context, text string) error
}

// Reporter is what components hand their failures to.
type Reporter interface {
	Report(ctx context.Context, err error)
}
