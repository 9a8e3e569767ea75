package error_notificator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/Vovarama1992/online_assistant/internal/ai"
	"github.com/Vovarama1992/online_assistant/internal/metrics"
	"github.com/Vovarama1992/online_assistant/internal/ports"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
)

const forwardTimeout = 10 * time.Second

type Service struct {
	infra Notificator
	log   *zap.SugaredLogger
	wg    sync.WaitGroup
}

// NewService builds the reporter. infra may be nil, then faults are only logged.
func NewService(infra Notificator, log *zap.SugaredLogger) *Service {
	return &Service{infra: infra, log: log.Named("faults")}
}

// Report logs the fault, counts it and forwards it to the operator chat.
// It never panics and never blocks on the forwarding call.
func (s *Service) Report(ctx context.Context, err error) {
	if err == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			s.log.Errorw("fault reporter panicked", "panic", r, "err", fmt.Sprint(err))
		}
	}()

	kind := Kind(err)
	line := Describe(err)

	metrics.FaultsTotal.WithLabelValues(string(kind)).Inc()
	s.log.Errorw(line, "kind", kind)

	if s.infra == nil {
		return
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer func() {
			if r := recover(); r != nil {
				s.log.Errorw("fault forwarder panicked", "panic", r)
			}
		}()

		fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), forwardTimeout)
		defer cancel()

		if ferr := s.infra.Notify(fctx, line); ferr != nil {
			s.log.Warnw("fault forwarding failed", "err", ferr)
		}
	}()
}

// Wait blocks until pending forwards are done.
func (s *Service) Wait() {
	s.wg.Wait()
}

// Kind resolves the fault kind, treating bare bot API errors as transport faults.
func Kind(err error) ports.FaultKind {
	if kind := ports.KindOf(err); kind != ports.FaultUnknown {
		return kind
	}
	var tgErr *tgbotapi.Error
	if errors.As(err, &tgErr) {
		return ports.FaultTransport
	}
	if ai.StatusCode(err) != 0 {
		return ports.FaultProvider
	}
	return ports.FaultUnknown
}

// Describe renders the operator-facing line for a fault.
func Describe(err error) string {
	var tgErr *tgbotapi.Error
	if errors.As(err, &tgErr) {
		return fmt.Sprintf("Telegram API Error:\n[%d]\n%s", tgErr.Code, tgErr.Message)
	}

	if Kind(err) == ports.FaultProvider {
		return fmt.Sprintf("Completion API Error:\n[%d]\n%s\n%v", ai.StatusCode(err), ai.Diagnose(err), err)
	}

	return err.Error()
}
