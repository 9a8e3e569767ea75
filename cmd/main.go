package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Vovarama1992/go-utils/logger"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"github.com/Vovarama1992/online_assistant/internal/ai"
	"github.com/Vovarama1992/online_assistant/internal/config"
	"github.com/Vovarama1992/online_assistant/internal/delivery"
	"github.com/Vovarama1992/online_assistant/internal/domain"
	"github.com/Vovarama1992/online_assistant/internal/error_notificator"
	"github.com/Vovarama1992/online_assistant/internal/infra"
	"github.com/Vovarama1992/online_assistant/internal/ports"
	"github.com/Vovarama1992/online_assistant/internal/telegram"
)

const shutdownTimeout = 10 * time.Second

func main() {

	// =========================================================================
	// ENV / LOGGER
	// =========================================================================

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("configuration error: %v", err)
	}

	zcfg := zap.NewProductionConfig()
	zcfg.Level, _ = zap.ParseAtomicLevel(cfg.LogLevel)
	baseLogger, err := zcfg.Build()
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer baseLogger.Sync()

	sugar := baseLogger.Sugar()
	zl := logger.NewZapLogger(sugar)
	if err := tgbotapi.SetLogger(zap.NewStdLog(baseLogger.Named("tgbotapi"))); err != nil {
		sugar.Warnw("failed to redirect telegram library logs", "error", err)
	}

	sigCtx, stopSignals := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stopSignals()
	ctx, cancel := context.WithCancel(sigCtx)
	defer cancel()

	// =========================================================================
	// STORE
	// =========================================================================

	db, err := infra.OpenDB(ctx, cfg.DBDriver, cfg.DatabaseURL)
	if err != nil {
		sugar.Fatalw("failed to open store", "driver", cfg.DBDriver, "error", err)
	}
	defer db.Close()

	if err := infra.Migrate(ctx, db, cfg.DBDriver, sugar); err != nil {
		sugar.Fatalw("migrations failed", "error", err)
	}

	topicRepo := infra.NewTopicRepo(db)

	// =========================================================================
	// TELEGRAM / ERROR NOTIFICATION
	// =========================================================================

	bot, err := tgbotapi.NewBotAPIWithClient(cfg.TelegramToken, tgbotapi.APIEndpoint, telegram.NewHTTPClient(cfg.PollTimeout))
	if err != nil {
		sugar.Fatalw("failed to init telegram bot", "error", error_notificator.Describe(err))
	}

	var errInfra error_notificator.Notificator
	if cfg.AdminChatID != 0 {
		errInfra = error_notificator.NewInfra(bot, cfg.AdminChatID)
	}
	errService := error_notificator.NewService(errInfra, sugar)

	// =========================================================================
	// DOMAIN SERVICES
	// =========================================================================

	openAIClient := ai.NewOpenAIClient(cfg.OpenAIKey, cfg.OpenAIHost, cfg.OpenAIModel, cfg.CompletionTimeout)

	counter, err := domain.NewTiktokenCounter(cfg.OpenAIModel)
	if err != nil {
		sugar.Warnw("tiktoken encoding unavailable, using approximate token counts", "error", err)
		counter = domain.ApproxCounter{}
	}
	fitter := domain.NewHistoryFitter(counter, cfg.ContextTokenLimit)

	var archiver ports.TranscriptArchiver
	if cfg.S3.Enabled() {
		s3Client, err := infra.NewS3Client(ctx, cfg.S3)
		if err != nil {
			sugar.Fatalw("failed to init s3", "error", err)
		}
		archiver = domain.NewArchiveService(s3Client)
	}

	sessions := domain.NewSessionManager(topicRepo, openAIClient, fitter, archiver, domain.TopicSettings{
		SystemMessage: cfg.SystemMessage,
		MaxTokens:     cfg.MaxTokens,
	}, sugar)

	botApp := telegram.NewBotApp(bot, sessions, errService, sugar, telegram.Options{
		PollTimeout:   cfg.PollTimeout,
		MaxConcurrent: cfg.MaxConcurrentUpdates,
	})

	// =========================================================================
	// ADMIN HTTP
	// =========================================================================

	var adminSrv *http.Server
	if cfg.AdminAddr != "" {
		authService := domain.NewAuthService(cfg.AdminPassword, cfg.AuthSecret)
		router := delivery.NewRouter(
			delivery.NewAuthHandler(authService, zl),
			delivery.NewTopicHandler(sessions, zl),
			authService,
		)

		adminSrv = &http.Server{
			Addr:              cfg.AdminAddr,
			Handler:           router,
			ReadHeaderTimeout: 10 * time.Second,
		}

		go func() {
			zl.Log(logger.LogEntry{
				Level:   "info",
				Message: "admin listening at " + cfg.AdminAddr,
				Service: "online_assistant",
			})
			if err := adminSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errService.Report(ctx, ports.NewFault(ports.FaultTransport, "admin server", err))
			}
		}()
	}

	// =========================================================================
	// RUN
	// =========================================================================

	fmt.Printf("Start listening for @%s\n", bot.Self.UserName)

	runDone := make(chan error, 1)
	go func() { runDone <- botApp.Run(ctx) }()

	// a line on stdin, or EOF, stops the bot
	go func() {
		_, _ = bufio.NewReader(os.Stdin).ReadString('\n')
		cancel()
	}()

	<-ctx.Done()
	sugar.Info("shutting down")

	if adminSrv != nil {
		shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), shutdownTimeout)
		if err := adminSrv.Shutdown(shutdownCtx); err != nil {
			sugar.Warnw("admin server shutdown", "error", err)
		}
		cancelShutdown()
	}

	if err := <-runDone; err != nil {
		sugar.Errorw("bot stopped with error", "error", err)
	}
	errService.Wait()

	sugar.Info("stopped")
}
