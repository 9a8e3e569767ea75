package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
	"go.uber.org/zap/zapcore"

	"github.com/Vovarama1992/online_assistant/internal/ports"
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Config holds all environment backed settings. It is built once in main and
// passed by value afterwards.
type Config struct {
	TelegramToken string `env:"TG_BOT_TOKEN_ONLINE_ASSISTENT"`
	OpenAIKey     string `env:"OPENAI_API_KEY"`
	OpenAIHost    string `env:"OPENAI_API_HOST"`
	OpenAIModel   string `env:"OPENAI_MODEL" envDefault:"gpt-3.5-turbo"`

	SystemMessage     string        `env:"SYSTEM_MESSAGE" envDefault:"You are ChatGPT helpful assistant worked inside Telegram."`
	MaxTokens         int           `env:"MAX_TOKENS" envDefault:"300"`
	ContextTokenLimit int           `env:"CONTEXT_TOKEN_LIMIT" envDefault:"4096"`
	CompletionTimeout time.Duration `env:"COMPLETION_TIMEOUT" envDefault:"120s"`

	DBDriver    string `env:"DB_DRIVER" envDefault:"sqlite"`
	DatabaseURL string `env:"DATABASE_URL" envDefault:"dialogs.db"`

	PollTimeout          int   `env:"POLL_TIMEOUT" envDefault:"30"`
	MaxConcurrentUpdates int   `env:"MAX_CONCURRENT_UPDATES" envDefault:"16"`
	AdminChatID          int64 `env:"ADMIN_CHAT_ID"`

	AdminAddr     string `env:"ADMIN_ADDR"`
	AdminPassword string `env:"ADMIN_PASSWORD"`
	AuthSecret    string `env:"AUTH_SECRET"`

	S3 S3Config

	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`
}

type S3Config struct {
	Endpoint  string `env:"S3_ENDPOINT"`
	AccessKey string `env:"S3_ACCESS_KEY"`
	SecretKey string `env:"S3_SECRET_KEY"`
	Bucket    string `env:"S3_BUCKET"`
	Region    string `env:"S3_REGION"`
}

func (c S3Config) Enabled() bool {
	return c.Endpoint != "" && c.Bucket != ""
}

// Load reads an optional .env file into the process environment and parses it.
// Every failure is a configuration fault.
func Load() (Config, error) {
	_ = godotenv.Load()
	return Parse(env.Options{})
}

// Parse is Load without the .env step; tests pass Environment directly.
func Parse(opts env.Options) (Config, error) {
	var cfg Config
	if err := env.ParseWithOptions(&cfg, opts); err != nil {
		return Config{}, ports.NewFault(ports.FaultConfiguration, "parse env", err)
	}
	if err := cfg.validate(); err != nil {
		return Config{}, ports.NewFault(ports.FaultConfiguration, "validate", err)
	}
	return cfg, nil
}

func (c *Config) validate() error {
	var errs []error

	c.TelegramToken = strings.TrimSpace(c.TelegramToken)
	c.OpenAIKey = strings.TrimSpace(c.OpenAIKey)

	if c.TelegramToken == "" {
		errs = append(errs, errors.New("TG_BOT_TOKEN_ONLINE_ASSISTENT is not set"))
	}
	if c.OpenAIKey == "" {
		errs = append(errs, errors.New("OPENAI_API_KEY is not set"))
	}
	if c.OpenAIHost != "" {
		if _, err := url.ParseRequestURI(c.OpenAIHost); err != nil {
			errs = append(errs, fmt.Errorf("OPENAI_API_HOST: %w", err))
		}
	}
	if c.MaxTokens <= 0 {
		errs = append(errs, fmt.Errorf("MAX_TOKENS must be positive, got %d", c.MaxTokens))
	}
	if c.ContextTokenLimit < 0 {
		errs = append(errs, fmt.Errorf("CONTEXT_TOKEN_LIMIT must not be negative, got %d", c.ContextTokenLimit))
	}
	if c.ContextTokenLimit > 0 && c.ContextTokenLimit <= c.MaxTokens {
		errs = append(errs, fmt.Errorf("CONTEXT_TOKEN_LIMIT (%d) must exceed MAX_TOKENS (%d)", c.ContextTokenLimit, c.MaxTokens))
	}
	switch c.DBDriver {
	case DriverSQLite, DriverPostgres:
	default:
		errs = append(errs, fmt.Errorf("DB_DRIVER must be %q or %q, got %q", DriverSQLite, DriverPostgres, c.DBDriver))
	}
	if c.PollTimeout < 0 {
		errs = append(errs, fmt.Errorf("POLL_TIMEOUT must not be negative, got %d", c.PollTimeout))
	}
	if c.MaxConcurrentUpdates <= 0 {
		errs = append(errs, fmt.Errorf("MAX_CONCURRENT_UPDATES must be positive, got %d", c.MaxConcurrentUpdates))
	}
	if c.AdminAddr != "" && (c.AdminPassword == "" || c.AuthSecret == "") {
		errs = append(errs, errors.New("ADMIN_ADDR requires ADMIN_PASSWORD and AUTH_SECRET"))
	}
	if _, err := zapcore.ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, fmt.Errorf("LOG_LEVEL: %w", err))
	}

	return errors.Join(errs...)
}
