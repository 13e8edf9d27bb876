package config

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sethvargo/go-envconfig"
)

const (
	minModelTimeout = 30 * time.Second
	maxModelTimeout = 120 * time.Second
)

type Config struct {
	LogLevel    string        `env:"LOG_LEVEL, default=info"`
	Debug       bool          `env:"DEBUG, default=false"`
	PreferIPv4  bool          `env:"PREFER_IPV4, default=true"`
	HTTPTimeout time.Duration `env:"HTTP_TIMEOUT, default=180s"`

	Gemini   GeminiConfig
	Server   ServerConfig
	OAuth    OAuthConfig
	Stripe   StripeConfig
	S3       S3Config
	Telegram TelegramConfig
	CLI      CLIConfig
}

type GeminiConfig struct {
	APIKey          string        `env:"GEMINI_API_KEY"`
	BaseURL         string        `env:"GEMINI_BASE_URL, default=https://generativelanguage.googleapis.com"`
	APIVersion      string        `env:"GEMINI_API_VERSION, default=v1beta"`
	TextModel       string        `env:"GEMINI_TEXT_MODEL, default=gemini-2.5-flash"`
	ImageModel      string        `env:"GEMINI_IMAGE_MODEL, default=gemini-2.5-flash-image"`
	Timeout         time.Duration `env:"MODEL_TIMEOUT, default=60s"`
	BulkConcurrency int           `env:"BULK_CONCURRENCY, default=4"`
}

type ServerConfig struct {
	Addr        string        `env:"HTTP_ADDR, default=:8080"`
	JWTSecret   string        `env:"JWT_SECRET"`
	TokenTTL    time.Duration `env:"TOKEN_TTL, default=168h"`
	DBDriver    string        `env:"DB_DRIVER, default=sqlite"`
	DatabaseURL string        `env:"DATABASE_URL, default=thumbexpert.db"`
	RedisAddr   string        `env:"REDIS_ADDR"`
	RedisDB     int           `env:"REDIS_DB, default=0"`
	FrontendURL string        `env:"FRONTEND_URL, default=http://localhost:5173"`
	MaxBodySize int64         `env:"MAX_BODY_BYTES, default=26214400"`
}

type OAuthConfig struct {
	RedirectBaseURL      string `env:"OAUTH_REDIRECT_BASE_URL, default=http://localhost:8080"`
	GoogleClientID       string `env:"GOOGLE_CLIENT_ID"`
	GoogleClientSecret   string `env:"GOOGLE_CLIENT_SECRET"`
	FacebookClientID     string `env:"FACEBOOK_CLIENT_ID"`
	FacebookClientSecret string `env:"FACEBOOK_CLIENT_SECRET"`
}

type StripeConfig struct {
	SecretKey     string `env:"STRIPE_SECRET_KEY"`
	WebhookSecret string `env:"STRIPE_WEBHOOK_SECRET"`
	PriceID       string `env:"STRIPE_PRICE_ID"`
}

type S3Config struct {
	Bucket        string `env:"S3_BUCKET"`
	Region        string `env:"S3_REGION, default=us-east-1"`
	Endpoint      string `env:"S3_ENDPOINT"`
	AccessKey     string `env:"S3_ACCESS_KEY"`
	SecretKey     string `env:"S3_SECRET_KEY"`
	PublicBaseURL string `env:"S3_PUBLIC_BASE_URL"`
}

type TelegramConfig struct {
	Token              string        `env:"TELEGRAM_BOT_TOKEN"`
	APIBaseURL         string        `env:"API_BASE_URL, default=http://localhost:8080"`
	MediaGroupDebounce time.Duration `env:"MEDIA_GROUP_DEBOUNCE, default=1200ms"`
	MaxConcurrent      int           `env:"MAX_CONCURRENT, default=4"`
	RequestTimeout     time.Duration `env:"REQUEST_TIMEOUT, default=5m"`
}

type CLIConfig struct {
	APIBaseURL string `env:"API_BASE_URL, default=http://localhost:8080"`
	TokenFile  string `env:"THUMBCTL_TOKEN_FILE"`
}

// Load reads the environment. Callers load .env first with godotenv.
func Load(ctx context.Context) (Config, error) {
	return load(ctx, envconfig.OsLookuper())
}

func load(ctx context.Context, lookuper envconfig.Lookuper) (Config, error) {
	var cfg Config
	if err := envconfig.ProcessWith(ctx, &envconfig.Config{Target: &cfg, Lookuper: lookuper}); err != nil {
		return Config{}, fmt.Errorf("config: %w", err)
	}

	cfg.LogLevel = strings.ToLower(strings.TrimSpace(cfg.LogLevel))
	cfg.Gemini.Timeout = min(max(cfg.Gemini.Timeout, minModelTimeout), maxModelTimeout)
	if cfg.Gemini.BulkConcurrency < 1 {
		cfg.Gemini.BulkConcurrency = 1
	}
	if cfg.Telegram.MaxConcurrent < 1 {
		cfg.Telegram.MaxConcurrent = 1
	}
	if cfg.Telegram.RequestTimeout <= 0 {
		cfg.Telegram.RequestTimeout = 5 * time.Minute
	}
	if cfg.HTTPTimeout <= 0 {
		cfg.HTTPTimeout = 180 * time.Second
	}
	if cfg.Server.TokenTTL <= 0 {
		cfg.Server.TokenTTL = 168 * time.Hour
	}
	return cfg, nil
}

// ValidateServer checks what cmd/server cannot start without.
func (c Config) ValidateServer() error {
	switch {
	case c.Gemini.APIKey == "":
		return errors.New("GEMINI_API_KEY is required")
	case len(c.Server.JWTSecret) < 16:
		return errors.New("JWT_SECRET must be at least 16 characters")
	}
	return nil
}

func (c Config) ValidateBot() error {
	if c.Telegram.Token == "" {
		return errors.New("TELEGRAM_BOT_TOKEN is required")
	}
	return nil
}

func (c Config) BillingEnabled() bool {
	return c.Stripe.SecretKey != "" && c.Stripe.PriceID != ""
}

func (c Config) ImageStoreEnabled() bool {
	return c.S3.Bucket != ""
}
