package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"thumbexpert/internal/api"
	"thumbexpert/internal/auth"
	"thumbexpert/internal/billing"
	"thumbexpert/internal/config"
	"thumbexpert/internal/gemini"
	"thumbexpert/internal/generate"
	"thumbexpert/internal/httpclient"
	"thumbexpert/internal/imagestore"
	"thumbexpert/internal/logging"
	"thumbexpert/internal/model"
	"thumbexpert/internal/service"
	"thumbexpert/internal/store/sqlstore"
)

func main() {
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(ctx)
	if err != nil {
		panic(err)
	}

	logger := logging.New(cfg.LogLevel, nil)
	if err := cfg.ValidateServer(); err != nil {
		logger.Error("invalid configuration", "err", err)
		os.Exit(1)
	}

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("server failed", "err", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config, logger *slog.Logger) error {
	httpClient := httpclient.New(httpclient.Options{
		PreferIPv4: cfg.PreferIPv4,
		Timeout:    cfg.HTTPTimeout,
	})

	db, err := sqlstore.Open(ctx, sqlstore.Options{
		Driver:     cfg.Server.DBDriver,
		DSN:        cfg.Server.DatabaseURL,
		MaxHistory: model.MaxHistory,
	})
	if err != nil {
		return err
	}
	defer db.Close()

	gem := gemini.New(gemini.Options{
		APIKey:     cfg.Gemini.APIKey,
		BaseURL:    cfg.Gemini.BaseURL,
		APIVersion: cfg.Gemini.APIVersion,
		TextModel:  cfg.Gemini.TextModel,
		ImageModel: cfg.Gemini.ImageModel,
		HTTPClient: httpClient,
		Logger:     logger,
	})

	genOpts := generate.Options{
		Model:           gem,
		Timeout:         cfg.Gemini.Timeout,
		BulkConcurrency: cfg.Gemini.BulkConcurrency,
		Logger:          logger,
	}
	if cfg.ImageStoreEnabled() {
		sink, err := imagestore.NewS3Sink(ctx, imagestore.Config{
			Region:        cfg.S3.Region,
			Endpoint:      cfg.S3.Endpoint,
			AccessKey:     cfg.S3.AccessKey,
			SecretKey:     cfg.S3.SecretKey,
			Bucket:        cfg.S3.Bucket,
			PublicBaseURL: cfg.S3.PublicBaseURL,
		})
		if err != nil {
			return err
		}
		genOpts.Sink = sink
		logger.Info("storing generated images in s3", "bucket", cfg.S3.Bucket)
	}

	tokens, err := auth.NewTokenService(cfg.Server.JWTSecret, cfg.Server.TokenTTL)
	if err != nil {
		return err
	}

	var revoker auth.Revoker = auth.NewMemoryRevoker()
	if cfg.Server.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.Server.RedisAddr, DB: cfg.Server.RedisDB})
		defer rdb.Close()
		if err := rdb.Ping(ctx).Err(); err != nil {
			return err
		}
		revoker = auth.NewRedisRevoker(rdb)
	}

	validator := service.NewValidator()
	authSvc := service.NewAuthService(service.AuthOptions{
		Users:     db,
		Tokens:    tokens,
		Passwords: auth.NewPasswordService(),
		Revoker:   revoker,
		Validator: validator,
		Logger:    logger,
	})

	var payments *billing.Service
	if cfg.BillingEnabled() {
		payments = billing.New(billing.Options{
			SecretKey:     cfg.Stripe.SecretKey,
			WebhookSecret: cfg.Stripe.WebhookSecret,
			PriceID:       cfg.Stripe.PriceID,
			FrontendURL:   cfg.Server.FrontendURL,
			Upgrader:      authSvc,
			Logger:        logger,
		})
	}

	router := api.NewRouter(api.Options{
		Auth: authSvc,
		Data: service.NewDataService(db, validator),
		Generation: service.NewGenerationService(service.GenerationOptions{
			Users:        db,
			Data:         db,
			Orchestrator: generate.New(genOpts),
			Validator:    validator,
			Logger:       logger,
		}),
		Billing:      payments,
		Tokens:       tokens,
		Revoker:      revoker,
		Providers:    providers(cfg.OAuth),
		FrontendURL:  cfg.Server.FrontendURL,
		MaxBodyBytes: cfg.Server.MaxBodySize,
		Health:       db.Ping,
		Logger:       logger,
	})

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server started", "addr", cfg.Server.Addr, "billing", payments != nil)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// providers enables each social sign-in whose credentials are configured.
func providers(cfg config.OAuthConfig) auth.Providers {
	base := strings.TrimRight(cfg.RedirectBaseURL, "/")
	ps := auth.Providers{}
	if cfg.GoogleClientID != "" {
		ps[auth.ProviderGoogle] = auth.NewGoogleProvider(cfg.GoogleClientID, cfg.GoogleClientSecret,
			base+"/api/auth/oauth/"+auth.ProviderGoogle+"/callback")
	}
	if cfg.FacebookClientID != "" {
		ps[auth.ProviderFacebook] = auth.NewFacebookProvider(cfg.FacebookClientID, cfg.FacebookClientSecret,
			base+"/api/auth/oauth/"+auth.ProviderFacebook+"/callback")
	}
	return ps
}
