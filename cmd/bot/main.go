package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"thumbexpert/internal/apiclient"
	"thumbexpert/internal/config"
	"thumbexpert/internal/handlers"
	"thumbexpert/internal/httpclient"
	"thumbexpert/internal/logging"
	"thumbexpert/internal/mediagroup"
	"thumbexpert/internal/telegram"
	"thumbexpert/internal/workflow"
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
	if err := cfg.ValidateBot(); err != nil {
		logger.Error("invalid configuration", "err", err)
		os.Exit(1)
	}

	httpClient := httpclient.New(httpclient.Options{
		PreferIPv4: cfg.PreferIPv4,
		Timeout:    cfg.HTTPTimeout,
		UserAgent:  "thumbexpert-bot",
	})

	tg, err := telegram.New(telegram.Options{
		Token:      cfg.Telegram.Token,
		HTTPClient: httpClient,
		Logger:     logger,
		Debug:      cfg.Debug,
	})
	if err != nil {
		logger.Error("telegram init failed", "err", err)
		os.Exit(1)
	}

	backend, err := apiclient.New(apiclient.Options{
		BaseURL:    cfg.Telegram.APIBaseURL,
		HTTPClient: httpClient,
		Logger:     logger,
	})
	if err != nil {
		logger.Error("api client init failed", "err", err)
		os.Exit(1)
	}

	handler := handlers.New(handlers.Options{
		Telegram: tg,
		Backend:  backend,
		Logger:   logger,
	})

	sem := make(chan struct{}, cfg.Telegram.MaxConcurrent)
	onGroupFlush := func(group mediagroup.Group) {
		select {
		case sem <- struct{}{}:
		case <-ctx.Done():
			return
		}

		go func() {
			defer func() { <-sem }()

			reqCtx, cancel := context.WithTimeout(ctx, cfg.Telegram.RequestTimeout)
			defer cancel()

			handler.HandleMediaGroup(reqCtx, group)
		}()
	}

	aggregator := mediagroup.New(mediagroup.Options{
		Debounce: cfg.Telegram.MediaGroupDebounce,
		MaxItems: workflow.MaxImages,
		OnFlush:  onGroupFlush,
	})
	defer aggregator.Close()
	handler.SetMediaGroupAggregator(aggregator)

	logger.Info("bot started", "username", tg.Username(), "api", cfg.Telegram.APIBaseURL)

	updates := tg.Updates(telegram.UpdatesOptions{
		Timeout: 30 * time.Second,
	})
	defer tg.StopUpdates()

	for {
		select {
		case <-ctx.Done():
			logger.Info("shutting down")
			return
		case update, ok := <-updates:
			if !ok {
				logger.Info("updates channel closed")
				return
			}

			select {
			case sem <- struct{}{}:
			case <-ctx.Done():
				return
			}

			go func(update telegram.Update) {
				defer func() { <-sem }()

				reqCtx, cancel := context.WithTimeout(ctx, cfg.Telegram.RequestTimeout)
				defer cancel()

				if err := handler.HandleUpdate(reqCtx, update); err != nil && !errors.Is(err, context.Canceled) {
					logger.Error("handle update failed", "err", err)
				}
			}(update)
		}
	}
}
