// Package app wires configuration, logging, storage, and the bot engine
// into a runnable application.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"goalbot/bot"
	"goalbot/bot/session"
	"goalbot/core/config"
	"goalbot/core/database"
	"goalbot/core/logger"
	"goalbot/storage"
)

// Run initializes the logger, connects to the database, applies
// migrations, and drives the polling loop until ctx is cancelled.
func Run(ctx context.Context, cfg *config.Config) error {
	if cfg == nil {
		return fmt.Errorf("app: nil config provided")
	}

	logger.Init(logger.Options{
		Level:   cfg.Logging.Level,
		Format:  cfg.Logging.Format,
		Profile: cfg.Logging.Profile,
	})

	db, err := database.Connect(cfg.Database)
	if err != nil {
		return fmt.Errorf("app: database initialization failed: %w", err)
	}
	defer db.Close()

	if err := database.RunMigrations(cfg.Database); err != nil {
		return fmt.Errorf("app: migrations failed: %w", err)
	}

	transport, err := bot.NewTelegram(bot.TelegramOptions{
		Token:           cfg.Telegram.Token,
		LongPollTimeout: time.Duration(cfg.Telegram.LongPollTimeoutSeconds) * time.Second,
		BatchLimit:      cfg.Telegram.BatchLimit,
	})
	if err != nil {
		return fmt.Errorf("app: transport initialization failed: %w", err)
	}

	store := storage.NewPostgres(db, logger.Component("storage"))
	resolver := bot.NewResolver(store, logger.Component("bot.identity"))
	dispatcher := bot.NewDispatcher(store, session.NewMemoryStore(), logger.Component("bot.dispatch"))
	poller := bot.NewPoller(transport, resolver, dispatcher, bot.PollerOptions{
		BackoffBase: time.Duration(cfg.Poller.BackoffBaseMS) * time.Millisecond,
		BackoffMax:  time.Duration(cfg.Poller.BackoffMaxMS) * time.Millisecond,
	}, logger.BOT)

	logger.L.Info("bot ready",
		slog.String("component", "app"),
		slog.String("event", "ready"),
		slog.Int("longpoll_timeout_seconds", cfg.Telegram.LongPollTimeoutSeconds),
	)

	runErr := poller.Run(ctx)

	logger.L.Info("shutting down",
		slog.String("component", "app"),
		slog.String("event", "shutdown"),
	)

	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		return runErr
	}
	return nil
}
