package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"convox-bot/internal/approval"
	"convox-bot/internal/bot"
	"convox-bot/internal/chat"
	"convox-bot/internal/command"
	"convox-bot/internal/config"
	"convox-bot/internal/ephemeral"
	"convox-bot/internal/limiter"
	"convox-bot/internal/logging"
	"convox-bot/internal/menu"
	"convox-bot/internal/permissions"
	"convox-bot/internal/plugin"
	"convox-bot/internal/plugins"
	"convox-bot/internal/telegram"
)

func runBot(ctx context.Context, configFile string) error {
	// Load configuration
	cfg, err := config.Load(configFile)
	if err != nil {
		slog.Error("failed to load config", "error", err)
		return err
	}

	// Initialize logger
	logger := logging.New(os.Stdout, cfg.Logging.Level, cfg.Logging.JSONFormat)
	slog.SetDefault(logger)

	// Create root context with cancellation
	rootCtx, rootCancel := context.WithCancel(ctx)
	defer rootCancel()

	// WaitGroup for tracking active goroutines
	var wg sync.WaitGroup

	backend, err := permissions.OpenBackend(cfg.Storage.Backend, cfg.Storage.Path, cfg.Storage.SQLitePath)
	if err != nil {
		return fmt.Errorf("open permission storage: %w", err)
	}
	store, err := permissions.NewStore(backend, cfg.Auth.OwnerUIDs, cfg.Auth.AdminUIDs, logger)
	if err != nil {
		_ = backend.Close()
		return fmt.Errorf("load permissions: %w", err)
	}
	defer store.Close()

	transport, err := telegram.NewTransport(telegram.Config{
		BotToken:       cfg.Telegram.BotToken,
		PollingTimeout: cfg.Telegram.PollingTimeout,
	}, logger)
	if err != nil {
		return fmt.Errorf("create telegram transport: %w", err)
	}

	throttle := logging.NewThrottle(logger, cfg.Delivery.LogInterval)
	sender := chat.NewSender(transport, cfg.Delivery.Retries, cfg.Delivery.RetryDelay, throttle)

	registry := command.NewRegistry(cfg.Bot.Prefix)
	dispatcher := command.NewDispatcher(registry, store, limiter.NewCooldowns(), sender, logger)

	scheduler := ephemeral.NewScheduler(transport, cfg.Menu.EphemeralTTL, logger)
	defer scheduler.Stop()

	approvals := approval.NewWorkflow(store, sender, cfg.Bot.Prefix, logger)

	categories := make([]menu.Category, 0, len(cfg.Menu.Categories))
	for _, c := range cfg.Menu.Categories {
		categories = append(categories, menu.Category{Key: c.Key, Name: c.Name, Tag: c.Tag})
	}
	navigator := menu.NewNavigator(registry, store, sender, scheduler, categories, menu.BotInfo{
		Name:    cfg.Bot.Name,
		Version: cfg.Bot.Version,
		Prefix:  cfg.Bot.Prefix,
	}, logger)

	host := &plugin.Host{
		Registry:   registry,
		Dispatcher: dispatcher,
		Store:      store,
		Approvals:  approvals,
		Sender:     sender,
		Transport:  transport,
		Logger:     logger,
		Info: plugin.BotInfo{
			Name:      cfg.Bot.Name,
			Version:   cfg.Bot.Version,
			Prefix:    cfg.Bot.Prefix,
			Storage:   cfg.StorageLabel(),
			StartedAt: time.Now(),
		},
	}
	manager := plugin.NewManager(host, logger)
	if err := manager.Load(rootCtx, plugins.Builtin(), cfg.Plugins.Enabled); err != nil {
		return fmt.Errorf("load plugins: %w", err)
	}

	b := bot.New(bot.Deps{
		Transport:  transport,
		Store:      store,
		Dispatcher: dispatcher,
		Navigator:  navigator,
		Ephemeral:  scheduler,
		Approvals:  approvals,
		Plugins:    manager,
	}, bot.Options{
		Prefix:         cfg.Bot.Prefix,
		AutoMarkRead:   cfg.Bot.AutoMarkRead,
		RequestTimeout: cfg.Bot.RequestTimeout,
	}, logger)

	// Start bot in goroutine
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := b.Run(rootCtx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("bot error", "error", err)
		}
	}()

	logger.Info("bot started",
		"name", cfg.Bot.Name,
		"prefix", cfg.Bot.Prefix,
		"plugins", manager.Names(),
		"storage", cfg.StorageLabel(),
	)

	// Wait for shutdown signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	select {
	case sig := <-sigCh:
		logger.Info("shutdown signal received", "signal", sig)
	case <-ctx.Done():
	}

	// Cancel root context to signal all goroutines
	rootCancel()

	// Wait for graceful shutdown with timeout
	shutdownTimeout := 30 * time.Second
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		logger.Info("graceful shutdown complete")
	case <-time.After(shutdownTimeout):
		logger.Warn("shutdown timeout exceeded, forcing exit")
	}

	cleanupCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	manager.Cleanup(cleanupCtx)

	return nil
}
