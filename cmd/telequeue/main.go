package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/danhigham/telequeue/internal/chats"
	"github.com/danhigham/telequeue/internal/config"
	"github.com/danhigham/telequeue/internal/live"
	"github.com/danhigham/telequeue/internal/metrics"
	"github.com/danhigham/telequeue/internal/queue"
	"github.com/danhigham/telequeue/internal/session"
	"github.com/danhigham/telequeue/internal/state"
	"github.com/danhigham/telequeue/internal/storage"
	"github.com/danhigham/telequeue/internal/telegram"
	"github.com/danhigham/telequeue/internal/ui"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// Load config
	cfgDir := config.Dir()
	cfgPath := filepath.Join(cfgDir, "config.yaml")

	cfg, err := config.Load(cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config from %s: %v\n", cfgPath, err)
		fmt.Fprintf(os.Stderr, "\nA minimal config looks like:\n")
		fmt.Fprintf(os.Stderr, "api:\n  base_url: \"http://localhost:8080\"\n")
		return err
	}

	// Setup logging to file
	if err := os.MkdirAll(cfgDir, 0o700); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	logger, err := newLogger(filepath.Join(cfgDir, "telequeue.log"), cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("create logger: %w", err)
	}
	defer logger.Sync()

	db, err := storage.NewBboltStorage(cfg.StatePath)
	if err != nil {
		return err
	}

	// Seed the persisted credentials from the config file on first run.
	if saved, err := db.LoadConfig(); err == nil && saved == nil && cfg.Telegram.APIID != 0 {
		if err := db.SaveConfig(cfg.Telegram); err != nil {
			logger.Warn("failed to seed api config", zap.Error(err))
		}
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	client := telegram.NewRESTClient(cfg, logger)
	if err := client.Health(ctx); err != nil {
		logger.Warn("backend health check failed", zap.String("base_url", cfg.API.BaseURL), zap.Error(err))
	}

	// Create store (drawFunc will be set after app is created)
	store := state.New(nil)

	chatService := chats.NewService(ctx, store, client, cfg.API.PageSize, logger)
	dispatcher := live.NewDispatcher(store, client, logger)
	triage := queue.NewTriage(store, client, cfg.Queue.PollInterval, logger)
	dispatcher.OnIncoming(triage.Trigger)

	manager := session.NewManager(store, client, db, chatService, dispatcher, logger)

	app := ui.NewApp(ctx, store, ui.Services{
		Auth:  manager,
		Chats: chatService,
		Queue: triage,
	})
	store.SetDrawFunc(app.DrawFunc())

	g, gctx := errgroup.WithContext(ctx)
	if cfg.MetricsAddr != "" {
		srv := metrics.NewServer(cfg.MetricsAddr, logger)
		g.Go(func() error { return srv.Run(gctx) })
	}
	if err := triage.Start(gctx); err != nil {
		return err
	}

	// Run TUI (blocks until quit), then stop everything else.
	g.Go(func() error {
		defer cancel()
		return app.Run()
	})

	err = g.Wait()
	triage.Stop()
	return multierr.Combine(err, client.CloseWebSocket(), db.Close())
}

func newLogger(path, level string) (*zap.Logger, error) {
	lvl, err := zap.ParseAtomicLevel(level)
	if err != nil {
		return nil, err
	}
	logCfg := zap.NewDevelopmentConfig()
	logCfg.Level = lvl
	logCfg.OutputPaths = []string{path}
	logCfg.ErrorOutputPaths = []string{path}
	return logCfg.Build()
}
