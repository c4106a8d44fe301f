package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	discordadapter "github.com/danakj/fizz/internal/adapter/driven/discord"
	githubadapter "github.com/danakj/fizz/internal/adapter/driven/github"
	sqliteadapter "github.com/danakj/fizz/internal/adapter/driven/sqlite"
	"github.com/danakj/fizz/internal/application"
	"github.com/danakj/fizz/internal/config"
)

func main() {
	if err := run(); err != nil {
		slog.Error("fatal error", "error", err)
		os.Exit(1)
	}
}

func run() error {
	// 1. Load configuration (fail fast on missing required env vars).
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	slog.Info("config loaded",
		"db_path", cfg.DBPath,
		"poll_interval", cfg.PollInterval,
		"github_authenticated", cfg.GitHubToken != "",
	)

	// 2. Setup signal-based context (SIGINT, SIGTERM).
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 3. Open database and run migrations.
	db, err := sqliteadapter.NewDB(cfg.DBPath)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := db.Close(); closeErr != nil {
			slog.Error("error closing database", "error", closeErr)
		}
	}()
	if err := sqliteadapter.RunMigrations(db.Writer); err != nil {
		return err
	}
	slog.Info("database ready", "path", cfg.DBPath)

	// 4. Load the guild configuration into the registry.
	registry, err := application.NewRegistry(ctx, sqliteadapter.NewConfigStore(db))
	if err != nil {
		return err
	}

	// 5. Wire adapters.
	github := githubadapter.NewClient(cfg.GitHubToken)

	chat, err := discordadapter.NewClient(cfg.DiscordToken)
	if err != nil {
		return err
	}
	if err := chat.Open(); err != nil {
		return err
	}
	defer func() {
		if closeErr := chat.Close(); closeErr != nil {
			slog.Error("error closing discord session", "error", closeErr)
		}
	}()
	slog.Info("discord session connected")

	// 6. Start the report loop. The command layer reaches the loop through
	// watch.Wake and mutates settings through the registry; both handles are
	// wired here, not through process-wide state.
	notify := application.NewNotifyService(chat)
	watch := application.NewWatchService(registry, github, notify, cfg.PollInterval)

	slog.Info("fizz started")
	watch.Start(ctx)

	slog.Info("shutdown complete")
	return nil
}
