package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/MikeSquared-Agency/chatpopup/internal/api"
	"github.com/MikeSquared-Agency/chatpopup/internal/config"
	"github.com/MikeSquared-Agency/chatpopup/internal/hermes"
	"github.com/MikeSquared-Agency/chatpopup/internal/store"
)

func main() {
	envErr := godotenv.Load()
	cfg := config.Load()
	slog.SetDefault(config.NewLogger(os.Stdout, cfg.LogLevel))
	if envErr != nil && !os.IsNotExist(envErr) {
		slog.Warn("failed to load .env file", "error", envErr)
	}

	slog.Info("chatd starting", "port", cfg.Port)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Storage
	var messages store.MessageStore
	if cfg.DatabaseURL != "" {
		db, err := store.New(ctx, cfg.DatabaseURL)
		if err != nil {
			slog.Error("failed to connect to database", "error", err)
			os.Exit(1)
		}
		defer db.Close()
		if err := db.Migrate(ctx); err != nil {
			slog.Error("failed to migrate database", "error", err)
			os.Exit(1)
		}
		messages = db
		slog.Info("database connected")
	} else {
		messages = store.NewMemoryStore()
		slog.Warn("DATABASE_URL not set, keeping messages in memory")
	}

	// NATS events (optional)
	var events api.Publisher
	if cfg.NatsURL != "" {
		hermesClient, err := hermes.NewClient(ctx, cfg.NatsURL, cfg.NatsToken, slog.Default())
		if err != nil {
			slog.Error("failed to connect to NATS", "error", err)
			os.Exit(1)
		}
		defer hermesClient.Close()
		events = hermesClient
		slog.Info("NATS connected", "url", cfg.NatsURL)
	}

	srv := api.NewServer(cfg.Port, messages, events, slog.Default())
	go func() {
		if err := srv.Start(); err != nil {
			slog.Error("HTTP server error", "error", err)
			cancel()
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-sigCh:
	case <-ctx.Done():
	}
	slog.Info("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP server shutdown error", "error", err)
	}
	slog.Info("chatd stopped")
}
