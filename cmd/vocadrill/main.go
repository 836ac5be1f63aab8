package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/vocadrill/vocadrill/internal/config"
	"github.com/vocadrill/vocadrill/internal/content"
	"github.com/vocadrill/vocadrill/internal/engine"
	"github.com/vocadrill/vocadrill/internal/storage"
	"github.com/vocadrill/vocadrill/internal/web"
)

func main() {
	cfg := config.MustLoad(os.Args[1:])

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: logLevel(cfg.LogLevel),
	}))

	store, err := storage.Open(cfg.Backend, cfg.DSN, cfg.DataDir, logger)
	if err != nil {
		logger.Error("failed to open store", "backend", cfg.Backend, "error", err)
		os.Exit(1)
	}
	defer store.Close()
	logger.Info("store opened", "backend", cfg.Backend)

	provider := content.NewFileProvider(cfg.LessonsDir, logger)
	eng := engine.New(store, provider, logger)
	srv := web.NewServer(eng, logger, cfg.SessionLimit)

	httpServer := &http.Server{
		Addr:              cfg.Listen,
		Handler:           srv,
		ReadHeaderTimeout: 5 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		logger.Info("listening", "addr", cfg.Listen)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server failed", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown failed", "error", err)
	}
}

func logLevel(name string) slog.Level {
	switch name {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
