package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"replyscout/internal/brain"
	"replyscout/internal/config"
	"replyscout/internal/discovery"
	"replyscout/internal/generation"
	"replyscout/internal/knowledge"
	"replyscout/internal/scheduler"
	"replyscout/internal/source"
	"replyscout/internal/storage"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("load config", "error", err)
		os.Exit(1)
	}

	log := newLogger(cfg.LogLevel)

	if dir := filepath.Dir(cfg.DatabasePath); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			log.Error("create data directory", "path", dir, "error", err)
			os.Exit(1)
		}
	}

	store, err := storage.NewSQLite(cfg.DatabasePath)
	if err != nil {
		log.Error("open database", "path", cfg.DatabasePath, "error", err)
		os.Exit(1)
	}
	defer func() { _ = store.Close() }()

	httpClient := &http.Client{Timeout: 30 * time.Second}
	src := source.NewClient(cfg.SourceBaseURL, cfg.SourceAPIKey, cfg.Platform, httpClient)

	var kb knowledge.Searcher
	if cfg.KnowledgeBaseURL != "" {
		kb = knowledge.NewClient(cfg.KnowledgeBaseURL, httpClient)
	}

	// Generation calls can run long; give the LLM client its own timeout.
	engine := brain.NewClient(cfg.LLMBaseURL, cfg.LLMAPIKey, cfg.LLMModel, &http.Client{Timeout: 2 * time.Minute})
	pipe := generation.New(store, engine, kb, src, log)

	orch := discovery.New(store, src, log)
	orch.SetFetchLimit(cfg.FetchLimit)

	sched := scheduler.New(store, orch, log)
	sched.SetDrafter(pipe)
	sched.SetTickInterval(time.Duration(cfg.TickSeconds) * time.Second)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	log.Info("starting scout", "platform", cfg.Platform, "model", cfg.LLMModel)

	sched.Run(ctx)

	log.Info("scout stopped")
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}
