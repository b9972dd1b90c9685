package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"financial_extractor/pkg/api"
	"financial_extractor/pkg/config"
	"financial_extractor/pkg/core/agent"
	"financial_extractor/pkg/core/document"
	"financial_extractor/pkg/core/normalize"
	"financial_extractor/pkg/core/prompt"
	"financial_extractor/pkg/core/session"
	"financial_extractor/pkg/core/store"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "[FATAL] %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if err := config.InitLogger(cfg.Log); err != nil {
		return err
	}
	defer zap.L().Sync() //nolint:errcheck

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Prompt library: embedded defaults, optionally overridden from disk
	prompts := prompt.Get()
	if cfg.Prompt.Dir != "" {
		if err := prompt.LoadFromDirectory(prompts, cfg.Prompt.Dir); err != nil {
			zap.L().Warn("prompt overrides not loaded, using embedded prompts", zap.String("dir", cfg.Prompt.Dir), zap.Error(err))
		}
	}
	zap.L().Info("prompt library ready", zap.Int("prompts", prompts.Count()))

	agentMgr := agent.NewManager(cfg.LLM)

	opts := session.Options{
		Providers:  agentMgr,
		Documents:  document.NewSet(cfg.Extraction.PdftoppmPath, cfg.Extraction.RenderDPI),
		Prompts:    prompts,
		Normalizer: normalize.New(cfg.Normalize.Lenient),
		ChartRPS:   cfg.Extraction.ChartRPS,
	}

	// Session snapshots are optional
	if cfg.Database.URL != "" {
		pool, err := store.Connect(ctx, cfg.Database.URL)
		if err != nil {
			return err
		}
		defer pool.Close()

		repo := store.NewSnapshotRepo(pool)
		if err := repo.EnsureSchema(ctx); err != nil {
			return err
		}
		opts.Snapshots = repo
		zap.L().Info("session snapshots enabled")
	}

	ctrl := session.New(opts)

	srv := &http.Server{
		Addr: fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: api.NewRouter(api.Deps{
			Controller:     ctrl,
			AgentMgr:       agentMgr,
			MaxUploadBytes: cfg.Upload.MaxBytes,
			AllowedOrigins: cfg.Server.AllowedOrigins,
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Graceful shutdown
	go func() {
		<-ctx.Done()
		zap.L().Info("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			zap.L().Warn("server shutdown failed", zap.Error(err))
		}
	}()

	zap.L().Info("API server starting",
		zap.Int("port", cfg.Server.Port),
		zap.String("active_provider", agentMgr.GetActiveProvider()),
	)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}
