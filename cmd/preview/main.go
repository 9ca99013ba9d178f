package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/arthurcm/sitegen/internal/api"
	"github.com/arthurcm/sitegen/internal/builder"
	"github.com/arthurcm/sitegen/internal/collector"
	"github.com/arthurcm/sitegen/internal/config"
	"github.com/arthurcm/sitegen/internal/logging"
)

func main() {
	cfgFile := ""
	if len(os.Args) > 1 {
		cfgFile = os.Args[1]
	}

	// Load configuration
	cfg, err := config.Load(cfgFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid configuration: %v\n", err)
		os.Exit(1)
	}

	logger := logging.New(cfg.Log.Level, cfg.Log.Format)
	if err := run(cfg, logger); err != nil {
		logger.Error("preview server stopped", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Initialize collector
	gh, err := collector.NewGitHubCollector(collector.Options{
		Token:   cfg.GitHub.Token,
		BaseURL: cfg.GitHub.BaseURL,
		Logger:  logger.With("component", "collector"),
	})
	if err != nil {
		return err
	}
	coll := collector.WithRetry(gh, collector.RetryPolicy{
		MaxAttempts: cfg.GitHub.MaxAttempts,
		Timeout:     cfg.GitHub.Timeout,
		Backoff:     cfg.GitHub.Backoff,
	}, logger)

	// Preview rebuilds are not recorded in the snapshot
	b := builder.New(cfg, builder.Deps{Collector: coll, Logger: logger})
	state := api.NewState(b, builder.RunOptions{SkipRepos: cfg.GitHub.Username == ""})

	if err := state.Reload(ctx); err != nil {
		logger.Warn("initial build failed, serving errors until content is fixed", "error", err)
	}

	// Watch content
	watcher, err := builder.NewWatcher(cfg.Content.Dir, builder.DefaultDebounce, logger)
	if err != nil {
		return fmt.Errorf("failed to watch %s: %w", cfg.Content.Dir, err)
	}
	defer watcher.Close()

	go func() {
		_ = watcher.Run(ctx, func() {
			logger.Info("content changed, rebuilding")
			if err := state.Reload(ctx); err != nil {
				logger.Warn("rebuild failed, keeping previous build", "error", err)
			}
		})
	}()

	// Setup routes
	gin.SetMode(gin.ReleaseMode)
	handler := api.NewHandler(state, b, cfg, logger)
	router := api.SetupRoutes(handler, cfg.OutputDir, logger)

	addr := fmt.Sprintf("%s:%s", cfg.API.Host, cfg.API.Port)
	srv := &http.Server{Addr: addr, Handler: router}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting preview server", "addr", "http://"+addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
