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

	configloader "github.com/foxseedlab/planning-poker/external/config"
	"github.com/foxseedlab/planning-poker/external/discord"
	repositoryimpl "github.com/foxseedlab/planning-poker/external/repository"
	webhookimpl "github.com/foxseedlab/planning-poker/external/webhook"
	"github.com/foxseedlab/planning-poker/internal/config"
	"github.com/foxseedlab/planning-poker/internal/httpapi"
	"github.com/foxseedlab/planning-poker/internal/identity"
	"github.com/foxseedlab/planning-poker/internal/round"
	"github.com/foxseedlab/planning-poker/internal/session"
	"github.com/foxseedlab/planning-poker/internal/watch"
	"github.com/samber/do/v2"
)

const (
	readHeaderTimeout = 10 * time.Second
	shutdownTimeout   = 20 * time.Second
)

// changeListener is implemented by notifiers that hold a long-lived
// connection to the store.
type changeListener interface {
	Run(ctx context.Context) error
}

func main() {
	slog.Info("startup: loading configuration")
	cfg := mustLoadConfig()
	initLogger(cfg)
	slog.Info("startup: configuration loaded", "env", cfg.Env, "watch_mode", cfg.WatchMode)

	slog.Info("startup: building dependency graph")
	injector := setupDI(cfg)

	slog.Info("startup: starting http server")
	runServer(cfg, injector)
}

func mustLoadConfig() *config.Config {
	cfg, err := configloader.Load()
	if err != nil {
		slog.Error("config validation failed", "error", err)
		os.Exit(1)
	}
	return cfg
}

func initLogger(cfg *config.Config) {
	logLevel := slog.LevelInfo
	if cfg.IsDevelopment() {
		logLevel = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel})))
}

func setupDI(cfg *config.Config) do.Injector {
	injector := do.New()

	do.ProvideValue(injector, cfg)
	repositoryimpl.RegisterDI(injector)
	discord.RegisterDI(injector)
	webhookimpl.RegisterDI(injector)
	identity.RegisterDI(injector)
	round.RegisterDI(injector)
	session.RegisterDI(injector)
	httpapi.RegisterDI(injector)

	return injector
}

func runServer(cfg *config.Config, injector do.Injector) {
	api, err := do.Invoke[*httpapi.Server](injector)
	if err != nil {
		slog.Error("failed to resolve http api", "error", err)
		os.Exit(1)
	}
	manager, err := do.Invoke[*session.Manager](injector)
	if err != nil {
		slog.Error("failed to resolve session manager", "error", err)
		os.Exit(1)
	}
	notifier, err := do.Invoke[watch.Notifier](injector)
	if err != nil {
		slog.Error("failed to resolve change notifier", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if listener, ok := notifier.(changeListener); ok {
		go func() {
			slog.Info("startup: listening for store changes")
			if err := listener.Run(ctx); err != nil {
				slog.Error("change listener stopped", "error", err)
			}
		}()
	}

	server := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           api.Router(),
		ReadHeaderTimeout: readHeaderTimeout,
	}
	done := make(chan struct{})
	go func() {
		slog.Info("http server listening", "addr", cfg.HTTPAddr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("http server failed", "error", err)
		}
		close(done)
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-sigCh:
		slog.Info("shutting down")
	case <-done:
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("http server shutdown failed", "error", err)
	}
	cancel()
	manager.Wait()
	slog.Info("shutdown complete")
}
