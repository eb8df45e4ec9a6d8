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

	"github.com/kjannette/trahn-analytics/internal/api"
	"github.com/kjannette/trahn-analytics/internal/app"
	"github.com/kjannette/trahn-analytics/internal/cache"
	"github.com/kjannette/trahn-analytics/internal/config"
	"github.com/kjannette/trahn-analytics/internal/logging"
	"github.com/kjannette/trahn-analytics/internal/scheduler"
)

const banner = `
╔══════════════════════════════════════╗
║      TRAHN Market Analytics v0.3     ║
║                                      ║
╚══════════════════════════════════════╝
`

func main() {
	fmt.Print(banner)

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config load error: %v\n", err)
		os.Exit(1)
	}

	warnings, err := cfg.Validate()
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}

	log, err := logging.New(os.Stdout, cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	slog.SetDefault(log)
	for _, w := range warnings {
		log.Warn("[CONFIG] " + w)
	}

	cfg.Print(os.Stdout)

	a, err := app.New(cfg, log)
	if err != nil {
		log.Error("[DB] connection failed", "error", err)
		os.Exit(1)
	}
	defer a.Close()

	// Graceful shutdown context
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 1. API server
	srv := api.NewServer(a.Orchestrator, a.Store, api.Options{
		Port:            cfg.APIPort,
		APIKey:          cfg.APIKey,
		CORSAllowOrigin: cfg.CORSAllowOrigin,
		Gatherer:        a.Registry,
		Logger:          log,
	})
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("[API] server error", "error", err)
			os.Exit(1)
		}
	}()

	// 2. Cache sweeper
	var sweeper *scheduler.Sweeper
	if cfg.CacheSweepIntervalSeconds > 0 {
		sweeper = scheduler.NewSweeper(a.Cache, scheduler.SweeperConfig{
			Interval: cfg.CacheSweepInterval(),
			OnSweep: func(removed int, stats cache.Stats) {
				if removed > 0 {
					log.Debug("[SWEEPER] expired entries dropped", "removed", removed, "size", stats.Size)
				}
			},
		}, log)
		sweeper.Start()
	} else {
		log.Info("[SWEEPER] Skipped - CACHE_SWEEP_INTERVAL_SECONDS is 0")
	}

	log.Info("All services started successfully")

	// Wait for shutdown signal
	<-ctx.Done()
	log.Info("Shutting down gracefully...")

	if sweeper != nil {
		sweeper.Stop()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("[API] shutdown error", "error", err)
	}
	log.Info("[API] server closed")
	log.Info("Shutdown complete")
}
