package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/kjannette/trahn-analytics/internal/analytics"
	"github.com/kjannette/trahn-analytics/internal/cache"
	"github.com/kjannette/trahn-analytics/internal/config"
	"github.com/kjannette/trahn-analytics/internal/db"
	"github.com/kjannette/trahn-analytics/internal/notifications"
	"github.com/kjannette/trahn-analytics/internal/repository"
	"github.com/kjannette/trahn-analytics/internal/retry"
)

// Store is a rollup store that can also be health-checked.
type Store interface {
	analytics.Store
	Ping(ctx context.Context) error
}

// App is the wired analytics engine shared by the server and the CLI.
type App struct {
	Orchestrator *analytics.Orchestrator
	Store        Store
	Cache        *cache.Cache
	Registry     *prometheus.Registry
	Alerter      *notifications.Alerter

	closers []func()
}

// OpenStore connects to the configured rollup database.
func OpenStore(cfg *config.Config, log *slog.Logger) (Store, func(), error) {
	opts := repository.Options{
		Timeout: cfg.QueryTimeout(),
		Retry: retry.Config{
			MaxAttempts: cfg.QueryRetryAttempts,
			BaseDelay:   retry.Default.BaseDelay,
			MaxDelay:    retry.Default.MaxDelay,
		},
		Logger: log,
	}

	switch cfg.DBDriver {
	case "sqlite":
		log.Info("[DB] opening sqlite", "path", cfg.SQLitePath)
		d, err := db.OpenSQLite(cfg.SQLitePath)
		if err != nil {
			return nil, nil, fmt.Errorf("sqlite: %w", err)
		}
		return repository.NewSQLiteRollupRepo(d, opts), func() {
			d.Close()
			log.Info("[DB] sqlite closed")
		}, nil

	case "postgres":
		log.Info("[DB] connecting", "host", cfg.DBHost, "port", cfg.DBPort, "database", cfg.DBName)
		pool, err := db.Connect(cfg.DSN())
		if err != nil {
			return nil, nil, fmt.Errorf("postgres: %w", err)
		}
		if err := db.TestConnection(pool, log); err != nil {
			pool.Close()
			return nil, nil, err
		}
		return repository.NewRollupRepo(pool, opts), func() {
			pool.Close()
			log.Info("[DB] connection pool closed")
		}, nil

	default:
		return nil, nil, fmt.Errorf("unknown DB_DRIVER %q", cfg.DBDriver)
	}
}

// New wires the store, result cache, metrics and alerting into an
// orchestrator.
func New(cfg *config.Config, log *slog.Logger) (*App, error) {
	store, closeStore, err := OpenStore(cfg, log)
	if err != nil {
		return nil, err
	}
	return Assemble(cfg, store, log, closeStore), nil
}

// Assemble builds an App around an already opened store. closeStore may be nil.
func Assemble(cfg *config.Config, store Store, log *slog.Logger, closeStore func()) *App {
	a := &App{Store: store, Registry: prometheus.NewRegistry()}
	if closeStore != nil {
		a.closers = append(a.closers, closeStore)
	}

	a.Cache = cache.New(cache.Config{
		TTL:         cfg.CacheTTL(),
		MaxEntries:  cfg.CacheMaxEntries,
		RecordStats: cfg.CacheRecordStats,
		Shards:      cfg.CacheShards,
		OnFault: func(f *cache.Fault) {
			log.Warn("[CACHE] store failed, result served uncached", "operation", f.Op, "key", f.Key, "error", f.Err)
		},
	})

	a.Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		cache.NewCollector("analytics", a.Cache),
	)

	a.Alerter = notifications.NewAlerter(
		notifications.NewSender(cfg.WebhookURL, cfg.AlertName, log),
		cfg.AlertMinInterval(),
	)
	a.closers = append(a.closers, a.Alerter.Close)

	a.Orchestrator = analytics.New(analytics.Config{
		DefaultLimit:      cfg.DefaultPageSize,
		MaxLimit:          cfg.MaxPageSize,
		OutperformRatio:   cfg.OutperformRatio,
		UnderperformRatio: cfg.UnderperformRatio,
		Limits: analytics.Limits{
			MaxSymbols: cfg.MaxSymbolsPerRequest,
			MaxRange:   cfg.MaxRange(),
		},
	}, analytics.Deps{
		Store:    store,
		Cache:    a.Cache,
		Logger:   log,
		Reporter: a.Alerter,
		Metrics:  a.Registry,
	})

	return a
}

// Close releases everything in reverse order of acquisition.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

// Ping checks the store with a short timeout.
func (a *App) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	return a.Store.Ping(ctx)
}
