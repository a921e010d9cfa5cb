// Package orchestrator wires configuration into the store, cache, search,
// import and audit components used by the command line.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"psicoapp/internal/audit"
	"psicoapp/internal/cache"
	"psicoapp/internal/config"
	"psicoapp/internal/importer"
	"psicoapp/internal/matcher"
	"psicoapp/internal/reconcile"
	"psicoapp/internal/search"
	"psicoapp/internal/store"
	"psicoapp/internal/watcher"
)

// App holds the long-lived components of one process.
type App struct {
	Config   *config.Configuration
	Logger   *zap.Logger
	Store    store.Store
	Cache    cache.KV
	Matcher  *matcher.Matcher
	Search   *search.Service
	Importer *importer.Importer
	Audit    *audit.Writer

	closers []func() error
}

// Open builds every component described by cfg. The caller must Close the
// returned App.
func Open(ctx context.Context, cfg *config.Configuration, log *zap.Logger) (*App, error) {
	if log == nil {
		log = zap.NewNop()
	}
	app := &App{Config: cfg, Logger: log}

	st, closeStore, err := openStore(ctx, cfg, log)
	if err != nil {
		return nil, err
	}
	app.Store = st
	app.closers = append(app.closers, closeStore)

	kv, closeCache := openCache(ctx, cfg, log)
	app.Cache = kv
	app.closers = append(app.closers, closeCache)

	if cfg.Audit != nil && cfg.Audit.LogDirectory != "" {
		w, err := audit.NewWriter(*cfg.Audit)
		if err != nil {
			app.Close()
			return nil, fmt.Errorf("failed to open audit log: %w", err)
		}
		app.Audit = w
		app.closers = append(app.closers, w.Close)
	}

	app.Matcher = matcher.New(cfg.Matcher.Threshold)
	app.Search = search.New(st, kv, app.Matcher, SearchOptions(cfg), log.Named("search"))
	app.Importer = importer.New(st, ImportOptions(cfg, false), log.Named("import"))

	log.Info("Application ready",
		zap.String("driver", cfg.Database.Driver),
		zap.Bool("redis", cfg.Redis.Enabled),
		zap.Bool("audit", app.Audit != nil))
	return app, nil
}

func openStore(ctx context.Context, cfg *config.Configuration, log *zap.Logger) (store.Store, func() error, error) {
	switch cfg.Database.Driver {
	case config.DriverMemory:
		return store.NewMemory(), func() error { return nil }, nil
	case config.DriverPostgres, config.DriverSQLite:
		st, err := store.Open(ctx, store.Dialect(cfg.Database.Driver), cfg.Database.DSN, cfg.Database.MaxConns, log.Named("store"))
		if err != nil {
			return nil, nil, err
		}
		return st, st.Close, nil
	default:
		return nil, nil, fmt.Errorf("unsupported database driver %q", cfg.Database.Driver)
	}
}

// openCache prefers Redis when enabled. The cache only speeds up name
// lookups, so an unreachable Redis degrades to the in-process cache.
func openCache(ctx context.Context, cfg *config.Configuration, log *zap.Logger) (cache.KV, func() error) {
	ttl := time.Duration(cfg.Search.CacheTTLSeconds) * time.Second
	memory := func() (cache.KV, func() error) {
		return cache.NewMemory(cfg.Search.CacheSize, ttl), func() error { return nil }
	}
	if !cfg.Redis.Enabled {
		return memory()
	}

	dialCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	r, err := cache.DialRedis(dialCtx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, cfg.Redis.Prefix)
	if err != nil {
		log.Warn("Redis unavailable, using in-process cache",
			zap.String("addr", cfg.Redis.Addr), zap.Error(err))
		return memory()
	}
	return r, r.Close
}

// NewSession returns a reconciler with an empty undo stack. Each
// interactive session gets its own.
func (a *App) NewSession() *reconcile.Reconciler {
	return reconcile.New(a.Store, ReconcileOptions(a.Config), a.Logger.Named("reconcile"), &sessionRecorder{app: a})
}

// Close releases every component in reverse opening order.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

// sessionRecorder writes rename events to the audit log and drops cached
// name lists once a write has touched the store.
type sessionRecorder struct {
	app *App
}

func (r *sessionRecorder) Record(ev reconcile.Event) error {
	if ev.Confirmed > 0 {
		r.app.invalidateSearch()
	}
	if r.app.Audit == nil {
		return nil
	}
	return r.app.Audit.Record(ev)
}

func (a *App) invalidateSearch() {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := a.Search.Invalidate(ctx); err != nil {
		a.Logger.Warn("Failed to invalidate search cache", zap.Error(err))
	}
}

// ReconcileOptions maps the configuration onto reconciler options.
func ReconcileOptions(cfg *config.Configuration) reconcile.Options {
	return reconcile.Options{
		SessionsTable: cfg.Tables.Sessions,
		PatientsTable: cfg.Tables.Patients,
		PageSize:      cfg.Reconcile.PageSize,
		BatchSize:     cfg.Reconcile.BatchSize,
	}
}

// SearchOptions maps the configuration onto search options.
func SearchOptions(cfg *config.Configuration) search.Options {
	return search.Options{
		SessionsTable:  cfg.Tables.Sessions,
		PatientsTable:  cfg.Tables.Patients,
		PageSize:       cfg.Reconcile.PageSize,
		MinTermLength:  cfg.Search.MinTermLength,
		MaxResults:     cfg.Search.MaxResults,
		DefaultLimit:   cfg.Search.DefaultLimit,
		ChunkSize:      cfg.Search.ChunkSize,
		CacheTTL:       time.Duration(cfg.Search.CacheTTLSeconds) * time.Second,
		RecentSessions: cfg.Consolidate.RecentSessions,
	}
}

// ImportOptions maps the configuration onto importer options. With
// dryRun nothing is written.
func ImportOptions(cfg *config.Configuration, dryRun bool) importer.Options {
	return importer.Options{
		PatientsSheet: cfg.Import.PatientsSheet,
		SessionsSheet: cfg.Import.SessionsSheet,
		PatientsTable: cfg.Tables.Patients,
		SessionsTable: cfg.Tables.Sessions,
		PatientBatch:  cfg.Import.PatientBatch,
		SessionBatch:  cfg.Import.SessionBatch,
		DryRun:        dryRun,
	}
}

// WatchConfig maps the import section onto watcher settings.
func WatchConfig(ic config.ImportConfig) watcher.Config {
	return watcher.Config{
		Debounce:        time.Duration(ic.DebounceMillis) * time.Millisecond,
		StableThreshold: time.Duration(ic.StableMillis) * time.Millisecond,
		Patterns:        ic.WatchPatterns,
		IgnorePatterns:  ic.IgnorePatterns,
	}
}
