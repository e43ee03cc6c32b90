package internal

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/halvard/munin/internal/index"
	"github.com/halvard/munin/internal/plansync"
	"github.com/halvard/munin/internal/query"
	"github.com/halvard/munin/internal/storage"
)

// App bundles the constructed components for one invocation.
type App struct {
	Config *Config
	Logger *slog.Logger
	Store  storage.Provider
	Index  index.Index
	Engine *query.Engine
	Syncer *plansync.Syncer
}

// NewApp builds the application from configuration. When recoverIndex is
// set, a corrupted sqlite index file is discarded and recreated; callers
// that intend to Rebuild pass true, query-only callers pass false so
// corruption surfaces as an error instead of a silent empty index.
func NewApp(cfg *Config, recoverIndex bool) (*App, error) {
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: cfg.App.LogLevel,
	}))
	slog.SetDefault(logger)

	if err := os.MkdirAll(cfg.Corpus.Path, 0o755); err != nil {
		return nil, fmt.Errorf("create corpus dir: %w", err)
	}
	store, err := storage.NewFS(cfg.Corpus.Path)
	if err != nil {
		return nil, fmt.Errorf("init storage: %w", err)
	}

	ix, err := OpenBackend(cfg, store, logger, recoverIndex)
	if err != nil {
		return nil, err
	}

	return &App{
		Config: cfg,
		Logger: logger,
		Store:  store,
		Index:  ix,
		Engine: query.New(ix, store, cfg.Index.DefaultLimit, logger),
		Syncer: plansync.New(store, cfg.Plans.TeamDir, logger),
	}, nil
}

// Close releases the backend.
func (a *App) Close() error {
	return a.Index.Close()
}

// OpenBackend constructs the configured index backend. Backend selection
// is explicit; there is no fallback from one to the other.
func OpenBackend(cfg *Config, store storage.Provider, logger *slog.Logger, recoverIndex bool) (index.Index, error) {
	switch cfg.Index.Backend {
	case BackendJSON:
		return index.NewJSONFile(cfg.Index.JSONPath, store, logger), nil
	case BackendSQLite:
		if recoverIndex {
			return index.OpenSQLiteRecover(cfg.Index.SQLitePath, store, logger)
		}
		return index.OpenSQLite(cfg.Index.SQLitePath, store, logger)
	}
	return nil, fmt.Errorf("unknown index backend %q", cfg.Index.Backend)
}

// RunWatch runs the corpus watcher until a shutdown signal or context
// cancellation.
func (a *App) RunWatch(ctx context.Context) error {
	a.Logger.Info("configuration loaded",
		slog.String("corpus_path", a.Config.Corpus.Path),
		slog.String("backend", a.Config.Index.Backend),
		slog.String("log_level", a.Config.App.LogLevel.String()))

	g, gCtx := errgroup.WithContext(ctx)
	watchCtx, cancel := context.WithCancel(gCtx)

	g.Go(func() error {
		defer cancel()
		return index.Watch(watchCtx, a.Index, a.Store, a.Config.Corpus.Path, a.Logger, nil)
	})

	g.Go(func() error {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(quit)

		select {
		case sig := <-quit:
			a.Logger.Info("received shutdown signal", slog.String("signal", sig.String()))
		case <-watchCtx.Done():
		}
		cancel()
		return nil
	})

	if err := g.Wait(); err != nil {
		a.Logger.Error("watch error", slog.String("error", err.Error()))
		return err
	}
	a.Logger.Info("watcher stopped")
	return nil
}
