// Package app builds and holds the long-lived services shared by the CLI commands.
package app

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/appcatalog/internal/api"
	"github.com/JakeFAU/appcatalog/internal/builder"
	"github.com/JakeFAU/appcatalog/internal/clock/system"
	"github.com/JakeFAU/appcatalog/internal/config"
	"github.com/JakeFAU/appcatalog/internal/enrich"
	"github.com/JakeFAU/appcatalog/internal/feed"
	collyfetcher "github.com/JakeFAU/appcatalog/internal/fetcher/colly"
	"github.com/JakeFAU/appcatalog/internal/id/uuid"
	"github.com/JakeFAU/appcatalog/internal/logging"
	"github.com/JakeFAU/appcatalog/internal/lookup"
	"github.com/JakeFAU/appcatalog/internal/policy/backoff"
	"github.com/JakeFAU/appcatalog/internal/policy/ratelimit"
	"github.com/JakeFAU/appcatalog/internal/storage/local"
	pgstore "github.com/JakeFAU/appcatalog/internal/storage/postgres"
)

const shutdownTimeout = 5 * time.Second

// App contains the application's dependencies.
type App struct {
	cfg      config.Config
	logger   *zap.Logger
	store    *local.Store
	feed     *feed.Client
	lookup   *lookup.Client
	exporter *pgstore.Exporter
	progress *enrich.Progress
	status   *http.Server
	listener net.Listener
}

// Build creates the application's dependencies. The status server and the
// Postgres exporter are only created when configured.
func Build(ctx context.Context, cfg config.Config) (*App, error) {
	logger, err := logging.New(logging.Config{Development: cfg.Logging.Development, Level: cfg.Logging.Level})
	if err != nil {
		return nil, fmt.Errorf("logger init failed: %w", err)
	}
	return BuildWithLogger(ctx, cfg, logger)
}

// BuildWithLogger is Build with a caller-supplied logger.
func BuildWithLogger(ctx context.Context, cfg config.Config, logger *zap.Logger) (*App, error) {
	logger = logging.OrNop(logger)
	var err error
	a := &App{
		cfg:      cfg,
		logger:   logger,
		progress: enrich.NewProgress(),
	}
	logger.Debug("building application dependencies",
		zap.String("output_root", cfg.Output.Root),
		zap.Int("workers", cfg.Enrich.Workers),
		zap.Bool("export_enabled", cfg.DB.DSN != ""),
		zap.String("status_addr", cfg.Metrics.Addr),
	)

	a.store, err = local.New(local.Config{BaseDir: cfg.Output.Root}, logger.Named("store"))
	if err != nil {
		return nil, fmt.Errorf("catalog store init failed: %w", err)
	}

	feedFetcher := collyfetcher.New(cfg.FeedFetcher())
	a.feed = feed.New(
		feedFetcher,
		backoff.New("feed", cfg.Feed.MinDelay, cfg.Feed.MaxDelay),
		feed.Config{BaseURL: cfg.Feed.BaseURL, PageLimit: cfg.Feed.PageLimit},
		logger.Named("feed"),
	)

	lookupFetcher := collyfetcher.New(cfg.LookupFetcher())
	a.lookup = lookup.New(
		lookupFetcher,
		backoff.New("lookup", cfg.Lookup.MinDelay, cfg.Lookup.MaxDelay),
		ratelimit.New(ratelimit.Config{DefaultRPS: cfg.Lookup.AssociationRPS, DefaultBurst: cfg.Lookup.AssociationBurst}),
		lookup.Config{BaseURL: cfg.Lookup.BaseURL, AssociationScheme: cfg.Lookup.AssociationScheme},
		logger.Named("lookup"),
	)

	if cfg.DB.DSN != "" {
		a.exporter, err = pgstore.NewExporter(ctx, pgstore.ExporterConfig{
			DSN:      cfg.DB.DSN,
			Table:    cfg.DB.Table,
			MaxConns: cfg.DB.MaxConns,
		}, system.New())
		if err != nil {
			return nil, fmt.Errorf("exporter init failed: %w", err)
		}
		logger.Info("postgres export enabled", zap.String("table", cfg.DB.Table))
	}

	if cfg.Metrics.Addr != "" {
		if err := a.startStatusServer(); err != nil {
			a.Close(ctx)
			return nil, err
		}
	}
	return a, nil
}

// Logger returns the shared logger.
func (a *App) Logger() *zap.Logger {
	return a.logger
}

// Config returns the loaded configuration.
func (a *App) Config() config.Config {
	return a.cfg
}

// Store returns the catalog store rooted at output.root.
func (a *App) Store() *local.Store {
	return a.store
}

// Progress returns the tracker shared by the orchestrator and the status server.
func (a *App) Progress() *enrich.Progress {
	return a.progress
}

// Builder returns a catalog builder backed by the feed client.
func (a *App) Builder() *builder.Builder {
	return builder.New(a.feed, a.logger.Named("builder"))
}

// Orchestrator returns an enrichment orchestrator backed by the lookup client.
func (a *App) Orchestrator() *enrich.Orchestrator {
	opts := []enrich.Option{
		enrich.WithProgress(a.progress),
		enrich.WithIDGenerator(uuid.New()),
		enrich.WithClock(system.New()),
	}
	if a.exporter != nil {
		opts = append(opts, enrich.WithExporter(a.exporter))
	}
	return enrich.New(a.store, a.lookup, enrich.Config{
		Workers:    a.cfg.Enrich.Workers,
		QueueDepth: a.cfg.Enrich.QueueDepth,
	}, a.logger.Named("enrich"), opts...)
}

// StatusAddr returns the bound status server address, or "" when disabled.
func (a *App) StatusAddr() string {
	if a.listener == nil {
		return ""
	}
	return a.listener.Addr().String()
}

func (a *App) startStatusServer() error {
	ln, err := net.Listen("tcp", a.cfg.Metrics.Addr)
	if err != nil {
		return fmt.Errorf("status server listen: %w", err)
	}
	a.listener = ln
	srv := api.NewServer(api.NewProgressHandler(a.progress), a.ready, a.logger.Named("api"))
	a.status = &http.Server{
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		a.logger.Info("status server started", zap.String("addr", ln.Addr().String()))
		if err := a.status.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Error("status server error", zap.Error(err))
		}
	}()
	return nil
}

func (a *App) ready(context.Context) error {
	info, err := os.Stat(a.store.BaseDir())
	if err != nil {
		return fmt.Errorf("output root: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("output root %s is not a directory", a.store.BaseDir())
	}
	return nil
}

// Close gracefully shuts down the application.
func (a *App) Close(ctx context.Context) {
	if a == nil {
		return
	}
	if a.status != nil {
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		if err := a.status.Shutdown(shutdownCtx); err != nil {
			a.logger.Warn("status server shutdown failed", zap.Error(err))
		}
	}
	if a.exporter != nil {
		a.exporter.Close()
	}
	_ = a.logger.Sync()
}
