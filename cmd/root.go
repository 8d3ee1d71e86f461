// Package cmd defines and implements the CLI commands for the appcatalog executable.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/appcatalog/internal/app"
	"github.com/JakeFAU/appcatalog/internal/builder"
	"github.com/JakeFAU/appcatalog/internal/catalog"
	"github.com/JakeFAU/appcatalog/internal/config"
	"github.com/JakeFAU/appcatalog/internal/enrich"
	"github.com/JakeFAU/appcatalog/internal/storage/local"
)

// appKeyType is the key for storing the App in the context.
type appKeyType string

const appKey appKeyType = "app"

// Collector builds one catalog.
type Collector interface {
	Build(ctx context.Context, mode builder.Mode, params builder.Params) ([]catalog.Record, error)
}

// Enricher enriches a directory of catalogs.
type Enricher interface {
	Run(ctx context.Context, dir string, limit int) (enrich.Summary, error)
}

// CatalogWriter persists a catalog file.
type CatalogWriter interface {
	Save(ctx context.Context, name string, records any) (local.Written, error)
}

// App defines the services commands use. Tests inject a fake.
type App interface {
	Close(ctx context.Context)
	Logger() *zap.Logger
	Collector() Collector
	Enricher() Enricher
	Catalogs() CatalogWriter
}

// services adapts *app.App to App.
type services struct {
	*app.App
}

func (s services) Collector() Collector    { return s.Builder() }
func (s services) Enricher() Enricher      { return s.Orchestrator() }
func (s services) Catalogs() CatalogWriter { return s.Store() }

// newApp is the application factory. It's a variable so tests can replace it.
var newApp = func(ctx context.Context, cfg config.Config) (App, error) {
	a, err := app.Build(ctx, cfg)
	if err != nil {
		return nil, err
	}
	zap.ReplaceGlobals(a.Logger())
	return services{a}, nil
}

// newRootCmd creates and configures the root command.
func newRootCmd() *cobra.Command {
	var cfgFile string
	cmd := &cobra.Command{
		Use:   "appcatalog",
		Short: "Builds and enriches a deduplicated catalog of ranked mobile apps.",
		Long: `appcatalog polls the public ranked-feed API across countries, categories
and chart types, writes a deduplicated catalog per run, and can later enrich
every catalog in a directory with the seller URL and universal-link paths of
each app.`,
		SilenceUsage: true,

		// Arguments are validated before this hook, so invalid invocations
		// never build the application.
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(cfgFile)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			appInstance, err := newApp(cmd.Context(), cfg)
			if err != nil {
				return fmt.Errorf("failed to initialize application services: %w", err)
			}
			cmd.SetContext(context.WithValue(cmd.Context(), appKey, appInstance))
			return nil
		},

		PersistentPostRun: func(cmd *cobra.Command, _ []string) {
			if appInstance, ok := cmd.Context().Value(appKey).(App); ok && appInstance != nil {
				appInstance.Close(cmd.Context())
			}
		},
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (defaults plus APPCATALOG_* environment)")

	cmd.AddCommand(newCollectCmd(builder.ModeGiant))
	cmd.AddCommand(newCollectCmd(builder.ModeSupplement))
	cmd.AddCommand(newCollectCmd(builder.ModeBuiltin))
	cmd.AddCommand(newEnrichCmd())

	return cmd
}

// Execute is the main entry point.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := newRootCmd().ExecuteContext(ctx)
	stop()
	if err != nil {
		zap.L().Fatal("command execution failed", zap.Error(err))
	}
}

func resolveApp(ctx context.Context) (App, error) {
	appInstance, ok := ctx.Value(appKey).(App)
	if !ok || appInstance == nil {
		return nil, errors.New("application services not initialized")
	}
	return appInstance, nil
}
