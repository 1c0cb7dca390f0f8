// Package extension provides a Forge extension entry point for Keeper.
package extension

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/xraph/forge"
	"github.com/xraph/grove"
	"github.com/xraph/vessel"

	"github.com/xraph/keeper"
	"github.com/xraph/keeper/api"
	"github.com/xraph/keeper/cache"
	"github.com/xraph/keeper/metrics"
	"github.com/xraph/keeper/plugin"
	"github.com/xraph/keeper/store"
	"github.com/xraph/keeper/store/mongo"
	"github.com/xraph/keeper/store/postgres"
	"github.com/xraph/keeper/store/sqlite"
)

// ExtensionName is the name registered with Forge.
const ExtensionName = "keeper"

// ExtensionDescription is the human-readable description.
const ExtensionDescription = "Role grants, billing entitlements and capability guards"

// ExtensionVersion is the semantic version.
const ExtensionVersion = "0.1.0"

// Ensure Extension implements forge.Extension at compile time.
var _ forge.Extension = (*Extension)(nil)

// Extension adapts Keeper as a Forge extension.
type Extension struct {
	config     Config
	eng        *keeper.Engine
	apiHandler *api.API
	logger     *slog.Logger
	keeperOpts []keeper.Option
	apiOpts    []api.Option
	plugins    []plugin.Plugin
}

// New creates a Keeper Forge extension with the given options.
func New(opts ...ExtOption) *Extension {
	e := &Extension{config: DefaultConfig()}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Name returns the extension name.
func (e *Extension) Name() string { return ExtensionName }

// Description returns the extension description.
func (e *Extension) Description() string { return ExtensionDescription }

// Version returns the extension version.
func (e *Extension) Version() string { return ExtensionVersion }

// Dependencies returns the list of extension names this extension depends on.
func (e *Extension) Dependencies() []string { return []string{} }

// Engine returns the underlying Keeper engine.
func (e *Extension) Engine() *keeper.Engine { return e.eng }

// API returns the API handler.
func (e *Extension) API() *api.API { return e.apiHandler }

// Register implements [forge.Extension]. It initializes the engine,
// registers it in the DI container, and optionally registers HTTP routes.
func (e *Extension) Register(fapp forge.App) error {
	if err := e.loadConfig(fapp); err != nil {
		return err
	}
	if err := e.init(fapp); err != nil {
		return err
	}

	if err := vessel.Provide(fapp.Container(), func() (*keeper.Engine, error) {
		return e.eng, nil
	}); err != nil {
		return fmt.Errorf("keeper: register engine in container: %w", err)
	}

	return nil
}

// loadConfig merges the "extensions.keeper" (or "keeper") section of the
// app configuration over the programmatic config.
func (e *Extension) loadConfig(fapp forge.App) error {
	programmatic := e.config
	final := DefaultConfig()

	loader := forge.NewExtensionConfigLoader(fapp, fapp.Logger())
	if err := loader.LoadConfig(ExtensionName, &final, programmatic, DefaultConfig(), programmatic.RequireConfig); err != nil {
		if programmatic.RequireConfig {
			return fmt.Errorf("keeper: load required config: %w", err)
		}
		e.log().Warn("keeper: using programmatic config", "error", err)
		return nil
	}

	final.RequireConfig = programmatic.RequireConfig
	e.config = final
	return nil
}

func (e *Extension) log() *slog.Logger {
	if e.logger != nil {
		return e.logger
	}
	return slog.Default()
}

func (e *Extension) init(fapp forge.App) error {
	logger := e.log()

	opts := make([]keeper.Option, 0, len(e.keeperOpts)+len(e.plugins)+5)
	opts = append(opts,
		keeper.WithLogger(logger),
		keeper.WithConfig(e.config.engineConfig()),
	)

	// Resolve the store: a store.Store in the container wins, then a
	// grove.DB wrapped by the configured driver.
	if s, err := forge.Inject[store.Store](fapp.Container()); err == nil {
		opts = append(opts, keeper.WithStore(s))
	} else if e.config.GroveDriver != "" {
		db, err := forge.Inject[*grove.DB](fapp.Container())
		if err != nil {
			return fmt.Errorf("keeper: resolve grove database: %w", err)
		}
		s, err := storeForDriver(e.config.GroveDriver, db)
		if err != nil {
			return err
		}
		opts = append(opts, keeper.WithStore(s))
	}

	if e.config.DeliveryTTL > 0 {
		opts = append(opts, keeper.WithDeliveryCache(
			cache.NewDeliveries(cache.WithMaxSize(e.config.DeliveryCacheSize)),
		))
	}

	// Append user-provided options (may override store).
	opts = append(opts, e.keeperOpts...)

	if e.config.EnableMetrics {
		opts = append(opts, keeper.WithPlugin(metrics.New(prometheus.DefaultRegisterer)))
	}
	for _, x := range e.plugins {
		opts = append(opts, keeper.WithPlugin(x))
	}

	eng, err := keeper.NewEngine(opts...)
	if err != nil {
		return fmt.Errorf("keeper: create engine: %w", err)
	}
	e.eng = eng

	apiOpts := []api.Option{api.WithBasePath(e.config.BasePath)}
	if len(e.config.BillingPrincipals) > 0 {
		apiOpts = append(apiOpts, api.WithBillingPrincipals(e.config.BillingPrincipals...))
	}
	apiOpts = append(apiOpts, e.apiOpts...)
	e.apiHandler = api.New(eng, fapp.Router(), apiOpts...)

	if !e.config.DisableRoutes {
		if err := e.apiHandler.RegisterRoutes(fapp.Router()); err != nil {
			return fmt.Errorf("keeper: register routes: %w", err)
		}
	}

	return nil
}

// storeForDriver wraps db in the store matching driver.
func storeForDriver(driver string, db *grove.DB) (store.Store, error) {
	switch driver {
	case "postgres", "pg":
		return postgres.New(db), nil
	case "sqlite":
		return sqlite.New(db), nil
	case "mongo", "mongodb":
		return mongo.New(db), nil
	default:
		return nil, fmt.Errorf("keeper: unknown grove driver %q", driver)
	}
}

// Start begins the keeper engine and runs migrations if enabled.
func (e *Extension) Start(ctx context.Context) error {
	if e.eng == nil {
		return errors.New("keeper: extension not initialized")
	}

	if !e.config.DisableMigrate {
		if err := e.eng.Store().Migrate(ctx); err != nil {
			return fmt.Errorf("keeper: migration failed: %w", err)
		}
	}

	return e.eng.Start(ctx)
}

// Stop gracefully shuts down the keeper engine.
func (e *Extension) Stop(ctx context.Context) error {
	if e.eng == nil {
		return nil
	}
	return e.eng.Stop(ctx)
}

// Health implements [forge.Extension].
func (e *Extension) Health(ctx context.Context) error {
	if e.eng == nil {
		return errors.New("keeper: extension not initialized")
	}
	return e.eng.Store().Ping(ctx)
}

// Handler returns the HTTP handler for all API routes.
func (e *Extension) Handler() http.Handler {
	if e.apiHandler == nil {
		return http.NotFoundHandler()
	}
	return e.apiHandler.Handler()
}

// RegisterRoutes registers all keeper API routes into a Forge router.
func (e *Extension) RegisterRoutes(router forge.Router) error {
	if e.apiHandler != nil {
		return e.apiHandler.RegisterRoutes(router)
	}
	return nil
}
