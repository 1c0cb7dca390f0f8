package extension

import (
	"log/slog"
	"time"

	"github.com/xraph/keeper"
	"github.com/xraph/keeper/api"
	"github.com/xraph/keeper/plugin"
	"github.com/xraph/keeper/store"
)

// ExtOption configures the Keeper Forge extension.
type ExtOption func(*Extension)

// WithStore sets the persistence backend.
func WithStore(s store.Store) ExtOption {
	return func(e *Extension) {
		e.keeperOpts = append(e.keeperOpts, keeper.WithStore(s))
	}
}

// WithConfig sets the extension configuration.
func WithConfig(cfg Config) ExtOption {
	return func(e *Extension) {
		e.config = cfg
	}
}

// WithEngineOptions adds engine-level options.
func WithEngineOptions(opts ...keeper.Option) ExtOption {
	return func(e *Extension) {
		e.keeperOpts = append(e.keeperOpts, opts...)
	}
}

// WithAPIOptions adds options for the HTTP handlers, such as how the
// calling principal is resolved.
func WithAPIOptions(opts ...api.Option) ExtOption {
	return func(e *Extension) {
		e.apiOpts = append(e.apiOpts, opts...)
	}
}

// WithPlugin registers a lifecycle hook plugin.
func WithPlugin(x plugin.Plugin) ExtOption {
	return func(e *Extension) {
		e.plugins = append(e.plugins, x)
	}
}

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) ExtOption {
	return func(e *Extension) {
		e.logger = l
	}
}

// WithDisableRoutes disables the registration of HTTP routes.
func WithDisableRoutes() ExtOption {
	return func(e *Extension) {
		e.config.DisableRoutes = true
	}
}

// WithDisableMigrate disables auto-migration on start.
func WithDisableMigrate() ExtOption {
	return func(e *Extension) {
		e.config.DisableMigrate = true
	}
}

// WithSubscriberSync enables coupling of the subscriber role to billing
// state.
func WithSubscriberSync() ExtOption {
	return func(e *Extension) {
		e.config.SyncSubscriberRole = true
	}
}

// WithMetrics registers the Prometheus metrics plugin.
func WithMetrics() ExtOption {
	return func(e *Extension) {
		e.config.EnableMetrics = true
	}
}

// WithSyncLogRetention purges synclog entries older than d.
func WithSyncLogRetention(d time.Duration) ExtOption {
	return func(e *Extension) {
		e.config.SyncLogRetention = d
	}
}

// WithBillingPrincipals allows the listed principals to post billing
// events.
func WithBillingPrincipals(ids ...string) ExtOption {
	return func(e *Extension) {
		e.config.BillingPrincipals = append(e.config.BillingPrincipals, ids...)
	}
}

// WithRequireConfig makes Register fail when no keeper section is found
// in the configuration files.
func WithRequireConfig() ExtOption {
	return func(e *Extension) {
		e.config.RequireConfig = true
	}
}
