package extension

import (
	"time"

	"github.com/xraph/keeper"
)

// Config holds the Keeper extension configuration.
// Fields can be set programmatically via Option functions or loaded from
// YAML configuration files (under "extensions.keeper" or "keeper" keys).
type Config struct {
	// DisableRoutes prevents HTTP route registration.
	DisableRoutes bool `json:"disable_routes" mapstructure:"disable_routes" yaml:"disable_routes"`

	// DisableMigrate prevents auto-migration on start.
	DisableMigrate bool `json:"disable_migrate" mapstructure:"disable_migrate" yaml:"disable_migrate"`

	// BasePath is an optional URL prefix for keeper routes. Routes always
	// start with /v1 below it.
	BasePath string `json:"base_path" mapstructure:"base_path" yaml:"base_path"`

	// GroveDriver selects the store built from the grove.DB found in the DI
	// container: "postgres", "sqlite" or "mongo". Empty means a store.Store
	// must be provided by the container or WithStore.
	GroveDriver string `json:"grove_driver" mapstructure:"grove_driver" yaml:"grove_driver"`

	// SyncSubscriberRole couples the subscriber role to billing state.
	SyncSubscriberRole bool `json:"sync_subscriber_role" mapstructure:"sync_subscriber_role" yaml:"sync_subscriber_role"`

	// MaxEventSkew bounds how far in the future a billing event may lie.
	MaxEventSkew time.Duration `json:"max_event_skew" mapstructure:"max_event_skew" yaml:"max_event_skew"`

	// DeliveryTTL is how long billing delivery IDs are remembered.
	// Zero disables duplicate suppression.
	DeliveryTTL time.Duration `json:"delivery_ttl" mapstructure:"delivery_ttl" yaml:"delivery_ttl"`

	// DeliveryCacheSize caps the number of remembered delivery IDs.
	DeliveryCacheSize int `json:"delivery_cache_size" mapstructure:"delivery_cache_size" yaml:"delivery_cache_size"`

	// EnableMetrics registers the Prometheus metrics plugin with the
	// default registerer.
	EnableMetrics bool `json:"enable_metrics" mapstructure:"enable_metrics" yaml:"enable_metrics"`

	// SyncLogRetention is how long synclog entries are kept before the
	// background purge removes them. Zero keeps them forever.
	SyncLogRetention time.Duration `json:"sync_log_retention" mapstructure:"sync_log_retention" yaml:"sync_log_retention"`

	// BillingPrincipals are the principals allowed to post billing events.
	// Empty refuses every billing post unless an authorizer is supplied
	// through WithAPIOptions.
	BillingPrincipals []string `json:"billing_principals" mapstructure:"billing_principals" yaml:"billing_principals"`

	// RequireConfig requires config to be present in YAML files.
	// If true and no config is found, Register returns an error.
	RequireConfig bool `json:"-" yaml:"-"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		MaxEventSkew:      24 * time.Hour,
		DeliveryTTL:       10 * time.Minute,
		DeliveryCacheSize: 100_000,
	}
}

// engineConfig projects the engine-level settings, filling defaults for
// unset durations.
func (c Config) engineConfig() keeper.Config {
	def := DefaultConfig()
	out := keeper.Config{
		SyncSubscriberRole: c.SyncSubscriberRole,
		MaxEventSkew:       c.MaxEventSkew,
		DeliveryTTL:        c.DeliveryTTL,
		SyncLogRetention:   c.SyncLogRetention,
	}
	if out.MaxEventSkew <= 0 {
		out.MaxEventSkew = def.MaxEventSkew
	}
	if out.DeliveryTTL < 0 {
		out.DeliveryTTL = 0
	}
	return out
}
