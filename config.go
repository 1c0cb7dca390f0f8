package keeper

import "time"

// Config holds configuration for the Keeper engine.
type Config struct {
	// SyncSubscriberRole couples the subscriber role to billing state.
	// When true, an applied premium active/trialing state grants subscriber
	// as BillingActor and any other applied state revokes a subscriber grant
	// that BillingActor issued. Grants issued by admins are never touched.
	// Defaults to false.
	SyncSubscriberRole bool `json:"sync_subscriber_role,omitempty"`

	// MaxEventSkew bounds how far in the future a billing event timestamp
	// may lie. Defaults to 24h.
	MaxEventSkew time.Duration `json:"max_event_skew,omitempty"`

	// DeliveryTTL is how long a billing delivery ID is remembered for
	// duplicate suppression. Zero disables suppression. Defaults to 10m.
	DeliveryTTL time.Duration `json:"delivery_ttl,omitempty"`

	// SyncLogRetention is how long synclog entries are kept. When positive,
	// Start runs a background purge every PurgeInterval. Zero keeps entries
	// forever.
	SyncLogRetention time.Duration `json:"sync_log_retention,omitempty"`

	// PurgeInterval is how often the retention purge runs. Defaults to 1h.
	PurgeInterval time.Duration `json:"purge_interval,omitempty"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		MaxEventSkew: 24 * time.Hour,
		DeliveryTTL:  10 * time.Minute,
	}
}

func (c Config) purgeInterval() time.Duration {
	if c.PurgeInterval <= 0 {
		return time.Hour
	}
	return c.PurgeInterval
}

func (c Config) eventSkew() time.Duration {
	if c.MaxEventSkew <= 0 {
		return 24 * time.Hour
	}
	return c.MaxEventSkew
}
