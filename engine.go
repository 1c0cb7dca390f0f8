package keeper

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/xraph/keeper/plugin"
	"github.com/xraph/keeper/role"
	"github.com/xraph/keeper/store"
	"github.com/xraph/keeper/subscription"
)

// Engine is the central Keeper engine. It resolves roles, evaluates
// entitlements, manages grants, reconciles billing events, and fires
// plugin hooks.
type Engine struct {
	store      store.Store
	deliveries DeliveryCache
	plugins    *plugin.Registry
	logger     *slog.Logger
	config     Config
	now        func() time.Time

	stopPurge context.CancelFunc
	purgeDone chan struct{}
}

// NewEngine creates a new Keeper engine with the given options.
func NewEngine(opts ...Option) (*Engine, error) {
	e := &Engine{
		logger: slog.Default(),
		config: DefaultConfig(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.store == nil {
		return nil, errors.New("keeper: store is required")
	}
	return e, nil
}

// Store returns the underlying composite store.
func (e *Engine) Store() store.Store { return e.store }

// Plugins returns the plugin registry (may be nil).
func (e *Engine) Plugins() *plugin.Registry { return e.plugins }

// Config returns the engine configuration.
func (e *Engine) Config() Config { return e.config }

// Now returns the current instant from the engine clock.
func (e *Engine) Now() time.Time { return e.now() }

// Start launches the synclog retention purge when SyncLogRetention is set.
func (e *Engine) Start(_ context.Context) error {
	if e.config.SyncLogRetention <= 0 || e.stopPurge != nil {
		return nil
	}
	ctx, cancel := context.WithCancel(context.Background())
	e.stopPurge = cancel
	e.purgeDone = make(chan struct{})
	go e.purgeLoop(ctx)
	return nil
}

// Stop halts background work and notifies plugins of shutdown.
func (e *Engine) Stop(ctx context.Context) error {
	if e.stopPurge != nil {
		e.stopPurge()
		<-e.purgeDone
		e.stopPurge = nil
	}
	if e.plugins != nil {
		e.plugins.EmitShutdown(ctx)
	}
	return nil
}

// ActiveRoles reads the grants of principalID in the context tenant and
// returns the roles active at now.
func (e *Engine) ActiveRoles(ctx context.Context, principalID string, now time.Time) ([]role.Name, error) {
	scope := scopeFromContext(ctx)
	grants, err := e.store.ListGrantsByPrincipal(ctx, scope.tenantID, principalID)
	if err != nil {
		return nil, unavailable(err)
	}
	return ActiveRoles(grants, now), nil
}

// Tier returns the billing tier of principalID. A principal that was never
// reconciled is basic.
func (e *Engine) Tier(ctx context.Context, principalID string) (subscription.Tier, error) {
	st, err := e.subscription(ctx, principalID)
	if err != nil {
		return "", err
	}
	if st == nil {
		return subscription.TierBasic, nil
	}
	return st.Tier, nil
}

// Entitlements resolves the roles and tier of principalID at now and
// evaluates them.
func (e *Engine) Entitlements(ctx context.Context, principalID string, now time.Time) (Entitlements, []role.Name, error) {
	roles, err := e.ActiveRoles(ctx, principalID, now)
	if err != nil {
		return Entitlements{}, nil, err
	}
	tier, err := e.Tier(ctx, principalID)
	if err != nil {
		return Entitlements{}, nil, err
	}
	return Evaluate(roles, tier), roles, nil
}

// Subscription returns the stored subscription state of principalID, or
// ErrNotFound when none was ever reconciled.
func (e *Engine) Subscription(ctx context.Context, principalID string) (*subscription.State, error) {
	st, err := e.subscription(ctx, principalID)
	if err != nil {
		return nil, err
	}
	if st == nil {
		return nil, fmt.Errorf("%w: subscription for %q", ErrNotFound, principalID)
	}
	return st, nil
}

func (e *Engine) subscription(ctx context.Context, principalID string) (*subscription.State, error) {
	scope := scopeFromContext(ctx)
	st, err := e.store.GetSubscription(ctx, scope.tenantID, principalID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, unavailable(err)
	}
	return st, nil
}

func unavailable(err error) error {
	return fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
}
