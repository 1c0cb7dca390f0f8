// Package plugin defines the plugin system for Keeper.
// Plugins are notified of lifecycle events (decision made, role granted,
// subscription reconciled, etc.) and can react with logging, metrics or
// tracing.
//
// Each lifecycle hook is a separate interface so plugins opt in only
// to the events they care about.
package plugin

import (
	"context"

	"github.com/xraph/keeper/grant"
	"github.com/xraph/keeper/synclog"
)

// Plugin is the base interface all plugins must implement.
type Plugin interface {
	// Name returns a unique human-readable name for the plugin.
	Name() string
}

// ──────────────────────────────────────────────────
// Decision hook
// ──────────────────────────────────────────────────

// AfterDecide is called after a guard decision completes, allow or deny.
// The decision parameter is *keeper.Decision (passed as any to avoid an
// import cycle).
type AfterDecide interface {
	OnAfterDecide(ctx context.Context, decision any) error
}

// ──────────────────────────────────────────────────
// Grant lifecycle hooks
// ──────────────────────────────────────────────────

// RoleGranted is called after a new grant is stored.
type RoleGranted interface {
	OnRoleGranted(ctx context.Context, g *grant.Grant) error
}

// RoleRevoked is called after at least one grant was revoked.
type RoleRevoked interface {
	OnRoleRevoked(ctx context.Context, r *grant.Revocation) error
}

// ──────────────────────────────────────────────────
// Billing hooks
// ──────────────────────────────────────────────────

// SubscriptionReconciled is called after a billing event or an override was
// applied to a subscription state.
type SubscriptionReconciled interface {
	OnSubscriptionReconciled(ctx context.Context, e *synclog.Entry) error
}

// ──────────────────────────────────────────────────
// Shutdown hook
// ──────────────────────────────────────────────────

// Shutdown is called during graceful shutdown.
type Shutdown interface {
	OnShutdown(ctx context.Context) error
}
