package plugin

import (
	"context"
	"log/slog"

	"github.com/xraph/keeper/grant"
	"github.com/xraph/keeper/synclog"
)

// Named entry types pair a hook with the plugin name for logging.

type afterDecideEntry struct {
	name string
	hook AfterDecide
}
type roleGrantedEntry struct {
	name string
	hook RoleGranted
}
type roleRevokedEntry struct {
	name string
	hook RoleRevoked
}
type subscriptionReconciledEntry struct {
	name string
	hook SubscriptionReconciled
}
type shutdownEntry struct {
	name string
	hook Shutdown
}

// Registry holds registered plugins and dispatches lifecycle events.
// It type-caches plugins at registration time so emit calls iterate
// only over plugins implementing the relevant hook.
type Registry struct {
	plugins []Plugin
	logger  *slog.Logger

	afterDecide            []afterDecideEntry
	roleGranted            []roleGrantedEntry
	roleRevoked            []roleRevokedEntry
	subscriptionReconciled []subscriptionReconciledEntry
	shutdown               []shutdownEntry
}

// NewRegistry creates a plugin registry with the given logger.
func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{logger: logger}
}

// Register adds a plugin and type-asserts it into all applicable
// hook caches. Plugins are notified in registration order.
func (r *Registry) Register(p Plugin) {
	r.plugins = append(r.plugins, p)
	name := p.Name()

	if h, ok := p.(AfterDecide); ok {
		r.afterDecide = append(r.afterDecide, afterDecideEntry{name, h})
	}
	if h, ok := p.(RoleGranted); ok {
		r.roleGranted = append(r.roleGranted, roleGrantedEntry{name, h})
	}
	if h, ok := p.(RoleRevoked); ok {
		r.roleRevoked = append(r.roleRevoked, roleRevokedEntry{name, h})
	}
	if h, ok := p.(SubscriptionReconciled); ok {
		r.subscriptionReconciled = append(r.subscriptionReconciled, subscriptionReconciledEntry{name, h})
	}
	if h, ok := p.(Shutdown); ok {
		r.shutdown = append(r.shutdown, shutdownEntry{name, h})
	}
}

// Plugins returns all registered plugins.
func (r *Registry) Plugins() []Plugin { return r.plugins }

// EmitAfterDecide notifies all plugins that implement AfterDecide.
func (r *Registry) EmitAfterDecide(ctx context.Context, decision any) {
	for _, e := range r.afterDecide {
		if err := e.hook.OnAfterDecide(ctx, decision); err != nil {
			r.logHookError("OnAfterDecide", e.name, err)
		}
	}
}

// EmitRoleGranted notifies all plugins that implement RoleGranted.
func (r *Registry) EmitRoleGranted(ctx context.Context, g *grant.Grant) {
	for _, e := range r.roleGranted {
		if err := e.hook.OnRoleGranted(ctx, g); err != nil {
			r.logHookError("OnRoleGranted", e.name, err)
		}
	}
}

// EmitRoleRevoked notifies all plugins that implement RoleRevoked.
func (r *Registry) EmitRoleRevoked(ctx context.Context, rev *grant.Revocation) {
	for _, e := range r.roleRevoked {
		if err := e.hook.OnRoleRevoked(ctx, rev); err != nil {
			r.logHookError("OnRoleRevoked", e.name, err)
		}
	}
}

// EmitSubscriptionReconciled notifies all plugins that implement
// SubscriptionReconciled.
func (r *Registry) EmitSubscriptionReconciled(ctx context.Context, entry *synclog.Entry) {
	for _, e := range r.subscriptionReconciled {
		if err := e.hook.OnSubscriptionReconciled(ctx, entry); err != nil {
			r.logHookError("OnSubscriptionReconciled", e.name, err)
		}
	}
}

// EmitShutdown notifies all plugins that implement Shutdown.
func (r *Registry) EmitShutdown(ctx context.Context) {
	for _, e := range r.shutdown {
		if err := e.hook.OnShutdown(ctx); err != nil {
			r.logHookError("OnShutdown", e.name, err)
		}
	}
}

// logHookError logs a warning when a lifecycle hook returns an error.
// Errors from hooks are never propagated.
func (r *Registry) logHookError(hook, pluginName string, err error) {
	r.logger.Warn("plugin hook error",
		slog.String("hook", hook),
		slog.String("plugin", pluginName),
		slog.String("error", err.Error()),
	)
}
