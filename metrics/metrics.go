// Package metrics provides a Keeper plugin that exports decisions, grant
// changes and billing reconciliation as Prometheus counters.
package metrics

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/xraph/keeper"
	"github.com/xraph/keeper/grant"
	"github.com/xraph/keeper/plugin"
	"github.com/xraph/keeper/synclog"
)

// Compile-time interface checks.
var (
	_ plugin.Plugin                 = (*Plugin)(nil)
	_ plugin.AfterDecide            = (*Plugin)(nil)
	_ plugin.RoleGranted            = (*Plugin)(nil)
	_ plugin.RoleRevoked            = (*Plugin)(nil)
	_ plugin.SubscriptionReconciled = (*Plugin)(nil)
)

// Plugin records Keeper lifecycle events as Prometheus metrics.
type Plugin struct {
	decisions      *prometheus.CounterVec
	grants         *prometheus.CounterVec
	revocations    *prometheus.CounterVec
	reconciliation *prometheus.CounterVec
}

// New registers the Keeper metrics with reg and returns the plugin.
// Passing prometheus.DefaultRegisterer exposes them on the default handler.
func New(reg prometheus.Registerer) *Plugin {
	f := promauto.With(reg)
	return &Plugin{
		// keeper_decisions_total: guard decisions by capability and outcome.
		decisions: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "keeper_decisions_total",
				Help: "Authorization decisions by capability and outcome",
			},
			[]string{"capability", "outcome"},
		),
		grants: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "keeper_role_grants_total",
				Help: "Role grants created",
			},
			[]string{"role"},
		),
		revocations: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "keeper_role_revocations_total",
				Help: "Role revocations",
			},
			[]string{"role"},
		),
		reconciliation: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "keeper_subscription_updates_total",
				Help: "Subscription states written by billing reconciliation or override",
			},
			[]string{"outcome", "tier"},
		),
	}
}

// Name implements plugin.Plugin.
func (p *Plugin) Name() string { return "keeper-metrics" }

// OnAfterDecide implements plugin.AfterDecide.
func (p *Plugin) OnAfterDecide(_ context.Context, decision any) error {
	dec, ok := decision.(*keeper.Decision)
	if !ok || dec == nil {
		return nil
	}
	p.decisions.WithLabelValues(string(dec.Capability), string(dec.Outcome)).Inc()
	return nil
}

// OnRoleGranted implements plugin.RoleGranted.
func (p *Plugin) OnRoleGranted(_ context.Context, g *grant.Grant) error {
	p.grants.WithLabelValues(string(g.Role)).Inc()
	return nil
}

// OnRoleRevoked implements plugin.RoleRevoked.
func (p *Plugin) OnRoleRevoked(_ context.Context, r *grant.Revocation) error {
	p.revocations.WithLabelValues(string(r.Role)).Inc()
	return nil
}

// OnSubscriptionReconciled implements plugin.SubscriptionReconciled.
func (p *Plugin) OnSubscriptionReconciled(_ context.Context, e *synclog.Entry) error {
	p.reconciliation.WithLabelValues(string(e.Outcome), e.Tier).Inc()
	return nil
}
