package metrics

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/xraph/keeper"
	"github.com/xraph/keeper/grant"
	"github.com/xraph/keeper/id"
	"github.com/xraph/keeper/role"
	"github.com/xraph/keeper/store/memory"
	"github.com/xraph/keeper/subscription"
)

func TestPluginCountsEngineEvents(t *testing.T) {
	reg := prometheus.NewRegistry()
	p := New(reg)

	now := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	s := memory.New()
	ctx := keeper.WithTenant(context.Background(), "app1", "t1")
	_, _, _ = s.PutGrant(ctx, &grant.Grant{
		ID: id.NewGrantID(), TenantID: "t1", PrincipalID: "root",
		Role: role.Admin, GrantedBy: "bootstrap", GrantedAt: now.Add(-time.Hour),
	})

	eng, err := keeper.NewEngine(
		keeper.WithStore(s),
		keeper.WithClock(func() time.Time { return now }),
		keeper.WithPlugin(p),
	)
	if err != nil {
		t.Fatal(err)
	}

	if _, err := eng.Assign(ctx, "root", "u1", "moderator", keeper.AssignOptions{}); err != nil {
		t.Fatal(err)
	}
	if err := eng.Remove(ctx, "root", "u1", "moderator", "test"); err != nil {
		t.Fatal(err)
	}
	_, _ = eng.Decide(ctx, "root", keeper.CapabilityAdmin)
	_, _ = eng.Decide(ctx, "", keeper.CapabilityAdmin)
	_, _ = eng.Reconcile(ctx, &keeper.BillingEvent{
		PrincipalID: "u1", Tier: subscription.TierPremium,
		Status: subscription.StatusActive, EventTimestamp: now,
	})

	if got := testutil.ToFloat64(p.grants.WithLabelValues("moderator")); got != 1 {
		t.Fatalf("expected 1 grant, got %v", got)
	}
	if got := testutil.ToFloat64(p.revocations.WithLabelValues("moderator")); got != 1 {
		t.Fatalf("expected 1 revocation, got %v", got)
	}
	if got := testutil.ToFloat64(p.decisions.WithLabelValues("admin", "allow")); got != 1 {
		t.Fatalf("expected 1 allow, got %v", got)
	}
	if got := testutil.ToFloat64(p.decisions.WithLabelValues("admin", "deny_unauthenticated")); got != 1 {
		t.Fatalf("expected 1 unauthenticated deny, got %v", got)
	}
	if got := testutil.ToFloat64(p.reconciliation.WithLabelValues("applied", "premium")); got != 1 {
		t.Fatalf("expected 1 applied reconciliation, got %v", got)
	}
}

func TestPluginIgnoresForeignDecision(t *testing.T) {
	p := New(prometheus.NewRegistry())
	if err := p.OnAfterDecide(context.Background(), "not a decision"); err != nil {
		t.Fatal(err)
	}
	if n := testutil.CollectAndCount(p.decisions); n != 0 {
		t.Fatalf("expected no series, got %d", n)
	}
}
