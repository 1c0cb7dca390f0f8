package keeper

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/xraph/keeper/grant"
	"github.com/xraph/keeper/role"
	"github.com/xraph/keeper/subscription"
	"github.com/xraph/keeper/synclog"
)

func TestRolesOfSelfOrAdmin(t *testing.T) {
	ctx := testCtx()
	eng, s, _ := newTestEngine(t)
	seedAdmin(t, s, "root")

	if _, err := eng.Assign(ctx, "root", "u1", "tester", AssignOptions{}); err != nil {
		t.Fatal(err)
	}

	roles, err := eng.RolesOf(ctx, "u1", "u1")
	if err != nil || !containsRole(roles, role.Tester) {
		t.Fatalf("self read: roles=%v err=%v", roles, err)
	}
	if _, err := eng.RolesOf(ctx, "root", "u1"); err != nil {
		t.Fatalf("admin read: %v", err)
	}
	if _, err := eng.RolesOf(ctx, "u2", "u1"); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
	if _, err := eng.RolesOf(ctx, "", "u1"); !errors.Is(err, ErrUnauthenticated) {
		t.Fatalf("expected ErrUnauthenticated, got %v", err)
	}
}

func TestSubscriptionOf(t *testing.T) {
	ctx := testCtx()
	eng, _, clock := newTestEngine(t)

	if _, err := eng.SubscriptionOf(ctx, "u1", "u1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound before any event, got %v", err)
	}

	if _, err := eng.Reconcile(ctx, &BillingEvent{
		PrincipalID:    "u1",
		Tier:           subscription.TierPremium,
		Status:         subscription.StatusActive,
		EventTimestamp: clock.Now().Add(-time.Minute),
	}); err != nil {
		t.Fatal(err)
	}

	st, err := eng.SubscriptionOf(ctx, "u1", "u1")
	if err != nil {
		t.Fatal(err)
	}
	if st.Tier != subscription.TierPremium || st.Source != subscription.SourceBilling {
		t.Fatalf("unexpected state %+v", st)
	}
	if _, err := eng.SubscriptionOf(ctx, "u2", "u1"); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
}

func TestGrantHistoryAdminOnly(t *testing.T) {
	ctx := testCtx()
	eng, s, _ := newTestEngine(t)
	seedAdmin(t, s, "root")

	if _, err := eng.Assign(ctx, "root", "u1", "donator", AssignOptions{}); err != nil {
		t.Fatal(err)
	}
	if err := eng.Remove(ctx, "root", "u1", "donator", "refund"); err != nil {
		t.Fatal(err)
	}

	grants, err := eng.GrantHistory(ctx, "root", "u1")
	if err != nil {
		t.Fatal(err)
	}
	if len(grants) != 1 || grants[0].RevokedAt == nil || grants[0].RevokeReason != "refund" {
		t.Fatalf("expected one revoked grant with reason, got %+v", grants)
	}

	// History is admin-only even for the principal itself.
	if _, err := eng.GrantHistory(ctx, "u1", "u1"); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
}

func TestSyncLogsScopedToTenant(t *testing.T) {
	eng, s, clock := newTestEngine(t)
	seedAdmin(t, s, "root")

	ev := func(ctx context.Context, principal string) {
		t.Helper()
		if _, err := eng.Reconcile(ctx, &BillingEvent{
			PrincipalID:    principal,
			Tier:           subscription.TierBasic,
			Status:         subscription.StatusActive,
			EventTimestamp: clock.Now().Add(-time.Minute),
		}); err != nil {
			t.Fatal(err)
		}
	}
	ev(testCtx(), "u1")
	ev(testCtx(), "u2")
	ev(WithTenant(context.Background(), "app1", "t2"), "u3")

	entries, total, err := eng.SyncLogs(testCtx(), "root", synclog.QueryFilter{Limit: 1})
	if err != nil {
		t.Fatal(err)
	}
	if total != 2 || len(entries) != 1 {
		t.Fatalf("expected total=2 page=1, got total=%d page=%d", total, len(entries))
	}
	if entries[0].TenantID != "t1" {
		t.Fatalf("expected tenant t1, got %s", entries[0].TenantID)
	}

	// A caller-supplied tenant is ignored in favour of the context tenant.
	_, total, err = eng.SyncLogs(testCtx(), "root", synclog.QueryFilter{TenantID: "t2"})
	if err != nil || total != 2 {
		t.Fatalf("expected context tenant to win, total=%d err=%v", total, err)
	}

	if _, _, err := eng.SyncLogs(testCtx(), "u1", synclog.QueryFilter{}); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
}

func TestListGrantsAdminOnly(t *testing.T) {
	ctx := testCtx()
	eng, s, clock := newTestEngine(t)
	seedAdmin(t, s, "root")

	for _, target := range []string{"u1", "u2"} {
		if _, err := eng.Assign(ctx, "root", target, "tester", AssignOptions{}); err != nil {
			t.Fatal(err)
		}
	}
	if err := eng.Remove(ctx, "root", "u2", "tester", ""); err != nil {
		t.Fatal(err)
	}
	if _, err := eng.Assign(WithTenant(context.Background(), "app1", "t2"), "root", "u3", "tester", AssignOptions{}); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected root to be no admin in t2, got %v", err)
	}

	grants, total, err := eng.ListGrants(ctx, "root", grant.ListFilter{Role: "Tester", TenantID: "t2"})
	if err != nil {
		t.Fatal(err)
	}
	if total != 2 || len(grants) != 2 {
		t.Fatalf("expected 2 tester grants in t1, got total=%d page=%d", total, len(grants))
	}

	now := clock.Now()
	_, total, err = eng.ListGrants(ctx, "root", grant.ListFilter{Role: role.Tester, ActiveAt: &now})
	if err != nil || total != 1 {
		t.Fatalf("expected 1 active tester grant, total=%d err=%v", total, err)
	}

	if _, _, err := eng.ListGrants(ctx, "root", grant.ListFilter{Role: "owner"}); !errors.Is(err, ErrInvalidRole) {
		t.Fatalf("expected ErrInvalidRole, got %v", err)
	}
	if _, _, err := eng.ListGrants(ctx, "u1", grant.ListFilter{}); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
}
