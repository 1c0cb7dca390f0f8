// Package storetest holds the behavioural suite every store.Store backend
// must pass. Backends call Run from their own tests with a factory that
// returns an empty, migrated store.
package storetest

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/xraph/keeper/grant"
	"github.com/xraph/keeper/id"
	"github.com/xraph/keeper/role"
	"github.com/xraph/keeper/store"
	"github.com/xraph/keeper/subscription"
	"github.com/xraph/keeper/synclog"
)

// Factory returns an empty store ready for use.
type Factory func(t *testing.T) store.Store

// Base is the reference instant used by every case.
var Base = time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

// Run executes the suite, one fresh store per case.
func Run(t *testing.T, newStore Factory) {
	t.Helper()

	cases := []struct {
		name string
		fn   func(t *testing.T, s store.Store)
	}{
		{"PutGrantIdempotent", testPutGrantIdempotent},
		{"PutGrantConcurrent", testPutGrantConcurrent},
		{"PutGrantStampsLapsed", testPutGrantStampsLapsed},
		{"ListGrantsByPrincipal", testListGrantsByPrincipal},
		{"RevokeGrant", testRevokeGrant},
		{"RevokeGrantIssuedBy", testRevokeGrantIssuedBy},
		{"RevokeGrantSkipsLapsed", testRevokeGrantSkipsLapsed},
		{"ListGrantsFilter", testListGrantsFilter},
		{"ApplySubscriptionOrdering", testApplySubscriptionOrdering},
		{"ForceSubscription", testForceSubscription},
		{"SubscriptionKeyIsolation", testSubscriptionKeyIsolation},
		{"SyncLogs", testSyncLogs},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			tc.fn(t, newStore(t))
		})
	}
}

// NewGrant builds an unexpiring grant in tenant t1.
func NewGrant(principal string, r role.Name, at time.Time) *grant.Grant {
	return &grant.Grant{
		ID:          id.NewGrantID(),
		TenantID:    "t1",
		AppID:       "app1",
		PrincipalID: principal,
		Role:        r,
		GrantedBy:   "admin-1",
		GrantedAt:   at,
	}
}

func mustPut(t *testing.T, s store.Store, g *grant.Grant) *grant.Grant {
	t.Helper()
	stored, _, err := s.PutGrant(context.Background(), g)
	if err != nil {
		t.Fatalf("put grant: %v", err)
	}
	return stored
}

func testPutGrantIdempotent(t *testing.T, s store.Store) {
	ctx := context.Background()

	first, created, err := s.PutGrant(ctx, NewGrant("u1", role.Moderator, Base))
	if err != nil {
		t.Fatal(err)
	}
	if !created {
		t.Fatal("expected first grant to be created")
	}

	second, created, err := s.PutGrant(ctx, NewGrant("u1", role.Moderator, Base.Add(time.Minute)))
	if err != nil {
		t.Fatal(err)
	}
	if created {
		t.Fatal("expected duplicate grant to be skipped")
	}
	if second.ID.String() != first.ID.String() {
		t.Fatalf("expected existing grant %s, got %s", first.ID, second.ID)
	}

	list, err := s.ListGrantsByPrincipal(ctx, "t1", "u1")
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 1 {
		t.Fatalf("expected 1 grant, got %d", len(list))
	}
	if !list[0].GrantedAt.Equal(Base) {
		t.Fatalf("expected granted_at %v, got %v", Base, list[0].GrantedAt)
	}
}

func testPutGrantConcurrent(t *testing.T, s store.Store) {
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, _, err := s.PutGrant(ctx, NewGrant("u1", role.Admin, Base)); err != nil {
				t.Errorf("put grant: %v", err)
			}
		}()
	}
	wg.Wait()

	at := Base
	active, err := s.CountGrants(ctx, &grant.ListFilter{TenantID: "t1", PrincipalID: "u1", ActiveAt: &at})
	if err != nil {
		t.Fatal(err)
	}
	if active != 1 {
		t.Fatalf("expected exactly 1 active grant, got %d", active)
	}
}

func testPutGrantStampsLapsed(t *testing.T, s store.Store) {
	ctx := context.Background()

	exp := Base.Add(time.Hour)
	g := NewGrant("u1", role.Tester, Base)
	g.ExpiresAt = &exp
	mustPut(t, s, g)

	_, created, err := s.PutGrant(ctx, NewGrant("u1", role.Tester, Base.Add(2*time.Hour)))
	if err != nil {
		t.Fatal(err)
	}
	if !created {
		t.Fatal("expected new grant after the previous one lapsed")
	}

	list, err := s.ListGrantsByPrincipal(ctx, "t1", "u1")
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 2 {
		t.Fatalf("expected 2 grants, got %d", len(list))
	}
	old := list[1]
	if old.RevokedAt == nil || !old.RevokedAt.Equal(exp) {
		t.Fatalf("expected lapsed grant revoked at %v, got %v", exp, old.RevokedAt)
	}
	if old.RevokedBy != grant.SystemActor || old.RevokeReason != grant.ReasonExpired {
		t.Fatalf("unexpected stamp: %q %q", old.RevokedBy, old.RevokeReason)
	}
	if list[0].RevokedAt != nil {
		t.Fatalf("expected new grant unrevoked, got %v", list[0].RevokedAt)
	}
}

func testListGrantsByPrincipal(t *testing.T, s store.Store) {
	ctx := context.Background()

	mustPut(t, s, NewGrant("u1", role.Donator, Base))
	mustPut(t, s, NewGrant("u1", role.Admin, Base.Add(2*time.Minute)))
	mustPut(t, s, NewGrant("u1", role.Tester, Base.Add(time.Minute)))
	mustPut(t, s, NewGrant("u2", role.Admin, Base))
	other := NewGrant("u1", role.Moderator, Base)
	other.TenantID = "t2"
	mustPut(t, s, other)

	list, err := s.ListGrantsByPrincipal(ctx, "t1", "u1")
	if err != nil {
		t.Fatal(err)
	}
	want := []role.Name{role.Admin, role.Tester, role.Donator}
	if len(list) != len(want) {
		t.Fatalf("expected %d grants, got %d", len(want), len(list))
	}
	for i, g := range list {
		if g.Role != want[i] {
			t.Fatalf("position %d: expected %s, got %s", i, want[i], g.Role)
		}
	}

	none, err := s.ListGrantsByPrincipal(ctx, "t1", "nobody")
	if err != nil {
		t.Fatal(err)
	}
	if len(none) != 0 {
		t.Fatalf("expected no grants, got %d", len(none))
	}
}

func testRevokeGrant(t *testing.T, s store.Store) {
	ctx := context.Background()

	mustPut(t, s, NewGrant("u1", role.Moderator, Base))

	rev := &grant.Revocation{
		TenantID:    "t1",
		PrincipalID: "u1",
		Role:        role.Moderator,
		RevokedBy:   "admin-1",
		Reason:      "rotation",
		At:          Base.Add(time.Hour),
	}
	n, err := s.RevokeGrant(ctx, rev)
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Fatalf("expected 1 revoked, got %d", n)
	}

	n, err = s.RevokeGrant(ctx, rev)
	if err != nil {
		t.Fatal(err)
	}
	if n != 0 {
		t.Fatalf("expected second revoke to be a no-op, got %d", n)
	}

	list, err := s.ListGrantsByPrincipal(ctx, "t1", "u1")
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 1 || list[0].RevokedBy != "admin-1" || list[0].RevokeReason != "rotation" {
		t.Fatalf("revoked grant must be kept with its audit fields: %+v", list)
	}
	if list[0].RevokedAt == nil || !list[0].RevokedAt.Equal(rev.At) {
		t.Fatalf("expected revoked_at %v, got %v", rev.At, list[0].RevokedAt)
	}
}

func testRevokeGrantIssuedBy(t *testing.T, s store.Store) {
	ctx := context.Background()

	mustPut(t, s, NewGrant("u1", role.Subscriber, Base))

	rev := &grant.Revocation{
		TenantID:    "t1",
		PrincipalID: "u1",
		Role:        role.Subscriber,
		IssuedBy:    "billing-sync",
		RevokedBy:   "billing-sync",
		At:          Base.Add(time.Minute),
	}
	n, err := s.RevokeGrant(ctx, rev)
	if err != nil {
		t.Fatal(err)
	}
	if n != 0 {
		t.Fatalf("expected grant issued by another actor to survive, got %d revoked", n)
	}

	rev.IssuedBy = "admin-1"
	n, err = s.RevokeGrant(ctx, rev)
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Fatalf("expected matching issuer to revoke, got %d", n)
	}
}

func testRevokeGrantSkipsLapsed(t *testing.T, s store.Store) {
	ctx := context.Background()

	exp := Base.Add(time.Hour)
	g := NewGrant("u1", role.Tester, Base)
	g.ExpiresAt = &exp
	mustPut(t, s, g)

	n, err := s.RevokeGrant(ctx, &grant.Revocation{
		TenantID:    "t1",
		PrincipalID: "u1",
		Role:        role.Tester,
		RevokedBy:   "admin-1",
		At:          Base.Add(2 * time.Hour),
	})
	if err != nil {
		t.Fatal(err)
	}
	if n != 0 {
		t.Fatalf("expected lapsed grant to be left alone, got %d", n)
	}
}

func testListGrantsFilter(t *testing.T, s store.Store) {
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		g := NewGrant("u"+string(rune('a'+i)), role.Subscriber, Base.Add(time.Duration(i)*time.Minute))
		if i%2 == 0 {
			g.GrantedBy = "billing-sync"
		}
		mustPut(t, s, g)
	}

	list, err := s.ListGrants(ctx, &grant.ListFilter{TenantID: "t1", GrantedBy: "billing-sync"})
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 3 {
		t.Fatalf("expected 3 grants, got %d", len(list))
	}

	page, err := s.ListGrants(ctx, &grant.ListFilter{TenantID: "t1", Limit: 2, Offset: 1})
	if err != nil {
		t.Fatal(err)
	}
	if len(page) != 2 || page[0].PrincipalID != "ud" {
		t.Fatalf("expected second page starting at ud, got %+v", page)
	}

	count, err := s.CountGrants(ctx, &grant.ListFilter{TenantID: "t1", Limit: 2})
	if err != nil {
		t.Fatal(err)
	}
	if count != 5 {
		t.Fatalf("count must ignore pagination, got %d", count)
	}

	count, err = s.CountGrants(ctx, &grant.ListFilter{TenantID: "t1", Role: role.Admin})
	if err != nil {
		t.Fatal(err)
	}
	if count != 0 {
		t.Fatalf("expected no admin grants, got %d", count)
	}
}

func testApplySubscriptionOrdering(t *testing.T, s store.Store) {
	ctx := context.Background()

	if _, err := s.GetSubscription(ctx, "t1", "u1"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	newer := &subscription.State{
		TenantID: "t1", PrincipalID: "u1",
		Tier: subscription.TierPremium, Status: subscription.StatusActive,
		EventAt: Base.Add(10 * time.Second), Source: subscription.SourceBilling,
		UpdatedAt: Base,
	}
	older := &subscription.State{
		TenantID: "t1", PrincipalID: "u1",
		Tier: subscription.TierBasic, Status: subscription.StatusCanceled,
		EventAt: Base.Add(5 * time.Second), Source: subscription.SourceBilling,
		UpdatedAt: Base,
	}

	applied, err := s.ApplySubscription(ctx, newer)
	if err != nil || !applied {
		t.Fatalf("expected newer to apply: applied=%v err=%v", applied, err)
	}
	applied, err = s.ApplySubscription(ctx, older)
	if err != nil || applied {
		t.Fatalf("expected older to be stale: applied=%v err=%v", applied, err)
	}

	got, err := s.GetSubscription(ctx, "t1", "u1")
	if err != nil {
		t.Fatal(err)
	}
	if got.Tier != subscription.TierPremium || !got.EventAt.Equal(newer.EventAt) {
		t.Fatalf("expected premium at %v, got %s at %v", newer.EventAt, got.Tier, got.EventAt)
	}

	again := *newer
	again.Status = subscription.StatusTrialing
	applied, err = s.ApplySubscription(ctx, &again)
	if err != nil || !applied {
		t.Fatalf("expected equal timestamp to apply: applied=%v err=%v", applied, err)
	}
	got, err = s.GetSubscription(ctx, "t1", "u1")
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != subscription.StatusTrialing {
		t.Fatalf("expected trialing, got %s", got.Status)
	}
}

func testForceSubscription(t *testing.T, s store.Store) {
	ctx := context.Background()

	if _, err := s.ApplySubscription(ctx, &subscription.State{
		TenantID: "t1", PrincipalID: "u1",
		Tier: subscription.TierPremium, Status: subscription.StatusActive,
		EventAt: Base.Add(time.Hour), Source: subscription.SourceBilling,
		UpdatedAt: Base,
	}); err != nil {
		t.Fatal(err)
	}

	if err := s.ForceSubscription(ctx, &subscription.State{
		TenantID: "t1", PrincipalID: "u1",
		Tier: subscription.TierBasic, Status: subscription.StatusCanceled,
		EventAt: Base, Source: subscription.SourceOverride, UpdatedBy: "root",
		UpdatedAt: Base,
	}); err != nil {
		t.Fatal(err)
	}

	got, err := s.GetSubscription(ctx, "t1", "u1")
	if err != nil {
		t.Fatal(err)
	}
	if got.Tier != subscription.TierBasic || got.Source != subscription.SourceOverride || got.UpdatedBy != "root" {
		t.Fatalf("expected override to win, got %+v", got)
	}
}

func testSubscriptionKeyIsolation(t *testing.T, s store.Store) {
	ctx := context.Background()

	a := &subscription.State{
		TenantID: "a/b", PrincipalID: "c",
		Tier: subscription.TierPremium, Status: subscription.StatusActive,
		EventAt: Base.Add(time.Hour), Source: subscription.SourceBilling,
		UpdatedAt: Base,
	}
	b := &subscription.State{
		TenantID: "a", PrincipalID: "b/c",
		Tier: subscription.TierBasic, Status: subscription.StatusActive,
		EventAt: Base, Source: subscription.SourceBilling,
		UpdatedAt: Base,
	}
	for _, st := range []*subscription.State{a, b} {
		applied, err := s.ApplySubscription(ctx, st)
		if err != nil || !applied {
			t.Fatalf("expected %s/%s to apply: applied=%v err=%v", st.TenantID, st.PrincipalID, applied, err)
		}
	}

	got, err := s.GetSubscription(ctx, "a", "b/c")
	if err != nil {
		t.Fatal(err)
	}
	if got.Tier != subscription.TierBasic || got.TenantID != "a" {
		t.Fatalf("expected tenant a to keep its own state, got %+v", got)
	}
	got, err = s.GetSubscription(ctx, "a/b", "c")
	if err != nil {
		t.Fatal(err)
	}
	if got.Tier != subscription.TierPremium {
		t.Fatalf("expected tenant a/b to keep its own state, got %+v", got)
	}
}

func testSyncLogs(t *testing.T, s store.Store) {
	ctx := context.Background()

	for i, outcome := range []synclog.Outcome{synclog.OutcomeApplied, synclog.OutcomeStale, synclog.OutcomeApplied} {
		e := &synclog.Entry{
			ID:          id.NewSyncLogID(),
			TenantID:    "t1",
			PrincipalID: "u1",
			DeliveryID:  "evt_" + string(rune('a'+i)),
			Tier:        string(subscription.TierBasic),
			Status:      string(subscription.StatusActive),
			EventAt:     Base,
			Outcome:     outcome,
			CreatedAt:   Base.Add(time.Duration(i) * time.Minute),
		}
		if err := s.CreateSyncLog(ctx, e); err != nil {
			t.Fatal(err)
		}
	}

	list, err := s.ListSyncLogs(ctx, &synclog.QueryFilter{TenantID: "t1"})
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(list))
	}
	if list[0].DeliveryID != "evt_c" {
		t.Fatalf("expected newest first, got %s", list[0].DeliveryID)
	}

	count, err := s.CountSyncLogs(ctx, &synclog.QueryFilter{TenantID: "t1", Outcome: synclog.OutcomeApplied})
	if err != nil {
		t.Fatal(err)
	}
	if count != 2 {
		t.Fatalf("expected 2 applied, got %d", count)
	}

	purged, err := s.PurgeSyncLogs(ctx, Base.Add(90*time.Second))
	if err != nil {
		t.Fatal(err)
	}
	if purged != 2 {
		t.Fatalf("expected 2 purged, got %d", purged)
	}
	count, err = s.CountSyncLogs(ctx, &synclog.QueryFilter{TenantID: "t1"})
	if err != nil {
		t.Fatal(err)
	}
	if count != 1 {
		t.Fatalf("expected 1 entry left, got %d", count)
	}
}
