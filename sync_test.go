package keeper

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/xraph/keeper/grant"
	"github.com/xraph/keeper/role"
	"github.com/xraph/keeper/store/memory"
	"github.com/xraph/keeper/subscription"
)

// holdingStore parks the first subscriber PutGrant until released, so a
// test can let a newer reconcile finish in between.
type holdingStore struct {
	*memory.Store

	mu      sync.Mutex
	armed   bool
	held    chan struct{}
	release chan struct{}
}

func newHoldingStore() *holdingStore {
	return &holdingStore{
		Store:   memory.New(),
		armed:   true,
		held:    make(chan struct{}),
		release: make(chan struct{}),
	}
}

func (h *holdingStore) PutGrant(ctx context.Context, g *grant.Grant) (*grant.Grant, bool, error) {
	h.mu.Lock()
	hold := h.armed && g.Role == role.Subscriber
	if hold {
		h.armed = false
	}
	h.mu.Unlock()

	if hold {
		close(h.held)
		<-h.release
	}
	return h.Store.PutGrant(ctx, g)
}

func TestSubscriberRoleSyncInterleaved(t *testing.T) {
	ctx := testCtx()
	hs := newHoldingStore()
	cfg := DefaultConfig()
	cfg.SyncSubscriberRole = true
	eng, _, clock := newTestEngine(t, WithConfig(cfg), WithStore(hs))

	older := &BillingEvent{
		DeliveryID:     "evt_up",
		PrincipalID:    "u1",
		Tier:           subscription.TierPremium,
		Status:         subscription.StatusActive,
		EventTimestamp: t0.Add(-2 * time.Minute),
	}
	newer := &BillingEvent{
		DeliveryID:     "evt_down",
		PrincipalID:    "u1",
		Tier:           subscription.TierBasic,
		Status:         subscription.StatusCanceled,
		EventTimestamp: t0.Add(-time.Minute),
	}

	done := make(chan error, 1)
	go func() {
		_, err := eng.Reconcile(ctx, older)
		done <- err
	}()

	// The older event has applied its state and is parked before its grant.
	<-hs.held

	if _, err := eng.Reconcile(ctx, newer); err != nil {
		t.Fatal(err)
	}

	close(hs.release)
	if err := <-done; err != nil {
		t.Fatal(err)
	}

	st, err := hs.GetSubscription(context.Background(), "t1", "u1")
	if err != nil {
		t.Fatal(err)
	}
	if st.Tier != subscription.TierBasic || st.Status != subscription.StatusCanceled {
		t.Fatalf("expected newer state stored, got %s/%s", st.Tier, st.Status)
	}

	ent, roles, err := eng.Entitlements(ctx, "u1", clock.Now())
	if err != nil {
		t.Fatal(err)
	}
	if containsRole(roles, role.Subscriber) || ent.IsPremium {
		t.Fatalf("stale subscriber grant survived: roles=%v premium=%v", roles, ent.IsPremium)
	}
}

func TestSubscriberRoleSyncSettlesOnStoredState(t *testing.T) {
	ctx := testCtx()
	cfg := DefaultConfig()
	cfg.SyncSubscriberRole = true
	eng, s, clock := newTestEngine(t, WithConfig(cfg))

	// A newer canceled state is already stored when a premium state is
	// settled against it.
	if _, err := s.ApplySubscription(context.Background(), &subscription.State{
		TenantID: "t1", AppID: "app1", PrincipalID: "u1",
		Tier: subscription.TierBasic, Status: subscription.StatusCanceled,
		EventAt: t0, Source: subscription.SourceBilling,
	}); err != nil {
		t.Fatal(err)
	}

	premium := &subscription.State{
		TenantID: "t1", AppID: "app1", PrincipalID: "u1",
		Tier: subscription.TierPremium, Status: subscription.StatusActive,
		EventAt: t0.Add(-time.Hour), Source: subscription.SourceBilling,
	}
	if err := eng.syncSubscriberRole(ctx, premium, clock.Now()); err != nil {
		t.Fatal(err)
	}

	roles, err := eng.ActiveRoles(ctx, "u1", clock.Now())
	if err != nil {
		t.Fatal(err)
	}
	if containsRole(roles, role.Subscriber) {
		t.Fatalf("expected role to follow the stored state, got %v", roles)
	}
}
