package api

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/xraph/keeper"
	"github.com/xraph/keeper/subscription"
)

func TestErrorStatus(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{keeper.ErrUnauthenticated, http.StatusUnauthorized},
		{fmt.Errorf("%w: %q is not an admin", keeper.ErrForbidden, "u1"), http.StatusForbidden},
		{fmt.Errorf("%w: unknown role", keeper.ErrInvalidRole), http.StatusBadRequest},
		{fmt.Errorf("%w: missing principal_id", keeper.ErrInvalidEvent), http.StatusBadRequest},
		{keeper.ErrInvalidExpiry, http.StatusBadRequest},
		{keeper.ErrInvalidCapability, http.StatusBadRequest},
		{fmt.Errorf("%w: subscription", keeper.ErrNotFound), http.StatusNotFound},
		{fmt.Errorf("%w: %w", keeper.ErrStoreUnavailable, errors.New("conn refused")), http.StatusServiceUnavailable},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		if got := errorStatus(tc.err); got != tc.want {
			t.Fatalf("errorStatus(%v) = %d, want %d", tc.err, got, tc.want)
		}
	}
}

func TestToBillingEvent(t *testing.T) {
	ev, err := toBillingEvent(&BillingEventRequest{
		DeliveryID:     "d1",
		PrincipalID:    "u1",
		Tier:           " Premium",
		Status:         "ACTIVE",
		EventTimestamp: "2026-04-01T10:00:00Z",
		RenewedAt:      "2026-03-01T10:00:00Z",
	})
	if err != nil {
		t.Fatal(err)
	}
	if ev.Tier != subscription.TierPremium || ev.Status != subscription.StatusActive {
		t.Fatalf("unexpected tier/status %q/%q", ev.Tier, ev.Status)
	}
	if !ev.EventTimestamp.Equal(time.Date(2026, 4, 1, 10, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected event timestamp %v", ev.EventTimestamp)
	}
	if ev.RenewedAt == nil {
		t.Fatal("expected renewed_at")
	}

	// Unknown tiers pass through for the engine to reject and journal.
	ev, err = toBillingEvent(&BillingEventRequest{PrincipalID: "u1", Tier: "gold"})
	if err != nil {
		t.Fatal(err)
	}
	if ev.Tier != "gold" || !ev.EventTimestamp.IsZero() {
		t.Fatalf("unexpected passthrough %+v", ev)
	}

	if _, err := toBillingEvent(&BillingEventRequest{EventTimestamp: "yesterday"}); err == nil {
		t.Fatal("expected error for malformed timestamp")
	}
}

func TestDefaultLimit(t *testing.T) {
	if defaultLimit(0) != 50 || defaultLimit(-1) != 50 {
		t.Fatal("expected default of 50")
	}
	if defaultLimit(5000) != 1000 {
		t.Fatal("expected cap of 1000")
	}
	if defaultLimit(20) != 20 {
		t.Fatal("expected passthrough")
	}
}
