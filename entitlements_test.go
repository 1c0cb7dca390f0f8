package keeper

import (
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/xraph/keeper/grant"
	"github.com/xraph/keeper/role"
	"github.com/xraph/keeper/subscription"
)

func TestEvaluate(t *testing.T) {
	cases := []struct {
		name  string
		roles []role.Name
		tier  subscription.Tier
		want  Entitlements
	}{
		{"nothing", nil, subscription.TierBasic, Entitlements{}},
		{"admin implies moderator", []role.Name{role.Admin}, subscription.TierBasic, Entitlements{IsAdmin: true, IsModerator: true}},
		{"moderator only", []role.Name{role.Moderator}, subscription.TierBasic, Entitlements{IsModerator: true}},
		{"subscriber on basic", []role.Name{role.Subscriber}, subscription.TierBasic, Entitlements{IsPremium: true}},
		{"premium without roles", nil, subscription.TierPremium, Entitlements{IsPremium: true}},
		{"donator and tester grant nothing", []role.Name{role.Donator, role.Tester}, subscription.TierBasic, Entitlements{}},
		{"unknown tier is not premium", nil, "", Entitlements{}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Evaluate(tc.roles, tc.tier); got != tc.want {
				t.Fatalf("Evaluate = %+v, want %+v", got, tc.want)
			}
		})
	}
}

func TestEntitlementsHas(t *testing.T) {
	ent := Entitlements{IsModerator: true}
	if ent.Has(CapabilityAdmin) || !ent.Has(CapabilityModerator) || ent.Has(CapabilityPremium) {
		t.Fatalf("unexpected Has results for %+v", ent)
	}
	if ent.Has(Capability("owner")) {
		t.Fatal("unknown capability must never be held")
	}
}

func TestActiveRoles(t *testing.T) {
	now := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	past := now.Add(-time.Minute)
	future := now.Add(time.Minute)

	grants := []*grant.Grant{
		{Role: role.Tester},
		{Role: role.Admin, ExpiresAt: &future},
		{Role: role.Moderator, ExpiresAt: &past},
		{Role: role.Donator, RevokedAt: &past},
		{Role: role.Tester},
		{Role: role.Name("root")},
		nil,
	}

	got := ActiveRoles(grants, now)
	want := []role.Name{role.Admin, role.Tester}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("ActiveRoles = %v, want %v", got, want)
	}

	// Boundary: expiresAt == now is inactive.
	if roles := ActiveRoles([]*grant.Grant{{Role: role.Admin, ExpiresAt: &now}}, now); len(roles) != 0 {
		t.Fatalf("expected no roles at the expiry instant, got %v", roles)
	}
}

func TestParseCapability(t *testing.T) {
	c, err := ParseCapability(" Premium ")
	if err != nil || c != CapabilityPremium {
		t.Fatalf("ParseCapability = %q, %v", c, err)
	}
	if _, err := ParseCapability("owner"); !errors.Is(err, ErrInvalidCapability) {
		t.Fatalf("expected ErrInvalidCapability, got %v", err)
	}
}
