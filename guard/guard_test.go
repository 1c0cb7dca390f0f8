package guard

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/a-h/templ"

	"github.com/xraph/keeper"
	"github.com/xraph/keeper/grant"
	"github.com/xraph/keeper/id"
	"github.com/xraph/keeper/role"
	"github.com/xraph/keeper/store/memory"
	"github.com/xraph/keeper/subscription"
)

type principalKey struct{}

func withPrincipal(ctx context.Context, p string) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

func testPrincipal(ctx context.Context) string {
	p, _ := ctx.Value(principalKey{}).(string)
	return p
}

var fixedNow = time.Date(2026, 4, 1, 10, 0, 0, 0, time.UTC)

func baseCtx() context.Context {
	return keeper.WithTenant(context.Background(), "app1", "t1")
}

func newDecider(t *testing.T) *keeper.Engine {
	t.Helper()
	s := memory.New()
	ctx := baseCtx()

	put := func(principal string, r role.Name) {
		_, _, err := s.PutGrant(ctx, &grant.Grant{
			ID: id.NewGrantID(), TenantID: "t1", PrincipalID: principal,
			Role: r, GrantedBy: "bootstrap", GrantedAt: fixedNow.Add(-time.Hour),
		})
		if err != nil {
			t.Fatal(err)
		}
	}
	put("admin", role.Admin)
	put("mod", role.Moderator)
	put("sub", role.Subscriber)

	if _, err := s.ApplySubscription(ctx, &subscription.State{
		TenantID: "t1", PrincipalID: "payer",
		Tier: subscription.TierPremium, Status: subscription.StatusActive,
		EventAt: fixedNow.Add(-time.Hour),
	}); err != nil {
		t.Fatal(err)
	}

	eng, err := keeper.NewEngine(
		keeper.WithStore(s),
		keeper.WithClock(func() time.Time { return fixedNow }),
	)
	if err != nil {
		t.Fatal(err)
	}
	return eng
}

func text(s string) templ.Component {
	return templ.ComponentFunc(func(_ context.Context, w io.Writer) error {
		_, err := io.WriteString(w, s)
		return err
	})
}

// pageAllows runs the page guard and reports whether the protected handler ran.
func pageAllows(t *testing.T, d Decider, c keeper.Capability, principal string) (bool, *httptest.ResponseRecorder) {
	t.Helper()
	ran := false
	h := Page(d, c, WithPrincipal(testPrincipal))(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		ran = true
		w.WriteHeader(http.StatusOK)
	}))
	req := httptest.NewRequest(http.MethodGet, "/premium/feed?page=2", nil)
	req = req.WithContext(withPrincipal(baseCtx(), principal))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return ran, rec
}

func apiAllows(d Decider, c keeper.Capability, principal string) (bool, int) {
	o := newOptions([]Option{WithPrincipal(testPrincipal)})
	dec, err := decide(withPrincipal(baseCtx(), principal), d, o, c)
	status, body := apiResponse(dec, err)
	return body == nil, status
}

func uiAllows(t *testing.T, d Decider, c keeper.Capability, principal string) bool {
	t.Helper()
	var buf bytes.Buffer
	comp := UI(d, c, text("content"), text("fallback"), WithPrincipal(testPrincipal))
	if err := comp.Render(withPrincipal(baseCtx(), principal), &buf); err != nil {
		t.Fatal(err)
	}
	return buf.String() == "content"
}

func TestGuardConsistency(t *testing.T) {
	eng := newDecider(t)

	principals := []string{"", "nobody", "admin", "mod", "sub", "payer"}
	caps := []keeper.Capability{keeper.CapabilityAdmin, keeper.CapabilityModerator, keeper.CapabilityPremium}

	for _, p := range principals {
		for _, c := range caps {
			want, _ := eng.Decide(withPrincipal(baseCtx(), p), p, c)

			page, _ := pageAllows(t, eng, c, p)
			api, _ := apiAllows(eng, c, p)
			ui := uiAllows(t, eng, c, p)

			if page != want.Allowed || api != want.Allowed || ui != want.Allowed {
				t.Fatalf("principal=%q cap=%s: engine=%v page=%v api=%v ui=%v",
					p, c, want.Allowed, page, api, ui)
			}
		}
	}
}

func TestGuardExpectedVerdicts(t *testing.T) {
	eng := newDecider(t)

	cases := []struct {
		principal string
		cap       keeper.Capability
		allowed   bool
	}{
		{"admin", keeper.CapabilityModerator, true},
		{"mod", keeper.CapabilityAdmin, false},
		{"sub", keeper.CapabilityPremium, true},
		{"payer", keeper.CapabilityPremium, true},
		{"nobody", keeper.CapabilityPremium, false},
	}
	for _, tc := range cases {
		if got, _ := apiAllows(eng, tc.cap, tc.principal); got != tc.allowed {
			t.Fatalf("%s/%s: expected %v, got %v", tc.principal, tc.cap, tc.allowed, got)
		}
	}
}

func TestPageRedirects(t *testing.T) {
	eng := newDecider(t)

	ran, rec := pageAllows(t, eng, keeper.CapabilityPremium, "")
	if ran {
		t.Fatal("protected handler must not run for anonymous visitors")
	}
	if rec.Code != http.StatusFound {
		t.Fatalf("expected 302, got %d", rec.Code)
	}
	loc := rec.Header().Get("Location")
	if !strings.HasPrefix(loc, "/login?next=") || !strings.Contains(loc, "%2Fpremium%2Ffeed") {
		t.Fatalf("unexpected login redirect %q", loc)
	}

	ran, rec = pageAllows(t, eng, keeper.CapabilityAdmin, "mod")
	if ran {
		t.Fatal("protected handler must not run for forbidden visitors")
	}
	if loc := rec.Header().Get("Location"); loc != "/unauthorized" {
		t.Fatalf("expected /unauthorized, got %q", loc)
	}
}

func TestAPIStatuses(t *testing.T) {
	eng := newDecider(t)

	if _, status := apiAllows(eng, keeper.CapabilityPremium, ""); status != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", status)
	}
	if _, status := apiAllows(eng, keeper.CapabilityAdmin, "sub"); status != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", status)
	}
	if ok, status := apiAllows(eng, keeper.CapabilityAdmin, "admin"); !ok || status != http.StatusOK {
		t.Fatalf("expected pass-through, got %v %d", ok, status)
	}
}

// brokenDecider claims allow while also failing; guards must still deny.
type brokenDecider struct{}

func (brokenDecider) Decide(_ context.Context, p string, c keeper.Capability) (*keeper.Decision, error) {
	return &keeper.Decision{Allowed: true, Outcome: keeper.OutcomeAllow, Capability: c, PrincipalID: p}, errors.New("store down")
}

// nilDecider returns no decision at all.
type nilDecider struct{}

func (nilDecider) Decide(context.Context, string, keeper.Capability) (*keeper.Decision, error) {
	return nil, errors.New("store down")
}

func TestGuardsFailClosed(t *testing.T) {
	for _, d := range []Decider{brokenDecider{}, nilDecider{}} {
		if ran, _ := pageAllows(t, d, keeper.CapabilityPremium, "u1"); ran {
			t.Fatal("page guard must fail closed")
		}
		ok, status := apiAllows(d, keeper.CapabilityPremium, "u1")
		if ok || status != http.StatusServiceUnavailable {
			t.Fatalf("api guard must fail closed with 503, got %v %d", ok, status)
		}
		if uiAllows(t, d, keeper.CapabilityPremium, "u1") {
			t.Fatal("ui guard must fail closed")
		}
	}
}

func TestUINilFallback(t *testing.T) {
	eng := newDecider(t)
	var buf bytes.Buffer
	comp := UI(eng, keeper.CapabilityAdmin, text("content"), nil, WithPrincipal(testPrincipal))
	if err := comp.Render(withPrincipal(baseCtx(), "nobody"), &buf); err != nil {
		t.Fatal(err)
	}
	if buf.Len() != 0 {
		t.Fatalf("expected empty output, got %q", buf.String())
	}
}
