// Package guard provides the enforcement adapters for Keeper decisions:
// a page guard (redirect), an API guard (structured 401/403 error), and a
// UI guard (templ fallback).
//
// All three call Decider.Decide and never evaluate roles themselves, so for
// the same principal, capability and instant they reach the same verdict.
// The UI guard is advisory; the API guard is the trust boundary.
package guard

import (
	"context"
	"log/slog"

	"github.com/xraph/forge"

	"github.com/xraph/keeper"
)

// Decider makes the single allow/deny decision shared by every guard.
// *keeper.Engine implements it.
type Decider interface {
	Decide(ctx context.Context, principalID string, c keeper.Capability) (*keeper.Decision, error)
}

// Compile-time interface check.
var _ Decider = (*keeper.Engine)(nil)

// PrincipalFunc extracts the authenticated principal from a request
// context. It returns "" when nobody is signed in.
type PrincipalFunc func(ctx context.Context) string

// ForgePrincipal reads the user ID placed in the context by forge auth.
func ForgePrincipal(ctx context.Context) string {
	return forge.UserIDFromContext(ctx)
}

// Option configures a guard.
type Option func(*options)

type options struct {
	principal        PrincipalFunc
	loginPath        string
	unauthorizedPath string
	logger           *slog.Logger
}

func newOptions(opts []Option) *options {
	o := &options{
		principal:        ForgePrincipal,
		loginPath:        "/login",
		unauthorizedPath: "/unauthorized",
		logger:           slog.Default(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// WithPrincipal sets how the principal is read from the request context.
func WithPrincipal(fn PrincipalFunc) Option { return func(o *options) { o.principal = fn } }

// WithLoginPath sets where the page guard sends unauthenticated visitors.
func WithLoginPath(p string) Option { return func(o *options) { o.loginPath = p } }

// WithUnauthorizedPath sets where the page guard sends denied visitors.
func WithUnauthorizedPath(p string) Option { return func(o *options) { o.unauthorizedPath = p } }

// WithLogger sets the logger used for failed decisions.
func WithLogger(l *slog.Logger) Option { return func(o *options) { o.logger = l } }

// decide is the one path every guard takes to a verdict. A nil decision is
// turned into a deny.
func decide(ctx context.Context, d Decider, o *options, c keeper.Capability) (*keeper.Decision, error) {
	principal := o.principal(ctx)
	dec, err := d.Decide(ctx, principal, c)
	if err != nil {
		o.logger.Warn("keeper guard: decision error",
			"principal_id", principal,
			"capability", c,
			"error", err,
		)
	}
	if dec == nil {
		dec = &keeper.Decision{
			Outcome:     keeper.OutcomeDenyUnavailable,
			Capability:  c,
			PrincipalID: principal,
		}
	}
	if err != nil && dec.Allowed {
		dec.Allowed = false
		dec.Outcome = keeper.OutcomeDenyUnavailable
	}
	return dec, err
}
