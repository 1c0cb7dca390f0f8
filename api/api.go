// Package api provides HTTP handlers for the Keeper authorization engine.
package api

import (
	"context"
	"net/http"
	"strings"

	"github.com/xraph/forge"

	"github.com/xraph/keeper"
	"github.com/xraph/keeper/guard"
)

// API wires all Keeper HTTP handlers together.
type API struct {
	eng       *keeper.Engine
	router    forge.Router
	principal guard.PrincipalFunc
	billing   BillingAuthorizer
	basePath  string
}

// BillingAuthorizer reports whether principal may post billing events.
// Without one every billing post is refused.
type BillingAuthorizer func(ctx context.Context, principal string) bool

// Option configures the API.
type Option func(*API)

// WithPrincipal sets how the calling principal is read from the request
// context. It defaults to guard.ForgePrincipal.
func WithPrincipal(fn guard.PrincipalFunc) Option {
	return func(a *API) { a.principal = fn }
}

// WithBillingAuthorizer gates POST /v1/billing/events.
func WithBillingAuthorizer(fn BillingAuthorizer) Option {
	return func(a *API) { a.billing = fn }
}

// WithBillingPrincipals allows only the listed principals, typically the
// service identity of the billing webhook relay, to post billing events.
func WithBillingPrincipals(ids ...string) Option {
	allowed := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if id != "" {
			allowed[id] = struct{}{}
		}
	}
	return WithBillingAuthorizer(func(_ context.Context, principal string) bool {
		_, ok := allowed[principal]
		return ok
	})
}

// WithBasePath mounts every route below prefix, e.g. "/keeper".
func WithBasePath(prefix string) Option {
	return func(a *API) { a.basePath = strings.TrimSuffix(prefix, "/") }
}

// New creates an API from an Engine and a Forge router.
func New(eng *keeper.Engine, router forge.Router, opts ...Option) *API {
	a := &API{eng: eng, router: router, principal: guard.ForgePrincipal}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Handler returns the fully assembled http.Handler with all routes.
func (a *API) Handler() http.Handler {
	if a.router == nil {
		a.router = forge.NewRouter()
	}
	if err := a.RegisterRoutes(a.router); err != nil {
		panic("keeper: register routes: " + err.Error())
	}
	return a.router.Handler()
}

// RegisterRoutes registers all API routes into the given Forge router.
func (a *API) RegisterRoutes(router forge.Router) error {
	registerers := []func(forge.Router) error{
		a.registerDecideRoutes,
		a.registerRoleRoutes,
		a.registerSubscriptionRoutes,
		a.registerSyncLogRoutes,
	}
	for _, fn := range registerers {
		if err := fn(router); err != nil {
			return err
		}
	}
	return nil
}
