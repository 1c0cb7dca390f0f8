package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/xraph/forge"

	"github.com/xraph/keeper"
	"github.com/xraph/keeper/subscription"
)

// errorStatus maps domain errors to HTTP status codes.
func errorStatus(err error) int {
	switch {
	case errors.Is(err, keeper.ErrUnauthenticated):
		return http.StatusUnauthorized
	case errors.Is(err, keeper.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, keeper.ErrInvalidRole),
		errors.Is(err, keeper.ErrInvalidEvent),
		errors.Is(err, keeper.ErrInvalidExpiry),
		errors.Is(err, keeper.ErrInvalidCapability):
		return http.StatusBadRequest
	case errors.Is(err, keeper.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, keeper.ErrStoreUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// fail turns a domain error into the HTTP response. Statuses forge has a
// helper for are returned as forge errors; 401 and 503 are written
// directly with a body that does not leak store details.
func (a *API) fail(ctx forge.Context, err error) error {
	status := errorStatus(err)
	switch status {
	case http.StatusBadRequest:
		return forge.BadRequest(err.Error())
	case http.StatusForbidden:
		return forge.Forbidden(err.Error())
	case http.StatusNotFound:
		return forge.NotFound(err.Error())
	case http.StatusUnauthorized:
		return ctx.JSON(status, &ErrorResponse{Error: "unauthenticated", Code: status})
	case http.StatusServiceUnavailable:
		return ctx.JSON(status, &ErrorResponse{Error: "authorization state unavailable", Code: status})
	}
	return err
}

// caller returns the authenticated principal of the request.
func (a *API) caller(ctx forge.Context) string {
	return a.principal(ctx.Context())
}

// authorizeBilling fails closed: no authorizer means no caller may post.
func (a *API) authorizeBilling(ctx context.Context, principal string) error {
	if principal == "" {
		return keeper.ErrUnauthenticated
	}
	if a.billing == nil || !a.billing(ctx, principal) {
		return fmt.Errorf("%w: %q may not post billing events", keeper.ErrForbidden, principal)
	}
	return nil
}

// normTier lowercases and trims a known tier. Unknown input is passed
// through so the engine rejects and journals it.
func normTier(s string) subscription.Tier {
	if t, err := subscription.ParseTier(s); err == nil {
		return t
	}
	return subscription.Tier(s)
}

func normStatus(s string) subscription.Status {
	if st, err := subscription.ParseStatus(s); err == nil {
		return st
	}
	return subscription.Status(s)
}

// parseOptionalTime parses an RFC3339 timestamp; empty input yields nil.
func parseOptionalTime(s string) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func defaultLimit(limit int) int {
	if limit <= 0 {
		return 50
	}
	if limit > 1000 {
		return 1000
	}
	return limit
}
