package guard

import (
	"net/http"

	"github.com/xraph/forge"

	"github.com/xraph/keeper"
)

// ErrorResponse is the JSON body written by the API guard.
type ErrorResponse struct {
	Error      string            `json:"error"`
	Outcome    keeper.Outcome    `json:"outcome"`
	Capability keeper.Capability `json:"capability"`
}

// API returns forge middleware that answers denied requests with a JSON
// error: 401 when no principal is present, 503 when state could not be
// read, and 403 for every other deny.
func API(d Decider, c keeper.Capability, opts ...Option) forge.Middleware {
	o := newOptions(opts)
	return func(next forge.Handler) forge.Handler {
		return func(ctx forge.Context) error {
			dec, err := decide(ctx.Context(), d, o, c)
			status, body := apiResponse(dec, err)
			if body == nil {
				return next(ctx)
			}
			return ctx.JSON(status, body)
		}
	}
}

// apiResponse maps a decision to the status and body the API guard sends.
// A nil body means the request may proceed.
func apiResponse(dec *keeper.Decision, err error) (int, *ErrorResponse) {
	if err == nil && dec.Allowed {
		return http.StatusOK, nil
	}
	body := &ErrorResponse{Outcome: dec.Outcome, Capability: dec.Capability}
	switch dec.Outcome {
	case keeper.OutcomeDenyUnauthenticated:
		body.Error = "authentication required"
		return http.StatusUnauthorized, body
	case keeper.OutcomeDenyUnavailable:
		body.Error = "authorization temporarily unavailable"
		return http.StatusServiceUnavailable, body
	default:
		body.Error = "access denied"
		return http.StatusForbidden, body
	}
}
