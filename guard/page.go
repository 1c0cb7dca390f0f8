package guard

import (
	"net/http"
	"net/url"

	"github.com/xraph/keeper"
)

// Page returns net/http middleware that redirects denied requests before
// the wrapped handler produces anything. Unauthenticated visitors go to the
// login path with a next parameter; everyone else who is denied goes to the
// unauthorized path.
func Page(d Decider, c keeper.Capability, opts ...Option) func(http.Handler) http.Handler {
	o := newOptions(opts)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			dec, _ := decide(r.Context(), d, o, c)
			if dec.Allowed {
				next.ServeHTTP(w, r)
				return
			}
			http.Redirect(w, r, pageTarget(o, dec, r), http.StatusFound)
		})
	}
}

func pageTarget(o *options, dec *keeper.Decision, r *http.Request) string {
	if dec.Outcome == keeper.OutcomeDenyUnauthenticated {
		return o.loginPath + "?next=" + url.QueryEscape(r.URL.RequestURI())
	}
	return o.unauthorizedPath
}
