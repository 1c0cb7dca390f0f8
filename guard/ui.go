package guard

import (
	"context"
	"io"

	"github.com/a-h/templ"

	"github.com/xraph/keeper"
)

// UI returns a component that renders content when the principal in the
// render context holds c, and fallback otherwise. A nil fallback renders
// nothing. It hides elements only; the API guard still enforces.
func UI(d Decider, c keeper.Capability, content, fallback templ.Component, opts ...Option) templ.Component {
	o := newOptions(opts)
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		dec, _ := decide(ctx, d, o, c)
		if dec.Allowed {
			return content.Render(ctx, w)
		}
		if fallback == nil {
			return nil
		}
		return fallback.Render(ctx, w)
	})
}
