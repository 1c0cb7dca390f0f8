package keeper

import (
	"context"
	"time"
)

// DeliveryCache remembers billing delivery IDs so redelivered notifications
// can be skipped without touching the store. It only short-circuits work:
// correctness of reconciliation rests on event-time ordering.
type DeliveryCache interface {
	// Seen reports whether the delivery ID was marked for the tenant and has
	// not expired.
	Seen(ctx context.Context, tenantID, deliveryID string) bool

	// Mark remembers the delivery ID for the tenant for ttl.
	Mark(ctx context.Context, tenantID, deliveryID string, ttl time.Duration)
}
