// Package cache provides an in-memory billing delivery dedupe set for Keeper.
//
// It remembers delivery IDs only. Roles and entitlements are never cached.
package cache

import (
	"context"
	"sync"
	"time"

	"github.com/xraph/keeper"
)

// Compile-time interface check.
var _ keeper.DeliveryCache = (*Deliveries)(nil)

// DefaultMaxSize is used when no positive size is configured.
const DefaultMaxSize = 100_000

// Deliveries is an in-memory TTL set of processed delivery IDs.
type Deliveries struct {
	mu      sync.RWMutex
	entries map[string]time.Time // key -> expiresAt
	maxSize int
	now     func() time.Time
}

// DeliveriesOption configures the delivery set.
type DeliveriesOption func(*Deliveries)

// WithMaxSize sets the maximum number of remembered deliveries. Values
// below one keep DefaultMaxSize.
func WithMaxSize(n int) DeliveriesOption {
	return func(d *Deliveries) { d.maxSize = n }
}

// WithClock sets the time source used for expiry.
func WithClock(now func() time.Time) DeliveriesOption {
	return func(d *Deliveries) { d.now = now }
}

// NewDeliveries creates a new in-memory delivery set.
func NewDeliveries(opts ...DeliveriesOption) *Deliveries {
	d := &Deliveries{
		entries: make(map[string]time.Time),
		maxSize: DefaultMaxSize,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.maxSize <= 0 {
		d.maxSize = DefaultMaxSize
	}
	return d
}

// Seen reports whether the delivery was marked and has not expired.
func (d *Deliveries) Seen(_ context.Context, tenantID, deliveryID string) bool {
	key := cacheKey(tenantID, deliveryID)
	d.mu.RLock()
	expiresAt, ok := d.entries[key]
	d.mu.RUnlock()
	if !ok {
		return false
	}
	if d.now().After(expiresAt) {
		d.mu.Lock()
		delete(d.entries, key)
		d.mu.Unlock()
		return false
	}
	return true
}

// Mark remembers the delivery for ttl.
func (d *Deliveries) Mark(_ context.Context, tenantID, deliveryID string, ttl time.Duration) {
	key := cacheKey(tenantID, deliveryID)
	d.mu.Lock()
	defer d.mu.Unlock()

	// Evict if at capacity.
	if _, exists := d.entries[key]; !exists && len(d.entries) >= d.maxSize {
		d.evictExpired()
		if len(d.entries) >= d.maxSize {
			d.evictOne()
		}
	}

	d.entries[key] = d.now().Add(ttl)
}

// Len returns the number of remembered deliveries, expired ones included.
func (d *Deliveries) Len() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.entries)
}

func cacheKey(tenantID, deliveryID string) string {
	return tenantID + "\x00" + deliveryID
}

// evictExpired removes all expired entries. Must hold write lock.
func (d *Deliveries) evictExpired() {
	now := d.now()
	for k, expiresAt := range d.entries {
		if now.After(expiresAt) {
			delete(d.entries, k)
		}
	}
}

// evictOne removes the entry closest to expiry. Must hold write lock.
func (d *Deliveries) evictOne() {
	var (
		victim string
		oldest time.Time
	)
	for k, expiresAt := range d.entries {
		if victim == "" || expiresAt.Before(oldest) {
			victim, oldest = k, expiresAt
		}
	}
	delete(d.entries, victim)
}
