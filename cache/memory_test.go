package cache

import (
	"context"
	"testing"
	"time"
)

func TestDeliveriesSeenMark(t *testing.T) {
	ctx := context.Background()
	d := NewDeliveries()

	if d.Seen(ctx, "t1", "evt_1") {
		t.Fatal("expected unseen delivery")
	}

	d.Mark(ctx, "t1", "evt_1", time.Minute)
	if !d.Seen(ctx, "t1", "evt_1") {
		t.Fatal("expected seen delivery")
	}

	// Tenants are isolated.
	if d.Seen(ctx, "t2", "evt_1") {
		t.Fatal("delivery must not leak across tenants")
	}
}

func TestDeliveriesTTLExpiry(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	d := NewDeliveries(WithClock(func() time.Time { return now }))

	d.Mark(ctx, "t1", "evt_1", time.Minute)
	now = now.Add(2 * time.Minute)

	if d.Seen(ctx, "t1", "evt_1") {
		t.Fatal("expected delivery to expire")
	}
	if d.Len() != 0 {
		t.Fatalf("expected expired entry to be dropped, got %d", d.Len())
	}
}

func TestDeliveriesMaxSize(t *testing.T) {
	ctx := context.Background()
	d := NewDeliveries(WithMaxSize(2))

	for i := 0; i < 5; i++ {
		d.Mark(ctx, "t1", string(rune('a'+i)), time.Duration(i+1)*time.Minute)
	}

	if d.Len() > 2 {
		t.Fatalf("expected max 2 entries, got %d", d.Len())
	}
	if !d.Seen(ctx, "t1", "e") {
		t.Fatal("latest delivery must be kept")
	}
}

func TestDeliveriesZeroSizeUsesDefault(t *testing.T) {
	ctx := context.Background()
	d := NewDeliveries(WithMaxSize(0))

	for i := 0; i < 10; i++ {
		d.Mark(ctx, "t1", string(rune('a'+i)), time.Minute)
	}

	if d.Len() != 10 {
		t.Fatalf("expected all 10 deliveries kept, got %d", d.Len())
	}
	if !d.Seen(ctx, "t1", "a") {
		t.Fatal("first delivery must still be remembered")
	}
}

func TestDeliveriesKeyIsolation(t *testing.T) {
	ctx := context.Background()
	d := NewDeliveries()

	d.Mark(ctx, "a:b", "c", time.Minute)
	if d.Seen(ctx, "a", "b:c") {
		t.Fatal("delivery must not collide across tenants")
	}
}
