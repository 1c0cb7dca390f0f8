package subscription

import (
	"testing"
	"time"
)

func TestParseTier(t *testing.T) {
	if got, err := ParseTier(" Premium "); err != nil || got != TierPremium {
		t.Fatalf("ParseTier = %q, %v", got, err)
	}
	if _, err := ParseTier("gold"); err == nil {
		t.Fatal("expected error for unknown tier")
	}
}

func TestParseStatus(t *testing.T) {
	if got, err := ParseStatus("PAST_DUE"); err != nil || got != StatusPastDue {
		t.Fatalf("ParseStatus = %q, %v", got, err)
	}
	if _, err := ParseStatus("frozen"); err == nil {
		t.Fatal("expected error for unknown status")
	}
	if !StatusTrialing.Current() || StatusCanceled.Current() {
		t.Fatal("unexpected Current() result")
	}
}

func TestSupersedes(t *testing.T) {
	t10 := time.Unix(10, 0)
	t5 := time.Unix(5, 0)

	newer := &State{EventAt: t10}
	older := &State{EventAt: t5}
	same := &State{EventAt: t10}

	if !newer.Supersedes(nil) {
		t.Fatal("any state supersedes nothing")
	}
	if !newer.Supersedes(older) {
		t.Fatal("newer must supersede older")
	}
	if older.Supersedes(newer) {
		t.Fatal("older must not supersede newer")
	}
	if !same.Supersedes(newer) {
		t.Fatal("equal timestamps must apply")
	}
}
