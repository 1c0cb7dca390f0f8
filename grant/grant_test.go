package grant

import (
	"testing"
	"time"
)

func TestIsActive(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	past := now.Add(-time.Hour)
	future := now.Add(time.Hour)

	tests := []struct {
		name string
		g    Grant
		want bool
	}{
		{"no expiry", Grant{}, true},
		{"expires later", Grant{ExpiresAt: &future}, true},
		{"expired", Grant{ExpiresAt: &past}, false},
		{"expires exactly now", Grant{ExpiresAt: &now}, false},
		{"revoked", Grant{RevokedAt: &past}, false},
		{"revoked with future expiry", Grant{RevokedAt: &past, ExpiresAt: &future}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.g.IsActive(now); got != tt.want {
				t.Fatalf("IsActive = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestLapsed(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	past := now.Add(-time.Minute)

	g := Grant{ExpiresAt: &past}
	if !g.Lapsed(now) {
		t.Fatal("expected lapsed grant")
	}
	g.RevokedAt = &past
	if g.Lapsed(now) {
		t.Fatal("revoked grant must not count as lapsed")
	}
	if (&Grant{}).Lapsed(now) {
		t.Fatal("grant without expiry never lapses")
	}
}
