package role

import (
	"errors"
	"testing"
)

func TestParse(t *testing.T) {
	tests := []struct {
		in      string
		want    Name
		wantErr bool
	}{
		{"admin", Admin, false},
		{"  Moderator ", Moderator, false},
		{"SUBSCRIBER", Subscriber, false},
		{"donator", Donator, false},
		{"tester", Tester, false},
		{"owner", "", true},
		{"", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := Parse(tt.in)
			if tt.wantErr {
				if !errors.Is(err, ErrUnknown) {
					t.Fatalf("expected ErrUnknown, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatal(err)
			}
			if got != tt.want {
				t.Fatalf("expected %q, got %q", tt.want, got)
			}
		})
	}
}

func TestAllIsACopy(t *testing.T) {
	a := All()
	a[0] = "mutated"
	if All()[0] != Admin {
		t.Fatal("All() exposed the internal slice")
	}
	if len(a) != 5 {
		t.Fatalf("expected 5 roles, got %d", len(a))
	}
}
