package memory

import (
	"context"
	"sync"
	"testing"

	"github.com/xraph/keeper/grant"
	"github.com/xraph/keeper/role"
	"github.com/xraph/keeper/store"
	"github.com/xraph/keeper/store/storetest"
)

func TestStoreConformance(t *testing.T) {
	storetest.Run(t, func(t *testing.T) store.Store {
		return New()
	})
}

// TestPutGrantHighContention hammers the lock with many more writers than
// the shared suite uses.
func TestPutGrantHighContention(t *testing.T) {
	ctx := context.Background()
	s := New()

	var wg sync.WaitGroup
	for i := 0; i < 200; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, _, err := s.PutGrant(ctx, storetest.NewGrant("u1", role.Admin, storetest.Base)); err != nil {
				t.Error(err)
			}
		}()
	}
	wg.Wait()

	at := storetest.Base
	active, err := s.CountGrants(ctx, &grant.ListFilter{TenantID: "t1", PrincipalID: "u1", ActiveAt: &at})
	if err != nil {
		t.Fatal(err)
	}
	if active != 1 {
		t.Fatalf("expected exactly 1 active grant, got %d", active)
	}
}
