// Package memory provides an in-memory implementation of the Keeper composite
// store. It is intended for testing and development.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/xraph/keeper/grant"
	"github.com/xraph/keeper/store"
	"github.com/xraph/keeper/subscription"
	"github.com/xraph/keeper/synclog"
)

// Compile-time interface checks.
var (
	_ grant.Store        = (*Store)(nil)
	_ subscription.Store = (*Store)(nil)
	_ synclog.Store      = (*Store)(nil)
	_ store.Store        = (*Store)(nil)
)

// Store is a thread-safe in-memory store for all Keeper entities.
// Every conditional write runs under the single write lock, which makes the
// check and the mutation one atomic step.
type Store struct {
	mu sync.RWMutex

	grants        map[string]*grant.Grant
	subscriptions map[string]*subscription.State // tenant\x00principal -> state
	syncLogs      map[string]*synclog.Entry
}

// New creates a new in-memory store.
func New() *Store {
	return &Store{
		grants:        make(map[string]*grant.Grant),
		subscriptions: make(map[string]*subscription.State),
		syncLogs:      make(map[string]*synclog.Entry),
	}
}

// Migrate is a no-op for the memory store.
func (s *Store) Migrate(_ context.Context) error { return nil }

// Ping is a no-op for the memory store.
func (s *Store) Ping(_ context.Context) error { return nil }

// Close is a no-op for the memory store.
func (s *Store) Close() error { return nil }

// ──────────────────────────────────────────────────
// Grant Store
// ──────────────────────────────────────────────────

func (s *Store) PutGrant(_ context.Context, g *grant.Grant) (*grant.Grant, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.grants {
		if !sameRole(existing, g) {
			continue
		}
		if existing.Lapsed(g.GrantedAt) {
			stampExpired(existing)
			continue
		}
		if existing.IsActive(g.GrantedAt) {
			return copyGrant(existing), false, nil
		}
	}

	s.grants[g.ID.String()] = copyGrant(g)
	return copyGrant(g), true, nil
}

func (s *Store) ListGrantsByPrincipal(_ context.Context, tenantID, principalID string) ([]*grant.Grant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	result := make([]*grant.Grant, 0)
	for _, g := range s.grants {
		if g.TenantID == tenantID && g.PrincipalID == principalID {
			result = append(result, copyGrant(g))
		}
	}
	sortGrants(result)
	return result, nil
}

func (s *Store) RevokeGrant(_ context.Context, r *grant.Revocation) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var count int64
	for _, g := range s.grants {
		if g.TenantID != r.TenantID || g.PrincipalID != r.PrincipalID || g.Role != r.Role {
			continue
		}
		if !g.IsActive(r.At) {
			continue
		}
		if r.IssuedBy != "" && g.GrantedBy != r.IssuedBy {
			continue
		}
		at := r.At
		g.RevokedAt = &at
		g.RevokedBy = r.RevokedBy
		g.RevokeReason = r.Reason
		count++
	}
	return count, nil
}

func (s *Store) ListGrants(_ context.Context, filter *grant.ListFilter) ([]*grant.Grant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	result := make([]*grant.Grant, 0, len(s.grants))
	for _, g := range s.grants {
		if filter != nil {
			if filter.TenantID != "" && g.TenantID != filter.TenantID {
				continue
			}
			if filter.PrincipalID != "" && g.PrincipalID != filter.PrincipalID {
				continue
			}
			if filter.Role != "" && g.Role != filter.Role {
				continue
			}
			if filter.GrantedBy != "" && g.GrantedBy != filter.GrantedBy {
				continue
			}
			if filter.ActiveAt != nil && !g.IsActive(*filter.ActiveAt) {
				continue
			}
		}
		result = append(result, copyGrant(g))
	}
	sortGrants(result)
	return applyPagination(result, paginationOptsGrant(filter)), nil
}

func (s *Store) CountGrants(ctx context.Context, filter *grant.ListFilter) (int64, error) {
	var unpaged *grant.ListFilter
	if filter != nil {
		f := *filter
		f.Limit, f.Offset = 0, 0
		unpaged = &f
	}
	list, err := s.ListGrants(ctx, unpaged)
	if err != nil {
		return 0, err
	}
	return int64(len(list)), nil
}

// ──────────────────────────────────────────────────
// Subscription Store
// ──────────────────────────────────────────────────

func (s *Store) GetSubscription(_ context.Context, tenantID, principalID string) (*subscription.State, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st, ok := s.subscriptions[subKey(tenantID, principalID)]
	if !ok {
		return nil, fmt.Errorf("subscription %s: %w", principalID, store.ErrNotFound)
	}
	return copySubscription(st), nil
}

func (s *Store) ApplySubscription(_ context.Context, st *subscription.State) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := subKey(st.TenantID, st.PrincipalID)
	if !st.Supersedes(s.subscriptions[key]) {
		return false, nil
	}
	s.subscriptions[key] = copySubscription(st)
	return true, nil
}

func (s *Store) ForceSubscription(_ context.Context, st *subscription.State) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subscriptions[subKey(st.TenantID, st.PrincipalID)] = copySubscription(st)
	return nil
}

// ──────────────────────────────────────────────────
// Sync Log Store
// ──────────────────────────────────────────────────

func (s *Store) CreateSyncLog(_ context.Context, e *synclog.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.syncLogs[e.ID.String()] = copySyncLog(e)
	return nil
}

func (s *Store) ListSyncLogs(_ context.Context, filter *synclog.QueryFilter) ([]*synclog.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	result := make([]*synclog.Entry, 0, len(s.syncLogs))
	for _, e := range s.syncLogs {
		if filter != nil {
			if filter.TenantID != "" && e.TenantID != filter.TenantID {
				continue
			}
			if filter.PrincipalID != "" && e.PrincipalID != filter.PrincipalID {
				continue
			}
			if filter.DeliveryID != "" && e.DeliveryID != filter.DeliveryID {
				continue
			}
			if filter.Outcome != "" && e.Outcome != filter.Outcome {
				continue
			}
			if filter.After != nil && e.CreatedAt.Before(*filter.After) {
				continue
			}
			if filter.Before != nil && e.CreatedAt.After(*filter.Before) {
				continue
			}
		}
		result = append(result, copySyncLog(e))
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})
	return applyPagination(result, paginationOptsSL(filter)), nil
}

func (s *Store) CountSyncLogs(ctx context.Context, filter *synclog.QueryFilter) (int64, error) {
	var unpaged *synclog.QueryFilter
	if filter != nil {
		f := *filter
		f.Limit, f.Offset = 0, 0
		unpaged = &f
	}
	list, err := s.ListSyncLogs(ctx, unpaged)
	if err != nil {
		return 0, err
	}
	return int64(len(list)), nil
}

func (s *Store) PurgeSyncLogs(_ context.Context, before time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var count int64
	for k, e := range s.syncLogs {
		if e.CreatedAt.Before(before) {
			delete(s.syncLogs, k)
			count++
		}
	}
	return count, nil
}

// ──────────────────────────────────────────────────
// Helpers
// ──────────────────────────────────────────────────

func sameRole(a, b *grant.Grant) bool {
	return a.TenantID == b.TenantID && a.PrincipalID == b.PrincipalID && a.Role == b.Role
}

func stampExpired(g *grant.Grant) {
	at := *g.ExpiresAt
	g.RevokedAt = &at
	g.RevokedBy = grant.SystemActor
	g.RevokeReason = grant.ReasonExpired
}

func sortGrants(gs []*grant.Grant) {
	sort.SliceStable(gs, func(i, j int) bool {
		if gs[i].GrantedAt.Equal(gs[j].GrantedAt) {
			return gs[i].ID.String() > gs[j].ID.String()
		}
		return gs[i].GrantedAt.After(gs[j].GrantedAt)
	})
}

func subKey(tenantID, principalID string) string {
	return tenantID + "\x00" + principalID
}

func copyGrant(g *grant.Grant) *grant.Grant {
	c := *g
	if g.ExpiresAt != nil {
		t := *g.ExpiresAt
		c.ExpiresAt = &t
	}
	if g.RevokedAt != nil {
		t := *g.RevokedAt
		c.RevokedAt = &t
	}
	return &c
}

func copySubscription(st *subscription.State) *subscription.State {
	c := *st
	if st.RenewedAt != nil {
		t := *st.RenewedAt
		c.RenewedAt = &t
	}
	return &c
}

func copySyncLog(e *synclog.Entry) *synclog.Entry {
	c := *e
	return &c
}

// Pagination helpers for each entity type.
type pagOpts struct{ limit, offset int }

func applyPagination[T any](items []*T, p pagOpts) []*T {
	if p.offset > 0 && p.offset < len(items) {
		items = items[p.offset:]
	} else if p.offset >= len(items) && p.offset > 0 {
		return nil
	}
	if p.limit > 0 && p.limit < len(items) {
		items = items[:p.limit]
	}
	return items
}

func paginationOptsGrant(f *grant.ListFilter) pagOpts {
	if f == nil {
		return pagOpts{}
	}
	return pagOpts{limit: f.Limit, offset: f.Offset}
}

func paginationOptsSL(f *synclog.QueryFilter) pagOpts {
	if f == nil {
		return pagOpts{}
	}
	return pagOpts{limit: f.Limit, offset: f.Offset}
}
