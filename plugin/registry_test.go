package plugin

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/xraph/keeper/grant"
	"github.com/xraph/keeper/id"
	"github.com/xraph/keeper/role"
	"github.com/xraph/keeper/synclog"
)

// testPlugin implements Plugin + RoleGranted + AfterDecide.
type testPlugin struct {
	roleGrantedCalled bool
	afterDecideCalled bool
}

func (t *testPlugin) Name() string { return "test-plugin" }

func (t *testPlugin) OnRoleGranted(_ context.Context, _ *grant.Grant) error {
	t.roleGrantedCalled = true
	return nil
}

func (t *testPlugin) OnAfterDecide(_ context.Context, _ any) error {
	t.afterDecideCalled = true
	return nil
}

// failingPlugin returns an error from every hook it implements.
type failingPlugin struct{ calls int }

func (f *failingPlugin) Name() string { return "failing" }

func (f *failingPlugin) OnSubscriptionReconciled(_ context.Context, _ *synclog.Entry) error {
	f.calls++
	return errors.New("boom")
}

// minimalPlugin only implements Plugin (no hooks).
type minimalPlugin struct{}

func (m *minimalPlugin) Name() string { return "minimal" }

func TestRegistryDispatch(t *testing.T) {
	ctx := context.Background()
	reg := NewRegistry(slog.Default())

	tp := &testPlugin{}
	reg.Register(tp)
	reg.Register(&minimalPlugin{})

	if len(reg.Plugins()) != 2 {
		t.Fatalf("expected 2 plugins, got %d", len(reg.Plugins()))
	}

	// Should dispatch RoleGranted to testPlugin only.
	reg.EmitRoleGranted(ctx, &grant.Grant{ID: id.NewGrantID(), Role: role.Admin})
	if !tp.roleGrantedCalled {
		t.Fatal("OnRoleGranted was not called")
	}

	// Should dispatch AfterDecide.
	reg.EmitAfterDecide(ctx, nil)
	if !tp.afterDecideCalled {
		t.Fatal("OnAfterDecide was not called")
	}

	// Should not panic on hooks with no listeners.
	reg.EmitRoleRevoked(ctx, &grant.Revocation{Role: role.Admin})
	reg.EmitSubscriptionReconciled(ctx, &synclog.Entry{})
	reg.EmitShutdown(ctx)
}

func TestRegistryHookErrorDoesNotPropagate(t *testing.T) {
	ctx := context.Background()
	reg := NewRegistry(nil)

	fp := &failingPlugin{}
	reg.Register(fp)

	reg.EmitSubscriptionReconciled(ctx, &synclog.Entry{ID: id.NewSyncLogID()})
	reg.EmitSubscriptionReconciled(ctx, &synclog.Entry{ID: id.NewSyncLogID()})
	if fp.calls != 2 {
		t.Fatalf("expected 2 calls, got %d", fp.calls)
	}
}
