package kernel

import (
	"context"
	"testing"
)

// stampAsKernel simulates what SendProtected stamps onto msg: the caller's
// uuid under callerId, and the kernel's own PKR uuid under callerIdSetBy as
// proof of provenance.
func stampAsKernel(msg *Message, kernelPKR *PKR, caller *PKR) {
	msg.meta.setFixedField("callerId", caller.UUID())
	msg.meta.setFixedField("callerIdSetBy", kernelPKR.UUID())
}

func TestScopeEnforcingRouterRequiresProfileThenRWS(t *testing.T) {
	core, principals, kernelPKR := newTestKernelSubsystem(t)
	core.Profiles().Register(&SecurityProfile{
		Role:        "student",
		Permissions: map[string]AccessLevel{"workspace:read": LevelRead},
	})

	owner, _ := principals.CreatePrincipal(KindSubsystem, "workspace-owner", "subsystem", nil)
	rws := NewRWS(owner.PublicKey(), kernelPKR.PublicKey())

	inner := NewSubsystemRouter(0)
	must(t, inner.Register("read", func(ctx context.Context, msg *Message) (any, error) {
		return "ok", nil
	}))
	scoped := NewScopeEnforcingRouter(inner, core.Profiles(), core, rws, "workspace:read", LevelRead)

	student, _ := principals.CreatePrincipal(KindTopLevel, "student-u", "student", nil)
	msg, _ := NewMessage("workspace://read", nil)
	stampAsKernel(msg, kernelPKR, student)

	// profile allows the scope, but RWS has not granted this student yet.
	if _, err := scoped.Route(context.Background(), msg); err == nil {
		t.Fatalf("expected permission_denied before any RWS grant")
	}

	must(t, rws.AddReader(owner.PublicKey(), student.PublicKey()))
	result, err := scoped.Route(context.Background(), msg)
	if err != nil {
		t.Fatalf("expected access once both profile and RWS allow it, got %v", err)
	}
	if result != "ok" {
		t.Fatalf("unexpected result %v", result)
	}
}

func TestScopeEnforcingRouterDeniesMissingProfile(t *testing.T) {
	core, principals, kernelPKR := newTestKernelSubsystem(t)
	owner, _ := principals.CreatePrincipal(KindSubsystem, "workspace-owner", "subsystem", nil)
	rws := NewRWS(owner.PublicKey(), kernelPKR.PublicKey())

	inner := NewSubsystemRouter(0)
	must(t, inner.Register("read", func(ctx context.Context, msg *Message) (any, error) {
		return "ok", nil
	}))
	scoped := NewScopeEnforcingRouter(inner, core.Profiles(), core, rws, "workspace:read", LevelRead)

	stranger, _ := principals.CreatePrincipal(KindTopLevel, "stranger", "no-profile-role", nil)
	must(t, rws.AddReader(owner.PublicKey(), stranger.PublicKey()))

	msg, _ := NewMessage("workspace://read", nil)
	stampAsKernel(msg, kernelPKR, stranger)
	if _, err := scoped.Route(context.Background(), msg); err == nil {
		t.Fatalf("expected permission_denied for a role with no registered profile")
	}
}

// §4.9: when profile data is unavailable (no ProfileRegistry), the wrapper
// skips the scope check entirely and defers to RWS only — it must not deny
// just because there is no profile system to consult.
func TestScopeEnforcingRouterSkipsScopeCheckWhenNoProfileRegistry(t *testing.T) {
	core, principals, kernelPKR := newTestKernelSubsystem(t)
	owner, _ := principals.CreatePrincipal(KindSubsystem, "workspace-owner", "subsystem", nil)
	rws := NewRWS(owner.PublicKey(), kernelPKR.PublicKey())

	inner := NewSubsystemRouter(0)
	must(t, inner.Register("read", func(ctx context.Context, msg *Message) (any, error) {
		return "ok", nil
	}))
	scoped := NewScopeEnforcingRouter(inner, nil, core, rws, "workspace:read", LevelRead)

	caller, _ := principals.CreatePrincipal(KindTopLevel, "no-profile-system-u", "anything", nil)
	msg, _ := NewMessage("workspace://read", nil)
	stampAsKernel(msg, kernelPKR, caller)

	if _, err := scoped.Route(context.Background(), msg); err == nil {
		t.Fatalf("expected permission_denied from RWS, not from the absent profile registry")
	}

	must(t, rws.AddReader(owner.PublicKey(), caller.PublicKey()))
	result, err := scoped.Route(context.Background(), msg)
	if err != nil {
		t.Fatalf("expected RWS grant alone to suffice with no profile registry, got %v", err)
	}
	if result != "ok" {
		t.Fatalf("unexpected result %v", result)
	}
}
