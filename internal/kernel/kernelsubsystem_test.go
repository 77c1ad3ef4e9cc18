package kernel

import (
	"context"
	"testing"
)

// echoSubsystem is a minimal Subsystem stub that hands back the message's
// stamped caller, so tests can assert on what the kernel stamped without
// pulling in a full BaseSubsystem.
type echoSubsystem struct{}

func (echoSubsystem) Accept(msg *Message, opts SendOptions) (any, error) {
	caller, _ := msg.Meta().CallerID()
	return caller, nil
}

func newTestKernelSubsystem(t *testing.T) (*KernelSubsystem, *PrincipalRegistry, *PKR) {
	t.Helper()
	principals, kernelPKR := NewPrincipalRegistry()
	channels := NewChannelManagerSubsystem(nil)
	responses := NewResponseManagerSubsystem(nil)
	profiles := NewProfileRegistry()
	registry := NewMessageSystemRegistry("kernel")
	registry.Register("echo", echoSubsystem{})
	core := NewKernelSubsystem(principals, channels, responses, profiles, registry, nil)
	return core, principals, kernelPKR
}

func TestSendProtectedStampsCallerImmutably(t *testing.T) {
	core, principals, kernelPKR := newTestKernelSubsystem(t)
	caller, _ := principals.CreatePrincipal(KindTopLevel, "alice", "student", nil)

	msg, err := NewMessage("echo://ping", nil)
	if err != nil {
		t.Fatal(err)
	}
	result, err := core.SendProtected(context.Background(), caller, msg, SendOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if result != caller.UUID() {
		t.Fatalf("expected stamped callerId %q, got %v", caller.UUID(), result)
	}
	setBy, ok := msg.Meta().CallerIDSetBy()
	if !ok || setBy != kernelPKR.UUID() {
		t.Fatalf("expected callerIdSetBy to equal the kernel's PKR %q, got %v", kernelPKR.UUID(), setBy)
	}

	// a handler attempting to restamp either field on the same message must
	// not be able to override the kernel's original stamp.
	if ok := msg.meta.setFixedField("callerId", "someone-else"); ok {
		t.Fatalf("callerId must already be fixed and refuse a second set")
	}
	if ok := msg.meta.setFixedField("callerIdSetBy", "someone-else"); ok {
		t.Fatalf("callerIdSetBy must already be fixed and refuse a second set")
	}
	stamped, _ := msg.Meta().CallerID()
	if stamped != caller.UUID() {
		t.Fatalf("callerId must remain the original caller, got %v", stamped)
	}
}

func TestSendProtectedUnknownSubsystem(t *testing.T) {
	core, principals, _ := newTestKernelSubsystem(t)
	caller, _ := principals.CreatePrincipal(KindTopLevel, "alice", "student", nil)

	msg, _ := NewMessage("nonexistent://ping", nil)
	_, err := core.SendProtected(context.Background(), caller, msg, SendOptions{})
	if kind, ok := KindOf(err); !ok || kind != ErrUnknownSubsystem {
		t.Fatalf("expected unknown_subsystem, got %v", err)
	}
}

func TestSendProtectedChannelACLDenied(t *testing.T) {
	core, principals, kernelPKR := newTestKernelSubsystem(t)
	owner, _ := principals.CreatePrincipal(KindSubsystem, "echo-owner", "subsystem", nil)
	if _, err := core.Channels().RegisterChannel("echo://ping", owner.PublicKey(), kernelPKR.PublicKey()); err != nil {
		t.Fatal(err)
	}

	caller, _ := principals.CreatePrincipal(KindTopLevel, "alice", "student", nil)
	msg, _ := NewMessage("echo://ping", nil)
	_, err := core.SendProtected(context.Background(), caller, msg, SendOptions{})
	if kind, ok := KindOf(err); !ok || kind != ErrChannelACLDenied {
		t.Fatalf("expected channel_acl_denied for a caller with no channel grant, got %v", err)
	}
}

// §3: canUse(p) ⇔ p == owner ∨ p ∈ participants — a participant granted at
// LevelRead is still a member and must be allowed to send, not just a
// participant granted at LevelWrite.
func TestSendProtectedChannelACLAllowsReadOnlyParticipant(t *testing.T) {
	core, principals, kernelPKR := newTestKernelSubsystem(t)
	owner, _ := principals.CreatePrincipal(KindSubsystem, "echo-owner", "subsystem", nil)
	ch, err := core.Channels().RegisterChannel("echo://ping", owner.PublicKey(), kernelPKR.PublicKey())
	if err != nil {
		t.Fatal(err)
	}

	caller, _ := principals.CreatePrincipal(KindTopLevel, "alice", "student", nil)
	must(t, ch.AddParticipant(owner.PublicKey(), caller.PublicKey(), LevelRead))

	msg, _ := NewMessage("echo://ping", nil)
	result, err := core.SendProtected(context.Background(), caller, msg, SendOptions{})
	if err != nil {
		t.Fatalf("expected a read-level participant to be allowed to send, got %v", err)
	}
	if result != caller.UUID() {
		t.Fatalf("unexpected result %v", result)
	}
}

func TestSendProtectedRegistryHidesKernelName(t *testing.T) {
	core, _, _ := newTestKernelSubsystem(t)
	core.Registry().Register("kernel", kernelAdapter{core})
	for _, name := range core.Registry().List() {
		if name == "kernel" {
			t.Fatalf("MessageSystemRegistry.List must hide the kernel's own name")
		}
	}
}
