package kernel

import "testing"

func TestChannelRegisterConflict(t *testing.T) {
	cm := NewChannelManagerSubsystem(nil)
	keys := testKeys(2)
	owner, kernel := keys[0], keys[1]

	if _, err := cm.RegisterChannel("canvas://layout", owner, kernel); err != nil {
		t.Fatal(err)
	}
	_, err := cm.RegisterChannel("canvas://layout", owner, kernel)
	if kind, ok := KindOf(err); !ok || kind != ErrPatternConflict {
		t.Fatalf("expected pattern_conflict on duplicate route, got %v", err)
	}
}

func TestChannelVerifyAccessRequiresGrant(t *testing.T) {
	cm := NewChannelManagerSubsystem(nil)
	keys := testKeys(3)
	owner, kernel, participant := keys[0], keys[1], keys[2]

	ch, err := cm.RegisterChannel("canvas://layout", owner, kernel)
	if err != nil {
		t.Fatal(err)
	}
	if err := cm.VerifyAccess("canvas://layout", participant, LevelRead); err == nil {
		t.Fatalf("expected channel_acl_denied before any grant")
	}
	must(t, ch.AddParticipant(owner, participant, LevelRead))
	if err := cm.VerifyAccess("canvas://layout", participant, LevelRead); err != nil {
		t.Fatalf("expected access after grant, got %v", err)
	}
	if err := cm.VerifyAccess("canvas://layout", participant, LevelWrite); err == nil {
		t.Fatalf("a read-only participant must not pass a write-level check")
	}
}

func TestChannelVerifyAccessUnknownRoute(t *testing.T) {
	cm := NewChannelManagerSubsystem(nil)
	keys := testKeys(1)
	if err := cm.VerifyAccess("canvas://nope", keys[0], LevelRead); err == nil {
		t.Fatalf("expected channel_acl_denied for an unregistered route")
	} else if kind, _ := KindOf(err); kind != ErrChannelACLDenied {
		t.Fatalf("expected channel_acl_denied (not unknown_route), got %v", err)
	}
}
