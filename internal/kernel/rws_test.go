package kernel

import "testing"

func testKeys(n int) []PublicKey {
	out := make([]PublicKey, n)
	for i := range out {
		out[i] = &publicKeyToken{serial: uint64(i + 1)}
	}
	return out
}

func TestRWSOwnerAndKernelAlwaysFullAccess(t *testing.T) {
	keys := testKeys(3)
	owner, kernel, stranger := keys[0], keys[1], keys[2]
	rws := NewRWS(owner, kernel)

	for _, key := range []PublicKey{owner, kernel} {
		if !rws.CanRead(key) || !rws.CanWrite(key) || !rws.CanGrant(key) {
			t.Fatalf("owner/kernel must have full access")
		}
	}
	if rws.CanRead(stranger) || rws.CanWrite(stranger) || rws.CanGrant(stranger) {
		t.Fatalf("an ungranted stranger must have no access")
	}
}

func TestRWSWriteImpliesRead(t *testing.T) {
	keys := testKeys(3)
	owner, kernel, writer := keys[0], keys[1], keys[2]
	rws := NewRWS(owner, kernel)

	if err := rws.AddWriter(owner, writer); err != nil {
		t.Fatal(err)
	}
	if !rws.CanWrite(writer) {
		t.Fatalf("expected writer to have write access")
	}
	if !rws.CanRead(writer) {
		t.Fatalf("write access must imply read access")
	}
}

func TestRWSGrantFollowsWriteAccess(t *testing.T) {
	keys := testKeys(3)
	owner, kernel, writer := keys[0], keys[1], keys[2]
	rws := NewRWS(owner, kernel)
	if err := rws.AddWriter(owner, writer); err != nil {
		t.Fatal(err)
	}

	other := &publicKeyToken{serial: 99}
	if err := rws.AddReader(writer, other); err != nil {
		t.Fatalf("a writer must be able to grant access, canGrant(p) = canWrite(p): %v", err)
	}
	if !rws.CanRead(other) {
		t.Fatalf("the writer's grant must have taken effect")
	}

	stranger := &publicKeyToken{serial: 100}
	if err := rws.AddReader(stranger, other); err == nil {
		t.Fatalf("a non-writer with no access must not be able to grant")
	}
}

func TestRWSMonotonicLevelOf(t *testing.T) {
	keys := testKeys(2)
	owner, kernel := keys[0], keys[1]
	subject := &publicKeyToken{serial: 42}
	rws := NewRWS(owner, kernel)

	if rws.LevelOf(subject) != LevelNone {
		t.Fatalf("expected LevelNone before any grant")
	}
	must(t, rws.AddReader(owner, subject))
	if rws.LevelOf(subject) != LevelRead {
		t.Fatalf("expected LevelRead after AddReader")
	}
	must(t, rws.AddWriter(owner, subject))
	if rws.LevelOf(subject) != LevelWrite {
		t.Fatalf("expected LevelWrite after AddWriter, access level must only increase")
	}
}
