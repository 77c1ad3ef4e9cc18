package workspace

import (
	"testing"

	"mycelia/internal/kernel"
)

func newTestWorkspace(t *testing.T) *kernel.BaseSubsystem {
	t.Helper()
	root := t.TempDir()
	base := kernel.NewBaseSubsystem("workspace", nil, nil, 0, nil, nil)
	if _, err := New(base, root); err != nil {
		t.Fatal(err)
	}
	return base
}

func TestWorkspaceWriteThenRead(t *testing.T) {
	base := newTestWorkspace(t)

	writeMsg, err := kernel.NewMessage("workspace://u1/write", WriteRequest{File: "notes.txt", Data: []byte("hello")})
	if err != nil {
		t.Fatal(err)
	}
	result, err := base.ProcessImmediately(writeMsg)
	if err != nil {
		t.Fatal(err)
	}
	wr := result.(WriteResponse)
	if wr.Err != nil || wr.Bytes != 5 {
		t.Fatalf("unexpected write result: %+v", wr)
	}

	readMsg, _ := kernel.NewMessage("workspace://u1/read", ReadRequest{File: "notes.txt"})
	result, err = base.ProcessImmediately(readMsg)
	if err != nil {
		t.Fatal(err)
	}
	rr := result.(ReadResponse)
	if rr.Err != nil || rr.Data != "hello" {
		t.Fatalf("unexpected read result: %+v", rr)
	}
}

func TestWorkspaceDeleteRemovesFile(t *testing.T) {
	base := newTestWorkspace(t)

	writeMsg, _ := kernel.NewMessage("workspace://u1/write", WriteRequest{File: "notes.txt", Data: []byte("hi")})
	if _, err := base.ProcessImmediately(writeMsg); err != nil {
		t.Fatal(err)
	}
	deleteMsg, _ := kernel.NewMessage("workspace://u1/delete", DeleteRequest{File: "notes.txt"})
	result, err := base.ProcessImmediately(deleteMsg)
	if err != nil {
		t.Fatal(err)
	}
	if dr := result.(DeleteResponse); dr.Err != nil {
		t.Fatalf("unexpected delete error: %v", dr.Err)
	}

	readMsg, _ := kernel.NewMessage("workspace://u1/read", ReadRequest{File: "notes.txt"})
	result, err = base.ProcessImmediately(readMsg)
	if err != nil {
		t.Fatal(err)
	}
	if rr := result.(ReadResponse); rr.Err == nil {
		t.Fatalf("expected a read error for a deleted file")
	}
}

func TestWorkspaceRejectsPathTraversal(t *testing.T) {
	base := newTestWorkspace(t)

	writeMsg, _ := kernel.NewMessage("workspace://u1/write", WriteRequest{File: "../escape.txt", Data: []byte("x")})
	result, err := base.ProcessImmediately(writeMsg)
	if err != nil {
		t.Fatal(err)
	}
	wr := result.(WriteResponse)
	if wr.Err == nil {
		t.Fatalf("expected a traversal attempt to fail")
	}
	if kind, ok := kernel.KindOf(wr.Err); !ok || kind != kernel.ErrInvalidPath {
		t.Fatalf("expected invalid_path, got %v", wr.Err)
	}
}
