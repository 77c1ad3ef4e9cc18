package kernel

import "testing"

func TestQueueFIFOOrder(t *testing.T) {
	q := NewQueue(4)
	for _, path := range []string{"workspace://a/read", "workspace://b/read", "workspace://c/read"} {
		msg, _ := NewMessage(path, nil)
		must(t, q.Push(msg, SendOptions{}))
	}
	var order []string
	for {
		item, ok := q.pop()
		if !ok {
			break
		}
		order = append(order, item.msg.Path())
	}
	want := []string{"workspace://a/read", "workspace://b/read", "workspace://c/read"}
	if len(order) != len(want) {
		t.Fatalf("expected %d items, got %d", len(want), len(order))
	}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("FIFO order violated at %d: got %v, want %v", i, order, want)
		}
	}
}

func TestQueueFullBackpressure(t *testing.T) {
	q := NewQueue(1)
	msg1, _ := NewMessage("workspace://a/read", nil)
	msg2, _ := NewMessage("workspace://b/read", nil)
	must(t, q.Push(msg1, SendOptions{}))

	err := q.Push(msg2, SendOptions{})
	if kind, ok := KindOf(err); !ok || kind != ErrQueueFull {
		t.Fatalf("expected queue_full, got %v", err)
	}
	if q.Stats().QueueFull != 1 {
		t.Fatalf("expected QueueFull stat incremented, got %+v", q.Stats())
	}
}
