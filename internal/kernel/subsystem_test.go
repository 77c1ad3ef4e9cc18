package kernel

import (
	"context"
	"testing"
	"time"
)

func TestBaseSubsystemSynchronousAcceptBypassesQueue(t *testing.T) {
	base := NewBaseSubsystem("test", nil, nil, 0, nil, nil)
	must(t, base.AddRoute("ping", func(ctx context.Context, msg *Message) (any, error) {
		return "pong", nil
	}))
	msg, _ := NewMessage("test://ping", nil)
	result, err := base.Accept(msg, SendOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if result != "pong" {
		t.Fatalf("expected synchronous result %q, got %v", "pong", result)
	}
	if base.QueueLen() != 0 {
		t.Fatalf("a queueCapacity-0 subsystem must report QueueLen 0")
	}
}

func TestBaseSubsystemQueuedAcceptDefersToProcess(t *testing.T) {
	base := NewBaseSubsystem("test", nil, nil, 4, nil, nil)
	processed := make(chan string, 1)
	must(t, base.AddRoute("ping", func(ctx context.Context, msg *Message) (any, error) {
		processed <- "pong"
		return "pong", nil
	}))
	msg, _ := NewMessage("test://ping", nil)

	result, err := base.Accept(msg, SendOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if result != nil {
		t.Fatalf("a queued accept must return no synchronous result, got %v", result)
	}
	if base.QueueLen() != 1 {
		t.Fatalf("expected one queued message, got %d", base.QueueLen())
	}

	if n := base.Process(100 * time.Millisecond); n != 1 {
		t.Fatalf("expected Process to drain exactly one message, got %d", n)
	}
	select {
	case <-processed:
	default:
		t.Fatalf("handler was never invoked by Process")
	}
}

func TestBaseSubsystemProcessImmediatelyOverridesQueue(t *testing.T) {
	base := NewBaseSubsystem("test", nil, nil, 4, nil, nil)
	must(t, base.AddRoute("ping", func(ctx context.Context, msg *Message) (any, error) {
		return "pong", nil
	}))
	msg, _ := NewMessage("test://ping", nil)

	result, err := base.Accept(msg, SendOptions{ProcessImmediately: true})
	if err != nil {
		t.Fatal(err)
	}
	if result != "pong" {
		t.Fatalf("ProcessImmediately must bypass the queue and return the handler result directly, got %v", result)
	}
	if base.QueueLen() != 0 {
		t.Fatalf("nothing should have been queued")
	}
}

// recordingCloser appends its name to a shared log on Close, so tests can
// assert on dispose ordering.
type recordingCloser struct {
	name string
	log  *[]string
}

func (c recordingCloser) Close() error {
	*c.log = append(*c.log, c.name)
	return nil
}

// §4.5/§4.7: facets must be disposed in reverse attachment order.
func TestBaseSubsystemDisposesFacetsInReverseOrder(t *testing.T) {
	base := NewBaseSubsystem("test", nil, nil, 0, nil, nil)
	var closed []string
	must(t, base.Facets().Add(
		&Facet{Kind: "a", OrderIndex: 0, Value: recordingCloser{name: "a", log: &closed}},
		&Facet{Kind: "b", OrderIndex: 1, Value: recordingCloser{name: "b", log: &closed}},
		&Facet{Kind: "c", OrderIndex: 2, Value: recordingCloser{name: "c", log: &closed}},
	))

	if err := base.Dispose(); err != nil {
		t.Fatal(err)
	}
	want := []string{"c", "b", "a"}
	if len(closed) != len(want) {
		t.Fatalf("expected %d facets closed, got %v", len(want), closed)
	}
	for i, name := range want {
		if closed[i] != name {
			t.Fatalf("expected reverse attachment order %v, got %v", want, closed)
		}
	}
}

func TestBaseSubsystemDisposeIsIdempotent(t *testing.T) {
	base := NewBaseSubsystem("test", nil, nil, 0, nil, nil)
	if err := base.Dispose(); err != nil {
		t.Fatal(err)
	}
	if err := base.Dispose(); err != nil {
		t.Fatalf("a second Dispose call must be a no-op, got %v", err)
	}
	select {
	case <-base.Context().Done():
	default:
		t.Fatalf("expected the subsystem's context to be cancelled after Dispose")
	}
}
