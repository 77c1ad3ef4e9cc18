package kernel

import (
	"context"
	"testing"
)

func handlerReturning(v string) RouteHandler {
	return func(ctx context.Context, msg *Message) (any, error) { return v, nil }
}

// Mirrors spec §8 scenario (e): patterns "user/{id}" and
// "user/{id}/profile" — the longer pattern string wins whenever it also
// matches, and the shorter one is all that's left when it doesn't.
func TestRouterLongestMatchWins(t *testing.T) {
	r := NewSubsystemRouter(0)
	must(t, r.Register("user/{id}", handlerReturning("short")))
	must(t, r.Register("user/{id}/profile", handlerReturning("long")))

	profileMsg, err := NewMessage("workspace://user/7/profile", nil)
	if err != nil {
		t.Fatal(err)
	}
	got, err := r.Route(context.Background(), profileMsg)
	if err != nil {
		t.Fatal(err)
	}
	if got != "long" {
		t.Fatalf("expected the longer pattern string to win, got %v", got)
	}

	plainMsg, _ := NewMessage("workspace://user/7", nil)
	got, err = r.Route(context.Background(), plainMsg)
	if err != nil {
		t.Fatal(err)
	}
	if got != "short" {
		t.Fatalf("expected the only matching pattern to win, got %v", got)
	}
}

// Two distinct param patterns of identical pattern-string length both match
// the same path; registration order breaks the tie in favor of whichever
// was registered first, per §4.8.
func TestRouterRegistrationOrderTiebreak(t *testing.T) {
	r := NewSubsystemRouter(0)
	must(t, r.Register("{a}/read", handlerReturning("first")))
	must(t, r.Register("{b}/read", handlerReturning("second")))

	msg, _ := NewMessage("workspace://u1/read", nil)
	got, err := r.Route(context.Background(), msg)
	if err != nil {
		t.Fatal(err)
	}
	if got != "first" {
		t.Fatalf("expected earlier-registered route to win tie, got %v", got)
	}
}

func TestRouterDeterministicAcrossRepeatedCalls(t *testing.T) {
	r := NewSubsystemRouter(0)
	must(t, r.Register("{id}/read", handlerReturning("a")))
	msg, _ := NewMessage("workspace://u1/read", nil)

	first, err := r.Route(context.Background(), msg)
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 5; i++ {
		got, err := r.Route(context.Background(), msg)
		if err != nil {
			t.Fatal(err)
		}
		if got != first {
			t.Fatalf("router result changed across repeated calls: %v != %v", got, first)
		}
	}
}

func TestRouterUnknownRoute(t *testing.T) {
	r := NewSubsystemRouter(0)
	msg, _ := NewMessage("workspace://nope", nil)
	_, err := r.Route(context.Background(), msg)
	if kind, ok := KindOf(err); !ok || kind != ErrUnknownRoute {
		t.Fatalf("expected unknown_route, got %v", err)
	}
}

func TestRouterPatternConflict(t *testing.T) {
	r := NewSubsystemRouter(0)
	must(t, r.Register("{id}/read", handlerReturning("a")))
	err := r.Register("{id}/read", handlerReturning("b"))
	if kind, ok := KindOf(err); !ok || kind != ErrPatternConflict {
		t.Fatalf("expected pattern_conflict, got %v", err)
	}
}

func must(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatal(err)
	}
}
