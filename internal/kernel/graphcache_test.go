package kernel

import "testing"

func TestTopoOrderRespectsDependencies(t *testing.T) {
	hooks := []Hook{
		{Kind: "c", Required: []string{"b"}},
		{Kind: "a"},
		{Kind: "b", Required: []string{"a"}},
	}
	order, err := topoOrder(hooks)
	if err != nil {
		t.Fatal(err)
	}
	pos := map[string]int{}
	for rank, idx := range order {
		pos[hooks[idx].Kind] = rank
	}
	if pos["a"] >= pos["b"] || pos["b"] >= pos["c"] {
		t.Fatalf("expected a before b before c, got order %v", order)
	}
}

func TestTopoOrderDeterministic(t *testing.T) {
	hooks := []Hook{
		{Kind: "x"},
		{Kind: "y"},
		{Kind: "z", Required: []string{"x", "y"}},
	}
	first, err := topoOrder(hooks)
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 10; i++ {
		got, err := topoOrder(hooks)
		if err != nil {
			t.Fatal(err)
		}
		if len(got) != len(first) {
			t.Fatalf("length mismatch")
		}
		for j := range got {
			if got[j] != first[j] {
				t.Fatalf("topoOrder not deterministic across calls: %v != %v", got, first)
			}
		}
	}
}

func TestTopoOrderCyclicDependency(t *testing.T) {
	hooks := []Hook{
		{Kind: "a", Required: []string{"b"}},
		{Kind: "b", Required: []string{"a"}},
	}
	_, err := topoOrder(hooks)
	if kind, ok := KindOf(err); !ok || kind != ErrCyclicDependency {
		t.Fatalf("expected cyclic_dependency, got %v", err)
	}
}

func TestGraphCacheEquivalenceWithDirectCompute(t *testing.T) {
	hooks := []Hook{
		{Kind: "a"},
		{Kind: "b", Required: []string{"a"}},
	}
	direct, err := topoOrder(hooks)
	if err != nil {
		t.Fatal(err)
	}

	cache := NewDependencyGraphCache(0)
	if _, ok := cache.Get(hooks); ok {
		t.Fatalf("expected cache miss before any Put")
	}
	cache.Put(hooks, direct)

	cached, ok := cache.Get(hooks)
	if !ok {
		t.Fatalf("expected cache hit after Put")
	}
	if len(cached) != len(direct) {
		t.Fatalf("cached order length mismatch")
	}
	for i := range direct {
		if cached[i] != direct[i] {
			t.Fatalf("cache hit diverged from direct compute: %v != %v", cached, direct)
		}
	}
}

func TestGraphCacheEvictsLRU(t *testing.T) {
	cache := NewDependencyGraphCache(1)
	h1 := []Hook{{Kind: "one"}}
	h2 := []Hook{{Kind: "two"}}
	cache.Put(h1, []int{0})
	cache.Put(h2, []int{0})
	if _, ok := cache.Get(h1); ok {
		t.Fatalf("expected h1 to have been evicted at capacity 1")
	}
	if _, ok := cache.Get(h2); !ok {
		t.Fatalf("expected h2 to still be cached")
	}
}
