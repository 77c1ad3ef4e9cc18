package kernel

import "testing"

type stubCloser struct{}

func (stubCloser) Close() error { return nil }

func TestFacetManagerAddRollsBackOnFailure(t *testing.T) {
	fm := NewFacetManager(nil)
	good := &Facet{Kind: "a", Value: stubCloser{}}
	bad := &Facet{Kind: "b", Contract: Contract{Name: "needsFoo", Required: []string{"Foo"}}, Value: stubCloser{}}

	err := fm.Add(good, bad)
	if err == nil {
		t.Fatalf("expected the contract violation on bad to fail Add")
	}
	if _, ok := fm.Find("a"); ok {
		t.Fatalf("expected good's facet to be rolled back alongside bad's failure")
	}
}

func TestFacetManagerFindFallsBackToParentLineage(t *testing.T) {
	parent := NewFacetManager(nil)
	must(t, parent.Add(&Facet{Kind: "storage", Value: stubCloser{}}))

	child := NewFacetManager(parent)
	if _, ok := child.ByIndex("storage", 0); ok {
		t.Fatalf("ByIndex must not fall back to the parent lineage")
	}
	found, ok := child.Find("storage")
	if !ok {
		t.Fatalf("expected Find to fall back to the parent's facet")
	}
	if found.Kind != "storage" {
		t.Fatalf("unexpected facet returned: %+v", found)
	}
}

func TestFacetManagerFindPrefersHighestOrderIndex(t *testing.T) {
	fm := NewFacetManager(nil)
	must(t, fm.Add(&Facet{Kind: "cache", Version: "v1", OrderIndex: 0, Value: stubCloser{}}))
	must(t, fm.Add(&Facet{Kind: "cache", Version: "v2", OrderIndex: 1, Value: stubCloser{}}))

	found, ok := fm.Find("cache")
	if !ok || found.Version != "v2" {
		t.Fatalf("expected the highest OrderIndex facet (v2), got %+v", found)
	}
}
