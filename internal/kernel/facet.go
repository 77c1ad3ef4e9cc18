package kernel

import (
	"reflect"
	"sort"
)

// Contract names the methods a facet's exported Value must implement;
// enforcement is by reflection since facets are arbitrary `any` values
// (the teacher's PrivilegedService interface is the single-method version
// of this same idea — Mycelia generalizes it to a named set of methods).
type Contract struct {
	Name     string
	Required []string
}

func (c Contract) check(value any) error {
	if c.Name == "" {
		return nil
	}
	if value == nil {
		return NewError(ErrContractUnavailable, c.Name)
	}
	t := reflect.TypeOf(value)
	for _, method := range c.Required {
		if _, ok := t.MethodByName(method); !ok {
			return NewError(ErrContractViolation, c.Name+"."+method)
		}
	}
	return nil
}

// Facet is one named, versioned capability a subsystem attaches to itself —
// a storage handle, a parser, a cache client. orderIndex breaks ties when
// more than one facet of the same Kind is attached (find returns the
// highest orderIndex).
type Facet struct {
	Kind       string
	Version    string
	Contract   Contract
	Value      any
	Overwrite  bool
	OrderIndex int
}

// FacetManager owns the facets attached to one subsystem, keyed by Kind,
// ordered by OrderIndex within a kind.
type FacetManager struct {
	byKind map[string][]*Facet
	order  []*Facet // attachment order, for transactional rollback
	parent *FacetManager
}

func NewFacetManager(parent *FacetManager) *FacetManager {
	return &FacetManager{byKind: map[string][]*Facet{}, parent: parent}
}

// Add attaches facets transactionally: if any facet's contract check fails,
// every facet already added in this call is rolled back (removed) before
// the error is returned, so a subsystem never ends up half-built.
func (fm *FacetManager) Add(facets ...*Facet) error {
	added := make([]*Facet, 0, len(facets))
	rollback := func() {
		for _, f := range added {
			fm.remove(f)
		}
	}
	for _, f := range facets {
		if err := f.Contract.check(f.Value); err != nil {
			rollback()
			return err
		}
		existing := fm.byKind[f.Kind]
		if len(existing) > 0 && !f.Overwrite {
			for _, e := range existing {
				if e.Version == f.Version {
					rollback()
					return NewError(ErrContractViolation, "duplicate facet "+f.Kind+"@"+f.Version)
				}
			}
		}
		fm.byKind[f.Kind] = append(fm.byKind[f.Kind], f)
		fm.order = append(fm.order, f)
		added = append(added, f)
	}
	return nil
}

func (fm *FacetManager) remove(f *Facet) {
	list := fm.byKind[f.Kind]
	for i, e := range list {
		if e == f {
			fm.byKind[f.Kind] = append(list[:i], list[i+1:]...)
			break
		}
	}
	for i, e := range fm.order {
		if e == f {
			fm.order = append(fm.order[:i], fm.order[i+1:]...)
			break
		}
	}
}

// Find returns the highest-OrderIndex facet of kind attached directly to
// this manager, falling back to the parent lineage's facets when this
// subsystem never attached one of its own — the lineage-scoped facet
// discovery decision recorded in DESIGN.md.
func (fm *FacetManager) Find(kind string) (*Facet, bool) {
	if list := fm.byKind[kind]; len(list) > 0 {
		best := list[0]
		for _, f := range list[1:] {
			if f.OrderIndex > best.OrderIndex {
				best = f
			}
		}
		return best, true
	}
	if fm.parent != nil {
		return fm.parent.Find(kind)
	}
	return nil, false
}

// ByIndex returns the i-th attached facet of kind in attachment order,
// without lineage fallback.
func (fm *FacetManager) ByIndex(kind string, i int) (*Facet, bool) {
	list := fm.byKind[kind]
	if i < 0 || i >= len(list) {
		return nil, false
	}
	return list[i], true
}

// All returns a stable, OrderIndex-sorted snapshot of every facet attached
// directly to this manager (not the lineage), for dispose ordering.
func (fm *FacetManager) All() []*Facet {
	out := make([]*Facet, len(fm.order))
	copy(out, fm.order)
	sort.SliceStable(out, func(i, j int) bool { return out[i].OrderIndex < out[j].OrderIndex })
	return out
}
