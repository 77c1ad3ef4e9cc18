package kernel

import "context"

// BuildContext is handed to every Hook.Fn during a build; Config carries
// the per-hook configuration the embedding program supplied
// (ctx.config[kind], per SPEC_FULL.md §2), and Facets exposes facets
// already attached earlier in topological order so a later hook can depend
// on an earlier one's output.
type BuildContext struct {
	context.Context
	Config map[string]any
	Facets *FacetManager
}

// Hook describes one step of building a subsystem: it may attach a facet of
// Kind, and may require other kinds to have been built first.
type Hook struct {
	Kind       string
	Version    string
	Required   []string
	Contract   Contract
	Overwrite  bool
	OrderIndex int
	Fn         func(ctx *BuildContext) (any, error)
}

// SubsystemBuilder runs a set of Hooks in dependency order against a
// FacetManager, using cache to memoize the topological order across
// repeated builds of the same hook shape.
type SubsystemBuilder struct {
	cache *DependencyGraphCache
}

func NewSubsystemBuilder(cache *DependencyGraphCache) *SubsystemBuilder {
	if cache == nil {
		cache = NewDependencyGraphCache(0)
	}
	return &SubsystemBuilder{cache: cache}
}

// Build runs hooks in dependency order, attaching each hook's resulting
// facet to facets as it completes. On any hook error, every facet attached
// so far is rolled back and the error is returned (same all-or-nothing
// guarantee FacetManager.Add gives within one Add call, extended across the
// whole build).
func (b *SubsystemBuilder) Build(ctx context.Context, hooks []Hook, facets *FacetManager, config map[string]any) error {
	order, ok := b.cache.Get(hooks)
	if !ok {
		computed, err := topoOrder(hooks)
		if err != nil {
			return err
		}
		b.cache.Put(hooks, computed)
		order = computed
	}

	built := make([]*Facet, 0, len(hooks))
	rollback := func() {
		for _, f := range built {
			facets.remove(f)
		}
	}

	for _, idx := range order {
		h := hooks[idx]
		bc := &BuildContext{Context: ctx, Config: config, Facets: facets}
		value, err := h.Fn(bc)
		if err != nil {
			rollback()
			return WrapError(ErrHandlerError, "build hook "+h.Kind, err)
		}
		f := &Facet{
			Kind:       h.Kind,
			Version:    h.Version,
			Contract:   h.Contract,
			Value:      value,
			Overwrite:  h.Overwrite,
			OrderIndex: h.OrderIndex,
		}
		if err := facets.Add(f); err != nil {
			rollback()
			return err
		}
		built = append(built, f)
	}
	return nil
}
