package kernel

import (
	"container/list"
	"context"
	"strings"
	"sync"
)

// segmentKind distinguishes the three pattern segment shapes §4.8 names:
// literal text, "{param}" capture, and "*" wildcard tail.
type segmentKind int

const (
	segLiteral segmentKind = iota
	segParam
	segWildcard
)

type segment struct {
	kind segmentKind
	text string // literal text, or the param name for segParam
}

type segmentList []segment

type route struct {
	pattern  string
	segments segmentList
	handler  RouteHandler
	regOrder int
}

func compileSegments(route string) segmentList {
	parts := strings.Split(strings.Trim(route, "/"), "/")
	segs := make(segmentList, 0, len(parts))
	for _, p := range parts {
		switch {
		case p == "*":
			segs = append(segs, segment{kind: segWildcard})
		case strings.HasPrefix(p, "{") && strings.HasSuffix(p, "}"):
			segs = append(segs, segment{kind: segParam, text: strings.TrimSuffix(strings.TrimPrefix(p, "{"), "}")})
		default:
			segs = append(segs, segment{kind: segLiteral, text: p})
		}
	}
	return segs
}

func splitRoute(path string) []string {
	trimmed := strings.Trim(path, "/")
	if trimmed == "" {
		return nil
	}
	return strings.Split(trimmed, "/")
}

// matchParts reports whether segs matches the route parts, and if so the
// captured {param} values.
func (segs segmentList) matchParts(parts []string) (map[string]string, bool) {
	params := map[string]string{}
	i := 0
	for _, s := range segs {
		if s.kind == segWildcard {
			return params, true
		}
		if i >= len(parts) {
			return nil, false
		}
		switch s.kind {
		case segLiteral:
			if s.text != parts[i] {
				return nil, false
			}
		case segParam:
			params[s.text] = parts[i]
		}
		i++
	}
	return params, i == len(parts)
}

// SubsystemRouter matches a message's route against registered patterns,
// picking the match with the longest pattern string and caching recent
// lookups — §4.8's
// pattern registry plus LRU resolution cache.
type SubsystemRouter struct {
	mu       sync.RWMutex
	routes   []route
	nextSeq  int
	cache    *list.List
	cacheMap map[string]*list.Element
	cacheCap int
}

type routerCacheEntry struct {
	route string
	match *route
}

func NewSubsystemRouter(cacheCapacity int) *SubsystemRouter {
	if cacheCapacity <= 0 {
		cacheCapacity = 256
	}
	return &SubsystemRouter{
		cache:    list.New(),
		cacheMap: map[string]*list.Element{},
		cacheCap: cacheCapacity,
	}
}

// Register adds a pattern -> handler route. Registering the exact same
// pattern twice is a pattern_conflict.
func (r *SubsystemRouter) Register(pattern string, handler RouteHandler) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.routes {
		if existing.pattern == pattern {
			return NewError(ErrPatternConflict, pattern)
		}
	}
	r.routes = append(r.routes, route{
		pattern:  pattern,
		segments: compileSegments(pattern),
		handler:  handler,
		regOrder: r.nextSeq,
	})
	r.nextSeq++
	r.invalidateCache()
	return nil
}

// Unregister removes pattern, invalidating the resolution cache.
func (r *SubsystemRouter) Unregister(pattern string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, existing := range r.routes {
		if existing.pattern == pattern {
			r.routes = append(r.routes[:i], r.routes[i+1:]...)
			break
		}
	}
	r.invalidateCache()
}

func (r *SubsystemRouter) invalidateCache() {
	r.cache = list.New()
	r.cacheMap = map[string]*list.Element{}
}

// resolve finds the best match for routeStr without consulting the cache;
// caller holds at least a read lock.
func (r *SubsystemRouter) resolve(routeStr string) *route {
	parts := splitRoute(routeStr)
	var best *route
	for i := range r.routes {
		cand := &r.routes[i]
		if _, ok := cand.segments.matchParts(parts); !ok {
			continue
		}
		if best == nil {
			best = cand
			continue
		}
		// §4.8: the entry whose pattern string is longest wins; ties go to
		// whichever registered first.
		if len(cand.pattern) > len(best.pattern) ||
			(len(cand.pattern) == len(best.pattern) && cand.regOrder < best.regOrder) {
			best = cand
		}
	}
	return best
}

// Route matches msg's Route() against registered patterns and invokes the
// winning handler, returning unknown_route if nothing matches.
func (r *SubsystemRouter) Route(ctx context.Context, msg *Message) (any, error) {
	routeStr := msg.Route()

	r.mu.RLock()
	if el, ok := r.cacheMap[routeStr]; ok {
		r.mu.RUnlock()
		r.mu.Lock()
		r.cache.MoveToFront(el)
		r.mu.Unlock()
		entry := el.Value.(*routerCacheEntry)
		if entry.match == nil {
			return nil, NewError(ErrUnknownRoute, routeStr)
		}
		return entry.match.handler(ctx, msg)
	}
	best := r.resolve(routeStr)
	r.mu.RUnlock()

	r.mu.Lock()
	el := r.cache.PushFront(&routerCacheEntry{route: routeStr, match: best})
	r.cacheMap[routeStr] = el
	if r.cache.Len() > r.cacheCap {
		oldest := r.cache.Back()
		if oldest != nil {
			r.cache.Remove(oldest)
			delete(r.cacheMap, oldest.Value.(*routerCacheEntry).route)
		}
	}
	r.mu.Unlock()

	if best == nil {
		return nil, NewError(ErrUnknownRoute, routeStr)
	}
	return best.handler(ctx, msg)
}
