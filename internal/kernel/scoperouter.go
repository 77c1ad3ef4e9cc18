package kernel

import "context"

// ScopeEnforcingRouter wraps a SubsystemRouter so every routed message is
// checked against a SecurityProfile's scope permissions first, and only
// then against the subsystem's own RWS — §4.9: "profile scope check, then
// RWS", giving a coarse role-based allow/deny ahead of the finer per-target
// grant check.
type ScopeEnforcingRouter struct {
	inner     *SubsystemRouter
	profiles  *ProfileRegistry
	roles     RoleResolver
	rws       *ReaderWriterSet
	scope     string
	minLevel  AccessLevel
}

// NewScopeEnforcingRouter builds a wrapper requiring minLevel on scope from
// the caller's profile, then minLevel against rws, before delegating to
// inner.
func NewScopeEnforcingRouter(inner *SubsystemRouter, profiles *ProfileRegistry, roles RoleResolver, rws *ReaderWriterSet, scope string, minLevel AccessLevel) *ScopeEnforcingRouter {
	return &ScopeEnforcingRouter{inner: inner, profiles: profiles, roles: roles, rws: rws, scope: scope, minLevel: minLevel}
}

func (s *ScopeEnforcingRouter) Register(pattern string, handler RouteHandler) error {
	return s.inner.Register(pattern, handler)
}

func (s *ScopeEnforcingRouter) Route(ctx context.Context, msg *Message) (any, error) {
	if pr, ok := principalsFromResolver(s.roles); ok {
		if setBy, ok := msg.Meta().CallerIDSetBy(); !ok || setBy != pr.KernelPKR().UUID() {
			return nil, NewError(ErrPermissionDenied, "caller not stamped by the kernel")
		}
	}
	callerUUID, ok := msg.Meta().CallerID()
	if !ok {
		return nil, NewError(ErrPermissionDenied, "no caller identity")
	}

	// Profile scope check, only when profile data is actually available: a
	// profile registry, a role resolver, and a resolvable role for this
	// caller. Missing any of that is "profile data unavailable" (§4.9) —
	// skip the check and defer to RWS only. A resolvable role whose profile
	// denies the scope is a real deny, not a skip.
	if s.profiles != nil {
		if role, hasRole := s.roleForUUID(callerUUID); hasRole {
			if !s.profiles.Allows(role, s.scope, s.minLevel) {
				return nil, NewError(ErrPermissionDenied, s.scope)
			}
		}
	}

	// RWS check: the caller's specific public key must also hold minLevel
	// against this subsystem's own set.
	key, ok := s.publicKeyForUUID(callerUUID)
	if !ok || s.rws.LevelOf(key) < s.minLevel {
		return nil, NewError(ErrPermissionDenied, msg.Path())
	}

	return s.inner.Route(ctx, msg)
}

func (s *ScopeEnforcingRouter) roleForUUID(uuid string) (string, bool) {
	pr, ok := principalsFromResolver(s.roles)
	if !ok {
		return "", false
	}
	p, ok := pr.ByUUID(uuid)
	if !ok {
		return "", false
	}
	return p.Role, true
}

func (s *ScopeEnforcingRouter) publicKeyForUUID(uuid string) (PublicKey, bool) {
	pr, ok := principalsFromResolver(s.roles)
	if !ok {
		return nil, false
	}
	p, ok := pr.ByUUID(uuid)
	if !ok {
		return nil, false
	}
	return p.PublicKey, true
}

// principalsFromResolver narrows the generic RoleResolver back to a
// *PrincipalRegistry when the concrete resolver is the kernel's own
// registry-backed one, which is the only implementation in this repo.
func principalsFromResolver(r RoleResolver) (*PrincipalRegistry, bool) {
	if k, ok := r.(*KernelSubsystem); ok {
		return k.principals, true
	}
	return nil, false
}
