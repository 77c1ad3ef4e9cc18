package kernel

import "sync"

// PermissionLevel names AccessLevel for role->scope grants in a
// SecurityProfile; it is a type alias, not a distinct type, so the two are
// interchangeable.
type PermissionLevel = AccessLevel

// SecurityProfile maps a role to the scopes it may reach and at what level.
type SecurityProfile struct {
	Role        string
	Permissions map[string]PermissionLevel // scope -> level
}

// LevelFor returns the permission level Role has for scope, LevelNone if
// unlisted.
func (sp *SecurityProfile) LevelFor(scope string) PermissionLevel {
	if sp == nil {
		return LevelNone
	}
	if lvl, ok := sp.Permissions[scope]; ok {
		return lvl
	}
	return LevelNone
}

// RoleResolver looks up the role a caller's public key was minted with, so
// the scope-enforcing router can consult a SecurityProfile before RWS.
// KernelSubsystem implements this by delegating to PrincipalRegistry.
type RoleResolver interface {
	RoleFor(key PublicKey) (string, bool)
}

// ProfileRegistry holds one SecurityProfile per role, consulted by the
// scope-enforcing router wrapper ahead of any per-route RWS check (§4.9:
// "profile scope check, then RWS").
type ProfileRegistry struct {
	mu       sync.RWMutex
	byRole   map[string]*SecurityProfile
}

func NewProfileRegistry() *ProfileRegistry {
	return &ProfileRegistry{byRole: map[string]*SecurityProfile{}}
}

func (pr *ProfileRegistry) Register(profile *SecurityProfile) {
	pr.mu.Lock()
	defer pr.mu.Unlock()
	pr.byRole[profile.Role] = profile
}

func (pr *ProfileRegistry) Get(role string) (*SecurityProfile, bool) {
	pr.mu.RLock()
	defer pr.mu.RUnlock()
	p, ok := pr.byRole[role]
	return p, ok
}

// Allows checks whether role's profile grants at least level on scope.
func (pr *ProfileRegistry) Allows(role, scope string, level AccessLevel) bool {
	profile, ok := pr.Get(role)
	if !ok {
		return false
	}
	return profile.LevelFor(scope) >= level
}
