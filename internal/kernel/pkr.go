package kernel

import "time"

// publicKeyToken and privateKeyToken are opaque handle types. Design Note
// "private symbols for keys" asks that public/private keys never be
// compared by content; a pointer to a non-zero-size struct gives each mint
// a distinct identity that `==` compares by address, not by the bytes
// inside, without callers ever needing to know the layout.
type publicKeyToken struct{ serial uint64 }
type privateKeyToken struct{ serial uint64 }

// PublicKey and PrivateKey are the opaque handles PKR/Principal/RWS carry
// around. Zero value (nil) means "no key".
type PublicKey = *publicKeyToken
type PrivateKey = *privateKeyToken

// PrincipalKind distinguishes the trust tiers a minted principal belongs to.
type PrincipalKind string

const (
	KindKernel    PrincipalKind = "kernel"
	KindTopLevel  PrincipalKind = "top-level"
	KindSubsystem PrincipalKind = "subsystem"
	KindFriend    PrincipalKind = "friend"
	KindEphemeral PrincipalKind = "ephemeral"
)

// PKR (Public Key Record) is the frozen, minted identity record every
// principal carries. Equality is by uuid, per §3.
type PKR struct {
	uuid      string
	kind      PrincipalKind
	publicKey PublicKey
	minter    PrivateKey
	expiresAt time.Time
}

func (p *PKR) UUID() string           { return p.uuid }
func (p *PKR) Kind() PrincipalKind    { return p.kind }
func (p *PKR) PublicKey() PublicKey   { return p.publicKey }
func (p *PKR) ExpiresAt() time.Time   { return p.expiresAt }

// Equal compares PKRs by uuid, never by key content, per §3.
func (p *PKR) Equal(other *PKR) bool {
	if p == nil || other == nil {
		return p == other
	}
	return p.uuid == other.uuid
}

// IsExpired reports whether now is strictly after ExpiresAt. A zero
// ExpiresAt means "never expires" (kernel's own PKR, minted at boot).
func (p *PKR) IsExpired(now time.Time) bool {
	if p.expiresAt.IsZero() {
		return false
	}
	return now.After(p.expiresAt)
}

// withPublicKey returns a copy of p bound to a freshly-minted public key and
// expiry — used by PrincipalRegistry.refreshPrincipal, which must not
// mutate the PKR in place (frozen value semantics, §3).
func (p *PKR) withPublicKey(pub PublicKey, expiresAt time.Time) *PKR {
	cp := *p
	cp.publicKey = pub
	cp.expiresAt = expiresAt
	return &cp
}
