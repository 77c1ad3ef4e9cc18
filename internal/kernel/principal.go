package kernel

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// defaultPrincipalTTL is the lifetime minted non-kernel principals get
// before refreshPrincipal must be called; the kernel's own principal and
// top-level principals never expire (PKR.expiresAt left zero).
const defaultPrincipalTTL = 15 * time.Minute

// Principal is the registry-side record behind a PKR: identity plus
// whatever role/metadata a profile needs to authorize it.
type Principal struct {
	UUID      string
	Name      string
	Kind      PrincipalKind
	PublicKey PublicKey
	Role      string
	Metadata  map[string]any
}

// PrincipalRegistry mints and tracks PKRs. All indices are kept in lock-step
// under a single mutex — the teacher's Kernel.Mu guards one shared actor
// table the same way; a registry this central doesn't benefit from finer
// locking until profiling says otherwise.
type PrincipalRegistry struct {
	mu sync.RWMutex

	serial uint64

	byUUID      map[string]*Principal
	byName      map[string]*Principal
	byPublicKey map[PublicKey]*Principal
	byPrivate   map[PrivateKey]*Principal
	pub2priv    map[PublicKey]PrivateKey

	pkrByUUID map[string]*PKR

	kernelPKR *PKR
	kernelPriv PrivateKey
}

// NewPrincipalRegistry mints the kernel's own never-expiring principal and
// returns the registry plus that PKR, so the embedding program can pass it
// to Identity.
func NewPrincipalRegistry() (*PrincipalRegistry, *PKR) {
	r := &PrincipalRegistry{
		byUUID:      map[string]*Principal{},
		byName:      map[string]*Principal{},
		byPublicKey: map[PublicKey]*Principal{},
		byPrivate:   map[PrivateKey]*Principal{},
		pub2priv:    map[PublicKey]PrivateKey{},
		pkrByUUID:   map[string]*PKR{},
	}
	pkr, priv := r.mint(KindKernel, "kernel", time.Time{})
	r.kernelPKR = pkr
	r.kernelPriv = priv
	return r, pkr
}

func (r *PrincipalRegistry) nextSerial() uint64 {
	return atomic.AddUint64(&r.serial, 1)
}

// mint creates a fresh public/private key pair and PKR, recording them in
// the pub2priv and pkrByUUID indices only; CreatePrincipal fills the rest.
// Callers hold r.mu for writing already, except the bootstrap call in
// NewPrincipalRegistry which runs before any concurrent access is possible.
func (r *PrincipalRegistry) mint(kind PrincipalKind, name string, ttl time.Time) (*PKR, PrivateKey) {
	pub := &publicKeyToken{serial: r.nextSerial()}
	priv := &privateKeyToken{serial: r.nextSerial()}

	var expiresAt time.Time
	if !ttl.IsZero() {
		expiresAt = ttl
	}

	pkr := &PKR{
		uuid:      uuid.NewString(),
		kind:      kind,
		publicKey: pub,
		minter:    priv,
		expiresAt: expiresAt,
	}

	r.pub2priv[pub] = priv
	r.pkrByUUID[pkr.uuid] = pkr
	return pkr, priv
}

// CreatePrincipal mints a PKR and an attached Principal record for role,
// with an expiry appropriate to kind (kernel/top-level never expire;
// everything else gets defaultPrincipalTTL).
func (r *PrincipalRegistry) CreatePrincipal(kind PrincipalKind, name, role string, meta map[string]any) (*PKR, *Principal) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var ttl time.Time
	if kind != KindKernel && kind != KindTopLevel {
		ttl = time.Now().Add(defaultPrincipalTTL)
	}
	pkr, priv := r.mint(kind, name, ttl)

	p := &Principal{
		UUID:      pkr.uuid,
		Name:      name,
		Kind:      kind,
		PublicKey: pkr.publicKey,
		Role:      role,
		Metadata:  meta,
	}
	r.byUUID[p.UUID] = p
	if name != "" {
		r.byName[name] = p
	}
	r.byPublicKey[p.PublicKey] = p
	r.byPrivate[priv] = p
	return pkr, p
}

// RefreshPrincipal mints a new public key for an existing PKR (the private
// key, known only to the owner/kernel, is unchanged) and returns the
// refreshed PKR. Calling refresh twice concurrently is safe; the second
// caller observes the first refresh's result rather than minting twice,
// satisfying the "refresh idempotence" testable property when callers race
// on an expired PKR.
func (r *PrincipalRegistry) RefreshPrincipal(pkr *PKR) (*PKR, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	existing, ok := r.pkrByUUID[pkr.uuid]
	if !ok {
		return nil, NewError(ErrUnknownPrincipal, pkr.uuid)
	}
	if !existing.IsExpired(time.Now()) {
		return existing, nil
	}

	priv, ok := r.pub2priv[existing.publicKey]
	if !ok {
		return nil, NewError(ErrUnknownPrincipal, pkr.uuid)
	}

	newPub := &publicKeyToken{serial: r.nextSerial()}
	refreshed := existing.withPublicKey(newPub, time.Now().Add(defaultPrincipalTTL))
	refreshed.minter = priv

	delete(r.pub2priv, existing.publicKey)
	r.pub2priv[newPub] = priv
	r.pkrByUUID[pkr.uuid] = refreshed

	if p, ok := r.byUUID[pkr.uuid]; ok {
		delete(r.byPublicKey, p.PublicKey)
		p.PublicKey = newPub
		r.byPublicKey[newPub] = p
	}
	return refreshed, nil
}

// ResolvePKR returns the current private key bound to pkr's public key, or
// an error if pkr is unknown or expired. This is the kernel's "is this PKR
// still live" check on every protected send.
func (r *PrincipalRegistry) ResolvePKR(pkr *PKR) (PrivateKey, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	existing, ok := r.pkrByUUID[pkr.uuid]
	if !ok {
		return nil, NewError(ErrUnknownPrincipal, pkr.uuid)
	}
	if existing.IsExpired(time.Now()) {
		return nil, NewError(ErrExpiredPrincipal, pkr.uuid)
	}
	priv, ok := r.pub2priv[existing.publicKey]
	if !ok {
		return nil, NewError(ErrUnknownPrincipal, pkr.uuid)
	}
	return priv, nil
}

// IsKernel reports whether pkr currently resolves to the kernel's own
// private key.
func (r *PrincipalRegistry) IsKernel(pkr *PKR) bool {
	priv, err := r.ResolvePKR(pkr)
	if err != nil {
		return false
	}
	return priv == r.kernelPriv
}

// ByUUID looks up the Principal record for a live uuid.
func (r *PrincipalRegistry) ByUUID(id string) (*Principal, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.byUUID[id]
	return p, ok
}

// ByName looks up the Principal record registered under name.
func (r *PrincipalRegistry) ByName(name string) (*Principal, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.byName[name]
	return p, ok
}

// ByPublicKey looks up the Principal record minted for a live PublicKey.
func (r *PrincipalRegistry) ByPublicKey(key PublicKey) (*Principal, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.byPublicKey[key]
	return p, ok
}

// KernelPKR returns the registry's own never-expiring kernel PKR.
func (r *PrincipalRegistry) KernelPKR() *PKR { return r.kernelPKR }
