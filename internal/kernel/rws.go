package kernel

import "sync"

// AccessLevel orders Read < Write < Grant, matching the "write implies read"
// scope hierarchy testable property in §8.
type AccessLevel int

const (
	LevelNone AccessLevel = iota
	LevelRead
	LevelWrite
	LevelGrant
)

// ReaderWriterSet (RWS) is the explicit-grant access-control structure
// behind every subsystem's facets and channels: an owner, plus reader and
// writer sets keyed by opaque PublicKey handles. Kernel and owner are
// always implicitly readers, writers, and granters, matching §3's "owner
// and kernel always have full access" rule.
type ReaderWriterSet struct {
	mu        sync.RWMutex
	owner     PublicKey
	kernelKey PublicKey
	readers   map[PublicKey]bool
	writers   map[PublicKey]bool
}

// NewRWS builds an RWS for owner, with kernelKey always treated as a
// granter regardless of the reader/writer sets.
func NewRWS(owner, kernelKey PublicKey) *ReaderWriterSet {
	return &ReaderWriterSet{
		owner:     owner,
		kernelKey: kernelKey,
		readers:   map[PublicKey]bool{},
		writers:   map[PublicKey]bool{},
	}
}

func (rws *ReaderWriterSet) isOwnerOrKernel(key PublicKey) bool {
	return key == rws.owner || key == rws.kernelKey
}

// CanRead reports read access: owner, kernel, any writer (write implies
// read), or an explicit reader.
func (rws *ReaderWriterSet) CanRead(key PublicKey) bool {
	rws.mu.RLock()
	defer rws.mu.RUnlock()
	if rws.isOwnerOrKernel(key) {
		return true
	}
	return rws.writers[key] || rws.readers[key]
}

// CanWrite reports write access: owner, kernel, or an explicit writer.
func (rws *ReaderWriterSet) CanWrite(key PublicKey) bool {
	rws.mu.RLock()
	defer rws.mu.RUnlock()
	if rws.isOwnerOrKernel(key) {
		return true
	}
	return rws.writers[key]
}

// CanGrant reports whether key may add readers/writers: owner, kernel, or
// any writer — §3 defines canGrant(p) = canWrite(p), so grant transitively
// follows write access.
func (rws *ReaderWriterSet) CanGrant(key PublicKey) bool {
	return rws.CanWrite(key)
}

// AddReader grants key read access, if granter is permitted to grant.
func (rws *ReaderWriterSet) AddReader(granter, key PublicKey) error {
	if !rws.CanGrant(granter) {
		return NewError(ErrPermissionDenied, "grant reader")
	}
	rws.mu.Lock()
	defer rws.mu.Unlock()
	rws.readers[key] = true
	return nil
}

// AddWriter grants key write (and implicitly read) access.
func (rws *ReaderWriterSet) AddWriter(granter, key PublicKey) error {
	if !rws.CanGrant(granter) {
		return NewError(ErrPermissionDenied, "grant writer")
	}
	rws.mu.Lock()
	defer rws.mu.Unlock()
	rws.writers[key] = true
	return nil
}

// RemoveReader revokes a previously-granted reader.
func (rws *ReaderWriterSet) RemoveReader(granter, key PublicKey) error {
	if !rws.CanGrant(granter) {
		return NewError(ErrPermissionDenied, "revoke reader")
	}
	rws.mu.Lock()
	defer rws.mu.Unlock()
	delete(rws.readers, key)
	return nil
}

// RemoveWriter revokes a previously-granted writer.
func (rws *ReaderWriterSet) RemoveWriter(granter, key PublicKey) error {
	if !rws.CanGrant(granter) {
		return NewError(ErrPermissionDenied, "revoke writer")
	}
	rws.mu.Lock()
	defer rws.mu.Unlock()
	delete(rws.writers, key)
	return nil
}

// LevelOf reports the highest AccessLevel key holds against rws. This is
// membership tier, not grant capability: owner/kernel sit at the top
// (LevelGrant) as the set's permanent full-access principals, an explicit
// writer is LevelWrite, an explicit reader is LevelRead — distinct from
// CanGrant, which (per §3's canGrant(p)=canWrite(p)) is also true of any
// plain writer, not just owner/kernel.
func (rws *ReaderWriterSet) LevelOf(key PublicKey) AccessLevel {
	rws.mu.RLock()
	defer rws.mu.RUnlock()
	switch {
	case rws.isOwnerOrKernel(key):
		return LevelGrant
	case rws.writers[key]:
		return LevelWrite
	case rws.readers[key]:
		return LevelRead
	default:
		return LevelNone
	}
}
