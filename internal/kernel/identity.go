package kernel

import "context"

// Identity wraps a PKR with the two sending paths every subsystem author
// uses instead of touching the kernel directly, grounded on the teacher's
// ActCtx (SendAsync/SendSync/SendFuture) but narrowed to the protected-send
// algorithm §4.12 describes: every send is stamped with this identity's
// PKR as caller, never spoofable by the handler itself.
type Identity struct {
	pkr        *PKR
	principals *PrincipalRegistry
	kernel     *KernelSubsystem
}

// NewIdentity binds a PKR to the kernel it will send protected messages
// through.
func NewIdentity(pkr *PKR, principals *PrincipalRegistry, k *KernelSubsystem) *Identity {
	return &Identity{pkr: pkr, principals: principals, kernel: k}
}

func (id *Identity) PKR() *PKR { return id.pkr }

// SendProtected forwards msg through the kernel's protected-send path,
// stamping this identity as caller.
func (id *Identity) SendProtected(ctx context.Context, msg *Message, opts SendOptions) (any, error) {
	return id.kernel.SendProtected(ctx, id.pkr, msg, opts)
}

// SendPooledProtected acquires path+body from pool, sends it protected, and
// always releases the pooled message back afterward — even on error —
// satisfying "guaranteed release" the same way the teacher's ActCtx always
// closes a reply channel on every code path.
func (id *Identity) SendPooledProtected(ctx context.Context, pool *MessagePool, path string, body any, opts SendOptions) (any, error) {
	msg, err := pool.Acquire(path, body)
	if err != nil {
		return nil, err
	}
	defer pool.Release(msg)
	return id.kernel.SendProtected(ctx, id.pkr, msg, opts)
}

// RequireAuth wraps handler so it only runs when the message's stamped
// caller (callerId) holds at least level access against rws; otherwise it
// returns permission_denied without invoking handler. §4.4(a): before
// trusting callerId at all, it verifies callerIdSetBy names the kernel's
// own PKR — a message whose caller was never stamped by SendProtected (or
// was somehow stamped by anything else) is refused outright. This is the
// facet-author-facing guard, distinct from the kernel's own channel-ACL
// check on the send path.
func (id *Identity) RequireAuth(rws *ReaderWriterSet, level AccessLevel, handler RouteHandler) RouteHandler {
	return func(ctx context.Context, msg *Message) (any, error) {
		setBy, ok := msg.Meta().CallerIDSetBy()
		if !ok || setBy != id.principals.KernelPKR().UUID() {
			return nil, NewError(ErrPermissionDenied, "caller not stamped by the kernel")
		}
		callerUUID, ok := msg.Meta().CallerID()
		if !ok {
			return nil, NewError(ErrPermissionDenied, "no caller identity")
		}
		principal, ok := id.principals.ByUUID(callerUUID)
		if !ok {
			return nil, NewError(ErrUnknownPrincipal, callerUUID)
		}
		if rws.LevelOf(principal.PublicKey) < level {
			return nil, NewError(ErrPermissionDenied, msg.Path())
		}
		return handler(ctx, msg)
	}
}

// FriendIdentity is the restricted view createFriendIdentity hands to a
// trusted-but-not-fully-privileged collaborator: it can send protected
// messages as the underlying PKR but cannot read the PKR's minting private
// key or reach the PrincipalRegistry directly.
type FriendIdentity struct {
	pkr    *PKR
	kernel *KernelSubsystem
}

func CreateFriendIdentity(pkr *PKR, k *KernelSubsystem) *FriendIdentity {
	return &FriendIdentity{pkr: pkr, kernel: k}
}

func (f *FriendIdentity) SendProtected(ctx context.Context, msg *Message, opts SendOptions) (any, error) {
	return f.kernel.SendProtected(ctx, f.pkr, msg, opts)
}
