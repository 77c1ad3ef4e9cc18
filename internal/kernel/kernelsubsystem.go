package kernel

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/sony/gobreaker"

	future "mycelia/internal/util/future"
)

// Subsystem is the minimal surface MessageSystemRegistry and MessageRouter
// need from anything registered under a name — BaseSubsystem satisfies it.
type Subsystem interface {
	Accept(msg *Message, opts SendOptions) (any, error)
}

// MessageSystemRegistry maps subsystem name tokens to the Subsystem
// handling them. Direct Get works for any registered name including the
// kernel's own; List hides the kernel from general enumeration so ordinary
// facet code iterating "every subsystem" never trips over the kernel
// itself, per §4.15.
type MessageSystemRegistry struct {
	mu         sync.RWMutex
	subsystems map[string]Subsystem
	kernelName string
}

func NewMessageSystemRegistry(kernelName string) *MessageSystemRegistry {
	return &MessageSystemRegistry{subsystems: map[string]Subsystem{}, kernelName: kernelName}
}

func (r *MessageSystemRegistry) Register(name string, sub Subsystem) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.subsystems[name] = sub
}

func (r *MessageSystemRegistry) Unregister(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.subsystems, name)
}

func (r *MessageSystemRegistry) Get(name string) (Subsystem, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.subsystems[name]
	return s, ok
}

// List returns every registered name except the kernel's own.
func (r *MessageSystemRegistry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.subsystems))
	for name := range r.subsystems {
		if name == r.kernelName {
			continue
		}
		out = append(out, name)
	}
	return out
}

// MessageRouter is the outer envelope router: it extracts the subsystem
// token from a message's path and forwards to that Subsystem's Accept,
// distinct from SubsystemRouter which resolves *within* one subsystem.
type MessageRouter struct {
	registry *MessageSystemRegistry
}

func NewMessageRouter(registry *MessageSystemRegistry) *MessageRouter {
	return &MessageRouter{registry: registry}
}

func (mr *MessageRouter) Route(_ context.Context, msg *Message, opts SendOptions) (any, error) {
	sub, ok := mr.registry.Get(msg.Subsystem())
	if !ok {
		return nil, NewError(ErrUnknownSubsystem, msg.Subsystem())
	}
	return sub.Accept(msg, opts)
}

// defaultReplyTimeout bounds how long SendFuture waits for a correlated
// reply before the ResponseManagerSubsystem fires a timeout (§8 "timeout
// bound" testable property).
const defaultReplyTimeout = 30 * time.Second

// KernelSubsystem is the central, privileged subsystem every protected send
// passes through: it resolves the caller's PKR, refreshing it if expired,
// checks channel ACLs, stamps the immutable callerIdSetBy field, sets up
// response correlation when a reply is wanted, and forwards to
// MessageRouter behind a per-subsystem circuit breaker — §4.12.
type KernelSubsystem struct {
	principals *PrincipalRegistry
	channels   *ChannelManagerSubsystem
	responses  *ResponseManagerSubsystem
	profiles   *ProfileRegistry
	registry   *MessageSystemRegistry
	router     *MessageRouter
	logger     *slog.Logger

	breakersMu sync.Mutex
	breakers   map[string]*gobreaker.CircuitBreaker
}

func NewKernelSubsystem(
	principals *PrincipalRegistry,
	channels *ChannelManagerSubsystem,
	responses *ResponseManagerSubsystem,
	profiles *ProfileRegistry,
	registry *MessageSystemRegistry,
	logger *slog.Logger,
) *KernelSubsystem {
	return &KernelSubsystem{
		principals: principals,
		channels:   channels,
		responses:  responses,
		profiles:   profiles,
		registry:   registry,
		router:     NewMessageRouter(registry),
		logger:     logger,
		breakers:   map[string]*gobreaker.CircuitBreaker{},
	}
}

// RoleFor implements RoleResolver by reading the principal record minted
// for key.
func (k *KernelSubsystem) RoleFor(key PublicKey) (string, bool) {
	p, ok := k.principals.ByPublicKey(key)
	if !ok {
		return "", false
	}
	return p.Role, true
}

func (k *KernelSubsystem) breakerFor(name string) *gobreaker.CircuitBreaker {
	k.breakersMu.Lock()
	defer k.breakersMu.Unlock()
	if b, ok := k.breakers[name]; ok {
		return b
	}
	b := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Timeout:     10 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures > 5
		},
	})
	k.breakers[name] = b
	return b
}

// SendProtected is the single entry point every Identity.SendProtected call
// funnels through.
func (k *KernelSubsystem) SendProtected(ctx context.Context, caller *PKR, msg *Message, opts SendOptions) (any, error) {
	// 1. resolve caller, refreshing an expired PKR rather than failing
	// outright — §4.12 step 1.
	if _, err := k.principals.ResolvePKR(caller); err != nil {
		if kind, ok := KindOf(err); ok && kind == ErrExpiredPrincipal {
			refreshed, rerr := k.principals.RefreshPrincipal(caller)
			if rerr != nil {
				return nil, rerr
			}
			caller = refreshed
		} else {
			return nil, err
		}
	}

	// callerId/callerIdSetBy are fixed-once; a message forwarded a second
	// time through SendProtected keeps its original stamp (kernel
	// immutability of caller, §8 Testable Property 5). callerIdSetBy always
	// holds the kernel's own PKR uuid, proving this stamp could only have
	// been produced here — never the caller's own uuid, which would let a
	// handler forge the same value by hand.
	msg.meta.setFixedField("callerId", caller.uuid)
	msg.meta.setFixedField("callerIdSetBy", k.principals.KernelPKR().uuid)

	// 2. channel ACL check, only applicable when the path names a
	// registered channel route. §3: canUse(p) ⇔ p == owner ∨ p ∈
	// participants — membership, not a write grant — so this checks at
	// LevelRead, which CanRead already satisfies for owner/kernel/any
	// reader/any writer alike.
	if _, isChannel := k.channels.GetChannelFor(msg.Path()); isChannel {
		if err := k.channels.VerifyAccess(msg.Path(), caller.publicKey, LevelRead); err != nil {
			return nil, err
		}
	}

	// 3. sanitize options: negative priorities make no sense downstream.
	if opts.Priority < 0 {
		opts.Priority = 0
	}

	// 4. response correlation setup, only when the sender asked for a reply
	// path distinct from a synchronous return value.
	if _, wantsReply := msg.Meta().ReplyTo(); wantsReply {
		msg.meta.setFixedField("correlationId", msg.id)
	}

	// 5. forward to the outer router behind a per-subsystem breaker so one
	// wedged subsystem can't stall the scheduler tick for everyone else.
	breaker := k.breakerFor(msg.Subsystem())
	result, err := breaker.Execute(func() (any, error) {
		return k.router.Route(ctx, msg, opts)
	})
	if err != nil {
		if _, ok := KindOf(err); !ok {
			err = WrapError(ErrHandlerError, msg.Subsystem(), err)
		}
		return nil, err
	}
	return result, nil
}

// SendFuture sends msg protected and returns a Future resolved either
// immediately (synchronous subsystems, or queued subsystems that reply
// inline) or, when msg carries a replyTo, once ResponseManagerSubsystem
// correlates an incoming reply within defaultReplyTimeout.
func (k *KernelSubsystem) SendFuture(ctx context.Context, caller *PKR, msg *Message, opts SendOptions) *future.Future[any] {
	replyTo, wantsReply := msg.Meta().ReplyTo()
	if !wantsReply || replyTo == "" {
		return future.New(func() (any, error) { return k.SendProtected(ctx, caller, msg, opts) })
	}

	fut := future.New(func() (any, error) {
		if _, err := k.SendProtected(ctx, caller, msg, opts); err != nil {
			return nil, err
		}
		done := make(chan struct{})
		var result any
		var resultErr error
		k.responses.RegisterPending(msg.id, replyTo, defaultReplyTimeout, func(reply *Message, err error) {
			if err != nil {
				resultErr = err
			} else {
				result = reply.Body()
			}
			close(done)
		})
		<-done
		return result, resultErr
	})
	return fut
}

// Registry exposes the subsystem registry for read-only introspection
// (e.g. the control-plane adapter listing live subsystems).
func (k *KernelSubsystem) Registry() *MessageSystemRegistry { return k.registry }

// Principals exposes the principal registry for read-only introspection.
func (k *KernelSubsystem) Principals() *PrincipalRegistry { return k.principals }

// Responses exposes the response manager so an incoming reply message can
// be fed back in (MessageSystem's ingress path calls this).
func (k *KernelSubsystem) Responses() *ResponseManagerSubsystem { return k.responses }

// Channels exposes the channel manager for registration by subsystem
// builders.
func (k *KernelSubsystem) Channels() *ChannelManagerSubsystem { return k.channels }

// Profiles exposes the profile registry for registration by the embedding
// program.
func (k *KernelSubsystem) Profiles() *ProfileRegistry { return k.profiles }
