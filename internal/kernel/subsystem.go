package kernel

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	future "mycelia/internal/util/future"
)

// RouteHandler answers one routed message. When the message is processed
// immediately, the returned value goes back to the caller of
// Accept/SendProtected; for a queued message the tick discards it.
type RouteHandler func(ctx context.Context, msg *Message) (any, error)

// SendOptions controls how a message is accepted by a subsystem.
// ProcessImmediately, when set, takes precedence over any
// meta.mutable.processImmediately hint a routing hook left on the message
// (Open Question decision 1, recorded in DESIGN.md).
type SendOptions struct {
	ProcessImmediately bool
	Priority           int
}

func (o SendOptions) resolveImmediate(m *Message) bool {
	if o.ProcessImmediately {
		return true
	}
	if hint, ok := m.Meta().processImmediatelyHint(); ok {
		return hint
	}
	return false
}

// lifecycleState is BaseSubsystem's build/dispose state machine.
type lifecycleState int32

const (
	stateUnbuilt lifecycleState = iota
	stateBuilding
	stateBuilt
	stateDisposing
	stateDisposed
)

// BaseSubsystem is the composition root every concrete subsystem embeds,
// grounded on the teacher's Actor (mailbox + handler + lifecycle) but
// generalized to hold a facet manager, a pattern router, and an optional
// queue instead of one raw handler function.
type BaseSubsystem struct {
	Name   string
	Logger *slog.Logger

	facets *FacetManager
	router *SubsystemRouter

	queue     *Queue
	processor *MessageProcessor

	parent   *BaseSubsystem
	children []*BaseSubsystem

	ctx    context.Context
	cancel context.CancelFunc

	state      atomic.Int32
	buildFut    *future.Future[struct{}]
	buildOnce   sync.Once
	disposeFut  *future.Future[struct{}]
	disposeOnce sync.Once

	events *EventBus

	// Owner and Access are the subsystem's own principal key and the RWS
	// gating direct access to it (distinct from any per-channel RWS),
	// e.g. "addReader(kernel, workspaceOwner, U)" in §8 scenario (a).
	Owner  PublicKey
	Access *ReaderWriterSet

	cpuOps atomic.Int64
	ipcIn  atomic.Int64
	ipcOut atomic.Int64
}

// NewBaseSubsystem constructs an unbuilt subsystem owned by owner (a
// PublicKey minted for this subsystem's own principal), with kernelKey
// always a co-granter on its Access set. queueCapacity of 0 makes this a
// synchronous subsystem: Accept always processes inline and no Queue is
// ever consulted (Open Question decision 2).
func NewBaseSubsystem(name string, parent *BaseSubsystem, logger *slog.Logger, queueCapacity int, owner, kernelKey PublicKey) *BaseSubsystem {
	ctx, cancel := context.WithCancel(context.Background())
	var parentFacets *FacetManager
	if parent != nil {
		parentFacets = parent.facets
	}
	bs := &BaseSubsystem{
		Name:   name,
		Logger: logger,
		facets: NewFacetManager(parentFacets),
		router: NewSubsystemRouter(0),
		parent: parent,
		ctx:    ctx,
		cancel: cancel,
		events: NewEventBus(logger),
		Owner:  owner,
		Access: NewRWS(owner, kernelKey),
	}
	if queueCapacity > 0 {
		bs.queue = NewQueue(queueCapacity)
		bs.processor = NewMessageProcessor(bs)
	}
	if parent != nil {
		parent.children = append(parent.children, bs)
	}
	return bs
}

// Context returns the subsystem's lifetime context, cancelled on dispose.
func (bs *BaseSubsystem) Context() context.Context { return bs.ctx }

// Facets returns the subsystem's own facet manager.
func (bs *BaseSubsystem) Facets() *FacetManager { return bs.facets }

// Router returns the subsystem's pattern router.
func (bs *BaseSubsystem) Router() *SubsystemRouter { return bs.router }

// AddRoute registers pattern -> handler on this subsystem's router.
func (bs *BaseSubsystem) AddRoute(pattern string, handler RouteHandler) error {
	return bs.router.Register(pattern, handler)
}

// Events returns the subsystem's best-effort listener bus.
func (bs *BaseSubsystem) Events() *EventBus { return bs.events }

// Build runs hooks through a SubsystemBuilder exactly once; concurrent
// callers share the same in-flight future and observe the same result.
func (bs *BaseSubsystem) Build(builder *SubsystemBuilder, hooks []Hook, config map[string]any) error {
	bs.buildOnce.Do(func() {
		bs.state.Store(int32(stateBuilding))
		bs.buildFut = future.New(func() (struct{}, error) {
			err := builder.Build(bs.ctx, hooks, bs.facets, config)
			if err != nil {
				bs.state.Store(int32(stateUnbuilt))
				return struct{}{}, err
			}
			bs.state.Store(int32(stateBuilt))
			return struct{}{}, nil
		})
	})
	_, err := bs.buildFut.Await()
	return err
}

// Accept routes a message per SendOptions, queuing it when this subsystem
// has a queue and the message isn't flagged for immediate processing. A
// queued accept has no synchronous result — its value (if any) must travel
// back through a reply message instead.
func (bs *BaseSubsystem) Accept(msg *Message, opts SendOptions) (any, error) {
	bs.ipcIn.Add(1)
	if bs.queue == nil || opts.resolveImmediate(msg) {
		return bs.ProcessImmediately(msg)
	}
	return nil, bs.queue.Push(msg, opts)
}

// ProcessImmediately routes msg synchronously, bypassing the queue.
func (bs *BaseSubsystem) ProcessImmediately(msg *Message) (result any, err error) {
	start := time.Now()
	defer func() {
		bs.cpuOps.Add(time.Since(start).Microseconds())
		if r := recover(); r != nil {
			err = NewError(ErrHandlerError, "panic in route handler")
			bs.Logger.Error("subsystem handler panicked", "subsystem", bs.Name, "recover", r)
		}
	}()
	bs.events.Dispatch(msg)
	return bs.router.Route(bs.ctx, msg)
}

// Process drains the subsystem's queue for up to timeSlice, delegating to
// its MessageProcessor. Synchronous subsystems (no queue) are a no-op.
func (bs *BaseSubsystem) Process(timeSlice time.Duration) int {
	if bs.processor == nil {
		return 0
	}
	return bs.processor.Process(timeSlice)
}

// Queue exposes the subsystem's bounded mailbox, or nil for synchronous
// subsystems (queueCapacity 0), so internal/metrics can wrap it in a
// QueueCollector without BaseSubsystem importing prometheus itself.
func (bs *BaseSubsystem) Queue() *Queue { return bs.queue }

// QueueLen reports how many messages are waiting, 0 for synchronous
// subsystems.
func (bs *BaseSubsystem) QueueLen() int {
	if bs.queue == nil {
		return 0
	}
	return bs.queue.Len()
}

// Accounting exposes the teacher-derived CpuOps/IpcIn/IpcOut counters.
func (bs *BaseSubsystem) Accounting() (cpuOps, ipcIn, ipcOut int64) {
	return bs.cpuOps.Load(), bs.ipcIn.Load(), bs.ipcOut.Load()
}

func (bs *BaseSubsystem) recordOut() { bs.ipcOut.Add(1) }

// Dispose tears the subsystem down exactly once: children first (deepest
// lineage first), then a polite final processImmediately of a Shutdown
// control message, then facets in reverse OrderIndex order (reverse
// attachment order among equal OrderIndex), then context
// cancellation — the teacher's cleanupActor "try a polite Exit, only then
// cancel" two-step, generalized from one actor's mailbox to a subsystem's
// queue+facets.
func (bs *BaseSubsystem) Dispose() error {
	bs.disposeOnce.Do(func() {
		bs.disposeFut = future.New(func() (struct{}, error) {
			bs.state.Store(int32(stateDisposing))
			for _, child := range bs.children {
				_ = child.Dispose()
			}
			if shutdownMsg, err := NewMessage(bs.Name+"://shutdown", Shutdown{Reason: "dispose"}); err == nil {
				_, _ = bs.ProcessImmediately(shutdownMsg)
			}
			attached := bs.facets.All()
			for i := len(attached) - 1; i >= 0; i-- {
				if closer, ok := attached[i].Value.(interface{ Close() error }); ok {
					_ = closer.Close()
				}
			}
			bs.cancel()
			bs.state.Store(int32(stateDisposed))
			return struct{}{}, nil
		})
	})
	_, err := bs.disposeFut.Await()
	return err
}

// Shutdown is the control message BaseSubsystem.Dispose delivers before
// hard-cancelling, mirroring the teacher's kernel.Shutdown message.
type Shutdown struct {
	Reason string
}
