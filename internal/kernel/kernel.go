package kernel

import (
	"context"
	"log/slog"
	"time"
)

// Config is the kernel's programmatic configuration surface — built by the
// embedding program the same way the teacher's cmd/app/micro.go builds a
// Kernel by calling constructors and GrantCap in sequence, not loaded from
// a file (CLI configuration loading is an external collaborator, §4/§2).
type Config struct {
	MessagePoolSize    int
	TimeSliceDuration  time.Duration
	SchedulingStrategy SchedulingStrategy
	GraphCacheCapacity int
	RouterCacheCap     int
	Debug              bool
}

// DefaultConfig mirrors the teacher's implicit defaults (unbounded-looking
// but modest pool/queue sizes, round-robin scheduling).
func DefaultConfig() Config {
	return Config{
		MessagePoolSize:    256,
		TimeSliceDuration:  5 * time.Millisecond,
		SchedulingStrategy: StrategyRoundRobin,
		GraphCacheCapacity: 100,
		RouterCacheCap:     256,
	}
}

// Kernel is the composition root gluing every core piece together: the
// principal registry, channel manager, response manager, profile registry,
// subsystem registry, the privileged KernelSubsystem itself, the
// dependency-graph-cached SubsystemBuilder, the message pool, and the
// GlobalScheduler. Concrete subsystems register themselves through
// RegisterSubsystem after being built with Builder().
type Kernel struct {
	cfg Config

	logger *slog.Logger

	principals *PrincipalRegistry
	kernelPKR  *PKR

	channels  *ChannelManagerSubsystem
	responses *ResponseManagerSubsystem
	profiles  *ProfileRegistry
	registry  *MessageSystemRegistry
	core      *KernelSubsystem

	pool      *MessagePool
	graphs    *DependencyGraphCache
	builder   *SubsystemBuilder
	scheduler *GlobalScheduler

	cancel context.CancelFunc
}

// New builds every core collaborator from cfg and wires them together; it
// does not start the scheduler loop (see Start).
func New(cfg Config, logger *slog.Logger) *Kernel {
	if logger == nil {
		logger = slog.Default()
	}
	principals, kernelPKR := NewPrincipalRegistry()
	channels := NewChannelManagerSubsystem(logger)
	responses := NewResponseManagerSubsystem(logger)
	profiles := NewProfileRegistry()
	registry := NewMessageSystemRegistry("kernel")
	core := NewKernelSubsystem(principals, channels, responses, profiles, registry, logger)
	registry.Register("kernel", kernelAdapter{core})

	graphs := NewDependencyGraphCache(cfg.GraphCacheCapacity)
	return &Kernel{
		cfg:        cfg,
		logger:     logger,
		principals: principals,
		kernelPKR:  kernelPKR,
		channels:   channels,
		responses:  responses,
		profiles:   profiles,
		registry:   registry,
		core:       core,
		pool:       NewMessagePool(cfg.MessagePoolSize),
		graphs:     graphs,
		builder:    NewSubsystemBuilder(graphs),
		scheduler:  NewGlobalScheduler(cfg.SchedulingStrategy, cfg.TimeSliceDuration, logger),
	}
}

// kernelAdapter lets the kernel's own KernelSubsystem sit in the registry
// under the name "kernel" for introspection/self-addressed sends, without
// exposing SendProtected's extra arguments through the Subsystem interface.
type kernelAdapter struct{ k *KernelSubsystem }

func (a kernelAdapter) Accept(msg *Message, opts SendOptions) (any, error) {
	return a.k.SendProtected(context.Background(), a.k.principals.KernelPKR(), msg, opts)
}

// KernelPKR returns the kernel's own never-expiring PKR, the root of trust
// every top-level Identity is minted against.
func (k *Kernel) KernelPKR() *PKR { return k.kernelPKR }

// Principals exposes the principal registry so the embedding program can
// mint principals for callers.
func (k *Kernel) Principals() *PrincipalRegistry { return k.principals }

// Core exposes the privileged KernelSubsystem every Identity sends through.
func (k *Kernel) Core() *KernelSubsystem { return k.core }

// Channels exposes the channel manager for channel registration.
func (k *Kernel) Channels() *ChannelManagerSubsystem { return k.channels }

// Profiles exposes the profile registry for role/scope registration.
func (k *Kernel) Profiles() *ProfileRegistry { return k.profiles }

// Pool exposes the shared message pool.
func (k *Kernel) Pool() *MessagePool { return k.pool }

// Builder exposes the dependency-graph-cached SubsystemBuilder new
// subsystems build their facets with.
func (k *Kernel) Builder() *SubsystemBuilder { return k.builder }

// Scheduler exposes the GlobalScheduler, e.g. for internal/metrics to read
// a utilization snapshot from.
func (k *Kernel) Scheduler() *GlobalScheduler { return k.scheduler }

// NewIdentity mints a fresh principal of kind/role and returns an Identity
// bound to it, ready to SendProtected through this kernel.
func (k *Kernel) NewIdentity(kind PrincipalKind, name, role string, meta map[string]any) *Identity {
	pkr, _ := k.principals.CreatePrincipal(kind, name, role, meta)
	return NewIdentity(pkr, k.principals, k.core)
}

// MintSubsystemOwner creates a subsystem-kind principal to use as a
// BaseSubsystem's Owner, and returns its PublicKey alongside the kernel's
// own (every BaseSubsystem's Access RWS is built from this pair).
func (k *Kernel) MintSubsystemOwner(name string) (owner, kernelKey PublicKey) {
	pkr, _ := k.principals.CreatePrincipal(KindSubsystem, name, "subsystem", nil)
	return pkr.publicKey, k.kernelPKR.publicKey
}

// RegisterSubsystem adds sub to both the message registry (so other
// subsystems can send to it by name) and the scheduler (so it gets a time
// slice every tick).
func (k *Kernel) RegisterSubsystem(name string, sub Subsystem, schedulable Schedulable, priority int) {
	k.registry.Register(name, sub)
	if schedulable != nil {
		k.scheduler.Register(name, schedulable, priority)
	}
}

// Start launches the GlobalScheduler loop until ctx is cancelled or Stop is
// called.
func (k *Kernel) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	k.cancel = cancel
	go k.scheduler.Run(ctx)
}

// Stop cancels the scheduler loop started by Start.
func (k *Kernel) Stop() {
	if k.cancel != nil {
		k.cancel()
	}
}
