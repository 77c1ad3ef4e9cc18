// myceliactl is the reference external adapter SPEC_FULL.md §4 calls for:
// an HTTP control plane built only against the kernel's public interfaces
// (kernel.NewMessage, Identity.SendProtected, and the Kernel's Pool and
// Scheduler accessors for /metrics), adapted from the teacher's internal/privileged
// ControlPlane — never imported by internal/kernel itself.
package main

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"mycelia/internal/kernel"
	"mycelia/internal/metrics"
)

// accountable is implemented by kernel.BaseSubsystem-backed subsystems;
// the control plane type-asserts for it rather than widening
// kernel.Subsystem, since accounting is diagnostic, not part of the core
// Accept contract.
type accountable interface {
	Accounting() (cpuOps, ipcIn, ipcOut int64)
	QueueLen() int
}

// ControlPlane exposes /subsystems and /send over HTTP, sending every
// injected message as the identity it was constructed with — the same
// "send as if this caller invoked it" posture as the teacher's /send
// endpoint, narrowed to the one admin identity the operator explicitly
// granted the control plane.
type ControlPlane struct {
	k        *kernel.Kernel
	identity *kernel.Identity
	logger   *slog.Logger

	subsystems map[string]accountable
	registry   *prometheus.Registry
}

// NewControlPlane binds the control plane to k, sending as identity (an
// Identity the caller has already minted with whatever rights it should
// exercise). subsystems lets the operator also expose per-subsystem
// accounting without the core needing to know about HTTP at all. It also
// registers a /metrics endpoint backed by internal/metrics' Collectors over
// k's pool, scheduler, and every queued subsystem passed in.
func NewControlPlane(k *kernel.Kernel, identity *kernel.Identity, logger *slog.Logger, subsystems map[string]accountable) *ControlPlane {
	reg := prometheus.NewRegistry()
	if err := metrics.Register(reg, k.Pool(), k.Scheduler()); err != nil {
		logger.Warn("metrics registration failed", "err", err)
	}
	for name, sub := range subsystems {
		if q, ok := sub.(queueHaver); ok && q.Queue() != nil {
			if err := metrics.RegisterQueue(reg, name, q.Queue()); err != nil {
				logger.Warn("queue metrics registration failed", "subsystem", name, "err", err)
			}
		}
	}
	return &ControlPlane{k: k, identity: identity, logger: logger, subsystems: subsystems, registry: reg}
}

// queueHaver is satisfied by *kernel.BaseSubsystem.
type queueHaver interface {
	Queue() *kernel.Queue
}

func (c *ControlPlane) routes(mux *http.ServeMux) {
	mux.HandleFunc("/subsystems", c.handleSubsystems)
	mux.HandleFunc("/send", c.handleSend)
	mux.Handle("/metrics", promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{}))
}

// ListenAndServe starts the HTTP control plane on addr; it runs until ctx
// is cancelled.
func (c *ControlPlane) ListenAndServe(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	c.routes(mux)
	srv := &http.Server{Addr: addr, Handler: mux}
	go func() {
		<-ctx.Done()
		_ = srv.Close()
	}()
	c.logger.Info("control plane listening", "addr", addr)
	return srv.ListenAndServe()
}

type subsystemView struct {
	Name      string `json:"name"`
	CPUOps    int64  `json:"cpu_ops,omitempty"`
	IPCIn     int64  `json:"ipc_in,omitempty"`
	IPCOut    int64  `json:"ipc_out,omitempty"`
	QueueLen  int    `json:"queue_len,omitempty"`
}

func (c *ControlPlane) handleSubsystems(w http.ResponseWriter, r *http.Request) {
	out := make([]subsystemView, 0, len(c.subsystems))
	for name, a := range c.subsystems {
		cpu, in, outIPC := a.Accounting()
		out = append(out, subsystemView{Name: name, CPUOps: cpu, IPCIn: in, IPCOut: outIPC, QueueLen: a.QueueLen()})
	}
	w.Header().Set("content-type", "application/json")
	_ = json.NewEncoder(w).Encode(out)
}

type sendRequest struct {
	Path string `json:"path"`
	Body any    `json:"body"`
}

type sendResponse struct {
	OK     bool   `json:"ok"`
	Error  string `json:"error,omitempty"`
	Result any    `json:"result,omitempty"`
}

func (c *ControlPlane) handleSend(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	var req sendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		_ = json.NewEncoder(w).Encode(sendResponse{Error: err.Error()})
		return
	}
	msg, err := kernel.NewMessage(req.Path, req.Body)
	if err != nil {
		w.WriteHeader(http.StatusBadRequest)
		_ = json.NewEncoder(w).Encode(sendResponse{Error: err.Error()})
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()
	result, err := c.identity.SendProtected(ctx, msg, kernel.SendOptions{})
	if err != nil {
		w.WriteHeader(http.StatusForbidden)
		_ = json.NewEncoder(w).Encode(sendResponse{Error: err.Error()})
		return
	}
	_ = json.NewEncoder(w).Encode(sendResponse{OK: true, Result: result})
}
