// myceliad wires a Kernel together the way the teacher's cmd/app/micro.go
// builds its actor kernel: construct, register subsystems, grant access,
// start — all literal Go calls, no config file loader (SPEC_FULL.md §2).
package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"mycelia/internal/kernel"
	"mycelia/internal/logger"
	"mycelia/internal/metrics"
	"mycelia/internal/svc/workspace"
)

func main() {
	log := logger.New(kernel.SystemLogLevel(), os.Stdout, false)
	slog.SetDefault(log)

	k := kernel.New(kernel.DefaultConfig(), log)

	// workspace subsystem: a queued BaseSubsystem so scenario (a)/(b)'s
	// reads/writes don't block the kernel's own dispatch.
	workspaceRoot, err := os.MkdirTemp("", "mycelia-workspace-*")
	if err != nil {
		log.Error("failed to create workspace root", "err", err)
		os.Exit(1)
	}
	workspaceOwner, kernelKey := k.MintSubsystemOwner("workspace")
	workspaceBase := kernel.NewBaseSubsystem("workspace", nil, log, 64, workspaceOwner, kernelKey)
	if _, err := workspace.New(workspaceBase, workspaceRoot); err != nil {
		log.Error("failed to build workspace subsystem", "err", err)
		os.Exit(1)
	}
	k.RegisterSubsystem("workspace", workspaceBase, workspaceBase, 0)

	// student profile grants workspace:read at read level, matching
	// scenario (a); workspace:delete is deliberately absent, matching
	// scenario (b)'s scope denial.
	k.Profiles().Register(&kernel.SecurityProfile{
		Role: "student",
		Permissions: map[string]kernel.AccessLevel{
			"workspace:read": kernel.LevelRead,
		},
	})

	// U: a student principal scenario (a)/(b) act as.
	studentIdentity := k.NewIdentity(kernel.KindTopLevel, "student-U", "student", nil)

	// kernel grants U read access on the workspace subsystem's own RWS,
	// mirroring "addReader(kernel, workspaceOwner, U)" in scenario (a).
	if err := workspaceBase.Access.AddReader(kernelKey, studentIdentity.PKR().PublicKey()); err != nil {
		log.Warn("failed to grant workspace read", "err", err)
	}

	channelRoute := "canvas://channel/layout"
	if _, err := k.Channels().RegisterChannel(channelRoute, k.KernelPKR().PublicKey(), k.KernelPKR().PublicKey()); err != nil {
		log.Warn("channel already registered", "route", channelRoute, "err", err)
	}

	reg := prometheus.NewRegistry()
	if err := metrics.Register(reg, k.Pool(), k.Scheduler()); err != nil {
		log.Warn("metrics registration failed", "err", err)
	}
	if err := metrics.RegisterQueue(reg, "workspace", workspaceBase.Queue()); err != nil {
		log.Warn("workspace queue metrics registration failed", "err", err)
	}

	log.Info("mycelia kernel ready", "student", studentIdentity.PKR().UUID(), "workspace_root", workspaceRoot)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	metricsSrv := &http.Server{Addr: ":9090", Handler: promhttp.HandlerFor(reg, promhttp.HandlerOpts{})}
	go func() {
		if err := metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Warn("metrics server exited", "err", err)
		}
	}()

	k.Start(ctx)
	<-ctx.Done()
	_ = metricsSrv.Close()
	k.Stop()
	log.Info("mycelia kernel stopped")
}
