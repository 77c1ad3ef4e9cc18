package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"mycelia/internal/kernel"
	"mycelia/internal/logger"
	"mycelia/internal/svc/workspace"
)

func main() {
	log := logger.New(kernel.SystemLogLevel(), os.Stdout, false)
	slog.SetDefault(log)

	k := kernel.New(kernel.DefaultConfig(), log)

	workspaceRoot, err := os.MkdirTemp("", "mycelia-workspace-*")
	if err != nil {
		log.Error("failed to create workspace root", "err", err)
		os.Exit(1)
	}
	owner, kernelKey := k.MintSubsystemOwner("workspace")
	workspaceBase := kernel.NewBaseSubsystem("workspace", nil, log, 64, owner, kernelKey)
	if _, err := workspace.New(workspaceBase, workspaceRoot); err != nil {
		log.Error("failed to build workspace subsystem", "err", err)
		os.Exit(1)
	}
	k.RegisterSubsystem("workspace", workspaceBase, workspaceBase, 0)

	admin := k.NewIdentity(kernel.KindTopLevel, "control-plane", "admin", nil)
	if err := workspaceBase.Access.AddWriter(kernelKey, admin.PKR().PublicKey()); err != nil {
		log.Warn("failed to grant control-plane access", "err", err)
	}

	cp := NewControlPlane(k, admin, log, map[string]accountable{"workspace": workspaceBase})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	k.Start(ctx)
	if err := cp.ListenAndServe(ctx, ":8080"); err != nil && ctx.Err() == nil {
		log.Error("control plane exited", "err", err)
	}
	k.Stop()
}
