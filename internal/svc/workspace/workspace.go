// Package workspace is the demo subsystem the end-to-end scenarios in
// spec.md §8 exercise directly: routes like "workspace://{id}/read". New
// registers the routes directly on the BaseSubsystem's SubsystemRouter; this
// package applies no scope or RWS check, so no gating happens before a
// handler runs. It is adapted from the teacher's Fs service
// (internal/svc/fs/fs_service.go's Read/Write actor pair) — read/write
// files per-workspace-id instead of an arbitrary OS path. Handlers run
// inline on the routing goroutine; no worker is spawned per request.
package workspace

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"mycelia/internal/kernel"
)

// ReadRequest asks for the contents of a file within workspace id.
type ReadRequest struct {
	File string
}

// ReadResponse carries either data or an error, mirroring the teacher's
// ReadResp shape.
type ReadResponse struct {
	Data string
	Err  error
}

// WriteRequest asks to persist data to a file within workspace id.
type WriteRequest struct {
	File string
	Data []byte
}

type WriteResponse struct {
	Bytes int
	Err   error
}

// DeleteRequest removes a file within workspace id.
type DeleteRequest struct {
	File string
}

type DeleteResponse struct {
	Err error
}

// Workspace is a BaseSubsystem serving routes scoped per workspace id:
// "workspace://{id}/read", "workspace://{id}/write", "workspace://{id}/delete".
// root bounds every workspace id under one directory so a caller can never
// escape via "../" path traversal — the teacher's os.ReadFile call had no
// such bound, since it trusted every caller inside one process; Mycelia's
// workspace is reachable by principals the kernel itself authenticated, so
// the same trust no longer holds.
type Workspace struct {
	*kernel.BaseSubsystem
	root string
}

// New builds and wires the workspace subsystem's three routes onto base.
func New(base *kernel.BaseSubsystem, root string) (*Workspace, error) {
	w := &Workspace{BaseSubsystem: base, root: root}
	if err := base.AddRoute("{id}/read", w.handleRead); err != nil {
		return nil, err
	}
	if err := base.AddRoute("{id}/write", w.handleWrite); err != nil {
		return nil, err
	}
	if err := base.AddRoute("{id}/delete", w.handleDelete); err != nil {
		return nil, err
	}
	return w, nil
}

func (w *Workspace) resolve(id, file string) (string, error) {
	dir := filepath.Join(w.root, id)
	full := filepath.Join(dir, file)
	if !filepathHasPrefix(full, dir) {
		return "", kernel.NewError(kernel.ErrInvalidPath, file)
	}
	return full, nil
}

func filepathHasPrefix(path, prefix string) bool {
	rel, err := filepath.Rel(prefix, path)
	if err != nil {
		return false
	}
	return rel == "." || (len(rel) > 0 && rel[0] != '.' && !filepath.IsAbs(rel))
}

func workspaceID(msg *kernel.Message) (string, error) {
	// The router doesn't thread captured {param}s back through Message
	// today (§4.8 leaves capture propagation to the handler's own route
	// re-parse); re-split the path here rather than widen Message for one
	// call site.
	route := msg.Route()
	for i := 0; i < len(route); i++ {
		if route[i] == '/' {
			return route[:i], nil
		}
	}
	return "", kernel.NewError(kernel.ErrInvalidPath, msg.Path())
}

func (w *Workspace) handleRead(ctx context.Context, msg *kernel.Message) (any, error) {
	req, ok := msg.Body().(ReadRequest)
	if !ok {
		return nil, kernel.NewError(kernel.ErrContractViolation, "expected ReadRequest")
	}
	id, err := workspaceID(msg)
	if err != nil {
		return nil, err
	}
	path, err := w.resolve(id, req.File)
	if err != nil {
		return ReadResponse{Err: err}, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return ReadResponse{Err: fmt.Errorf("workspace: read %s: %w", req.File, err)}, nil
	}
	return ReadResponse{Data: string(data)}, nil
}

func (w *Workspace) handleWrite(ctx context.Context, msg *kernel.Message) (any, error) {
	req, ok := msg.Body().(WriteRequest)
	if !ok {
		return nil, kernel.NewError(kernel.ErrContractViolation, "expected WriteRequest")
	}
	id, err := workspaceID(msg)
	if err != nil {
		return nil, err
	}
	path, err := w.resolve(id, req.File)
	if err != nil {
		return WriteResponse{Err: err}, nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return WriteResponse{Err: err}, nil
	}
	if err := os.WriteFile(path, req.Data, 0o644); err != nil {
		return WriteResponse{Err: fmt.Errorf("workspace: write %s: %w", req.File, err)}, nil
	}
	return WriteResponse{Bytes: len(req.Data)}, nil
}

func (w *Workspace) handleDelete(ctx context.Context, msg *kernel.Message) (any, error) {
	req, ok := msg.Body().(DeleteRequest)
	if !ok {
		return nil, kernel.NewError(kernel.ErrContractViolation, "expected DeleteRequest")
	}
	id, err := workspaceID(msg)
	if err != nil {
		return nil, err
	}
	path, err := w.resolve(id, req.File)
	if err != nil {
		return DeleteResponse{Err: err}, nil
	}
	if err := os.Remove(path); err != nil {
		return DeleteResponse{Err: fmt.Errorf("workspace: delete %s: %w", req.File, err)}, nil
	}
	return DeleteResponse{}, nil
}
