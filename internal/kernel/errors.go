package kernel

import (
	"errors"
	"fmt"
)

// ErrorKind enumerates the error vocabulary the core surfaces, per spec §7.
// The teacher's kernel returns ad-hoc fmt.Errorf("E_POLICY: ...") strings;
// Mycelia keeps the same "fixed prefix + detail" shape but makes the prefix
// a typed, comparable value so callers can errors.Is/errors.As instead of
// string-matching.
type ErrorKind string

const (
	ErrInvalidPath         ErrorKind = "invalid_path"
	ErrUnknownSubsystem    ErrorKind = "unknown_subsystem"
	ErrUnknownRoute        ErrorKind = "unknown_route"
	ErrPatternConflict     ErrorKind = "pattern_conflict"
	ErrContractViolation   ErrorKind = "contract_violation"
	ErrCyclicDependency    ErrorKind = "cyclic_dependency"
	ErrUnknownPrincipal    ErrorKind = "unknown_principal"
	ErrExpiredPrincipal    ErrorKind = "expired_principal"
	ErrPermissionDenied    ErrorKind = "permission_denied"
	ErrChannelACLDenied    ErrorKind = "channel_acl_denied"
	ErrQueueFull           ErrorKind = "queue_full"
	ErrTimeout             ErrorKind = "timeout"
	ErrCancelled           ErrorKind = "cancelled"
	ErrHandlerError        ErrorKind = "handler_error"
	ErrContractUnavailable ErrorKind = "contract_unavailable"
)

// KernelError wraps a Kind with a human detail and an optional cause,
// mirroring the teacher's "E_POLICY: no permission to send to passive
// mailbox %d from %d" style messages but as a structured value.
type KernelError struct {
	Kind   ErrorKind
	Detail string
	Cause  error
}

func (e *KernelError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Detail, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Detail)
}

func (e *KernelError) Unwrap() error { return e.Cause }

// Is lets errors.Is(err, ErrPermissionDenied-shaped sentinel) work by kind,
// e.g. errors.Is(err, kernel.NewError(ErrPermissionDenied, "")).
func (e *KernelError) Is(target error) bool {
	var other *KernelError
	if errors.As(target, &other) {
		return other.Kind == e.Kind
	}
	return false
}

// NewError builds a KernelError with no wrapped cause.
func NewError(kind ErrorKind, detail string) *KernelError {
	return &KernelError{Kind: kind, Detail: detail}
}

// WrapError builds a KernelError preserving the original cause, per §7's
// "handler_error ... wrap of downstream handler failure with original cause
// preserved".
func WrapError(kind ErrorKind, detail string, cause error) *KernelError {
	return &KernelError{Kind: kind, Detail: detail, Cause: cause}
}

// KindOf extracts the ErrorKind from err, if any, for adapters translating
// to transport-specific status codes (§7 "user-visible failure").
func KindOf(err error) (ErrorKind, bool) {
	var ke *KernelError
	if errors.As(err, &ke) {
		return ke.Kind, true
	}
	return "", false
}
