package kernel

import (
	"maps"
	"time"
)

// MessageMetadata splits into a fixed dictionary (each key set at most once,
// never overwritten after — createdAt at construction; correlationId,
// inReplyTo, replyTo, callerId and callerIdSetBy when first stamped) and a
// mutable one routing hints can rewrite in flight
// (processImmediately, replyPath, arbitrary hints), per §3.
type MessageMetadata struct {
	fixed   map[string]any
	mutable map[string]any
}

func newMetadata() *MessageMetadata {
	return &MessageMetadata{
		fixed:   map[string]any{"createdAt": time.Now()},
		mutable: map[string]any{},
	}
}

func (m *MessageMetadata) reset() {
	clear(m.fixed)
	clear(m.mutable)
	m.fixed["createdAt"] = time.Now()
}

// GetCustomField reads a fixed-dictionary entry.
func (m *MessageMetadata) GetCustomField(key string) (any, bool) {
	v, ok := m.fixed[key]
	return v, ok
}

// setFixedField sets a fixed-dictionary entry exactly once; a later attempt
// to overwrite an already-set key is refused and returns false. Outside
// tests its only caller is KernelSubsystem.SendProtected, which stamps
// callerId, callerIdSetBy and correlationId.
func (m *MessageMetadata) setFixedField(key string, value any) bool {
	if _, exists := m.fixed[key]; exists {
		return false
	}
	m.fixed[key] = value
	return true
}

// GetCustomMutableField reads a mutable-dictionary entry.
func (m *MessageMetadata) GetCustomMutableField(key string) (any, bool) {
	v, ok := m.mutable[key]
	return v, ok
}

// UpdateMutable merges patch into the mutable dictionary; existing keys are
// overwritten, new keys are added. This is the only mutation path routing
// hooks and facets are allowed — the fixed dictionary never appears here.
func (m *MessageMetadata) UpdateMutable(patch map[string]any) {
	maps.Copy(m.mutable, patch)
}

// CorrelationID returns the fixed correlationId set up for response
// correlation, if any (§4.13).
func (m *MessageMetadata) CorrelationID() (string, bool) {
	v, ok := m.fixed["correlationId"]
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

// InReplyTo returns the fixed inReplyTo correlation id this message answers.
func (m *MessageMetadata) InReplyTo() (string, bool) {
	v, ok := m.fixed["inReplyTo"]
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

// ReplyTo returns the fixed reply path, if the sender asked for one.
func (m *MessageMetadata) ReplyTo() (string, bool) {
	v, ok := m.fixed["replyTo"]
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

// CallerID returns the resolved caller's PKR uuid, stamped by the kernel in
// SendProtected (§4.12 step 3).
func (m *MessageMetadata) CallerID() (string, bool) {
	v, ok := m.fixed["callerId"]
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

// CallerIDSetBy returns the kernel's own PKR uuid, proving callerId was
// stamped by the kernel's SendProtected and not forged by a handler — §4.12
// step 3 ("set callerIdSetBy to the kernel's PKR"), Testable Property 5
// ("options.callerIdSetBy equals the kernel's PKR").
func (m *MessageMetadata) CallerIDSetBy() (string, bool) {
	v, ok := m.fixed["callerIdSetBy"]
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

// processImmediatelyHint reads the mutable processImmediately hint a
// routing hook may have set, for the precedence rule in SendOptions.
func (m *MessageMetadata) processImmediatelyHint() (bool, bool) {
	v, ok := m.mutable["processImmediately"]
	if !ok {
		return false, false
	}
	b, ok := v.(bool)
	return b, ok
}
