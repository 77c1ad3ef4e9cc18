package kernel

import (
	"regexp"
	"strings"

	"github.com/google/uuid"
)

// pathPattern validates "subsystem://route/segments" addresses (§3 Message).
// The teacher routes on a bare service name; Mycelia's route carries the
// hierarchical path the SubsystemRouter later pattern-matches on.
var pathPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_-]*://[A-Za-z0-9_\-./{}*]*$`)

// Message is the unit the kernel ships between subsystems. Body is left as
// `any` deliberately: the teacher's Handler signature already takes
// `interface{}` payloads keyed by a Go type switch, and nothing in the spec
// wants the core to know about subsystem-specific payload shapes.
type Message struct {
	id     string
	path   string
	body   any
	meta   *MessageMetadata
	pooled bool
}

// NewMessage builds a fresh, non-pooled message. path must parse as
// "subsystem://route".
func NewMessage(path string, body any) (*Message, error) {
	if !pathPattern.MatchString(path) {
		return nil, NewError(ErrInvalidPath, path)
	}
	return &Message{
		id:   uuid.NewString(),
		path: path,
		body: body,
		meta: newMetadata(),
	}, nil
}

func (m *Message) ID() string              { return m.id }
func (m *Message) Path() string             { return m.path }
func (m *Message) Body() any                { return m.body }
func (m *Message) Meta() *MessageMetadata   { return m.meta }
func (m *Message) IsPooled() bool           { return m.pooled }

// Subsystem returns the token before "://".
func (m *Message) Subsystem() string {
	sub, _, _ := strings.Cut(m.path, "://")
	return sub
}

// Route returns everything after "://".
func (m *Message) Route() string {
	_, route, ok := strings.Cut(m.path, "://")
	if !ok {
		return ""
	}
	return route
}

// reset clears a pooled message back to its zero-ish state for reuse by
// MessagePool.release, mirroring the teacher's object-pool-free style but
// now centralized since Mycelia actually pools.
func (m *Message) reset() {
	m.id = uuid.NewString()
	m.path = ""
	m.body = nil
	m.meta.reset()
}
