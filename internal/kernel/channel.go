package kernel

import (
	"log/slog"
	"sync"
)

// Channel is a named communication scope between an owning subsystem and a
// set of participants, gated by an RWS. §4.14.
type Channel struct {
	Route        string
	Owner        PublicKey
	participants *ReaderWriterSet
}

// VerifyAccess reports whether key may use this channel at level, logging
// the denial for audit (every channel ACL rejection is observable, per
// §4.14's "audited" requirement).
func (c *Channel) VerifyAccess(key PublicKey, level AccessLevel, logger *slog.Logger) bool {
	ok := c.participants.LevelOf(key) >= level
	if !ok && logger != nil {
		logger.Warn("channel access denied", "route", c.Route)
	}
	return ok
}

// AddParticipant grants key access at level on this channel, if granter may
// grant.
func (c *Channel) AddParticipant(granter, key PublicKey, level AccessLevel) error {
	switch level {
	case LevelWrite, LevelGrant:
		return c.participants.AddWriter(granter, key)
	default:
		return c.participants.AddReader(granter, key)
	}
}

func (c *Channel) RemoveParticipant(granter, key PublicKey) error {
	if err := c.participants.RemoveWriter(granter, key); err != nil {
		return err
	}
	return c.participants.RemoveReader(granter, key)
}

// ChannelManagerSubsystem registers and resolves Channels by route and by
// owner, and is the sole authority SendProtected consults for channel ACL
// enforcement (§4.12 step 3, §4.14).
type ChannelManagerSubsystem struct {
	mu      sync.RWMutex
	byRoute map[string]*Channel
	byOwner map[PublicKey]map[string]*Channel
	logger  *slog.Logger
}

func NewChannelManagerSubsystem(logger *slog.Logger) *ChannelManagerSubsystem {
	return &ChannelManagerSubsystem{
		byRoute: map[string]*Channel{},
		byOwner: map[PublicKey]map[string]*Channel{},
		logger:  logger,
	}
}

// RegisterChannel creates a channel at route owned by owner, with kernelKey
// granted full access per RWS convention.
func (cm *ChannelManagerSubsystem) RegisterChannel(route string, owner, kernelKey PublicKey) (*Channel, error) {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	if _, exists := cm.byRoute[route]; exists {
		return nil, NewError(ErrPatternConflict, route)
	}
	ch := &Channel{Route: route, Owner: owner, participants: NewRWS(owner, kernelKey)}
	cm.byRoute[route] = ch
	if cm.byOwner[owner] == nil {
		cm.byOwner[owner] = map[string]*Channel{}
	}
	cm.byOwner[owner][route] = ch
	return ch, nil
}

// GetChannelFor resolves a channel by exact route.
func (cm *ChannelManagerSubsystem) GetChannelFor(route string) (*Channel, bool) {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	ch, ok := cm.byRoute[route]
	return ch, ok
}

// ChannelsOwnedBy lists every channel owner registered.
func (cm *ChannelManagerSubsystem) ChannelsOwnedBy(owner PublicKey) []*Channel {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	owned := cm.byOwner[owner]
	out := make([]*Channel, 0, len(owned))
	for _, ch := range owned {
		out = append(out, ch)
	}
	return out
}

// VerifyAccess resolves route and checks key's access at level, denying
// unknown routes outright (channel_acl_denied, not unknown_route — from the
// caller's perspective a channel they can't see should look identical to
// one they can't use).
func (cm *ChannelManagerSubsystem) VerifyAccess(route string, key PublicKey, level AccessLevel) error {
	ch, ok := cm.GetChannelFor(route)
	if !ok || !ch.VerifyAccess(key, level, cm.logger) {
		return NewError(ErrChannelACLDenied, route)
	}
	return nil
}

// UnregisterChannel removes route from both indices.
func (cm *ChannelManagerSubsystem) UnregisterChannel(route string) {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	ch, ok := cm.byRoute[route]
	if !ok {
		return
	}
	delete(cm.byRoute, route)
	if owned := cm.byOwner[ch.Owner]; owned != nil {
		delete(owned, route)
	}
}
