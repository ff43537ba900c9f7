package telegram

import (
	"sync"

	"github.com/gotd/td/tg"
)

// PeerCache stores access hashes discovered from inbound updates, so outbound
// RPC calls can resolve group and user ids back into Telegram input peers.
type PeerCache struct {
	mu       sync.RWMutex
	channels map[int64]int64
	users    map[int64]int64
}

// NewPeerCache creates an empty, concurrency-safe peer cache.
func NewPeerCache() *PeerCache {
	return &PeerCache{
		channels: make(map[int64]int64),
		users:    make(map[int64]int64),
	}
}

// Remember ingests the entity lists attached to one update container.
func (c *PeerCache) Remember(ents tg.Entities) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for id, channel := range ents.Channels {
		c.channels[id] = channel.AccessHash
	}
	for id, user := range ents.Users {
		c.users[id] = user.AccessHash
	}
}

// Channel resolves a group id into an input channel.
func (c *PeerCache) Channel(groupID int64) (*tg.InputChannel, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	hash, ok := c.channels[groupID]
	if !ok {
		return nil, false
	}
	return &tg.InputChannel{ChannelID: groupID, AccessHash: hash}, true
}

// ChannelPeer resolves a group id into an input peer for message RPCs.
func (c *PeerCache) ChannelPeer(groupID int64) (tg.InputPeerClass, bool) {
	channel, ok := c.Channel(groupID)
	if !ok {
		return nil, false
	}
	return &tg.InputPeerChannel{ChannelID: channel.ChannelID, AccessHash: channel.AccessHash}, true
}

// User resolves a user id into an input user for user RPCs.
func (c *PeerCache) User(userID int64) (*tg.InputUser, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	hash, ok := c.users[userID]
	if !ok {
		return nil, false
	}
	return &tg.InputUser{UserID: userID, AccessHash: hash}, true
}

// UserPeer resolves a user id into an input peer.
func (c *PeerCache) UserPeer(userID int64) (tg.InputPeerClass, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	hash, ok := c.users[userID]
	if !ok {
		return nil, false
	}
	return &tg.InputPeerUser{UserID: userID, AccessHash: hash}, true
}
