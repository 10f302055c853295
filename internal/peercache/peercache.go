// Package peercache resolves bare Telegram ids to the tg.InputPeerClass
// values RPC calls require. Constructing an InputPeerChannel/InputPeerUser
// needs an access hash that only ever arrives attached to an update's
// entities, a dialogs listing, or (users only) a users.getUsers RPC — there
// is no bare-id lookup for channels or chats. One instance is shared by the
// gateway bot's dispatcher client; it is warmed continuously as updates
// flow through OnNewMessage/OnNewChannelMessage.
package peercache

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/gotd/td/tg"
)

// Cache holds the process's InputPeer lookup tables for one client's API
// surface.
type Cache struct {
	api *tg.Client

	mu       sync.RWMutex
	channels map[int64]*tg.InputPeerChannel
	users    map[int64]*tg.InputPeerUser
	chats    map[int64]*tg.InputPeerChat
	titles   map[int64]string
}

// New builds an empty Cache over api, used for the fallback users.getUsers
// RPC when neither the local cache nor the current update's entities have a
// user's access hash. api may be nil at construction (the cache is wired
// into update handlers before the client finishes booting); bind it with
// SetAPI once the client is up.
func New(api *tg.Client) *Cache {
	return &Cache{
		api:      api,
		channels: make(map[int64]*tg.InputPeerChannel),
		users:    make(map[int64]*tg.InputPeerUser),
		chats:    make(map[int64]*tg.InputPeerChat),
		titles:   make(map[int64]string),
	}
}

// SetAPI binds the RPC surface used for fallback lookups.
func (c *Cache) SetAPI(api *tg.Client) {
	c.mu.Lock()
	c.api = api
	c.mu.Unlock()
}

func (c *Cache) apiClient() (*tg.Client, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.api, c.api != nil
}

// Warm absorbs every user/chat/channel in entities into the cache, so later
// lookups for peers seen in this update (even ones the message itself isn't
// about) succeed without a network round trip.
func (c *Cache) Warm(entities tg.Entities) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for id, u := range entities.Users {
		if u == nil {
			continue
		}
		c.users[id] = &tg.InputPeerUser{UserID: u.ID, AccessHash: u.AccessHash}
	}
	for id, ch := range entities.Chats {
		if ch == nil {
			continue
		}
		c.chats[id] = &tg.InputPeerChat{ChatID: ch.ID}
		c.titles[id] = ch.Title
	}
	for id, ch := range entities.Channels {
		if ch == nil {
			continue
		}
		c.channels[id] = &tg.InputPeerChannel{ChannelID: ch.ID, AccessHash: ch.AccessHash}
		c.titles[id] = ch.Title
	}
}

// PutChannel records a channel's access hash learned from any RPC response
// that returned a full tg.Channel (ChannelsGetFullChannel, a dialogs page,
// contacts.resolveUsername, ...).
func (c *Cache) PutChannel(ch *tg.Channel) {
	if ch == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.channels[ch.ID] = &tg.InputPeerChannel{ChannelID: ch.ID, AccessHash: ch.AccessHash}
	c.titles[ch.ID] = ch.Title
}

// PutUser records a user's access hash.
func (c *Cache) PutUser(u *tg.User) {
	if u == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.users[u.ID] = &tg.InputPeerUser{UserID: u.ID, AccessHash: u.AccessHash}
}

// PutChat records a plain (non-channel) group; these carry no access hash.
func (c *Cache) PutChat(ch *tg.Chat) {
	if ch == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.chats[ch.ID] = &tg.InputPeerChat{ChatID: ch.ID}
	c.titles[ch.ID] = ch.Title
}

// Title returns a cached display title for id, if known.
func (c *Cache) Title(id int64) (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	t, ok := c.titles[id]
	return t, ok && t != ""
}

// Channel returns id's cached InputPeerChannel, if any.
func (c *Cache) Channel(id int64) (*tg.InputPeerChannel, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	p, ok := c.channels[id]
	return p, ok
}

// InputChannel returns id's cached access hash as an *tg.InputChannel, the
// form RPCs like channels.deleteMessages take instead of an input peer.
func (c *Cache) InputChannel(id int64) (*tg.InputChannel, error) {
	c.mu.RLock()
	p, ok := c.channels[id]
	c.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("peercache: channel %d has no cached access hash", id)
	}
	return &tg.InputChannel{ChannelID: p.ChannelID, AccessHash: p.AccessHash}, nil
}

// ResolveChannelID returns the InputPeerClass for a channel/supergroup id
// already present in the cache (warmed from an update, a dialogs listing,
// or a prior resolve), failing if the access hash was never observed.
func (c *Cache) ResolveChannelID(id int64) (tg.InputPeerClass, error) {
	c.mu.RLock()
	p, ok := c.channels[id]
	c.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("peercache: channel %d has no cached access hash; it must appear in a dispatched update or dialogs listing first", id)
	}
	return p, nil
}

// ResolveUserID returns the InputPeerClass for a user id, falling back to
// the users.getUsers RPC (the one bare-id lookup the API allows).
func (c *Cache) ResolveUserID(ctx context.Context, id int64) (tg.InputPeerClass, error) {
	c.mu.RLock()
	p, ok := c.users[id]
	c.mu.RUnlock()
	if ok {
		return p, nil
	}

	api, ok := c.apiClient()
	if !ok {
		return nil, fmt.Errorf("peercache: user %d not cached and no API client bound yet", id)
	}
	users, err := api.UsersGetUsers(ctx, []tg.InputUserClass{&tg.InputUser{UserID: id}})
	if err != nil {
		return nil, fmt.Errorf("peercache: UsersGetUsers(%d): %w", id, err)
	}
	if len(users) == 0 {
		return nil, fmt.Errorf("peercache: user %d not found", id)
	}
	u, ok := users[0].(*tg.User)
	if !ok {
		return nil, fmt.Errorf("peercache: unexpected type for user %d: %T", id, users[0])
	}
	c.PutUser(u)
	return &tg.InputPeerUser{UserID: u.ID, AccessHash: u.AccessHash}, nil
}

// ResolveChatID dispatches to the channel or plain-chat cache depending on
// which table knows about id. Chat ids and channel ids never collide in
// Telegram's id space, so checking both tables is unambiguous.
func (c *Cache) ResolveChatID(ctx context.Context, id int64) (tg.InputPeerClass, error) {
	if p, err := c.ResolveChannelID(id); err == nil {
		return p, nil
	}
	c.mu.RLock()
	p, ok := c.chats[id]
	c.mu.RUnlock()
	if ok {
		return p, nil
	}
	return nil, fmt.Errorf("peercache: chat/channel %d not cached", id)
}

// ResolveUsername resolves an @username (channel, supergroup, or user) via
// contacts.resolveUsername, caching whatever it finds.
func (c *Cache) ResolveUsername(ctx context.Context, username string) (tg.InputPeerClass, int64, error) {
	username = strings.TrimPrefix(strings.TrimSpace(username), "@")
	api, ok := c.apiClient()
	if !ok {
		return nil, 0, fmt.Errorf("peercache: no API client bound yet")
	}
	resolved, err := api.ContactsResolveUsername(ctx, &tg.ContactsResolveUsernameRequest{Username: username})
	if err != nil {
		return nil, 0, fmt.Errorf("peercache: resolve @%s: %w", username, err)
	}

	for _, ch := range resolved.Chats {
		if channel, ok := ch.(*tg.Channel); ok {
			c.PutChannel(channel)
			return &tg.InputPeerChannel{ChannelID: channel.ID, AccessHash: channel.AccessHash}, channel.ID, nil
		}
	}
	for _, u := range resolved.Users {
		if user, ok := u.(*tg.User); ok {
			c.PutUser(user)
			return &tg.InputPeerUser{UserID: user.ID, AccessHash: user.AccessHash}, user.ID, nil
		}
	}
	return nil, 0, fmt.Errorf("peercache: @%s did not resolve to a channel or user", username)
}

// GetInputPeerRaw mirrors the cache → entities → fallback resolution order
// for one message's own PeerID, the shape most update handlers need.
func (c *Cache) GetInputPeerRaw(entities tg.Entities, msg *tg.Message) (tg.InputPeerClass, error) {
	if msg == nil {
		return nil, fmt.Errorf("peercache: nil message")
	}
	c.Warm(entities)

	switch peer := msg.PeerID.(type) {
	case *tg.PeerUser:
		if p, ok := func() (*tg.InputPeerUser, bool) {
			c.mu.RLock()
			defer c.mu.RUnlock()
			p, ok := c.users[peer.UserID]
			return p, ok
		}(); ok {
			return p, nil
		}
		return c.ResolveUserID(context.Background(), peer.UserID)
	case *tg.PeerChat:
		c.mu.RLock()
		p, ok := c.chats[peer.ChatID]
		c.mu.RUnlock()
		if !ok {
			return nil, fmt.Errorf("peercache: chat %d not found in cache or entities", peer.ChatID)
		}
		return p, nil
	case *tg.PeerChannel:
		c.mu.RLock()
		p, ok := c.channels[peer.ChannelID]
		c.mu.RUnlock()
		if !ok {
			return nil, fmt.Errorf("peercache: channel %d not found in cache or entities", peer.ChannelID)
		}
		return p, nil
	default:
		return nil, fmt.Errorf("peercache: unsupported PeerID type %T", peer)
	}
}
