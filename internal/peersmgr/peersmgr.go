// Package peersmgr wraps gotd's peers.Manager with a bbolt-backed
// persistent peer cache, one bbolt file per user session, so each user's
// session client resolves private peers independently and the cache
// survives restarts.
package peersmgr

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	bboltdb "github.com/gotd/contrib/bbolt"
	contribstorage "github.com/gotd/contrib/storage"
	"github.com/gotd/td/telegram/peers"
	"github.com/gotd/td/tg"
	"go.etcd.io/bbolt"

	"gatewaybot/internal/logger"
)

const (
	peersBucketName           = "peers"
	dbOpenTimeout             = time.Second
	dbFileMode      os.FileMode = 0o600
)

var peersBucketBytes = []byte(peersBucketName)

// Service owns one user's peer cache: the persistent bbolt store plus the
// in-memory gotd peers.Manager built over it.
type Service struct {
	db    *bbolt.DB
	store contribstorage.PeerStorage
	Mgr   *peers.Manager
}

// Open opens (creating if needed) the bbolt file at dbPath and builds a
// peers.Manager over api backed by it.
func Open(api *tg.Client, dbPath string) (*Service, error) {
	if dir := filepath.Dir(dbPath); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, fmt.Errorf("peersmgr: ensure dir %q: %w", dir, err)
		}
	}

	db, err := bbolt.Open(dbPath, dbFileMode, &bbolt.Options{Timeout: dbOpenTimeout})
	if err != nil {
		return nil, fmt.Errorf("peersmgr: open db: %w", err)
	}

	store := bboltdb.NewPeerStorage(db, peersBucketBytes)
	return &Service{
		db:    db,
		store: store,
		Mgr:   (peers.Options{}).Build(api),
	}, nil
}

// ResolveChannelID resolves a bare channel/supergroup id into an input
// peer, fetching its access hash over RPC if the manager has not seen it
// before.
func (s *Service) ResolveChannelID(ctx context.Context, id int64) (tg.InputPeerClass, error) {
	channel, err := s.Mgr.ResolveChannelID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("peersmgr: resolve channel %d: %w", id, err)
	}
	return channel.InputPeer(), nil
}

// ResolveChatID resolves a bare chat id, trying the channel table first
// since channel and basic-group ids never collide in Telegram's id space.
func (s *Service) ResolveChatID(ctx context.Context, id int64) (tg.InputPeerClass, error) {
	if p, err := s.ResolveChannelID(ctx, id); err == nil {
		return p, nil
	}
	chat, err := s.Mgr.ResolveChatID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("peersmgr: resolve chat %d: %w", id, err)
	}
	return chat.InputPeer(), nil
}

// ResolveUserID resolves a bare user id into an input peer.
func (s *Service) ResolveUserID(ctx context.Context, id int64) (tg.InputPeerClass, error) {
	user, err := s.Mgr.ResolveUserID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("peersmgr: resolve user %d: %w", id, err)
	}
	return user.InputPeer(), nil
}

// ResolveUsername resolves an @username directly over RPC; the manager has
// no username table of its own, so this bypasses it the same way
// peercache.Cache.ResolveUsername does.
func (s *Service) ResolveUsername(ctx context.Context, username string) (tg.InputPeerClass, int64, error) {
	username = strings.TrimPrefix(strings.TrimSpace(username), "@")
	resolved, err := s.Mgr.API().ContactsResolveUsername(ctx, &tg.ContactsResolveUsernameRequest{Username: username})
	if err != nil {
		return nil, 0, fmt.Errorf("peersmgr: resolve @%s: %w", username, err)
	}
	for _, ch := range resolved.Chats {
		if channel, ok := ch.(*tg.Channel); ok {
			return &tg.InputPeerChannel{ChannelID: channel.ID, AccessHash: channel.AccessHash}, channel.ID, nil
		}
	}
	for _, u := range resolved.Users {
		if user, ok := u.(*tg.User); ok {
			return &tg.InputPeerUser{UserID: user.ID, AccessHash: user.AccessHash}, user.ID, nil
		}
	}
	return nil, 0, fmt.Errorf("peersmgr: @%s did not resolve to a channel or user", username)
}

// PutUser, PutChannel, and PutChat are no-ops: the underlying peers.Manager
// already persists every entity it resolves or is Applied with, unlike
// peercache.Cache's hand-rolled tables. They exist only so Service
// satisfies the same peer-resolver shape the app package's Telegram
// adapter is built against.
func (s *Service) PutUser(*tg.User)       {}
func (s *Service) PutChannel(*tg.Channel) {}
func (s *Service) PutChat(*tg.Chat)       {}

// Close releases the bbolt file.
func (s *Service) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Store exposes the persistent peer storage for gotd's update hook so
// peers seen in dispatched updates get cached automatically.
func (s *Service) Store() contribstorage.PeerStorage {
	return s.store
}

const dialogsWarmupLimit = 100

// WarmupFromDialogs refreshes the manager from a live dialog listing, so
// that a subsequent resolve of a private peer (one the user hasn't
// messaged through this client before) can succeed without a fresh
// network round-trip.
func (s *Service) WarmupFromDialogs(ctx context.Context, api *tg.Client) error {
	res, err := api.MessagesGetDialogs(ctx, &tg.MessagesGetDialogsRequest{
		OffsetPeer: &tg.InputPeerEmpty{},
		Limit:      dialogsWarmupLimit,
	})
	if err != nil {
		logger.Warnf("peersmgr: dialog warmup failed: %v", err)
		return err
	}

	var users []tg.UserClass
	var chats []tg.ChatClass
	switch r := res.(type) {
	case *tg.MessagesDialogs:
		users, chats = r.Users, r.Chats
	case *tg.MessagesDialogsSlice:
		users, chats = r.Users, r.Chats
	}

	if len(users) == 0 && len(chats) == 0 {
		return nil
	}
	return s.Mgr.Apply(ctx, users, chats)
}
