// Package registry is the session/bot registry: two process-lifetime
// caches of booted Telegram clients keyed by user id — one for each
// user's own session-string client (read access to restricted content),
// one for each user's custom re-upload bot. Both are created lazily on
// first lookup and memoized; a failed boot is reported to the caller
// rather than cached, so the next lookup retries.
package registry

import (
	"context"
	"strconv"
	"sync"

	"gatewaybot/internal/apperr"
	"gatewaybot/internal/config"
	"gatewaybot/internal/logger"
	"gatewaybot/internal/store"
	"gatewaybot/internal/tgclient"
	"gatewaybot/internal/vault"
)

// Registry owns the two per-user client caches.
type Registry struct {
	store *store.Store
	vault *vault.Vault

	dataDir string

	mu           sync.Mutex
	sessionByUID map[int64]*tgclient.Client
	botByUID     map[int64]*tgclient.Client
}

// New builds a Registry backed by s (for reading stored ciphertext) and v
// (for decrypting it). dataDir roots the per-user bbolt peer caches.
func New(s *store.Store, v *vault.Vault, dataDir string) *Registry {
	return &Registry{
		store:        s,
		vault:        v,
		dataDir:      dataDir,
		sessionByUID: make(map[int64]*tgclient.Client),
		botByUID:     make(map[int64]*tgclient.Client),
	}
}

// SessionClient returns userID's session client, booting it on first
// call. Returns apperr.NoUserSession if the user has never logged in or
// the stored session has gone stale.
func (r *Registry) SessionClient(ctx context.Context, userID int64) (*tgclient.Client, error) {
	r.mu.Lock()
	if c, ok := r.sessionByUID[userID]; ok {
		r.mu.Unlock()
		return c, nil
	}
	r.mu.Unlock()

	cipher, err := r.store.GetSession(ctx, userID)
	if err != nil {
		return nil, apperr.Wrap(apperr.NoUserSession, err)
	}
	plain, err := r.vault.Decrypt(cipher)
	if err != nil {
		return nil, err
	}

	env := config.Env()
	client, err := tgclient.NewUserSession(ctx, env.APIID, env.APIHash, plain)
	if err != nil {
		return nil, err
	}

	peerDBPath := r.dataDir + "/peers/session_" + strconv.FormatInt(userID, 10) + ".bbolt"
	if err := client.OpenPeerCache(ctx, peerDBPath); err != nil {
		logger.Warnf("registry: peer cache for user %d: %v", userID, err)
	}

	r.mu.Lock()
	if existing, ok := r.sessionByUID[userID]; ok {
		r.mu.Unlock()
		client.Stop()
		return existing, nil
	}
	r.sessionByUID[userID] = client
	r.mu.Unlock()

	return client, nil
}

// BotClient returns userID's configured upload bot, booting it on first
// call. Returns apperr.NoUserBot if the user has never set one.
func (r *Registry) BotClient(ctx context.Context, userID int64) (*tgclient.Client, error) {
	r.mu.Lock()
	if c, ok := r.botByUID[userID]; ok {
		r.mu.Unlock()
		return c, nil
	}
	r.mu.Unlock()

	cipher, err := r.store.GetBotToken(ctx, userID)
	if err != nil {
		return nil, apperr.Wrap(apperr.NoUserBot, err)
	}
	token, err := r.vault.Decrypt(cipher)
	if err != nil {
		return nil, err
	}

	env := config.Env()
	client, err := tgclient.NewBot(ctx, env.APIID, env.APIHash, token)
	if err != nil {
		return nil, apperr.Wrap(apperr.NoUserBot, err)
	}

	peerDBPath := r.dataDir + "/peers/bot_" + strconv.FormatInt(userID, 10) + ".bbolt"
	if err := client.OpenPeerCache(ctx, peerDBPath); err != nil {
		logger.Warnf("registry: peer cache for user %d's bot: %v", userID, err)
	}

	r.mu.Lock()
	if existing, ok := r.botByUID[userID]; ok {
		r.mu.Unlock()
		client.Stop()
		return existing, nil
	}
	r.botByUID[userID] = client
	r.mu.Unlock()

	return client, nil
}

// InvalidateSession drops userID's cached session client, stopping it first.
// Called on /logout and on unrecoverable auth failure.
func (r *Registry) InvalidateSession(userID int64) {
	r.mu.Lock()
	client, ok := r.sessionByUID[userID]
	delete(r.sessionByUID, userID)
	r.mu.Unlock()
	if ok {
		client.Stop()
	}
}

// InvalidateBot drops userID's cached bot client, stopping it first.
// Called on /rembot.
func (r *Registry) InvalidateBot(userID int64) {
	r.mu.Lock()
	client, ok := r.botByUID[userID]
	delete(r.botByUID, userID)
	r.mu.Unlock()
	if ok {
		client.Stop()
	}
}
