// Package tgclient builds and owns the two kinds of gotd/td clients the
// gateway bot needs: the single long-lived bot client that serves the
// dispatcher, and per-user session/bot clients booted on demand by the
// registry. It wraps telegram.Client's Run-based lifecycle behind a
// simple Start/Stop pair.
package tgclient

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gotd/contrib/middleware/floodwait"
	"github.com/gotd/td/session"
	"github.com/gotd/td/telegram"
	"github.com/gotd/td/telegram/auth"
	"github.com/gotd/td/tg"

	"gatewaybot/internal/apperr"
	"gatewaybot/internal/logger"
	"gatewaybot/internal/peersmgr"
)

// readyTimeout bounds how long Start waits for the background Run
// goroutine to report an authenticated, usable client.
const readyTimeout = 30 * time.Second

// Client wraps one gotd telegram.Client plus its API surface and
// lifecycle. A Client is not reusable after Stop.
type Client struct {
	raw   *telegram.Client
	api   *tg.Client
	peers *peersmgr.Service
	sess  *memSession

	cancel context.CancelFunc
	wg     sync.WaitGroup
	runErr error
}

// API returns the raw MTProto RPC surface.
func (c *Client) API() *tg.Client { return c.api }

// Peers returns this client's peer cache, or nil if one wasn't opened.
func (c *Client) Peers() *peersmgr.Service { return c.peers }

// memSession implements gotd's session.Storage over an in-memory byte
// slice loaded once at construction, matching the pack's
// FranLegon-cloud-drives-sync MemorySession pattern but sourcing the
// initial bytes from a base64 "session string" rather than a DB field.
type memSession struct {
	mu   sync.Mutex
	data []byte
}

func (m *memSession) LoadSession(context.Context) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.data) == 0 {
		return nil, session.ErrNotFound
	}
	return m.data, nil
}

func (m *memSession) StoreSession(_ context.Context, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data = data
	return nil
}

// EncodeSessionString renders raw session bytes (as produced by
// StoreSession) into the opaque string the vault encrypts and the store
// persists per user.
func EncodeSessionString(raw []byte) string { return base64.StdEncoding.EncodeToString(raw) }

// decodeSessionString reverses EncodeSessionString; an empty input is a
// fresh, not-yet-authenticated session.
func decodeSessionString(s string) ([]byte, error) {
	if s == "" {
		return nil, nil
	}
	return base64.StdEncoding.DecodeString(s)
}

type startResult struct {
	self *tg.User
	err  error
}

// start is shared by NewUserSession, NewBot, and NewDispatcherBot: it
// builds a floodwait-wrapped telegram.Client over storage, runs it in a
// background goroutine, and blocks until either the auth callback
// completes or readyTimeout elapses. handler is nil for clients that only
// ever make RPC calls (session/bot clients booted by the registry); the
// single long-lived gateway bot client passes its tg.UpdateDispatcher so
// incoming updates actually reach the command/callback routing table.
func start(ctx context.Context, apiID int, apiHash string, storage telegram.SessionStorage, handler telegram.UpdateHandler, authenticate func(ctx context.Context, raw *telegram.Client) (*tg.User, error)) (*Client, error) {
	waiter := floodwait.NewSimpleWaiter().WithMaxRetries(10)

	raw := telegram.NewClient(apiID, apiHash, telegram.Options{
		SessionStorage: storage,
		UpdateHandler:  handler,
		Middlewares:    []telegram.Middleware{waiter},
	})

	runCtx, cancel := context.WithCancel(context.Background())
	result := make(chan startResult, 1)

	c := &Client{raw: raw, cancel: cancel}
	if ms, ok := storage.(*memSession); ok {
		c.sess = ms
	}

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		runErr := raw.Run(runCtx, func(ctx context.Context) error {
			c.api = raw.API()
			self, authErr := authenticate(ctx, raw)
			result <- startResult{self: self, err: authErr}
			if authErr != nil {
				return authErr
			}
			<-ctx.Done()
			return ctx.Err()
		})
		c.runErr = runErr
	}()

	select {
	case res := <-result:
		if res.err != nil {
			cancel()
			c.wg.Wait()
			return nil, res.err
		}
		return c, nil
	case <-ctx.Done():
		cancel()
		c.wg.Wait()
		return nil, ctx.Err()
	case <-time.After(readyTimeout):
		cancel()
		c.wg.Wait()
		return nil, fmt.Errorf("tgclient: timed out waiting for client to start")
	}
}

// NewUserSession boots a client authenticated with a prior user session
// (decoded from sessionString). It never performs interactive login: an
// empty or invalid session surfaces apperr.NoUserSession so the caller can
// prompt the user to /login again.
func NewUserSession(ctx context.Context, apiID int, apiHash, sessionString string) (*Client, error) {
	raw, err := decodeSessionString(sessionString)
	if err != nil {
		return nil, apperr.Wrap(apperr.NoUserSession, err)
	}
	storage := &memSession{data: raw}

	return start(ctx, apiID, apiHash, storage, nil, func(ctx context.Context, cl *telegram.Client) (*tg.User, error) {
		status, err := cl.Auth().Status(ctx)
		if err != nil {
			return nil, apperr.Wrap(apperr.NoUserSession, err)
		}
		if !status.Authorized {
			return nil, apperr.New(apperr.NoUserSession, "stored session is not authorized")
		}
		self, err := cl.Self(ctx)
		if err != nil {
			return nil, apperr.Wrap(apperr.NoUserSession, err)
		}
		return self, nil
	})
}

// NewBot boots a client authenticated with botToken, used both for the
// gateway bot's own BOT_TOKEN and for a user's custom re-upload bot.
func NewBot(ctx context.Context, apiID int, apiHash, botToken string) (*Client, error) {
	storage := &memSession{}

	return start(ctx, apiID, apiHash, storage, nil, func(ctx context.Context, cl *telegram.Client) (*tg.User, error) {
		if _, err := cl.Auth().Bot(ctx, botToken); err != nil {
			return nil, apperr.Wrap(apperr.NoUserBot, err)
		}
		self, err := cl.Self(ctx)
		if err != nil {
			return nil, apperr.Wrap(apperr.NoUserBot, err)
		}
		return self, nil
	})
}

// NewLoginSession boots a fresh, unauthenticated client for the
// interactive /login flow. Unlike NewUserSession it does not require a
// prior session string and does not attempt to authenticate on its own:
// the caller drives SendCode, SignIn, and SignInPassword across separate
// conversation turns, then calls SessionString once authorized.
func NewLoginSession(ctx context.Context, apiID int, apiHash string) (*Client, error) {
	storage := &memSession{}
	return start(ctx, apiID, apiHash, storage, nil, func(ctx context.Context, cl *telegram.Client) (*tg.User, error) {
		return nil, nil
	})
}

// SendCode requests a login code for phone, returning the phone-code hash
// SignIn needs to complete the exchange.
func (c *Client) SendCode(ctx context.Context, phone string) (phoneCodeHash string, err error) {
	sent, err := c.raw.Auth().SendCode(ctx, phone, auth.SendCodeOptions{})
	if err != nil {
		return "", apperr.Wrap(apperr.NoUserSession, err)
	}
	code, ok := sent.(*tg.AuthSentCode)
	if !ok {
		return "", apperr.New(apperr.NoUserSession, "unsupported sent-code response")
	}
	return code.PhoneCodeHash, nil
}

// SignIn submits the code the user received by SMS/app. needsPassword is
// true when the account has cloud password (2FA) enabled and the caller
// must follow up with SignInPassword.
func (c *Client) SignIn(ctx context.Context, phone, code, phoneCodeHash string) (needsPassword bool, err error) {
	_, err = c.raw.Auth().SignIn(ctx, phone, code, phoneCodeHash)
	if errors.Is(err, auth.ErrPasswordAuthNeeded) {
		return true, nil
	}
	if err != nil {
		return false, apperr.Wrap(apperr.NoUserSession, err)
	}
	return false, nil
}

// SignInPassword completes a 2FA login with the account's cloud password.
func (c *Client) SignInPassword(ctx context.Context, password string) error {
	if _, err := c.raw.Auth().Password(ctx, password); err != nil {
		return apperr.Wrap(apperr.NoUserSession, err)
	}
	return nil
}

// Self returns the authenticated user, confirming login completed.
func (c *Client) Self(ctx context.Context) (*tg.User, error) {
	return c.raw.Self(ctx)
}

// SessionString renders this client's current session bytes for
// persistence, in the same encoding NewUserSession decodes.
func (c *Client) SessionString() (string, error) {
	if c.sess == nil {
		return "", apperr.New(apperr.NoUserSession, "client has no exportable session")
	}
	c.sess.mu.Lock()
	defer c.sess.mu.Unlock()
	if len(c.sess.data) == 0 {
		return "", apperr.New(apperr.NoUserSession, "session not yet established")
	}
	return EncodeSessionString(c.sess.data), nil
}

// NewDispatcherBot boots the gateway's own long-lived bot client with
// handler wired as its update source, so dispatcher registrations
// (OnNewMessage, OnBotCallbackQuery, ...) actually receive live updates.
// sessionFile persists the authenticated session across restarts so the
// bot does not re-run the login flow on every boot.
func NewDispatcherBot(ctx context.Context, apiID int, apiHash, botToken string, handler telegram.UpdateHandler, sessionFile string) (*Client, error) {
	storage := &session.FileStorage{Path: sessionFile}

	return start(ctx, apiID, apiHash, storage, handler, func(ctx context.Context, cl *telegram.Client) (*tg.User, error) {
		status, err := cl.Auth().Status(ctx)
		if err != nil {
			return nil, apperr.Wrap(apperr.NoUserBot, err)
		}
		if !status.Authorized {
			if _, err := cl.Auth().Bot(ctx, botToken); err != nil {
				return nil, apperr.Wrap(apperr.NoUserBot, err)
			}
		}
		self, err := cl.Self(ctx)
		if err != nil {
			return nil, apperr.Wrap(apperr.NoUserBot, err)
		}
		return self, nil
	})
}

// OpenPeerCache opens (or creates) this client's bbolt peer cache at
// dbPath and warms it from a live dialog listing so subsequent
// getMessages calls for private peers can resolve them.
func (c *Client) OpenPeerCache(ctx context.Context, dbPath string) error {
	svc, err := peersmgr.Open(c.api, dbPath)
	if err != nil {
		return err
	}
	if err := svc.Mgr.Init(ctx); err != nil {
		logger.Warnf("tgclient: peer manager init failed: %v", err)
	}
	if err := svc.WarmupFromDialogs(ctx, c.api); err != nil {
		logger.Warnf("tgclient: dialog warmup failed: %v", err)
	}
	c.peers = svc
	return nil
}

// Stop cancels the background Run loop and waits for it to exit.
func (c *Client) Stop() {
	if c.peers != nil {
		if err := c.peers.Close(); err != nil {
			logger.Warnf("tgclient: closing peer cache: %v", err)
		}
	}
	c.cancel()
	c.wg.Wait()
}
