// Package app is the wiring layer: it boots the gateway bot's own
// long-lived dispatcher client, constructs every component package around
// a shared store/config/vault, and routes dispatched updates to the
// command and callback handlers. Of the packages it wires, only the
// telegram adapters (tgclient, peercache, peersmgr, vcengine) import
// gotd/td directly; the domain packages are transport-agnostic, matching
// the pack's separation between domain logic and its telegram adapters.
package app

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/gotd/td/tg"

	"gatewaybot/internal/batch"
	"gatewaybot/internal/browser"
	"gatewaybot/internal/concurrency"
	"gatewaybot/internal/config"
	"gatewaybot/internal/convstate"
	"gatewaybot/internal/foldertree"
	"gatewaybot/internal/ingest"
	"gatewaybot/internal/logger"
	"gatewaybot/internal/payment"
	"gatewaybot/internal/peercache"
	"gatewaybot/internal/quota"
	"gatewaybot/internal/registry"
	"gatewaybot/internal/store"
	"gatewaybot/internal/tgclient"
	"gatewaybot/internal/vault"
	"gatewaybot/internal/vc"
	"gatewaybot/internal/vcengine"
	"gatewaybot/internal/ytdl"
)

// dedupWindowSeconds bounds how long a (chat, msg, editDate) triple is
// remembered to suppress reprocessing an edited/duplicate update.
const dedupWindowSeconds = 300

// editDebounceSettle is how long a progress message's edits must go quiet
// before the latest one is actually sent, so a burst of threshold
// crossings costs one API call instead of several.
const editDebounceSettle = 500 * time.Millisecond

// App aggregates every gateway-bot component and owns the live dispatcher
// bot client that feeds them updates.
type App struct {
	cfg config.EnvConfig

	store    *store.Store
	vault    *vault.Vault
	registry *registry.Registry
	conv     *convstate.Registry
	quota    *quota.Engine
	payment  *payment.Handler

	tracker  *batch.Tracker
	pipeline *batch.Pipeline

	vcCtl    *vc.Controller
	vcEngine *vcengine.Engine

	browserCtl *browser.Controller
	tree       *foldertree.Service
	ingestor   *ingest.Ingestor

	ytdl *ytdl.Downloader

	dedup    *concurrency.Deduplicator
	debounce *concurrency.Debouncer

	peers *peercache.Cache

	dispatch tg.UpdateDispatcher
	bot      *tgclient.Client

	// assist is the optional SESSION_STRING-backed user client; history
	// scans prefer it since a user session can read channels the bot was
	// never added to.
	assist *tgclient.Client

	loginHashes *phoneCodeHashes

	// ready flips once Init finishes wiring; handlers drop updates that
	// race the tail end of the boot sequence.
	ready atomic.Bool

	ctx    context.Context
	cancel context.CancelFunc
}

// New builds an empty App; Init does the real wiring.
func New() *App { return &App{} }

// Init connects the store, constructs every domain component, registers
// the update/callback/payment handlers on a fresh dispatcher, and boots
// the gateway's own bot client against it. config.Load must already have
// been called.
func (a *App) Init(ctx context.Context) error {
	a.ctx, a.cancel = context.WithCancel(ctx)

	a.cfg = config.Env()

	s, err := store.Connect(ctx, a.cfg.MongoURI, a.cfg.MongoDB)
	if err != nil {
		return fmt.Errorf("connect store: %w", err)
	}
	if err := s.EnsureIndexes(ctx); err != nil {
		return fmt.Errorf("ensure indexes: %w", err)
	}
	a.store = s

	a.vault = vault.New(a.cfg.MasterKey, a.cfg.IVKey)
	a.registry = registry.New(a.store, a.vault, a.cfg.DataDir)
	a.conv = convstate.NewRegistry()
	a.loginHashes = newPhoneCodeHashes()
	a.quota = quota.New(a.store)
	a.payment = payment.New(a.store, a.quota)

	a.tracker = batch.NewTracker(a.cfg.DataDir + "/active_users.json")
	a.pipeline = batch.NewPipeline(a.tracker, a.quota, a.store, a.cfg.DataDir)

	a.tree = foldertree.New(a.store)
	a.ingestor = ingest.New(a.store, a.tree)

	a.ytdl = ytdl.New(a.cfg.DataDir, a.cfg.YTCookies, a.cfg.InstaCookies)

	a.dedup = concurrency.NewDeduplicator(dedupWindowSeconds)
	a.debounce = concurrency.NewDebouncer(editDebounceSettle)
	a.dedup.Start(ctx)
	a.debounce.Start(ctx)

	// The peer cache is referenced by handlers that may fire while the
	// dispatcher bot is still booting, so build it first and bind the API
	// surface once the client is up.
	a.peers = peercache.New(nil)

	a.dispatch = tg.NewUpdateDispatcher()
	registerHandlers(a, &a.dispatch)

	sessionFile := a.cfg.DataDir + "/gateway.session"
	bot, err := tgclient.NewDispatcherBot(ctx, a.cfg.APIID, a.cfg.APIHash, a.cfg.BotToken, a.dispatch, sessionFile)
	if err != nil {
		return fmt.Errorf("start dispatcher bot: %w", err)
	}
	a.bot = bot
	a.peers.SetAPI(bot.API())

	if a.cfg.SessionString != "" {
		assist, err := tgclient.NewUserSession(ctx, a.cfg.APIID, a.cfg.APIHash, a.cfg.SessionString)
		if err != nil {
			logger.Warnf("assist session unavailable: %v", err)
		} else {
			if err := assist.OpenPeerCache(ctx, a.cfg.DataDir+"/peers/assist.bbolt"); err != nil {
				logger.Warnf("assist peer cache: %v", err)
			}
			a.assist = assist
		}
	}

	a.vcEngine = vcengine.New(bot.API())
	a.vcCtl = vc.New(a.vcEngine)
	a.browserCtl = browser.New(a.store, a.vcCtl)
	a.ready.Store(true)

	logger.Infof("gateway bot initialized; authorized channels: %v", a.cfg.AuthChannels)
	return nil
}

// Run blocks until ctx is cancelled.
func (a *App) Run(ctx context.Context) error {
	<-ctx.Done()
	return nil
}

// Stop releases every live client the app holds, starting with its own
// dispatcher bot.
func (a *App) Stop() {
	if a.cancel != nil {
		a.cancel()
	}
	if a.bot != nil {
		a.bot.Stop()
	}
	if a.assist != nil {
		a.assist.Stop()
	}
	a.dedup.Stop()
	a.debounce.Stop()
}
