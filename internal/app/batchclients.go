package app

import (
	"context"
	"sync"

	"gatewaybot/internal/apperr"
	"gatewaybot/internal/batch"
)

// batchClients implements batch.Fetcher, batch.Downloader, and
// batch.Uploader over a user's own pair of live clients: the session
// client reads content the gateway's own bot may not be a member of, the
// user's configured re-upload bot sends it back out. This mirrors the
// pipeline doc comment's fallback chain: public links try the bot client
// first, then the session client; private links need the session client.
type batchClients struct {
	bot     *TelegramAdapter
	session *TelegramAdapter

	mu   sync.Mutex
	last *TelegramAdapter
}

func (b *batchClients) setLast(a *TelegramAdapter) {
	b.mu.Lock()
	b.last = a
	b.mu.Unlock()
}

func (b *batchClients) getLast() *TelegramAdapter {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.last
}

func (b *batchClients) FetchPublic(ctx context.Context, chatRef string, msgID int) (*batch.FetchedMessage, error) {
	if b.bot != nil {
		if msg, err := b.bot.FetchPublic(ctx, chatRef, msgID); err == nil {
			b.setLast(b.bot)
			return msg, nil
		}
	}
	if b.session == nil {
		return nil, apperr.New(apperr.NoUserSession, "log in with /login to access this link")
	}
	msg, err := b.session.FetchPublic(ctx, chatRef, msgID)
	if err == nil {
		b.setLast(b.session)
	}
	return msg, err
}

func (b *batchClients) FetchPrivate(ctx context.Context, chatRef string, msgID int) (*batch.FetchedMessage, error) {
	if b.session == nil {
		return nil, apperr.New(apperr.NoUserSession, "log in with /login to access private links")
	}
	msg, err := b.session.FetchPrivate(ctx, chatRef, msgID)
	if err == nil {
		b.setLast(b.session)
	}
	return msg, err
}

func (b *batchClients) Download(ctx context.Context, msg *batch.FetchedMessage, destDir string, onProgress batch.ProgressFunc) (string, error) {
	adapter := b.getLast()
	if adapter == nil {
		return "", apperr.New(apperr.FileReferenceExpired, "no client resolved this message")
	}
	return adapter.Download(ctx, msg, destDir, onProgress)
}

func (b *batchClients) Upload(ctx context.Context, plan batch.UploadPlan) error {
	if b.bot == nil {
		return apperr.New(apperr.NoUserBot, "configure a re-upload bot with /setbot first")
	}
	return b.bot.Upload(ctx, plan)
}

// newBatchClients builds userID's batchClients from whichever of the
// session/bot clients the registry can boot; it only fails when neither is
// available, since a single-sided pair is still useful (e.g. a bot-only
// user re-sending a public post).
func (a *App) newBatchClients(ctx context.Context, userID int64) (*batchClients, error) {
	bc := &batchClients{}

	if botClient, err := a.registry.BotClient(ctx, userID); err == nil {
		if peers := botClient.Peers(); peers != nil {
			bc.bot = NewTelegramAdapter(botClient.API(), peers)
		}
	}
	if sessClient, err := a.registry.SessionClient(ctx, userID); err == nil {
		if peers := sessClient.Peers(); peers != nil {
			bc.session = NewTelegramAdapter(sessClient.API(), peers)
		}
	}

	if bc.bot == nil && bc.session == nil {
		return nil, apperr.New(apperr.NoUserSession, "log in with /login or configure a bot with /setbot first")
	}
	return bc, nil
}

// userMessageFor turns an apperr-classified failure into the text shown to
// the requesting user; anything uncategorized gets a generic reply so raw
// internal errors never leak into chat.
func userMessageFor(err error) string {
	switch {
	case apperr.Is(err, apperr.InvalidLink):
		return "That doesn't look like a supported message link."
	case apperr.Is(err, apperr.NotAuthorized):
		return "You're not authorized to do that."
	case apperr.Is(err, apperr.SubscriptionRequired):
		return "This requires a premium subscription; see /plans."
	case apperr.Is(err, apperr.DailyLimitReached):
		return "You've reached your daily limit; try again tomorrow or see /plans."
	case apperr.Is(err, apperr.NoUserSession):
		return "Log in first with /login."
	case apperr.Is(err, apperr.NoUserBot):
		return "Configure a re-upload bot first with /setbot <token>."
	case apperr.Is(err, apperr.FileReferenceExpired):
		return "That file reference expired; try the link again."
	case apperr.Is(err, apperr.FloodWait):
		return "Telegram is rate-limiting this action; try again shortly."
	case apperr.Is(err, apperr.GroupCallNotFound):
		return "No active voice chat found in that channel."
	case apperr.Is(err, apperr.Conflict):
		return "A run is already in progress; use /cancel to stop it."
	case apperr.Is(err, apperr.NotFound):
		return "Not found."
	default:
		return "Something went wrong; please try again."
	}
}
