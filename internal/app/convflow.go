package app

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/gotd/td/tg"

	"gatewaybot/internal/batch"
	"gatewaybot/internal/convstate"
	"gatewaybot/internal/logger"
	"gatewaybot/internal/store"
	"gatewaybot/internal/tgclient"
)

// phoneCodeHashes holds the phone_code_hash SendCode returns alongside
// each user's in-flight login client; it doesn't belong on convstate.Step
// itself since it is login-internal bookkeeping, not user-visible state.
type phoneCodeHashes struct {
	mu     sync.Mutex
	hashes map[int64]string
}

func newPhoneCodeHashes() *phoneCodeHashes {
	return &phoneCodeHashes{hashes: make(map[int64]string)}
}

func (h *phoneCodeHashes) set(userID int64, hash string) {
	h.mu.Lock()
	h.hashes[userID] = hash
	h.mu.Unlock()
}

func (h *phoneCodeHashes) get(userID int64) (string, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	hash, ok := h.hashes[userID]
	return hash, ok
}

func (h *phoneCodeHashes) clear(userID int64) {
	h.mu.Lock()
	delete(h.hashes, userID)
	h.mu.Unlock()
}

// dispatchConversationStep feeds free text to whatever multi-turn flow
// userID currently has open; it is a no-op when none is open, matching
// the "unknown commands are ignored" posture for stray chatter.
func (a *App) dispatchConversationStep(ctx context.Context, peer tg.InputPeerClass, userID int64, msg *tg.Message) error {
	step, ok := a.conv.Get(userID)
	if !ok {
		return nil
	}
	text := strings.TrimSpace(msg.Message)

	switch s := step.(type) {
	case convstate.LoginPhone:
		return a.stepLoginPhone(ctx, peer, userID, text)
	case convstate.LoginCode:
		return a.stepLoginCode(ctx, peer, userID, s, text)
	case convstate.LoginPassword:
		return a.stepLoginPassword(ctx, peer, userID, s, text)
	case convstate.SettingsField:
		return a.stepSettings(ctx, peer, userID, text)
	case convstate.BatchAwaitingStart:
		return a.stepBatchAwaitingStart(ctx, peer, userID, text)
	case convstate.BatchAwaitingCount:
		return a.stepBatchAwaitingCount(ctx, peer, userID, s, text)
	case convstate.BatchAwaitingSingle:
		return a.stepBatchAwaitingSingle(ctx, peer, userID, text)
	case convstate.BatchRunning:
		return a.sendText(ctx, peer, "A run is already in progress; use /cancel to stop it.")
	default:
		return nil
	}
}

// releaseLoginHandle stops any live auth client stashed in the user's
// login step. Every exit path from the login flow (cancel, error, success)
// must release this handle or the client goroutine leaks.
func (a *App) releaseLoginHandle(userID int64) {
	step, ok := a.conv.Get(userID)
	if !ok {
		return
	}
	var handle any
	switch s := step.(type) {
	case convstate.LoginCode:
		handle = s.AuthHandle
	case convstate.LoginPassword:
		handle = s.AuthHandle
	default:
		return
	}
	if client, ok := handle.(*tgclient.Client); ok && client != nil {
		client.Stop()
	}
	a.loginHashes.clear(userID)
}

func (a *App) stepLoginPhone(ctx context.Context, peer tg.InputPeerClass, userID int64, phone string) error {
	client, err := tgclient.NewLoginSession(ctx, a.cfg.APIID, a.cfg.APIHash)
	if err != nil {
		a.conv.Clear(userID)
		return a.sendText(ctx, peer, "Could not start a login session; try /login again later.")
	}
	phoneCodeHash, err := client.SendCode(ctx, phone)
	if err != nil {
		client.Stop()
		a.conv.Clear(userID)
		return a.sendText(ctx, peer, "Could not send a login code to that number; check it and /login again.")
	}
	a.conv.Set(userID, convstate.LoginCode{Phone: phone, AuthHandle: client})
	a.loginHashes.set(userID, phoneCodeHash)
	return a.sendText(ctx, peer, "Enter the login code you received.")
}

func (a *App) stepLoginCode(ctx context.Context, peer tg.InputPeerClass, userID int64, step convstate.LoginCode, code string) error {
	client, ok := step.AuthHandle.(*tgclient.Client)
	if !ok || client == nil {
		a.conv.Clear(userID)
		return a.sendText(ctx, peer, "Login session expired; start again with /login.")
	}
	phoneCodeHash, _ := a.loginHashes.get(userID)

	needsPassword, err := client.SignIn(ctx, step.Phone, code, phoneCodeHash)
	if err != nil {
		client.Stop()
		a.conv.Clear(userID)
		a.loginHashes.clear(userID)
		return a.sendText(ctx, peer, "That code didn't work; start again with /login.")
	}
	if needsPassword {
		a.conv.Set(userID, convstate.LoginPassword{Phone: step.Phone, AuthHandle: client})
		return a.sendText(ctx, peer, "This account has a cloud password; send it now.")
	}
	return a.finishLogin(ctx, peer, userID, client)
}

func (a *App) stepLoginPassword(ctx context.Context, peer tg.InputPeerClass, userID int64, step convstate.LoginPassword, password string) error {
	client, ok := step.AuthHandle.(*tgclient.Client)
	if !ok || client == nil {
		a.conv.Clear(userID)
		return a.sendText(ctx, peer, "Login session expired; start again with /login.")
	}
	if err := client.SignInPassword(ctx, password); err != nil {
		client.Stop()
		a.conv.Clear(userID)
		a.loginHashes.clear(userID)
		return a.sendText(ctx, peer, "That password didn't work; start again with /login.")
	}
	return a.finishLogin(ctx, peer, userID, client)
}

// finishLogin persists the authenticated session's encrypted string and
// releases the login client; the registry boots its own fresh session
// client from the stored ciphertext on next use.
func (a *App) finishLogin(ctx context.Context, peer tg.InputPeerClass, userID int64, client *tgclient.Client) error {
	defer func() {
		client.Stop()
		a.conv.Clear(userID)
		a.loginHashes.clear(userID)
	}()

	raw, err := client.SessionString()
	if err != nil {
		return a.sendText(ctx, peer, "Login completed but the session could not be saved; try /login again.")
	}
	cipher, err := a.vault.Encrypt(raw)
	if err != nil {
		logger.Warnf("login: encrypt session for user %d: %v", userID, err)
		return a.sendText(ctx, peer, "Login completed but the session could not be saved; try /login again.")
	}
	if err := a.store.SaveSession(ctx, userID, cipher); err != nil {
		logger.Warnf("login: save session for user %d: %v", userID, err)
		return a.sendText(ctx, peer, "Login completed but the session could not be saved; try /login again.")
	}
	a.registry.InvalidateSession(userID)
	return a.sendText(ctx, peer, "Logged in. You can now /batch or /single from chats this account can see.")
}

func (a *App) stepSettings(ctx context.Context, peer tg.InputPeerClass, userID int64, line string) error {
	defer a.conv.Clear(userID)

	fields := strings.SplitN(line, " ", 2)
	if len(fields) < 2 {
		return a.sendText(ctx, peer, "Could not parse that; /settings to try again.")
	}
	field, value := strings.ToLower(fields[0]), strings.TrimSpace(fields[1])

	var err error
	switch field {
	case "rename":
		err = a.store.UpdateSettingField(ctx, userID, "rename_tag", value)
	case "caption":
		err = a.store.UpdateSettingField(ctx, userID, "caption", value)
	case "chatid":
		err = a.store.UpdateSettingField(ctx, userID, "chat_id", value)
	case "replace":
		parts := strings.SplitN(value, "=", 2)
		if len(parts) != 2 {
			return a.sendText(ctx, peer, "Usage: replace <from>=<to>")
		}
		err = a.store.UpdateSettingField(ctx, userID, "replacements."+parts[0], parts[1])
	case "deleteword":
		err = a.store.UpdateSettingField(ctx, userID, "delete_words", append(a.currentDeleteWords(ctx, userID), value))
	default:
		return a.sendText(ctx, peer, "Unknown field; /settings to see the list again.")
	}
	if err != nil {
		return a.sendText(ctx, peer, "Could not save that setting.")
	}
	return a.sendText(ctx, peer, "Saved.")
}

func (a *App) currentDeleteWords(ctx context.Context, userID int64) []string {
	settings, err := a.store.GetSettings(ctx, userID)
	if err != nil {
		return nil
	}
	return settings.DeleteWords
}

func (a *App) stepBatchAwaitingStart(ctx context.Context, peer tg.InputPeerClass, userID int64, link string) error {
	if _, err := batch.ParseLink(link); err != nil {
		return a.sendText(ctx, peer, "That doesn't look like a supported message link; send a t.me link or /cancel.")
	}
	a.conv.Set(userID, convstate.BatchAwaitingCount{StartLink: link})
	return a.sendText(ctx, peer, "How many messages should this batch process?")
}

func (a *App) stepBatchAwaitingCount(ctx context.Context, peer tg.InputPeerClass, userID int64, step convstate.BatchAwaitingCount, countText string) error {
	count, err := strconv.Atoi(strings.TrimSpace(countText))
	if err != nil || count <= 0 {
		return a.sendText(ctx, peer, "Send a positive number of messages to process.")
	}
	link, err := batch.ParseLink(step.StartLink)
	if err != nil {
		a.conv.Clear(userID)
		return a.sendText(ctx, peer, "That link is no longer valid; start again with /batch.")
	}

	if err := a.checkBatchPreflight(ctx, userID); err != nil {
		a.conv.Clear(userID)
		return a.sendText(ctx, peer, userMessageFor(err))
	}
	clients, err := a.newBatchClients(ctx, userID)
	if err != nil {
		a.conv.Clear(userID)
		return a.sendText(ctx, peer, userMessageFor(err))
	}

	a.conv.Set(userID, convstate.BatchRunning{})
	progressMsgID, _ := a.sendTextID(ctx, peer, fmt.Sprintf("Starting a %d-message batch…", count))
	settings, _ := a.store.GetSettings(ctx, userID)

	go a.runBatchJob(peer, userID, link, count, clients, settings, progressMsgID)
	return nil
}

func (a *App) stepBatchAwaitingSingle(ctx context.Context, peer tg.InputPeerClass, userID int64, linkText string) error {
	link, err := batch.ParseLink(linkText)
	if err != nil {
		return a.sendText(ctx, peer, "That doesn't look like a supported message link; send a t.me link or /cancel.")
	}

	if err := a.checkBatchPreflight(ctx, userID); err != nil {
		a.conv.Clear(userID)
		return a.sendText(ctx, peer, userMessageFor(err))
	}
	clients, err := a.newBatchClients(ctx, userID)
	if err != nil {
		a.conv.Clear(userID)
		return a.sendText(ctx, peer, userMessageFor(err))
	}

	a.conv.Set(userID, convstate.BatchRunning{})
	progressMsgID, _ := a.sendTextID(ctx, peer, "Fetching…")
	settings, _ := a.store.GetSettings(ctx, userID)

	go a.runSingleJob(peer, userID, link, clients, settings, progressMsgID)
	return nil
}

// checkBatchPreflight runs the pipeline's four preflight checks; a cheap
// store lookup stands in for "has a user-bot" rather than booting the bot
// client just to test its presence.
func (a *App) checkBatchPreflight(ctx context.Context, userID int64) error {
	token, _ := a.store.GetBotToken(ctx, userID)
	return a.pipeline.Preflight(ctx, userID, a.conv, token != "")
}

// runBatchJob and runSingleJob run on the app's own background context
// rather than the handler's request-scoped one, since a batch is expected
// to outlive the update that started it; a panic here must not take the
// dispatcher down with it.
func (a *App) runBatchJob(peer tg.InputPeerClass, userID int64, link batch.Link, count int, clients *batchClients, settings store.UserSettings, progressMsgID int) {
	ctx := a.ctx
	defer func() {
		if r := recover(); r != nil {
			logger.Warnf("batch: panic in job for user %d: %v", userID, r)
		}
		a.conv.Clear(userID)
	}()

	summary := a.pipeline.RunBatch(ctx, userID, link, count, clients, clients, clients, settings,
		fallbackChatID(peer), func(current, total, success int) {},
		func(text string) {
			a.debounce.Do(progressMsgID, func() { _ = a.editText(ctx, peer, progressMsgID, text) })
		})

	_ = a.sendText(ctx, peer, batchSummaryText(summary))
}

func (a *App) runSingleJob(peer tg.InputPeerClass, userID int64, link batch.Link, clients *batchClients, settings store.UserSettings, progressMsgID int) {
	ctx := a.ctx
	defer func() {
		if r := recover(); r != nil {
			logger.Warnf("single: panic in job for user %d: %v", userID, r)
		}
		a.conv.Clear(userID)
	}()

	outcome := a.pipeline.RunSingle(ctx, userID, link, clients, clients, clients, settings, fallbackChatID(peer),
		func(text string) {
			a.debounce.Do(progressMsgID, func() { _ = a.editText(ctx, peer, progressMsgID, text) })
		})

	if outcome == batch.OutcomeDone {
		_ = a.sendText(ctx, peer, "Sent.")
	} else {
		_ = a.sendText(ctx, peer, "That file could not be processed.")
	}
}

func batchSummaryText(s batch.Summary) string {
	if s.Cancelled {
		return fmt.Sprintf("Cancelled at %d/%d. Success: %d.", s.Processed, s.Total, s.Success)
	}
	return fmt.Sprintf("Done: %d/%d processed, %d succeeded.", s.Processed, s.Total, s.Success)
}

// fallbackChatID recovers a destination chat id from an InputPeerClass so
// the pipeline has somewhere to send when the user has no chat_id
// override configured: the user's own chat for a private peer, or the
// channel/chat id otherwise.
func fallbackChatID(peer tg.InputPeerClass) int64 {
	switch p := peer.(type) {
	case *tg.InputPeerUser:
		return p.UserID
	case *tg.InputPeerChannel:
		return p.ChannelID
	case *tg.InputPeerChat:
		return p.ChatID
	default:
		return 0
	}
}
