package app

import (
	"context"
	"fmt"
	neturl "net/url"
	"strconv"
	"strings"
	"time"

	"github.com/gotd/td/tg"

	"gatewaybot/internal/browser"
	"gatewaybot/internal/ingest"
	"gatewaybot/internal/logger"
	"gatewaybot/internal/store"
	"gatewaybot/internal/vc"
)

// handleCallbackQuery routes one inline-button tap to its screen builder
// or action, then edits the triggering message in place — the single
// pattern every bch|/bf|/bfi|/bs|/bv*/p_ route in browser's callback-data
// grammar follows.
func (a *App) handleCallbackQuery(ctx context.Context, u *tg.UpdateBotCallbackQuery) error {
	peer, err := a.callbackPeer(ctx, u.Peer)
	if err != nil {
		logger.Warnf("callback: resolve peer: %v", err)
		return nil
	}
	data := string(u.Data)

	switch {
	case data == "bl":
		return a.cbBrowseRoot(ctx, u, peer)
	case strings.HasPrefix(data, "bch|"):
		return a.cbOpenChannel(ctx, u, peer, data)
	case strings.HasPrefix(data, "bfi|"):
		return a.cbFileAction(ctx, u, peer, data)
	case strings.HasPrefix(data, "bf|"):
		return a.cbFolderPage(ctx, u, peer, data)
	case strings.HasPrefix(data, "bs|"):
		return a.cbSendToBot(ctx, u, peer, data)
	case strings.HasPrefix(data, "bvc|"):
		return a.cbVCStart(ctx, u, peer, data)
	case strings.HasPrefix(data, "bvp|"):
		return a.cbVCPause(ctx, u, peer, data)
	case strings.HasPrefix(data, "bvr|"):
		return a.cbVCResume(ctx, u, peer, data)
	case strings.HasPrefix(data, "bvk|"):
		return a.cbVCSeekBy(ctx, u, peer, data)
	case strings.HasPrefix(data, "bvj|"):
		return a.cbVCSeekAbs(ctx, u, peer, data)
	case strings.HasPrefix(data, "bvs|"):
		return a.cbVCStop(ctx, u, peer, data)
	case strings.HasPrefix(data, "bvo|"):
		return a.cbVCOpenPlayer(ctx, u, peer, data)
	case strings.HasPrefix(data, "bvb|"):
		return a.cbVCBack(ctx, u, peer, data)
	case strings.HasPrefix(data, "p_"):
		return a.cbBuyPlan(ctx, u, peer, data)
	default:
		return a.answerCallback(ctx, u.QueryID, "", false)
	}
}

// callbackPeer resolves the chat a callback query fired in, the InputPeer
// an edit/forward/invoice send targets.
func (a *App) callbackPeer(ctx context.Context, p tg.PeerClass) (tg.InputPeerClass, error) {
	switch v := p.(type) {
	case *tg.PeerUser:
		return a.peers.ResolveUserID(ctx, v.UserID)
	case *tg.PeerChat:
		return a.peers.ResolveChatID(ctx, v.ChatID)
	case *tg.PeerChannel:
		return a.peers.ResolveChannelID(v.ChannelID)
	default:
		return nil, fmt.Errorf("callback: unsupported peer type %T", p)
	}
}

// answerCallback closes the spinner Telegram shows on the tapped button;
// alert renders it as a popup instead of a transient toast.
func (a *App) answerCallback(ctx context.Context, queryID int64, text string, alert bool) error {
	_, err := a.bot.API().MessagesSetBotCallbackAnswer(ctx, &tg.MessagesSetBotCallbackAnswerRequest{
		QueryID: queryID,
		Message: text,
		Alert:   alert,
	})
	return err
}

func (a *App) cbBrowseRoot(ctx context.Context, u *tg.UpdateBotCallbackQuery, peer tg.InputPeerClass) error {
	channels, err := ingest.ListAuthorized(ctx, a.store)
	if err != nil {
		return a.answerCallback(ctx, u.QueryID, "Could not load channels.", true)
	}
	refs := make([]browser.ChannelRef, 0, len(channels))
	for _, c := range channels {
		title, _ := a.peers.Title(c)
		if title == "" {
			title = fmt.Sprintf("Channel %d", c)
		}
		refs = append(refs, browser.ChannelRef{ChatID: c, Title: title})
	}
	if err := a.editView(ctx, peer, u.MsgID, a.browserCtl.ChannelsView(refs)); err != nil {
		logger.Warnf("callback: edit channels view: %v", err)
	}
	return a.answerCallback(ctx, u.QueryID, "", false)
}

func (a *App) cbOpenChannel(ctx context.Context, u *tg.UpdateBotCallbackQuery, peer tg.InputPeerClass, data string) error {
	parts := strings.Split(data, "|")
	if len(parts) != 2 {
		return a.answerCallback(ctx, u.QueryID, "", false)
	}
	chatID, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil {
		return a.answerCallback(ctx, u.QueryID, "", false)
	}
	return a.renderFolder(ctx, u, peer, store.RootFolderID, chatID, 1)
}

func (a *App) cbFolderPage(ctx context.Context, u *tg.UpdateBotCallbackQuery, peer tg.InputPeerClass, data string) error {
	parts := strings.Split(data, "|")
	if len(parts) != 4 {
		return a.answerCallback(ctx, u.QueryID, "", false)
	}
	chatID, err1 := strconv.ParseInt(parts[2], 10, 64)
	page, err2 := strconv.Atoi(parts[3])
	if err1 != nil || err2 != nil {
		return a.answerCallback(ctx, u.QueryID, "", false)
	}
	return a.renderFolder(ctx, u, peer, parts[1], chatID, page)
}

func (a *App) renderFolder(ctx context.Context, u *tg.UpdateBotCallbackQuery, peer tg.InputPeerClass, folderID string, chatID int64, page int) error {
	view, err := a.browserCtl.FolderView(ctx, folderID, chatID, page)
	if err != nil {
		return a.answerCallback(ctx, u.QueryID, userMessageFor(err), true)
	}
	if err := a.editView(ctx, peer, u.MsgID, view); err != nil {
		logger.Warnf("callback: edit folder view: %v", err)
	}
	return a.answerCallback(ctx, u.QueryID, "", false)
}

func (a *App) cbFileAction(ctx context.Context, u *tg.UpdateBotCallbackQuery, peer tg.InputPeerClass, data string) error {
	parts := strings.Split(data, "|")
	if len(parts) != 5 {
		return a.answerCallback(ctx, u.QueryID, "", false)
	}
	msgID, err1 := strconv.Atoi(parts[1])
	chatID, err2 := strconv.ParseInt(parts[2], 10, 64)
	if err1 != nil || err2 != nil {
		return a.answerCallback(ctx, u.QueryID, "", false)
	}
	hash, folderID := parts[3], parts[4]

	view, err := a.browserCtl.FileActionView(ctx, msgID, chatID, hash, folderID, a.cfg.BaseURL)
	if err != nil {
		return a.answerCallback(ctx, u.QueryID, userMessageFor(err), true)
	}
	if err := a.editView(ctx, peer, u.MsgID, view); err != nil {
		logger.Warnf("callback: edit file action view: %v", err)
	}
	return a.answerCallback(ctx, u.QueryID, "", false)
}

// cbSendToBot forwards the indexed message straight from its source
// channel into the requesting chat, dropping the original author so it
// reads like the gateway sent it directly.
func (a *App) cbSendToBot(ctx context.Context, u *tg.UpdateBotCallbackQuery, peer tg.InputPeerClass, data string) error {
	parts := strings.Split(data, "|")
	if len(parts) != 3 {
		return a.answerCallback(ctx, u.QueryID, "", false)
	}
	msgID, err1 := strconv.Atoi(parts[1])
	chatID, err2 := strconv.ParseInt(parts[2], 10, 64)
	if err1 != nil || err2 != nil {
		return a.answerCallback(ctx, u.QueryID, "", false)
	}

	fromPeer, err := a.peers.ResolveChatID(ctx, chatID)
	if err != nil {
		return a.answerCallback(ctx, u.QueryID, "Could not reach that channel.", true)
	}

	_, err = a.bot.API().MessagesForwardMessages(ctx, &tg.MessagesForwardMessagesRequest{
		FromPeer:   fromPeer,
		ID:         []int{msgID},
		RandomID:   []int64{nextRandomID()},
		ToPeer:     peer,
		DropAuthor: true,
	})
	if err != nil {
		logger.Warnf("callback: forward message %d from %d: %v", msgID, chatID, err)
		return a.answerCallback(ctx, u.QueryID, "Could not send that file.", true)
	}
	return a.answerCallback(ctx, u.QueryID, "Sent.", false)
}

func (a *App) cbVCStart(ctx context.Context, u *tg.UpdateBotCallbackQuery, peer tg.InputPeerClass, data string) error {
	parts := strings.Split(data, "|")
	if len(parts) != 4 {
		return a.answerCallback(ctx, u.QueryID, "", false)
	}
	msgID, err1 := strconv.Atoi(parts[1])
	chatID, err2 := strconv.ParseInt(parts[2], 10, 64)
	if err1 != nil || err2 != nil {
		return a.answerCallback(ctx, u.QueryID, "", false)
	}
	hash := parts[3]

	rec, err := a.store.GetFileByMsg(ctx, chatID, msgID)
	if err != nil {
		return a.answerCallback(ctx, u.QueryID, userMessageFor(err), true)
	}
	url := fmt.Sprintf("%s/%s/%s?id=%d&hash=%s",
		strings.TrimSuffix(a.cfg.BaseURL, "/"), browser.CleanChatID(chatID), neturl.PathEscape(rec.Name), msgID, hash)

	state, err := a.vcCtl.Start(ctx, chatID, url, rec.Name, 0, vc.SourceRef{
		MsgID: msgID, ChatID: chatID, FolderID: rec.ParentFolder, Hash: hash,
	})
	if err != nil {
		return a.answerCallback(ctx, u.QueryID, userMessageFor(err), true)
	}

	if err := a.editView(ctx, peer, u.MsgID, browser.VCPlayerView(chatID, *state, 0)); err != nil {
		logger.Warnf("callback: edit vc player view: %v", err)
	}
	a.startVCRefresh(peer, chatID, u.MsgID)
	return a.answerCallback(ctx, u.QueryID, "Playing in voice chat.", false)
}

// startVCRefresh keeps chatID's player message's position bar current
// while the stream runs, per the 5-second auto-refresh vc.Controller
// schedules.
func (a *App) startVCRefresh(peer tg.InputPeerClass, chatID int64, msgID int) {
	a.vcCtl.StartRefresh(a.ctx, chatID, func() {
		state, active := a.vcCtl.State(chatID)
		if !active {
			return
		}
		pos, err := a.vcCtl.CurrentPosition(chatID)
		if err != nil {
			return
		}
		if err := a.editView(a.ctx, peer, msgID, browser.VCPlayerView(chatID, state, int(pos.Seconds()))); err != nil {
			logger.Warnf("vc refresh: edit player for chat %d: %v", chatID, err)
		}
	})
}

func parseChatIDArg(data, prefix string) (int64, bool) {
	rest := strings.TrimPrefix(data, prefix)
	id, err := strconv.ParseInt(rest, 10, 64)
	return id, err == nil
}

func (a *App) cbVCPause(ctx context.Context, u *tg.UpdateBotCallbackQuery, peer tg.InputPeerClass, data string) error {
	chatID, ok := parseChatIDArg(data, "bvp|")
	if !ok {
		return a.answerCallback(ctx, u.QueryID, "", false)
	}
	if err := a.vcCtl.Pause(chatID); err != nil {
		return a.answerCallback(ctx, u.QueryID, userMessageFor(err), true)
	}
	return a.refreshVCPlayer(ctx, u, peer, chatID)
}

func (a *App) cbVCResume(ctx context.Context, u *tg.UpdateBotCallbackQuery, peer tg.InputPeerClass, data string) error {
	chatID, ok := parseChatIDArg(data, "bvr|")
	if !ok {
		return a.answerCallback(ctx, u.QueryID, "", false)
	}
	if err := a.vcCtl.Resume(chatID); err != nil {
		return a.answerCallback(ctx, u.QueryID, userMessageFor(err), true)
	}
	return a.refreshVCPlayer(ctx, u, peer, chatID)
}

func (a *App) cbVCSeekBy(ctx context.Context, u *tg.UpdateBotCallbackQuery, peer tg.InputPeerClass, data string) error {
	parts := strings.Split(data, "|")
	if len(parts) != 3 {
		return a.answerCallback(ctx, u.QueryID, "", false)
	}
	chatID, err1 := strconv.ParseInt(parts[1], 10, 64)
	deltaSeconds, err2 := strconv.Atoi(parts[2])
	if err1 != nil || err2 != nil {
		return a.answerCallback(ctx, u.QueryID, "", false)
	}
	if _, err := a.vcCtl.SeekBy(ctx, chatID, time.Duration(deltaSeconds)*time.Second); err != nil {
		return a.answerCallback(ctx, u.QueryID, userMessageFor(err), true)
	}
	return a.refreshVCPlayer(ctx, u, peer, chatID)
}

func (a *App) cbVCSeekAbs(ctx context.Context, u *tg.UpdateBotCallbackQuery, peer tg.InputPeerClass, data string) error {
	chatID, absSeconds, ok := browser.ParseVCAbsoluteSeek(data)
	if !ok {
		return a.answerCallback(ctx, u.QueryID, "", false)
	}
	if _, err := a.vcCtl.SeekTo(ctx, chatID, time.Duration(absSeconds)*time.Second); err != nil {
		return a.answerCallback(ctx, u.QueryID, userMessageFor(err), true)
	}
	return a.refreshVCPlayer(ctx, u, peer, chatID)
}

func (a *App) refreshVCPlayer(ctx context.Context, u *tg.UpdateBotCallbackQuery, peer tg.InputPeerClass, chatID int64) error {
	state, active := a.vcCtl.State(chatID)
	if !active {
		return a.answerCallback(ctx, u.QueryID, "That stream has ended.", true)
	}
	pos, _ := a.vcCtl.CurrentPosition(chatID)
	if err := a.editView(ctx, peer, u.MsgID, browser.VCPlayerView(chatID, state, int(pos.Seconds()))); err != nil {
		logger.Warnf("callback: edit vc player view: %v", err)
	}
	return a.answerCallback(ctx, u.QueryID, "", false)
}

func (a *App) cbVCOpenPlayer(ctx context.Context, u *tg.UpdateBotCallbackQuery, peer tg.InputPeerClass, data string) error {
	chatID, ok := parseChatIDArg(data, "bvo|")
	if !ok {
		return a.answerCallback(ctx, u.QueryID, "", false)
	}
	return a.refreshVCPlayer(ctx, u, peer, chatID)
}

func (a *App) cbVCBack(ctx context.Context, u *tg.UpdateBotCallbackQuery, peer tg.InputPeerClass, data string) error {
	chatID, ok := parseChatIDArg(data, "bvb|")
	if !ok {
		return a.answerCallback(ctx, u.QueryID, "", false)
	}
	state, _ := a.vcCtl.State(chatID)
	folderID := state.Source.FolderID
	if folderID == "" {
		folderID = store.RootFolderID
	}
	return a.renderFolder(ctx, u, peer, folderID, chatID, 1)
}

func (a *App) cbVCStop(ctx context.Context, u *tg.UpdateBotCallbackQuery, peer tg.InputPeerClass, data string) error {
	chatID, ok := parseChatIDArg(data, "bvs|")
	if !ok {
		return a.answerCallback(ctx, u.QueryID, "", false)
	}
	state, _ := a.vcCtl.State(chatID)
	if err := a.vcCtl.Stop(ctx, chatID); err != nil {
		return a.answerCallback(ctx, u.QueryID, userMessageFor(err), true)
	}

	folderID := state.Source.FolderID
	if folderID == "" {
		folderID = store.RootFolderID
	}
	return a.renderFolder(ctx, u, peer, folderID, chatID, 1)
}

// cbBuyPlan issues a Telegram Stars invoice for the tapped plan, leaving
// it as a separate message below the plan list rather than replacing it.
func (a *App) cbBuyPlan(ctx context.Context, u *tg.UpdateBotCallbackQuery, peer tg.InputPeerClass, data string) error {
	key := strings.TrimPrefix(data, "p_")

	plan, err := a.payment.Plan(ctx, key)
	if err != nil {
		return a.answerCallback(ctx, u.QueryID, "That plan is no longer available.", true)
	}

	if err := a.sendInvoice(ctx, peer, u.UserID, plan); err != nil {
		logger.Warnf("callback: send invoice for plan %s user %d: %v", key, u.UserID, err)
		return a.answerCallback(ctx, u.QueryID, "Could not start checkout; try again later.", true)
	}
	return a.answerCallback(ctx, u.QueryID, "Invoice sent.", false)
}
