package app

import (
	"context"
	"fmt"
	"strings"

	"github.com/gotd/td/tg"

	"gatewaybot/internal/ingest"
	"gatewaybot/internal/logger"
)

func mediaFromDoc(msg *tg.Message, name, mime string, doc *tg.Document) ingest.Media {
	return ingest.Media{
		MsgID:    msg.ID,
		Caption:  msg.Message,
		FileID:   fmt.Sprintf("%d:%d", doc.ID, doc.AccessHash),
		FileName: name,
		MimeType: mime,
		Size:     formatSize(doc.Size),
	}
}

// formatSize renders a byte count the way a folder listing displays it.
func formatSize(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(bytes)/float64(div), "KMGTPE"[exp])
}

// registerHandlers wires every update kind the gateway cares about onto
// dispatch: private/channel messages for commands and conversation steps,
// callback queries for the inline keyboards, and the payment lifecycle.
func registerHandlers(a *App, dispatch *tg.UpdateDispatcher) {
	dispatch.OnNewMessage(func(ctx context.Context, entities tg.Entities, u *tg.UpdateNewMessage) error {
		if !a.ready.Load() {
			return nil
		}
		return a.handleNewMessage(ctx, entities, u.Message)
	})
	dispatch.OnNewChannelMessage(func(ctx context.Context, entities tg.Entities, u *tg.UpdateNewChannelMessage) error {
		if !a.ready.Load() {
			return nil
		}
		return a.handleChannelMessage(ctx, entities, u.Message)
	})
	dispatch.OnBotCallbackQuery(func(ctx context.Context, entities tg.Entities, u *tg.UpdateBotCallbackQuery) error {
		if !a.ready.Load() {
			return nil
		}
		a.peers.Warm(entities)
		return a.handleCallbackQuery(ctx, u)
	})
	dispatch.OnBotPrecheckoutQuery(func(ctx context.Context, entities tg.Entities, u *tg.UpdateBotPrecheckoutQuery) error {
		if !a.ready.Load() {
			return nil
		}
		return a.handlePrecheckout(ctx, u)
	})
}

// handleNewMessage fans private-chat updates out to the command parser or
// the active conversation step, warming the peer cache and deduplicating
// before anything else touches the message.
func (a *App) handleNewMessage(ctx context.Context, entities tg.Entities, mc tg.MessageClass) error {
	a.peers.Warm(entities)

	// A completed Stars payment arrives as a service message, not a
	// regular one.
	if svc, ok := mc.(*tg.MessageService); ok {
		if paid, ok := svc.Action.(*tg.MessageActionPaymentSentMe); ok {
			if payer, ok := svc.PeerID.(*tg.PeerUser); ok {
				peer, err := a.peers.ResolveUserID(ctx, payer.UserID)
				if err != nil {
					logger.Warnf("payment: resolve payer %d: %v", payer.UserID, err)
					return nil
				}
				return a.handleSuccessfulPayment(ctx, peer, payer.UserID, paid)
			}
		}
		return nil
	}

	msg, ok := mc.(*tg.Message)
	if !ok || msg.Out {
		return nil
	}
	peer, err := a.peers.GetInputPeerRaw(entities, msg)
	if err != nil {
		logger.Warnf("resolve peer for message %d: %v", msg.ID, err)
		return nil
	}
	userID, ok := senderID(msg)
	if !ok {
		return nil
	}
	if a.dedup.Seen(userID, msg.ID, msg.EditDate) {
		return nil
	}

	text := strings.TrimSpace(msg.Message)
	if strings.HasPrefix(text, "/") {
		return a.dispatchCommand(ctx, peer, userID, text)
	}
	return a.dispatchConversationStep(ctx, peer, userID, msg)
}

// handleChannelMessage warms the cache with every authorized channel's
// traffic and feeds document posts to the live ingestor so newly posted
// files appear in the folder tree without waiting for /index. Service
// messages (group-call start/end, pinned, etc.) go through a separate
// branch gated by the /cleanservice toggle.
func (a *App) handleChannelMessage(ctx context.Context, entities tg.Entities, mc tg.MessageClass) error {
	a.peers.Warm(entities)

	if svc, ok := mc.(*tg.MessageService); ok {
		return a.maybeCleanService(ctx, svc)
	}

	msg, ok := mc.(*tg.Message)
	if !ok {
		return nil
	}

	channel, ok := msg.PeerID.(*tg.PeerChannel)
	if !ok {
		return nil
	}
	chatID := channel.ChannelID
	if !ingest.IsAuthorized(ctx, a.store, chatID) {
		return nil
	}
	if a.dedup.Seen(chatID, msg.ID, msg.EditDate) {
		return nil
	}

	mediaDoc, ok := msg.Media.(*tg.MessageMediaDocument)
	if !ok {
		return nil
	}
	doc, ok := mediaDoc.Document.(*tg.Document)
	if !ok {
		return nil
	}
	name, mime := filenameAndMime(doc)
	return a.ingestor.Push(ctx, chatID, mediaFromDoc(msg, name, mime, doc))
}

// maybeCleanService deletes svc from its channel when the owner has turned
// on /cleanservice; Telegram's own "video chat started/ended", "pinned",
// and similar action messages are noise in an indexed channel's history.
func (a *App) maybeCleanService(ctx context.Context, svc *tg.MessageService) error {
	channel, ok := svc.PeerID.(*tg.PeerChannel)
	if !ok {
		return nil
	}
	enabled, err := a.store.GetConfigFlag(ctx, "cleanservice")
	if err != nil || !enabled {
		return nil
	}
	inputChannel, err := a.peers.InputChannel(channel.ChannelID)
	if err != nil {
		return nil
	}
	if _, err := a.bot.API().ChannelsDeleteMessages(ctx, &tg.ChannelsDeleteMessagesRequest{
		Channel: inputChannel,
		ID:      []int{svc.ID},
	}); err != nil {
		logger.Warnf("cleanservice: delete message %d in %d: %v", svc.ID, channel.ChannelID, err)
	}
	return nil
}

func senderID(msg *tg.Message) (int64, bool) {
	switch p := msg.PeerID.(type) {
	case *tg.PeerUser:
		return p.UserID, true
	default:
		if msg.FromID != nil {
			if u, ok := msg.FromID.(*tg.PeerUser); ok {
				return u.UserID, true
			}
		}
	}
	return 0, false
}
