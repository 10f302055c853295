package app

import (
	"context"
	"fmt"
	"time"

	"github.com/gotd/td/tg"

	"gatewaybot/internal/browser"
)

// markupFromView turns a browser.View's plain-data rows into the inline
// keyboard gotd's API expects, splitting callback-data and deep-link
// buttons by whether Button.URL is set.
func markupFromView(v browser.View) *tg.ReplyMarkupClass {
	if len(v.Rows) == 0 {
		return nil
	}
	rows := make([]tg.KeyboardButtonRow, 0, len(v.Rows))
	for _, r := range v.Rows {
		buttons := make([]tg.KeyboardButtonClass, 0, len(r))
		for _, b := range r {
			if b.URL != "" {
				buttons = append(buttons, &tg.KeyboardButtonURL{Text: b.Text, URL: b.URL})
				continue
			}
			buttons = append(buttons, &tg.KeyboardButtonCallback{Text: b.Text, Data: []byte(b.Data)})
		}
		rows = append(rows, tg.KeyboardButtonRow{Buttons: buttons})
	}
	var markup tg.ReplyMarkupClass = &tg.ReplyInlineMarkup{Rows: rows}
	return &markup
}

func nextRandomID() int64 { return time.Now().UnixNano() }

// sendView posts v as a new message to peer.
func (a *App) sendView(ctx context.Context, peer tg.InputPeerClass, v browser.View) (int, error) {
	req := &tg.MessagesSendMessageRequest{
		Peer:     peer,
		Message:  v.Header,
		RandomID: nextRandomID(),
	}
	if markup := markupFromView(v); markup != nil {
		req.ReplyMarkup = *markup
	}
	updates, err := a.bot.API().MessagesSendMessage(ctx, req)
	if err != nil {
		return 0, fmt.Errorf("send message: %w", err)
	}
	return extractMessageID(updates), nil
}

// sendText posts a plain text message with no keyboard.
func (a *App) sendText(ctx context.Context, peer tg.InputPeerClass, text string) error {
	_, err := a.bot.API().MessagesSendMessage(ctx, &tg.MessagesSendMessageRequest{
		Peer:     peer,
		Message:  text,
		RandomID: nextRandomID(),
	})
	return err
}

// sendTextID posts a plain text message and returns its message id, for
// callers that need to edit it afterward (progress bars during a run).
func (a *App) sendTextID(ctx context.Context, peer tg.InputPeerClass, text string) (int, error) {
	updates, err := a.bot.API().MessagesSendMessage(ctx, &tg.MessagesSendMessageRequest{
		Peer:     peer,
		Message:  text,
		RandomID: nextRandomID(),
	})
	if err != nil {
		return 0, err
	}
	return extractMessageID(updates), nil
}

// editText rewrites an existing message's text in place with no keyboard,
// used for progress-bar edits during batch/ytdl downloads. Callers swallow
// edit failures; a missed bar update is not worth failing a transfer over.
func (a *App) editText(ctx context.Context, peer tg.InputPeerClass, msgID int, text string) error {
	_, err := a.bot.API().MessagesEditMessage(ctx, &tg.MessagesEditMessageRequest{
		Peer:    peer,
		ID:      msgID,
		Message: text,
	})
	return err
}

// editView rewrites an existing message's text and keyboard in place, the
// pattern every callback-driven navigation (folder browsing, the VC player)
// uses instead of sending a fresh message per tap.
func (a *App) editView(ctx context.Context, peer tg.InputPeerClass, msgID int, v browser.View) error {
	req := &tg.MessagesEditMessageRequest{
		Peer:    peer,
		ID:      msgID,
		Message: v.Header,
	}
	if markup := markupFromView(v); markup != nil {
		req.ReplyMarkup = *markup
	}
	_, err := a.bot.API().MessagesEditMessage(ctx, req)
	return err
}

func extractMessageID(updates tg.UpdatesClass) int {
	switch u := updates.(type) {
	case *tg.UpdateShortSentMessage:
		return u.ID
	case *tg.Updates:
		for _, upd := range u.Updates {
			switch m := upd.(type) {
			case *tg.UpdateNewMessage:
				if msg, ok := m.Message.(*tg.Message); ok {
					return msg.ID
				}
			case *tg.UpdateNewChannelMessage:
				if msg, ok := m.Message.(*tg.Message); ok {
					return msg.ID
				}
			}
		}
	case *tg.UpdatesCombined:
		for _, upd := range u.Updates {
			switch m := upd.(type) {
			case *tg.UpdateNewMessage:
				if msg, ok := m.Message.(*tg.Message); ok {
					return msg.ID
				}
			case *tg.UpdateNewChannelMessage:
				if msg, ok := m.Message.(*tg.Message); ok {
					return msg.ID
				}
			}
		}
	}
	return 0
}
