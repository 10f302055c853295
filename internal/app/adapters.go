package app

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gotd/td/tg"

	"github.com/gotd/td/telegram/downloader"
	"github.com/gotd/td/telegram/uploader"

	"gatewaybot/internal/apperr"
	"gatewaybot/internal/batch"
	"gatewaybot/internal/ingest"
	"gatewaybot/internal/logger"
	"gatewaybot/internal/storage"
)

// peerResolver is the lookup surface TelegramAdapter needs to turn a bare
// id or username into a tg.InputPeerClass. Both the gateway bot's own
// peercache.Cache and a per-user session/bot client's peersmgr.Service
// satisfy it, so one adapter implementation serves the live dispatcher
// path and the batch pipeline's per-user clients alike.
type peerResolver interface {
	ResolveUsername(ctx context.Context, username string) (tg.InputPeerClass, int64, error)
	ResolveChatID(ctx context.Context, id int64) (tg.InputPeerClass, error)
	ResolveUserID(ctx context.Context, id int64) (tg.InputPeerClass, error)
	PutUser(u *tg.User)
	PutChannel(ch *tg.Channel)
	PutChat(ch *tg.Chat)
}

// TelegramAdapter implements batch.Fetcher, batch.Downloader, batch.Uploader
// and ingest.HistorySource over one live *tg.Client. A fetch caches the
// resolved *tg.Document for its message id so a later Download on the same
// adapter can build the file location without a second round trip; callers
// build one adapter per batch run rather than sharing it across users.
type TelegramAdapter struct {
	api   *tg.Client
	peers peerResolver

	mu   sync.RWMutex
	docs map[int]*tg.Document
}

// NewTelegramAdapter builds an adapter bound to api, resolving peers through
// peers (channel/user access hashes api alone cannot look up by bare id).
func NewTelegramAdapter(api *tg.Client, peers peerResolver) *TelegramAdapter {
	return &TelegramAdapter{api: api, peers: peers, docs: make(map[int]*tg.Document)}
}

// FetchPublic resolves chatRef as a @username.
func (t *TelegramAdapter) FetchPublic(ctx context.Context, chatRef string, msgID int) (*batch.FetchedMessage, error) {
	peer, _, err := t.peers.ResolveUsername(ctx, chatRef)
	if err != nil {
		return nil, apperr.Wrap(apperr.InvalidLink, err)
	}
	return t.fetchFromPeer(ctx, peer, msgID)
}

// FetchPrivate resolves chatRef (a "-100<digits>" internal chat id, per
// batch.ParseLink's LinkPrivate form) against the cache warmed from the
// requesting user's own dialogs; it never falls back to a bare-id RPC
// since none exists for channels.
func (t *TelegramAdapter) FetchPrivate(ctx context.Context, chatRef string, msgID int) (*batch.FetchedMessage, error) {
	chatID, err := strconv.ParseInt(strings.TrimPrefix(chatRef, "-100"), 10, 64)
	if err != nil {
		return nil, apperr.New(apperr.InvalidLink, "malformed private chat reference")
	}
	peer, err := t.peers.ResolveChatID(ctx, chatID)
	if err != nil {
		return nil, apperr.Wrap(apperr.InvalidLink, err)
	}
	return t.fetchFromPeer(ctx, peer, msgID)
}

func (t *TelegramAdapter) fetchFromPeer(ctx context.Context, peer tg.InputPeerClass, msgID int) (*batch.FetchedMessage, error) {
	var classes tg.MessagesMessagesClass
	var err error

	if channelPeer, ok := peer.(*tg.InputPeerChannel); ok {
		classes, err = t.api.ChannelsGetMessages(ctx, &tg.ChannelsGetMessagesRequest{
			Channel: &tg.InputChannel{ChannelID: channelPeer.ChannelID, AccessHash: channelPeer.AccessHash},
			ID:      []tg.InputMessageClass{&tg.InputMessageID{ID: msgID}},
		})
	} else {
		classes, err = t.api.MessagesGetMessages(ctx, []tg.InputMessageClass{&tg.InputMessageID{ID: msgID}})
	}
	if err != nil {
		return nil, fmt.Errorf("get message %d: %w", msgID, err)
	}

	messages, users, chats := unwrapMessages(classes)
	t.cacheUsersChats(users, chats)
	if len(messages) == 0 {
		return nil, apperr.New(apperr.NotFound, "message not found")
	}

	msg, ok := messages[0].(*tg.Message)
	if !ok {
		return nil, apperr.New(apperr.NotFound, "message is not a regular message")
	}
	mediaDoc, ok := msg.Media.(*tg.MessageMediaDocument)
	if !ok {
		return nil, apperr.New(apperr.InvalidLink, "message carries no document")
	}
	doc, ok := mediaDoc.Document.(*tg.Document)
	if !ok {
		return nil, apperr.New(apperr.InvalidLink, "document unavailable")
	}

	t.mu.Lock()
	t.docs[msgID] = doc
	t.mu.Unlock()

	name, mime := filenameAndMime(doc)
	return &batch.FetchedMessage{
		MsgID:     msgID,
		Caption:   msg.Message,
		FileName:  name,
		MimeType:  mime,
		SizeBytes: doc.Size,
		Kind:      classifyDocumentKind(doc),
	}, nil
}

// Download streams the document located by a prior Fetch into destDir.
func (t *TelegramAdapter) Download(ctx context.Context, msg *batch.FetchedMessage, destDir string, onProgress batch.ProgressFunc) (string, error) {
	t.mu.RLock()
	doc, ok := t.docs[msg.MsgID]
	t.mu.RUnlock()
	if !ok {
		return "", apperr.New(apperr.FileReferenceExpired, "no cached document for this message; fetch it again")
	}

	if err := storage.EnsureDir(destDir); err != nil {
		return "", err
	}
	destPath := filepath.Join(destDir, msg.FileName)

	out, err := os.Create(destPath)
	if err != nil {
		return "", fmt.Errorf("create %s: %w", destPath, err)
	}
	defer out.Close()

	loc := &tg.InputDocumentFileLocation{ID: doc.ID, AccessHash: doc.AccessHash, FileReference: doc.FileReference}
	var w io.Writer = out
	if onProgress != nil {
		w = &progressWriter{w: out, total: msg.SizeBytes, onProgress: onProgress}
	}

	dl := downloader.NewDownloader().WithPartSize(512 * 1024)
	if _, err := dl.Download(t.api, loc).Stream(ctx, w); err != nil {
		os.Remove(destPath)
		return "", apperr.Wrap(apperr.FileReferenceExpired, fmt.Errorf("download %s: %w", msg.FileName, err))
	}
	return destPath, nil
}

// Upload sends plan's local file to its resolved destination peer.
func (t *TelegramAdapter) Upload(ctx context.Context, plan batch.UploadPlan) error {
	peer, err := t.resolveDestination(ctx, plan.Destination)
	if err != nil {
		return err
	}

	f, err := os.Open(plan.LocalPath)
	if err != nil {
		return fmt.Errorf("open %s: %w", plan.LocalPath, err)
	}
	defer f.Close()

	up := uploader.NewUploader(t.api)
	file, err := up.FromReader(ctx, plan.Filename, f)
	if err != nil {
		return fmt.Errorf("upload %s: %w", plan.Filename, err)
	}

	attrs := []tg.DocumentAttributeClass{&tg.DocumentAttributeFilename{FileName: plan.Filename}}
	switch plan.Kind {
	case batch.UploadVideo:
		meta := plan.Video
		attrs = append(attrs, &tg.DocumentAttributeVideo{
			Duration:          float64(meta.DurationSeconds),
			W:                 meta.Width,
			H:                 meta.Height,
			SupportsStreaming: true,
		})
	case batch.UploadAudio:
		attrs = append(attrs, &tg.DocumentAttributeAudio{})
	case batch.UploadVoice:
		attrs = append(attrs, &tg.DocumentAttributeAudio{Voice: true})
	}

	media := &tg.InputMediaUploadedDocument{File: file, MimeType: mimeForKind(plan.Kind), Attributes: attrs}
	if plan.ThumbnailPath != "" {
		if thumb, err := t.uploadThumb(ctx, plan.ThumbnailPath); err == nil {
			media.Thumb = thumb
		}
	}

	req := &tg.MessagesSendMediaRequest{
		Peer:     peer,
		Media:    media,
		Message:  plan.Caption,
		RandomID: time.Now().UnixNano(),
	}
	if plan.Destination.ReplyToMsgID != 0 {
		req.ReplyTo = &tg.InputReplyToMessage{ReplyToMsgID: plan.Destination.ReplyToMsgID}
	}
	if _, err := t.api.MessagesSendMedia(ctx, req); err != nil {
		return fmt.Errorf("send media: %w", err)
	}
	return nil
}

func (t *TelegramAdapter) uploadThumb(ctx context.Context, path string) (tg.InputFileClass, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	up := uploader.NewUploader(t.api)
	return up.FromReader(ctx, filepath.Base(path), f)
}

func (t *TelegramAdapter) resolveDestination(ctx context.Context, dest batch.Destination) (tg.InputPeerClass, error) {
	if peer, err := t.peers.ResolveChatID(ctx, dest.ChatID); err == nil {
		return peer, nil
	}
	return t.peers.ResolveUserID(ctx, dest.ChatID)
}

// MediaRange walks a channel's message ids in pages of 100, collecting every
// document-bearing message for the indexer.
func (t *TelegramAdapter) MediaRange(ctx context.Context, chatID int64, fromMsgID, toMsgID int) ([]ingest.Media, error) {
	peer, err := t.peers.ResolveChatID(ctx, chatID)
	if err != nil {
		return nil, err
	}
	channelPeer, ok := peer.(*tg.InputPeerChannel)
	if !ok {
		return nil, fmt.Errorf("media range: %d is not a channel", chatID)
	}
	channel := &tg.InputChannel{ChannelID: channelPeer.ChannelID, AccessHash: channelPeer.AccessHash}

	const pageSize = 100
	const progressEvery = 500
	var out []ingest.Media
	scanned := 0
	for start := fromMsgID; start <= toMsgID; start += pageSize {
		if scanned > 0 && scanned%progressEvery == 0 {
			logger.Infof("scan: %d/%d messages of chat %d", scanned, toMsgID-fromMsgID+1, chatID)
		}
		scanned += pageSize
		end := start + pageSize - 1
		if end > toMsgID {
			end = toMsgID
		}
		ids := make([]tg.InputMessageClass, 0, end-start+1)
		for id := start; id <= end; id++ {
			ids = append(ids, &tg.InputMessageID{ID: id})
		}
		resp, err := t.api.ChannelsGetMessages(ctx, &tg.ChannelsGetMessagesRequest{Channel: channel, ID: ids})
		if err != nil {
			return nil, fmt.Errorf("get messages %d-%d: %w", start, end, err)
		}
		messages, users, chats := unwrapMessages(resp)
		t.cacheUsersChats(users, chats)
		for _, mc := range messages {
			msg, ok := mc.(*tg.Message)
			if !ok {
				continue
			}
			mediaDoc, ok := msg.Media.(*tg.MessageMediaDocument)
			if !ok {
				continue
			}
			doc, ok := mediaDoc.Document.(*tg.Document)
			if !ok {
				continue
			}
			name, mime := filenameAndMime(doc)
			out = append(out, ingest.Media{
				MsgID:    msg.ID,
				Caption:  msg.Message,
				FileID:   fmt.Sprintf("%d:%d", doc.ID, doc.AccessHash),
				FileName: name,
				MimeType: mime,
				Size:     formatSize(doc.Size),
			})
		}
	}
	return out, nil
}

func (t *TelegramAdapter) cacheUsersChats(users []tg.UserClass, chats []tg.ChatClass) {
	for _, u := range users {
		if user, ok := u.(*tg.User); ok {
			t.peers.PutUser(user)
		}
	}
	for _, c := range chats {
		switch v := c.(type) {
		case *tg.Channel:
			t.peers.PutChannel(v)
		case *tg.Chat:
			t.peers.PutChat(v)
		}
	}
}

func unwrapMessages(classes tg.MessagesMessagesClass) ([]tg.MessageClass, []tg.UserClass, []tg.ChatClass) {
	switch m := classes.(type) {
	case *tg.MessagesChannelMessages:
		return m.Messages, m.Users, m.Chats
	case *tg.MessagesMessages:
		return m.Messages, m.Users, m.Chats
	case *tg.MessagesMessagesSlice:
		return m.Messages, m.Users, m.Chats
	default:
		return nil, nil, nil
	}
}

func filenameAndMime(doc *tg.Document) (string, string) {
	name := fmt.Sprintf("%d", doc.ID)
	for _, a := range doc.Attributes {
		if fn, ok := a.(*tg.DocumentAttributeFilename); ok {
			name = fn.FileName
		}
	}
	return name, doc.MimeType
}

func classifyDocumentKind(doc *tg.Document) batch.MediaKind {
	for _, a := range doc.Attributes {
		switch v := a.(type) {
		case *tg.DocumentAttributeVideo:
			if v.RoundMessage {
				return batch.KindVideoNote
			}
			return batch.KindVideo
		case *tg.DocumentAttributeAudio:
			if v.Voice {
				return batch.KindVoice
			}
			return batch.KindAudio
		case *tg.DocumentAttributeSticker:
			return batch.KindSticker
		}
	}
	return batch.KindDocument
}

func mimeForKind(kind batch.UploadKind) string {
	switch kind {
	case batch.UploadVideo:
		return "video/mp4"
	case batch.UploadAudio:
		return "audio/mpeg"
	case batch.UploadVoice:
		return "audio/ogg"
	case batch.UploadPhoto:
		return "image/jpeg"
	default:
		return "application/octet-stream"
	}
}

type progressWriter struct {
	w          io.Writer
	written    int64
	total      int64
	onProgress batch.ProgressFunc
}

func (p *progressWriter) Write(b []byte) (int, error) {
	n, err := p.w.Write(b)
	p.written += int64(n)
	if p.onProgress != nil {
		p.onProgress(p.written, p.total)
	}
	return n, err
}
