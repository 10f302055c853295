// Package ingest is the channel ingestor. It turns a raw media message
// into a stored file record: derive a display title, extract a short
// content hash, parse any Batch:/Topic: caption line into a folder path,
// then upsert through the store's novelty check. It is deliberately
// decoupled from gotd: callers hand it plain Media values, so the same
// logic drives the live update handler, the bulk /index scan, and the
// in-memory /createindex preview.
package ingest

import (
	"context"
	"fmt"
	"path"
	"regexp"
	"strconv"
	"strings"

	"go.uber.org/multierr"

	"gatewaybot/internal/config"
	"gatewaybot/internal/foldertree"
	"gatewaybot/internal/store"
	"gatewaybot/internal/topic"
)

// Media is the minimal shape the ingestor needs from a channel message
// carrying a document or video.
type Media struct {
	MsgID    int
	Caption  string
	FileID   string // Telegram's unique file identifier
	FileName string
	MimeType string
	Size     string
}

// HistorySource fetches the media messages between two ids (inclusive) of a
// channel's history, in ascending message-id order, for the bulk /index and
// live /createindex entry points.
type HistorySource interface {
	MediaRange(ctx context.Context, chatID int64, fromMsgID, toMsgID int) ([]Media, error)
}

// Ingestor ties the store's folder/file writers to the caption parser.
type Ingestor struct {
	store *store.Store
	tree  *foldertree.Service
}

// New builds an Ingestor over s and tree.
func New(s *store.Store, tree *foldertree.Service) *Ingestor {
	return &Ingestor{store: s, tree: tree}
}

// CanonicalChannelID normalizes a channel reference to its bare positive
// id, so the "-1001234" form operators put in AUTH_CHANNEL compares equal
// to the bare id MTProto updates carry.
func CanonicalChannelID(id int64) int64 {
	const marker = -1000000000000
	if id < marker {
		return -(id - marker)
	}
	if id < 0 {
		return -id
	}
	return id
}

// IsAuthorized reports whether chatID may be ingested: the store's
// auth_channel override wins when set, otherwise the process's static
// AUTH_CHANNEL list is consulted.
func IsAuthorized(ctx context.Context, s *store.Store, chatID int64) bool {
	want := CanonicalChannelID(chatID)
	override, err := s.GetAuthChannelsOverride(ctx)
	if err == nil && strings.TrimSpace(override) != "" {
		for _, tok := range strings.Split(override, ",") {
			if id, err := strconv.ParseInt(strings.TrimSpace(tok), 10, 64); err == nil && CanonicalChannelID(id) == want {
				return true
			}
		}
		return false
	}

	for _, id := range config.Env().AuthChannels {
		if CanonicalChannelID(id) == want {
			return true
		}
	}
	return false
}

// ListAuthorized returns every channel id the store's auth_channel override
// names, falling back to the process's static AUTH_CHANNEL list when no
// override is set, mirroring IsAuthorized's precedence. Results are in
// canonical bare-id form.
func ListAuthorized(ctx context.Context, s *store.Store) ([]int64, error) {
	override, err := s.GetAuthChannelsOverride(ctx)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(override) == "" {
		ids := make([]int64, 0, len(config.Env().AuthChannels))
		for _, id := range config.Env().AuthChannels {
			ids = append(ids, CanonicalChannelID(id))
		}
		return ids, nil
	}

	var ids []int64
	for _, tok := range strings.Split(override, ",") {
		tok = strings.TrimSpace(tok)
		if tok == "" {
			continue
		}
		if id, err := strconv.ParseInt(tok, 10, 64); err == nil {
			ids = append(ids, CanonicalChannelID(id))
		}
	}
	return ids, nil
}

var punctuationRe = regexp.MustCompile(`[.,|_',]`)

// deriveTitle builds the display title per the ingestor's precedence:
// filename, else caption, else the raw file id, with the extension
// stripped and separator punctuation collapsed to spaces.
func deriveTitle(m Media) string {
	title := m.FileName
	if title == "" {
		title = m.Caption
	}
	if title == "" {
		title = m.FileID
	}
	title = strings.TrimSuffix(title, path.Ext(title))
	title = punctuationRe.ReplaceAllString(title, " ")
	return strings.TrimSpace(title)
}

const hashLength = 6

// Hash takes the short prefix of a file's unique id used for
// dedupe-friendly display and callback-data addressing.
func Hash(fileID string) string {
	if len(fileID) <= hashLength {
		return fileID
	}
	return fileID[:hashLength]
}

// record is the common plan computed for any one Media item before it is
// written: the folder path it belongs under, if any, and the fields that go
// straight onto the stored FileRecord.
type record struct {
	rec        store.FileRecord
	folderPath []string
}

func plan(chatID int64, m Media) record {
	return record{
		rec: store.FileRecord{
			ChatID:   chatID,
			FileID:   m.FileID,
			MsgID:    m.MsgID,
			Name:     deriveTitle(m),
			Size:     m.Size,
			MimeType: m.MimeType,
		},
		folderPath: topic.ParsePath(m.Caption),
	}
}

// Push handles one freshly received message: the live entry point invoked
// from the update dispatcher for every new channel document/video. The
// content hash named in the data model is never stored: it is always
// derivable from FileID, so the browser recomputes it via Hash when
// building callback data.
func (in *Ingestor) Push(ctx context.Context, chatID int64, m Media) error {
	p := plan(chatID, m)
	rec := p.rec

	if len(p.folderPath) > 0 {
		folderID, err := in.tree.GetOrCreateFolderPath(ctx, p.folderPath, chatID)
		if err != nil {
			return err
		}
		rec.ParentFolder = folderID
	}

	_, err := in.store.AddFileIfNovel(ctx, rec)
	return err
}

// IndexChannel runs the bulk /index scan: it walks every media message from
// 1 to uptoMsgID via src, resolving topic folders as it goes, and reports
// how many files were filed under a folder versus left unfiled. A failure
// on one item does not abort the scan; per-item errors are aggregated and
// returned alongside the counts.
func (in *Ingestor) IndexChannel(ctx context.Context, src HistorySource, chatID int64, uptoMsgID int) (withFolder, withoutFolder int, err error) {
	items, err := src.MediaRange(ctx, chatID, 1, uptoMsgID)
	if err != nil {
		return 0, 0, err
	}

	var errs error
	for _, m := range items {
		p := plan(chatID, m)
		rec := p.rec

		if len(p.folderPath) > 0 {
			folderID, ferr := in.tree.GetOrCreateFolderPath(ctx, p.folderPath, chatID)
			if ferr != nil {
				errs = multierr.Append(errs, fmt.Errorf("msg %d: %w", m.MsgID, ferr))
				continue
			}
			rec.ParentFolder = folderID
			withFolder++
		} else {
			withoutFolder++
		}

		if _, aerr := in.store.AddFileIfNovel(ctx, rec); aerr != nil {
			errs = multierr.Append(errs, fmt.Errorf("msg %d: %w", m.MsgID, aerr))
		}
	}

	return withFolder, withoutFolder, errs
}

// PreviewIndex builds the live, store-free tree for /createindex: the same
// folder-path resolution as IndexChannel, but entirely in memory, so a
// channel can be previewed before committing to a full bulk index.
func (in *Ingestor) PreviewIndex(ctx context.Context, src HistorySource, chatID int64, uptoMsgID int) (foldertree.Index, error) {
	items, err := src.MediaRange(ctx, chatID, 1, uptoMsgID)
	if err != nil {
		return foldertree.Index{}, err
	}

	var folders []foldertree.FolderRef
	var files []foldertree.FileRef
	seen := make(map[string]bool)

	for _, m := range items {
		path := topic.ParsePath(m.Caption)
		if len(path) == 0 {
			continue
		}

		parent := store.RootFolderID
		for _, name := range path {
			key := parent + "\x00" + name
			id := key
			if !seen[key] {
				seen[key] = true
				folders = append(folders, foldertree.FolderRef{ID: id, Name: name, ParentID: parent})
			}
			parent = id
		}

		files = append(files, foldertree.FileRef{ParentFolder: parent, MsgID: m.MsgID})
	}

	return foldertree.Build(folders, files), nil
}
