// Package browser is the inline folder/file browser. It turns a page of
// store.Page results into a transport-agnostic View — header text plus
// button rows — leaving the actual Telegram keyboard construction and the
// callback-query routing table to the app wiring layer. Keeping the
// keyboard shape here as plain data (rather than gotd's tg types) lets the
// pagination and truncation math be tested without a client.
package browser

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"gatewaybot/internal/apperr"
	"gatewaybot/internal/ingest"
	"gatewaybot/internal/store"
	"gatewaybot/internal/vc"
)

// ItemsPerPage bounds how many folders+files a single page shows.
const ItemsPerPage = 8

// maxCallbackBytes is Telegram's limit on encoded callback_data.
const maxCallbackBytes = 64

// Button is one inline keyboard button: exactly one of Data or URL is set.
type Button struct {
	Text string
	Data string
	URL  string
}

// Row is one keyboard row.
type Row []Button

// View is a fully built screen: header text plus a keyboard.
type View struct {
	Header string
	Rows   []Row
}

// ChannelRef names one authorized channel for the top-level /browse list.
type ChannelRef struct {
	ChatID int64
	Title  string
}

// Controller builds Views from the store and the live VC controller.
type Controller struct {
	store *store.Store
	vc    *vc.Controller
}

// New builds a Controller over s and vcCtl. vcCtl may be nil if voice chat
// is not wired (folder views then never show the Now Playing banner).
func New(s *store.Store, vcCtl *vc.Controller) *Controller {
	return &Controller{store: s, vc: vcCtl}
}

// ChannelsView lists every authorized channel as one button per row.
func (c *Controller) ChannelsView(channels []ChannelRef) View {
	rows := make([]Row, 0, len(channels))
	for _, ch := range channels {
		rows = append(rows, Row{{
			Text: ch.Title,
			Data: truncate(fmt.Sprintf("bch|%d", ch.ChatID)),
		}})
	}
	return View{Header: "📂 Browse a channel", Rows: rows}
}

func mimeIcon(mimeType string) string {
	switch {
	case strings.HasPrefix(mimeType, "video/"):
		return "🎬"
	case mimeType == "application/pdf":
		return "📕"
	default:
		return "📄"
	}
}

// FolderView renders one page of a folder's contents: up to ItemsPerPage
// items, folders two per row then files one per row, followed by a
// navigation row (Back + Prev/Next that never disappears) and, when chatID
// has an active voice chat, a Now Playing banner and Stop/Open row.
func (c *Controller) FolderView(ctx context.Context, folderID string, chatID int64, page int) (View, error) {
	pageResult, err := c.store.ListItems(ctx, folderID, chatID, page, ItemsPerPage)
	if err != nil {
		return View{}, err
	}

	var rows []Row

	for i := 0; i < len(pageResult.Folders); i += 2 {
		row := Row{folderButton(pageResult.Folders[i], chatID)}
		if i+1 < len(pageResult.Folders) {
			row = append(row, folderButton(pageResult.Folders[i+1], chatID))
		}
		rows = append(rows, row)
	}

	for _, f := range pageResult.Files {
		rows = append(rows, Row{fileButton(f)})
	}

	backData, err := c.backTarget(ctx, folderID, chatID, page)
	if err != nil {
		return View{}, err
	}

	prevPage, nextPage := page-1, page+1
	if prevPage < 1 {
		prevPage = page
	}
	if !pageResult.HasMore {
		nextPage = page
	}
	rows = append(rows, Row{
		{Text: "⬅️ Back", Data: backData},
		{Text: "◀️ Prev", Data: truncate(fmt.Sprintf("bf|%s|%d|%d", folderID, chatID, prevPage))},
		{Text: "▶️ Next", Data: truncate(fmt.Sprintf("bf|%s|%d|%d", folderID, chatID, nextPage))},
	})

	header := fmt.Sprintf("📂 %d Folders | 🎬 %d Videos | 📕 %d PDFs | 📄 %d Others",
		pageResult.FolderCount, pageResult.VideoCount, pageResult.PDFCount,
		pageResult.FileCount-pageResult.VideoCount-pageResult.PDFCount)

	if c.vc != nil {
		if state, active := c.vc.State(chatID); active {
			header = nowPlayingBanner(state) + "\n\n" + header
			rows = append([]Row{nowPlayingRow(chatID)}, rows...)
		}
	}

	return View{Header: header, Rows: rows}, nil
}

func (c *Controller) backTarget(ctx context.Context, folderID string, chatID int64, page int) (string, error) {
	if folderID == store.RootFolderID {
		return truncate("bl"), nil
	}
	_, parentID, _, err := c.store.GetFolderWithParent(ctx, folderID)
	if err != nil {
		if apperr.Is(err, apperr.NotFound) {
			return truncate("bl"), nil
		}
		return "", err
	}
	return truncate(fmt.Sprintf("bf|%s|%d|1", parentID, chatID)), nil
}

func folderButton(f store.Folder, chatID int64) Button {
	return Button{
		Text: "📁 " + f.Name,
		Data: truncate(fmt.Sprintf("bf|%s|%d|1", f.ID.Hex(), chatID)),
	}
}

func fileButton(f store.FileRecord) Button {
	return Button{
		Text: mimeIcon(f.MimeType) + " " + f.Name,
		Data: truncate(fmt.Sprintf("bfi|%d|%d|%s|%s", f.MsgID, f.ChatID, ingest.Hash(f.FileID), f.ParentFolder)),
	}
}

// FileActionView builds the action menu for one file: video files offer
// Watch/Stream and Play in VC, PDFs offer Open/Download; every branch
// offers Send to Bot, Jump to Message, and Back.
func (c *Controller) FileActionView(ctx context.Context, msgID int, chatID int64, hash, folderID, baseHost string) (View, error) {
	f, err := c.store.GetFileByMsg(ctx, chatID, msgID)
	if err != nil {
		return View{}, err
	}

	base := strings.TrimSuffix(baseHost, "/")
	streamURL := fmt.Sprintf("%s/%d/%s?id=%d&hash=%s", base, cleanChatID(chatID), url.PathEscape(f.Name), msgID, hash)
	watchURL := fmt.Sprintf("%s/watch/%d?id=%d&hash=%s", base, cleanChatID(chatID), msgID, hash)

	var rows []Row
	switch {
	case strings.HasPrefix(f.MimeType, "video/"):
		rows = append(rows, Row{
			{Text: "▶️ Watch/Stream", URL: watchURL},
			{Text: "🔊 Play in VC", Data: truncate(fmt.Sprintf("bvc|%d|%d|%s", msgID, chatID, hash))},
		})
	case f.MimeType == "application/pdf":
		rows = append(rows, Row{
			{Text: "📕 Open PDF", URL: streamURL},
			{Text: "⬇️ Download", Data: truncate(fmt.Sprintf("bs|%d|%d", msgID, chatID))},
		})
	}

	rows = append(rows,
		Row{{Text: "📤 Send to Bot", Data: truncate(fmt.Sprintf("bs|%d|%d", msgID, chatID))}},
		Row{{Text: "🔗 Jump to Message", URL: fmt.Sprintf("https://t.me/c/%d/%d", cleanChatID(chatID), msgID)}},
		Row{{Text: "⬅️ Back", Data: truncate(fmt.Sprintf("bf|%s|%d|1", folderID, chatID))}},
	)

	return View{Header: mimeIcon(f.MimeType) + " " + f.Name, Rows: rows}, nil
}

func nowPlayingBanner(state vc.StreamState) string {
	title := state.Title
	if len(title) > 20 {
		title = title[:20] + "…"
	}
	return "🔊 **Now Playing:** " + title
}

func nowPlayingRow(chatID int64) Row {
	return Row{
		{Text: "⏹ Stop VC", Data: truncate(fmt.Sprintf("bvs|%d", chatID))},
		{Text: "🎛 Open Player", Data: truncate(fmt.Sprintf("bvo|%d", chatID))},
	}
}

// CleanChatID strips the -100 supergroup prefix and formats the result as
// a string, for callers building deep links outside this package (the
// index renderer's tree output).
func CleanChatID(chatID int64) string {
	return strconv.FormatInt(cleanChatID(chatID), 10)
}

// cleanChatID strips the -100 supergroup prefix so it can be embedded in a
// t.me/c/ deep link.
func cleanChatID(chatID int64) int64 {
	s := strconv.FormatInt(chatID, 10)
	if strings.HasPrefix(s, "-100") {
		v, err := strconv.ParseInt(s[4:], 10, 64)
		if err == nil {
			return v
		}
	}
	return chatID
}

// truncate clamps callback data to Telegram's 64-byte limit. The leading
// route identifier is the most significant part, so truncation from the
// tail is acceptable.
func truncate(data string) string {
	if len(data) <= maxCallbackBytes {
		return data
	}
	return data[:maxCallbackBytes]
}
