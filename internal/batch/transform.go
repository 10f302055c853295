package batch

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"gatewaybot/internal/apperr"
	"gatewaybot/internal/procutil"
	"gatewaybot/internal/store"
)

const maxFilenameLen = 255

var invalidFilenameChars = regexp.MustCompile(`[<>:"/\\|?*']`)

// SanitizeFilename strips characters unsafe across common filesystems and
// caps the result at 255 bytes.
func SanitizeFilename(name string) string {
	name = invalidFilenameChars.ReplaceAllString(name, "")
	name = strings.TrimSpace(name)
	if len(name) > maxFilenameLen {
		name = name[:maxFilenameLen]
	}
	return name
}

// DeriveFilename prefers the media's own file name, falling back to a
// timestamp-based name when the media carries none (e.g. an inline photo).
func DeriveFilename(providedName string) string {
	if providedName != "" {
		return SanitizeFilename(providedName)
	}
	return SanitizeFilename(fmt.Sprintf("file_%d", time.Now().UnixNano()))
}

// ApplyRenameTag appends tag before the extension, e.g. "clip.mp4" with tag
// "[MyBot]" becomes "clip [MyBot].mp4". A blank tag is a no-op.
func ApplyRenameTag(filename, tag string) string {
	if tag == "" {
		return filename
	}
	ext := filepath.Ext(filename)
	base := strings.TrimSuffix(filename, ext)
	return base + " " + tag + ext
}

// BuildCaption applies the user's replacements then delete-words to the
// original caption, then appends the user's own caption template separated
// by a blank line when both are non-empty. Replacements run in sorted-key
// order so overlapping rules produce the same output on every run;
// delete-words remove whole whitespace-separated tokens only, never
// substrings, so deleting "the" leaves "theatre" alone. The token pass
// also collapses runs of whitespace, same as a split/join round trip.
func BuildCaption(original string, settings store.UserSettings) string {
	caption := original

	finds := make([]string, 0, len(settings.Replacements))
	for find := range settings.Replacements {
		if find != "" {
			finds = append(finds, find)
		}
	}
	sort.Strings(finds)
	for _, find := range finds {
		caption = strings.ReplaceAll(caption, find, settings.Replacements[find])
	}

	if len(settings.DeleteWords) > 0 {
		drop := make(map[string]bool, len(settings.DeleteWords))
		for _, word := range settings.DeleteWords {
			if word != "" {
				drop[word] = true
			}
		}
		kept := make([]string, 0, 16)
		for _, tok := range strings.Fields(caption) {
			if !drop[tok] {
				kept = append(kept, tok)
			}
		}
		caption = strings.Join(kept, " ")
	}
	caption = strings.TrimSpace(caption)

	if settings.Caption == "" {
		return caption
	}
	if caption == "" {
		return settings.Caption
	}
	return caption + "\n\n" + settings.Caption
}

// Destination is the resolved upload target: a chat id plus an optional
// forum-topic reply target.
type Destination struct {
	ChatID       int64
	ReplyToMsgID int
}

// ResolveDestination parses the user's chat_id setting ("chatId" or
// "chatId/topicId"), falling back to fallbackChatID when unset.
func ResolveDestination(fallbackChatID int64, chatIDSetting string) (Destination, error) {
	chatIDSetting = strings.TrimSpace(chatIDSetting)
	if chatIDSetting == "" {
		return Destination{ChatID: fallbackChatID}, nil
	}

	parts := strings.SplitN(chatIDSetting, "/", 2)
	chatID, err := strconv.ParseInt(strings.TrimSpace(parts[0]), 10, 64)
	if err != nil {
		return Destination{}, apperr.New(apperr.InvalidLink, "invalid destination chat id in settings")
	}

	dest := Destination{ChatID: chatID}
	if len(parts) == 2 {
		if topicID, err := strconv.Atoi(strings.TrimSpace(parts[1])); err == nil {
			dest.ReplyToMsgID = topicID
		}
	}
	return dest, nil
}

// MediaKind is the coarse kind the source protocol client reports for a
// message's attached media.
type MediaKind int

const (
	KindDocument MediaKind = iota
	KindVideo
	KindAudio
	KindPhoto
	KindSticker
	KindVoice
	KindVideoNote
)

// UploadKind is the outbound send method the pipeline picks.
type UploadKind int

const (
	UploadDocument UploadKind = iota
	UploadVideo
	UploadAudio
	UploadPhoto
	UploadSticker
	UploadVoice
	UploadVideoNote
)

var videoExtensions = map[string]bool{
	".mp4": true, ".mkv": true, ".avi": true, ".mov": true, ".wmv": true,
	".flv": true, ".webm": true, ".m4v": true, ".3gp": true,
}

var audioExtensions = map[string]bool{
	".mp3": true, ".wav": true, ".flac": true, ".aac": true, ".ogg": true,
	".wma": true, ".m4a": true, ".opus": true,
}

// ClassifyUpload picks the outbound send method: the source media kind
// wins when it already names a specific type (photo, sticker, voice,
// video note); a generic document/video/audio kind falls through to an
// extension heuristic over the final filename.
func ClassifyUpload(kind MediaKind, filename string) UploadKind {
	switch kind {
	case KindPhoto:
		return UploadPhoto
	case KindSticker:
		return UploadSticker
	case KindVoice:
		return UploadVoice
	case KindVideoNote:
		return UploadVideoNote
	}

	ext := strings.ToLower(filepath.Ext(filename))
	if videoExtensions[ext] || kind == KindVideo {
		return UploadVideo
	}
	if audioExtensions[ext] || kind == KindAudio {
		return UploadAudio
	}
	return UploadDocument
}

// VideoMeta is the duration/dimensions probed for a video upload, defaulted
// to 1x1x1 when ffprobe fails so the send call always has plausible values.
type VideoMeta struct {
	DurationSeconds int
	Width           int
	Height          int
}

const videoProbeTimeout = 15 * time.Second

// ProbeVideoMeta runs ffprobe against path, parsing a single CSV line of
// width,height,duration. Any failure yields the 1x1x1 fallback.
func ProbeVideoMeta(ctx context.Context, path string) VideoMeta {
	probeCtx, cancel := context.WithTimeout(ctx, videoProbeTimeout)
	defer cancel()

	res, err := procutil.Run(probeCtx, "ffprobe",
		"-v", "error",
		"-select_streams", "v:0",
		"-show_entries", "stream=width,height:format=duration",
		"-of", "csv=p=0",
		path,
	)
	fallback := VideoMeta{DurationSeconds: 1, Width: 1, Height: 1}
	if err != nil {
		return fallback
	}

	var width, height int
	var duration float64
	fields := strings.FieldsFunc(strings.TrimSpace(string(res.Stdout)), func(r rune) bool {
		return r == ',' || r == '\n'
	})
	if len(fields) < 3 {
		return fallback
	}
	if _, scanErr := fmt.Sscanf(fields[0], "%d", &width); scanErr != nil || width <= 0 {
		return fallback
	}
	if _, scanErr := fmt.Sscanf(fields[1], "%d", &height); scanErr != nil || height <= 0 {
		return fallback
	}
	if _, scanErr := fmt.Sscanf(fields[2], "%f", &duration); scanErr != nil || duration <= 0 {
		return fallback
	}

	return VideoMeta{DurationSeconds: int(duration), Width: width, Height: height}
}

// Thumbnail returns a thumbnail path for videoPath: the user's persisted
// <uid>.jpg if one exists, else a first-frame grab via ffmpeg. Returns ""
// if neither is available.
func Thumbnail(ctx context.Context, dataDir string, userID int64, videoPath string) string {
	custom := filepath.Join(dataDir, "thumbnails", fmt.Sprintf("%d.jpg", userID))
	if _, err := os.Stat(custom); err == nil {
		return custom
	}

	out := videoPath + ".thumb.jpg"
	if _, err := procutil.Run(ctx, "ffmpeg", "-y", "-ss", "00:00:01", "-i", videoPath, "-frames:v", "1", out); err != nil {
		return ""
	}
	return out
}
