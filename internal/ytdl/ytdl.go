// Package ytdl wraps yt-dlp for the /ytdl and /adl commands: extract
// metadata, download (optionally transcoding to audio), and hand the
// caller a file ready to upload.
package ytdl

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"gatewaybot/internal/apperr"
	"gatewaybot/internal/procutil"
)

// Info is the subset of yt-dlp's metadata JSON the gateway cares about.
type Info struct {
	Title        string `json:"title"`
	FilesizeApx  int64  `json:"filesize_approx"`
	Filesize     int64  `json:"filesize"`
	Ext          string `json:"ext"`
	ID           string `json:"id"`
}

// ApproxSize returns the best available size estimate in bytes.
func (i Info) ApproxSize() int64 {
	if i.Filesize > 0 {
		return i.Filesize
	}
	return i.FilesizeApx
}

// Result is a completed download ready for upload.
type Result struct {
	Info     Info
	FilePath string
}

const audioBitrateKbps = 320

// Downloader enforces one concurrent download per user and shells out to
// yt-dlp/ffmpeg under cookies configured per-site.
type Downloader struct {
	dataDir string
	ytCookies   string
	instaCookies string

	mu      sync.Mutex
	running map[int64]bool
}

// New builds a Downloader rooted at dataDir, with optional cookie files
// for YouTube and Instagram extraction.
func New(dataDir, ytCookies, instaCookies string) *Downloader {
	return &Downloader{
		dataDir:      dataDir,
		ytCookies:    ytCookies,
		instaCookies: instaCookies,
		running:      make(map[int64]bool),
	}
}

// TryAcquire reports whether userID has no download already in flight,
// and if so marks one as started. Callers must call Release when done.
func (d *Downloader) TryAcquire(userID int64) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.running[userID] {
		return false
	}
	d.running[userID] = true
	return true
}

// Release clears userID's in-flight marker.
func (d *Downloader) Release(userID int64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.running, userID)
}

func (d *Downloader) userDir(userID int64) string {
	return filepath.Join(d.dataDir, "ytdl", fmt.Sprintf("%d", userID))
}

func (d *Downloader) cookiesFor(url string) string {
	if isInstagramURL(url) {
		return d.instaCookies
	}
	return d.ytCookies
}

// ExtractInfo probes url without downloading, returning title/size so the
// caller can announce it before committing to the transfer.
func (d *Downloader) ExtractInfo(ctx context.Context, url string) (Info, error) {
	args := []string{"--dump-json", "--no-playlist", "--skip-download"}
	if cookies := d.cookiesFor(url); cookies != "" {
		args = append(args, "--cookies", cookies)
	}
	args = append(args, url)

	res, err := procutil.Run(ctx, "yt-dlp", args...)
	if err != nil {
		return Info{}, apperr.Wrap(apperr.InvalidLink, err)
	}

	var info Info
	if err := json.Unmarshal(res.Stdout, &info); err != nil {
		return Info{}, apperr.Wrap(apperr.InvalidLink, err)
	}
	return info, nil
}

// Download fetches url into userID's working directory, transcoding to
// 320kbps mp3 when audioOnly is set. onProgress receives raw yt-dlp
// progress lines, same as procutil.RunStreaming.
func (d *Downloader) Download(ctx context.Context, userID int64, url string, audioOnly bool, onProgress procutil.ProgressFunc) (Result, error) {
	dir := d.userDir(userID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return Result{}, err
	}

	outTemplate := filepath.Join(dir, "%(id)s.%(ext)s")
	args := []string{"--no-playlist", "-o", outTemplate, "--print-json"}
	if cookies := d.cookiesFor(url); cookies != "" {
		args = append(args, "--cookies", cookies)
	}
	if audioOnly {
		args = append(args, "-x", "--audio-format", "mp3", "--audio-quality", fmt.Sprintf("%dK", audioBitrateKbps))
	}
	args = append(args, url)

	res, err := procutil.RunStreaming(ctx, onProgress, "yt-dlp", args...)
	if err != nil {
		return Result{}, apperr.Wrap(apperr.InvalidLink, err)
	}

	var info Info
	if jsonErr := json.Unmarshal(lastJSONLine(res.Stdout), &info); jsonErr != nil {
		return Result{}, apperr.Wrap(apperr.InvalidLink, jsonErr)
	}

	ext := info.Ext
	if audioOnly {
		ext = "mp3"
	}
	path := filepath.Join(dir, info.ID+"."+ext)
	return Result{Info: info, FilePath: path}, nil
}

// Cleanup removes userID's entire download directory.
func (d *Downloader) Cleanup(userID int64) error {
	return os.RemoveAll(d.userDir(userID))
}

// lastJSONLine returns the final non-empty line of out, which is where
// yt-dlp's --print-json line lands once progress lines have been
// interleaved ahead of it.
func lastJSONLine(out []byte) []byte {
	lines := splitLines(out)
	for i := len(lines) - 1; i >= 0; i-- {
		if len(lines[i]) > 0 {
			return lines[i]
		}
	}
	return out
}

func splitLines(b []byte) [][]byte {
	var lines [][]byte
	start := 0
	for i, c := range b {
		if c == '\n' {
			lines = append(lines, b[start:i])
			start = i + 1
		}
	}
	lines = append(lines, b[start:])
	return lines
}

func isInstagramURL(url string) bool {
	return strings.Contains(url, "instagram.com") || strings.Contains(url, "instagr.am")
}
