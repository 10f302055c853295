package batch

import (
	"context"
	"os"
	"strconv"
	"strings"
	"time"

	"gatewaybot/internal/apperr"
	"gatewaybot/internal/config"
	"gatewaybot/internal/convstate"
	"gatewaybot/internal/logger"
	"gatewaybot/internal/quota"
	"gatewaybot/internal/store"
)

// interMessageDelay is the fixed anti-flood pause between messages; kept as
// a named constant rather than inlined so behavior parity is explicit.
const interMessageDelay = 10 * time.Second

// FetchedMessage is the minimal shape the pipeline needs from a resolved
// message, independent of the concrete protocol client that fetched it.
type FetchedMessage struct {
	MsgID     int
	Caption   string
	FileName  string
	MimeType  string
	SizeBytes int64
	Kind      MediaKind
}

// Fetcher resolves a (chatRef, msgID) pair to a message, implementing the
// public/private fallback chain: public links try the bot client then the
// session client; private links use the session client only.
type Fetcher interface {
	FetchPublic(ctx context.Context, chatRef string, msgID int) (*FetchedMessage, error)
	FetchPrivate(ctx context.Context, chatRef string, msgID int) (*FetchedMessage, error)
}

// ProgressFunc reports bytes transferred so far against the total.
type ProgressFunc func(done, total int64)

// Downloader pulls a fetched message's media into destDir, returning the
// local path. A FileReferenceExpired error triggers exactly one re-fetch
// and retry at the call site.
type Downloader interface {
	Download(ctx context.Context, msg *FetchedMessage, destDir string, onProgress ProgressFunc) (localPath string, err error)
}

// UploadPlan is everything Uploader needs to send one finished file.
type UploadPlan struct {
	LocalPath     string
	Filename      string
	Caption       string
	Kind          UploadKind
	Video         VideoMeta
	ThumbnailPath string
	Destination   Destination
}

// Uploader sends a finished local file to its destination.
type Uploader interface {
	Upload(ctx context.Context, plan UploadPlan) error
}

// Pipeline wires the store, quota engine, and durable tracker together to
// run batches and single-link jobs.
type Pipeline struct {
	tracker *Tracker
	quota   *quota.Engine
	store   *store.Store
	dataDir string
}

// NewPipeline builds a Pipeline. dataDir roots per-user scratch directories
// and thumbnails.
func NewPipeline(tracker *Tracker, q *quota.Engine, s *store.Store, dataDir string) *Pipeline {
	return &Pipeline{tracker: tracker, quota: q, store: s, dataDir: dataDir}
}

// Preflight runs the four gate checks before a run may leave idle:
// paid-only mode, today's remaining quota, a configured re-upload bot,
// and no run already active.
func (p *Pipeline) Preflight(ctx context.Context, userID int64, conv *convstate.Registry, hasUserBot bool) error {
	env := config.Env()

	premium, err := p.quota.IsPremium(ctx, userID)
	if err != nil {
		return err
	}
	if env.FreemiumLimit == 0 && !premium {
		return apperr.New(apperr.SubscriptionRequired, "this bot is for premium users only")
	}

	remaining, err := p.quota.Remaining(ctx, userID)
	if err != nil {
		return err
	}
	if remaining == 0 {
		return apperr.New(apperr.DailyLimitReached, "daily limit reached")
	}

	if !hasUserBot {
		return apperr.New(apperr.NoUserBot, "configure a re-upload bot with /setbot first")
	}

	if conv.BatchIsRunning(userID) || p.tracker.IsActive(userID) {
		return apperr.New(apperr.Conflict, "a batch is already running; use /cancel to stop it")
	}

	return nil
}

// Outcome is the per-message result classification.
type Outcome int

const (
	OutcomeDone Outcome = iota
	OutcomeFailed
	OutcomeSkipped
)

// Summary is the final report for a batch or single run.
type Summary struct {
	Total     int
	Processed int
	Success   int
	Cancelled bool
}

// fetchOne runs the fetch fallback chain: public links
// try the bot client then the session client; private links use the
// session client with two extra recovery attempts left to the caller's
// Fetcher implementation (alternate id form, dialog refresh).
func fetchOne(ctx context.Context, fetcher Fetcher, link Link) (*FetchedMessage, error) {
	if link.Type == LinkPublic {
		if msg, err := fetcher.FetchPublic(ctx, link.ChatRef, link.MsgID); err == nil {
			return msg, nil
		}
	}
	return fetcher.FetchPrivate(ctx, link.ChatRef, link.MsgID)
}

// alreadyArchived reports whether link's target is already a file record
// in the store, for the private-link case where ChatRef maps directly to
// a numeric chat id. A file already present in the archive is still
// fetched and re-sent to the user, but does not count against their daily
// quota a second time. Public (username) links have no direct chat-id
// mapping into the store and are never treated as pre-archived.
func (p *Pipeline) alreadyArchived(ctx context.Context, link Link) bool {
	if link.Type != LinkPrivate {
		return false
	}
	chatID, err := strconv.ParseInt(link.ChatRef, 10, 64)
	if err != nil {
		return false
	}
	_, err = p.store.GetFileByMsg(ctx, chatID, link.MsgID)
	return err == nil
}

// processOne runs the fetch → download → transform → upload → cleanup
// pipeline for one message, returning whether it succeeded and whether
// that success should count toward quota usage.
func (p *Pipeline) processOne(ctx context.Context, userID int64, link Link, fetcher Fetcher, downloader Downloader, uploader Uploader, settings store.UserSettings, fallbackChatID int64, progress *ProgressTracker, onProgressEdit func(text string)) (outcome Outcome, countsTowardUsage bool) {
	countsTowardUsage = !p.alreadyArchived(ctx, link)

	msg, err := fetchOne(ctx, fetcher, link)
	if err != nil || msg == nil {
		logger.Warnf("batch: fetch failed for user %d msg %d: %v", userID, link.MsgID, err)
		return OutcomeFailed, countsTowardUsage
	}

	destDir, mkErr := p.scratchDir(userID)
	if mkErr != nil {
		logger.Warnf("batch: scratch dir for user %d: %v", userID, mkErr)
		return OutcomeFailed, countsTowardUsage
	}

	start := time.Now()
	localPath, downloadErr := downloader.Download(ctx, msg, destDir, func(done, total int64) {
		if _, ok := progress.ShouldEmit(msg.MsgID, done, total); ok && onProgressEdit != nil {
			onProgressEdit(RenderBar(done, total, time.Since(start)))
		}
	})

	if apperr.Is(downloadErr, apperr.FileReferenceExpired) {
		msg, err = fetchOne(ctx, fetcher, link)
		if err == nil && msg != nil {
			localPath, downloadErr = downloader.Download(ctx, msg, destDir, func(done, total int64) {
				if _, ok := progress.ShouldEmit(msg.MsgID, done, total); ok && onProgressEdit != nil {
					onProgressEdit(RenderBar(done, total, time.Since(start)))
				}
			})
		}
	}
	progress.Forget(msg.MsgID)

	if downloadErr != nil || localPath == "" {
		logger.Warnf("batch: download failed for user %d msg %d: %v", userID, msg.MsgID, downloadErr)
		return OutcomeFailed, countsTowardUsage
	}
	defer os.Remove(localPath)

	filename := ApplyRenameTag(DeriveFilename(msg.FileName), settings.RenameTag)
	caption := BuildCaption(msg.Caption, settings)

	dest, destErr := ResolveDestination(fallbackChatID, settings.ChatID)
	if destErr != nil {
		logger.Warnf("batch: bad destination for user %d: %v", userID, destErr)
		return OutcomeFailed, countsTowardUsage
	}

	kind := ClassifyUpload(msg.Kind, filename)

	plan := UploadPlan{
		LocalPath:   localPath,
		Filename:    filename,
		Caption:     caption,
		Kind:        kind,
		Destination: dest,
	}
	if kind == UploadVideo {
		plan.Video = ProbeVideoMeta(ctx, localPath)
		plan.ThumbnailPath = Thumbnail(ctx, p.dataDir, userID, localPath)
		// Only a first-frame grab is temporary; the user's persisted
		// thumbnail must survive the run.
		if generated := strings.HasSuffix(plan.ThumbnailPath, ".thumb.jpg"); generated {
			defer os.Remove(plan.ThumbnailPath)
		}
	}

	if err := uploader.Upload(ctx, plan); err != nil {
		logger.Warnf("batch: upload failed for user %d msg %d: %v", userID, msg.MsgID, err)
		return OutcomeFailed, countsTowardUsage
	}

	return OutcomeDone, countsTowardUsage
}

func (p *Pipeline) scratchDir(userID int64) (string, error) {
	dir := p.dataDir + "/batch/" + key(userID)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", err
	}
	return dir, nil
}

// RunSingle processes exactly one link for /single.
func (p *Pipeline) RunSingle(ctx context.Context, userID int64, link Link, fetcher Fetcher, downloader Downloader, uploader Uploader, settings store.UserSettings, fallbackChatID int64, onProgressEdit func(text string)) Outcome {
	progress := NewProgressTracker()
	outcome, countsTowardUsage := p.processOne(ctx, userID, link, fetcher, downloader, uploader, settings, fallbackChatID, progress, onProgressEdit)
	if outcome == OutcomeDone && countsTowardUsage {
		if err := p.quota.Consume(ctx, userID); err != nil {
			logger.Warnf("batch: usage increment failed for user %d: %v", userID, err)
		}
	}
	return outcome
}

// RunBatch processes count sequential messages starting at start.MsgID,
// persisting progress after every message and observing a cancellation
// flag between messages. The inter-message delay is skipped once
// cancellation has been observed, since there is no next message to pace
// for.
func (p *Pipeline) RunBatch(ctx context.Context, userID int64, start Link, count int, fetcher Fetcher, downloader Downloader, uploader Uploader, settings store.UserSettings, fallbackChatID int64, onStep func(current, total, success int), onProgressEdit func(text string)) Summary {
	p.tracker.Start(userID, count)
	defer p.tracker.Remove(userID)

	progress := NewProgressTracker()
	success := 0
	cancelled := false
	i := 0

	for ; i < count; i++ {
		if p.tracker.ShouldCancel(userID) {
			cancelled = true
			break
		}

		link := Link{ChatRef: start.ChatRef, MsgID: start.MsgID + i, Type: start.Type}
		outcome, countsTowardUsage := p.processOne(ctx, userID, link, fetcher, downloader, uploader, settings, fallbackChatID, progress, onProgressEdit)
		if outcome == OutcomeDone {
			success++
			if countsTowardUsage {
				if err := p.quota.Consume(ctx, userID); err != nil {
					logger.Warnf("batch: usage increment failed for user %d: %v", userID, err)
				}
			}
		}

		p.tracker.Update(userID, i+1, success)
		if onStep != nil {
			onStep(i+1, count, success)
		}

		if p.tracker.ShouldCancel(userID) {
			cancelled = true
			i++
			break
		}
		if i+1 == count {
			continue
		}

		select {
		case <-ctx.Done():
			return Summary{Total: count, Processed: i + 1, Success: success, Cancelled: true}
		case <-time.After(interMessageDelay):
		}
	}

	return Summary{Total: count, Processed: i, Success: success, Cancelled: cancelled}
}

// RequestCancel flags userID's active run for cancellation.
func (p *Pipeline) RequestCancel(userID int64) bool {
	return p.tracker.RequestCancel(userID)
}
