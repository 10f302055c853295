// Package vc is the voice-chat media controller: one active stream per
// chat id, an inferred wall-clock position (the streaming engine gives no
// feedback), and an auto-refreshing inline player UI.
package vc

import (
	"context"
	"fmt"
	"sync"
	"time"

	"gatewaybot/internal/apperr"
	"gatewaybot/internal/logger"
	"gatewaybot/internal/procutil"
)

// SourceRef identifies the originating message for a stream, so the
// player UI can offer "jump to message" alongside playback controls.
type SourceRef struct {
	MsgID    int
	ChatID   int64
	FolderID string
	Hash     string
}

// StreamState is the in-memory playback state for one chat's voice chat.
type StreamState struct {
	ChatID         int64
	URL            string
	Title          string
	StartedAt      time.Time
	SeekOffset     time.Duration
	Paused         bool
	PauseStartedAt time.Time
	Source         SourceRef
	Duration       time.Duration
}

// Engine is the minimal surface the controller needs from whatever joins
// and streams into the voice chat (the real implementation wraps PyTgCalls-
// equivalent group-call join/play via gotd/td's phone.* calls).
type Engine interface {
	EnsureStarted(ctx context.Context, chatID int64) error
	Play(ctx context.Context, chatID int64, url string, seek time.Duration) error
	Leave(ctx context.Context, chatID int64) error
}

const fallbackDurationSeconds = 7200
const refreshInterval = 5 * time.Second

// Controller owns every active stream and its auto-refresh task.
type Controller struct {
	engine Engine

	mu      sync.Mutex
	streams map[int64]*StreamState
	refresh map[int64]context.CancelFunc
}

// New builds a Controller over engine.
func New(engine Engine) *Controller {
	return &Controller{
		engine:  engine,
		streams: make(map[int64]*StreamState),
		refresh: make(map[int64]context.CancelFunc),
	}
}

// Start joins (if needed) and plays url in chatID's voice chat, seeking to
// seek before playback begins. Duration is probed in parallel via ffprobe
// with a 15-second timeout; 0 on failure.
func (c *Controller) Start(ctx context.Context, chatID int64, url, title string, seek time.Duration, source SourceRef) (*StreamState, error) {
	if err := c.engine.EnsureStarted(ctx, chatID); err != nil {
		return nil, apperr.Wrap(apperr.GroupCallNotFound, err)
	}
	if err := c.engine.Play(ctx, chatID, url, seek); err != nil {
		return nil, apperr.Wrap(apperr.GroupCallNotFound, err)
	}

	state := &StreamState{
		ChatID:     chatID,
		URL:        url,
		Title:      title,
		StartedAt:  time.Now(),
		SeekOffset: seek,
		Source:     source,
	}

	c.mu.Lock()
	c.streams[chatID] = state
	c.mu.Unlock()

	// The probe runs alongside playback; the player UI falls back to the
	// 7200-second denominator until (unless) it reports.
	go func() {
		duration := probeDuration(context.WithoutCancel(ctx), url)
		if duration <= 0 {
			return
		}
		c.mu.Lock()
		if cur, ok := c.streams[chatID]; ok && cur == state {
			cur.Duration = duration
		}
		c.mu.Unlock()
	}()

	return state, nil
}

// Stop cancels any refresh task and drops chatID's stream state.
func (c *Controller) Stop(ctx context.Context, chatID int64) error {
	c.cancelRefresh(chatID)

	c.mu.Lock()
	delete(c.streams, chatID)
	c.mu.Unlock()

	return c.engine.Leave(ctx, chatID)
}

// Pause marks chatID's stream paused, freezing the position clock.
func (c *Controller) Pause(chatID int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	state, ok := c.streams[chatID]
	if !ok {
		return apperr.New(apperr.GroupCallNotFound, "no active stream")
	}
	state.Paused = true
	state.PauseStartedAt = time.Now()
	return nil
}

// Resume unpauses chatID's stream, shifting StartedAt forward by the pause
// duration so the position clock resumes where it left off.
func (c *Controller) Resume(chatID int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	state, ok := c.streams[chatID]
	if !ok {
		return apperr.New(apperr.GroupCallNotFound, "no active stream")
	}
	if state.Paused {
		state.StartedAt = state.StartedAt.Add(time.Since(state.PauseStartedAt))
		state.Paused = false
	}
	return nil
}

// SeekBy moves chatID's playback position by delta, clamped to
// [0, duration] when duration is known.
func (c *Controller) SeekBy(ctx context.Context, chatID int64, delta time.Duration) (time.Duration, error) {
	c.mu.Lock()
	state, ok := c.streams[chatID]
	var pos time.Duration
	if ok {
		pos = c.currentPositionLocked(state)
	}
	c.mu.Unlock()
	if !ok {
		return 0, apperr.New(apperr.GroupCallNotFound, "no active stream")
	}
	return c.seekTo(ctx, chatID, pos+delta)
}

// SeekTo moves chatID's playback position to an absolute offset.
func (c *Controller) SeekTo(ctx context.Context, chatID int64, abs time.Duration) (time.Duration, error) {
	return c.seekTo(ctx, chatID, abs)
}

func (c *Controller) seekTo(ctx context.Context, chatID int64, target time.Duration) (time.Duration, error) {
	c.mu.Lock()
	state, ok := c.streams[chatID]
	c.mu.Unlock()
	if !ok {
		return 0, apperr.New(apperr.GroupCallNotFound, "no active stream")
	}

	if target < 0 {
		target = 0
	}
	if state.Duration > 0 && target > state.Duration {
		target = state.Duration
	}

	if err := c.engine.Play(ctx, chatID, state.URL, target); err != nil {
		return 0, apperr.Wrap(apperr.GroupCallNotFound, err)
	}

	c.mu.Lock()
	state.StartedAt = time.Now()
	state.SeekOffset = target
	state.Paused = false
	c.mu.Unlock()

	return target, nil
}

// CurrentPosition returns chatID's inferred playback position.
func (c *Controller) CurrentPosition(chatID int64) (time.Duration, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	state, ok := c.streams[chatID]
	if !ok {
		return 0, apperr.New(apperr.GroupCallNotFound, "no active stream")
	}
	return c.currentPositionLocked(state), nil
}

// currentPositionLocked must be called with c.mu held.
func (c *Controller) currentPositionLocked(state *StreamState) time.Duration {
	if state.Paused {
		return state.PauseStartedAt.Sub(state.StartedAt) + state.SeekOffset
	}
	return time.Since(state.StartedAt) + state.SeekOffset
}

// State returns a copy of chatID's current stream state, if any.
func (c *Controller) State(chatID int64) (StreamState, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	state, ok := c.streams[chatID]
	if !ok {
		return StreamState{}, false
	}
	return *state, true
}

// StartRefresh schedules render to run every 5 seconds until chatID's
// stream stops or ctx is cancelled. A prior refresh for the same chat is
// cancelled first.
func (c *Controller) StartRefresh(ctx context.Context, chatID int64, render func()) {
	c.cancelRefresh(chatID)

	refreshCtx, cancel := context.WithCancel(ctx)
	c.mu.Lock()
	c.refresh[chatID] = cancel
	c.mu.Unlock()

	go func() {
		ticker := time.NewTicker(refreshInterval)
		defer ticker.Stop()
		for {
			select {
			case <-refreshCtx.Done():
				return
			case <-ticker.C:
				render()
			}
		}
	}()
}

func (c *Controller) cancelRefresh(chatID int64) {
	c.mu.Lock()
	cancel, ok := c.refresh[chatID]
	delete(c.refresh, chatID)
	c.mu.Unlock()
	if ok {
		cancel()
	}
}

func probeDuration(ctx context.Context, url string) time.Duration {
	probeCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	res, err := procutil.Run(probeCtx, "ffprobe",
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		url,
	)
	if err != nil {
		logger.Warnf("vc: ffprobe duration probe failed: %v", err)
		return 0
	}

	var seconds float64
	if _, scanErr := fmt.Sscanf(string(res.Stdout), "%f", &seconds); scanErr != nil {
		return 0
	}
	return time.Duration(seconds * float64(time.Second))
}

// DurationSeconds returns state.Duration in seconds, falling back to
// fallbackDurationSeconds when the duration is unknown.
func DurationSeconds(state StreamState) int {
	if state.Duration <= 0 {
		return fallbackDurationSeconds
	}
	return int(state.Duration.Seconds())
}
