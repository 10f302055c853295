// Package concurrency holds small thread-safe primitives shared by the
// gateway bot's update handlers: a dedup cache for repeated/edited updates
// and a debouncer for collapsing bursts of edits into a single handling pass.
package concurrency

import (
	"context"
	"fmt"
	"sync"
	"time"

	"gatewaybot/internal/logger"
)

// Deduplicator remembers recently handled event signatures and decides
// whether a new one is a repeat within a sliding window. The signature is
// `<chatID>:<msgID>:<editDate>`, so an edit (which bumps editDate) naturally
// produces a fresh key and is processed again.
type Deduplicator struct {
	mu     sync.Mutex
	seen   map[string]time.Time
	window time.Duration

	runMu  sync.Mutex
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewDeduplicator builds a cache with a window of windowSec seconds.
func NewDeduplicator(windowSec int) *Deduplicator {
	return &Deduplicator{
		seen:   make(map[string]time.Time),
		window: time.Duration(windowSec) * time.Second,
	}
}

// Start launches the background goroutine that purges expired entries every
// minute. Repeated calls and a nil context are no-ops.
func (d *Deduplicator) Start(ctx context.Context) {
	if ctx == nil {
		return
	}
	d.runMu.Lock()
	defer d.runMu.Unlock()
	if d.cancel != nil {
		return
	}
	runCtx, cancel := context.WithCancel(ctx)
	d.cancel = cancel
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		ticker := time.NewTicker(time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-runCtx.Done():
				return
			case <-ticker.C:
				d.Cleanup()
			}
		}
	}()
}

// Stop ends the background cleanup and waits for it to return.
func (d *Deduplicator) Stop() {
	d.runMu.Lock()
	cancel := d.cancel
	d.cancel = nil
	d.runMu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	d.wg.Wait()
}

// Seen reports whether the (chatID, msgID, editDate) triple was already
// registered within the window; otherwise it registers it and returns false.
func (d *Deduplicator) Seen(chatID int64, msgID int, editDate int) bool {
	key := fmt.Sprintf("%d:%d:%d", chatID, msgID, editDate)

	d.mu.Lock()
	defer d.mu.Unlock()

	now := time.Now()
	if exp, ok := d.seen[key]; ok && now.Before(exp) {
		logger.Debugf("dedup seen: %s", key)
		return true
	}
	d.seen[key] = now.Add(d.window)
	return false
}

// Cleanup drops every expired entry. Safe to call concurrently with Seen.
func (d *Deduplicator) Cleanup() {
	d.mu.Lock()
	defer d.mu.Unlock()
	now := time.Now()
	for k, exp := range d.seen {
		if now.After(exp) {
			delete(d.seen, k)
		}
	}
}
