package batch

import (
	"fmt"
	"strings"
	"sync"
	"time"
)

const mib = 1 << 20

// progressThresholdPercent picks how many percentage points must pass
// before the progress message is edited again: 10 for files of 100 MiB or
// more, 20 from 50 MiB, and a coarser 30 for anything smaller.
func progressThresholdPercent(totalBytes int64) int {
	switch {
	case totalBytes >= 100*mib:
		return 10
	case totalBytes >= 50*mib:
		return 20
	default:
		return 30
	}
}

// ProgressTracker deduplicates progress-message edits per message id so a
// fast-moving download doesn't spam an edit on every chunk.
type ProgressTracker struct {
	mu     sync.Mutex
	bucket map[int]int
}

// NewProgressTracker builds an empty tracker.
func NewProgressTracker() *ProgressTracker {
	return &ProgressTracker{bucket: make(map[int]int)}
}

// ShouldEmit reports whether msgID's transfer has crossed a new threshold
// bucket given current/total bytes, returning the percent complete either
// way. The first call always advances the bucket.
func (p *ProgressTracker) ShouldEmit(msgID int, current, total int64) (percent int, emit bool) {
	if total <= 0 {
		return 0, false
	}
	pct := int(current * 100 / total)
	threshold := progressThresholdPercent(total)
	wantBucket := pct / threshold

	p.mu.Lock()
	defer p.mu.Unlock()
	prevBucket, seen := p.bucket[msgID]
	if seen && wantBucket <= prevBucket && pct < 100 {
		return pct, false
	}
	p.bucket[msgID] = wantBucket
	return pct, true
}

// Forget drops msgID's dedup state once its transfer finishes.
func (p *ProgressTracker) Forget(msgID int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.bucket, msgID)
}

const barSegments = 10

// RenderBar formats the 10-block progress bar plus current/total MiB,
// speed, and ETA, per the transfer so far.
func RenderBar(current, total int64, elapsed time.Duration) string {
	pct := 0
	if total > 0 {
		pct = int(current * 100 / total)
	}
	filled := (pct * barSegments) / 100
	if filled > barSegments {
		filled = barSegments
	}
	bar := strings.Repeat("🟢", filled) + strings.Repeat("🔴", barSegments-filled)

	speedMiBps := 0.0
	if elapsed > 0 {
		speedMiBps = (float64(current) / mib) / elapsed.Seconds()
	}

	eta := "--:--"
	if speedMiBps > 0 && total > current {
		remainingMiB := float64(total-current) / mib
		eta = formatETA(time.Duration(remainingMiB / speedMiBps * float64(time.Second)))
	}

	return fmt.Sprintf("[%s] %d%%\n%.1f/%.1f MiB • %.2f MiB/s • ETA %s",
		bar, pct, float64(current)/mib, float64(total)/mib, speedMiBps, eta)
}

func formatETA(d time.Duration) string {
	total := int(d.Seconds())
	if total < 0 {
		total = 0
	}
	return fmt.Sprintf("%02d:%02d", total/60, total%60)
}
