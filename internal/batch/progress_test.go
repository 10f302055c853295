package batch

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestProgressThresholdPercentScalesWithSize(t *testing.T) {
	assert.Equal(t, 10, progressThresholdPercent(200*mib))
	assert.Equal(t, 20, progressThresholdPercent(60*mib))
	assert.Equal(t, 30, progressThresholdPercent(10*mib))
}

func TestProgressTrackerDedupesWithinBucket(t *testing.T) {
	p := NewProgressTracker()

	_, emit := p.ShouldEmit(1, 1*mib, 10*mib)
	assert.True(t, emit, "first report always emits")

	_, emit = p.ShouldEmit(1, 2*mib, 10*mib)
	assert.False(t, emit, "still inside the same 30% bucket")

	_, emit = p.ShouldEmit(1, 4*mib, 10*mib)
	assert.True(t, emit, "crossed into the next bucket")
}

func TestRenderBarReflectsPercent(t *testing.T) {
	bar := RenderBar(50*mib, 100*mib, 10*time.Second)
	assert.Contains(t, bar, "50%")
	assert.Contains(t, bar, "🟢")
	assert.Contains(t, bar, "🔴")
}

func TestFormatETA(t *testing.T) {
	assert.Equal(t, "01:05", formatETA(65*time.Second))
	assert.Equal(t, "00:00", formatETA(-1*time.Second))
}
