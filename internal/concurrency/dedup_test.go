package concurrency

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDeduplicatorSeen(t *testing.T) {
	d := NewDeduplicator(60)

	assert.False(t, d.Seen(1, 100, 0), "first sighting must not be a repeat")
	assert.True(t, d.Seen(1, 100, 0), "second sighting with same edit date must be a repeat")
	assert.False(t, d.Seen(1, 100, 5), "a new edit date must not be treated as a repeat")
}

func TestDeduplicatorCleanup(t *testing.T) {
	d := NewDeduplicator(0)
	d.Seen(1, 1, 0)
	d.Cleanup()

	d.mu.Lock()
	n := len(d.seen)
	d.mu.Unlock()
	assert.Equal(t, 0, n)
}
