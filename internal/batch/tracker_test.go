package batch

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTrackerLifecycle(t *testing.T) {
	path := filepath.Join(t.TempDir(), "active_users.json")
	tr := NewTracker(path)

	assert.False(t, tr.IsActive(1))

	tr.Start(1, 10)
	assert.True(t, tr.IsActive(1))

	tr.Update(1, 3, 2)
	snap, ok := tr.Snapshot(1)
	require.True(t, ok)
	assert.Equal(t, Progress{Total: 10, Current: 3, Success: 2}, snap)

	assert.True(t, tr.RequestCancel(1))
	assert.True(t, tr.ShouldCancel(1))

	tr.Remove(1)
	assert.False(t, tr.IsActive(1))
}

func TestTrackerPersistsAcrossReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "active_users.json")
	tr := NewTracker(path)
	tr.Start(7, 5)
	tr.Update(7, 2, 1)

	reloaded := NewTracker(path)
	snap, ok := reloaded.Snapshot(7)
	require.True(t, ok)
	assert.Equal(t, 5, snap.Total)
	assert.Equal(t, 2, snap.Current)
}

func TestRequestCancelOnUnknownUserIsNoop(t *testing.T) {
	tr := NewTracker(filepath.Join(t.TempDir(), "active_users.json"))
	assert.False(t, tr.RequestCancel(42))
}
