package vc

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeEngine struct {
	plays []time.Duration
}

func (f *fakeEngine) EnsureStarted(ctx context.Context, chatID int64) error { return nil }

func (f *fakeEngine) Play(ctx context.Context, chatID int64, url string, seek time.Duration) error {
	f.plays = append(f.plays, seek)
	return nil
}

func (f *fakeEngine) Leave(ctx context.Context, chatID int64) error { return nil }

func TestStartAndCurrentPositionAdvances(t *testing.T) {
	eng := &fakeEngine{}
	c := New(eng)

	state, err := c.Start(context.Background(), 1, "http://example.com/a.mp4", "A", 0, SourceRef{})
	require.NoError(t, err)
	require.NotNil(t, state)

	pos, err := c.CurrentPosition(1)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, pos, time.Duration(0))
}

func TestPauseResumeFreezesAndResumesClock(t *testing.T) {
	eng := &fakeEngine{}
	c := New(eng)
	_, err := c.Start(context.Background(), 1, "u", "t", 0, SourceRef{})
	require.NoError(t, err)

	time.Sleep(20 * time.Millisecond)
	require.NoError(t, c.Pause(1))

	p1, err := c.CurrentPosition(1)
	require.NoError(t, err)
	time.Sleep(20 * time.Millisecond)
	p2, err := c.CurrentPosition(1)
	require.NoError(t, err)
	assert.Equal(t, p1, p2, "position must not advance while paused")

	require.NoError(t, c.Resume(1))
	time.Sleep(10 * time.Millisecond)
	p3, err := c.CurrentPosition(1)
	require.NoError(t, err)
	assert.Greater(t, p3, p2, "position must advance again after resume")
}

func TestSeekToClampsToDurationBounds(t *testing.T) {
	eng := &fakeEngine{}
	c := New(eng)
	state, err := c.Start(context.Background(), 1, "u", "t", 0, SourceRef{})
	require.NoError(t, err)
	state.Duration = 30 * time.Second

	got, err := c.SeekTo(context.Background(), 1, 100*time.Second)
	require.NoError(t, err)
	assert.Equal(t, 30*time.Second, got)

	got, err = c.SeekTo(context.Background(), 1, -5*time.Second)
	require.NoError(t, err)
	assert.Equal(t, time.Duration(0), got)
}

func TestSeekByOffsetsFromCurrentPosition(t *testing.T) {
	eng := &fakeEngine{}
	c := New(eng)
	_, err := c.Start(context.Background(), 1, "u", "t", 10*time.Second, SourceRef{})
	require.NoError(t, err)

	got, err := c.SeekBy(context.Background(), 1, 5*time.Second)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, got, 15*time.Second)
}

func TestStopRemovesStreamState(t *testing.T) {
	eng := &fakeEngine{}
	c := New(eng)
	_, err := c.Start(context.Background(), 1, "u", "t", 0, SourceRef{})
	require.NoError(t, err)

	require.NoError(t, c.Stop(context.Background(), 1))
	_, ok := c.State(1)
	assert.False(t, ok)

	_, err = c.CurrentPosition(1)
	assert.Error(t, err)
}

func TestOperationsOnMissingStreamReturnGroupCallNotFound(t *testing.T) {
	eng := &fakeEngine{}
	c := New(eng)

	_, err := c.CurrentPosition(99)
	require.Error(t, err)

	err = c.Pause(99)
	require.Error(t, err)

	err = c.Resume(99)
	require.Error(t, err)
}

func TestDurationSecondsFallsBackWhenUnknown(t *testing.T) {
	assert.Equal(t, fallbackDurationSeconds, DurationSeconds(StreamState{}))
	assert.Equal(t, 42, DurationSeconds(StreamState{Duration: 42 * time.Second}))
}
