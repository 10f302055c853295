package ytdl

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTryAcquireEnforcesSingleConcurrentDownloadPerUser(t *testing.T) {
	d := New(t.TempDir(), "", "")

	assert.True(t, d.TryAcquire(1))
	assert.False(t, d.TryAcquire(1), "a second acquire for the same user must fail")
	assert.True(t, d.TryAcquire(2), "a different user must not be blocked")

	d.Release(1)
	assert.True(t, d.TryAcquire(1), "after release the user can acquire again")
}

func TestLastJSONLineSkipsProgressNoise(t *testing.T) {
	out := []byte("[download] 10%\n[download] 50%\n{\"id\":\"abc\",\"ext\":\"mp4\"}\n")
	got := lastJSONLine(out)
	assert.Equal(t, `{"id":"abc","ext":"mp4"}`, string(got))
}

func TestIsInstagramURL(t *testing.T) {
	assert.True(t, isInstagramURL("https://www.instagram.com/reel/xyz"))
	assert.True(t, isInstagramURL("https://instagr.am/p/xyz"))
	assert.False(t, isInstagramURL("https://youtube.com/watch?v=xyz"))
}

func TestInfoApproxSizePrefersExactFilesize(t *testing.T) {
	assert.Equal(t, int64(100), Info{Filesize: 100, FilesizeApx: 200}.ApproxSize())
	assert.Equal(t, int64(200), Info{FilesizeApx: 200}.ApproxSize())
}
