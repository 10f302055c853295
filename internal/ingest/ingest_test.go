package ingest

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeriveTitlePrefersFileNameThenCaptionThenFileID(t *testing.T) {
	assert.Equal(t, "my movie", deriveTitle(Media{FileName: "my_movie.mp4", Caption: "ignored", FileID: "abc"}))
	assert.Equal(t, "some caption", deriveTitle(Media{Caption: "some,caption", FileID: "abc"}))
	assert.Equal(t, "abcdef", deriveTitle(Media{FileID: "abcdef"}))
}

func TestDeriveTitleCollapsesPunctuation(t *testing.T) {
	assert.Equal(t, "a b c", deriveTitle(Media{FileName: "a.b|c.mkv"}))
}

func TestCanonicalChannelID(t *testing.T) {
	assert.Equal(t, int64(1234567890), CanonicalChannelID(-1001234567890))
	assert.Equal(t, int64(1234567890), CanonicalChannelID(1234567890))
	assert.Equal(t, int64(42), CanonicalChannelID(-42))
}

func TestHashTakesShortPrefix(t *testing.T) {
	assert.Equal(t, "abcdef", Hash("abcdefghijklmnop"))
	assert.Equal(t, "ab", Hash("ab"))
}

type fakeHistorySource struct {
	items []Media
}

func (f *fakeHistorySource) MediaRange(ctx context.Context, chatID int64, fromMsgID, toMsgID int) ([]Media, error) {
	return f.items, nil
}

func TestPreviewIndexBuildsForestFromTopicCaptions(t *testing.T) {
	src := &fakeHistorySource{items: []Media{
		{MsgID: 1, Caption: "Topic: Movies -> Action", FileID: "f1"},
		{MsgID: 2, Caption: "Topic: Movies -> Action", FileID: "f2"},
		{MsgID: 3, Caption: "no folder here", FileID: "f3"},
	}}

	idx, err := New(nil, nil).PreviewIndex(context.Background(), src, -1001, 10)
	require.NoError(t, err)

	var names []string
	for _, n := range idx.Nodes {
		names = append(names, n.Name)
	}
	assert.ElementsMatch(t, []string{"Movies", "Action"}, names)
	assert.Len(t, idx.RootIDs, 1)
}

func TestPreviewIndexSkipsItemsWithoutFolder(t *testing.T) {
	src := &fakeHistorySource{items: []Media{{MsgID: 1, Caption: "plain caption", FileID: "f1"}}}

	idx, err := New(nil, nil).PreviewIndex(context.Background(), src, -1001, 10)
	require.NoError(t, err)
	assert.Empty(t, idx.Nodes)
	assert.Empty(t, idx.RootIDs)
}
