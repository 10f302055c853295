package indexrender

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gatewaybot/internal/foldertree"
)

func TestRenderLinksAndFallback(t *testing.T) {
	folders := []foldertree.FolderRef{
		{ID: "a", Name: "A", ParentID: "root"},
	}
	files := []foldertree.FileRef{{ParentFolder: "a", MsgID: 42}}
	idx := foldertree.Build(folders, files)

	out := Render(idx, "example.com", "1001")
	require.Len(t, out, 1)
	assert.Contains(t, out[0], "[A](https://example.com/c/1001/42)")
	assert.Contains(t, out[0], "· 1")
}

func TestRenderFallsBackToBoldWhenNoPointer(t *testing.T) {
	folders := []foldertree.FolderRef{{ID: "a", Name: "Empty", ParentID: "root"}}
	idx := foldertree.Build(folders, nil)

	out := Render(idx, "example.com", "1001")
	require.Len(t, out, 1)
	assert.Contains(t, out[0], "**Empty**")
	assert.NotContains(t, out[0], "https://")
}

func TestRenderTreeGlyphs(t *testing.T) {
	folders := []foldertree.FolderRef{
		{ID: "r", Name: "Root", ParentID: "root"},
		{ID: "a", Name: "First", ParentID: "r"},
		{ID: "b", Name: "Last", ParentID: "r"},
	}
	files := []foldertree.FileRef{
		{ParentFolder: "a", MsgID: 1},
		{ParentFolder: "b", MsgID: 2},
	}
	idx := foldertree.Build(folders, files)

	out := Render(idx, "example.com", "1001")
	require.Len(t, out, 1)
	rendered := strings.Split(out[0], "\n")
	require.Len(t, rendered, 4)
	assert.True(t, strings.HasPrefix(rendered[1], "📂 "))
	assert.True(t, strings.HasPrefix(rendered[2], "┣ "))
	assert.True(t, strings.HasPrefix(rendered[3], "┗ "))
}

func TestChunkSplitsLongTreesWithContinuationHeader(t *testing.T) {
	lines := make([]string, 0, 400)
	lines = append(lines, "📂 Index")
	for i := 0; i < 400; i++ {
		lines = append(lines, strings.Repeat("x", 25))
	}

	chunks := chunk(lines)
	require.Greater(t, len(chunks), 1)
	for _, c := range chunks {
		assert.LessOrEqual(t, len(c), maxChunkLen)
	}
	for _, c := range chunks[1:] {
		assert.True(t, strings.HasPrefix(c, continuationHeader))
	}
}
