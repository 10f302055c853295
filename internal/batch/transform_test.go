package batch

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gatewaybot/internal/store"
)

func TestSanitizeFilenameStripsUnsafeChars(t *testing.T) {
	assert.Equal(t, "MyMovie.mp4", SanitizeFilename(`My:"Movie"?.mp4`))
}

func TestSanitizeFilenameCaps255(t *testing.T) {
	long := strings.Repeat("a", 300)
	assert.Len(t, SanitizeFilename(long), 255)
}

func TestApplyRenameTagInsertsBeforeExtension(t *testing.T) {
	assert.Equal(t, "clip [tag].mp4", ApplyRenameTag("clip.mp4", "[tag]"))
	assert.Equal(t, "clip.mp4", ApplyRenameTag("clip.mp4", ""))
}

func TestBuildCaptionAppliesRulesThenUserCaption(t *testing.T) {
	settings := store.UserSettings{
		Replacements: map[string]string{"foo": "bar"},
		DeleteWords:  []string{"secret"},
		Caption:      "My Channel",
	}
	got := BuildCaption("foo and secret stuff", settings)
	assert.Equal(t, "bar and stuff\n\nMy Channel", got)
}

func TestBuildCaptionDeletesWholeTokensOnly(t *testing.T) {
	settings := store.UserSettings{DeleteWords: []string{"Home", "the"}}
	got := BuildCaption("HomeWork at the theatre near Home", settings)
	assert.Equal(t, "HomeWork at theatre near", got)
}

func TestBuildCaptionKeepsWhitespaceWhenNoDeleteWords(t *testing.T) {
	got := BuildCaption("two  spaces\nand a newline", store.UserSettings{})
	assert.Equal(t, "two  spaces\nand a newline", got)
}

func TestBuildCaptionWithNoUserCaption(t *testing.T) {
	assert.Equal(t, "hello", BuildCaption("hello", store.UserSettings{}))
}

func TestResolveDestinationFallsBackWhenUnset(t *testing.T) {
	dest, err := ResolveDestination(123, "")
	require.NoError(t, err)
	assert.Equal(t, int64(123), dest.ChatID)
	assert.Equal(t, 0, dest.ReplyToMsgID)
}

func TestResolveDestinationParsesTopic(t *testing.T) {
	dest, err := ResolveDestination(123, "-100555/7")
	require.NoError(t, err)
	assert.Equal(t, int64(-100555), dest.ChatID)
	assert.Equal(t, 7, dest.ReplyToMsgID)
}

func TestResolveDestinationRejectsGarbage(t *testing.T) {
	_, err := ResolveDestination(123, "not-a-chat-id")
	assert.Error(t, err)
}

func TestClassifyUploadPrefersExplicitKind(t *testing.T) {
	assert.Equal(t, UploadPhoto, ClassifyUpload(KindPhoto, "x.bin"))
	assert.Equal(t, UploadSticker, ClassifyUpload(KindSticker, "x.bin"))
}

func TestClassifyUploadFallsBackToExtension(t *testing.T) {
	assert.Equal(t, UploadVideo, ClassifyUpload(KindDocument, "movie.mkv"))
	assert.Equal(t, UploadAudio, ClassifyUpload(KindDocument, "song.flac"))
	assert.Equal(t, UploadDocument, ClassifyUpload(KindDocument, "book.pdf"))
}
