package browser

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"gatewaybot/internal/store"
	"gatewaybot/internal/vc"
)

func TestMimeIcon(t *testing.T) {
	assert.Equal(t, "🎬", mimeIcon("video/mp4"))
	assert.Equal(t, "📕", mimeIcon("application/pdf"))
	assert.Equal(t, "📄", mimeIcon("application/zip"))
}

func TestTruncateLeavesShortDataAlone(t *testing.T) {
	assert.Equal(t, "bch|123", truncate("bch|123"))
}

func TestTruncateClampsToSixtyFourBytes(t *testing.T) {
	long := "bf|" + strings.Repeat("a", 100) + "|1|1"
	got := truncate(long)
	assert.Len(t, got, maxCallbackBytes)
	assert.True(t, strings.HasPrefix(got, "bf|"))
}

func TestCleanChatIDStripsSupergroupPrefix(t *testing.T) {
	assert.Equal(t, int64(1234567890), cleanChatID(-1001234567890))
	assert.Equal(t, int64(42), cleanChatID(42))
}

func TestChannelsViewBuildsOneRowPerChannel(t *testing.T) {
	c := New(nil, nil)
	view := c.ChannelsView([]ChannelRef{{ChatID: -100111, Title: "Movies"}, {ChatID: -100222, Title: "Shows"}})

	assert.Len(t, view.Rows, 2)
	assert.Equal(t, "Movies", view.Rows[0][0].Text)
	assert.Equal(t, "bch|-100111", view.Rows[0][0].Data)
}

func TestFolderButtonTargetsFirstPage(t *testing.T) {
	f := store.Folder{ID: primitive.NewObjectID(), Name: "Action"}
	btn := folderButton(f, -100111)
	assert.Equal(t, "📁 Action", btn.Text)
	assert.True(t, strings.HasPrefix(btn.Data, "bf|"+f.ID.Hex()+"|-100111|1"))
}

func TestFileButtonEncodesHashAndParent(t *testing.T) {
	f := store.FileRecord{MsgID: 9, ChatID: -100111, Name: "clip.mp4", MimeType: "video/mp4", FileID: "abcdefgh", ParentFolder: "folder1"}
	btn := fileButton(f)
	assert.Equal(t, "🎬 clip.mp4", btn.Text)
	assert.Equal(t, "bfi|9|-100111|abcdef|folder1", btn.Data)
}

func TestNowPlayingBannerTruncatesLongTitles(t *testing.T) {
	banner := nowPlayingBanner(vc.StreamState{Title: strings.Repeat("x", 30)})
	assert.Contains(t, banner, "…")
	assert.True(t, strings.HasPrefix(banner, "🔊 **Now Playing:** "))
}

func TestNowPlayingRowHasStopAndOpen(t *testing.T) {
	row := nowPlayingRow(-100111)
	assert.Len(t, row, 2)
	assert.Equal(t, "bvs|-100111", row[0].Data)
	assert.Equal(t, "bvo|-100111", row[1].Data)
}
