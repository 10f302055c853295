package batch

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeFetcher struct {
	publicErr error
	msg       *FetchedMessage
}

func (f *fakeFetcher) FetchPublic(ctx context.Context, chatRef string, msgID int) (*FetchedMessage, error) {
	if f.publicErr != nil {
		return nil, f.publicErr
	}
	return f.msg, nil
}

func (f *fakeFetcher) FetchPrivate(ctx context.Context, chatRef string, msgID int) (*FetchedMessage, error) {
	return f.msg, nil
}

func TestFetchOneUsesPublicWhenLinkIsPublic(t *testing.T) {
	want := &FetchedMessage{MsgID: 42, FileName: "clip.mp4"}
	fetcher := &fakeFetcher{msg: want}

	got, err := fetchOne(context.Background(), fetcher, Link{ChatRef: "chan", MsgID: 42, Type: LinkPublic})
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestFetchOneFallsBackToPrivateOnPublicFailure(t *testing.T) {
	want := &FetchedMessage{MsgID: 7, FileName: "doc.pdf"}
	fetcher := &fakeFetcher{publicErr: errors.New("not found publicly"), msg: want}

	got, err := fetchOne(context.Background(), fetcher, Link{ChatRef: "chan", MsgID: 7, Type: LinkPublic})
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestFetchOneSkipsPublicAttemptForPrivateLinks(t *testing.T) {
	want := &FetchedMessage{MsgID: 9}
	fetcher := &fakeFetcher{publicErr: errors.New("should never be called"), msg: want}

	got, err := fetchOne(context.Background(), fetcher, Link{ChatRef: "-100123", MsgID: 9, Type: LinkPrivate})
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestAlreadyArchivedSkipsStoreLookupForPublicLinks(t *testing.T) {
	p := &Pipeline{} // nil store would panic if touched
	got := p.alreadyArchived(context.Background(), Link{ChatRef: "chan", MsgID: 9, Type: LinkPublic})
	assert.False(t, got)
}

func TestAlreadyArchivedRejectsUnparsableChatRef(t *testing.T) {
	p := &Pipeline{}
	got := p.alreadyArchived(context.Background(), Link{ChatRef: "not-a-number", MsgID: 9, Type: LinkPrivate})
	assert.False(t, got)
}

func TestScratchDirIsPerUserUnderDataDir(t *testing.T) {
	p := &Pipeline{dataDir: t.TempDir()}

	dir, err := p.scratchDir(555)
	require.NoError(t, err)
	assert.Contains(t, dir, "555")

	// calling again must be idempotent, not fail because the dir exists
	dir2, err := p.scratchDir(555)
	require.NoError(t, err)
	assert.Equal(t, dir, dir2)
}
