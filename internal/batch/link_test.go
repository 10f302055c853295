package batch

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLinkPrivate(t *testing.T) {
	link, err := ParseLink("https://t.me/c/1234567890/42")
	require.NoError(t, err)
	assert.Equal(t, "-1001234567890", link.ChatRef)
	assert.Equal(t, 42, link.MsgID)
	assert.Equal(t, LinkPrivate, link.Type)
}

func TestParseLinkPrivateWithTopic(t *testing.T) {
	link, err := ParseLink("https://t.me/c/1234567890/7/42")
	require.NoError(t, err)
	assert.Equal(t, "-1001234567890", link.ChatRef)
	assert.Equal(t, 42, link.MsgID)
}

func TestParseLinkPublic(t *testing.T) {
	link, err := ParseLink("https://t.me/somechannel/99")
	require.NoError(t, err)
	assert.Equal(t, "somechannel", link.ChatRef)
	assert.Equal(t, 99, link.MsgID)
	assert.Equal(t, LinkPublic, link.Type)
}

func TestParseLinkInvalid(t *testing.T) {
	_, err := ParseLink("not a link")
	assert.Error(t, err)
}
