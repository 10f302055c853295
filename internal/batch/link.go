// Package batch is the batch pipeline: /batch and /single drive a
// conversation through link parsing, preflight checks, a strictly
// sequential fetch/download/rename/upload worker per message, and durable
// progress so an in-flight run's counters survive a process restart. A
// restarted run is not resumed automatically; the user re-issues the
// command.
package batch

import (
	"regexp"
	"strconv"

	"gatewaybot/internal/apperr"
)

// LinkType distinguishes a public (username-addressed) link, reachable with
// any bot client, from a private (internal chat id) link, which requires a
// session client.
type LinkType int

const (
	LinkPublic LinkType = iota
	LinkPrivate
)

// Link is one parsed t.me deep link.
type Link struct {
	ChatRef string // username for LinkPublic, "-100<digits>" for LinkPrivate
	MsgID   int
	Type    LinkType
}

var (
	privateLinkRe = regexp.MustCompile(`^https?://t\.me/c/(\d+)/(?:\d+/)?(\d+)/?(?:\?.*)?$`)
	publicLinkRe  = regexp.MustCompile(`^https?://t\.me/([A-Za-z0-9_]{5,32})/(?:\d+/)?(\d+)/?(?:\?.*)?$`)
)

// ParseLink accepts both supported t.me link shapes, with an optional forum
// topic id segment between the chat reference and the message id.
func ParseLink(raw string) (Link, error) {
	if m := privateLinkRe.FindStringSubmatch(raw); m != nil {
		msgID, err := strconv.Atoi(m[2])
		if err != nil {
			return Link{}, apperr.New(apperr.InvalidLink, "invalid message id in link")
		}
		return Link{ChatRef: "-100" + m[1], MsgID: msgID, Type: LinkPrivate}, nil
	}
	if m := publicLinkRe.FindStringSubmatch(raw); m != nil {
		msgID, err := strconv.Atoi(m[2])
		if err != nil {
			return Link{}, apperr.New(apperr.InvalidLink, "invalid message id in link")
		}
		return Link{ChatRef: m[1], MsgID: msgID, Type: LinkPublic}, nil
	}
	return Link{}, apperr.New(apperr.InvalidLink, "unrecognized message link")
}
