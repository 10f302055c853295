// Package topic derives a folder path from a channel-message caption.
package topic

import (
	"regexp"
	"strings"
)

var (
	batchRe = regexp.MustCompile(`(?i)batch\s*:\s*([^\n]+)`)
	topicRe = regexp.MustCompile(`(?i)topic\s*:\s*([^\n]+)`)
)

// ParsePath returns the ordered folder path (root-to-leaf) derived from
// caption, or nil if it carries no Batch:/Topic: field. The Batch name, if
// present, always precedes the Topic tokens regardless of line order.
func ParsePath(caption string) []string {
	var path []string

	if m := batchRe.FindStringSubmatch(caption); m != nil {
		if name := strings.TrimSpace(m[1]); name != "" {
			path = append(path, name)
		}
	}
	if m := topicRe.FindStringSubmatch(caption); m != nil {
		path = append(path, parseTopicTokens(m[1])...)
	}

	if len(path) == 0 {
		return nil
	}
	return path
}

// parseTopicTokens splits "a -> b -> c" into trimmed, non-empty tokens and
// drops a leading "home" token (case-insensitive).
func parseTopicTokens(raw string) []string {
	var tokens []string
	for _, tok := range strings.Split(raw, "->") {
		tok = strings.TrimSpace(tok)
		if tok != "" {
			tokens = append(tokens, tok)
		}
	}
	if len(tokens) > 0 && strings.EqualFold(tokens[0], "home") {
		tokens = tokens[1:]
	}
	return tokens
}
