// Package indexrender walks a folder tree and renders it into
// chunked, tree-drawn display messages with deep links.
package indexrender

import (
	"fmt"
	"strings"

	"gatewaybot/internal/foldertree"
)

const maxChunkLen = 3800

// Render walks idx starting from its roots and returns a sequence of
// message chunks, each at most maxChunkLen characters, formatted with
// tree-drawing glyphs and deep links built from baseHost/cleanChatID.
func Render(idx foldertree.Index, baseHost, cleanChatID string) []string {
	var lines []string
	lines = append(lines, "📂 Index")

	for _, id := range idx.RootIDs {
		node := idx.Nodes[id]
		if node == nil {
			continue
		}
		lines = append(lines, "📂 "+nodeLabel(node, baseHost, cleanChatID))
		for i, childID := range node.Children {
			renderNode(&lines, idx, childID, "", i == len(node.Children)-1, baseHost, cleanChatID)
		}
	}

	return chunk(lines)
}

func renderNode(lines *[]string, idx foldertree.Index, id, prefix string, last bool, baseHost, cleanChatID string) {
	node := idx.Nodes[id]
	if node == nil {
		return
	}

	branch := "┣ "
	if last {
		branch = "┗ "
	}

	label := nodeLabel(node, baseHost, cleanChatID)
	*lines = append(*lines, prefix+branch+label)

	childPrefix := prefix + "┃   "
	if last {
		childPrefix = prefix + "    "
	}

	for i, childID := range node.Children {
		renderNode(lines, idx, childID, childPrefix, i == len(node.Children)-1, baseHost, cleanChatID)
	}
}

func nodeLabel(node *foldertree.Node, baseHost, cleanChatID string) string {
	var label string
	if node.FirstMsgID != 0 {
		url := fmt.Sprintf("https://%s/c/%s/%d", baseHost, cleanChatID, node.FirstMsgID)
		label = fmt.Sprintf("[%s](%s)", node.Name, url)
	} else {
		label = fmt.Sprintf("**%s**", node.Name)
	}
	if node.TotalFiles > 0 {
		label += fmt.Sprintf(" · %d", node.TotalFiles)
	}
	return label
}

const continuationHeader = "📂 Index (continued)"
const continuationFooter = "⬇️ continued below"

// chunk greedily packs lines into messages no longer than maxChunkLen,
// flushing a footer and starting each subsequent chunk with a
// continuation header.
func chunk(lines []string) []string {
	if len(lines) == 0 {
		return nil
	}

	var chunks []string
	var cur strings.Builder
	cur.WriteString(lines[0])

	flush := func() {
		chunks = append(chunks, cur.String())
		cur.Reset()
	}

	for _, line := range lines[1:] {
		candidate := cur.Len() + 1 + len(line) + 1 + len(continuationFooter)
		if candidate > maxChunkLen {
			cur.WriteString("\n")
			cur.WriteString(continuationFooter)
			flush()
			cur.WriteString(continuationHeader)
		}
		cur.WriteString("\n")
		cur.WriteString(line)
	}
	flush()
	return chunks
}
