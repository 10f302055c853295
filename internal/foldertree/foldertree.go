// Package foldertree assembles the aggregated topic index the renderer
// draws:
// a tree of folders with file counts and "first message" deep-link
// pointers, built either from the durable store or live from a channel
// scan for /createindex.
package foldertree

import (
	"context"
	"sort"

	"gatewaybot/internal/store"
)

// Node is one folder's aggregated view.
type Node struct {
	ID         string
	Name       string
	ParentID   string
	FirstMsgID int // 0 means "no pointer"
	FileCount  int
	TotalFiles int
	Children   []string // ordered by ascending FirstMsgID once finalize runs
}

// Index is the assembled forest plus its root folder ids.
type Index struct {
	Nodes   map[string]*Node
	RootIDs []string
}

// Service wraps the store for building indexes from persisted data.
type Service struct {
	store *store.Store
}

// New builds a Service over store.
func New(s *store.Store) *Service {
	return &Service{store: s}
}

// GetOrCreateFolderPath delegates to the store's get-or-create walk.
func (s *Service) GetOrCreateFolderPath(ctx context.Context, path []string, sourceChannel int64) (string, error) {
	return s.store.GetOrCreateFolderPath(ctx, path, sourceChannel)
}

// BuildTopicIndex assembles the persisted index for chatID: every
// auto_created folder whose source_channel matches, plus every file that
// carries a parent_folder under this channel.
func (s *Service) BuildTopicIndex(ctx context.Context, chatID int64) (Index, error) {
	folders, files, err := s.store.ChannelIndexSource(ctx, chatID)
	if err != nil {
		return Index{}, err
	}

	folderRefs := make([]FolderRef, len(folders))
	for i, f := range folders {
		folderRefs[i] = FolderRef{ID: f.ID.Hex(), Name: f.Name, ParentID: f.ParentFolder}
	}
	fileRefs := make([]FileRef, len(files))
	for i, f := range files {
		fileRefs[i] = FileRef{ParentFolder: f.ParentFolder, MsgID: f.MsgID}
	}

	return Build(folderRefs, fileRefs), nil
}

// FileRef is the minimal shape Build needs from a file record.
type FileRef struct {
	ParentFolder string
	MsgID        int
}

// FolderRef is the minimal shape Build needs from a folder record.
type FolderRef struct {
	ID       string
	Name     string
	ParentID string
}

// Build constructs an Index from raw folder and file rows. Exported so a
// live channel scan (/createindex) can reuse the exact same aggregation
// logic without touching the store.
func Build(folders []FolderRef, files []FileRef) Index {
	nodes := make(map[string]*Node, len(folders))
	var rootIDs []string

	for _, f := range folders {
		nodes[f.ID] = &Node{ID: f.ID, Name: f.Name, ParentID: f.ParentID}
	}
	for _, n := range nodes {
		if n.ParentID == store.RootFolderID {
			rootIDs = append(rootIDs, n.ID)
		} else if parent, ok := nodes[n.ParentID]; ok {
			parent.Children = append(parent.Children, n.ID)
		}
	}

	// Files are walked in ascending msg_id; the first file seen for a
	// folder fixes its firstMsgId pointer.
	sortedFiles := make([]FileRef, len(files))
	copy(sortedFiles, files)
	sort.Slice(sortedFiles, func(i, j int) bool { return sortedFiles[i].MsgID < sortedFiles[j].MsgID })

	for _, file := range sortedFiles {
		node, ok := nodes[file.ParentFolder]
		if !ok {
			continue
		}
		node.FileCount++
		if node.FirstMsgID == 0 {
			node.FirstMsgID = file.MsgID
		}
	}

	finalize(nodes, rootIDs)

	sort.Strings(rootIDs)
	return Index{Nodes: nodes, RootIDs: rootIDs}
}

// finalize performs the post-order propagation: each node's firstMsgId
// becomes the minimum of its own and every descendant's, and totalFiles
// accumulates the whole subtree. Children slices are then sorted by
// ascending FirstMsgID (nodes without a pointer sort last).
func finalize(nodes map[string]*Node, rootIDs []string) {
	var visit func(id string) (minMsg int, total int)
	visit = func(id string) (int, int) {
		node := nodes[id]
		minMsg := node.FirstMsgID
		total := node.FileCount

		for _, childID := range node.Children {
			childMin, childTotal := visit(childID)
			total += childTotal
			if childMin != 0 && (minMsg == 0 || childMin < minMsg) {
				minMsg = childMin
			}
		}

		node.FirstMsgID = minMsg
		node.TotalFiles = total

		sort.SliceStable(node.Children, func(i, j int) bool {
			a, b := nodes[node.Children[i]], nodes[node.Children[j]]
			if a.FirstMsgID == 0 {
				return false
			}
			if b.FirstMsgID == 0 {
				return true
			}
			return a.FirstMsgID < b.FirstMsgID
		})
		return minMsg, total
	}

	for _, id := range rootIDs {
		visit(id)
	}
}
