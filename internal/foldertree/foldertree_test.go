package foldertree

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gatewaybot/internal/store"
)

func TestBuildAggregationInvariant(t *testing.T) {
	// root
	//  ├── A (files msg 5, 20)
	//  │    └── B (file msg 10)
	//  └── C (no files)
	folders := []FolderRef{
		{ID: "a", Name: "A", ParentID: store.RootFolderID},
		{ID: "b", Name: "B", ParentID: "a"},
		{ID: "c", Name: "C", ParentID: store.RootFolderID},
	}
	files := []FileRef{
		{ParentFolder: "a", MsgID: 20},
		{ParentFolder: "a", MsgID: 5},
		{ParentFolder: "b", MsgID: 10},
	}

	idx := Build(folders, files)

	a := idx.Nodes["a"]
	b := idx.Nodes["b"]
	c := idx.Nodes["c"]
	require.NotNil(t, a)
	require.NotNil(t, b)
	require.NotNil(t, c)

	assert.Equal(t, 2, a.FileCount)
	assert.Equal(t, 1, b.FileCount)
	assert.Equal(t, 0, c.FileCount)

	// invariant: totalFiles = fileCount + sum(children.totalFiles)
	assert.Equal(t, b.FileCount+0, b.TotalFiles)
	assert.Equal(t, a.FileCount+b.TotalFiles, a.TotalFiles)
	assert.Equal(t, 0, c.TotalFiles)

	// invariant: firstMsgId = min(own, children's)
	assert.Equal(t, 5, a.FirstMsgID)
	assert.Equal(t, 10, b.FirstMsgID)
	assert.Equal(t, 0, c.FirstMsgID)

	assert.ElementsMatch(t, []string{"a", "c"}, idx.RootIDs)
}

func TestBuildChildOrderingByFirstMsgID(t *testing.T) {
	folders := []FolderRef{
		{ID: "late", Name: "Late", ParentID: store.RootFolderID},
		{ID: "early", Name: "Early", ParentID: store.RootFolderID},
		{ID: "empty", Name: "Empty", ParentID: store.RootFolderID},
	}
	files := []FileRef{
		{ParentFolder: "late", MsgID: 100},
		{ParentFolder: "early", MsgID: 1},
	}

	idx := Build(folders, files)
	root := idx.RootIDs
	require.Len(t, root, 3)

	// RootIDs themselves are sorted by id for stability; child ordering
	// by FirstMsgID only applies within a parent's Children slice, so
	// verify via a synthetic parent instead.
	parentFolders := []FolderRef{
		{ID: "p", Name: "P", ParentID: store.RootFolderID},
		{ID: "late", Name: "Late", ParentID: "p"},
		{ID: "early", Name: "Early", ParentID: "p"},
		{ID: "empty", Name: "Empty", ParentID: "p"},
	}
	idx2 := Build(parentFolders, files)
	p := idx2.Nodes["p"]
	require.Len(t, p.Children, 3)
	assert.Equal(t, []string{"early", "late", "empty"}, p.Children)
}
