package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPlanPageFoldersPrecedeFiles(t *testing.T) {
	// 3 folders, 10 files, page size 8: page 1 is all folders + first 5 files.
	p := planPage(3, 10, 1, 8)
	assert.EqualValues(t, 0, p.folderOffset)
	assert.EqualValues(t, 3, p.folderLimit)
	assert.EqualValues(t, 0, p.fileOffset)
	assert.EqualValues(t, 5, p.fileLimit)
}

func TestPlanPageSecondPageIsFilesOnly(t *testing.T) {
	p := planPage(3, 10, 2, 8)
	assert.EqualValues(t, 0, p.folderLimit)
	assert.EqualValues(t, 5, p.fileOffset)
	assert.EqualValues(t, 5, p.fileLimit)
}

func TestPlanPageCoversEveryItemExactlyOnce(t *testing.T) {
	const folderCount, fileCount, perPage = 13, 27, 8
	total := folderCount + fileCount
	pages := (total + perPage - 1) / perPage

	seenFolders := make([]bool, folderCount)
	seenFiles := make([]bool, fileCount)

	for page := 1; page <= pages; page++ {
		p := planPage(folderCount, fileCount, page, perPage)
		for i := p.folderOffset; i < p.folderOffset+p.folderLimit; i++ {
			assert.False(t, seenFolders[i], "folder %d seen twice", i)
			seenFolders[i] = true
		}
		for i := p.fileOffset; i < p.fileOffset+p.fileLimit; i++ {
			assert.False(t, seenFiles[i], "file %d seen twice", i)
			seenFiles[i] = true
		}
	}

	for i, seen := range seenFolders {
		assert.True(t, seen, "folder %d never shown", i)
	}
	for i, seen := range seenFiles {
		assert.True(t, seen, "file %d never shown", i)
	}
}

func TestPlanPageEmptyFolder(t *testing.T) {
	p := planPage(0, 0, 1, 8)
	assert.EqualValues(t, 0, p.folderLimit)
	assert.EqualValues(t, 0, p.fileLimit)
}
