package store

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// FileRecord is one indexed media item.
type FileRecord struct {
	ID           primitive.ObjectID `bson:"_id,omitempty"`
	ChatID       int64              `bson:"chat_id"`
	FileID       string             `bson:"file_id"`
	MsgID        int                `bson:"msg_id"`
	Name         string             `bson:"name"`
	Size         string             `bson:"size"`
	MimeType     string             `bson:"mime_type"`
	ParentFolder string             `bson:"parent_folder,omitempty"`
	Thumbnail    string             `bson:"thumbnail,omitempty"`
}

// AddFileIfNovel inserts rec unless (chatID, fileID) already exists. An
// existing record is left untouched except that a missing parent_folder is
// attached retroactively when the re-ingested rec carries one.
func (s *Store) AddFileIfNovel(ctx context.Context, rec FileRecord) (inserted bool, err error) {
	coll := s.db.Collection(collFiles)

	var existing FileRecord
	filter := bson.D{{Key: "chat_id", Value: rec.ChatID}, {Key: "file_id", Value: rec.FileID}}
	findErr := coll.FindOne(ctx, filter).Decode(&existing)
	if findErr == nil {
		if existing.ParentFolder == "" && rec.ParentFolder != "" {
			if _, upErr := coll.UpdateOne(ctx, filter,
				bson.D{{Key: "$set", Value: bson.D{{Key: "parent_folder", Value: rec.ParentFolder}}}},
			); upErr != nil {
				return false, mapErr(upErr)
			}
		}
		return false, nil
	}
	if findErr != mongo.ErrNoDocuments {
		return false, mapErr(findErr)
	}

	if _, insErr := coll.InsertOne(ctx, rec); insErr != nil {
		if mongo.IsDuplicateKeyError(insErr) {
			return false, nil
		}
		return false, mapErr(insErr)
	}
	return true, nil
}

// GetFileByMsg looks up a single file record by (chatID, msgID), used by
// the file action menu and VC playback to recover a record's name and mime
// type from a callback that only carries ids.
func (s *Store) GetFileByMsg(ctx context.Context, chatID int64, msgID int) (FileRecord, error) {
	var rec FileRecord
	filter := bson.D{{Key: "chat_id", Value: chatID}, {Key: "msg_id", Value: msgID}}
	if err := s.db.Collection(collFiles).FindOne(ctx, filter).Decode(&rec); err != nil {
		return FileRecord{}, mapErr(err)
	}
	return rec, nil
}

// Page is the result of a paginated folder listing.
type Page struct {
	Folders     []Folder
	Files       []FileRecord
	HasMore     bool
	FolderCount int
	FileCount   int
	VideoCount  int
	PDFCount    int
}

const videoMimePrefix = "video/"
const pdfMimeType = "application/pdf"

// ListItems returns one page of folder view contents. Folders precede
// files; folders sort by _id ascending, files by msg_id ascending.
func (s *Store) ListItems(ctx context.Context, parent string, sourceChannel int64, page, perPage int) (Page, error) {
	folderFilter := bson.D{{Key: "parent_folder", Value: parent}, {Key: "type", Value: typeFolder}}
	fileFilter := bson.D{{Key: "parent_folder", Value: parent}}
	if sourceChannel != 0 {
		folderFilter = append(folderFilter, bson.E{Key: "source_channel", Value: sourceChannel})
		fileFilter = append(fileFilter, bson.E{Key: "chat_id", Value: sourceChannel})
	}

	folderCount, err := s.db.Collection(collFolders).CountDocuments(ctx, folderFilter)
	if err != nil {
		return Page{}, mapErr(err)
	}
	fileCount, err := s.db.Collection(collFiles).CountDocuments(ctx, fileFilter)
	if err != nil {
		return Page{}, mapErr(err)
	}
	videoCount, err := s.db.Collection(collFiles).CountDocuments(ctx, append(fileFilter, bson.E{Key: "mime_type", Value: bson.D{{Key: "$regex", Value: "^" + videoMimePrefix}}}))
	if err != nil {
		return Page{}, mapErr(err)
	}
	pdfCount, err := s.db.Collection(collFiles).CountDocuments(ctx, append(fileFilter, bson.E{Key: "mime_type", Value: pdfMimeType}))
	if err != nil {
		return Page{}, mapErr(err)
	}

	plan := planPage(folderCount, fileCount, page, perPage)

	var folders []Folder
	if plan.folderLimit > 0 {
		cur, err := s.db.Collection(collFolders).Find(ctx, folderFilter,
			options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}).SetSkip(plan.folderOffset).SetLimit(plan.folderLimit))
		if err != nil {
			return Page{}, mapErr(err)
		}
		if err := cur.All(ctx, &folders); err != nil {
			return Page{}, mapErr(err)
		}
	}

	var files []FileRecord
	if plan.fileLimit > 0 {
		cur, err := s.db.Collection(collFiles).Find(ctx, fileFilter,
			options.Find().SetSort(bson.D{{Key: "msg_id", Value: 1}}).SetSkip(plan.fileOffset).SetLimit(plan.fileLimit))
		if err != nil {
			return Page{}, mapErr(err)
		}
		if err := cur.All(ctx, &files); err != nil {
			return Page{}, mapErr(err)
		}
	}

	hasMore := plan.offset+int64(perPage) < folderCount+fileCount

	return Page{
		Folders:     folders,
		Files:       files,
		HasMore:     hasMore,
		FolderCount: int(folderCount),
		FileCount:   int(fileCount),
		VideoCount:  int(videoCount),
		PDFCount:    int(pdfCount),
	}, nil
}

// pagePlan describes which slice of folders and which slice of files a
// given page pulls from the store, given folders always precede files.
type pagePlan struct {
	offset       int64
	folderOffset int64
	folderLimit  int64
	fileOffset   int64
	fileLimit    int64
}

// planPage computes pagePlan for page (1-indexed) over folderCount folders
// followed by fileCount files, perPage items per page.
func planPage(folderCount, fileCount int64, page, perPage int) pagePlan {
	offset := int64((page - 1) * perPage)
	plan := pagePlan{offset: offset}

	if offset < folderCount {
		plan.folderOffset = offset
		plan.folderLimit = min64(int64(perPage), folderCount-offset)
	}

	remaining := int64(perPage) - plan.folderLimit
	if remaining > 0 {
		if offset > folderCount {
			plan.fileOffset = offset - folderCount
		}
		plan.fileLimit = min64(remaining, maxInt64(0, fileCount-plan.fileOffset))
	}
	return plan
}

func min64(a, b int64) int64 {
	if a < b {
		return a
	}
	return b
}

func maxInt64(a, b int64) int64 {
	if a > b {
		return a
	}
	return b
}
