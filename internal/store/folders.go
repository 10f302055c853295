package store

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"gatewaybot/internal/apperr"
)

// Folder is one node of the folder forest.
type Folder struct {
	ID            primitive.ObjectID `bson:"_id,omitempty"`
	Name          string             `bson:"name"`
	ParentFolder  string             `bson:"parent_folder"`
	Type          string             `bson:"type"`
	SourceChannel int64              `bson:"source_channel,omitempty"`
	AutoCreated   bool               `bson:"auto_created"`
}

const typeFolder = "folder"

// GetOrCreateFolder returns the existing folder id for (parent, name) or
// creates a new auto_created folder and returns its id.
func (s *Store) GetOrCreateFolder(ctx context.Context, parent, name string, sourceChannel int64) (string, error) {
	coll := s.db.Collection(collFolders)

	filter := bson.D{{Key: "parent_folder", Value: parent}, {Key: "type", Value: typeFolder}, {Key: "name", Value: name}}
	var existing Folder
	err := coll.FindOne(ctx, filter).Decode(&existing)
	if err == nil {
		return existing.ID.Hex(), nil
	}
	if err != mongo.ErrNoDocuments {
		return "", mapErr(err)
	}

	doc := Folder{
		Name:          name,
		ParentFolder:  parent,
		Type:          typeFolder,
		SourceChannel: sourceChannel,
		AutoCreated:   true,
	}
	res, err := coll.InsertOne(ctx, doc)
	if err != nil {
		// A concurrent insert may have raced us; re-read instead of failing.
		if mongo.IsDuplicateKeyError(err) {
			var winner Folder
			if findErr := coll.FindOne(ctx, filter).Decode(&winner); findErr == nil {
				return winner.ID.Hex(), nil
			}
		}
		return "", mapErr(err)
	}
	return res.InsertedID.(primitive.ObjectID).Hex(), nil
}

// GetOrCreateFolderPath walks pathList from root, creating folders as
// needed, and returns the leaf folder id.
func (s *Store) GetOrCreateFolderPath(ctx context.Context, pathList []string, sourceChannel int64) (string, error) {
	parent := RootFolderID
	for _, name := range pathList {
		id, err := s.GetOrCreateFolder(ctx, parent, name, sourceChannel)
		if err != nil {
			return "", err
		}
		parent = id
	}
	return parent, nil
}

// GetFolderWithParent returns a folder's name, parent id, and source channel.
func (s *Store) GetFolderWithParent(ctx context.Context, id string) (name, parentID string, sourceChannel int64, err error) {
	oid, convErr := primitive.ObjectIDFromHex(id)
	if convErr != nil {
		return "", "", 0, apperr.New(apperr.NotFound, "invalid folder id")
	}
	var f Folder
	if decErr := s.db.Collection(collFolders).FindOne(ctx, bson.D{{Key: "_id", Value: oid}}).Decode(&f); decErr != nil {
		return "", "", 0, mapErr(decErr)
	}
	return f.Name, f.ParentFolder, f.SourceChannel, nil
}

// ChannelIndexSource returns every auto_created folder sourced from chatID
// plus every file carrying a parent_folder, for BuildTopicIndex to
// aggregate. Read-only; does not mutate the store.
func (s *Store) ChannelIndexSource(ctx context.Context, chatID int64) ([]Folder, []FileRecord, error) {
	folderCur, err := s.db.Collection(collFolders).Find(ctx, bson.D{
		{Key: "type", Value: typeFolder},
		{Key: "auto_created", Value: true},
		{Key: "source_channel", Value: chatID},
	})
	if err != nil {
		return nil, nil, mapErr(err)
	}
	var folders []Folder
	if err := folderCur.All(ctx, &folders); err != nil {
		return nil, nil, mapErr(err)
	}

	fileCur, err := s.db.Collection(collFiles).Find(ctx, bson.D{
		{Key: "chat_id", Value: chatID},
		{Key: "parent_folder", Value: bson.D{{Key: "$exists", Value: true}, {Key: "$ne", Value: ""}}},
	})
	if err != nil {
		return nil, nil, mapErr(err)
	}
	var files []FileRecord
	if err := fileCur.All(ctx, &files); err != nil {
		return nil, nil, mapErr(err)
	}

	return folders, files, nil
}

// DeleteFolderCascade removes a folder, all of its descendant folders, and
// every file whose parent_folder matches any of them.
func (s *Store) DeleteFolderCascade(ctx context.Context, id string) error {
	ids := []string{id}
	frontier := []string{id}

	for len(frontier) > 0 {
		cur, err := s.db.Collection(collFolders).Find(ctx, bson.D{{Key: "parent_folder", Value: bson.D{{Key: "$in", Value: frontier}}}})
		if err != nil {
			return mapErr(err)
		}
		var children []Folder
		if err := cur.All(ctx, &children); err != nil {
			return mapErr(err)
		}
		frontier = frontier[:0]
		for _, c := range children {
			hex := c.ID.Hex()
			ids = append(ids, hex)
			frontier = append(frontier, hex)
		}
	}

	if _, err := s.db.Collection(collFiles).DeleteMany(ctx, bson.D{{Key: "parent_folder", Value: bson.D{{Key: "$in", Value: ids}}}}); err != nil {
		return mapErr(err)
	}

	oids := make([]primitive.ObjectID, 0, len(ids))
	for _, idStr := range ids {
		if oid, err := primitive.ObjectIDFromHex(idStr); err == nil {
			oids = append(oids, oid)
		}
	}
	if _, err := s.db.Collection(collFolders).DeleteMany(ctx, bson.D{{Key: "_id", Value: bson.D{{Key: "$in", Value: oids}}}}); err != nil {
		return mapErr(err)
	}
	return nil
}
