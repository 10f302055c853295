package store

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// UserSettings holds the per-user batch-pipeline customization fields.
type UserSettings struct {
	UserID       int64             `bson:"user_id"`
	ChatID       string            `bson:"chat_id,omitempty"`
	RenameTag    string            `bson:"rename_tag,omitempty"`
	Caption      string            `bson:"caption,omitempty"`
	Replacements map[string]string `bson:"replacements,omitempty"`
	DeleteWords  []string          `bson:"delete_words,omitempty"`
	ThumbnailRef string            `bson:"thumbnail_ref,omitempty"`
}

// GetSettings returns user's settings, defaulting every field when no
// document exists yet.
func (s *Store) GetSettings(ctx context.Context, userID int64) (UserSettings, error) {
	var settings UserSettings
	err := s.db.Collection(collUserSettings).FindOne(ctx, bson.D{{Key: "user_id", Value: userID}}).Decode(&settings)
	if err == mongo.ErrNoDocuments {
		return UserSettings{UserID: userID}, nil
	}
	if err != nil {
		return UserSettings{}, mapErr(err)
	}
	return settings, nil
}

// UpdateSettingField sets a single settings field by its bson key.
func (s *Store) UpdateSettingField(ctx context.Context, userID int64, field string, value any) error {
	_, err := s.db.Collection(collUserSettings).UpdateOne(ctx,
		bson.D{{Key: "user_id", Value: userID}},
		bson.D{
			{Key: "$set", Value: bson.D{{Key: field, Value: value}}},
			{Key: "$setOnInsert", Value: bson.D{{Key: "user_id", Value: userID}}},
		},
		options.Update().SetUpsert(true),
	)
	return mapErr(err)
}

// ClearSettingField unsets a single settings field.
func (s *Store) ClearSettingField(ctx context.Context, userID int64, field string) error {
	_, err := s.db.Collection(collUserSettings).UpdateOne(ctx,
		bson.D{{Key: "user_id", Value: userID}},
		bson.D{{Key: "$unset", Value: bson.D{{Key: field, Value: ""}}}},
	)
	return mapErr(err)
}

// GetAuthChannelsOverride returns the stored auth_channel CSV override, if
// any config document carries one.
func (s *Store) GetAuthChannelsOverride(ctx context.Context) (string, error) {
	var doc struct {
		Value string `bson:"value"`
	}
	err := s.db.Collection(collConfig).FindOne(ctx, bson.D{{Key: "_id", Value: "auth_channel"}}).Decode(&doc)
	if err == mongo.ErrNoDocuments {
		return "", nil
	}
	if err != nil {
		return "", mapErr(err)
	}
	return doc.Value, nil
}

// SetConfigFlag persists a named boolean toggle in the config collection
// (e.g. the /cleanservice switch).
func (s *Store) SetConfigFlag(ctx context.Context, key string, value bool) error {
	_, err := s.db.Collection(collConfig).UpdateOne(ctx,
		bson.D{{Key: "_id", Value: key}},
		bson.D{{Key: "$set", Value: bson.D{{Key: "value", Value: value}}}},
		options.Update().SetUpsert(true),
	)
	return mapErr(err)
}

// GetConfigFlag reads a named boolean toggle, defaulting to false.
func (s *Store) GetConfigFlag(ctx context.Context, key string) (bool, error) {
	var doc struct {
		Value bool `bson:"value"`
	}
	err := s.db.Collection(collConfig).FindOne(ctx, bson.D{{Key: "_id", Value: key}}).Decode(&doc)
	if err == mongo.ErrNoDocuments {
		return false, nil
	}
	if err != nil {
		return false, mapErr(err)
	}
	return doc.Value, nil
}
