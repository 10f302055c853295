// Package store is the document-store adapter: typed CRUD and indexed
// queries over folders, files, users, premium grants, usage counters,
// sessions, settings, and plans. Backed by MongoDB via mongo-driver.
package store

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"gatewaybot/internal/apperr"
)

const (
	RootFolderID = "root"

	collFolders      = "playlist"
	collFiles        = "files"
	collConfig       = "config"
	collUsers        = "users"
	collPremium      = "premium_users"
	collUserSettings = "user_settings"
	collUserSessions = "user_sessions"
	collDailyUsage   = "daily_usage"
	collPlans        = "plans"
)

// Store wraps a mongo.Database and exposes the gateway bot's typed
// operations. All methods translate driver errors into apperr sentinels.
type Store struct {
	db *mongo.Database
}

// New wraps an already-connected database handle.
func New(db *mongo.Database) *Store {
	return &Store{db: db}
}

// Connect dials uri and selects dbName, verifying connectivity with a ping.
func Connect(ctx context.Context, uri, dbName string) (*Store, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, apperr.Wrap(apperr.StoreUnavailable, err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		return nil, apperr.Wrap(apperr.StoreUnavailable, err)
	}
	return &Store{db: client.Database(dbName)}, nil
}

// EnsureIndexes creates every index the adapter relies on. Idempotent: an
// equivalent existing index is left untouched by the driver.
func (s *Store) EnsureIndexes(ctx context.Context) error {
	folders := s.db.Collection(collFolders)
	if _, err := folders.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "parent_folder", Value: 1}, {Key: "type", Value: 1}, {Key: "source_channel", Value: 1}}},
		{Keys: bson.D{{Key: "parent_folder", Value: 1}, {Key: "type", Value: 1}, {Key: "chat_id", Value: 1}}},
		{Keys: bson.D{{Key: "file_id", Value: 1}, {Key: "chat_id", Value: 1}}},
	}); err != nil {
		return apperr.Wrap(apperr.StoreUnavailable, err)
	}

	premium := s.db.Collection(collPremium)
	if _, err := premium.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "expireAt", Value: 1}},
		Options: options.Index().SetExpireAfterSeconds(0),
	}); err != nil {
		return apperr.Wrap(apperr.StoreUnavailable, err)
	}
	return nil
}

func mapErr(err error) error {
	if err == nil {
		return nil
	}
	if err == mongo.ErrNoDocuments {
		return apperr.Wrap(apperr.NotFound, err)
	}
	var cmdErr mongo.CommandError
	if ce, ok := err.(mongo.CommandError); ok {
		cmdErr = ce
		if cmdErr.Code == 11000 {
			return apperr.Wrap(apperr.Conflict, err)
		}
	}
	if mongo.IsDuplicateKeyError(err) {
		return apperr.Wrap(apperr.Conflict, err)
	}
	return apperr.Wrap(apperr.StoreUnavailable, err)
}

func utcDayKey(user int64, t time.Time) string {
	return fmt.Sprintf("%d_%s", user, t.UTC().Format("2006-01-02"))
}
