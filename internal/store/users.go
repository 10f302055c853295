package store

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// User is an upserted per-interaction record.
type User struct {
	UserID   int64     `bson:"user_id"`
	Name     string    `bson:"name"`
	JoinedAt time.Time `bson:"joined_at"`
	LastSeen time.Time `bson:"last_seen"`
}

// UpsertUser records or refreshes a user's display name and last-seen time.
func (s *Store) UpsertUser(ctx context.Context, userID int64, name string) error {
	now := time.Now().UTC()
	coll := s.db.Collection(collUsers)
	_, err := coll.UpdateOne(ctx,
		bson.D{{Key: "user_id", Value: userID}},
		bson.D{
			{Key: "$set", Value: bson.D{{Key: "name", Value: name}, {Key: "last_seen", Value: now}}},
			{Key: "$setOnInsert", Value: bson.D{{Key: "user_id", Value: userID}, {Key: "joined_at", Value: now}}},
		},
		options.Update().SetUpsert(true),
	)
	return mapErr(err)
}

// CountUsers returns the total number of known users.
func (s *Store) CountUsers(ctx context.Context) (int64, error) {
	n, err := s.db.Collection(collUsers).CountDocuments(ctx, bson.D{})
	return n, mapErr(err)
}

// ListUserIDs returns every known user id, for /broadcast fan-out.
func (s *Store) ListUserIDs(ctx context.Context) ([]int64, error) {
	cur, err := s.db.Collection(collUsers).Find(ctx, bson.D{}, options.Find().SetProjection(bson.D{{Key: "user_id", Value: 1}}))
	if err != nil {
		return nil, mapErr(err)
	}
	defer cur.Close(ctx)

	var ids []int64
	for cur.Next(ctx) {
		var u User
		if err := cur.Decode(&u); err != nil {
			return nil, mapErr(err)
		}
		ids = append(ids, u.UserID)
	}
	return ids, mapErr(cur.Err())
}
