package store

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type dailyUsage struct {
	Key   string `bson:"_id"`
	Count int64  `bson:"count"`
}

// IncrementUsage atomically bumps today's (UTC) counter for user and
// returns the new value.
func (s *Store) IncrementUsage(ctx context.Context, userID int64) (int64, error) {
	key := utcDayKey(userID, time.Now())
	var doc dailyUsage
	err := s.db.Collection(collDailyUsage).FindOneAndUpdate(ctx,
		bson.D{{Key: "_id", Value: key}},
		bson.D{{Key: "$inc", Value: bson.D{{Key: "count", Value: 1}}}},
		options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After),
	).Decode(&doc)
	if err != nil {
		return 0, mapErr(err)
	}
	return doc.Count, nil
}

// UsageToday returns today's (UTC) counter for user without mutating it.
func (s *Store) UsageToday(ctx context.Context, userID int64) (int64, error) {
	key := utcDayKey(userID, time.Now())
	var doc dailyUsage
	err := s.db.Collection(collDailyUsage).FindOne(ctx, bson.D{{Key: "_id", Value: key}}).Decode(&doc)
	if err == mongo.ErrNoDocuments {
		return 0, nil
	}
	if err != nil {
		return 0, mapErr(err)
	}
	return doc.Count, nil
}
