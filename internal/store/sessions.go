package store

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type userSecret struct {
	UserID          int64     `bson:"user_id"`
	SessionCipher   string    `bson:"session_cipher,omitempty"`
	BotTokenCipher  string    `bson:"bot_token_cipher,omitempty"`
	UpdatedAt       time.Time `bson:"updated_at"`
}

// SaveSession stores the encrypted session string for user.
func (s *Store) SaveSession(ctx context.Context, userID int64, ciphertext string) error {
	_, err := s.db.Collection(collUserSessions).UpdateOne(ctx,
		bson.D{{Key: "user_id", Value: userID}},
		bson.D{
			{Key: "$set", Value: bson.D{{Key: "session_cipher", Value: ciphertext}, {Key: "updated_at", Value: time.Now().UTC()}}},
			{Key: "$setOnInsert", Value: bson.D{{Key: "user_id", Value: userID}}},
		},
		options.Update().SetUpsert(true),
	)
	return mapErr(err)
}

// GetSession returns the stored encrypted session string for user.
func (s *Store) GetSession(ctx context.Context, userID int64) (string, error) {
	var doc userSecret
	err := s.db.Collection(collUserSessions).FindOne(ctx, bson.D{{Key: "user_id", Value: userID}}).Decode(&doc)
	if err == mongo.ErrNoDocuments {
		return "", mapErr(mongo.ErrNoDocuments)
	}
	if err != nil {
		return "", mapErr(err)
	}
	return doc.SessionCipher, nil
}

// DeleteSession removes the stored session string for user.
func (s *Store) DeleteSession(ctx context.Context, userID int64) error {
	_, err := s.db.Collection(collUserSessions).UpdateOne(ctx,
		bson.D{{Key: "user_id", Value: userID}},
		bson.D{{Key: "$unset", Value: bson.D{{Key: "session_cipher", Value: ""}}}},
	)
	return mapErr(err)
}

// SaveBotToken stores the encrypted custom bot token for user.
func (s *Store) SaveBotToken(ctx context.Context, userID int64, ciphertext string) error {
	_, err := s.db.Collection(collUserSessions).UpdateOne(ctx,
		bson.D{{Key: "user_id", Value: userID}},
		bson.D{
			{Key: "$set", Value: bson.D{{Key: "bot_token_cipher", Value: ciphertext}, {Key: "updated_at", Value: time.Now().UTC()}}},
			{Key: "$setOnInsert", Value: bson.D{{Key: "user_id", Value: userID}}},
		},
		options.Update().SetUpsert(true),
	)
	return mapErr(err)
}

// GetBotToken returns the stored encrypted bot token for user.
func (s *Store) GetBotToken(ctx context.Context, userID int64) (string, error) {
	var doc userSecret
	err := s.db.Collection(collUserSessions).FindOne(ctx, bson.D{{Key: "user_id", Value: userID}}).Decode(&doc)
	if err == mongo.ErrNoDocuments {
		return "", mapErr(mongo.ErrNoDocuments)
	}
	if err != nil {
		return "", mapErr(err)
	}
	return doc.BotTokenCipher, nil
}

// DeleteBotToken removes the stored bot token for user.
func (s *Store) DeleteBotToken(ctx context.Context, userID int64) error {
	_, err := s.db.Collection(collUserSessions).UpdateOne(ctx,
		bson.D{{Key: "user_id", Value: userID}},
		bson.D{{Key: "$unset", Value: bson.D{{Key: "bot_token_cipher", Value: ""}}}},
	)
	return mapErr(err)
}
