package store

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"gatewaybot/internal/apperr"
	"gatewaybot/internal/config"
)

// PremiumGrant is a user's active subscription grant.
type PremiumGrant struct {
	UserID          int64     `bson:"user_id"`
	ExpireAt        time.Time `bson:"expireAt"`
	GrantedAt       time.Time `bson:"granted_at"`
	TransferredFrom int64     `bson:"transferred_from,omitempty"`
}

var unitDurations = map[config.DurationUnit]time.Duration{
	config.UnitMinutes: time.Minute,
	config.UnitHours:   time.Hour,
	config.UnitDays:    24 * time.Hour,
	config.UnitWeeks:   7 * 24 * time.Hour,
	config.UnitMonth:   30 * 24 * time.Hour,
	config.UnitYear:    365 * 24 * time.Hour,
	config.UnitDecades: 3650 * 24 * time.Hour,
}

// IsPremium reports whether user has a grant whose expiry is strictly in
// the future. An expired grant found during the check is deleted.
func (s *Store) IsPremium(ctx context.Context, userID int64) (bool, error) {
	var grant PremiumGrant
	err := s.db.Collection(collPremium).FindOne(ctx, bson.D{{Key: "user_id", Value: userID}}).Decode(&grant)
	if err == mongo.ErrNoDocuments {
		return false, nil
	}
	if err != nil {
		return false, mapErr(err)
	}
	if !grant.ExpireAt.After(time.Now().UTC()) {
		_, _ = s.db.Collection(collPremium).DeleteOne(ctx, bson.D{{Key: "user_id", Value: userID}})
		return false, nil
	}
	return true, nil
}

// GetPremium returns the raw grant for user, if any.
func (s *Store) GetPremium(ctx context.Context, userID int64) (PremiumGrant, bool, error) {
	var grant PremiumGrant
	err := s.db.Collection(collPremium).FindOne(ctx, bson.D{{Key: "user_id", Value: userID}}).Decode(&grant)
	if err == mongo.ErrNoDocuments {
		return PremiumGrant{}, false, nil
	}
	if err != nil {
		return PremiumGrant{}, false, mapErr(err)
	}
	return grant, true, nil
}

// AddPremium grants or extends user's premium expiry by value units of
// unit, starting from now.
func (s *Store) AddPremium(ctx context.Context, userID int64, value int, unit config.DurationUnit) (time.Time, error) {
	dur, ok := unitDurations[unit]
	if !ok {
		return time.Time{}, apperr.New(apperr.InvalidUnit, string(unit))
	}
	expiry := time.Now().UTC().Add(time.Duration(value) * dur)

	_, err := s.db.Collection(collPremium).UpdateOne(ctx,
		bson.D{{Key: "user_id", Value: userID}},
		bson.D{
			{Key: "$set", Value: bson.D{{Key: "expireAt", Value: expiry}, {Key: "granted_at", Value: time.Now().UTC()}}},
			{Key: "$setOnInsert", Value: bson.D{{Key: "user_id", Value: userID}}},
		},
		options.Update().SetUpsert(true),
	)
	if err != nil {
		return time.Time{}, mapErr(err)
	}
	return expiry, nil
}

// RevokePremium removes any grant for user.
func (s *Store) RevokePremium(ctx context.Context, userID int64) error {
	_, err := s.db.Collection(collPremium).DeleteOne(ctx, bson.D{{Key: "user_id", Value: userID}})
	return mapErr(err)
}

// TransferPremium moves from's active grant to to, recording the origin.
// Fails with apperr.NotFound if from has no active grant.
func (s *Store) TransferPremium(ctx context.Context, from, to int64) (time.Time, error) {
	grant, ok, err := s.GetPremium(ctx, from)
	if err != nil {
		return time.Time{}, err
	}
	if !ok || !grant.ExpireAt.After(time.Now().UTC()) {
		return time.Time{}, apperr.New(apperr.NotFound, "source has no active premium grant")
	}

	if _, err := s.db.Collection(collPremium).UpdateOne(ctx,
		bson.D{{Key: "user_id", Value: to}},
		bson.D{{Key: "$set", Value: bson.D{
			{Key: "expireAt", Value: grant.ExpireAt},
			{Key: "granted_at", Value: time.Now().UTC()},
			{Key: "transferred_from", Value: from},
		}}, {Key: "$setOnInsert", Value: bson.D{{Key: "user_id", Value: to}}}},
		options.Update().SetUpsert(true),
	); err != nil {
		return time.Time{}, mapErr(err)
	}

	if err := s.RevokePremium(ctx, from); err != nil {
		return time.Time{}, err
	}
	return grant.ExpireAt, nil
}

// ListPremium returns every currently stored premium grant (including
// ones that will lazily expire on next IsPremium check).
func (s *Store) ListPremium(ctx context.Context) ([]PremiumGrant, error) {
	cur, err := s.db.Collection(collPremium).Find(ctx, bson.D{})
	if err != nil {
		return nil, mapErr(err)
	}
	var grants []PremiumGrant
	if err := cur.All(ctx, &grants); err != nil {
		return nil, mapErr(err)
	}
	return grants, nil
}

// CountPremium returns the number of stored premium grants.
func (s *Store) CountPremium(ctx context.Context) (int64, error) {
	n, err := s.db.Collection(collPremium).CountDocuments(ctx, bson.D{})
	return n, mapErr(err)
}
