package store

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"gatewaybot/internal/config"
)

// PlanDoc is a store-persisted override of a plan's pricing/duration,
// keyed by the same short letter as config.Plan.
type PlanDoc struct {
	Key      string              `bson:"_id"`
	Label    string              `bson:"label"`
	Stars    int                 `bson:"stars"`
	Duration int                 `bson:"duration"`
	Unit     config.DurationUnit `bson:"unit"`
}

// UpsertPlan creates or overwrites a plan override.
func (s *Store) UpsertPlan(ctx context.Context, plan PlanDoc) error {
	_, err := s.db.Collection(collPlans).UpdateOne(ctx,
		bson.D{{Key: "_id", Value: plan.Key}},
		bson.D{{Key: "$set", Value: plan}},
		options.Update().SetUpsert(true),
	)
	return mapErr(err)
}

// DeletePlan removes a plan override, falling back to config defaults.
func (s *Store) DeletePlan(ctx context.Context, key string) error {
	_, err := s.db.Collection(collPlans).DeleteOne(ctx, bson.D{{Key: "_id", Value: key}})
	return mapErr(err)
}

// ListPlans returns every stored plan override.
func (s *Store) ListPlans(ctx context.Context) ([]PlanDoc, error) {
	cur, err := s.db.Collection(collPlans).Find(ctx, bson.D{})
	if err != nil {
		return nil, mapErr(err)
	}
	var plans []PlanDoc
	if err := cur.All(ctx, &plans); err != nil {
		return nil, mapErr(err)
	}
	return plans, nil
}

// GetPlan returns a single stored plan override.
func (s *Store) GetPlan(ctx context.Context, key string) (PlanDoc, bool, error) {
	var doc PlanDoc
	err := s.db.Collection(collPlans).FindOne(ctx, bson.D{{Key: "_id", Value: key}}).Decode(&doc)
	if err == mongo.ErrNoDocuments {
		return PlanDoc{}, false, nil
	}
	if err != nil {
		return PlanDoc{}, false, mapErr(err)
	}
	return doc, true, nil
}
