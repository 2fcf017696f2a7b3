package mongodb

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/aquaguard/aquaguard/internal/models"
	"github.com/aquaguard/aquaguard/internal/storage"
)

type statisticDoc struct {
	ID              string    `bson:"_id"`
	Kind            string    `bson:"kind"`
	Value           float64   `bson:"value"`
	Unit            string    `bson:"unit"`
	Description     string    `bson:"description"`
	Source          string    `bson:"source"`
	IsActive        bool      `bson:"isActive"`
	UpdateFrequency string    `bson:"updateFrequency"`
	CreatedAt       time.Time `bson:"createdAt"`
	LastUpdated     time.Time `bson:"lastUpdated"`
}

func toStatisticDoc(s *models.ReferenceStatistic) statisticDoc {
	return statisticDoc{
		ID:              s.ID,
		Kind:            string(s.Kind),
		Value:           s.Value,
		Unit:            string(s.Unit),
		Description:     s.Description,
		Source:          s.Source,
		IsActive:        s.IsActive,
		UpdateFrequency: string(s.UpdateFrequency),
		CreatedAt:       millis(s.CreatedAt),
		LastUpdated:     millis(s.LastUpdated),
	}
}

func (d statisticDoc) model() *models.ReferenceStatistic {
	return &models.ReferenceStatistic{
		ID:              d.ID,
		Kind:            models.StatisticKind(d.Kind),
		Value:           d.Value,
		Unit:            models.StatisticUnit(d.Unit),
		Description:     d.Description,
		Source:          d.Source,
		IsActive:        d.IsActive,
		UpdateFrequency: models.UpdateFrequency(d.UpdateFrequency),
		CreatedAt:       d.CreatedAt.UTC(),
		LastUpdated:     d.LastUpdated.UTC(),
	}
}

func prepareStatistic(stat *models.ReferenceStatistic) {
	if stat.ID == "" {
		stat.ID = uuid.New().String()
	}
	if stat.CreatedAt.IsZero() {
		stat.CreatedAt = time.Now().UTC()
	}
	if stat.LastUpdated.IsZero() {
		stat.LastUpdated = stat.CreatedAt
	}
}

// CreateStatistic inserts a statistic. The unique kind index rejects duplicates.
func (s *MongoStore) CreateStatistic(ctx context.Context, stat *models.ReferenceStatistic) error {
	prepareStatistic(stat)
	if _, err := s.statistics.InsertOne(ctx, toStatisticDoc(stat)); err != nil {
		return classify("insert statistic", err)
	}
	return nil
}

// GetStatistic retrieves a statistic by ID.
func (s *MongoStore) GetStatistic(ctx context.Context, id string) (*models.ReferenceStatistic, error) {
	var doc statisticDoc
	if err := s.statistics.FindOne(ctx, bson.M{"_id": id}).Decode(&doc); err != nil {
		return nil, classify("get statistic "+id, err)
	}
	return doc.model(), nil
}

// UpdateStatistic replaces the statistic document with the same ID.
func (s *MongoStore) UpdateStatistic(ctx context.Context, stat *models.ReferenceStatistic) error {
	res, err := s.statistics.ReplaceOne(ctx, bson.M{"_id": stat.ID}, toStatisticDoc(stat))
	if err != nil {
		return classify("update statistic", err)
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("statistic %s: %w", stat.ID, storage.ErrNotFound)
	}
	return nil
}

// DeleteStatistic removes a statistic by ID.
func (s *MongoStore) DeleteStatistic(ctx context.Context, id string) error {
	res, err := s.statistics.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return classify("delete statistic", err)
	}
	if res.DeletedCount == 0 {
		return fmt.Errorf("statistic %s: %w", id, storage.ErrNotFound)
	}
	return nil
}

// ListStatistics returns statistics sorted by kind.
func (s *MongoStore) ListStatistics(ctx context.Context, activeOnly bool) ([]*models.ReferenceStatistic, error) {
	filter := bson.M{}
	if activeOnly {
		filter["isActive"] = true
	}

	cursor, err := s.statistics.Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "kind", Value: 1}}))
	if err != nil {
		return nil, classify("list statistics", err)
	}
	var docs []statisticDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, classify("decode statistics", err)
	}

	stats := make([]*models.ReferenceStatistic, len(docs))
	for i, d := range docs {
		stats[i] = d.model()
	}
	return stats, nil
}

// SetStatisticValue upserts by kind. Only value and lastUpdated change on an
// existing record; the remaining fields are written on insert.
func (s *MongoStore) SetStatisticValue(ctx context.Context, stat *models.ReferenceStatistic) (*models.ReferenceStatistic, error) {
	prepareStatistic(stat)
	doc := toStatisticDoc(stat)

	update := bson.D{
		{Key: "$set", Value: bson.D{
			{Key: "value", Value: doc.Value},
			{Key: "lastUpdated", Value: doc.LastUpdated},
		}},
		{Key: "$setOnInsert", Value: bson.D{
			{Key: "_id", Value: doc.ID},
			{Key: "unit", Value: doc.Unit},
			{Key: "description", Value: doc.Description},
			{Key: "source", Value: doc.Source},
			{Key: "isActive", Value: doc.IsActive},
			{Key: "updateFrequency", Value: doc.UpdateFrequency},
			{Key: "createdAt", Value: doc.CreatedAt},
		}},
	}
	opts := options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After)

	var out statisticDoc
	if err := s.statistics.FindOneAndUpdate(ctx, bson.M{"kind": doc.Kind}, update, opts).Decode(&out); err != nil {
		return nil, classify("upsert statistic", err)
	}
	return out.model(), nil
}

// IncrementStatistic applies $inc guarded by an $expr that keeps the
// result non-negative.
func (s *MongoStore) IncrementStatistic(ctx context.Context, kind models.StatisticKind, delta float64) (*models.ReferenceStatistic, error) {
	filter := bson.D{
		{Key: "kind", Value: string(kind)},
		{Key: "$expr", Value: bson.D{{Key: "$gte", Value: bson.A{
			bson.D{{Key: "$add", Value: bson.A{"$value", delta}}}, 0,
		}}}},
	}
	update := bson.D{
		{Key: "$inc", Value: bson.D{{Key: "value", Value: delta}}},
		{Key: "$set", Value: bson.D{{Key: "lastUpdated", Value: millis(time.Now())}}},
	}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var out statisticDoc
	err := s.statistics.FindOneAndUpdate(ctx, filter, update, opts).Decode(&out)
	if errors.Is(err, mongo.ErrNoDocuments) {
		n, cerr := s.statistics.CountDocuments(ctx, bson.M{"kind": string(kind)})
		if cerr != nil {
			return nil, classify("increment statistic", cerr)
		}
		if n == 0 {
			return nil, fmt.Errorf("statistic %s: %w", kind, storage.ErrNotFound)
		}
		return nil, fmt.Errorf("statistic %s would become negative: %w", kind, storage.ErrConflict)
	}
	if err != nil {
		return nil, classify("increment statistic", err)
	}
	return out.model(), nil
}
