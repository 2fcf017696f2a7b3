// Package mongodb provides a MongoDB-backed implementation of the
// storage.Store interface. Aggregates run as server-side pipelines.
package mongodb

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/aquaguard/aquaguard/internal/storage"
)

// Ensure MongoStore implements storage.Store
var _ storage.Store = (*MongoStore)(nil)

const (
	pledgesCollection    = "pledges"
	statisticsCollection = "statistics"
	usersCollection      = "users"
)

// MongoStore implements storage.Store using MongoDB.
type MongoStore struct {
	client     *mongo.Client
	pledges    *mongo.Collection
	statistics *mongo.Collection
	users      *mongo.Collection
}

// New connects to uri, verifies the connection and creates the indexes the
// store relies on.
func New(ctx context.Context, uri, database string) (*MongoStore, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, storage.Unavailable("connect to mongodb", err)
	}

	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		client.Disconnect(ctx)
		return nil, storage.Unavailable("ping mongodb", err)
	}

	db := client.Database(database)
	s := &MongoStore{
		client:     client,
		pledges:    db.Collection(pledgesCollection),
		statistics: db.Collection(statisticsCollection),
		users:      db.Collection(usersCollection),
	}

	if err := s.ensureIndexes(ctx); err != nil {
		client.Disconnect(ctx)
		return nil, err
	}
	return s, nil
}

func (s *MongoStore) ensureIndexes(ctx context.Context) error {
	indexes := []struct {
		coll   *mongo.Collection
		models []mongo.IndexModel
	}{
		{s.pledges, []mongo.IndexModel{
			{Keys: bson.D{{Key: "createdAt", Value: -1}}},
			{Keys: bson.D{{Key: "submitterId", Value: 1}, {Key: "createdAt", Value: -1}}},
		}},
		{s.statistics, []mongo.IndexModel{
			{Keys: bson.D{{Key: "kind", Value: 1}}, Options: options.Index().SetUnique(true)},
		}},
		{s.users, []mongo.IndexModel{
			{Keys: bson.D{{Key: "email", Value: 1}}, Options: options.Index().SetUnique(true)},
		}},
	}

	for _, idx := range indexes {
		if _, err := idx.coll.Indexes().CreateMany(ctx, idx.models); err != nil {
			return storage.Unavailable("create indexes on "+idx.coll.Name(), err)
		}
	}
	return nil
}

// Ping checks that the primary answers.
func (s *MongoStore) Ping(ctx context.Context) error {
	if err := s.client.Ping(ctx, readpref.Primary()); err != nil {
		return storage.Unavailable("ping mongodb", err)
	}
	return nil
}

// Close disconnects the client.
func (s *MongoStore) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.client.Disconnect(ctx)
}

// classify maps a driver error to the storage error taxonomy.
func classify(op string, err error) error {
	switch {
	case mongo.IsDuplicateKeyError(err):
		return fmt.Errorf("failed to %s: %w", op, storage.ErrConflict)
	case errors.Is(err, mongo.ErrNoDocuments):
		return fmt.Errorf("failed to %s: %w", op, storage.ErrNotFound)
	}
	return storage.Unavailable(op, err)
}

// millis truncates t to the precision of a BSON date.
func millis(t time.Time) time.Time {
	return time.UnixMilli(t.UnixMilli()).UTC()
}
