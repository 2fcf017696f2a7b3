package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/aquaguard/aquaguard/internal/config"
	"github.com/aquaguard/aquaguard/internal/storage"
	"github.com/aquaguard/aquaguard/internal/storage/dynamo"
	"github.com/aquaguard/aquaguard/internal/storage/mongodb"
	"github.com/aquaguard/aquaguard/internal/storage/sqlite"
)

// openStore connects to the back-end selected by cfg.Driver.
func openStore(ctx context.Context, cfg config.StoreConfig) (storage.Store, error) {
	switch cfg.Driver {
	case config.DriverSQLite:
		store, err := sqlite.New(cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		slog.Info("Storage initialized", "driver", cfg.Driver, "database", cfg.SQLitePath)
		return store, nil

	case config.DriverMongo:
		store, err := mongodb.New(ctx, cfg.MongoURI, cfg.MongoDatabase)
		if err != nil {
			return nil, err
		}
		slog.Info("Storage initialized", "driver", cfg.Driver, "database", cfg.MongoDatabase)
		return store, nil

	case config.DriverDynamoDB:
		store, err := dynamo.New(ctx, dynamo.Config{
			Region:       cfg.DynamoRegion,
			Endpoint:     cfg.DynamoEndpoint,
			TablePrefix:  cfg.DynamoTablePrefix,
			CreateTables: cfg.DynamoCreateTables,
		})
		if err != nil {
			return nil, err
		}
		slog.Info("Storage initialized", "driver", cfg.Driver, "region", cfg.DynamoRegion, "table_prefix", cfg.DynamoTablePrefix)
		return store, nil
	}
	return nil, fmt.Errorf("unknown store driver %q", cfg.Driver)
}
