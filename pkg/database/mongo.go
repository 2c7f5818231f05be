package database

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/noah-isme/drive-api/internal/models"
	"github.com/noah-isme/drive-api/pkg/config"
)

// NewMongo connects to MongoDB and returns the configured database handle.
func NewMongo(ctx context.Context, cfg config.MongoConfig) (*mongo.Client, *mongo.Database, error) {
	opts := options.Client().
		ApplyURI(cfg.URI).
		SetConnectTimeout(cfg.Timeout).
		SetServerSelectionTimeout(cfg.Timeout)

	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, nil, fmt.Errorf("connect mongo: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, cfg.Timeout)
	defer cancel()
	if err := client.Ping(pingCtx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, nil, fmt.Errorf("ping mongo: %w", err)
	}

	return client, client.Database(cfg.Database), nil
}

// EnsureIndexes creates the indexes the node graph and delta feed rely on.
func EnsureIndexes(ctx context.Context, db *mongo.Database) error {
	nodes := db.Collection(models.NodeCollection)
	_, err := nodes.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "parent", Value: 1}, {Key: "deleted", Value: 1}}},
		{Keys: bson.D{{Key: "owner", Value: 1}, {Key: "shared", Value: 1}}},
		{Keys: bson.D{{Key: "reference", Value: 1}}},
		{Keys: bson.D{{Key: "acl.id", Value: 1}}},
		{Keys: bson.D{{Key: "destroy", Value: 1}}, Options: options.Index().SetSparse(true)},
	})
	if err != nil {
		return fmt.Errorf("create node indexes: %w", err)
	}

	delta := db.Collection(models.DeltaCollection)
	_, err = delta.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "seq", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "owner", Value: 1}, {Key: "seq", Value: 1}}},
		{Keys: bson.D{{Key: "share", Value: 1}, {Key: "seq", Value: 1}}},
		{Keys: bson.D{{Key: "ancestors", Value: 1}}},
	})
	if err != nil {
		return fmt.Errorf("create delta indexes: %w", err)
	}
	return nil
}
