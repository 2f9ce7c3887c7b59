// Package mongostore implements the repository stores on MongoDB.
package mongostore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/buildpulse/buildpulse-go/internal/repository"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

const (
	projectsCollection  = "projects"
	pipelinesCollection = "pipelines"
	buildsCollection    = "builds"
)

// Connect opens a client for uri and pings the primary.
func Connect(ctx context.Context, uri string) (*mongo.Client, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().
		ApplyURI(uri).
		SetMaxPoolSize(50).
		SetMinPoolSize(5))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}
	return client, nil
}

// EnsureIndexes creates the indexes the stores rely on. The unique build
// index keeps one document per (pipeline_id, build_id).
func EnsureIndexes(ctx context.Context, db *mongo.Database) error {
	if _, err := db.Collection(pipelinesCollection).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "project_id", Value: 1}},
	}); err != nil {
		return fmt.Errorf("creating pipelines index: %w", err)
	}

	if _, err := db.Collection(buildsCollection).Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "pipeline_id", Value: 1}, {Key: "build_id", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys: bson.D{{Key: "pipeline_id", Value: 1}, {Key: "timestamp", Value: 1}},
		},
	}); err != nil {
		return fmt.Errorf("creating builds indexes: %w", err)
	}

	return nil
}

func isNotFound(err error) bool {
	return errors.Is(err, mongo.ErrNoDocuments)
}

var (
	_ repository.ProjectStore  = (*ProjectStore)(nil)
	_ repository.PipelineStore = (*PipelineStore)(nil)
	_ repository.BuildStore    = (*BuildStore)(nil)
)
