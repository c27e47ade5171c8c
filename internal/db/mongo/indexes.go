// Package mongo provides MongoDB database connectivity and repositories.
package mongo

import (
	"context"
	"fmt"
	"sync"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/music-livereview/backend/internal/utils"
)

// Collection name constants for use throughout the application
const (
	SessionsCollection        = "upload_sessions"
	ArtistBucketsCollection   = "artist_buckets"
	TrackBucketsCollection    = "track_buckets"
	HourlyBucketsCollection   = "hourly_buckets"
	TrackFirstPlaysCollection = "track_first_plays"
	MonthlyTotalsCollection   = "monthly_totals"
	MarathonsCollection       = "marathons"
)

// IndexCreator defines a function type for index creation
type IndexCreator func(context.Context, *Client) error

// Index creators for different collections
var indexCreators = map[string]IndexCreator{
	SessionsCollection:      ensureSessionIndexes,
	ArtistBucketsCollection: ensureBucketIndexes,
	MarathonsCollection:     ensureMarathonIndexes,
}

// EnsureIndexes creates all necessary indexes for the application
func EnsureIndexes(ctx context.Context, client *Client) error {
	logger := client.Logger().With("operation", "EnsureIndexes")
	logger.Info("Starting index creation for all collections")

	for collection, creator := range indexCreators {
		logger.Info("Creating indexes", "collection", collection)
		if err := creator(ctx, client); err != nil {
			logger.Error("Failed to create indexes", err, "collection", collection)
			return fmt.Errorf("failed to create indexes for %s: %w", collection, err)
		}
	}

	logger.Info("Successfully created all indexes")
	return nil
}

// EnsureIndexesParallel creates all necessary indexes for the application in parallel
func EnsureIndexesParallel(ctx context.Context, client *Client) error {
	logger := client.Logger().With("operation", "EnsureIndexesParallel")
	logger.Info("Starting parallel index creation for all collections")

	var wg sync.WaitGroup
	errChan := make(chan error, len(indexCreators))

	for collection, creator := range indexCreators {
		wg.Add(1)
		go func(collName string, indexCreator IndexCreator) {
			defer wg.Done()
			logger.Info("Creating indexes", "collection", collName)
			if err := indexCreator(ctx, client); err != nil {
				logger.Error("Failed to create indexes", err, "collection", collName)
				errChan <- fmt.Errorf("failed to create indexes for %s: %w", collName, err)
			}
		}(collection, creator)
	}

	wg.Wait()
	close(errChan)

	if len(errChan) > 0 {
		err := <-errChan
		return err
	}

	logger.Info("Successfully created all indexes in parallel")
	return nil
}

// createIndexes is a helper function to create multiple indexes for a collection
func createIndexes(ctx context.Context, collection *mongo.Collection, indexes []mongo.IndexModel, logger *utils.Logger, collectionName string) error {
	if len(indexes) == 0 {
		return nil
	}

	_, err := collection.Indexes().CreateMany(ctx, indexes)
	if err != nil {
		logger.Error("Failed to create indexes", err, "collection", collectionName)
		return err
	}

	logger.Info("Successfully created indexes", "collection", collectionName, "count", len(indexes))
	return nil
}

// ensureSessionIndexes creates indexes for the upload sessions collection
func ensureSessionIndexes(ctx context.Context, client *Client) error {
	collection := client.Collection(SessionsCollection)
	logger := client.Logger().With("operation", "ensureSessionIndexes")

	indexes := []mongo.IndexModel{
		// ShareToken index (unique, powers public share-page lookups)
		{
			Keys:    bson.D{{Key: "shareToken", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		// UserHash index (finding a user's previous uploads)
		{
			Keys:    bson.D{{Key: "userHash", Value: 1}},
			Options: options.Index(),
		},
		// Community membership index (status + active + opt-out)
		{
			Keys: bson.D{
				{Key: "status", Value: 1},
				{Key: "isActive", Value: 1},
				{Key: "optOut", Value: 1},
			},
			Options: options.Index(),
		},
		// CreatedAt index (for sorting and cleanup)
		{
			Keys:    bson.D{{Key: "createdAt", Value: -1}},
			Options: options.Index(),
		},
	}

	return createIndexes(ctx, collection, indexes, logger, SessionsCollection)
}

// ensureBucketIndexes creates indexes for the per-session bucket collections.
// All bucket reads filter by sessionId; the artist collection additionally
// serves month-scoped community queries.
func ensureBucketIndexes(ctx context.Context, client *Client) error {
	logger := client.Logger().With("operation", "ensureBucketIndexes")

	sessionIndex := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "sessionId", Value: 1}},
			Options: options.Index(),
		},
	}

	artistIndexes := []mongo.IndexModel{
		{
			Keys: bson.D{
				{Key: "sessionId", Value: 1},
				{Key: "month", Value: 1},
			},
			Options: options.Index(),
		},
		// Month index for trending-artist aggregation
		{
			Keys:    bson.D{{Key: "month", Value: 1}},
			Options: options.Index(),
		},
	}

	if err := createIndexes(ctx, client.Collection(ArtistBucketsCollection), artistIndexes, logger, ArtistBucketsCollection); err != nil {
		return err
	}

	for _, name := range []string{
		TrackBucketsCollection,
		HourlyBucketsCollection,
		TrackFirstPlaysCollection,
		MonthlyTotalsCollection,
	} {
		if err := createIndexes(ctx, client.Collection(name), sessionIndex, logger, name); err != nil {
			return err
		}
	}

	return nil
}

// ensureMarathonIndexes creates indexes for the marathons collection
func ensureMarathonIndexes(ctx context.Context, client *Client) error {
	collection := client.Collection(MarathonsCollection)
	logger := client.Logger().With("operation", "ensureMarathonIndexes")

	indexes := []mongo.IndexModel{
		// SessionId + Rank index (marathons are always read ranked)
		{
			Keys: bson.D{
				{Key: "sessionId", Value: 1},
				{Key: "rank", Value: 1},
			},
			Options: options.Index(),
		},
	}

	return createIndexes(ctx, collection, indexes, logger, MarathonsCollection)
}
