// Package repositories contains MongoDB repository implementations.
package repositories

import (
	"context"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/music-livereview/backend/internal/models"
	"github.com/music-livereview/backend/internal/utils"
)

// Collection names
const (
	artistBucketsCollection = "artist_buckets"
	trackBucketsCollection  = "track_buckets"
	hourlyBucketsCollection = "hourly_buckets"
	firstPlaysCollection    = "track_first_plays"
	monthlyTotalsCollection = "monthly_totals"
	marathonsCollection     = "marathons"
)

// Per-session bucket documents. Each embeds the wire-format bucket and tags
// it with the owning session so community pipelines can aggregate across
// sessions without unpacking nested arrays.
type (
	// ArtistBucketDoc is one stored artist bucket.
	ArtistBucketDoc struct {
		SessionID           bson.ObjectID `bson:"sessionId"`
		models.ArtistBucket `bson:",inline"`
	}

	// TrackBucketDoc is one stored track bucket.
	TrackBucketDoc struct {
		SessionID          bson.ObjectID `bson:"sessionId"`
		models.TrackBucket `bson:",inline"`
	}

	// HourlyBucketDoc is one stored hourly stats bucket.
	HourlyBucketDoc struct {
		SessionID                bson.ObjectID `bson:"sessionId"`
		models.HourlyStatsBucket `bson:",inline"`
	}

	// FirstPlayDoc is one stored first-play record.
	FirstPlayDoc struct {
		SessionID             bson.ObjectID `bson:"sessionId"`
		models.TrackFirstPlay `bson:",inline"`
	}

	// MonthlyTotalDoc is one stored monthly total.
	MonthlyTotalDoc struct {
		SessionID           bson.ObjectID `bson:"sessionId"`
		models.MonthlyTotal `bson:",inline"`
	}

	// MarathonDoc is one stored marathon session.
	MarathonDoc struct {
		SessionID       bson.ObjectID `bson:"sessionId"`
		models.Marathon `bson:",inline"`
	}
)

// BucketRepository defines the interface for per-session aggregate storage.
type BucketRepository interface {
	// ReplaceAll atomically swaps a session's stored aggregates for the
	// given result: any prior buckets are dropped first, so reprocessing an
	// upload never leaves stale rows behind.
	ReplaceAll(ctx context.Context, sessionID bson.ObjectID, result *models.AggregationResult) error

	ArtistBuckets(ctx context.Context, sessionID bson.ObjectID) ([]models.ArtistBucket, error)
	TrackBuckets(ctx context.Context, sessionID bson.ObjectID) ([]models.TrackBucket, error)
	HourlyBuckets(ctx context.Context, sessionID bson.ObjectID) ([]models.HourlyStatsBucket, error)
	FirstPlays(ctx context.Context, sessionID bson.ObjectID) ([]models.TrackFirstPlay, error)
	MonthlyTotals(ctx context.Context, sessionID bson.ObjectID) ([]models.MonthlyTotal, error)
	Marathons(ctx context.Context, sessionID bson.ObjectID) ([]models.Marathon, error)

	// DeleteAll removes every stored aggregate for a session.
	DeleteAll(ctx context.Context, sessionID bson.ObjectID) error
}

// bucketRepository is the MongoDB implementation of BucketRepository.
type bucketRepository struct {
	artists   *mongo.Collection
	tracks    *mongo.Collection
	hourly    *mongo.Collection
	first     *mongo.Collection
	monthly   *mongo.Collection
	marathons *mongo.Collection
	logger    *utils.Logger
}

// NewBucketRepository creates a new instance of BucketRepository.
func NewBucketRepository(db *mongo.Database, logger *utils.Logger) BucketRepository {
	return &bucketRepository{
		artists:   db.Collection(artistBucketsCollection),
		tracks:    db.Collection(trackBucketsCollection),
		hourly:    db.Collection(hourlyBucketsCollection),
		first:     db.Collection(firstPlaysCollection),
		monthly:   db.Collection(monthlyTotalsCollection),
		marathons: db.Collection(marathonsCollection),
		logger:    logger.Named("bucket_repository"),
	}
}

// ReplaceAll swaps a session's stored aggregates for the given result.
func (r *bucketRepository) ReplaceAll(ctx context.Context, sessionID bson.ObjectID, result *models.AggregationResult) error {
	if err := r.DeleteAll(ctx, sessionID); err != nil {
		return err
	}

	if len(result.ArtistBuckets) > 0 {
		docs := make([]any, 0, len(result.ArtistBuckets))
		for _, b := range result.ArtistBuckets {
			docs = append(docs, ArtistBucketDoc{SessionID: sessionID, ArtistBucket: b})
		}
		if _, err := r.artists.InsertMany(ctx, docs); err != nil {
			r.logger.Error("Failed to insert artist buckets", err, "sessionId", sessionID.Hex(), "count", len(docs))
			return models.NewInternalError(err, "Failed to store artist buckets")
		}
	}

	if len(result.TrackBuckets) > 0 {
		docs := make([]any, 0, len(result.TrackBuckets))
		for _, b := range result.TrackBuckets {
			docs = append(docs, TrackBucketDoc{SessionID: sessionID, TrackBucket: b})
		}
		if _, err := r.tracks.InsertMany(ctx, docs); err != nil {
			r.logger.Error("Failed to insert track buckets", err, "sessionId", sessionID.Hex(), "count", len(docs))
			return models.NewInternalError(err, "Failed to store track buckets")
		}
	}

	if len(result.HourlyStatsBuckets) > 0 {
		docs := make([]any, 0, len(result.HourlyStatsBuckets))
		for _, b := range result.HourlyStatsBuckets {
			docs = append(docs, HourlyBucketDoc{SessionID: sessionID, HourlyStatsBucket: b})
		}
		if _, err := r.hourly.InsertMany(ctx, docs); err != nil {
			r.logger.Error("Failed to insert hourly buckets", err, "sessionId", sessionID.Hex(), "count", len(docs))
			return models.NewInternalError(err, "Failed to store hourly buckets")
		}
	}

	if len(result.TrackFirstPlays) > 0 {
		docs := make([]any, 0, len(result.TrackFirstPlays))
		for _, b := range result.TrackFirstPlays {
			docs = append(docs, FirstPlayDoc{SessionID: sessionID, TrackFirstPlay: b})
		}
		if _, err := r.first.InsertMany(ctx, docs); err != nil {
			r.logger.Error("Failed to insert first plays", err, "sessionId", sessionID.Hex(), "count", len(docs))
			return models.NewInternalError(err, "Failed to store first plays")
		}
	}

	if len(result.MonthlyTotals) > 0 {
		docs := make([]any, 0, len(result.MonthlyTotals))
		for _, b := range result.MonthlyTotals {
			docs = append(docs, MonthlyTotalDoc{SessionID: sessionID, MonthlyTotal: b})
		}
		if _, err := r.monthly.InsertMany(ctx, docs); err != nil {
			r.logger.Error("Failed to insert monthly totals", err, "sessionId", sessionID.Hex(), "count", len(docs))
			return models.NewInternalError(err, "Failed to store monthly totals")
		}
	}

	if len(result.Marathons) > 0 {
		docs := make([]any, 0, len(result.Marathons))
		for _, b := range result.Marathons {
			docs = append(docs, MarathonDoc{SessionID: sessionID, Marathon: b})
		}
		if _, err := r.marathons.InsertMany(ctx, docs); err != nil {
			r.logger.Error("Failed to insert marathons", err, "sessionId", sessionID.Hex(), "count", len(docs))
			return models.NewInternalError(err, "Failed to store marathons")
		}
	}

	return nil
}

// ArtistBuckets returns all artist buckets for a session, ordered by month.
func (r *bucketRepository) ArtistBuckets(ctx context.Context, sessionID bson.ObjectID) ([]models.ArtistBucket, error) {
	return findBuckets[ArtistBucketDoc, models.ArtistBucket](ctx, r, r.artists, sessionID,
		bson.D{{Key: "month", Value: 1}, {Key: "artistName", Value: 1}},
		func(d ArtistBucketDoc) models.ArtistBucket { return d.ArtistBucket })
}

// TrackBuckets returns all track buckets for a session, ordered by month.
func (r *bucketRepository) TrackBuckets(ctx context.Context, sessionID bson.ObjectID) ([]models.TrackBucket, error) {
	return findBuckets[TrackBucketDoc, models.TrackBucket](ctx, r, r.tracks, sessionID,
		bson.D{{Key: "month", Value: 1}, {Key: "trackName", Value: 1}},
		func(d TrackBucketDoc) models.TrackBucket { return d.TrackBucket })
}

// HourlyBuckets returns all hourly buckets for a session.
func (r *bucketRepository) HourlyBuckets(ctx context.Context, sessionID bson.ObjectID) ([]models.HourlyStatsBucket, error) {
	return findBuckets[HourlyBucketDoc, models.HourlyStatsBucket](ctx, r, r.hourly, sessionID,
		bson.D{{Key: "month", Value: 1}, {Key: "dayOfWeek", Value: 1}, {Key: "hourOfDay", Value: 1}},
		func(d HourlyBucketDoc) models.HourlyStatsBucket { return d.HourlyStatsBucket })
}

// FirstPlays returns all first-play records for a session.
func (r *bucketRepository) FirstPlays(ctx context.Context, sessionID bson.ObjectID) ([]models.TrackFirstPlay, error) {
	return findBuckets[FirstPlayDoc, models.TrackFirstPlay](ctx, r, r.first, sessionID,
		bson.D{{Key: "firstPlayMonth", Value: 1}},
		func(d FirstPlayDoc) models.TrackFirstPlay { return d.TrackFirstPlay })
}

// MonthlyTotals returns all monthly totals for a session, ordered by month.
func (r *bucketRepository) MonthlyTotals(ctx context.Context, sessionID bson.ObjectID) ([]models.MonthlyTotal, error) {
	return findBuckets[MonthlyTotalDoc, models.MonthlyTotal](ctx, r, r.monthly, sessionID,
		bson.D{{Key: "month", Value: 1}},
		func(d MonthlyTotalDoc) models.MonthlyTotal { return d.MonthlyTotal })
}

// Marathons returns all marathons for a session, ordered by rank.
func (r *bucketRepository) Marathons(ctx context.Context, sessionID bson.ObjectID) ([]models.Marathon, error) {
	return findBuckets[MarathonDoc, models.Marathon](ctx, r, r.marathons, sessionID,
		bson.D{{Key: "rank", Value: 1}},
		func(d MarathonDoc) models.Marathon { return d.Marathon })
}

// DeleteAll removes every stored aggregate for a session.
func (r *bucketRepository) DeleteAll(ctx context.Context, sessionID bson.ObjectID) error {
	filter := bson.M{"sessionId": sessionID}
	for _, coll := range []*mongo.Collection{r.artists, r.tracks, r.hourly, r.first, r.monthly, r.marathons} {
		if _, err := coll.DeleteMany(ctx, filter); err != nil {
			r.logger.Error("Failed to delete session buckets", err, "sessionId", sessionID.Hex(), "collection", coll.Name())
			return models.NewInternalError(err, "Failed to delete session aggregates")
		}
	}
	return nil
}

// findBuckets runs the shared find-and-unwrap query for one bucket collection.
func findBuckets[D any, B any](ctx context.Context, r *bucketRepository, coll *mongo.Collection, sessionID bson.ObjectID, sort bson.D, unwrap func(D) B) ([]B, error) {
	opts := options.Find().SetSort(sort)

	cursor, err := coll.Find(ctx, bson.M{"sessionId": sessionID}, opts)
	if err != nil {
		r.logger.Error("Failed to find session buckets", err, "sessionId", sessionID.Hex(), "collection", coll.Name())
		return nil, models.NewInternalError(err, "Failed to load session aggregates")
	}
	defer cursor.Close(ctx)

	var docs []D
	if err = cursor.All(ctx, &docs); err != nil {
		r.logger.Error("Failed to decode session buckets", err, "collection", coll.Name())
		return nil, models.NewInternalError(err, "Failed to decode session aggregates")
	}

	out := make([]B, 0, len(docs))
	for _, d := range docs {
		out = append(out, unwrap(d))
	}
	return out, nil
}
