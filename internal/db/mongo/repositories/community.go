// Package repositories contains MongoDB repository implementations.
package repositories

import (
	"context"
	"math"
	"sort"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"

	"github.com/music-livereview/backend/internal/models"
	"github.com/music-livereview/backend/internal/utils"
)

// CommunityRepository defines cross-session aggregate queries. All of its
// queries only ever see active, opted-in, completed sessions.
type CommunityRepository interface {
	GlobalStats(ctx context.Context, topArtists int) (*models.GlobalStats, error)
	TrendingArtists(ctx context.Context, month string, limit int) ([]models.TrendingArtistEntry, error)
	Percentiles(ctx context.Context, session *models.UploadSession) (*models.Percentiles, error)
	PersonalityDistribution(ctx context.Context) (*models.PersonalityDistribution, error)
}

// communityRepository is the MongoDB implementation of CommunityRepository.
type communityRepository struct {
	sessions      *mongo.Collection
	artistBuckets *mongo.Collection
	logger        *utils.Logger
}

// NewCommunityRepository creates a new instance of CommunityRepository.
func NewCommunityRepository(db *mongo.Database, logger *utils.Logger) CommunityRepository {
	return &communityRepository{
		sessions:      db.Collection(sessionsCollection),
		artistBuckets: db.Collection(artistBucketsCollection),
		logger:        logger.Named("community_repository"),
	}
}

// activeSessionIDs loads the IDs of every community-eligible session.
func (r *communityRepository) activeSessionIDs(ctx context.Context) ([]bson.ObjectID, error) {
	cursor, err := r.sessions.Find(ctx, ActiveCommunityFilter())
	if err != nil {
		r.logger.Error("Failed to load community sessions", err)
		return nil, models.NewInternalError(err, "Failed to load community sessions")
	}
	defer cursor.Close(ctx)

	var docs []struct {
		ID bson.ObjectID `bson:"_id"`
	}
	if err = cursor.All(ctx, &docs); err != nil {
		r.logger.Error("Failed to decode community sessions", err)
		return nil, models.NewInternalError(err, "Failed to decode community sessions")
	}

	ids := make([]bson.ObjectID, 0, len(docs))
	for _, d := range docs {
		ids = append(ids, d.ID)
	}
	return ids, nil
}

// GlobalStats computes community-wide scalar stats and the global top artists.
func (r *communityRepository) GlobalStats(ctx context.Context, topArtists int) (*models.GlobalStats, error) {
	cursor, err := r.sessions.Find(ctx, ActiveCommunityFilter())
	if err != nil {
		r.logger.Error("Failed to load community sessions", err)
		return nil, models.NewInternalError(err, "Failed to compute global stats")
	}
	defer cursor.Close(ctx)

	var sessions []struct {
		TotalMsPlayed int64 `bson:"totalMsPlayed"`
		UniqueTracks  int64 `bson:"uniqueTracks"`
		UniqueArtists int64 `bson:"uniqueArtists"`
	}
	if err = cursor.All(ctx, &sessions); err != nil {
		r.logger.Error("Failed to decode community sessions", err)
		return nil, models.NewInternalError(err, "Failed to compute global stats")
	}

	stats := &models.GlobalStats{TotalUploads: int64(len(sessions))}
	if len(sessions) == 0 {
		stats.TopGlobalArtists = []models.GlobalArtistEntry{}
		return stats, nil
	}

	hours := make([]float64, 0, len(sessions))
	var sumHours, sumArtists, sumTracks float64
	for _, s := range sessions {
		h := float64(s.TotalMsPlayed) / (1000 * 60 * 60)
		hours = append(hours, h)
		sumHours += h
		sumArtists += float64(s.UniqueArtists)
		sumTracks += float64(s.UniqueTracks)
	}
	sort.Float64s(hours)

	n := float64(len(sessions))
	stats.AvgTotalHours = round1(sumHours / n)
	stats.MedianTotalHours = round1(median(hours))
	stats.AvgUniqueArtists = round1(sumArtists / n)
	stats.AvgUniqueTracks = round1(sumTracks / n)

	top, err := r.topGlobalArtists(ctx, topArtists)
	if err != nil {
		return nil, err
	}
	stats.TopGlobalArtists = top

	return stats, nil
}

// topGlobalArtists ranks artists by the number of distinct uploads they
// appear in, restricted to community-eligible sessions.
func (r *communityRepository) topGlobalArtists(ctx context.Context, limit int) ([]models.GlobalArtistEntry, error) {
	if limit <= 0 {
		limit = 10
	}

	pipeline := mongo.Pipeline{
		// Collapse each session's monthly rows to one row per artist first.
		{cmdGroup(bson.M{
			"_id": bson.M{"sessionId": "$sessionId", "artist": "$artistName"},
		})},
		{cmdLookup(bson.M{
			"from":         sessionsCollection,
			"localField":   "_id.sessionId",
			"foreignField": "_id",
			"as":           "session",
		})},
		{cmdMatch(bson.M{
			"session.status":   models.UploadCompleted,
			"session.isActive": true,
			"session.optOut":   false,
		})},
		{cmdGroup(bson.M{
			"_id":         "$_id.artist",
			"uploadCount": bson.M{"$sum": 1},
		})},
		{cmdSort(bson.D{{Key: "uploadCount", Value: -1}, {Key: "_id", Value: 1}})},
		{cmdLimit(limit)},
		{cmdProject(bson.M{
			"_id":         0,
			"name":        "$_id",
			"uploadCount": 1,
		})},
	}

	cursor, err := r.artistBuckets.Aggregate(ctx, pipeline)
	if err != nil {
		r.logger.Error("Failed to aggregate global top artists", err)
		return nil, models.NewInternalError(err, "Failed to compute global top artists")
	}
	defer cursor.Close(ctx)

	var rows []struct {
		Name        string `bson:"name"`
		UploadCount int64  `bson:"uploadCount"`
	}
	if err = cursor.All(ctx, &rows); err != nil {
		r.logger.Error("Failed to decode global top artists", err)
		return nil, models.NewInternalError(err, "Failed to decode global top artists")
	}

	entries := make([]models.GlobalArtistEntry, 0, len(rows))
	for _, row := range rows {
		entries = append(entries, models.GlobalArtistEntry{Name: row.Name, UploadCount: row.UploadCount})
	}
	return entries, nil
}

// TrendingArtists ranks artists by upload presence within a single month
// bucket ("YYYY-MM-01"). An empty month ranks across the whole history.
func (r *communityRepository) TrendingArtists(ctx context.Context, month string, limit int) ([]models.TrendingArtistEntry, error) {
	if limit <= 0 {
		limit = 10
	}

	// Prefiltering on session IDs keeps the aggregation on the indexed
	// sessionId field instead of a per-bucket lookup into sessions.
	sessionIDs, err := r.activeSessionIDs(ctx)
	if err != nil {
		return nil, err
	}
	if len(sessionIDs) == 0 {
		return []models.TrendingArtistEntry{}, nil
	}

	matchFilter := bson.M{"sessionId": bson.M{"$in": sessionIDs}}
	if month != "" {
		matchFilter["month"] = month
	}

	pipeline := mongo.Pipeline{
		{cmdMatch(matchFilter)},
		{cmdGroup(bson.M{
			"_id":         "$artistName",
			"uploadCount": bson.M{"$sum": 1},
			"totalPlays":  bson.M{"$sum": "$playCount"},
		})},
		{cmdSort(bson.D{{Key: "uploadCount", Value: -1}, {Key: "totalPlays", Value: -1}, {Key: "_id", Value: 1}})},
		{cmdLimit(limit)},
		{cmdProject(bson.M{
			"_id":         0,
			"name":        "$_id",
			"uploadCount": 1,
			"totalPlays":  1,
		})},
	}

	cursor, err := r.artistBuckets.Aggregate(ctx, pipeline)
	if err != nil {
		r.logger.Error("Failed to aggregate trending artists", err, "month", month)
		return nil, models.NewInternalError(err, "Failed to compute trending artists")
	}
	defer cursor.Close(ctx)

	var rows []struct {
		Name        string `bson:"name"`
		UploadCount int64  `bson:"uploadCount"`
		TotalPlays  int64  `bson:"totalPlays"`
	}
	if err = cursor.All(ctx, &rows); err != nil {
		r.logger.Error("Failed to decode trending artists", err)
		return nil, models.NewInternalError(err, "Failed to decode trending artists")
	}

	entries := make([]models.TrendingArtistEntry, 0, len(rows))
	for _, row := range rows {
		entries = append(entries, models.TrendingArtistEntry{
			Name:        row.Name,
			UploadCount: row.UploadCount,
			TotalPlays:  row.TotalPlays,
		})
	}
	return entries, nil
}

// Percentiles computes where one session sits among all community sessions.
func (r *communityRepository) Percentiles(ctx context.Context, session *models.UploadSession) (*models.Percentiles, error) {
	cursor, err := r.sessions.Find(ctx, ActiveCommunityFilter())
	if err != nil {
		r.logger.Error("Failed to load community sessions", err)
		return nil, models.NewInternalError(err, "Failed to compute percentiles")
	}
	defer cursor.Close(ctx)

	var sessions []struct {
		ID            bson.ObjectID `bson:"_id"`
		TotalMsPlayed int64         `bson:"totalMsPlayed"`
		UniqueTracks  int64         `bson:"uniqueTracks"`
		UniqueArtists int64         `bson:"uniqueArtists"`
	}
	if err = cursor.All(ctx, &sessions); err != nil {
		r.logger.Error("Failed to decode community sessions", err)
		return nil, models.NewInternalError(err, "Failed to compute percentiles")
	}

	if len(sessions) == 0 {
		return &models.Percentiles{}, nil
	}

	var belowHours, belowArtists, belowTracks, total int64
	for _, s := range sessions {
		if s.ID == session.ID {
			continue
		}
		total++
		if s.TotalMsPlayed < session.TotalMsPlayed {
			belowHours++
		}
		if s.UniqueArtists < session.UniqueArtists {
			belowArtists++
		}
		if s.UniqueTracks < session.UniqueTracks {
			belowTracks++
		}
	}

	if total == 0 {
		return &models.Percentiles{}, nil
	}

	return &models.Percentiles{
		TotalHoursPercentile:    round1(float64(belowHours) / float64(total) * 100),
		UniqueArtistsPercentile: round1(float64(belowArtists) / float64(total) * 100),
		UniqueTracksPercentile:  round1(float64(belowTracks) / float64(total) * 100),
	}, nil
}

// PersonalityDistribution reports how recorded personalities are spread
// across community sessions.
func (r *communityRepository) PersonalityDistribution(ctx context.Context) (*models.PersonalityDistribution, error) {
	filter := ActiveCommunityFilter()
	filter["personalityId"] = bson.M{"$exists": true, "$ne": ""}

	pipeline := mongo.Pipeline{
		{cmdMatch(filter)},
		{cmdGroup(bson.M{
			"_id":   "$personalityId",
			"count": bson.M{"$sum": 1},
		})},
		{cmdSort(bson.D{{Key: "count", Value: -1}, {Key: "_id", Value: 1}})},
	}

	cursor, err := r.sessions.Aggregate(ctx, pipeline)
	if err != nil {
		r.logger.Error("Failed to aggregate personality distribution", err)
		return nil, models.NewInternalError(err, "Failed to compute personality distribution")
	}
	defer cursor.Close(ctx)

	var rows []struct {
		ID    string `bson:"_id"`
		Count int64  `bson:"count"`
	}
	if err = cursor.All(ctx, &rows); err != nil {
		r.logger.Error("Failed to decode personality distribution", err)
		return nil, models.NewInternalError(err, "Failed to decode personality distribution")
	}

	dist := &models.PersonalityDistribution{Entries: []models.PersonalityDistributionEntry{}}
	for _, row := range rows {
		dist.Total += row.Count
	}
	for _, row := range rows {
		entry := models.PersonalityDistributionEntry{
			PersonalityID: row.ID,
			Count:         row.Count,
		}
		if dist.Total > 0 {
			entry.Percentage = round1(float64(row.Count) / float64(dist.Total) * 100)
		}
		dist.Entries = append(dist.Entries, entry)
	}

	return dist, nil
}

// round1 rounds to one decimal place.
func round1(v float64) float64 {
	return math.Round(v*10) / 10
}

// median returns the median of a sorted slice.
func median(sorted []float64) float64 {
	n := len(sorted)
	if n == 0 {
		return 0
	}
	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2
}
