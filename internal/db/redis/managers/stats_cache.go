package managers

import (
	"context"
	"errors"
	"time"

	r "github.com/go-redis/redis/v8"

	"github.com/music-livereview/backend/internal/db/redis"
	"github.com/music-livereview/backend/internal/models"
)

const (
	// CommunityKeyPrefix is the prefix for cached community aggregates
	CommunityKeyPrefix = "community"

	// DefaultStatsCacheExpiry is the default community cache TTL
	DefaultStatsCacheExpiry = 15 * time.Minute

	globalStatsKey  = "global"
	distributionKey = "personalities"
	trendingKey     = "trending"
)

// StatsCache holds community-wide aggregates that are expensive to compute
// and identical for every caller.
type StatsCache struct {
	client *redis.Client
	expiry time.Duration
}

// NewStatsCache creates a new community stats cache
func NewStatsCache(client *redis.Client, expiry time.Duration) *StatsCache {
	if expiry <= 0 {
		expiry = DefaultStatsCacheExpiry
	}

	return &StatsCache{
		client: client,
		expiry: expiry,
	}
}

// GetGlobalStats returns the cached global stats, or nil on a miss.
func (c *StatsCache) GetGlobalStats(ctx context.Context) (*models.GlobalStats, error) {
	var stats models.GlobalStats
	key := redis.FormatKey(CommunityKeyPrefix, globalStatsKey)

	err := c.client.GetObject(ctx, key, &stats)
	if err != nil {
		if errors.Is(err, r.Nil) {
			return nil, nil
		}
		return nil, err
	}

	return &stats, nil
}

// PutGlobalStats caches the global stats snapshot.
func (c *StatsCache) PutGlobalStats(ctx context.Context, stats *models.GlobalStats) error {
	key := redis.FormatKey(CommunityKeyPrefix, globalStatsKey)
	return c.client.SetObject(ctx, key, stats, c.expiry)
}

// GetDistribution returns the cached personality distribution, or nil on a miss.
func (c *StatsCache) GetDistribution(ctx context.Context) (*models.PersonalityDistribution, error) {
	var dist models.PersonalityDistribution
	key := redis.FormatKey(CommunityKeyPrefix, distributionKey)

	err := c.client.GetObject(ctx, key, &dist)
	if err != nil {
		if errors.Is(err, r.Nil) {
			return nil, nil
		}
		return nil, err
	}

	return &dist, nil
}

// PutDistribution caches the personality distribution snapshot.
func (c *StatsCache) PutDistribution(ctx context.Context, dist *models.PersonalityDistribution) error {
	key := redis.FormatKey(CommunityKeyPrefix, distributionKey)
	return c.client.SetObject(ctx, key, dist, c.expiry)
}

// GetTrending returns the cached trending artists for a month, or nil on a miss.
func (c *StatsCache) GetTrending(ctx context.Context, month string) ([]models.TrendingArtistEntry, error) {
	var entries []models.TrendingArtistEntry
	key := redis.FormatKey(CommunityKeyPrefix, trendingKey+":"+month)

	err := c.client.GetObject(ctx, key, &entries)
	if err != nil {
		if errors.Is(err, r.Nil) {
			return nil, nil
		}
		return nil, err
	}

	return entries, nil
}

// PutTrending caches the trending artists for a month.
func (c *StatsCache) PutTrending(ctx context.Context, month string, entries []models.TrendingArtistEntry) error {
	key := redis.FormatKey(CommunityKeyPrefix, trendingKey+":"+month)
	return c.client.SetObject(ctx, key, entries, c.expiry)
}

// InvalidateAll drops every cached community aggregate. Called after a new
// upload completes so the next read recomputes.
func (c *StatsCache) InvalidateAll(ctx context.Context) error {
	return c.client.DelKeys(ctx, redis.FormatKey(CommunityKeyPrefix, "*"))
}
