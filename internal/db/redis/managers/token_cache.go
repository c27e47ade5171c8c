// Package managers provides Redis-backed caches for hot lookups.
package managers

import (
	"context"
	"errors"
	"time"

	r "github.com/go-redis/redis/v8"
	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/music-livereview/backend/internal/db/redis"
	"github.com/music-livereview/backend/internal/utils"
)

const (
	// ShareTokenKeyPrefix is the prefix for share-token lookup keys
	ShareTokenKeyPrefix = "sharetoken"

	// DefaultTokenCacheExpiry is the default share-token cache TTL
	DefaultTokenCacheExpiry = time.Hour
)

// TokenCache maps public share tokens to session IDs so share-page hits
// skip the sessions collection. Entries expire on their own; writers also
// invalidate on deactivation.
type TokenCache struct {
	client *redis.Client
	expiry time.Duration
}

// NewTokenCache creates a new share-token cache
func NewTokenCache(client *redis.Client, expiry time.Duration) *TokenCache {
	if expiry <= 0 {
		expiry = DefaultTokenCacheExpiry
	}

	return &TokenCache{
		client: client,
		expiry: expiry,
	}
}

// Put stores a token-to-session mapping
func (c *TokenCache) Put(ctx context.Context, token string, sessionID bson.ObjectID) error {
	logger := c.client.Logger()

	key := redis.FormatKey(ShareTokenKeyPrefix, token)
	if err := c.client.Set(ctx, key, sessionID.Hex(), c.expiry); err != nil {
		logger.Error("Failed to cache share token", err, "token", utils.TruncateString(token, 8)+"...")
		return err
	}

	return nil
}

// Get resolves a share token to a session ID. The second return value is
// false on a cache miss.
func (c *TokenCache) Get(ctx context.Context, token string) (bson.ObjectID, bool, error) {
	logger := c.client.Logger()

	key := redis.FormatKey(ShareTokenKeyPrefix, token)
	hex, err := c.client.Get(ctx, key)
	if err != nil {
		if errors.Is(err, r.Nil) {
			return bson.ObjectID{}, false, nil
		}
		logger.Error("Failed to read share token cache", err)
		return bson.ObjectID{}, false, err
	}

	if hex == "" {
		return bson.ObjectID{}, false, nil
	}

	id, err := bson.ObjectIDFromHex(hex)
	if err != nil {
		// A corrupt entry should behave like a miss, not an outage.
		logger.Warn("Dropping corrupt share token cache entry", "value", hex)
		_ = c.client.Del(ctx, key)
		return bson.ObjectID{}, false, nil
	}

	return id, true, nil
}

// Invalidate removes a token mapping, for example when its session is
// deactivated by a newer upload.
func (c *TokenCache) Invalidate(ctx context.Context, token string) error {
	key := redis.FormatKey(ShareTokenKeyPrefix, token)
	return c.client.Del(ctx, key)
}
