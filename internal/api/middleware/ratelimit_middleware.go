// Package middleware contains HTTP middleware for the API.
package middleware

import (
	"net/http"
	"strconv"

	"github.com/music-livereview/backend/internal/db/redis"
	"github.com/music-livereview/backend/internal/utils"
)

// UploadLimitMiddleware enforces the cross-replica upload rate limit. The
// Redis sliding window is authoritative; if Redis is unreachable the request
// is let through rather than blocking uploads on a cache outage.
type UploadLimitMiddleware struct {
	limiter *redis.RateLimiter
	limit   redis.RateLimit
	logger  *utils.Logger
}

// NewUploadLimitMiddleware creates the upload rate limit middleware.
func NewUploadLimitMiddleware(limiter *redis.RateLimiter, logger *utils.Logger) *UploadLimitMiddleware {
	return &UploadLimitMiddleware{
		limiter: limiter,
		limit:   redis.RateLimitUpload(),
		logger:  logger.Named("upload_limit"),
	}
}

// Limit applies the upload rate limit keyed by client IP.
func (m *UploadLimitMiddleware) Limit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := utils.GetRequestIP(r)

		result, err := m.limiter.Allow(r.Context(), m.limit, ip)
		if err != nil {
			m.logger.Warn("Upload rate limit check failed, allowing request", "error", err, "ip", ip)
			next.ServeHTTP(w, r)
			return
		}

		w.Header().Set("X-RateLimit-Limit", strconv.Itoa(result.Limit))
		w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(result.Remaining))

		if !result.Allowed {
			w.Header().Set("Retry-After", strconv.Itoa(int(result.RetryAfter.Seconds())))
			utils.RespondWithJSON(w, http.StatusTooManyRequests, utils.ErrorResponse(utils.ErrRateLimited))
			return
		}

		next.ServeHTTP(w, r)
	})
}
