// Package community serves aggregates computed across every opted-in
// completed upload: global averages, trending artists, personality
// distribution and per-session percentile ranking.
package community

import (
	"context"
	"fmt"
	"time"

	"github.com/music-livereview/backend/internal/config"
	"github.com/music-livereview/backend/internal/db/mongo/repositories"
	"github.com/music-livereview/backend/internal/models"
	"github.com/music-livereview/backend/internal/utils"
)

// Trending periods accepted by the API.
const (
	PeriodWeek    = "week"
	PeriodMonth   = "month"
	PeriodAllTime = "alltime"
)

const (
	defaultTrendingLimit = 20
	maxTrendingLimit     = 50
	topGlobalArtists     = 10
)

// Cache stores community aggregates between recomputes. Satisfied by
// managers.StatsCache.
type Cache interface {
	GetGlobalStats(ctx context.Context) (*models.GlobalStats, error)
	PutGlobalStats(ctx context.Context, stats *models.GlobalStats) error
	GetTrending(ctx context.Context, month string) ([]models.TrendingArtistEntry, error)
	PutTrending(ctx context.Context, month string, entries []models.TrendingArtistEntry) error
	GetDistribution(ctx context.Context) (*models.PersonalityDistribution, error)
	PutDistribution(ctx context.Context, dist *models.PersonalityDistribution) error
}

// SessionResolver turns a share token into a completed session. Satisfied
// by stats.Service.
type SessionResolver interface {
	Resolve(ctx context.Context, token string) (*models.UploadSession, error)
}

// Recorder counts cache outcomes. Satisfied by system.MetricsService.
type Recorder interface {
	IncCommunityCache(outcome string)
}

// Service answers community stats queries with a cache in front of the
// aggregation pipelines.
type Service struct {
	repo     repositories.CommunityRepository
	sessions repositories.SessionRepository
	resolver SessionResolver
	cache    Cache
	recorder Recorder
	cfg      *config.Config
	logger   *utils.Logger

	// now is replaceable in tests.
	now func() time.Time
}

// NewService creates a community stats service. recorder may be nil.
func NewService(
	repo repositories.CommunityRepository,
	sessions repositories.SessionRepository,
	resolver SessionResolver,
	cache Cache,
	recorder Recorder,
	cfg *config.Config,
	logger *utils.Logger,
) *Service {
	return &Service{
		repo:     repo,
		sessions: sessions,
		resolver: resolver,
		cache:    cache,
		recorder: recorder,
		cfg:      cfg,
		logger:   logger.Named("community_service"),
		now:      time.Now,
	}
}

// Global returns community-wide averages and the top global artists.
func (s *Service) Global(ctx context.Context) (*models.GlobalStats, error) {
	if err := s.requireMinSessions(ctx); err != nil {
		return nil, err
	}

	if cached, err := s.cache.GetGlobalStats(ctx); err != nil {
		s.logger.Warn("Global stats cache read failed", "error", err)
	} else if cached != nil {
		s.recordCache("hit")
		return cached, nil
	}
	s.recordCache("miss")

	stats, err := s.repo.GlobalStats(ctx, topGlobalArtists)
	if err != nil {
		return nil, err
	}

	if err := s.cache.PutGlobalStats(ctx, stats); err != nil {
		s.logger.Warn("Failed to cache global stats", "error", err)
	}
	return stats, nil
}

// Trending ranks artists by upload count within a period. Buckets carry
// monthly resolution, so week and month both rank the current month and
// alltime ranks the whole history.
func (s *Service) Trending(ctx context.Context, period string, limit int) ([]models.TrendingArtistEntry, error) {
	month, err := s.monthFor(period)
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = defaultTrendingLimit
	}
	if limit > maxTrendingLimit {
		limit = maxTrendingLimit
	}

	if err := s.requireMinSessions(ctx); err != nil {
		return nil, err
	}

	cacheMonth := month
	if cacheMonth == "" {
		cacheMonth = PeriodAllTime
	}

	if cached, err := s.cache.GetTrending(ctx, cacheMonth); err != nil {
		s.logger.Warn("Trending cache read failed", "error", err)
	} else if cached != nil {
		s.recordCache("hit")
		return trimTrending(cached, limit), nil
	}
	s.recordCache("miss")

	entries, err := s.repo.TrendingArtists(ctx, month, maxTrendingLimit)
	if err != nil {
		return nil, err
	}

	if err := s.cache.PutTrending(ctx, cacheMonth, entries); err != nil {
		s.logger.Warn("Failed to cache trending artists", "error", err)
	}
	return trimTrending(entries, limit), nil
}

// Percentiles places the session behind the token among all opted-in
// completed sessions. The session itself is excluded from the comparison
// set by the repository.
func (s *Service) Percentiles(ctx context.Context, token string) (*models.Percentiles, error) {
	session, err := s.resolver.Resolve(ctx, token)
	if err != nil {
		return nil, err
	}
	return s.repo.Percentiles(ctx, session)
}

// Distribution reports how personalities are spread across the community.
func (s *Service) Distribution(ctx context.Context) (*models.PersonalityDistribution, error) {
	if err := s.requireMinSessions(ctx); err != nil {
		return nil, err
	}

	if cached, err := s.cache.GetDistribution(ctx); err != nil {
		s.logger.Warn("Distribution cache read failed", "error", err)
	} else if cached != nil {
		s.recordCache("hit")
		return cached, nil
	}
	s.recordCache("miss")

	dist, err := s.repo.PersonalityDistribution(ctx)
	if err != nil {
		return nil, err
	}

	if err := s.cache.PutDistribution(ctx, dist); err != nil {
		s.logger.Warn("Failed to cache personality distribution", "error", err)
	}
	return dist, nil
}

// requireMinSessions refuses community aggregates until enough opted-in
// sessions exist to make them meaningful.
func (s *Service) requireMinSessions(ctx context.Context) error {
	count, err := s.sessions.CountCompleted(ctx, true)
	if err != nil {
		return err
	}
	if count < int64(s.cfg.Community.MinSessions) {
		return models.ErrInsufficientData
	}
	return nil
}

// monthFor maps a period name to the bucket month key it covers.
func (s *Service) monthFor(period string) (string, error) {
	switch period {
	case PeriodWeek, PeriodMonth:
		return models.MonthKey(s.now()), nil
	case PeriodAllTime, "":
		return "", nil
	default:
		return "", fmt.Errorf("%w: unknown trending period %q", models.ErrInvalidInput, period)
	}
}

func (s *Service) recordCache(outcome string) {
	if s.recorder != nil {
		s.recorder.IncCommunityCache(outcome)
	}
}

func trimTrending(entries []models.TrendingArtistEntry, limit int) []models.TrendingArtistEntry {
	if len(entries) > limit {
		return entries[:limit]
	}
	return entries
}
