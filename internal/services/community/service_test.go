package community

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.uber.org/zap/zapcore"

	"github.com/music-livereview/backend/internal/config"
	"github.com/music-livereview/backend/internal/models"
	"github.com/music-livereview/backend/internal/utils"
)

const testToken = "ABCDEFGHIJKLMNOPQRSTUV"

type fakeRepo struct {
	global   *models.GlobalStats
	trending []models.TrendingArtistEntry
	pct      *models.Percentiles
	dist     *models.PersonalityDistribution

	globalCalls   int
	trendingCalls int
	lastMonth     string
	err           error
}

func (f *fakeRepo) GlobalStats(_ context.Context, topArtists int) (*models.GlobalStats, error) {
	f.globalCalls++
	return f.global, f.err
}

func (f *fakeRepo) TrendingArtists(_ context.Context, month string, limit int) ([]models.TrendingArtistEntry, error) {
	f.trendingCalls++
	f.lastMonth = month
	return f.trending, f.err
}

func (f *fakeRepo) Percentiles(_ context.Context, session *models.UploadSession) (*models.Percentiles, error) {
	return f.pct, f.err
}

func (f *fakeRepo) PersonalityDistribution(_ context.Context) (*models.PersonalityDistribution, error) {
	return f.dist, f.err
}

type fakeSessions struct {
	completed int64
	countErr  error
}

func (f *fakeSessions) Create(context.Context, *models.UploadSession) error { return nil }

func (f *fakeSessions) FindByID(context.Context, bson.ObjectID) (*models.UploadSession, error) {
	return nil, models.ErrSessionNotFound
}

func (f *fakeSessions) FindByShareToken(context.Context, string) (*models.UploadSession, error) {
	return nil, models.ErrSessionNotFound
}

func (f *fakeSessions) UpdateStatus(context.Context, *models.UploadSession) error { return nil }

func (f *fakeSessions) SetPersonality(context.Context, bson.ObjectID, string) error { return nil }

func (f *fakeSessions) DeactivateOthers(context.Context, string, bson.ObjectID) (int64, error) {
	return 0, nil
}

func (f *fakeSessions) CountCompleted(_ context.Context, communityOnly bool) (int64, error) {
	return f.completed, f.countErr
}

func (f *fakeSessions) Delete(context.Context, bson.ObjectID) error { return nil }

type fakeResolver struct {
	session *models.UploadSession
	err     error
}

func (f *fakeResolver) Resolve(_ context.Context, token string) (*models.UploadSession, error) {
	if f.err != nil {
		return nil, f.err
	}
	if f.session == nil || f.session.ShareToken != token {
		return nil, models.ErrSessionNotFound
	}
	return f.session, nil
}

type fakeCache struct {
	global   *models.GlobalStats
	trending map[string][]models.TrendingArtistEntry
	dist     *models.PersonalityDistribution
}

func newFakeCache() *fakeCache {
	return &fakeCache{trending: make(map[string][]models.TrendingArtistEntry)}
}

func (f *fakeCache) GetGlobalStats(context.Context) (*models.GlobalStats, error) {
	return f.global, nil
}

func (f *fakeCache) PutGlobalStats(_ context.Context, stats *models.GlobalStats) error {
	f.global = stats
	return nil
}

func (f *fakeCache) GetTrending(_ context.Context, month string) ([]models.TrendingArtistEntry, error) {
	return f.trending[month], nil
}

func (f *fakeCache) PutTrending(_ context.Context, month string, entries []models.TrendingArtistEntry) error {
	f.trending[month] = entries
	return nil
}

func (f *fakeCache) GetDistribution(context.Context) (*models.PersonalityDistribution, error) {
	return f.dist, nil
}

func (f *fakeCache) PutDistribution(_ context.Context, dist *models.PersonalityDistribution) error {
	f.dist = dist
	return nil
}

type fakeRecorder struct {
	hits, misses int
}

func (f *fakeRecorder) IncCommunityCache(outcome string) {
	if outcome == "hit" {
		f.hits++
	} else {
		f.misses++
	}
}

func newTestService(repo *fakeRepo, sessions *fakeSessions, resolver *fakeResolver, cache *fakeCache, rec *fakeRecorder) *Service {
	cfg := config.CreateDefaultConfig()
	logger := utils.NewLogger(utils.LoggerOptions{Level: zapcore.ErrorLevel})
	// A nil *fakeRecorder must reach NewService as a nil interface, not a
	// typed nil, so the service's recorder != nil guard still applies.
	var recorder Recorder
	if rec != nil {
		recorder = rec
	}
	svc := NewService(repo, sessions, resolver, cache, recorder, cfg, logger)
	svc.now = func() time.Time {
		return time.Date(2023, 6, 14, 12, 0, 0, 0, time.UTC)
	}
	return svc
}

func trendingEntries(n int) []models.TrendingArtistEntry {
	entries := make([]models.TrendingArtistEntry, n)
	for i := range entries {
		entries[i] = models.TrendingArtistEntry{Name: string(rune('A' + i)), UploadCount: int64(n - i)}
	}
	return entries
}

func TestGlobalReadThrough(t *testing.T) {
	repo := &fakeRepo{global: &models.GlobalStats{TotalUploads: 42, AvgTotalHours: 812.3}}
	cache := newFakeCache()
	rec := &fakeRecorder{}
	svc := newTestService(repo, &fakeSessions{completed: 42}, &fakeResolver{}, cache, rec)

	stats, err := svc.Global(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(42), stats.TotalUploads)
	assert.Equal(t, 1, repo.globalCalls)

	// Second read is served from cache.
	stats, err = svc.Global(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(42), stats.TotalUploads)
	assert.Equal(t, 1, repo.globalCalls)
	assert.Equal(t, 1, rec.hits)
	assert.Equal(t, 1, rec.misses)
}

func TestGlobalRequiresMinSessions(t *testing.T) {
	repo := &fakeRepo{global: &models.GlobalStats{TotalUploads: 3}}
	svc := newTestService(repo, &fakeSessions{completed: 3}, &fakeResolver{}, newFakeCache(), nil)

	_, err := svc.Global(context.Background())
	assert.ErrorIs(t, err, models.ErrInsufficientData)
	assert.Zero(t, repo.globalCalls)
}

func TestTrendingPeriodMapping(t *testing.T) {
	tests := []struct {
		period    string
		wantMonth string
	}{
		{PeriodWeek, "2023-06-01"},
		{PeriodMonth, "2023-06-01"},
		{PeriodAllTime, ""},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run("period "+tt.period, func(t *testing.T) {
			repo := &fakeRepo{trending: trendingEntries(3)}
			svc := newTestService(repo, &fakeSessions{completed: 50}, &fakeResolver{}, newFakeCache(), nil)

			entries, err := svc.Trending(context.Background(), tt.period, 0)
			require.NoError(t, err)
			assert.Len(t, entries, 3)
			assert.Equal(t, tt.wantMonth, repo.lastMonth)
		})
	}
}

func TestTrendingRejectsUnknownPeriod(t *testing.T) {
	svc := newTestService(&fakeRepo{}, &fakeSessions{completed: 50}, &fakeResolver{}, newFakeCache(), nil)

	_, err := svc.Trending(context.Background(), "decade", 0)
	assert.ErrorIs(t, err, models.ErrInvalidInput)
}

func TestTrendingLimitAndCache(t *testing.T) {
	repo := &fakeRepo{trending: trendingEntries(30)}
	cache := newFakeCache()
	svc := newTestService(repo, &fakeSessions{completed: 50}, &fakeResolver{}, cache, nil)

	entries, err := svc.Trending(context.Background(), PeriodAllTime, 5)
	require.NoError(t, err)
	assert.Len(t, entries, 5)
	assert.Equal(t, "A", entries[0].Name)

	// Cached under the alltime key with the full uncut list, so a larger
	// limit on the next call is still served without hitting mongo.
	assert.Len(t, cache.trending[PeriodAllTime], 30)

	entries, err = svc.Trending(context.Background(), PeriodAllTime, 25)
	require.NoError(t, err)
	assert.Len(t, entries, 25)
	assert.Equal(t, 1, repo.trendingCalls)
}

func TestTrendingClampsLimit(t *testing.T) {
	repo := &fakeRepo{trending: trendingEntries(50)}
	svc := newTestService(repo, &fakeSessions{completed: 50}, &fakeResolver{}, newFakeCache(), nil)

	entries, err := svc.Trending(context.Background(), PeriodAllTime, 500)
	require.NoError(t, err)
	assert.Len(t, entries, maxTrendingLimit)
}

func TestPercentiles(t *testing.T) {
	session := models.NewUploadSession(testToken, "", false)
	session.ID = bson.NewObjectID()
	session.Status = models.UploadCompleted

	repo := &fakeRepo{pct: &models.Percentiles{TotalHoursPercentile: 87.5}}
	svc := newTestService(repo, &fakeSessions{completed: 50}, &fakeResolver{session: session}, newFakeCache(), nil)

	pct, err := svc.Percentiles(context.Background(), testToken)
	require.NoError(t, err)
	assert.InDelta(t, 87.5, pct.TotalHoursPercentile, 0.001)
}

func TestPercentilesUnknownToken(t *testing.T) {
	svc := newTestService(&fakeRepo{}, &fakeSessions{completed: 50}, &fakeResolver{}, newFakeCache(), nil)

	_, err := svc.Percentiles(context.Background(), "WWWWWWWWWWWWWWWWWWWWWW")
	assert.ErrorIs(t, err, models.ErrSessionNotFound)
}

func TestDistributionReadThrough(t *testing.T) {
	dist := &models.PersonalityDistribution{
		Entries: []models.PersonalityDistributionEntry{{PersonalityID: "npc", Count: 12, Percentage: 60.0}},
		Total:   20,
	}
	repo := &fakeRepo{dist: dist}
	cache := newFakeCache()
	svc := newTestService(repo, &fakeSessions{completed: 20}, &fakeResolver{}, cache, nil)

	got, err := svc.Distribution(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(20), got.Total)
	assert.Same(t, dist, cache.dist)
}
